// Package control implements the operator control channel (§6): a bidirectional,
// message-oriented WebSocket protocol the UI uses to drive one session's detection,
// pagination, lazy-load, popup and extraction components interactively.
package control

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/assistedscrape/engine/internal/logging"
	"github.com/gorilla/websocket"
)

// MessageType enumerates the control channel's exhaustive request/reply vocabulary.
type MessageType string

const (
	MsgSessionCreate  MessageType = "session:create"
	MsgSessionDestroy MessageType = "session:destroy"
	MsgNavigate       MessageType = "navigate"
	MsgInputMouse     MessageType = "input:mouse"
	MsgInputKeyboard  MessageType = "input:keyboard"
	MsgInputScroll    MessageType = "input:scroll"
	MsgDOMHover       MessageType = "dom:hover"
	MsgDOMSelect      MessageType = "dom:select"
	MsgDOMAutoDetect  MessageType = "dom:autoDetect"

	MsgSelectorTest           MessageType = "selector:test"
	MsgSelectorFindPattern    MessageType = "selector:findPattern"
	MsgSelectorHighlightAll   MessageType = "selector:highlightAll"
	MsgSelectorClearHighlight MessageType = "selector:clearHighlight"

	MsgPaginationDetect    MessageType = "pagination:detect"
	MsgPaginationAutoStart MessageType = "pagination:autoStart"
	MsgPopupAutoClose      MessageType = "popup:autoClose"

	MsgScrollTestStart    MessageType = "scrollTest:start"
	MsgScrollTestUpdate   MessageType = "scrollTest:update"
	MsgScrollTestComplete MessageType = "scrollTest:complete"

	MsgNetworkStartCapture MessageType = "network:startCapture"
	MsgNetworkStopCapture  MessageType = "network:stopCapture"
	MsgNetworkGetProducts  MessageType = "network:getProducts"

	MsgContainerExtract MessageType = "container:extract"
	MsgScrapeConfigure  MessageType = "scrape:configure"
	MsgScrapeExecute    MessageType = "scrape:execute"

	MsgURLCaptured MessageType = "url:captured"
	MsgURLHistory  MessageType = "url:history"

	// Reply types

	ReplyDOMSelected        MessageType = "dom:selected"
	ReplyDOMHighlight       MessageType = "dom:highlight"
	ReplyPaginationCandidates MessageType = "pagination:candidates"
	ReplyPaginationResult    MessageType = "pagination:result"
	ReplyPopupClosed         MessageType = "popup:closed"
	ReplyScrollTestUpdate    MessageType = "scrollTest:update"
	ReplyScrollTestResult    MessageType = "scrollTest:result"
	ReplyNetworkProducts     MessageType = "network:products"
	ReplyNetworkPattern      MessageType = "network:patternDetected"
)

// Envelope is the wire format for every control-channel message in both directions.
type Envelope struct {
	Type      MessageType     `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	SessionID string          `json:"sessionId,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// Dispatcher handles one decoded Envelope and returns the reply to send back. The
// session-management layer implements this; control itself is policy-free.
type Dispatcher interface {
	Handle(ctx context.Context, msg Envelope) (Envelope, error)
}

// resultEnvelope wraps a successful reply payload with success:true, matching the
// "control channel always replies — success:true+result or success:false+error"
// contract.
type resultEnvelope struct {
	Success bool `json:"success"`
	Result  any  `json:"result,omitempty"`
}

type errorEnvelope struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// Result builds a success reply Envelope of replyType carrying result, addressed to
// sessionID.
func Result(sessionID string, replyType MessageType, result any) Envelope {
	body, _ := json.Marshal(resultEnvelope{Success: true, Result: result})
	return Envelope{Type: replyType, Payload: body, SessionID: sessionID}
}

// Error builds a failure reply Envelope — the control channel never lets an error
// silently terminate a session, it always replies with success:false and a message.
func Error(sessionID string, replyType MessageType, err error) Envelope {
	body, _ := json.Marshal(errorEnvelope{Success: false, Error: err.Error()})
	return Envelope{Type: replyType, Payload: body, SessionID: sessionID}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub upgrades incoming HTTP requests to the control-channel WebSocket and pumps
// Envelopes to/from a Dispatcher, one connection per operator.
type Hub struct {
	dispatcher Dispatcher
}

// New builds a Hub bound to a Dispatcher.
func New(dispatcher Dispatcher) *Hub {
	return &Hub{dispatcher: dispatcher}
}

// ServeWS upgrades the request and runs the read/dispatch/write loop until the
// connection closes or the request context is canceled.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.GetLogger().Error("control channel upgrade failed", map[string]any{"error": err.Error()})
		return
	}
	defer conn.Close()

	ctx := r.Context()
	for {
		var msg Envelope
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logging.GetLogger().Warn("control channel closed unexpectedly", map[string]any{"error": err.Error()})
			}
			return
		}

		msg.Timestamp = time.Now().UnixMilli()
		reply, err := h.dispatcher.Handle(ctx, msg)
		if err != nil {
			reply = Error(msg.SessionID, errorReplyTypeFor(msg.Type), err)
		}
		reply.Timestamp = time.Now().UnixMilli()

		if writeErr := conn.WriteJSON(reply); writeErr != nil {
			logging.GetLogger().Warn("control channel write failed", map[string]any{"error": writeErr.Error()})
			return
		}
	}
}

// errorReplyTypeFor derives a "*:error"-shaped reply type from the request type, per
// the envelope contract's `*:error` reply family.
func errorReplyTypeFor(requestType MessageType) MessageType {
	return MessageType(string(requestType) + ":error")
}
