package control

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResult_MarshalsSuccessEnvelope(t *testing.T) {
	env := Result("sess-1", ReplyDOMSelected, map[string]string{"selector": ".title"})
	assert.Equal(t, ReplyDOMSelected, env.Type)
	assert.Equal(t, "sess-1", env.SessionID)

	var body resultEnvelope
	require.NoError(t, json.Unmarshal(env.Payload, &body))
	assert.True(t, body.Success)
}

func TestError_MarshalsFailureEnvelope(t *testing.T) {
	env := Error("sess-1", MsgDOMAutoDetect, errors.New("boom"))

	var body errorEnvelope
	require.NoError(t, json.Unmarshal(env.Payload, &body))
	assert.False(t, body.Success)
	assert.Equal(t, "boom", body.Error)
}

func TestErrorReplyTypeFor_AppendsErrorSuffix(t *testing.T) {
	assert.Equal(t, MessageType("dom:autoDetect:error"), errorReplyTypeFor(MsgDOMAutoDetect))
}

// fakeDispatcher replies with the request type plus an ":ack" suffix and a fixed "ok"
// result, unless the request's Payload decodes to {"fail": true}, in which case it
// returns an error.
type fakeDispatcher struct{}

func (fakeDispatcher) Handle(ctx context.Context, msg Envelope) (Envelope, error) {
	var probe struct {
		Fail bool `json:"fail"`
	}
	_ = json.Unmarshal(msg.Payload, &probe)
	if probe.Fail {
		return Envelope{}, errors.New("dispatcher failure")
	}
	return Result(msg.SessionID, MessageType(string(msg.Type)+":ack"), "ok"), nil
}

func TestServeWS_RoundTripsAndReportsDispatcherErrors(t *testing.T) {
	hub := New(fakeDispatcher{})
	server := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(Envelope{Type: MsgNavigate, SessionID: "sess-1"}))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var reply Envelope
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, MessageType("navigate:ack"), reply.Type)

	require.NoError(t, conn.WriteJSON(Envelope{Type: MsgNavigate, Payload: json.RawMessage(`{"fail":true}`)}))
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, MessageType("navigate:error"), reply.Type)

	var body errorEnvelope
	require.NoError(t, json.Unmarshal(reply.Payload, &body))
	assert.False(t, body.Success)
}
