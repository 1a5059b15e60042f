package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/assistedscrape/engine/internal/browserdrv"
	"github.com/assistedscrape/engine/internal/config"
	"github.com/assistedscrape/engine/internal/control"
	"github.com/assistedscrape/engine/internal/logging"
	"github.com/assistedscrape/engine/internal/models"
	"github.com/assistedscrape/engine/internal/ruleset"
	"github.com/assistedscrape/engine/internal/utils"
)

// Manager owns every live Session and implements control.Dispatcher, routing each
// incoming Envelope to the session it names.
type Manager struct {
	cfg   config.Config
	store *ruleset.Store

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager builds a session Manager bound to the process config and rule-set store.
func NewManager(cfg config.Config, store *ruleset.Store) *Manager {
	return &Manager{cfg: cfg, store: store, sessions: make(map[string]*Session)}
}

func (m *Manager) get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// CreateSession launches a new browser page and registers the session under a fresh
// ID.
func (m *Manager) CreateSession(ctx context.Context, userAgent string) (*Session, error) {
	driver, err := browserdrv.New(ctx, userAgent)
	if err != nil {
		return nil, fmt.Errorf("launch driver: %w", err)
	}
	id := utils.GenerateID("session")
	sess := New(id, driver, m.cfg)

	m.mu.Lock()
	m.sessions[id] = sess
	m.mu.Unlock()
	return sess, nil
}

// DestroySession tears a session down and removes it from the registry.
func (m *Manager) DestroySession(id string) {
	m.mu.Lock()
	sess, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if ok {
		sess.Close()
	}
}

// Handle implements control.Dispatcher: it decodes the payload for msg.Type,
// dispatches to the named session, and always returns a reply Envelope (the caller
// wraps handler errors into a `*:error` reply — see control.Hub.ServeWS).
func (m *Manager) Handle(ctx context.Context, msg control.Envelope) (control.Envelope, error) {
	switch msg.Type {
	case control.MsgSessionCreate:
		var req struct {
			UserAgent string `json:"userAgent"`
		}
		_ = json.Unmarshal(msg.Payload, &req)
		sess, err := m.CreateSession(ctx, req.UserAgent)
		if err != nil {
			return control.Envelope{}, err
		}
		return control.Result(sess.ID, control.MsgSessionCreate, map[string]string{"sessionId": sess.ID}), nil

	case control.MsgSessionDestroy:
		m.DestroySession(msg.SessionID)
		return control.Result(msg.SessionID, control.MsgSessionDestroy, nil), nil

	case control.MsgNavigate:
		sess, err := m.require(msg.SessionID)
		if err != nil {
			return control.Envelope{}, err
		}
		var req struct {
			URL string `json:"url"`
		}
		if err := json.Unmarshal(msg.Payload, &req); err != nil {
			return control.Envelope{}, err
		}
		if err := sess.Navigate(ctx, req.URL); err != nil {
			return control.Envelope{}, err
		}
		return control.Result(msg.SessionID, control.MsgNavigate, nil), nil

	case control.MsgDOMAutoDetect:
		sess, err := m.require(msg.SessionID)
		if err != nil {
			return control.Envelope{}, err
		}
		result, err := sess.AutoDetect(ctx)
		if err != nil {
			return control.Envelope{}, err
		}
		return control.Result(msg.SessionID, control.ReplyDOMSelected, result), nil

	case control.MsgSelectorTest:
		sess, err := m.require(msg.SessionID)
		if err != nil {
			return control.Envelope{}, err
		}
		var req struct {
			Selector string `json:"selector"`
		}
		if err := json.Unmarshal(msg.Payload, &req); err != nil {
			return control.Envelope{}, err
		}
		valid, count, err := sess.TestSelector(ctx, req.Selector)
		if err != nil {
			return control.Envelope{}, err
		}
		return control.Result(msg.SessionID, control.MsgSelectorTest, map[string]any{"valid": valid, "count": count}), nil

	case control.MsgSelectorFindPattern:
		sess, err := m.require(msg.SessionID)
		if err != nil {
			return control.Envelope{}, err
		}
		members, err := sess.FindPattern(ctx)
		if err != nil {
			return control.Envelope{}, err
		}
		return control.Result(msg.SessionID, control.MsgSelectorFindPattern, map[string]any{"members": members}), nil

	case control.MsgPaginationDetect, control.MsgPaginationAutoStart:
		sess, err := m.require(msg.SessionID)
		if err != nil {
			return control.Envelope{}, err
		}
		descriptor, err := sess.DetectPagination(ctx)
		if err != nil {
			return control.Envelope{}, err
		}
		return control.Result(msg.SessionID, control.ReplyPaginationResult, descriptor), nil

	case control.MsgPopupAutoClose:
		sess, err := m.require(msg.SessionID)
		if err != nil {
			return control.Envelope{}, err
		}
		var req struct {
			Actions []models.PreAction `json:"actions"`
		}
		if err := json.Unmarshal(msg.Payload, &req); err != nil {
			return control.Envelope{}, err
		}
		results := sess.RunPopupActions(ctx, req.Actions)
		return control.Result(msg.SessionID, control.ReplyPopupClosed, results), nil

	case control.MsgNetworkStartCapture:
		sess, err := m.require(msg.SessionID)
		if err != nil {
			return control.Envelope{}, err
		}
		sess.StartNetworkCapture()
		return control.Result(msg.SessionID, control.MsgNetworkStartCapture, nil), nil

	case control.MsgNetworkStopCapture:
		sess, err := m.require(msg.SessionID)
		if err != nil {
			return control.Envelope{}, err
		}
		sess.StopNetworkCapture()
		return control.Result(msg.SessionID, control.MsgNetworkStopCapture, nil), nil

	case control.MsgNetworkGetProducts:
		sess, err := m.require(msg.SessionID)
		if err != nil {
			return control.Envelope{}, err
		}
		return control.Result(msg.SessionID, control.ReplyNetworkPattern, sess.NetworkProducts()), nil

	case control.MsgScrapeConfigure:
		sess, err := m.require(msg.SessionID)
		if err != nil {
			return control.Envelope{}, err
		}
		var rs models.RuleSet
		if err := json.Unmarshal(msg.Payload, &rs); err != nil {
			return control.Envelope{}, err
		}
		sess.SetRuleSet(&rs)
		if m.store != nil {
			if err := m.store.Save(&rs); err != nil {
				logging.GetLogger().Warn("persist rule set failed", map[string]any{"error": err.Error()})
			}
		}
		return control.Result(msg.SessionID, control.MsgScrapeConfigure, nil), nil

	case control.MsgInputMouse:
		sess, err := m.require(msg.SessionID)
		if err != nil {
			return control.Envelope{}, err
		}
		var req struct {
			X float64 `json:"x"`
			Y float64 `json:"y"`
		}
		if err := json.Unmarshal(msg.Payload, &req); err != nil {
			return control.Envelope{}, err
		}
		if err := sess.ClickAt(ctx, req.X, req.Y); err != nil {
			return control.Envelope{}, err
		}
		return control.Result(msg.SessionID, control.MsgInputMouse, nil), nil

	case control.MsgInputKeyboard:
		sess, err := m.require(msg.SessionID)
		if err != nil {
			return control.Envelope{}, err
		}
		var req struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal(msg.Payload, &req); err != nil {
			return control.Envelope{}, err
		}
		if err := sess.TypeText(ctx, req.Text); err != nil {
			return control.Envelope{}, err
		}
		return control.Result(msg.SessionID, control.MsgInputKeyboard, nil), nil

	case control.MsgInputScroll:
		sess, err := m.require(msg.SessionID)
		if err != nil {
			return control.Envelope{}, err
		}
		var req struct {
			DeltaX float64 `json:"deltaX"`
			DeltaY float64 `json:"deltaY"`
		}
		if err := json.Unmarshal(msg.Payload, &req); err != nil {
			return control.Envelope{}, err
		}
		if err := sess.ScrollBy(ctx, req.DeltaX, req.DeltaY); err != nil {
			return control.Envelope{}, err
		}
		return control.Result(msg.SessionID, control.MsgInputScroll, nil), nil

	case control.MsgDOMHover:
		sess, err := m.require(msg.SessionID)
		if err != nil {
			return control.Envelope{}, err
		}
		var req struct {
			Selector string `json:"selector"`
		}
		if err := json.Unmarshal(msg.Payload, &req); err != nil {
			return control.Envelope{}, err
		}
		if err := sess.Hover(ctx, req.Selector); err != nil {
			return control.Envelope{}, err
		}
		return control.Result(msg.SessionID, control.MsgDOMHover, nil), nil

	case control.MsgDOMSelect:
		sess, err := m.require(msg.SessionID)
		if err != nil {
			return control.Envelope{}, err
		}
		var req struct {
			Selector string `json:"selector"`
			Value    string `json:"value"`
		}
		if err := json.Unmarshal(msg.Payload, &req); err != nil {
			return control.Envelope{}, err
		}
		if err := sess.Select(ctx, req.Selector, req.Value); err != nil {
			return control.Envelope{}, err
		}
		return control.Result(msg.SessionID, control.MsgDOMSelect, nil), nil

	case control.MsgSelectorHighlightAll:
		sess, err := m.require(msg.SessionID)
		if err != nil {
			return control.Envelope{}, err
		}
		var req struct {
			Selector string `json:"selector"`
		}
		if err := json.Unmarshal(msg.Payload, &req); err != nil {
			return control.Envelope{}, err
		}
		count, err := sess.HighlightAll(ctx, req.Selector)
		if err != nil {
			return control.Envelope{}, err
		}
		return control.Result(msg.SessionID, control.ReplyDOMHighlight, map[string]any{"count": count}), nil

	case control.MsgSelectorClearHighlight:
		sess, err := m.require(msg.SessionID)
		if err != nil {
			return control.Envelope{}, err
		}
		if err := sess.ClearHighlight(ctx); err != nil {
			return control.Envelope{}, err
		}
		return control.Result(msg.SessionID, control.MsgSelectorClearHighlight, nil), nil

	case control.MsgScrollTestStart:
		sess, err := m.require(msg.SessionID)
		if err != nil {
			return control.Envelope{}, err
		}
		if err := sess.ScrollTestStart(ctx); err != nil {
			return control.Envelope{}, err
		}
		return control.Result(msg.SessionID, control.MsgScrollTestStart, nil), nil

	case control.MsgScrollTestUpdate:
		sess, err := m.require(msg.SessionID)
		if err != nil {
			return control.Envelope{}, err
		}
		var req struct {
			DeltaY float64 `json:"deltaY"`
		}
		if err := json.Unmarshal(msg.Payload, &req); err != nil {
			return control.Envelope{}, err
		}
		fresh, total, err := sess.ScrollTestUpdate(ctx, req.DeltaY)
		if err != nil {
			return control.Envelope{}, err
		}
		return control.Result(msg.SessionID, control.ReplyScrollTestUpdate, map[string]any{"newItems": fresh, "totalNew": total}), nil

	case control.MsgScrollTestComplete:
		sess, err := m.require(msg.SessionID)
		if err != nil {
			return control.Envelope{}, err
		}
		totalNew, positions, err := sess.ScrollTestComplete(ctx)
		if err != nil {
			return control.Envelope{}, err
		}
		return control.Result(msg.SessionID, control.ReplyScrollTestResult, map[string]any{"totalNew": totalNew, "positions": positions}), nil

	case control.MsgURLHistory:
		sess, err := m.require(msg.SessionID)
		if err != nil {
			return control.Envelope{}, err
		}
		return control.Result(msg.SessionID, control.MsgURLHistory, map[string]any{"history": sess.History()}), nil

	case control.MsgContainerExtract, control.MsgScrapeExecute:
		sess, err := m.require(msg.SessionID)
		if err != nil {
			return control.Envelope{}, err
		}
		var req struct {
			SourceURL string `json:"sourceUrl"`
		}
		_ = json.Unmarshal(msg.Payload, &req)
		records, err := sess.ExtractContainer(ctx, req.SourceURL)
		if err != nil {
			return control.Envelope{}, err
		}
		return control.Result(msg.SessionID, msg.Type, records), nil

	default:
		return control.Envelope{}, fmt.Errorf("unhandled message type %q", msg.Type)
	}
}

func (m *Manager) require(sessionID string) (*Session, error) {
	sess, ok := m.get(sessionID)
	if !ok {
		return nil, fmt.Errorf("unknown session %q", sessionID)
	}
	return sess, nil
}
