// internal/chathub/dispatch.go
// The inbound frame algorithm of spec.md §4.6: parse envelope, check the
// auth gate, validate the per-type payload, then route.

package chathub

import (
	"encoding/json"
	"log"

	"github.com/kiekchat/realtime-core/internal/auth"
	"github.com/kiekchat/realtime-core/internal/metrics"
)

// Dispatcher routes one raw frame at a time. It holds no per-connection
// state; everything it needs about a connection's identity comes from the
// hub's indices (spec.md §9).
type Dispatcher struct {
	tokens auth.TokenService
	chat   *ChatHandler
}

func NewDispatcher(tokens auth.TokenService, chat *ChatHandler) *Dispatcher {
	return &Dispatcher{tokens: tokens, chat: chat}
}

// Dispatch implements spec.md §4.6 step by step: malformed envelopes and
// unknown types get a best-effort error frame back, never a dropped
// connection.
func (d *Dispatcher) Dispatch(h *Hub, connID string, raw []byte) {
	var frame InboundFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		h.sendError(connID, "", "INVALID_MESSAGE", "malformed frame")
		return
	}
	if frame.Type == "" {
		h.sendError(connID, frame.ID, "INVALID_PAYLOAD", "missing frame type")
		return
	}

	metrics.FrameProcessed(frame.Type)

	userID, authenticated := h.connUser(connID)

	if frame.Type != InTypeAuth && !authenticated {
		h.sendError(connID, frame.ID, "NOT_AUTHENTICATED", "send an auth frame first")
		return
	}

	switch frame.Type {
	case InTypeAuth:
		d.handleAuth(h, connID, frame)
	case InTypeChatSend:
		d.chat.HandleSend(h, connID, userID, frame)
	case InTypeChatRead:
		d.chat.HandleRead(h, connID, userID, frame)
	case InTypeChatTyping:
		d.chat.HandleTyping(h, connID, userID, frame)
	default:
		h.sendError(connID, frame.ID, "UNKNOWN_TYPE", "unknown frame type: "+frame.Type)
	}
}

func (d *Dispatcher) handleAuth(h *Hub, connID string, frame InboundFrame) {
	var payload authPayload
	if err := json.Unmarshal(frame.Payload, &payload); err != nil || payload.Token == "" {
		h.sendError(connID, frame.ID, "INVALID_PAYLOAD", "auth payload requires a token")
		return
	}

	claims, err := d.tokens.VerifyAccess(payload.Token)
	if err != nil {
		h.replyTo(connID, frame.ID, TypeAuthError, errorPayload{Code: "INVALID_TOKEN", Message: "invalid or expired token"})
		return
	}

	ok, first := h.Authenticate(connID, claims.UserID)
	if !ok {
		return // connection already gone
	}

	h.replyTo(connID, frame.ID, TypeAuthSuccess, map[string]interface{}{"userId": claims.UserID})

	if first && d.chat != nil {
		d.chat.OnUserConnected(claims.UserID)
	}
	log.Printf("chathub: connection %s authenticated as user %d", connID, claims.UserID)
}

// connUser looks up whether connID has already authenticated, and as whom.
func (h *Hub) connUser(connID string) (int64, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	e, ok := h.connections[connID]
	if !ok || !e.authenticated {
		return 0, false
	}
	return e.userID, true
}

func (h *Hub) connByID(connID string) (*connection, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	e, ok := h.connections[connID]
	if !ok {
		return nil, false
	}
	return e.conn, true
}

// replyTo sends a typed frame back to one connection, stamped with the
// client frame id it answers.
func (h *Hub) replyTo(connID, replyTo, frameType string, payload interface{}) {
	c, ok := h.connByID(connID)
	if !ok {
		return
	}
	c.enqueue(OutboundFrame{Type: frameType, Payload: payload, ReplyTo: replyTo})
}

func (h *Hub) sendError(connID, replyTo, code, message string) {
	h.replyTo(connID, replyTo, TypeError, errorPayload{Code: code, Message: message})
}
