// internal/chathub/chat.go
// Chat, receipt and presence handling (spec.md §4.7-4.9), grounded on the
// teacher's internal/messaging/handlers.go switch-on-type dispatch but
// rebuilt against the Store gateway and the two-index Hub.

package chathub

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/kiekchat/realtime-core/internal/media"
	"github.com/kiekchat/realtime-core/internal/metrics"
	"github.com/kiekchat/realtime-core/internal/store"
)

const (
	typingTimeout = 5 * time.Second
)

// ChatHandler implements C7 (chat:send), C8 (chat:read) and the typing half
// of C9; online/offline presence lives alongside it since both need the
// same store + hub dependencies.
type ChatHandler struct {
	repo  store.Repository
	media media.Store

	typingMu sync.Mutex
	typing   map[typingKey]*time.Timer

	hub *Hub
}

type typingKey struct {
	userID         int64
	conversationID int64
}

func NewChatHandler(repo store.Repository, mediaStore media.Store) *ChatHandler {
	return &ChatHandler{
		repo:   repo,
		media:  mediaStore,
		typing: make(map[typingKey]*time.Timer),
	}
}

// BindHub is called once at wiring time; the handler needs it to fan out
// frames, but the hub is constructed with the dispatcher (and so the chat
// handler) before it can hand itself back.
func (h *ChatHandler) BindHub(hub *Hub) { h.hub = hub }

func (h *ChatHandler) HandleSend(hub *Hub, connID string, senderID int64, frame InboundFrame) {
	var payload chatSendPayload
	if err := json.Unmarshal(frame.Payload, &payload); err != nil {
		hub.sendError(connID, frame.ID, "INVALID_PAYLOAD", "malformed chat:send payload")
		return
	}
	if strings.TrimSpace(payload.Content) == "" {
		hub.sendError(connID, frame.ID, "INVALID_PAYLOAD", "content is required")
		return
	}

	ctx := context.Background()

	isParticipant, err := h.repo.IsParticipant(ctx, payload.ConversationID, senderID)
	if err != nil || !isParticipant {
		hub.replyTo(connID, frame.ID, TypeError, errorPayload{Code: "SEND_FAILED", Message: "not a participant of this conversation"})
		return
	}

	var replyPreview *replyPreviewPayload
	if payload.ReplyToMessageID != nil {
		parent, err := h.repo.GetMessage(ctx, *payload.ReplyToMessageID)
		if err != nil || parent.ConversationID != payload.ConversationID {
			hub.replyTo(connID, frame.ID, TypeError, errorPayload{Code: "NOT_FOUND", Message: "replyToMessageId not found in this conversation"})
			return
		}
		replyPreview = &replyPreviewPayload{ID: parent.ID, SenderID: parent.SenderID, Content: parent.Content}
	}

	contentType := store.ContentText
	if payload.ContentType != "" {
		ct := store.ContentType(strings.ToUpper(payload.ContentType))
		if !ct.Valid() || ct == store.ContentSystem {
			hub.replyTo(connID, frame.ID, TypeError, errorPayload{Code: "INVALID_PAYLOAD", Message: "unsupported contentType"})
			return
		}
		contentType = ct
	}

	now := time.Now()
	msg := &store.Message{
		ConversationID: payload.ConversationID,
		SenderID:       senderID,
		Content:        payload.Content,
		ContentType:    contentType,
		ReplyToID:      payload.ReplyToMessageID,
		CreatedAt:      now,
	}

	if err := h.repo.CreateMessage(ctx, msg); err != nil {
		hub.replyTo(connID, frame.ID, TypeError, errorPayload{Code: "SEND_FAILED", Message: "could not send message"})
		return
	}
	metrics.MessagePersisted()

	if err := h.repo.TouchConversation(ctx, payload.ConversationID, now); err != nil {
		log.Printf("chathub: touch conversation %d: %v", payload.ConversationID, err)
	}

	hub.replyTo(connID, frame.ID, TypeChatSent, map[string]interface{}{
		"clientMessageId": payload.ClientMessageID,
		"messageId":       msg.ID,
		"timestamp":       msg.CreatedAt.UnixMilli(),
	})

	participants, err := h.repo.ListParticipants(ctx, payload.ConversationID)
	if err != nil {
		log.Printf("chathub: list participants for conversation %d: %v", payload.ConversationID, err)
		return
	}

	sender, err := h.repo.GetUserByID(ctx, senderID)
	senderName := ""
	if err == nil {
		senderName = sender.DisplayName
	}

	receivePayload := resolveContentForFanout(h.media, msg, senderName, replyPreview)

	for _, p := range participants {
		if p.UserID == senderID {
			continue
		}
		delivered := hub.SendToUser(p.UserID, OutboundFrame{Type: TypeChatReceive, Payload: receivePayload})
		if delivered {
			if err := h.repo.UpsertDeliveredReceipt(ctx, msg.ID, p.UserID, time.Now()); err != nil {
				log.Printf("chathub: upsert delivered receipt for message %d user %d: %v", msg.ID, p.UserID, err)
				continue
			}
			hub.SendToUser(senderID, OutboundFrame{
				Type:    TypeChatDelivered,
				Payload: map[string]interface{}{"messageId": msg.ID, "conversationId": payload.ConversationID},
			})
		}
	}
}

func resolveContentForFanout(resolver media.Store, msg *store.Message, senderName string, reply *replyPreviewPayload) chatReceivePayload {
	content := msg.Content
	switch msg.ContentType {
	case store.ContentImage, store.ContentFile, store.ContentAudio, store.ContentVideo:
		if resolver != nil {
			content = resolver.ResolveURL(msg.Content)
		}
	}
	return chatReceivePayload{
		MessageID:      msg.ID,
		SenderID:       msg.SenderID,
		SenderName:     senderName,
		ConversationID: msg.ConversationID,
		Content:        content,
		ContentType:    string(msg.ContentType),
		Timestamp:      msg.CreatedAt.UnixMilli(),
		ReplyTo:        reply,
	}
}

func (h *ChatHandler) HandleRead(hub *Hub, connID string, userID int64, frame InboundFrame) {
	var payload chatReadPayload
	if err := json.Unmarshal(frame.Payload, &payload); err != nil {
		hub.sendError(connID, frame.ID, "INVALID_PAYLOAD", "malformed chat:read payload")
		return
	}

	ctx := context.Background()
	now := time.Now()

	if err := h.repo.UpdateLastReadAt(ctx, payload.ConversationID, userID, now); err != nil {
		log.Printf("chathub: update lastReadAt for conversation %d user %d: %v", payload.ConversationID, userID, err)
		return
	}

	target, err := h.repo.GetMessage(ctx, payload.MessageID)
	if err != nil || target.ConversationID != payload.ConversationID {
		return
	}

	unread, err := h.repo.MessagesAtOrBefore(ctx, payload.ConversationID, target.CreatedAt, userID)
	if err != nil {
		log.Printf("chathub: messages at or before for conversation %d: %v", payload.ConversationID, err)
		return
	}

	for _, m := range unread {
		existing, err := h.repo.GetReceipt(ctx, m.ID, userID)
		if err == nil && existing.Status == store.ReceiptRead {
			continue
		}
		if err := h.repo.UpsertReadReceipt(ctx, m.ID, userID, now); err != nil {
			log.Printf("chathub: upsert read receipt for message %d user %d: %v", m.ID, userID, err)
			continue
		}
		hub.SendToUser(m.SenderID, OutboundFrame{
			Type: TypeChatRead,
			Payload: map[string]interface{}{
				"messageId":      m.ID,
				"conversationId": payload.ConversationID,
				"readBy":         userID,
			},
		})
	}
}

func (h *ChatHandler) HandleTyping(hub *Hub, connID string, userID int64, frame InboundFrame) {
	var payload chatTypingPayload
	if err := json.Unmarshal(frame.Payload, &payload); err != nil {
		hub.sendError(connID, frame.ID, "INVALID_PAYLOAD", "malformed chat:typing payload")
		return
	}

	h.broadcastTyping(hub, payload.ConversationID, userID, payload.IsTyping)

	key := typingKey{userID: userID, conversationID: payload.ConversationID}

	h.typingMu.Lock()
	if existing, ok := h.typing[key]; ok {
		existing.Stop()
		delete(h.typing, key)
	}
	if payload.IsTyping {
		h.typing[key] = time.AfterFunc(typingTimeout, func() {
			h.typingMu.Lock()
			delete(h.typing, key)
			h.typingMu.Unlock()
			h.broadcastTyping(hub, payload.ConversationID, userID, false)
		})
	}
	h.typingMu.Unlock()
}

func (h *ChatHandler) broadcastTyping(hub *Hub, conversationID, userID int64, isTyping bool) {
	ctx := context.Background()
	participants, err := h.repo.ListParticipants(ctx, conversationID)
	if err != nil {
		log.Printf("chathub: list participants for typing broadcast, conversation %d: %v", conversationID, err)
		return
	}
	for _, p := range participants {
		if p.UserID == userID {
			continue
		}
		hub.SendToUser(p.UserID, OutboundFrame{
			Type: TypeChatTyping,
			Payload: map[string]interface{}{
				"conversationId": conversationID,
				"userId":         userID,
				"isTyping":       isTyping,
			},
		})
	}
}

// OnUserConnected implements the online half of spec.md §4.9. The
// dispatcher only calls this for a user's first open connection: multi-
// device auth on an already-online user stays silent.
func (h *ChatHandler) OnUserConnected(userID int64) {
	ctx := context.Background()

	if err := h.repo.SetUserOnline(ctx, userID, true, time.Now()); err != nil {
		log.Printf("chathub: set user %d online: %v", userID, err)
	}
	h.broadcastPresence(ctx, userID, "online", nil)
}

// OnUserDisconnected implements the offline half; called by the hub only
// when the user's last connection has just closed.
func (h *ChatHandler) OnUserDisconnected(userID int64) {
	ctx := context.Background()
	now := time.Now()
	if err := h.repo.SetUserOnline(ctx, userID, false, now); err != nil {
		log.Printf("chathub: set user %d offline: %v", userID, err)
	}
	h.broadcastPresence(ctx, userID, "offline", &now)
}

func (h *ChatHandler) broadcastPresence(ctx context.Context, userID int64, status string, lastSeen *time.Time) {
	neighbors, err := h.repo.ConversationNeighbors(ctx, userID)
	if err != nil {
		log.Printf("chathub: conversation neighbors for user %d: %v", userID, err)
		return
	}
	payload := map[string]interface{}{"userId": userID, "status": status}
	if lastSeen != nil {
		payload["lastSeen"] = lastSeen.Format(time.RFC3339)
	}
	for _, neighborID := range neighbors {
		if neighborID == userID {
			continue
		}
		h.hub.SendToUser(neighborID, OutboundFrame{Type: TypePresence, Payload: payload})
	}
}
