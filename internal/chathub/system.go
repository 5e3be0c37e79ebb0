// internal/chathub/system.go
// Satisfies group.Broadcaster so the group service can fan SYSTEM messages
// out through the same hub that chat:send uses, without the group package
// importing chathub internals.

package chathub

import (
	"time"

	"github.com/kiekchat/realtime-core/internal/media"
	"github.com/kiekchat/realtime-core/internal/store"
)

// BroadcastSystemMessage delivers a SYSTEM message (membership changes,
// group creation) to the given participants as a chat:receive frame, the
// same shape a regular message uses (spec.md §4.7).
func (h *Hub) BroadcastSystemMessage(conversationID int64, msg *store.Message, participantIDs []int64) {
	payload := resolveContentForFanout(nil, msg, "", nil)
	for _, userID := range participantIDs {
		h.SendToUser(userID, OutboundFrame{Type: TypeChatReceive, Payload: payload})
	}
}

// NotifyEdited satisfies api.Notifier (spec.md §4.10's edit side effect).
func (h *Hub) NotifyEdited(conversationID, messageID int64, newContent string, editedAt time.Time, participantIDs []int64) {
	payload := map[string]interface{}{
		"messageId":      messageID,
		"conversationId": conversationID,
		"newContent":     newContent,
		"editedAt":       editedAt.Format(time.RFC3339),
	}
	for _, userID := range participantIDs {
		h.SendToUser(userID, OutboundFrame{Type: TypeChatEdited, Payload: payload})
	}
}

// NotifyDeleted satisfies api.Notifier (spec.md §4.10's delete side effect).
func (h *Hub) NotifyDeleted(conversationID, messageID int64, participantIDs []int64) {
	payload := map[string]interface{}{"messageId": messageID, "conversationId": conversationID}
	for _, userID := range participantIDs {
		h.SendToUser(userID, OutboundFrame{Type: TypeChatDeleted, Payload: payload})
	}
}

// NotifyForwarded satisfies api.Notifier: a forwarded message reaches the
// participants as the same chat:receive frame a fresh send produces, media
// content resolved (spec.md §4.10). Unlike chat:send, no DELIVERED receipts
// are recorded and no chat:delivered frames follow.
func (h *Hub) NotifyForwarded(msg *store.Message, senderName string, participantIDs []int64) {
	var resolver media.Store
	if h.dispatcher != nil && h.dispatcher.chat != nil {
		resolver = h.dispatcher.chat.media
	}
	payload := resolveContentForFanout(resolver, msg, senderName, nil)
	for _, userID := range participantIDs {
		h.SendToUser(userID, OutboundFrame{Type: TypeChatReceive, Payload: payload})
	}
}
