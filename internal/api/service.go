// internal/api/service.go
// Message-level operations that sit outside the conversation and group
// services (spec.md §4.10): edit, delete, forward, search, unread summary.
// Grounded on the teacher's internal/messaging/service.go for the
// sender-only + time-window enforcement pattern.

package api

import (
	"context"
	"strings"
	"time"

	"github.com/kiekchat/realtime-core/internal/apperr"
	"github.com/kiekchat/realtime-core/internal/store"
)

const (
	editWindow   = 15 * time.Minute
	deleteWindow = 1 * time.Hour
	searchLimit  = 50
)

// Notifier delivers the real-time side effects of message mutations
// (spec.md §4.10) through the connection hub, without this package
// depending on chathub directly.
type Notifier interface {
	NotifyEdited(conversationID, messageID int64, newContent string, editedAt time.Time, participantIDs []int64)
	NotifyDeleted(conversationID, messageID int64, participantIDs []int64)
	NotifyForwarded(msg *store.Message, senderName string, participantIDs []int64)
}

type Service interface {
	EditMessage(ctx context.Context, userID, messageID int64, content string) (*store.Message, error)
	DeleteMessage(ctx context.Context, userID, messageID int64) error
	Forward(ctx context.Context, userID, messageID int64, targetConversationIDs []int64) ([]*store.Message, error)
	Search(ctx context.Context, userID int64, query string, conversationID *int64) ([]*store.Message, error)
	UnreadSummary(ctx context.Context, userID int64) (*UnreadSummary, error)
}

type service struct {
	repo     store.Repository
	notifier Notifier
}

func NewService(repo store.Repository, notifier Notifier) Service {
	return &service{repo: repo, notifier: notifier}
}

func (s *service) EditMessage(ctx context.Context, userID, messageID int64, content string) (*store.Message, error) {
	msg, err := s.repo.GetMessage(ctx, messageID)
	if err != nil {
		return nil, apperr.NotFoundf("NOT_FOUND", "message not found")
	}
	if msg.SenderID != userID {
		return nil, apperr.Forbiddenf("SEND_FAILED", "cannot edit another user's message")
	}
	if msg.ContentType != store.ContentText {
		return nil, apperr.Validationf("INVALID_PAYLOAD", "only text messages can be edited")
	}
	if msg.IsDeleted() {
		return nil, apperr.Validationf("INVALID_PAYLOAD", "cannot edit a deleted message")
	}
	if time.Since(msg.CreatedAt) > editWindow {
		return nil, apperr.Validationf("INVALID_PAYLOAD", "edit window has expired")
	}

	now := time.Now()
	if err := s.repo.EditMessage(ctx, messageID, content, now); err != nil {
		return nil, apperr.Internalf(err, "edit message")
	}
	msg.Content = content
	msg.EditedAt = &now

	participants, err := s.repo.ListParticipants(ctx, msg.ConversationID)
	if err == nil && s.notifier != nil {
		s.notifier.NotifyEdited(msg.ConversationID, msg.ID, content, now, otherParticipantIDs(participants, userID))
	}
	return msg, nil
}

func (s *service) DeleteMessage(ctx context.Context, userID, messageID int64) error {
	msg, err := s.repo.GetMessage(ctx, messageID)
	if err != nil {
		return apperr.NotFoundf("NOT_FOUND", "message not found")
	}
	if msg.SenderID != userID {
		return apperr.Forbiddenf("SEND_FAILED", "cannot delete another user's message")
	}
	if msg.IsDeleted() {
		return nil
	}
	if time.Since(msg.CreatedAt) > deleteWindow {
		return apperr.Validationf("INVALID_PAYLOAD", "delete window has expired")
	}

	now := time.Now()
	if err := s.repo.DeleteMessage(ctx, messageID, now); err != nil {
		return apperr.Internalf(err, "delete message")
	}

	participants, err := s.repo.ListParticipants(ctx, msg.ConversationID)
	if err == nil && s.notifier != nil {
		allIDs := make([]int64, 0, len(participants))
		for _, p := range participants {
			allIDs = append(allIDs, p.UserID)
		}
		s.notifier.NotifyDeleted(msg.ConversationID, messageID, allIDs)
	}
	return nil
}

func (s *service) Forward(ctx context.Context, userID, messageID int64, targetConversationIDs []int64) ([]*store.Message, error) {
	source, err := s.repo.GetMessage(ctx, messageID)
	if err != nil {
		return nil, apperr.NotFoundf("NOT_FOUND", "message not found")
	}
	if source.IsDeleted() {
		return nil, apperr.Validationf("INVALID_PAYLOAD", "cannot forward a deleted message")
	}

	sender, err := s.repo.GetUserByID(ctx, userID)
	senderName := ""
	if err == nil {
		senderName = sender.DisplayName
	}

	forwarded := make([]*store.Message, 0, len(targetConversationIDs))
	for _, conversationID := range targetConversationIDs {
		isParticipant, err := s.repo.IsParticipant(ctx, conversationID, userID)
		if err != nil || !isParticipant {
			return nil, apperr.Forbiddenf("SEND_FAILED", "not a participant of one of the target conversations")
		}

		now := time.Now()
		copy := &store.Message{
			ConversationID: conversationID,
			SenderID:       userID,
			Content:        source.Content,
			ContentType:    source.ContentType,
			CreatedAt:      now,
		}
		if err := s.repo.CreateMessage(ctx, copy); err != nil {
			return nil, apperr.Internalf(err, "forward message")
		}
		if err := s.repo.TouchConversation(ctx, conversationID, now); err != nil {
			return nil, apperr.Internalf(err, "touch conversation")
		}

		if s.notifier != nil {
			if participants, err := s.repo.ListParticipants(ctx, conversationID); err == nil {
				s.notifier.NotifyForwarded(copy, senderName, otherParticipantIDs(participants, userID))
			}
		}
		forwarded = append(forwarded, copy)
	}
	return forwarded, nil
}

func (s *service) Search(ctx context.Context, userID int64, query string, conversationID *int64) ([]*store.Message, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperr.Validationf("INVALID_PAYLOAD", "query is required")
	}
	return s.repo.SearchMessages(ctx, userID, query, conversationID, searchLimit)
}

func (s *service) UnreadSummary(ctx context.Context, userID int64) (*UnreadSummary, error) {
	conversations, err := s.repo.ListUserConversations(ctx, userID)
	if err != nil {
		return nil, apperr.Internalf(err, "list conversations")
	}

	summary := &UnreadSummary{Conversations: make([]UnreadConversation, 0, len(conversations))}
	for _, c := range conversations {
		participant, err := s.repo.GetParticipant(ctx, c.ID, userID)
		if err != nil {
			continue
		}
		count, err := s.repo.CountUnread(ctx, c.ID, userID, participant.LastReadAt)
		if err != nil {
			continue
		}
		if count > 0 {
			summary.Conversations = append(summary.Conversations, UnreadConversation{ConversationID: c.ID, Count: count})
			summary.Total += count
		}
	}
	return summary, nil
}

func otherParticipantIDs(participants []*store.Participant, excludeUserID int64) []int64 {
	ids := make([]int64, 0, len(participants))
	for _, p := range participants {
		if p.UserID != excludeUserID {
			ids = append(ids, p.UserID)
		}
	}
	return ids
}
