// internal/conversation/service.go
// Conversation service (spec.md C3): get-or-create direct conversations,
// list-with-unread, and cursor-paginated history.

package conversation

import (
	"context"
	"time"

	"github.com/kiekchat/realtime-core/internal/apperr"
	"github.com/kiekchat/realtime-core/internal/store"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 100
)

// MediaResolver turns a stored content key into a URL a client can fetch,
// per SPEC_FULL.md C11. Message content that isn't a media reference is
// returned unchanged.
type MediaResolver interface {
	ResolveURL(key string) string
}

type Service interface {
	GetOrCreateDirect(ctx context.Context, userA, userB int64) (*store.Conversation, error)
	ListForUser(ctx context.Context, userID int64) ([]*store.ConversationSummary, error)
	Get(ctx context.Context, conversationID, requesterID int64) (*store.ConversationSummary, error)
	GetMessages(ctx context.Context, conversationID, requesterID int64, cursor *int64, limit int) (*MessagesPage, error)
}

type service struct {
	repo  store.Repository
	media MediaResolver
}

func NewService(repo store.Repository, media MediaResolver) Service {
	return &service{repo: repo, media: media}
}

// GetOrCreateDirect is idempotent: getOrCreateDirect(A,B) == getOrCreateDirect(B,A),
// returning the same conversation id on repeat calls (spec.md §4.3/§8).
func (s *service) GetOrCreateDirect(ctx context.Context, userA, userB int64) (*store.Conversation, error) {
	if userA == userB {
		return nil, apperr.Validationf("VALIDATION_ERROR", "cannot start a conversation with yourself")
	}

	existing, err := s.repo.FindDirectConversation(ctx, userA, userB)
	if err == nil {
		return existing, nil
	}
	if err != store.ErrNotFound {
		return nil, apperr.Internalf(err, "find direct conversation")
	}

	if _, err := s.repo.GetUserByID(ctx, userB); err != nil {
		if err == store.ErrNotFound {
			return nil, apperr.NotFoundf("NOT_FOUND", "user not found")
		}
		return nil, apperr.Internalf(err, "load target user")
	}

	conv, err := s.repo.CreateDirectConversation(ctx, userA, userB)
	if err != nil {
		return nil, apperr.Internalf(err, "create direct conversation")
	}
	return conv, nil
}

func (s *service) ListForUser(ctx context.Context, userID int64) ([]*store.ConversationSummary, error) {
	convs, err := s.repo.ListUserConversations(ctx, userID)
	if err != nil {
		return nil, apperr.Internalf(err, "list conversations")
	}

	summaries := make([]*store.ConversationSummary, 0, len(convs))
	for _, c := range convs {
		summary, err := s.buildSummary(ctx, c, userID)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

func (s *service) Get(ctx context.Context, conversationID, requesterID int64) (*store.ConversationSummary, error) {
	isParticipant, err := s.repo.IsParticipant(ctx, conversationID, requesterID)
	if err != nil {
		return nil, apperr.Internalf(err, "check participant")
	}
	if !isParticipant {
		return nil, apperr.Forbiddenf("FORBIDDEN", "not a participant")
	}

	conv, err := s.repo.GetConversation(ctx, conversationID)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, apperr.NotFoundf("NOT_FOUND", "conversation not found")
		}
		return nil, apperr.Internalf(err, "load conversation")
	}

	return s.buildSummary(ctx, conv, requesterID)
}

func (s *service) buildSummary(ctx context.Context, conv *store.Conversation, requesterID int64) (*store.ConversationSummary, error) {
	participants, err := s.repo.ListParticipants(ctx, conv.ID)
	if err != nil {
		return nil, apperr.Internalf(err, "list participants")
	}

	publicUsers := make([]*store.PublicUser, 0, len(participants))
	var self *store.Participant
	for _, p := range participants {
		if p.UserID == requesterID {
			self = p
		}
		user, err := s.repo.GetUserByID(ctx, p.UserID)
		if err != nil {
			continue
		}
		public := user.Public()
		if public.AvatarURL != nil && s.media != nil {
			resolved := s.media.ResolveURL(*public.AvatarURL)
			public.AvatarURL = &resolved
		}
		publicUsers = append(publicUsers, public)
	}

	lastMessage, err := s.repo.GetLastMessage(ctx, conv.ID)
	if err != nil && err != store.ErrNotFound {
		return nil, apperr.Internalf(err, "load last message")
	}
	if err == store.ErrNotFound {
		lastMessage = nil
	}

	var since *time.Time
	if self != nil {
		since = self.LastReadAt
	}
	unread, err := s.repo.CountUnread(ctx, conv.ID, requesterID, since)
	if err != nil {
		return nil, apperr.Internalf(err, "count unread")
	}

	return &store.ConversationSummary{
		Conversation: *conv,
		Participants: publicUsers,
		LastMessage:  lastMessage,
		UnreadCount:  unread,
	}, nil
}

// GetMessages implements spec.md §4.3's limit+1 cursor pagination.
func (s *service) GetMessages(ctx context.Context, conversationID, requesterID int64, cursor *int64, limit int) (*MessagesPage, error) {
	isParticipant, err := s.repo.IsParticipant(ctx, conversationID, requesterID)
	if err != nil {
		return nil, apperr.Internalf(err, "check participant")
	}
	if !isParticipant {
		return nil, apperr.Forbiddenf("FORBIDDEN", "not a participant")
	}

	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	rows, err := s.repo.GetMessagesPage(ctx, conversationID, cursor, limit+1)
	if err != nil {
		return nil, apperr.Internalf(err, "load messages")
	}

	hasMore := len(rows) > limit
	if hasMore {
		rows = rows[:limit]
	}

	// rows arrive newest-first; reverse to chronological order for the page.
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}

	views := make([]*MessageView, 0, len(rows))
	for _, m := range rows {
		views = append(views, s.toView(ctx, m))
	}

	var nextCursor *int64
	if hasMore && len(rows) > 0 {
		oldest := rows[0].ID
		nextCursor = &oldest
	}

	return &MessagesPage{Messages: views, NextCursor: nextCursor, HasMore: hasMore}, nil
}

func (s *service) toView(ctx context.Context, m *store.Message) *MessageView {
	content := m.Content
	if s.media != nil && (m.ContentType == store.ContentImage || m.ContentType == store.ContentFile ||
		m.ContentType == store.ContentAudio || m.ContentType == store.ContentVideo) {
		content = s.media.ResolveURL(m.Content)
	}

	view := &MessageView{
		ID:               m.ID,
		ConversationID:   m.ConversationID,
		SenderID:         m.SenderID,
		Content:          content,
		ContentType:      string(m.ContentType),
		ReplyToMessageID: m.ReplyToID,
		CreatedAt:        m.CreatedAt.Format(time.RFC3339),
	}
	if m.EditedAt != nil {
		edited := m.EditedAt.Format(time.RFC3339)
		view.EditedAt = &edited
	}
	if m.DeletedAt != nil {
		deleted := m.DeletedAt.Format(time.RFC3339)
		view.DeletedAt = &deleted
	}
	if m.ReplyToID != nil {
		if parent, err := s.repo.GetMessage(ctx, *m.ReplyToID); err == nil {
			view.ReplyTo = &ReplyPreview{ID: parent.ID, SenderID: parent.SenderID, Content: parent.Content}
		}
	}
	return view
}
