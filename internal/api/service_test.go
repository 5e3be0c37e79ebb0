package api

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiekchat/realtime-core/internal/apperr"
	"github.com/kiekchat/realtime-core/internal/store"
)

type recordingNotifier struct {
	edited    []int64
	deleted   []int64
	forwarded []*store.Message
}

func (n *recordingNotifier) NotifyEdited(conversationID, messageID int64, newContent string, editedAt time.Time, participantIDs []int64) {
	n.edited = append(n.edited, messageID)
}
func (n *recordingNotifier) NotifyDeleted(conversationID, messageID int64, participantIDs []int64) {
	n.deleted = append(n.deleted, messageID)
}
func (n *recordingNotifier) NotifyForwarded(msg *store.Message, senderName string, participantIDs []int64) {
	n.forwarded = append(n.forwarded, msg)
}

func seedUser(t *testing.T, repo store.Repository, username string) *store.User {
	t.Helper()
	u := &store.User{Username: username, Email: username + "@example.com", DisplayName: username, CreatedAt: time.Now()}
	require.NoError(t, repo.CreateUser(context.Background(), u))
	return u
}

func seedConversation(t *testing.T, repo store.Repository, a, b int64) *store.Conversation {
	t.Helper()
	conv, err := repo.CreateDirectConversation(context.Background(), a, b)
	require.NoError(t, err)
	return conv
}

func TestEditMessageWithinWindow(t *testing.T) {
	ctx := context.Background()
	repo := store.NewMemoryRepository()
	notifier := &recordingNotifier{}
	svc := NewService(repo, notifier)

	alice := seedUser(t, repo, "alice")
	bob := seedUser(t, repo, "bob")
	conv := seedConversation(t, repo, alice.ID, bob.ID)

	msg := &store.Message{ConversationID: conv.ID, SenderID: alice.ID, Content: "hi", ContentType: store.ContentText, CreatedAt: time.Now()}
	require.NoError(t, repo.CreateMessage(ctx, msg))

	updated, err := svc.EditMessage(ctx, alice.ID, msg.ID, "hi there")
	require.NoError(t, err)
	assert.Equal(t, "hi there", updated.Content)
	assert.Len(t, notifier.edited, 1)
}

func TestEditMessageRejectsNonSender(t *testing.T) {
	ctx := context.Background()
	repo := store.NewMemoryRepository()
	svc := NewService(repo, nil)

	alice := seedUser(t, repo, "alice")
	bob := seedUser(t, repo, "bob")
	conv := seedConversation(t, repo, alice.ID, bob.ID)

	msg := &store.Message{ConversationID: conv.ID, SenderID: alice.ID, Content: "hi", ContentType: store.ContentText, CreatedAt: time.Now()}
	require.NoError(t, repo.CreateMessage(ctx, msg))

	_, err := svc.EditMessage(ctx, bob.ID, msg.ID, "hacked")
	require.Error(t, err)
	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.Forbidden, appErr.Kind)
}

func TestEditMessageRejectsAfterWindowExpires(t *testing.T) {
	ctx := context.Background()
	repo := store.NewMemoryRepository()
	svc := NewService(repo, nil)

	alice := seedUser(t, repo, "alice")
	bob := seedUser(t, repo, "bob")
	conv := seedConversation(t, repo, alice.ID, bob.ID)

	msg := &store.Message{ConversationID: conv.ID, SenderID: alice.ID, Content: "hi", ContentType: store.ContentText, CreatedAt: time.Now().Add(-20 * time.Minute)}
	require.NoError(t, repo.CreateMessage(ctx, msg))

	_, err := svc.EditMessage(ctx, alice.ID, msg.ID, "too late")
	require.Error(t, err)
	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.Validation, appErr.Kind)
}

func TestEditMessageRejectsNonTextContent(t *testing.T) {
	ctx := context.Background()
	repo := store.NewMemoryRepository()
	svc := NewService(repo, nil)

	alice := seedUser(t, repo, "alice")
	bob := seedUser(t, repo, "bob")
	conv := seedConversation(t, repo, alice.ID, bob.ID)

	msg := &store.Message{ConversationID: conv.ID, SenderID: alice.ID, Content: "key", ContentType: store.ContentImage, CreatedAt: time.Now()}
	require.NoError(t, repo.CreateMessage(ctx, msg))

	_, err := svc.EditMessage(ctx, alice.ID, msg.ID, "swap")
	require.Error(t, err)
}

func TestDeleteMessageWithinWindowPlaceholders(t *testing.T) {
	ctx := context.Background()
	repo := store.NewMemoryRepository()
	notifier := &recordingNotifier{}
	svc := NewService(repo, notifier)

	alice := seedUser(t, repo, "alice")
	bob := seedUser(t, repo, "bob")
	conv := seedConversation(t, repo, alice.ID, bob.ID)

	msg := &store.Message{ConversationID: conv.ID, SenderID: alice.ID, Content: "secret", ContentType: store.ContentText, CreatedAt: time.Now()}
	require.NoError(t, repo.CreateMessage(ctx, msg))

	require.NoError(t, svc.DeleteMessage(ctx, alice.ID, msg.ID))

	stored, err := repo.GetMessage(ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, store.DeletedMessagePlaceholder, stored.Content)
	assert.True(t, stored.IsDeleted())
	assert.Len(t, notifier.deleted, 1)
}

func TestDeleteMessageRejectsAfterWindowExpires(t *testing.T) {
	ctx := context.Background()
	repo := store.NewMemoryRepository()
	svc := NewService(repo, nil)

	alice := seedUser(t, repo, "alice")
	bob := seedUser(t, repo, "bob")
	conv := seedConversation(t, repo, alice.ID, bob.ID)

	msg := &store.Message{ConversationID: conv.ID, SenderID: alice.ID, Content: "secret", ContentType: store.ContentText, CreatedAt: time.Now().Add(-2 * time.Hour)}
	require.NoError(t, repo.CreateMessage(ctx, msg))

	err := svc.DeleteMessage(ctx, alice.ID, msg.ID)
	require.Error(t, err)
	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.Validation, appErr.Kind)
}

func TestForwardRequiresParticipantInTarget(t *testing.T) {
	ctx := context.Background()
	repo := store.NewMemoryRepository()
	svc := NewService(repo, nil)

	alice := seedUser(t, repo, "alice")
	bob := seedUser(t, repo, "bob")
	mallory := seedUser(t, repo, "mallory")
	conv := seedConversation(t, repo, alice.ID, bob.ID)
	otherConv := seedConversation(t, repo, bob.ID, mallory.ID)

	msg := &store.Message{ConversationID: conv.ID, SenderID: alice.ID, Content: "forward me", ContentType: store.ContentText, CreatedAt: time.Now()}
	require.NoError(t, repo.CreateMessage(ctx, msg))

	_, err := svc.Forward(ctx, alice.ID, msg.ID, []int64{otherConv.ID})
	require.Error(t, err)
	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.Forbidden, appErr.Kind)
}

func TestForwardDuplicatesContent(t *testing.T) {
	ctx := context.Background()
	repo := store.NewMemoryRepository()
	notifier := &recordingNotifier{}
	svc := NewService(repo, notifier)

	alice := seedUser(t, repo, "alice")
	bob := seedUser(t, repo, "bob")
	mallory := seedUser(t, repo, "mallory")
	conv := seedConversation(t, repo, alice.ID, bob.ID)
	target := seedConversation(t, repo, alice.ID, mallory.ID)

	msg := &store.Message{ConversationID: conv.ID, SenderID: alice.ID, Content: "forward me", ContentType: store.ContentText, CreatedAt: time.Now()}
	require.NoError(t, repo.CreateMessage(ctx, msg))

	forwarded, err := svc.Forward(ctx, alice.ID, msg.ID, []int64{target.ID})
	require.NoError(t, err)
	require.Len(t, forwarded, 1)
	assert.Equal(t, "forward me", forwarded[0].Content)
	assert.Equal(t, target.ID, forwarded[0].ConversationID)
	assert.Len(t, notifier.forwarded, 1)
}

func TestSearchRequiresQuery(t *testing.T) {
	ctx := context.Background()
	repo := store.NewMemoryRepository()
	svc := NewService(repo, nil)
	alice := seedUser(t, repo, "alice")

	_, err := svc.Search(ctx, alice.ID, "   ", nil)
	require.Error(t, err)
}

func TestSearchExcludesDeletedMessages(t *testing.T) {
	ctx := context.Background()
	repo := store.NewMemoryRepository()
	svc := NewService(repo, nil)

	alice := seedUser(t, repo, "alice")
	bob := seedUser(t, repo, "bob")
	conv := seedConversation(t, repo, alice.ID, bob.ID)

	keep := &store.Message{ConversationID: conv.ID, SenderID: alice.ID, Content: "findable secret", ContentType: store.ContentText, CreatedAt: time.Now()}
	require.NoError(t, repo.CreateMessage(ctx, keep))
	gone := &store.Message{ConversationID: conv.ID, SenderID: alice.ID, Content: "findable secret too", ContentType: store.ContentText, CreatedAt: time.Now()}
	require.NoError(t, repo.CreateMessage(ctx, gone))
	require.NoError(t, repo.DeleteMessage(ctx, gone.ID, time.Now()))

	results, err := svc.Search(ctx, alice.ID, "findable", nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, keep.ID, results[0].ID)
}

func TestUnreadSummary(t *testing.T) {
	ctx := context.Background()
	repo := store.NewMemoryRepository()
	svc := NewService(repo, nil)

	alice := seedUser(t, repo, "alice")
	bob := seedUser(t, repo, "bob")
	conv := seedConversation(t, repo, alice.ID, bob.ID)

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.CreateMessage(ctx, &store.Message{
			ConversationID: conv.ID, SenderID: bob.ID, Content: "hey", ContentType: store.ContentText, CreatedAt: time.Now(),
		}))
	}

	summary, err := svc.UnreadSummary(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, summary.Conversations, 1)
	assert.Equal(t, 3, summary.Conversations[0].Count)
	assert.Equal(t, 3, summary.Total)
}
