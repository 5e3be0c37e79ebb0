package conversation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiekchat/realtime-core/internal/apperr"
	"github.com/kiekchat/realtime-core/internal/store"
)

func seedUser(t *testing.T, repo store.Repository, username string) *store.User {
	t.Helper()
	u := &store.User{Username: username, Email: username + "@example.com", DisplayName: username, CreatedAt: time.Now()}
	require.NoError(t, repo.CreateUser(context.Background(), u))
	return u
}

func TestGetOrCreateDirectIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := store.NewMemoryRepository()
	svc := NewService(repo, nil)

	alice := seedUser(t, repo, "alice")
	bob := seedUser(t, repo, "bob")

	conv1, err := svc.GetOrCreateDirect(ctx, alice.ID, bob.ID)
	require.NoError(t, err)

	conv2, err := svc.GetOrCreateDirect(ctx, bob.ID, alice.ID)
	require.NoError(t, err)

	assert.Equal(t, conv1.ID, conv2.ID)
}

func TestGetOrCreateDirectRejectsSelf(t *testing.T) {
	ctx := context.Background()
	repo := store.NewMemoryRepository()
	svc := NewService(repo, nil)
	alice := seedUser(t, repo, "alice")

	_, err := svc.GetOrCreateDirect(ctx, alice.ID, alice.ID)
	require.Error(t, err)
	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.Validation, appErr.Kind)
}

func TestGetOrCreateDirectRejectsUnknownUser(t *testing.T) {
	ctx := context.Background()
	repo := store.NewMemoryRepository()
	svc := NewService(repo, nil)
	alice := seedUser(t, repo, "alice")

	_, err := svc.GetOrCreateDirect(ctx, alice.ID, 99999)
	require.Error(t, err)
	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.NotFound, appErr.Kind)
}

func TestGetForbidsNonParticipant(t *testing.T) {
	ctx := context.Background()
	repo := store.NewMemoryRepository()
	svc := NewService(repo, nil)

	alice := seedUser(t, repo, "alice")
	bob := seedUser(t, repo, "bob")
	mallory := seedUser(t, repo, "mallory")

	conv, err := svc.GetOrCreateDirect(ctx, alice.ID, bob.ID)
	require.NoError(t, err)

	_, err = svc.Get(ctx, conv.ID, mallory.ID)
	require.Error(t, err)
	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.Forbidden, appErr.Kind)
}

func TestGetMessagesPaginatesWithCursor(t *testing.T) {
	ctx := context.Background()
	repo := store.NewMemoryRepository()
	svc := NewService(repo, nil)

	alice := seedUser(t, repo, "alice")
	bob := seedUser(t, repo, "bob")
	conv, err := svc.GetOrCreateDirect(ctx, alice.ID, bob.ID)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, repo.CreateMessage(ctx, &store.Message{
			ConversationID: conv.ID,
			SenderID:       alice.ID,
			Content:        "hello",
			ContentType:    store.ContentText,
			CreatedAt:      time.Now(),
		}))
	}

	page, err := svc.GetMessages(ctx, conv.ID, alice.ID, nil, 2)
	require.NoError(t, err)
	assert.Len(t, page.Messages, 2)
	assert.True(t, page.HasMore)
	require.NotNil(t, page.NextCursor)

	// Messages within a page come back oldest-first.
	assert.True(t, page.Messages[0].ID < page.Messages[1].ID)

	next, err := svc.GetMessages(ctx, conv.ID, alice.ID, page.NextCursor, 2)
	require.NoError(t, err)
	assert.Len(t, next.Messages, 2)
	assert.NotEqual(t, page.Messages[0].ID, next.Messages[0].ID)
}

func TestGetMessagesForbidsNonParticipant(t *testing.T) {
	ctx := context.Background()
	repo := store.NewMemoryRepository()
	svc := NewService(repo, nil)

	alice := seedUser(t, repo, "alice")
	bob := seedUser(t, repo, "bob")
	mallory := seedUser(t, repo, "mallory")
	conv, err := svc.GetOrCreateDirect(ctx, alice.ID, bob.ID)
	require.NoError(t, err)

	_, err = svc.GetMessages(ctx, conv.ID, mallory.ID, nil, 10)
	require.Error(t, err)
	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.Forbidden, appErr.Kind)
}
