package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiekchat/realtime-core/internal/apperr"
	"github.com/kiekchat/realtime-core/internal/store"
)

func newTestService(t *testing.T) (Service, store.Repository) {
	t.Helper()
	repo := store.NewMemoryRepository()
	tokens := NewTokenService(repo, "secret", time.Hour, 24*time.Hour)
	return NewService(repo, tokens, nil, 4), repo // bcrypt cost 4: fast in tests
}

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	resp, err := svc.Register(ctx, RegisterRequest{
		Username:    "alice01",
		Email:       "Alice@Example.com",
		Password:    "hunter22",
		DisplayName: "Alice",
	})
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", resp.User.Email, "email is normalized to lowercase")
	assert.NotEmpty(t, resp.Tokens.AccessToken)
	assert.NotEmpty(t, resp.Tokens.RefreshToken)

	login, err := svc.Login(ctx, LoginRequest{Email: "ALICE@example.com", Password: "hunter22"})
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, login.User.ID)
}

func TestRegisterRejectsDuplicateUsername(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	_, err := svc.Register(ctx, RegisterRequest{Username: "bob", Email: "bob@example.com", Password: "password1", DisplayName: "Bob"})
	require.NoError(t, err)

	_, err = svc.Register(ctx, RegisterRequest{Username: "bob", Email: "other@example.com", Password: "password1", DisplayName: "Bob2"})
	require.Error(t, err)
	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.Validation, appErr.Kind)
}

func TestLoginUnknownEmailAndWrongPasswordShareMessage(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	_, err := svc.Register(ctx, RegisterRequest{Username: "carol", Email: "carol@example.com", Password: "correcthorse", DisplayName: "Carol"})
	require.NoError(t, err)

	_, unknownErr := svc.Login(ctx, LoginRequest{Email: "nobody@example.com", Password: "whatever"})
	_, wrongPassErr := svc.Login(ctx, LoginRequest{Email: "carol@example.com", Password: "wrongpassword"})

	require.Error(t, unknownErr)
	require.Error(t, wrongPassErr)

	unknownAppErr, _ := apperr.As(unknownErr)
	wrongPassAppErr, _ := apperr.As(wrongPassErr)
	assert.Equal(t, unknownAppErr.Message, wrongPassAppErr.Message, "login enumeration defense requires identical messages")
	assert.Equal(t, apperr.Authentication, unknownAppErr.Kind)
}

func TestUpdateProfile(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	resp, err := svc.Register(ctx, RegisterRequest{Username: "dave", Email: "dave@example.com", Password: "password1", DisplayName: "Dave"})
	require.NoError(t, err)

	newName := "Dave Updated"
	updated, err := svc.UpdateProfile(ctx, resp.User.ID, UpdateProfileRequest{DisplayName: &newName})
	require.NoError(t, err)
	assert.Equal(t, newName, updated.DisplayName)
}

func TestSearchUsersExcludesCaller(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	alice, err := svc.Register(ctx, RegisterRequest{Username: "alice", Email: "alice@example.com", Password: "password1", DisplayName: "Alice"})
	require.NoError(t, err)
	_, err = svc.Register(ctx, RegisterRequest{Username: "alicia", Email: "alicia@example.com", Password: "password1", DisplayName: "Alicia"})
	require.NoError(t, err)

	results, err := svc.SearchUsers(ctx, "ali", alice.User.ID)
	require.NoError(t, err)
	for _, u := range results {
		assert.NotEqual(t, alice.User.ID, u.ID)
	}
	assert.Len(t, results, 1)
}
