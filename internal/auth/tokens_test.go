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

func newTestTokenService() TokenService {
	repo := store.NewMemoryRepository()
	return NewTokenService(repo, "test-secret", time.Hour, 24*time.Hour)
}

func TestTokenServiceIssueAndVerify(t *testing.T) {
	ctx := context.Background()
	svc := newTestTokenService()

	access, refresh, err := svc.Issue(ctx, 42, "alice")
	require.NoError(t, err)
	assert.NotEmpty(t, access)
	assert.NotEmpty(t, refresh)

	claims, err := svc.VerifyAccess(access)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
	assert.Equal(t, "alice", claims.Username)
}

func TestVerifyAccessRejectsTamperedToken(t *testing.T) {
	svc := newTestTokenService()
	access, _, err := svc.Issue(context.Background(), 1, "bob")
	require.NoError(t, err)

	_, err = svc.VerifyAccess(access + "garbage")
	require.Error(t, err)
	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.Authentication, appErr.Kind)
	assert.Equal(t, "INVALID_TOKEN", appErr.Code)
}

func TestVerifyAccessRejectsWrongSecret(t *testing.T) {
	ctx := context.Background()
	repo := store.NewMemoryRepository()
	issuer := NewTokenService(repo, "secret-a", time.Hour, 24*time.Hour)
	verifier := NewTokenService(repo, "secret-b", time.Hour, 24*time.Hour)

	access, _, err := issuer.Issue(ctx, 1, "carol")
	require.NoError(t, err)

	_, err = verifier.VerifyAccess(access)
	require.Error(t, err)
}

func TestRotateIsSingleUse(t *testing.T) {
	ctx := context.Background()
	repo := store.NewMemoryRepository()
	svc := NewTokenService(repo, "test-secret", time.Hour, 24*time.Hour)

	// Rotate reloads the user to mint the new access token, so dave must exist.
	dave := &store.User{Username: "dave", Email: "dave@example.com", DisplayName: "Dave", CreatedAt: time.Now()}
	require.NoError(t, repo.CreateUser(ctx, dave))

	_, refresh, err := svc.Issue(ctx, dave.ID, dave.Username)
	require.NoError(t, err)

	_, newRefresh, err := svc.Rotate(ctx, refresh)
	require.NoError(t, err)
	assert.NotEqual(t, refresh, newRefresh)

	// Replaying the original (now-deleted) refresh token must fail.
	_, _, err = svc.Rotate(ctx, refresh)
	require.Error(t, err)
	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, "INVALID_REFRESH", appErr.Code)
}

func TestRotateRejectsExpiredToken(t *testing.T) {
	ctx := context.Background()
	repo := store.NewMemoryRepository()
	svc := NewTokenService(repo, "secret", time.Hour, -time.Minute) // already expired

	_, refresh, err := svc.Issue(ctx, 9, "erin")
	require.NoError(t, err)

	_, _, err = svc.Rotate(ctx, refresh)
	require.Error(t, err)
	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, "INVALID_REFRESH", appErr.Code)

	// The expired row must have been cleaned up as a side effect of discovery.
	_, err = repo.GetRefreshToken(ctx, refresh)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRevoke(t *testing.T) {
	ctx := context.Background()
	repo := store.NewMemoryRepository()
	svc := NewTokenService(repo, "secret", time.Hour, 24*time.Hour)

	_, refresh, err := svc.Issue(ctx, 3, "frank")
	require.NoError(t, err)

	require.NoError(t, svc.Revoke(ctx, refresh))

	_, _, err = svc.Rotate(ctx, refresh)
	require.Error(t, err)
}
