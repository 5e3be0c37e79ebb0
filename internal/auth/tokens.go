// internal/auth/tokens.go
// Token service (spec.md C1): issue/verifyAccess/rotate/revoke.

package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/kiekchat/realtime-core/internal/apperr"
	"github.com/kiekchat/realtime-core/internal/common/utils"
	"github.com/kiekchat/realtime-core/internal/store"
)

const (
	accessTokenType = "access"

	// refreshTokenBytes gives >=128 bits of entropy once base64url-encoded,
	// per spec.md §4.1.
	refreshTokenBytes = 24
)

// AccessClaims is what verifyAccess hands back to callers.
type AccessClaims struct {
	UserID   int64
	Username string
}

// TokenService is the Token service of spec.md C1.
type TokenService interface {
	Issue(ctx context.Context, userID int64, username string) (accessToken, refreshToken string, err error)
	VerifyAccess(token string) (*AccessClaims, error)
	Rotate(ctx context.Context, refreshToken string) (accessToken, newRefreshToken string, err error)
	Revoke(ctx context.Context, refreshToken string) error
}

type tokenService struct {
	repo               store.Repository
	secret             string
	accessTokenExpiry  time.Duration
	refreshTokenExpiry time.Duration
}

func NewTokenService(repo store.Repository, secret string, accessExpiry, refreshExpiry time.Duration) TokenService {
	return &tokenService{
		repo:               repo,
		secret:             secret,
		accessTokenExpiry:  accessExpiry,
		refreshTokenExpiry: refreshExpiry,
	}
}

func (s *tokenService) Issue(ctx context.Context, userID int64, username string) (string, string, error) {
	access, err := s.signAccessToken(userID, username)
	if err != nil {
		return "", "", apperr.Internalf(err, "sign access token")
	}

	refresh, err := generateOpaqueToken()
	if err != nil {
		return "", "", apperr.Internalf(err, "generate refresh token")
	}

	now := time.Now()
	if err := s.repo.CreateRefreshToken(ctx, &store.RefreshToken{
		Token:     refresh,
		UserID:    userID,
		ExpiresAt: now.Add(s.refreshTokenExpiry),
		CreatedAt: now,
	}); err != nil {
		return "", "", apperr.Internalf(err, "persist refresh token")
	}

	return access, refresh, nil
}

func (s *tokenService) signAccessToken(userID int64, username string) (string, error) {
	now := time.Now()
	return utils.GenerateJWT(&utils.JWTClaims{
		UserID:    userID,
		Username:  username,
		Type:      accessTokenType,
		IssuedAt:  now.Unix(),
		NotBefore: now.Unix(),
		ExpiresAt: now.Add(s.accessTokenExpiry).Unix(),
		Issuer:    "kiekchat-realtime-core",
		Subject:   username,
	}, s.secret)
}

// VerifyAccess fails with INVALID_TOKEN on signature or expiry, per spec.md §4.1.
func (s *tokenService) VerifyAccess(tokenString string) (*AccessClaims, error) {
	claims, err := utils.ValidateJWT(tokenString, s.secret)
	if err != nil {
		return nil, apperr.Authf("INVALID_TOKEN", "invalid or expired token")
	}
	if claims.Type != accessTokenType {
		return nil, apperr.Authf("INVALID_TOKEN", "not an access token")
	}

	return &AccessClaims{UserID: claims.UserID, Username: claims.Username}, nil
}

// Rotate fails with INVALID_REFRESH if unknown or expired; on expiry
// discovery the stored row is deleted in the same step, and any replay of an
// already-rotated token fails the same way because the row no longer exists.
func (s *tokenService) Rotate(ctx context.Context, refreshToken string) (string, string, error) {
	stored, err := s.repo.GetRefreshToken(ctx, refreshToken)
	if err != nil {
		if err == store.ErrNotFound {
			return "", "", apperr.Authf("INVALID_REFRESH", "invalid refresh token")
		}
		return "", "", apperr.Internalf(err, "load refresh token")
	}

	if time.Now().After(stored.ExpiresAt) {
		_ = s.repo.DeleteRefreshToken(ctx, refreshToken)
		return "", "", apperr.Authf("INVALID_REFRESH", "refresh token expired")
	}

	user, err := s.repo.GetUserByID(ctx, stored.UserID)
	if err != nil {
		return "", "", apperr.Authf("INVALID_REFRESH", "invalid refresh token")
	}

	// Single-use: delete the presented token before issuing its replacement.
	if err := s.repo.DeleteRefreshToken(ctx, refreshToken); err != nil {
		return "", "", apperr.Internalf(err, "delete rotated refresh token")
	}

	return s.Issue(ctx, user.ID, user.Username)
}

func (s *tokenService) Revoke(ctx context.Context, refreshToken string) error {
	return s.repo.DeleteRefreshToken(ctx, refreshToken)
}

func generateOpaqueToken() (string, error) {
	b := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
