// internal/auth/service.go
// Registration, credential login, and profile operations layered on top of
// the Token service (C1). Grounded on the teacher's internal/auth/service.go
// Signin/Signup flow, stripped of the OTP/2FA/OAuth machinery the original
// dating app needed and this spec does not.

package auth

import (
	"context"
	"log"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/kiekchat/realtime-core/internal/apperr"
	"github.com/kiekchat/realtime-core/internal/store"
)

// Service is the auth + profile surface backing spec.md §6.1's
// /api/auth/* and /api/users/* routes.
type Service interface {
	Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error)
	Login(ctx context.Context, req LoginRequest) (*AuthResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*TokenPair, error)
	Logout(ctx context.Context, refreshToken string) error
	VerifyAccessToken(token string) (*AccessClaims, error)

	GetByID(ctx context.Context, userID int64) (*store.User, error)
	UpdateProfile(ctx context.Context, userID int64, req UpdateProfileRequest) (*store.User, error)
	SearchUsers(ctx context.Context, query string, excludeUserID int64) ([]*store.PublicUser, error)
}

// LoginThrottle is the narrow interface C13 needs from Redis; kept small so
// the service can run with throttling disabled (nil) in tests.
type LoginThrottle interface {
	RecordFailure(ctx context.Context, identifier string) (retryAfter time.Duration)
	ClearFailures(ctx context.Context, identifier string)
}

type service struct {
	repo       store.Repository
	tokens     TokenService
	throttle   LoginThrottle
	bcryptCost int
}

func NewService(repo store.Repository, tokens TokenService, throttle LoginThrottle, bcryptCost int) Service {
	return &service{repo: repo, tokens: tokens, throttle: throttle, bcryptCost: bcryptCost}
}

func (s *service) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	if taken, err := s.repo.UsernameTaken(ctx, req.Username); err != nil {
		return nil, apperr.Internalf(err, "check username")
	} else if taken {
		return nil, apperr.Validationf("VALIDATION_ERROR", "username is already taken")
	}
	if taken, err := s.repo.EmailTaken(ctx, req.Email); err != nil {
		return nil, apperr.Internalf(err, "check email")
	} else if taken {
		return nil, apperr.Validationf("VALIDATION_ERROR", "email is already registered")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return nil, apperr.Internalf(err, "hash password")
	}

	now := time.Now()
	user := &store.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: string(hash),
		DisplayName:  req.DisplayName,
		IsOnline:     false,
		LastSeen:     now,
		CreatedAt:    now,
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, apperr.Internalf(err, "create user")
	}

	access, refresh, err := s.tokens.Issue(ctx, user.ID, user.Username)
	if err != nil {
		return nil, err
	}

	return &AuthResponse{User: user.WithEmail(), Tokens: TokenPair{AccessToken: access, RefreshToken: refresh}}, nil
}

// Login shares the same failure message for unknown email and wrong
// password, per spec.md §7's login-enumeration defense.
func (s *service) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	const badCredentials = "Invalid email or password"

	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if err == store.ErrNotFound {
			s.recordFailedAttempt(ctx, email)
			return nil, apperr.Authf("AUTHENTICATION_ERROR", badCredentials)
		}
		return nil, apperr.Internalf(err, "load user by email")
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		s.recordFailedAttempt(ctx, email)
		return nil, apperr.Authf("AUTHENTICATION_ERROR", badCredentials)
	}

	s.clearFailedAttempts(ctx, email)

	access, refresh, err := s.tokens.Issue(ctx, user.ID, user.Username)
	if err != nil {
		return nil, err
	}

	return &AuthResponse{User: user.WithEmail(), Tokens: TokenPair{AccessToken: access, RefreshToken: refresh}}, nil
}

func (s *service) recordFailedAttempt(ctx context.Context, identifier string) {
	if s.throttle == nil {
		return
	}
	if retryAfter := s.throttle.RecordFailure(ctx, identifier); retryAfter > 0 {
		log.Printf("auth: repeated failed login for %s, retry after %s", identifier, retryAfter)
	}
}

func (s *service) clearFailedAttempts(ctx context.Context, identifier string) {
	if s.throttle == nil {
		return
	}
	s.throttle.ClearFailures(ctx, identifier)
}

func (s *service) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	access, refresh, err := s.tokens.Rotate(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (s *service) Logout(ctx context.Context, refreshToken string) error {
	return s.tokens.Revoke(ctx, refreshToken)
}

func (s *service) VerifyAccessToken(token string) (*AccessClaims, error) {
	return s.tokens.VerifyAccess(token)
}

func (s *service) GetByID(ctx context.Context, userID int64) (*store.User, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, apperr.NotFoundf("NOT_FOUND", "user not found")
		}
		return nil, apperr.Internalf(err, "load user")
	}
	return user, nil
}

func (s *service) UpdateProfile(ctx context.Context, userID int64, req UpdateProfileRequest) (*store.User, error) {
	user, err := s.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if req.DisplayName != nil {
		user.DisplayName = *req.DisplayName
	}
	if req.Bio != nil {
		user.Bio = req.Bio
	}
	if req.AvatarURL != nil {
		user.AvatarURL = req.AvatarURL
	}

	if err := s.repo.UpdateUser(ctx, user); err != nil {
		return nil, apperr.Internalf(err, "update user")
	}
	return user, nil
}

// SearchUsers caps results at 20 and excludes the caller, per spec.md §6.1.
func (s *service) SearchUsers(ctx context.Context, query string, excludeUserID int64) ([]*store.PublicUser, error) {
	users, err := s.repo.SearchUsers(ctx, query, excludeUserID, 20)
	if err != nil {
		return nil, apperr.Internalf(err, "search users")
	}
	public := make([]*store.PublicUser, 0, len(users))
	for _, u := range users {
		public = append(public, u.Public())
	}
	return public, nil
}
