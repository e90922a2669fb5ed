package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"proctor-integrity/backend/internal/audit"
	"proctor-integrity/backend/internal/security"
	sessiondomain "proctor-integrity/backend/internal/session/domain"
	"proctor-integrity/backend/internal/telemetry"
	userdomain "proctor-integrity/backend/internal/user/domain"
)

// DefaultRefreshTokensPerUser is how many refresh tokens survive pruning after each issuance.
const DefaultRefreshTokensPerUser = 5

// Sentinel errors for auth service; the HTTP layer maps them to 401 error codes.
var (
	ErrInvalidIdentity     = errors.New("identity provider id and login are required")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrRefreshTokenExpired = errors.New("refresh token expired")
	ErrRefreshTokenReuse   = errors.New("refresh token reuse detected; all sessions revoked")
)

// ExternalIdentity is the account a user proved ownership of with the identity provider.
type ExternalIdentity struct {
	ProviderID string
	Login      string
}

// AuthResult holds the token pair issued by Login or Refresh.
type AuthResult struct {
	AccessToken      string
	RefreshToken     string
	ExpiresAt        time.Time
	RefreshExpiresAt time.Time
	UserID           string
}

// UserRepo is the minimal user repository needed by the auth service.
type UserRepo interface {
	Upsert(ctx context.Context, u *userdomain.User) (*userdomain.User, error)
}

// RefreshTokenRepo is the minimal refresh token repository needed by the auth service.
type RefreshTokenRepo interface {
	Create(ctx context.Context, t *sessiondomain.RefreshToken) error
	GetByHash(ctx context.Context, tokenHash string) (*sessiondomain.RefreshToken, error)
	Revoke(ctx context.Context, id string, at time.Time) (bool, error)
	Delete(ctx context.Context, id string) error
	DeleteByHash(ctx context.Context, tokenHash string) error
	DeleteAllForUser(ctx context.Context, userID string) (int64, error)
	PruneForUser(ctx context.Context, userID string, keep int, now time.Time) error
}

// AuthService implements login, refresh token rotation with reuse detection, and logout.
type AuthService struct {
	userRepo    UserRepo
	tokenRepo   RefreshTokenRepo
	tokens      *security.TokenProvider
	refreshTTL  time.Duration
	keepPerUser int
	auditLogger audit.AuditLogger
	emitter     telemetry.EventEmitter
	now         func() time.Time
}

// NewAuthService returns an AuthService with the given dependencies.
// keepPerUser <= 0 uses DefaultRefreshTokensPerUser. auditLogger and emitter may be nil.
func NewAuthService(
	userRepo UserRepo,
	tokenRepo RefreshTokenRepo,
	tokens *security.TokenProvider,
	refreshTTL time.Duration,
	keepPerUser int,
	auditLogger audit.AuditLogger,
	emitter telemetry.EventEmitter,
) *AuthService {
	if keepPerUser <= 0 {
		keepPerUser = DefaultRefreshTokensPerUser
	}
	return &AuthService{
		userRepo:    userRepo,
		tokenRepo:   tokenRepo,
		tokens:      tokens,
		refreshTTL:  refreshTTL,
		keepPerUser: keepPerUser,
		auditLogger: auditLogger,
		emitter:     emitter,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Login upserts the user for an identity the provider vouched for and issues a token pair.
// A new user gets the student role; an existing user keeps theirs.
func (s *AuthService) Login(ctx context.Context, ident ExternalIdentity) (*AuthResult, error) {
	ident.ProviderID = strings.TrimSpace(ident.ProviderID)
	ident.Login = strings.TrimSpace(ident.Login)
	if ident.ProviderID == "" || ident.Login == "" {
		return nil, ErrInvalidIdentity
	}
	now := s.now()
	user, err := s.userRepo.Upsert(ctx, &userdomain.User{
		ID:         uuid.New().String(),
		ProviderID: ident.ProviderID,
		Login:      ident.Login,
		Role:       userdomain.RoleStudent,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
	if err != nil {
		return nil, fmt.Errorf("upsert user: %w", err)
	}
	res, err := s.issuePair(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	telemetry.EmitAsync(s.emitter, ctx, &telemetry.Event{UserID: user.ID, EventType: telemetry.EventLogin, Source: "auth"})
	return res, nil
}

// Refresh rotates a refresh token: the presented token is revoked and a new pair is issued.
// Presenting a revoked token deletes every refresh token of its owner and returns ErrRefreshTokenReuse.
// An expired token is deleted and ErrRefreshTokenExpired is returned.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*AuthResult, error) {
	if refreshToken == "" {
		return nil, ErrInvalidRefreshToken
	}
	row, err := s.tokenRepo.GetByHash(ctx, security.HashRefreshToken(refreshToken))
	if err != nil {
		return nil, err
	}
	if row == nil || !security.RefreshTokenHashEqual(refreshToken, row.TokenHash) {
		return nil, ErrInvalidRefreshToken
	}
	if row.Revoked() {
		return nil, s.revokeAll(ctx, row.UserID)
	}
	now := s.now()
	if row.Expired(now) {
		if err := s.tokenRepo.Delete(ctx, row.ID); err != nil {
			log.Printf("auth: delete expired refresh token: %v", err)
		}
		return nil, ErrRefreshTokenExpired
	}
	won, err := s.tokenRepo.Revoke(ctx, row.ID, now)
	if err != nil {
		return nil, err
	}
	if !won {
		// Another request rotated this token first.
		return nil, s.revokeAll(ctx, row.UserID)
	}
	return s.issuePair(ctx, row.UserID)
}

// Logout deletes the presented refresh token. It always succeeds; unknown tokens are ignored.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	hash := security.HashRefreshToken(refreshToken)
	row, err := s.tokenRepo.GetByHash(ctx, hash)
	if err != nil {
		log.Printf("auth: logout lookup: %v", err)
		return nil
	}
	if row == nil {
		return nil
	}
	if err := s.tokenRepo.DeleteByHash(ctx, hash); err != nil {
		log.Printf("auth: logout delete: %v", err)
		return nil
	}
	if s.auditLogger != nil {
		s.auditLogger.LogEvent(ctx, row.UserID, audit.ActionLogout, "refresh_token", "")
	}
	telemetry.EmitAsync(s.emitter, ctx, &telemetry.Event{UserID: row.UserID, EventType: telemetry.EventLogout, Source: "auth"})
	return nil
}

func (s *AuthService) revokeAll(ctx context.Context, userID string) error {
	n, err := s.tokenRepo.DeleteAllForUser(ctx, userID)
	if err != nil {
		log.Printf("auth: revoke all refresh tokens for user %s: %v", userID, err)
	}
	if s.auditLogger != nil {
		s.auditLogger.LogEvent(ctx, userID, audit.ActionRefreshTokenReuse, "refresh_token", fmt.Sprintf("deleted=%d", n))
	}
	telemetry.EmitAsync(s.emitter, ctx, &telemetry.Event{UserID: userID, EventType: telemetry.EventRefreshTokenReuse, Source: "auth"})
	return ErrRefreshTokenReuse
}

func (s *AuthService) issuePair(ctx context.Context, userID string) (*AuthResult, error) {
	accessToken, accessExp, err := s.tokens.IssueAccess(userID)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	refreshToken, err := security.NewRefreshToken()
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}
	now := s.now()
	row := &sessiondomain.RefreshToken{
		ID:        uuid.New().String(),
		UserID:    userID,
		TokenHash: security.HashRefreshToken(refreshToken),
		ExpiresAt: now.Add(s.refreshTTL),
		CreatedAt: now,
	}
	if err := s.tokenRepo.Create(ctx, row); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}
	if err := s.tokenRepo.PruneForUser(ctx, userID, s.keepPerUser, now); err != nil {
		log.Printf("auth: prune refresh tokens for user %s: %v", userID, err)
	}
	return &AuthResult{
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		ExpiresAt:        accessExp,
		RefreshExpiresAt: row.ExpiresAt,
		UserID:           userID,
	}, nil
}
