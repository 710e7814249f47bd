package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-auth-api/internal/domain"
	"github.com/go-auth-api/internal/infrastructure/events"
	jwtinfra "github.com/go-auth-api/internal/infrastructure/jwt"
	"github.com/go-auth-api/internal/pkg/id"
	"github.com/go-auth-api/internal/pkg/nonce"
	"github.com/go-auth-api/internal/pkg/password"
)

// DynamoDB attribute name used in partial update maps.
const fieldPasswordHash = "password_hash"

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8,max=72"`
}

type Service interface {
	Register(ctx context.Context, req domain.RegisterRequest) (*domain.Session, error)
	// ValidateCredentials returns the identity behind email when password
	// matches. A missing account and a wrong password are indistinguishable
	// to the caller.
	ValidateCredentials(ctx context.Context, email, plainPassword string) (*domain.Identity, error)
	Login(ctx context.Context, req domain.LoginRequest) (*domain.Session, error)
	Refresh(ctx context.Context, refreshToken string) (*domain.Session, error)
	// Logout acknowledges the client's intent. Tokens are stateless, so
	// nothing is revoked server side; clients discard their copies.
	Logout(ctx context.Context, userID string) error
	ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error
	Me(ctx context.Context, userID string) (*domain.Identity, error)
	// Deactivate disables the account. Outstanding tokens keep verifying
	// until expiry, but login and refresh reject a disabled identity.
	Deactivate(ctx context.Context, userID string) error
}

type identityStore interface {
	Get(ctx context.Context, userID string) (*domain.Identity, error)
	GetByEmail(ctx context.Context, email string) (*domain.Identity, error)
	Put(ctx context.Context, ident *domain.Identity) error
	Update(ctx context.Context, userID string, updates map[string]interface{}) error
	UpdateRefreshTokenHash(ctx context.Context, userID, hash string) error
	SoftDelete(ctx context.Context, userID string) error
}

type tokenProvider interface {
	Issue(ident *domain.Identity) (*domain.Session, error)
	VerifyRefresh(tokenStr string) (*jwtinfra.Claims, error)
}

type service struct {
	identities identityStore
	tokens     tokenProvider
	hasher     password.Hasher
	publisher  events.Publisher
}

type ServiceDeps struct {
	IdentityRepo identityStore
	Tokens       tokenProvider
	Hasher       password.Hasher
	Publisher    events.Publisher
}

func NewService(deps ServiceDeps) Service {
	return &service{
		identities: deps.IdentityRepo,
		tokens:     deps.Tokens,
		hasher:     deps.Hasher,
		publisher:  deps.Publisher,
	}
}

func (s *service) Register(ctx context.Context, req domain.RegisterRequest) (*domain.Session, error) {
	if _, err := s.identities.GetByEmail(ctx, req.Email); err == nil {
		return nil, fmt.Errorf("email already registered: %w", domain.ErrConflict)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, err
	}
	walletNonce, err := nonce.New()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	ident := &domain.Identity{
		UserID:       id.New(),
		Email:        req.Email,
		Phone:        req.Phone,
		PasswordHash: hash,
		WalletNonce:  walletNonce,
		Enable:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.identities.Put(ctx, ident); err != nil {
		return nil, err
	}
	return s.issueSession(ctx, ident)
}

func (s *service) ValidateCredentials(ctx context.Context, email, plainPassword string) (*domain.Identity, error) {
	ident, err := s.identities.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("invalid credentials: %w", domain.ErrUnauthorized)
		}
		return nil, err
	}
	if !ident.Enable || ident.DeletedAt != nil {
		return nil, fmt.Errorf("invalid credentials: %w", domain.ErrUnauthorized)
	}
	if !s.hasher.Compare(plainPassword, ident.PasswordHash) {
		return nil, fmt.Errorf("invalid credentials: %w", domain.ErrUnauthorized)
	}
	return ident, nil
}

func (s *service) Login(ctx context.Context, req domain.LoginRequest) (*domain.Session, error) {
	ident, err := s.ValidateCredentials(ctx, req.Email, req.Password)
	if err != nil {
		return nil, err
	}
	return s.issueSession(ctx, ident)
}

func (s *service) Refresh(ctx context.Context, refreshToken string) (*domain.Session, error) {
	claims, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return nil, err
	}
	ident, err := s.identities.Get(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("account no longer exists: %w", domain.ErrUnauthorized)
		}
		return nil, err
	}
	if !ident.Enable || ident.DeletedAt != nil {
		return nil, fmt.Errorf("account disabled: %w", domain.ErrUnauthorized)
	}
	return s.issueSession(ctx, ident)
}

func (s *service) Logout(ctx context.Context, userID string) error {
	if s.publisher != nil {
		if err := s.publisher.PublishLogout(ctx, userID); err != nil {
			slog.Warn("failed to publish logout event", "user_id", userID, "err", err)
		}
	}
	return nil
}

func (s *service) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	ident, err := s.identities.Get(ctx, userID)
	if err != nil {
		return err
	}
	if !s.hasher.Compare(currentPassword, ident.PasswordHash) {
		return fmt.Errorf("current password is incorrect: %w", domain.ErrUnauthorized)
	}
	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	return s.identities.Update(ctx, userID, map[string]interface{}{fieldPasswordHash: hash})
}

func (s *service) Me(ctx context.Context, userID string) (*domain.Identity, error) {
	return s.identities.Get(ctx, userID)
}

func (s *service) Deactivate(ctx context.Context, userID string) error {
	return s.identities.SoftDelete(ctx, userID)
}

// issueSession mints the token pair and records a digest of the refresh
// token. The digest is an audit trail only; verification never consults it.
func (s *service) issueSession(ctx context.Context, ident *domain.Identity) (*domain.Session, error) {
	sess, err := s.tokens.Issue(ident)
	if err != nil {
		return nil, err
	}
	digest := sha256.Sum256([]byte(sess.RefreshToken))
	if err := s.identities.UpdateRefreshTokenHash(ctx, ident.UserID, hex.EncodeToString(digest[:])); err != nil {
		slog.Warn("failed to record refresh token digest", "user_id", ident.UserID, "err", err)
	}
	sess.User = ident
	return sess, nil
}
