package jwtinfra

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-auth-api/internal/config"
	"github.com/go-auth-api/internal/domain"
	"github.com/go-auth-api/internal/pkg/id"
	"github.com/golang-jwt/jwt/v5"
)

// Token audiences distinguish the two token types so an access token can
// never be presented where a refresh token is expected, or vice versa.
const (
	AudienceAccess  = "auth:access"
	AudienceRefresh = "auth:refresh"
)

// Verification failures. All are in the Unauthorized family so handlers can
// map them uniformly while callers still discriminate with errors.Is.
var (
	ErrTokenExpired   = fmt.Errorf("token expired: %w", domain.ErrUnauthorized)
	ErrTokenMalformed = fmt.Errorf("malformed token: %w", domain.ErrUnauthorized)
	ErrBadSignature   = fmt.Errorf("bad token signature: %w", domain.ErrUnauthorized)
)

// Claims holds the JWT payload fields.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Provider signs and verifies HS256 access and refresh tokens.
//
// Tokens are fully stateless: verification is signature+expiry only, with no
// store lookup, so a token cannot be revoked before it expires. That is the
// documented trade-off for refresh paths that never touch the database.
type Provider struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

func NewProvider(cfg *config.Config) *Provider {
	return &Provider{
		accessSecret:  []byte(cfg.AccessTokenSecret),
		refreshSecret: []byte(cfg.RefreshTokenSecret),
		accessTTL:     cfg.AccessTokenTTL,
		refreshTTL:    cfg.RefreshTokenTTL,
	}
}

// Issue mints the access/refresh pair for an identity.
func (p *Provider) Issue(ident *domain.Identity) (*domain.Session, error) {
	access, err := p.sign(ident, AudienceAccess, p.accessTTL, p.accessSecret)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}
	refresh, err := p.sign(ident, AudienceRefresh, p.refreshTTL, p.refreshSecret)
	if err != nil {
		return nil, fmt.Errorf("sign refresh token: %w", err)
	}
	return &domain.Session{AccessToken: access, RefreshToken: refresh}, nil
}

// VerifyAccess checks signature, expiry and audience of an access token.
func (p *Provider) VerifyAccess(tokenStr string) (*Claims, error) {
	return p.verify(tokenStr, AudienceAccess, p.accessSecret)
}

// VerifyRefresh checks signature, expiry and audience of a refresh token.
func (p *Provider) VerifyRefresh(tokenStr string) (*Claims, error) {
	return p.verify(tokenStr, AudienceRefresh, p.refreshSecret)
}

func (p *Provider) sign(ident *domain.Identity, audience string, ttl time.Duration, secret []byte) (string, error) {
	now := time.Now()
	claims := Claims{
		Email: ident.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   ident.UserID,
			ID:        id.New(),
			Audience:  jwt.ClaimStrings{audience},
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

func (p *Provider) verify(tokenStr, audience string, secret []byte) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return secret, nil
	}, jwt.WithAudience(audience), jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, ErrBadSignature
		default:
			return nil, ErrTokenMalformed
		}
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenMalformed
	}
	return claims, nil
}
