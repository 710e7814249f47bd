package wallet

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-auth-api/internal/domain"
	"github.com/go-auth-api/internal/infrastructure/events"
	"github.com/go-auth-api/internal/pkg/nonce"
)

// ChallengePrefix is the fixed prefix of the message a wallet signs. The
// full challenge is this prefix followed by the identity's current nonce.
const ChallengePrefix = "Link wallet with nonce: "

// DynamoDB attribute names used in partial update maps.
const (
	fieldWalletAddress = "wallet_address"
	fieldWalletNonce   = "wallet_nonce"
)

type Service interface {
	// Link binds address to the identity after verifying that signature was
	// produced over the identity's current challenge by that address. The
	// nonce rotates on every attempt where recovery succeeds, so a captured
	// signature cannot be replayed.
	Link(ctx context.Context, userID, address, signature string) (*domain.Identity, error)
}

type identityStore interface {
	Get(ctx context.Context, userID string) (*domain.Identity, error)
	Update(ctx context.Context, userID string, updates map[string]interface{}) error
}

type addressRecoverer interface {
	RecoverAddress(message, signature string) (string, error)
}

type service struct {
	identities identityStore
	recoverer  addressRecoverer
	publisher  events.Publisher
}

type ServiceDeps struct {
	IdentityRepo identityStore
	Recoverer    addressRecoverer
	Publisher    events.Publisher
}

func NewService(deps ServiceDeps) Service {
	return &service{
		identities: deps.IdentityRepo,
		recoverer:  deps.Recoverer,
		publisher:  deps.Publisher,
	}
}

func (s *service) Link(ctx context.Context, userID, address, signature string) (*domain.Identity, error) {
	ident, err := s.identities.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	challenge := ChallengePrefix + ident.WalletNonce
	recovered, err := s.recoverer.RecoverAddress(challenge, signature)
	if err != nil {
		// Recovery never produced an address, so the nonce is unburned
		// and stays valid for the client's next attempt.
		return nil, err
	}

	// A recoverable signature burns the nonce whether or not the address
	// matches; otherwise a mismatching attempt could be retried against
	// the same challenge.
	fresh, err := nonce.New()
	if err != nil {
		return nil, err
	}

	if !strings.EqualFold(recovered, address) {
		if uerr := s.identities.Update(ctx, userID, map[string]interface{}{fieldWalletNonce: fresh}); uerr != nil {
			return nil, uerr
		}
		return nil, fmt.Errorf("signature was produced by a different address: %w", domain.ErrUnauthorized)
	}

	if err := s.identities.Update(ctx, userID, map[string]interface{}{
		fieldWalletAddress: address,
		fieldWalletNonce:   fresh,
	}); err != nil {
		return nil, err
	}
	ident.WalletAddress = &address
	ident.WalletNonce = fresh

	if s.publisher != nil {
		if err := s.publisher.PublishWalletLinked(ctx, userID, address); err != nil {
			slog.Warn("failed to publish wallet linked event", "user_id", userID, "err", err)
		}
	}
	return ident, nil
}
