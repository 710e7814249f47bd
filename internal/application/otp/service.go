package otp

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/go-auth-api/internal/domain"
)

// Delivery channels for one-time codes.
const (
	ChannelEmail = "email"
	ChannelSMS   = "sms"
)

type Service interface {
	// Request generates a one-time code for the identity registered under
	// email and dispatches it over the given channel. The code is persisted
	// before dispatch, so a delivery failure leaves a usable code behind.
	Request(ctx context.Context, email, channel string) error
	// Verify atomically consumes the (email, code) pair. It returns true
	// only for a live, previously unconsumed code. A second call with the
	// same pair returns false even when the first one raced it.
	Verify(ctx context.Context, email, code string) (bool, error)
}

type identityStore interface {
	GetByEmail(ctx context.Context, email string) (*domain.Identity, error)
}

type otpStore interface {
	Put(ctx context.Context, rec *domain.OtpRecord) error
	Consume(ctx context.Context, email, code string) (*domain.OtpRecord, error)
}

type mailer interface {
	SendEmail(to, subject, body string) error
}

type smsSender interface {
	SendSMS(ctx context.Context, to, message string) error
}

type service struct {
	identities identityStore
	otps       otpStore
	mailer     mailer
	smsSender  smsSender
	ttl        time.Duration
}

type ServiceDeps struct {
	IdentityRepo identityStore
	OtpRepo      otpStore
	Mailer       mailer
	SMSSender    smsSender
	OtpTTL       time.Duration
}

func NewService(deps ServiceDeps) Service {
	return &service{
		identities: deps.IdentityRepo,
		otps:       deps.OtpRepo,
		mailer:     deps.Mailer,
		smsSender:  deps.SMSSender,
		ttl:        deps.OtpTTL,
	}
}

func (s *service) Request(ctx context.Context, email, channel string) error {
	ident, err := s.identities.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("account not found: %w", domain.ErrNotFound)
		}
		return err
	}

	if channel == "" {
		channel = ChannelEmail
	}
	// Channel checks run before the code is persisted so a rejected request
	// never leaves a live orphan code behind.
	switch channel {
	case ChannelEmail, ChannelSMS:
	default:
		return fmt.Errorf("unknown channel %q: %w", channel, domain.ErrBadRequest)
	}
	if channel == ChannelSMS && ident.Phone == nil {
		return fmt.Errorf("no phone number on account: %w", domain.ErrBadRequest)
	}

	code, err := generateCode()
	if err != nil {
		return err
	}

	rec := &domain.OtpRecord{
		Email:     ident.Email,
		Code:      code,
		ExpiresAt: time.Now().Add(s.ttl).Unix(),
	}
	if err := s.otps.Put(ctx, rec); err != nil {
		return err
	}

	minutes := int(s.ttl.Minutes())
	body := fmt.Sprintf("Your one-time code is %s. It expires in %d minutes.", code, minutes)

	// The SMS sender is optional wiring; a missing sender is a delivery
	// outage, not a panic.
	var dispatchErr error
	switch channel {
	case ChannelSMS:
		if s.smsSender == nil {
			dispatchErr = errors.New("sms sender not configured")
		} else {
			dispatchErr = s.smsSender.SendSMS(ctx, *ident.Phone, body)
		}
	case ChannelEmail:
		dispatchErr = s.mailer.SendEmail(ident.Email, "Your one-time code", body)
	}
	if dispatchErr != nil {
		// The code is already persisted and can be verified if it did
		// arrive, so this is surfaced as a retryable delivery failure.
		slog.Warn("failed to dispatch one-time code", "email", ident.Email, "channel", channel, "err", dispatchErr)
		return fmt.Errorf("could not deliver one-time code: %w", domain.ErrDispatchFailed)
	}
	return nil
}

func (s *service) Verify(ctx context.Context, email, code string) (bool, error) {
	rec, err := s.otps.Consume(ctx, email, code)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	// The record is already gone from the store. An expired code is
	// rejected here rather than relying on the table's TTL sweep, which
	// can lag by minutes.
	if time.Now().Unix() >= rec.ExpiresAt {
		return false, nil
	}
	return true, nil
}

// generateCode returns a 6-digit numeric code with a uniform distribution
// over 100000..999999.
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}
