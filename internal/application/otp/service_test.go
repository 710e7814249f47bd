package otp

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/go-auth-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockIdentityStore struct{ mock.Mock }

func (m *mockIdentityStore) GetByEmail(ctx context.Context, email string) (*domain.Identity, error) {
	args := m.Called(ctx, email)
	if i, _ := args.Get(0).(*domain.Identity); i != nil {
		return i, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockOtpStore struct{ mock.Mock }

func (m *mockOtpStore) Put(ctx context.Context, rec *domain.OtpRecord) error {
	return m.Called(ctx, rec).Error(0)
}
func (m *mockOtpStore) Consume(ctx context.Context, email, code string) (*domain.OtpRecord, error) {
	args := m.Called(ctx, email, code)
	if r, _ := args.Get(0).(*domain.OtpRecord); r != nil {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockMailer struct{ mock.Mock }

func (m *mockMailer) SendEmail(to, subject, body string) error {
	return m.Called(to, subject, body).Error(0)
}

type mockSMSSender struct{ mock.Mock }

func (m *mockSMSSender) SendSMS(ctx context.Context, to, message string) error {
	return m.Called(ctx, to, message).Error(0)
}

// --- helpers ---

func newService(is *mockIdentityStore, os *mockOtpStore, ml *mockMailer, sms *mockSMSSender) Service {
	// Assign only non-nil mocks so a nil *mock pointer stays a nil
	// interface instead of a typed-nil that defeats the service's checks.
	deps := ServiceDeps{OtpTTL: 5 * time.Minute}
	if is != nil {
		deps.IdentityRepo = is
	}
	if os != nil {
		deps.OtpRepo = os
	}
	if ml != nil {
		deps.Mailer = ml
	}
	if sms != nil {
		deps.SMSSender = sms
	}
	return NewService(deps)
}

func strPtr(s string) *string { return &s }

// --- Request tests ---

func TestRequest_UnknownEmail(t *testing.T) {
	is := &mockIdentityStore{}
	is.On("GetByEmail", mock.Anything, "ghost@example.com").Return(nil, domain.ErrNotFound)

	svc := newService(is, nil, nil, nil)
	err := svc.Request(context.Background(), "ghost@example.com", ChannelEmail)

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	is.AssertExpectations(t)
}

func TestRequest_EmailChannel_PersistsThenDispatches(t *testing.T) {
	is := &mockIdentityStore{}
	os := &mockOtpStore{}
	ml := &mockMailer{}
	is.On("GetByEmail", mock.Anything, "alice@example.com").
		Return(&domain.Identity{UserID: "u1", Email: "alice@example.com"}, nil)

	var stored *domain.OtpRecord
	os.On("Put", mock.Anything, mock.AnythingOfType("*domain.OtpRecord")).
		Run(func(args mock.Arguments) { stored = args.Get(1).(*domain.OtpRecord) }).
		Return(nil)
	ml.On("SendEmail", "alice@example.com", "Your one-time code", mock.AnythingOfType("string")).Return(nil)

	svc := newService(is, os, ml, nil)
	err := svc.Request(context.Background(), "alice@example.com", "")

	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Len(t, stored.Code, 6)
	assert.Greater(t, stored.ExpiresAt, time.Now().Unix())
	os.AssertExpectations(t)
	ml.AssertExpectations(t)
}

func TestRequest_SMSChannel(t *testing.T) {
	is := &mockIdentityStore{}
	os := &mockOtpStore{}
	sms := &mockSMSSender{}
	is.On("GetByEmail", mock.Anything, "alice@example.com").
		Return(&domain.Identity{UserID: "u1", Email: "alice@example.com", Phone: strPtr("+15551234567")}, nil)
	os.On("Put", mock.Anything, mock.Anything).Return(nil)
	sms.On("SendSMS", mock.Anything, "+15551234567", mock.AnythingOfType("string")).Return(nil)

	svc := newService(is, os, nil, sms)
	err := svc.Request(context.Background(), "alice@example.com", ChannelSMS)

	require.NoError(t, err)
	sms.AssertExpectations(t)
}

func TestRequest_SMSChannel_NoPhone(t *testing.T) {
	is := &mockIdentityStore{}
	is.On("GetByEmail", mock.Anything, "alice@example.com").
		Return(&domain.Identity{UserID: "u1", Email: "alice@example.com"}, nil)

	svc := newService(is, nil, nil, nil)
	err := svc.Request(context.Background(), "alice@example.com", ChannelSMS)

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrBadRequest))
}

func TestRequest_SMSChannel_NoSenderWired(t *testing.T) {
	is := &mockIdentityStore{}
	os := &mockOtpStore{}
	is.On("GetByEmail", mock.Anything, "alice@example.com").
		Return(&domain.Identity{UserID: "u1", Email: "alice@example.com", Phone: strPtr("+15551234567")}, nil)
	os.On("Put", mock.Anything, mock.Anything).Return(nil)

	// SMS sender left nil, the same shape main wires when SNS is down.
	svc := newService(is, os, nil, nil)
	err := svc.Request(context.Background(), "alice@example.com", ChannelSMS)

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrDispatchFailed))
	assert.True(t, errors.Is(err, domain.ErrUnavailable))
	// The code was persisted before the delivery attempt.
	os.AssertExpectations(t)
}

func TestRequest_UnknownChannel_NothingPersisted(t *testing.T) {
	is := &mockIdentityStore{}
	os := &mockOtpStore{}
	is.On("GetByEmail", mock.Anything, "alice@example.com").
		Return(&domain.Identity{UserID: "u1", Email: "alice@example.com"}, nil)

	svc := newService(is, os, nil, nil)
	err := svc.Request(context.Background(), "alice@example.com", "pigeon")

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrBadRequest))
	os.AssertNotCalled(t, "Put", mock.Anything, mock.Anything)
}

func TestRequest_DispatchFailure_CodeStaysPersisted(t *testing.T) {
	is := &mockIdentityStore{}
	os := &mockOtpStore{}
	ml := &mockMailer{}
	is.On("GetByEmail", mock.Anything, "alice@example.com").
		Return(&domain.Identity{UserID: "u1", Email: "alice@example.com"}, nil)
	os.On("Put", mock.Anything, mock.Anything).Return(nil)
	ml.On("SendEmail", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("smtp down"))

	svc := newService(is, os, ml, nil)
	err := svc.Request(context.Background(), "alice@example.com", ChannelEmail)

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrDispatchFailed))
	assert.True(t, errors.Is(err, domain.ErrUnavailable))
	os.AssertExpectations(t)
}

// --- Verify tests ---

func TestVerify_LiveCode(t *testing.T) {
	os := &mockOtpStore{}
	os.On("Consume", mock.Anything, "alice@example.com", "123456").
		Return(&domain.OtpRecord{
			Email:     "alice@example.com",
			Code:      "123456",
			ExpiresAt: time.Now().Add(time.Minute).Unix(),
		}, nil)

	svc := newService(nil, os, nil, nil)
	ok, err := svc.Verify(context.Background(), "alice@example.com", "123456")

	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerify_UnknownCode(t *testing.T) {
	os := &mockOtpStore{}
	os.On("Consume", mock.Anything, "alice@example.com", "000000").
		Return(nil, fmt.Errorf("otp not found: %w", domain.ErrNotFound))

	svc := newService(nil, os, nil, nil)
	ok, err := svc.Verify(context.Background(), "alice@example.com", "000000")

	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerify_ExpiredCode(t *testing.T) {
	os := &mockOtpStore{}
	os.On("Consume", mock.Anything, "alice@example.com", "123456").
		Return(&domain.OtpRecord{
			Email:     "alice@example.com",
			Code:      "123456",
			ExpiresAt: time.Now().Add(-time.Second).Unix(),
		}, nil)

	svc := newService(nil, os, nil, nil)
	ok, err := svc.Verify(context.Background(), "alice@example.com", "123456")

	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerify_OneTimeUse(t *testing.T) {
	os := &mockOtpStore{}
	os.On("Consume", mock.Anything, "alice@example.com", "123456").
		Return(&domain.OtpRecord{
			Email:     "alice@example.com",
			Code:      "123456",
			ExpiresAt: time.Now().Add(time.Minute).Unix(),
		}, nil).Once()
	os.On("Consume", mock.Anything, "alice@example.com", "123456").
		Return(nil, domain.ErrNotFound)

	svc := newService(nil, os, nil, nil)

	ok, err := svc.Verify(context.Background(), "alice@example.com", "123456")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.Verify(context.Background(), "alice@example.com", "123456")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerify_StoreError(t *testing.T) {
	os := &mockOtpStore{}
	os.On("Consume", mock.Anything, "alice@example.com", "123456").
		Return(nil, fmt.Errorf("delete otp: timeout: %w", domain.ErrUnavailable))

	svc := newService(nil, os, nil, nil)
	ok, err := svc.Verify(context.Background(), "alice@example.com", "123456")

	require.Error(t, err)
	assert.False(t, ok)
	assert.True(t, errors.Is(err, domain.ErrUnavailable))
}

// atomicOtpStore consumes each (email, code) pair at most once, the same
// guarantee the conditional delete gives in DynamoDB.
type atomicOtpStore struct {
	mu   sync.Mutex
	recs map[string]*domain.OtpRecord
}

func (s *atomicOtpStore) Put(_ context.Context, rec *domain.OtpRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs[rec.Email+"|"+rec.Code] = rec
	return nil
}

func (s *atomicOtpStore) Consume(_ context.Context, email, code string) (*domain.OtpRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := email + "|" + code
	rec, ok := s.recs[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	delete(s.recs, key)
	return rec, nil
}

func TestVerify_ConcurrentAttempts_ExactlyOneWins(t *testing.T) {
	store := &atomicOtpStore{recs: map[string]*domain.OtpRecord{}}
	require.NoError(t, store.Put(context.Background(), &domain.OtpRecord{
		Email:     "alice@example.com",
		Code:      "123456",
		ExpiresAt: time.Now().Add(time.Minute).Unix(),
	}))

	svc := NewService(ServiceDeps{OtpRepo: store, OtpTTL: 5 * time.Minute})

	const attempts = 32
	results := make(chan bool, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := svc.Verify(context.Background(), "alice@example.com", "123456")
			require.NoError(t, err)
			results <- ok
		}()
	}
	wg.Wait()
	close(results)

	wins := 0
	for ok := range results {
		if ok {
			wins++
		}
	}
	assert.Equal(t, 1, wins)
}
