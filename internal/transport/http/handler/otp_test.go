package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-auth-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockOtpService struct{ mock.Mock }

func (m *mockOtpService) Request(ctx context.Context, email, channel string) error {
	return m.Called(ctx, email, channel).Error(0)
}
func (m *mockOtpService) Verify(ctx context.Context, email, code string) (bool, error) {
	args := m.Called(ctx, email, code)
	return args.Bool(0), args.Error(1)
}

func TestOtpRequest_UnknownEmailAnswersLikeFailedLogin(t *testing.T) {
	svc := &mockOtpService{}
	svc.On("Request", mock.Anything, "ghost@example.com", "").
		Return(fmt.Errorf("account not found: %w", domain.ErrNotFound))

	h := NewOtpHandler(svc)
	rec := postJSON(t, h.Request, "/v1/auth/otp/request", map[string]string{"email": "ghost@example.com"})

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid credentials")
	assert.NotContains(t, rec.Body.String(), "not found")
}

func TestOtpRequest_DispatchFailure(t *testing.T) {
	svc := &mockOtpService{}
	svc.On("Request", mock.Anything, "alice@example.com", "").
		Return(fmt.Errorf("could not deliver one-time code: %w", domain.ErrDispatchFailed))

	h := NewOtpHandler(svc)
	rec := postJSON(t, h.Request, "/v1/auth/otp/request", map[string]string{"email": "alice@example.com"})

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestOtpRequest_BadChannel(t *testing.T) {
	h := NewOtpHandler(&mockOtpService{})
	rec := postJSON(t, h.Request, "/v1/auth/otp/request", map[string]string{
		"email":   "alice@example.com",
		"channel": "pigeon",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOtpRequest_Sent(t *testing.T) {
	svc := &mockOtpService{}
	svc.On("Request", mock.Anything, "alice@example.com", "sms").Return(nil)

	h := NewOtpHandler(svc)
	rec := postJSON(t, h.Request, "/v1/auth/otp/request", map[string]string{
		"email":   "alice@example.com",
		"channel": "sms",
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	svc.AssertExpectations(t)
}

func TestOtpVerify_InvalidCodeShape(t *testing.T) {
	h := NewOtpHandler(&mockOtpService{})
	rec := postJSON(t, h.Verify, "/v1/auth/otp/verify", map[string]string{
		"email": "alice@example.com",
		"code":  "12ab56",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOtpVerify_ReportsValidity(t *testing.T) {
	for _, valid := range []bool{true, false} {
		svc := &mockOtpService{}
		svc.On("Verify", mock.Anything, "alice@example.com", "123456").Return(valid, nil)

		h := NewOtpHandler(svc)
		rec := postJSON(t, h.Verify, "/v1/auth/otp/verify", map[string]string{
			"email": "alice@example.com",
			"code":  "123456",
		})

		require.Equal(t, http.StatusOK, rec.Code)
		var env VerifyEnvelope
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
		assert.Equal(t, valid, env.Valid)
	}
}

func TestOtpVerify_StoreFailure(t *testing.T) {
	svc := &mockOtpService{}
	svc.On("Verify", mock.Anything, "alice@example.com", "123456").
		Return(false, fmt.Errorf("delete otp: timeout: %w", domain.ErrUnavailable))

	h := NewOtpHandler(svc)
	rec := postJSON(t, h.Verify, "/v1/auth/otp/verify", map[string]string{
		"email": "alice@example.com",
		"code":  "123456",
	})

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestOtpVerify_InvalidBody(t *testing.T) {
	h := NewOtpHandler(&mockOtpService{})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/otp/verify", bytes.NewReader([]byte("{")))

	h.Verify(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
