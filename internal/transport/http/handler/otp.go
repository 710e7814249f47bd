package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-auth-api/internal/application/otp"
	"github.com/go-auth-api/internal/domain"
	"github.com/go-auth-api/internal/pkg/validate"
)

// OtpHandler handles one-time code request and verification endpoints.
type OtpHandler struct {
	svc otp.Service
}

func NewOtpHandler(svc otp.Service) *OtpHandler { return &OtpHandler{svc: svc} }

type otpRequestBody struct {
	Email   string `json:"email" validate:"required,email"`
	Channel string `json:"channel" validate:"omitempty,oneof=email sms"`
}

func (h *OtpHandler) Request(w http.ResponseWriter, r *http.Request) {
	var req otpRequestBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.svc.Request(r.Context(), req.Email, req.Channel); err != nil {
		// An unknown email answers exactly like a failed login so the
		// endpoint cannot be used to probe which accounts exist.
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "code sent"})
}

type otpVerifyBody struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required,len=6,numeric"`
}

func (h *OtpHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req otpVerifyBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	valid, err := h.svc.Verify(r.Context(), req.Email, req.Code)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, VerifyEnvelope{Valid: valid})
}
