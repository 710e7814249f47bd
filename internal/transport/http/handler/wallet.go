package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-auth-api/internal/application/wallet"
	"github.com/go-auth-api/internal/pkg/validate"
	"github.com/go-auth-api/internal/transport/http/middleware"
)

// WalletHandler handles the wallet-link endpoint.
type WalletHandler struct {
	svc wallet.Service
}

func NewWalletHandler(svc wallet.Service) *WalletHandler { return &WalletHandler{svc: svc} }

type walletLinkBody struct {
	Address   string `json:"address" validate:"required,eth_addr"`
	Signature string `json:"signature" validate:"required"`
}

func (h *WalletHandler) Link(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req walletLinkBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ident, err := h.svc.Link(r.Context(), claims.Subject, req.Address, req.Signature)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ident)
}
