// accounts.go — состояние аккаунтов и dev faucet.
package handlers

import (
	"log/slog"
	"net/http"

	"github.com/zk-Lokomotive/zkl-sui-sol/internal/api/generated"
	"github.com/zk-Lokomotive/zkl-sui-sol/internal/api/middleware"
	"github.com/zk-Lokomotive/zkl-sui-sol/internal/domain/model"
	"github.com/zk-Lokomotive/zkl-sui-sol/internal/service"
)

// AccountsHandler — обработчик endpoints аккаунтов.
type AccountsHandler struct {
	svc    *service.ReceiverService
	logger *slog.Logger
}

// NewAccountsHandler создаёт обработчик аккаунтов.
func NewAccountsHandler(svc *service.ReceiverService, logger *slog.Logger) *AccountsHandler {
	return &AccountsHandler{
		svc:    svc,
		logger: logger.With(slog.String("component", "accounts_handler")),
	}
}

// GetAccount обрабатывает GET /api/v1/accounts/{address}.
func (h *AccountsHandler) GetAccount(w http.ResponseWriter, r *http.Request, address generated.Address) {
	addr, ok := parseIdentity(w, "address", address)
	if !ok {
		return
	}

	acc, err := h.svc.GetAccount(r.Context(), addr)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, mapAccount(acc))
}

// Airdrop обрабатывает POST /api/v1/accounts/{address}/airdrop.
func (h *AccountsHandler) Airdrop(w http.ResponseWriter, r *http.Request, address generated.Address) {
	addr, ok := parseIdentity(w, "address", address)
	if !ok {
		return
	}
	var req generated.AirdropRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	acc, err := h.svc.Airdrop(r.Context(), addr, req.Lamports)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	h.logger.Info("Airdrop выполнен",
		slog.String("address", addr.String()),
		slog.Uint64("lamports", req.Lamports),
		slog.String("subject", middleware.SubjectFromContext(r.Context())),
	)
	writeJSON(w, http.StatusOK, mapAccount(acc))
}

func mapAccount(acc *model.Account) generated.AccountInfo {
	return generated.AccountInfo{
		Address:  acc.Address.String(),
		Lamports: acc.Lamports,
		Owner:    acc.Owner.String(),
		Size:     len(acc.Data),
		Data:     acc.Data,
	}
}
