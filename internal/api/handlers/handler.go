// handler.go — APIHandler реализует generated.ServerInterface,
// делегируя вызовы в отдельные handler'ы по доменам.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	apierrors "github.com/zk-Lokomotive/zkl-sui-sol/internal/api/errors"
	"github.com/zk-Lokomotive/zkl-sui-sol/internal/api/generated"
	"github.com/zk-Lokomotive/zkl-sui-sol/internal/api/middleware"
	"github.com/zk-Lokomotive/zkl-sui-sol/internal/domain/model"
	"github.com/zk-Lokomotive/zkl-sui-sol/internal/repository"
	"github.com/zk-Lokomotive/zkl-sui-sol/internal/runtime"
	"github.com/zk-Lokomotive/zkl-sui-sol/internal/service"
)

// APIHandler — единая реализация ServerInterface, собирающая
// все доменные handlers в один объект.
type APIHandler struct {
	receive  *ReceiveHandler
	records  *RecordsHandler
	accounts *AccountsHandler
	health   *HealthHandler
}

// NewAPIHandler создаёт единый handler для всех endpoints.
func NewAPIHandler(
	receive *ReceiveHandler,
	records *RecordsHandler,
	accounts *AccountsHandler,
	health *HealthHandler,
) *APIHandler {
	return &APIHandler{
		receive:  receive,
		records:  records,
		accounts: accounts,
		health:   health,
	}
}

// --- Receive ---

func (h *APIHandler) SubmitInstruction(w http.ResponseWriter, r *http.Request) {
	h.receive.SubmitInstruction(w, r)
}

func (h *APIHandler) SubmitMessage(w http.ResponseWriter, r *http.Request) {
	h.receive.SubmitMessage(w, r)
}

func (h *APIHandler) SubmitPayload(w http.ResponseWriter, r *http.Request) {
	h.receive.SubmitPayload(w, r)
}

// --- Records ---

func (h *APIHandler) GetTransfer(w http.ResponseWriter, r *http.Request, recipient generated.Recipient) {
	h.records.GetTransfer(w, r, recipient)
}

func (h *APIHandler) GetMetadata(w http.ResponseWriter, r *http.Request, messageId generated.MessageId) {
	h.records.GetMetadata(w, r, messageId)
}

func (h *APIHandler) DeriveAddress(w http.ResponseWriter, r *http.Request, namespace generated.Namespace, key generated.Key) {
	h.records.DeriveAddress(w, r, namespace, key)
}

func (h *APIHandler) GetLatestForRecipient(w http.ResponseWriter, r *http.Request, recipient generated.Recipient) {
	h.records.GetLatestForRecipient(w, r, recipient)
}

// --- Accounts ---

func (h *APIHandler) GetAccount(w http.ResponseWriter, r *http.Request, address generated.Address) {
	h.accounts.GetAccount(w, r, address)
}

func (h *APIHandler) Airdrop(w http.ResponseWriter, r *http.Request, address generated.Address) {
	h.accounts.Airdrop(w, r, address)
}

// --- Health ---

func (h *APIHandler) HealthLive(w http.ResponseWriter, r *http.Request) {
	h.health.HealthLive(w, r)
}

func (h *APIHandler) HealthReady(w http.ResponseWriter, r *http.Request) {
	h.health.HealthReady(w, r)
}

func (h *APIHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.health.GetMetrics(w, r)
}

// Проверка соответствия интерфейсу на этапе компиляции.
var _ generated.ServerInterface = (*APIHandler)(nil)

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// decodeJSON разбирает тело запроса; при ошибке пишет 400,
// при превышении middleware.MaxBodyBytes — 413.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, middleware.MaxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if middleware.IsBodyTooLarge(err) {
			apierrors.PayloadTooLarge(w, "Тело запроса превышает допустимый размер")
			return false
		}
		apierrors.ValidationError(w, "Некорректное тело запроса: "+err.Error())
		return false
	}
	return true
}

// parseIdentity разбирает base58-идентификатор из пути или тела; при ошибке пишет 400.
func parseIdentity(w http.ResponseWriter, field, value string) (model.Identity, bool) {
	id, err := model.ParseIdentity(value)
	if err != nil {
		apierrors.ValidationError(w, "Некорректный "+field+": "+err.Error())
		return model.Identity{}, false
	}
	return id, true
}

// runtimeViolations — ошибки проверки результата вызова исполнителем.
var runtimeViolations = []error{
	runtime.ErrReadonlyModified,
	runtime.ErrForeignModification,
	runtime.ErrIllegalOwnerChange,
	runtime.ErrLamportsNotConserved,
	runtime.ErrBalanceOverflow,
}

// writeServiceError преобразует ошибку сервисного слоя в HTTP-ответ.
func writeServiceError(w http.ResponseWriter, logger *slog.Logger, err error) {
	if apierrors.WriteFailure(w, err) {
		return
	}

	switch {
	case errors.Is(err, service.ErrNotFound):
		apierrors.NotFound(w, err.Error())
		return
	case errors.Is(err, service.ErrUnverifiedDisabled), errors.Is(err, service.ErrFaucetDisabled):
		apierrors.NotFound(w, err.Error())
		return
	case errors.Is(err, service.ErrValidation):
		apierrors.ValidationError(w, err.Error())
		return
	case errors.Is(err, repository.ErrDisabled):
		apierrors.IndexDisabled(w, err.Error())
		return
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		apierrors.InternalError(w, "Запрос отменён")
		return
	}
	for _, v := range runtimeViolations {
		if errors.Is(err, v) {
			apierrors.RuntimeViolation(w, err.Error())
			return
		}
	}

	logger.Error("Внутренняя ошибка", slog.String("error", err.Error()))
	apierrors.InternalError(w, "Внутренняя ошибка сервера")
}
