// receive.go — приём инструкций, подтверждённых сообщений и сырых буферов.
package handlers

import (
	"log/slog"
	"net/http"

	apierrors "github.com/zk-Lokomotive/zkl-sui-sol/internal/api/errors"
	"github.com/zk-Lokomotive/zkl-sui-sol/internal/api/generated"
	"github.com/zk-Lokomotive/zkl-sui-sol/internal/api/middleware"
	"github.com/zk-Lokomotive/zkl-sui-sol/internal/runtime"
	"github.com/zk-Lokomotive/zkl-sui-sol/internal/service"
)

// maxAccounts — верхняя граница списка аккаунтов вызова.
const maxAccounts = 16

// ReceiveHandler — обработчик endpoints приёма.
type ReceiveHandler struct {
	svc    *service.ReceiverService
	logger *slog.Logger
}

// NewReceiveHandler создаёт обработчик приёма.
func NewReceiveHandler(svc *service.ReceiverService, logger *slog.Logger) *ReceiveHandler {
	return &ReceiveHandler{
		svc:    svc,
		logger: logger.With(slog.String("component", "receive_handler")),
	}
}

// SubmitInstruction обрабатывает POST /api/v1/instructions.
func (h *ReceiveHandler) SubmitInstruction(w http.ResponseWriter, r *http.Request) {
	var req generated.InstructionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	metas, ok := accountMetas(w, req.Accounts)
	if !ok || !checkSigners(w, r, metas) {
		return
	}

	sub, err := h.svc.SubmitInstruction(r.Context(), metas, req.Data)
	h.respond(w, r, sub, err)
}

// SubmitMessage обрабатывает POST /api/v1/messages.
func (h *ReceiveHandler) SubmitMessage(w http.ResponseWriter, r *http.Request) {
	var req generated.MessageRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	metas, ok := accountMetas(w, req.Accounts)
	if !ok || !checkSigners(w, r, metas) {
		return
	}

	sub, err := h.svc.SubmitMessage(r.Context(), metas, req.Envelope)
	h.respond(w, r, sub, err)
}

// SubmitPayload обрабатывает POST /api/v1/payloads.
func (h *ReceiveHandler) SubmitPayload(w http.ResponseWriter, r *http.Request) {
	var req generated.PayloadRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	metas, ok := accountMetas(w, req.Accounts)
	if !ok || !checkSigners(w, r, metas) {
		return
	}

	sub, err := h.svc.SubmitPayload(r.Context(), metas, req.Payload)
	h.respond(w, r, sub, err)
}

func (h *ReceiveHandler) respond(w http.ResponseWriter, r *http.Request, sub *service.Submission, err error) {
	if err != nil {
		h.logger.Debug("Вызов отклонён",
			slog.String("path", r.URL.Path),
			slog.String("subject", middleware.SubjectFromContext(r.Context())),
			slog.String("error", err.Error()),
		)
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSubmission(sub))
}

// accountMetas преобразует список аккаунтов запроса; при ошибке пишет 400.
func accountMetas(w http.ResponseWriter, in []generated.AccountMeta) ([]runtime.AccountMeta, bool) {
	if len(in) == 0 || len(in) > maxAccounts {
		apierrors.ValidationError(w, "Список аккаунтов должен содержать от 1 до 16 элементов")
		return nil, false
	}
	metas := make([]runtime.AccountMeta, len(in))
	for i, m := range in {
		key, ok := parseIdentity(w, "адрес аккаунта", m.Address)
		if !ok {
			return nil, false
		}
		metas[i] = runtime.AccountMeta{Key: key, IsSigner: m.IsSigner, IsWritable: m.IsWritable}
	}
	return metas, true
}

// checkSigners при включённой аутентификации допускает подписантом только
// аккаунт субъекта токена (sub — base58-адрес). Иначе любой держатель
// transfers:write мог бы оплачивать аренду с чужого системного аккаунта.
// Без аутентификации подпись остаётся утверждением вызывающего.
func checkSigners(w http.ResponseWriter, r *http.Request, metas []runtime.AccountMeta) bool {
	subject := middleware.SubjectFromContext(r.Context())
	if subject == "" {
		return true
	}
	for _, m := range metas {
		if m.IsSigner && m.Key.String() != subject {
			apierrors.Forbidden(w, "Подписантом может быть только аккаунт субъекта токена")
			return false
		}
	}
	return true
}

func mapSubmission(sub *service.Submission) generated.Submission {
	rc := sub.Receipt
	out := generated.Submission{
		Operation:     generated.SubmissionOperation(rc.Operation),
		RecordAddress: rc.RecordAddress.String(),
		Bump:          rc.Bump,
		Allocated:     rc.Allocated,
		Applied:       rc.Applied,
		Recipient:     rc.Recipient.String(),
		Sequence:      rc.Sequence,
		Timestamp:     rc.Timestamp,
	}
	if sub.TransactionID != "" {
		txID := sub.TransactionID
		out.TransactionId = &txID
	}
	if rc.Transfer != nil {
		rec := mapTransferRecord(*rc.Transfer)
		out.Transfer = &rec
	}
	if rc.Metadata != nil {
		rec := mapMetadataRecord(*rc.Metadata)
		out.Metadata = &rec
	}
	return out
}
