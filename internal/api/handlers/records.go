// records.go — чтение записей передач и метаданных, производные адреса,
// указатель индекса получателей.
package handlers

import (
	"log/slog"
	"net/http"

	"github.com/zk-Lokomotive/zkl-sui-sol/internal/api/generated"
	"github.com/zk-Lokomotive/zkl-sui-sol/internal/domain/model"
	"github.com/zk-Lokomotive/zkl-sui-sol/internal/service"
)

// RecordsHandler — обработчик endpoints чтения записей.
type RecordsHandler struct {
	svc    *service.ReceiverService
	logger *slog.Logger
}

// NewRecordsHandler создаёт обработчик записей.
func NewRecordsHandler(svc *service.ReceiverService, logger *slog.Logger) *RecordsHandler {
	return &RecordsHandler{
		svc:    svc,
		logger: logger.With(slog.String("component", "records_handler")),
	}
}

// GetTransfer обрабатывает GET /api/v1/transfers/{recipient}.
func (h *RecordsHandler) GetTransfer(w http.ResponseWriter, r *http.Request, recipient generated.Recipient) {
	id, ok := parseIdentity(w, "recipient", recipient)
	if !ok {
		return
	}

	rec, derived, err := h.svc.GetTransfer(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, generated.TransferRecordResponse{
		Address: derived.Address.String(),
		Bump:    derived.Bump,
		Record:  mapTransferRecord(*rec),
	})
}

// GetMetadata обрабатывает GET /api/v1/metadata/{message_id}.
func (h *RecordsHandler) GetMetadata(w http.ResponseWriter, r *http.Request, messageId generated.MessageId) {
	id, ok := parseIdentity(w, "message_id", messageId)
	if !ok {
		return
	}

	rec, derived, err := h.svc.GetMetadata(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, generated.MetadataRecordResponse{
		Address: derived.Address.String(),
		Bump:    derived.Bump,
		Record:  mapMetadataRecord(*rec),
	})
}

// DeriveAddress обрабатывает GET /api/v1/addresses/{namespace}/{key}.
func (h *RecordsHandler) DeriveAddress(w http.ResponseWriter, r *http.Request, namespace generated.Namespace, key generated.Key) {
	id, ok := parseIdentity(w, "key", key)
	if !ok {
		return
	}

	derived, err := h.svc.DeriveAddress(string(namespace), id)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, generated.DerivedAddress{
		Namespace: string(namespace),
		Key:       id.String(),
		Address:   derived.Address.String(),
		Bump:      derived.Bump,
		ProgramId: h.svc.ProgramID().String(),
	})
}

// GetLatestForRecipient обрабатывает GET /api/v1/recipients/{recipient}/latest.
func (h *RecordsHandler) GetLatestForRecipient(w http.ResponseWriter, r *http.Request, recipient generated.Recipient) {
	id, ok := parseIdentity(w, "recipient", recipient)
	if !ok {
		return
	}

	p, err := h.svc.LatestForRecipient(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, generated.RecipientPointer{
		Recipient:     p.Recipient.String(),
		Namespace:     p.Namespace,
		RecordAddress: p.RecordAddress.String(),
		Sequence:      p.Sequence,
		Timestamp:     p.Timestamp,
		UpdatedAt:     p.UpdatedAt,
	})
}

func mapTransferRecord(rec model.TransferRecord) generated.TransferRecord {
	return generated.TransferRecord{
		ContentLocator: rec.ContentLocator,
		Recipient:      rec.Recipient.String(),
		Sender:         rec.Sender.String(),
		CreatedAt:      rec.CreatedAt,
	}
}

func mapMetadataRecord(rec model.FileMetadataRecord) generated.FileMetadataRecord {
	return generated.FileMetadataRecord{
		Id:             rec.ID.String(),
		ContentLocator: rec.ContentLocator,
		OriginalSender: rec.OriginalSender.String(),
	}
}
