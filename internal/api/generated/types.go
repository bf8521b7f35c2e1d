// Пакет generated — типы и chi-маршрутизация HTTP API transfer-receiver
// в раскладке oapi-codegen (chi-server). Источник контракта — openapi.yaml
// в этом же пакете; при изменении контракта типы и маршруты обновляются
// вместе с ним.
package generated

import "time"

// Identity — 32-байтный идентификатор в base58.
type Identity = string

// Recipient — path-параметр получателя.
type Recipient = string

// Address — path-параметр адреса аккаунта.
type Address = string

// MessageId — path-параметр идентификатора сообщения.
type MessageId = string

// Namespace — path-параметр пространства имён адреса.
type Namespace string

// Допустимые значения Namespace.
const (
	NamespaceFileTransfer Namespace = "file_transfer"
	NamespaceFileMetadata Namespace = "file_metadata"
)

// Key — path-параметр ключа производного адреса.
type Key = string

// AccountMeta defines model for AccountMeta.
type AccountMeta struct {
	Address    Identity `json:"address"`
	IsSigner   bool     `json:"is_signer,omitempty"`
	IsWritable bool     `json:"is_writable,omitempty"`
}

// InstructionRequest defines model for InstructionRequest.
type InstructionRequest struct {
	Data     []byte        `json:"data"`
	Accounts []AccountMeta `json:"accounts"`
}

// MessageRequest defines model for MessageRequest.
type MessageRequest struct {
	Envelope []byte        `json:"envelope"`
	Accounts []AccountMeta `json:"accounts"`
}

// PayloadRequest defines model for PayloadRequest.
type PayloadRequest struct {
	Payload  []byte        `json:"payload"`
	Accounts []AccountMeta `json:"accounts"`
}

// TransferRecord defines model for TransferRecord.
type TransferRecord struct {
	ContentLocator string   `json:"content_locator"`
	Recipient      Identity `json:"recipient"`
	Sender         Identity `json:"sender"`
	CreatedAt      uint64   `json:"created_at"`
}

// FileMetadataRecord defines model for FileMetadataRecord.
type FileMetadataRecord struct {
	Id             Identity `json:"id"`
	ContentLocator string   `json:"content_locator"`
	OriginalSender Identity `json:"original_sender"`
}

// SubmissionOperation defines model for Submission.Operation.
type SubmissionOperation string

// Допустимые значения SubmissionOperation.
const (
	SubmissionOperationReceiveTransfer SubmissionOperation = "receive_transfer"
	SubmissionOperationReceiveMessage  SubmissionOperation = "receive_message"
)

// Submission defines model for Submission.
type Submission struct {
	Operation     SubmissionOperation `json:"operation"`
	RecordAddress Identity            `json:"record_address"`
	Bump          uint8               `json:"bump"`
	Allocated     bool                `json:"allocated"`
	Applied       bool                `json:"applied"`
	Recipient     Identity            `json:"recipient"`
	Sequence      uint64              `json:"sequence"`
	Timestamp     uint64              `json:"timestamp"`
	TransactionId *string             `json:"transaction_id,omitempty"`
	Transfer      *TransferRecord     `json:"transfer,omitempty"`
	Metadata      *FileMetadataRecord `json:"metadata,omitempty"`
}

// TransferRecordResponse defines model for TransferRecordResponse.
type TransferRecordResponse struct {
	Address Identity       `json:"address"`
	Bump    uint8          `json:"bump"`
	Record  TransferRecord `json:"record"`
}

// MetadataRecordResponse defines model for MetadataRecordResponse.
type MetadataRecordResponse struct {
	Address Identity           `json:"address"`
	Bump    uint8              `json:"bump"`
	Record  FileMetadataRecord `json:"record"`
}

// DerivedAddress defines model for DerivedAddress.
type DerivedAddress struct {
	Namespace string   `json:"namespace"`
	Key       Identity `json:"key"`
	Address   Identity `json:"address"`
	Bump      uint8    `json:"bump"`
	ProgramId Identity `json:"program_id"`
}

// AirdropRequest defines model for AirdropRequest.
type AirdropRequest struct {
	Lamports uint64 `json:"lamports"`
}

// AccountInfo defines model for AccountInfo.
type AccountInfo struct {
	Address  Identity `json:"address"`
	Lamports uint64   `json:"lamports"`
	Owner    Identity `json:"owner"`
	Size     int      `json:"size"`
	Data     []byte   `json:"data,omitempty"`
}

// RecipientPointer defines model for RecipientPointer.
type RecipientPointer struct {
	Recipient     Identity  `json:"recipient"`
	Namespace     string    `json:"namespace"`
	RecordAddress Identity  `json:"record_address"`
	Sequence      uint64    `json:"sequence"`
	Timestamp     uint64    `json:"timestamp"`
	UpdatedAt     time.Time `json:"updated_at"`
}
