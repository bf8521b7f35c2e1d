package model

import "time"

// MaxContentLocatorLen — максимальная длина URL содержимого (в байтах).
// Ограничивает размер аккаунта записи, который выделяется один раз.
const MaxContentLocatorLen = 512

// TransferRecord — запись о последней принятой передаче для получателя.
// Хранится в аккаунте с адресом ("file_transfer", recipient) и
// перезаписывается каждым следующим сообщением.
type TransferRecord struct {
	// ContentLocator — URL содержимого во внешнем хранилище (например, Arweave)
	ContentLocator string `json:"content_locator"`

	// Recipient — получатель; всегда совпадает с ключом аккаунта получателя
	Recipient Identity `json:"recipient"`

	// Sender — адрес отправителя в исходной сети
	Sender Identity `json:"sender"`

	// CreatedAt — метка времени сообщения (unix-секунды исходной сети)
	CreatedAt uint64 `json:"created_at"`
}

// IsEmpty проверяет, что запись ещё не заполнялась (свежевыделенный аккаунт).
func (r TransferRecord) IsEmpty() bool {
	return r == TransferRecord{}
}

// FileMetadataRecord — запись о конкретном сообщении, адресуемая
// идентификатором сообщения ("file_metadata", id).
type FileMetadataRecord struct {
	ID             Identity `json:"id"`
	ContentLocator string   `json:"content_locator"`
	OriginalSender Identity `json:"original_sender"`
}

// IsEmpty проверяет, что запись ещё не заполнялась.
func (r FileMetadataRecord) IsEmpty() bool {
	return r == FileMetadataRecord{}
}

// TransferPayload — типизированное содержимое кросс-чейн сообщения,
// общее для позиционного извлечения и полей инструкции.
type TransferPayload struct {
	ContentLocator string
	Recipient      Identity
	Sender         Identity
	CreatedAt      uint64
}

// Record возвращает TransferRecord, соответствующий payload.
func (p TransferPayload) Record() TransferRecord {
	return TransferRecord{
		ContentLocator: p.ContentLocator,
		Recipient:      p.Recipient,
		Sender:         p.Sender,
		CreatedAt:      p.CreatedAt,
	}
}

// MetadataPayload — внутренний payload подтверждённого мостом сообщения.
// Recipient используется для проверки авторизации и индекса получателя,
// в FileMetadataRecord он не сохраняется.
type MetadataPayload struct {
	ID             Identity
	ContentLocator string
	OriginalSender Identity
	Recipient      Identity
}

// Record возвращает FileMetadataRecord, соответствующий payload.
func (p MetadataPayload) Record() FileMetadataRecord {
	return FileMetadataRecord{
		ID:             p.ID,
		ContentLocator: p.ContentLocator,
		OriginalSender: p.OriginalSender,
	}
}

// RecipientPointer — версионированный указатель "последняя запись
// для получателя" во внешнем индексе.
// Timestamp — время создания записи в секундах Unix: указатель
// продвигается только вперёд по этой шкале. Sequence — номер сообщения
// моста (0 для передач), справочно.
type RecipientPointer struct {
	Recipient     Identity  `json:"recipient"`
	Namespace     string    `json:"namespace"`
	RecordAddress Identity  `json:"record_address"`
	Sequence      uint64    `json:"sequence"`
	Timestamp     uint64    `json:"timestamp"`
	UpdatedAt     time.Time `json:"updated_at"`
}
