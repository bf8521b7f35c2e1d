package codec

import (
	"fmt"

	"github.com/zk-Lokomotive/zkl-sui-sol/internal/domain/model"
)

// Размеры аккаунтов под записи. Строка занимает максимум, поэтому
// любая допустимая запись помещается в выделенное один раз место.
const (
	// TransferRecordSize = u32 + MaxContentLocatorLen + 32 + 32 + u64
	TransferRecordSize = 4 + model.MaxContentLocatorLen + 2*model.IdentitySize + 8
	// FileMetadataRecordSize = 32 + u32 + MaxContentLocatorLen + 32
	FileMetadataRecordSize = model.IdentitySize + 4 + model.MaxContentLocatorLen + model.IdentitySize
)

// Предельные размеры входящих буферов.
const (
	// MaxInstructionSize = tag + TransferRecordSize
	MaxInstructionSize = 1 + TransferRecordSize
	// MaxMetadataPayloadSize = type + FileMetadataRecordSize + 32 recipient
	MaxMetadataPayloadSize = 1 + FileMetadataRecordSize + model.IdentitySize
)

// metadataPayloadType — тег внутреннего payload сообщения моста.
const metadataPayloadType uint8 = 1

// EncodeTransferRecord сериализует TransferRecord (без выравнивания до размера аккаунта).
func EncodeTransferRecord(rec model.TransferRecord) ([]byte, error) {
	e := newEncoder()
	if err := e.str("content_locator", rec.ContentLocator, model.MaxContentLocatorLen); err != nil {
		return nil, err
	}
	e.identity(rec.Recipient)
	e.identity(rec.Sender)
	e.u64(rec.CreatedAt)
	return e.bytes(), nil
}

// DecodeTransferRecord разбирает TransferRecord из данных аккаунта.
// Обнулённый аккаунт даёт пустую запись; хвост допускается только нулевой.
func DecodeTransferRecord(data []byte) (model.TransferRecord, error) {
	d := newDecoder(data)
	var (
		rec model.TransferRecord
		err error
	)
	if rec.ContentLocator, err = d.str("content_locator", model.MaxContentLocatorLen); err != nil {
		return rec, err
	}
	if rec.Recipient, err = d.identity("recipient"); err != nil {
		return rec, err
	}
	if rec.Sender, err = d.identity("sender"); err != nil {
		return rec, err
	}
	if rec.CreatedAt, err = d.u64("created_at"); err != nil {
		return rec, err
	}
	if err := d.finishPadded(); err != nil {
		return rec, err
	}
	return rec, nil
}

// EncodeFileMetadataRecord сериализует FileMetadataRecord.
func EncodeFileMetadataRecord(rec model.FileMetadataRecord) ([]byte, error) {
	e := newEncoder()
	e.identity(rec.ID)
	if err := e.str("content_locator", rec.ContentLocator, model.MaxContentLocatorLen); err != nil {
		return nil, err
	}
	e.identity(rec.OriginalSender)
	return e.bytes(), nil
}

// DecodeFileMetadataRecord разбирает FileMetadataRecord из данных аккаунта.
func DecodeFileMetadataRecord(data []byte) (model.FileMetadataRecord, error) {
	d := newDecoder(data)
	var (
		rec model.FileMetadataRecord
		err error
	)
	if rec.ID, err = d.identity("id"); err != nil {
		return rec, err
	}
	if rec.ContentLocator, err = d.str("content_locator", model.MaxContentLocatorLen); err != nil {
		return rec, err
	}
	if rec.OriginalSender, err = d.identity("original_sender"); err != nil {
		return rec, err
	}
	if err := d.finishPadded(); err != nil {
		return rec, err
	}
	return rec, nil
}

// EncodeMetadataPayload сериализует внутренний payload сообщения моста:
// [u8 type=1][32 id][string content_locator][32 original_sender][32 recipient].
func EncodeMetadataPayload(p model.MetadataPayload) ([]byte, error) {
	e := newEncoder()
	e.u8(metadataPayloadType)
	e.identity(p.ID)
	if err := e.str("content_locator", p.ContentLocator, model.MaxContentLocatorLen); err != nil {
		return nil, err
	}
	e.identity(p.OriginalSender)
	e.identity(p.Recipient)
	return e.bytes(), nil
}

// DecodeMetadataPayload разбирает внутренний payload сообщения моста.
// Payload должен быть прочитан полностью.
func DecodeMetadataPayload(data []byte) (model.MetadataPayload, error) {
	d := newDecoder(data)
	var (
		p   model.MetadataPayload
		err error
	)

	typ, err := d.u8("payload_type")
	if err != nil {
		return p, err
	}
	if typ != metadataPayloadType {
		return p, fmt.Errorf("тип payload %d: %w", typ, ErrUnknownVariant)
	}
	if p.ID, err = d.identity("id"); err != nil {
		return p, err
	}
	if p.ContentLocator, err = d.str("content_locator", model.MaxContentLocatorLen); err != nil {
		return p, err
	}
	if p.OriginalSender, err = d.identity("original_sender"); err != nil {
		return p, err
	}
	if p.Recipient, err = d.identity("recipient"); err != nil {
		return p, err
	}
	if err := d.finish(); err != nil {
		return p, err
	}
	return p, nil
}
