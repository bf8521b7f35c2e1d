package codec

import (
	"fmt"

	"github.com/zk-Lokomotive/zkl-sui-sol/internal/domain/model"
)

// EncodeInstruction сериализует инструкцию:
// [u8 tag][string content_locator][32 recipient][32 sender][u64 created_at].
func EncodeInstruction(env model.InstructionEnvelope) ([]byte, error) {
	if env.Kind != model.InstructionReceiveFileTransfer {
		return nil, fmt.Errorf("тег %d: %w", env.Kind, ErrUnknownVariant)
	}

	e := newEncoder()
	e.u8(uint8(env.Kind))
	if err := encodeTransferFields(e, env.ReceiveFileTransfer); err != nil {
		return nil, err
	}
	return e.bytes(), nil
}

// DecodeInstruction разбирает инструкцию. Любой тег, кроме определённых,
// и лишние байты в конце — ошибка декодирования.
func DecodeInstruction(data []byte) (model.InstructionEnvelope, error) {
	d := newDecoder(data)

	tag, err := d.u8("tag")
	if err != nil {
		return model.InstructionEnvelope{}, err
	}

	switch model.InstructionKind(tag) {
	case model.InstructionReceiveFileTransfer:
		p, err := decodeTransferFields(d)
		if err != nil {
			return model.InstructionEnvelope{}, err
		}
		if err := d.finish(); err != nil {
			return model.InstructionEnvelope{}, err
		}
		return model.NewReceiveFileTransfer(p), nil
	default:
		return model.InstructionEnvelope{}, fmt.Errorf("тег %d: %w", tag, ErrUnknownVariant)
	}
}

func encodeTransferFields(e *encoder, p model.TransferPayload) error {
	if err := e.str("content_locator", p.ContentLocator, model.MaxContentLocatorLen); err != nil {
		return err
	}
	e.identity(p.Recipient)
	e.identity(p.Sender)
	e.u64(p.CreatedAt)
	return nil
}

func decodeTransferFields(d *decoder) (model.TransferPayload, error) {
	var (
		p   model.TransferPayload
		err error
	)
	if p.ContentLocator, err = d.str("content_locator", model.MaxContentLocatorLen); err != nil {
		return p, err
	}
	if p.Recipient, err = d.identity("recipient"); err != nil {
		return p, err
	}
	if p.Sender, err = d.identity("sender"); err != nil {
		return p, err
	}
	if p.CreatedAt, err = d.u64("created_at"); err != nil {
		return p, err
	}
	return p, nil
}
