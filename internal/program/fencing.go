package program

import (
	"github.com/zk-Lokomotive/zkl-sui-sol/internal/domain/failure"
	"github.com/zk-Lokomotive/zkl-sui-sol/internal/domain/model"
)

// fenceTransfer решает, перезаписывать ли TransferRecord.
// Более старое сообщение и другое сообщение с той же меткой времени
// отклоняются, точный повтор принимается без записи.
func (p *Program) fenceTransfer(stored, incoming model.TransferRecord) (bool, error) {
	if !p.fencing || stored.IsEmpty() {
		return true, nil
	}
	switch {
	case incoming.CreatedAt > stored.CreatedAt:
		return true, nil
	case incoming.CreatedAt < stored.CreatedAt:
		return false, failure.New(failure.ErrStaleMessage, "метка %d старше сохранённой %d", incoming.CreatedAt, stored.CreatedAt)
	case incoming == stored:
		return false, nil
	default:
		return false, failure.New(failure.ErrStaleMessage, "другое сообщение с меткой %d уже принято", incoming.CreatedAt)
	}
}

// fenceMetadata решает, перезаписывать ли FileMetadataRecord.
// Идентификатор сообщения уникален, поэтому допустим только точный повтор.
func (p *Program) fenceMetadata(stored, incoming model.FileMetadataRecord) (bool, error) {
	if !p.fencing || stored.IsEmpty() {
		return true, nil
	}
	if stored == incoming {
		return false, nil
	}
	return false, failure.New(failure.ErrStaleMessage, "сообщение %s уже принято с другим содержимым", incoming.ID)
}
