package program

import (
	"github.com/zk-Lokomotive/zkl-sui-sol/internal/address"
	"github.com/zk-Lokomotive/zkl-sui-sol/internal/codec"
	"github.com/zk-Lokomotive/zkl-sui-sol/internal/domain/failure"
	"github.com/zk-Lokomotive/zkl-sui-sol/internal/domain/model"
	"github.com/zk-Lokomotive/zkl-sui-sol/internal/runtime"
)

// EnsureExists проверяет, что handle — аккаунт по вычисленному адресу,
// и выделяет под него size байт, если место ещё не выделено.
// Возвращает true, если выделение произошло в этом вызове.
func (p *Program) EnsureExists(payer, system, h *runtime.AccountHandle, computed address.Derived, size int) (bool, error) {
	if h.Key != computed.Address {
		return false, failure.New(failure.ErrAllocationFailed, "аккаунт записи %s, вычислен %s", h.Key, computed.Address)
	}

	if !h.IsEmpty() {
		if h.Owner != p.id {
			return false, failure.New(failure.ErrAllocationFailed, "аккаунт %s принадлежит %s", h.Key, h.Owner)
		}
		if len(h.Data) != size {
			return false, failure.New(failure.ErrAllocationFailed, "размер аккаунта %d, ожидается %d", len(h.Data), size)
		}
		return false, nil
	}

	if system.Key != runtime.SystemProgramID {
		return false, failure.New(failure.ErrAllocationFailed, "вместо системной программы передан %s", system.Key)
	}
	if err := p.allocator.Allocate(payer, h, size, p.id); err != nil {
		return false, failure.Wrap(failure.ErrAllocationFailed, err, "выделение %d байт под %s", size, h.Key)
	}
	return true, nil
}

// LoadTransfer декодирует TransferRecord из данных аккаунта.
// Свежевыделенный аккаунт даёт пустую запись.
func LoadTransfer(h *runtime.AccountHandle) (model.TransferRecord, error) {
	rec, err := codec.DecodeTransferRecord(h.Data)
	if err != nil {
		return model.TransferRecord{}, failure.Wrap(failure.ErrCorruptRecord, err, "аккаунт %s", h.Key)
	}
	return rec, nil
}

// PersistTransfer кодирует запись и заменяет данные аккаунта целиком.
// При ошибке данные аккаунта не меняются.
func PersistTransfer(h *runtime.AccountHandle, rec model.TransferRecord) error {
	enc, err := codec.EncodeTransferRecord(rec)
	if err != nil {
		return failure.Wrap(failure.ErrInvalidEncoding, err, "кодирование записи")
	}
	return replaceData(h, enc)
}

// LoadMetadata декодирует FileMetadataRecord из данных аккаунта.
func LoadMetadata(h *runtime.AccountHandle) (model.FileMetadataRecord, error) {
	rec, err := codec.DecodeFileMetadataRecord(h.Data)
	if err != nil {
		return model.FileMetadataRecord{}, failure.Wrap(failure.ErrCorruptRecord, err, "аккаунт %s", h.Key)
	}
	return rec, nil
}

// PersistMetadata кодирует запись метаданных и заменяет данные аккаунта.
func PersistMetadata(h *runtime.AccountHandle, rec model.FileMetadataRecord) error {
	enc, err := codec.EncodeFileMetadataRecord(rec)
	if err != nil {
		return failure.Wrap(failure.ErrInvalidEncoding, err, "кодирование метаданных")
	}
	return replaceData(h, enc)
}

// replaceData собирает новые данные полного размера и только затем
// подставляет их в handle.
func replaceData(h *runtime.AccountHandle, enc []byte) error {
	if len(enc) > len(h.Data) {
		return failure.New(failure.ErrAllocationFailed, "запись %d байт не помещается в аккаунт %d байт", len(enc), len(h.Data))
	}
	buf := make([]byte, len(h.Data))
	copy(buf, enc)
	h.Data = buf
	return nil
}
