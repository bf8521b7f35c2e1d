// Пакет runtime — среда исполнения программы: загрузка аккаунтов,
// блокировки, выделение места под записи и атомарный коммит.
//
// Программа получает упорядоченный список AccountHandle и меняет их
// в памяти. Изменения попадают в хранилище только если вызов завершился
// без ошибки и прошёл проверки Executor.
package runtime

import (
	"bytes"

	"github.com/zk-Lokomotive/zkl-sui-sol/internal/domain/model"
)

// SystemProgramID — идентификатор системной программы (нулевой ключ).
// Владеет всеми аккаунтами без данных.
var SystemProgramID = model.Identity{}

// AccountMeta — описание аккаунта в запросе: адрес и флаги доступа.
type AccountMeta struct {
	Key        model.Identity `json:"address"`
	IsSigner   bool           `json:"is_signer"`
	IsWritable bool           `json:"is_writable"`
}

// AccountHandle — загруженный аккаунт, доступный программе на время вызова.
type AccountHandle struct {
	Key        model.Identity
	IsSigner   bool
	IsWritable bool
	Lamports   uint64
	Owner      model.Identity
	Data       []byte
}

// IsEmpty проверяет, что у аккаунта нет данных и он принадлежит
// системной программе (место ещё не выделено).
func (h *AccountHandle) IsEmpty() bool {
	return len(h.Data) == 0 && h.Owner == SystemProgramID
}

// Account возвращает сохраняемое представление аккаунта.
func (h *AccountHandle) Account() *model.Account {
	return &model.Account{
		Address:  h.Key,
		Lamports: h.Lamports,
		Owner:    h.Owner,
		Data:     append([]byte(nil), h.Data...),
	}
}

// handleFromAccount строит handle по сохранённому аккаунту.
// acc == nil — аккаунт не существует.
func handleFromAccount(key model.Identity, acc *model.Account) *AccountHandle {
	h := &AccountHandle{Key: key, Owner: SystemProgramID}
	if acc != nil {
		h.Lamports = acc.Lamports
		h.Owner = acc.Owner
		h.Data = append([]byte(nil), acc.Data...)
	}
	return h
}

// snapshot — состояние handle до вызова программы.
type snapshot struct {
	lamports uint64
	owner    model.Identity
	data     []byte
}

func (h *AccountHandle) snapshot() snapshot {
	return snapshot{
		lamports: h.Lamports,
		owner:    h.Owner,
		data:     append([]byte(nil), h.Data...),
	}
}

func (s snapshot) changed(h *AccountHandle) bool {
	return s.lamports != h.Lamports || s.owner != h.Owner || !bytes.Equal(s.data, h.Data)
}

func (s snapshot) isEmpty() bool {
	return len(s.data) == 0 && s.owner == SystemProgramID
}
