package runtime

import (
	"bytes"
	"slices"
	"sync"

	"github.com/zk-Lokomotive/zkl-sui-sol/internal/domain/model"
)

// lockTable — мьютексы по адресам аккаунтов.
// Записи удаляются, когда ими никто не пользуется.
type lockTable struct {
	mu    sync.Mutex
	locks map[model.Identity]*addrLock
}

type addrLock struct {
	mu   sync.Mutex
	refs int
}

func newLockTable() *lockTable {
	return &lockTable{locks: make(map[model.Identity]*addrLock)}
}

// acquire блокирует все адреса в порядке возрастания и возвращает
// функцию освобождения. Повторы в keys допускаются.
func (t *lockTable) acquire(keys []model.Identity) func() {
	sorted := uniqueSorted(keys)

	held := make([]*addrLock, 0, len(sorted))
	for _, k := range sorted {
		t.mu.Lock()
		l, ok := t.locks[k]
		if !ok {
			l = &addrLock{}
			t.locks[k] = l
		}
		l.refs++
		t.mu.Unlock()

		l.mu.Lock()
		held = append(held, l)
	}

	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].mu.Unlock()
		}
		t.mu.Lock()
		for i, l := range held {
			l.refs--
			if l.refs == 0 {
				delete(t.locks, sorted[i])
			}
		}
		t.mu.Unlock()
	}
}

// size возвращает число адресов в таблице.
func (t *lockTable) size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.locks)
}

func uniqueSorted(keys []model.Identity) []model.Identity {
	out := slices.Clone(keys)
	slices.SortFunc(out, func(a, b model.Identity) int {
		return bytes.Compare(a[:], b[:])
	})
	return slices.Compact(out)
}
