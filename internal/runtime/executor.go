package runtime

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/zk-Lokomotive/zkl-sui-sol/internal/domain/model"
	"github.com/zk-Lokomotive/zkl-sui-sol/internal/storage/accounts"
	"github.com/zk-Lokomotive/zkl-sui-sol/internal/storage/wal"
)

// Ошибки проверки результата вызова.
var (
	// ErrReadonlyModified — изменён аккаунт без флага записи
	ErrReadonlyModified = errors.New("изменён аккаунт, доступный только для чтения")
	// ErrForeignModification — изменены данные или баланс чужого аккаунта
	ErrForeignModification = errors.New("изменён аккаунт, не принадлежащий программе")
	// ErrIllegalOwnerChange — смена владельца вне выделения места
	ErrIllegalOwnerChange = errors.New("недопустимая смена владельца аккаунта")
	// ErrLamportsNotConserved — сумма балансов изменилась
	ErrLamportsNotConserved = errors.New("сумма балансов аккаунтов не сохранилась")
	// ErrBalanceOverflow — переполнение баланса
	ErrBalanceOverflow = errors.New("переполнение баланса аккаунта")
)

// executorCommitsTotal — счётчик коммитов аккаунтов.
var executorCommitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "tr_executor_commits_total",
	Help: "Общее количество коммитов аккаунтов по операции и результату.",
}, []string{"operation", "result"})

// AccountStore — хранилище аккаунтов.
// Read возвращает ошибку, оборачивающую accounts.ErrNotFound, для
// отсутствующего аккаунта.
type AccountStore interface {
	Read(addr model.Identity) (*model.Account, error)
	Write(acc *model.Account) error
	Delete(addr model.Identity) error
}

// Func — тело вызова: получает handle в порядке AccountMeta.
// Повторяющиеся адреса указывают на один и тот же handle.
type Func func(ctx context.Context, accounts []*AccountHandle) error

// Result — итог успешного вызова.
type Result struct {
	// TransactionID — идентификатор WAL-транзакции; пусто, если ничего не изменилось
	TransactionID string
	// Modified — адреса изменённых аккаунтов
	Modified []model.Identity
}

// Executor — исполнитель вызовов программы.
// Вызовы с непересекающимися аккаунтами выполняются параллельно,
// с общими аккаунтами — последовательно.
type Executor struct {
	programID model.Identity
	store     AccountStore
	wal       *wal.WAL
	locks     *lockTable
	logger    *slog.Logger
}

// NewExecutor создаёт исполнитель для программы programID.
func NewExecutor(programID model.Identity, store AccountStore, w *wal.WAL, logger *slog.Logger) *Executor {
	return &Executor{
		programID: programID,
		store:     store,
		wal:       w,
		locks:     newLockTable(),
		logger:    logger.With(slog.String("component", "executor")),
	}
}

// ProgramID возвращает идентификатор исполняемой программы.
func (e *Executor) ProgramID() model.Identity {
	return e.programID
}

// Execute загружает аккаунты, выполняет fn и атомарно сохраняет
// изменения. Если fn вернула ошибку, она возвращается без изменений
// и ни один аккаунт не записывается.
func (e *Executor) Execute(ctx context.Context, metas []AccountMeta, fn Func) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	keys := make([]model.Identity, len(metas))
	for i, m := range metas {
		keys[i] = m.Key
	}
	release := e.locks.acquire(keys)
	defer release()

	handles := make(map[model.Identity]*AccountHandle, len(metas))
	loaded := make(map[model.Identity]*model.Account, len(metas))
	order := make([]model.Identity, 0, len(metas))
	list := make([]*AccountHandle, len(metas))

	for i, m := range metas {
		h, ok := handles[m.Key]
		if !ok {
			acc, err := e.load(m.Key)
			if err != nil {
				return nil, err
			}
			loaded[m.Key] = acc
			h = handleFromAccount(m.Key, acc)
			handles[m.Key] = h
			order = append(order, m.Key)
		}
		h.IsSigner = h.IsSigner || m.IsSigner
		h.IsWritable = h.IsWritable || m.IsWritable
		list[i] = h
	}

	snapshots := make(map[model.Identity]snapshot, len(handles))
	for k, h := range handles {
		snapshots[k] = h.snapshot()
	}

	if err := fn(ctx, list); err != nil {
		return nil, err
	}

	modified, err := e.verify(order, handles, snapshots)
	if err != nil {
		e.logger.Warn("Результат вызова отклонён",
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	if len(modified) == 0 {
		return &Result{}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	preImages := make([]wal.PreImage, 0, len(modified))
	writes := make([]*model.Account, 0, len(modified))
	now := time.Now().UTC()
	for _, k := range modified {
		preImages = append(preImages, wal.PreImage{Address: k, Account: loaded[k]})
		acc := handles[k].Account()
		acc.UpdatedAt = now
		writes = append(writes, acc)
	}

	txID, err := e.commit(wal.OpAccountCommit, preImages, writes)
	if err != nil {
		return nil, err
	}
	return &Result{TransactionID: txID, Modified: modified}, nil
}

// verify проверяет изменения handle относительно снимков и возвращает
// изменённые адреса в порядке первого появления.
func (e *Executor) verify(order []model.Identity, handles map[model.Identity]*AccountHandle, snapshots map[model.Identity]snapshot) ([]model.Identity, error) {
	var (
		before, after uint64
		modified      []model.Identity
	)

	for _, k := range order {
		h := handles[k]
		s := snapshots[k]
		before += s.lamports
		after += h.Lamports

		if !s.changed(h) {
			continue
		}
		if !h.IsWritable {
			return nil, fmt.Errorf("%s: %w", k, ErrReadonlyModified)
		}

		allocation := s.isEmpty() && h.Owner == e.programID
		if s.owner != h.Owner && !allocation {
			return nil, fmt.Errorf("%s: %w", k, ErrIllegalOwnerChange)
		}
		if !bytes.Equal(s.data, h.Data) && h.Owner != e.programID {
			return nil, fmt.Errorf("%s: %w", k, ErrForeignModification)
		}
		if h.Lamports < s.lamports {
			debitable := s.owner == e.programID || (s.owner == SystemProgramID && h.IsSigner)
			if !debitable {
				return nil, fmt.Errorf("%s: %w", k, ErrForeignModification)
			}
		}
		modified = append(modified, k)
	}

	if before != after {
		return nil, fmt.Errorf("до %d, после %d: %w", before, after, ErrLamportsNotConserved)
	}
	return modified, nil
}

// commit записывает аккаунты под защитой WAL. При ошибке записи
// уже записанные аккаунты восстанавливаются из pre-image.
func (e *Executor) commit(op wal.OperationType, preImages []wal.PreImage, writes []*model.Account) (string, error) {
	entry, err := e.wal.StartTransaction(op, preImages)
	if err != nil {
		executorCommitsTotal.WithLabelValues(string(op), "error").Inc()
		return "", fmt.Errorf("начало WAL-транзакции: %w", err)
	}

	for _, acc := range writes {
		if err := e.store.Write(acc); err != nil {
			executorCommitsTotal.WithLabelValues(string(op), "error").Inc()
			if rerr := e.wal.Restore(entry, e.store); rerr != nil {
				e.logger.Error("Не удалось восстановить аккаунты после ошибки коммита",
					slog.String("tx_id", entry.TransactionID),
					slog.String("error", rerr.Error()),
				)
			}
			return "", fmt.Errorf("запись аккаунта %s: %w", acc.Address, err)
		}
	}

	// Незавершённая запись откатится при рестарте, поэтому успех
	// возвращается только после Commit.
	if err := e.wal.Commit(entry.TransactionID); err != nil {
		executorCommitsTotal.WithLabelValues(string(op), "error").Inc()
		if rerr := e.wal.Restore(entry, e.store); rerr != nil {
			e.logger.Error("Не удалось восстановить аккаунты после ошибки коммита",
				slog.String("tx_id", entry.TransactionID),
				slog.String("error", rerr.Error()),
			)
		}
		return "", fmt.Errorf("завершение WAL-транзакции: %w", err)
	}

	executorCommitsTotal.WithLabelValues(string(op), "success").Inc()
	return entry.TransactionID, nil
}

// Load читает аккаунт. Для отсутствующего аккаунта возвращает
// ошибку, оборачивающую accounts.ErrNotFound.
func (e *Executor) Load(ctx context.Context, addr model.Identity) (*model.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	release := e.locks.acquire([]model.Identity{addr})
	defer release()

	return e.store.Read(addr)
}

// Airdrop зачисляет lamports на аккаунт, создавая его при отсутствии.
func (e *Executor) Airdrop(ctx context.Context, addr model.Identity, lamports uint64) (*model.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	release := e.locks.acquire([]model.Identity{addr})
	defer release()

	prev, err := e.load(addr)
	if err != nil {
		return nil, err
	}

	next := handleFromAccount(addr, prev).Account()
	if next.Lamports > math.MaxUint64-lamports {
		return nil, fmt.Errorf("%s: %w", addr, ErrBalanceOverflow)
	}
	next.Lamports += lamports
	next.UpdatedAt = time.Now().UTC()

	if _, err := e.commit(wal.OpAirdrop, []wal.PreImage{{Address: addr, Account: prev}}, []*model.Account{next}); err != nil {
		return nil, err
	}

	e.logger.Info("Баланс аккаунта пополнен",
		slog.String("address", addr.String()),
		slog.Uint64("lamports", lamports),
		slog.Uint64("balance", next.Lamports),
	)
	return next, nil
}

// Install записывает служебный аккаунт целиком, заменяя прежнее
// содержимое. Баланс существующего аккаунта сохраняется.
func (e *Executor) Install(ctx context.Context, acc *model.Account) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	release := e.locks.acquire([]model.Identity{acc.Address})
	defer release()

	prev, err := e.load(acc.Address)
	if err != nil {
		return err
	}

	next := acc.Clone()
	if prev != nil {
		next.Lamports = prev.Lamports
	}
	next.UpdatedAt = time.Now().UTC()

	if _, err := e.commit(wal.OpInstall, []wal.PreImage{{Address: acc.Address, Account: prev}}, []*model.Account{next}); err != nil {
		return err
	}

	e.logger.Info("Служебный аккаунт установлен",
		slog.String("address", acc.Address.String()),
		slog.String("owner", acc.Owner.String()),
		slog.Int("size", len(acc.Data)),
	)
	return nil
}

// Recover откатывает незавершённые коммиты. Вызывается при старте
// до приёма запросов.
func (e *Executor) Recover() (int, error) {
	pending, err := e.wal.RecoverPending()
	if err != nil {
		return 0, err
	}

	restored := 0
	for _, entry := range pending {
		if err := e.wal.Restore(entry, e.store); err != nil {
			return restored, fmt.Errorf("восстановление транзакции %s: %w", entry.TransactionID, err)
		}
		restored++
	}
	return restored, nil
}

// load читает аккаунт; nil без ошибки — аккаунт не существует.
func (e *Executor) load(addr model.Identity) (*model.Account, error) {
	acc, err := e.store.Read(addr)
	if err != nil {
		if errors.Is(err, accounts.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("загрузка аккаунта %s: %w", addr, err)
	}
	return acc, nil
}
