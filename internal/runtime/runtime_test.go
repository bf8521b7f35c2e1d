package runtime

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/zk-Lokomotive/zkl-sui-sol/internal/domain/model"
	"github.com/zk-Lokomotive/zkl-sui-sol/internal/storage/accounts"
	"github.com/zk-Lokomotive/zkl-sui-sol/internal/storage/wal"
)

// testLogger возвращает логгер для тестов (вывод подавляется).
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

func key(b byte) model.Identity {
	var id model.Identity
	id[0] = b
	id[31] = 0x5a
	return id
}

var testProgram = key(0xF0)

// failingStore — хранилище, отказывающее в записи указанного адреса.
type failingStore struct {
	*accounts.Store
	failOn model.Identity
}

func (s *failingStore) Write(acc *model.Account) error {
	if acc.Address == s.failOn {
		return errors.New("диск заполнен")
	}
	return s.Store.Write(acc)
}

func newTestExecutor(t *testing.T) (*Executor, *accounts.Store, *wal.WAL) {
	t.Helper()
	store, err := accounts.New(t.TempDir(), testLogger())
	if err != nil {
		t.Fatalf("ошибка создания хранилища: %v", err)
	}
	w, err := wal.New(t.TempDir(), testLogger())
	if err != nil {
		t.Fatalf("ошибка создания WAL: %v", err)
	}
	return NewExecutor(testProgram, store, w, testLogger()), store, w
}

func fund(t *testing.T, e *Executor, addr model.Identity, lamports uint64) {
	t.Helper()
	if _, err := e.Airdrop(context.Background(), addr, lamports); err != nil {
		t.Fatalf("ошибка пополнения: %v", err)
	}
}

// TestRent_MinimumBalance проверяет формулу освобождения от ренты.
func TestRent_MinimumBalance(t *testing.T) {
	r := Rent{LamportsPerByteYear: DefaultLamportsPerByteYear}
	if got, want := r.MinimumBalance(0), uint64(128*3480*2); got != want {
		t.Errorf("ожидалось %d, получено %d", want, got)
	}
	if got, want := r.MinimumBalance(588), uint64((128+588)*3480*2); got != want {
		t.Errorf("ожидалось %d, получено %d", want, got)
	}
}

// TestSystemAllocator проверяет выделение места и отказы.
func TestSystemAllocator(t *testing.T) {
	alloc := NewSystemAllocator(Rent{LamportsPerByteYear: 10})
	need := alloc.Rent.MinimumBalance(16)

	newPair := func() (*AccountHandle, *AccountHandle) {
		payer := &AccountHandle{Key: key(1), IsSigner: true, IsWritable: true, Lamports: need * 2}
		target := &AccountHandle{Key: key(2), IsWritable: true}
		return payer, target
	}

	t.Run("успешное выделение", func(t *testing.T) {
		payer, target := newPair()
		if err := alloc.Allocate(payer, target, 16, testProgram); err != nil {
			t.Fatalf("ошибка выделения: %v", err)
		}
		if len(target.Data) != 16 || target.Owner != testProgram || target.Lamports != need {
			t.Errorf("неожиданное состояние аккаунта: %+v", target)
		}
		if payer.Lamports != need {
			t.Errorf("ожидался остаток %d, получено %d", need, payer.Lamports)
		}
	})

	t.Run("предварительно пополненный аккаунт", func(t *testing.T) {
		payer, target := newPair()
		target.Lamports = need - 5
		if err := alloc.Allocate(payer, target, 16, testProgram); err != nil {
			t.Fatalf("ошибка выделения: %v", err)
		}
		if payer.Lamports != need*2-5 {
			t.Errorf("плательщик должен доплатить 5, остаток %d", payer.Lamports)
		}
	})

	tests := []struct {
		name   string
		mutate func(payer, target *AccountHandle)
		size   int
		want   error
	}{
		{"недостаточно средств", func(p, _ *AccountHandle) { p.Lamports = need - 1 }, 16, ErrInsufficientFunds},
		{"плательщик без подписи", func(p, _ *AccountHandle) { p.IsSigner = false }, 16, ErrMissingSigner},
		{"плательщик только для чтения", func(p, _ *AccountHandle) { p.IsWritable = false }, 16, ErrNotWritable},
		{"цель только для чтения", func(_, tg *AccountHandle) { tg.IsWritable = false }, 16, ErrNotWritable},
		{"аккаунт уже выделен", func(_, tg *AccountHandle) { tg.Data = make([]byte, 16); tg.Owner = testProgram }, 16, ErrAccountInUse},
		{"нулевой размер", func(_, _ *AccountHandle) {}, 0, ErrInvalidSize},
		{"плательщик равен цели", func(p, tg *AccountHandle) { tg.Key = p.Key }, 16, ErrAccountInUse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payer, target := newPair()
			tt.mutate(payer, target)
			payerBefore, targetBefore := *payer, *target

			err := alloc.Allocate(payer, target, tt.size, testProgram)
			if !errors.Is(err, tt.want) {
				t.Fatalf("ожидалась ошибка %v, получена %v", tt.want, err)
			}
			if payer.Lamports != payerBefore.Lamports || target.Lamports != targetBefore.Lamports ||
				len(target.Data) != len(targetBefore.Data) || target.Owner != targetBefore.Owner {
				t.Error("handle изменены при ошибке выделения")
			}
		})
	}
}

// TestLockTable проверяет взаимоисключение и очистку таблицы.
func TestLockTable(t *testing.T) {
	lt := newLockTable()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// Одинаковый набор в разном порядке и с повторами
			keys := []model.Identity{key(1), key(2), key(1)}
			if i%2 == 0 {
				keys = []model.Identity{key(2), key(1)}
			}
			release := lt.acquire(keys)
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			release()
		}(i)
	}
	wg.Wait()

	if maxInside != 1 {
		t.Errorf("ожидался 1 вызов внутри секции, наблюдалось %d", maxInside)
	}
	if lt.size() != 0 {
		t.Errorf("таблица блокировок не очищена: %d", lt.size())
	}
}

// TestExecute_AllocatesAndCommits проверяет выделение и запись аккаунтов.
func TestExecute_AllocatesAndCommits(t *testing.T) {
	e, store, _ := newTestExecutor(t)
	payer, target := key(1), key(2)
	fund(t, e, payer, 1_000_000_000)

	alloc := NewSystemAllocator(Rent{LamportsPerByteYear: DefaultLamportsPerByteYear})
	metas := []AccountMeta{
		{Key: payer, IsSigner: true, IsWritable: true},
		{Key: target, IsWritable: true},
	}

	res, err := e.Execute(context.Background(), metas, func(_ context.Context, accs []*AccountHandle) error {
		if err := alloc.Allocate(accs[0], accs[1], 8, testProgram); err != nil {
			return err
		}
		copy(accs[1].Data, []byte("payload!"))
		return nil
	})
	if err != nil {
		t.Fatalf("ошибка выполнения: %v", err)
	}
	if res.TransactionID == "" || len(res.Modified) != 2 {
		t.Errorf("неожиданный результат: %+v", res)
	}

	acc, err := store.Read(target)
	if err != nil {
		t.Fatalf("аккаунт не сохранён: %v", err)
	}
	if acc.Owner != testProgram || !bytes.Equal(acc.Data, []byte("payload!")) {
		t.Errorf("неожиданное содержимое аккаунта: %+v", acc)
	}
	if acc.Lamports != alloc.Rent.MinimumBalance(8) {
		t.Errorf("ожидался баланс %d, получено %d", alloc.Rent.MinimumBalance(8), acc.Lamports)
	}
}

// TestExecute_FuncErrorDiscards проверяет, что ошибка тела не оставляет изменений.
func TestExecute_FuncErrorDiscards(t *testing.T) {
	e, store, _ := newTestExecutor(t)
	payer := key(1)
	fund(t, e, payer, 500)

	boom := errors.New("отказ программы")
	_, err := e.Execute(context.Background(), []AccountMeta{{Key: payer, IsSigner: true, IsWritable: true}, {Key: key(2), IsWritable: true}},
		func(_ context.Context, accs []*AccountHandle) error {
			accs[0].Lamports -= 100
			accs[1].Lamports += 100
			return boom
		})
	if !errors.Is(err, boom) {
		t.Fatalf("ожидалась ошибка тела, получена %v", err)
	}

	acc, _ := store.Read(payer)
	if acc.Lamports != 500 {
		t.Errorf("баланс изменился: %d", acc.Lamports)
	}
	if _, err := store.Read(key(2)); !errors.Is(err, accounts.ErrNotFound) {
		t.Errorf("аккаунт не должен быть создан, получено %v", err)
	}
}

// TestExecute_VerifyRejects проверяет отказ при нарушении правил изменения.
func TestExecute_VerifyRejects(t *testing.T) {
	e, store, _ := newTestExecutor(t)
	payer, other := key(1), key(2)
	fund(t, e, payer, 1000)
	fund(t, e, other, 1000)

	tests := []struct {
		name  string
		metas []AccountMeta
		fn    Func
		want  error
	}{
		{
			name:  "изменение аккаунта только для чтения",
			metas: []AccountMeta{{Key: payer, IsSigner: true}, {Key: other, IsWritable: true}},
			fn: func(_ context.Context, a []*AccountHandle) error {
				a[0].Lamports -= 1
				a[1].Lamports += 1
				return nil
			},
			want: ErrReadonlyModified,
		},
		{
			name:  "списание без подписи",
			metas: []AccountMeta{{Key: payer, IsWritable: true}, {Key: other, IsWritable: true}},
			fn: func(_ context.Context, a []*AccountHandle) error {
				a[0].Lamports -= 1
				a[1].Lamports += 1
				return nil
			},
			want: ErrForeignModification,
		},
		{
			name:  "нарушение суммы балансов",
			metas: []AccountMeta{{Key: payer, IsSigner: true, IsWritable: true}},
			fn: func(_ context.Context, a []*AccountHandle) error {
				a[0].Lamports += 1
				return nil
			},
			want: ErrLamportsNotConserved,
		},
		{
			name:  "данные системного аккаунта",
			metas: []AccountMeta{{Key: payer, IsSigner: true, IsWritable: true}},
			fn: func(_ context.Context, a []*AccountHandle) error {
				a[0].Data = []byte{1}
				return nil
			},
			want: ErrForeignModification,
		},
		{
			name:  "смена владельца на чужую программу",
			metas: []AccountMeta{{Key: key(3), IsWritable: true}},
			fn: func(_ context.Context, a []*AccountHandle) error {
				a[0].Owner = key(0x99)
				return nil
			},
			want: ErrIllegalOwnerChange,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Execute(context.Background(), tt.metas, tt.fn)
			if !errors.Is(err, tt.want) {
				t.Fatalf("ожидалась ошибка %v, получена %v", tt.want, err)
			}
			acc, _ := store.Read(payer)
			if acc.Lamports != 1000 {
				t.Errorf("баланс плательщика изменился: %d", acc.Lamports)
			}
		})
	}
}

// TestExecute_NoChanges проверяет, что вызов без изменений не пишет WAL.
func TestExecute_NoChanges(t *testing.T) {
	e, _, w := newTestExecutor(t)

	res, err := e.Execute(context.Background(), []AccountMeta{{Key: key(7)}}, func(context.Context, []*AccountHandle) error {
		return nil
	})
	if err != nil {
		t.Fatalf("ошибка выполнения: %v", err)
	}
	if res.TransactionID != "" {
		t.Errorf("транзакция не ожидалась: %s", res.TransactionID)
	}
	if n, _ := w.CleanCommitted(0); n != 0 {
		t.Errorf("ожидалось 0 WAL-записей, получено %d", n)
	}
}

// TestExecute_DuplicateAccounts проверяет общий handle для повторов.
func TestExecute_DuplicateAccounts(t *testing.T) {
	e, _, _ := newTestExecutor(t)

	_, err := e.Execute(context.Background(), []AccountMeta{{Key: key(1)}, {Key: key(1), IsWritable: true}},
		func(_ context.Context, a []*AccountHandle) error {
			if a[0] != a[1] {
				return fmt.Errorf("повторяющиеся адреса дали разные handle")
			}
			if !a[0].IsWritable {
				return fmt.Errorf("флаги не объединены")
			}
			return nil
		})
	if err != nil {
		t.Fatal(err)
	}
}

// TestExecute_WriteFailureRestores проверяет откат частично записанного коммита.
func TestExecute_WriteFailureRestores(t *testing.T) {
	store, err := accounts.New(t.TempDir(), testLogger())
	if err != nil {
		t.Fatal(err)
	}
	w, err := wal.New(t.TempDir(), testLogger())
	if err != nil {
		t.Fatal(err)
	}
	payer, target := key(1), key(2)
	good := NewExecutor(testProgram, store, w, testLogger())
	fund(t, good, payer, 1000)

	e := NewExecutor(testProgram, &failingStore{Store: store, failOn: target}, w, testLogger())
	_, err = e.Execute(context.Background(),
		[]AccountMeta{{Key: payer, IsSigner: true, IsWritable: true}, {Key: target, IsWritable: true}},
		func(_ context.Context, a []*AccountHandle) error {
			a[0].Lamports -= 300
			a[1].Lamports += 300
			return nil
		})
	if err == nil {
		t.Fatal("ожидалась ошибка записи")
	}

	acc, err := store.Read(payer)
	if err != nil {
		t.Fatal(err)
	}
	if acc.Lamports != 1000 {
		t.Errorf("баланс плательщика не восстановлен: %d", acc.Lamports)
	}
	if pending, _ := w.RecoverPending(); len(pending) != 0 {
		t.Errorf("не должно остаться pending транзакций, получено %d", len(pending))
	}
}

// TestRecover проверяет откат незавершённого коммита при старте.
func TestRecover(t *testing.T) {
	e, store, w := newTestExecutor(t)
	payer := key(1)
	fund(t, e, payer, 1000)

	prev, _ := store.Read(payer)
	if _, err := w.StartTransaction(wal.OpAccountCommit, []wal.PreImage{{Address: payer, Account: prev}, {Address: key(2)}}); err != nil {
		t.Fatal(err)
	}
	// Имитация сбоя посреди записи
	store.Write(&model.Account{Address: payer, Lamports: 1})
	store.Write(&model.Account{Address: key(2), Lamports: 999})

	n, err := e.Recover()
	if err != nil {
		t.Fatalf("ошибка восстановления: %v", err)
	}
	if n != 1 {
		t.Errorf("ожидалась 1 восстановленная транзакция, получено %d", n)
	}
	acc, _ := store.Read(payer)
	if acc.Lamports != 1000 {
		t.Errorf("баланс не восстановлен: %d", acc.Lamports)
	}
	if _, err := store.Read(key(2)); !errors.Is(err, accounts.ErrNotFound) {
		t.Errorf("аккаунт должен быть удалён, получено %v", err)
	}
}

// TestAirdrop проверяет пополнение и переполнение баланса.
func TestAirdrop(t *testing.T) {
	e, _, _ := newTestExecutor(t)
	addr := key(4)

	acc, err := e.Airdrop(context.Background(), addr, 10)
	if err != nil {
		t.Fatal(err)
	}
	if acc.Lamports != 10 || acc.Owner != SystemProgramID {
		t.Errorf("неожиданный аккаунт: %+v", acc)
	}
	acc, err = e.Airdrop(context.Background(), addr, 5)
	if err != nil {
		t.Fatal(err)
	}
	if acc.Lamports != 15 {
		t.Errorf("ожидалось 15, получено %d", acc.Lamports)
	}

	if _, err := e.Airdrop(context.Background(), addr, ^uint64(0)); !errors.Is(err, ErrBalanceOverflow) {
		t.Errorf("ожидалась ErrBalanceOverflow, получена %v", err)
	}

	loaded, err := e.Load(context.Background(), addr)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Lamports != 15 {
		t.Errorf("ожидалось 15 после отказа, получено %d", loaded.Lamports)
	}
}

// TestInstall проверяет запись служебного аккаунта с сохранением баланса.
func TestInstall(t *testing.T) {
	e, store, _ := newTestExecutor(t)
	addr := key(6)
	fund(t, e, addr, 500)

	err := e.Install(context.Background(), &model.Account{Address: addr, Owner: testProgram, Data: []byte{1, 2, 3}})
	if err != nil {
		t.Fatalf("ошибка установки: %v", err)
	}

	acc, err := store.Read(addr)
	if err != nil {
		t.Fatal(err)
	}
	if acc.Lamports != 500 {
		t.Errorf("баланс должен сохраниться: %d", acc.Lamports)
	}
	if acc.Owner != testProgram || !bytes.Equal(acc.Data, []byte{1, 2, 3}) {
		t.Errorf("неожиданный аккаунт: %+v", acc)
	}
}

// TestExecute_Cancelled проверяет отказ при отменённом контексте.
func TestExecute_Cancelled(t *testing.T) {
	e, _, _ := newTestExecutor(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	_, err := e.Execute(ctx, []AccountMeta{{Key: key(1)}}, func(context.Context, []*AccountHandle) error {
		called = true
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("ожидалась context.Canceled, получена %v", err)
	}
	if called {
		t.Error("тело не должно вызываться при отменённом контексте")
	}
}

// TestExecute_ConcurrentSameAccount проверяет сериализацию вызовов с общим аккаунтом.
func TestExecute_ConcurrentSameAccount(t *testing.T) {
	e, store, _ := newTestExecutor(t)
	payer, sink := key(1), key(2)
	fund(t, e, payer, 1000)

	const goroutines = 10
	var wg sync.WaitGroup
	errs := make(chan error, goroutines)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.Execute(context.Background(),
				[]AccountMeta{{Key: payer, IsSigner: true, IsWritable: true}, {Key: sink, IsWritable: true}},
				func(_ context.Context, a []*AccountHandle) error {
					a[0].Lamports -= 10
					a[1].Lamports += 10
					return nil
				})
			if err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("ошибка в горутине: %v", err)
	}

	p, _ := store.Read(payer)
	s, _ := store.Read(sink)
	if p.Lamports != 1000-10*goroutines || s.Lamports != 10*goroutines {
		t.Errorf("потеряно обновление: плательщик %d, получатель %d", p.Lamports, s.Lamports)
	}
}
