package repository

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/zk-Lokomotive/zkl-sui-sol/internal/config"
	"github.com/zk-Lokomotive/zkl-sui-sol/internal/database"
	"github.com/zk-Lokomotive/zkl-sui-sol/internal/domain/model"
)

// setupTestDB запускает PostgreSQL контейнер и применяет миграции.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("Пропуск интеграционного теста: TEST_INTEGRATION не установлена")
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		postgres.WithDatabase("receiver_test"),
		postgres.WithUsername("receiver"),
		postgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("Не удалось запустить PostgreSQL контейнер: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Ошибка остановки контейнера: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Не удалось получить host контейнера: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Не удалось получить port контейнера: %v", err)
	}

	t.Setenv("TR_PROGRAM_ID", "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA")
	t.Setenv("TR_DATA_DIR", t.TempDir())
	t.Setenv("TR_WAL_DIR", t.TempDir())
	t.Setenv("TR_GUARDIAN_KEYS", "0279be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798")
	t.Setenv("TR_DB_HOST", host)
	t.Setenv("TR_DB_PORT", port.Port())
	t.Setenv("TR_DB_NAME", "receiver_test")
	t.Setenv("TR_DB_USER", "receiver")
	t.Setenv("TR_DB_PASSWORD", "test-password")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	if err := database.Migrate(cfg, logger); err != nil {
		t.Fatalf("Ошибка миграций: %v", err)
	}

	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		t.Fatalf("Ошибка подключения: %v", err)
	}
	t.Cleanup(pool.Close)

	return pool
}

func ident(b byte) model.Identity {
	var id model.Identity
	for i := range id {
		id[i] = b
	}
	return id
}

// TestRecipientIndex_Upsert проверяет, что указатель продвигается
// только вперёд по времени создания записи.
func TestRecipientIndex_Upsert(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewRecipientIndexRepository(pool)
	ctx := context.Background()
	recipient := ident(0x11)

	if _, err := repo.Get(ctx, recipient); !errors.Is(err, ErrNotFound) {
		t.Fatalf("ожидалась ErrNotFound, получена %v", err)
	}

	first := &model.RecipientPointer{Recipient: recipient, Namespace: "file_transfer", RecordAddress: ident(0x21), Timestamp: 1_700_000_000}
	advanced, err := repo.Upsert(ctx, first)
	if err != nil || !advanced {
		t.Fatalf("первая запись: advanced=%v, err=%v", advanced, err)
	}

	// Более раннее сообщение не продвигает указатель, каким бы ни был его номер
	stale := &model.RecipientPointer{Recipient: recipient, Namespace: "file_metadata", RecordAddress: ident(0x22), Sequence: 500, Timestamp: 1_600_000_000}
	advanced, err = repo.Upsert(ctx, stale)
	if err != nil {
		t.Fatal(err)
	}
	if advanced {
		t.Error("более ранняя запись не должна продвигать указатель")
	}

	got, err := repo.Get(ctx, recipient)
	if err != nil {
		t.Fatal(err)
	}
	if got.Timestamp != 1_700_000_000 || got.RecordAddress != ident(0x21) || got.Namespace != "file_transfer" {
		t.Errorf("неожиданный указатель: %+v", got)
	}

	// Сообщение моста с маленьким номером, но более поздним временем
	next := &model.RecipientPointer{Recipient: recipient, Namespace: "file_metadata", RecordAddress: ident(0x23), Sequence: 3, Timestamp: 1_700_000_100}
	if advanced, err := repo.Upsert(ctx, next); err != nil || !advanced {
		t.Fatalf("новая запись: advanced=%v, err=%v", advanced, err)
	}
	got, err = repo.Get(ctx, recipient)
	if err != nil {
		t.Fatal(err)
	}
	if got.Sequence != 3 || got.Timestamp != 1_700_000_100 || got.RecordAddress != ident(0x23) {
		t.Errorf("неожиданный указатель: %+v", got)
	}
	if got.UpdatedAt.IsZero() {
		t.Error("updated_at не заполнен")
	}

	// При равном времени побеждает последний коммит
	tie := &model.RecipientPointer{Recipient: recipient, Namespace: "file_transfer", RecordAddress: ident(0x24), Timestamp: 1_700_000_100}
	if advanced, err := repo.Upsert(ctx, tie); err != nil || !advanced {
		t.Fatalf("равное время: advanced=%v, err=%v", advanced, err)
	}
}

// TestRecipientIndex_Range проверяет отказ для значений вне BIGINT.
func TestRecipientIndex_Range(t *testing.T) {
	repo := NewRecipientIndexRepository(nil)
	for _, p := range []*model.RecipientPointer{{Sequence: 1 << 63}, {Timestamp: 1 << 63}} {
		if _, err := repo.Upsert(context.Background(), p); err == nil {
			t.Errorf("ожидалась ошибка для %+v", p)
		}
	}
}

// TestNoopRecipientIndex проверяет отключённый индекс.
func TestNoopRecipientIndex(t *testing.T) {
	repo := NewNoopRecipientIndex()
	advanced, err := repo.Upsert(context.Background(), &model.RecipientPointer{Sequence: 1})
	if err != nil || advanced {
		t.Errorf("Upsert: advanced=%v, err=%v", advanced, err)
	}
	if _, err := repo.Get(context.Background(), ident(1)); !errors.Is(err, ErrDisabled) {
		t.Errorf("ожидалась ErrDisabled, получена %v", err)
	}
}
