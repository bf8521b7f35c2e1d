// Пакет database — PostgreSQL для индекса получателей: пул pgxpool,
// миграции golang-migrate из embedded FS и проверка готовности индекса.
// Хранилище аккаунтов от базы не зависит: при недоступном индексе
// приём продолжается, а /health/ready сообщает degraded.
package database

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zk-Lokomotive/zkl-sui-sol/internal/config"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SchemaVersion — версия схемы recipient_index, с которой работает
// repository. С версии 2 указатели упорядочиваются по created_at.
const SchemaVersion uint = 2

// indexProbeTimeout — предел проверки готовности индекса.
const indexProbeTimeout = 3 * time.Second

// Connect создаёт пул подключений к PostgreSQL и проверяет его ping.
func Connect(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseDSN())
	if err != nil {
		return nil, fmt.Errorf("ошибка парсинга DSN: %w", err)
	}
	poolCfg.ConnConfig.RuntimeParams["application_name"] = "transfer-receiver"

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания пула подключений: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ошибка подключения к PostgreSQL: %w", err)
	}

	logger.Info("Индекс получателей: подключение к PostgreSQL установлено",
		slog.String("url", cfg.DatabaseURL()),
		slog.Int("max_conns", int(poolCfg.MaxConns)),
	)

	return pool, nil
}

// migrateURL собирает URL драйвера pgx5 для golang-migrate.
// Учётные данные экранируются: пароль может содержать '@' и '/'.
func migrateURL(cfg *config.Config) string {
	u := url.URL{
		Scheme:   "pgx5",
		User:     url.UserPassword(cfg.DBUser, cfg.DBPassword),
		Host:     fmt.Sprintf("%s:%d", cfg.DBHost, cfg.DBPort),
		Path:     "/" + cfg.DBName,
		RawQuery: url.Values{"sslmode": {cfg.DBSSLMode}}.Encode(),
	}
	return u.String()
}

// Migrate применяет миграции и проверяет, что схема не ниже SchemaVersion.
func Migrate(cfg *config.Config, logger *slog.Logger) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("ошибка создания источника миграций: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, migrateURL(cfg))
	if err != nil {
		return fmt.Errorf("ошибка инициализации миграций: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("ошибка применения миграций: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		return fmt.Errorf("ошибка чтения версии схемы: %w", err)
	}
	if err := checkSchemaVersion(version, dirty); err != nil {
		return err
	}

	logger.Info("Схема индекса получателей актуальна",
		slog.Uint64("version", uint64(version)),
	)
	return nil
}

// checkSchemaVersion отклоняет незавершённую миграцию и схему старее
// SchemaVersion: без created_at индекс не может упорядочить указатели.
func checkSchemaVersion(version uint, dirty bool) error {
	if dirty {
		return fmt.Errorf("схема recipient_index в состоянии dirty (версия %d): требуется ручное исправление", version)
	}
	if version < SchemaVersion {
		return fmt.Errorf("схема recipient_index версии %d, требуется не ниже %d", version, SchemaVersion)
	}
	return nil
}

// IndexChecker — проверка готовности индекса получателей для /health/ready.
type IndexChecker struct {
	pool *pgxpool.Pool
}

// NewIndexChecker создаёт проверку готовности индекса.
func NewIndexChecker(pool *pgxpool.Pool) *IndexChecker {
	return &IndexChecker{pool: pool}
}

// Name возвращает имя проверки в ответе /health/ready.
func (c *IndexChecker) Name() string {
	return "recipient_index"
}

// CheckReady проверяет, что таблица индекса доступна для чтения.
// Недоступный индекс не останавливает приём, поэтому статус — degraded.
func (c *IndexChecker) CheckReady() (status string, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), indexProbeTimeout)
	defer cancel()

	if _, err := c.pool.Exec(ctx, "SELECT 1 FROM recipient_index LIMIT 1"); err != nil {
		return "degraded", fmt.Sprintf("индекс получателей недоступен: %v", err)
	}
	return "ok", "индекс доступен"
}
