// Пакет config — загрузка и валидация конфигурации transfer-receiver
// из переменных окружения.
package config

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/zk-Lokomotive/zkl-sui-sol/internal/bridge"
	"github.com/zk-Lokomotive/zkl-sui-sol/internal/domain/model"
	"github.com/zk-Lokomotive/zkl-sui-sol/internal/payload"
	"github.com/zk-Lokomotive/zkl-sui-sol/internal/runtime"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Config содержит все параметры конфигурации transfer-receiver.
type Config struct {
	// Порт HTTP-сервера
	Port int
	// Идентификатор программы (base58), владелец всех записей
	ProgramID model.Identity
	// Путь к директории аккаунтов
	DataDir string
	// Путь к директории WAL
	WALDir string

	// --- Приём сообщений ---

	// Стратегия извлечения payload (structured, positional)
	Extractor payload.Strategy
	// Разрешить приём неподтверждённых буферов (отладка)
	AllowUnverified bool
	// Отклонять устаревшие и конфликтующие сообщения
	Fencing bool
	// Публичные ключи guardian (hex, сжатые secp256k1)
	GuardianKeys []string
	// Индекс действующего набора guardian
	GuardianSetIndex uint32
	// Разрешённые отправители (пусто — любые)
	Emitters []bridge.Emitter

	// --- Рента и faucet ---

	// Ставка ренты за байт в год
	RentLamportsPerByteYear uint64
	// Включить POST /api/v1/accounts/{address}/airdrop
	FaucetEnabled bool
	// Максимальная сумма одного пополнения
	FaucetMaxLamports uint64

	// --- Кэш адресов ---

	// Размер кэша производных адресов (0 — без кэша)
	AddressCacheSize int
	// Время жизни записи кэша
	AddressCacheTTL time.Duration

	// --- Безопасность ---

	// URL JWKS endpoint (пусто — аутентификация отключена)
	JWKSUrl string
	// Путь к CA-сертификату для проверки TLS JWKS endpoint (опционально)
	JWKSCACert string
	// Таймаут HTTP-клиента JWKS
	JWKSClientTimeout time.Duration
	// Интервал обновления JWKS-ключей
	JWKSRefreshInterval time.Duration
	// Допустимое отклонение времени при проверке JWT
	JWTLeeway time.Duration
	// Путь к TLS сертификату (опционально)
	TLSCert string
	// Путь к TLS приватному ключу (опционально)
	TLSKey string

	// --- Логирование ---

	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string

	// --- PostgreSQL (индекс получателей, опционально) ---

	// Хост PostgreSQL (пусто — индекс отключён)
	DBHost string
	// Порт PostgreSQL
	DBPort int
	// Имя базы данных
	DBName string
	// Имя пользователя PostgreSQL
	DBUser string
	// Пароль пользователя PostgreSQL
	DBPassword string
	// Режим SSL: disable, require, verify-ca, verify-full
	DBSSLMode string

	// --- Фоновые задачи ---

	// Интервал очистки завершённых WAL-транзакций
	WALCleanupInterval time.Duration
	// Возраст завершённых WAL-транзакций, после которого они удаляются
	WALRetention time.Duration
	// Интервал проверки зависимостей topologymetrics
	DephealthCheckInterval time.Duration
	// Имя группы в метриках topologymetrics
	DephealthGroup string
	// Имя зависимости в метриках topologymetrics
	DephealthDepName string
	// Имя владельца пода для метки name в topologymetrics (DEPHEALTH_NAME)
	DephealthName string

	// Таймаут graceful shutdown HTTP-сервера
	ShutdownTimeout time.Duration
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
func Load() (*Config, error) {
	cfg := &Config{}

	// TR_PORT — порт HTTP-сервера (по умолчанию 8030)
	port, err := getEnvInt("TR_PORT", 8030)
	if err != nil {
		return nil, fmt.Errorf("TR_PORT: %w", err)
	}
	if port < 1 || port > 65535 {
		return nil, fmt.Errorf("TR_PORT: значение %d вне допустимого диапазона 1-65535", port)
	}
	cfg.Port = port

	// TR_PROGRAM_ID — обязательный
	programID, err := getEnvRequired("TR_PROGRAM_ID")
	if err != nil {
		return nil, err
	}
	cfg.ProgramID, err = model.ParseIdentity(programID)
	if err != nil {
		return nil, fmt.Errorf("TR_PROGRAM_ID: %w", err)
	}
	if cfg.ProgramID == runtime.SystemProgramID {
		return nil, fmt.Errorf("TR_PROGRAM_ID: совпадает с системной программой")
	}

	// TR_DATA_DIR — обязательный
	cfg.DataDir, err = getEnvRequired("TR_DATA_DIR")
	if err != nil {
		return nil, err
	}

	// TR_WAL_DIR — обязательный
	cfg.WALDir, err = getEnvRequired("TR_WAL_DIR")
	if err != nil {
		return nil, err
	}

	// TR_EXTRACTOR — стратегия извлечения (по умолчанию structured)
	cfg.Extractor, err = payload.ParseStrategy(getEnvDefault("TR_EXTRACTOR", string(payload.StrategyStructured)))
	if err != nil {
		return nil, fmt.Errorf("TR_EXTRACTOR: %w", err)
	}

	// TR_ALLOW_UNVERIFIED — отладочный приём позиционных буферов (по умолчанию false)
	cfg.AllowUnverified, err = getEnvBool("TR_ALLOW_UNVERIFIED", false)
	if err != nil {
		return nil, fmt.Errorf("TR_ALLOW_UNVERIFIED: %w", err)
	}
	if cfg.Extractor == payload.StrategyPositional && !cfg.AllowUnverified {
		return nil, fmt.Errorf("TR_EXTRACTOR: стратегия positional требует TR_ALLOW_UNVERIFIED=true")
	}

	// TR_FENCING — отклонение устаревших сообщений (по умолчанию true)
	cfg.Fencing, err = getEnvBool("TR_FENCING", true)
	if err != nil {
		return nil, fmt.Errorf("TR_FENCING: %w", err)
	}

	// TR_GUARDIAN_KEYS — обязательный для стратегии structured
	cfg.GuardianKeys = splitList(getEnvDefault("TR_GUARDIAN_KEYS", ""))
	if cfg.Extractor == payload.StrategyStructured && len(cfg.GuardianKeys) == 0 {
		return nil, fmt.Errorf("TR_GUARDIAN_KEYS: обязательная переменная окружения не задана для стратегии structured")
	}
	if len(cfg.GuardianKeys) > bridge.MaxGuardians {
		return nil, fmt.Errorf("TR_GUARDIAN_KEYS: %d ключей, максимум %d", len(cfg.GuardianKeys), bridge.MaxGuardians)
	}
	if _, err := bridge.ParseGuardianKeys(cfg.GuardianKeys); err != nil {
		return nil, fmt.Errorf("TR_GUARDIAN_KEYS: %w", err)
	}

	// TR_GUARDIAN_SET_INDEX — индекс набора guardian (по умолчанию 0)
	setIndex, err := getEnvInt64("TR_GUARDIAN_SET_INDEX", 0)
	if err != nil {
		return nil, fmt.Errorf("TR_GUARDIAN_SET_INDEX: %w", err)
	}
	if setIndex < 0 || setIndex > 0xFFFFFFFF {
		return nil, fmt.Errorf("TR_GUARDIAN_SET_INDEX: значение %d вне диапазона uint32", setIndex)
	}
	cfg.GuardianSetIndex = uint32(setIndex)

	// TR_EMITTERS — разрешённые отправители "chain:hex32,..." (опционально)
	cfg.Emitters, err = parseEmitters(getEnvDefault("TR_EMITTERS", ""))
	if err != nil {
		return nil, fmt.Errorf("TR_EMITTERS: %w", err)
	}

	// TR_RENT_LAMPORTS_PER_BYTE_YEAR — ставка ренты (по умолчанию 3480)
	rate, err := getEnvInt64("TR_RENT_LAMPORTS_PER_BYTE_YEAR", int64(runtime.DefaultLamportsPerByteYear))
	if err != nil {
		return nil, fmt.Errorf("TR_RENT_LAMPORTS_PER_BYTE_YEAR: %w", err)
	}
	if rate < 0 {
		return nil, fmt.Errorf("TR_RENT_LAMPORTS_PER_BYTE_YEAR: значение не может быть отрицательным")
	}
	cfg.RentLamportsPerByteYear = uint64(rate)

	// TR_FAUCET_ENABLED — dev faucet (по умолчанию false)
	cfg.FaucetEnabled, err = getEnvBool("TR_FAUCET_ENABLED", false)
	if err != nil {
		return nil, fmt.Errorf("TR_FAUCET_ENABLED: %w", err)
	}

	// TR_FAUCET_MAX_LAMPORTS — максимум одного пополнения (по умолчанию 10 SOL)
	faucetMax, err := getEnvInt64("TR_FAUCET_MAX_LAMPORTS", 10_000_000_000)
	if err != nil {
		return nil, fmt.Errorf("TR_FAUCET_MAX_LAMPORTS: %w", err)
	}
	if faucetMax <= 0 {
		return nil, fmt.Errorf("TR_FAUCET_MAX_LAMPORTS: значение должно быть положительным")
	}
	cfg.FaucetMaxLamports = uint64(faucetMax)

	// TR_ADDRESS_CACHE_SIZE — размер кэша адресов (по умолчанию 4096)
	cfg.AddressCacheSize, err = getEnvInt("TR_ADDRESS_CACHE_SIZE", 4096)
	if err != nil {
		return nil, fmt.Errorf("TR_ADDRESS_CACHE_SIZE: %w", err)
	}
	if cfg.AddressCacheSize < 0 {
		return nil, fmt.Errorf("TR_ADDRESS_CACHE_SIZE: значение не может быть отрицательным")
	}

	// TR_ADDRESS_CACHE_TTL — время жизни записи кэша (по умолчанию 1h)
	cfg.AddressCacheTTL, err = getEnvDuration("TR_ADDRESS_CACHE_TTL", time.Hour)
	if err != nil {
		return nil, fmt.Errorf("TR_ADDRESS_CACHE_TTL: %w", err)
	}

	// TR_JWKS_URL — опциональный
	cfg.JWKSUrl = getEnvDefault("TR_JWKS_URL", "")

	// TR_JWKS_CA_CERT — путь к CA-сертификату для JWKS endpoint (опционально)
	cfg.JWKSCACert = getEnvDefault("TR_JWKS_CA_CERT", "")

	// TR_JWKS_CLIENT_TIMEOUT — таймаут запросов к JWKS (по умолчанию 10s)
	cfg.JWKSClientTimeout, err = getEnvDuration("TR_JWKS_CLIENT_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("TR_JWKS_CLIENT_TIMEOUT: %w", err)
	}

	// TR_JWKS_REFRESH_INTERVAL — интервал обновления ключей (по умолчанию 15m)
	cfg.JWKSRefreshInterval, err = getEnvDuration("TR_JWKS_REFRESH_INTERVAL", 15*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("TR_JWKS_REFRESH_INTERVAL: %w", err)
	}

	// TR_JWT_LEEWAY — допуск по времени для exp/nbf (по умолчанию 5s)
	cfg.JWTLeeway, err = getEnvDuration("TR_JWT_LEEWAY", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("TR_JWT_LEEWAY: %w", err)
	}

	// TR_TLS_CERT / TR_TLS_KEY — задаются вместе
	cfg.TLSCert = getEnvDefault("TR_TLS_CERT", "")
	cfg.TLSKey = getEnvDefault("TR_TLS_KEY", "")
	if (cfg.TLSCert == "") != (cfg.TLSKey == "") {
		return nil, fmt.Errorf("TR_TLS_CERT и TR_TLS_KEY должны задаваться вместе")
	}

	// TR_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("TR_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("TR_LOG_LEVEL: %w", err)
	}

	// TR_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("TR_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("TR_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// --- PostgreSQL ---

	// TR_DB_HOST — опциональный, без него индекс получателей отключён
	cfg.DBHost = getEnvDefault("TR_DB_HOST", "")

	// TR_DB_PORT — порт PostgreSQL (по умолчанию 5432)
	cfg.DBPort, err = getEnvInt("TR_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("TR_DB_PORT: %w", err)
	}

	if cfg.DBHost != "" {
		// TR_DB_NAME, TR_DB_USER, TR_DB_PASSWORD — обязательны при заданном хосте
		if cfg.DBName, err = getEnvRequired("TR_DB_NAME"); err != nil {
			return nil, err
		}
		if cfg.DBUser, err = getEnvRequired("TR_DB_USER"); err != nil {
			return nil, err
		}
		if cfg.DBPassword, err = getEnvRequired("TR_DB_PASSWORD"); err != nil {
			return nil, err
		}
	}

	// TR_DB_SSL_MODE — режим SSL (по умолчанию disable)
	cfg.DBSSLMode = getEnvDefault("TR_DB_SSL_MODE", "disable")
	validSSLModes := map[string]bool{
		"disable": true, "require": true, "verify-ca": true, "verify-full": true,
	}
	if !validSSLModes[cfg.DBSSLMode] {
		return nil, fmt.Errorf("TR_DB_SSL_MODE: недопустимое значение %q, допустимые: disable, require, verify-ca, verify-full", cfg.DBSSLMode)
	}

	// --- Фоновые задачи ---

	// TR_WAL_CLEANUP_INTERVAL — интервал очистки WAL (по умолчанию 1h)
	cfg.WALCleanupInterval, err = getEnvDuration("TR_WAL_CLEANUP_INTERVAL", time.Hour)
	if err != nil {
		return nil, fmt.Errorf("TR_WAL_CLEANUP_INTERVAL: %w", err)
	}

	// TR_WAL_RETENTION — срок хранения завершённых транзакций (по умолчанию 24h)
	cfg.WALRetention, err = getEnvDuration("TR_WAL_RETENTION", 24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("TR_WAL_RETENTION: %w", err)
	}

	// TR_DEPHEALTH_CHECK_INTERVAL — интервал проверки зависимостей (по умолчанию 15s)
	cfg.DephealthCheckInterval, err = getEnvDuration("TR_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("TR_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	// TR_DEPHEALTH_GROUP — имя группы в метриках topologymetrics
	cfg.DephealthGroup = getEnvDefault("TR_DEPHEALTH_GROUP", "transfer-receiver")

	// TR_DEPHEALTH_DEP_NAME — имя зависимости JWKS в метриках topologymetrics
	cfg.DephealthDepName = getEnvDefault("TR_DEPHEALTH_DEP_NAME", "jwks")

	// DEPHEALTH_NAME — имя владельца пода для метки name в topologymetrics
	cfg.DephealthName = getEnvDefault("DEPHEALTH_NAME", "")

	// TR_SHUTDOWN_TIMEOUT — таймаут graceful shutdown HTTP-сервера (по умолчанию 5s)
	cfg.ShutdownTimeout, err = getEnvDuration("TR_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("TR_SHUTDOWN_TIMEOUT: %w", err)
	}

	return cfg, nil
}

// IndexEnabled сообщает, настроен ли PostgreSQL для индекса получателей.
func (c *Config) IndexEnabled() bool {
	return c.DBHost != ""
}

// AuthEnabled сообщает, включена ли JWT-аутентификация.
func (c *Config) AuthEnabled() bool {
	return c.JWKSUrl != ""
}

// DatabaseDSN возвращает строку подключения к PostgreSQL.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode,
	)
}

// DatabaseURL возвращает URL PostgreSQL без учётных данных
// (для меток topologymetrics).
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%d/%s", c.DBHost, c.DBPort, c.DBName)
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvInt64 возвращает int64 значение переменной окружения или значение по умолчанию.
func getEnvInt64(key string, defaultVal int64) (int64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvBool возвращает логическое значение переменной окружения или значение по умолчанию.
func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("некорректное логическое значение: %q", val)
	}
	return b, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 6h)", val)
	}
	return d, nil
}

// splitList разбивает список через запятую, отбрасывая пустые элементы.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parseEmitters разбирает список "chain:hex32".
func parseEmitters(s string) ([]bridge.Emitter, error) {
	var emitters []bridge.Emitter
	for _, item := range splitList(s) {
		chainStr, addrHex, ok := strings.Cut(item, ":")
		if !ok {
			return nil, fmt.Errorf("ожидается chain:address, получено %q", item)
		}
		chain, err := strconv.ParseUint(chainStr, 10, 16)
		if err != nil {
			return nil, fmt.Errorf("некорректный номер сети %q", chainStr)
		}
		raw, err := hex.DecodeString(strings.TrimPrefix(addrHex, "0x"))
		if err != nil || len(raw) != 32 {
			return nil, fmt.Errorf("адрес отправителя %q: ожидается 32 байта в hex", addrHex)
		}
		e := bridge.Emitter{Chain: uint16(chain)}
		copy(e.Address[:], raw)
		emitters = append(emitters, e)
	}
	return emitters, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}
