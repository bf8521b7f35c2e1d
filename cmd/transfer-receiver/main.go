// Точка входа transfer-receiver — приёмной стороны кросс-чейн передачи
// файлов (Sui → мост → Solana-совместимая программа).
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/stdlib"

	"github.com/zk-Lokomotive/zkl-sui-sol/internal/address"
	"github.com/zk-Lokomotive/zkl-sui-sol/internal/api/generated"
	"github.com/zk-Lokomotive/zkl-sui-sol/internal/api/handlers"
	"github.com/zk-Lokomotive/zkl-sui-sol/internal/api/middleware"
	"github.com/zk-Lokomotive/zkl-sui-sol/internal/bridge"
	"github.com/zk-Lokomotive/zkl-sui-sol/internal/config"
	"github.com/zk-Lokomotive/zkl-sui-sol/internal/database"
	"github.com/zk-Lokomotive/zkl-sui-sol/internal/domain/model"
	"github.com/zk-Lokomotive/zkl-sui-sol/internal/program"
	"github.com/zk-Lokomotive/zkl-sui-sol/internal/repository"
	"github.com/zk-Lokomotive/zkl-sui-sol/internal/runtime"
	"github.com/zk-Lokomotive/zkl-sui-sol/internal/server"
	"github.com/zk-Lokomotive/zkl-sui-sol/internal/service"
	"github.com/zk-Lokomotive/zkl-sui-sol/internal/storage/accounts"
	"github.com/zk-Lokomotive/zkl-sui-sol/internal/storage/wal"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка конфигурации: %v\n", err)
		os.Exit(1)
	}

	logger := config.SetupLogger(cfg)
	logger.Info("transfer-receiver запускается",
		slog.String("version", config.Version),
		slog.String("program_id", cfg.ProgramID.String()),
		slog.String("extractor", string(cfg.Extractor)),
		slog.Bool("fencing", cfg.Fencing),
		slog.Int("port", cfg.Port),
	)
	if cfg.AllowUnverified {
		logger.Warn("Включён приём неподтверждённых payload: только для отладки, подлинность сообщений не проверяется")
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("transfer-receiver завершился с ошибкой", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("transfer-receiver остановлен")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 1. Хранилище аккаунтов и WAL
	store, err := accounts.New(cfg.DataDir, logger)
	if err != nil {
		return fmt.Errorf("инициализация хранилища аккаунтов: %w", err)
	}
	walEngine, err := wal.New(cfg.WALDir, logger)
	if err != nil {
		return fmt.Errorf("инициализация WAL: %w", err)
	}

	// 2. Исполнитель и откат незавершённых коммитов
	exec := runtime.NewExecutor(cfg.ProgramID, store, walEngine, logger)
	restored, err := exec.Recover()
	if err != nil {
		return fmt.Errorf("восстановление WAL: %w", err)
	}
	if restored > 0 {
		logger.Warn("Незавершённые коммиты откачены", slog.Int("count", restored))
	}

	// 3. Производные адреса и состояние моста
	deriver := address.NewDeriver(cfg.ProgramID, cfg.AddressCacheSize, cfg.AddressCacheTTL)

	keys, err := bridge.ParseGuardianKeys(cfg.GuardianKeys)
	if err != nil {
		return fmt.Errorf("ключи guardian: %w", err)
	}
	var bridgeState model.Identity
	if len(keys) > 0 {
		bridgeState, err = service.InstallBridgeState(ctx, exec, deriver,
			&bridge.GuardianSet{Index: cfg.GuardianSetIndex, Keys: keys}, logger)
		if err != nil {
			return fmt.Errorf("установка состояния моста: %w", err)
		}
	} else {
		derived, err := deriver.BridgeStateAddress()
		if err != nil {
			return fmt.Errorf("адрес состояния моста: %w", err)
		}
		bridgeState = derived.Address
		logger.Warn("Набор guardian не задан: сообщения моста будут отклоняться как неподтверждённые")
	}

	// 4. Программа приёма
	prog := program.New(deriver,
		runtime.NewSystemAllocator(runtime.Rent{LamportsPerByteYear: cfg.RentLamportsPerByteYear}),
		bridge.NewGuardianVerifier(cfg.Emitters, logger),
		program.Options{BridgeState: bridgeState, Fencing: cfg.Fencing},
		logger)

	// 5. Индекс получателей (PostgreSQL, опционально)
	checkers := []handlers.ReadinessChecker{
		handlers.NewDirChecker("accounts", cfg.DataDir, "fail"),
		handlers.NewDirChecker("wal", cfg.WALDir, "degraded"),
	}
	index := repository.NewNoopRecipientIndex()
	var pgDB *sql.DB
	if cfg.IndexEnabled() {
		if err := database.Migrate(cfg, logger); err != nil {
			return fmt.Errorf("миграции PostgreSQL: %w", err)
		}
		pool, err := database.Connect(ctx, cfg, logger)
		if err != nil {
			return fmt.Errorf("подключение к PostgreSQL: %w", err)
		}
		defer pool.Close()

		pgDB = stdlib.OpenDBFromPool(pool)
		defer pgDB.Close()

		index = repository.NewRecipientIndexRepository(pool)
		checkers = append(checkers, database.NewIndexChecker(pool))
	} else {
		logger.Info("Индекс получателей отключён: TR_DB_HOST не задан")
	}

	// 6. Сервис приёма
	receiver := service.NewReceiverService(exec, prog, deriver, index, service.ReceiverOptions{
		Strategy:          cfg.Extractor,
		AllowUnverified:   cfg.AllowUnverified,
		FaucetEnabled:     cfg.FaucetEnabled,
		FaucetMaxLamports: cfg.FaucetMaxLamports,
	}, logger)

	// 7. Фоновые процессы
	var dephealthSvc *service.DephealthService
	dephealthSvc, dephealthErr := service.NewDephealthService(
		cfg.DephealthName,
		cfg.DephealthGroup,
		service.DephealthTargets{
			JWKSName:  cfg.DephealthDepName,
			JWKSUrl:   cfg.JWKSUrl,
			DB:        pgDB,
			PGConnURL: cfg.DatabaseURL(),
		},
		cfg.DephealthCheckInterval,
		logger,
	)
	if dephealthErr != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", dephealthErr.Error()),
		)
		dephealthSvc = nil
	} else if startErr := dephealthSvc.Start(ctx); startErr != nil {
		logger.Warn("Ошибка запуска topologymetrics",
			slog.String("error", startErr.Error()),
		)
		dephealthSvc = nil
	}

	walCleanup := service.NewWALCleanupService(walEngine, cfg.WALCleanupInterval, cfg.WALRetention, logger)
	walCleanup.Start(ctx)

	// 8. HTTP API
	var jwtAuth *middleware.JWTAuth
	if cfg.AuthEnabled() {
		jwtAuth, err = middleware.NewJWTAuth(middleware.JWTAuthConfig{
			JWKSURL:         cfg.JWKSUrl,
			CACertPath:      cfg.JWKSCACert,
			ClientTimeout:   cfg.JWKSClientTimeout,
			RefreshInterval: cfg.JWKSRefreshInterval,
			JWTLeeway:       cfg.JWTLeeway,
		}, logger)
		if err != nil {
			return fmt.Errorf("инициализация JWT: %w", err)
		}
		logger.Info("JWT-аутентификация включена", slog.String("jwks_url", cfg.JWKSUrl))
	} else {
		logger.Warn("JWT-аутентификация отключена: TR_JWKS_URL не задан")
	}

	doc, err := generated.GetSwagger()
	if err != nil {
		return fmt.Errorf("загрузка OpenAPI: %w", err)
	}
	validator, err := middleware.NewRequestValidator(doc, logger)
	if err != nil {
		return err
	}

	apiHandler := handlers.NewAPIHandler(
		handlers.NewReceiveHandler(receiver, logger),
		handlers.NewRecordsHandler(receiver, logger),
		handlers.NewAccountsHandler(receiver, logger),
		handlers.NewHealthHandler(checkers...),
	)

	srv := server.New(cfg, logger, apiHandler, jwtAuth, validator)
	runErr := srv.Run()

	// Остановка фоновых процессов
	if dephealthSvc != nil {
		dephealthSvc.Stop()
	}
	walCleanup.Stop()

	return runErr
}
