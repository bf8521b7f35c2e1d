// wal_cleanup.go — фоновая очистка завершённых WAL-транзакций.
//
// Завершённые (committed, rolled_back) записи старше срока хранения
// удаляются. Незавершённые не трогаются: их откатывает восстановление
// при старте.
package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/zk-Lokomotive/zkl-sui-sol/internal/storage/wal"
)

// Prometheus метрики очистки WAL
var (
	walCleanupRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tr_wal_cleanup_runs_total",
		Help: "Общее количество запусков очистки WAL",
	})

	walCleanupRemovedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tr_wal_cleanup_removed_total",
		Help: "Общее количество удалённых WAL-записей",
	})

	walCleanupDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tr_wal_cleanup_duration_seconds",
		Help:    "Длительность очистки WAL в секундах",
		Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5},
	})
)

// CleanupResult — результат одного запуска очистки.
type CleanupResult struct {
	Removed  int
	Err      error
	Duration time.Duration
}

// WALCleanupService — периодическая очистка WAL.
type WALCleanupService struct {
	wal       *wal.WAL
	interval  time.Duration
	retention time.Duration
	logger    *slog.Logger

	mu     sync.Mutex // защита от параллельного запуска RunOnce
	cancel context.CancelFunc
	done   chan struct{}
}

// NewWALCleanupService создаёт сервис очистки WAL.
func NewWALCleanupService(w *wal.WAL, interval, retention time.Duration, logger *slog.Logger) *WALCleanupService {
	return &WALCleanupService{
		wal:       w,
		interval:  interval,
		retention: retention,
		logger:    logger.With(slog.String("component", "wal_cleanup")),
	}
}

// Start запускает фоновую горутину с периодическим тикером.
func (c *WALCleanupService) Start(ctx context.Context) {
	cleanupCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})

	go c.run(cleanupCtx)

	c.logger.Info("Очистка WAL запущена",
		slog.String("interval", c.interval.String()),
		slog.String("retention", c.retention.String()),
	)
}

// Stop останавливает фоновый процесс и дожидается его завершения.
func (c *WALCleanupService) Stop() {
	if c.cancel != nil {
		c.cancel()
		<-c.done
	}
	c.logger.Info("Очистка WAL остановлена")
}

func (c *WALCleanupService) run(ctx context.Context) {
	defer close(c.done)

	c.RunOnce()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.RunOnce()
		}
	}
}

// RunOnce выполняет один цикл очистки.
func (c *WALCleanupService) RunOnce() *CleanupResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	start := time.Now()
	removed, err := c.wal.CleanCommitted(c.retention)
	result := &CleanupResult{Removed: removed, Err: err, Duration: time.Since(start)}

	walCleanupRunsTotal.Inc()
	walCleanupRemovedTotal.Add(float64(removed))
	walCleanupDurationSeconds.Observe(result.Duration.Seconds())

	if err != nil {
		c.logger.Error("Ошибка очистки WAL",
			slog.Int("removed", removed),
			slog.String("error", err.Error()),
		)
		return result
	}

	c.logger.Debug("Очистка WAL завершена",
		slog.Int("removed", removed),
		slog.Duration("duration", result.Duration),
	)
	return result
}
