// journal.go — фоновая обработка журнала публикации (WAL).
//
// JournalService выполняет две задачи:
//  1. Откатывает pending-транзакции старше MM_JOURNAL_PENDING_TTL:
//     удаляет объекты, оставшиеся после прерванной публикации или удаления
//  2. Удаляет файлы завершённых транзакций
//
// При старте обрабатываются все pending-транзакции: процесс, который
// их начал, уже не работает.
package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/goartstore/media-module/internal/publish"
	"github.com/bigkaa/goartstore/media-module/internal/repository"
	"github.com/bigkaa/goartstore/media-module/internal/storage/wal"
)

// Prometheus метрики журнала
var (
	journalRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mm_journal_runs_total",
		Help: "Общее количество проходов по журналу публикации",
	})

	journalRolledBackTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mm_journal_rolled_back_total",
		Help: "Количество откаченных pending-транзакций",
	})

	journalObjectsDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mm_journal_objects_deleted_total",
		Help: "Количество объектов-сирот, удалённых при откате",
	})

	journalDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "mm_journal_duration_seconds",
		Help:    "Длительность прохода по журналу в секундах",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
	})
)

// Journal — операции WAL, нужные сервису.
type Journal interface {
	RecoverPending() ([]*wal.Entry, error)
	Commit(txID string) error
	Rollback(txID string) error
	CleanCommitted() (int, error)
}

// JournalResult — результат одного прохода.
type JournalResult struct {
	// RolledBack — откаченные транзакции
	RolledBack int
	// Committed — публикации, запись которых уже сохранена
	Committed int
	// Skipped — pending-транзакции моложе TTL
	Skipped int
	// Cleaned — удалённые файлы завершённых транзакций
	Cleaned  int
	Errors   int
	Duration time.Duration
}

// JournalService — сервис обработки журнала публикации.
type JournalService struct {
	journal    Journal
	objects    publish.ObjectStore
	records    repository.RecordStore
	interval   time.Duration
	pendingTTL time.Duration
	now        func() time.Time
	logger     *slog.Logger

	mu     sync.Mutex // защита от параллельного запуска RunOnce
	cancel context.CancelFunc
	done   chan struct{}
}

// NewJournalService создаёт сервис журнала.
func NewJournalService(
	journal Journal,
	objects publish.ObjectStore,
	records repository.RecordStore,
	interval, pendingTTL time.Duration,
	logger *slog.Logger,
) *JournalService {
	return &JournalService{
		journal:    journal,
		objects:    objects,
		records:    records,
		interval:   interval,
		pendingTTL: pendingTTL,
		now:        time.Now,
		logger:     logger.With(slog.String("component", "journal")),
	}
}

// Recover обрабатывает все pending-транзакции без учёта возраста.
// Вызывается один раз при старте, до приёма запросов.
func (js *JournalService) Recover(ctx context.Context) *JournalResult {
	return js.run(ctx, 0)
}

// Start запускает фоновую горутину с периодическим тикером.
func (js *JournalService) Start(ctx context.Context) {
	jctx, cancel := context.WithCancel(ctx)
	js.cancel = cancel
	js.done = make(chan struct{})

	go js.loop(jctx)

	js.logger.Info("Обработка журнала запущена",
		slog.String("interval", js.interval.String()),
		slog.String("pending_ttl", js.pendingTTL.String()),
	)
}

// Stop останавливает фоновую горутину и ждёт её завершения.
func (js *JournalService) Stop() {
	if js.cancel == nil {
		return
	}
	js.cancel()
	<-js.done
	js.logger.Info("Обработка журнала остановлена")
}

func (js *JournalService) loop(ctx context.Context) {
	defer close(js.done)

	ticker := time.NewTicker(js.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			js.RunOnce(ctx)
		}
	}
}

// RunOnce выполняет один проход: pending-транзакции старше TTL
// откатываются, завершённые удаляются.
func (js *JournalService) RunOnce(ctx context.Context) *JournalResult {
	return js.run(ctx, js.pendingTTL)
}

func (js *JournalService) run(ctx context.Context, minAge time.Duration) *JournalResult {
	js.mu.Lock()
	defer js.mu.Unlock()

	start := time.Now()
	result := &JournalResult{}

	pending, err := js.journal.RecoverPending()
	if err != nil {
		js.logger.Error("Не удалось прочитать журнал", slog.String("error", err.Error()))
		result.Errors++
	}

	now := js.now().UTC()
	for _, entry := range pending {
		if ctx.Err() != nil {
			break
		}
		if minAge > 0 && now.Sub(entry.StartedAt) < minAge {
			result.Skipped++
			continue
		}
		js.resolve(ctx, entry, result)
	}

	cleaned, err := js.journal.CleanCommitted()
	if err != nil {
		js.logger.Error("Не удалось очистить журнал", slog.String("error", err.Error()))
		result.Errors++
	}
	result.Cleaned = cleaned
	result.Duration = time.Since(start)

	journalRunsTotal.Inc()
	journalRolledBackTotal.Add(float64(result.RolledBack))
	journalDurationSeconds.Observe(result.Duration.Seconds())

	js.logger.Info("Проход по журналу завершён",
		slog.Int("rolled_back", result.RolledBack),
		slog.Int("committed", result.Committed),
		slog.Int("skipped", result.Skipped),
		slog.Int("cleaned", result.Cleaned),
		slog.Int("errors", result.Errors),
		slog.Duration("duration", result.Duration),
	)

	return result
}

// resolve завершает одну pending-транзакцию.
// Публикация, запись которой уже сохранена, фиксируется: объекты
// принадлежат живой записи. Остальные транзакции откатываются
// удалением всех объектов.
func (js *JournalService) resolve(ctx context.Context, entry *wal.Entry, result *JournalResult) {
	log := js.logger.With(
		slog.String("tx_id", entry.TransactionID),
		slog.String("operation", string(entry.Operation)),
		slog.String("image_id", entry.ImageID),
	)

	if entry.Operation == wal.OpPublish {
		_, err := js.records.GetByID(ctx, entry.ImageID)
		switch {
		case err == nil:
			if err := js.journal.Commit(entry.TransactionID); err != nil {
				log.Error("Не удалось зафиксировать транзакцию", slog.String("error", err.Error()))
				result.Errors++
				return
			}
			result.Committed++
			return
		case !errors.Is(err, repository.ErrNotFound):
			log.Warn("Хранилище записей недоступно, транзакция отложена", slog.String("error", err.Error()))
			result.Errors++
			return
		}
	}

	for _, key := range entry.ObjectKeys {
		if err := js.objects.Delete(ctx, key); err != nil {
			log.Error("Не удалось удалить объект-сироту",
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
			result.Errors++
			return
		}
		journalObjectsDeletedTotal.Inc()
	}

	if err := js.journal.Rollback(entry.TransactionID); err != nil {
		log.Error("Не удалось откатить транзакцию", slog.String("error", err.Error()))
		result.Errors++
		return
	}

	log.Info("Незавершённая транзакция откачена", slog.Int("objects", len(entry.ObjectKeys)))
	result.RolledBack++
}
