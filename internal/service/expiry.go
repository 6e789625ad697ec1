// expiry.go — фоновое удаление изображений с истёкшим сроком хранения
// (autoDeleteAfterMinutes). Запускается с периодическим тикером
// (MM_EXPIRY_INTERVAL).
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// expiryBatch — предел изображений за один проход.
const expiryBatch = 500

var expiredDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "mm_expired_images_deleted_total",
	Help: "Количество изображений, удалённых по истечении срока хранения",
})

// Purger удаляет просроченные изображения.
type Purger interface {
	PurgeExpired(ctx context.Context, limit int) (int, error)
}

// ExpiryService — сервис удаления просроченных изображений.
type ExpiryService struct {
	purger   Purger
	interval time.Duration
	logger   *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewExpiryService создаёт сервис.
func NewExpiryService(purger Purger, interval time.Duration, logger *slog.Logger) *ExpiryService {
	return &ExpiryService{
		purger:   purger,
		interval: interval,
		logger:   logger.With(slog.String("component", "expiry")),
	}
}

// Start запускает фоновую горутину. Первый проход — сразу после старта.
func (es *ExpiryService) Start(ctx context.Context) {
	ectx, cancel := context.WithCancel(ctx)
	es.cancel = cancel
	es.done = make(chan struct{})

	go func() {
		defer close(es.done)

		es.RunOnce(ectx)
		ticker := time.NewTicker(es.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ectx.Done():
				return
			case <-ticker.C:
				es.RunOnce(ectx)
			}
		}
	}()

	es.logger.Info("Удаление просроченных изображений запущено",
		slog.String("interval", es.interval.String()),
	)
}

// Stop останавливает фоновую горутину и ждёт её завершения.
func (es *ExpiryService) Stop() {
	if es.cancel == nil {
		return
	}
	es.cancel()
	<-es.done
}

// RunOnce удаляет просроченные изображения пачками, пока они есть.
func (es *ExpiryService) RunOnce(ctx context.Context) int {
	total := 0
	for ctx.Err() == nil {
		n, err := es.purger.PurgeExpired(ctx, expiryBatch)
		if err != nil {
			es.logger.Error("Ошибка удаления просроченных изображений", slog.String("error", err.Error()))
			break
		}
		total += n
		if n < expiryBatch {
			break
		}
	}

	if total > 0 {
		expiredDeletedTotal.Add(float64(total))
		es.logger.Info("Просроченные изображения удалены", slog.Int("deleted", total))
	}
	return total
}
