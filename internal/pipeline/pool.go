package pipeline

import (
	"context"
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/semaphore"
)

var poolInUse = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "mm_pipeline_workers_busy",
	Help: "Количество занятых слотов пула CPU-стадий",
})

// Pool ограничивает число одновременно выполняемых CPU-стадий
// (декодирование, трансформация, миниатюра, метаданные).
type Pool struct {
	sem  *semaphore.Weighted
	size int
}

// NewPool создаёт пул. size <= 0 — runtime.GOMAXPROCS(0).
func NewPool(size int) *Pool {
	if size <= 0 {
		size = runtime.GOMAXPROCS(0)
	}
	return &Pool{
		sem:  semaphore.NewWeighted(int64(size)),
		size: size,
	}
}

// Size возвращает ёмкость пула.
func (p *Pool) Size() int {
	return p.size
}

// Do выполняет fn в слоте пула. Ожидание слота прерывается отменой ctx.
func (p *Pool) Do(ctx context.Context, fn func() error) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	poolInUse.Inc()
	defer func() {
		poolInUse.Dec()
		p.sem.Release(1)
	}()

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn()
}
