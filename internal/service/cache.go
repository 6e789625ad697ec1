// cache.go — LRU-кэш записей изображений с TTL.
// Обёртка над hashicorp/golang-lru/v2/expirable.
package service

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/goartstore/media-module/internal/domain/model"
)

// Prometheus-метрики кэша.
var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mm_cache_hits_total",
		Help: "Общее количество попаданий в LRU-кэш записей.",
	})
	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mm_cache_misses_total",
		Help: "Общее количество промахов LRU-кэша записей.",
	})
)

// RecordCache — per-instance кэш записей по ID.
// Хранит копии: вызывающий код может менять возвращённую запись.
type RecordCache struct {
	cache *expirable.LRU[string, model.ImageRecord]
}

// NewRecordCache создаёт кэш. maxSize <= 0 — кэш отключён.
func NewRecordCache(maxSize int, ttl time.Duration) *RecordCache {
	if maxSize <= 0 {
		return &RecordCache{}
	}
	return &RecordCache{cache: expirable.NewLRU[string, model.ImageRecord](maxSize, nil, ttl)}
}

// Get возвращает копию записи. Счётчики просмотров в кэше не обновляются.
func (c *RecordCache) Get(id string) (*model.ImageRecord, bool) {
	if c.cache == nil {
		return nil, false
	}
	rec, ok := c.cache.Get(id)
	if !ok {
		cacheMissesTotal.Inc()
		return nil, false
	}
	cacheHitsTotal.Inc()
	return &rec, true
}

// Set добавляет или обновляет запись.
func (c *RecordCache) Set(rec *model.ImageRecord) {
	if c.cache == nil {
		return
	}
	c.cache.Add(rec.ID, *rec)
}

// Delete удаляет запись (инвалидация при удалении изображения).
func (c *RecordCache) Delete(id string) {
	if c.cache == nil {
		return
	}
	c.cache.Remove(id)
}

// Len возвращает количество записей в кэше.
func (c *RecordCache) Len() int {
	if c.cache == nil {
		return 0
	}
	return c.cache.Len()
}
