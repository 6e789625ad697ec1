// Пакет index — потокобезопасный in-memory индекс записей изображений.
//
// Используется как самостоятельное хранилище записей (MM_METADATA_STORE=memory)
// и как индекс поверх JSON-записей file-бэкенда: индекс строится при старте
// (Load) и обновляется синхронно при операциях записи.
//
// Не персистентный: при рестарте пересобирается из JSON-записей.
package index

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/bigkaa/goartstore/media-module/internal/domain/model"
	"github.com/bigkaa/goartstore/media-module/internal/repository"
)

// Index — потокобезопасный in-memory индекс записей.
// Использует sync.RWMutex для конкурентного чтения и
// эксклюзивной записи.
type Index struct {
	mu      sync.RWMutex
	records map[string]*model.ImageRecord // id → запись
	ready   bool
	logger  *slog.Logger
}

// New создаёт пустой индекс, готовый к работе.
func New(logger *slog.Logger) *Index {
	return &Index{
		records: make(map[string]*model.ImageRecord),
		ready:   true,
		logger:  logger.With(slog.String("component", "index")),
	}
}

// Load заменяет содержимое индекса переданными записями.
func (idx *Index) Load(records []*model.ImageRecord) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.records = make(map[string]*model.ImageRecord, len(records))
	for _, rec := range records {
		idx.records[rec.ID] = clone(rec)
	}
	idx.ready = true

	idx.logger.Info("Индекс записей построен", slog.Int("records", len(idx.records)))
}

// IsReady возвращает true, если индекс построен и готов к использованию.
func (idx *Index) IsReady() bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.ready
}

// Insert добавляет запись. Дубликат ID — repository.ErrConflict.
func (idx *Index) Insert(_ context.Context, rec *model.ImageRecord) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if _, ok := idx.records[rec.ID]; ok {
		return fmt.Errorf("%w: изображение %s уже сохранено", repository.ErrConflict, rec.ID)
	}
	idx.records[rec.ID] = clone(rec)
	return nil
}

// GetByID возвращает копию записи.
func (idx *Index) GetByID(_ context.Context, id string) (*model.ImageRecord, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	rec, ok := idx.records[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return clone(rec), nil
}

// ListByOwner возвращает страницу записей владельца, отсортированных
// по дате создания (новые первые), и общее количество записей владельца.
// limit <= 0 — все записи.
func (idx *Index) ListByOwner(_ context.Context, ownerID string, limit, offset int) ([]*model.ImageRecord, int, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var filtered []*model.ImageRecord
	for _, rec := range idx.records {
		if rec.OwnerID == ownerID {
			filtered = append(filtered, rec)
		}
	}

	sort.Slice(filtered, func(i, j int) bool {
		if filtered[i].CreatedAt.Equal(filtered[j].CreatedAt) {
			return filtered[i].ID < filtered[j].ID
		}
		return filtered[i].CreatedAt.After(filtered[j].CreatedAt)
	})

	total := len(filtered)
	if offset >= total {
		return nil, total, nil
	}
	end := total
	if limit > 0 && offset+limit < total {
		end = offset + limit
	}

	page := make([]*model.ImageRecord, 0, end-offset)
	for _, rec := range filtered[offset:end] {
		page = append(page, clone(rec))
	}
	return page, total, nil
}

// ListExpired возвращает до limit записей с истёкшим сроком хранения,
// самые старые первые.
func (idx *Index) ListExpired(_ context.Context, now time.Time, limit int) ([]*model.ImageRecord, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var expired []*model.ImageRecord
	for _, rec := range idx.records {
		if rec.IsExpired(now) {
			expired = append(expired, rec)
		}
	}
	sort.Slice(expired, func(i, j int) bool {
		return expired[i].ExpiresAt.Before(*expired[j].ExpiresAt)
	})
	if limit > 0 && len(expired) > limit {
		expired = expired[:limit]
	}

	result := make([]*model.ImageRecord, 0, len(expired))
	for _, rec := range expired {
		result = append(result, clone(rec))
	}
	return result, nil
}

// IncrementViews увеличивает счётчик просмотров.
func (idx *Index) IncrementViews(ctx context.Context, id string) error {
	_, err := idx.Update(ctx, id, func(rec *model.ImageRecord) {
		rec.Views++
	})
	return err
}

// Update применяет fn к записи под блокировкой и возвращает копию результата.
func (idx *Index) Update(_ context.Context, id string, fn func(*model.ImageRecord)) (*model.ImageRecord, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	rec, ok := idx.records[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	fn(rec)
	return clone(rec), nil
}

// Delete удаляет запись.
func (idx *Index) Delete(_ context.Context, id string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if _, ok := idx.records[id]; !ok {
		return repository.ErrNotFound
	}
	delete(idx.records, id)
	return nil
}

// Ping реализует repository.RecordStore.
func (idx *Index) Ping(_ context.Context) error {
	if !idx.IsReady() {
		return fmt.Errorf("индекс записей не построен")
	}
	return nil
}

// Count возвращает общее количество записей.
func (idx *Index) Count() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.records)
}

// clone копирует запись вместе со срезами и указателями,
// чтобы внешние изменения не затрагивали индекс.
func clone(rec *model.ImageRecord) *model.ImageRecord {
	c := *rec
	c.Tags = slices.Clone(rec.Tags)
	c.Metadata.Palette = slices.Clone(rec.Metadata.Palette)
	if rec.Metadata.Tags != nil {
		c.Metadata.Tags = make(model.TagBag, len(rec.Metadata.Tags))
		for k, v := range rec.Metadata.Tags {
			c.Metadata.Tags[k] = v
		}
	}
	c.AccessSecretHash = clonePtr(rec.AccessSecretHash)
	c.CollectionID = clonePtr(rec.CollectionID)
	c.ExpiresAt = clonePtr(rec.ExpiresAt)
	c.Metadata.Duration = clonePtr(rec.Metadata.Duration)
	return &c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

var _ repository.RecordStore = (*Index)(nil)
