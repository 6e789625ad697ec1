// images.go — сервис изображений: загрузка через пайплайн, чтение
// с кэшем и проверкой доступа, удаление объектов и записей.
package service

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bigkaa/goartstore/media-module/internal/domain/model"
	"github.com/bigkaa/goartstore/media-module/internal/pipeline"
	"github.com/bigkaa/goartstore/media-module/internal/repository"
)

// Processor — пайплайн обработки загрузки.
type Processor interface {
	Process(ctx context.Context, up pipeline.Upload, opts model.ProcessingOptions) (*pipeline.Result, error)
}

// Publications управляет опубликованными объектами через журнал.
// Реализуется *publish.Publisher.
type Publications interface {
	// Confirm фиксирует публикацию, запись которой сохранена.
	Confirm(txID string) error
	// Abandon удаляет объекты публикации, запись которой не сохранена.
	Abandon(ctx context.Context, txID, imageID string, keys []string) error
	// Discard удаляет объекты сохранённого изображения.
	Discard(ctx context.Context, imageID string, keys []string) error
}

// Viewer — субъект, запрашивающий изображение.
type Viewer struct {
	// OwnerID — владелец из токена или X-Owner-ID (пусто — аноним)
	OwnerID string
	// AccessSecret — секрет доступа к приватному изображению
	AccessSecret string
}

// ImageService — операции над изображениями.
type ImageService struct {
	processor Processor
	records   repository.RecordStore
	published Publications
	cache     *RecordCache
	now       func() time.Time
	logger    *slog.Logger
}

// NewImageService создаёт сервис изображений.
func NewImageService(
	processor Processor,
	records repository.RecordStore,
	published Publications,
	cache *RecordCache,
	logger *slog.Logger,
) *ImageService {
	if cache == nil {
		cache = NewRecordCache(0, 0)
	}
	return &ImageService{
		processor: processor,
		records:   records,
		published: published,
		cache:     cache,
		now:       time.Now,
		logger:    logger.With(slog.String("component", "images")),
	}
}

// HashSecret возвращает SHA-256 секрета доступа в hex.
func HashSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// Create обрабатывает загрузку и сохраняет запись.
// Транзакция публикации фиксируется только после сохранения записи.
// Если запись сохранить не удалось, опубликованные объекты удаляются.
func (s *ImageService) Create(ctx context.Context, up pipeline.Upload, opts model.ProcessingOptions) (*model.ImageRecord, error) {
	res, err := s.processor.Process(ctx, up, opts)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %w", ErrTimeout, err)
		}
		return nil, err
	}
	rec := res.Record

	// объекты уже опубликованы: запись сохраняется независимо от отмены запроса
	sctx := context.WithoutCancel(ctx)
	if err := s.records.Insert(sctx, rec); err != nil {
		s.logger.Error("Не удалось сохранить запись изображения, объекты удаляются",
			slog.String("image_id", rec.ID),
			slog.String("error", err.Error()),
		)
		if derr := s.published.Abandon(sctx, res.PublishTx, rec.ID, rec.ObjectKeys()); derr != nil {
			s.logger.Error("Не удалось удалить объекты несохранённого изображения",
				slog.String("image_id", rec.ID),
				slog.String("error", derr.Error()),
			)
		}
		return nil, fmt.Errorf("%w: %w", ErrStore, err)
	}
	if err := s.published.Confirm(res.PublishTx); err != nil {
		// запись сохранена: pending-транзакцию зафиксирует JournalService
		s.logger.Warn("Не удалось зафиксировать публикацию",
			slog.String("image_id", rec.ID),
			slog.String("error", err.Error()),
		)
	}

	s.cache.Set(rec)
	s.logger.Info("Изображение загружено",
		slog.String("image_id", rec.ID),
		slog.String("owner_id", rec.OwnerID),
		slog.String("filename", rec.OriginalFilename),
		slog.Int64("size", rec.Size),
		slog.Int("width", rec.Width),
		slog.Int("height", rec.Height),
	)
	return rec, nil
}

// Get возвращает запись и увеличивает счётчик просмотров.
// Приватная запись доступна владельцу или по секрету доступа.
func (s *ImageService) Get(ctx context.Context, id string, viewer Viewer) (*model.ImageRecord, error) {
	rec, err := s.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canView(rec, viewer) {
		return nil, ErrForbidden
	}

	if err := s.records.IncrementViews(ctx, id); err != nil {
		// счётчик вторичен, ответ не зависит от него
		s.logger.Warn("Не удалось увеличить счётчик просмотров",
			slog.String("image_id", id),
			slog.String("error", err.Error()),
		)
	} else {
		rec.Views++
	}
	return rec, nil
}

// List возвращает страницу изображений владельца и общее количество.
func (s *ImageService) List(ctx context.Context, ownerID string, limit, offset int) ([]*model.ImageRecord, int, error) {
	recs, total, err := s.records.ListByOwner(ctx, ownerID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrStore, err)
	}
	return recs, total, nil
}

// Delete удаляет объекты изображения, затем запись. Только владелец.
func (s *ImageService) Delete(ctx context.Context, id, ownerID string) error {
	rec, err := s.records.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("%w: %w", ErrStore, err)
	}
	if rec.OwnerID != ownerID {
		return ErrForbidden
	}
	return s.remove(ctx, rec)
}

// PurgeExpired удаляет до limit изображений с истёкшим сроком хранения.
// Возвращает количество удалённых.
func (s *ImageService) PurgeExpired(ctx context.Context, limit int) (int, error) {
	expired, err := s.records.ListExpired(ctx, s.now().UTC(), limit)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrStore, err)
	}

	purged := 0
	for _, rec := range expired {
		if ctx.Err() != nil {
			break
		}
		if err := s.remove(ctx, rec); err != nil {
			s.logger.Error("Не удалось удалить просроченное изображение",
				slog.String("image_id", rec.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		purged++
	}
	return purged, nil
}

// Ping проверяет доступность хранилища записей.
func (s *ImageService) Ping(ctx context.Context) error {
	return s.records.Ping(ctx)
}

func (s *ImageService) remove(ctx context.Context, rec *model.ImageRecord) error {
	if err := s.published.Discard(ctx, rec.ID, rec.ObjectKeys()); err != nil {
		return fmt.Errorf("%w: %w", ErrStore, err)
	}
	s.cache.Delete(rec.ID)
	if err := s.records.Delete(ctx, rec.ID); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrStore, err)
	}

	s.logger.Info("Изображение удалено",
		slog.String("image_id", rec.ID),
		slog.String("owner_id", rec.OwnerID),
	)
	return nil
}

// lookup читает запись из кэша или хранилища. Просроченная запись
// считается отсутствующей.
func (s *ImageService) lookup(ctx context.Context, id string) (*model.ImageRecord, error) {
	rec, ok := s.cache.Get(id)
	if !ok {
		var err error
		rec, err = s.records.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, ErrNotFound
			}
			return nil, fmt.Errorf("%w: %w", ErrStore, err)
		}
		s.cache.Set(rec)
	}

	if rec.IsExpired(s.now()) {
		return nil, ErrNotFound
	}
	return rec, nil
}

func canView(rec *model.ImageRecord, viewer Viewer) bool {
	if rec.IsPublic() {
		return true
	}
	if viewer.OwnerID != "" && viewer.OwnerID == rec.OwnerID {
		return true
	}
	if rec.AccessSecretHash == nil || viewer.AccessSecret == "" {
		return false
	}
	got := HashSecret(viewer.AccessSecret)
	return subtle.ConstantTimeCompare([]byte(got), []byte(*rec.AccessSecretHash)) == 1
}
