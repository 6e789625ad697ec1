// Пакет publish — публикация пары артефактов (основной + миниатюра)
// в объектное хранилище.
//
// Публикация атомарна для вызывающего кода: либо оба объекта сохранены
// и возвращены их адреса, либо уже сохранённые объекты удалены и
// возвращается PublishError. Ретраи здесь не выполняются.
//
// Успешная публикация оставляет запись журнала pending до Confirm
// (запись метаданных сохранена) или Abandon (не сохранена).
package publish

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/goartstore/media-module/internal/domain/model"
	"github.com/bigkaa/goartstore/media-module/internal/media"
	"github.com/bigkaa/goartstore/media-module/internal/storage/wal"
)

// Prometheus метрики публикации
var (
	publishedBytesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mm_published_bytes_total",
		Help: "Объём опубликованных артефактов в байтах",
	}, []string{"artifact"})

	publishFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mm_publish_failures_total",
		Help: "Количество неудачных публикаций",
	})

	compensationFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mm_publish_compensation_failures_total",
		Help: "Количество объектов, которые не удалось удалить при откате публикации",
	})
)

// compensationTimeout — предел времени на удаление объектов при откате.
const compensationTimeout = 30 * time.Second

// ObjectStore — объектное хранилище.
type ObjectStore interface {
	// Put сохраняет объект и возвращает стабильный публичный адрес.
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	// Delete удаляет объект. Отсутствующий объект не является ошибкой.
	Delete(ctx context.Context, key string) error
}

// Journal — журнал транзакций публикации. Реализуется *wal.WAL.
type Journal interface {
	StartTransaction(op wal.OperationType, imageID string, keys []string) (*wal.Entry, error)
	Commit(txID string) error
	Rollback(txID string) error
}

// Set — пара артефактов одного изображения.
type Set struct {
	ImageID   string
	Primary   *model.DerivedArtifact
	Thumbnail *model.DerivedArtifact
	// At — момент загрузки, задаёт префикс даты ключей
	At time.Time
}

// Locations — адреса опубликованных артефактов.
type Locations struct {
	PrimaryURL   string
	PrimaryKey   string
	ThumbnailURL string
	ThumbnailKey string
	// TxID — транзакция журнала publish, пусто без журнала
	TxID string
}

// Keys возвращает ключи основного артефакта и миниатюры.
func (l *Locations) Keys() []string {
	return []string{l.PrimaryKey, l.ThumbnailKey}
}

// ObjectKeys возвращает глобально уникальные ключи объектов:
// yyyy/mm/dd/{id}.{ext} и yyyy/mm/dd/{id}_thumb.{thumbExt}.
func ObjectKeys(imageID string, at time.Time, ext, thumbExt string) (string, string) {
	prefix := at.UTC().Format("2006/01/02")
	return fmt.Sprintf("%s/%s.%s", prefix, imageID, ext),
		fmt.Sprintf("%s/%s_thumb.%s", prefix, imageID, thumbExt)
}

// Publisher публикует артефакты.
type Publisher struct {
	store   ObjectStore
	journal Journal
	logger  *slog.Logger
}

// New создаёт Publisher. journal может быть nil (без журнала).
func New(store ObjectStore, journal Journal, logger *slog.Logger) *Publisher {
	return &Publisher{
		store:   store,
		journal: journal,
		logger:  logger.With(slog.String("component", "publisher")),
	}
}

// Publish сохраняет основной артефакт, затем миниатюру.
// При ошибке любого шага или отмене ctx уже сохранённые объекты удаляются.
// Транзакция откатывается, только если удалены все объекты.
// После успеха буферы артефактов освобождаются.
func (p *Publisher) Publish(ctx context.Context, set Set) (*Locations, error) {
	loc := &Locations{}
	loc.PrimaryKey, loc.ThumbnailKey = ObjectKeys(set.ImageID, set.At, set.Primary.Ext, set.Thumbnail.Ext)

	var txID string
	if p.journal != nil {
		entry, err := p.journal.StartTransaction(wal.OpPublish, set.ImageID, loc.Keys())
		if err != nil {
			publishFailuresTotal.Inc()
			return nil, media.Wrap(media.KindPublish, err, "не удалось записать журнал публикации")
		}
		txID = entry.TransactionID
	}

	var stored []string
	fail := func(err error, msg string) (*Locations, error) {
		publishFailuresTotal.Inc()
		ok := p.compensate(ctx, set.ImageID, stored)
		p.settle(txID, ok)
		return nil, media.Wrap(media.KindPublish, err, msg)
	}

	if err := ctx.Err(); err != nil {
		return fail(err, "публикация отменена")
	}
	url, err := p.store.Put(ctx, loc.PrimaryKey, set.Primary.Data, set.Primary.MimeType)
	if err != nil {
		return fail(err, "не удалось сохранить основной артефакт")
	}
	stored = append(stored, loc.PrimaryKey)
	loc.PrimaryURL = url

	if err := ctx.Err(); err != nil {
		return fail(err, "публикация отменена")
	}
	url, err = p.store.Put(ctx, loc.ThumbnailKey, set.Thumbnail.Data, set.Thumbnail.MimeType)
	if err != nil {
		return fail(err, "не удалось сохранить миниатюру")
	}
	stored = append(stored, loc.ThumbnailKey)
	loc.ThumbnailURL = url

	if err := ctx.Err(); err != nil {
		return fail(err, "публикация отменена")
	}

	loc.TxID = txID

	publishedBytesTotal.WithLabelValues("primary").Add(float64(set.Primary.Size))
	publishedBytesTotal.WithLabelValues("thumbnail").Add(float64(set.Thumbnail.Size))
	set.Primary.Release()
	set.Thumbnail.Release()

	p.logger.Debug("Артефакты опубликованы",
		slog.String("image_id", set.ImageID),
		slog.String("primary_key", loc.PrimaryKey),
		slog.String("thumbnail_key", loc.ThumbnailKey),
	)
	return loc, nil
}

// Confirm фиксирует транзакцию публикации после сохранения записи.
// При ошибке pending-запись остаётся: JournalService найдёт запись
// изображения и зафиксирует транзакцию сам.
func (p *Publisher) Confirm(txID string) error {
	if p.journal == nil || txID == "" {
		return nil
	}
	if err := p.journal.Commit(txID); err != nil {
		return fmt.Errorf("не удалось зафиксировать транзакцию публикации %s: %w", txID, err)
	}
	return nil
}

// Abandon удаляет объекты публикации, запись которой не сохранена.
// Если удалить удалось не всё, pending-запись остаётся и удаление
// повторит JournalService.
func (p *Publisher) Abandon(ctx context.Context, txID, imageID string, keys []string) error {
	ok := p.compensate(ctx, imageID, keys)
	p.settle(txID, ok)
	if !ok {
		return fmt.Errorf("не удалось удалить объекты изображения %s", imageID)
	}
	return nil
}

// settle откатывает транзакцию публикации после компенсации.
// Без полной компенсации запись журнала остаётся pending.
func (p *Publisher) settle(txID string, compensated bool) {
	if txID == "" {
		return
	}
	if !compensated {
		p.logger.Warn("Объекты удалены не полностью, pending-запись остаётся для повтора",
			slog.String("tx_id", txID),
		)
		return
	}
	if err := p.journal.Rollback(txID); err != nil {
		p.logger.Error("Не удалось откатить транзакцию публикации",
			slog.String("tx_id", txID),
			slog.String("error", err.Error()),
		)
	}
}

// Discard удаляет объекты уже опубликованного изображения
// (например, если запись не удалось сохранить в хранилище метаданных).
// Выполняется в журнале как операция discard.
func (p *Publisher) Discard(ctx context.Context, imageID string, keys []string) error {
	var txID string
	if p.journal != nil {
		entry, err := p.journal.StartTransaction(wal.OpDiscard, imageID, keys)
		if err != nil {
			return fmt.Errorf("не удалось записать журнал удаления: %w", err)
		}
		txID = entry.TransactionID
	}

	var firstErr error
	for _, key := range keys {
		if err := p.store.Delete(ctx, key); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if firstErr != nil {
		// pending-запись остаётся, удаление повторит JournalService
		return fmt.Errorf("не удалось удалить объекты изображения %s: %w", imageID, firstErr)
	}

	if txID != "" {
		if err := p.journal.Commit(txID); err != nil {
			p.logger.Warn("Не удалось зафиксировать транзакцию удаления",
				slog.String("tx_id", txID),
				slog.String("error", err.Error()),
			)
		}
	}
	return nil
}

// compensate удаляет уже сохранённые объекты. Не зависит от отмены ctx.
// Возвращает true, если удалены все объекты.
func (p *Publisher) compensate(ctx context.Context, imageID string, keys []string) bool {
	if len(keys) == 0 {
		return true
	}
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()

	ok := true
	for _, key := range keys {
		if err := p.store.Delete(cctx, key); err != nil {
			ok = false
			compensationFailuresTotal.Inc()
			p.logger.Error("Не удалось удалить объект при откате публикации",
				slog.String("image_id", imageID),
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
			continue
		}
		p.logger.Info("Объект удалён при откате публикации",
			slog.String("image_id", imageID),
			slog.String("key", key),
		)
	}
	return ok
}
