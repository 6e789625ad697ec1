// Пакет pipeline — конвейер приёма и обработки загрузки:
// проверка → декодирование → {основной артефакт ‖ миниатюра} →
// метаданные → публикация → сборка записи.
//
// Вызов не хранит состояния между загрузками. CPU-стадии выполняются
// в ограниченном пуле, публикация — вне пула. Отмена ctx до завершения
// публикации приводит к удалению уже опубликованных объектов; запись
// в этом случае не собирается.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/errgroup"

	"github.com/bigkaa/goartstore/media-module/internal/domain/model"
	"github.com/bigkaa/goartstore/media-module/internal/media"
	"github.com/bigkaa/goartstore/media-module/internal/media/codec"
	"github.com/bigkaa/goartstore/media-module/internal/media/metadata"
	"github.com/bigkaa/goartstore/media-module/internal/media/transform"
	"github.com/bigkaa/goartstore/media-module/internal/media/validator"
	"github.com/bigkaa/goartstore/media-module/internal/publish"
)

// Prometheus метрики пайплайна
var (
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mm_pipeline_runs_total",
		Help: "Количество вызовов пайплайна по результату",
	}, []string{"result", "kind"})

	stageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mm_pipeline_stage_duration_seconds",
		Help:    "Длительность стадий пайплайна",
		Buckets: prometheus.DefBuckets,
	}, []string{"stage"})

	inflight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mm_pipeline_inflight",
		Help: "Количество выполняющихся вызовов пайплайна",
	})
)

// Upload — входящая загрузка. Живёт только в пределах вызова.
type Upload struct {
	Data     []byte
	Filename string
	// MIME — заявленный клиентом тип
	MIME string
	// Size — заявленный размер; если меньше len(Data), используется len(Data)
	Size int64
	// Attributes — атрибуты записи (владелец, видимость, секрет, коллекция, теги)
	Attributes model.RecordAttributes
}

// Result — результат успешного вызова. Буферы артефактов уже освобождены,
// размеры и MIME-типы сохранены.
type Result struct {
	Record    *model.ImageRecord
	Primary   *model.DerivedArtifact
	Thumbnail *model.DerivedArtifact
	// History — пройденные состояния
	History []TransitionRecord
	// PublishTx — незафиксированная транзакция публикации.
	// Фиксируется вызывающим кодом после сохранения записи.
	PublishTx string
}

// Publisher публикует пару артефактов. Реализуется *publish.Publisher.
type Publisher interface {
	Publish(ctx context.Context, set publish.Set) (*publish.Locations, error)
}

// Config — параметры пайплайна.
type Config struct {
	Limits   codec.Limits
	Defaults model.Defaults
	// Workers — ёмкость пула CPU-стадий (0 — GOMAXPROCS)
	Workers int
	// Now — источник времени (nil — time.Now)
	Now func() time.Time
	// NewID — генератор идентификаторов изображений (nil — UUID v4)
	NewID func() string
}

// Pipeline — конвейер обработки загрузок. Безопасен для конкурентного
// использования.
type Pipeline struct {
	pool      *Pool
	publisher Publisher
	extractor *metadata.Extractor
	limits    codec.Limits
	defaults  model.Defaults
	now       func() time.Time
	newID     func() string
	logger    *slog.Logger
}

// New создаёт Pipeline.
func New(cfg Config, publisher Publisher, logger *slog.Logger) *Pipeline {
	if cfg.Limits.MaxPixels <= 0 {
		cfg.Limits = codec.DefaultLimits()
	}
	if cfg.Defaults.Quality == 0 {
		cfg.Defaults = model.DefaultDefaults()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NewID == nil {
		cfg.NewID = func() string { return uuid.New().String() }
	}

	return &Pipeline{
		pool:      NewPool(cfg.Workers),
		publisher: publisher,
		extractor: metadata.NewExtractor(logger),
		limits:    cfg.Limits,
		defaults:  cfg.Defaults,
		now:       cfg.Now,
		newID:     cfg.NewID,
		logger:    logger.With(slog.String("component", "pipeline")),
	}
}

// Workers возвращает ёмкость пула CPU-стадий.
func (p *Pipeline) Workers() int {
	return p.pool.Size()
}

// Process выполняет полный цикл обработки загрузки.
// Ошибки стадий — *Error с видом (KindOf); отмена ctx возвращает
// ошибку с причиной context.Canceled / context.DeadlineExceeded.
func (p *Pipeline) Process(ctx context.Context, up Upload, opts ProcessingOptions) (*Result, error) {
	inflight.Inc()
	defer inflight.Dec()

	tr := NewTracker(p.now)
	resolved := opts.Resolve(p.defaults)

	fail := func(state State, err error) (*Result, error) {
		kind, ok := media.KindOf(err)
		label := string(kind)
		if !ok {
			label = "CANCELED"
			if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
				label = "INTERNAL"
			}
		}
		_ = tr.Fail(kind)
		runsTotal.WithLabelValues("failure", label).Inc()

		p.logger.Debug("Обработка загрузки прервана",
			slog.String("filename", up.Filename),
			slog.String("stage", string(state)),
			slog.String("kind", label),
			slog.String("error", err.Error()),
		)

		if me, isMedia := err.(*media.Error); isMedia {
			staged := *me
			staged.Stage = string(state)
			return nil, &staged
		}
		if !ok {
			return nil, fmt.Errorf("обработка прервана на стадии %s: %w", state, err)
		}
		return nil, err
	}

	// Validated
	size := max(up.Size, int64(len(up.Data)))
	if err := p.stage(StateValidated, func() error {
		return validator.Validate(size, up.Filename, up.MIME)
	}); err != nil {
		return fail(StateValidated, err)
	}
	_ = tr.Advance(StateValidated)

	// Decoded
	var raster *codec.Raster
	if err := p.stage(StateDecoded, func() error {
		return p.pool.Do(ctx, func() error {
			r, err := codec.Decode(up.Data, p.limits)
			raster = r
			return err
		})
	}); err != nil {
		return fail(StateDecoded, err)
	}
	_ = tr.Advance(StateDecoded)

	// Transformed: основной артефакт и миниатюра независимы
	var primary, thumb *model.DerivedArtifact
	if err := p.stage(StateTransformed, func() error {
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return p.pool.Do(gctx, func() error {
				a, err := transform.Primary(up.Data, raster, resolved)
				primary = a
				return err
			})
		})
		g.Go(func() error {
			return p.pool.Do(gctx, func() error {
				a, err := transform.Thumbnail(raster)
				thumb = a
				return err
			})
		})
		return g.Wait()
	}); err != nil {
		return fail(StateTransformed, err)
	}
	_ = tr.Advance(StateTransformed)

	// MetadataExtracted: не возвращает ошибок, кроме отмены
	var md model.ImageMetadata
	if err := p.stage(StateMetadataExtracted, func() error {
		return p.pool.Do(ctx, func() error {
			md = p.extractor.Extract(metadata.Input{
				Data:    up.Data,
				Raster:  raster,
				Primary: primary,
			})
			return nil
		})
	}); err != nil {
		return fail(StateMetadataExtracted, err)
	}
	_ = tr.Advance(StateMetadataExtracted)

	// Published
	imageID := p.newID()
	now := p.now()
	var loc *publish.Locations
	if err := p.stage(StatePublished, func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		l, err := p.publisher.Publish(ctx, publish.Set{
			ImageID:   imageID,
			At:        now,
			Primary:   primary,
			Thumbnail: thumb,
		})
		loc = l
		return err
	}); err != nil {
		return fail(StatePublished, err)
	}
	_ = tr.Advance(StatePublished)

	// Assembled
	rec := Assemble(AssembleInput{
		ImageID:   imageID,
		Now:       now,
		Filename:  up.Filename,
		MIME:      up.MIME,
		Options:   resolved,
		Defaults:  p.defaults,
		Attrs:     up.Attributes,
		Primary:   primary,
		Thumbnail: thumb,
		Locations: loc,
		Metadata:  md,
	})
	_ = tr.Advance(StateAssembled)
	runsTotal.WithLabelValues("success", "").Inc()

	p.logger.Debug("Загрузка обработана",
		slog.String("image_id", rec.ID),
		slog.String("filename", up.Filename),
		slog.Int("width", rec.Width),
		slog.Int("height", rec.Height),
		slog.Int("quality_score", rec.Metadata.QualityScore),
	)

	return &Result{
		Record:    rec,
		Primary:   primary,
		Thumbnail: thumb,
		History:   tr.History(),
		PublishTx: loc.TxID,
	}, nil
}

// stage выполняет fn и записывает длительность стадии.
func (p *Pipeline) stage(s State, fn func() error) error {
	start := time.Now()
	err := fn()
	stageDuration.WithLabelValues(string(s)).Observe(time.Since(start).Seconds())
	return err
}

// ProcessingOptions — параметры обработки (псевдоним model.ProcessingOptions).
type ProcessingOptions = model.ProcessingOptions
