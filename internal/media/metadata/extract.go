// Пакет metadata — извлечение структурных метаданных, палитры и
// оценки качества. Ошибки извлечения никогда не прерывают обработку:
// каждая часть деградирует к значению по умолчанию и логируется.
package metadata

import (
	"log/slog"

	"github.com/bigkaa/goartstore/media-module/internal/domain/model"
	"github.com/bigkaa/goartstore/media-module/internal/media/codec"
	"github.com/bigkaa/goartstore/media-module/internal/media/palette"
)

// Input — входные данные извлечения.
type Input struct {
	// Data — исходные байты загрузки (для EXIF)
	Data []byte
	// Raster — декодированный исходный растр
	Raster *codec.Raster
	// Primary — основной артефакт (размеры и размер для оценки качества)
	Primary *model.DerivedArtifact
}

// Extractor собирает ImageMetadata.
type Extractor struct {
	logger *slog.Logger
}

// NewExtractor создаёт Extractor.
func NewExtractor(logger *slog.Logger) *Extractor {
	return &Extractor{
		logger: logger.With(slog.String("component", "metadata")),
	}
}

type colors struct {
	palette  []string
	dominant string
}

// Extract извлекает метаданные. Не возвращает ошибок.
func (e *Extractor) Extract(in Input) model.ImageMetadata {
	md := model.EmptyMetadata()
	if in.Raster == nil {
		e.logger.Warn("Извлечение метаданных без растра, используются значения по умолчанию")
		return md
	}

	md.Animated = in.Raster.Animated()
	if md.Animated {
		md.Duration = in.Raster.Duration
	}

	tags := Attempt(func() (model.TagBag, error) {
		return ReadTags(in.Data)
	})
	if tags.Err != nil {
		e.logger.Debug("EXIF-теги не извлечены",
			slog.String("format", string(in.Raster.Format)),
			slog.String("error", tags.Err.Error()),
		)
	}
	if bag := tags.OrDefault(nil); len(bag) > 0 {
		md.Tags = bag
	}

	c := Attempt(func() (colors, error) {
		p, d := palette.Analyze(in.Raster.Image)
		return colors{palette: p, dominant: d}, nil
	})
	if c.Err != nil {
		e.logger.Warn("Не удалось построить палитру",
			slog.String("error", c.Err.Error()),
		)
	}
	cv := c.OrDefault(colors{palette: []string{}, dominant: model.FallbackColor})
	md.Palette, md.DominantColor = cv.palette, cv.dominant

	density := in.Raster.DensityDPI
	if density == nil {
		density = densityFromTags(md.Tags)
	}
	score := Attempt(func() (int, error) {
		return palette.Score(in.Primary.Width, in.Primary.Height, density, in.Primary.Size), nil
	})
	if score.Err != nil {
		e.logger.Warn("Не удалось вычислить оценку качества",
			slog.String("error", score.Err.Error()),
		)
	}
	md.QualityScore = score.OrDefault(0)

	return md
}
