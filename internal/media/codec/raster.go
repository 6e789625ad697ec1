// Пакет codec — декодирование загруженного буфера в растр и чтение
// сведений контейнера (кадры, длительность, плотность).
// Единственный пакет, разбирающий форматы на уровне байтов.
package codec

import (
	"image"
)

// Format — распознанный по содержимому формат.
type Format string

const (
	FormatJPEG    Format = "jpeg"
	FormatPNG     Format = "png"
	FormatGIF     Format = "gif"
	FormatWebP    Format = "webp"
	FormatHEIC    Format = "heic"
	FormatAVIF    Format = "avif"
	FormatPDF     Format = "pdf"
	FormatUnknown Format = ""
)

// DefaultMaxPixels — предел числа пикселей растра по умолчанию (100 Мпикс).
const DefaultMaxPixels int64 = 100_000_000

// Limits — ограничения декодирования.
type Limits struct {
	// MaxPixels — предел ширина×высота, проверяется до полного декодирования
	MaxPixels int64
}

// DefaultLimits возвращает ограничения по умолчанию.
func DefaultLimits() Limits {
	return Limits{MaxPixels: DefaultMaxPixels}
}

// Raster — декодированное изображение и сведения контейнера.
type Raster struct {
	// Image — первый кадр с применённой EXIF-ориентацией
	Image image.Image
	// Format — формат по содержимому (не по расширению)
	Format Format
	// MIME — MIME-тип по содержимому
	MIME string
	// Width, Height — размеры после ориентации
	Width  int
	Height int
	// Frames — число кадров (1 для статичных)
	Frames int
	// Duration — суммарная длительность анимации в секундах
	Duration *float64
	// DensityDPI — заявленная плотность, если известна
	DensityDPI *float64
	// HasAlpha — есть хотя бы один непрозрачный не полностью пиксель
	HasAlpha bool
}

// Animated возвращает true для многокадровых изображений.
func (r *Raster) Animated() bool {
	return r.Frames > 1
}
