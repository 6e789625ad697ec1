package codec

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif" // регистрация декодера GIF
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // регистрация декодера WebP

	"github.com/bigkaa/goartstore/media-module/internal/media"
)

// Decode декодирует буфер в растр. Формат определяется по содержимому.
// Размеры проверяются через image.DecodeConfig до выделения памяти под пиксели.
// Паника стороннего декодера перехватывается и возвращается как DecodeError,
// частично декодированный растр наружу не выходит.
func Decode(data []byte, limits Limits) (raster *Raster, err error) {
	defer func() {
		if p := recover(); p != nil {
			raster = nil
			err = media.Errorf(media.KindDecode, "сбой декодера: %v", p)
		}
	}()

	if len(data) == 0 {
		return nil, media.Errorf(media.KindDecode, "пустой буфер")
	}

	format, mimeType := Sniff(data)
	switch format {
	case FormatUnknown:
		return nil, media.Errorf(media.KindDecode, "содержимое не распознано как изображение (%s)", mimeType)
	case FormatHEIC, FormatAVIF, FormatPDF:
		return nil, media.Errorf(media.KindDecode, "растровый декодер для формата %s недоступен", format)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, media.Wrap(media.KindDecode, err, "не удалось прочитать заголовок изображения")
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, media.Errorf(media.KindDecode, "некорректные размеры %dx%d", cfg.Width, cfg.Height)
	}
	maxPixels := limits.MaxPixels
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}
	if pixels := int64(cfg.Width) * int64(cfg.Height); pixels > maxPixels {
		return nil, media.Errorf(media.KindDecode,
			"изображение %dx%d превышает предел %d пикселей", cfg.Width, cfg.Height, maxPixels)
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, media.Wrap(media.KindDecode, err, fmt.Sprintf("не удалось декодировать %s", format))
	}

	info := scanContainer(format, data)
	bounds := img.Bounds()

	raster = &Raster{
		Image:      img,
		Format:     format,
		MIME:       mimeType,
		Width:      bounds.Dx(),
		Height:     bounds.Dy(),
		Frames:     info.frames,
		DensityDPI: info.density,
		HasAlpha:   hasAlpha(img),
	}
	if raster.Animated() {
		raster.Duration = info.duration
	}
	return raster, nil
}

// hasAlpha проверяет наличие прозрачных пикселей.
func hasAlpha(img image.Image) bool {
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return !o.Opaque()
	}
	return true
}
