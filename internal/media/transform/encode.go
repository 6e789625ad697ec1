package transform

import (
	"bytes"
	"image"
	"image/color"

	"github.com/disintegration/imaging"

	"github.com/bigkaa/goartstore/media-module/internal/media"
)

// Нормализованный формат платформы — JPEG: стандартный кодировщик
// детерминирован и не использует случайность.
const (
	NormalizedMIME = "image/jpeg"
	normalizedExt  = "jpg"
)

// Resampling — фиксированный фильтр для всех масштабирований.
var Resampling = imaging.Lanczos

// encodeJPEG кодирует в JPEG, предварительно накладывая прозрачные
// пиксели на белый фон.
func encodeJPEG(img image.Image, hasAlpha bool, quality int) ([]byte, error) {
	if hasAlpha {
		img = flatten(img)
	}
	return encode(img, imaging.JPEG, imaging.JPEGQuality(quality))
}

func encode(img image.Image, format imaging.Format, opts ...imaging.EncodeOption) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, format, opts...); err != nil {
		return nil, media.Wrap(media.KindDecode, err, "не удалось закодировать артефакт")
	}
	return buf.Bytes(), nil
}

// flatten накладывает изображение на белый фон.
func flatten(img image.Image) *image.NRGBA {
	b := img.Bounds()
	bg := imaging.New(b.Dx(), b.Dy(), color.White)
	return imaging.Overlay(bg, img, image.Pt(0, 0), 1.0)
}
