package transform

import (
	"github.com/disintegration/imaging"

	"github.com/bigkaa/goartstore/media-module/internal/domain/model"
	"github.com/bigkaa/goartstore/media-module/internal/media/codec"
)

// Параметры миниатюры не зависят от ProcessingOptions.
const (
	ThumbnailSize    = 300
	ThumbnailQuality = 80
)

// Thumbnail строит миниатюру 300×300: заполнение с обрезкой по центру
// более длинной стороны. Читает исходный растр, не основной артефакт.
func Thumbnail(r *codec.Raster) (*model.DerivedArtifact, error) {
	img := imaging.Fill(r.Image, ThumbnailSize, ThumbnailSize, imaging.Center, Resampling)

	data, err := encodeJPEG(img, r.HasAlpha, ThumbnailQuality)
	if err != nil {
		return nil, err
	}
	return model.NewArtifact(data, ThumbnailSize, ThumbnailSize, NormalizedMIME, normalizedExt), nil
}
