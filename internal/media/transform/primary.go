package transform

import (
	"bytes"
	"image"

	"github.com/disintegration/imaging"

	"github.com/bigkaa/goartstore/media-module/internal/domain/model"
	"github.com/bigkaa/goartstore/media-module/internal/media/codec"
)

// Primary строит основной артефакт из растра.
//
//   - при заданной границе — вписывание (FitWithin), без увеличения;
//   - opts.Convert — JPEG с уровнем качества opts.Quality;
//   - без конвертации и без изменения размера — исходные байты без изменений,
//     размеры берутся из их заголовка (EXIF-ориентация не применяется);
//   - без конвертации с изменением размера — формат источника
//     (webp кодируется в PNG без потерь).
func Primary(src []byte, r *codec.Raster, opts model.ResolvedOptions) (*model.DerivedArtifact, error) {
	img := r.Image
	width, height := r.Width, r.Height
	resized := false

	if opts.Resize() {
		w, h := FitWithin(width, height, opts.MaxWidth, opts.MaxHeight)
		if w != width || h != height {
			img = imaging.Resize(img, w, h, Resampling)
			width, height = w, h
			resized = true
		}
	}

	if opts.Convert {
		data, err := encodeJPEG(img, r.HasAlpha, opts.Quality)
		if err != nil {
			return nil, err
		}
		return model.NewArtifact(data, width, height, NormalizedMIME, normalizedExt), nil
	}

	if !resized {
		if cfg, _, err := image.DecodeConfig(bytes.NewReader(src)); err == nil {
			width, height = cfg.Width, cfg.Height
		}
		return model.NewArtifact(bytes.Clone(src), width, height, r.MIME, sourceExt(r.Format)), nil
	}

	var (
		data []byte
		err  error
	)
	mimeType, ext := r.MIME, sourceExt(r.Format)
	switch r.Format {
	case codec.FormatJPEG:
		data, err = encode(img, imaging.JPEG, imaging.JPEGQuality(opts.Quality))
	case codec.FormatGIF:
		data, err = encode(img, imaging.GIF)
	default:
		data, err = encode(img, imaging.PNG)
		mimeType, ext = "image/png", "png"
	}
	if err != nil {
		return nil, err
	}
	return model.NewArtifact(data, width, height, mimeType, ext), nil
}

// sourceExt — расширение ключа объекта для формата источника.
func sourceExt(f codec.Format) string {
	switch f {
	case codec.FormatJPEG:
		return "jpg"
	case codec.FormatUnknown:
		return "bin"
	default:
		return string(f)
	}
}
