package metadata

import (
	"bytes"
	"errors"
	"math"
	"strings"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"

	"github.com/bigkaa/goartstore/media-module/internal/domain/model"
)

// maxTagString — строковые теги длиннее обрезаются.
const maxTagString = 256

// errNoExif — в буфере нет EXIF-блока.
var errNoExif = errors.New("EXIF отсутствует")

// ReadTags читает EXIF-теги в непрозрачный набор скаляров.
// Бинарные (undefined) теги пропускаются. Некритичные ошибки разбора
// не прерывают чтение: возвращается то, что удалось прочитать.
func ReadTags(data []byte) (model.TagBag, error) {
	x, err := exif.Decode(bytes.NewReader(data))
	if x == nil {
		if err == nil {
			err = errNoExif
		}
		return nil, err
	}
	if err != nil && exif.IsCriticalError(err) {
		return nil, err
	}

	w := &tagWalker{bag: make(model.TagBag)}
	if err := x.Walk(w); err != nil {
		return w.bag, err
	}
	return w.bag, nil
}

type tagWalker struct {
	bag model.TagBag
}

// Walk реализует exif.Walker.
func (w *tagWalker) Walk(name exif.FieldName, tag *tiff.Tag) error {
	if tag == nil || tag.Count == 0 {
		return nil
	}
	key := string(name)

	switch tag.Format() {
	case tiff.IntVal:
		if tag.Count == 1 {
			if v, err := tag.Int64(0); err == nil {
				w.bag[key] = model.NumberTag(float64(v))
			}
			return nil
		}
		w.bag[key] = model.StringTag(tag.String())
	case tiff.FloatVal:
		if v, err := tag.Float(0); err == nil && finite(v) {
			w.bag[key] = model.NumberTag(v)
		}
	case tiff.RatVal:
		if tag.Count == 1 {
			if num, den, err := tag.Rat2(0); err == nil && den != 0 {
				if v := float64(num) / float64(den); finite(v) {
					w.bag[key] = model.NumberTag(v)
				}
			}
			return nil
		}
		w.bag[key] = model.StringTag(tag.String())
	case tiff.StringVal:
		if s, err := tag.StringVal(); err == nil {
			s = strings.TrimSpace(strings.ReplaceAll(s, "\x00", ""))
			if len(s) > maxTagString {
				s = s[:maxTagString]
			}
			if s != "" {
				w.bag[key] = model.StringTag(s)
			}
		}
	}
	return nil
}

// finite отсекает NaN и ±Inf: их нельзя сохранить в JSON.
func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// densityFromTags вычисляет DPI из XResolution/ResolutionUnit
// (2 — дюймы, 3 — сантиметры).
func densityFromTags(bag model.TagBag) *float64 {
	res, ok := bag[string(exif.XResolution)].Number()
	if !ok || res <= 0 {
		return nil
	}
	unit, ok := bag[string(exif.ResolutionUnit)].Number()
	if !ok {
		unit = 2
	}
	switch unit {
	case 2:
		return &res
	case 3:
		dpi := res * 2.54
		return &dpi
	default:
		return nil
	}
}
