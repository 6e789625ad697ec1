package model

import (
	"fmt"
	"time"
)

// ProcessingOptions — параметры обработки, переданные клиентом.
// nil означает «не задано».
type ProcessingOptions struct {
	// MaxWidth, MaxHeight — границы основного артефакта (положительные)
	MaxWidth  *int `json:"max_width,omitempty"`
	MaxHeight *int `json:"max_height,omitempty"`
	// Quality — желаемое качество 0-100, отображается на уровень кодировщика
	Quality *int `json:"quality,omitempty"`
	// ConvertToNormalizedFormat — перекодировать в нормализованный формат (по умолчанию true)
	ConvertToNormalizedFormat *bool `json:"convert_to_normalized_format,omitempty"`
	// AutoDeleteAfterMinutes — автоудаление через N минут (положительное)
	AutoDeleteAfterMinutes *int `json:"auto_delete_after_minutes,omitempty"`
}

// Validate проверяет диапазоны заданных параметров.
func (o ProcessingOptions) Validate() error {
	if o.MaxWidth != nil && *o.MaxWidth <= 0 {
		return fmt.Errorf("maxWidth: значение должно быть положительным, получено %d", *o.MaxWidth)
	}
	if o.MaxHeight != nil && *o.MaxHeight <= 0 {
		return fmt.Errorf("maxHeight: значение должно быть положительным, получено %d", *o.MaxHeight)
	}
	if o.Quality != nil && (*o.Quality < 0 || *o.Quality > 100) {
		return fmt.Errorf("quality: значение %d вне диапазона 0-100", *o.Quality)
	}
	if o.AutoDeleteAfterMinutes != nil && *o.AutoDeleteAfterMinutes <= 0 {
		return fmt.Errorf("autoDeleteAfterMinutes: значение должно быть положительным, получено %d", *o.AutoDeleteAfterMinutes)
	}
	return nil
}

// Defaults — значения по умолчанию для разрешения параметров.
type Defaults struct {
	// Quality — уровень кодировщика, если quality не задано
	Quality int
	// Convert — значение ConvertToNormalizedFormat по умолчанию
	Convert bool
	// Visibility — видимость новых записей
	Visibility Visibility
}

// DefaultDefaults возвращает стандартный набор: средний уровень 80,
// нормализация включена, изображения публичные.
func DefaultDefaults() Defaults {
	return Defaults{
		Quality:    80,
		Convert:    true,
		Visibility: VisibilityPublic,
	}
}

// ResolvedOptions — параметры после подстановки значений по умолчанию.
// Строится один раз на вызов пайплайна.
type ResolvedOptions struct {
	// MaxWidth, MaxHeight — 0 означает «без ограничения»
	MaxWidth  int
	MaxHeight int
	// Quality — уровень кодировщика (60, 80, 90 или 100)
	Quality int
	Convert bool
	// AutoDeleteAfter — 0 означает «без автоудаления»
	AutoDeleteAfter time.Duration
}

// Resize возвращает true, если задана хотя бы одна граница.
func (r ResolvedOptions) Resize() bool {
	return r.MaxWidth > 0 || r.MaxHeight > 0
}

// Resolve подставляет значения по умолчанию. Некорректные значения
// (не прошедшие Validate) трактуются как незаданные.
func (o ProcessingOptions) Resolve(d Defaults) ResolvedOptions {
	res := ResolvedOptions{
		Quality: d.Quality,
		Convert: d.Convert,
	}
	if o.MaxWidth != nil && *o.MaxWidth > 0 {
		res.MaxWidth = *o.MaxWidth
	}
	if o.MaxHeight != nil && *o.MaxHeight > 0 {
		res.MaxHeight = *o.MaxHeight
	}
	if o.Quality != nil {
		res.Quality = QualityTier(*o.Quality)
	}
	if o.ConvertToNormalizedFormat != nil {
		res.Convert = *o.ConvertToNormalizedFormat
	}
	if o.AutoDeleteAfterMinutes != nil && *o.AutoDeleteAfterMinutes > 0 {
		res.AutoDeleteAfter = time.Duration(*o.AutoDeleteAfterMinutes) * time.Minute
	}
	return res
}

// QualityTier отображает запрошенное качество 0-100 на уровень кодировщика:
// ≤30 → 60, ≤70 → 80, ≤90 → 90, иначе 100.
func QualityTier(q int) int {
	switch {
	case q <= 30:
		return 60
	case q <= 70:
		return 80
	case q <= 90:
		return 90
	default:
		return 100
	}
}

// RecordAttributes — атрибуты записи, не влияющие на обработку.
type RecordAttributes struct {
	OwnerID string
	// Visibility — пустое значение заменяется Defaults.Visibility
	Visibility Visibility
	// AccessSecretHash — SHA-256 секрета доступа (hex)
	AccessSecretHash *string
	CollectionID     *string
	Tags             []string
}
