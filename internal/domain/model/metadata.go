// Пакет model — доменные модели Media Module.
// ImageRecord — единая структура записи изображения, используется
// как in-memory представление, как формат {id}.record.json на диске
// и как строка таблицы images в PostgreSQL.
package model

import (
	"time"
)

// Visibility — видимость изображения.
type Visibility string

const (
	// VisibilityPublic — доступно всем по ссылке
	VisibilityPublic Visibility = "public"
	// VisibilityPrivate — доступно владельцу или по секрету доступа
	VisibilityPrivate Visibility = "private"
)

// Valid проверяет, что значение видимости допустимо.
func (v Visibility) Valid() bool {
	return v == VisibilityPublic || v == VisibilityPrivate
}

// FallbackColor — доминантный цвет для изображений без видимых пикселей.
const FallbackColor = "#000000"

// ImageMetadata — извлечённые факты об изображении.
type ImageMetadata struct {
	// Tags — структурные теги (EXIF) как непрозрачный набор скаляров.
	// Никогда не интерпретируются пайплайном.
	Tags TagBag `json:"tags,omitempty"`

	// Palette — до 10 цветов #rrggbb, самые частые первыми
	Palette []string `json:"palette"`

	// DominantColor — Palette[0] или FallbackColor
	DominantColor string `json:"dominant_color"`

	// Animated — более одного кадра/страницы
	Animated bool `json:"animated"`

	// Duration — длительность анимации в секундах (только для Animated)
	Duration *float64 `json:"duration,omitempty"`

	// QualityScore — эвристическая оценка качества 0-100
	QualityScore int `json:"quality_score"`
}

// EmptyMetadata возвращает метаданные по умолчанию: пустая палитра
// и резервный доминантный цвет.
func EmptyMetadata() ImageMetadata {
	return ImageMetadata{
		Palette:       []string{},
		DominantColor: FallbackColor,
	}
}

// ImageRecord — запись изображения, собираемая в конце пайплайна.
// Width/Height всегда относятся к основному артефакту, не к миниатюре.
type ImageRecord struct {
	// ID — уникальный идентификатор изображения (UUID v4)
	ID string `json:"id"`

	// OwnerID — идентификатор владельца (из JWT sub или X-Owner-ID)
	OwnerID string `json:"owner_id"`

	// URL — публичный адрес основного артефакта
	URL string `json:"url"`
	// ObjectKey — ключ основного артефакта в объектном хранилище
	ObjectKey string `json:"object_key"`
	// Width, Height, Size — параметры основного артефакта
	Width  int   `json:"width"`
	Height int   `json:"height"`
	Size   int64 `json:"size"`
	// ContentType — MIME-тип основного артефакта
	ContentType string `json:"content_type"`

	// ThumbnailURL — публичный адрес миниатюры
	ThumbnailURL string `json:"thumbnail_url"`
	// ThumbnailKey — ключ миниатюры в объектном хранилище
	ThumbnailKey    string `json:"thumbnail_key"`
	ThumbnailWidth  int    `json:"thumbnail_width"`
	ThumbnailHeight int    `json:"thumbnail_height"`
	ThumbnailSize   int64  `json:"thumbnail_size"`

	// OriginalFilename — имя файла при загрузке
	OriginalFilename string `json:"original_filename"`
	// MimeType — заявленный клиентом MIME-тип
	MimeType string `json:"mime_type"`

	// Visibility — видимость (public по умолчанию)
	Visibility Visibility `json:"visibility"`
	// AccessSecretHash — SHA-256 секрета доступа (hex), опционально.
	// Не возвращается в API.
	AccessSecretHash *string `json:"access_secret_hash,omitempty"`
	// CollectionID — родительская коллекция (опционально)
	CollectionID *string `json:"collection_id,omitempty"`

	// ExpiresAt — момент автоудаления (created_at + N минут), опционально
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`

	// Счётчики, при сборке всегда 0
	Views     int64 `json:"views"`
	Downloads int64 `json:"downloads"`

	// Tags — пользовательские теги (опционально)
	Tags []string `json:"tags,omitempty"`

	Metadata ImageMetadata `json:"metadata"`
}

// IsExpired проверяет, истёк ли срок хранения изображения.
func (r *ImageRecord) IsExpired(now time.Time) bool {
	if r.ExpiresAt == nil {
		return false
	}
	return now.After(*r.ExpiresAt)
}

// IsPublic проверяет, что изображение публичное.
func (r *ImageRecord) IsPublic() bool {
	return r.Visibility != VisibilityPrivate
}

// ObjectKeys возвращает ключи обоих артефактов.
func (r *ImageRecord) ObjectKeys() []string {
	return []string{r.ObjectKey, r.ThumbnailKey}
}
