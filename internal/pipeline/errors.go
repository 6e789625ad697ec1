package pipeline

import "github.com/bigkaa/goartstore/media-module/internal/media"

// Error — ошибка вызова пайплайна. Kind — вид, Stage — состояние,
// в котором обработка остановилась.
type Error = media.Error

// Kind — вид ошибки пайплайна.
type Kind = media.Kind

// Виды ошибок.
const (
	KindUnsupportedFormat = media.KindUnsupportedFormat
	KindPayloadTooLarge   = media.KindPayloadTooLarge
	KindTypeMismatch      = media.KindTypeMismatch
	KindDecode            = media.KindDecode
	KindPublish           = media.KindPublish
)

// Сигнальные значения для errors.Is.
var (
	ErrUnsupportedFormat = media.ErrUnsupportedFormat
	ErrPayloadTooLarge   = media.ErrPayloadTooLarge
	ErrTypeMismatch      = media.ErrTypeMismatch
	ErrDecode            = media.ErrDecode
	ErrPublish           = media.ErrPublish
)

// KindOf извлекает вид ошибки из цепочки.
func KindOf(err error) (Kind, bool) {
	return media.KindOf(err)
}
