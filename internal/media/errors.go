// Пакет media — общие типы ошибок этапов обработки медиа.
// Подпакеты: validator (проверка входа), codec (декодирование),
// transform (основной артефакт и миниатюра), metadata и palette
// (извлечение метаданных, палитра и оценка качества).
package media

import (
	"errors"
	"fmt"
)

// Kind — вид ошибки пайплайна.
type Kind string

const (
	// KindUnsupportedFormat — расширение вне списка допустимых
	KindUnsupportedFormat Kind = "UNSUPPORTED_FORMAT"
	// KindPayloadTooLarge — размер превышает предел
	KindPayloadTooLarge Kind = "PAYLOAD_TOO_LARGE"
	// KindTypeMismatch — заявленный MIME-тип не image/* и не PDF
	KindTypeMismatch Kind = "TYPE_MISMATCH"
	// KindDecode — данные прошли проверку, но не декодируются
	KindDecode Kind = "DECODE_ERROR"
	// KindPublish — ошибка объектного хранилища, фатальна для вызова
	KindPublish Kind = "PUBLISH_ERROR"
)

// Error — ошибка этапа обработки с видом и сообщением о нарушенном ограничении.
type Error struct {
	Kind Kind
	// Stage — состояние пайплайна, в котором произошла ошибка (заполняет pipeline)
	Stage   string
	Message string
	Err     error
}

// Error реализует интерфейс error.
func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Unwrap возвращает исходную ошибку.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is сравнивает ошибки по виду: errors.Is(err, media.ErrPublish).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == ""
}

// Сигнальные значения для errors.Is.
var (
	ErrUnsupportedFormat = &Error{Kind: KindUnsupportedFormat}
	ErrPayloadTooLarge   = &Error{Kind: KindPayloadTooLarge}
	ErrTypeMismatch      = &Error{Kind: KindTypeMismatch}
	ErrDecode            = &Error{Kind: KindDecode}
	ErrPublish           = &Error{Kind: KindPublish}
)

// Errorf создаёт ошибку указанного вида с форматированным сообщением.
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap создаёт ошибку указанного вида поверх исходной.
func Wrap(kind Kind, err error, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf извлекает вид ошибки из цепочки.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}
