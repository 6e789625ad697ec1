// Пакет errors — ответы с ошибками Media Module.
// Единый формат: {"error": {"code": "...", "message": "..."}}.
// Все HTTP-ответы с ошибками должны использовать WriteError.
package errors //nolint:revive // TODO: переименовать пакет errors, конфликт со stdlib

import (
	"encoding/json"
	"net/http"

	"github.com/bigkaa/goartstore/media-module/internal/media"
)

// Коды ошибок, определённые в OpenAPI контракте.
const (
	CodeValidationError   = "VALIDATION_ERROR"
	CodeNotFound          = "NOT_FOUND"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeForbidden         = "FORBIDDEN"
	CodePayloadTooLarge   = string(media.KindPayloadTooLarge)
	CodeUnsupportedFormat = string(media.KindUnsupportedFormat)
	CodeTypeMismatch      = string(media.KindTypeMismatch)
	CodeDecodeError       = string(media.KindDecode)
	CodePublishError      = string(media.KindPublish)
	CodeTimeout           = "TIMEOUT"
	CodeInternalError     = "INTERNAL_ERROR"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError записывает ответ ошибки в стандартном формате.
// statusCode — HTTP статус-код, code — машиночитаемый код, message — описание.
func WriteError(w http.ResponseWriter, statusCode int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errorBody{
		Error: errorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// mediaStatus — HTTP статус для каждого вида ошибки пайплайна.
var mediaStatus = map[media.Kind]int{
	media.KindPayloadTooLarge:   http.StatusRequestEntityTooLarge,
	media.KindUnsupportedFormat: http.StatusUnsupportedMediaType,
	media.KindTypeMismatch:      http.StatusUnsupportedMediaType,
	media.KindDecode:            http.StatusUnprocessableEntity,
	media.KindPublish:           http.StatusBadGateway,
}

// MediaError записывает ошибку пайплайна. Возвращает false, если err
// не является ошибкой пайплайна.
func MediaError(w http.ResponseWriter, err error) bool {
	kind, ok := media.KindOf(err)
	if !ok {
		return false
	}
	status, ok := mediaStatus[kind]
	if !ok {
		status = http.StatusInternalServerError
	}
	WriteError(w, status, string(kind), err.Error())
	return true
}

// --- Конструкторы для типичных ошибок ---

// ValidationError — 400 некорректные входные данные.
func ValidationError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeValidationError, message)
}

// NotFound — 404 ресурс не найден.
func NotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, CodeNotFound, message)
}

// Unauthorized — 401 требуется аутентификация.
func Unauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, CodeUnauthorized, message)
}

// Forbidden — 403 недостаточно прав.
func Forbidden(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusForbidden, CodeForbidden, message)
}

// PayloadTooLarge — 413 тело запроса превышает лимит.
func PayloadTooLarge(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusRequestEntityTooLarge, CodePayloadTooLarge, message)
}

// Timeout — 504 обработка не уложилась в отведённое время.
func Timeout(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusGatewayTimeout, CodeTimeout, message)
}

// InternalError — 500 внутренняя ошибка.
func InternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, CodeInternalError, message)
}
