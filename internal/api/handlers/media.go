// media.go — раздача объектов локального хранилища по /media/{key}.
// Объекты неизменяемы: ключ содержит идентификатор изображения,
// поэтому ETag строится из ключа, а ответ кэшируется надолго.
package handlers

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"os"
	"path"

	"github.com/bigkaa/goartstore/media-module/internal/api/errors"
	"github.com/bigkaa/goartstore/media-module/internal/storage/filestore"
)

// immutableCacheControl — заголовок кэширования неизменяемых объектов.
const immutableCacheControl = "public, max-age=31536000, immutable"

// MediaSource открывает объект по ключу. Реализуется *filestore.FileStore.
type MediaSource interface {
	Open(key string) (*os.File, os.FileInfo, error)
}

// MediaHandler — обработчик GET /media/{key}.
type MediaHandler struct {
	// source — nil, если объекты хранятся в S3 и раздаются им самим
	source MediaSource
}

// NewMediaHandler создаёт обработчик раздачи объектов.
func NewMediaHandler(source MediaSource) *MediaHandler {
	return &MediaHandler{source: source}
}

// ServeMedia отдаёт объект. Поддерживает Range requests (206) и
// If-None-Match (304) через http.ServeContent.
func (h *MediaHandler) ServeMedia(w http.ResponseWriter, r *http.Request, key string) {
	if h.source == nil {
		errors.NotFound(w, "Объекты раздаются объектным хранилищем")
		return
	}

	f, info, err := h.source.Open(key)
	if err != nil {
		if stderrors.Is(err, filestore.ErrNotFound) || stderrors.Is(err, filestore.ErrInvalidKey) {
			errors.NotFound(w, fmt.Sprintf("Объект %s не найден", key))
			return
		}
		errors.InternalError(w, "Ошибка чтения объекта")
		return
	}
	defer f.Close()

	w.Header().Set("ETag", objectETag(key))
	w.Header().Set("Cache-Control", immutableCacheControl)
	// Content-Type определяется ServeContent по расширению имени
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}

// objectETag — сильный ETag объекта: имя файла уникально для изображения
// и вида артефакта ({id}.jpg, {id}_thumb.jpg).
func objectETag(key string) string {
	return `"` + path.Base(key) + `"`
}
