// Пакет validator — проверка размера, расширения и MIME-типа загрузки
// до любого декодирования.
package validator

import (
	"mime"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/bigkaa/goartstore/media-module/internal/media"
)

// MaxSize — жёсткий предел размера загрузки (32 MiB).
const MaxSize int64 = 32 << 20

// allowedExtensions — допустимые расширения (нижний регистр, без точки).
var allowedExtensions = map[string]bool{
	"jpg": true, "jpeg": true, "png": true, "gif": true,
	"webp": true, "heic": true, "avif": true, "pdf": true,
}

// allowedList — для сообщений об ошибке.
const allowedList = "jpg, jpeg, png, gif, webp, heic, avif, pdf"

// Validate проверяет загрузку: расширение, затем размер, затем MIME-тип.
// Чистая функция, не читает содержимое.
func Validate(size int64, filename, declaredMIME string) error {
	if err := CheckExtension(filename); err != nil {
		return err
	}

	if size > MaxSize {
		return media.Errorf(media.KindPayloadTooLarge,
			"размер %s превышает предел %s", humanize.IBytes(uint64(size)), humanize.IBytes(uint64(MaxSize)))
	}

	if !acceptableMIME(declaredMIME) {
		return media.Errorf(media.KindTypeMismatch,
			"MIME-тип %q не допустим, ожидается image/* или application/pdf", declaredMIME)
	}

	return nil
}

// CheckExtension проверяет расширение имени файла.
// Возвращает UnsupportedFormatError для недопустимого или пустого расширения.
func CheckExtension(filename string) error {
	ext := Extension(filename)
	if allowedExtensions[ext] {
		return nil
	}
	if ext == "" {
		return media.Errorf(media.KindUnsupportedFormat,
			"файл %q без расширения, допустимые: %s", filename, allowedList)
	}
	return media.Errorf(media.KindUnsupportedFormat,
		"неподдерживаемое расширение %q, допустимые: %s", ext, allowedList)
}

// Extension возвращает расширение имени файла в нижнем регистре без точки.
func Extension(filename string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
}

// acceptableMIME проверяет заявленный тип без учёта параметров.
func acceptableMIME(declared string) bool {
	mediaType, _, err := mime.ParseMediaType(declared)
	if err != nil {
		return false
	}
	if mediaType == "application/pdf" {
		return true
	}
	sub, ok := strings.CutPrefix(mediaType, "image/")
	return ok && sub != ""
}
