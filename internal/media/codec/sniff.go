package codec

import (
	"github.com/gabriel-vasile/mimetype"
)

// sniffFormats — MIME-типы mimetype, сопоставленные форматам.
// Порядок важен: проверяется от самого специфичного типа к родителям.
var sniffFormats = []struct {
	mime   string
	format Format
}{
	{"image/jpeg", FormatJPEG},
	{"image/png", FormatPNG},
	{"image/gif", FormatGIF},
	{"image/webp", FormatWebP},
	{"image/heic", FormatHEIC},
	{"image/heic-sequence", FormatHEIC},
	{"image/heif", FormatHEIC},
	{"image/heif-sequence", FormatHEIC},
	{"image/avif", FormatAVIF},
	{"application/pdf", FormatPDF},
}

// Sniff определяет формат и MIME-тип по содержимому буфера.
func Sniff(data []byte) (Format, string) {
	detected := mimetype.Detect(data)
	for m := detected; m != nil; m = m.Parent() {
		for _, sf := range sniffFormats {
			if m.Is(sf.mime) {
				return sf.format, sf.mime
			}
		}
	}
	return FormatUnknown, detected.String()
}
