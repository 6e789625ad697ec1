// Пакет palette — грубая выборочная палитра изображения и
// эвристическая оценка качества.
package palette

import (
	"image"
	"sort"

	"golang.org/x/image/draw"

	"github.com/bigkaa/goartstore/media-module/internal/domain/model"
)

const (
	// WorkSize — сторона рабочего растра пробы
	WorkSize = 150
	// Stride — шаг выборки в пикселях (каждый 10-й пиксель)
	Stride = 10
	// AlphaThreshold — пиксели с альфой ниже порога не учитываются
	AlphaThreshold = 128
	// MaxColors — максимальный размер палитры
	MaxColors = 10
)

const hexDigits = "0123456789abcdef"

// Analyze уменьшает изображение до 150×150 и строит палитру из точных
// значений #rrggbb: до 10 цветов по убыванию частоты, равные частоты —
// в порядке первого появления. Возвращает палитру и доминантный цвет.
func Analyze(img image.Image) ([]string, string) {
	work := image.NewNRGBA(image.Rect(0, 0, WorkSize, WorkSize))
	draw.ApproxBiLinear.Scale(work, work.Bounds(), img, img.Bounds(), draw.Src, nil)

	counts := make(map[string]int)
	var order []string
	for i := 0; i+3 < len(work.Pix); i += Stride * 4 {
		if work.Pix[i+3] < AlphaThreshold {
			continue
		}
		key := hexColor(work.Pix[i], work.Pix[i+1], work.Pix[i+2])
		if _, seen := counts[key]; !seen {
			order = append(order, key)
		}
		counts[key]++
	}

	sort.SliceStable(order, func(a, b int) bool {
		return counts[order[a]] > counts[order[b]]
	})
	if len(order) > MaxColors {
		order = order[:MaxColors]
	}

	palette := make([]string, len(order))
	copy(palette, order)
	return palette, Dominant(palette)
}

// Dominant возвращает первый цвет палитры или model.FallbackColor.
func Dominant(palette []string) string {
	if len(palette) == 0 {
		return model.FallbackColor
	}
	return palette[0]
}

func hexColor(r, g, b uint8) string {
	buf := [7]byte{'#',
		hexDigits[r>>4], hexDigits[r&0x0F],
		hexDigits[g>>4], hexDigits[g&0x0F],
		hexDigits[b>>4], hexDigits[b&0x0F],
	}
	return string(buf[:])
}
