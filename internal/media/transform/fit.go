// Пакет transform — основной артефакт (вписывание в границы и
// нормализация формата) и миниатюра 300×300.
package transform

import "math"

// FitWithin возвращает наибольшие размеры, не превышающие границ и
// исходного размера, с сохранением пропорций. Граница 0 — без ограничения.
// Увеличение не выполняется никогда.
func FitWithin(width, height, maxWidth, maxHeight int) (int, int) {
	if width <= 0 || height <= 0 {
		return width, height
	}

	scale := 1.0
	if maxWidth > 0 {
		scale = math.Min(scale, float64(maxWidth)/float64(width))
	}
	if maxHeight > 0 {
		scale = math.Min(scale, float64(maxHeight)/float64(height))
	}
	if scale >= 1 {
		return width, height
	}

	w := clampDim(int(math.Round(float64(width)*scale)), maxWidth)
	h := clampDim(int(math.Round(float64(height)*scale)), maxHeight)
	return w, h
}

func clampDim(v, bound int) int {
	if bound > 0 && v > bound {
		v = bound
	}
	if v < 1 {
		v = 1
	}
	return v
}
