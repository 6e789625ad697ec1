// Пакет mediatest — генераторы тестовых изображений для тестов пакетов media.
package mediatest

import (
	"bytes"
	"image"
	"image/color"
	"image/color/palette"
	"image/gif"
	"image/jpeg"
	"image/png"
	"math/rand"
	"testing"
)

// NoiseImage создаёт непрозрачное изображение со случайным шумом
// (фиксированный seed). Шум плохо сжимается, поэтому JPEG получается крупным.
func NoiseImage(w, h int, seed int64) *image.RGBA {
	rnd := rand.New(rand.NewSource(seed))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	rnd.Read(img.Pix)
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 0xFF
	}
	return img
}

// Solid создаёт изображение одного цвета.
func Solid(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
	}
	return img
}

// JPEG кодирует изображение в JPEG с указанным качеством.
func JPEG(t testing.TB, img image.Image, quality int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		t.Fatalf("jpeg.Encode: %v", err)
	}
	return buf.Bytes()
}

// PNG кодирует изображение в PNG.
func PNG(t testing.TB, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return buf.Bytes()
}

// NoiseJPEG — JPEG из NoiseImage.
func NoiseJPEG(t testing.TB, w, h int, seed int64) []byte {
	t.Helper()
	return JPEG(t, NoiseImage(w, h, seed), 90)
}

// TransparentPNG — полностью прозрачный PNG.
func TransparentPNG(t testing.TB, w, h int) []byte {
	t.Helper()
	return PNG(t, Solid(w, h, color.NRGBA{}))
}

// AnimatedGIF создаёт GIF из frames кадров с задержкой delay (1/100 с) у каждого.
func AnimatedGIF(t testing.TB, w, h, frames, delay int) []byte {
	t.Helper()
	anim := &gif.GIF{}
	for i := 0; i < frames; i++ {
		frame := image.NewPaletted(image.Rect(0, 0, w, h), palette.Plan9)
		for p := range frame.Pix {
			frame.Pix[p] = uint8((i*37 + p) % len(palette.Plan9))
		}
		anim.Image = append(anim.Image, frame)
		anim.Delay = append(anim.Delay, delay)
	}
	var buf bytes.Buffer
	if err := gif.EncodeAll(&buf, anim); err != nil {
		t.Fatalf("gif.EncodeAll: %v", err)
	}
	return buf.Bytes()
}
