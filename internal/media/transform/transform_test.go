package transform

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/bigkaa/goartstore/media-module/internal/domain/model"
	"github.com/bigkaa/goartstore/media-module/internal/media/codec"
	"github.com/bigkaa/goartstore/media-module/internal/media/mediatest"
)

func decode(t *testing.T, data []byte) *codec.Raster {
	t.Helper()
	r, err := codec.Decode(data, codec.DefaultLimits())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	return r
}

func TestFitWithin(t *testing.T) {
	tests := []struct {
		name         string
		w, h         int
		maxW, maxH   int
		wantW, wantH int
	}{
		{"без границ", 1920, 1080, 0, 0, 1920, 1080},
		{"обе границы", 1920, 1080, 800, 600, 800, 450},
		{"только ширина", 1920, 1080, 960, 0, 960, 540},
		{"только высота", 1920, 1080, 0, 540, 960, 540},
		{"портрет", 1080, 1920, 800, 600, 338, 600},
		{"без увеличения", 400, 300, 2000, 2000, 400, 300},
		{"граница равна размеру", 400, 300, 400, 300, 400, 300},
		{"узкая полоса", 10000, 10, 100, 100, 100, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h := FitWithin(tt.w, tt.h, tt.maxW, tt.maxH)
			if w != tt.wantW || h != tt.wantH {
				t.Errorf("ожидалось %dx%d, получено %dx%d", tt.wantW, tt.wantH, w, h)
			}
		})
	}
}

func TestFitWithin_Properties(t *testing.T) {
	sizes := []int{1, 7, 99, 300, 641, 1024, 4000}
	bounds := []int{0, 1, 50, 333, 800, 5000}

	for _, w := range sizes {
		for _, h := range sizes {
			for _, bw := range bounds {
				for _, bh := range bounds {
					gw, gh := FitWithin(w, h, bw, bh)
					if gw > w || gh > h {
						t.Fatalf("%dx%d в %dx%d: увеличение до %dx%d", w, h, bw, bh, gw, gh)
					}
					if (bw > 0 && gw > bw) || (bh > 0 && gh > bh) {
						t.Fatalf("%dx%d в %dx%d: выход за границы %dx%d", w, h, bw, bh, gw, gh)
					}
					if gw < 2 || gh < 2 {
						continue // пропорции вырожденных размеров не сравниваем
					}
					// отклонение пропорции в пределах округления одного пикселя
					orig := float64(w) / float64(h)
					lo := float64(gw-1) / float64(gh+1)
					hi := float64(gw+1) / float64(gh-1)
					if orig < lo-1e-9 || orig > hi+1e-9 {
						t.Fatalf("%dx%d в %dx%d: пропорции нарушены, %dx%d", w, h, bw, bh, gw, gh)
					}
				}
			}
		}
	}
}

func TestPrimary_NormalizedDefault(t *testing.T) {
	r := decode(t, mediatest.NoiseJPEG(t, 320, 200, 7))
	opts := model.ProcessingOptions{}.Resolve(model.DefaultDefaults())

	a, err := Primary(nil, r, opts)
	if err != nil {
		t.Fatalf("Primary: %v", err)
	}
	if a.Width != 320 || a.Height != 200 {
		t.Errorf("размеры: ожидалось 320x200, получено %dx%d", a.Width, a.Height)
	}
	if a.MimeType != NormalizedMIME || a.Ext != "jpg" {
		t.Errorf("формат: ожидалось %s/jpg, получено %s/%s", NormalizedMIME, a.MimeType, a.Ext)
	}
	if a.Size != int64(len(a.Data)) {
		t.Errorf("Size: ожидалось %d, получено %d", len(a.Data), a.Size)
	}

	want, err := encodeJPEG(r.Image, false, 80)
	if err != nil {
		t.Fatalf("encodeJPEG: %v", err)
	}
	if !bytes.Equal(a.Data, want) {
		t.Error("по умолчанию ожидалось кодирование с уровнем 80")
	}
}

func TestPrimary_QualityTier(t *testing.T) {
	r := decode(t, mediatest.PNG(t, mediatest.NoiseImage(400, 300, 11)))
	q := 25
	opts := model.ProcessingOptions{Quality: &q}.Resolve(model.DefaultDefaults())

	a, err := Primary(nil, r, opts)
	if err != nil {
		t.Fatalf("Primary: %v", err)
	}
	want, err := encodeJPEG(r.Image, r.HasAlpha, 60)
	if err != nil {
		t.Fatalf("encodeJPEG: %v", err)
	}
	if !bytes.Equal(a.Data, want) {
		t.Error("quality=25 должно кодироваться с уровнем 60")
	}
}

func TestPrimary_ResizeContainment(t *testing.T) {
	r := decode(t, mediatest.NoiseJPEG(t, 1000, 500, 3))
	w, h := 300, 300
	opts := model.ProcessingOptions{MaxWidth: &w, MaxHeight: &h}.Resolve(model.DefaultDefaults())

	a, err := Primary(nil, r, opts)
	if err != nil {
		t.Fatalf("Primary: %v", err)
	}
	if a.Width != 300 || a.Height != 150 {
		t.Errorf("ожидалось 300x150, получено %dx%d", a.Width, a.Height)
	}

	img, _, err := image.Decode(bytes.NewReader(a.Data))
	if err != nil {
		t.Fatalf("результат не декодируется: %v", err)
	}
	if img.Bounds().Dx() != a.Width || img.Bounds().Dy() != a.Height {
		t.Errorf("фактические размеры %v не совпадают с заявленными", img.Bounds())
	}
}

func TestPrimary_PassThrough(t *testing.T) {
	src := mediatest.PNG(t, mediatest.Solid(40, 30, color.NRGBA{R: 10, G: 20, B: 30, A: 255}))
	r := decode(t, src)
	convert := false
	opts := model.ProcessingOptions{ConvertToNormalizedFormat: &convert}.Resolve(model.DefaultDefaults())

	a, err := Primary(src, r, opts)
	if err != nil {
		t.Fatalf("Primary: %v", err)
	}
	if !bytes.Equal(a.Data, src) {
		t.Error("без конвертации и изменения размера байты должны совпадать с исходными")
	}
	if &a.Data[0] == &src[0] {
		t.Error("артефакт должен владеть собственным буфером")
	}
	if a.MimeType != "image/png" || a.Ext != "png" {
		t.Errorf("формат: ожидалось image/png/png, получено %s/%s", a.MimeType, a.Ext)
	}
}

// withOrientation вставляет в JPEG сегмент APP1 с EXIF-тегом Orientation.
func withOrientation(jpeg []byte, orientation uint16) []byte {
	var tiff bytes.Buffer
	tiff.WriteString("II")
	_ = binary.Write(&tiff, binary.LittleEndian, uint16(42))
	_ = binary.Write(&tiff, binary.LittleEndian, uint32(8))
	_ = binary.Write(&tiff, binary.LittleEndian, uint16(1))
	_ = binary.Write(&tiff, binary.LittleEndian, uint16(0x0112)) // Orientation
	_ = binary.Write(&tiff, binary.LittleEndian, uint16(3))      // SHORT
	_ = binary.Write(&tiff, binary.LittleEndian, uint32(1))
	_ = binary.Write(&tiff, binary.LittleEndian, orientation)
	_ = binary.Write(&tiff, binary.LittleEndian, uint16(0))
	_ = binary.Write(&tiff, binary.LittleEndian, uint32(0))

	payload := append([]byte("Exif\x00\x00"), tiff.Bytes()...)
	var out bytes.Buffer
	out.Write(jpeg[:2]) // SOI
	out.Write([]byte{0xFF, 0xE1})
	_ = binary.Write(&out, binary.BigEndian, uint16(len(payload)+2))
	out.Write(payload)
	out.Write(jpeg[2:])
	return out.Bytes()
}

// TestPrimary_PassThroughRotatedJPEG проверяет, что размеры артефакта
// без перекодирования совпадают с размерами сохранённых байтов.
func TestPrimary_PassThroughRotatedJPEG(t *testing.T) {
	src := withOrientation(mediatest.JPEG(t, mediatest.Solid(40, 30, color.NRGBA{R: 200, A: 255}), 90), 6)
	r := decode(t, src)
	if r.Width != 30 || r.Height != 40 {
		t.Fatalf("растр после ориентации: ожидалось 30x40, получено %dx%d", r.Width, r.Height)
	}
	convert := false
	opts := model.ProcessingOptions{ConvertToNormalizedFormat: &convert}.Resolve(model.DefaultDefaults())

	a, err := Primary(src, r, opts)
	if err != nil {
		t.Fatalf("Primary: %v", err)
	}
	if !bytes.Equal(a.Data, src) {
		t.Fatal("байты должны совпадать с исходными")
	}
	if a.Width != 40 || a.Height != 30 {
		t.Errorf("ожидалось 40x30, получено %dx%d", a.Width, a.Height)
	}
}

func TestPrimary_NoConvertResizeKeepsFamily(t *testing.T) {
	src := mediatest.PNG(t, mediatest.Solid(200, 100, color.NRGBA{B: 200, A: 128}))
	r := decode(t, src)
	convert := false
	maxW := 100
	opts := model.ProcessingOptions{ConvertToNormalizedFormat: &convert, MaxWidth: &maxW}.Resolve(model.DefaultDefaults())

	a, err := Primary(src, r, opts)
	if err != nil {
		t.Fatalf("Primary: %v", err)
	}
	if a.MimeType != "image/png" {
		t.Errorf("MimeType: ожидалось image/png, получено %s", a.MimeType)
	}
	if a.Width != 100 || a.Height != 50 {
		t.Errorf("ожидалось 100x50, получено %dx%d", a.Width, a.Height)
	}
}

func TestPrimary_Deterministic(t *testing.T) {
	src := mediatest.NoiseJPEG(t, 640, 480, 5)
	w := 321
	opts := model.ProcessingOptions{MaxWidth: &w}.Resolve(model.DefaultDefaults())

	first, err := Primary(src, decode(t, src), opts)
	if err != nil {
		t.Fatalf("Primary: %v", err)
	}
	second, err := Primary(src, decode(t, src), opts)
	if err != nil {
		t.Fatalf("Primary: %v", err)
	}
	if !bytes.Equal(first.Data, second.Data) {
		t.Error("повторная обработка должна давать идентичные байты")
	}
}

func TestThumbnail_AlwaysFixedSize(t *testing.T) {
	inputs := map[string][]byte{
		"широкое":   mediatest.NoiseJPEG(t, 1920, 1080, 1),
		"высокое":   mediatest.NoiseJPEG(t, 200, 900, 2),
		"маленькое": mediatest.TransparentPNG(t, 10, 10),
		"анимация":  mediatest.AnimatedGIF(t, 64, 32, 2, 10),
	}

	for name, data := range inputs {
		t.Run(name, func(t *testing.T) {
			thumb, err := Thumbnail(decode(t, data))
			if err != nil {
				t.Fatalf("Thumbnail: %v", err)
			}
			if thumb.Width != ThumbnailSize || thumb.Height != ThumbnailSize {
				t.Errorf("заявлено %dx%d", thumb.Width, thumb.Height)
			}
			cfg, format, err := image.DecodeConfig(bytes.NewReader(thumb.Data))
			if err != nil {
				t.Fatalf("миниатюра не декодируется: %v", err)
			}
			if format != "jpeg" || cfg.Width != 300 || cfg.Height != 300 {
				t.Errorf("ожидалось jpeg 300x300, получено %s %dx%d", format, cfg.Width, cfg.Height)
			}
		})
	}
}

func TestThumbnail_TransparentFlattenedToWhite(t *testing.T) {
	thumb, err := Thumbnail(decode(t, mediatest.TransparentPNG(t, 10, 10)))
	if err != nil {
		t.Fatalf("Thumbnail: %v", err)
	}
	img, _, err := image.Decode(bytes.NewReader(thumb.Data))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	r, g, b, _ := img.At(150, 150).RGBA()
	if math.Min(float64(r), math.Min(float64(g), float64(b))) < 0xF000 {
		t.Errorf("прозрачный фон должен стать белым, получено (%d,%d,%d)", r>>8, g>>8, b>>8)
	}
}
