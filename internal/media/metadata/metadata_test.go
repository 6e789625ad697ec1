package metadata

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"image/color"
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/bigkaa/goartstore/media-module/internal/domain/model"
	"github.com/bigkaa/goartstore/media-module/internal/media/codec"
	"github.com/bigkaa/goartstore/media-module/internal/media/mediatest"
)

// testLogger создаёт логгер для тестов (вывод подавлен).
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// withExif вставляет APP1 (Exif) с тегами Make и Orientation сразу после SOI.
func withExif(jpeg []byte, maker string) []byte {
	var tiffData bytes.Buffer
	le := binary.LittleEndian
	tiffData.WriteString("II")
	binary.Write(&tiffData, le, uint16(0x2A))
	binary.Write(&tiffData, le, uint32(8))

	value := append([]byte(maker), 0)
	// IFD0: 2 записи
	binary.Write(&tiffData, le, uint16(2))
	// Make, ASCII
	binary.Write(&tiffData, le, uint16(0x010F))
	binary.Write(&tiffData, le, uint16(2))
	binary.Write(&tiffData, le, uint32(len(value)))
	binary.Write(&tiffData, le, uint32(8+2+24+4))
	// Orientation, SHORT = 1
	binary.Write(&tiffData, le, uint16(0x0112))
	binary.Write(&tiffData, le, uint16(3))
	binary.Write(&tiffData, le, uint32(1))
	binary.Write(&tiffData, le, uint16(1))
	binary.Write(&tiffData, le, uint16(0))
	// следующего IFD нет
	binary.Write(&tiffData, le, uint32(0))
	tiffData.Write(value)

	return insertAPP1(jpeg, tiffData.Bytes())
}

// withNaNResolution вставляет EXIF с Make и XResolution типа DOUBLE = NaN.
func withNaNResolution(jpeg []byte, maker string) []byte {
	var tiffData bytes.Buffer
	le := binary.LittleEndian
	tiffData.WriteString("II")
	binary.Write(&tiffData, le, uint16(0x2A))
	binary.Write(&tiffData, le, uint32(8))

	// данные после IFD0 (8 + 2 + 2*12 + 4 = 38): DOUBLE, затем строка Make
	const dataStart = 38
	value := append([]byte(maker), 0)
	binary.Write(&tiffData, le, uint16(2))
	// Make, ASCII
	binary.Write(&tiffData, le, uint16(0x010F))
	binary.Write(&tiffData, le, uint16(2))
	binary.Write(&tiffData, le, uint32(len(value)))
	binary.Write(&tiffData, le, uint32(dataStart+8))
	// XResolution, DOUBLE
	binary.Write(&tiffData, le, uint16(0x011A))
	binary.Write(&tiffData, le, uint16(12))
	binary.Write(&tiffData, le, uint32(1))
	binary.Write(&tiffData, le, uint32(dataStart))
	binary.Write(&tiffData, le, uint32(0))
	binary.Write(&tiffData, le, math.Float64bits(math.NaN()))
	tiffData.Write(value)

	return insertAPP1(jpeg, tiffData.Bytes())
}

// insertAPP1 вставляет TIFF-блок как сегмент APP1 (Exif) сразу после SOI.
func insertAPP1(jpeg, tiffData []byte) []byte {
	payload := append([]byte("Exif\x00\x00"), tiffData...)

	var out bytes.Buffer
	out.Write(jpeg[:2])
	out.Write([]byte{0xFF, 0xE1})
	binary.Write(&out, binary.BigEndian, uint16(len(payload)+2))
	out.Write(payload)
	out.Write(jpeg[2:])
	return out.Bytes()
}

func decodeRaster(t *testing.T, data []byte) *codec.Raster {
	t.Helper()
	r, err := codec.Decode(data, codec.DefaultLimits())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	return r
}

func TestExtract_JPEGWithExif(t *testing.T) {
	data := withExif(mediatest.NoiseJPEG(t, 64, 64, 1), "Canon")
	r := decodeRaster(t, data)
	primary := model.NewArtifact(make([]byte, 100), 64, 64, "image/jpeg", "jpg")

	md := NewExtractor(testLogger()).Extract(Input{Data: data, Raster: r, Primary: primary})

	if s, ok := md.Tags["Make"].Str(); !ok || s != "Canon" {
		t.Errorf("Make: ожидалось %q, получено %q (ok=%v)", "Canon", s, ok)
	}
	if n, ok := md.Tags["Orientation"].Number(); !ok || n != 1 {
		t.Errorf("Orientation: ожидалось 1, получено %v (ok=%v)", n, ok)
	}
	if len(md.Palette) == 0 || len(md.Palette) > 10 {
		t.Errorf("Palette: ожидалось 1-10 цветов, получено %d", len(md.Palette))
	}
	if md.DominantColor != md.Palette[0] {
		t.Errorf("DominantColor: ожидалось %q, получено %q", md.Palette[0], md.DominantColor)
	}
	if md.QualityScore != 70 {
		t.Errorf("QualityScore: ожидалось 70 (малые размеры и размер), получено %d", md.QualityScore)
	}
}

func TestExtract_NonFiniteExifNumber(t *testing.T) {
	data := withNaNResolution(mediatest.NoiseJPEG(t, 64, 64, 2), "Nikon")
	r := decodeRaster(t, data)
	primary := model.NewArtifact(make([]byte, 100), 64, 64, "image/jpeg", "jpg")

	md := NewExtractor(testLogger()).Extract(Input{Data: data, Raster: r, Primary: primary})

	if s, ok := md.Tags["Make"].Str(); !ok || s != "Nikon" {
		t.Errorf("Make: ожидалось %q, получено %q (ok=%v)", "Nikon", s, ok)
	}
	if v, ok := md.Tags["XResolution"]; ok {
		t.Errorf("XResolution = NaN не должен попадать в теги, получено %v", v)
	}
	if _, err := json.Marshal(model.ImageRecord{Metadata: md}); err != nil {
		t.Fatalf("запись с такими метаданными должна сериализоваться: %v", err)
	}
}

func TestExtract_PNGWithoutExif(t *testing.T) {
	data := mediatest.PNG(t, mediatest.Solid(20, 20, color.NRGBA{R: 1, G: 2, B: 3, A: 255}))
	r := decodeRaster(t, data)
	primary := model.NewArtifact(make([]byte, 60*1024), 1000, 800, "image/png", "png")

	md := NewExtractor(testLogger()).Extract(Input{Data: data, Raster: r, Primary: primary})

	if md.Tags != nil {
		t.Errorf("Tags: ожидалось nil, получено %v", md.Tags)
	}
	if len(md.Palette) != 1 || md.Palette[0] != "#010203" {
		t.Errorf("Palette: ожидалось [#010203], получено %v", md.Palette)
	}
	if md.QualityScore != 100 {
		t.Errorf("QualityScore: ожидалось 100, получено %d", md.QualityScore)
	}
	if md.Animated || md.Duration != nil {
		t.Error("статичное изображение не должно быть анимированным")
	}
}

func TestExtract_Animated(t *testing.T) {
	data := mediatest.AnimatedGIF(t, 16, 16, 4, 25)
	r := decodeRaster(t, data)
	primary := model.NewArtifact(make([]byte, 10), 16, 16, "image/jpeg", "jpg")

	md := NewExtractor(testLogger()).Extract(Input{Data: data, Raster: r, Primary: primary})

	if !md.Animated {
		t.Error("Animated: ожидалось true")
	}
	if md.Duration == nil || *md.Duration != 1 {
		t.Errorf("Duration: ожидалось 1, получено %v", md.Duration)
	}
}

func TestExtract_DegradesOnFailure(t *testing.T) {
	// Растр без изображения и без основного артефакта: палитра и оценка
	// деградируют к значениям по умолчанию, паника не выходит наружу.
	r := &codec.Raster{Format: codec.FormatPNG, Frames: 1}

	md := NewExtractor(testLogger()).Extract(Input{Data: []byte("garbage"), Raster: r})

	if len(md.Palette) != 0 {
		t.Errorf("Palette: ожидалась пустая, получено %v", md.Palette)
	}
	if md.DominantColor != model.FallbackColor {
		t.Errorf("DominantColor: ожидалось %q, получено %q", model.FallbackColor, md.DominantColor)
	}
	if md.QualityScore != 0 {
		t.Errorf("QualityScore: ожидалось 0, получено %d", md.QualityScore)
	}
	if md.Tags != nil {
		t.Errorf("Tags: ожидалось nil, получено %v", md.Tags)
	}
}

func TestExtract_NilRaster(t *testing.T) {
	md := NewExtractor(testLogger()).Extract(Input{})
	if md.DominantColor != model.FallbackColor || md.Palette == nil {
		t.Errorf("ожидались метаданные по умолчанию, получено %+v", md)
	}
}

func TestAttempt(t *testing.T) {
	res := Attempt(func() (int, error) { panic("boom") })
	if res.Err == nil {
		t.Fatal("паника должна стать ошибкой")
	}
	if res.OrDefault(7) != 7 {
		t.Errorf("OrDefault: ожидалось 7, получено %d", res.OrDefault(7))
	}

	res = Attempt(func() (int, error) { return 0, errors.New("сбой") })
	if res.OrDefault(3) != 3 {
		t.Error("при ошибке должно возвращаться значение по умолчанию")
	}

	res = Attempt(func() (int, error) { return 42, nil })
	if res.OrDefault(3) != 42 {
		t.Errorf("OrDefault: ожидалось 42, получено %d", res.OrDefault(3))
	}
}

func TestDensityFromTags(t *testing.T) {
	tests := []struct {
		name string
		bag  model.TagBag
		want float64
		ok   bool
	}{
		{"дюймы", model.TagBag{"XResolution": model.NumberTag(300), "ResolutionUnit": model.NumberTag(2)}, 300, true},
		{"сантиметры", model.TagBag{"XResolution": model.NumberTag(10), "ResolutionUnit": model.NumberTag(3)}, 25.4, true},
		{"без единиц", model.TagBag{"XResolution": model.NumberTag(72)}, 72, true},
		{"нет разрешения", model.TagBag{}, 0, false},
		{"неизвестные единицы", model.TagBag{"XResolution": model.NumberTag(72), "ResolutionUnit": model.NumberTag(1)}, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := densityFromTags(tt.bag)
			if !tt.ok {
				if got != nil {
					t.Errorf("ожидалось nil, получено %v", *got)
				}
				return
			}
			if got == nil || *got < tt.want-1e-9 || *got > tt.want+1e-9 {
				t.Errorf("ожидалось %v, получено %v", tt.want, got)
			}
		})
	}
}
