package codec

import (
	"bytes"
	"encoding/binary"
)

// containerInfo — сведения, прочитанные из контейнера без декодирования пикселей.
type containerInfo struct {
	frames   int
	duration *float64
	density  *float64
}

// scanContainer разбирает структуру контейнера. Повреждённая структура
// не является ошибкой: возвращается то, что удалось прочитать.
func scanContainer(format Format, data []byte) containerInfo {
	var info containerInfo
	switch format {
	case FormatGIF:
		info = scanGIF(data)
	case FormatPNG:
		info = scanPNG(data)
	case FormatWebP:
		info = scanWebP(data)
	case FormatJPEG:
		info = scanJPEG(data)
	}
	if info.frames < 1 {
		info.frames = 1
	}
	return info
}

func float64Ptr(v float64) *float64 { return &v }

// scanGIF считает кадры (image descriptor) и суммирует задержки
// Graphic Control Extension (в сотых долях секунды).
func scanGIF(data []byte) containerInfo {
	var info containerInfo
	if len(data) < 13 || !(bytes.HasPrefix(data, []byte("GIF87a")) || bytes.HasPrefix(data, []byte("GIF89a"))) {
		return info
	}

	pos := 13
	if packed := data[10]; packed&0x80 != 0 {
		pos += 3 << ((packed & 0x07) + 1)
	}

	var delay int
	for pos < len(data) {
		switch data[pos] {
		case 0x21: // extension
			if pos+1 >= len(data) {
				return gifResult(info, delay)
			}
			label := data[pos+1]
			pos += 2
			if label == 0xF9 && pos+5 < len(data) && data[pos] == 4 {
				delay += int(binary.LittleEndian.Uint16(data[pos+2 : pos+4]))
			}
			next, ok := skipSubBlocks(data, pos)
			if !ok {
				return gifResult(info, delay)
			}
			pos = next
		case 0x2C: // image descriptor
			if pos+10 > len(data) {
				return gifResult(info, delay)
			}
			info.frames++
			packed := data[pos+9]
			pos += 10
			if packed&0x80 != 0 {
				pos += 3 << ((packed & 0x07) + 1)
			}
			pos++ // LZW minimum code size
			next, ok := skipSubBlocks(data, pos)
			if !ok {
				return gifResult(info, delay)
			}
			pos = next
		case 0x3B: // trailer
			return gifResult(info, delay)
		default:
			return gifResult(info, delay)
		}
	}
	return gifResult(info, delay)
}

func gifResult(info containerInfo, delay int) containerInfo {
	if info.frames > 1 {
		info.duration = float64Ptr(float64(delay) / 100)
	}
	return info
}

// skipSubBlocks пропускает цепочку sub-block до терминатора 0x00.
func skipSubBlocks(data []byte, pos int) (int, bool) {
	for pos < len(data) {
		n := int(data[pos])
		pos++
		if n == 0 {
			return pos, true
		}
		pos += n
	}
	return pos, false
}

var pngSignature = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1A, '\n'}

// scanPNG читает чанки acTL/fcTL (APNG) и pHYs.
func scanPNG(data []byte) containerInfo {
	var info containerInfo
	if !bytes.HasPrefix(data, pngSignature) {
		return info
	}

	var (
		declaredFrames int
		delay          float64
		fctl           int
	)
	pos := len(pngSignature)
	for pos+8 <= len(data) {
		length := int(binary.BigEndian.Uint32(data[pos : pos+4]))
		typ := string(data[pos+4 : pos+8])
		start := pos + 8
		end := start + length
		if length < 0 || end > len(data) {
			break
		}
		chunk := data[start:end]

		switch typ {
		case "acTL":
			if len(chunk) >= 8 {
				declaredFrames = int(binary.BigEndian.Uint32(chunk[0:4]))
			}
		case "fcTL":
			if len(chunk) >= 26 {
				fctl++
				num := float64(binary.BigEndian.Uint16(chunk[20:22]))
				den := float64(binary.BigEndian.Uint16(chunk[22:24]))
				if den == 0 {
					den = 100
				}
				delay += num / den
			}
		case "pHYs":
			// unit 1 — пиксели на метр
			if len(chunk) >= 9 && chunk[8] == 1 {
				ppm := float64(binary.BigEndian.Uint32(chunk[0:4]))
				if ppm > 0 {
					info.density = float64Ptr(ppm * 0.0254)
				}
			}
		case "IEND":
			pos = len(data)
			continue
		}
		pos = end + 4 // CRC
	}

	if declaredFrames > 1 {
		info.frames = declaredFrames
		if fctl > 0 {
			info.duration = float64Ptr(delay)
		}
	}
	return info
}

// scanWebP читает флаг анимации VP8X и длительности кадров ANMF (мс).
func scanWebP(data []byte) containerInfo {
	var info containerInfo
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WEBP" {
		return info
	}

	var (
		animated bool
		frames   int
		millis   int
	)
	pos := 12
	for pos+8 <= len(data) {
		fourcc := string(data[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		start := pos + 8
		end := start + size
		if size < 0 || end > len(data) {
			break
		}
		payload := data[start:end]

		switch fourcc {
		case "VP8X":
			if len(payload) >= 1 {
				animated = payload[0]&0x02 != 0
			}
		case "ANMF":
			if len(payload) >= 16 {
				frames++
				millis += int(payload[12]) | int(payload[13])<<8 | int(payload[14])<<16
			}
		}

		pos = end + size%2 // выравнивание до чётного
	}

	if animated && frames > 1 {
		info.frames = frames
		info.duration = float64Ptr(float64(millis) / 1000)
	}
	return info
}

// scanJPEG читает плотность из сегмента JFIF APP0.
func scanJPEG(data []byte) containerInfo {
	var info containerInfo
	if len(data) < 4 || data[0] != 0xFF || data[1] != 0xD8 {
		return info
	}

	pos := 2
	for pos+4 <= len(data) {
		if data[pos] != 0xFF {
			return info
		}
		marker := data[pos+1]
		if marker == 0xD8 || marker == 0x01 || (marker >= 0xD0 && marker <= 0xD7) {
			pos += 2
			continue
		}
		if marker == 0xDA || marker == 0xD9 { // SOS, EOI
			return info
		}
		length := int(binary.BigEndian.Uint16(data[pos+2 : pos+4]))
		if length < 2 || pos+2+length > len(data) {
			return info
		}
		segment := data[pos+4 : pos+2+length]

		if marker == 0xE0 && len(segment) >= 12 && bytes.HasPrefix(segment, []byte("JFIF\x00")) {
			units := segment[7]
			xDensity := float64(binary.BigEndian.Uint16(segment[8:10]))
			switch {
			case xDensity == 0:
			case units == 1:
				info.density = float64Ptr(xDensity)
			case units == 2:
				info.density = float64Ptr(xDensity * 2.54)
			}
			return info
		}
		pos += 2 + length
	}
	return info
}
