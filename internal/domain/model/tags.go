package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// TagKind — вид скалярного значения тега.
type TagKind uint8

const (
	TagString TagKind = iota + 1
	TagNumber
	TagBool
)

// TagValue — закрытый вариант скаляра: строка, число или bool.
// Нулевое значение не является валидным тегом.
type TagValue struct {
	kind TagKind
	str  string
	num  float64
	flag bool
}

// StringTag создаёт строковый тег.
func StringTag(s string) TagValue { return TagValue{kind: TagString, str: s} }

// NumberTag создаёт числовой тег.
func NumberTag(n float64) TagValue { return TagValue{kind: TagNumber, num: n} }

// BoolTag создаёт логический тег.
func BoolTag(b bool) TagValue { return TagValue{kind: TagBool, flag: b} }

// Kind возвращает вид значения (0 для нулевого TagValue).
func (v TagValue) Kind() TagKind { return v.kind }

// Str возвращает строку, если тег строковый.
func (v TagValue) Str() (string, bool) { return v.str, v.kind == TagString }

// Number возвращает число, если тег числовой.
func (v TagValue) Number() (float64, bool) { return v.num, v.kind == TagNumber }

// Bool возвращает значение, если тег логический.
func (v TagValue) Bool() (bool, bool) { return v.flag, v.kind == TagBool }

// String — текстовое представление для логов.
func (v TagValue) String() string {
	switch v.kind {
	case TagString:
		return v.str
	case TagNumber:
		return strconv.FormatFloat(v.num, 'g', -1, 64)
	case TagBool:
		return strconv.FormatBool(v.flag)
	default:
		return ""
	}
}

// MarshalJSON сериализует тег как JSON-скаляр. NaN и ±Inf в JSON
// непредставимы и пишутся как null.
func (v TagValue) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case TagString:
		return json.Marshal(v.str)
	case TagNumber:
		if math.IsNaN(v.num) || math.IsInf(v.num, 0) {
			return []byte("null"), nil
		}
		return json.Marshal(v.num)
	case TagBool:
		return json.Marshal(v.flag)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON принимает только JSON-скаляры (строка, число, bool).
func (v *TagValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("пустое значение тега")
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = StringTag(s)
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*v = BoolTag(b)
	case 'n':
		*v = TagValue{}
	case '{', '[':
		return fmt.Errorf("тег должен быть скаляром, получено %s", string(data[:1]))
	default:
		var n float64
		if err := json.Unmarshal(data, &n); err != nil {
			return err
		}
		*v = NumberTag(n)
	}
	return nil
}

// TagBag — непрозрачный набор структурных тегов: ключ → скаляр.
// Неизвестные теги проходят без проверки.
type TagBag map[string]TagValue
