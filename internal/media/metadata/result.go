package metadata

import (
	"fmt"
)

// Result — результат шага извлечения. Ошибка не распространяется:
// на месте вызова она сворачивается в значение по умолчанию.
type Result[T any] struct {
	Value T
	Err   error
}

// Attempt выполняет fn, перехватывая панику как ошибку.
func Attempt[T any](fn func() (T, error)) (res Result[T]) {
	defer func() {
		if p := recover(); p != nil {
			res = Result[T]{Err: fmt.Errorf("паника при извлечении: %v", p)}
		}
	}()
	v, err := fn()
	return Result[T]{Value: v, Err: err}
}

// OrDefault возвращает значение или def при ошибке.
func (r Result[T]) OrDefault(def T) T {
	if r.Err != nil {
		return def
	}
	return r.Value
}
