// errors.go — ошибки бизнес-логики сервисного слоя.
package service

import "errors"

var (
	// ErrNotFound — изображение не найдено или срок его хранения истёк.
	ErrNotFound = errors.New("изображение не найдено")
	// ErrForbidden — нет прав на изображение.
	ErrForbidden = errors.New("доступ к изображению запрещён")
	// ErrStore — ошибка хранилища записей или объектов.
	ErrStore = errors.New("ошибка хранилища")
	// ErrTimeout — обработка не уложилась в отведённое время.
	ErrTimeout = errors.New("превышено время обработки")
)
