// Пакет filestore — локальное объектное хранилище артефактов.
// Объект с ключом "2026/03/01/{id}.jpg" хранится как
// {MM_DATA_DIR}/2026/03/01/{id}.jpg и раздаётся модулем по /media/{key}.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/bigkaa/goartstore/media-module/internal/storage/fsutil"
)

// ErrInvalidKey — ключ объекта выходит за пределы директории данных.
var ErrInvalidKey = errors.New("недопустимый ключ объекта")

// ErrNotFound — объект отсутствует.
var ErrNotFound = errors.New("объект не найден")

// FileStore — объектное хранилище на локальном диске.
type FileStore struct {
	// dataDir — корневая директория хранения объектов (MM_DATA_DIR)
	dataDir string
	// baseURL — публичный адрес модуля (MM_PUBLIC_BASE_URL)
	baseURL string
}

// MediaPrefix — префикс URL, по которому раздаются объекты.
const MediaPrefix = "/media/"

// New создаёт FileStore. Создаёт директорию, если она не существует.
func New(dataDir, publicBaseURL string) (*FileStore, error) {
	if err := fsutil.EnsureWritableDir(dataDir); err != nil {
		return nil, fmt.Errorf("директория данных: %w", err)
	}

	return &FileStore{
		dataDir: dataDir,
		baseURL: strings.TrimRight(publicBaseURL, "/"),
	}, nil
}

// Put атомарно записывает объект и возвращает его публичный адрес.
// contentType не сохраняется: при раздаче тип определяется по расширению.
func (fs *FileStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	fullPath, err := fs.resolve(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o750); err != nil {
		return "", fmt.Errorf("ошибка создания директории для %s: %w", key, err)
	}
	if err := fsutil.WriteFileAtomic(fullPath, data, 0o640); err != nil {
		return "", fmt.Errorf("ошибка записи объекта %s: %w", key, err)
	}

	return fs.URL(key), nil
}

// Delete удаляет объект. Отсутствующий объект не является ошибкой.
func (fs *FileStore) Delete(_ context.Context, key string) error {
	fullPath, err := fs.resolve(key)
	if err != nil {
		return err
	}

	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("ошибка удаления объекта %s: %w", key, err)
	}
	return nil
}

// Open открывает объект для чтения. Вызывающий код обязан закрыть файл.
func (fs *FileStore) Open(key string) (*os.File, os.FileInfo, error) {
	fullPath, err := fs.resolve(key)
	if err != nil {
		return nil, nil, err
	}

	f, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, fmt.Errorf("%s: %w", key, ErrNotFound)
		}
		return nil, nil, fmt.Errorf("ошибка открытия объекта %s: %w", key, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("ошибка получения информации об объекте %s: %w", key, err)
	}
	if info.IsDir() {
		f.Close()
		return nil, nil, fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	return f, info, nil
}

// Exists проверяет существование объекта.
func (fs *FileStore) Exists(key string) bool {
	fullPath, err := fs.resolve(key)
	if err != nil {
		return false
	}
	info, err := os.Stat(fullPath)
	return err == nil && !info.IsDir()
}

// Ping проверяет доступность директории данных (readiness).
func (fs *FileStore) Ping(_ context.Context) error {
	info, err := os.Stat(fs.dataDir)
	if err != nil {
		return fmt.Errorf("директория данных недоступна: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s не является директорией", fs.dataDir)
	}
	return nil
}

// URL возвращает публичный адрес объекта.
func (fs *FileStore) URL(key string) string {
	return fs.baseURL + MediaPrefix + key
}

// resolve проверяет ключ и возвращает абсолютный путь объекта.
func (fs *FileStore) resolve(key string) (string, error) {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return "", fmt.Errorf("%q: %w", key, ErrInvalidKey)
	}
	clean := path.Clean(key)
	if clean != key || clean == "." || strings.HasPrefix(clean, "../") || clean == ".." {
		return "", fmt.Errorf("%q: %w", key, ErrInvalidKey)
	}
	return filepath.Join(fs.dataDir, filepath.FromSlash(clean)), nil
}
