// Пакет attr — хранилище записей изображений в JSON-файлах
// (MM_METADATA_STORE=file).
//
// Каждая запись — файл {id}.record.json в MM_RECORDS_DIR, единственный
// источник истины. При старте файлы читаются в in-memory индекс,
// через который выполняются чтения. Все записи на диск атомарны:
// temp → fsync → rename.
package attr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bigkaa/goartstore/media-module/internal/domain/model"
	"github.com/bigkaa/goartstore/media-module/internal/repository"
	"github.com/bigkaa/goartstore/media-module/internal/storage/fsutil"
	"github.com/bigkaa/goartstore/media-module/internal/storage/index"
)

// RecordSuffix — суффикс файла записи.
const RecordSuffix = ".record.json"

// maxRecordFileSize — максимальный допустимый размер файла записи (64 КБ).
const maxRecordFileSize = 64 << 10

// ErrInvalidID — идентификатор не может быть именем файла.
var ErrInvalidID = errors.New("недопустимый идентификатор записи")

// RecordFilePath возвращает путь к файлу записи.
// Пример: ("/records", "abc") → "/records/abc.record.json"
func RecordFilePath(dir, id string) string {
	return filepath.Join(dir, id+RecordSuffix)
}

// IsRecordFile проверяет, является ли путь файлом записи.
func IsRecordFile(path string) bool {
	return strings.HasSuffix(path, RecordSuffix)
}

// Write атомарно записывает запись в файл.
// Возвращает ошибку, если сериализованные данные превышают 64 КБ.
func Write(path string, rec *model.ImageRecord) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("ошибка сериализации записи: %w", err)
	}

	if len(data) > maxRecordFileSize {
		return fmt.Errorf("размер записи (%d байт) превышает максимум (%d байт)", len(data), maxRecordFileSize)
	}

	return fsutil.WriteFileAtomic(path, data, 0o640)
}

// Read читает и десериализует запись из файла.
func Read(path string) (*model.ImageRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения записи %s: %w", path, err)
	}

	var rec model.ImageRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("ошибка десериализации записи %s: %w", path, err)
	}

	return &rec, nil
}

// Delete удаляет файл записи.
// Возвращает nil если файл уже не существует.
func Delete(path string) error {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("ошибка удаления записи %s: %w", path, err)
	}
	return nil
}

// ScanDir читает все файлы записей директории (не рекурсивно).
// Невалидные файлы пропускаются и логируются.
func ScanDir(dir string, logger *slog.Logger) ([]*model.ImageRecord, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*"+RecordSuffix))
	if err != nil {
		return nil, fmt.Errorf("ошибка сканирования директории %s: %w", dir, err)
	}

	result := make([]*model.ImageRecord, 0, len(matches))
	for _, path := range matches {
		rec, err := Read(path)
		if err != nil {
			logger.Warn("Пропуск невалидного файла записи",
				slog.String("path", path),
				slog.String("error", err.Error()),
			)
			continue
		}
		result = append(result, rec)
	}

	return result, nil
}

// Store — хранилище записей в JSON-файлах с in-memory индексом.
type Store struct {
	dir string
	// mu упорядочивает запись файла и обновление индекса
	mu     sync.Mutex
	idx    *index.Index
	logger *slog.Logger
}

// Open создаёт директорию (если нужно) и строит индекс из файлов записей.
func Open(dir string, logger *slog.Logger) (*Store, error) {
	if err := fsutil.EnsureWritableDir(dir); err != nil {
		return nil, fmt.Errorf("директория записей: %w", err)
	}

	logger = logger.With(slog.String("component", "record_files"))
	records, err := ScanDir(dir, logger)
	if err != nil {
		return nil, err
	}

	idx := index.New(logger)
	idx.Load(records)

	return &Store{dir: dir, idx: idx, logger: logger}, nil
}

// Insert записывает файл записи, затем добавляет её в индекс.
func (s *Store) Insert(ctx context.Context, rec *model.ImageRecord) error {
	path, err := s.path(rec.ID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.idx.GetByID(ctx, rec.ID); err == nil {
		return fmt.Errorf("%w: изображение %s уже сохранено", repository.ErrConflict, rec.ID)
	}
	if err := Write(path, rec); err != nil {
		return err
	}
	return s.idx.Insert(ctx, rec)
}

// GetByID читает запись из индекса.
func (s *Store) GetByID(ctx context.Context, id string) (*model.ImageRecord, error) {
	return s.idx.GetByID(ctx, id)
}

// ListByOwner читает страницу записей из индекса.
func (s *Store) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]*model.ImageRecord, int, error) {
	return s.idx.ListByOwner(ctx, ownerID, limit, offset)
}

// ListExpired читает просроченные записи из индекса.
func (s *Store) ListExpired(ctx context.Context, now time.Time, limit int) ([]*model.ImageRecord, error) {
	return s.idx.ListExpired(ctx, now, limit)
}

// IncrementViews увеличивает счётчик и перезаписывает файл записи.
func (s *Store) IncrementViews(ctx context.Context, id string) error {
	path, err := s.path(id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.idx.Update(ctx, id, func(r *model.ImageRecord) { r.Views++ })
	if err != nil {
		return err
	}
	return Write(path, rec)
}

// Delete удаляет файл записи и запись из индекса.
func (s *Store) Delete(ctx context.Context, id string) error {
	path, err := s.path(id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.idx.GetByID(ctx, id); err != nil {
		return err
	}
	if err := Delete(path); err != nil {
		return err
	}
	return s.idx.Delete(ctx, id)
}

// Ping проверяет доступность директории записей.
func (s *Store) Ping(_ context.Context) error {
	info, err := os.Stat(s.dir)
	if err != nil {
		return fmt.Errorf("директория записей недоступна: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s не является директорией", s.dir)
	}
	return nil
}

// Count возвращает количество записей в индексе.
func (s *Store) Count() int {
	return s.idx.Count()
}

func (s *Store) path(id string) (string, error) {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) {
		return "", fmt.Errorf("%q: %w", id, ErrInvalidID)
	}
	return RecordFilePath(s.dir, id), nil
}

var _ repository.RecordStore = (*Store)(nil)
