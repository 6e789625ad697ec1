// Пакет repository — хранилище записей изображений.
// Кроме PostgreSQL-реализации (чистый SQL через pgx, без ORM) здесь
// объявлен общий интерфейс RecordStore и ошибки, которые возвращают
// все бэкенды (memory, file, postgres).
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/bigkaa/goartstore/media-module/internal/domain/model"
)

// Ошибки слоя репозиториев.
var (
	// ErrNotFound — запись не найдена.
	ErrNotFound = errors.New("запись не найдена")
	// ErrConflict — конфликт уникальности (дублирующийся ресурс).
	ErrConflict = errors.New("конфликт — запись уже существует")
)

// RecordStore — хранилище записей изображений.
type RecordStore interface {
	// Insert сохраняет новую запись. Дубликат ID — ErrConflict.
	Insert(ctx context.Context, rec *model.ImageRecord) error
	// GetByID возвращает запись или ErrNotFound.
	GetByID(ctx context.Context, id string) (*model.ImageRecord, error)
	// ListByOwner возвращает страницу записей владельца (новые первые)
	// и общее количество записей владельца.
	ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]*model.ImageRecord, int, error)
	// ListExpired возвращает до limit записей, срок хранения которых
	// истёк к моменту now (самые старые первые).
	ListExpired(ctx context.Context, now time.Time, limit int) ([]*model.ImageRecord, error)
	// IncrementViews увеличивает счётчик просмотров.
	IncrementViews(ctx context.Context, id string) error
	// Delete удаляет запись. Отсутствующая запись — ErrNotFound.
	Delete(ctx context.Context, id string) error
	// Ping проверяет доступность хранилища (readiness).
	Ping(ctx context.Context) error
}

// DBTX — интерфейс для выполнения SQL-запросов.
// Реализуется как *pgxpool.Pool, так и pgx.Tx, что позволяет
// использовать репозитории как внутри, так и вне транзакций.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// isUniqueViolation проверяет, является ли ошибка нарушением уникальности PostgreSQL.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}
