package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bigkaa/goartstore/media-module/internal/domain/model"
)

const imageColumns = `id, owner_id, url, object_key, width, height, size, content_type,
	thumbnail_url, thumbnail_key, thumbnail_width, thumbnail_height, thumbnail_size,
	original_filename, mime_type, visibility, access_secret_hash, collection_id,
	expires_at, created_at, updated_at, views, downloads, tags, metadata`

// imageRepo — реализация RecordStore для таблицы images.
type imageRepo struct {
	db   DBTX
	pool *pgxpool.Pool
}

// NewImageRepository создаёт репозиторий записей изображений.
// pool используется для Ping и может быть nil, если db — транзакция.
func NewImageRepository(db DBTX, pool *pgxpool.Pool) RecordStore {
	return &imageRepo{db: db, pool: pool}
}

func (r *imageRepo) Insert(ctx context.Context, rec *model.ImageRecord) error {
	query := `
		INSERT INTO images (` + imageColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
			$14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25)`

	_, err := r.db.Exec(ctx, query,
		rec.ID, rec.OwnerID, rec.URL, rec.ObjectKey, rec.Width, rec.Height, rec.Size, rec.ContentType,
		rec.ThumbnailURL, rec.ThumbnailKey, rec.ThumbnailWidth, rec.ThumbnailHeight, rec.ThumbnailSize,
		rec.OriginalFilename, rec.MimeType, rec.Visibility, rec.AccessSecretHash, rec.CollectionID,
		rec.ExpiresAt, rec.CreatedAt, rec.UpdatedAt, rec.Views, rec.Downloads, rec.Tags, rec.Metadata,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: изображение %s уже сохранено", ErrConflict, rec.ID)
		}
		return fmt.Errorf("ошибка сохранения записи изображения: %w", err)
	}
	return nil
}

func (r *imageRepo) GetByID(ctx context.Context, id string) (*model.ImageRecord, error) {
	query := `SELECT ` + imageColumns + ` FROM images WHERE id = $1`

	rec, err := scanImage(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения записи изображения: %w", err)
	}
	return rec, nil
}

func (r *imageRepo) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]*model.ImageRecord, int, error) {
	var total int
	if err := r.db.QueryRow(ctx,
		`SELECT count(*) FROM images WHERE owner_id = $1`, ownerID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("ошибка подсчёта изображений: %w", err)
	}

	query := `SELECT ` + imageColumns + `
		FROM images
		WHERE owner_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3`

	// LIMIT NULL — без ограничения
	var lim any
	if limit > 0 {
		lim = limit
	}

	rows, err := r.db.Query(ctx, query, ownerID, lim, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("ошибка получения списка изображений: %w", err)
	}
	defer rows.Close()

	var result []*model.ImageRecord
	for rows.Next() {
		rec, err := scanImage(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("ошибка сканирования изображения: %w", err)
		}
		result = append(result, rec)
	}
	return result, total, rows.Err()
}

func (r *imageRepo) ListExpired(ctx context.Context, now time.Time, limit int) ([]*model.ImageRecord, error) {
	query := `SELECT ` + imageColumns + `
		FROM images
		WHERE expires_at IS NOT NULL AND expires_at < $1
		ORDER BY expires_at
		LIMIT $2`

	rows, err := r.db.Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка поиска просроченных изображений: %w", err)
	}
	defer rows.Close()

	var result []*model.ImageRecord
	for rows.Next() {
		rec, err := scanImage(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования изображения: %w", err)
		}
		result = append(result, rec)
	}
	return result, rows.Err()
}

func (r *imageRepo) IncrementViews(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `UPDATE images SET views = views + 1 WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ошибка обновления счётчика просмотров: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *imageRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM images WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ошибка удаления записи изображения: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *imageRepo) Ping(ctx context.Context) error {
	if r.pool == nil {
		return nil
	}
	return r.pool.Ping(ctx)
}

// scanImage сканирует строку images. metadata (jsonb) декодируется
// через encoding/json, tags (text[]) — в []string.
func scanImage(row pgx.Row) (*model.ImageRecord, error) {
	rec := &model.ImageRecord{}
	err := row.Scan(
		&rec.ID, &rec.OwnerID, &rec.URL, &rec.ObjectKey, &rec.Width, &rec.Height, &rec.Size, &rec.ContentType,
		&rec.ThumbnailURL, &rec.ThumbnailKey, &rec.ThumbnailWidth, &rec.ThumbnailHeight, &rec.ThumbnailSize,
		&rec.OriginalFilename, &rec.MimeType, &rec.Visibility, &rec.AccessSecretHash, &rec.CollectionID,
		&rec.ExpiresAt, &rec.CreatedAt, &rec.UpdatedAt, &rec.Views, &rec.Downloads, &rec.Tags, &rec.Metadata,
	)
	if err != nil {
		return nil, err
	}
	return rec, nil
}
