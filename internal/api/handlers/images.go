// images.go — HTTP handlers операций над изображениями:
// загрузка (multipart), чтение записи, список владельца, удаление.
package handlers

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/bigkaa/goartstore/media-module/internal/api/errors"
	"github.com/bigkaa/goartstore/media-module/internal/api/generated"
	"github.com/bigkaa/goartstore/media-module/internal/api/middleware"
	"github.com/bigkaa/goartstore/media-module/internal/domain/model"
	"github.com/bigkaa/goartstore/media-module/internal/media/validator"
	"github.com/bigkaa/goartstore/media-module/internal/pipeline"
	"github.com/bigkaa/goartstore/media-module/internal/service"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100

	// multipartMemory — часть формы, хранимая в памяти; остальное во временных файлах
	multipartMemory = 8 << 20
	// formOverhead — запас на поля формы и границы multipart сверх размера файла
	formOverhead = 1 << 20
)

// ImageService — операции, которые handlers вызывают у сервиса изображений.
type ImageService interface {
	Create(ctx context.Context, up pipeline.Upload, opts model.ProcessingOptions) (*model.ImageRecord, error)
	Get(ctx context.Context, id string, viewer service.Viewer) (*model.ImageRecord, error)
	List(ctx context.Context, ownerID string, limit, offset int) ([]*model.ImageRecord, int, error)
	Delete(ctx context.Context, id, ownerID string) error
}

// ImagesHandler — обработчик endpoints /api/v1/images.
type ImagesHandler struct {
	images         ImageService
	maxUploadSize  int64
	processTimeout time.Duration
	logger         *slog.Logger
}

// NewImagesHandler создаёт обработчик. processTimeout ограничивает
// время обработки одной загрузки (0 — без ограничения).
func NewImagesHandler(images ImageService, maxUploadSize int64, processTimeout time.Duration, logger *slog.Logger) *ImagesHandler {
	return &ImagesHandler{
		images:         images,
		maxUploadSize:  maxUploadSize,
		processTimeout: processTimeout,
		logger:         logger.With(slog.String("component", "images_handler")),
	}
}

// UploadImage обрабатывает POST /api/v1/images.
// Multipart form: file (обязательно), параметры обработки и атрибуты записи.
func (h *ImagesHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	owner := middleware.SubjectFromContext(r.Context())

	bodyLimit := h.maxUploadSize + formOverhead
	if r.ContentLength > bodyLimit {
		errors.PayloadTooLarge(w, fmt.Sprintf("Тело запроса превышает %d байт", bodyLimit))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, bodyLimit)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			errors.PayloadTooLarge(w, fmt.Sprintf("Тело запроса превышает %d байт", tooLarge.Limit))
			return
		}
		errors.ValidationError(w, fmt.Sprintf("Ошибка парсинга multipart: %s", err.Error()))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		errors.ValidationError(w, "Поле 'file' обязательно")
		return
	}
	defer file.Close()

	// расширение проверяется раньше размера файла
	if err := validator.CheckExtension(header.Filename); err != nil {
		h.writeServiceError(w, err)
		return
	}
	if header.Size > h.maxUploadSize {
		errors.PayloadTooLarge(w, fmt.Sprintf("Файл %s превышает лимит %d байт", header.Filename, h.maxUploadSize))
		return
	}

	opts, attrs, err := parseUploadForm(r)
	if err != nil {
		errors.ValidationError(w, err.Error())
		return
	}
	attrs.OwnerID = owner

	data, err := io.ReadAll(io.LimitReader(file, h.maxUploadSize+1))
	if err != nil {
		errors.ValidationError(w, fmt.Sprintf("Ошибка чтения файла: %s", err.Error()))
		return
	}

	ctx := r.Context()
	if h.processTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.processTimeout)
		defer cancel()
	}

	rec, err := h.images.Create(ctx, pipeline.Upload{
		Data:       data,
		Filename:   header.Filename,
		MIME:       header.Header.Get("Content-Type"),
		Size:       header.Size,
		Attributes: attrs,
	}, opts)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, recordToAPI(rec))
}

// GetImage обрабатывает GET /api/v1/images/{image_id}.
func (h *ImagesHandler) GetImage(w http.ResponseWriter, r *http.Request, imageId generated.ImageId, params generated.GetImageParams) {
	viewer := service.Viewer{OwnerID: middleware.SubjectFromContext(r.Context())}
	if params.XAccessSecret != nil {
		viewer.AccessSecret = *params.XAccessSecret
	}

	rec, err := h.images.Get(r.Context(), imageId.String(), viewer)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, recordToAPI(rec))
}

// ListImages обрабатывает GET /api/v1/images.
// Пагинация: limit (1-100, по умолчанию 20), offset.
func (h *ImagesHandler) ListImages(w http.ResponseWriter, r *http.Request, params generated.ListImagesParams) {
	limit := defaultListLimit
	offset := 0

	if params.Limit != nil {
		limit = *params.Limit
		if limit <= 0 || limit > maxListLimit {
			errors.ValidationError(w, fmt.Sprintf("Параметр limit должен быть от 1 до %d", maxListLimit))
			return
		}
	}
	if params.Offset != nil {
		offset = *params.Offset
		if offset < 0 {
			errors.ValidationError(w, "Параметр offset не может быть отрицательным")
			return
		}
	}

	owner := middleware.SubjectFromContext(r.Context())
	items, total, err := h.images.List(r.Context(), owner, limit, offset)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	apiItems := make([]generated.Image, 0, len(items))
	for _, item := range items {
		apiItems = append(apiItems, recordToAPI(item))
	}

	writeJSON(w, http.StatusOK, generated.ImageList{
		Items:   apiItems,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
		HasMore: offset+len(items) < total,
	})
}

// DeleteImage обрабатывает DELETE /api/v1/images/{image_id}.
// Удаляет объекты и запись; доступно только владельцу.
func (h *ImagesHandler) DeleteImage(w http.ResponseWriter, r *http.Request, imageId generated.ImageId) {
	owner := middleware.SubjectFromContext(r.Context())
	if err := h.images.Delete(r.Context(), imageId.String(), owner); err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeServiceError отображает ошибки сервиса и пайплайна на HTTP-ответы.
func (h *ImagesHandler) writeServiceError(w http.ResponseWriter, err error) {
	if errors.MediaError(w, err) {
		return
	}
	switch {
	case stderrors.Is(err, service.ErrNotFound):
		errors.NotFound(w, "Изображение не найдено")
	case stderrors.Is(err, service.ErrForbidden):
		errors.Forbidden(w, "Нет доступа к изображению")
	case stderrors.Is(err, service.ErrTimeout):
		errors.Timeout(w, "Обработка не уложилась в отведённое время")
	case stderrors.Is(err, context.Canceled):
		// клиент закрыл соединение, ответ никто не прочитает
		h.logger.Debug("Запрос отменён клиентом", slog.String("error", err.Error()))
		errors.InternalError(w, "Запрос отменён")
	default:
		h.logger.Error("Ошибка обработки запроса", slog.String("error", err.Error()))
		errors.InternalError(w, "Внутренняя ошибка")
	}
}

// parseUploadForm разбирает параметры обработки и атрибуты записи.
func parseUploadForm(r *http.Request) (model.ProcessingOptions, model.RecordAttributes, error) {
	var (
		opts  model.ProcessingOptions
		attrs model.RecordAttributes
		err   error
	)

	if opts.MaxWidth, err = formInt(r, "maxWidth"); err != nil {
		return opts, attrs, err
	}
	if opts.MaxHeight, err = formInt(r, "maxHeight"); err != nil {
		return opts, attrs, err
	}
	if opts.Quality, err = formInt(r, "quality"); err != nil {
		return opts, attrs, err
	}
	if opts.AutoDeleteAfterMinutes, err = formInt(r, "autoDeleteAfterMinutes"); err != nil {
		return opts, attrs, err
	}
	if v := r.FormValue("convertToNormalized"); v != "" {
		b, parseErr := strconv.ParseBool(v)
		if parseErr != nil {
			return opts, attrs, fmt.Errorf("convertToNormalized: ожидается true или false, получено %q", v)
		}
		opts.ConvertToNormalizedFormat = &b
	}
	if err := opts.Validate(); err != nil {
		return opts, attrs, err
	}

	if v := r.FormValue("visibility"); v != "" {
		attrs.Visibility = model.Visibility(v)
		if !attrs.Visibility.Valid() {
			return opts, attrs, fmt.Errorf("visibility: допустимы public и private, получено %q", v)
		}
	}
	if secret := r.FormValue("password"); secret != "" {
		hash := service.HashSecret(secret)
		attrs.AccessSecretHash = &hash
	}
	if v := r.FormValue("collectionId"); v != "" {
		id, parseErr := uuid.Parse(v)
		if parseErr != nil {
			return opts, attrs, fmt.Errorf("collectionId: ожидается UUID, получено %q", v)
		}
		s := id.String()
		attrs.CollectionID = &s
	}
	if v := r.FormValue("tags"); v != "" {
		var tags []string
		if err := json.Unmarshal([]byte(v), &tags); err != nil {
			return opts, attrs, fmt.Errorf("tags: ожидается JSON-массив строк: %w", err)
		}
		attrs.Tags = normalizeTags(tags)
	}

	return opts, attrs, nil
}

// formInt читает необязательное целое поле формы.
func formInt(r *http.Request, name string) (*int, error) {
	v := r.FormValue(name)
	if v == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil, fmt.Errorf("%s: ожидается целое число, получено %q", name, v)
	}
	return &n, nil
}

// normalizeTags убирает пустые теги и дубликаты, сохраняя порядок.
func normalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// recordToAPI преобразует запись в API-формат.
// Исключает внутренние поля: ключи объектов и хэш секрета.
func recordToAPI(rec *model.ImageRecord) generated.Image {
	id := openapi_types.UUID{}
	_ = id.UnmarshalText([]byte(rec.ID))

	img := generated.Image{
		Id:               id,
		OwnerId:          rec.OwnerID,
		Url:              rec.URL,
		Width:            rec.Width,
		Height:           rec.Height,
		Size:             rec.Size,
		ContentType:      rec.ContentType,
		ThumbnailUrl:     rec.ThumbnailURL,
		ThumbnailWidth:   &rec.ThumbnailWidth,
		ThumbnailHeight:  &rec.ThumbnailHeight,
		ThumbnailSize:    &rec.ThumbnailSize,
		OriginalFilename: rec.OriginalFilename,
		MimeType:         rec.MimeType,
		Visibility:       generated.ImageVisibility(rec.Visibility),
		ExpiresAt:        rec.ExpiresAt,
		CreatedAt:        rec.CreatedAt,
		Views:            rec.Views,
		Downloads:        &rec.Downloads,
		Metadata:         metadataToAPI(rec.Metadata),
	}
	if img.Visibility == "" {
		img.Visibility = generated.ImageVisibilityPublic
	}

	if rec.CollectionID != nil {
		var cid openapi_types.UUID
		if err := cid.UnmarshalText([]byte(*rec.CollectionID)); err == nil {
			img.CollectionId = &cid
		}
	}

	if len(rec.Tags) > 0 {
		tags := make([]string, len(rec.Tags))
		copy(tags, rec.Tags)
		img.Tags = &tags
	}

	return img
}

// metadataToAPI переносит метаданные; значения тегов становятся
// JSON-скалярами.
func metadataToAPI(m model.ImageMetadata) generated.Metadata {
	out := generated.Metadata{
		Palette:       m.Palette,
		DominantColor: m.DominantColor,
		Animated:      m.Animated,
		Duration:      m.Duration,
		QualityScore:  m.QualityScore,
	}
	if out.Palette == nil {
		out.Palette = []string{}
	}
	if out.DominantColor == "" {
		out.DominantColor = model.FallbackColor
	}

	if len(m.Tags) > 0 {
		tags := make(map[string]interface{}, len(m.Tags))
		for k, v := range m.Tags {
			tags[k] = tagScalar(v)
		}
		out.Tags = &tags
	}
	return out
}

func tagScalar(v model.TagValue) any {
	if s, ok := v.Str(); ok {
		return s
	}
	if n, ok := v.Number(); ok {
		return n
	}
	if b, ok := v.Bool(); ok {
		return b
	}
	return nil
}
