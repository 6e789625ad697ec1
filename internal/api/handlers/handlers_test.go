package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image/color"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/bigkaa/goartstore/media-module/internal/api/generated"
	"github.com/bigkaa/goartstore/media-module/internal/api/handlers"
	"github.com/bigkaa/goartstore/media-module/internal/api/middleware"
	"github.com/bigkaa/goartstore/media-module/internal/media/mediatest"
	"github.com/bigkaa/goartstore/media-module/internal/pipeline"
	"github.com/bigkaa/goartstore/media-module/internal/publish"
	"github.com/bigkaa/goartstore/media-module/internal/server"
	"github.com/bigkaa/goartstore/media-module/internal/service"
	"github.com/bigkaa/goartstore/media-module/internal/storage/filestore"
	"github.com/bigkaa/goartstore/media-module/internal/storage/index"
	"github.com/bigkaa/goartstore/media-module/internal/storage/wal"
)

const baseURL = "http://media.test"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// newTestAPI собирает модуль целиком: пайплайн, fs-хранилище, журнал,
// in-memory записи и роутер в dev-режиме аутентификации.
func newTestAPI(t *testing.T, maxUpload int64) http.Handler {
	t.Helper()
	logger := testLogger()

	store, err := filestore.New(t.TempDir(), baseURL)
	if err != nil {
		t.Fatal(err)
	}
	walDir := t.TempDir()
	journal, err := wal.New(walDir, logger)
	if err != nil {
		t.Fatal(err)
	}
	records := index.New(logger)

	publisher := publish.New(store, journal, logger)
	pipe := pipeline.New(pipeline.Config{Workers: 2}, publisher, logger)
	images := service.NewImageService(pipe, records, publisher, service.NewRecordCache(100, time.Minute), logger)

	api := handlers.NewAPIHandler(
		handlers.NewImagesHandler(images, maxUpload, 30*time.Second, logger),
		handlers.NewMediaHandler(store),
		handlers.NewHealthHandler(records, store, journal.Dir()),
		server.NewMetricsHandler(),
	)
	router, err := server.NewRouter(logger, api, middleware.DevAuth{})
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}
	return router
}

type uploadField struct{ name, value string }

func uploadRequest(t *testing.T, owner, filename, contentType string, data []byte, fields ...uploadField) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = part.Write(data)
	for _, f := range fields {
		_ = mw.WriteField(f.name, f.value)
	}
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/images", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if owner != "" {
		req.Header.Set(middleware.HeaderOwnerID, owner)
	}
	return req
}

func do(api http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	api.ServeHTTP(rec, req)
	return rec
}

func get(owner, target string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if owner != "" {
		req.Header.Set(middleware.HeaderOwnerID, owner)
	}
	return req
}

func decodeImage(t *testing.T, rec *httptest.ResponseRecorder) generated.Image {
	t.Helper()
	var img generated.Image
	if err := json.NewDecoder(rec.Body).Decode(&img); err != nil {
		t.Fatalf("декодирование ответа: %v", err)
	}
	return img
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("декодирование ошибки: %v", err)
	}
	return body.Error.Code
}

func TestImagesAPI_Lifecycle(t *testing.T) {
	api := newTestAPI(t, 32<<20)
	png := mediatest.PNG(t, mediatest.Solid(320, 200, color.NRGBA{R: 0x20, G: 0xA0, B: 0x40, A: 0xFF}))

	rec := do(api, uploadRequest(t, "alice", "cat.png", "image/png", png,
		uploadField{"tags", `["cat"," cat ","pet"]`},
	))
	if rec.Code != http.StatusCreated {
		t.Fatalf("загрузка: ожидался статус 201, получен %d, тело: %s", rec.Code, rec.Body.String())
	}
	img := decodeImage(t, rec)
	if img.OwnerId != "alice" || img.Width != 320 || img.Height != 200 {
		t.Errorf("неожиданная запись: owner=%s %dx%d", img.OwnerId, img.Width, img.Height)
	}
	if img.Visibility != generated.ImageVisibilityPublic {
		t.Errorf("ожидалась видимость public, получено %s", img.Visibility)
	}
	if img.Tags == nil || len(*img.Tags) != 2 {
		t.Errorf("ожидалось 2 тега после нормализации, получено %v", img.Tags)
	}
	if img.Metadata.DominantColor != "#20a040" {
		t.Errorf("доминантный цвет: ожидалось #20a040, получено %s", img.Metadata.DominantColor)
	}

	// раздача основного артефакта
	mediaPath := strings.TrimPrefix(img.Url, baseURL)
	if !strings.HasPrefix(mediaPath, filestore.MediaPrefix) {
		t.Fatalf("URL %s вне %s", img.Url, filestore.MediaPrefix)
	}
	media := do(api, get("", mediaPath))
	if media.Code != http.StatusOK {
		t.Fatalf("media: ожидался статус 200, получен %d", media.Code)
	}
	if int64(media.Body.Len()) != img.Size {
		t.Errorf("media: ожидалось %d байт, получено %d", img.Size, media.Body.Len())
	}
	etag := media.Header().Get("ETag")
	if etag == "" {
		t.Fatal("media: отсутствует ETag")
	}
	cond := get("", mediaPath)
	cond.Header.Set("If-None-Match", etag)
	if rec := do(api, cond); rec.Code != http.StatusNotModified {
		t.Errorf("If-None-Match: ожидался статус 304, получен %d", rec.Code)
	}
	if rec := do(api, get("", strings.TrimPrefix(img.ThumbnailUrl, baseURL))); rec.Code != http.StatusOK {
		t.Errorf("миниатюра: ожидался статус 200, получен %d", rec.Code)
	}

	// чтение увеличивает просмотры
	rec = do(api, get("", "/api/v1/images/"+img.Id.String()))
	if rec.Code != http.StatusOK {
		t.Fatalf("get: ожидался статус 200, получен %d", rec.Code)
	}
	if got := decodeImage(t, rec); got.Views != 1 {
		t.Errorf("views: ожидалось 1, получено %d", got.Views)
	}

	rec = do(api, get("alice", "/api/v1/images?limit=10"))
	var list generated.ImageList
	if err := json.NewDecoder(rec.Body).Decode(&list); err != nil {
		t.Fatal(err)
	}
	if list.Total != 1 || len(list.Items) != 1 || list.HasMore {
		t.Errorf("список: ожидалось total=1 items=1, получено total=%d items=%d", list.Total, len(list.Items))
	}

	del := func(owner string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodDelete, "/api/v1/images/"+img.Id.String(), nil)
		req.Header.Set(middleware.HeaderOwnerID, owner)
		return do(api, req)
	}
	if rec := del("bob"); rec.Code != http.StatusForbidden {
		t.Errorf("удаление чужого: ожидался статус 403, получен %d", rec.Code)
	}
	if rec := del("alice"); rec.Code != http.StatusNoContent {
		t.Fatalf("удаление: ожидался статус 204, получен %d, тело: %s", rec.Code, rec.Body.String())
	}
	if rec := do(api, get("", "/api/v1/images/"+img.Id.String())); rec.Code != http.StatusNotFound {
		t.Errorf("после удаления: ожидался статус 404, получен %d", rec.Code)
	}
	if rec := do(api, get("", mediaPath)); rec.Code != http.StatusNotFound {
		t.Errorf("объект после удаления: ожидался статус 404, получен %d", rec.Code)
	}
}

func TestImagesAPI_UploadErrors(t *testing.T) {
	api := newTestAPI(t, 1<<20)
	png := mediatest.PNG(t, mediatest.Solid(16, 16, color.NRGBA{R: 0xFF, A: 0xFF}))

	tests := []struct {
		name       string
		req        *http.Request
		wantStatus int
		wantCode   string
	}{
		{
			name:       "без владельца",
			req:        uploadRequest(t, "", "a.png", "image/png", png),
			wantStatus: http.StatusUnauthorized,
			wantCode:   "UNAUTHORIZED",
		},
		{
			name:       "неподдерживаемое расширение",
			req:        uploadRequest(t, "alice", "notes.txt", "image/png", png),
			wantStatus: http.StatusUnsupportedMediaType,
			wantCode:   "UNSUPPORTED_FORMAT",
		},
		{
			name:       "MIME не изображение",
			req:        uploadRequest(t, "alice", "a.png", "text/plain", png),
			wantStatus: http.StatusUnsupportedMediaType,
			wantCode:   "TYPE_MISMATCH",
		},
		{
			name:       "битые данные",
			req:        uploadRequest(t, "alice", "a.png", "image/png", []byte("not really a png")),
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "DECODE_ERROR",
		},
		{
			name:       "файл больше лимита",
			req:        uploadRequest(t, "alice", "a.png", "image/png", bytes.Repeat([]byte{1}, 3<<20)),
			wantStatus: http.StatusRequestEntityTooLarge,
			wantCode:   "PAYLOAD_TOO_LARGE",
		},
		{
			name:       "большой файл с неподдерживаемым расширением",
			req:        uploadRequest(t, "alice", "notes.txt", "text/plain", bytes.Repeat([]byte{1}, 3<<19)),
			wantStatus: http.StatusUnsupportedMediaType,
			wantCode:   "UNSUPPORTED_FORMAT",
		},
		{
			name:       "quality вне диапазона",
			req:        uploadRequest(t, "alice", "a.png", "image/png", png, uploadField{"quality", "150"}),
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_ERROR",
		},
		{
			name:       "некорректная видимость",
			req:        uploadRequest(t, "alice", "a.png", "image/png", png, uploadField{"visibility", "secret"}),
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_ERROR",
		},
		{
			name:       "теги не JSON",
			req:        uploadRequest(t, "alice", "a.png", "image/png", png, uploadField{"tags", "cat,dog"}),
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_ERROR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(api, tt.req)
			if rec.Code != tt.wantStatus {
				t.Fatalf("ожидался статус %d, получен %d, тело: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}
			if code := errorCode(t, rec); code != tt.wantCode {
				t.Errorf("ожидался код %s, получен %s", tt.wantCode, code)
			}
		})
	}
}

func TestImagesAPI_PrivateImage(t *testing.T) {
	api := newTestAPI(t, 32<<20)
	png := mediatest.PNG(t, mediatest.Solid(40, 40, color.NRGBA{B: 0xFF, A: 0xFF}))

	rec := do(api, uploadRequest(t, "alice", "secret.png", "image/png", png,
		uploadField{"visibility", "private"},
		uploadField{"password", "s3cret"},
		uploadField{"autoDeleteAfterMinutes", "60"},
	))
	if rec.Code != http.StatusCreated {
		t.Fatalf("загрузка: ожидался статус 201, получен %d, тело: %s", rec.Code, rec.Body.String())
	}
	img := decodeImage(t, rec)
	if img.ExpiresAt == nil {
		t.Error("ожидался expires_at при autoDeleteAfterMinutes")
	}
	target := "/api/v1/images/" + img.Id.String()

	if rec := do(api, get("", target)); rec.Code != http.StatusForbidden {
		t.Errorf("аноним: ожидался статус 403, получен %d", rec.Code)
	}
	if rec := do(api, get("bob", target)); rec.Code != http.StatusForbidden {
		t.Errorf("чужой владелец: ожидался статус 403, получен %d", rec.Code)
	}
	if rec := do(api, get("alice", target)); rec.Code != http.StatusOK {
		t.Errorf("владелец: ожидался статус 200, получен %d", rec.Code)
	}
	withSecret := get("", target)
	withSecret.Header.Set("X-Access-Secret", "s3cret")
	if rec := do(api, withSecret); rec.Code != http.StatusOK {
		t.Errorf("секрет: ожидался статус 200, получен %d", rec.Code)
	}
}

func TestHealthAndRouting(t *testing.T) {
	api := newTestAPI(t, 32<<20)

	tests := []struct {
		name       string
		req        *http.Request
		wantStatus int
	}{
		{"live", get("", "/health/live"), http.StatusOK},
		{"ready", get("", "/health/ready"), http.StatusOK},
		{"metrics", get("", "/metrics"), http.StatusOK},
		{"неизвестный id", get("", "/api/v1/images/6f1f7a9e-3b8c-4d2e-9a51-0c7e2d4b8f10"), http.StatusNotFound},
		{"id не UUID", get("", "/api/v1/images/abc"), http.StatusBadRequest},
		{"limit вне диапазона", get("alice", "/api/v1/images?limit=1000"), http.StatusBadRequest},
		{"список без владельца", get("", "/api/v1/images"), http.StatusUnauthorized},
		{"выход за data dir", get("", "/media/../../etc/passwd"), http.StatusNotFound},
		{"неизвестный маршрут", get("", "/api/v2/images"), http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := do(api, tt.req); rec.Code != tt.wantStatus {
				t.Errorf("ожидался статус %d, получен %d, тело: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}
		})
	}
}
