// handler.go — APIHandler реализует generated.ServerInterface,
// делегируя вызовы в отдельные handler'ы по доменам.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/bigkaa/goartstore/media-module/internal/api/generated"
)

// APIHandler — единая реализация ServerInterface, собирающая
// все доменные handlers в один объект.
type APIHandler struct {
	images  *ImagesHandler
	media   *MediaHandler
	health  *HealthHandler
	metrics http.Handler
}

// NewAPIHandler создаёт единый handler для всех endpoints.
func NewAPIHandler(
	images *ImagesHandler,
	media *MediaHandler,
	health *HealthHandler,
	metrics http.Handler,
) *APIHandler {
	return &APIHandler{
		images:  images,
		media:   media,
		health:  health,
		metrics: metrics,
	}
}

// --- Images ---

func (h *APIHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	h.images.UploadImage(w, r)
}

func (h *APIHandler) ListImages(w http.ResponseWriter, r *http.Request, params generated.ListImagesParams) {
	h.images.ListImages(w, r, params)
}

func (h *APIHandler) GetImage(w http.ResponseWriter, r *http.Request, imageId generated.ImageId, params generated.GetImageParams) {
	h.images.GetImage(w, r, imageId, params)
}

func (h *APIHandler) DeleteImage(w http.ResponseWriter, r *http.Request, imageId generated.ImageId) {
	h.images.DeleteImage(w, r, imageId)
}

// --- Media ---

func (h *APIHandler) ServeMedia(w http.ResponseWriter, r *http.Request, key string) {
	h.media.ServeMedia(w, r, key)
}

// --- Health ---

func (h *APIHandler) HealthLive(w http.ResponseWriter, r *http.Request) {
	h.health.HealthLive(w, r)
}

func (h *APIHandler) HealthReady(w http.ResponseWriter, r *http.Request) {
	h.health.HealthReady(w, r)
}

// --- Metrics ---

func (h *APIHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.metrics.ServeHTTP(w, r)
}

// Проверка соответствия интерфейсу на этапе компиляции.
var _ generated.ServerInterface = (*APIHandler)(nil)

// writeJSON вспомогательная функция для записи JSON-ответа.
func writeJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}
