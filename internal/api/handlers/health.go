// health.go — обработчики health endpoints для Kubernetes probes.
package handlers

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/bigkaa/goartstore/media-module/internal/config"
)

// statusFail — строковая константа для статуса "fail" в health checks.
const statusFail = "fail"

// pingTimeout — предел времени одной проверки готовности.
const pingTimeout = 3 * time.Second

// Pinger — зависимость, проверяемая в readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler реализует health endpoints: /health/live, /health/ready.
type HealthHandler struct {
	version string
	// records — хранилище записей изображений
	records Pinger
	// objects — объектное хранилище
	objects Pinger
	// walDir — путь к директории журнала публикаций
	walDir string
}

// NewHealthHandler создаёт обработчик health endpoints.
func NewHealthHandler(records, objects Pinger, walDir string) *HealthHandler {
	return &HealthHandler{
		version: config.Version,
		records: records,
		objects: objects,
		walDir:  walDir,
	}
}

// HealthLive обрабатывает GET /health/live.
// Возвращает 200, если процесс жив. Не проверяет зависимости.
func (h *HealthHandler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   h.version,
		"service":   "media-module",
	})
}

// HealthReady обрабатывает GET /health/ready.
// Проверяет: хранилище записей, объектное хранилище, директорию журнала.
// Недоступность журнала переводит статус в degraded без 503:
// загрузки продолжаются, восстановление выполнит JournalService.
func (h *HealthHandler) HealthReady(w http.ResponseWriter, r *http.Request) {
	overallStatus := "ok"
	httpStatus := http.StatusOK

	records := ping(r.Context(), h.records)
	objects := ping(r.Context(), h.objects)
	walCheck := h.checkWAL()

	for _, c := range []map[string]any{records, objects} {
		if c["status"] != "ok" {
			overallStatus = statusFail
			httpStatus = http.StatusServiceUnavailable
		}
	}
	if walCheck["status"] != "ok" && overallStatus != statusFail {
		overallStatus = "degraded"
	}

	writeJSON(w, httpStatus, map[string]any{
		"status":    overallStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   h.version,
		"service":   "media-module",
		"checks": map[string]any{
			"records": records,
			"objects": objects,
			"wal":     walCheck,
		},
	})
}

func ping(ctx context.Context, p Pinger) map[string]any {
	if p == nil {
		return map[string]any{
			"status":  "ok",
			"message": "Проверка не настроена",
		}
	}

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	start := time.Now()
	if err := p.Ping(ctx); err != nil {
		return map[string]any{
			"status":  statusFail,
			"message": err.Error(),
		}
	}
	return map[string]any{
		"status":     "ok",
		"latency_ms": time.Since(start).Milliseconds(),
	}
}

// checkWAL проверяет доступность директории журнала на запись.
func (h *HealthHandler) checkWAL() map[string]any {
	if h.walDir == "" {
		return map[string]any{
			"status":  "ok",
			"message": "Проверка не настроена",
		}
	}

	testFile := filepath.Join(h.walDir, ".health_check")
	if err := os.WriteFile(testFile, []byte("ok"), 0o600); err != nil {
		return map[string]any{
			"status":  statusFail,
			"message": "Директория WAL недоступна для записи: " + err.Error(),
		}
	}
	_ = os.Remove(testFile)

	return map[string]any{
		"status": "ok",
	}
}
