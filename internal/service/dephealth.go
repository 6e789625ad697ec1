// dephealth.go — интеграция с topologymetrics SDK для мониторинга зависимостей.
//
// Media Module мониторит зависимости, которые включены конфигурацией:
//   - PostgreSQL — SQL checker через существующий pgxpool (MM_METADATA_STORE=postgres, critical)
//   - JWKS endpoint — HTTP checker (MM_JWKS_URL, critical)
//   - S3-совместимое хранилище — HTTP checker (MM_S3_ENDPOINT, critical)
//
// Метрики доступны на /metrics вместе с остальными Prometheus-метриками:
//   - app_dependency_health — состояние зависимости (1 = ok, 0 = fail)
//   - app_dependency_latency_seconds — задержка проверки
//   - app_dependency_status — категория статуса
//   - app_dependency_status_detail — детальный статус
package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/url"
	"time"

	"github.com/BigKAA/topologymetrics/sdk-go/dephealth"
	_ "github.com/BigKAA/topologymetrics/sdk-go/dephealth/checks/httpcheck" // HTTP checker для JWKS и S3
	"github.com/BigKAA/topologymetrics/sdk-go/dephealth/checks/pgcheck"     // PostgreSQL checker (pool mode)
	"github.com/prometheus/client_golang/prometheus"
)

// ErrNoDependencies — конфигурация не включает ни одной внешней зависимости.
var ErrNoDependencies = errors.New("нет зависимостей для мониторинга")

// minioHealthPath — liveness endpoint MinIO и совместимых хранилищ.
const minioHealthPath = "/minio/health/live"

// DephealthTargets — проверяемые зависимости. Пустое поле — зависимость
// не используется.
type DephealthTargets struct {
	// DB — *sql.DB, полученный из pgxpool через stdlib.OpenDBFromPool()
	DB *sql.DB
	// PostgresURL — адрес PostgreSQL для меток (без учётных данных)
	PostgresURL string
	// JWKSURL — URL JWKS endpoint
	JWKSURL string
	// S3Endpoint — адрес S3-совместимого хранилища
	S3Endpoint string
}

func (t DephealthTargets) empty() bool {
	return t.DB == nil && t.JWKSURL == "" && t.S3Endpoint == ""
}

// DephealthService — сервис мониторинга зависимостей через topologymetrics.
type DephealthService struct {
	dh     *dephealth.DepHealth
	logger *slog.Logger
}

// NewDephealthService создаёт сервис мониторинга зависимостей.
// Метрики регистрируются в глобальном Prometheus registry.
//
// Параметры:
//   - serviceID — имя вершины графа текущего приложения (DEPHEALTH_NAME)
//   - group — имя группы в метриках (MM_DEPHEALTH_GROUP)
//   - checkInterval — интервал проверки (MM_DEPHEALTH_CHECK_INTERVAL)
func NewDephealthService(
	serviceID, group string,
	targets DephealthTargets,
	checkInterval time.Duration,
	logger *slog.Logger,
) (*DephealthService, error) {
	return newDephealthService(serviceID, group, targets, checkInterval, logger)
}

// NewDephealthServiceWithRegisterer создаёт сервис с указанным Prometheus registerer.
// Используется в тестах для изоляции метрик.
func NewDephealthServiceWithRegisterer(
	serviceID, group string,
	targets DephealthTargets,
	checkInterval time.Duration,
	logger *slog.Logger,
	registerer prometheus.Registerer,
) (*DephealthService, error) {
	return newDephealthService(serviceID, group, targets, checkInterval, logger,
		dephealth.WithRegisterer(registerer))
}

func newDephealthService(
	serviceID, group string,
	targets DephealthTargets,
	checkInterval time.Duration,
	logger *slog.Logger,
	extraOpts ...dephealth.Option,
) (*DephealthService, error) {
	if targets.empty() {
		return nil, ErrNoDependencies
	}

	opts := []dephealth.Option{dephealth.WithLogger(logger)}

	if targets.DB != nil {
		opts = append(opts, dephealth.AddDependency("postgresql", dephealth.TypePostgres,
			pgcheck.New(pgcheck.WithDB(targets.DB)),
			dephealth.FromURL(targets.PostgresURL),
			dephealth.CheckInterval(checkInterval),
			dephealth.Critical(true),
		))
	}

	if targets.JWKSURL != "" {
		// JWKS отдаётся по собственному пути, /health у IdP может отсутствовать
		healthPath := "/health"
		if parsed, err := url.Parse(targets.JWKSURL); err == nil && parsed.Path != "" {
			healthPath = parsed.Path
		}
		opts = append(opts, dephealth.HTTP("jwks",
			dephealth.FromURL(targets.JWKSURL),
			dephealth.WithHTTPHealthPath(healthPath),
			dephealth.CheckInterval(checkInterval),
			dephealth.Critical(true),
			dephealth.WithHTTPTLSSkipVerify(true), // Dev-среда: self-signed сертификаты
		))
	}

	if targets.S3Endpoint != "" {
		opts = append(opts, dephealth.HTTP("object-storage",
			dephealth.FromURL(targets.S3Endpoint),
			dephealth.WithHTTPHealthPath(minioHealthPath),
			dephealth.CheckInterval(checkInterval),
			dephealth.Critical(true),
		))
	}

	opts = append(opts, extraOpts...)

	dh, err := dephealth.New(serviceID, group, opts...)
	if err != nil {
		return nil, err
	}

	return &DephealthService{
		dh:     dh,
		logger: logger.With(slog.String("component", "dephealth")),
	}, nil
}

// Start запускает периодическую проверку зависимостей.
func (ds *DephealthService) Start(ctx context.Context) error {
	ds.logger.Info("Мониторинг зависимостей запущен")
	return ds.dh.Start(ctx)
}

// Stop останавливает мониторинг зависимостей.
func (ds *DephealthService) Stop() {
	ds.dh.Stop()
	ds.logger.Info("Мониторинг зависимостей остановлен")
}

// Health возвращает текущее состояние зависимостей.
// Ключ — имя зависимости, значение — true если ok.
func (ds *DephealthService) Health() map[string]bool {
	return ds.dh.Health()
}
