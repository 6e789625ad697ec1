// Точка входа Media Module — приём и обработка изображений.
// Загружает конфигурацию, открывает объектное хранилище, журнал публикаций
// и хранилище записей, восстанавливает незавершённые публикации,
// собирает пайплайн и сервисы, запускает фоновые задачи (журнал,
// автоудаление, topologymetrics) и HTTP-сервер с graceful shutdown.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/bigkaa/goartstore/media-module/internal/api/handlers"
	"github.com/bigkaa/goartstore/media-module/internal/api/middleware"
	"github.com/bigkaa/goartstore/media-module/internal/config"
	"github.com/bigkaa/goartstore/media-module/internal/database"
	"github.com/bigkaa/goartstore/media-module/internal/media/codec"
	"github.com/bigkaa/goartstore/media-module/internal/pipeline"
	"github.com/bigkaa/goartstore/media-module/internal/publish"
	"github.com/bigkaa/goartstore/media-module/internal/repository"
	"github.com/bigkaa/goartstore/media-module/internal/server"
	"github.com/bigkaa/goartstore/media-module/internal/service"
	"github.com/bigkaa/goartstore/media-module/internal/storage/attr"
	"github.com/bigkaa/goartstore/media-module/internal/storage/filestore"
	"github.com/bigkaa/goartstore/media-module/internal/storage/index"
	"github.com/bigkaa/goartstore/media-module/internal/storage/s3store"
	"github.com/bigkaa/goartstore/media-module/internal/storage/wal"
)

// Параметры клиента JWKS.
const (
	jwksClientTimeout   = 10 * time.Second
	jwksRefreshInterval = 15 * time.Minute
)

// objectStore — объектное хранилище с проверкой готовности.
type objectStore interface {
	publish.ObjectStore
	handlers.Pinger
}

func main() {
	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка конфигурации: %v\n", err)
		os.Exit(1)
	}

	// 2. Настройка логгера
	logger := config.SetupLogger(cfg)
	logger.Info("Media Module запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("object_store", cfg.ObjectStore),
		slog.String("metadata_store", cfg.MetadataStore),
	)

	ctx := context.Background()

	// 3. Объектное хранилище
	objects, fsStore, err := openObjectStore(ctx, cfg)
	if err != nil {
		logger.Error("Ошибка инициализации объектного хранилища", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Журнал публикаций
	walEngine, err := wal.New(cfg.WALDir, logger)
	if err != nil {
		logger.Error("Ошибка инициализации WAL", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 5. Хранилище записей
	records, pool, err := openRecordStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка инициализации хранилища записей", slog.String("error", err.Error()))
		os.Exit(1)
	}
	var pgDB *sql.DB
	if pool != nil {
		defer pool.Close()
		// Адаптер pgxpool → *sql.DB для topologymetrics (connection pool mode)
		pgDB = stdlib.OpenDBFromPool(pool)
		defer pgDB.Close()
	}

	// 6. Восстановление незавершённых публикаций до приёма запросов
	journalSvc := service.NewJournalService(walEngine, objects, records,
		cfg.JournalInterval, cfg.JournalPendingTTL, logger)
	if res := journalSvc.Recover(ctx); res.Errors > 0 {
		logger.Warn("Восстановление журнала завершено с ошибками, повтор в фоне",
			slog.Int("errors", res.Errors),
		)
	}

	// 7. Пайплайн и сервисы
	publisher := publish.New(objects, walEngine, logger)
	pipe := pipeline.New(pipeline.Config{
		Limits:  codec.Limits{MaxPixels: cfg.MaxPixels},
		Workers: cfg.Workers,
	}, publisher, logger)
	logger.Info("Пайплайн обработки готов", slog.Int("workers", pipe.Workers()))

	cache := service.NewRecordCache(cfg.CacheSize, cfg.CacheTTL)
	imageSvc := service.NewImageService(pipe, records, publisher, cache, logger)

	// 8. Фоновые процессы
	journalSvc.Start(ctx)

	expirySvc := service.NewExpiryService(imageSvc, cfg.ExpiryInterval, logger)
	expirySvc.Start(ctx)

	// 8.1 topologymetrics — мониторинг зависимостей
	dephealthSvc := startDephealth(ctx, cfg, pgDB, logger)

	// 9. Handlers
	var mediaSource handlers.MediaSource
	if fsStore != nil {
		mediaSource = fsStore
	}
	apiHandler := handlers.NewAPIHandler(
		handlers.NewImagesHandler(imageSvc, cfg.MaxUploadSize, cfg.ProcessTimeout, logger),
		handlers.NewMediaHandler(mediaSource),
		handlers.NewHealthHandler(records, objects, walEngine.Dir()),
		server.NewMetricsHandler(),
	)

	// 10. Аутентификация
	var auth middleware.Authenticator
	if cfg.JWKSUrl != "" {
		jwtAuth, jwtErr := middleware.NewJWTAuth(middleware.JWTAuthConfig{
			JWKSURL:         cfg.JWKSUrl,
			CACertPath:      cfg.JWKSCACert,
			ClientTimeout:   jwksClientTimeout,
			RefreshInterval: jwksRefreshInterval,
			JWTLeeway:       cfg.JWTLeeway,
		}, logger)
		if jwtErr != nil {
			logger.Error("Ошибка создания JWT middleware", slog.String("error", jwtErr.Error()))
			os.Exit(1)
		}
		auth = jwtAuth
		logger.Info("JWT аутентификация настроена", slog.String("jwks_url", cfg.JWKSUrl))
	} else {
		auth = middleware.DevAuth{}
		logger.Warn("MM_JWKS_URL не задан, режим разработки: владелец из заголовка " + middleware.HeaderOwnerID)
	}

	// 11. Создание и запуск HTTP-сервера
	srv, err := server.New(cfg, logger, apiHandler, auth)
	if err != nil {
		logger.Error("Ошибка создания HTTP-сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// --- Graceful shutdown фоновых процессов ---
	logger.Info("Остановка фоновых процессов...")

	journalSvc.Stop()
	expirySvc.Stop()
	if dephealthSvc != nil {
		dephealthSvc.Stop()
	}

	logger.Info("Media Module остановлен")
}

// openObjectStore открывает бэкенд MM_OBJECT_STORE. Для fs возвращает
// также *filestore.FileStore для раздачи /media/.
func openObjectStore(ctx context.Context, cfg *config.Config) (objectStore, *filestore.FileStore, error) {
	switch cfg.ObjectStore {
	case config.ObjectStoreS3:
		store, err := s3store.New(ctx, s3store.Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			PublicURL:       cfg.S3PublicURL,
		})
		if err != nil {
			return nil, nil, err
		}
		return store, nil, nil
	default:
		store, err := filestore.New(cfg.DataDir, cfg.PublicBaseURL)
		if err != nil {
			return nil, nil, err
		}
		return store, store, nil
	}
}

// openRecordStore открывает бэкенд MM_METADATA_STORE. Для postgres
// применяет миграции и возвращает пул для topologymetrics.
func openRecordStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (repository.RecordStore, *pgxpool.Pool, error) {
	switch cfg.MetadataStore {
	case config.MetadataStorePostgres:
		logger.Info("Применение миграций БД...")
		if err := database.Migrate(cfg, logger); err != nil {
			return nil, nil, err
		}
		pool, err := database.Connect(ctx, cfg, logger)
		if err != nil {
			return nil, nil, err
		}
		return repository.NewImageRepository(pool, pool), pool, nil
	case config.MetadataStoreFile:
		store, err := attr.Open(cfg.RecordsDir, logger)
		if err != nil {
			return nil, nil, err
		}
		return store, nil, nil
	default:
		logger.Warn("Записи хранятся в памяти и теряются при перезапуске")
		return index.New(logger), nil, nil
	}
}

// startDephealth запускает мониторинг включённых зависимостей.
// Возвращает nil, если мониторить нечего или запуск не удался.
func startDephealth(ctx context.Context, cfg *config.Config, pgDB *sql.DB, logger *slog.Logger) *service.DephealthService {
	targets := service.DephealthTargets{
		DB:          pgDB,
		PostgresURL: cfg.DatabaseURL(),
		JWKSURL:     cfg.JWKSUrl,
	}
	if cfg.ObjectStore == config.ObjectStoreS3 {
		targets.S3Endpoint = cfg.S3Endpoint
	}

	name := cfg.DephealthName
	if name == "" {
		hostname, _ := os.Hostname()
		name = parseOwnerName(hostname)
	}

	dephealthSvc, err := service.NewDephealthService(
		name,
		cfg.DephealthGroup,
		targets,
		cfg.DephealthCheckInterval,
		logger,
	)
	if err != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", err.Error()),
		)
		return nil
	}
	if err := dephealthSvc.Start(ctx); err != nil {
		logger.Warn("Ошибка запуска topologymetrics", slog.String("error", err.Error()))
		return nil
	}
	logger.Info("topologymetrics запущен",
		slog.String("name", name),
		slog.String("group", cfg.DephealthGroup),
		slog.String("check_interval", cfg.DephealthCheckInterval.String()),
	)
	return dephealthSvc
}

var (
	// deploymentPod — {deployment}-{hash ReplicaSet}-{суффикс пода}
	deploymentPod = regexp.MustCompile(`^(.+)-[a-z0-9]{6,10}-[a-z0-9]{5}$`)
	// statefulSetPod — {statefulset}-{ordinal}
	statefulSetPod = regexp.MustCompile(`^(.+)-[0-9]+$`)
)

// parseOwnerName извлекает имя владельца пода (Deployment, StatefulSet)
// из hostname. Прочие имена возвращаются как есть.
func parseOwnerName(hostname string) string {
	if m := deploymentPod.FindStringSubmatch(hostname); m != nil {
		return m[1]
	}
	if m := statefulSetPod.FindStringSubmatch(hostname); m != nil {
		return m[1]
	}
	return hostname
}
