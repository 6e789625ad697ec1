// Пакет config — загрузка и валидация конфигурации Media Module
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Бэкенды объектного хранилища.
const (
	ObjectStoreFS = "fs"
	ObjectStoreS3 = "s3"
)

// Бэкенды хранилища записей.
const (
	MetadataStoreMemory   = "memory"
	MetadataStoreFile     = "file"
	MetadataStorePostgres = "postgres"
)

// Config содержит все параметры конфигурации Media Module.
type Config struct {
	// Порт HTTP-сервера
	Port int
	// Публичный адрес модуля, префикс URL объектов fs-бэкенда
	PublicBaseURL string

	// Верхняя граница разбора multipart-запроса в байтах
	MaxUploadSize int64
	// Предел числа пикселей декодируемого изображения
	MaxPixels int64
	// Ёмкость пула CPU-стадий пайплайна
	Workers int
	// Таймаут обработки одной загрузки
	ProcessTimeout time.Duration

	// Бэкенд объектного хранилища (fs, s3)
	ObjectStore string
	// Директория объектов fs-бэкенда
	DataDir string
	// Директория журнала публикации
	WALDir string

	// Параметры S3
	S3Bucket          string
	S3Region          string
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3PublicURL       string

	// Бэкенд хранилища записей (memory, file, postgres)
	MetadataStore string
	// Директория JSON-записей file-бэкенда
	RecordsDir string

	// Параметры PostgreSQL
	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string
	DBSSLMode  string

	// Кэш записей
	CacheSize int
	CacheTTL  time.Duration

	// URL JWKS endpoint (пусто — режим разработки, владелец из X-Owner-ID)
	JWKSUrl string
	// Путь к CA-сертификату для проверки TLS JWKS endpoint (опционально)
	JWKSCACert string
	// Допуск проверки exp/nbf
	JWTLeeway time.Duration

	// Путь к TLS сертификату и ключу (оба пустые — HTTP)
	TLSCert string
	TLSKey  string

	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string

	// Интервал обработки журнала публикации
	JournalInterval time.Duration
	// Возраст pending-транзакции, после которого она откатывается
	JournalPendingTTL time.Duration
	// Интервал удаления изображений с истёкшим сроком хранения
	ExpiryInterval time.Duration

	// Интервал проверки зависимостей topologymetrics
	DephealthCheckInterval time.Duration
	// Имя группы в метриках topologymetrics (MM_DEPHEALTH_GROUP)
	DephealthGroup string
	// Имя владельца пода для метки name в topologymetrics (DEPHEALTH_NAME)
	DephealthName string

	// Таймаут graceful shutdown HTTP-сервера
	ShutdownTimeout time.Duration
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// MM_PORT — порт HTTP-сервера (по умолчанию 8030)
	cfg.Port, err = getEnvInt("MM_PORT", 8030)
	if err != nil {
		return nil, fmt.Errorf("MM_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("MM_PORT: значение %d вне допустимого диапазона 1-65535", cfg.Port)
	}

	// MM_PUBLIC_BASE_URL — по умолчанию http://localhost:{port}
	cfg.PublicBaseURL = strings.TrimRight(
		getEnvDefault("MM_PUBLIC_BASE_URL", fmt.Sprintf("http://localhost:%d", cfg.Port)), "/")

	// MM_MAX_UPLOAD_SIZE — граница разбора multipart (по умолчанию 32 MiB),
	// принимает байты или размер с единицами: 16MiB, 10MB
	cfg.MaxUploadSize, err = getEnvBytes("MM_MAX_UPLOAD_SIZE", 32<<20)
	if err != nil {
		return nil, fmt.Errorf("MM_MAX_UPLOAD_SIZE: %w", err)
	}
	if cfg.MaxUploadSize <= 0 {
		return nil, fmt.Errorf("MM_MAX_UPLOAD_SIZE: значение должно быть положительным")
	}

	// MM_MAX_PIXELS — защита от decompression bomb (по умолчанию 100 млн)
	cfg.MaxPixels, err = getEnvInt64("MM_MAX_PIXELS", 100_000_000)
	if err != nil {
		return nil, fmt.Errorf("MM_MAX_PIXELS: %w", err)
	}
	if cfg.MaxPixels <= 0 {
		return nil, fmt.Errorf("MM_MAX_PIXELS: значение должно быть положительным")
	}

	// MM_WORKERS — 0 означает GOMAXPROCS
	cfg.Workers, err = getEnvInt("MM_WORKERS", 0)
	if err != nil {
		return nil, fmt.Errorf("MM_WORKERS: %w", err)
	}
	if cfg.Workers < 0 {
		return nil, fmt.Errorf("MM_WORKERS: значение не может быть отрицательным")
	}
	if cfg.Workers == 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}

	// MM_PROCESS_TIMEOUT — таймаут обработки (по умолчанию 60s)
	cfg.ProcessTimeout, err = getEnvDuration("MM_PROCESS_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("MM_PROCESS_TIMEOUT: %w", err)
	}

	// MM_OBJECT_STORE — fs (по умолчанию) или s3
	cfg.ObjectStore = getEnvDefault("MM_OBJECT_STORE", ObjectStoreFS)
	switch cfg.ObjectStore {
	case ObjectStoreFS:
		cfg.DataDir, err = getEnvRequired("MM_DATA_DIR")
		if err != nil {
			return nil, err
		}
	case ObjectStoreS3:
		cfg.S3Bucket, err = getEnvRequired("MM_S3_BUCKET")
		if err != nil {
			return nil, err
		}
		cfg.S3Region = getEnvDefault("MM_S3_REGION", "us-east-1")
		cfg.S3Endpoint = getEnvDefault("MM_S3_ENDPOINT", "")
		cfg.S3AccessKeyID = getEnvDefault("MM_S3_ACCESS_KEY_ID", "")
		cfg.S3SecretAccessKey = getEnvDefault("MM_S3_SECRET_ACCESS_KEY", "")
		if (cfg.S3AccessKeyID == "") != (cfg.S3SecretAccessKey == "") {
			return nil, fmt.Errorf("MM_S3_ACCESS_KEY_ID и MM_S3_SECRET_ACCESS_KEY задаются вместе")
		}
		cfg.S3PublicURL = getEnvDefault("MM_S3_PUBLIC_URL", "")
	default:
		return nil, fmt.Errorf("MM_OBJECT_STORE: недопустимое значение %q, допустимые: fs, s3", cfg.ObjectStore)
	}

	// MM_WAL_DIR — обязательный
	cfg.WALDir, err = getEnvRequired("MM_WAL_DIR")
	if err != nil {
		return nil, err
	}

	// MM_METADATA_STORE — memory (по умолчанию), file или postgres
	cfg.MetadataStore = getEnvDefault("MM_METADATA_STORE", MetadataStoreMemory)
	switch cfg.MetadataStore {
	case MetadataStoreMemory:
	case MetadataStoreFile:
		cfg.RecordsDir, err = getEnvRequired("MM_RECORDS_DIR")
		if err != nil {
			return nil, err
		}
	case MetadataStorePostgres:
		if err := loadDatabase(cfg); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("MM_METADATA_STORE: недопустимое значение %q, допустимые: memory, file, postgres", cfg.MetadataStore)
	}

	// MM_CACHE_SIZE — размер LRU-кэша записей (по умолчанию 1000, 0 — без кэша)
	cfg.CacheSize, err = getEnvInt("MM_CACHE_SIZE", 1000)
	if err != nil {
		return nil, fmt.Errorf("MM_CACHE_SIZE: %w", err)
	}
	if cfg.CacheSize < 0 {
		return nil, fmt.Errorf("MM_CACHE_SIZE: значение не может быть отрицательным")
	}

	// MM_CACHE_TTL — время жизни записи в кэше (по умолчанию 5m)
	cfg.CacheTTL, err = getEnvDuration("MM_CACHE_TTL", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("MM_CACHE_TTL: %w", err)
	}

	// MM_JWKS_URL — опциональный
	cfg.JWKSUrl = getEnvDefault("MM_JWKS_URL", "")
	cfg.JWKSCACert = getEnvDefault("MM_JWKS_CA_CERT", "")

	// MM_JWT_LEEWAY — допуск проверки времени токена (по умолчанию 5s)
	cfg.JWTLeeway, err = getEnvDuration("MM_JWT_LEEWAY", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("MM_JWT_LEEWAY: %w", err)
	}

	// MM_TLS_CERT / MM_TLS_KEY — задаются вместе
	cfg.TLSCert = getEnvDefault("MM_TLS_CERT", "")
	cfg.TLSKey = getEnvDefault("MM_TLS_KEY", "")
	if (cfg.TLSCert == "") != (cfg.TLSKey == "") {
		return nil, fmt.Errorf("MM_TLS_CERT и MM_TLS_KEY задаются вместе")
	}

	// MM_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("MM_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("MM_LOG_LEVEL: %w", err)
	}

	// MM_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("MM_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("MM_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// MM_JOURNAL_INTERVAL — интервал обработки журнала (по умолчанию 10m)
	cfg.JournalInterval, err = getEnvDuration("MM_JOURNAL_INTERVAL", 10*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("MM_JOURNAL_INTERVAL: %w", err)
	}

	// MM_JOURNAL_PENDING_TTL — возраст зависшей транзакции (по умолчанию 15m).
	// Должен превышать MM_PROCESS_TIMEOUT, иначе откатываются живые публикации.
	cfg.JournalPendingTTL, err = getEnvDuration("MM_JOURNAL_PENDING_TTL", 15*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("MM_JOURNAL_PENDING_TTL: %w", err)
	}
	if cfg.JournalPendingTTL <= cfg.ProcessTimeout {
		return nil, fmt.Errorf("MM_JOURNAL_PENDING_TTL: значение %s должно быть больше MM_PROCESS_TIMEOUT (%s)",
			cfg.JournalPendingTTL, cfg.ProcessTimeout)
	}

	// MM_EXPIRY_INTERVAL — интервал удаления просроченных изображений (по умолчанию 1m)
	cfg.ExpiryInterval, err = getEnvDuration("MM_EXPIRY_INTERVAL", time.Minute)
	if err != nil {
		return nil, fmt.Errorf("MM_EXPIRY_INTERVAL: %w", err)
	}

	// MM_DEPHEALTH_CHECK_INTERVAL — интервал проверки зависимостей (по умолчанию 15s)
	cfg.DephealthCheckInterval, err = getEnvDuration("MM_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("MM_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	// MM_DEPHEALTH_GROUP — имя группы в метриках topologymetrics (по умолчанию "media-module")
	cfg.DephealthGroup = getEnvDefault("MM_DEPHEALTH_GROUP", "media-module")

	// DEPHEALTH_NAME — имя владельца пода для метки name в topologymetrics
	cfg.DephealthName = getEnvDefault("DEPHEALTH_NAME", "")

	// MM_SHUTDOWN_TIMEOUT — таймаут graceful shutdown (по умолчанию 10s)
	cfg.ShutdownTimeout, err = getEnvDuration("MM_SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("MM_SHUTDOWN_TIMEOUT: %w", err)
	}

	return cfg, nil
}

// loadDatabase читает параметры PostgreSQL.
func loadDatabase(cfg *Config) error {
	var err error

	cfg.DBHost = getEnvDefault("MM_DB_HOST", "localhost")
	cfg.DBPort, err = getEnvInt("MM_DB_PORT", 5432)
	if err != nil {
		return fmt.Errorf("MM_DB_PORT: %w", err)
	}
	cfg.DBName = getEnvDefault("MM_DB_NAME", "media")
	cfg.DBUser, err = getEnvRequired("MM_DB_USER")
	if err != nil {
		return err
	}
	cfg.DBPassword, err = getEnvRequired("MM_DB_PASSWORD")
	if err != nil {
		return err
	}
	cfg.DBSSLMode = getEnvDefault("MM_DB_SSL_MODE", "disable")
	return nil
}

// DatabaseDSN возвращает строку подключения к PostgreSQL.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode,
	)
}

// DatabaseURL возвращает адрес PostgreSQL без учётных данных
// (для меток topologymetrics).
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%d/%s", c.DBHost, c.DBPort, c.DBName)
}

// TLSEnabled возвращает true, если заданы сертификат и ключ.
func (c *Config) TLSEnabled() bool {
	return c.TLSCert != "" && c.TLSKey != ""
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

func getEnvInt64(key string, defaultVal int64) (int64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvBytes разбирает размер в байтах (go-humanize: 1048576, 512KiB, 10MB).
func getEnvBytes(key string, defaultVal int64) (int64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := humanize.ParseBytes(val)
	if err != nil {
		return 0, fmt.Errorf("некорректный размер: %q (например 1048576, 16MiB)", val)
	}
	if n > uint64(1<<62) {
		return 0, fmt.Errorf("размер вне допустимого диапазона: %q", val)
	}
	return int64(n), nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 6h)", val)
	}
	if d <= 0 {
		return 0, fmt.Errorf("длительность должна быть положительной: %q", val)
	}
	return d, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}
