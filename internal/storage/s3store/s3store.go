// Пакет s3store — объектное хранилище артефактов в S3-совместимом бакете
// (AWS S3, MinIO). Ретраи выполняет SDK, не пайплайн.
package s3store

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Config — параметры подключения к бакету.
type Config struct {
	Bucket string
	Region string
	// Endpoint — адрес S3-совместимого сервиса (MinIO). Пустой — AWS.
	// При заданном Endpoint используется path-style адресация.
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	// PublicURL — базовый публичный адрес объектов (CDN, прокси).
	// Пустой — адрес вычисляется из Endpoint/Region.
	PublicURL string
	// MaxAttempts — число попыток SDK (0 — значение SDK по умолчанию)
	MaxAttempts int
}

// Store — объектное хранилище в S3.
type Store struct {
	client    *s3.Client
	bucket    string
	publicURL string
}

// New создаёт клиент S3.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3: не задан бакет")
	}

	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("s3: не удалось загрузить конфигурацию AWS: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
		if cfg.MaxAttempts > 0 {
			o.RetryMaxAttempts = cfg.MaxAttempts
		}
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
	})

	return &Store{
		client:    client,
		bucket:    cfg.Bucket,
		publicURL: publicBase(cfg),
	}, nil
}

// Put загружает объект и возвращает его публичный адрес.
func (s *Store) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
		CacheControl:  aws.String("public, max-age=31536000, immutable"),
	})
	if err != nil {
		return "", fmt.Errorf("s3: не удалось загрузить объект %s: %w", key, err)
	}
	return s.URL(key), nil
}

// Delete удаляет объект. S3 не возвращает ошибку для отсутствующего ключа.
func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("s3: не удалось удалить объект %s: %w", key, err)
	}
	return nil
}

// Ping проверяет доступность бакета (readiness).
func (s *Store) Ping(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err != nil {
		return fmt.Errorf("s3: бакет %s недоступен: %w", s.bucket, err)
	}
	return nil
}

// URL возвращает публичный адрес объекта.
func (s *Store) URL(key string) string {
	return s.publicURL + "/" + key
}

func publicBase(cfg Config) string {
	switch {
	case cfg.PublicURL != "":
		return strings.TrimRight(cfg.PublicURL, "/")
	case cfg.Endpoint != "":
		return strings.TrimRight(cfg.Endpoint, "/") + "/" + cfg.Bucket
	default:
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
	}
}
