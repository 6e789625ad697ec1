package database

import (
	"testing"

	"github.com/bigkaa/goartstore/media-module/internal/config"
)

// TestMigrateURL проверяет экранирование учётных данных в URL миграций.
func TestMigrateURL(t *testing.T) {
	cfg := &config.Config{
		DBHost:     "db",
		DBPort:     5432,
		DBName:     "media",
		DBUser:     "media",
		DBPassword: "p@ss/word",
		DBSSLMode:  "disable",
	}

	want := "pgx5://media:p%40ss%2Fword@db:5432/media?sslmode=disable&x-migrations-table=mm_schema_migrations"
	if got := migrateURL(cfg); got != want {
		t.Errorf("ожидалось %q, получено %q", want, got)
	}
}

func TestPoolSize(t *testing.T) {
	tests := []struct {
		workers int
		want    int32
	}{
		{0, 4},
		{1, 4},
		{4, 10},
		{16, 34},
	}
	for _, tt := range tests {
		if got := poolSize(tt.workers); got != tt.want {
			t.Errorf("poolSize(%d): ожидалось %d, получено %d", tt.workers, tt.want, got)
		}
	}
}

// TestMigrationsEmbedded проверяет, что миграции встроены в бинарник.
func TestMigrationsEmbedded(t *testing.T) {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) < 2 {
		t.Fatalf("ожидалось не менее 2 файлов миграций, получено %d", len(entries))
	}
	if entries[0].Name() != "001_create_images.down.sql" {
		t.Errorf("первая миграция: получено %q", entries[0].Name())
	}
}
