package attr

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bigkaa/goartstore/media-module/internal/domain/model"
	"github.com/bigkaa/goartstore/media-module/internal/repository"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// testRecord создаёт тестовую запись.
func testRecord(id string) *model.ImageRecord {
	expiresAt := time.Now().UTC().Add(30 * time.Minute).Truncate(time.Second)
	md := model.EmptyMetadata()
	md.Palette = []string{"#102030"}
	md.DominantColor = "#102030"
	md.QualityScore = 75
	md.Tags = model.TagBag{"Make": model.StringTag("Nikon"), "ISO": model.NumberTag(200)}

	return &model.ImageRecord{
		ID:               id,
		OwnerID:          "owner",
		URL:              "https://cdn/" + id + ".jpg",
		ObjectKey:        "2026/03/01/" + id + ".jpg",
		Width:            640,
		Height:           480,
		Size:             2048,
		ContentType:      "image/jpeg",
		OriginalFilename: "test-photo.jpg",
		MimeType:         "image/jpeg",
		Visibility:       model.VisibilityPrivate,
		ExpiresAt:        &expiresAt,
		CreatedAt:        time.Now().UTC().Truncate(time.Second),
		Tags:             []string{"test", "photo"},
		Metadata:         md,
	}
}

// TestWriteAndRead проверяет запись и чтение файла записи.
func TestWriteAndRead(t *testing.T) {
	dir := t.TempDir()
	rec := testRecord("img-1")
	path := RecordFilePath(dir, rec.ID)

	if err := Write(path, rec); err != nil {
		t.Fatalf("ошибка записи: %v", err)
	}
	if !IsRecordFile(path) {
		t.Errorf("%s должен распознаваться как файл записи", path)
	}

	got, err := Read(path)
	if err != nil {
		t.Fatalf("ошибка чтения: %v", err)
	}
	if got.ID != rec.ID || got.Visibility != model.VisibilityPrivate {
		t.Errorf("поля: %+v", got)
	}
	if got.ExpiresAt == nil || !got.ExpiresAt.Equal(*rec.ExpiresAt) {
		t.Errorf("ExpiresAt: ожидалось %v, получено %v", rec.ExpiresAt, got.ExpiresAt)
	}
	if n, ok := got.Metadata.Tags["ISO"].Number(); !ok || n != 200 {
		t.Errorf("тег ISO: %v", got.Metadata.Tags["ISO"])
	}

	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("временный файл не удалён")
	}
}

// TestWrite_TooLarge проверяет ограничение размера файла записи.
func TestWrite_TooLarge(t *testing.T) {
	rec := testRecord("big")
	rec.Tags = []string{strings.Repeat("x", maxRecordFileSize)}

	if err := Write(filepath.Join(t.TempDir(), "big"+RecordSuffix), rec); err == nil {
		t.Fatal("ожидалась ошибка превышения размера")
	}
}

// TestScanDir_SkipsInvalid проверяет пропуск повреждённых файлов.
func TestScanDir_SkipsInvalid(t *testing.T) {
	dir := t.TempDir()
	_ = Write(RecordFilePath(dir, "good"), testRecord("good"))
	_ = os.WriteFile(RecordFilePath(dir, "bad"), []byte("{не json"), 0o640)
	_ = os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0o640)

	recs, err := ScanDir(dir, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 || recs[0].ID != "good" {
		t.Errorf("ожидалась одна запись good, получено %v", recs)
	}
}

// TestStore_Lifecycle проверяет операции хранилища и пересборку индекса.
func TestStore_Lifecycle(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := Open(dir, testLogger())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := store.Insert(ctx, testRecord("img-1")); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := store.Insert(ctx, testRecord("img-2")); err != nil {
		t.Fatal(err)
	}
	if err := store.Insert(ctx, testRecord("img-1")); !errors.Is(err, repository.ErrConflict) {
		t.Errorf("дубликат: ожидалась ErrConflict, получено %v", err)
	}
	if err := store.IncrementViews(ctx, "img-1"); err != nil {
		t.Fatalf("IncrementViews: %v", err)
	}
	if err := store.Delete(ctx, "img-2"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := os.Stat(RecordFilePath(dir, "img-2")); !os.IsNotExist(err) {
		t.Error("файл удалённой записи должен отсутствовать")
	}

	// рестарт: индекс строится из файлов
	reopened, err := Open(dir, testLogger())
	if err != nil {
		t.Fatalf("повторный Open: %v", err)
	}
	if reopened.Count() != 1 {
		t.Fatalf("ожидалась 1 запись после рестарта, получено %d", reopened.Count())
	}
	got, err := reopened.GetByID(ctx, "img-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Views != 1 {
		t.Errorf("Views после рестарта: ожидалось 1, получено %d", got.Views)
	}

	page, total, _ := reopened.ListByOwner(ctx, "owner", 10, 0)
	if total != 1 || len(page) != 1 {
		t.Errorf("ListByOwner: total=%d len=%d", total, len(page))
	}
	if err := reopened.Ping(ctx); err != nil {
		t.Errorf("Ping: %v", err)
	}
}

// TestStore_InvalidID проверяет отказ для идентификаторов с разделителями пути.
func TestStore_InvalidID(t *testing.T) {
	store, err := Open(t.TempDir(), testLogger())
	if err != nil {
		t.Fatal(err)
	}
	for _, id := range []string{"", "..", "a/b", `a\b`} {
		if err := store.Insert(context.Background(), testRecord(id)); !errors.Is(err, ErrInvalidID) {
			t.Errorf("id %q: ожидалась ErrInvalidID, получено %v", id, err)
		}
	}
}
