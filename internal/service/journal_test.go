package service

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bigkaa/goartstore/media-module/internal/domain/model"
	"github.com/bigkaa/goartstore/media-module/internal/storage/filestore"
	"github.com/bigkaa/goartstore/media-module/internal/storage/index"
	"github.com/bigkaa/goartstore/media-module/internal/storage/wal"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

type journalEnv struct {
	wal     *wal.WAL
	objects *filestore.FileStore
	records *index.Index
	svc     *JournalService
}

// setupJournalEnv создаёт WAL, файловое хранилище и индекс во временных директориях.
func setupJournalEnv(t *testing.T) *journalEnv {
	t.Helper()

	w, err := wal.New(t.TempDir(), testLogger())
	if err != nil {
		t.Fatalf("Ошибка создания WAL: %v", err)
	}
	objects, err := filestore.New(t.TempDir(), "http://localhost:8030")
	if err != nil {
		t.Fatalf("Ошибка создания FileStore: %v", err)
	}
	records := index.New(testLogger())

	return &journalEnv{
		wal:     w,
		objects: objects,
		records: records,
		svc:     NewJournalService(w, objects, records, time.Hour, 15*time.Minute, testLogger()),
	}
}

// putObjects сохраняет объекты и открывает для них pending-транзакцию.
func (e *journalEnv) putObjects(t *testing.T, op wal.OperationType, imageID string, keys ...string) *wal.Entry {
	t.Helper()
	for _, key := range keys {
		if _, err := e.objects.Put(context.Background(), key, []byte("data"), "image/jpeg"); err != nil {
			t.Fatalf("Put %s: %v", key, err)
		}
	}
	entry, err := e.wal.StartTransaction(op, imageID, keys)
	if err != nil {
		t.Fatalf("StartTransaction: %v", err)
	}
	return entry
}

func TestJournalRunOnce_Empty(t *testing.T) {
	env := setupJournalEnv(t)

	result := env.svc.RunOnce(context.Background())
	if result.RolledBack != 0 || result.Errors != 0 || result.Cleaned != 0 {
		t.Errorf("пустой журнал: %+v", result)
	}
}

func TestJournalRunOnce_SkipsFreshPending(t *testing.T) {
	env := setupJournalEnv(t)
	env.putObjects(t, wal.OpPublish, "img-1", "2026/03/01/img-1.jpg")

	result := env.svc.RunOnce(context.Background())
	if result.Skipped != 1 || result.RolledBack != 0 {
		t.Errorf("ожидался пропуск свежей транзакции: %+v", result)
	}
	if !env.objects.Exists("2026/03/01/img-1.jpg") {
		t.Error("объект свежей транзакции не должен удаляться")
	}
}

func TestJournalRunOnce_RollsBackStalePublish(t *testing.T) {
	env := setupJournalEnv(t)
	keys := []string{"2026/03/01/img-1.jpg", "2026/03/01/img-1_thumb.jpg"}
	entry := env.putObjects(t, wal.OpPublish, "img-1", keys...)

	env.svc.now = func() time.Time { return time.Now().Add(time.Hour) }
	result := env.svc.RunOnce(context.Background())

	if result.RolledBack != 1 {
		t.Fatalf("RolledBack: ожидалось 1, получено %d (%+v)", result.RolledBack, result)
	}
	for _, key := range keys {
		if env.objects.Exists(key) {
			t.Errorf("объект-сирота %s должен быть удалён", key)
		}
	}
	// завершённая запись удаляется в том же проходе
	if _, err := os.Stat(filepath.Join(env.wal.Dir(), entry.TransactionID+".wal.json")); !os.IsNotExist(err) {
		t.Error("файл откаченной транзакции должен быть удалён")
	}
}

func TestJournalRecover_CommitsPublishWithRecord(t *testing.T) {
	env := setupJournalEnv(t)
	keys := []string{"2026/03/01/img-1.jpg", "2026/03/01/img-1_thumb.jpg"}
	env.putObjects(t, wal.OpPublish, "img-1", keys...)
	_ = env.records.Insert(context.Background(), &model.ImageRecord{
		ID:           "img-1",
		OwnerID:      "owner",
		ObjectKey:    keys[0],
		ThumbnailKey: keys[1],
		Metadata:     model.EmptyMetadata(),
	})

	result := env.svc.Recover(context.Background())
	if result.Committed != 1 || result.RolledBack != 0 {
		t.Fatalf("ожидалась фиксация публикации: %+v", result)
	}
	for _, key := range keys {
		if !env.objects.Exists(key) {
			t.Errorf("объект живой записи %s должен сохраниться", key)
		}
	}
}

func TestJournalRecover_RetriesDiscard(t *testing.T) {
	env := setupJournalEnv(t)
	env.putObjects(t, wal.OpDiscard, "img-2", "2026/03/01/img-2.jpg")

	result := env.svc.Recover(context.Background())
	if result.RolledBack != 1 {
		t.Fatalf("RolledBack: ожидалось 1, получено %+v", result)
	}
	if env.objects.Exists("2026/03/01/img-2.jpg") {
		t.Error("объект незавершённого удаления должен быть удалён")
	}

	pending, _ := env.wal.RecoverPending()
	if len(pending) != 0 {
		t.Errorf("pending-транзакций не должно остаться, получено %d", len(pending))
	}
}

func TestJournalStartStop(t *testing.T) {
	env := setupJournalEnv(t)
	env.svc.interval = 10 * time.Millisecond

	env.svc.Start(context.Background())
	time.Sleep(30 * time.Millisecond)
	env.svc.Stop()
	// повторный Stop не блокирует
	env.svc.Stop()
}
