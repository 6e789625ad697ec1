package wal

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

// testLogger возвращает логгер для тестов (вывод подавляется).
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

func newTestWAL(t *testing.T) *WAL {
	t.Helper()
	w, err := New(t.TempDir(), testLogger())
	if err != nil {
		t.Fatalf("ошибка создания WAL: %v", err)
	}
	return w
}

// TestNew_CreatesDirectory проверяет, что New создаёт директорию WAL.
func TestNew_CreatesDirectory(t *testing.T) {
	walDir := filepath.Join(t.TempDir(), "wal")

	w, err := New(walDir, testLogger())
	if err != nil {
		t.Fatalf("ожидалось успешное создание WAL, получена ошибка: %v", err)
	}
	if w.Dir() != walDir {
		t.Errorf("ожидался путь %s, получен %s", walDir, w.Dir())
	}
	if info, err := os.Stat(walDir); err != nil || !info.IsDir() {
		t.Fatalf("директория WAL не создана: %v", err)
	}
}

// TestStartTransaction проверяет создание транзакции публикации.
func TestStartTransaction(t *testing.T) {
	w := newTestWAL(t)
	keys := []string{"2026/03/01/img.jpg", "2026/03/01/img_thumb.jpg"}

	entry, err := w.StartTransaction(OpPublish, "img", keys)
	if err != nil {
		t.Fatalf("ошибка создания транзакции: %v", err)
	}

	if entry.TransactionID == "" {
		t.Error("TransactionID не должен быть пустым")
	}
	if entry.Status != StatusPending {
		t.Errorf("ожидался статус %s, получен %s", StatusPending, entry.Status)
	}
	if entry.ImageID != "img" {
		t.Errorf("ожидался ImageID 'img', получен %q", entry.ImageID)
	}
	if entry.CompletedAt != nil {
		t.Error("CompletedAt должен быть nil для pending")
	}

	keys[0] = "изменено"
	stored, err := w.readEntry(entry.TransactionID)
	if err != nil {
		t.Fatalf("ошибка чтения: %v", err)
	}
	if len(stored.ObjectKeys) != 2 || stored.ObjectKeys[0] != "2026/03/01/img.jpg" {
		t.Errorf("ObjectKeys: получено %v", stored.ObjectKeys)
	}
}

// TestCommitAndRollback проверяет завершение транзакций.
func TestCommitAndRollback(t *testing.T) {
	w := newTestWAL(t)

	committed, _ := w.StartTransaction(OpPublish, "a", []string{"a.jpg"})
	rolled, _ := w.StartTransaction(OpPublish, "b", []string{"b.jpg"})

	if err := w.Commit(committed.TransactionID); err != nil {
		t.Fatalf("ошибка коммита: %v", err)
	}
	if err := w.Rollback(rolled.TransactionID); err != nil {
		t.Fatalf("ошибка отката: %v", err)
	}

	got, _ := w.readEntry(committed.TransactionID)
	if got.Status != StatusCommitted || got.CompletedAt == nil {
		t.Errorf("ожидался committed с CompletedAt, получено %s", got.Status)
	}
	got, _ = w.readEntry(rolled.TransactionID)
	if got.Status != StatusRolledBack {
		t.Errorf("ожидался rolled_back, получено %s", got.Status)
	}
}

// TestCommit_NotPending проверяет, что повторное завершение запрещено.
func TestCommit_NotPending(t *testing.T) {
	w := newTestWAL(t)
	entry, _ := w.StartTransaction(OpDiscard, "x", []string{"x.jpg"})

	if err := w.Commit(entry.TransactionID); err != nil {
		t.Fatalf("ошибка коммита: %v", err)
	}
	if err := w.Rollback(entry.TransactionID); !errors.Is(err, ErrNotPending) {
		t.Errorf("ожидалась ErrNotPending, получено %v", err)
	}
	if err := w.Commit("нет-такой"); err == nil {
		t.Error("ожидалась ошибка для несуществующей транзакции")
	}
}

// TestRecoverPending проверяет восстановление незавершённых транзакций.
func TestRecoverPending(t *testing.T) {
	w := newTestWAL(t)

	first, _ := w.StartTransaction(OpPublish, "1", []string{"1.jpg"})
	done, _ := w.StartTransaction(OpPublish, "2", []string{"2.jpg"})
	second, _ := w.StartTransaction(OpPublish, "3", []string{"3.jpg"})
	_ = w.Commit(done.TransactionID)

	// повреждённая запись пропускается
	if err := os.WriteFile(filepath.Join(w.Dir(), "broken.wal.json"), []byte("{"), 0o640); err != nil {
		t.Fatal(err)
	}

	pending, err := w.RecoverPending()
	if err != nil {
		t.Fatalf("RecoverPending: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("ожидалось 2 pending, получено %d", len(pending))
	}
	ids := map[string]bool{pending[0].TransactionID: true, pending[1].TransactionID: true}
	if !ids[first.TransactionID] || !ids[second.TransactionID] {
		t.Errorf("ожидались транзакции 1 и 3, получено %v", ids)
	}
	if pending[0].StartedAt.After(pending[1].StartedAt) {
		t.Error("pending должны быть отсортированы по времени начала")
	}
}

// TestCleanCommitted проверяет удаление завершённых записей.
func TestCleanCommitted(t *testing.T) {
	w := newTestWAL(t)

	for i := 0; i < 3; i++ {
		e, _ := w.StartTransaction(OpPublish, "c", nil)
		_ = w.Commit(e.TransactionID)
	}
	rb, _ := w.StartTransaction(OpPublish, "r", nil)
	_ = w.Rollback(rb.TransactionID)
	pending, _ := w.StartTransaction(OpPublish, "p", nil)

	cleaned, err := w.CleanCommitted()
	if err != nil {
		t.Fatalf("CleanCommitted: %v", err)
	}
	if cleaned != 4 {
		t.Errorf("ожидалось удаление 4 записей, удалено %d", cleaned)
	}
	if _, err := w.readEntry(pending.TransactionID); err != nil {
		t.Errorf("pending запись не должна удаляться: %v", err)
	}
}

// TestConcurrentTransactions проверяет потокобезопасность.
func TestConcurrentTransactions(t *testing.T) {
	w := newTestWAL(t)

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e, err := w.StartTransaction(OpPublish, "img", []string{"k"})
			if err != nil {
				errs <- err
				return
			}
			if err := w.Commit(e.TransactionID); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("ошибка в горутине: %v", err)
	}

	pending, _ := w.RecoverPending()
	if len(pending) != 0 {
		t.Errorf("ожидалось 0 pending, получено %d", len(pending))
	}
}
