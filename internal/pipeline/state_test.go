package pipeline

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bigkaa/goartstore/media-module/internal/media"
)

var forwardStates = []State{
	StateValidated,
	StateDecoded,
	StateTransformed,
	StateMetadataExtracted,
	StatePublished,
	StateAssembled,
}

// TestTracker_ForwardPath проверяет полный прямой путь.
func TestTracker_ForwardPath(t *testing.T) {
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	tr := NewTracker(func() time.Time { return at })

	if tr.Current() != StateReceived {
		t.Fatalf("начальное состояние: получено %q", tr.Current())
	}
	for _, s := range forwardStates {
		if err := tr.Advance(s); err != nil {
			t.Fatalf("Advance(%s): %v", s, err)
		}
	}
	if !tr.Terminal() {
		t.Error("Assembled должно быть терминальным")
	}

	hist := tr.History()
	if len(hist) != len(forwardStates) {
		t.Fatalf("история: ожидалось %d записей, получено %d", len(forwardStates), len(hist))
	}
	if hist[0].From != StateReceived || !hist[0].At.Equal(at) {
		t.Errorf("первая запись: %+v", hist[0])
	}
}

// TestTracker_NoSkipping проверяет запрет пропуска стадий.
func TestTracker_NoSkipping(t *testing.T) {
	tr := NewTracker(nil)

	err := tr.Advance(StateDecoded)
	var te *TransitionError
	if !errors.As(err, &te) {
		t.Fatalf("ожидалась TransitionError, получено %v", err)
	}
	if te.From != StateReceived || te.To != StateDecoded {
		t.Errorf("TransitionError: %+v", te)
	}
	if tr.Current() != StateReceived {
		t.Errorf("состояние не должно измениться, получено %q", tr.Current())
	}
}

// TestTracker_FailIsTerminal проверяет, что из Failed переходов нет.
func TestTracker_FailIsTerminal(t *testing.T) {
	tr := NewTracker(nil)
	_ = tr.Advance(StateValidated)

	if err := tr.Fail(media.KindDecode); err != nil {
		t.Fatalf("Fail: %v", err)
	}
	kind, failed := tr.FailKind()
	if !failed || kind != media.KindDecode {
		t.Errorf("FailKind: получено %q, %v", kind, failed)
	}

	if err := tr.Advance(StateDecoded); err == nil {
		t.Error("переход из Failed должен быть запрещён")
	}
	if err := tr.Fail(media.KindPublish); err == nil {
		t.Error("повторный Fail должен быть запрещён")
	}
}

// TestTracker_AssembledCannotFail проверяет, что Assembled — конечное состояние.
func TestTracker_AssembledCannotFail(t *testing.T) {
	tr := NewTracker(nil)
	for _, s := range forwardStates {
		_ = tr.Advance(s)
	}
	if err := tr.Fail(media.KindPublish); err == nil {
		t.Error("Fail из Assembled должен быть запрещён")
	}
	if _, failed := tr.FailKind(); failed {
		t.Error("Assembled не является Failed")
	}
}

// TestTracker_ConcurrentReads проверяет потокобезопасность чтения.
func TestTracker_ConcurrentReads(t *testing.T) {
	tr := NewTracker(nil)
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = tr.Current()
				_ = tr.History()
			}
		}()
	}
	for _, s := range forwardStates {
		_ = tr.Advance(s)
	}
	wg.Wait()
}
