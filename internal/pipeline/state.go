package pipeline

import (
	"fmt"
	"sync"
	"time"

	"github.com/bigkaa/goartstore/media-module/internal/media"
)

// State — состояние одного вызова пайплайна.
type State string

const (
	StateReceived          State = "received"
	StateValidated         State = "validated"
	StateDecoded           State = "decoded"
	StateTransformed       State = "transformed"
	StateMetadataExtracted State = "metadata_extracted"
	StatePublished         State = "published"
	StateAssembled         State = "assembled"
	// StateFailed — терминальное состояние ошибки, вид ошибки в Tracker.FailKind
	StateFailed State = "failed"
)

// validTransitions — прямой порядок стадий. Переход в Failed допустим
// из любого нетерминального состояния и проверяется отдельно.
var validTransitions = map[State]State{
	StateReceived:          StateValidated,
	StateValidated:         StateDecoded,
	StateDecoded:           StateTransformed,
	StateTransformed:       StateMetadataExtracted,
	StateMetadataExtracted: StatePublished,
	StatePublished:         StateAssembled,
}

// TransitionRecord — запись о переходе между состояниями.
type TransitionRecord struct {
	From State     `json:"from"`
	To   State     `json:"to"`
	At   time.Time `json:"at"`
}

// Tracker — конечный автомат состояний вызова.
// Потокобезопасен.
type Tracker struct {
	mu       sync.RWMutex
	current  State
	failKind media.Kind
	history  []TransitionRecord
	now      func() time.Time
}

// NewTracker создаёт автомат в состоянии Received.
func NewTracker(now func() time.Time) *Tracker {
	if now == nil {
		now = time.Now
	}
	return &Tracker{
		current: StateReceived,
		history: make([]TransitionRecord, 0, len(validTransitions)),
		now:     now,
	}
}

// Current возвращает текущее состояние.
func (t *Tracker) Current() State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.current
}

// FailKind возвращает вид ошибки для состояния Failed.
func (t *Tracker) FailKind() (media.Kind, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.failKind, t.current == StateFailed
}

// Terminal проверяет, что автомат в конечном состоянии (Assembled или Failed).
func (t *Tracker) Terminal() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return isTerminal(t.current)
}

// Advance переводит автомат в следующее состояние target.
// Пропуск стадий и переходы из терминальных состояний запрещены.
func (t *Tracker) Advance(target State) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	next, ok := validTransitions[t.current]
	if !ok || next != target {
		return &TransitionError{From: t.current, To: target}
	}
	t.record(target)
	return nil
}

// Fail переводит автомат в Failed(kind).
func (t *Tracker) Fail(kind media.Kind) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if isTerminal(t.current) {
		return &TransitionError{From: t.current, To: StateFailed}
	}
	t.failKind = kind
	t.record(StateFailed)
	return nil
}

// History возвращает историю переходов (копия).
func (t *Tracker) History() []TransitionRecord {
	t.mu.RLock()
	defer t.mu.RUnlock()

	result := make([]TransitionRecord, len(t.history))
	copy(result, t.history)
	return result
}

func (t *Tracker) record(target State) {
	t.history = append(t.history, TransitionRecord{
		From: t.current,
		To:   target,
		At:   t.now().UTC(),
	})
	t.current = target
}

func isTerminal(s State) bool {
	return s == StateAssembled || s == StateFailed
}

// TransitionError — недопустимый переход между состояниями.
type TransitionError struct {
	From State
	To   State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("INVALID_TRANSITION: переход %s → %s недопустим", e.From, e.To)
}
