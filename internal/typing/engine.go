// Package typing implements the client-local typing engine: one session's
// text buffer, cursor and derived live metrics.
package typing

import (
	"context"
	"math"
	"sync"
	"time"
	"unicode"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/Harsha2k4/typing-racer-prod-bots/internal/constants"
)

// Metrics are derived from the raw session counters on every read. They are
// never stored, so they cannot drift from the counters they come from.
type Metrics struct {
	WPM      int `json:"wpm"`
	Accuracy int `json:"accuracy"`
	Progress int `json:"progress"`
}

// Engine owns a single typing session. Keystroke handling never blocks;
// passage refills run in the background and re-enter through ApplyRefill.
type Engine struct {
	provider TextProvider
	clock    clockwork.Clock

	mu      sync.Mutex
	text    []rune
	cursor  int
	typed   int
	correct int

	startedAt time.Time
	started   bool
	paused    bool

	// generation distinguishes sessions so that a refill response issued
	// against an older session can never touch a newer one.
	generation     uint64
	refillInFlight bool
	refillWords    int
	lowWater       int
}

// NewEngine returns an engine fetching passages from provider.
func NewEngine(provider TextProvider, clock clockwork.Clock) *Engine {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Engine{
		provider:    provider,
		clock:       clock,
		refillWords: constants.RefillPassageWords,
		lowWater:    constants.RefillLowWater,
	}
}

// StartNew discards any current session and begins a fresh one with a newly
// fetched passage. Fetch failure is absorbed by the fallback passage, so the
// session always starts.
func (e *Engine) StartNew(ctx context.Context, words int) {
	e.StartWithText(Fetch(ctx, e.provider, words))
}

// StartWithText begins a fresh session over a passage obtained elsewhere,
// such as one the coordinator pushed over the race socket.
func (e *Engine) StartWithText(text string) {
	if text == "" {
		text = FallbackText
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.generation++
	e.text = []rune(text)
	e.cursor = 0
	e.typed = 0
	e.correct = 0
	e.startedAt = e.clock.Now()
	e.started = true
	e.paused = false
	e.refillInFlight = false
}

// PauseToggle flips the paused state. Keystrokes while paused are accepted
// and dropped, not buffered.
func (e *Engine) PauseToggle() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.paused = !e.paused
}

// Paused reports whether the session is paused.
func (e *Engine) Paused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.paused
}

// Text returns the current passage.
func (e *Engine) Text() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return string(e.text)
}

// Cursor returns the index of the next expected character.
func (e *Engine) Cursor() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cursor
}

// Counters returns the raw typed/correct counts.
func (e *Engine) Counters() (typed, correct int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.typed, e.correct
}

// Generation returns the current session generation tag.
func (e *Engine) Generation() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.generation
}

// SetText replaces the passage without resetting counters. Used when the
// coordinator pushes the initial passage over the socket.
func (e *Engine) SetText(text string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.text = []rune(text)
	if e.cursor > len(e.text) {
		e.cursor = len(e.text)
	}
}

// HandleKeyPress feeds one keystroke into the session. It accepts a printable
// rune or a space; anything else (control keys, composed input) is rejected
// without touching state. Returns true when the keystroke mutated the session.
func (e *Engine) HandleKeyPress(ctx context.Context, r rune) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.started || e.paused {
		return false
	}
	if e.cursor >= len(e.text) {
		return false
	}
	if r != ' ' && !unicode.IsPrint(r) {
		return false
	}

	e.typed++
	if r == e.text[e.cursor] {
		e.correct++
	}
	e.cursor++
	e.ensureMoreLocked(ctx)
	return true
}

// EnsureMore extends the passage when the untyped remainder drops below the
// low-water mark. At most one refill is in flight at a time; a response that
// outlives its session is discarded.
func (e *Engine) EnsureMore(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ensureMoreLocked(ctx)
}

func (e *Engine) ensureMoreLocked(ctx context.Context) {
	if !e.started || e.refillInFlight {
		return
	}
	if len(e.text)-e.cursor >= e.lowWater {
		return
	}

	e.refillInFlight = true
	gen := e.generation
	go func() {
		chunk := Fetch(ctx, e.provider, e.refillWords)
		e.ApplyRefill(gen, chunk)
	}()
}

// ApplyRefill appends a fetched chunk if it still belongs to the current
// session. A stale response is dropped without touching the newer session.
func (e *Engine) ApplyRefill(gen uint64, chunk string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if gen != e.generation {
		log.Debug().Uint64("got", gen).Uint64("want", e.generation).Msg("dropping stale text refill")
		return
	}
	e.refillInFlight = false
	if chunk == "" {
		return
	}
	e.text = append(append(e.text, ' '), []rune(chunk)...)
}

// Metrics recomputes wpm, accuracy and progress from the raw counters.
func (e *Engine) Metrics() Metrics {
	e.mu.Lock()
	defer e.mu.Unlock()

	m := Metrics{Accuracy: 100}

	if e.started {
		elapsed := e.clock.Since(e.startedAt)
		if ms := elapsed.Milliseconds(); ms > 0 {
			words := float64(e.typed) / 5.0
			minutes := float64(ms) / 60000.0
			m.WPM = int(math.Max(0, math.Round(words/minutes)))
		}
	}

	if e.typed > 0 {
		m.Accuracy = clampPct(math.Round(float64(e.correct) / float64(e.typed) * 100))
	}

	total := len(e.text)
	if total < 1 {
		total = 1
	}
	m.Progress = clampPct(math.Round(float64(e.cursor) / float64(total) * 100))

	return m
}

func clampPct(v float64) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return int(v)
}
