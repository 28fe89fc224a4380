package typing

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

type fixedProvider struct {
	text string
	err  error
}

func (p *fixedProvider) Fetch(ctx context.Context, wordCount int) (string, error) {
	return p.text, p.err
}

func TestMetricsBeforeAnySession(t *testing.T) {
	e := NewEngine(nil, nil)
	m := e.Metrics()
	if m.WPM != 0 {
		t.Fatalf("wpm before start should be 0, got %d", m.WPM)
	}
	if m.Accuracy != 100 {
		t.Fatalf("accuracy with nothing typed should be 100, got %d", m.Accuracy)
	}
	if m.Progress != 0 {
		t.Fatalf("progress before start should be 0, got %d", m.Progress)
	}
}

func TestStartNewFallsBackOnProviderFailure(t *testing.T) {
	e := NewEngine(&fixedProvider{err: context.DeadlineExceeded}, nil)
	e.StartNew(context.Background(), 220)
	if e.Text() != FallbackText {
		t.Fatal("provider failure should fall back to the filler passage")
	}
	if e.Paused() {
		t.Fatal("a new session should not start paused")
	}
}

func TestAllCorrectKeystrokes(t *testing.T) {
	// 1000 characters, 300 typed correctly.
	text := strings.Repeat("abcdefghij", 100)
	e := NewEngine(nil, clockwork.NewFakeClock())
	e.StartWithText(text)

	runes := []rune(text)
	for i := 0; i < 300; i++ {
		if !e.HandleKeyPress(context.Background(), runes[i]) {
			t.Fatalf("keystroke %d rejected", i)
		}
	}

	m := e.Metrics()
	if m.Accuracy != 100 {
		t.Fatalf("expected accuracy 100, got %d", m.Accuracy)
	}
	if m.Progress != 30 {
		t.Fatalf("expected progress 30, got %d", m.Progress)
	}
}

func TestWPMAndAccuracyAfterOneMinute(t *testing.T) {
	clock := clockwork.NewFakeClock()
	text := strings.Repeat("ab", 300)
	e := NewEngine(nil, clock)
	e.StartWithText(text)

	// 100 keystrokes, 80 correct.
	runes := []rune(text)
	for i := 0; i < 100; i++ {
		key := runes[i]
		if i%5 == 0 {
			key = '#'
		}
		e.HandleKeyPress(context.Background(), key)
	}

	clock.Advance(60 * time.Second)
	m := e.Metrics()
	if m.WPM != 20 {
		t.Fatalf("expected wpm 20, got %d", m.WPM)
	}
	if m.Accuracy != 80 {
		t.Fatalf("expected accuracy 80, got %d", m.Accuracy)
	}
}

func TestPausedKeystrokesAreDropped(t *testing.T) {
	e := NewEngine(nil, clockwork.NewFakeClock())
	e.StartWithText("hello world this is a passage")
	e.HandleKeyPress(context.Background(), 'h')
	e.PauseToggle()

	for i := 0; i < 10; i++ {
		if e.HandleKeyPress(context.Background(), 'e') {
			t.Fatal("paused keystroke should not mutate the session")
		}
	}

	typed, correct := e.Counters()
	if typed != 1 || correct != 1 || e.Cursor() != 1 {
		t.Fatalf("state changed while paused: typed=%d correct=%d cursor=%d", typed, correct, e.Cursor())
	}

	e.PauseToggle()
	if !e.HandleKeyPress(context.Background(), 'e') {
		t.Fatal("keystroke after unpause should be accepted")
	}
}

func TestNonPrintableKeysRejected(t *testing.T) {
	e := NewEngine(nil, clockwork.NewFakeClock())
	e.StartWithText("abc def")

	for _, r := range []rune{'\n', '\t', '\x1b', '\x00'} {
		if e.HandleKeyPress(context.Background(), r) {
			t.Fatalf("control rune %q should be rejected", r)
		}
	}
	if !e.HandleKeyPress(context.Background(), ' ') {
		t.Fatal("space must be accepted")
	}
}

func TestProgressNeverDecreasesWithinSession(t *testing.T) {
	// The passage stays well above the refill threshold for the whole loop,
	// so no background refill can stretch the text mid-flight.
	e := NewEngine(nil, clockwork.NewFakeClock())
	e.StartWithText(strings.Repeat("x", 500))

	last := e.Metrics().Progress
	for i := 0; i < 200; i++ {
		e.HandleKeyPress(context.Background(), 'x')
		p := e.Metrics().Progress
		if p < last {
			t.Fatalf("progress regressed from %d to %d at keystroke %d", last, p, i)
		}
		last = p
	}
}

func TestStaleRefillIsDiscarded(t *testing.T) {
	e := NewEngine(nil, clockwork.NewFakeClock())
	e.StartWithText("first session text")
	oldGen := e.Generation()

	e.StartWithText("second session text")
	e.ApplyRefill(oldGen, "stale chunk from the first session")

	if e.Text() != "second session text" {
		t.Fatalf("stale refill mutated the newer session: %q", e.Text())
	}

	e.ApplyRefill(e.Generation(), "fresh chunk")
	if e.Text() != "second session text fresh chunk" {
		t.Fatalf("current-generation refill should append: %q", e.Text())
	}
}

type gatedProvider struct {
	calls int32
	gate  chan struct{}
}

func (p *gatedProvider) Fetch(ctx context.Context, wordCount int) (string, error) {
	atomic.AddInt32(&p.calls, 1)
	<-p.gate
	return "more words", nil
}

func TestEnsureMoreSingleFlight(t *testing.T) {
	provider := &gatedProvider{gate: make(chan struct{})}
	e := NewEngine(provider, clockwork.NewFakeClock())
	e.StartWithText("tiny")

	for i := 0; i < 5; i++ {
		e.EnsureMore(context.Background())
	}
	time.Sleep(50 * time.Millisecond)
	if n := atomic.LoadInt32(&provider.calls); n != 1 {
		t.Fatalf("expected a single in-flight refill, got %d fetches", n)
	}

	close(provider.gate)
	deadline := time.Now().Add(2 * time.Second)
	for e.Text() == "tiny" {
		if time.Now().After(deadline) {
			t.Fatal("refill never applied")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if e.Text() != "tiny more words" {
		t.Fatalf("unexpected text after refill: %q", e.Text())
	}
}

func TestEnsureMoreRespectsLowWater(t *testing.T) {
	provider := &gatedProvider{gate: make(chan struct{})}
	e := NewEngine(provider, clockwork.NewFakeClock())
	e.StartWithText(strings.Repeat("a", 200))

	e.EnsureMore(context.Background())
	time.Sleep(20 * time.Millisecond)
	if n := atomic.LoadInt32(&provider.calls); n != 0 {
		t.Fatalf("refill fired with %d untyped characters remaining", 200)
	}
}
