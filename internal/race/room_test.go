package race

import (
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/Harsha2k4/typing-racer-prod-bots/internal/constants"
	"github.com/Harsha2k4/typing-racer-prod-bots/internal/models"
)

type recordingSender struct {
	mu     sync.Mutex
	events []models.Envelope
}

func (s *recordingSender) Send(env models.Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, env)
	return nil
}

func (s *recordingSender) count(event string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.events {
		if e.Event == event {
			n++
		}
	}
	return n
}

func (s *recordingSender) lastWinner() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.events) - 1; i >= 0; i-- {
		if s.events[i].Event == models.EventRoomWinner {
			return s.events[i].Data.(models.RoomWinner).Name
		}
	}
	return ""
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal(msg)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// runRace drives a room through a one-second countdown to running.
func runRace(t *testing.T, room *Room, clock *clockwork.FakeClock) {
	t.Helper()
	go room.StartCountdown(1)
	clock.BlockUntil(1)
	clock.Advance(time.Second)
	waitFor(t, room.Started, "race never reached running")
}

func TestJoinBroadcastsFullState(t *testing.T) {
	room := NewRoom("ABC123", clockwork.NewFakeClock())
	a := &recordingSender{}
	room.Join("p1", "alice", a, false)
	room.Join("p2", "bob", nil, true)

	state := room.Snapshot()
	if len(state.Players) != 2 {
		t.Fatalf("expected 2 players, got %d", len(state.Players))
	}
	if !state.Players[1].IsBot {
		t.Fatal("second participant should be a bot")
	}
	if state.Players[0].Accuracy != 100 {
		t.Fatalf("fresh participant accuracy should be 100, got %d", state.Players[0].Accuracy)
	}
	if a.count(models.EventRoomState) != 2 {
		t.Fatalf("expected a state broadcast per join, got %d", a.count(models.EventRoomState))
	}
}

func TestCountdownStartsRaceOnce(t *testing.T) {
	clock := clockwork.NewFakeClock()
	room := NewRoom("ABC123", clock)
	a := &recordingSender{}
	room.Join("p1", "alice", a, false)

	runRace(t, room, clock)

	if room.Phase() != constants.PhaseRunning {
		t.Fatalf("expected running phase, got %s", room.Phase())
	}
	if n := a.count(models.EventRoomStarted); n != 1 {
		t.Fatalf("room:started should be broadcast once, got %d", n)
	}

	// A second start request while running must be ignored.
	room.StartCountdown(1)
	if n := a.count(models.EventRoomStarted); n != 1 {
		t.Fatalf("start while running rebroadcast room:started (%d)", n)
	}
}

func TestFirstTo100Wins(t *testing.T) {
	clock := clockwork.NewFakeClock()
	room := NewRoom("ABC123", clock)
	a := &recordingSender{}
	room.Join("p1", "alice", a, false)
	room.Join("p2", "bob", nil, true)

	runRace(t, room, clock)

	room.Update("p1", 60, 55, 97)
	room.Update("p2", 100, 80, 98)
	room.Update("p1", 100, 58, 97)

	if _, name := room.Winner(); name != "bob" {
		t.Fatalf("expected bob to win, got %q", name)
	}
	if n := a.count(models.EventRoomWinner); n != 1 {
		t.Fatalf("room:winner should be broadcast exactly once, got %d", n)
	}
	if a.lastWinner() != "bob" {
		t.Fatalf("broadcast winner mismatch: %q", a.lastWinner())
	}
	if room.Phase() != constants.PhaseFinished {
		t.Fatalf("expected finished phase, got %s", room.Phase())
	}
}

func TestNoWinnerBeforeStart(t *testing.T) {
	room := NewRoom("ABC123", clockwork.NewFakeClock())
	a := &recordingSender{}
	room.Join("p1", "alice", a, false)

	room.Update("p1", 100, 120, 100)

	if id, _ := room.Winner(); id != "" {
		t.Fatal("progress before the race starts must not declare a winner")
	}
}

func TestUpdateClampsMetrics(t *testing.T) {
	room := NewRoom("ABC123", clockwork.NewFakeClock())
	room.Join("p1", "alice", &recordingSender{}, false)

	room.Update("p1", 250, -10, 140)

	state := room.Snapshot()
	p := state.Players[0]
	if p.Progress != 100 || p.WPM != 0 || p.Accuracy != 100 {
		t.Fatalf("metrics not clamped: %+v", p)
	}
}

func TestHubRemovesEmptyRoom(t *testing.T) {
	hub := NewHub(clockwork.NewFakeClock())
	room := hub.GetOrCreate("ABC123")
	room.Join("p1", "alice", &recordingSender{}, false)
	room.Join("b1", "Bot-1", nil, true)

	if hub.Len() != 1 {
		t.Fatalf("expected 1 room, got %d", hub.Len())
	}
	if again := hub.GetOrCreate("ABC123"); again != room {
		t.Fatal("GetOrCreate should return the existing room")
	}

	// Last connected participant leaves; bots alone cannot keep a room alive.
	room.Leave("p1")
	if hub.Len() != 0 {
		t.Fatalf("empty room should be removed, hub has %d", hub.Len())
	}
	if !room.Closed() {
		t.Fatal("room should be closed after last leave")
	}
}

func TestClosedRoomRefusesJoin(t *testing.T) {
	hub := NewHub(clockwork.NewFakeClock())
	stale := hub.GetOrCreate("ABC123")
	stale.Join("p1", "alice", &recordingSender{}, false)

	// p1 leaves while another handler still holds the old room handle.
	stale.Leave("p1")
	if !stale.Closed() {
		t.Fatal("room should be closed after last leave")
	}

	if stale.Join("p2", "bob", &recordingSender{}, false) {
		t.Fatal("closed room must refuse joins")
	}
	if n := len(stale.Snapshot().Players); n != 0 {
		t.Fatalf("closed room roster should stay empty, got %d", n)
	}

	// The next hub lookup hands out a fresh instance that accepts the join.
	fresh := hub.GetOrCreate("ABC123")
	if fresh == stale {
		t.Fatal("hub should have replaced the closed room")
	}
	if !fresh.Join("p2", "bob", &recordingSender{}, false) {
		t.Fatal("fresh room should accept the join")
	}
	if n := len(fresh.Snapshot().Players); n != 1 {
		t.Fatalf("expected 1 player in the fresh room, got %d", n)
	}
}

func TestRestartAfterFinishBeginsNewInstance(t *testing.T) {
	clock := clockwork.NewFakeClock()
	room := NewRoom("ABC123", clock)
	a := &recordingSender{}
	room.Join("p1", "alice", a, false)

	runRace(t, room, clock)
	room.Update("p1", 100, 60, 99)
	if room.Phase() != constants.PhaseFinished {
		t.Fatalf("expected finished, got %s", room.Phase())
	}

	runRace(t, room, clock)
	if n := a.count(models.EventRoomStarted); n != 2 {
		t.Fatalf("second race instance should broadcast its own room:started, got %d total", n)
	}
	if p := room.Snapshot().Players[0]; p.Progress != 0 {
		t.Fatalf("progress should reset for a new race instance, got %d", p.Progress)
	}
}
