// Package race implements the authoritative room coordinator: the roster,
// the race lifecycle and winner determination.
package race

import (
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/Harsha2k4/typing-racer-prod-bots/internal/constants"
	"github.com/Harsha2k4/typing-racer-prod-bots/internal/models"
)

// Sender delivers one envelope to a connected participant. Implementations
// must be safe for concurrent use.
type Sender interface {
	Send(models.Envelope) error
}

// Participant is one racer's authoritative state.
type Participant struct {
	ID       string
	Name     string
	IsBot    bool
	Progress int
	WPM      int
	Accuracy int

	joinSeq int
}

// Room owns one race: its roster, phase and winner. All mutations to a room
// are serialized by its mutex; unrelated rooms proceed in parallel.
type Room struct {
	Code string

	clock clockwork.Clock

	mu        sync.Mutex
	players   map[string]*Participant
	senders   map[string]Sender
	phase     string
	started   bool
	countdown int
	winnerID  string
	closed    bool
	nextSeq   int

	// sendMu keeps broadcasts in state order: it is acquired while the
	// state lock is still held, so snapshots leave the room in the order
	// they were taken. room:state is a full replacement, so coalescing is
	// fine, reordering is not.
	sendMu sync.Mutex

	onEmpty func(code string)
}

// NewRoom creates an empty waiting room.
func NewRoom(code string, clock clockwork.Clock) *Room {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Room{
		Code:      code,
		clock:     clock,
		players:   make(map[string]*Participant),
		senders:   make(map[string]Sender),
		phase:     constants.PhaseWaiting,
		countdown: -1,
	}
}

// Phase returns the room's current lifecycle phase.
func (r *Room) Phase() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.phase
}

// Started reports whether the race is currently running.
func (r *Room) Started() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.started
}

// Winner returns the winning participant's id and name, empty until decided.
func (r *Room) Winner() (id, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.winnerID == "" {
		return "", ""
	}
	if p, ok := r.players[r.winnerID]; ok {
		return p.ID, p.Name
	}
	return r.winnerID, ""
}

// Closed reports whether the room has been shut down.
func (r *Room) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// Snapshot builds the full-state view broadcast to every client.
func (r *Room) Snapshot() models.RoomState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

func (r *Room) snapshotLocked() models.RoomState {
	players := make([]*Participant, 0, len(r.players))
	for _, p := range r.players {
		players = append(players, p)
	}
	sort.Slice(players, func(i, j int) bool { return players[i].joinSeq < players[j].joinSeq })

	state := models.RoomState{
		Code:      r.Code,
		Started:   r.started,
		Countdown: r.countdown,
		Players:   make([]models.PlayerView, 0, len(players)),
	}
	for _, p := range players {
		state.Players = append(state.Players, models.PlayerView{
			ID:       p.ID,
			Name:     p.Name,
			Progress: p.Progress,
			WPM:      p.WPM,
			Accuracy: p.Accuracy,
			IsBot:    p.IsBot,
		})
	}
	return state
}

// Join adds a participant and reports whether the room accepted it. A closed
// room refuses joins: the hub may already have replaced it, and a participant
// landing in the old instance would race a roster nobody else can see. sender
// is nil for bots, which are driven server-side and have no socket of their
// own.
func (r *Room) Join(id, name string, sender Sender, isBot bool) bool {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return false
	}
	r.nextSeq++
	r.players[id] = &Participant{
		ID:       id,
		Name:     name,
		IsBot:    isBot,
		Accuracy: 100,
		joinSeq:  r.nextSeq,
	}
	if sender != nil {
		r.senders[id] = sender
	}

	log.Info().Str("room", r.Code).Str("player", name).Bool("bot", isBot).Msg("participant joined")
	r.broadcastLocked(models.Envelope{Event: models.EventRoomState, Data: r.snapshotLocked()})
	return true
}

// Leave removes a participant. When the last connected participant leaves,
// the room is closed and handed back to the hub for removal.
func (r *Room) Leave(id string) {
	r.mu.Lock()
	delete(r.players, id)
	delete(r.senders, id)
	log.Info().Str("room", r.Code).Str("player", id).Msg("participant left")

	if len(r.senders) == 0 {
		r.closed = true
		onEmpty := r.onEmpty
		r.mu.Unlock()
		if onEmpty != nil {
			onEmpty(r.Code)
		}
		return
	}

	r.broadcastLocked(models.Envelope{Event: models.EventRoomState, Data: r.snapshotLocked()})
}

// Update applies a participant's live metrics. The room mutex linearizes
// updates, so when two racers reach 100 in the same cycle the first update to
// acquire the lock wins.
func (r *Room) Update(id string, progress, wpm, accuracy int) {
	r.mu.Lock()
	p, ok := r.players[id]
	if !ok {
		r.mu.Unlock()
		return
	}

	p.Progress = clamp(progress, 0, 100)
	p.WPM = max(0, wpm)
	p.Accuracy = clamp(accuracy, 0, 100)

	won := p.Progress >= 100 && r.started && r.winnerID == ""
	if won {
		r.winnerID = p.ID
		r.started = false
		r.countdown = -1
		r.phase = constants.PhaseFinished
		log.Info().Str("room", r.Code).Str("winner", p.Name).Msg("race concluded")
	}

	envs := []models.Envelope{{Event: models.EventRoomState, Data: r.snapshotLocked()}}
	if won {
		envs = append(envs, models.Envelope{Event: models.EventRoomWinner, Data: models.RoomWinner{ID: p.ID, Name: p.Name}})
	}
	r.broadcastLocked(envs...)
}

// StartCountdown runs the countdown and flips the room to running, then
// broadcasts room:started. At most one countdown runs at a time; starting a
// finished room begins a new race instance.
func (r *Room) StartCountdown(seconds int) {
	if seconds <= 0 {
		seconds = constants.DefaultCountdownSeconds
	}

	r.mu.Lock()
	if r.closed || r.phase == constants.PhaseCountdown || r.phase == constants.PhaseRunning {
		r.mu.Unlock()
		return
	}
	r.phase = constants.PhaseCountdown
	r.started = false
	r.winnerID = ""
	for _, p := range r.players {
		p.Progress = 0
		p.WPM = 0
		p.Accuracy = 100
	}
	r.mu.Unlock()

	for s := seconds; s > 0; s-- {
		r.mu.Lock()
		if r.closed {
			r.mu.Unlock()
			return
		}
		r.countdown = s
		r.broadcastLocked(models.Envelope{Event: models.EventRoomState, Data: r.snapshotLocked()})

		r.clock.Sleep(time.Second)
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.countdown = 0
	r.started = true
	r.phase = constants.PhaseRunning
	log.Info().Str("room", r.Code).Msg("race started")
	r.broadcastLocked(
		models.Envelope{Event: models.EventRoomStarted, Data: models.RoomStarted{Code: r.Code}},
		models.Envelope{Event: models.EventRoomState, Data: r.snapshotLocked()},
	)
}

// broadcastLocked delivers envelopes to every connected participant. It must
// be entered with the state mutex held and releases it itself: the send mutex
// is taken first, which pins the delivery order to the state order. Senders
// that fail are dropped from the roster, mirroring a disconnect.
func (r *Room) broadcastLocked(envs ...models.Envelope) {
	targets := make(map[string]Sender, len(r.senders))
	for id, s := range r.senders {
		targets[id] = s
	}
	r.sendMu.Lock()
	r.mu.Unlock()

	var dead []string
	for _, env := range envs {
		for id, s := range targets {
			if err := s.Send(env); err != nil {
				log.Warn().Str("room", r.Code).Str("player", id).Err(err).Msg("dropping unreachable participant")
				dead = append(dead, id)
				delete(targets, id)
			}
		}
	}
	r.sendMu.Unlock()

	if len(dead) > 0 {
		r.mu.Lock()
		for _, id := range dead {
			delete(r.players, id)
			delete(r.senders, id)
		}
		r.mu.Unlock()
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
