package race

import (
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Hub maps race codes to live rooms.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]*Room
	clock clockwork.Clock
}

// NewHub returns an empty hub whose rooms use clock for countdowns.
func NewHub(clock clockwork.Clock) *Hub {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Hub{
		rooms: make(map[string]*Room),
		clock: clock,
	}
}

// GetOrCreate returns the room for code, creating it on first join.
func (h *Hub) GetOrCreate(code string) *Room {
	h.mu.Lock()
	defer h.mu.Unlock()

	if room, ok := h.rooms[code]; ok {
		return room
	}

	room := NewRoom(code, h.clock)
	room.onEmpty = h.Remove
	h.rooms[code] = room
	log.Info().Str("room", code).Msg("room created")
	return room
}

// Get returns the room for code, or nil.
func (h *Hub) Get(code string) *Room {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.rooms[code]
}

// Remove drops a room from the hub.
func (h *Hub) Remove(code string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.rooms[code]; !ok {
		return
	}
	delete(h.rooms, code)
	log.Info().Str("room", code).Int("active", len(h.rooms)).Msg("room removed")
}

// Len returns the number of live rooms.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}

// NewRaceCode generates a short uppercase room code.
func NewRaceCode() string {
	return strings.ToUpper(uuid.New().String()[:6])
}
