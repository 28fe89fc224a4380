package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/Harsha2k4/typing-racer-prod-bots/internal/bot"
	"github.com/Harsha2k4/typing-racer-prod-bots/internal/constants"
	"github.com/Harsha2k4/typing-racer-prod-bots/internal/models"
	"github.com/Harsha2k4/typing-racer-prod-bots/internal/race"
)

// Upgrader for race connections.
var Upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// TODO: restrict origins once the frontend host is pinned down.
		return true
	},
}

const writeTimeout = 10 * time.Second

// wsSender adapts a websocket connection to race.Sender. Gorilla connections
// allow one concurrent writer, hence the mutex.
type wsSender struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *wsSender) Send(env models.Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return s.conn.WriteJSON(env)
}

// HandleRace upgrades the connection and runs the read loop for one race
// membership: GET /ws/race/{code}?token&name&bots&difficulty.
func (h *Handlers) HandleRace(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	if code == "" {
		http.Error(w, "missing race code", http.StatusBadRequest)
		return
	}

	q := r.URL.Query()
	name := q.Get("name")
	if name == "" {
		name = "Guest"
	}
	pid := participantID(q.Get("token"))

	conn, err := Upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	sender := &wsSender{conn: conn}
	// A room can close between lookup and join when its last participant
	// leaves; retry against the hub's replacement until the join lands.
	var room *race.Room
	for {
		room = h.Hub.GetOrCreate(code)
		if room.Join(pid, name, sender, false) {
			break
		}
	}

	// The initial passage rides the socket so the client can race without a
	// separate text round-trip.
	passage := h.Text.Passage(r.Context(), constants.DefaultPassageWords)
	if err := sender.Send(models.Envelope{Event: models.EventTextNew, Data: models.TextNew{Text: passage}}); err != nil {
		log.Warn().Str("room", code).Err(err).Msg("initial passage send failed")
	}

	if n := intParam(q.Get("bots"), 0); n > 0 && !hasBots(room) {
		bot.Spawn(context.Background(), room, n, bot.ParseDifficulty(q.Get("difficulty")), h.Clock)
	}

	h.readLoop(room, conn, sender, pid)
}

// readLoop dispatches inbound envelopes until the connection drops, then
// removes the participant from the room.
func (h *Handlers) readLoop(room *race.Room, conn *websocket.Conn, sender *wsSender, pid string) {
	defer func() {
		conn.Close()
		room.Leave(pid)
	}()

	for {
		var env struct {
			Event string                 `json:"event"`
			Data  map[string]interface{} `json:"data"`
		}
		if err := conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Str("room", room.Code).Str("player", pid).Err(err).Msg("race socket error")
			}
			return
		}

		switch env.Event {
		case models.EventPlayerUpdate:
			room.Update(pid,
				intField(env.Data, "progress", 0),
				intField(env.Data, "wpm", 0),
				intField(env.Data, "accuracy", 100),
			)
		case models.EventRoomStart:
			seconds := intField(env.Data, "seconds", constants.DefaultCountdownSeconds)
			go room.StartCountdown(seconds)
		case models.EventTextMore:
			words := intField(env.Data, "words", constants.RefillPassageWords)
			chunk := h.Text.Passage(context.Background(), words)
			if err := sender.Send(models.Envelope{Event: models.EventTextNew, Data: models.TextNew{Text: chunk}}); err != nil {
				return
			}
		default:
			// Unknown client events are ignored.
		}
	}
}

// participantID derives a stable id from the opaque credential when one is
// supplied; anonymous connections get a random id.
func participantID(token string) string {
	if token != "" {
		return uuid.NewSHA1(uuid.NameSpaceOID, []byte(token)).String()[:8]
	}
	return uuid.NewString()[:8]
}

func hasBots(room *race.Room) bool {
	for _, p := range room.Snapshot().Players {
		if p.IsBot {
			return true
		}
	}
	return false
}

func intField(data map[string]interface{}, key string, def int) int {
	if v, ok := data[key].(float64); ok {
		return int(v)
	}
	return def
}
