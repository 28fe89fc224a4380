package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/Harsha2k4/typing-racer-prod-bots/internal/constants"
	"github.com/Harsha2k4/typing-racer-prod-bots/internal/race"
	"github.com/Harsha2k4/typing-racer-prod-bots/internal/store"
	"github.com/Harsha2k4/typing-racer-prod-bots/internal/text"
)

// Handlers bundles the HTTP and websocket surface over the coordinator and
// its collaborator services.
type Handlers struct {
	Hub   *race.Hub
	Text  *text.Service
	Store *store.Store
	Clock clockwork.Clock
}

// Routes registers every endpoint on mux.
func (h *Handlers) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws/race/{code}", h.HandleRace)
	mux.HandleFunc("GET /api/text", h.HandleText)
	mux.HandleFunc("POST /api/tests", h.HandleSaveTest)
	mux.HandleFunc("GET /api/tests/recent", h.HandleRecentTests)
	mux.HandleFunc("GET /api/leaderboard/top", h.HandleLeaderboard)
	mux.HandleFunc("POST /api/race/create", h.HandleCreateRace)
	mux.HandleFunc("POST /api/race/start", h.HandleStartRace)
	mux.HandleFunc("GET /api/race/check", h.HandleCheckRace)
	mux.HandleFunc("GET /health", h.HandleHealth)
}

// HandleText serves a typing passage: GET /api/text?words=N.
func (h *Handlers) HandleText(w http.ResponseWriter, r *http.Request) {
	words := intParam(r.URL.Query().Get("words"), constants.DefaultPassageWords)
	writeJSON(w, map[string]string{"text": h.Text.Passage(r.Context(), words)})
}

// HandleSaveTest persists a finished typing test. Persistence failure is
// logged, not surfaced: saving history must never break the typing flow.
func (h *Handlers) HandleSaveTest(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name        string  `json:"name"`
		WPM         float64 `json:"wpm"`
		Accuracy    float64 `json:"accuracy"`
		DurationSec int     `json:"duration_sec"`
		CharsTyped  int     `json:"chars_typed"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if body.Name == "" {
		body.Name = "Guest"
	}

	if err := h.Store.SaveTest(r.Context(), store.TestResult{
		Name:        body.Name,
		WPM:         body.WPM,
		Accuracy:    body.Accuracy,
		DurationSec: body.DurationSec,
		CharsTyped:  body.CharsTyped,
	}); err != nil {
		log.Error().Err(err).Str("name", body.Name).Msg("saving typing test failed")
	}
	writeJSON(w, map[string]bool{"ok": true})
}

// HandleRecentTests lists a player's test history, newest first.
func (h *Handlers) HandleRecentTests(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		http.Error(w, "missing name", http.StatusBadRequest)
		return
	}
	limit := intParam(r.URL.Query().Get("limit"), 20)

	tests, err := h.Store.RecentTests(r.Context(), name, limit)
	if err != nil {
		log.Error().Err(err).Msg("listing typing tests failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	out := make([]map[string]interface{}, 0, len(tests))
	for _, t := range tests {
		out = append(out, map[string]interface{}{
			"wpm":          t.WPM,
			"accuracy":     t.Accuracy,
			"duration_sec": t.DurationSec,
			"chars_typed":  t.CharsTyped,
			"created_at":   t.CreatedAt,
		})
	}
	writeJSON(w, out)
}

// HandleLeaderboard serves the best WPM per player.
func (h *Handlers) HandleLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := intParam(r.URL.Query().Get("limit"), 20)
	entries, err := h.Store.Leaderboard(r.Context(), limit)
	if err != nil {
		log.Error().Err(err).Msg("leaderboard query failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []store.LeaderboardEntry{}
	}
	writeJSON(w, entries)
}

// HandleCreateRace allocates a race code.
func (h *Handlers) HandleCreateRace(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if body.Name == "" {
		body.Name = bearerToken(r)
	}
	if body.Name == "" {
		body.Name = "Guest"
	}

	code := race.NewRaceCode()
	if err := h.Store.CreateRace(r.Context(), code, body.Name); err != nil {
		log.Error().Err(err).Msg("recording race failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	log.Info().Str("room", code).Str("created_by", body.Name).Msg("race created")
	writeJSON(w, map[string]string{"race_code": code})
}

// HandleStartRace kicks off the countdown over REST:
// POST /api/race/start?race_code=X. The phase change itself still arrives on
// the sockets via room:started.
func (h *Handlers) HandleStartRace(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("race_code")
	if code == "" {
		http.Error(w, "missing race_code", http.StatusBadRequest)
		return
	}
	room := h.Hub.Get(code)
	if room == nil {
		http.Error(w, "race not live", http.StatusNotFound)
		return
	}
	go room.StartCountdown(constants.DefaultCountdownSeconds)
	writeJSON(w, map[string]bool{"ok": true})
}

// HandleCheckRace reports whether a race code exists, live or recorded.
func (h *Handlers) HandleCheckRace(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("race_code")
	if code == "" {
		http.Error(w, "missing race_code", http.StatusBadRequest)
		return
	}

	if h.Hub.Get(code) != nil {
		writeJSON(w, map[string]bool{"exists": true})
		return
	}
	exists, err := h.Store.RaceExists(r.Context(), code)
	if err != nil {
		log.Error().Err(err).Msg("race lookup failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]bool{"exists": exists})
}

// HandleHealth is the liveness probe.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]interface{}{"ok": true, "rooms": h.Hub.Len()})
}

// bearerToken extracts the opaque credential; it is passed through, never
// validated or interpreted.
func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("encoding response failed")
	}
}

func intParam(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
