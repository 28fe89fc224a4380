// Command racer is a headless racing client: it joins a room, receives the
// passage, types it at a configured pace and publishes live metrics, exactly
// as a human-driven frontend would.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Harsha2k4/typing-racer-prod-bots/internal/models"
	"github.com/Harsha2k4/typing-racer-prod-bots/internal/raceclient"
	"github.com/Harsha2k4/typing-racer-prod-bots/internal/typing"
)

func main() {
	var (
		server     = flag.String("server", "http://127.0.0.1:8080", "coordinator base URL")
		code       = flag.String("race", "", "race code to join (created via the API if empty)")
		name       = flag.String("name", "racer", "display name")
		token      = flag.String("token", "", "opaque bearer credential, passed through unchanged")
		bots       = flag.Int("bots", 0, "number of bots to request at join")
		difficulty = flag.String("difficulty", "medium", "bot difficulty: easy, medium or hard")
		targetWPM  = flag.Int("wpm", 60, "typing pace to simulate")
		errorRate  = flag.Float64("errors", 0.03, "fraction of keystrokes typed wrong")
		start      = flag.Bool("start", true, "request the countdown after joining")
	)
	flag.Parse()

	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})

	ctx := context.Background()

	raceCode := *code
	if raceCode == "" {
		var err error
		raceCode, err = createRace(ctx, *server, *name)
		if err != nil {
			log.Fatal().Err(err).Msg("creating race failed")
		}
		log.Info().Str("room", raceCode).Msg("race created")
	}

	engine := typing.NewEngine(typing.NewHTTPProvider(*server), nil)

	client := raceclient.New(*server)
	raceBegun := make(chan struct{})
	passageCh := make(chan string, 1)
	client.OnText = func(text string) {
		select {
		case passageCh <- text:
		default:
		}
	}
	client.OnStart = func() { close(raceBegun) }

	if err := client.Join(ctx, raceCode, raceclient.JoinOptions{
		Token:      *token,
		Name:       *name,
		Bots:       *bots,
		Difficulty: *difficulty,
	}); err != nil {
		log.Fatal().Err(err).Msg("joining race failed")
	}
	defer client.Close()
	log.Info().Str("status", client.Info()).Msg("joined")

	if *start {
		client.StartCountdown(3)
	}

	select {
	case <-raceBegun:
	case <-time.After(30 * time.Second):
		log.Fatal().Msg("race never started")
	}
	log.Info().Msg("race started, typing")

	// The session clock starts with the race, not with the join, so the
	// pre-race wait never dilutes WPM. An empty passage falls back inside
	// the engine.
	var passage string
	select {
	case passage = <-passageCh:
	default:
	}
	engine.StartWithText(passage)

	raceStart := time.Now()
	typeRace(ctx, engine, client, *targetWPM, *errorRate)
	duration := time.Since(raceStart)

	m := engine.Metrics()
	typed, _ := engine.Counters()
	log.Info().
		Int("wpm", m.WPM).Int("accuracy", m.Accuracy).Int("progress", m.Progress).
		Str("winner", client.Winner()).
		Msg("race finished")

	if err := submitTest(ctx, *server, *token, *name, m, typed, int(duration.Seconds())); err != nil {
		// Fire and forget: history is a nicety, the race result stands.
		log.Warn().Err(err).Msg("submitting test result failed")
	}
}

// typeRace feeds keystrokes into the engine at roughly targetWPM until the
// passage is done or a winner is declared, publishing metrics as it goes.
func typeRace(ctx context.Context, engine *typing.Engine, client *raceclient.Client, targetWPM int, errorRate float64) {
	const tick = 250 * time.Millisecond
	charsPerTick := float64(targetWPM) * 5 / 60 * tick.Seconds()
	if charsPerTick < 1 {
		charsPerTick = 1
	}

	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	carry := 0.0
	for range ticker.C {
		if client.Winner() != "" || client.State() != raceclient.StateConnected {
			return
		}

		carry += charsPerTick * (0.8 + rand.Float64()*0.4)
		for ; carry >= 1; carry-- {
			text := []rune(engine.Text())
			cursor := engine.Cursor()
			if cursor >= len(text) {
				break
			}
			key := text[cursor]
			if rand.Float64() < errorRate {
				key = '~'
			}
			engine.HandleKeyPress(ctx, key)
		}

		m := engine.Metrics()
		client.PublishMetrics(models.PlayerUpdate{
			Progress: m.Progress,
			WPM:      m.WPM,
			Accuracy: m.Accuracy,
		})
		if m.Progress >= 100 {
			return
		}
	}
}

func createRace(ctx context.Context, server, name string) (string, error) {
	body, _ := json.Marshal(map[string]string{"name": name})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, server+"/api/race/create", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("race create returned %s", resp.Status)
	}

	var out struct {
		RaceCode string `json:"race_code"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.RaceCode, nil
}

func submitTest(ctx context.Context, server, token, name string, m typing.Metrics, charsTyped, durationSec int) error {
	body, _ := json.Marshal(map[string]interface{}{
		"name":         name,
		"wpm":          m.WPM,
		"accuracy":     m.Accuracy,
		"duration_sec": durationSec,
		"chars_typed":  charsTyped,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, server+"/api/tests", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("test submit returned %s", resp.Status)
	}
	return nil
}
