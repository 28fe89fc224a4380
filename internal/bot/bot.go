// Package bot drives simulated participants. A bot emits the same
// progress/wpm/accuracy updates a human client does, so the coordinator
// treats both identically.
package bot

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/Harsha2k4/typing-racer-prod-bots/internal/race"
)

// Difficulty selects the WPM band and error rate for spawned bots.
type Difficulty string

const (
	Easy   Difficulty = "easy"
	Medium Difficulty = "medium"
	Hard   Difficulty = "hard"
)

// ParseDifficulty maps a request parameter to a Difficulty, defaulting to
// medium for anything unknown.
func ParseDifficulty(s string) Difficulty {
	switch Difficulty(s) {
	case Easy, Hard:
		return Difficulty(s)
	default:
		return Medium
	}
}

type profile struct {
	wpmMin, wpmMax int
	errorRate      float64
}

func (d Difficulty) profile() profile {
	switch d {
	case Easy:
		return profile{wpmMin: 35, wpmMax: 55, errorRate: 0.05}
	case Hard:
		return profile{wpmMin: 70, wpmMax: 110, errorRate: 0.02}
	default:
		return profile{wpmMin: 55, wpmMax: 80, errorRate: 0.03}
	}
}

// Spawn joins n bots to room and starts a driver goroutine for each.
func Spawn(ctx context.Context, room *race.Room, n int, difficulty Difficulty, clock clockwork.Clock) {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	p := difficulty.profile()
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("BOT%04d", rand.Intn(10000))
		name := fmt.Sprintf("Bot-%d", i+1)
		if !room.Join(id, name, nil, true) {
			return
		}

		target := p.wpmMin + rand.Intn(p.wpmMax-p.wpmMin+1)
		go run(ctx, room, id, target, p.errorRate, clock)
	}
}

// run waits for the race to start, then pushes jittered updates until the bot
// finishes or the race ends.
func run(ctx context.Context, room *race.Room, id string, targetWPM int, errorRate float64, clock clockwork.Clock) {
	// wait for start
	for !room.Started() {
		if ctx.Err() != nil || room.Closed() {
			return
		}
		clock.Sleep(200 * time.Millisecond)
	}

	log.Debug().Str("room", room.Code).Str("bot", id).Int("target_wpm", targetWPM).Msg("bot racing")

	// Progress-per-second derived from the target WPM, assuming a full
	// passage is roughly 900 characters.
	pps := float64(targetWPM) / 40.0
	if pps < 0.2 {
		pps = 0.2
	}
	if pps > 2.5 {
		pps = 2.5
	}
	accuracy := int(100 - errorRate*100)
	if accuracy < 85 {
		accuracy = 85
	}

	progress := 0.0
	for room.Started() && progress < 100 {
		if ctx.Err() != nil || room.Closed() {
			return
		}

		jitter := 0.7 + rand.Float64()*0.6
		progress += pps * jitter
		if progress > 100 {
			progress = 100
		}
		wpm := int(float64(targetWPM) * (0.9 + rand.Float64()*0.2))
		if wpm < 20 {
			wpm = 20
		}
		room.Update(id, int(progress), wpm, accuracy)

		clock.Sleep(time.Duration(400+rand.Intn(400)) * time.Millisecond)
	}
}
