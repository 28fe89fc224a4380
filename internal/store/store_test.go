package store

import (
	"context"
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "racer.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveAndListTests(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, r := range []TestResult{
		{Name: "alice", WPM: 60, Accuracy: 97, DurationSec: 60, CharsTyped: 300},
		{Name: "alice", WPM: 72, Accuracy: 95, DurationSec: 45, CharsTyped: 270},
		{Name: "bob", WPM: 44, Accuracy: 99, DurationSec: 90, CharsTyped: 330},
	} {
		if err := s.SaveTest(ctx, r); err != nil {
			t.Fatalf("save test: %v", err)
		}
	}

	tests, err := s.RecentTests(ctx, "alice", 10)
	if err != nil {
		t.Fatalf("recent tests: %v", err)
	}
	if len(tests) != 2 {
		t.Fatalf("expected 2 tests for alice, got %d", len(tests))
	}
	for _, r := range tests {
		if r.Name != "alice" {
			t.Fatalf("foreign row in alice history: %+v", r)
		}
	}
}

func TestLeaderboardBestPerPlayer(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, r := range []TestResult{
		{Name: "alice", WPM: 60, Accuracy: 97},
		{Name: "alice", WPM: 82, Accuracy: 92},
		{Name: "bob", WPM: 70, Accuracy: 99},
		{Name: "carol", WPM: 90, Accuracy: 96},
	} {
		if err := s.SaveTest(ctx, r); err != nil {
			t.Fatalf("save test: %v", err)
		}
	}

	top, err := s.Leaderboard(ctx, 2)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(top) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(top))
	}
	if top[0].Name != "carol" || top[0].BestWPM != 90 {
		t.Fatalf("unexpected leader: %+v", top[0])
	}
	if top[1].Name != "alice" || top[1].BestWPM != 82 {
		t.Fatalf("expected alice's best run, got %+v", top[1])
	}
}

func TestRaceCodes(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	exists, err := s.RaceExists(ctx, "ABC123")
	if err != nil {
		t.Fatalf("race exists: %v", err)
	}
	if exists {
		t.Fatal("unknown race code reported as existing")
	}

	if err := s.CreateRace(ctx, "ABC123", "alice"); err != nil {
		t.Fatalf("create race: %v", err)
	}
	exists, err = s.RaceExists(ctx, "ABC123")
	if err != nil {
		t.Fatalf("race exists: %v", err)
	}
	if !exists {
		t.Fatal("created race code not found")
	}

	if err := s.CreateRace(ctx, "ABC123", "bob"); err == nil {
		t.Fatal("duplicate race code should be rejected")
	}
}
