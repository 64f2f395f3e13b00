// scale_test.go — scale and performance check with synthetic narrative.
// Run: go test ./scripts/bench/ -run TestScale -v
//
// Processes synthetic sagas at two tiers and reports per-tier latency and
// store growth. Correctness assertions cover the counters; latency numbers
// are informational.
package main

import (
	"context"
	"encoding/json"
	"math/rand"
	"sort"
	"testing"
	"time"

	"github.com/veilmark/chronicle/internal/engine"
	"github.com/veilmark/chronicle/internal/store"
)

type ScaleTier struct {
	Name  string `json:"name"`
	Turns int    `json:"turns"`
}

type ScaleResult struct {
	Tier      string  `json:"tier"`
	Turns     int     `json:"turns"`
	Entities  int     `json:"entities"`
	Tracked   int     `json:"tracked_entities"`
	Relations int     `json:"relations"`
	TurnP50Ms float64 `json:"turn_p50_ms"`
	TurnP95Ms float64 `json:"turn_p95_ms"`
	TurnMaxMs float64 `json:"turn_max_ms"`
	StatsMs   float64 `json:"stats_ms"`
}

var tiers = []ScaleTier{
	{"small", 40},
	{"medium", 120},
}

func TestScale(t *testing.T) {
	for _, tier := range tiers {
		t.Run(tier.Name, func(t *testing.T) {
			s, err := store.NewStore(store.StoreConfig{DBPath: ":memory:"})
			if err != nil {
				t.Fatalf("opening store: %v", err)
			}
			defer s.Close()

			ctx := context.Background()
			eng := engine.New(s, engine.DefaultConfig(), nil)
			rng := rand.New(rand.NewSource(42))

			var times []float64
			for i := 0; i < tier.Turns; i++ {
				text := sagaTurn(rng)
				start := time.Now()
				rep, err := eng.Turn(ctx, text)
				if err != nil {
					t.Fatalf("turn %d: %v", i+1, err)
				}
				times = append(times, float64(time.Since(start).Microseconds())/1000.0)
				if rep.Turn != i+1 {
					t.Fatalf("turn counter = %d, want %d", rep.Turn, i+1)
				}
			}

			stats, err := eng.Stats(ctx)
			if err != nil {
				t.Fatalf("stats: %v", err)
			}
			if stats.Turn != tier.Turns {
				t.Errorf("stats.Turn = %d, want %d", stats.Turn, tier.Turns)
			}
			if stats.Entities == 0 {
				t.Error("no entities registered after seeding")
			}
			if stats.TrackedEntities == 0 {
				t.Error("no association contexts tracked after seeding")
			}
			if stats.HistoryTurns != 20 {
				t.Errorf("stats.HistoryTurns = %d, want 20 (capped ring)", stats.HistoryTurns)
			}

			statsStart := time.Now()
			if _, err := eng.Stats(ctx); err != nil {
				t.Fatalf("stats: %v", err)
			}
			statsMs := float64(time.Since(statsStart).Microseconds()) / 1000.0

			sort.Float64s(times)
			result := ScaleResult{
				Tier:      tier.Name,
				Turns:     tier.Turns,
				Entities:  stats.Entities,
				Tracked:   stats.TrackedEntities,
				Relations: stats.Relations,
				TurnP50Ms: times[len(times)/2],
				TurnP95Ms: times[min(int(float64(len(times))*0.95), len(times)-1)],
				TurnMaxMs: times[len(times)-1],
				StatsMs:   statsMs,
			}
			b, _ := json.MarshalIndent(result, "", "  ")
			t.Logf("scale result:\n%s", b)
		})
	}
}
