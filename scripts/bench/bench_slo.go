// bench_slo.go — SLO benchmark for the turn pipeline and read surfaces.
// Run: go run ./scripts/bench [--db path] [--turns N] [--iterations N]
//
// Seeds a synthetic saga, then generates a JSON report with p50/p95/p99
// latencies for turn processing, entity listing, entity detail, and stats.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/veilmark/chronicle/internal/engine"
	"github.com/veilmark/chronicle/internal/store"
)

type BenchResult struct {
	Command    string  `json:"command"`
	Iterations int     `json:"iterations"`
	P50Ms      float64 `json:"p50_ms"`
	P95Ms      float64 `json:"p95_ms"`
	P99Ms      float64 `json:"p99_ms"`
	MinMs      float64 `json:"min_ms"`
	MaxMs      float64 `json:"max_ms"`
	MeanMs     float64 `json:"mean_ms"`
	Pass       bool    `json:"pass"`
	SLOMs      float64 `json:"slo_ms"`
}

type BenchReport struct {
	GeneratedAt string        `json:"generated_at"`
	DBPath      string        `json:"db_path"`
	SeedTurns   int           `json:"seed_turns"`
	Entities    int           `json:"entities"`
	Relations   int           `json:"relations"`
	Results     []BenchResult `json:"results"`
	AllPass     bool          `json:"all_pass"`
}

func main() {
	dbPath := flag.String("db", "", "Path to benchmark DB (default: temp file, removed afterwards)")
	seedTurns := flag.Int("turns", 120, "Number of synthetic turns to seed before measuring")
	iterations := flag.Int("iterations", 20, "Number of iterations per benchmark")
	seed := flag.Int64("seed", 7, "RNG seed for the synthetic saga")
	outFile := flag.String("out", "", "Output JSON file (default: stdout)")
	flag.Parse()

	cleanup := false
	if *dbPath == "" {
		*dbPath = filepath.Join(os.TempDir(), fmt.Sprintf("chronicle-bench-%d.db", time.Now().UnixNano()))
		cleanup = true
	}

	s, err := store.NewStore(store.StoreConfig{DBPath: *dbPath})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening store: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		s.Close()
		if cleanup {
			for _, p := range []string{*dbPath, *dbPath + "-wal", *dbPath + "-shm"} {
				os.Remove(p)
			}
		}
	}()

	ctx := context.Background()
	eng := engine.New(s, engine.DefaultConfig(), nil)
	rng := rand.New(rand.NewSource(*seed))

	fmt.Fprintf(os.Stderr, "Chronicle SLO Benchmark\n")
	fmt.Fprintf(os.Stderr, "  DB: %s\n", *dbPath)
	fmt.Fprintf(os.Stderr, "  Seed turns: %d, iterations: %d\n\n", *seedTurns, *iterations)

	for i := 0; i < *seedTurns; i++ {
		if _, err := eng.Turn(ctx, sagaTurn(rng)); err != nil {
			fmt.Fprintf(os.Stderr, "Error seeding turn %d: %v\n", i+1, err)
			os.Exit(1)
		}
	}

	stats, err := eng.Stats(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error getting stats: %v\n", err)
		os.Exit(1)
	}

	report := BenchReport{
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		DBPath:      *dbPath,
		SeedTurns:   *seedTurns,
		Entities:    stats.Entities,
		Relations:   stats.Relations,
		AllPass:     true,
	}

	// 1. Full turn pipeline over fresh text
	turnTimes := benchmarkTurns(ctx, eng, rng, *iterations)
	add(&report, computeResult("turn_pipeline", turnTimes, 250))

	// 2. Entity listing via the command surface
	listTimes := benchmarkCommand(ctx, eng, "/entities", *iterations)
	add(&report, computeResult("entities_list", listTimes, 100))

	// 3. Entity detail for a hot name
	detailTimes := benchmarkDetail(ctx, eng, *iterations)
	add(&report, computeResult("entity_detail", detailTimes, 100))

	// 4. Store-wide counters
	statsTimes := benchmarkStats(ctx, eng, *iterations)
	add(&report, computeResult("stats", statsTimes, 100))

	for _, r := range report.Results {
		status := "✅ PASS"
		if !r.Pass {
			status = "❌ FAIL"
		}
		fmt.Fprintf(os.Stderr, "  %s: p50=%.1fms p95=%.1fms p99=%.1fms (SLO: %.0fms) %s\n",
			r.Command, r.P50Ms, r.P95Ms, r.P99Ms, r.SLOMs, status)
	}
	if report.AllPass {
		fmt.Fprintf(os.Stderr, "\n✅ All SLOs met\n")
	} else {
		fmt.Fprintf(os.Stderr, "\n❌ Some SLOs missed\n")
	}

	jsonBytes, _ := json.MarshalIndent(report, "", "  ")
	if *outFile != "" {
		os.WriteFile(*outFile, jsonBytes, 0644)
		fmt.Fprintf(os.Stderr, "\nReport written to %s\n", *outFile)
	} else {
		fmt.Println(string(jsonBytes))
	}
}

func add(report *BenchReport, r BenchResult) {
	report.Results = append(report.Results, r)
	if !r.Pass {
		report.AllPass = false
	}
}

func benchmarkTurns(ctx context.Context, eng *engine.Engine, rng *rand.Rand, iterations int) []float64 {
	var times []float64
	for i := 0; i < iterations; i++ {
		text := sagaTurn(rng)
		start := time.Now()
		_, _ = eng.Turn(ctx, text)
		times = append(times, float64(time.Since(start).Microseconds())/1000.0)
	}
	return times
}

func benchmarkCommand(ctx context.Context, eng *engine.Engine, line string, iterations int) []float64 {
	var times []float64
	for i := 0; i < iterations; i++ {
		start := time.Now()
		_, _ = eng.Command(ctx, line)
		times = append(times, float64(time.Since(start).Microseconds())/1000.0)
	}
	return times
}

func benchmarkDetail(ctx context.Context, eng *engine.Engine, iterations int) []float64 {
	var times []float64
	for i := 0; i < iterations; i++ {
		name := sagaPeople[i%len(sagaPeople)]
		start := time.Now()
		_, _ = eng.EntityDetail(ctx, name)
		times = append(times, float64(time.Since(start).Microseconds())/1000.0)
	}
	return times
}

func benchmarkStats(ctx context.Context, eng *engine.Engine, iterations int) []float64 {
	var times []float64
	for i := 0; i < iterations; i++ {
		start := time.Now()
		_, _ = eng.Stats(ctx)
		times = append(times, float64(time.Since(start).Microseconds())/1000.0)
	}
	return times
}

func computeResult(name string, times []float64, sloMs float64) BenchResult {
	sort.Float64s(times)
	n := len(times)
	if n == 0 {
		return BenchResult{Command: name, SLOMs: sloMs}
	}

	sum := 0.0
	for _, t := range times {
		sum += t
	}

	p95 := times[min(int(float64(n)*0.95), n-1)]
	return BenchResult{
		Command:    name,
		Iterations: n,
		P50Ms:      times[n/2],
		P95Ms:      p95,
		P99Ms:      times[min(int(float64(n)*0.99), n-1)],
		MinMs:      times[0],
		MaxMs:      times[n-1],
		MeanMs:     sum / float64(n),
		SLOMs:      sloMs,
		Pass:       p95 <= sloMs,
	}
}
