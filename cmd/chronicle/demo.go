package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// demoTurns is a short narrative that exercises dialogue and action
// detection, typed place and object patterns, pronoun resolution,
// relation capture, and near-duplicate merging.
var demoTurns = []string{
	`"Stay close," said Marcus. He entered the Elven Forest at dusk.`,
	`Marcus drew the Winter Blade and smiled.`,
	`"Welcome, traveler," said Lady Selene. She carried the Dawn Banner.`,
	`Selene greeted Marcus near the old bridge.`,
	`"We ride at dawn," muttered Marcus. Marcu nodded to Selene.`,
	`"Farewell," said Selene. She returned to the Elven Forest.`,
}

func runDemo(args []string) error {
	fs := flag.NewFlagSet("demo", flag.ContinueOnError)
	dbPathFlag := fs.String("db", "", "Path to demo SQLite DB (default: temp file)")
	cleanup := fs.Bool("cleanup", false, "Delete the demo DB after completion")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if len(fs.Args()) > 0 {
		return fmt.Errorf("usage: chronicle demo [--db <path>] [--cleanup]")
	}

	dbPath := strings.TrimSpace(*dbPathFlag)
	if dbPath == "" {
		dbPath = filepath.Join(os.TempDir(), fmt.Sprintf("chronicle-demo-%d.db", time.Now().UnixNano()))
	} else {
		dbPath = expandUserPath(dbPath)
	}

	fmt.Println("🧪 Chronicle demo")
	fmt.Printf("Demo DB: %s\n\n", dbPath)

	oldDBPath := globalDBPath
	globalDBPath = dbPath
	defer func() { globalDBPath = oldDBPath }()

	fmt.Printf("Step 1/3: Process %d narrative turns\n", len(demoTurns))
	for _, text := range demoTurns {
		fmt.Printf("\n> %s\n", text)
		if err := runTurn([]string{text}); err != nil {
			if *cleanup {
				_ = cleanupDemoArtifacts(dbPath)
			}
			return fmt.Errorf("demo turn failed: %w", err)
		}
	}

	fmt.Println("\nStep 2/3: Inspect what the engine learned")
	fmt.Println("\nEntities:")
	if err := runEntities(nil); err != nil {
		return fmt.Errorf("demo entities failed: %w", err)
	}
	fmt.Println("\nMarcus in detail:")
	if err := runEntity([]string{"Marcus"}); err != nil {
		return fmt.Errorf("demo entity failed: %w", err)
	}

	fmt.Println("\nStep 3/3: Store-wide counters")
	if err := runStats(nil); err != nil {
		return fmt.Errorf("demo stats failed: %w", err)
	}

	fmt.Println("\n✅ Demo complete.")
	fmt.Println("Your turn:")
	fmt.Printf("  chronicle --db %s turn '\"Onward,\" said Marcus.'\n", dbPath)
	fmt.Printf("  chronicle --db %s entity Selene\n", dbPath)
	fmt.Printf("  chronicle --db %s command /history 3\n", dbPath)
	if *cleanup {
		if err := cleanupDemoArtifacts(dbPath); err != nil {
			return fmt.Errorf("demo cleanup failed: %w", err)
		}
		fmt.Println("\nTemporary demo DB cleaned up.")
	} else {
		fmt.Printf("\nDemo DB kept at %s (use --cleanup to auto-delete next run).\n", dbPath)
	}

	return nil
}

func cleanupDemoArtifacts(dbPath string) error {
	paths := []string{dbPath, dbPath + "-wal", dbPath + "-shm"}
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}
