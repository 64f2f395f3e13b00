package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/veilmark/chronicle/internal/config"
	"github.com/veilmark/chronicle/internal/engine"
	"github.com/veilmark/chronicle/internal/store"
)

const version = "0.3.0"

// Global flags, stripped before subcommand dispatch.
var (
	globalDBPath     string
	globalConfigPath string
	globalMinScore   string
	globalDebug      bool
)

func main() {
	args := parseGlobalFlags(os.Args[1:])

	if len(args) < 1 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch args[0] {
	case "turn":
		err = runTurn(args[1:])
	case "command", "cmd":
		err = runSlash(args[1:])
	case "entities":
		err = runEntities(args[1:])
	case "entity":
		err = runEntity(args[1:])
	case "lists":
		err = runLists(args[1:])
	case "candidates":
		err = runCandidates(args[1:])
	case "history":
		err = runHistory(args[1:])
	case "stats":
		err = runStats(args[1:])
	case "config":
		err = runConfig(args[1:])
	case "demo":
		err = runDemo(args[1:])
	case "mcp":
		err = runMCP(args[1:])
	case "version", "--version", "-v":
		fmt.Printf("chronicle %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", args[0])
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// parseGlobalFlags strips flags that apply to every subcommand and
// returns the remaining args untouched, in order.
func parseGlobalFlags(args []string) []string {
	var rest []string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--db" && i+1 < len(args):
			i++
			globalDBPath = args[i]
		case strings.HasPrefix(arg, "--db="):
			globalDBPath = strings.TrimPrefix(arg, "--db=")
		case arg == "--config" && i+1 < len(args):
			i++
			globalConfigPath = args[i]
		case strings.HasPrefix(arg, "--config="):
			globalConfigPath = strings.TrimPrefix(arg, "--config=")
		case arg == "--min-score" && i+1 < len(args):
			i++
			globalMinScore = args[i]
		case strings.HasPrefix(arg, "--min-score="):
			globalMinScore = strings.TrimPrefix(arg, "--min-score=")
		case arg == "--debug":
			globalDebug = true
		default:
			rest = append(rest, arg)
		}
	}
	return rest
}

// resolveSettings folds defaults, config file, environment, and the
// global flags into one resolved view.
func resolveSettings() (config.ResolvedConfig, error) {
	cliDebug := ""
	if globalDebug {
		cliDebug = "true"
	}
	return config.ResolveConfig(config.ResolveOptions{
		ConfigPath:  globalConfigPath,
		CLIDBPath:   globalDBPath,
		CLIMinScore: globalMinScore,
		CLIDebug:    cliDebug,
	})
}

// expandUserPath expands a leading ~/ to the user's home directory.
func expandUserPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}

func newLogger(debug bool) (*zap.Logger, error) {
	if !debug {
		return zap.NewNop(), nil
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	return cfg.Build()
}

// app bundles the pieces every subcommand needs.
type app struct {
	resolved config.ResolvedConfig
	logger   *zap.Logger
	store    store.Store
	engine   *engine.Engine
}

func openApp() (*app, error) {
	resolved, err := resolveSettings()
	if err != nil {
		return nil, err
	}
	minScore, err := resolved.MinScoreValue()
	if err != nil {
		return nil, err
	}
	lexCfg, err := resolved.LexiconConfig()
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(resolved.DebugEnabled())
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}

	st, err := store.NewStore(store.StoreConfig{DBPath: resolved.DBPath.Value})
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	eng := engine.New(st, engine.Config{MinScore: minScore, Lexicon: lexCfg}, logger)
	return &app{resolved: resolved, logger: logger, store: st, engine: eng}, nil
}

func (a *app) Close() {
	a.store.Close()
	_ = a.logger.Sync()
}

func printUsage() {
	fmt.Println(`chronicle - entity tracking for narrative text

Usage:
  chronicle <command> [arguments]

Commands:
  turn <text>             Process one narrative turn (reads stdin when piped)
  command </cmd ...>      Run an operator slash command (/help lists them)
  entities [type]         List registered entities, optionally by type
  entity <name>           Show one entity with aliases, associations, relations
  lists                   Show the word lists and their sizes
  candidates [category]   Show pending learning candidates
  history [n]             Show entity snapshots for the last n turns
  stats [--json]          Show store-wide counters
  config                  Print the resolved configuration with provenance
  demo [--keep]           Run a canned narrative against a throwaway store
  mcp                     Serve the MCP tool surface over stdio
  version                 Print version
  help                    Show this help

Global flags:
  --db <path>             SQLite database path (default ~/.chronicle/chronicle.db)
  --config <path>         Config file path (default ~/.chronicle/config.yaml)
  --min-score <v>         Acceptance floor for the scoring ensemble
  --debug                 Verbose logging to stderr

Environment:
  CHRONICLE_DB            Database path (flag wins)
  CHRONICLE_MIN_SCORE     Acceptance floor
  CHRONICLE_DEBUG         1/true/yes/on to enable debug logging

Examples:
  chronicle turn '"Stay close," said Marcus.'
  cat chapter.txt | chronicle turn
  chronicle entities person
  chronicle command /blacklist add Dusk 0.9
  chronicle --db ./story.db stats --json`)
}
