// Package config resolves runtime settings from the config file,
// environment variables, and CLI flags, in that order. Every resolved
// value remembers where it came from so /stats and support bundles can
// say why a knob has the value it has.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/veilmark/chronicle/internal/lexicon"
)

type ValueSource string

const (
	SourceUnknown ValueSource = "unknown"
	SourceConfig  ValueSource = "config"
	SourceEnv     ValueSource = "env"
	SourceCLI     ValueSource = "cli"
	SourceDefault ValueSource = "default"
)

// ResolvedValue is one setting with its provenance.
type ResolvedValue struct {
	Value  string      `json:"value"`
	Source ValueSource `json:"source"`
	From   string      `json:"from,omitempty"`
}

// ResolveOptions carries the CLI-provided overrides into resolution.
type ResolveOptions struct {
	ConfigPath  string
	CLIDBPath   string
	CLIMinScore string
	CLIDebug    string
}

// ResolvedConfig is the full resolved setting set.
type ResolvedConfig struct {
	ConfigPath string `json:"config_path"`

	DBPath   ResolvedValue `json:"db_path"`
	Debug    ResolvedValue `json:"debug"`
	MinScore ResolvedValue `json:"min_score"`

	PromoteOccurrences  ResolvedValue `json:"promote_occurrences"`
	PromoteConfidence   ResolvedValue `json:"promote_confidence"`
	PromoteContexts     ResolvedValue `json:"promote_contexts"`
	BlacklistConfidence ResolvedValue `json:"blacklist_confidence"`
}

// fileConfig mirrors the YAML layout. Pointer fields distinguish an
// explicit zero from an absent key.
type fileConfig struct {
	DBPath    string `yaml:"db_path"`
	Debug     *bool  `yaml:"debug"`
	Detection struct {
		MinScore *float64 `yaml:"min_score"`
	} `yaml:"detection"`
	Learning struct {
		PromoteOccurrences  *int     `yaml:"promote_occurrences"`
		PromoteConfidence   *float64 `yaml:"promote_confidence"`
		PromoteContexts     *int     `yaml:"promote_contexts"`
		BlacklistConfidence *float64 `yaml:"blacklist_confidence"`
	} `yaml:"learning"`
}

const defaultMinScore = 0.5

// DefaultConfigPath is ~/.chronicle/config.yaml.
func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".chronicle", "config.yaml")
}

// DefaultDBPath is ~/.chronicle/chronicle.db.
func DefaultDBPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".chronicle", "chronicle.db")
}

// ResolveConfig builds the effective settings. A missing config file is
// fine; a malformed one is an error.
func ResolveConfig(opts ResolveOptions) (ResolvedConfig, error) {
	path := strings.TrimSpace(opts.ConfigPath)
	if path == "" {
		path = DefaultConfigPath()
	}
	out := ResolvedConfig{ConfigPath: path}

	lc := lexicon.DefaultConfig()
	applyDefault(&out.DBPath, DefaultDBPath())
	applyDefault(&out.Debug, "false")
	applyDefault(&out.MinScore, formatFloat(defaultMinScore))
	applyDefault(&out.PromoteOccurrences, strconv.Itoa(lc.PromoteOccurrences))
	applyDefault(&out.PromoteConfidence, formatFloat(lc.PromoteConfidence))
	applyDefault(&out.PromoteContexts, strconv.Itoa(lc.PromoteContexts))
	applyDefault(&out.BlacklistConfidence, formatFloat(lc.BlacklistConfidence))

	cfg, err := loadConfig(path)
	if err != nil {
		return out, err
	}
	if cfg != nil {
		apply(&out.DBPath, cfg.DBPath, SourceConfig, path)
		if cfg.Debug != nil {
			apply(&out.Debug, strconv.FormatBool(*cfg.Debug), SourceConfig, path)
		}
		if cfg.Detection.MinScore != nil {
			apply(&out.MinScore, formatFloat(*cfg.Detection.MinScore), SourceConfig, path)
		}
		if cfg.Learning.PromoteOccurrences != nil {
			apply(&out.PromoteOccurrences, strconv.Itoa(*cfg.Learning.PromoteOccurrences), SourceConfig, path)
		}
		if cfg.Learning.PromoteConfidence != nil {
			apply(&out.PromoteConfidence, formatFloat(*cfg.Learning.PromoteConfidence), SourceConfig, path)
		}
		if cfg.Learning.PromoteContexts != nil {
			apply(&out.PromoteContexts, strconv.Itoa(*cfg.Learning.PromoteContexts), SourceConfig, path)
		}
		if cfg.Learning.BlacklistConfidence != nil {
			apply(&out.BlacklistConfidence, formatFloat(*cfg.Learning.BlacklistConfidence), SourceConfig, path)
		}
	}

	applyEnv(&out.DBPath, "CHRONICLE_DB")
	applyEnv(&out.DBPath, "CHRONICLE_DB_PATH")
	applyEnv(&out.Debug, "CHRONICLE_DEBUG")
	applyEnv(&out.MinScore, "CHRONICLE_MIN_SCORE")

	apply(&out.DBPath, opts.CLIDBPath, SourceCLI, "--db")
	apply(&out.MinScore, opts.CLIMinScore, SourceCLI, "--min-score")
	apply(&out.Debug, opts.CLIDebug, SourceCLI, "--debug")

	if out.DBPath.Value != "" {
		out.DBPath.Value = expandUserPath(out.DBPath.Value)
	}
	return out, nil
}

// DebugEnabled interprets the resolved debug flag.
func (r ResolvedConfig) DebugEnabled() bool {
	switch strings.ToLower(strings.TrimSpace(r.Debug.Value)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// MinScoreValue parses and validates the resolved ensemble floor.
func (r ResolvedConfig) MinScoreValue() (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(r.MinScore.Value), 64)
	if err != nil {
		return 0, fmt.Errorf("parsing min score %q: %w", r.MinScore.Value, err)
	}
	if f <= 0 || f > 1 {
		return 0, fmt.Errorf("min score out of range (0, 1]: %v", f)
	}
	return f, nil
}

// LexiconConfig parses the resolved learning thresholds.
func (r ResolvedConfig) LexiconConfig() (lexicon.Config, error) {
	var out lexicon.Config
	var err error
	if out.PromoteOccurrences, err = parseCount("promote occurrences", r.PromoteOccurrences); err != nil {
		return out, err
	}
	if out.PromoteContexts, err = parseCount("promote contexts", r.PromoteContexts); err != nil {
		return out, err
	}
	if out.PromoteConfidence, err = parseRatio("promote confidence", r.PromoteConfidence); err != nil {
		return out, err
	}
	if out.BlacklistConfidence, err = parseRatio("blacklist confidence", r.BlacklistConfidence); err != nil {
		return out, err
	}
	return out, nil
}

func parseCount(label string, v ResolvedValue) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(v.Value))
	if err != nil {
		return 0, fmt.Errorf("parsing %s %q: %w", label, v.Value, err)
	}
	if n < 1 {
		return 0, fmt.Errorf("%s must be at least 1: %d", label, n)
	}
	return n, nil
}

func parseRatio(label string, v ResolvedValue) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(v.Value), 64)
	if err != nil {
		return 0, fmt.Errorf("parsing %s %q: %w", label, v.Value, err)
	}
	if f <= 0 || f > 1 {
		return 0, fmt.Errorf("%s out of range (0, 1]: %v", label, f)
	}
	return f, nil
}

func apply(dst *ResolvedValue, raw string, source ValueSource, from string) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return
	}
	*dst = ResolvedValue{Value: v, Source: source, From: from}
}

func applyDefault(dst *ResolvedValue, v string) {
	*dst = ResolvedValue{Value: v, Source: SourceDefault, From: "built-in default"}
}

func applyEnv(dst *ResolvedValue, envKey string) {
	if v := strings.TrimSpace(os.Getenv(envKey)); v != "" {
		*dst = ResolvedValue{Value: v, Source: SourceEnv, From: envKey}
	}
}

func loadConfig(path string) (*fileConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var cfg fileConfig
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &cfg, nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func expandUserPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
