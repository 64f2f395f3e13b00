// Package engine wires the subsystems into the per-turn pipeline and the
// operator command surface. One Engine serves one store; all state lives
// in the store's documents, loaded at the start of each operation and
// saved at its end.
package engine

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/veilmark/chronicle/internal/detect"
	"github.com/veilmark/chronicle/internal/lexicon"
	"github.com/veilmark/chronicle/internal/store"
)

// Hook identifiers. Only the output hook runs the pipeline and persists;
// the input hook answers slash commands; anything else passes through.
const (
	HookInput  = "input"
	HookOutput = "output"
)

// Config bundles the engine thresholds.
type Config struct {
	// MinScore is the ensemble floor below which a detection is dropped.
	MinScore float64

	// Lexicon carries the promotion and blacklist thresholds.
	Lexicon lexicon.Config
}

// DefaultConfig returns the recommended thresholds.
func DefaultConfig() Config {
	return Config{
		MinScore: 0.5,
		Lexicon:  lexicon.DefaultConfig(),
	}
}

// Engine runs turns and commands against one store.
type Engine struct {
	st      store.Store
	cfg     Config
	logger  *zap.Logger
	builder detect.Builder
}

// New creates an engine. Zero config fields fall back to defaults; a nil
// logger disables logging.
func New(st store.Store, cfg Config, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MinScore <= 0 {
		cfg.MinScore = DefaultConfig().MinScore
	}
	if cfg.Lexicon == (lexicon.Config{}) {
		cfg.Lexicon = lexicon.DefaultConfig()
	}
	return &Engine{st: st, cfg: cfg, logger: logger}
}

// Process handles one hook invocation and always returns text for the
// caller to use: the output hook analyzes and persists but never rewrites,
// the input hook answers slash commands in place, and unknown hooks pass
// through. A panic anywhere inside comes back as the original text.
func (e *Engine) Process(ctx context.Context, hook, text string) (out string) {
	out = text
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("hook processing panicked",
				zap.String("hook", hook), zap.Any("panic", r))
			out = text
		}
	}()

	switch hook {
	case HookOutput:
		if _, err := e.Turn(ctx, text); err != nil {
			e.logger.Warn("turn processing failed", zap.Error(err))
		}
	case HookInput:
		if reply, handled := e.Command(ctx, text); handled {
			out = reply
		}
	}
	return out
}

// guard runs one pipeline sub-step, swallowing a panic so the rest of the
// turn still happens with partial results.
func (e *Engine) guard(step string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("pipeline step failed",
				zap.String("step", step), zap.Any("panic", r))
		}
	}()
	fn()
}

// saveStep persists one subsystem, logging instead of failing so one bad
// write never loses the others.
func (e *Engine) saveStep(ctx context.Context, name string, fn func(context.Context) error) {
	if err := fn(ctx); err != nil {
		e.logger.Warn("save failed", zap.String("document", name), zap.Error(err))
	}
}

func joinArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}
