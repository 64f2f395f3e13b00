// Package registry is the persistent record of every entity the system has
// accepted, plus the turn counter and a bounded history of recent turns.
// Entities are never deleted automatically; only an explicit merge removes
// one, and then only by folding it into another.
package registry

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/veilmark/chronicle/internal/detect"
	"github.com/veilmark/chronicle/internal/store"
)

// Store documents owned by the registry.
const (
	DocRegistry    = "entity-registry"
	DocTurnHistory = "turn-history"
)

const (
	maxSnapshots = 20

	// FrequencyWindow is how many recent turns the appearance-frequency
	// signal reads.
	FrequencyWindow = 10
)

// Entity is one registered name.
type Entity struct {
	Name        string
	Type        detect.Type
	Confidence  float64
	Occurrences int
	Gender      string
}

// SnapshotEntry is one entity's appearance in one turn.
type SnapshotEntry struct {
	Name       string
	Type       detect.Type
	Confidence float64
}

// TurnSnapshot records what one turn accepted.
type TurnSnapshot struct {
	Turn    int
	Entries []SnapshotEntry
}

// Registry holds entities and turn history for one pass. Load fresh each
// turn; Save writes back whatever changed.
type Registry struct {
	logger    *zap.Logger
	caser     cases.Caser
	entities  map[string]*Entity
	turn      int
	history   []TurnSnapshot
	dirtyReg  bool
	dirtyHist bool
}

// Load reads the registry and turn history documents. Missing documents
// degrade to an empty registry at turn zero.
func Load(ctx context.Context, st store.Store, logger *zap.Logger) (*Registry, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Registry{
		logger:   logger,
		caser:    cases.Title(language.English),
		entities: make(map[string]*Entity),
	}

	doc, err := st.Get(ctx, DocRegistry)
	if err != nil {
		return nil, fmt.Errorf("loading entity registry: %w", err)
	}
	if sec := doc.Section("Entities"); sec != nil {
		for _, f := range sec.Fields {
			attrs := store.ParseAttrs(f.Value.String())
			e := &Entity{
				Name:        f.Key,
				Type:        detect.ParseType(attrs["type"].String()),
				Confidence:  clamp01(attrs["confidence"].AsFloat()),
				Occurrences: int(attrs["occurrences"].AsInt()),
				Gender:      attrs["gender"].String(),
			}
			if e.Name != "" {
				r.entities[strings.ToLower(e.Name)] = e
			}
		}
	}

	hist, err := st.Get(ctx, DocTurnHistory)
	if err != nil {
		return nil, fmt.Errorf("loading turn history: %w", err)
	}
	for _, sec := range hist.Sections {
		if sec.Name == "Meta" {
			if v, ok := sec.Get("turn"); ok {
				r.turn = int(v.AsInt())
			}
			continue
		}
		n, err := strconv.Atoi(strings.TrimPrefix(sec.Name, "Turn "))
		if err != nil {
			continue
		}
		snap := TurnSnapshot{Turn: n}
		for _, f := range sec.Fields {
			attrs := store.ParseAttrs(f.Value.String())
			snap.Entries = append(snap.Entries, SnapshotEntry{
				Name:       f.Key,
				Type:       detect.ParseType(attrs["type"].String()),
				Confidence: clamp01(attrs["confidence"].AsFloat()),
			})
		}
		r.history = append(r.history, snap)
	}
	sort.Slice(r.history, func(i, j int) bool { return r.history[i].Turn < r.history[j].Turn })
	r.trimHistory()

	return r, nil
}

// Upsert registers a detection outcome: new names are created, known names
// keep their maximum confidence and accumulate occurrences. A known type
// always wins over UNKNOWN. Returns the stored state.
func (r *Registry) Upsert(name string, typ detect.Type, confidence float64, n int) Entity {
	confidence = clamp01(confidence)
	key := strings.ToLower(name)
	e := r.entities[key]
	if e == nil {
		e = &Entity{
			Name:        r.displayName(name),
			Type:        typ,
			Confidence:  confidence,
			Occurrences: n,
		}
		r.entities[key] = e
	} else {
		if confidence > e.Confidence {
			e.Confidence = confidence
		}
		e.Occurrences += n
		if e.Type == detect.Unknown && typ != detect.Unknown {
			e.Type = typ
		}
	}
	r.dirtyReg = true
	return *e
}

// SetGender records a gender for the pronoun resolver. Blank input and
// unknown names change nothing.
func (r *Registry) SetGender(name, gender string) bool {
	if gender == "" {
		return false
	}
	e := r.entities[strings.ToLower(name)]
	if e == nil || e.Gender == gender {
		return false
	}
	e.Gender = gender
	r.dirtyReg = true
	return true
}

// Get looks a name up case-insensitively.
func (r *Registry) Get(name string) (Entity, bool) {
	e := r.entities[strings.ToLower(name)]
	if e == nil {
		return Entity{}, false
	}
	return *e, true
}

// Entities returns every entity sorted by name.
func (r *Registry) Entities() []Entity {
	out := make([]Entity, 0, len(r.entities))
	for _, e := range r.entities {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ByType returns entities of one type sorted by name.
func (r *Registry) ByType(typ detect.Type) []Entity {
	var out []Entity
	for _, e := range r.Entities() {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

// Count returns how many entities are registered.
func (r *Registry) Count() int { return len(r.entities) }

// Merge folds one entity into another: maximum confidence, summed
// occurrences, the canonical name and any known type or gender survive.
// The source entity is removed.
func (r *Registry) Merge(from, into string) bool {
	fromKey, intoKey := strings.ToLower(from), strings.ToLower(into)
	src := r.entities[fromKey]
	dst := r.entities[intoKey]
	if src == nil || dst == nil || fromKey == intoKey {
		return false
	}
	if src.Confidence > dst.Confidence {
		dst.Confidence = src.Confidence
	}
	dst.Occurrences += src.Occurrences
	if dst.Type == detect.Unknown && src.Type != detect.Unknown {
		dst.Type = src.Type
	}
	if dst.Gender == "" {
		dst.Gender = src.Gender
	}
	delete(r.entities, fromKey)
	r.dirtyReg = true
	r.logger.Debug("merged entities", zap.String("from", from), zap.String("into", into))
	return true
}

// Turn returns the current turn number.
func (r *Registry) Turn() int { return r.turn }

// AdvanceTurn starts a new turn and returns its number.
func (r *Registry) AdvanceTurn() int {
	r.turn++
	r.dirtyHist = true
	return r.turn
}

// RecordSnapshot appends this turn's accepted entities to the history ring.
func (r *Registry) RecordSnapshot(entries []SnapshotEntry) {
	r.history = append(r.history, TurnSnapshot{Turn: r.turn, Entries: entries})
	r.trimHistory()
	r.dirtyHist = true
}

// History returns the most recent n snapshots in turn order.
func (r *Registry) History(n int) []TurnSnapshot {
	if n <= 0 || n > len(r.history) {
		n = len(r.history)
	}
	out := make([]TurnSnapshot, n)
	copy(out, r.history[len(r.history)-n:])
	return out
}

// Frequency scores how often a name appeared over the last window turns,
// in [0,1].
func (r *Registry) Frequency(name string, window int) float64 {
	if window <= 0 {
		window = FrequencyWindow
	}
	key := strings.ToLower(name)
	appearances := 0
	for _, snap := range r.History(window) {
		for _, e := range snap.Entries {
			if strings.ToLower(e.Name) == key {
				appearances++
				break
			}
		}
	}
	f := float64(appearances) / float64(window)
	if f > 1 {
		f = 1
	}
	return f
}

// HasHistory reports whether any snapshots exist yet.
func (r *Registry) HasHistory() bool { return len(r.history) > 0 }

func (r *Registry) trimHistory() {
	if len(r.history) > maxSnapshots {
		r.history = r.history[len(r.history)-maxSnapshots:]
	}
}

// displayName title-cases a name that arrived fully lowercased; cased input
// is stored as given.
func (r *Registry) displayName(name string) string {
	for _, ru := range name {
		if unicode.IsUpper(ru) {
			return name
		}
	}
	return r.caser.String(name)
}

// Save writes whichever documents changed.
func (r *Registry) Save(ctx context.Context, st store.Store) error {
	if r.dirtyReg {
		doc := store.NewDocument()
		sec := doc.EnsureSection("Entities")
		for _, e := range r.Entities() {
			attrs := []store.Attr{
				{Key: "type", Value: store.StringValue(string(e.Type))},
				{Key: "confidence", Value: store.FloatValue(e.Confidence)},
				{Key: "occurrences", Value: store.IntValue(int64(e.Occurrences))},
			}
			if e.Gender != "" {
				attrs = append(attrs, store.Attr{Key: "gender", Value: store.StringValue(e.Gender)})
			}
			sec.Set(e.Name, store.StringValue(store.FormatAttrs(attrs)))
		}
		if err := st.Put(ctx, DocRegistry, doc); err != nil {
			return fmt.Errorf("saving entity registry: %w", err)
		}
		r.dirtyReg = false
	}

	if r.dirtyHist {
		doc := store.NewDocument()
		doc.EnsureSection("Meta").Set("turn", store.IntValue(int64(r.turn)))
		for _, snap := range r.history {
			sec := doc.EnsureSection(fmt.Sprintf("Turn %d", snap.Turn))
			for _, e := range snap.Entries {
				sec.Set(e.Name, store.StringValue(store.FormatAttrs([]store.Attr{
					{Key: "type", Value: store.StringValue(string(e.Type))},
					{Key: "confidence", Value: store.FloatValue(e.Confidence)},
				})))
			}
		}
		if err := st.Put(ctx, DocTurnHistory, doc); err != nil {
			return fmt.Errorf("saving turn history: %w", err)
		}
		r.dirtyHist = false
	}

	r.logger.Debug("saved registry", zap.Int("entities", len(r.entities)), zap.Int("turn", r.turn))
	return nil
}

func clamp01(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	default:
		return f
	}
}
