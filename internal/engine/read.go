package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/veilmark/chronicle/internal/assoc"
	"github.com/veilmark/chronicle/internal/detect"
	"github.com/veilmark/chronicle/internal/lexicon"
	"github.com/veilmark/chronicle/internal/registry"
	"github.com/veilmark/chronicle/internal/xref"
)

// state is every subsystem loaded against the store for one operation.
type state struct {
	lex     *lexicon.Lexicon
	reg     *registry.Registry
	tracker *assoc.Tracker
	rels    *xref.Extractor
}

func (e *Engine) loadState(ctx context.Context) (*state, error) {
	lex, err := lexicon.Load(ctx, e.st, e.cfg.Lexicon, e.logger)
	if err != nil {
		return nil, err
	}
	reg, err := registry.Load(ctx, e.st, e.logger)
	if err != nil {
		return nil, err
	}
	tracker, err := assoc.Load(ctx, e.st, lex, e.logger)
	if err != nil {
		return nil, err
	}
	rels, err := xref.LoadExtractor(ctx, e.st, lex, e.logger)
	if err != nil {
		return nil, err
	}
	return &state{lex: lex, reg: reg, tracker: tracker, rels: rels}, nil
}

func (e *Engine) saveState(ctx context.Context, s *state) {
	e.saveStep(ctx, "lexicon", func(ctx context.Context) error { return s.lex.Save(ctx, e.st) })
	e.saveStep(ctx, "associations", func(ctx context.Context) error { return s.tracker.Save(ctx, e.st) })
	e.saveStep(ctx, "relationships", func(ctx context.Context) error { return s.rels.Save(ctx, e.st) })
	e.saveStep(ctx, "registry", func(ctx context.Context) error { return s.reg.Save(ctx, e.st) })
}

// Stats counts what the store holds.
type Stats struct {
	Turn            int            `json:"turn"`
	Entities        int            `json:"entities"`
	ByType          map[string]int `json:"by_type"`
	Lists           int            `json:"lists"`
	ListWords       int            `json:"list_words"`
	Candidates      int            `json:"candidates"`
	BlacklistWords  int            `json:"blacklist_words"`
	Roles           int            `json:"roles"`
	Aliases         int            `json:"aliases"`
	TrackedEntities int            `json:"tracked_entities"`
	Relations       int            `json:"relations"`
	HistoryTurns    int            `json:"history_turns"`
}

// Stats assembles store-wide counters.
func (e *Engine) Stats(ctx context.Context) (*Stats, error) {
	s, err := e.loadState(ctx)
	if err != nil {
		return nil, err
	}

	st := &Stats{
		Turn:            s.reg.Turn(),
		Entities:        s.reg.Count(),
		ByType:          make(map[string]int),
		Candidates:      len(s.lex.Candidates("")),
		BlacklistWords:  len(s.lex.BlacklistEntries()),
		Roles:           len(s.lex.Roles()),
		Aliases:         len(s.lex.Aliases()),
		TrackedEntities: len(s.tracker.Entities()),
		Relations:       s.rels.Count(),
		HistoryTurns:    len(s.reg.History(0)),
	}
	for _, name := range s.lex.ListNames() {
		st.Lists++
		st.ListWords += len(s.lex.Words(name))
	}
	for _, ent := range s.reg.Entities() {
		st.ByType[string(ent.Type)]++
	}
	return st, nil
}

// EntityList returns registered entities, optionally filtered by type.
func (e *Engine) EntityList(ctx context.Context, typeFilter string) ([]registry.Entity, error) {
	s, err := e.loadState(ctx)
	if err != nil {
		return nil, err
	}
	if typeFilter == "" {
		return s.reg.Entities(), nil
	}
	typ := detect.ParseType(typeFilter)
	if typ == detect.Unknown && !strings.EqualFold(typeFilter, "unknown") {
		return nil, fmt.Errorf("unknown entity type: %s", typeFilter)
	}
	return s.reg.ByType(typ), nil
}

// EntityDetail is the cross-system view of one registered name.
type EntityDetail struct {
	Entity       registry.Entity     `json:"entity"`
	Aliases      []string            `json:"aliases,omitempty"`
	Associations []assoc.WordStat    `json:"associations,omitempty"`
	Relations    []xref.Relationship `json:"relations,omitempty"`
}

// EntityDetail looks one name up across the registry, associations, and
// relations. Alias forms resolve to their primary first.
func (e *Engine) EntityDetail(ctx context.Context, name string) (*EntityDetail, error) {
	s, err := e.loadState(ctx)
	if err != nil {
		return nil, err
	}
	ent, ok := s.reg.Get(s.lex.CanonicalName(name))
	if !ok {
		return nil, fmt.Errorf("unknown entity: %s", name)
	}
	d := &EntityDetail{
		Entity:       ent,
		Associations: s.tracker.Words(ent.Type, ent.Name),
		Relations:    s.rels.Relations(ent.Name),
	}
	for primary, alts := range s.lex.Aliases() {
		if strings.EqualFold(primary, ent.Name) {
			d.Aliases = append(d.Aliases, alts...)
		}
	}
	return d, nil
}

// HistoryList returns the most recent n turn snapshots.
func (e *Engine) HistoryList(ctx context.Context, n int) ([]registry.TurnSnapshot, error) {
	s, err := e.loadState(ctx)
	if err != nil {
		return nil, err
	}
	return s.reg.History(n), nil
}
