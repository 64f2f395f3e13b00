package engine

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/veilmark/chronicle/internal/assoc"
	"github.com/veilmark/chronicle/internal/detect"
	"github.com/veilmark/chronicle/internal/learn"
	"github.com/veilmark/chronicle/internal/lexicon"
	"github.com/veilmark/chronicle/internal/ngram"
	"github.com/veilmark/chronicle/internal/registry"
	"github.com/veilmark/chronicle/internal/score"
	"github.com/veilmark/chronicle/internal/xref"
)

// AcceptedEntity is one detection that cleared the ensemble floor.
type AcceptedEntity struct {
	Name        string
	Type        detect.Type
	Score       float64
	Occurrences int
	New         bool
}

// TurnReport summarizes what one output-hook pass did.
type TurnReport struct {
	Turn            int
	Entities        []AcceptedEntity
	Rejections      int
	BlacklistWrites int
	Promotions      []string
	Merges          []string
	Pronouns        int
	Relations       int
}

// Turn runs the full pipeline over one narrative turn: detect, score,
// register, learn, merge, cross-reference, persist. Sub-steps are guarded
// individually, so a failure in one leaves the others' results standing.
func (e *Engine) Turn(ctx context.Context, text string) (*TurnReport, error) {
	if strings.TrimSpace(text) == "" {
		return &TurnReport{}, nil
	}

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

	report := &TurnReport{Turn: reg.AdvanceTurn()}

	var res detect.Result
	e.guard("detection", func() {
		d := detect.NewDetector(lex, e.builder.Build(lex), e.logger)
		res = d.Detect(text)
	})

	cls := ngram.NewClassifier()
	for _, ent := range reg.Entities() {
		cls.Train(ent.Type, ent.Name)
	}

	learner := learn.NewPipeline(lex, report.Turn, e.logger)
	isKnown := func(name string) bool {
		_, ok := reg.Get(lex.CanonicalName(name))
		return ok
	}

	var snapshot []registry.SnapshotEntry
	e.guard("scoring", func() {
		for _, d := range res.Detections {
			name := lex.CanonicalName(d.Name)
			typ, final := e.scoreDetection(reg, tracker, cls, lex, d, name, text)
			if final < e.cfg.MinScore {
				e.logger.Debug("detection below floor",
					zap.String("name", name), zap.Float64("score", final))
				continue
			}

			_, existed := reg.Get(name)
			ent := reg.Upsert(name, typ, final, d.Occurrences)
			if d.Title != "" {
				reg.SetGender(ent.Name, lexicon.TitleGender(d.Title))
			}
			tracker.Track(ent.Type, ent.Name, text, d.Start, d.End)
			learner.Inspect(text, d, final, isKnown)

			snapshot = append(snapshot, registry.SnapshotEntry{
				Name: ent.Name, Type: ent.Type, Confidence: final,
			})
			report.Entities = append(report.Entities, AcceptedEntity{
				Name:        ent.Name,
				Type:        ent.Type,
				Score:       final,
				Occurrences: ent.Occurrences,
				New:         !existed,
			})
		}
	})

	e.guard("rejections", func() {
		for _, rej := range res.Rejections {
			learner.RecordRejection(rej)
		}
		report.BlacklistWrites = learner.Flush()
	})
	report.Rejections = len(res.Rejections)
	report.Promotions = learner.Promoted()

	e.guard("merging", func() {
		report.Merges = mergeNearDuplicates(&state{lex: lex, reg: reg, tracker: tracker, rels: rels})
	})

	resolver := xref.NewResolver(mentionList(reg, report.Entities, text))
	e.guard("pronouns", func() {
		report.Pronouns = len(resolver.ResolveAll(text))
	})

	e.guard("relations", func() {
		lookup := func(raw string) (string, bool) {
			ent, ok := reg.Get(lex.CanonicalName(raw))
			if !ok {
				return "", false
			}
			return ent.Name, true
		}
		resolve := func(pronoun string, pos int) (string, bool) {
			m, ok := resolver.Resolve(pronoun, pos)
			if !ok {
				return "", false
			}
			return m.Name, true
		}
		report.Relations = len(rels.Extract(text, lookup, resolve))
	})

	// Merges may have renamed snapshot entries; record canonical names.
	for i := range snapshot {
		snapshot[i].Name = lex.CanonicalName(snapshot[i].Name)
	}
	reg.RecordSnapshot(snapshot)

	e.saveStep(ctx, "lexicon", func(ctx context.Context) error { return lex.Save(ctx, e.st) })
	e.saveStep(ctx, "associations", func(ctx context.Context) error { return tracker.Save(ctx, e.st) })
	e.saveStep(ctx, "relationships", func(ctx context.Context) error { return rels.Save(ctx, e.st) })
	e.saveStep(ctx, "registry", func(ctx context.Context) error { return reg.Save(ctx, e.st) })

	e.logger.Debug("turn complete",
		zap.Int("turn", report.Turn),
		zap.Int("entities", len(report.Entities)),
		zap.Int("rejections", report.Rejections),
		zap.Int("relations", report.Relations))
	return report, nil
}

// scoreDetection assembles the ensemble signals for one detection. The
// type can sharpen along the way: the registry's stored type first, then a
// confident classifier verdict for a still-unknown span.
func (e *Engine) scoreDetection(reg *registry.Registry, tracker *assoc.Tracker, cls *ngram.Classifier, lex *lexicon.Lexicon, d detect.Detection, name, text string) (detect.Type, float64) {
	typ := d.Type
	if typ == detect.Unknown {
		if ent, ok := reg.Get(name); ok && ent.Type != detect.Unknown {
			typ = ent.Type
		}
	}

	sig := score.Signals{Pattern: d.Confidence}
	if t, c := cls.Classify(name); t != detect.Unknown {
		sig.HasNgram = true
		sig.NgramType = t
		sig.NgramConfidence = c
		if typ == detect.Unknown {
			typ = t
		}
	}
	if len(tracker.Words(typ, name)) > 0 {
		sig.HasAssoc = true
		sig.AssocBoost = tracker.Boost(typ, name, text, d.Start, d.End)
	}
	if reg.HasHistory() {
		sig.HasFrequency = true
		sig.Frequency = reg.Frequency(name, registry.FrequencyWindow)
	}
	sig.Coherence = score.Coherence(lex, typ, text, d.Start, d.End)

	return typ, score.Ensemble(typ, sig)
}

// mergeNearDuplicates folds registry entries whose names are nearly
// identical. The entry with more occurrences survives; on a tie the
// longer name does, since truncations are the usual source of
// near-duplicates.
func mergeNearDuplicates(s *state) []string {
	ents := s.reg.Entities()
	gone := make(map[string]bool)
	var merges []string

	for i := 0; i < len(ents); i++ {
		for j := i + 1; j < len(ents); j++ {
			a, b := ents[i], ents[j]
			if gone[a.Name] || gone[b.Name] {
				continue
			}
			if a.Type != b.Type && a.Type != detect.Unknown && b.Type != detect.Unknown {
				continue
			}
			sim := assoc.Similarity(a.Name, b.Name)
			if sim < assoc.MergeThreshold {
				continue
			}

			canon, from := a, b
			if b.Occurrences > a.Occurrences ||
				(b.Occurrences == a.Occurrences && len(b.Name) > len(a.Name)) {
				canon, from = b, a
			}
			if !mergeEntity(s, canon, from, sim) {
				continue
			}
			gone[from.Name] = true
			merges = append(merges, from.Name+" -> "+canon.Name)
		}
	}
	return merges
}

// mentionList assembles the pronoun resolver's candidates: this turn's
// accepted entities by last position in the text, then recent history,
// most recent turn first.
func mentionList(reg *registry.Registry, accepted []AcceptedEntity, text string) []xref.Mention {
	type placed struct {
		name   string
		offset int
	}
	current := make([]placed, 0, len(accepted))
	seen := make(map[string]bool)
	for _, a := range accepted {
		key := strings.ToLower(a.Name)
		if seen[key] {
			continue
		}
		seen[key] = true
		current = append(current, placed{a.Name, strings.LastIndex(text, a.Name)})
	}
	sort.SliceStable(current, func(i, j int) bool { return current[i].offset > current[j].offset })

	var mentions []xref.Mention
	appendMention := func(name string, offset int) {
		ent, ok := reg.Get(name)
		if !ok {
			return
		}
		mentions = append(mentions, xref.Mention{
			Name:   ent.Name,
			Type:   ent.Type,
			Gender: ent.Gender,
			Offset: offset,
		})
	}
	for _, c := range current {
		appendMention(c.name, c.offset)
	}

	hist := reg.History(0)
	for i := len(hist) - 1; i >= 0; i-- {
		for _, entry := range hist[i].Entries {
			key := strings.ToLower(entry.Name)
			if seen[key] {
				continue
			}
			seen[key] = true
			appendMention(entry.Name, -1)
		}
	}
	return mentions
}
