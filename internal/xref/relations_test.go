package xref

import (
	"context"
	"math"
	"strings"
	"testing"

	"github.com/veilmark/chronicle/internal/lexicon"
	"github.com/veilmark/chronicle/internal/store"
)

func newTestExtractor(t *testing.T) (*Extractor, store.Store) {
	t.Helper()
	st := store.NewMemStore()
	lex, err := lexicon.Load(context.Background(), st, lexicon.DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	e, err := LoadExtractor(context.Background(), st, lex, nil)
	if err != nil {
		t.Fatalf("LoadExtractor() error: %v", err)
	}
	return e, st
}

func lookupFor(names ...string) func(string) (string, bool) {
	m := make(map[string]string, len(names))
	for _, n := range names {
		m[strings.ToLower(n)] = n
	}
	return func(raw string) (string, bool) {
		n, ok := m[strings.ToLower(raw)]
		return n, ok
	}
}

func TestExtractSpatialRelation(t *testing.T) {
	e, _ := newTestExtractor(t)
	got := e.Extract("Marcus entered the Elven Forest.", lookupFor("Marcus", "Elven Forest"), nil)

	if len(got) != 1 {
		t.Fatalf("Extract() = %+v, want 1 relation", got)
	}
	rel := got[0]
	if rel.Subject != "Marcus" || rel.Relation != "entered" || rel.Object != "Elven Forest" {
		t.Errorf("relation = %+v", rel)
	}
	if rel.Category != CategorySpatial {
		t.Errorf("category = %q, want spatial", rel.Category)
	}
	if rel.Count != 1 || rel.Confidence != 0.5 {
		t.Errorf("count = %d, confidence = %v", rel.Count, rel.Confidence)
	}
}

func TestExtractRequiresKnownEndpoints(t *testing.T) {
	e, _ := newTestExtractor(t)
	if got := e.Extract("Marcus entered the Void.", lookupFor("Marcus"), nil); len(got) != 0 {
		t.Errorf("unknown object produced relations: %+v", got)
	}
	if got := e.Extract("Varn entered the Elven Forest.", lookupFor("Elven Forest"), nil); len(got) != 0 {
		t.Errorf("unknown subject produced relations: %+v", got)
	}
}

func TestExtractConnectorName(t *testing.T) {
	e, _ := newTestExtractor(t)
	got := e.Extract("Selene reached the Kingdom of Eldoria.", lookupFor("Selene", "Kingdom of Eldoria"), nil)

	if len(got) != 1 || got[0].Object != "Kingdom of Eldoria" {
		t.Errorf("Extract() = %+v, want Kingdom of Eldoria object", got)
	}
}

func TestExtractSharedVerbCountsOnce(t *testing.T) {
	// "visited" sits in both the spatial and social verb lists; one match
	// must still count once.
	e, _ := newTestExtractor(t)
	got := e.Extract("Marcus visited Selene.", lookupFor("Marcus", "Selene"), nil)

	if len(got) != 1 {
		t.Fatalf("Extract() = %+v, want 1 relation", got)
	}
	if got[0].Count != 1 {
		t.Errorf("count = %d, want 1", got[0].Count)
	}
}

func TestExtractPronounSubject(t *testing.T) {
	e, _ := newTestExtractor(t)
	lookup := lookupFor("Marcus", "Elven Forest")
	resolve := func(pronoun string, pos int) (string, bool) {
		if strings.EqualFold(pronoun, "he") {
			return "Marcus", true
		}
		return "", false
	}

	got := e.Extract("He entered the Elven Forest.", lookup, resolve)
	if len(got) != 1 || got[0].Subject != "Marcus" {
		t.Fatalf("Extract() = %+v, want Marcus subject", got)
	}

	if got := e.Extract("He entered the Elven Forest.", lookup, nil); len(got) != 0 {
		t.Errorf("pronoun subject extracted without a resolver: %+v", got)
	}
}

func TestExtractStripsLeadingTitle(t *testing.T) {
	e, _ := newTestExtractor(t)
	got := e.Extract("Lady Selene wielded the Moonblade.", lookupFor("Selene", "Moonblade"), nil)

	if len(got) != 1 {
		t.Fatalf("Extract() = %+v, want 1 relation", got)
	}
	if got[0].Subject != "Selene" || got[0].Category != CategoryPossession {
		t.Errorf("relation = %+v", got[0])
	}
}

func TestRepeatObservationsRaiseConfidence(t *testing.T) {
	e, _ := newTestExtractor(t)
	lookup := lookupFor("Marcus", "Selene")
	for i := 0; i < 3; i++ {
		e.Extract("Marcus trusted Selene.", lookup, nil)
	}

	rels := e.Relations("Marcus")
	if len(rels) != 1 {
		t.Fatalf("Relations() = %+v", rels)
	}
	if rels[0].Count != 3 {
		t.Errorf("count = %d, want 3", rels[0].Count)
	}
	if want := 0.7; math.Abs(rels[0].Confidence-want) > 1e-9 {
		t.Errorf("confidence = %v, want %v", rels[0].Confidence, want)
	}
}

func TestRelationConfidenceCapped(t *testing.T) {
	e, _ := newTestExtractor(t)
	lookup := lookupFor("Marcus", "Selene")
	for i := 0; i < 9; i++ {
		e.Extract("Marcus trusted Selene.", lookup, nil)
	}
	if rels := e.All(); rels[0].Confidence != relationCap {
		t.Errorf("confidence = %v, want cap %v", rels[0].Confidence, relationCap)
	}
}

func TestRelationsSaveLoadRoundTrip(t *testing.T) {
	e, st := newTestExtractor(t)
	lookup := lookupFor("Marcus", "Selene", "Elven Forest")
	e.Extract("Marcus met Selene.", lookup, nil)
	e.Extract("Marcus met Selene.", lookup, nil)
	e.Extract("Marcus entered the Elven Forest.", lookup, nil)

	if err := e.Save(context.Background(), st); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	lex, _ := lexicon.Load(context.Background(), st, lexicon.DefaultConfig(), nil)
	reloaded, err := LoadExtractor(context.Background(), st, lex, nil)
	if err != nil {
		t.Fatalf("LoadExtractor() error: %v", err)
	}
	if reloaded.Count() != 2 {
		t.Fatalf("Count() = %d, want 2", reloaded.Count())
	}
	rels := reloaded.Relations("Selene")
	if len(rels) != 1 || rels[0].Count != 2 || rels[0].Category != CategorySocial {
		t.Errorf("reloaded relation = %+v", rels)
	}
	if rels[0].Confidence != 0.6 {
		t.Errorf("confidence = %v, want 0.6", rels[0].Confidence)
	}
}

func TestRenameFoldsEndpoints(t *testing.T) {
	e, _ := newTestExtractor(t)
	lookup := lookupFor("Kirto", "Kirito", "Elven Forest")
	e.Extract("Kirto entered the Elven Forest.", lookup, nil)
	e.Extract("Kirito entered the Elven Forest.", lookup, nil)

	if moved := e.Rename("Kirto", "Kirito"); moved != 1 {
		t.Fatalf("Rename() = %d, want 1", moved)
	}
	rels := e.All()
	if len(rels) != 1 {
		t.Fatalf("All() = %+v, want 1 folded relation", rels)
	}
	if rels[0].Subject != "Kirito" || rels[0].Count != 2 {
		t.Errorf("folded relation = %+v", rels[0])
	}
}
