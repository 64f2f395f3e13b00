package assoc

import (
	"context"
	"math"
	"strings"
	"testing"

	"github.com/veilmark/chronicle/internal/detect"
	"github.com/veilmark/chronicle/internal/lexicon"
	"github.com/veilmark/chronicle/internal/store"
)

func newTestTracker(t *testing.T) (*Tracker, store.Store) {
	t.Helper()
	ctx := context.Background()
	st := store.NewMemStore()
	lex, err := lexicon.Load(ctx, st, lexicon.DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("Load() lexicon error: %v", err)
	}
	tr, err := Load(ctx, st, lex, nil)
	if err != nil {
		t.Fatalf("Load() tracker error: %v", err)
	}
	return tr, st
}

// track records one mention of name inside text at its first occurrence.
func track(t *testing.T, tr *Tracker, typ detect.Type, name, text string) int {
	t.Helper()
	i := strings.Index(text, name)
	if i < 0 {
		t.Fatalf("%q not in %q", name, text)
	}
	return tr.Track(typ, name, text, i, i+len(name))
}

func wordStat(stats []WordStat, word string) *WordStat {
	for i := range stats {
		if stats[i].Word == word {
			return &stats[i]
		}
	}
	return nil
}

func TestTrackWindowWords(t *testing.T) {
	tr, _ := newTestTracker(t)
	n := track(t, tr, detect.Person, "Marcus", "The grizzled captain saluted Marcus beside the barracks.")

	if n != 5 {
		t.Errorf("Track() recorded %d words, want 5", n)
	}
	words := tr.Words(detect.Person, "Marcus")
	for _, want := range []string{"grizzled", "captain", "saluted", "beside", "barracks"} {
		ws := wordStat(words, want)
		if ws == nil {
			t.Errorf("expected %q in stored words, got %+v", want, words)
			continue
		}
		if ws.Count != 1 || ws.Contexts != 1 {
			t.Errorf("%s = count %d contexts %d, want 1/1", want, ws.Count, ws.Contexts)
		}
	}
	if wordStat(words, "the") != nil {
		t.Error("stop word should not be stored")
	}
	if wordStat(words, "marcus") != nil {
		t.Error("the entity's own name should not be stored")
	}
}

func TestTrackCountsMoveInLockstep(t *testing.T) {
	tr, _ := newTestTracker(t)
	text := "The grizzled captain saluted Marcus beside the barracks."
	track(t, tr, detect.Person, "Marcus", text)
	track(t, tr, detect.Person, "Marcus", text)

	ws := wordStat(tr.Words(detect.Person, "Marcus"), "captain")
	if ws == nil {
		t.Fatal("captain not stored")
	}
	if ws.Count != 2 || ws.Contexts != 2 {
		t.Errorf("captain = count %d contexts %d, want 2/2", ws.Count, ws.Contexts)
	}
}

func TestTrackWindowCutKeepsWordsWhole(t *testing.T) {
	tr, _ := newTestTracker(t)

	// "swiftly" straddles the trailing window edge.
	track(t, tr, detect.Person, "Marcus", "Marcus strode past the gateway swiftly onward.")
	words := tr.Words(detect.Person, "Marcus")
	if wordStat(words, "swiftly") == nil {
		t.Errorf("swiftly not stored whole, got %+v", words)
	}
	if wordStat(words, "swift") != nil {
		t.Error("trailing cut stored a fragment")
	}
	if wordStat(words, "onward") != nil {
		t.Error("word beyond the window stored")
	}

	// "moonlit" straddles the leading window edge.
	track(t, tr, detect.Person, "Selene", "The moonlit battlements gleamed as Selene watched.")
	words = tr.Words(detect.Person, "Selene")
	if wordStat(words, "moonlit") == nil {
		t.Errorf("moonlit not stored whole, got %+v", words)
	}
	if wordStat(words, "oonlit") != nil {
		t.Error("leading cut stored a fragment")
	}
}

func TestBoost(t *testing.T) {
	tr, _ := newTestTracker(t)
	track(t, tr, detect.Person, "Marcus", "The grizzled captain saluted Marcus beside the barracks.")

	text := "Marcus nodded to the captain by the gate."
	boost := tr.Boost(detect.Person, "Marcus", text, 0, len("Marcus"))
	if want := 1.0 / 5.0 * 0.2; math.Abs(boost-want) > 1e-9 {
		t.Errorf("Boost() = %v, want %v", boost, want)
	}
}

func TestBoostZeroWithoutStoredWords(t *testing.T) {
	tr, _ := newTestTracker(t)
	if b := tr.Boost(detect.Person, "Nobody", "Nobody waved.", 0, 6); b != 0 {
		t.Errorf("Boost() = %v, want 0 for an entity with no associations", b)
	}
}

func TestStrongWords(t *testing.T) {
	tr, _ := newTestTracker(t)
	track(t, tr, detect.Person, "Vex", "Vex saluted the captain at dawn.")
	track(t, tr, detect.Person, "Vex", "The captain trailed Vex quietly.")
	track(t, tr, detect.Person, "Vex", "Vex obeyed every captain present.")

	strong := tr.StrongWords(detect.Person, "Vex")
	if len(strong) != 1 || strong[0] != "captain" {
		t.Errorf("StrongWords() = %v, want [captain]", strong)
	}
	if got := tr.Words(detect.Person, "Vex")[0].Word; got != "captain" {
		t.Errorf("strong word should rank first, got %q", got)
	}
}

func TestMergeScalesCounts(t *testing.T) {
	tr, _ := newTestTracker(t)
	tr.words[key(detect.Person, "Kirito")] = map[string]*WordStat{
		"sword": {Word: "sword", Count: 5, Contexts: 5},
	}
	tr.words[key(detect.Person, "Kirto")] = map[string]*WordStat{
		"sword": {Word: "sword", Count: 10, Contexts: 10},
		"duel":  {Word: "duel", Count: 1, Contexts: 1},
	}

	sim := Similarity("Kirito", "Kirto")
	if sim < MergeThreshold {
		t.Fatalf("Similarity(Kirito, Kirto) = %v, want >= %v", sim, MergeThreshold)
	}

	moved := tr.Merge(detect.Person, "Kirito", detect.Person, "Kirto", sim)
	if moved != 2 {
		t.Errorf("Merge() moved %d words, want 2", moved)
	}

	words := tr.Words(detect.Person, "Kirito")
	if ws := wordStat(words, "sword"); ws == nil || ws.Count != 10 {
		t.Errorf("sword = %+v, want count 10 (5 plus the capped 5)", ws)
	}
	if ws := wordStat(words, "duel"); ws == nil || ws.Count != 1 {
		t.Errorf("duel = %+v, want count 1", ws)
	}
	if len(tr.Words(detect.Person, "Kirto")) != 0 {
		t.Error("merged-away entity should keep no associations")
	}
}

func TestMergeAcrossTypes(t *testing.T) {
	tr, _ := newTestTracker(t)
	tr.words[key(detect.Unknown, "Kirto")] = map[string]*WordStat{
		"katana": {Word: "katana", Count: 2, Contexts: 2},
	}

	moved := tr.Merge(detect.Person, "Kirito", detect.Unknown, "Kirto", 1)
	if moved != 1 {
		t.Fatalf("Merge() moved %d words, want 1", moved)
	}
	if ws := wordStat(tr.Words(detect.Person, "Kirito"), "katana"); ws == nil || ws.Count != 2 {
		t.Errorf("katana = %+v, want count 2 under the canonical type", ws)
	}
	if len(tr.Words(detect.Unknown, "Kirto")) != 0 {
		t.Error("source entry survived the merge")
	}
	if len(tr.Words(detect.Unknown, "Kirito")) != 0 {
		t.Error("associations landed under the untyped key")
	}
}

func TestSimilarity(t *testing.T) {
	cases := []struct {
		a, b string
		min  float64
		max  float64
	}{
		{"Kirito", "Kirto", 0.85, 0.99},
		{"Marcus", "Marcus", 1, 1},
		{"MARCUS", "marcus", 1, 1},
		{"Elven", "Barracks", 0, 0.2},
		{"", "", 1, 1},
		{"Marcus", "", 0, 0},
	}
	for _, c := range cases {
		got := Similarity(c.a, c.b)
		if got < c.min || got > c.max {
			t.Errorf("Similarity(%q, %q) = %v, want in [%v, %v]", c.a, c.b, got, c.min, c.max)
		}
	}
}

func TestSavePrunesToTopTen(t *testing.T) {
	tr, st := newTestTracker(t)
	k := key(detect.Place, "Elven Forest")
	tr.words[k] = map[string]*WordStat{}
	for _, seed := range []struct {
		word  string
		count int
	}{
		{"alpha", 4}, {"bravo", 4}, {"charlie", 3},
		{"delta", 1}, {"echo", 1}, {"foxtrot", 1}, {"golf", 1}, {"hotel", 1},
		{"india", 1}, {"juliet", 1}, {"kilo", 1}, {"lima", 1},
	} {
		tr.words[k][seed.word] = &WordStat{Word: seed.word, Count: seed.count, Contexts: seed.count}
	}
	tr.dirty = true

	ctx := context.Background()
	if err := tr.Save(ctx, st); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	lex, err := lexicon.Load(ctx, st, lexicon.DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("Load() lexicon error: %v", err)
	}
	reloaded, err := Load(ctx, st, lex, nil)
	if err != nil {
		t.Fatalf("Load() tracker error: %v", err)
	}

	words := reloaded.Words(detect.Place, "Elven Forest")
	if len(words) != 10 {
		t.Fatalf("Expected 10 words after pruning, got %d", len(words))
	}
	for _, gone := range []string{"kilo", "lima"} {
		if wordStat(words, gone) != nil {
			t.Errorf("%s should have been pruned", gone)
		}
	}
	if words[0].Word != "alpha" || words[0].Count != 4 {
		t.Errorf("top word = %+v, want alpha count 4", words[0])
	}
}

func TestSaveNoopWhenClean(t *testing.T) {
	tr, st := newTestTracker(t)
	ctx := context.Background()
	if err := tr.Save(ctx, st); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	doc, err := st.Get(ctx, DocAssociations)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if !doc.Empty() {
		t.Error("clean tracker should not write a document")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	tr, st := newTestTracker(t)
	text := "The grizzled captain saluted Marcus beside the barracks."
	track(t, tr, detect.Person, "Marcus", text)
	track(t, tr, detect.Person, "Marcus", text)

	ctx := context.Background()
	if err := tr.Save(ctx, st); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	lex, err := lexicon.Load(ctx, st, lexicon.DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("Load() lexicon error: %v", err)
	}
	reloaded, err := Load(ctx, st, lex, nil)
	if err != nil {
		t.Fatalf("Load() tracker error: %v", err)
	}
	ws := wordStat(reloaded.Words(detect.Person, "Marcus"), "captain")
	if ws == nil || ws.Count != 2 || ws.Contexts != 2 {
		t.Errorf("captain = %+v, want count 2 contexts 2 after reload", ws)
	}
}
