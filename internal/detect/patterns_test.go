package detect

import (
	"context"
	"testing"

	"github.com/veilmark/chronicle/internal/lexicon"
	"github.com/veilmark/chronicle/internal/store"
)

func newTestLexicon(t *testing.T) *lexicon.Lexicon {
	t.Helper()
	lex, err := lexicon.Load(context.Background(), store.NewMemStore(), lexicon.DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	return lex
}

func newTestDetector(t *testing.T) (*Detector, *lexicon.Lexicon) {
	t.Helper()
	lex := newTestLexicon(t)
	var b Builder
	return NewDetector(lex, b.Build(lex), nil), lex
}

func TestParseType(t *testing.T) {
	cases := []struct {
		in   string
		want Type
	}{
		{"PERSON", Person},
		{"place", Place},
		{" Object ", Object},
		{"FACTION", Faction},
		{"UNKNOWN", Unknown},
		{"dragon", Unknown},
		{"", Unknown},
	}
	for _, c := range cases {
		if got := ParseType(c.in); got != c.want {
			t.Errorf("ParseType(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestBuildCompilesAllGroups(t *testing.T) {
	lex := newTestLexicon(t)
	var b Builder
	pats := b.Build(lex)

	if pats.Empty() {
		t.Fatal("Build() produced no groups from the default lists")
	}
	for _, name := range []string{"dialogue", "titled", "action", "typed_place", "typed_object", "faction"} {
		if pats.Group(name) == nil {
			t.Errorf("Group(%q) missing from default pattern set", name)
		}
	}
	if g := pats.Group("dialogue"); g.Base != 0.85 || g.Type != Person {
		t.Errorf("dialogue group = base %v type %v, want 0.85 PERSON", g.Base, g.Type)
	}
	if g := pats.Group("typed_place"); g.Base != 0.8 || g.Type != Place {
		t.Errorf("typed_place group = base %v type %v, want 0.8 PLACE", g.Base, g.Type)
	}
}

func TestBuildDropsEmptyList(t *testing.T) {
	lex := newTestLexicon(t)
	for _, w := range lex.Words(lexicon.ListFactionWords) {
		lex.RemoveWord(lexicon.ListFactionWords, w)
	}

	var b Builder
	pats := b.Build(lex)

	if pats.Group("faction") != nil {
		t.Error("faction group should be absent when its backing list is empty")
	}
	if pats.Group("dialogue") == nil {
		t.Error("dialogue group should survive an unrelated empty list")
	}
}

func TestBuilderCachesUnchangedLists(t *testing.T) {
	lex := newTestLexicon(t)
	var b Builder

	p1 := b.Build(lex)
	p2 := b.Build(lex)
	if p1 != p2 {
		t.Error("Build() should reuse the compiled set while lists are unchanged")
	}

	lex.AddWord(lexicon.ListDialogueVerbs, "murmured")
	p3 := b.Build(lex)
	if p3 == p1 {
		t.Error("Build() should recompile after a backing list changes")
	}
}

func TestRebuildPicksUpPromotedWord(t *testing.T) {
	lex := newTestLexicon(t)
	var b Builder
	text := `"Fine," murmured Vex.`

	before := NewDetector(lex, b.Build(lex), nil).Detect(text)
	if d := findDetection(before, "Vex"); d != nil {
		t.Fatalf("unexpected detection %+v before adding the verb", d)
	}

	lex.AddWord(lexicon.ListDialogueVerbs, "murmured")
	after := NewDetector(lex, b.Build(lex), nil).Detect(text)
	d := findDetection(after, "Vex")
	if d == nil {
		t.Fatal("expected Vex to be detected once murmured is a dialogue verb")
	}
	if d.Type != Person || d.Pattern != "dialogue" {
		t.Errorf("detection = type %v pattern %q, want PERSON dialogue", d.Type, d.Pattern)
	}
}
