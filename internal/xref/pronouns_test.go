package xref

import (
	"fmt"
	"testing"

	"github.com/veilmark/chronicle/internal/detect"
)

func TestResolveGenderFilter(t *testing.T) {
	r := NewResolver([]Mention{
		{Name: "Selene", Type: detect.Person, Gender: "female", Offset: -1},
		{Name: "Marcus", Type: detect.Person, Gender: "male", Offset: -1},
	})

	m, ok := r.Resolve("he", 100)
	if !ok || m.Name != "Marcus" {
		t.Errorf("he = %+v, %v; want Marcus", m, ok)
	}
	m, ok = r.Resolve("She", 100)
	if !ok || m.Name != "Selene" {
		t.Errorf("She = %+v, %v; want Selene", m, ok)
	}
}

func TestResolveRecencyWins(t *testing.T) {
	r := NewResolver([]Mention{
		{Name: "Aldric", Type: detect.Person, Gender: "male", Offset: -1},
		{Name: "Marcus", Type: detect.Person, Gender: "male", Offset: -1},
	})

	if m, _ := r.Resolve("he", 100); m.Name != "Aldric" {
		t.Errorf("he = %q, want the more recent Aldric", m.Name)
	}
}

func TestResolveProximityBeatsStaleRecency(t *testing.T) {
	// Aldric leads the recency list but only from history; Marcus was
	// mentioned in this very text just before the pronoun.
	r := NewResolver([]Mention{
		{Name: "Aldric", Type: detect.Person, Gender: "male", Offset: -1},
		{Name: "Marcus", Type: detect.Person, Gender: "male", Offset: 10},
	})

	if m, _ := r.Resolve("he", 40); m.Name != "Marcus" {
		t.Errorf("he = %q, want the nearby Marcus", m.Name)
	}
}

func TestResolveNeuterSkipsPersons(t *testing.T) {
	r := NewResolver([]Mention{
		{Name: "Marcus", Type: detect.Person, Gender: "male", Offset: -1},
		{Name: "Elven Forest", Type: detect.Place, Offset: -1},
	})

	m, ok := r.Resolve("it", 50)
	if !ok || m.Name != "Elven Forest" {
		t.Errorf("it = %+v, %v; want Elven Forest", m, ok)
	}
}

func TestResolvePlural(t *testing.T) {
	r := NewResolver([]Mention{
		{Name: "Marcus", Type: detect.Person, Gender: "male", Offset: -1},
		{Name: "Crimson Order", Type: detect.Faction, Offset: -1},
	})

	m, ok := r.Resolve("they", 50)
	if !ok || m.Name != "Crimson Order" {
		t.Errorf("they = %+v, %v; want Crimson Order", m, ok)
	}
}

func TestResolveNoCompatibleCandidate(t *testing.T) {
	r := NewResolver([]Mention{
		{Name: "Selene", Type: detect.Person, Gender: "female", Offset: -1},
	})
	if _, ok := r.Resolve("he", 10); ok {
		t.Errorf("he resolved against a female-only list")
	}
	if _, ok := r.Resolve("castle", 10); ok {
		t.Errorf("non-pronoun resolved")
	}
}

func TestResolveAll(t *testing.T) {
	r := NewResolver([]Mention{
		{Name: "Marcus", Type: detect.Person, Gender: "male", Offset: 0},
	})
	text := "Marcus rose. He stretched, and his sword fell."

	got := r.ResolveAll(text)
	if len(got) != 2 {
		t.Fatalf("ResolveAll() found %d resolutions, want 2: %+v", len(got), got)
	}
	for _, res := range got {
		if res.Mention.Name != "Marcus" {
			t.Errorf("%q resolved to %q, want Marcus", res.Pronoun, res.Mention.Name)
		}
	}
	if got[0].Pronoun != "He" || got[1].Pronoun != "his" {
		t.Errorf("pronouns = %q, %q", got[0].Pronoun, got[1].Pronoun)
	}
}

func TestResolverCapsAtTen(t *testing.T) {
	var mentions []Mention
	for i := 0; i < 15; i++ {
		mentions = append(mentions, Mention{Name: fmt.Sprintf("E%d", i), Type: detect.Person, Offset: -1})
	}
	r := NewResolver(mentions)
	if got := len(r.Mentions()); got != 10 {
		t.Errorf("kept %d mentions, want 10", got)
	}
}
