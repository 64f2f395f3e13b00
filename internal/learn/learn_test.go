package learn

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/veilmark/chronicle/internal/detect"
	"github.com/veilmark/chronicle/internal/lexicon"
	"github.com/veilmark/chronicle/internal/store"
)

func newTestPipeline(t *testing.T) (*Pipeline, *lexicon.Lexicon) {
	t.Helper()
	lex, err := lexicon.Load(context.Background(), store.NewMemStore(), lexicon.DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	return NewPipeline(lex, 1, nil), lex
}

func personAt(text, name string) detect.Detection {
	start := strings.Index(text, name)
	return detect.Detection{
		Name:       name,
		Type:       detect.Person,
		Start:      start,
		End:        start + len(name),
		Confidence: 0.85,
	}
}

func TestDialogueVerbOpportunity(t *testing.T) {
	p, lex := newTestPipeline(t)
	text := `"Enough," Marcus snarled.`
	p.Inspect(text, personAt(text, "Marcus"), 0.8, nil)

	c, ok := lex.Candidate(lexicon.ListDialogueVerbs, "snarled")
	if !ok {
		t.Fatalf("snarled not tracked as dialogue verb; candidates: %+v", lex.Candidates(""))
	}
	if c.Occurrences != 1 || c.Confidence != 0.8 {
		t.Errorf("candidate = %+v, want occ 1 conf 0.8", c)
	}
}

func TestActionVerbOpportunity(t *testing.T) {
	p, lex := newTestPipeline(t)
	text := "Then Marcus vaulted the fence."
	p.Inspect(text, personAt(text, "Marcus"), 0.8, nil)

	if _, ok := lex.Candidate(lexicon.ListActionVerbs, "vaulted"); !ok {
		t.Errorf("vaulted not tracked as action verb; candidates: %+v", lex.Candidates(""))
	}
	if _, ok := lex.Candidate(lexicon.ListDialogueVerbs, "vaulted"); ok {
		t.Errorf("vaulted tracked as dialogue verb without quote context")
	}
}

func TestInvertedAttributionVerb(t *testing.T) {
	p, lex := newTestPipeline(t)
	text := `"Run," snarled Marcus.`
	p.Inspect(text, personAt(text, "Marcus"), 0.8, nil)

	if _, ok := lex.Candidate(lexicon.ListDialogueVerbs, "snarled"); !ok {
		t.Errorf("snarled not tracked from verb-first attribution; candidates: %+v", lex.Candidates(""))
	}
}

func TestKnownVerbNotTracked(t *testing.T) {
	p, lex := newTestPipeline(t)
	text := `"Hello," Marcus said.`
	p.Inspect(text, personAt(text, "Marcus"), 0.8, nil)

	if _, ok := lex.Candidate(lexicon.ListDialogueVerbs, "said"); ok {
		t.Errorf("said is already a dialogue verb, should not be a candidate")
	}
}

func TestLowScoreTeachesNothing(t *testing.T) {
	p, lex := newTestPipeline(t)
	text := `"Enough," Marcus snarled.`
	p.Inspect(text, personAt(text, "Marcus"), 0.5, nil)

	if got := lex.Candidates(""); len(got) != 0 {
		t.Errorf("low-score detection tracked candidates: %+v", got)
	}
}

func TestVerbPromotionAfterRepeats(t *testing.T) {
	p, lex := newTestPipeline(t)
	for i := 0; i < 4; i++ {
		text := fmt.Sprintf(`"Line %d," Marcus snarled again.`, i)
		p.Inspect(text, personAt(text, "Marcus"), 0.8, nil)
	}

	if !lex.HasWord(lexicon.ListDialogueVerbs, "snarled") {
		t.Fatalf("snarled not promoted after 4 sightings")
	}
	if _, ok := lex.Candidate(lexicon.ListDialogueVerbs, "snarled"); ok {
		t.Errorf("promoted candidate still tracked")
	}
	if got := p.Promoted(); len(got) != 1 || got[0] != "dialogue_verbs/snarled" {
		t.Errorf("Promoted() = %v", got)
	}
}

func TestTypeWordOpportunities(t *testing.T) {
	p, lex := newTestPipeline(t)
	cases := []struct {
		name string
		typ  detect.Type
		list string
		want string
	}{
		{"Whispering Thicket", detect.Place, lexicon.ListPlaceTypes, "thicket"},
		{"Bastion of Dawn", detect.Place, lexicon.ListPlaceTypes, "bastion"},
		{"Ember Glaive", detect.Object, lexicon.ListObjectTypes, "glaive"},
		{"Ashen Conclave", detect.Faction, lexicon.ListFactionWords, "conclave"},
	}
	for _, tc := range cases {
		text := "They spoke of the " + tc.name + " at length."
		det := personAt(text, tc.name)
		det.Type = tc.typ
		p.Inspect(text, det, 0.8, nil)

		if _, ok := lex.Candidate(tc.list, tc.want); !ok {
			t.Errorf("%s: %q not tracked in %s", tc.name, tc.want, tc.list)
		}
	}
	// The proper-name half of an "X of Y" shape must not be tracked.
	if _, ok := lex.Candidate(lexicon.ListPlaceTypes, "dawn"); ok {
		t.Errorf("dawn tracked as a place type")
	}
}

func TestTitleOpportunity(t *testing.T) {
	p, lex := newTestPipeline(t)
	text := "Archon Marcus surveyed the walls."
	known := func(name string) bool { return name == "Marcus" }
	p.Inspect(text, personAt(text, "Archon Marcus"), 0.8, known)

	if _, ok := lex.Candidate(lexicon.ListTitles, "archon"); !ok {
		t.Errorf("archon not tracked as title; candidates: %+v", lex.Candidates(""))
	}
}

func TestTitleNeedsKnownRest(t *testing.T) {
	p, lex := newTestPipeline(t)
	text := "Jon Arryn surveyed the walls."
	known := func(string) bool { return false }
	p.Inspect(text, personAt(text, "Jon Arryn"), 0.8, known)

	if _, ok := lex.Candidate(lexicon.ListTitles, "jon"); ok {
		t.Errorf("first name tracked as title without a known surname")
	}
}

func TestRejectionPersistsByConfidence(t *testing.T) {
	p, lex := newTestPipeline(t)
	p.RecordRejection(detect.Rejection{Word: "ledger", Reason: detect.ReasonTooCommon})

	if n := p.Flush(); n != 1 {
		t.Fatalf("Flush() = %d, want 1", n)
	}
	e, ok := lex.LearnedEntry("ledger")
	if !ok {
		t.Fatalf("no entry for ledger")
	}
	if e.Confidence != 0.8 || e.Category != detect.ReasonTooCommon || e.Occurrences != 1 {
		t.Errorf("entry = %+v", e)
	}
	if e.LastSeen != 1 {
		t.Errorf("LastSeen = %d, want 1", e.LastSeen)
	}
}

func TestRejectionPersistsByRepeats(t *testing.T) {
	p, lex := newTestPipeline(t)
	for i := 0; i < 2; i++ {
		p.RecordRejection(detect.Rejection{Word: "mist", Reason: detect.ReasonSentenceStarter})
	}
	if n := p.Flush(); n != 0 {
		t.Fatalf("two weak rejections persisted: Flush() = %d", n)
	}

	for i := 0; i < 3; i++ {
		p.RecordRejection(detect.Rejection{Word: "mist", Reason: detect.ReasonSentenceStarter})
	}
	if n := p.Flush(); n != 1 {
		t.Fatalf("Flush() = %d, want 1", n)
	}
	e, _ := lex.LearnedEntry("mist")
	if e == nil || e.Confidence != 0.6 || e.Occurrences != 3 {
		t.Errorf("entry = %+v, want conf 0.6 occ 3", e)
	}
}

func TestRepeatRejectionBumpsEntry(t *testing.T) {
	p, lex := newTestPipeline(t)
	lex.UpsertBlacklistEntry(lexicon.BlacklistEntry{Word: "mist", Category: "sentence_starter", Confidence: 0.6, Occurrences: 3})

	p.RecordRejection(detect.Rejection{Word: "mist", Reason: detect.ReasonSentenceStarter})
	if n := p.Flush(); n != 0 {
		t.Errorf("bumped word also buffered: Flush() = %d", n)
	}

	e, _ := lex.LearnedEntry("mist")
	if e == nil {
		t.Fatalf("entry gone")
	}
	if want := 0.62; e.Confidence < want-1e-9 || e.Confidence > want+1e-9 {
		t.Errorf("Confidence = %v, want %v", e.Confidence, want)
	}
	if e.Occurrences != 4 {
		t.Errorf("Occurrences = %d, want 4", e.Occurrences)
	}
}

func TestStaticWordsNeverStored(t *testing.T) {
	p, lex := newTestPipeline(t)
	p.RecordRejection(detect.Rejection{Word: "tomorrow", Reason: detect.ReasonTooCommon})

	if n := p.Flush(); n != 0 {
		t.Errorf("Flush() = %d, want 0", n)
	}
	if _, ok := lex.LearnedEntry("tomorrow"); ok {
		t.Errorf("static blacklist word earned a learned entry")
	}
}
