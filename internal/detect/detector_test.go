package detect

import (
	"math"
	"testing"

	"github.com/veilmark/chronicle/internal/lexicon"
)

func TestDialogueAttribution(t *testing.T) {
	d, _ := newTestDetector(t)
	res := d.Detect(`"Hello," said Marcus.`)

	if len(res.Detections) != 1 {
		t.Fatalf("Expected 1 detection, got %+v", res.Detections)
	}
	det := res.Detections[0]
	if det.Name != "Marcus" {
		t.Errorf("name = %q, want Marcus", det.Name)
	}
	if det.Type != Person {
		t.Errorf("type = %v, want PERSON", det.Type)
	}
	if det.Confidence != 0.85 {
		t.Errorf("confidence = %v, want 0.85", det.Confidence)
	}
	if det.Pattern != "dialogue" {
		t.Errorf("pattern = %q, want dialogue", det.Pattern)
	}
}

func TestSentenceInitialDampening(t *testing.T) {
	d, _ := newTestDetector(t)
	res := d.Detect("Marcus said nothing more.")

	det := findDetection(res, "Marcus")
	if det == nil {
		t.Fatalf("Marcus not detected; got %+v", res.Detections)
	}
	if want := 0.85 * 0.9; det.Confidence != want {
		t.Errorf("confidence = %v, want %v", det.Confidence, want)
	}
}

func TestSentenceInitialCommonLedDampening(t *testing.T) {
	d, _ := newTestDetector(t)
	res := d.Detect("Then Marcus walked away.")

	if len(res.Detections) != 1 {
		t.Fatalf("Expected 1 detection, got %+v", res.Detections)
	}
	det := res.Detections[0]
	if det.Name != "Then Marcus" {
		t.Errorf("name = %q, want Then Marcus", det.Name)
	}
	if want := 0.75 * 0.3; math.Abs(det.Confidence-want) > 1e-9 {
		t.Errorf("confidence = %v, want %v", det.Confidence, want)
	}
}

func TestLongNameDampening(t *testing.T) {
	d, _ := newTestDetector(t)
	res := d.Detect("They beheld the Kingdom of the Eastern Isles.")

	det := findDetection(res, "Kingdom of the Eastern Isles")
	if det == nil {
		t.Fatalf("run not detected; got %+v", res.Detections)
	}
	if det.Type != Place {
		t.Errorf("type = %v, want PLACE", det.Type)
	}
	if want := 0.85 * 0.8; det.Confidence != want {
		t.Errorf("confidence = %v, want %v", det.Confidence, want)
	}
}

func TestSentenceStarterRejected(t *testing.T) {
	d, _ := newTestDetector(t)
	res := d.Detect("They walked away.")

	if len(res.Detections) != 0 {
		t.Errorf("Expected no detections, got %+v", res.Detections)
	}
	if !hasRejection(res, "they", ReasonSentenceStarter) {
		t.Errorf("missing sentence-starter rejection; got %+v", res.Rejections)
	}
}

func TestLowercaseElsewhereRejected(t *testing.T) {
	// "stone" shows up twice uncapitalized, so the capitalized match at the
	// sentence start is treated as noise.
	d, _ := newTestDetector(t)
	res := d.Detect("Stone walked past the stone wall and the stone gate.")

	if len(res.Detections) != 0 {
		t.Errorf("Expected no detections, got %+v", res.Detections)
	}
	if !hasRejection(res, "stone", ReasonSentenceStarter) {
		t.Errorf("missing noise rejection; got %+v", res.Rejections)
	}
}

func TestBlacklistedMatchRejected(t *testing.T) {
	d, _ := newTestDetector(t)
	res := d.Detect(`"Run," said Tomorrow.`)

	if len(res.Detections) != 0 {
		t.Errorf("Expected no detections, got %+v", res.Detections)
	}
	if !hasRejection(res, "tomorrow", ReasonBlacklisted) {
		t.Errorf("missing blacklist rejection; got %+v", res.Rejections)
	}
}

func TestLearnedBlacklistRejectsMatch(t *testing.T) {
	d, lex := newTestDetector(t)
	lex.UpsertBlacklistEntry(lexicon.BlacklistEntry{
		Word: "vex", Category: "noise", Confidence: 0.9, Occurrences: 3, LastSeen: 1,
	})
	res := d.Detect(`"Fine," said Vex.`)

	if len(res.Detections) != 0 {
		t.Errorf("Expected no detections, got %+v", res.Detections)
	}
	if !hasRejection(res, "vex", ReasonBlacklisted) {
		t.Errorf("missing learned-blacklist rejection; got %+v", res.Rejections)
	}
}

func TestCommonWordMatchRejected(t *testing.T) {
	d, _ := newTestDetector(t)
	res := d.Detect("She turned and Only smiled.")

	if findDetection(res, "Only") != nil {
		t.Error("pure common word should never be detected")
	}
	if !hasRejection(res, "only", ReasonTooCommon) {
		t.Errorf("missing common-word rejection; got %+v", res.Rejections)
	}
}

func TestDuplicateDetectionsMerge(t *testing.T) {
	d, _ := newTestDetector(t)
	res := d.Detect(`"Yes," said Marcus. Marcus drew his blade. Marcus walked on.`)

	if len(res.Detections) != 1 {
		t.Fatalf("Expected 1 merged detection, got %+v", res.Detections)
	}
	det := res.Detections[0]
	if det.Name != "Marcus" {
		t.Errorf("name = %q, want Marcus", det.Name)
	}
	if det.Occurrences != 3 {
		t.Errorf("occurrences = %d, want 3", det.Occurrences)
	}
	if det.Confidence != 0.85 {
		t.Errorf("confidence = %v, want the 0.85 maximum", det.Confidence)
	}
	if det.Type != Person {
		t.Errorf("type = %v, want PERSON", det.Type)
	}
}

func TestNoOverlappingDetections(t *testing.T) {
	d, _ := newTestDetector(t)
	text := `"Stay," whispered Lady Vex near the Elven Forest as Jon Arryn drew the Sword of Dawn.`
	res := d.Detect(text)

	for _, name := range []string{"Lady Vex", "Elven Forest", "Jon Arryn", "Sword of Dawn"} {
		if findDetection(res, name) == nil {
			t.Errorf("%s not detected; got %+v", name, res.Detections)
		}
	}
	for i := 0; i < len(res.Detections); i++ {
		for j := i + 1; j < len(res.Detections); j++ {
			a, b := res.Detections[i], res.Detections[j]
			if a.Start < b.End && b.Start < a.End {
				t.Errorf("detections overlap: %+v and %+v", a, b)
			}
		}
	}
}

func TestEmptyAndPlainText(t *testing.T) {
	d, _ := newTestDetector(t)

	if res := d.Detect(""); len(res.Detections) != 0 || len(res.Rejections) != 0 {
		t.Errorf("empty text should detect nothing, got %+v", res)
	}
	if res := d.Detect("the quick brown fox slept under a tree"); len(res.Detections) != 0 {
		t.Errorf("uncapitalized text should detect nothing, got %+v", res.Detections)
	}
}

func TestDetectWithoutPatterns(t *testing.T) {
	// The multi-word pass still runs when no pattern set was built.
	lex := newTestLexicon(t)
	d := NewDetector(lex, nil, nil)
	res := d.Detect("He nodded to Jon Arryn.")

	if findDetection(res, "Jon Arryn") == nil {
		t.Errorf("multi-word detection should not require patterns; got %+v", res.Detections)
	}
}
