package detect

import (
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/veilmark/chronicle/internal/lexicon"
)

// Rejection reasons fed to blacklist learning.
const (
	ReasonTooCommon       = "too_common"
	ReasonSentenceStarter = "sentence_starter"
	ReasonBlacklisted     = "blacklisted"
)

// Confidence adjustments applied to every surviving match on top of its
// pattern or template base.
const (
	sentenceInitialCommonFactor = 0.3
	sentenceInitialFactor       = 0.9
	longNameFactor              = 0.8
	longNameTokens              = 3
	sentenceLookback            = 20
)

// Detection is one entity mention found in a turn's text, scored at the
// pattern stage. Ensemble scoring happens downstream.
type Detection struct {
	Name        string
	Type        Type
	Confidence  float64
	Start       int
	End         int
	Pattern     string
	Occurrences int
	Title       string
}

// Rejection is a filtered-out match, kept for the blacklist learning loop.
type Rejection struct {
	Word   string
	Reason string
}

// Result carries one detection pass's accepted and rejected matches.
type Result struct {
	Detections []Detection
	Rejections []Rejection
}

// Detector runs the span detectors over one turn's text. It holds no state
// across calls; build one per turn from the current lexicon and patterns.
type Detector struct {
	lex    *lexicon.Lexicon
	pats   *Patterns
	logger *zap.Logger
}

// NewDetector creates a detector over the given vocabulary state.
func NewDetector(lex *lexicon.Lexicon, pats *Patterns, logger *zap.Logger) *Detector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Detector{lex: lex, pats: pats, logger: logger}
}

type span struct{ start, end int }

func overlaps(claims []span, start, end int) bool {
	for _, c := range claims {
		if start < c.end && c.start < end {
			return true
		}
	}
	return false
}

// Detect finds entity mentions in text. The multi-word detector runs first
// and claims its spans outright; the standard matcher then scans only
// unclaimed spans, so no two detections overlap. Rejected matches come back
// with their reason; rejections claim nothing.
func (d *Detector) Detect(text string) Result {
	tokens := tokenize(text)
	lowerCounts := lowercaseCounts(tokens)

	var claims []span
	var dets []Detection
	var rejs []Rejection

	mdets, mrejs := d.multiwordScan(text, tokens)
	rejs = append(rejs, mrejs...)
	for _, det := range mdets {
		if overlaps(claims, det.Start, det.End) {
			continue
		}
		det.Confidence = d.adjusted(text, det, det.Confidence)
		claims = append(claims, span{det.Start, det.End})
		dets = append(dets, det)
	}

	if d.pats != nil {
		for _, g := range d.pats.Groups {
			for _, v := range g.variants {
				for _, m := range v.re.FindAllStringSubmatchIndex(text, -1) {
					ns, ne := m[2*v.nameGroup], m[2*v.nameGroup+1]
					if ns < 0 || ne-ns < 2 {
						continue
					}
					if overlaps(claims, ns, ne) {
						continue
					}

					det := Detection{
						Name:        text[ns:ne],
						Type:        g.Type,
						Start:       ns,
						End:         ne,
						Pattern:     g.Name,
						Occurrences: 1,
					}
					if v.titleGroup > 0 && m[2*v.titleGroup] >= 0 {
						det.Title = text[m[2*v.titleGroup]:m[2*v.titleGroup+1]]
					}

					if rej := d.filterMatch(text, det, lowerCounts); rej != nil {
						rejs = append(rejs, *rej)
						continue
					}
					det.Confidence = d.adjusted(text, det, g.Base)
					claims = append(claims, span{ns, ne})
					dets = append(dets, det)
				}
			}
		}
	}

	dets = mergeDuplicates(dets)
	d.logger.Debug("detection pass complete",
		zap.Int("detections", len(dets)),
		zap.Int("rejections", len(rejs)))
	return Result{Detections: dets, Rejections: rejs}
}

// filterMatch applies the discard chain to a standard-pattern match. A nil
// result means the match survives.
func (d *Detector) filterMatch(text string, det Detection, lowerCounts map[string]int) *Rejection {
	toks := strings.Fields(det.Name)
	if len(toks) == 0 {
		return &Rejection{Word: strings.ToLower(det.Name), Reason: ReasonTooCommon}
	}
	first := strings.ToLower(toks[0])

	if len(toks) == 1 && sentenceInitial(text, det.Start) {
		if d.lex.HasWord(lexicon.ListSentenceStarters, first) || lowerCounts[first] >= 2 {
			return &Rejection{Word: first, Reason: ReasonSentenceStarter}
		}
	}

	for _, w := range toks {
		if lw := strings.ToLower(w); d.lex.Blacklisted(lw) {
			return &Rejection{Word: lw, Reason: ReasonBlacklisted}
		}
	}

	common := 0
	for _, w := range toks {
		if d.lex.HasWord(lexicon.ListCommonWords, strings.ToLower(w)) {
			common++
		}
	}
	if common == len(toks) {
		return &Rejection{Word: strings.ToLower(det.Name), Reason: ReasonTooCommon}
	}
	return nil
}

// adjusted computes a surviving match's confidence from its base. A
// sentence-initial match led by a common word keeps little of it; a merely
// sentence-initial one most of it; names past three tokens are dampened.
func (d *Detector) adjusted(text string, det Detection, base float64) float64 {
	toks := strings.Fields(det.Name)
	if sentenceInitial(text, det.Start) {
		if len(toks) > 0 && d.lex.HasWord(lexicon.ListCommonWords, strings.ToLower(toks[0])) {
			base *= sentenceInitialCommonFactor
		} else {
			base *= sentenceInitialFactor
		}
	}
	if len(toks) > longNameTokens {
		base *= longNameFactor
	}
	return base
}

// sentenceInitial reports whether a match at start sits at the beginning
// of a sentence: looking back up to 20 characters, the first non-space is
// terminal punctuation, a quote, a line break, or the start of the text.
func sentenceInitial(text string, start int) bool {
	if start == 0 {
		return true
	}
	rest := text[:start]
	for n := 0; n < sentenceLookback && len(rest) > 0; n++ {
		r, size := utf8.DecodeLastRuneInString(rest)
		rest = rest[:len(rest)-size]
		switch r {
		case ' ', '\t':
			continue
		case '\n', '.', '!', '?', '"', '\'', '“', '”', '’':
			return true
		default:
			return false
		}
	}
	return len(rest) == 0
}

// lowercaseCounts tallies how often each word appears uncapitalized, for
// the sentence-initial noise check.
func lowercaseCounts(tokens []token) map[string]int {
	m := make(map[string]int)
	for _, t := range tokens {
		if !capitalized(t.text) {
			m[strings.ToLower(t.text)]++
		}
	}
	return m
}

// mergeDuplicates folds repeat detections of the same name into one,
// keeping the highest confidence and accumulating occurrences. A typed
// detection always beats an Unknown one for the merged type.
func mergeDuplicates(dets []Detection) []Detection {
	if len(dets) < 2 {
		return dets
	}
	byName := make(map[string]int)
	out := make([]Detection, 0, len(dets))
	for _, det := range dets {
		key := strings.ToLower(det.Name)
		i, seen := byName[key]
		if !seen {
			byName[key] = len(out)
			out = append(out, det)
			continue
		}
		kept := &out[i]
		kept.Occurrences += det.Occurrences
		if det.Confidence > kept.Confidence {
			kept.Confidence = det.Confidence
			if det.Type != Unknown {
				kept.Type = det.Type
			}
		}
		if kept.Type == Unknown && det.Type != Unknown {
			kept.Type = det.Type
		}
		if kept.Title == "" && det.Title != "" {
			kept.Title = det.Title
		}
	}
	return out
}
