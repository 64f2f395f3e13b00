// Package learn closes the two feedback loops that make detection improve
// over time. Accepted detections are mined for vocabulary opportunities
// (attribution verbs, type words, titles) that become list candidates;
// rejected matches accumulate toward learned blacklist entries.
package learn

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/veilmark/chronicle/internal/detect"
	"github.com/veilmark/chronicle/internal/lexicon"
)

// An accepted detection must score at least this well before it is trusted
// to teach new vocabulary.
const minTeachingScore = 0.6

// Reason-specific blacklist confidences for first-time rejections.
const (
	confTooCommon       = 0.8
	confSentenceStarter = 0.6
)

// Rejections buffer in memory during the turn and persist only with enough
// support, so one stray match never pollutes the blacklist.
const (
	persistOccurrences = 3
	persistConfidence  = 0.7
)

const (
	contextRadius = 30
	quoteLookback = 4
	minWordLen    = 3
)

var (
	afterWordRE  = regexp.MustCompile(`^,?\s+([a-z]+)`)
	beforeWordRE = regexp.MustCompile(`([a-z]+)\s+$`)
	lowerAlphaRE = regexp.MustCompile(`^[a-z]+$`)
)

func isQuote(r rune) bool {
	switch r {
	case '"', '\'', '“', '”', '’':
		return true
	}
	return false
}

// Pipeline runs the learning loops for one turn. Build a fresh one each
// turn; Flush writes what the turn earned.
type Pipeline struct {
	lex      *lexicon.Lexicon
	turn     int
	logger   *zap.Logger
	pending  map[string]*pendingRejection
	promoted []string
}

type pendingRejection struct {
	reason      string
	confidence  float64
	occurrences int
}

// NewPipeline creates the learning pipeline for one turn.
func NewPipeline(lex *lexicon.Lexicon, turn int, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		lex:     lex,
		turn:    turn,
		logger:  logger,
		pending: make(map[string]*pendingRejection),
	}
}

// Inspect mines one accepted detection for vocabulary opportunities. Every
// occurrence of the name in the text is examined, not just the detected
// span, since attribution verbs often sit next to a mention the patterns
// did not need. isKnown reports whether a name is already registered.
func (p *Pipeline) Inspect(text string, det detect.Detection, confidence float64, isKnown func(string) bool) {
	if confidence < minTeachingScore {
		return
	}
	switch det.Type {
	case detect.Person:
		for _, occ := range nameOccurrences(text, det.Name) {
			p.inspectVerbs(text, occ, confidence)
		}
		p.inspectTitle(text, det, confidence, isKnown)
	case detect.Place:
		p.inspectTypeWords(text, det, lexicon.ListPlaceTypes, confidence)
	case detect.Object:
		p.inspectTypeWords(text, det, lexicon.ListObjectTypes, confidence)
	case detect.Faction:
		p.inspectTypeWords(text, det, lexicon.ListFactionWords, confidence)
	}
}

// inspectVerbs looks at the lowercase words flanking one occurrence of a
// person's name. A verb after the name routes to dialogue or action lists
// depending on quote adjacency; a verb before the name counts only in an
// attribution shape, with a quote right before it.
func (p *Pipeline) inspectVerbs(text string, occ span, confidence float64) {
	ctx := snippet(text, occ.start, occ.end)

	if m := afterWordRE.FindStringSubmatch(text[occ.end:]); m != nil {
		word := m[1]
		wordEnd := occ.end + len(m[0])
		if wholeWord(text, wordEnd-len(word), wordEnd) && p.verbEligible(word) {
			category := lexicon.ListActionVerbs
			if quoteNear(text, occ.start) || quoteAfterWord(text, occ.end, word) {
				category = lexicon.ListDialogueVerbs
			}
			p.track(category, word, confidence, ctx)
		}
	}

	if m := beforeWordRE.FindStringSubmatch(text[:occ.start]); m != nil {
		word := m[1]
		wordStart := occ.start - len(m[0])
		if wholeWord(text, wordStart, wordStart+len(word)) && p.verbEligible(word) && quoteNear(text, wordStart) {
			p.track(lexicon.ListDialogueVerbs, word, confidence, ctx)
		}
	}
}

// inspectTypeWords files the generic part of a typed multi-word name as a
// candidate for that type's word list: the leading token in an "X of Y"
// shape, the trailing token otherwise. Tokens already in the list fall out
// inside TrackCandidate.
func (p *Pipeline) inspectTypeWords(text string, det detect.Detection, list string, confidence float64) {
	toks := strings.Fields(det.Name)
	if len(toks) < 2 {
		return
	}
	ctx := snippet(text, det.Start, det.End)

	word := strings.ToLower(toks[len(toks)-1])
	for _, t := range toks[1 : len(toks)-1] {
		if strings.ToLower(t) == "of" {
			word = strings.ToLower(toks[0])
			break
		}
	}
	if p.wordEligible(word) {
		p.track(list, word, confidence, ctx)
	}
}

// inspectTitle files the first token of a multi-token person name as a
// title candidate when the rest of the name is already a known entity:
// "Archon Marcus" next to a registered Marcus suggests a title.
func (p *Pipeline) inspectTitle(text string, det detect.Detection, confidence float64, isKnown func(string) bool) {
	toks := strings.Fields(det.Name)
	if len(toks) < 2 || isKnown == nil {
		return
	}
	rest := strings.Join(toks[1:], " ")
	if !isKnown(rest) {
		return
	}
	first := strings.ToLower(toks[0])
	if !p.wordEligible(first) || lexicon.TitleGender(first) != "" {
		return
	}
	p.track(lexicon.ListTitles, first, confidence, snippet(text, det.Start, det.End))
}

func (p *Pipeline) track(category, word string, confidence float64, ctx string) {
	if p.lex.TrackCandidate(category, word, confidence, ctx) {
		p.promoted = append(p.promoted, category+"/"+word)
		p.logger.Debug("word promoted",
			zap.String("category", category),
			zap.String("word", word))
	}
}

// verbEligible gates flanking words before they become verb candidates.
// The promotion thresholds carry the real burden; this only screens out
// words that could never be attribution verbs.
func (p *Pipeline) verbEligible(word string) bool {
	if !p.wordEligible(word) {
		return false
	}
	return !p.lex.HasWord(lexicon.ListDialogueVerbs, word) &&
		!p.lex.HasWord(lexicon.ListActionVerbs, word)
}

func (p *Pipeline) wordEligible(word string) bool {
	if len(word) < minWordLen || !lowerAlphaRE.MatchString(word) {
		return false
	}
	return !p.lex.HasWord(lexicon.ListStopWords, word) &&
		!p.lex.HasWord(lexicon.ListCommonWords, word) &&
		!p.lex.Blacklisted(word)
}

// RecordRejection buffers one rejected match. A word that already has a
// learned entry gets its confidence bumped immediately; static blacklist
// words and morphology rejections never earn entries.
func (p *Pipeline) RecordRejection(rej detect.Rejection) {
	word := strings.ToLower(strings.TrimSpace(rej.Word))
	if word == "" || p.lex.StaticBlacklisted(word) {
		return
	}
	if _, ok := p.lex.LearnedEntry(word); ok {
		p.lex.BumpBlacklist(word, p.turn)
		return
	}

	var conf float64
	switch rej.Reason {
	case detect.ReasonTooCommon:
		conf = confTooCommon
	case detect.ReasonSentenceStarter:
		conf = confSentenceStarter
	default:
		return
	}

	e := p.pending[word]
	if e == nil {
		e = &pendingRejection{reason: rej.Reason}
		p.pending[word] = e
	}
	e.occurrences++
	if conf > e.confidence {
		e.confidence = conf
		e.reason = rej.Reason
	}
}

// Flush persists the buffered rejections that earned an entry and clears
// the buffer. Returns how many entries were written.
func (p *Pipeline) Flush() int {
	written := 0
	for word, e := range p.pending {
		if e.occurrences < persistOccurrences && e.confidence < persistConfidence {
			continue
		}
		p.lex.UpsertBlacklistEntry(lexicon.BlacklistEntry{
			Word:        word,
			Category:    e.reason,
			Confidence:  e.confidence,
			Occurrences: e.occurrences,
			LastSeen:    p.turn,
		})
		written++
	}
	p.pending = make(map[string]*pendingRejection)
	if written > 0 {
		p.logger.Debug("blacklist entries written", zap.Int("entries", written))
	}
	return written
}

// Promoted returns the list words promoted during this turn, as
// "category/word" pairs in promotion order.
func (p *Pipeline) Promoted() []string {
	return p.promoted
}

type span struct{ start, end int }

// nameOccurrences finds every word-boundary occurrence of name in text.
func nameOccurrences(text, name string) []span {
	var spans []span
	for from := 0; ; {
		i := strings.Index(text[from:], name)
		if i < 0 {
			return spans
		}
		start := from + i
		end := start + len(name)
		from = end
		if start > 0 && isWordByte(text[start-1]) {
			continue
		}
		if end < len(text) && isWordByte(text[end]) {
			continue
		}
		spans = append(spans, span{start, end})
	}
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9'
}

func wholeWord(text string, start, end int) bool {
	if start > 0 && isWordByte(text[start-1]) {
		return false
	}
	return end >= len(text) || !isWordByte(text[end])
}

// quoteNear reports whether a quote character sits just before the given
// position, allowing for a comma and spacing: the `," said` shape.
func quoteNear(text string, pos int) bool {
	rest := text[:pos]
	for n := 0; n < quoteLookback && len(rest) > 0; n++ {
		r, size := utf8.DecodeLastRuneInString(rest)
		rest = rest[:len(rest)-size]
		switch {
		case isQuote(r):
			return true
		case r == ' ' || r == ',':
			continue
		default:
			return false
		}
	}
	return false
}

// quoteAfterWord reports whether a quote opens shortly after the verb that
// follows the name: the `said, "` shape.
func quoteAfterWord(text string, nameEnd int, word string) bool {
	rest := text[nameEnd:]
	i := strings.Index(rest, word)
	if i < 0 {
		return false
	}
	rest = rest[i+len(word):]
	for n := 0; n < quoteLookback && len(rest) > 0; n++ {
		r, size := utf8.DecodeRuneInString(rest)
		rest = rest[size:]
		switch {
		case isQuote(r):
			return true
		case r == ' ' || r == ',' || r == ':':
			continue
		default:
			return false
		}
	}
	return false
}

func snippet(text string, start, end int) string {
	lo := start - contextRadius
	if lo < 0 {
		lo = 0
	}
	hi := end + contextRadius
	if hi > len(text) {
		hi = len(text)
	}
	return text[lo:hi]
}
