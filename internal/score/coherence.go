package score

import (
	"regexp"
	"strings"

	"github.com/veilmark/chronicle/internal/detect"
	"github.com/veilmark/chronicle/internal/lexicon"
)

// coherenceRadius is how far around a span the cue scan looks.
const coherenceRadius = 40

const (
	coherenceBase   = 0.5
	coherencePerCue = 0.2
)

var cueWordRE = regexp.MustCompile(`[A-Za-z']+`)

// Cue vocabularies that have no lexicon list of their own. Verbs come from
// the mutable lists so promoted words sharpen this signal too.
var subjectPronouns = map[string]bool{
	"he": true, "him": true, "his": true, "himself": true,
	"she": true, "her": true, "hers": true, "herself": true,
	"they": true, "them": true, "their": true, "themselves": true,
	"i": true, "you": true, "we": true,
}

var locativePrepositions = map[string]bool{
	"in": true, "at": true, "near": true, "through": true,
	"toward": true, "towards": true, "into": true, "from": true,
	"beyond": true, "across": true, "within": true, "inside": true,
	"outside": true, "past": true, "around": true,
}

var possessiveWords = map[string]bool{
	"his": true, "her": true, "their": true, "my": true,
	"your": true, "its": true, "own": true,
}

var membershipWords = map[string]bool{
	"member": true, "members": true, "joined": true, "serve": true,
	"serves": true, "served": true, "sworn": true, "allegiance": true,
	"banner": true, "ranks": true, "oath": true, "loyal": true,
	"leader": true, "leaders": true,
}

// Coherence scans the words around a span for type-appropriate cues and
// returns a score in [0, 1]. Every type starts at the same base; each
// distinct cue kind found nearby adds a fixed step. UNKNOWN spans have no
// cues to look for and sit at the base.
func Coherence(lex *lexicon.Lexicon, typ detect.Type, text string, start, end int) float64 {
	words := windowWords(text, start, end)
	if len(words) == 0 {
		return coherenceBase
	}

	score := coherenceBase
	switch typ {
	case detect.Person:
		score += cueStep(words, subjectPronouns)
		score += listCueStep(lex, words, lexicon.ListDialogueVerbs)
	case detect.Place:
		score += cueStep(words, locativePrepositions)
		score += listCueStep(lex, words, lexicon.ListSpatialVerbs)
	case detect.Object:
		score += cueStep(words, possessiveWords)
		score += listCueStep(lex, words, lexicon.ListPossessionVerbs)
	case detect.Faction:
		score += cueStep(words, membershipWords)
		score += listCueStep(lex, words, lexicon.ListSocialVerbs)
	}
	return clamp01(score)
}

// windowWords lowercases the words inside the radius on either side of the
// span. The span itself is excluded so an entity cannot vouch for itself.
func windowWords(text string, start, end int) []string {
	if start < 0 || end > len(text) || start >= end {
		return nil
	}
	lo := start - coherenceRadius
	if lo < 0 {
		lo = 0
	}
	hi := end + coherenceRadius
	if hi > len(text) {
		hi = len(text)
	}
	segments := text[lo:start] + " " + text[end:hi]

	var words []string
	for _, w := range cueWordRE.FindAllString(segments, -1) {
		words = append(words, strings.ToLower(w))
	}
	return words
}

func cueStep(words []string, cues map[string]bool) float64 {
	for _, w := range words {
		if cues[w] {
			return coherencePerCue
		}
	}
	return 0
}

func listCueStep(lex *lexicon.Lexicon, words []string, list string) float64 {
	if lex == nil {
		return 0
	}
	for _, w := range words {
		if lex.HasWord(list, w) {
			return coherencePerCue
		}
	}
	return 0
}
