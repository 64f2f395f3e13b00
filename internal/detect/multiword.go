package detect

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/veilmark/chronicle/internal/lexicon"
)

// Multi-word template confidences, in priority order.
const (
	confOfTemplate    = 0.85
	confTypedTemplate = 0.8
	confGenericRun    = 0.75
)

// maxConnectorShare rejects generic runs that are mostly connective tissue.
const maxConnectorShare = 0.5

var wordTokenRE = regexp.MustCompile(`[A-Za-z][A-Za-z']*`)

// token is one word of the turn text with its byte offsets.
type token struct {
	start, end int
	text       string
}

func tokenize(text string) []token {
	idx := wordTokenRE.FindAllStringIndex(text, -1)
	tokens := make([]token, 0, len(idx))
	for _, span := range idx {
		tokens = append(tokens, token{start: span[0], end: span[1], text: text[span[0]:span[1]]})
	}
	return tokens
}

func capitalized(s string) bool {
	for _, r := range s {
		return unicode.IsUpper(r)
	}
	return false
}

// multiwordScan walks the token stream for capitalized runs joined by the
// connector vocabulary and applies the three templates in priority order.
// Runs never start on a connector or title word, never cross punctuation,
// and drop trailing connectors. Single capitalized words, and names led by
// a title, are left to the standard matcher.
func (d *Detector) multiwordScan(text string, tokens []token) ([]Detection, []Rejection) {
	var dets []Detection
	var rejs []Rejection

	i := 0
	for i < len(tokens) {
		t := tokens[i]
		if !capitalized(t.text) || d.isConnector(t.text) || d.isTitle(t.text) {
			i++
			continue
		}

		lastCap := i
		j := i + 1
		for j < len(tokens) {
			if !plainSpace(text[tokens[j-1].end:tokens[j].start]) {
				break
			}
			tj := tokens[j]
			if d.isConnector(tj.text) {
				j++
				continue
			}
			if capitalized(tj.text) {
				lastCap = j
				j++
				continue
			}
			break
		}

		det, rej := d.classifyRun(text, tokens[i:lastCap+1])
		if rej != nil {
			rejs = append(rejs, *rej)
		} else if det.Pattern != "" {
			dets = append(dets, det)
		}
		i = lastCap + 1
	}

	return dets, rejs
}

// plainSpace reports whether the separator between two tokens is spaces
// only. Punctuation or a line break ends a run.
func plainSpace(sep string) bool {
	for _, r := range sep {
		if r != ' ' && r != '\t' {
			return false
		}
	}
	return true
}

func (d *Detector) isConnector(word string) bool {
	return d.lex.HasWord(lexicon.ListConnectors, strings.ToLower(word))
}

func (d *Detector) isTitle(word string) bool {
	return d.lex.HasWord(lexicon.ListTitles, strings.ToLower(word))
}

// classifyRun applies the multi-word templates to one capitalized run.
// Runs under two capitalized tokens never classify; a blacklisted token or
// an all-common run comes back as a rejection instead.
func (d *Detector) classifyRun(text string, run []token) (Detection, *Rejection) {
	var capToks []token
	connLen := 0
	ofAt := -1
	for i, t := range run {
		if d.isConnector(t.text) {
			connLen += len(t.text)
			if strings.EqualFold(t.text, "of") && len(capToks) > 0 && ofAt < 0 {
				ofAt = i
			}
			continue
		}
		capToks = append(capToks, t)
	}
	if len(capToks) < 2 {
		return Detection{}, nil
	}

	common := 0
	for _, t := range capToks {
		lower := strings.ToLower(t.text)
		if d.lex.Blacklisted(lower) {
			return Detection{}, &Rejection{Word: lower, Reason: ReasonBlacklisted}
		}
		if d.lex.HasWord(lexicon.ListCommonWords, lower) {
			common++
		}
	}

	start, end := run[0].start, run[len(run)-1].end
	name := text[start:end]

	if common == len(capToks) {
		return Detection{}, &Rejection{Word: strings.ToLower(name), Reason: ReasonTooCommon}
	}

	det := Detection{
		Name:        name,
		Start:       start,
		End:         end,
		Occurrences: 1,
	}

	// "X of Y": capitalized parts on both sides of an "of".
	if ofAt > 0 && ofAt < len(run)-1 && capsAfter(d, run, ofAt) {
		det.Type = d.runType(capToks)
		det.Confidence = confOfTemplate
		det.Pattern = "multiword_of"
		return det, nil
	}

	// Type-suffixed run: last token is a known place/object/faction word.
	if typ := d.typeWord(run[len(run)-1].text); typ != Unknown {
		det.Type = typ
		det.Confidence = confTypedTemplate
		det.Pattern = "multiword_typed"
		return det, nil
	}

	// Generic run: mostly substance rather than connective tissue.
	if float64(connLen)/float64(len(name)) < maxConnectorShare {
		det.Type = Unknown
		det.Confidence = confGenericRun
		det.Pattern = "multiword_generic"
		return det, nil
	}

	return Detection{}, nil
}

// capsAfter reports whether any capitalized token follows position i.
func capsAfter(d *Detector, run []token, i int) bool {
	for _, t := range run[i+1:] {
		if !d.isConnector(t.text) && capitalized(t.text) {
			return true
		}
	}
	return false
}

// runType decides an "X of Y" run's type from its leading type word, then
// its trailing one. Unknown stays Unknown for the classifier to resolve.
func (d *Detector) runType(capToks []token) Type {
	if typ := d.typeWord(capToks[0].text); typ != Unknown {
		return typ
	}
	return d.typeWord(capToks[len(capToks)-1].text)
}

// typeWord maps a single word to the entity type its list implies.
func (d *Detector) typeWord(word string) Type {
	lower := strings.ToLower(word)
	switch {
	case d.lex.HasWord(lexicon.ListPlaceTypes, lower):
		return Place
	case d.lex.HasWord(lexicon.ListObjectTypes, lower):
		return Object
	case d.lex.HasWord(lexicon.ListFactionWords, lower):
		return Faction
	default:
		return Unknown
	}
}
