package lexicon

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// maxStoredContexts bounds how many distinct context keys a candidate
// accumulates. Promotion needs three; the rest is headroom.
const maxStoredContexts = 8

func candidateKey(category, word string) string {
	return category + "/" + normalizeWord(word)
}

// contextKey collapses a context snippet to a short stable key so distinct
// contexts can be counted without storing the text. The "x" prefix keeps
// the key from decoding as a number at the persistence boundary.
func contextKey(context string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(context)))
	return "x" + hex.EncodeToString(sum[:4])
}

// TrackCandidate records one sighting of word as a candidate for the given
// category list. Confidence keeps the running max, occurrences increment,
// and distinct contexts accumulate. Once all three promotion thresholds are
// met the word moves into its list and the candidate is deleted. Words
// already in the list are ignored. Reports whether this call promoted.
func (l *Lexicon) TrackCandidate(category, word string, confidence float64, context string) bool {
	word = normalizeWord(word)
	if word == "" || category == "" || l.HasWord(category, word) {
		return false
	}

	key := candidateKey(category, word)
	c, ok := l.candidates[key]
	if !ok {
		c = &Candidate{Category: category, Word: word}
		l.candidates[key] = c
	}
	if confidence > c.Confidence {
		c.Confidence = confidence
	}
	c.Occurrences++
	ck := contextKey(context)
	if !containsString(c.Contexts, ck) && len(c.Contexts) < maxStoredContexts {
		c.Contexts = append(c.Contexts, ck)
	}
	l.dirty[DocCandidates] = true

	if c.Confidence >= l.cfg.PromoteConfidence &&
		c.Occurrences >= l.cfg.PromoteOccurrences &&
		len(c.Contexts) >= l.cfg.PromoteContexts {
		delete(l.candidates, key)
		l.AddWord(category, word)
		l.logger.Debug("candidate promoted",
			zap.String("category", category),
			zap.String("word", word),
			zap.Float64("confidence", c.Confidence),
			zap.Int("occurrences", c.Occurrences))
		return true
	}
	return false
}

// Candidate returns the tracked candidate for (category, word), if any.
func (l *Lexicon) Candidate(category, word string) (*Candidate, bool) {
	c, ok := l.candidates[candidateKey(category, word)]
	return c, ok
}

// Candidates returns tracked candidates, optionally filtered by category,
// sorted by category then word.
func (l *Lexicon) Candidates(category string) []*Candidate {
	out := make([]*Candidate, 0, len(l.candidates))
	for _, c := range l.candidates {
		if category == "" || c.Category == category {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].Word < out[j].Word
	})
	return out
}

// DropCandidate removes a tracked candidate without promoting it.
func (l *Lexicon) DropCandidate(category, word string) bool {
	key := candidateKey(category, word)
	if _, ok := l.candidates[key]; !ok {
		return false
	}
	delete(l.candidates, key)
	l.dirty[DocCandidates] = true
	return true
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
