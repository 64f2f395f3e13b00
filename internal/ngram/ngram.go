// Package ngram classifies bare words by the character shapes of names
// already in the registry. It is a weak signal on its own; the ensemble
// scorer weighs it against the others.
package ngram

import (
	"strings"

	"github.com/veilmark/chronicle/internal/detect"
)

const (
	gramSize      = 3
	minConfidence = 0.6
)

// classifyOrder fixes tie-breaking between equally scored types.
var classifyOrder = []detect.Type{detect.Person, detect.Place, detect.Object, detect.Faction}

// Classifier holds per-type trigram tables. Build one per turn from the
// registry's current names.
type Classifier struct {
	tables map[detect.Type]map[string]int
}

// NewClassifier returns an empty classifier.
func NewClassifier() *Classifier {
	return &Classifier{tables: make(map[detect.Type]map[string]int)}
}

// Train adds one name's trigrams to its type's table. Unknown-typed names
// teach nothing.
func (c *Classifier) Train(typ detect.Type, name string) {
	if typ == detect.Unknown {
		return
	}
	grams := grams(name)
	if len(grams) == 0 {
		return
	}
	table := c.tables[typ]
	if table == nil {
		table = make(map[string]int)
		c.tables[typ] = table
	}
	for _, g := range grams {
		table[g]++
	}
}

// Trained reports whether any table has content.
func (c *Classifier) Trained() bool {
	for _, table := range c.tables {
		if len(table) > 0 {
			return true
		}
	}
	return false
}

// Classify scores a word against every table by normalized trigram overlap
// and returns the best type, or Unknown when no table clears 0.6.
func (c *Classifier) Classify(word string) (detect.Type, float64) {
	grams := grams(word)
	if len(grams) == 0 {
		return detect.Unknown, 0
	}

	best := detect.Unknown
	bestScore := 0.0
	for _, typ := range classifyOrder {
		table := c.tables[typ]
		if len(table) == 0 {
			continue
		}
		matched := 0
		for _, g := range grams {
			if table[g] > 0 {
				matched++
			}
		}
		score := float64(matched) / float64(len(grams))
		if score > bestScore {
			best = typ
			bestScore = score
		}
	}

	if bestScore < minConfidence {
		return detect.Unknown, 0
	}
	return best, bestScore
}

// grams slides a 3-character window over the lowercased word. Distinct
// grams only; spaces inside multi-word names stay in, so word boundaries
// contribute shape too.
func grams(word string) []string {
	w := strings.ToLower(strings.TrimSpace(word))
	runes := []rune(w)
	if len(runes) < gramSize {
		return nil
	}
	seen := make(map[string]bool)
	var out []string
	for i := 0; i+gramSize <= len(runes); i++ {
		g := string(runes[i : i+gramSize])
		if !seen[g] {
			seen[g] = true
			out = append(out, g)
		}
	}
	return out
}
