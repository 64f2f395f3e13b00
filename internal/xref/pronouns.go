// Package xref connects mentions across a narrative: pronouns back to the
// entities they stand for, and subject-verb-object relations between
// registered names.
package xref

import (
	"math"
	"regexp"
	"strings"

	"github.com/veilmark/chronicle/internal/detect"
)

// maxRecency caps how many recent mentions the resolver weighs.
const maxRecency = 10

// Antecedent scoring. Recency decays exponentially down the mention list;
// a mention earlier in the same text adds a proximity share; persons get a
// small edge for personal pronouns.
const (
	recencyDecay    = 0.35
	proximityWeight = 0.5
	proximityRange  = 300.0
	personBonus     = 0.25
)

var pronounRE = regexp.MustCompile(`(?i)\b(he|him|his|himself|she|hers?|herself|it|its|itself|they|them|theirs?|themselves)\b`)

// Mention is one candidate antecedent. Offset is its last position in the
// current text, or -1 for mentions carried over from earlier turns.
type Mention struct {
	Name   string
	Type   detect.Type
	Gender string
	Offset int
}

// Resolution pairs one pronoun occurrence with its antecedent.
type Resolution struct {
	Pronoun string
	Pos     int
	Mention Mention
}

// Resolver matches pronouns against a recency-ordered mention list.
type Resolver struct {
	mentions []Mention
}

// NewResolver builds a resolver over mentions ordered most recent first.
// Only the ten most recent are kept.
func NewResolver(mentions []Mention) *Resolver {
	if len(mentions) > maxRecency {
		mentions = mentions[:maxRecency]
	}
	return &Resolver{mentions: mentions}
}

// Mentions returns the candidate list the resolver holds.
func (r *Resolver) Mentions() []Mention {
	return r.mentions
}

// Resolve finds the best antecedent for a pronoun at the given position.
// Candidates incompatible with the pronoun's gender and number are skipped
// outright; the rest are ranked by recency, proximity, and type fit.
func (r *Resolver) Resolve(pronoun string, pos int) (Mention, bool) {
	c, ok := pronounClass(pronoun)
	if !ok {
		return Mention{}, false
	}

	best := -1
	bestScore := 0.0
	for i, m := range r.mentions {
		if !c.compatible(m) {
			continue
		}
		score := math.Exp(-recencyDecay * float64(i))
		if m.Offset >= 0 && m.Offset < pos {
			d := float64(pos - m.Offset)
			score += proximityWeight * (1 - math.Min(1, d/proximityRange))
		}
		if m.Type == detect.Person && c.personal {
			score += personBonus
		}
		if best < 0 || score > bestScore {
			best, bestScore = i, score
		}
	}
	if best < 0 {
		return Mention{}, false
	}
	return r.mentions[best], true
}

// ResolveAll resolves every pronoun occurrence in text that has a
// compatible antecedent.
func (r *Resolver) ResolveAll(text string) []Resolution {
	var out []Resolution
	for _, m := range pronounRE.FindAllStringIndex(text, -1) {
		word := text[m[0]:m[1]]
		if mention, ok := r.Resolve(word, m[0]); ok {
			out = append(out, Resolution{Pronoun: word, Pos: m[0], Mention: mention})
		}
	}
	return out
}

// class captures what a pronoun demands of its antecedent.
type class struct {
	gender   string
	personal bool
	neuter   bool
	plural   bool
}

func pronounClass(pronoun string) (class, bool) {
	switch strings.ToLower(pronoun) {
	case "he", "him", "his", "himself":
		return class{gender: "male", personal: true}, true
	case "she", "her", "hers", "herself":
		return class{gender: "female", personal: true}, true
	case "it", "its", "itself":
		return class{neuter: true}, true
	case "they", "them", "their", "theirs", "themselves":
		return class{plural: true}, true
	}
	return class{}, false
}

func (c class) compatible(m Mention) bool {
	switch {
	case c.personal:
		return m.Type == detect.Person && (m.Gender == "" || m.Gender == c.gender)
	case c.neuter:
		return m.Type != detect.Person
	case c.plural:
		// Singular they for ungendered persons, collective they for
		// factions.
		return m.Type == detect.Faction || (m.Type == detect.Person && m.Gender == "")
	}
	return false
}
