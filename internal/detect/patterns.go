// Package detect finds entity mentions in narrative text.
//
// Detection runs in two passes over each turn: a multi-word heuristic
// detector claims capitalized runs first, then a standard pattern matcher
// built from the current word lists scans whatever spans remain. All
// patterns are recompiled whenever the backing lists change; a compiled
// pattern is never mutated.
package detect

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"

	"github.com/veilmark/chronicle/internal/lexicon"
)

// Type classifies a detected entity.
type Type string

const (
	Person  Type = "PERSON"
	Place   Type = "PLACE"
	Object  Type = "OBJECT"
	Faction Type = "FACTION"
	Unknown Type = "UNKNOWN"
)

// ParseType maps stored text to a Type, defaulting to Unknown.
func ParseType(s string) Type {
	switch Type(strings.ToUpper(strings.TrimSpace(s))) {
	case Person, Place, Object, Faction:
		return Type(strings.ToUpper(strings.TrimSpace(s)))
	default:
		return Unknown
	}
}

// Pattern group base confidences.
const (
	baseDialogue = 0.85
	baseTitled   = 0.85
	baseAction   = 0.8
	baseTyped    = 0.8
)

// nameRE matches a capitalized name of up to three tokens. Each token ends
// with a letter so trailing possessive apostrophes stay out of names.
const nameRE = `[A-Z][a-z']*[a-z](?: [A-Z][a-z']*[a-z]){0,2}`

// capTokenRE matches one capitalized name token inside typed runs.
const capTokenRE = `[A-Z][a-z']*[a-z]`

// patternVariant is one compiled regex of a group with its capture layout.
type patternVariant struct {
	re         *regexp.Regexp
	nameGroup  int
	titleGroup int
}

// PatternGroup is one named detection template instantiated with the
// current word lists.
type PatternGroup struct {
	Name     string
	Type     Type
	Base     float64
	variants []patternVariant
}

// Patterns is the full compiled pattern set for one vocabulary state.
// Groups appear in priority order; a group whose backing list was empty is
// absent entirely.
type Patterns struct {
	Groups []*PatternGroup
	hash   string
}

// Empty reports whether no group compiled at all.
func (p *Patterns) Empty() bool { return len(p.Groups) == 0 }

// Group returns the named group, or nil.
func (p *Patterns) Group(name string) *PatternGroup {
	for _, g := range p.Groups {
		if g.Name == name {
			return g
		}
	}
	return nil
}

// Builder caches compiled patterns by a content hash of the backing lists,
// so unchanged vocabulary costs one hash per turn instead of a recompile.
type Builder struct {
	hash     string
	compiled *Patterns
}

// patternLists are the word lists the pattern set depends on.
var patternLists = []string{
	lexicon.ListDialogueVerbs,
	lexicon.ListTitles,
	lexicon.ListActionVerbs,
	lexicon.ListPlaceTypes,
	lexicon.ListObjectTypes,
	lexicon.ListFactionWords,
}

// Build returns patterns for the lexicon's current lists, reusing the
// previous compilation when their content is unchanged.
func (b *Builder) Build(lex *lexicon.Lexicon) *Patterns {
	h := listsHash(lex)
	if b.compiled != nil && b.hash == h {
		return b.compiled
	}
	p := compilePatterns(lex)
	p.hash = h
	b.hash = h
	b.compiled = p
	return p
}

func listsHash(lex *lexicon.Lexicon) string {
	hasher := sha256.New()
	for _, name := range patternLists {
		hasher.Write([]byte(name))
		hasher.Write([]byte{0})
		for _, w := range lex.Words(name) {
			hasher.Write([]byte(w))
			hasher.Write([]byte{0x1f})
		}
	}
	return hex.EncodeToString(hasher.Sum(nil))
}

// compilePatterns instantiates every template whose backing list is
// non-empty. A template that fails to compile is dropped silently; the
// rest of the set still matches.
func compilePatterns(lex *lexicon.Lexicon) *Patterns {
	p := &Patterns{}

	dialogue := alternation(lex.Words(lexicon.ListDialogueVerbs))
	if dialogue != "" {
		p.add("dialogue", Person, baseDialogue,
			variant(`["'“”]\s*(?:`+dialogue+`) (`+nameRE+`)`, 1, 0),
			variant(`\b(`+nameRE+`) (?:`+dialogue+`)\b`, 1, 0),
		)
	}

	titles := capAlternation(lex.Words(lexicon.ListTitles))
	if titles != "" {
		p.add("titled", Person, baseTitled,
			variant(`\b(`+titles+`) (`+nameRE+`)`, 2, 1),
		)
	}

	actions := alternation(lex.Words(lexicon.ListActionVerbs))
	if actions != "" {
		p.add("action", Person, baseAction,
			variant(`\b(`+nameRE+`) (?:`+actions+`)\b`, 1, 0),
		)
	}

	if places := capAlternation(lex.Words(lexicon.ListPlaceTypes)); places != "" {
		p.add("typed_place", Place, baseTyped,
			variant(`\b((?:`+capTokenRE+` )+(?:`+places+`))\b`, 1, 0),
		)
	}

	if objects := capAlternation(lex.Words(lexicon.ListObjectTypes)); objects != "" {
		p.add("typed_object", Object, baseTyped,
			variant(`\b((?:`+capTokenRE+` )+(?:`+objects+`))\b`, 1, 0),
		)
	}

	if factions := capAlternation(lex.Words(lexicon.ListFactionWords)); factions != "" {
		p.add("faction", Faction, baseTyped,
			variant(`\b((?:`+capTokenRE+` )+(?:`+factions+`))\b`, 1, 0),
		)
	}

	return p
}

func (p *Patterns) add(name string, typ Type, base float64, variants ...*patternVariant) {
	g := &PatternGroup{Name: name, Type: typ, Base: base}
	for _, v := range variants {
		if v != nil {
			g.variants = append(g.variants, *v)
		}
	}
	if len(g.variants) > 0 {
		p.Groups = append(p.Groups, g)
	}
}

func variant(expr string, nameGroup, titleGroup int) *patternVariant {
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil
	}
	return &patternVariant{re: re, nameGroup: nameGroup, titleGroup: titleGroup}
}

// alternation joins words into an escaped regex alternation, empty when the
// list is.
func alternation(words []string) string {
	parts := make([]string, 0, len(words))
	for _, w := range words {
		if w = strings.TrimSpace(w); w != "" {
			parts = append(parts, regexp.QuoteMeta(w))
		}
	}
	return strings.Join(parts, "|")
}

// capAlternation is alternation over the capitalized form of each word, for
// vocabulary that appears capitalized inside names (titles, type words).
func capAlternation(words []string) string {
	parts := make([]string, 0, len(words))
	for _, w := range words {
		if w = strings.TrimSpace(w); w != "" {
			parts = append(parts, regexp.QuoteMeta(capitalize(w)))
		}
	}
	return strings.Join(parts, "|")
}

func capitalize(w string) string {
	if w == "" {
		return w
	}
	return strings.ToUpper(w[:1]) + w[1:]
}
