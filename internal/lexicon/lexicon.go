// Package lexicon holds the mutable detection vocabulary: word lists, the
// blacklist, role and alias tables, and the candidate-promotion loop that
// feeds learned words back into the lists.
//
// A Lexicon is loaded from the document store at the start of a turn,
// mutated in memory, and saved back at the end. Nothing in this package
// caches across turns.
package lexicon

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/veilmark/chronicle/internal/store"
)

// Document names used by the lexicon.
const (
	DocWordLists  = "word-lists"
	DocBlacklist  = "blacklist"
	DocRoles      = "roles"
	DocAliases    = "aliases"
	DocCandidates = "candidates"
)

// Config controls promotion and blacklist gating thresholds.
type Config struct {
	// PromoteConfidence is the minimum candidate confidence for promotion
	// into a word list. Default: 0.75.
	PromoteConfidence float64

	// PromoteOccurrences is the minimum number of times a candidate must be
	// tracked before promotion. Default: 4.
	PromoteOccurrences int

	// PromoteContexts is the minimum number of distinct contexts a candidate
	// must appear in before promotion. Default: 3.
	PromoteContexts int

	// BlacklistConfidence gates learned blacklist entries: entries below it
	// do not block detection. Default: 0.7.
	BlacklistConfidence float64
}

// DefaultConfig returns the recommended thresholds.
func DefaultConfig() Config {
	return Config{
		PromoteConfidence:   0.75,
		PromoteOccurrences:  4,
		PromoteContexts:     3,
		BlacklistConfidence: 0.7,
	}
}

// BlacklistEntry is one learned blacklist record. Static blacklist words
// are compiled in and never stored.
type BlacklistEntry struct {
	Word        string
	Category    string
	Confidence  float64
	Occurrences int
	LastSeen    int
}

// Candidate is a word on probation for a category's word list.
type Candidate struct {
	Category    string
	Word        string
	Confidence  float64
	Occurrences int
	Contexts    []string
}

// Lexicon is the in-memory view of the persisted vocabulary for one turn.
type Lexicon struct {
	cfg    Config
	logger *zap.Logger

	listNames  []string
	lists      map[string][]string
	blacklist  map[string]*BlacklistEntry
	roles      map[string][]string
	aliases    map[string][]string
	candidates map[string]*Candidate

	dirty map[string]bool
}

// Load reads the vocabulary documents from the store. Missing documents
// degrade to empty collections; an entirely absent word-lists document is
// seeded with the default vocabulary.
func Load(ctx context.Context, st store.Store, cfg Config, logger *zap.Logger) (*Lexicon, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &Lexicon{
		cfg:        cfg,
		logger:     logger,
		lists:      make(map[string][]string),
		blacklist:  make(map[string]*BlacklistEntry),
		roles:      make(map[string][]string),
		aliases:    make(map[string][]string),
		candidates: make(map[string]*Candidate),
		dirty:      make(map[string]bool),
	}

	listsDoc, err := st.Get(ctx, DocWordLists)
	if err != nil {
		return nil, err
	}
	if listsDoc.Empty() {
		l.seedDefaults()
	} else {
		for _, sec := range listsDoc.Sections {
			l.listNames = append(l.listNames, sec.Name)
			l.lists[sec.Name] = append([]string(nil), sec.Items...)
		}
	}

	blDoc, err := st.Get(ctx, DocBlacklist)
	if err != nil {
		return nil, err
	}
	if sec := blDoc.Section("Learned"); sec != nil {
		for _, f := range sec.Fields {
			attrs := store.ParseAttrs(f.Value.Str)
			l.blacklist[f.Key] = &BlacklistEntry{
				Word:        f.Key,
				Category:    attrs["category"].Str,
				Confidence:  attrs["confidence"].AsFloat(),
				Occurrences: int(attrs["occurrences"].AsInt()),
				LastSeen:    int(attrs["last_seen"].AsInt()),
			}
		}
	}

	rolesDoc, err := st.Get(ctx, DocRoles)
	if err != nil {
		return nil, err
	}
	if sec := rolesDoc.Section("Roles"); sec != nil {
		for _, f := range sec.Fields {
			l.roles[f.Key] = splitNames(f.Value.String())
		}
	}

	aliasDoc, err := st.Get(ctx, DocAliases)
	if err != nil {
		return nil, err
	}
	if sec := aliasDoc.Section("Aliases"); sec != nil {
		for _, f := range sec.Fields {
			l.aliases[f.Key] = splitNames(f.Value.String())
		}
	}

	candDoc, err := st.Get(ctx, DocCandidates)
	if err != nil {
		return nil, err
	}
	for _, sec := range candDoc.Sections {
		for _, f := range sec.Fields {
			attrs := store.ParseAttrs(f.Value.Str)
			c := &Candidate{
				Category:    sec.Name,
				Word:        f.Key,
				Confidence:  attrs["confidence"].AsFloat(),
				Occurrences: int(attrs["occurrences"].AsInt()),
			}
			if ctxs := attrs["contexts"].Str; ctxs != "" {
				c.Contexts = strings.Split(ctxs, ";")
			}
			l.candidates[candidateKey(sec.Name, f.Key)] = c
		}
	}

	return l, nil
}

// Save writes every modified document back to the store.
func (l *Lexicon) Save(ctx context.Context, st store.Store) error {
	if l.dirty[DocWordLists] {
		doc := store.NewDocument()
		for _, name := range l.listNames {
			sec := doc.EnsureSection(name)
			sec.Items = append([]string(nil), l.lists[name]...)
		}
		if err := st.Put(ctx, DocWordLists, doc); err != nil {
			return err
		}
	}

	if l.dirty[DocBlacklist] {
		doc := store.NewDocument()
		sec := doc.EnsureSection("Learned")
		for _, word := range sortedKeys(l.blacklist) {
			e := l.blacklist[word]
			sec.Set(word, store.StringValue(store.FormatAttrs([]store.Attr{
				{Key: "category", Value: store.StringValue(e.Category)},
				{Key: "confidence", Value: store.FloatValue(e.Confidence)},
				{Key: "occurrences", Value: store.IntValue(int64(e.Occurrences))},
				{Key: "last_seen", Value: store.IntValue(int64(e.LastSeen))},
			})))
		}
		if err := st.Put(ctx, DocBlacklist, doc); err != nil {
			return err
		}
	}

	if l.dirty[DocRoles] {
		if err := st.Put(ctx, DocRoles, nameMapDoc("Roles", l.roles)); err != nil {
			return err
		}
	}

	if l.dirty[DocAliases] {
		if err := st.Put(ctx, DocAliases, nameMapDoc("Aliases", l.aliases)); err != nil {
			return err
		}
	}

	if l.dirty[DocCandidates] {
		doc := store.NewDocument()
		byCategory := make(map[string][]*Candidate)
		for _, c := range l.candidates {
			byCategory[c.Category] = append(byCategory[c.Category], c)
		}
		for _, cat := range sortedKeys(byCategory) {
			sec := doc.EnsureSection(cat)
			cands := byCategory[cat]
			sort.Slice(cands, func(i, j int) bool { return cands[i].Word < cands[j].Word })
			for _, c := range cands {
				sec.Set(c.Word, store.StringValue(store.FormatAttrs([]store.Attr{
					{Key: "confidence", Value: store.FloatValue(c.Confidence)},
					{Key: "occurrences", Value: store.IntValue(int64(c.Occurrences))},
					{Key: "contexts", Value: store.StringValue(strings.Join(c.Contexts, ";"))},
				})))
			}
		}
		if err := st.Put(ctx, DocCandidates, doc); err != nil {
			return err
		}
	}

	return nil
}

// --- Word lists ---

// ListNames returns the list names in their stored order.
func (l *Lexicon) ListNames() []string {
	return append([]string(nil), l.listNames...)
}

// Words returns a copy of the named list, empty when the list is unknown.
func (l *Lexicon) Words(name string) []string {
	return append([]string(nil), l.lists[name]...)
}

// HasWord reports whether the named list contains word.
func (l *Lexicon) HasWord(name, word string) bool {
	word = normalizeWord(word)
	for _, w := range l.lists[name] {
		if w == word {
			return true
		}
	}
	return false
}

// AddWord appends word to the named list, creating the list if needed.
// Adding a word twice leaves the list unchanged. Any candidate for the same
// category is dropped so a word is never both. Reports whether the list
// changed.
func (l *Lexicon) AddWord(name, word string) bool {
	word = normalizeWord(word)
	if word == "" || l.HasWord(name, word) {
		return false
	}
	if _, known := l.lists[name]; !known {
		l.listNames = append(l.listNames, name)
	}
	l.lists[name] = append(l.lists[name], word)
	delete(l.candidates, candidateKey(name, word))
	l.dirty[DocWordLists] = true
	l.dirty[DocCandidates] = true
	return true
}

// RemoveWord removes word from the named list, reporting whether it was
// present.
func (l *Lexicon) RemoveWord(name, word string) bool {
	word = normalizeWord(word)
	words := l.lists[name]
	for i, w := range words {
		if w == word {
			l.lists[name] = append(words[:i], words[i+1:]...)
			l.dirty[DocWordLists] = true
			return true
		}
	}
	return false
}

// --- Blacklist ---

// Blacklisted reports whether word is excluded from entity candidacy:
// statically, via a learned entry at or above the confidence gate, or via
// the abstract-noun suffix fallback.
func (l *Lexicon) Blacklisted(word string) bool {
	word = normalizeWord(word)
	if staticBlacklist[word] {
		return true
	}
	if e, ok := l.blacklist[word]; ok && e.Confidence >= l.cfg.BlacklistConfidence {
		return true
	}
	return hasAbstractSuffix(word)
}

// StaticBlacklisted reports whether word is in the compiled-in blacklist.
func (l *Lexicon) StaticBlacklisted(word string) bool {
	return staticBlacklist[normalizeWord(word)]
}

// LearnedEntry returns the learned blacklist entry for word, if any.
func (l *Lexicon) LearnedEntry(word string) (*BlacklistEntry, bool) {
	e, ok := l.blacklist[normalizeWord(word)]
	return e, ok
}

// UpsertBlacklistEntry merges e into the learned table: confidence takes
// the max, occurrences accumulate, last_seen advances. Static words are
// never stored.
func (l *Lexicon) UpsertBlacklistEntry(e BlacklistEntry) {
	word := normalizeWord(e.Word)
	if word == "" || staticBlacklist[word] {
		return
	}
	cur, ok := l.blacklist[word]
	if !ok {
		e.Word = word
		l.blacklist[word] = &e
		l.dirty[DocBlacklist] = true
		return
	}
	if e.Confidence > cur.Confidence {
		cur.Confidence = e.Confidence
	}
	cur.Occurrences += e.Occurrences
	if e.LastSeen > cur.LastSeen {
		cur.LastSeen = e.LastSeen
	}
	if e.Category != "" {
		cur.Category = e.Category
	}
	l.dirty[DocBlacklist] = true
}

// BumpBlacklist nudges an existing learned entry toward the confidence cap
// on a repeat rejection. Reports whether the word had an entry.
func (l *Lexicon) BumpBlacklist(word string, turn int) bool {
	e, ok := l.blacklist[normalizeWord(word)]
	if !ok {
		return false
	}
	e.Confidence += 0.02
	if e.Confidence > 0.99 {
		e.Confidence = 0.99
	}
	e.Occurrences++
	e.LastSeen = turn
	l.dirty[DocBlacklist] = true
	return true
}

// RemoveBlacklistEntry deletes a learned entry. Static words cannot be
// removed.
func (l *Lexicon) RemoveBlacklistEntry(word string) bool {
	word = normalizeWord(word)
	if _, ok := l.blacklist[word]; !ok {
		return false
	}
	delete(l.blacklist, word)
	l.dirty[DocBlacklist] = true
	return true
}

// BlacklistEntries returns the learned entries sorted by word.
func (l *Lexicon) BlacklistEntries() []*BlacklistEntry {
	out := make([]*BlacklistEntry, 0, len(l.blacklist))
	for _, word := range sortedKeys(l.blacklist) {
		out = append(out, l.blacklist[word])
	}
	return out
}

// --- Roles ---

// Role resolves a synonym to its canonical role. Unknown words come back
// unchanged.
func (l *Lexicon) Role(word string) string {
	w := normalizeWord(word)
	if _, ok := l.roles[w]; ok {
		return w
	}
	for canonical, syns := range l.roles {
		for _, s := range syns {
			if s == w {
				return canonical
			}
		}
	}
	return word
}

// AddRole registers synonym under the canonical role. A canonical with no
// synonym creates an empty definition.
func (l *Lexicon) AddRole(canonical, synonym string) bool {
	canonical = normalizeWord(canonical)
	if canonical == "" {
		return false
	}
	syns, known := l.roles[canonical]
	if !known {
		l.roles[canonical] = nil
		l.dirty[DocRoles] = true
	}
	if synonym = normalizeWord(synonym); synonym != "" {
		for _, s := range syns {
			if s == synonym {
				return !known
			}
		}
		l.roles[canonical] = append(syns, synonym)
		l.dirty[DocRoles] = true
		return true
	}
	return !known
}

// RemoveRole deletes a synonym from a role, or the whole definition when
// synonym is empty.
func (l *Lexicon) RemoveRole(canonical, synonym string) bool {
	canonical = normalizeWord(canonical)
	syns, ok := l.roles[canonical]
	if !ok {
		return false
	}
	if synonym = normalizeWord(synonym); synonym == "" {
		delete(l.roles, canonical)
		l.dirty[DocRoles] = true
		return true
	}
	for i, s := range syns {
		if s == synonym {
			l.roles[canonical] = append(syns[:i], syns[i+1:]...)
			l.dirty[DocRoles] = true
			return true
		}
	}
	return false
}

// Roles returns the role table keyed by canonical role.
func (l *Lexicon) Roles() map[string][]string {
	out := make(map[string][]string, len(l.roles))
	for k, v := range l.roles {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// --- Aliases ---

// CanonicalName resolves an alternate name to its primary. Unknown names
// come back unchanged. Matching is case-insensitive; the stored primary
// casing is returned.
func (l *Lexicon) CanonicalName(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	for primary, alts := range l.aliases {
		if strings.ToLower(primary) == n {
			return primary
		}
		for _, a := range alts {
			if strings.ToLower(a) == n {
				return primary
			}
		}
	}
	return name
}

// AddAlias registers alternate as an alias of primary.
func (l *Lexicon) AddAlias(primary, alternate string) bool {
	primary = strings.TrimSpace(primary)
	alternate = strings.TrimSpace(alternate)
	if primary == "" || alternate == "" || strings.EqualFold(primary, alternate) {
		return false
	}
	for _, a := range l.aliases[primary] {
		if strings.EqualFold(a, alternate) {
			return false
		}
	}
	l.aliases[primary] = append(l.aliases[primary], alternate)
	l.dirty[DocAliases] = true
	return true
}

// Aliases returns the alias table keyed by primary name.
func (l *Lexicon) Aliases() map[string][]string {
	out := make(map[string][]string, len(l.aliases))
	for k, v := range l.aliases {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// --- helpers ---

func normalizeWord(w string) string {
	return strings.ToLower(strings.TrimSpace(w))
}

func splitNames(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func nameMapDoc(section string, m map[string][]string) *store.Document {
	doc := store.NewDocument()
	sec := doc.EnsureSection(section)
	for _, key := range sortedKeys(m) {
		sec.Set(key, store.StringValue(strings.Join(m[key], ", ")))
	}
	return doc
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
