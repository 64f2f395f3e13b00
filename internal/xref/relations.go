package xref

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/veilmark/chronicle/internal/lexicon"
	"github.com/veilmark/chronicle/internal/store"
)

// DocRelationships is the store document backing the extractor.
const DocRelationships = "relationships"

// Relationship categories, named for the verb list that feeds each.
const (
	CategorySpatial    = "spatial"
	CategoryPossession = "possession"
	CategorySocial     = "social"
	CategoryCombat     = "combat"
)

// Repeat observations raise a relation's confidence toward the cap.
const (
	relationBase      = 0.4
	relationPerRepeat = 0.1
	relationCap       = 0.95
)

var relationCategories = []struct {
	list     string
	category string
}{
	{lexicon.ListSpatialVerbs, CategorySpatial},
	{lexicon.ListPossessionVerbs, CategoryPossession},
	{lexicon.ListSocialVerbs, CategorySocial},
	{lexicon.ListCombatVerbs, CategoryCombat},
}

// relationNamePat matches a capitalized name run, allowing interior
// connectors so "Kingdom of Eldoria" stays whole.
const relationNamePat = `[A-Z][a-z']+(?:(?: (?:of|the))* [A-Z][a-z']+)*`

const subjectPronounPat = `(?i:he|she|they|it)`

// Relationship is one observed subject-verb-object link between two
// registered entities.
type Relationship struct {
	Subject    string
	Relation   string
	Object     string
	Category   string
	Count      int
	Confidence float64
}

// Extractor accumulates relations across turns and persists them as a
// table document.
type Extractor struct {
	lex    *lexicon.Lexicon
	logger *zap.Logger
	rels   map[string]*Relationship
	dirty  bool
}

// LoadExtractor reads the relationship table. A missing document degrades
// to an empty extractor.
func LoadExtractor(ctx context.Context, st store.Store, lex *lexicon.Lexicon, logger *zap.Logger) (*Extractor, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	doc, err := st.Get(ctx, DocRelationships)
	if err != nil {
		return nil, fmt.Errorf("loading relationships: %w", err)
	}

	e := &Extractor{lex: lex, logger: logger, rels: make(map[string]*Relationship)}
	if sec := doc.Section("Relations"); sec != nil {
		for _, row := range sec.Rows {
			if len(row) < 6 {
				continue
			}
			count, err := strconv.Atoi(row[4])
			if err != nil || count < 1 {
				continue
			}
			conf, err := strconv.ParseFloat(row[5], 64)
			if err != nil {
				continue
			}
			rel := &Relationship{
				Subject:    row[0],
				Relation:   row[1],
				Object:     row[2],
				Category:   row[3],
				Count:      count,
				Confidence: conf,
			}
			e.rels[relationKey(rel.Subject, rel.Relation, rel.Object)] = rel
		}
	}
	return e, nil
}

func relationKey(subject, relation, object string) string {
	return strings.ToLower(subject) + "|" + relation + "|" + strings.ToLower(object)
}

// Extract scans text for subject-verb-object shapes over the relation verb
// lists. lookup canonicalizes a surface name to its registered form;
// unresolvable endpoints drop the match. resolve, when given, maps a
// pronoun subject to its antecedent so "He entered the Vault" still links.
// Returns the relations observed in this text, post-update.
func (e *Extractor) Extract(text string, lookup func(string) (string, bool), resolve func(pronoun string, pos int) (string, bool)) []Relationship {
	if lookup == nil {
		return nil
	}

	var seen []Relationship
	counted := make(map[[2]int]bool)
	for _, rc := range relationCategories {
		re := e.categoryPattern(rc.list)
		if re == nil {
			continue
		}
		for _, m := range re.FindAllStringSubmatchIndex(text, -1) {
			// A verb sitting in two lists must not count one match twice.
			span := [2]int{m[0], m[1]}
			if counted[span] {
				continue
			}
			counted[span] = true

			subjRaw := text[m[2]:m[3]]
			verb := strings.ToLower(text[m[4]:m[5]])
			objRaw := text[m[6]:m[7]]

			subject, ok := e.subjectName(subjRaw, m[2], lookup, resolve)
			if !ok {
				continue
			}
			object, ok := e.entityName(objRaw, lookup)
			if !ok || strings.EqualFold(subject, object) {
				continue
			}
			seen = append(seen, *e.record(subject, verb, object, rc.category))
		}
	}
	return seen
}

// categoryPattern compiles the SVO pattern for one verb list, or nil when
// the list is empty.
func (e *Extractor) categoryPattern(list string) *regexp.Regexp {
	verbs := e.lex.Words(list)
	if len(verbs) == 0 {
		return nil
	}
	quoted := make([]string, len(verbs))
	for i, v := range verbs {
		quoted[i] = regexp.QuoteMeta(v)
	}
	pat := `\b(` + relationNamePat + `|` + subjectPronounPat + `) (` +
		strings.Join(quoted, "|") + `) (?:(?:the|a|an|his|her|their|its) )?(` +
		relationNamePat + `)`
	re, err := regexp.Compile(pat)
	if err != nil {
		e.logger.Debug("relation pattern failed", zap.String("list", list), zap.Error(err))
		return nil
	}
	return re
}

func (e *Extractor) subjectName(raw string, pos int, lookup func(string) (string, bool), resolve func(string, int) (string, bool)) (string, bool) {
	if isSubjectPronoun(raw) {
		if resolve == nil {
			return "", false
		}
		return resolve(raw, pos)
	}
	return e.entityName(raw, lookup)
}

// entityName canonicalizes a surface name, retrying without a leading
// title: "Lady Selene" falls back to "Selene".
func (e *Extractor) entityName(raw string, lookup func(string) (string, bool)) (string, bool) {
	if name, ok := lookup(raw); ok {
		return name, true
	}
	toks := strings.Fields(raw)
	if len(toks) >= 2 && e.lex.HasWord(lexicon.ListTitles, strings.ToLower(toks[0])) {
		return lookup(strings.Join(toks[1:], " "))
	}
	return "", false
}

func isSubjectPronoun(word string) bool {
	switch strings.ToLower(word) {
	case "he", "she", "they", "it":
		return true
	}
	return false
}

func (e *Extractor) record(subject, verb, object, category string) *Relationship {
	key := relationKey(subject, verb, object)
	rel := e.rels[key]
	if rel == nil {
		rel = &Relationship{Subject: subject, Relation: verb, Object: object, Category: category}
		e.rels[key] = rel
	}
	rel.Count++
	rel.Confidence = relationBase + relationPerRepeat*float64(rel.Count)
	if rel.Confidence > relationCap {
		rel.Confidence = relationCap
	}
	e.dirty = true
	return rel
}

// Relations returns every relation touching name, strongest first.
func (e *Extractor) Relations(name string) []Relationship {
	var out []Relationship
	for _, rel := range e.rels {
		if strings.EqualFold(rel.Subject, name) || strings.EqualFold(rel.Object, name) {
			out = append(out, *rel)
		}
	}
	sortRelations(out)
	return out
}

// All returns every stored relation, strongest first.
func (e *Extractor) All() []Relationship {
	out := make([]Relationship, 0, len(e.rels))
	for _, rel := range e.rels {
		out = append(out, *rel)
	}
	sortRelations(out)
	return out
}

// Count returns how many distinct relations are stored.
func (e *Extractor) Count() int { return len(e.rels) }

// Rename moves every relation endpoint from one name to another, folding
// collisions together. Used when entities merge.
func (e *Extractor) Rename(from, into string) int {
	moved := 0
	for key, rel := range e.rels {
		subject, object := rel.Subject, rel.Object
		if strings.EqualFold(subject, from) {
			subject = into
		}
		if strings.EqualFold(object, from) {
			object = into
		}
		if subject == rel.Subject && object == rel.Object {
			continue
		}
		delete(e.rels, key)
		if strings.EqualFold(subject, object) {
			moved++
			continue
		}
		newKey := relationKey(subject, rel.Relation, object)
		if cur, ok := e.rels[newKey]; ok {
			cur.Count += rel.Count
			cur.Confidence = relationBase + relationPerRepeat*float64(cur.Count)
			if cur.Confidence > relationCap {
				cur.Confidence = relationCap
			}
		} else {
			rel.Subject, rel.Object = subject, object
			e.rels[newKey] = rel
		}
		moved++
	}
	if moved > 0 {
		e.dirty = true
	}
	return moved
}

// Save writes the relation table when it changed.
func (e *Extractor) Save(ctx context.Context, st store.Store) error {
	if !e.dirty {
		return nil
	}
	doc := store.NewDocument()
	sec := doc.EnsureSection("Relations")
	for _, rel := range e.All() {
		sec.Rows = append(sec.Rows, []string{
			rel.Subject,
			rel.Relation,
			rel.Object,
			rel.Category,
			strconv.Itoa(rel.Count),
			strconv.FormatFloat(rel.Confidence, 'f', 2, 64),
		})
	}
	if err := st.Put(ctx, DocRelationships, doc); err != nil {
		return fmt.Errorf("saving relationships: %w", err)
	}
	e.dirty = false
	e.logger.Debug("saved relationships", zap.Int("relations", len(e.rels)))
	return nil
}

func sortRelations(rels []Relationship) {
	sort.Slice(rels, func(i, j int) bool {
		if rels[i].Count != rels[j].Count {
			return rels[i].Count > rels[j].Count
		}
		if rels[i].Subject != rels[j].Subject {
			return rels[i].Subject < rels[j].Subject
		}
		return rels[i].Relation < rels[j].Relation
	})
}
