// Package assoc tracks the words that show up around each entity and turns
// them into a detection signal. Every accepted mention contributes a small
// context window; later mentions whose windows overlap the stored vocabulary
// earn a confidence boost.
package assoc

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/veilmark/chronicle/internal/detect"
	"github.com/veilmark/chronicle/internal/lexicon"
	"github.com/veilmark/chronicle/internal/store"
)

// DocAssociations is the store document backing the tracker.
const DocAssociations = "associations"

const (
	windowRadius   = 30
	minWordLen     = 3
	strongMinCount = 3
	strongMinRatio = 0.3
	maxStoredWords = 10
	maxBoost       = 0.2
)

// MergeThreshold is the similarity floor for automatic association merges.
const MergeThreshold = 0.85

// mergeRepeatCap bounds how many repeats one word can gain in a merge.
const mergeRepeatCap = 5

var wordRE = regexp.MustCompile(`[A-Za-z]+`)

// WordStat is one context word's counters for one entity.
type WordStat struct {
	Word     string
	Count    int
	Contexts int
}

// Strong reports whether the word has enough support to survive pruning
// ahead of weaker ones.
func (w WordStat) Strong() bool {
	return w.Count >= strongMinCount &&
		float64(w.Count)/float64(w.Contexts) >= strongMinRatio
}

// Tracker holds per-entity context vocabularies for one turn.
type Tracker struct {
	lex    *lexicon.Lexicon
	logger *zap.Logger
	words  map[string]map[string]*WordStat
	dirty  bool
}

// Load reads the association document. A missing document degrades to an
// empty tracker.
func Load(ctx context.Context, st store.Store, lex *lexicon.Lexicon, logger *zap.Logger) (*Tracker, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	doc, err := st.Get(ctx, DocAssociations)
	if err != nil {
		return nil, fmt.Errorf("loading associations: %w", err)
	}

	t := &Tracker{
		lex:    lex,
		logger: logger,
		words:  make(map[string]map[string]*WordStat),
	}
	for _, sec := range doc.Sections {
		stats := make(map[string]*WordStat, len(sec.Fields))
		for _, f := range sec.Fields {
			attrs := store.ParseAttrs(f.Value.String())
			ws := &WordStat{
				Word:     f.Key,
				Count:    int(attrs["count"].AsInt()),
				Contexts: int(attrs["contexts"].AsInt()),
			}
			if ws.Contexts == 0 {
				ws.Contexts = ws.Count
			}
			if ws.Count > 0 {
				stats[ws.Word] = ws
			}
		}
		if len(stats) > 0 {
			t.words[sec.Name] = stats
		}
	}
	return t, nil
}

func key(typ detect.Type, name string) string {
	return string(typ) + "/" + name
}

// Track records the words around one accepted mention. Count and context
// counters move in lockstep, one step per window. Returns how many words
// the window contributed.
func (t *Tracker) Track(typ detect.Type, name, text string, start, end int) int {
	words := t.windowWords(name, text, start, end)
	if len(words) == 0 {
		return 0
	}
	k := key(typ, name)
	stats := t.words[k]
	if stats == nil {
		stats = make(map[string]*WordStat)
		t.words[k] = stats
	}
	for _, w := range words {
		ws := stats[w]
		if ws == nil {
			ws = &WordStat{Word: w}
			stats[w] = ws
		}
		ws.Count++
		ws.Contexts++
	}
	t.dirty = true
	return len(words)
}

// Boost scores how much of the entity's stored vocabulary recurs around
// this mention. Always in [0, 0.2]; exactly 0 when nothing is stored.
func (t *Tracker) Boost(typ detect.Type, name, text string, start, end int) float64 {
	stats := t.words[key(typ, name)]
	if len(stats) == 0 {
		return 0
	}
	window := make(map[string]bool)
	for _, w := range t.windowWords(name, text, start, end) {
		window[w] = true
	}
	matched := 0
	for w := range stats {
		if window[w] {
			matched++
		}
	}
	boost := float64(matched) / float64(len(stats)) * maxBoost
	if boost > maxBoost {
		boost = maxBoost
	}
	return boost
}

// windowWords extracts the usable words in a ±30-character window around a
// span: alphabetic, three letters or longer, not a stop word, not
// blacklisted, not part of the entity's own name. One occurrence per
// window.
func (t *Tracker) windowWords(name, text string, start, end int) []string {
	lo := start - windowRadius
	if lo < 0 {
		lo = 0
	}
	hi := end + windowRadius
	if hi > len(text) {
		hi = len(text)
	}
	// Widen a cut that lands mid-word so edge words stay whole.
	for lo > 0 && isWordByte(text[lo]) && isWordByte(text[lo-1]) {
		lo--
	}
	for hi > 0 && hi < len(text) && isWordByte(text[hi]) && isWordByte(text[hi-1]) {
		hi++
	}
	lowerName := strings.ToLower(name)

	var words []string
	seen := make(map[string]bool)
	for _, raw := range wordRE.FindAllString(text[lo:hi], -1) {
		w := strings.ToLower(raw)
		if len(w) < minWordLen || seen[w] {
			continue
		}
		if strings.Contains(lowerName, w) {
			continue
		}
		if t.lex.HasWord(lexicon.ListStopWords, w) || t.lex.Blacklisted(w) {
			continue
		}
		seen[w] = true
		words = append(words, w)
	}
	return words
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z'
}

// Words returns the entity's stored vocabulary ranked strong-first, then by
// count, then alphabetically.
func (t *Tracker) Words(typ detect.Type, name string) []WordStat {
	stats := t.words[key(typ, name)]
	out := make([]WordStat, 0, len(stats))
	for _, ws := range stats {
		out = append(out, *ws)
	}
	sort.Slice(out, func(i, j int) bool {
		si, sj := out[i].Strong(), out[j].Strong()
		if si != sj {
			return si
		}
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Word < out[j].Word
	})
	return out
}

// StrongWords returns just the words with enough support to matter.
func (t *Tracker) StrongWords(typ detect.Type, name string) []string {
	var out []string
	for _, ws := range t.Words(typ, name) {
		if ws.Strong() {
			out = append(out, ws.Word)
		}
	}
	return out
}

// Entities lists every (type, name) pair with stored associations.
func (t *Tracker) Entities() []string {
	keys := make([]string, 0, len(t.words))
	for k := range t.words {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Merge moves one name's associations onto another, scaling each count by
// the similarity and adding at most 5 repeats per word. The source entry is
// dropped. Source and destination carry their own types so an untyped
// entry can fold into a typed canonical. Returns the number of words
// carried over.
func (t *Tracker) Merge(typ detect.Type, canonical string, fromType detect.Type, from string, similarity float64) int {
	fromKey := key(fromType, from)
	src := t.words[fromKey]
	if len(src) == 0 {
		return 0
	}
	dstKey := key(typ, canonical)
	dst := t.words[dstKey]
	if dst == nil {
		dst = make(map[string]*WordStat)
		t.words[dstKey] = dst
	}

	moved := 0
	for w, ws := range src {
		scaled := int(float64(ws.Count)*similarity + 0.5)
		if scaled > mergeRepeatCap {
			scaled = mergeRepeatCap
		}
		if scaled == 0 {
			continue
		}
		scaledCtx := int(float64(ws.Contexts)*similarity + 0.5)
		if scaledCtx > mergeRepeatCap {
			scaledCtx = mergeRepeatCap
		}
		if scaledCtx == 0 {
			scaledCtx = 1
		}
		target := dst[w]
		if target == nil {
			target = &WordStat{Word: w}
			dst[w] = target
		}
		target.Count += scaled
		target.Contexts += scaledCtx
		moved++
	}
	delete(t.words, fromKey)
	t.dirty = true
	t.logger.Debug("merged associations",
		zap.String("canonical", canonical),
		zap.String("from", from),
		zap.Int("words", moved))
	return moved
}

// Similarity scores two names in [0,1]: twice the length of their longest
// common subsequence over their combined length, case-insensitive. "Kirito"
// and "Kirto" land just above 0.9.
func Similarity(a, b string) float64 {
	ar := []rune(strings.ToLower(strings.TrimSpace(a)))
	br := []rune(strings.ToLower(strings.TrimSpace(b)))
	if len(ar) == 0 && len(br) == 0 {
		return 1
	}
	if len(ar) == 0 || len(br) == 0 {
		return 0
	}
	d := make([][]int, len(ar)+1)
	for i := range d {
		d[i] = make([]int, len(br)+1)
	}
	for i := 1; i <= len(ar); i++ {
		for j := 1; j <= len(br); j++ {
			switch {
			case ar[i-1] == br[j-1]:
				d[i][j] = d[i-1][j-1] + 1
			case d[i-1][j] >= d[i][j-1]:
				d[i][j] = d[i-1][j]
			default:
				d[i][j] = d[i][j-1]
			}
		}
	}
	common := d[len(ar)][len(br)]
	return 2 * float64(common) / float64(len(ar)+len(br))
}

// Save persists the tracker, pruning each entity to its top 10 words. A
// clean tracker writes nothing.
func (t *Tracker) Save(ctx context.Context, st store.Store) error {
	if !t.dirty {
		return nil
	}

	doc := store.NewDocument()
	keys := make([]string, 0, len(t.words))
	for k := range t.words {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		parts := strings.SplitN(k, "/", 2)
		if len(parts) != 2 {
			continue
		}
		ranked := t.Words(detect.Type(parts[0]), parts[1])
		if len(ranked) > maxStoredWords {
			ranked = ranked[:maxStoredWords]
		}
		if len(ranked) == 0 {
			continue
		}

		kept := make(map[string]*WordStat, len(ranked))
		sec := doc.EnsureSection(k)
		for _, ws := range ranked {
			sec.Set(ws.Word, store.StringValue(store.FormatAttrs([]store.Attr{
				{Key: "count", Value: store.IntValue(int64(ws.Count))},
				{Key: "contexts", Value: store.IntValue(int64(ws.Contexts))},
			})))
			w := ws
			kept[ws.Word] = &w
		}
		t.words[k] = kept
	}

	if err := st.Put(ctx, DocAssociations, doc); err != nil {
		return fmt.Errorf("saving associations: %w", err)
	}
	t.dirty = false
	t.logger.Debug("saved associations", zap.Int("entities", len(keys)))
	return nil
}
