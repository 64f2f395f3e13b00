package engine

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/veilmark/chronicle/internal/lexicon"
	"github.com/veilmark/chronicle/internal/registry"
)

const commandUsage = `Commands:
  /entities [type]              list registered entities
  /entity <name>                one entity in full
  /lists                        word list overview
  /list show <category>         words in one list
  /list add <category> <word>
  /list remove <category> <word>
  /blacklist                    learned blacklist entries
  /blacklist add <word> [confidence]
  /blacklist remove <word>
  /candidates [category]        words on probation for a list
  /role                         role synonym table
  /role add <canonical> [synonym]
  /role remove <canonical> [synonym]
  /alias                        alias table
  /alias add <primary> -> <alternate>
  /associations <name>          context words for one entity
  /relations <name>             relations touching one entity
  /history [n]                  recent turn snapshots
  /merge <from> -> <into>       fold one entity into another
  /stats                        store-wide counters`

// Command answers one operator slash command. Text without a leading
// slash is not a command and comes back unchanged with handled false.
func (e *Engine) Command(ctx context.Context, line string) (string, bool) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "/") {
		return line, false
	}
	fields := strings.Fields(trimmed)
	name := strings.ToLower(strings.TrimPrefix(fields[0], "/"))
	reply, err := e.runCommand(ctx, name, fields[1:])
	if err != nil {
		return "Error: " + err.Error(), true
	}
	return reply, true
}

func (e *Engine) runCommand(ctx context.Context, name string, args []string) (string, error) {
	switch name {
	case "help":
		return commandUsage, nil
	case "entities":
		return e.cmdEntities(ctx, args)
	case "entity":
		return e.cmdEntity(ctx, args)
	case "lists":
		return e.cmdLists(ctx)
	case "list":
		return e.cmdList(ctx, args)
	case "blacklist":
		return e.cmdBlacklist(ctx, args)
	case "candidates":
		return e.cmdCandidates(ctx, args)
	case "role":
		return e.cmdRole(ctx, args)
	case "alias":
		return e.cmdAlias(ctx, args)
	case "associations":
		return e.cmdAssociations(ctx, args)
	case "relations":
		return e.cmdRelations(ctx, args)
	case "history":
		return e.cmdHistory(ctx, args)
	case "merge":
		return e.cmdMerge(ctx, args)
	case "stats":
		return e.cmdStats(ctx)
	default:
		return "", fmt.Errorf("unknown command: /%s (try /help)", name)
	}
}

func (e *Engine) cmdEntities(ctx context.Context, args []string) (string, error) {
	ents, err := e.EntityList(ctx, joinArgs(args))
	if err != nil {
		return "", err
	}
	if len(ents) == 0 {
		return "No entities registered.", nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Entities (%d):", len(ents))
	for _, ent := range ents {
		fmt.Fprintf(&b, "\n  %-24s %-8s conf %.2f  seen %d",
			ent.Name, ent.Type, ent.Confidence, ent.Occurrences)
		if ent.Gender != "" {
			fmt.Fprintf(&b, "  %s", ent.Gender)
		}
	}
	return b.String(), nil
}

func (e *Engine) cmdEntity(ctx context.Context, args []string) (string, error) {
	name := joinArgs(args)
	if name == "" {
		return "", fmt.Errorf("usage: /entity <name>")
	}
	d, err := e.EntityDetail(ctx, name)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s)\n  confidence %.2f, seen %d times",
		d.Entity.Name, d.Entity.Type, d.Entity.Confidence, d.Entity.Occurrences)
	if d.Entity.Gender != "" {
		fmt.Fprintf(&b, ", %s", d.Entity.Gender)
	}
	if len(d.Aliases) > 0 {
		fmt.Fprintf(&b, "\n  aliases: %s", strings.Join(d.Aliases, ", "))
	}
	if len(d.Associations) > 0 {
		words := make([]string, 0, len(d.Associations))
		for _, w := range d.Associations {
			words = append(words, fmt.Sprintf("%s (%d/%d)", w.Word, w.Count, w.Contexts))
		}
		fmt.Fprintf(&b, "\n  associations: %s", strings.Join(words, ", "))
	}
	for _, rel := range d.Relations {
		fmt.Fprintf(&b, "\n  %s %s %s (%s, x%d, conf %.2f)",
			rel.Subject, rel.Relation, rel.Object, rel.Category, rel.Count, rel.Confidence)
	}
	return b.String(), nil
}

func (e *Engine) cmdLists(ctx context.Context) (string, error) {
	s, err := e.loadState(ctx)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString("Word lists:")
	for _, name := range s.lex.ListNames() {
		fmt.Fprintf(&b, "\n  %-20s %d words", name, len(s.lex.Words(name)))
	}
	return b.String(), nil
}

func (e *Engine) cmdList(ctx context.Context, args []string) (string, error) {
	if len(args) < 2 {
		return "", fmt.Errorf("usage: /list show|add|remove <category> [word]")
	}
	s, err := e.loadState(ctx)
	if err != nil {
		return "", err
	}
	sub, category := args[0], strings.ToLower(args[1])
	if !hasList(s.lex, category) {
		return "", fmt.Errorf("unknown list: %s (see /lists)", category)
	}

	switch sub {
	case "show":
		words := s.lex.Words(category)
		return fmt.Sprintf("%s (%d): %s", category, len(words), strings.Join(words, ", ")), nil
	case "add":
		if len(args) < 3 {
			return "", fmt.Errorf("usage: /list add <category> <word>")
		}
		word := strings.ToLower(args[2])
		if !s.lex.AddWord(category, word) {
			return fmt.Sprintf("%q is already in %s.", word, category), nil
		}
		e.saveState(ctx, s)
		return fmt.Sprintf("Added %q to %s.", word, category), nil
	case "remove":
		if len(args) < 3 {
			return "", fmt.Errorf("usage: /list remove <category> <word>")
		}
		word := strings.ToLower(args[2])
		if !s.lex.RemoveWord(category, word) {
			return fmt.Sprintf("%q is not in %s.", word, category), nil
		}
		e.saveState(ctx, s)
		return fmt.Sprintf("Removed %q from %s.", word, category), nil
	default:
		return "", fmt.Errorf("unknown subcommand: /list %s", sub)
	}
}

func (e *Engine) cmdBlacklist(ctx context.Context, args []string) (string, error) {
	s, err := e.loadState(ctx)
	if err != nil {
		return "", err
	}
	if len(args) == 0 || args[0] == "show" {
		entries := s.lex.BlacklistEntries()
		if len(entries) == 0 {
			return "No learned blacklist entries.", nil
		}
		var b strings.Builder
		fmt.Fprintf(&b, "Learned blacklist (%d):", len(entries))
		for _, entry := range entries {
			fmt.Fprintf(&b, "\n  %-16s %-18s conf %.2f  seen %d  turn %d",
				entry.Word, entry.Category, entry.Confidence, entry.Occurrences, entry.LastSeen)
		}
		return b.String(), nil
	}

	switch args[0] {
	case "add":
		if len(args) < 2 {
			return "", fmt.Errorf("usage: /blacklist add <word> [confidence]")
		}
		conf := 0.9
		if len(args) > 2 {
			f, err := strconv.ParseFloat(args[2], 64)
			if err != nil || f <= 0 || f > 1 {
				return "", fmt.Errorf("confidence must be in (0, 1]: %s", args[2])
			}
			conf = f
		}
		s.lex.UpsertBlacklistEntry(lexicon.BlacklistEntry{
			Word:        args[1],
			Category:    "manual",
			Confidence:  conf,
			Occurrences: 1,
			LastSeen:    s.reg.Turn(),
		})
		e.saveState(ctx, s)
		return fmt.Sprintf("Blacklisted %q at %.2f.", strings.ToLower(args[1]), conf), nil
	case "remove":
		if len(args) < 2 {
			return "", fmt.Errorf("usage: /blacklist remove <word>")
		}
		if !s.lex.RemoveBlacklistEntry(args[1]) {
			return fmt.Sprintf("No learned entry for %q.", strings.ToLower(args[1])), nil
		}
		e.saveState(ctx, s)
		return fmt.Sprintf("Removed %q from the blacklist.", strings.ToLower(args[1])), nil
	default:
		return "", fmt.Errorf("unknown subcommand: /blacklist %s", args[0])
	}
}

func (e *Engine) cmdCandidates(ctx context.Context, args []string) (string, error) {
	s, err := e.loadState(ctx)
	if err != nil {
		return "", err
	}
	cands := s.lex.Candidates(joinArgs(args))
	if len(cands) == 0 {
		return "No candidates tracked.", nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Candidates (%d):", len(cands))
	for _, c := range cands {
		fmt.Fprintf(&b, "\n  %-16s %-18s conf %.2f  seen %d  contexts %d",
			c.Word, c.Category, c.Confidence, c.Occurrences, len(c.Contexts))
	}
	return b.String(), nil
}

func (e *Engine) cmdRole(ctx context.Context, args []string) (string, error) {
	s, err := e.loadState(ctx)
	if err != nil {
		return "", err
	}
	if len(args) == 0 {
		roles := s.lex.Roles()
		if len(roles) == 0 {
			return "No roles defined.", nil
		}
		names := make([]string, 0, len(roles))
		for name := range roles {
			names = append(names, name)
		}
		sort.Strings(names)
		var b strings.Builder
		b.WriteString("Roles:")
		for _, name := range names {
			fmt.Fprintf(&b, "\n  %-16s %s", name, strings.Join(roles[name], ", "))
		}
		return b.String(), nil
	}

	if len(args) < 2 {
		return "", fmt.Errorf("usage: /role add|remove <canonical> [synonym]")
	}
	canonical := args[1]
	synonym := ""
	if len(args) > 2 {
		synonym = args[2]
	}
	switch args[0] {
	case "add":
		if !s.lex.AddRole(canonical, synonym) {
			return "Role unchanged.", nil
		}
		e.saveState(ctx, s)
		return fmt.Sprintf("Role %q updated.", strings.ToLower(canonical)), nil
	case "remove":
		if !s.lex.RemoveRole(canonical, synonym) {
			return fmt.Sprintf("No role %q.", strings.ToLower(canonical)), nil
		}
		e.saveState(ctx, s)
		return fmt.Sprintf("Role %q updated.", strings.ToLower(canonical)), nil
	default:
		return "", fmt.Errorf("unknown subcommand: /role %s", args[0])
	}
}

func (e *Engine) cmdAlias(ctx context.Context, args []string) (string, error) {
	s, err := e.loadState(ctx)
	if err != nil {
		return "", err
	}
	if len(args) == 0 {
		aliases := s.lex.Aliases()
		if len(aliases) == 0 {
			return "No aliases defined.", nil
		}
		primaries := make([]string, 0, len(aliases))
		for p := range aliases {
			primaries = append(primaries, p)
		}
		sort.Strings(primaries)
		var b strings.Builder
		b.WriteString("Aliases:")
		for _, p := range primaries {
			fmt.Fprintf(&b, "\n  %-20s %s", p, strings.Join(aliases[p], ", "))
		}
		return b.String(), nil
	}

	if args[0] != "add" {
		return "", fmt.Errorf("unknown subcommand: /alias %s", args[0])
	}
	primary, alternate, err := splitPair(args[1:])
	if err != nil {
		return "", fmt.Errorf("usage: /alias add <primary> -> <alternate>")
	}
	if !s.lex.AddAlias(primary, alternate) {
		return "Alias unchanged.", nil
	}
	e.saveState(ctx, s)
	return fmt.Sprintf("%q now resolves to %q.", alternate, primary), nil
}

func (e *Engine) cmdAssociations(ctx context.Context, args []string) (string, error) {
	name := joinArgs(args)
	if name == "" {
		return "", fmt.Errorf("usage: /associations <name>")
	}
	d, err := e.EntityDetail(ctx, name)
	if err != nil {
		return "", err
	}
	if len(d.Associations) == 0 {
		return fmt.Sprintf("No associations for %s yet.", d.Entity.Name), nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Associations for %s:", d.Entity.Name)
	for _, w := range d.Associations {
		marker := ""
		if w.Strong() {
			marker = "  strong"
		}
		fmt.Fprintf(&b, "\n  %-16s count %d  contexts %d%s", w.Word, w.Count, w.Contexts, marker)
	}
	return b.String(), nil
}

func (e *Engine) cmdRelations(ctx context.Context, args []string) (string, error) {
	name := joinArgs(args)
	if name == "" {
		return "", fmt.Errorf("usage: /relations <name>")
	}
	d, err := e.EntityDetail(ctx, name)
	if err != nil {
		return "", err
	}
	if len(d.Relations) == 0 {
		return fmt.Sprintf("No relations for %s yet.", d.Entity.Name), nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Relations for %s:", d.Entity.Name)
	for _, rel := range d.Relations {
		fmt.Fprintf(&b, "\n  %s %s %s (%s, x%d, conf %.2f)",
			rel.Subject, rel.Relation, rel.Object, rel.Category, rel.Count, rel.Confidence)
	}
	return b.String(), nil
}

func (e *Engine) cmdHistory(ctx context.Context, args []string) (string, error) {
	n := 5
	if len(args) > 0 {
		v, err := strconv.Atoi(args[0])
		if err != nil || v < 1 {
			return "", fmt.Errorf("usage: /history [n]")
		}
		n = v
	}
	snaps, err := e.HistoryList(ctx, n)
	if err != nil {
		return "", err
	}
	if len(snaps) == 0 {
		return "No turns recorded yet.", nil
	}
	var b strings.Builder
	for i, snap := range snaps {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "Turn %d:", snap.Turn)
		if len(snap.Entries) == 0 {
			b.WriteString(" (nothing accepted)")
			continue
		}
		parts := make([]string, 0, len(snap.Entries))
		for _, entry := range snap.Entries {
			parts = append(parts, fmt.Sprintf("%s (%s %.2f)", entry.Name, entry.Type, entry.Confidence))
		}
		b.WriteString(" " + strings.Join(parts, ", "))
	}
	return b.String(), nil
}

func (e *Engine) cmdMerge(ctx context.Context, args []string) (string, error) {
	from, into, err := splitPair(args)
	if err != nil {
		return "", fmt.Errorf("usage: /merge <from> -> <into>")
	}
	s, err := e.loadState(ctx)
	if err != nil {
		return "", err
	}
	fromEnt, ok := s.reg.Get(s.lex.CanonicalName(from))
	if !ok {
		return "", fmt.Errorf("unknown entity: %s", from)
	}
	intoEnt, ok := s.reg.Get(s.lex.CanonicalName(into))
	if !ok {
		return "", fmt.Errorf("unknown entity: %s", into)
	}
	// Operator merges carry full weight regardless of name similarity.
	if !mergeEntity(s, intoEnt, fromEnt, 1.0) {
		return "", fmt.Errorf("cannot merge %s into %s", fromEnt.Name, intoEnt.Name)
	}
	e.saveState(ctx, s)
	return fmt.Sprintf("Merged %s into %s.", fromEnt.Name, intoEnt.Name), nil
}

func (e *Engine) cmdStats(ctx context.Context) (string, error) {
	st, err := e.Stats(ctx)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Turn %d", st.Turn)
	fmt.Fprintf(&b, "\nEntities: %d", st.Entities)
	for _, typ := range []string{"PERSON", "PLACE", "OBJECT", "FACTION", "UNKNOWN"} {
		if n := st.ByType[typ]; n > 0 {
			fmt.Fprintf(&b, "\n  %-8s %d", typ, n)
		}
	}
	fmt.Fprintf(&b, "\nWord lists: %d (%d words)", st.Lists, st.ListWords)
	fmt.Fprintf(&b, "\nCandidates: %d", st.Candidates)
	fmt.Fprintf(&b, "\nLearned blacklist: %d", st.BlacklistWords)
	fmt.Fprintf(&b, "\nRoles: %d, aliases: %d", st.Roles, st.Aliases)
	fmt.Fprintf(&b, "\nTracked associations: %d entities", st.TrackedEntities)
	fmt.Fprintf(&b, "\nRelations: %d", st.Relations)
	fmt.Fprintf(&b, "\nHistory: %d turns", st.HistoryTurns)
	return b.String(), nil
}

func hasList(lex *lexicon.Lexicon, category string) bool {
	for _, name := range lex.ListNames() {
		if name == category {
			return true
		}
	}
	return false
}

// splitPair parses "<a...> -> <b...>" arguments, falling back to exactly
// two plain tokens.
func splitPair(args []string) (string, string, error) {
	joined := joinArgs(args)
	if i := strings.Index(joined, "->"); i >= 0 {
		a := strings.TrimSpace(joined[:i])
		b := strings.TrimSpace(joined[i+2:])
		if a == "" || b == "" {
			return "", "", fmt.Errorf("both names are required")
		}
		return a, b, nil
	}
	if len(args) == 2 {
		return args[0], args[1], nil
	}
	return "", "", fmt.Errorf("expected <a> -> <b>")
}

// mergeEntity folds one registry entry into another across every
// subsystem: occurrences and confidence merge, associations transfer at
// the given similarity, relations rename, and the old name becomes an
// alias of the canonical one.
func mergeEntity(s *state, canon, from registry.Entity, similarity float64) bool {
	if !s.reg.Merge(from.Name, canon.Name) {
		return false
	}
	s.tracker.Merge(canon.Type, canon.Name, canon.Type, from.Name, similarity)
	if from.Type != canon.Type {
		s.tracker.Merge(canon.Type, canon.Name, from.Type, from.Name, similarity)
	}
	s.rels.Rename(from.Name, canon.Name)
	s.lex.AddAlias(canon.Name, from.Name)
	return true
}
