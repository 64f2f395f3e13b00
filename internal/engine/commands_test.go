package engine

import (
	"context"
	"strings"
	"testing"
)

func mustCommand(t *testing.T, e *Engine, line string) string {
	t.Helper()
	out, handled := e.Command(context.Background(), line)
	if !handled {
		t.Fatalf("command %q not handled", line)
	}
	if strings.HasPrefix(out, "Error:") {
		t.Fatalf("command %q failed: %s", line, out)
	}
	return out
}

func TestCommandRouting(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	if out, handled := e.Command(ctx, "just narration"); handled || out != "just narration" {
		t.Errorf("plain text handled as command: %q", out)
	}
	out, handled := e.Command(ctx, "/bogus")
	if !handled {
		t.Fatal("slash line not handled")
	}
	if out != "Error: unknown command: /bogus (try /help)" {
		t.Errorf("unknown command reply = %q", out)
	}
	if out := mustCommand(t, e, "/help"); !strings.Contains(out, "/entities") {
		t.Errorf("help output missing commands: %q", out)
	}
}

func TestCommandListLifecycle(t *testing.T) {
	e := newTestEngine(t)

	out := mustCommand(t, e, "/list add dialogue_verbs trilled")
	if out != `Added "trilled" to dialogue_verbs.` {
		t.Errorf("add reply = %q", out)
	}
	if out := mustCommand(t, e, "/list show dialogue_verbs"); !strings.Contains(out, "trilled") {
		t.Errorf("added word missing from list: %q", out)
	}
	if out := mustCommand(t, e, "/list add dialogue_verbs trilled"); !strings.Contains(out, "already") {
		t.Errorf("duplicate add reply = %q", out)
	}
	out = mustCommand(t, e, "/list remove dialogue_verbs trilled")
	if out != `Removed "trilled" from dialogue_verbs.` {
		t.Errorf("remove reply = %q", out)
	}

	if reply, _ := e.Command(context.Background(), "/list add no_such_list word"); !strings.Contains(reply, "unknown list") {
		t.Errorf("unknown list reply = %q", reply)
	}
	if out := mustCommand(t, e, "/lists"); !strings.Contains(out, "dialogue_verbs") {
		t.Errorf("lists overview = %q", out)
	}
}

func TestCommandBlacklistLifecycle(t *testing.T) {
	e := newTestEngine(t)

	out := mustCommand(t, e, "/blacklist add Soon 0.95")
	if out != `Blacklisted "soon" at 0.95.` {
		t.Errorf("add reply = %q", out)
	}
	show := mustCommand(t, e, "/blacklist")
	if !strings.Contains(show, "soon") || !strings.Contains(show, "manual") {
		t.Errorf("blacklist listing = %q", show)
	}
	out = mustCommand(t, e, "/blacklist remove soon")
	if out != `Removed "soon" from the blacklist.` {
		t.Errorf("remove reply = %q", out)
	}
	if out := mustCommand(t, e, "/blacklist remove soon"); !strings.Contains(out, "No learned entry") {
		t.Errorf("double remove reply = %q", out)
	}

	if reply, _ := e.Command(context.Background(), "/blacklist add Soon 1.5"); !strings.Contains(reply, "confidence") {
		t.Errorf("bad confidence reply = %q", reply)
	}
}

func TestCommandEntityViews(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	if out := mustCommand(t, e, "/entities"); out != "No entities registered." {
		t.Errorf("empty entities reply = %q", out)
	}

	e.Process(ctx, HookOutput, `"Hello," said Marcus.`)

	out := mustCommand(t, e, "/entities")
	if !strings.Contains(out, "Marcus") || !strings.Contains(out, "PERSON") {
		t.Errorf("entities listing = %q", out)
	}
	if out := mustCommand(t, e, "/entities place"); out != "No entities registered." {
		t.Errorf("filtered listing = %q", out)
	}
	if reply, _ := e.Command(ctx, "/entities dragon"); !strings.Contains(reply, "unknown entity type") {
		t.Errorf("bad type reply = %q", reply)
	}

	detail := mustCommand(t, e, "/entity Marcus")
	if !strings.HasPrefix(detail, "Marcus (PERSON)") {
		t.Errorf("entity detail = %q", detail)
	}
	if reply, _ := e.Command(ctx, "/entity Nobody"); reply != "Error: unknown entity: Nobody" {
		t.Errorf("missing entity reply = %q", reply)
	}
}

func TestCommandMergeFoldsEntities(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	e.Process(ctx, HookOutput, `"Hi," said Marcus. "Welcome," said Selene.`)

	out := mustCommand(t, e, "/merge Marcus -> Selene")
	if out != "Merged Marcus into Selene." {
		t.Errorf("merge reply = %q", out)
	}

	ents, err := e.EntityList(ctx, "")
	if err != nil {
		t.Fatalf("EntityList failed: %v", err)
	}
	if len(ents) != 1 || ents[0].Name != "Selene" || ents[0].Occurrences != 2 {
		t.Errorf("entities after merge = %+v, want Selene with 2 occurrences", ents)
	}
	d, err := e.EntityDetail(ctx, "Marcus")
	if err != nil {
		t.Fatalf("EntityDetail(Marcus) failed: %v", err)
	}
	if d.Entity.Name != "Selene" {
		t.Errorf("old name resolved to %q, want Selene", d.Entity.Name)
	}

	if reply, _ := e.Command(ctx, "/merge Selene -> Nobody"); reply != "Error: unknown entity: Nobody" {
		t.Errorf("missing target reply = %q", reply)
	}
	if reply, _ := e.Command(ctx, "/merge Selene"); !strings.Contains(reply, "usage") {
		t.Errorf("malformed merge reply = %q", reply)
	}
}

func TestCommandAlias(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	e.Process(ctx, HookOutput, `"Hello," said Marcus.`)

	out := mustCommand(t, e, "/alias add Marcus -> Marc")
	if out != `"Marc" now resolves to "Marcus".` {
		t.Errorf("alias reply = %q", out)
	}
	d, err := e.EntityDetail(ctx, "Marc")
	if err != nil {
		t.Fatalf("EntityDetail(Marc) failed: %v", err)
	}
	if d.Entity.Name != "Marcus" {
		t.Errorf("alias resolved to %q, want Marcus", d.Entity.Name)
	}
	if out := mustCommand(t, e, "/alias"); !strings.Contains(out, "Marc") {
		t.Errorf("alias table = %q", out)
	}
	if out := mustCommand(t, e, "/alias add Marcus -> Marc"); out != "Alias unchanged." {
		t.Errorf("duplicate alias reply = %q", out)
	}
}

func TestCommandRole(t *testing.T) {
	e := newTestEngine(t)

	if out := mustCommand(t, e, "/role"); out != "No roles defined." {
		t.Errorf("empty roles reply = %q", out)
	}
	mustCommand(t, e, "/role add healer medic")
	if out := mustCommand(t, e, "/role"); !strings.Contains(out, "healer") || !strings.Contains(out, "medic") {
		t.Errorf("role table = %q", out)
	}
	mustCommand(t, e, "/role remove healer")
	if out := mustCommand(t, e, "/role"); out != "No roles defined." {
		t.Errorf("roles after remove = %q", out)
	}
}

func TestCommandStatsAndHistory(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	e.Process(ctx, HookOutput, `"Hello," said Marcus.`)

	stats := mustCommand(t, e, "/stats")
	for _, want := range []string{"Turn 1", "Entities: 1", "PERSON"} {
		if !strings.Contains(stats, want) {
			t.Errorf("stats output missing %q: %q", want, stats)
		}
	}

	hist := mustCommand(t, e, "/history")
	if !strings.HasPrefix(hist, "Turn 1:") || !strings.Contains(hist, "Marcus (PERSON") {
		t.Errorf("history output = %q", hist)
	}
	if reply, _ := e.Command(ctx, "/history zero"); !strings.Contains(reply, "usage") {
		t.Errorf("bad history arg reply = %q", reply)
	}
}
