// Package mcp provides a Model Context Protocol server for Chronicle.
//
// It exposes the turn pipeline and the operator surface (entities,
// commands, history, stats) as MCP tools, and the entity registry and
// store counters as MCP resources, over the stdio transport.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/veilmark/chronicle/internal/engine"
	"github.com/veilmark/chronicle/internal/registry"
	"github.com/veilmark/chronicle/internal/store"
)

// ServerConfig holds configuration for the MCP server.
type ServerConfig struct {
	Store   store.Store
	Engine  *engine.Engine // optional; built from Store when nil
	Version string
	Logger  *zap.Logger
}

// dbMu serializes all MCP tool calls. The mcp-go library dispatches
// handlers concurrently, and the engine loads and saves whole documents
// per call, so interleaved calls would clobber each other's writes.
var dbMu sync.Mutex

// NewServer creates a configured MCP server with all Chronicle tools and
// resources.
func NewServer(cfg ServerConfig) *server.MCPServer {
	ver := cfg.Version
	if ver == "" {
		ver = "dev"
	}
	eng := cfg.Engine
	if eng == nil {
		eng = engine.New(cfg.Store, engine.DefaultConfig(), cfg.Logger)
	}

	s := server.NewMCPServer(
		"Chronicle",
		ver,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(true, false),
	)

	registerProcessTool(s, eng)
	registerEntitiesTool(s, eng)
	registerEntityTool(s, eng)
	registerCommandTool(s, eng)
	registerHistoryTool(s, eng)
	registerStatsTool(s, eng)

	registerRegistryResource(s, eng)
	registerStatsResource(s, eng)

	return s
}

// --- JSON views ---
//
// The domain structs carry no JSON tags; tools and resources marshal
// these views instead so the wire shape stays stable and lowercase.

type entityView struct {
	Name        string  `json:"name"`
	Type        string  `json:"type"`
	Confidence  float64 `json:"confidence"`
	Occurrences int     `json:"occurrences"`
	Gender      string  `json:"gender,omitempty"`
}

type wordView struct {
	Word     string `json:"word"`
	Count    int    `json:"count"`
	Contexts int    `json:"contexts"`
	Strong   bool   `json:"strong"`
}

type relationView struct {
	Subject    string  `json:"subject"`
	Relation   string  `json:"relation"`
	Object     string  `json:"object"`
	Category   string  `json:"category"`
	Count      int     `json:"count"`
	Confidence float64 `json:"confidence"`
}

type snapshotView struct {
	Turn    int          `json:"turn"`
	Entries []entityView `json:"entries"`
}

func entityViews(ents []registry.Entity) []entityView {
	out := make([]entityView, 0, len(ents))
	for _, ent := range ents {
		out = append(out, entityView{
			Name:        ent.Name,
			Type:        string(ent.Type),
			Confidence:  ent.Confidence,
			Occurrences: ent.Occurrences,
			Gender:      ent.Gender,
		})
	}
	return out
}

// --- Tools ---

func registerProcessTool(s *server.MCPServer, eng *engine.Engine) {
	tool := mcp.NewTool("chronicle_process",
		mcp.WithDescription("Run one hook pass over text. The output hook analyzes narrative text, updates the entity store, and returns the turn report. The input hook answers slash commands."),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("text",
			mcp.Required(),
			mcp.Description("Narrative text (output hook) or a slash command (input hook)"),
		),
		mcp.WithString("hook",
			mcp.Description("Hook to run: input or output (default: output)"),
			mcp.Enum("input", "output"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		text, err := req.RequireString("text")
		if err != nil {
			return mcp.NewToolResultError("text is required"), nil
		}

		hook := engine.HookOutput
		if h, err := req.RequireString("hook"); err == nil && h != "" {
			hook = h
		}

		switch hook {
		case engine.HookInput:
			reply, handled := eng.Command(ctx, text)
			if !handled {
				return mcp.NewToolResultError("input hook expects a slash command"), nil
			}
			return mcp.NewToolResultText(reply), nil
		case engine.HookOutput:
			rep, err := eng.Turn(ctx, text)
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("turn error: %v", err)), nil
			}
			data, _ := json.MarshalIndent(turnReportView(rep), "", "  ")
			return mcp.NewToolResultText(string(data)), nil
		default:
			return mcp.NewToolResultError(fmt.Sprintf("unknown hook: %s", hook)), nil
		}
	})
}

type acceptedView struct {
	Name        string  `json:"name"`
	Type        string  `json:"type"`
	Score       float64 `json:"score"`
	Occurrences int     `json:"occurrences"`
	New         bool    `json:"new"`
}

type reportView struct {
	Turn            int            `json:"turn"`
	Entities        []acceptedView `json:"entities"`
	Rejections      int            `json:"rejections"`
	BlacklistWrites int            `json:"blacklist_writes"`
	Promotions      []string       `json:"promotions,omitempty"`
	Merges          []string       `json:"merges,omitempty"`
	Pronouns        int            `json:"pronouns"`
	Relations       int            `json:"relations"`
}

func turnReportView(rep *engine.TurnReport) reportView {
	out := reportView{
		Turn:            rep.Turn,
		Entities:        make([]acceptedView, 0, len(rep.Entities)),
		Rejections:      rep.Rejections,
		BlacklistWrites: rep.BlacklistWrites,
		Promotions:      rep.Promotions,
		Merges:          rep.Merges,
		Pronouns:        rep.Pronouns,
		Relations:       rep.Relations,
	}
	for _, ent := range rep.Entities {
		out.Entities = append(out.Entities, acceptedView{
			Name:        ent.Name,
			Type:        string(ent.Type),
			Score:       ent.Score,
			Occurrences: ent.Occurrences,
			New:         ent.New,
		})
	}
	return out
}

func registerEntitiesTool(s *server.MCPServer, eng *engine.Engine) {
	tool := mcp.NewTool("chronicle_entities",
		mcp.WithDescription("List registered entities with type, confidence, and occurrence counts. Optionally filter by type."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("type",
			mcp.Description("Entity type filter (empty = all)"),
			mcp.Enum("person", "place", "object", "faction", "unknown"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		filter := ""
		if v, err := req.RequireString("type"); err == nil {
			filter = v
		}
		ents, err := eng.EntityList(ctx, filter)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("listing entities: %v", err)), nil
		}

		data, _ := json.MarshalIndent(map[string]interface{}{
			"entities": entityViews(ents),
			"count":    len(ents),
		}, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

func registerEntityTool(s *server.MCPServer, eng *engine.Engine) {
	tool := mcp.NewTool("chronicle_entity",
		mcp.WithDescription("Show one entity in full: registry entry, aliases, associated context words, and relations. Alias forms resolve to their primary."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("Entity name or alias"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		name, err := req.RequireString("name")
		if err != nil || strings.TrimSpace(name) == "" {
			return mcp.NewToolResultError("name is required"), nil
		}

		d, err := eng.EntityDetail(ctx, name)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		words := make([]wordView, 0, len(d.Associations))
		for _, w := range d.Associations {
			words = append(words, wordView{Word: w.Word, Count: w.Count, Contexts: w.Contexts, Strong: w.Strong()})
		}
		rels := make([]relationView, 0, len(d.Relations))
		for _, r := range d.Relations {
			rels = append(rels, relationView(r))
		}

		data, _ := json.MarshalIndent(map[string]interface{}{
			"entity": entityView{
				Name:        d.Entity.Name,
				Type:        string(d.Entity.Type),
				Confidence:  d.Entity.Confidence,
				Occurrences: d.Entity.Occurrences,
				Gender:      d.Entity.Gender,
			},
			"aliases":      d.Aliases,
			"associations": words,
			"relations":    rels,
		}, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

func registerCommandTool(s *server.MCPServer, eng *engine.Engine) {
	tool := mcp.NewTool("chronicle_command",
		mcp.WithDescription("Run one operator slash command (/entities, /list, /blacklist, /merge, ... ; /help lists them all) and return its reply."),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("command",
			mcp.Required(),
			mcp.Description("Slash command line, e.g. \"/entities person\""),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		line, err := req.RequireString("command")
		if err != nil {
			return mcp.NewToolResultError("command is required"), nil
		}
		reply, handled := eng.Command(ctx, line)
		if !handled {
			return mcp.NewToolResultError(fmt.Sprintf("not a slash command: %s", line)), nil
		}
		return mcp.NewToolResultText(reply), nil
	})
}

func registerHistoryTool(s *server.MCPServer, eng *engine.Engine) {
	tool := mcp.NewTool("chronicle_history",
		mcp.WithDescription("Return the most recent turn snapshots: which entities each turn accepted and at what confidence."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithNumber("turns",
			mcp.Description("How many recent turns to return (default: 10)"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		n := 10
		if v, err := req.RequireFloat("turns"); err == nil && int(v) > 0 {
			n = int(v)
		}
		snaps, err := eng.HistoryList(ctx, n)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("listing history: %v", err)), nil
		}

		views := make([]snapshotView, 0, len(snaps))
		for _, snap := range snaps {
			sv := snapshotView{Turn: snap.Turn, Entries: make([]entityView, 0, len(snap.Entries))}
			for _, entry := range snap.Entries {
				sv.Entries = append(sv.Entries, entityView{
					Name:       entry.Name,
					Type:       string(entry.Type),
					Confidence: entry.Confidence,
				})
			}
			views = append(views, sv)
		}
		data, _ := json.MarshalIndent(map[string]interface{}{
			"turns": views,
			"count": len(views),
		}, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

func registerStatsTool(s *server.MCPServer, eng *engine.Engine) {
	tool := mcp.NewTool("chronicle_stats",
		mcp.WithDescription("Return store-wide counters: turn number, entities by type, word list sizes, candidates, blacklist entries, relations, and history depth."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		st, err := eng.Stats(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("collecting stats: %v", err)), nil
		}
		data, _ := json.MarshalIndent(st, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

// --- Resources ---

func registerRegistryResource(s *server.MCPServer, eng *engine.Engine) {
	resource := mcp.NewResource(
		"chronicle://registry",
		"Entity Registry",
		mcp.WithResourceDescription("All registered entities with type, confidence, occurrences, and gender."),
		mcp.WithMIMEType("application/json"),
	)

	s.AddResource(resource, func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		ents, err := eng.EntityList(ctx, "")
		if err != nil {
			return nil, fmt.Errorf("reading registry resource: %w", err)
		}
		data, _ := json.MarshalIndent(map[string]interface{}{
			"entities": entityViews(ents),
			"count":    len(ents),
		}, "", "  ")
		return []mcp.ResourceContents{
			mcp.TextResourceContents{URI: req.Params.URI, MIMEType: "application/json", Text: string(data)},
		}, nil
	})
}

func registerStatsResource(s *server.MCPServer, eng *engine.Engine) {
	resource := mcp.NewResource(
		"chronicle://stats",
		"Store Statistics",
		mcp.WithResourceDescription("Store-wide counters: entities by type, vocabulary sizes, learning state, and history depth."),
		mcp.WithMIMEType("application/json"),
	)

	s.AddResource(resource, func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		st, err := eng.Stats(ctx)
		if err != nil {
			return nil, fmt.Errorf("reading stats resource: %w", err)
		}
		data, _ := json.MarshalIndent(st, "", "  ")
		return []mcp.ResourceContents{
			mcp.TextResourceContents{URI: req.Params.URI, MIMEType: "application/json", Text: string(data)},
		}, nil
	})
}
