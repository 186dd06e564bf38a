// Package mcp provides a Model Context Protocol server for the distiller.
//
// It exposes the distillation pipeline (full distill, entity extraction,
// relationship inference, summarization) as MCP tools, and store
// statistics plus recently distilled documents as MCP resources, over
// the stdio transport.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hurttlocker/distill/internal/distill"
	"github.com/hurttlocker/distill/internal/store"
)

// ServerConfig holds configuration for the MCP server.
type ServerConfig struct {
	Distiller *distill.Distiller // nil = default pipeline
	Store     store.Store        // optional; enables save and the store resources
	MaxTokens int                // summarize budget when the caller passes none
	Version   string             // version string for MCP server info
}

// dbMu serializes all MCP tool calls that touch the database.
// The mcp-go library dispatches handlers concurrently via goroutines.
// SQLite (even with WAL) supports only one writer at a time, and concurrent
// reads during writes can return stale results. A global mutex ensures
// correct ordering: saves complete before stats and listings see their data.
var dbMu sync.Mutex

// NewServer creates a configured MCP server with all distiller tools and
// resources.
func NewServer(cfg ServerConfig) *server.MCPServer {
	if cfg.Distiller == nil {
		cfg.Distiller = distill.New()
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = distill.DefaultMaxTokens
	}
	ver := cfg.Version
	if ver == "" {
		ver = "dev"
	}

	s := server.NewMCPServer(
		"Distill",
		ver,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(true, false),
	)

	// Register tools
	registerDistillTool(s, cfg.Distiller, cfg.Store)
	registerEntitiesTool(s, cfg.Distiller)
	registerRelationshipsTool(s, cfg.Distiller)
	registerSummarizeTool(s, cfg.Distiller, cfg.MaxTokens)

	// Register resources
	registerStatsResource(s, cfg.Store)
	registerRecentResource(s, cfg.Store)

	return s
}

// ServeStdio blocks serving the MCP protocol on stdin/stdout until the
// client disconnects.
func ServeStdio(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

// --- Tools ---

// distillResponse is the distill_text payload: the pipeline envelope plus
// persistence outcome when a save was requested.
type distillResponse struct {
	*distill.Result
	Saved      bool  `json:"saved,omitempty"`
	Duplicate  bool  `json:"duplicate,omitempty"`
	DocumentID int64 `json:"document_id,omitempty"`
}

func registerDistillTool(s *server.MCPServer, d *distill.Distiller, st store.Store) {
	tool := mcp.NewTool("distill_text",
		mcp.WithDescription("Run the full distillation pipeline over raw text: categorized entity extraction, sentence-scoped relationship triples, and a token-bounded summary. Optionally persists the result to the document store."),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("text",
			mcp.Required(),
			mcp.Description("The raw text to distill"),
		),
		mcp.WithString("source",
			mcp.Description("Source identifier recorded when saving (e.g. filename, URL). Defaults to 'mcp'."),
		),
		mcp.WithBoolean("save",
			mcp.Description("Persist the result to the document store (default: false; requires a configured store)"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		text, err := req.RequireString("text")
		if err != nil {
			return mcp.NewToolResultError("text is required"), nil
		}
		if strings.TrimSpace(text) == "" {
			return mcp.NewToolResultError("text cannot be empty"), nil
		}

		// Strip null bytes, SQLite TEXT cannot hold them
		text = strings.ReplaceAll(text, "\x00", "")

		source := "mcp"
		if v, err := req.RequireString("source"); err == nil && v != "" {
			source = v
		}

		save := false
		if v, err := req.RequireString("save"); err == nil {
			save = v == "true"
		}

		res := d.Distill(text)
		payload := distillResponse{Result: res}

		if save {
			if st == nil {
				return mcp.NewToolResultError("save requested but no store is configured"), nil
			}

			dbMu.Lock()
			doc, err := st.SaveResult(ctx, text, source, res)
			dbMu.Unlock()

			switch {
			case errors.Is(err, store.ErrDuplicate):
				payload.Duplicate = true
			case err != nil:
				return mcp.NewToolResultError(fmt.Sprintf("save error: %v", err)), nil
			default:
				payload.Saved = true
				payload.DocumentID = doc.ID
			}
		}

		data, _ := json.MarshalIndent(payload, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

func registerEntitiesTool(s *server.MCPServer, d *distill.Distiller) {
	tool := mcp.NewTool("extract_entities",
		mcp.WithDescription("Extract entity mentions from text, grouped by category (person, organization, location, date, email, url). A mention may land in several categories; every category is present in the result, empty when nothing matched."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("text",
			mcp.Required(),
			mcp.Description("The raw text to scan"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		text, err := req.RequireString("text")
		if err != nil {
			return mcp.NewToolResultError("text is required"), nil
		}

		entities := d.ExtractEntities(text)
		data, _ := json.MarshalIndent(entities, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

func registerRelationshipsTool(s *server.MCPServer, d *distill.Distiller) {
	tool := mcp.NewTool("extract_relationships",
		mcp.WithDescription("Infer co-occurrence relationship triples from text. Entities are extracted first, then every ordered pair of distinct entities appearing in the same sentence yields a (subject, RELATED_TO_<category>, object) triple. Output is sorted and duplicate-free."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("text",
			mcp.Required(),
			mcp.Description("The raw text to analyze"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		text, err := req.RequireString("text")
		if err != nil {
			return mcp.NewToolResultError("text is required"), nil
		}

		triples := d.ExtractRelationships(text, d.ExtractEntities(text))
		data, _ := json.MarshalIndent(triples, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

func registerSummarizeTool(s *server.MCPServer, d *distill.Distiller, defaultBudget int) {
	tool := mcp.NewTool("summarize_text",
		mcp.WithDescription("Truncate text to a whitespace-token budget. Text within the budget comes back verbatim; longer text is cut to the first max_tokens tokens."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("text",
			mcp.Required(),
			mcp.Description("The text to summarize"),
		),
		mcp.WithNumber("max_tokens",
			mcp.Description(fmt.Sprintf("Token budget, must be positive (default: %d)", defaultBudget)),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		text, err := req.RequireString("text")
		if err != nil {
			return mcp.NewToolResultError("text is required"), nil
		}

		maxTokens := defaultBudget
		if v, err := req.RequireFloat("max_tokens"); err == nil && v != 0 {
			maxTokens = int(v)
		}

		summary, err := d.Summarize(text, maxTokens)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		result := map[string]interface{}{
			"summary": summary,
			"tokens":  len(strings.Fields(summary)),
		}
		data, _ := json.MarshalIndent(result, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}
