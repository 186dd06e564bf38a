package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hurttlocker/distill/internal/store"
)

func registerStatsResource(s *server.MCPServer, st store.Store) {
	resource := mcp.NewResource(
		"distill://stats",
		"Store Statistics",
		mcp.WithResourceDescription("Document, entity, and triple counts plus on-disk database size."),
		mcp.WithMIMEType("application/json"),
	)

	s.AddResource(resource, func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		if st == nil {
			return nil, fmt.Errorf("no store configured")
		}

		dbMu.Lock()
		defer dbMu.Unlock()

		stats, err := st.Stats(ctx)
		if err != nil {
			return nil, fmt.Errorf("getting stats: %w", err)
		}

		payload := map[string]interface{}{
			"documents":     stats.DocumentCount,
			"entities":      stats.EntityCount,
			"triples":       stats.TripleCount,
			"db_size_bytes": stats.DBSizeBytes,
		}
		data, _ := json.MarshalIndent(payload, "", "  ")
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(data),
			},
		}, nil
	})
}

func registerRecentResource(s *server.MCPServer, st store.Store) {
	resource := mcp.NewResource(
		"distill://recent",
		"Recent Documents",
		mcp.WithResourceDescription("The 20 most recently distilled documents."),
		mcp.WithMIMEType("application/json"),
	)

	s.AddResource(resource, func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		if st == nil {
			return nil, fmt.Errorf("no store configured")
		}

		dbMu.Lock()
		defer dbMu.Unlock()

		docs, err := st.ListDocuments(ctx, store.ListOpts{Limit: 20})
		if err != nil {
			return nil, fmt.Errorf("listing recent documents: %w", err)
		}

		// Build compact representation
		type recentDocument struct {
			ID            int64  `json:"id"`
			Source        string `json:"source"`
			Snippet       string `json:"snippet"`
			Summary       string `json:"summary"`
			Entities      int    `json:"entities"`
			Relationships int    `json:"relationships"`
			DistilledAt   string `json:"distilled_at"`
		}
		recent := make([]recentDocument, 0, len(docs))
		for _, d := range docs {
			snippet := d.Content
			if len(snippet) > 200 {
				snippet = snippet[:200] + "..."
			}
			recent = append(recent, recentDocument{
				ID:            d.ID,
				Source:        d.Source,
				Snippet:       snippet,
				Summary:       d.Summary,
				Entities:      d.EntityCount,
				Relationships: d.RelationshipCount,
				DistilledAt:   d.DistilledAt.Format(time.RFC3339),
			})
		}

		data, _ := json.MarshalIndent(recent, "", "  ")
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(data),
			},
		}, nil
	})
}
