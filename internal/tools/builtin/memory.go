package builtin

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/haasonsaas/nexus/internal/memory"
	"github.com/haasonsaas/nexus/internal/tools"
	"github.com/haasonsaas/nexus/pkg/models"
)

// RecallTool searches long-term memory. Grounded on memory_tools.py's
// SearchMemoryTool.
type RecallTool struct {
	Memory    *memory.Manager
	SessionID string
}

func (t *RecallTool) Name() string { return "recall" }

func (t *RecallTool) Description() string {
	return "Search long-term memory. Use this when the user refers to something said before " +
		"or asks what you remember about a topic."
}

func (t *RecallTool) Parameters() []tools.Parameter {
	return []tools.Parameter{
		{Name: "query", Type: tools.TypeString, Description: "What to search for", Required: true},
		{Name: "limit", Type: tools.TypeInteger, Description: "Maximum memories to return", Default: 5},
	}
}

func (t *RecallTool) Execute(ctx context.Context, args map[string]any) (*tools.Result, error) {
	query, _ := args["query"].(string)
	if strings.TrimSpace(query) == "" {
		return &tools.Result{Success: false, Error: "query is required"}, nil
	}
	limit := 5
	if v, ok := args["limit"].(float64); ok && v > 0 {
		limit = int(v)
	}

	resp, err := t.Memory.Search(ctx, &models.SearchRequest{
		Query:   query,
		Limit:   limit,
		Scope:   models.ScopeSession,
		ScopeID: t.SessionID,
	})
	if err != nil {
		return &tools.Result{Success: false, Error: err.Error(), Observation: "Memory search failed."}, nil
	}
	if resp == nil || len(resp.Results) == 0 {
		return &tools.Result{Success: true, Data: map[string]any{"memories": []any{}, "count": 0}, Observation: "No relevant memories found."}, nil
	}

	memories := make([]map[string]any, 0, len(resp.Results))
	var lines []string
	for i, r := range resp.Results {
		memories = append(memories, map[string]any{"content": r.Entry.Content, "score": r.Score})
		lines = append(lines, fmt.Sprintf("%d. %s", i+1, r.Entry.Content))
	}

	return &tools.Result{
		Success:     true,
		Data:        map[string]any{"memories": memories, "count": len(memories)},
		Observation: "Found relevant memories:\n" + strings.Join(lines, "\n"),
	}, nil
}

// RememberTool stores a new memory entry. Grounded on memory_tools.py's
// AddMemoryTool.
type RememberTool struct {
	Memory    *memory.Manager
	SessionID string
}

func (t *RememberTool) Name() string { return "remember" }

func (t *RememberTool) Description() string {
	return "Save a new memory. Use this when the user explicitly asks you to remember or " +
		"record something for later."
}

func (t *RememberTool) Parameters() []tools.Parameter {
	return []tools.Parameter{
		{Name: "content", Type: tools.TypeString, Description: "What to remember", Required: true},
		{
			Name: "category", Type: tools.TypeString, Description: "Rough category",
			Default: "general", Enum: []string{"general", "tech", "people", "projects", "preferences"},
		},
	}
}

func (t *RememberTool) Execute(ctx context.Context, args map[string]any) (*tools.Result, error) {
	content, _ := args["content"].(string)
	if strings.TrimSpace(content) == "" {
		return &tools.Result{Success: false, Error: "content is required"}, nil
	}
	category, _ := args["category"].(string)
	if category == "" {
		category = "general"
	}

	entry := &models.MemoryEntry{
		ID:        uuid.New().String(),
		SessionID: t.SessionID,
		Content:   content,
		Metadata: models.MemoryMetadata{
			Source: "remember-tool",
			Tags:   []string{category},
		},
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	if err := t.Memory.Index(ctx, []*models.MemoryEntry{entry}); err != nil {
		return &tools.Result{Success: false, Error: err.Error(), Observation: "Failed to save memory."}, nil
	}

	return &tools.Result{
		Success:     true,
		Data:        map[string]any{"id": entry.ID},
		Observation: "Got it, I'll remember that.",
	}, nil
}
