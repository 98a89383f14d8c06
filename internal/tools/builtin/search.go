package builtin

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/haasonsaas/nexus/internal/tools"
	"github.com/haasonsaas/nexus/internal/tools/facts"
	"github.com/haasonsaas/nexus/internal/tools/memorysearch"
	"github.com/haasonsaas/nexus/internal/tools/websearch"
)

// WebSearchTool adapts the kept websearch.WebSearchTool (which implements
// the older json.RawMessage-based agent.Tool contract) onto the registry's
// Tool interface, grounded on original_source/src/agent/tools/builtin/
// search_tools.py.
type WebSearchTool struct {
	inner *websearch.WebSearchTool
}

// NewWebSearchTool wraps a configured websearch.WebSearchTool for
// registration in the built-in tool catalog.
func NewWebSearchTool(cfg *websearch.Config) *WebSearchTool {
	return &WebSearchTool{inner: websearch.NewWebSearchTool(cfg)}
}

func (t *WebSearchTool) Name() string        { return t.inner.Name() }
func (t *WebSearchTool) Description() string { return t.inner.Description() }

func (t *WebSearchTool) Parameters() []tools.Parameter {
	return []tools.Parameter{
		{Name: "query", Type: tools.TypeString, Description: "Search query", Required: true},
		{
			Name: "type", Type: tools.TypeString, Description: "Kind of search",
			Default: "web", Enum: []string{"web", "image", "news"},
		},
		{Name: "result_count", Type: tools.TypeInteger, Description: "Number of results to return"},
		{Name: "extract_content", Type: tools.TypeBoolean, Description: "Fetch and extract page content for each result"},
	}
}

func (t *WebSearchTool) Execute(ctx context.Context, args map[string]any) (*tools.Result, error) {
	params, err := json.Marshal(args)
	if err != nil {
		return &tools.Result{Success: false, Error: err.Error()}, nil
	}

	result, err := t.inner.Execute(ctx, params)
	if err != nil {
		return &tools.Result{Success: false, Error: err.Error(), Observation: "Web search failed."}, nil
	}

	return &tools.Result{
		Success:     !result.IsError,
		Observation: result.Content,
		Data:        map[string]any{"content": result.Content},
	}, nil
}

// FactsExtractTool adapts facts.ExtractTool onto the registry's Tool
// interface the same way WebSearchTool adapts websearch.WebSearchTool.
type FactsExtractTool struct {
	inner *facts.ExtractTool
}

// NewFactsExtractTool wraps a configured facts.ExtractTool for
// registration in the built-in tool catalog.
func NewFactsExtractTool(maxFacts int) *FactsExtractTool {
	return &FactsExtractTool{inner: facts.NewExtractTool(maxFacts)}
}

func (t *FactsExtractTool) Name() string        { return t.inner.Name() }
func (t *FactsExtractTool) Description() string { return t.inner.Description() }

func (t *FactsExtractTool) Parameters() []tools.Parameter {
	return []tools.Parameter{
		{Name: "text", Type: tools.TypeString, Description: "Input text to extract facts from", Required: true},
		{Name: "max_facts", Type: tools.TypeInteger, Description: "Maximum number of facts to return"},
	}
}

func (t *FactsExtractTool) Execute(ctx context.Context, args map[string]any) (*tools.Result, error) {
	params, err := json.Marshal(args)
	if err != nil {
		return &tools.Result{Success: false, Error: err.Error()}, nil
	}
	result, err := t.inner.Execute(ctx, params)
	if err != nil {
		return &tools.Result{Success: false, Error: err.Error(), Observation: "Fact extraction failed."}, nil
	}
	return &tools.Result{
		Success:     !result.IsError,
		Observation: result.Content,
		Data:        map[string]any{"content": result.Content},
	}, nil
}

// MemoryFileSearchTool adapts memorysearch.MemorySearchTool, which searches
// memory files directly on disk (lexical/vector/hybrid), distinct from the
// Manager-backed RecallTool which searches indexed memory entries.
type MemoryFileSearchTool struct {
	inner *memorysearch.MemorySearchTool
}

// NewMemoryFileSearchTool wraps a configured memorysearch.MemorySearchTool.
func NewMemoryFileSearchTool(cfg *memorysearch.Config) *MemoryFileSearchTool {
	return &MemoryFileSearchTool{inner: memorysearch.NewMemorySearchTool(cfg)}
}

func (t *MemoryFileSearchTool) Name() string       { return t.inner.Name() }
func (t *MemoryFileSearchTool) Description() string { return t.inner.Description() }

func (t *MemoryFileSearchTool) Parameters() []tools.Parameter {
	return []tools.Parameter{
		{Name: "query", Type: tools.TypeString, Description: "Search query", Required: true},
		{Name: "max_results", Type: tools.TypeInteger, Description: "Max results to return"},
	}
}

func (t *MemoryFileSearchTool) Execute(ctx context.Context, args map[string]any) (*tools.Result, error) {
	params, err := json.Marshal(args)
	if err != nil {
		return &tools.Result{Success: false, Error: err.Error()}, nil
	}
	result, err := t.inner.Execute(ctx, params)
	if err != nil {
		return &tools.Result{Success: false, Error: err.Error(), Observation: "Memory file search failed."}, nil
	}
	return &tools.Result{
		Success:     !result.IsError,
		Observation: result.Content,
		Data:        map[string]any{"content": result.Content},
	}, nil
}

// MemoryFileGetTool adapts memorysearch.MemoryGetTool.
type MemoryFileGetTool struct {
	inner *memorysearch.MemoryGetTool
}

// NewMemoryFileGetTool wraps a configured memorysearch.MemoryGetTool.
func NewMemoryFileGetTool(cfg *memorysearch.Config) *MemoryFileGetTool {
	return &MemoryFileGetTool{inner: memorysearch.NewMemoryGetTool(cfg)}
}

func (t *MemoryFileGetTool) Name() string       { return t.inner.Name() }
func (t *MemoryFileGetTool) Description() string { return t.inner.Description() }

func (t *MemoryFileGetTool) Parameters() []tools.Parameter {
	return []tools.Parameter{
		{Name: "path", Type: tools.TypeString, Description: "Memory file path (relative to workspace)", Required: true},
		{Name: "from", Type: tools.TypeInteger, Description: "1-based start line (default: 1)"},
		{Name: "lines", Type: tools.TypeInteger, Description: "Number of lines to return (default: 50)"},
	}
}

func (t *MemoryFileGetTool) Execute(ctx context.Context, args map[string]any) (*tools.Result, error) {
	params, err := json.Marshal(args)
	if err != nil {
		return &tools.Result{Success: false, Error: err.Error()}, nil
	}
	result, err := t.inner.Execute(ctx, params)
	if err != nil {
		return &tools.Result{Success: false, Error: err.Error(), Observation: "Memory file read failed."}, nil
	}
	return &tools.Result{
		Success:     !result.IsError,
		Observation: result.Content,
		Data:        map[string]any{"content": result.Content},
	}, nil
}

// WebFetchTool adapts the kept websearch.WebFetchTool the same way.
type WebFetchTool struct {
	inner *websearch.WebFetchTool
}

// NewWebFetchTool wraps a configured websearch.WebFetchTool for
// registration in the built-in tool catalog.
func NewWebFetchTool(cfg *websearch.FetchConfig) *WebFetchTool {
	return &WebFetchTool{inner: websearch.NewWebFetchTool(cfg)}
}

func (t *WebFetchTool) Name() string        { return t.inner.Name() }
func (t *WebFetchTool) Description() string { return t.inner.Description() }

func (t *WebFetchTool) Parameters() []tools.Parameter {
	return []tools.Parameter{
		{Name: "url", Type: tools.TypeString, Description: "URL to fetch", Required: true},
		{Name: "max_chars", Type: tools.TypeInteger, Description: "Maximum characters of extracted content to return"},
	}
}

func (t *WebFetchTool) Execute(ctx context.Context, args map[string]any) (*tools.Result, error) {
	params, err := json.Marshal(args)
	if err != nil {
		return &tools.Result{Success: false, Error: err.Error()}, nil
	}

	result, err := t.inner.Execute(ctx, params)
	if err != nil {
		return &tools.Result{Success: false, Error: err.Error(), Observation: fmt.Sprintf("Failed to fetch %v.", args["url"])}, nil
	}

	return &tools.Result{
		Success:     !result.IsError,
		Observation: result.Content,
		Data:        map[string]any{"content": result.Content},
	}, nil
}
