package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/haasonsaas/nexus/internal/agent"
	"github.com/haasonsaas/nexus/internal/config"
	contextwindow "github.com/haasonsaas/nexus/internal/context"
	"github.com/haasonsaas/nexus/internal/llm"
	"github.com/haasonsaas/nexus/internal/llm/anthropic"
	"github.com/haasonsaas/nexus/internal/llm/bedrock"
	"github.com/haasonsaas/nexus/internal/llm/ollama"
	"github.com/haasonsaas/nexus/internal/llm/openai"
	"github.com/haasonsaas/nexus/internal/mcp"
	"github.com/haasonsaas/nexus/internal/memory"
	"github.com/haasonsaas/nexus/internal/sessions"
	"github.com/haasonsaas/nexus/internal/tasks"
	"github.com/haasonsaas/nexus/internal/tools"
	"github.com/haasonsaas/nexus/internal/tools/builtin"
	"github.com/haasonsaas/nexus/internal/tools/memorysearch"
	"github.com/haasonsaas/nexus/internal/tools/websearch"
)

// runtime bundles the constructed subsystems a command needs, assembled
// once from configuration by buildRuntime.
type runtime struct {
	cfg        *config.Config
	logger     *slog.Logger
	llm        llm.Adapter
	registry   *tools.Registry
	memory     *memory.Manager
	tasks      *tasks.Manager
	supervisor *agent.Supervisor
	mcp        *mcp.Manager
	sessionLog *sessions.MemoryLogger
}

// loadConfigQuiet loads configuration for the direct task/memory subcommands,
// which need a store or manager but not the full agent runtime.
func loadConfigQuiet() (*config.Config, error) {
	return config.Load(resolveConfigPath())
}

func buildRuntime(ctx context.Context, logger *slog.Logger) (*runtime, error) {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	adapter, err := buildLLMAdapter(cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("build llm adapter: %w", err)
	}

	memMgr, err := memory.NewManager(&cfg.Memory)
	if err != nil {
		return nil, fmt.Errorf("build memory manager: %w", err)
	}

	store, err := buildTaskStore(cfg.Tasks)
	if err != nil {
		return nil, fmt.Errorf("build task store: %w", err)
	}
	taskMgr, err := tasks.NewManager(ctx, store, logger)
	if err != nil {
		return nil, fmt.Errorf("build task manager: %w", err)
	}

	registry := tools.NewRegistry(logger)
	registerBuiltinTools(registry, cfg, memMgr, taskMgr)

	var mcpMgr *mcp.Manager
	if cfg.MCP.Enabled {
		mcpMgr = mcp.NewManager(&cfg.MCP, logger)
		if err := mcpMgr.Start(ctx); err != nil {
			logger.Warn("mcp manager failed to start some servers", "error", err)
		}
		registered := mcp.RegisterTools(registry, mcpMgr)
		logger.Info("registered mcp tools", "count", len(registered))
	}

	builder := agent.NewContextBuilder()
	metrics := agent.NewMetrics(false)
	sup := agent.NewSupervisor(adapter, registry, builder, metrics)

	sessionDir := cfg.Workspace.Path
	if sessionDir == "" {
		sessionDir = "."
	}
	sessionLog := sessions.NewMemoryLogger(sessionDir + "/sessions")

	return &runtime{
		cfg:        cfg,
		logger:     logger,
		llm:        adapter,
		registry:   registry,
		memory:     memMgr,
		tasks:      taskMgr,
		supervisor: sup,
		mcp:        mcpMgr,
		sessionLog: sessionLog,
	}, nil
}

// modelContextWindow reports the context window for the configured default
// provider's model, falling back to contextwindow's generic default when the
// model isn't in its table.
func (r *runtime) modelContextWindow() *contextwindow.Window {
	model := ""
	if pc, ok := r.cfg.LLM.Providers[r.cfg.LLM.DefaultProvider]; ok {
		model = pc.DefaultModel
	}
	return contextwindow.NewWindowForModel(model)
}

func (r *runtime) close() {
	if r.memory != nil {
		_ = r.memory.Close()
	}
	if r.mcp != nil {
		_ = r.mcp.Stop()
	}
}

func (r *runtime) identity() *agent.Identity {
	return &agent.Identity{
		Name:        r.cfg.User.Name,
		Description: fmt.Sprintf("Personal assistant for %s.", nonEmpty(r.cfg.User.Name, "the user")),
	}
}

func nonEmpty(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}

func registerBuiltinTools(registry *tools.Registry, cfg *config.Config, memMgr *memory.Manager, taskMgr *tasks.Manager) {
	sessionID := "default"
	registry.Register(&builtin.ChatTool{})
	registry.Register(&builtin.SystemInfoTool{StartedAt: time.Now()})
	registry.Register(&builtin.SleepTool{MaxDuration: 5 * time.Minute})

	registry.Register(&builtin.CreateTaskTool{Tasks: taskMgr})
	registry.Register(&builtin.ListTasksTool{Tasks: taskMgr})
	registry.Register(&builtin.CompleteTaskTool{Tasks: taskMgr})
	registry.Register(&builtin.DeleteTasksTool{Tasks: taskMgr})
	registry.Register(&builtin.StartTaskTool{Tasks: taskMgr})
	registry.Register(&builtin.BlockTaskTool{Tasks: taskMgr})
	registry.Register(&builtin.WaitForTaskTool{Tasks: taskMgr})

	registry.Register(&builtin.RecallTool{Memory: memMgr, SessionID: sessionID})
	registry.Register(&builtin.RememberTool{Memory: memMgr, SessionID: sessionID})

	if cfg.Tools.MemorySearch.Enabled {
		msCfg := &memorysearch.Config{
			Directory:     "memory",
			MemoryFile:    "MEMORY.md",
			WorkspacePath: cfg.Workspace.Path,
			MaxResults:    cfg.Tools.MemorySearch.MaxResults,
			MaxSnippetLen: cfg.Tools.MemorySearch.MaxSnippetLen,
			Mode:          "hybrid",
			Embeddings: memorysearch.EmbeddingsConfig{
				Provider: cfg.Tools.MemorySearch.Embeddings.Provider,
				APIKey:   cfg.Tools.MemorySearch.Embeddings.APIKey,
				BaseURL:  cfg.Tools.MemorySearch.Embeddings.BaseURL,
				Model:    cfg.Tools.MemorySearch.Embeddings.Model,
				CacheTTL: cfg.Tools.MemorySearch.Embeddings.CacheTTL,
				Timeout:  cfg.Tools.MemorySearch.Embeddings.Timeout,
			},
		}
		registry.Register(builtin.NewMemoryFileSearchTool(msCfg))
		registry.Register(builtin.NewMemoryFileGetTool(msCfg))
	}

	if cfg.Tools.FactExtract.Enabled {
		registry.Register(builtin.NewFactsExtractTool(cfg.Tools.FactExtract.MaxFacts))
	}

	if cfg.Tools.WebSearch.Enabled {
		registry.Register(builtin.NewWebSearchTool(&websearch.Config{
			SearXNGURL:         cfg.Tools.WebSearch.URL,
			BraveAPIKey:        cfg.Tools.WebSearch.BraveAPIKey,
			DefaultBackend:     websearch.SearchBackend(cfg.Tools.WebSearch.Provider),
			DefaultResultCount: 5,
		}))
	}
	if cfg.Tools.WebFetch.Enabled {
		registry.Register(builtin.NewWebFetchTool(&websearch.FetchConfig{MaxChars: cfg.Tools.WebFetch.MaxChars}))
	}
}

func buildTaskStore(cfg config.TasksConfig) (tasks.Store, error) {
	if cfg.Backend == "sql" {
		return tasks.NewSQLStore(cfg.DatabaseURL)
	}
	dir := cfg.Directory
	if dir == "" {
		dir = "tasks"
	}
	return tasks.NewJSONLStore(dir + "/tasks.jsonl")
}

func buildLLMAdapter(cfg config.LLMConfig) (llm.Adapter, error) {
	if len(cfg.Providers) == 0 {
		return nil, fmt.Errorf("no llm providers configured")
	}
	primary, err := buildProviderAdapter(cfg.DefaultProvider, cfg)
	if err != nil {
		return nil, fmt.Errorf("build default provider %q: %w", cfg.DefaultProvider, err)
	}

	var fallbacks []llm.Adapter
	for _, name := range cfg.FallbackChain {
		if name == cfg.DefaultProvider {
			continue
		}
		fb, err := buildProviderAdapter(name, cfg)
		if err != nil {
			return nil, fmt.Errorf("build fallback provider %q: %w", name, err)
		}
		fallbacks = append(fallbacks, fb)
	}

	if len(fallbacks) == 0 {
		return primary, nil
	}
	return agent.NewFailoverAdapter(agent.DefaultFailoverConfig(), primary, fallbacks...), nil
}

func buildProviderAdapter(name string, cfg config.LLMConfig) (llm.Adapter, error) {
	pc, ok := cfg.Providers[name]
	if !ok {
		return nil, fmt.Errorf("unknown provider %q", name)
	}

	switch strings.ToLower(name) {
	case "anthropic":
		return anthropic.New(anthropic.Config{APIKey: pc.APIKey, Model: pc.DefaultModel}), nil
	case "bedrock":
		region := cfg.Bedrock.Region
		if region == "" {
			region = "us-east-1"
		}
		return bedrock.New(context.Background(), region, pc.DefaultModel)
	case "ollama":
		return ollama.New(pc.BaseURL, pc.DefaultModel), nil
	default:
		return openai.New(openai.Config{
			APIKey:  pc.APIKey,
			BaseURL: pc.BaseURL,
			Model:   pc.DefaultModel,
			Name:    name,
		}), nil
	}
}
