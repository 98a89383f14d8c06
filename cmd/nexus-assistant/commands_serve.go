package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/haasonsaas/nexus/internal/agent"
	contextwindow "github.com/haasonsaas/nexus/internal/context"
	"github.com/haasonsaas/nexus/internal/llm"
	"github.com/haasonsaas/nexus/internal/scheduler"
	"github.com/haasonsaas/nexus/pkg/models"
)

func buildServeCmd() *cobra.Command {
	var debug bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the interactive agent loop and background scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), debug)
		},
	}
	cmd.Flags().BoolVar(&debug, "debug", false, "Enable debug-level logging")
	return cmd
}

func runServe(ctx context.Context, debug bool) error {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := buildRuntime(ctx, logger)
	if err != nil {
		return err
	}
	defer rt.close()

	logger.Info("starting assistant", "default_provider", rt.cfg.LLM.DefaultProvider, "tools", len(rt.registry.Names()))

	var sched *scheduler.HybridScheduler
	if rt.cfg.Scheduler.Enabled {
		sched, err = scheduler.NewHybridScheduler(rt.cfg.Scheduler, schedulerDispatcher(rt), logger)
		if err != nil {
			return fmt.Errorf("build scheduler: %w", err)
		}
		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
		defer func() { _ = sched.Stop(ctx) }()
	}

	return runREPL(ctx, rt)
}

// schedulerDispatcher turns a scheduled job into a one-shot Supervisor turn,
// discarding the response stream to the log rather than to a terminal since
// nothing is attached to read it.
func schedulerDispatcher(rt *runtime) scheduler.Dispatcher {
	return scheduler.DispatcherFunc(func(ctx context.Context, job *scheduler.Job, payload map[string]any) error {
		if job.Type != scheduler.JobTypePrompt || strings.TrimSpace(job.Prompt) == "" {
			return nil
		}
		chunks := rt.supervisor.Handle(ctx, agent.HandleRequest{
			UserInput: job.Prompt,
			Identity:  rt.identity(),
		})
		var sb strings.Builder
		for chunk := range chunks {
			if chunk.Err != nil {
				return chunk.Err
			}
			sb.WriteString(chunk.Text)
		}
		rt.logger.Info("scheduled job completed", "job", job.Name, "output", sb.String())
		return nil
	})
}

// runREPL drives a simple stdin/stdout conversation loop against the
// Supervisor. Nothing in this runtime exposes an HTTP surface yet, so the
// terminal is the only interactive front end; scheduled jobs run alongside
// it via the dispatcher above.
const replSessionID = "repl"

func runREPL(ctx context.Context, rt *runtime) error {
	fmt.Println("nexus-assistant ready. Type a message, or /quit to exit.")
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	memoryContext := recentSessionContext(rt)
	window := rt.modelContextWindow()

	var history []llm.Message
	var pending *agent.PendingConfirmation

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/quit" || line == "/exit" {
			return nil
		}

		select {
		case <-ctx.Done():
			return nil
		default:
		}

		req := agent.HandleRequest{
			UserInput:     line,
			History:       history,
			Pending:       pending,
			Identity:      rt.identity(),
			MemoryContext: memoryContext,
		}
		memoryContext = ""

		var reply strings.Builder
		for chunk := range rt.supervisor.Handle(ctx, req) {
			if chunk.Err != nil {
				fmt.Println("error:", chunk.Err)
				continue
			}
			if chunk.NeedInput != nil {
				fmt.Println(chunk.NeedInput.Prompt)
			}
			reply.WriteString(chunk.Text)
			pending = chunk.NewPending
		}

		if reply.Len() > 0 {
			fmt.Println(reply.String())
			now := time.Now()
			history = append(history,
				llm.Message{Role: "user", Content: line},
				llm.Message{Role: "assistant", Content: reply.String()},
			)
			history = truncateHistory(history, window)
			logReplTurn(rt, models.RoleUser, line, now)
			logReplTurn(rt, models.RoleAssistant, reply.String(), now)
		}
	}
}

// recentSessionContext seeds the first turn of a new REPL run with a
// summary of yesterday and today's logged conversation, so restarting the
// process doesn't discard all continuity.
func recentSessionContext(rt *runtime) string {
	if rt.sessionLog == nil {
		return ""
	}
	lines, err := rt.sessionLog.ReadRecent(models.ChannelType(replSessionID), replSessionID, 2, 20)
	if err != nil || len(lines) == 0 {
		return ""
	}
	return "[recent session log]\n" + strings.Join(lines, "\n")
}

func logReplTurn(rt *runtime, role models.Role, content string, ts time.Time) {
	if rt.sessionLog == nil {
		return
	}
	_ = rt.sessionLog.Append(&models.Message{
		SessionID: replSessionID,
		Channel:   models.ChannelType(replSessionID),
		Role:      role,
		Content:   content,
		CreatedAt: ts,
	})
}

// truncateHistory drops the oldest turns once the conversation approaches
// the active model's real context window, independent of the Supervisor's
// own fixed-budget working memory.
func truncateHistory(history []llm.Message, window *contextwindow.Window) []llm.Message {
	if window == nil {
		return history
	}
	msgs := make([]contextwindow.Message, len(history))
	for i, m := range history {
		msgs[i] = contextwindow.Message{
			Role:     m.Role,
			Content:  m.Content,
			IsSystem: m.Role == "system",
		}
	}
	budget := window.Remaining()
	if budget <= 0 {
		budget = contextwindow.MinContextWindow
	}
	truncator := contextwindow.NewTruncator(contextwindow.TruncateOldest, budget)
	kept, _ := truncator.Truncate(msgs)
	if len(kept) == len(history) {
		return history
	}
	out := make([]llm.Message, len(kept))
	for i, m := range kept {
		out[i] = llm.Message{Role: m.Role, Content: m.Content}
	}
	return out
}
