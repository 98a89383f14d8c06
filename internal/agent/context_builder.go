package agent

import (
	"fmt"
	"strings"

	"github.com/haasonsaas/nexus/internal/tools"
)

// Identity describes the assistant's persona for the system prompt's
// identity block. A zero value renders the generic default.
type Identity struct {
	Name        string
	Description string
	Traits      []string
}

// BuildContext is the input to ContextBuilder.Build: everything needed to
// render one turn's system prompt. Grounded on original_source/src/agent/
// context_builder.py's BuildContext dataclass.
type BuildContext struct {
	UserInput           string
	MemoryContext       string
	Identity            *Identity
	Tools               []tools.Tool
	PendingConfirmation bool
}

// ContextBuilder renders the system prompt handed to the LLM adapter each
// turn: an identity block, a tool catalog grouped by category, an optional
// memory block, and a fixed rules block. Grounded on context_builder.py;
// the grouping-by-substring-in-name heuristic (task/memory/other) is kept
// verbatim since it is how the tool catalog is actually organized in the
// built-in set (internal/tools/builtin).
type ContextBuilder struct{}

// NewContextBuilder constructs a ContextBuilder. It holds no state: unlike
// the original, personality and memory are passed per-call via BuildContext
// rather than injected at construction time, since this runtime's
// personality/memory collaborators are already resolved by the caller.
func NewContextBuilder() *ContextBuilder { return &ContextBuilder{} }

// Build renders the complete system prompt for one turn.
func (b *ContextBuilder) Build(ctx BuildContext) string {
	var parts []string
	parts = append(parts, b.buildIdentity(ctx.Identity))
	if toolSection := b.buildToolsSection(ctx.Tools); toolSection != "" {
		parts = append(parts, toolSection)
	}
	if ctx.MemoryContext != "" {
		parts = append(parts, b.buildMemorySection(ctx.MemoryContext))
	}
	parts = append(parts, b.buildRulesSection())
	return strings.Join(parts, "\n\n")
}

func (b *ContextBuilder) buildIdentity(id *Identity) string {
	if id == nil || id.Name == "" {
		return "## Identity\n\nYou are a friendly personal AI assistant who helps the user manage tasks, memory, and day-to-day affairs."
	}
	var sb strings.Builder
	sb.WriteString("## Identity\n\n")
	sb.WriteString(fmt.Sprintf("You are %s, %s\n", id.Name, id.Description))
	if len(id.Traits) > 0 {
		n := len(id.Traits)
		if n > 5 {
			n = 5
		}
		sb.WriteString("\nTraits: " + strings.Join(id.Traits[:n], ", "))
	}
	return sb.String()
}

// buildToolsSection groups the catalog into task/memory/other buckets by
// substring match on the tool name, matching _build_tools_section's
// grouping rule.
func (b *ContextBuilder) buildToolsSection(catalog []tools.Tool) string {
	if len(catalog) == 0 {
		return ""
	}

	var taskTools, memoryTools, otherTools []tools.Tool
	for _, t := range catalog {
		name := strings.ToLower(t.Name())
		switch {
		case strings.Contains(name, "task"):
			taskTools = append(taskTools, t)
		case strings.Contains(name, "memory") || strings.Contains(name, "recall") || strings.Contains(name, "remember"):
			memoryTools = append(memoryTools, t)
		default:
			otherTools = append(otherTools, t)
		}
	}

	var lines []string
	lines = append(lines, "## Available tools", "", "You can use the following tools to help the user:", "")

	if len(taskTools) > 0 {
		lines = append(lines, "### Task management")
		for _, t := range taskTools {
			lines = append(lines, formatTool(t))
		}
		lines = append(lines, "")
	}
	if len(memoryTools) > 0 {
		lines = append(lines, "### Memory")
		for _, t := range memoryTools {
			lines = append(lines, formatTool(t))
		}
		lines = append(lines, "")
	}
	if len(otherTools) > 0 {
		lines = append(lines, "### Other")
		for _, t := range otherTools {
			lines = append(lines, formatTool(t))
		}
		lines = append(lines, "")
	}

	return strings.Join(lines, "\n")
}

// formatTool renders one catalog line: name plus a truncated first-line
// description (nanobot-style terseness, per context_builder.py).
func formatTool(t tools.Tool) string {
	desc := t.Description()
	if idx := strings.IndexByte(desc, '\n'); idx >= 0 {
		desc = desc[:idx]
	}
	if len(desc) > 100 {
		desc = desc[:97] + "..."
	}
	return fmt.Sprintf("- `%s`: %s", t.Name(), desc)
}

func (b *ContextBuilder) buildMemorySection(memoryContext string) string {
	return "## Relevant memory\n\n" + memoryContext
}

func (b *ContextBuilder) buildRulesSection() string {
	return `## Rules

### 1. Prefer natural conversation
- If the user is just chatting or greeting you, reply directly and warmly; don't call a tool.
- If their intent is unclear, ask a clarifying question instead of guessing.

### 2. Tool use
- Pick whichever tool best matches what the user needs.
- Call more than one tool in sequence if the task calls for it.
- If a tool fails, explain why in plain language.

### 3. Confirmation
- Deleting something always requires confirmation first.
- Wait for an explicit "yes" or "no" before acting on a pending confirmation.`
}

// BuildForConfirmation renders the user-facing prompt that accompanies a
// latched confirmation, given a description of the pending action.
func (b *ContextBuilder) BuildForConfirmation(actionDescription string) string {
	return fmt.Sprintf("Confirmation needed\n\nAbout to: %s\n\nReply \"yes\" to proceed, or \"no\" to cancel.", actionDescription)
}

// BuildToolResult renders a one-line status line for a tool observation,
// the Go analogue of context_builder.py's build_tool_result.
func (b *ContextBuilder) BuildToolResult(toolName string, result *tools.Result) string {
	if result != nil && result.Success {
		return fmt.Sprintf("✓ %s succeeded: %s", toolName, result.Observation)
	}
	observation := ""
	if result != nil {
		observation = result.Observation
	}
	return fmt.Sprintf("✗ %s failed: %s", toolName, observation)
}
