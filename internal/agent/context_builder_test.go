package agent

import (
	"context"
	"strings"
	"testing"

	"github.com/haasonsaas/nexus/internal/tools"
)

type catalogTool struct {
	name, description string
}

func (t catalogTool) Name() string                     { return t.name }
func (t catalogTool) Description() string               { return t.description }
func (t catalogTool) Parameters() []tools.Parameter      { return nil }
func (t catalogTool) Execute(context.Context, map[string]any) (*tools.Result, error) {
	return &tools.Result{Success: true}, nil
}

func TestContextBuilder_GroupsToolsByCategory(t *testing.T) {
	b := NewContextBuilder()
	out := b.Build(BuildContext{
		UserInput: "hi",
		Tools: []tools.Tool{
			catalogTool{name: "create_task", description: "make a task"},
			catalogTool{name: "recall", description: "search memory"},
			catalogTool{name: "web_search", description: "search the web"},
		},
	})

	if !strings.Contains(out, "### Task management") || !strings.Contains(out, "create_task") {
		t.Fatal("expected a task management section listing create_task")
	}
	if !strings.Contains(out, "### Memory") || !strings.Contains(out, "recall") {
		t.Fatal("expected a memory section listing recall")
	}
	if !strings.Contains(out, "### Other") || !strings.Contains(out, "web_search") {
		t.Fatal("expected an other section listing web_search")
	}
}

func TestContextBuilder_DefaultIdentityWhenNoneGiven(t *testing.T) {
	b := NewContextBuilder()
	out := b.Build(BuildContext{UserInput: "hi"})
	if !strings.Contains(out, "## Identity") {
		t.Fatal("expected an identity section")
	}
}

func TestContextBuilder_CustomIdentity(t *testing.T) {
	b := NewContextBuilder()
	out := b.Build(BuildContext{
		UserInput: "hi",
		Identity:  &Identity{Name: "Nova", Description: "a focused assistant", Traits: []string{"calm", "direct"}},
	})
	if !strings.Contains(out, "Nova") || !strings.Contains(out, "calm") {
		t.Fatalf("expected custom identity to be rendered, got: %s", out)
	}
}

func TestContextBuilder_MemorySectionOnlyWhenPresent(t *testing.T) {
	b := NewContextBuilder()
	without := b.Build(BuildContext{UserInput: "hi"})
	if strings.Contains(without, "Relevant memory") {
		t.Fatal("expected no memory section when MemoryContext is empty")
	}

	with := b.Build(BuildContext{UserInput: "hi", MemoryContext: "likes coffee"})
	if !strings.Contains(with, "Relevant memory") || !strings.Contains(with, "likes coffee") {
		t.Fatal("expected a memory section containing the supplied context")
	}
}

func TestContextBuilder_BuildForConfirmation(t *testing.T) {
	b := NewContextBuilder()
	out := b.BuildForConfirmation("delete 3 tasks")
	if !strings.Contains(out, "delete 3 tasks") || !strings.Contains(strings.ToLower(out), "yes") {
		t.Fatalf("expected confirmation prompt to describe the action and ask for yes/no, got: %s", out)
	}
}

func TestContextBuilder_BuildToolResult(t *testing.T) {
	b := NewContextBuilder()
	ok := b.BuildToolResult("create_task", &tools.Result{Success: true, Observation: "created"})
	if !strings.Contains(ok, "succeeded") {
		t.Fatalf("expected a success marker, got: %s", ok)
	}
	failed := b.BuildToolResult("create_task", &tools.Result{Success: false, Observation: "boom"})
	if !strings.Contains(failed, "failed") {
		t.Fatalf("expected a failure marker, got: %s", failed)
	}
}
