package agent

import (
	"context"
	"log/slog"
	"testing"

	"github.com/haasonsaas/nexus/internal/llm"
	"github.com/haasonsaas/nexus/internal/tools"
)

// fakeAdapter is a scripted llm.Adapter: each call to Chat/Stream pops the
// next canned response/chunks off its queue.
type fakeAdapter struct {
	chatResponses []*llm.Response
	chatErr       error
	streamChunks  []llm.StreamChunk
	streamErr     error
	chatCalls     int
}

func (f *fakeAdapter) Chat(_ context.Context, _ []llm.Message, _ []llm.ToolSpec, _ llm.ToolChoice, _ float64, _ int) (*llm.Response, error) {
	if f.chatErr != nil {
		return nil, f.chatErr
	}
	if f.chatCalls >= len(f.chatResponses) {
		return &llm.Response{Content: "", FinishReason: llm.FinishStop}, nil
	}
	resp := f.chatResponses[f.chatCalls]
	f.chatCalls++
	return resp, nil
}

func (f *fakeAdapter) Stream(_ context.Context, _ []llm.Message) (<-chan llm.StreamChunk, error) {
	if f.streamErr != nil {
		return nil, f.streamErr
	}
	ch := make(chan llm.StreamChunk, len(f.streamChunks))
	for _, c := range f.streamChunks {
		ch <- c
	}
	close(ch)
	return ch, nil
}

func (f *fakeAdapter) Name() string { return "fake" }

// fakeTool is a scripted tools.Tool.
type fakeTool struct {
	name     string
	execFunc func(args map[string]any) (*tools.Result, error)
}

func (t *fakeTool) Name() string               { return t.name }
func (t *fakeTool) Description() string        { return "a fake tool" }
func (t *fakeTool) Parameters() []tools.Parameter { return nil }
func (t *fakeTool) Execute(_ context.Context, args map[string]any) (*tools.Result, error) {
	return t.execFunc(args)
}

func newTestRegistry(extra ...tools.Tool) *tools.Registry {
	r := tools.NewRegistry(slog.Default())
	for _, t := range extra {
		r.Register(t)
	}
	return r
}

func drain(ch <-chan ResponseChunk) []ResponseChunk {
	var out []ResponseChunk
	for c := range ch {
		out = append(out, c)
	}
	return out
}

func TestSupervisor_FastPathGreeting(t *testing.T) {
	adapter := &fakeAdapter{streamChunks: []llm.StreamChunk{{Text: "Hello!"}, {Text: " How can I help?"}}}
	sup := NewSupervisor(adapter, newTestRegistry(), nil, nil)

	chunks := drain(sup.Handle(context.Background(), HandleRequest{UserInput: "你好"}))

	if len(chunks) == 0 {
		t.Fatal("expected at least one chunk")
	}
	var text string
	for _, c := range chunks {
		text += c.Text
	}
	if text != "Hello! How can I help?" {
		t.Fatalf("unexpected streamed text: %q", text)
	}
	if summary := sup.Metrics.Summary(); summary["mode_usage"].(map[string]int)["fast_path"] != 1 {
		t.Fatalf("expected fast_path mode usage of 1, got %v", summary["mode_usage"])
	}
}

func TestSupervisor_SingleStepLatchesConfirmation(t *testing.T) {
	deleteTool := &fakeTool{name: "delete_tasks", execFunc: func(args map[string]any) (*tools.Result, error) {
		if confirmed, _ := args["confirmed"].(bool); confirmed {
			return &tools.Result{Success: true, Observation: "Deleted 3 task(s)."}, nil
		}
		return &tools.Result{
			Success:     true,
			Observation: "About to delete 3 task(s):\n1. a\n2. b\n3. c",
			Metadata:    map[string]any{"needs_confirmation": true},
		}, nil
	}}
	adapter := &fakeAdapter{chatResponses: []*llm.Response{
		{ToolCalls: []llm.ToolCall{{ID: "1", Name: "delete_tasks", Arguments: map[string]any{}}}, FinishReason: llm.FinishToolCalls},
	}}
	sup := NewSupervisor(adapter, newTestRegistry(deleteTool), nil, nil)

	chunks := drain(sup.Handle(context.Background(), HandleRequest{UserInput: "帮我清理这些任务"}))
	last := chunks[len(chunks)-1]
	if last.NewPending == nil || last.NewPending.Tool != "delete_tasks" {
		t.Fatalf("expected a latched delete_tasks confirmation, got %+v", last.NewPending)
	}
	if last.Text == "" {
		t.Fatal("expected a non-empty confirmation prompt")
	}
}

func TestSupervisor_ConfirmationReentryAffirmative(t *testing.T) {
	var sawConfirmed, sawDeleteAll bool
	deleteTool := &fakeTool{name: "delete_tasks", execFunc: func(args map[string]any) (*tools.Result, error) {
		sawConfirmed, _ = args["confirmed"].(bool)
		sawDeleteAll, _ = args["delete_all"].(bool)
		return &tools.Result{Success: true, Observation: "Deleted 3 task(s)."}, nil
	}}
	sup := NewSupervisor(&fakeAdapter{}, newTestRegistry(deleteTool), nil, nil)

	req := HandleRequest{UserInput: "是", Pending: &PendingConfirmation{Tool: "delete_tasks", Params: map[string]any{}}}
	chunks := drain(sup.Handle(context.Background(), req))

	if !sawConfirmed || !sawDeleteAll {
		t.Fatalf("expected confirmed=true and delete_all=true, got confirmed=%v delete_all=%v", sawConfirmed, sawDeleteAll)
	}
	if chunks[len(chunks)-1].Text != "Deleted 3 task(s)." {
		t.Fatalf("unexpected observation: %q", chunks[len(chunks)-1].Text)
	}
}

func TestSupervisor_ConfirmationReentryNegative(t *testing.T) {
	called := false
	deleteTool := &fakeTool{name: "delete_tasks", execFunc: func(_ map[string]any) (*tools.Result, error) {
		called = true
		return &tools.Result{Success: true}, nil
	}}
	sup := NewSupervisor(&fakeAdapter{}, newTestRegistry(deleteTool), nil, nil)

	req := HandleRequest{UserInput: "否", Pending: &PendingConfirmation{Tool: "delete_tasks", Params: map[string]any{}}}
	chunks := drain(sup.Handle(context.Background(), req))

	if called {
		t.Fatal("expected delete_tasks not to be invoked on a negative reply")
	}
	if len(chunks) != 1 || chunks[0].NewPending != nil {
		t.Fatalf("expected a single chunk clearing the latch, got %+v", chunks)
	}
}

func TestSupervisor_ReflectionSwapsListToDelete(t *testing.T) {
	var invoked []string
	listTool := &fakeTool{name: "list_tasks", execFunc: func(_ map[string]any) (*tools.Result, error) {
		invoked = append(invoked, "list_tasks")
		return &tools.Result{Success: true, Observation: "1. a"}, nil
	}}
	deleteTool := &fakeTool{name: "delete_tasks", execFunc: func(_ map[string]any) (*tools.Result, error) {
		invoked = append(invoked, "delete_tasks")
		return &tools.Result{Success: true, Observation: "About to delete", Metadata: map[string]any{"needs_confirmation": true}}, nil
	}}
	adapter := &fakeAdapter{chatResponses: []*llm.Response{
		{ToolCalls: []llm.ToolCall{{ID: "1", Name: "list_tasks", Arguments: map[string]any{}}}, FinishReason: llm.FinishToolCalls},
	}}
	sup := NewSupervisor(adapter, newTestRegistry(listTool, deleteTool), nil, nil)

	chunks := drain(sup.Handle(context.Background(), HandleRequest{UserInput: "删除我的任务"}))

	if len(invoked) != 2 || invoked[0] != "list_tasks" || invoked[1] != "delete_tasks" {
		t.Fatalf("expected reflection to swap list_tasks -> delete_tasks, got %v", invoked)
	}
	if chunks[len(chunks)-1].NewPending == nil {
		t.Fatal("expected the swapped-to delete_tasks result to latch confirmation")
	}
}

func TestSupervisor_MultiStepPausesAndResumes(t *testing.T) {
	step1 := &fakeTool{name: "list_tasks", execFunc: func(_ map[string]any) (*tools.Result, error) {
		return &tools.Result{Success: true, Observation: "listed"}, nil
	}}
	step2 := &fakeTool{name: "delete_tasks", execFunc: func(args map[string]any) (*tools.Result, error) {
		if confirmed, _ := args["confirmed"].(bool); confirmed {
			return &tools.Result{Success: true, Observation: "deleted"}, nil
		}
		return &tools.Result{Success: true, Observation: "confirm?", Metadata: map[string]any{"needs_confirmation": true}}, nil
	}}
	adapter := &fakeAdapter{chatResponses: []*llm.Response{
		{Content: `{"goal":"cleanup","steps":[{"tool":"list_tasks","params":{}},{"tool":"delete_tasks","params":{}}]}`},
	}}
	sup := NewSupervisor(adapter, newTestRegistry(step1, step2), nil, nil)

	chunks := drain(sup.Handle(context.Background(), HandleRequest{UserInput: "整理并总结今天的所有任务"}))
	last := chunks[len(chunks)-1]
	if last.NeedInput == nil {
		t.Fatalf("expected the plan to pause on the delete_tasks confirmation, got %+v", last)
	}

	more := drain(sup.ContinuePlan(context.Background(), last.NeedInput.Plan, last.NeedInput.StepID, "是"))
	if len(more) == 0 {
		t.Fatal("expected chunks after resuming")
	}
	final := more[len(more)-1]
	if !final.Final || final.NeedInput != nil {
		t.Fatalf("expected the resumed plan to finish without a further pause, got %+v", final)
	}
}

func TestSupervisor_EmptyInputYieldsNonEmptyMessage(t *testing.T) {
	sup := NewSupervisor(&fakeAdapter{}, newTestRegistry(), nil, nil)
	chunks := drain(sup.Handle(context.Background(), HandleRequest{UserInput: "   "}))
	if len(chunks) != 1 || chunks[0].Text == "" {
		t.Fatalf("expected a single non-empty message for empty input, got %+v", chunks)
	}
}

func TestSupervisor_SingleStepNoToolCallsFallsBackToChat(t *testing.T) {
	adapter := &fakeAdapter{
		chatResponses: []*llm.Response{{Content: "", FinishReason: llm.FinishStop}},
		streamChunks:  []llm.StreamChunk{{Text: "just chatting"}},
	}
	sup := NewSupervisor(adapter, newTestRegistry(), nil, nil)

	chunks := drain(sup.Handle(context.Background(), HandleRequest{UserInput: "我有什么任务想法呢随便聊聊"}))
	var text string
	for _, c := range chunks {
		text += c.Text
	}
	if text != "just chatting" {
		t.Fatalf("expected fallback to the chat pseudo-tool's streamed reply, got %q", text)
	}
}
