package tools

import (
	"context"
	"testing"
	"time"
)

type echoTool struct {
	name   string
	params []Parameter
	fn     func(ctx context.Context, args map[string]any) (*Result, error)
}

func (e *echoTool) Name() string             { return e.name }
func (e *echoTool) Description() string      { return "echo" }
func (e *echoTool) Parameters() []Parameter  { return e.params }
func (e *echoTool) Execute(ctx context.Context, args map[string]any) (*Result, error) {
	return e.fn(ctx, args)
}

func okTool(name string, params []Parameter) *echoTool {
	return &echoTool{
		name:   name,
		params: params,
		fn: func(ctx context.Context, args map[string]any) (*Result, error) {
			return &Result{Success: true, Observation: "ok"}, nil
		},
	}
}

func TestRegistry_RegisterGetHas(t *testing.T) {
	r := NewRegistry(nil)
	r.Register(okTool("a", nil))
	if !r.Has("a") {
		t.Fatal("expected tool a to be registered")
	}
	if r.Has("b") {
		t.Fatal("did not expect tool b")
	}
	if _, ok := r.Get("a"); !ok {
		t.Fatal("expected Get(a) to find tool")
	}
}

func TestRegistry_Execute_UnknownToolNeverErrors(t *testing.T) {
	r := NewRegistry(nil)
	res := r.Execute(context.Background(), "missing", 0, nil)
	if res == nil || res.Success {
		t.Fatalf("expected failure result for unknown tool, got %+v", res)
	}
	if res.Error != "NotFoundError" {
		t.Fatalf("expected NotFoundError, got %q", res.Error)
	}
}

func TestExecuteSafe_ValidationFailureNamesField(t *testing.T) {
	tool := okTool("needs_x", []Parameter{{Name: "x", Type: TypeString, Required: true}})
	res := ExecuteSafe(context.Background(), tool, 0, map[string]any{})
	if res.Success {
		t.Fatal("expected validation failure")
	}
	if res.Observation == "" {
		t.Fatal("expected observation naming the offending field")
	}
}

func TestExecuteSafe_IntegerRejectsBool(t *testing.T) {
	tool := okTool("needs_int", []Parameter{{Name: "n", Type: TypeInteger, Required: true}})
	res := ExecuteSafe(context.Background(), tool, 0, map[string]any{"n": true})
	if res.Success {
		t.Fatal("expected bool to be rejected as integer")
	}
}

func TestExecuteSafe_ExtraArgsDoNotFailValidation(t *testing.T) {
	tool := okTool("no_params", nil)
	res := ExecuteSafe(context.Background(), tool, 0, map[string]any{"unexpected": "value"})
	if !res.Success {
		t.Fatalf("expected success, declared-only validation should ignore extra args: %+v", res)
	}
}

func TestExecuteSafe_Timeout(t *testing.T) {
	slow := &echoTool{
		name: "slow",
		fn: func(ctx context.Context, args map[string]any) (*Result, error) {
			select {
			case <-time.After(200 * time.Millisecond):
				return &Result{Success: true}, nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		},
	}
	res := ExecuteSafe(context.Background(), slow, 10*time.Millisecond, nil)
	if res.Success {
		t.Fatal("expected timeout failure")
	}
	if res.Error == "" {
		t.Fatal("expected timeout error message")
	}
}

func TestExecuteSafe_PanicIsCaptured(t *testing.T) {
	boom := &echoTool{
		name: "boom",
		fn: func(ctx context.Context, args map[string]any) (*Result, error) {
			panic("kaboom")
		},
	}
	res := ExecuteSafe(context.Background(), boom, 0, nil)
	if res.Success {
		t.Fatal("expected panic to surface as a failure result")
	}
	if res.Metadata["exception_type"] != "panic" {
		t.Fatalf("expected exception_type=panic, got %v", res.Metadata["exception_type"])
	}
}

func TestExecuteSafe_AlwaysStampsMetadata(t *testing.T) {
	res := ExecuteSafe(context.Background(), okTool("a", nil), 0, nil)
	if _, ok := res.Metadata["duration"]; !ok {
		t.Fatal("expected duration to be stamped")
	}
	if _, ok := res.Metadata["timestamp"]; !ok {
		t.Fatal("expected timestamp to be stamped")
	}
}

func TestResult_NeedsConfirmation(t *testing.T) {
	r := &Result{Metadata: map[string]any{"needs_confirmation": true}}
	if !r.NeedsConfirmation() {
		t.Fatal("expected needs_confirmation sentinel to be recognized")
	}
	r2 := &Result{}
	if r2.NeedsConfirmation() {
		t.Fatal("expected false when metadata absent")
	}
}
