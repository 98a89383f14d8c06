package mcp

import (
	"context"
	"testing"

	"github.com/haasonsaas/nexus/internal/tools"
)

type echoTool struct{}

func (echoTool) Name() string        { return "echo" }
func (echoTool) Description() string { return "Echoes the message parameter." }
func (echoTool) Parameters() []tools.Parameter {
	return []tools.Parameter{
		{Name: "message", Type: tools.TypeString, Description: "text to echo", Required: true},
	}
}
func (echoTool) Execute(_ context.Context, args map[string]any) (*tools.Result, error) {
	msg, _ := args["message"].(string)
	return &tools.Result{Success: true, Observation: "echo: " + msg}, nil
}

func newTestManager(t *testing.T) (*Manager, *tools.Registry) {
	t.Helper()
	registry := tools.NewRegistry(nil)
	registry.Register(echoTool{})

	mgr := NewManager(&Config{
		Enabled: true,
		Servers: []*ServerConfig{
			{ID: "local-tools", Name: "local tools", Transport: TransportInProcess, AutoStart: false},
		},
	}, nil)
	mgr.RegisterHandler("local-tools", NewRegistryHandler(registry))
	return mgr, registry
}

func TestRegistryHandler_ConnectListsTools(t *testing.T) {
	mgr, _ := newTestManager(t)
	ctx := context.Background()

	if err := mgr.Connect(ctx, "local-tools"); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer mgr.Disconnect("local-tools")

	client, ok := mgr.Client("local-tools")
	if !ok {
		t.Fatal("expected client to be registered after Connect")
	}
	if !client.Connected() {
		t.Fatal("expected client to report connected")
	}

	foundTools := client.Tools()
	if len(foundTools) != 1 || foundTools[0].Name != "echo" {
		t.Fatalf("expected exactly [echo], got %+v", foundTools)
	}
	if client.ServerInfo().Name != RegistryServerInfo.Name {
		t.Fatalf("expected server info %q, got %q", RegistryServerInfo.Name, client.ServerInfo().Name)
	}
}

func TestRegistryHandler_CallToolRoundTrip(t *testing.T) {
	mgr, _ := newTestManager(t)
	ctx := context.Background()

	if err := mgr.Connect(ctx, "local-tools"); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer mgr.Disconnect("local-tools")

	result, err := mgr.CallTool(ctx, "local-tools", "echo", map[string]any{"message": "hello"})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error result: %+v", result)
	}
	if len(result.Content) != 1 || result.Content[0].Text != "echo: hello" {
		t.Fatalf("unexpected content: %+v", result.Content)
	}
}

func TestRegistryHandler_UnknownToolReturnsErrorResult(t *testing.T) {
	mgr, _ := newTestManager(t)
	ctx := context.Background()

	if err := mgr.Connect(ctx, "local-tools"); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer mgr.Disconnect("local-tools")

	result, err := mgr.CallTool(ctx, "local-tools", "does-not-exist", nil)
	if err != nil {
		t.Fatalf("CallTool should not error at the transport level, got: %v", err)
	}
	if !result.IsError {
		t.Fatalf("expected IsError for unknown tool, got %+v", result)
	}
}
