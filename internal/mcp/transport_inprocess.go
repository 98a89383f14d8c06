package mcp

import (
	"context"
	"encoding/json"
	"fmt"
)

// InProcessHandler answers one MCP method call directly inside this
// process, given the method name and its raw JSON params. Used to expose
// a Go-native capability (most notably this module's own tools.Registry)
// as an MCP server without any real wire transport.
type InProcessHandler func(ctx context.Context, method string, params json.RawMessage) (json.RawMessage, error)

// InProcessTransport implements Transport by calling a registered handler
// function directly, with no subprocess and no socket. Grounded on
// transport.go's Transport interface and transport_stdio.go's Call/Notify
// shape, narrowed to the function-call case: the distilled spec treats
// MCP as "a tool-invocation interface" and explicitly puts wire transport
// out of scope, so this is the only transport this module drives end to
// end; stdio/HTTP remain for talking to real third-party MCP servers.
type InProcessTransport struct {
	handler   InProcessHandler
	events    chan *JSONRPCNotification
	requests  chan *JSONRPCRequest
	connected bool
}

// NewInProcessTransport wraps handler as a Transport. A nil handler is
// valid at construction time (e.g. before registration completes) but
// every Call on it fails.
func NewInProcessTransport(handler InProcessHandler) *InProcessTransport {
	return &InProcessTransport{
		handler:  handler,
		events:   make(chan *JSONRPCNotification),
		requests: make(chan *JSONRPCRequest),
	}
}

func (t *InProcessTransport) Connect(_ context.Context) error {
	t.connected = true
	return nil
}

func (t *InProcessTransport) Close() error {
	if !t.connected {
		return nil
	}
	t.connected = false
	close(t.events)
	close(t.requests)
	return nil
}

func (t *InProcessTransport) Connected() bool { return t.connected }

func (t *InProcessTransport) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	if t.handler == nil {
		return nil, fmt.Errorf("mcp: no in-process handler registered for method %q", method)
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("marshal params: %w", err)
	}
	return t.handler(ctx, method, raw)
}

func (t *InProcessTransport) Notify(ctx context.Context, method string, params any) error {
	_, err := t.Call(ctx, method, params)
	return err
}

func (t *InProcessTransport) Events() <-chan *JSONRPCNotification { return t.events }

func (t *InProcessTransport) Requests() <-chan *JSONRPCRequest { return t.requests }

// Respond is a no-op: in-process calls are pure request/response, so
// there is no server-initiated request channel to answer on.
func (t *InProcessTransport) Respond(_ context.Context, _ any, _ any, _ *JSONRPCError) error {
	return nil
}
