package llm

import "testing"

func TestExtractToolCall_PlainText(t *testing.T) {
	content, call := extractToolCall("just a normal reply")
	if call != nil {
		t.Fatal("expected no tool call")
	}
	if content != "just a normal reply" {
		t.Fatalf("unexpected content: %q", content)
	}
}

func TestExtractToolCall_Block(t *testing.T) {
	text := `before <tool_call>{"name": "list_tasks", "arguments": {"status": "pending"}}</tool_call> after`
	content, call := extractToolCall(text)
	if call == nil {
		t.Fatal("expected a tool call")
	}
	if call.Name != "list_tasks" {
		t.Fatalf("unexpected tool name: %q", call.Name)
	}
	if call.Arguments["status"] != "pending" {
		t.Fatalf("unexpected arguments: %v", call.Arguments)
	}
	if content != "before  after" {
		t.Fatalf("expected surrounding text preserved, got %q", content)
	}
}
