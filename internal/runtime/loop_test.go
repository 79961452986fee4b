package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/user/graphchef/pkg/llm"
)

// mockProvider returns pre-configured responses and records the message
// sequences it was called with.
type mockProvider struct {
	mu        sync.Mutex
	responses []*llm.Response
	err       error
	callCount int
	calls     [][]llm.Message
}

func (m *mockProvider) Complete(_ context.Context, messages []llm.Message, tools []llm.Tool) (*llm.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, messages)
	idx := m.callCount
	m.callCount++
	if m.err != nil {
		return nil, m.err
	}
	if idx < len(m.responses) {
		return m.responses[idx], nil
	}
	return m.responses[len(m.responses)-1], nil
}

// echoTool returns its text argument.
type echoTool struct{}

func (e *echoTool) Name() string                { return "echo" }
func (e *echoTool) Description() string         { return "Echo the input" }
func (e *echoTool) Parameters() json.RawMessage { return json.RawMessage(`{"type":"object"}`) }
func (e *echoTool) Execute(_ context.Context, args json.RawMessage) (string, error) {
	var params struct {
		Text string `json:"text"`
	}
	json.Unmarshal(args, &params)
	return params.Text, nil
}

// failTool always fails.
type failTool struct{}

func (f *failTool) Name() string                { return "fail" }
func (f *failTool) Description() string         { return "Always fails" }
func (f *failTool) Parameters() json.RawMessage { return json.RawMessage(`{"type":"object"}`) }
func (f *failTool) Execute(_ context.Context, _ json.RawMessage) (string, error) {
	return "", fmt.Errorf("store unreachable")
}

func toolCallResponse(id, name, args string) *llm.Response {
	return &llm.Response{
		ToolCalls: []llm.ToolCall{{
			ID:   id,
			Type: "function",
			Function: llm.FunctionCall{
				Name:      name,
				Arguments: json.RawMessage(args),
			},
		}},
	}
}

func userQuestion(text string) []llm.Message {
	return []llm.Message{
		{Role: "system", Content: "You are a recipe assistant."},
		{Role: "user", Content: text},
	}
}

func TestRunFinalTextFirstRound(t *testing.T) {
	provider := &mockProvider{responses: []*llm.Response{{Content: "Here are the recipes."}}}
	loop := NewLoop(provider, NewRegistry(), 10)

	res, err := loop.Run(context.Background(), userQuestion("What recipes?"))
	if err != nil {
		t.Fatal(err)
	}
	if res.Text != "Here are the recipes." {
		t.Errorf("unexpected text: %q", res.Text)
	}
	if provider.callCount != 1 {
		t.Errorf("expected 1 model call, got %d", provider.callCount)
	}
}

func TestRunToolCallThenFinal(t *testing.T) {
	provider := &mockProvider{responses: []*llm.Response{
		toolCallResponse("tc1", "echo", `{"text":"3 rows"}`),
		{Content: "Found 3 rows."},
	}}
	registry := NewRegistry()
	registry.Register(&echoTool{})
	loop := NewLoop(provider, registry, 10)

	res, err := loop.Run(context.Background(), userQuestion("count rows"))
	if err != nil {
		t.Fatal(err)
	}
	if res.Text != "Found 3 rows." {
		t.Errorf("unexpected text: %q", res.Text)
	}
	if provider.callCount != 2 {
		t.Fatalf("expected 2 model calls, got %d", provider.callCount)
	}

	// Second call must carry the assistant tool-call turn and the
	// tool-result turn with the original call id.
	second := provider.calls[1]
	last := second[len(second)-1]
	if last.Role != "tool" || last.Content != "3 rows" {
		t.Errorf("expected tool result turn, got role=%s content=%q", last.Role, last.Content)
	}
	if len(last.Tools) != 1 || last.Tools[0].ID != "tc1" {
		t.Error("tool result turn must reference the tool call id")
	}

	if len(res.Log) == 0 || !strings.Contains(res.Log[0], "tool call echo") {
		t.Errorf("expected tool call trace in log, got %v", res.Log)
	}
}

func TestRunUnknownToolYieldsEmptyResult(t *testing.T) {
	provider := &mockProvider{responses: []*llm.Response{
		toolCallResponse("tc1", "not_a_tool", `{}`),
		{Content: "ok"},
	}}
	loop := NewLoop(provider, NewRegistry(), 10)

	res, err := loop.Run(context.Background(), userQuestion("q"))
	if err != nil {
		t.Fatal(err)
	}
	if res.Text != "ok" {
		t.Errorf("unexpected text: %q", res.Text)
	}

	second := provider.calls[1]
	last := second[len(second)-1]
	if last.Role != "tool" || last.Content != "" {
		t.Errorf("expected empty tool result, got role=%s content=%q", last.Role, last.Content)
	}

	found := false
	for _, line := range res.Log {
		if strings.Contains(line, "unknown tool") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected unknown-tool trace, got %v", res.Log)
	}
}

func TestRunToolFailureFedBackAsText(t *testing.T) {
	provider := &mockProvider{responses: []*llm.Response{
		toolCallResponse("tc1", "fail", `{}`),
		{Content: "The store seems to be down."},
	}}
	registry := NewRegistry()
	registry.Register(&failTool{})
	loop := NewLoop(provider, registry, 10)

	res, err := loop.Run(context.Background(), userQuestion("q"))
	if err != nil {
		t.Fatal(err)
	}
	if res.Text != "The store seems to be down." {
		t.Errorf("unexpected text: %q", res.Text)
	}

	second := provider.calls[1]
	last := second[len(second)-1]
	if !strings.Contains(last.Content, "store unreachable") {
		t.Errorf("expected failure text fed back to model, got %q", last.Content)
	}
}

func TestRunRoundCeiling(t *testing.T) {
	// Model never stops asking for tools; the ceiling must force
	// termination after exactly maxRounds model calls, without error.
	provider := &mockProvider{responses: []*llm.Response{
		toolCallResponse("tc", "echo", `{"text":"again"}`),
	}}
	registry := NewRegistry()
	registry.Register(&echoTool{})
	loop := NewLoop(provider, registry, 10)

	res, err := loop.Run(context.Background(), userQuestion("loop forever"))
	if err != nil {
		t.Fatal(err)
	}
	if provider.callCount != 10 {
		t.Errorf("expected exactly 10 model calls, got %d", provider.callCount)
	}
	if len(res.Log) == 0 || !strings.Contains(res.Log[len(res.Log)-1], "forced termination") {
		t.Errorf("expected forced termination trace, got %v", res.Log)
	}
}

func TestRunCeilingReturnsBestEffortText(t *testing.T) {
	resp := toolCallResponse("tc", "echo", `{"text":"x"}`)
	resp.Content = "Partial answer so far."
	provider := &mockProvider{responses: []*llm.Response{resp}}
	registry := NewRegistry()
	registry.Register(&echoTool{})
	loop := NewLoop(provider, registry, 3)

	res, err := loop.Run(context.Background(), userQuestion("q"))
	if err != nil {
		t.Fatal(err)
	}
	if res.Text != "Partial answer so far." {
		t.Errorf("expected best-effort text, got %q", res.Text)
	}
}

func TestRunModelFailureAborts(t *testing.T) {
	provider := &mockProvider{err: errors.New("connection refused")}
	loop := NewLoop(provider, NewRegistry(), 10)

	res, err := loop.Run(context.Background(), userQuestion("q"))
	if err == nil {
		t.Fatal("expected error")
	}
	if res == nil {
		t.Fatal("expected result with partial log even on failure")
	}
	if len(res.Log) == 0 || !strings.Contains(res.Log[0], "model call failed") {
		t.Errorf("expected model failure trace, got %v", res.Log)
	}
	if provider.callCount != 1 {
		t.Errorf("expected no retry inside the loop, got %d calls", provider.callCount)
	}
}

func TestNewLoopDefaultCeiling(t *testing.T) {
	provider := &mockProvider{responses: []*llm.Response{
		toolCallResponse("tc", "echo", `{"text":"x"}`),
	}}
	registry := NewRegistry()
	registry.Register(&echoTool{})
	loop := NewLoop(provider, registry, 0)

	if _, err := loop.Run(context.Background(), userQuestion("q")); err != nil {
		t.Fatal(err)
	}
	if provider.callCount != DefaultMaxRounds {
		t.Errorf("expected %d model calls, got %d", DefaultMaxRounds, provider.callCount)
	}
}
