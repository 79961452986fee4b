package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/user/graphchef/pkg/llm"
)

func TestClientComplete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Error("missing or invalid auth header")
		}
		if r.URL.Path != "/chat/completions" {
			t.Errorf("expected path /chat/completions, got %s", r.URL.Path)
		}

		resp := map[string]any{
			"choices": []map[string]any{
				{
					"message": map[string]any{
						"role":    "assistant",
						"content": "We have three seasonal recipes.",
					},
				},
			},
			"usage": map[string]any{
				"prompt_tokens":     10,
				"completion_tokens": 5,
				"total_tokens":      15,
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := New(&llm.Config{
		BaseURL: server.URL,
		APIKey:  "test-key",
		Model:   "gpt-4o-mini",
	})

	resp, err := client.Complete(context.Background(), []llm.Message{
		{Role: "user", Content: "What seasonal recipes do you have?"},
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Content != "We have three seasonal recipes." {
		t.Errorf("unexpected content: %q", resp.Content)
	}
	if resp.Usage.TotalTokens != 15 {
		t.Errorf("expected 15 total tokens, got %d", resp.Usage.TotalTokens)
	}
}

func TestClientCompleteWithToolCall(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var reqBody map[string]any
		json.Unmarshal(body, &reqBody)

		tools, ok := reqBody["tools"].([]any)
		if !ok || len(tools) != 1 {
			t.Errorf("expected 1 tool, got %v", reqBody["tools"])
		}

		resp := map[string]any{
			"choices": []map[string]any{
				{
					"message": map[string]any{
						"role":    "assistant",
						"content": "",
						"tool_calls": []map[string]any{
							{
								"id":   "call_123",
								"type": "function",
								"function": map[string]any{
									"name":      "execute_query",
									"arguments": `{"query":"MATCH (r:Recipe) RETURN r.name"}`,
								},
							},
						},
					},
				},
			},
			"usage": map[string]any{
				"prompt_tokens":     20,
				"completion_tokens": 10,
				"total_tokens":      30,
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := New(&llm.Config{BaseURL: server.URL, APIKey: "key", Model: "gpt-4o-mini"})

	tools := []llm.Tool{
		{
			Type: "function",
			Function: llm.Function{
				Name:        "execute_query",
				Description: "Execute a query against the knowledge graph and return the results.",
				Parameters:  json.RawMessage(`{"type":"object","properties":{"query":{"type":"string"}},"required":["query"]}`),
			},
		},
	}

	resp, err := client.Complete(context.Background(), []llm.Message{
		{Role: "user", Content: "What recipes are there?"},
	}, tools)
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.ToolCalls) != 1 {
		t.Fatalf("expected 1 tool call, got %d", len(resp.ToolCalls))
	}
	if resp.ToolCalls[0].Function.Name != "execute_query" {
		t.Errorf("expected tool call execute_query, got %q", resp.ToolCalls[0].Function.Name)
	}
}

func TestClientAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"invalid api key"}}`))
	}))
	defer server.Close()

	client := New(&llm.Config{BaseURL: server.URL, APIKey: "bad", Model: "gpt-4o-mini"})
	_, err := client.Complete(context.Background(), []llm.Message{{Role: "user", Content: "hi"}}, nil)
	if err == nil {
		t.Fatal("expected error for 401 response")
	}
}

func TestClientToolResultMessageFormat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var reqBody struct {
			Messages []map[string]any `json:"messages"`
		}
		json.Unmarshal(body, &reqBody)

		// The tool-result turn must carry tool_call_id, not tool_calls.
		last := reqBody.Messages[len(reqBody.Messages)-1]
		if last["role"] != "tool" {
			t.Errorf("expected tool role, got %v", last["role"])
		}
		if last["tool_call_id"] != "call_1" {
			t.Errorf("expected tool_call_id call_1, got %v", last["tool_call_id"])
		}
		if _, present := last["tool_calls"]; present {
			t.Error("tool result message must not carry tool_calls")
		}

		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": "done"}},
			},
			"usage": map[string]any{"prompt_tokens": 1, "completion_tokens": 1, "total_tokens": 2},
		})
	}))
	defer server.Close()

	client := New(&llm.Config{BaseURL: server.URL, APIKey: "key", Model: "gpt-4o-mini"})
	_, err := client.Complete(context.Background(), []llm.Message{
		{Role: "user", Content: "q"},
		{Role: "tool", Content: "name: Pumpkin Soup", Tools: []llm.ToolCall{{ID: "call_1"}}},
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
}
