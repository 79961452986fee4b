package config

import (
	"testing"
)

func TestFlatten_Simple(t *testing.T) {
	m := map[string]any{
		"a": "hello",
		"b": 42.0,
	}
	got := Flatten(m)
	if got["a"] != "hello" {
		t.Errorf("expected a=hello, got %v", got["a"])
	}
	if got["b"] != 42.0 {
		t.Errorf("expected b=42, got %v", got["b"])
	}
	if len(got) != 2 {
		t.Errorf("expected 2 keys, got %d", len(got))
	}
}

func TestFlatten_Nested(t *testing.T) {
	m := map[string]any{
		"llm": map[string]any{
			"provider": "openai",
			"api_key":  "sk-test123",
		},
		"log_level": "info",
	}
	got := Flatten(m)
	if got["llm.provider"] != "openai" {
		t.Errorf("expected llm.provider=openai, got %v", got["llm.provider"])
	}
	if got["llm.api_key"] != "sk-test123" {
		t.Errorf("expected llm.api_key=sk-test123, got %v", got["llm.api_key"])
	}
	if got["log_level"] != "info" {
		t.Errorf("expected log_level=info, got %v", got["log_level"])
	}
	if len(got) != 3 {
		t.Errorf("expected 3 keys, got %d", len(got))
	}
}

func TestFlatten_DeeplyNested(t *testing.T) {
	m := map[string]any{
		"a": map[string]any{
			"b": map[string]any{
				"c": "deep",
			},
		},
	}
	got := Flatten(m)
	if got["a.b.c"] != "deep" {
		t.Errorf("expected a.b.c=deep, got %v", got["a.b.c"])
	}
	if len(got) != 1 {
		t.Errorf("expected 1 key, got %d", len(got))
	}
}

func TestFlatten_EmptyMap(t *testing.T) {
	got := Flatten(map[string]any{})
	if len(got) != 0 {
		t.Errorf("expected 0 keys, got %d", len(got))
	}
}

func TestUnflatten_Simple(t *testing.T) {
	flat := map[string]any{
		"a": "hello",
		"b": 42.0,
	}
	got := Unflatten(flat)
	if got["a"] != "hello" {
		t.Errorf("expected a=hello, got %v", got["a"])
	}
	if got["b"] != 42.0 {
		t.Errorf("expected b=42, got %v", got["b"])
	}
}

func TestUnflatten_Nested(t *testing.T) {
	flat := map[string]any{
		"llm.provider": "openai",
		"llm.api_key":  "sk-test123",
		"log_level":    "info",
	}
	got := Unflatten(flat)
	llm, ok := got["llm"].(map[string]any)
	if !ok {
		t.Fatalf("expected llm to be map, got %T", got["llm"])
	}
	if llm["provider"] != "openai" {
		t.Errorf("expected llm.provider=openai, got %v", llm["provider"])
	}
	if llm["api_key"] != "sk-test123" {
		t.Errorf("expected llm.api_key=sk-test123, got %v", llm["api_key"])
	}
	if got["log_level"] != "info" {
		t.Errorf("expected log_level=info, got %v", got["log_level"])
	}
}

func TestUnflatten_DeeplyNested(t *testing.T) {
	flat := map[string]any{
		"a.b.c": "deep",
	}
	got := Unflatten(flat)
	a, ok := got["a"].(map[string]any)
	if !ok {
		t.Fatalf("expected a to be map, got %T", got["a"])
	}
	b, ok := a["b"].(map[string]any)
	if !ok {
		t.Fatalf("expected a.b to be map, got %T", a["b"])
	}
	if b["c"] != "deep" {
		t.Errorf("expected a.b.c=deep, got %v", b["c"])
	}
}

func TestRoundTrip_FlattenUnflatten(t *testing.T) {
	original := map[string]any{
		"data_dir":  "/home/test/.graphchef",
		"log_level": "debug",
		"llm": map[string]any{
			"provider": "openai",
			"api_key":  "sk-test123456",
			"model":    "gpt-4o",
		},
		"graph": map[string]any{
			"base_url": "http://graph:7474",
			"api_key":  "graph-key-xyz",
		},
		"telegram": map[string]any{
			"token": "bot-token-abc",
		},
	}

	flat := Flatten(original)
	restored := Unflatten(flat)

	// Check top-level values
	if restored["data_dir"] != original["data_dir"] {
		t.Errorf("data_dir mismatch: %v != %v", restored["data_dir"], original["data_dir"])
	}
	if restored["log_level"] != original["log_level"] {
		t.Errorf("log_level mismatch: %v != %v", restored["log_level"], original["log_level"])
	}

	// Check nested values
	llm := restored["llm"].(map[string]any)
	origLLM := original["llm"].(map[string]any)
	if llm["provider"] != origLLM["provider"] {
		t.Errorf("llm.provider mismatch: %v != %v", llm["provider"], origLLM["provider"])
	}
	if llm["api_key"] != origLLM["api_key"] {
		t.Errorf("llm.api_key mismatch: %v != %v", llm["api_key"], origLLM["api_key"])
	}

	graph := restored["graph"].(map[string]any)
	origGraph := original["graph"].(map[string]any)
	if graph["api_key"] != origGraph["api_key"] {
		t.Errorf("graph.api_key mismatch: %v != %v", graph["api_key"], origGraph["api_key"])
	}

	tg := restored["telegram"].(map[string]any)
	origTg := original["telegram"].(map[string]any)
	if tg["token"] != origTg["token"] {
		t.Errorf("telegram.token mismatch: %v != %v", tg["token"], origTg["token"])
	}
}

func TestMaskSecrets_AllSecrets(t *testing.T) {
	flat := map[string]any{
		"llm.provider":   "openai",
		"llm.api_key":    "sk-test123456",
		"graph.api_key":  "GPH-abcdef1234",
		"telegram.token": "123456:ABCdefGHIjkl",
		"log_level":      "info",
	}
	got := MaskSecrets(flat)

	// Non-secret should be unchanged
	if got["llm.provider"] != "openai" {
		t.Errorf("expected llm.provider=openai, got %v", got["llm.provider"])
	}
	if got["log_level"] != "info" {
		t.Errorf("expected log_level=info, got %v", got["log_level"])
	}

	// Secrets should be masked with last 4 chars
	if got["llm.api_key"] != "***3456" {
		t.Errorf("expected llm.api_key=***3456, got %v", got["llm.api_key"])
	}
	if got["graph.api_key"] != "***1234" {
		t.Errorf("expected graph.api_key=***1234, got %v", got["graph.api_key"])
	}
	if got["telegram.token"] != "***Ijkl" {
		t.Errorf("expected telegram.token=***Ijkl, got %v", got["telegram.token"])
	}
}

func TestMaskSecrets_EmptySecret(t *testing.T) {
	flat := map[string]any{
		"llm.api_key": "",
	}
	got := MaskSecrets(flat)
	if got["llm.api_key"] != "" {
		t.Errorf("expected empty string to remain empty, got %v", got["llm.api_key"])
	}
}

func TestMaskSecrets_ShortSecret(t *testing.T) {
	flat := map[string]any{
		"llm.api_key": "ab",
	}
	got := MaskSecrets(flat)
	if got["llm.api_key"] != "***ab" {
		t.Errorf("expected ***ab for short secret, got %v", got["llm.api_key"])
	}
}

func TestMaskSecrets_NoSecretKeys(t *testing.T) {
	flat := map[string]any{
		"log_level":    "debug",
		"data_dir":     "/tmp",
		"llm.provider": "openai",
	}
	got := MaskSecrets(flat)
	if got["log_level"] != "debug" {
		t.Errorf("expected log_level=debug, got %v", got["log_level"])
	}
	if got["data_dir"] != "/tmp" {
		t.Errorf("expected data_dir=/tmp, got %v", got["data_dir"])
	}
	if got["llm.provider"] != "openai" {
		t.Errorf("expected llm.provider=openai, got %v", got["llm.provider"])
	}
}
