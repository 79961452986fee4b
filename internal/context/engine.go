// internal/context/engine.go
package context

import (
	"fmt"
	"os"
	"strings"
	"text/template"
	"time"

	"github.com/pkoukk/tiktoken-go"

	"github.com/user/graphchef/internal/types"
	"github.com/user/graphchef/pkg/llm"
)

// Engine assembles token-budgeted message sequences for the loop: system
// prompt, as much prior history as fits, then the new question.
type Engine struct {
	tokenizer *tiktoken.Tiktoken
	maxTokens int
	reserve   int
	tmpl      *template.Template
}

// New creates a context engine with the specified token budget.
// model selects the tokenizer (e.g. "gpt-4o-mini"); maxTokens is the
// model's context window; reserve is held back for the response.
// promptPath optionally overrides the built-in system prompt template.
func New(model string, maxTokens, reserve int, promptPath string) (*Engine, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		// Fallback to cl100k_base for unknown models
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, fmt.Errorf("get tokenizer: %w", err)
		}
	}

	text := DefaultPrompt
	if promptPath != "" {
		data, err := os.ReadFile(promptPath)
		if err != nil {
			return nil, fmt.Errorf("read prompt file: %w", err)
		}
		text = string(data)
	}
	tmpl, err := template.New("system").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse prompt template: %w", err)
	}

	return &Engine{
		tokenizer: enc,
		maxTokens: maxTokens,
		reserve:   reserve,
		tmpl:      tmpl,
	}, nil
}

func (e *Engine) countTokens(text string) int {
	return len(e.tokenizer.Encode(text, nil, nil))
}

// PromptData feeds the system prompt template.
type PromptData struct {
	Time     string
	ThreadID string
	Tools    string
}

// SystemPrompt renders the system prompt for a thread.
func (e *Engine) SystemPrompt(threadID types.ThreadID, toolNames []string) (string, error) {
	var sb strings.Builder
	err := e.tmpl.Execute(&sb, PromptData{
		Time:     time.Now().Format(time.RFC3339),
		ThreadID: string(threadID),
		Tools:    strings.Join(toolNames, ", "),
	})
	if err != nil {
		return "", fmt.Errorf("render system prompt: %w", err)
	}
	return sb.String(), nil
}

// BuildMessages assembles the loop's initial message sequence. The system
// prompt and the new question are always included; history is filled from
// the most recent turn backward until the token budget runs out, so the
// sequence stays chronological but may lose its oldest turns.
func (e *Engine) BuildMessages(threadID types.ThreadID, history []*types.Message, question string, toolNames []string) ([]llm.Message, error) {
	sysPrompt, err := e.SystemPrompt(threadID, toolNames)
	if err != nil {
		return nil, err
	}

	budget := e.maxTokens - e.reserve - e.countTokens(sysPrompt) - e.countTokens(question)
	historyBudget := int(float64(budget) * 0.7)

	var kept []llm.Message
	used := 0
	for i := len(history) - 1; i >= 0; i-- {
		m := history[i]
		cost := e.countTokens(m.Content)
		if used+cost > historyBudget {
			break
		}
		kept = append([]llm.Message{{Role: m.Role, Content: m.Content}}, kept...)
		used += cost
	}

	messages := make([]llm.Message, 0, len(kept)+2)
	messages = append(messages, llm.Message{Role: "system", Content: sysPrompt})
	messages = append(messages, kept...)
	messages = append(messages, llm.Message{Role: "user", Content: question})
	return messages, nil
}
