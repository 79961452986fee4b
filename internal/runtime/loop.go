package runtime

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/user/graphchef/pkg/llm"
)

// DefaultMaxRounds bounds the model/tool loop when no ceiling is
// configured. Nothing upstream bounds how many tool calls a model may
// request, and each round is a paid external call.
const DefaultMaxRounds = 10

// Loop drives the bounded back-and-forth between the model and the tool
// registry until the model emits final text or the round ceiling forces
// termination. Tool turns exist only in the in-memory message sequence;
// persistence of the final user/assistant pair is the caller's job.
type Loop struct {
	provider  llm.Provider
	registry  *Registry
	maxRounds int
}

// NewLoop creates a Loop. maxRounds <= 0 selects DefaultMaxRounds.
func NewLoop(provider llm.Provider, registry *Registry, maxRounds int) *Loop {
	if maxRounds <= 0 {
		maxRounds = DefaultMaxRounds
	}
	return &Loop{
		provider:  provider,
		registry:  registry,
		maxRounds: maxRounds,
	}
}

// Result is the outcome of one loop run. Log is the diagnostic trace of
// everything that happened, in order; it is returned to the caller and
// never persisted.
type Result struct {
	Text string
	Log  []string
}

// Run executes the loop over the given message sequence (system prompt,
// prior history, new question — already assembled by the caller).
//
// On a model-call failure the run aborts and the error is returned with
// the Result carrying the log up to the failure. Tool failures never
// abort the run; they are fed back to the model as tool-result text.
// Hitting the round ceiling returns the best text seen so far and no
// error.
func (l *Loop) Run(ctx context.Context, messages []llm.Message) (*Result, error) {
	res := &Result{}
	lastText := ""

	for round := 1; round <= l.maxRounds; round++ {
		resp, err := l.provider.Complete(ctx, messages, l.registry.AsLLMTools())
		if err != nil {
			res.Text = lastText
			res.Log = append(res.Log, fmt.Sprintf("round %d: model call failed: %v", round, err))
			return res, fmt.Errorf("model call: %w", err)
		}

		if len(resp.ToolCalls) == 0 {
			if resp.Content == "" {
				res.Log = append(res.Log, fmt.Sprintf("round %d: model returned empty response", round))
			}
			res.Text = resp.Content
			return res, nil
		}

		if resp.Content != "" {
			lastText = resp.Content
		}

		messages = append(messages, llm.Message{
			Role:    "assistant",
			Content: resp.Content,
			Tools:   resp.ToolCalls,
		})

		for _, tc := range resp.ToolCalls {
			result := l.executeTool(ctx, round, tc, res)
			messages = append(messages, llm.Message{
				Role:    "tool",
				Content: result,
				Tools:   []llm.ToolCall{{ID: tc.ID}},
			})
		}
	}

	res.Text = lastText
	res.Log = append(res.Log, fmt.Sprintf("forced termination: round ceiling (%d) reached without final text", l.maxRounds))
	slog.Warn("loop hit round ceiling", "max_rounds", l.maxRounds)
	return res, nil
}

// executeTool resolves and runs one tool call, appending trace lines to
// the result log. Unknown tool names resolve to an empty result rather
// than failing the loop, keeping the protocol resilient to model
// mistakes. Execution errors become result text the model can react to.
func (l *Loop) executeTool(ctx context.Context, round int, tc llm.ToolCall, res *Result) string {
	res.Log = append(res.Log, fmt.Sprintf("round %d: tool call %s %s", round, tc.Function.Name, string(tc.Function.Arguments)))

	tool, ok := l.registry.Get(tc.Function.Name)
	if !ok {
		res.Log = append(res.Log, fmt.Sprintf("round %d: unknown tool %q, returning empty result", round, tc.Function.Name))
		return ""
	}

	result, err := tool.Execute(ctx, tc.Function.Arguments)
	if err != nil {
		res.Log = append(res.Log, fmt.Sprintf("round %d: tool %s failed: %v", round, tc.Function.Name, err))
		return fmt.Sprintf("error: %v", err)
	}
	return result
}
