// Package conversation glues thread resolution, history, the agent loop,
// and persistence into the single ask operation exposed to adapters.
package conversation

import (
	"context"
	"fmt"
	"log/slog"

	ctxengine "github.com/user/graphchef/internal/context"
	"github.com/user/graphchef/internal/runtime"
	"github.com/user/graphchef/internal/types"
)

// PartialPersistError reports an exchange that was half-persisted: one
// message of the user/assistant pair was written and the other failed.
// It is distinct from ordinary storage failures because the thread is now
// in an inconsistent state the caller may want to repair or flag.
type PartialPersistError struct {
	ThreadID types.ThreadID
	Stage    string // which append failed: "user" never appears here, "assistant" does
	Err      error
}

func (e *PartialPersistError) Error() string {
	return fmt.Sprintf("partial persist on thread %s: %s message failed: %v", e.ThreadID, e.Stage, e.Err)
}

func (e *PartialPersistError) Unwrap() error { return e.Err }

// Answer is the result of one ask: the thread it ran in, the final
// response text, and the loop's diagnostic trace.
type Answer struct {
	ThreadID types.ThreadID `json:"thread_id"`
	Response string         `json:"response"`
	Logs     []string       `json:"logs"`
}

// Service is the top-level entry point for questions. Each Ask is an
// independent, stateless unit of work: it reconstructs all context from
// the stores, runs the loop, and persists exactly the user/assistant
// pair. Concurrent asks on the same thread are not coordinated here;
// callers wanting single-writer-per-thread semantics serialize through
// the gateway's per-thread lanes.
type Service struct {
	threads types.ThreadStore
	log     types.MessageLog
	engine  *ctxengine.Engine
	loop    *runtime.Loop
	tools   []string
}

// New creates a Service. toolNames feeds the system prompt.
func New(threads types.ThreadStore, log types.MessageLog, engine *ctxengine.Engine, loop *runtime.Loop, toolNames []string) *Service {
	return &Service{
		threads: threads,
		log:     log,
		engine:  engine,
		loop:    loop,
		tools:   toolNames,
	}
}

// Ask answers a question in the given thread, creating a fresh thread
// when threadID is empty. A non-empty threadID is used as-is; existence
// is checked once, at the message-append boundary.
//
// On failure before final text nothing is persisted, and the returned
// Answer still carries the partial loop trace for diagnostics.
func (s *Service) Ask(ctx context.Context, question string, threadID types.ThreadID) (*Answer, error) {
	if question == "" {
		return nil, fmt.Errorf("question is required")
	}

	if threadID == "" {
		id, err := s.threads.Create(ctx)
		if err != nil {
			return nil, fmt.Errorf("create thread: %w", err)
		}
		threadID = id
	}

	history, err := s.log.History(ctx, threadID)
	if err != nil {
		return &Answer{ThreadID: threadID}, fmt.Errorf("load history: %w", err)
	}

	messages, err := s.engine.BuildMessages(threadID, history, question, s.tools)
	if err != nil {
		return &Answer{ThreadID: threadID}, fmt.Errorf("build prompt: %w", err)
	}

	result, err := s.loop.Run(ctx, messages)
	answer := &Answer{ThreadID: threadID, Logs: result.Log}
	if err != nil {
		return answer, fmt.Errorf("agent loop: %w", err)
	}
	answer.Response = result.Text

	if _, err := s.log.Append(ctx, threadID, types.RoleUser, question); err != nil {
		return answer, fmt.Errorf("persist user message: %w", err)
	}
	if _, err := s.log.Append(ctx, threadID, types.RoleAssistant, result.Text); err != nil {
		return answer, &PartialPersistError{ThreadID: threadID, Stage: "assistant", Err: err}
	}

	if err := s.threads.Touch(ctx, threadID); err != nil {
		// The exchange is already durable; a failed timestamp touch is
		// not worth failing the ask over.
		slog.Warn("touch thread failed", "thread_id", threadID, "error", err)
	}

	return answer, nil
}

// AskByKey resolves (or creates) the thread bound to key and asks there.
// Used by channel adapters and scheduled tasks that address threads by a
// stable external handle.
func (s *Service) AskByKey(ctx context.Context, question string, key types.ThreadKey) (*Answer, error) {
	threadID, err := s.threads.ResolveOrCreate(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("resolve thread: %w", err)
	}
	return s.Ask(ctx, question, threadID)
}
