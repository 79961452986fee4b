package gateway

import (
	"context"
	"time"

	"github.com/user/graphchef/internal/conversation"
	"github.com/user/graphchef/internal/types"
)

// RunStatus represents the lifecycle state of a Run.
type RunStatus string

const (
	RunStatusQueued   RunStatus = "queued"
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run tracks a single execution of an inbound question against a thread.
type Run struct {
	ID         types.RunID
	ThreadID   types.ThreadID
	Question   *types.InboundQuestion
	Status     RunStatus
	Attempts   int
	CreatedAt  time.Time
	Ctx        context.Context
	OnComplete func(answer *conversation.Answer, err error)
}

// NewRun creates a Run in the Queued state for the given thread and question.
func NewRun(threadID types.ThreadID, question *types.InboundQuestion) *Run {
	return &Run{
		ID:        types.NewRunID(),
		ThreadID:  threadID,
		Question:  question,
		Status:    RunStatusQueued,
		CreatedAt: time.Now(),
	}
}
