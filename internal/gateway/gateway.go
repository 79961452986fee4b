// Package gateway serializes inbound questions into per-thread run lanes
// and applies the retry policy around the conversation service. It is the
// integration boundary: everything below it (the loop, the stores) stays
// retry-free and single-shot.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/user/graphchef/internal/conversation"
	"github.com/user/graphchef/internal/types"
)

// Gateway orchestrates inbound questions into runs. It resolves (or
// creates) the target thread, wraps each question in a Run, and enqueues
// the run on its thread's lane.
type Gateway struct {
	threads types.ThreadStore
	service *conversation.Service
	Queue   *Queue
	retry   *RetryPolicy

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Gateway wired to the thread store and conversation service
// with the given concurrency limit for simultaneous run processing.
func New(threads types.ThreadStore, service *conversation.Service, maxConcurrent ...int64) *Gateway {
	var concurrency int64 = 2
	if len(maxConcurrent) > 0 && maxConcurrent[0] > 0 {
		concurrency = maxConcurrent[0]
	}
	g := &Gateway{
		threads: threads,
		service: service,
		Queue:   NewQueue(concurrency),
		retry:   DefaultRetryPolicy(),
	}
	g.Queue.SetProcessor(g.process)
	return g
}

// Start initialises the gateway's context and starts the internal queue.
func (g *Gateway) Start(ctx context.Context) {
	g.ctx, g.cancel = context.WithCancel(ctx)
	g.Queue.Start(g.ctx)
}

// Stop cancels the gateway context, stops the queue, and waits for any
// outstanding work to finish.
func (g *Gateway) Stop() {
	if g.cancel != nil {
		g.cancel()
	}
	g.Queue.Stop()
	g.wg.Wait()
}

// RunOption configures optional behavior on a Run.
type RunOption func(*Run)

// WithOnComplete sets a callback invoked when the run finishes, with the
// answer (nil on failure) and the terminal error.
func WithOnComplete(fn func(*conversation.Answer, error)) RunOption {
	return func(r *Run) { r.OnComplete = fn }
}

// HandleInbound resolves the target thread for the question, wraps it in
// a Run, and enqueues it on the thread's lane. Resolution order: an
// explicit ThreadID wins, then a ThreadKey (resolved or created), and a
// question with neither gets a fresh thread.
func (g *Gateway) HandleInbound(ctx context.Context, q *types.InboundQuestion, opts ...RunOption) error {
	threadID, err := g.resolveThread(ctx, q)
	if err != nil {
		return err
	}
	run := NewRun(threadID, q)
	for _, opt := range opts {
		opt(run)
	}
	return g.Queue.Enqueue(run)
}

func (g *Gateway) resolveThread(ctx context.Context, q *types.InboundQuestion) (types.ThreadID, error) {
	if q.ThreadID != "" {
		ok, err := g.threads.Exists(ctx, q.ThreadID)
		if err != nil {
			return "", fmt.Errorf("check thread: %w", err)
		}
		if !ok {
			return "", fmt.Errorf("thread %s: %w", q.ThreadID, types.ErrThreadNotFound)
		}
		return q.ThreadID, nil
	}
	if q.ThreadKey != "" {
		id, err := g.threads.ResolveOrCreate(ctx, q.ThreadKey)
		if err != nil {
			return "", fmt.Errorf("resolve thread: %w", err)
		}
		return id, nil
	}
	id, err := g.threads.Create(ctx)
	if err != nil {
		return "", fmt.Errorf("create thread: %w", err)
	}
	return id, nil
}

// process executes a run through the conversation service, retrying
// transient failures per the retry policy. Each attempt is a full ask;
// permanently failed runs surface the last error to OnComplete.
func (g *Gateway) process(run *Run) (*conversation.Answer, error) {
	var answer *conversation.Answer
	var err error

	for attempt := 1; ; attempt++ {
		run.Attempts = attempt
		answer, err = g.service.Ask(run.Ctx, run.Question.Text, run.ThreadID)
		if err == nil {
			return answer, nil
		}
		if !g.retry.ShouldRetry(err, attempt) {
			return answer, err
		}
		delay := g.retry.NextDelay(attempt)
		slog.Warn("run attempt failed, retrying",
			"run_id", string(run.ID),
			"thread_id", string(run.ThreadID),
			"attempt", attempt,
			"delay", delay,
			"error", err)
		select {
		case <-time.After(delay):
		case <-run.Ctx.Done():
			return answer, run.Ctx.Err()
		}
	}
}
