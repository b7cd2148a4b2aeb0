package pipeline

import (
	"context"
	"sync"
)

// Executor serializes the pipeline's units of remote work. The pipeline never
// issues remote calls in parallel; routing them through an explicit executor
// makes that a visible design choice and lets tests substitute their own.
type Executor interface {
	Do(ctx context.Context, fn func(context.Context) error) error
}

// SerialExecutor runs each unit inline, one caller at a time. The mutex keeps
// the one-at-a-time guarantee even when two runs are triggered concurrently,
// e.g. from the HTTP server.
type SerialExecutor struct {
	mu sync.Mutex
}

func (e *SerialExecutor) Do(ctx context.Context, fn func(context.Context) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx)
}
