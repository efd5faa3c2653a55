package shotsync

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/attract-vse/attract/internal/strips"
)

type Operation string

const (
	OpCreate  Operation = "create"
	OpRelink  Operation = "relink"
	OpUpdate  Operation = "update"
	OpDelete  Operation = "delete"
	OpUnlink  Operation = "unlink"
	OpReorder Operation = "reorder"
)

func ParseOperation(raw string) (Operation, error) {
	op := Operation(strings.ToLower(strings.TrimSpace(raw)))
	switch op {
	case OpCreate, OpRelink, OpUpdate, OpDelete, OpUnlink, OpReorder:
		return op, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownOperation, raw)
}

// AvailableOperations lists what can be done with strip in its current state.
func AvailableOperations(strip strips.Strip) []Operation {
	if strip.Bound() {
		return []Operation{OpUpdate, OpDelete, OpUnlink, OpReorder}
	}
	if strip.Supported() {
		return []Operation{OpCreate, OpRelink}
	}
	return nil
}

// Request names one engine operation. StripID is ignored for reorder and
// RemoteID is only used by relink.
type Request struct {
	Op       Operation
	StripID  string
	RemoteID string
}

type Result struct {
	Request Request
	Report  *ReorderReport
	Err     error
}

// Execute loads the strip named by req and runs the operation on it.
func (e *Engine) Execute(ctx context.Context, req Request) Result {
	result := Result{Request: req}
	if req.Op == OpReorder {
		report, err := e.Reorder(ctx)
		result.Report = &report
		result.Err = err
		return result
	}
	strip, err := e.store.Get(ctx, req.StripID)
	if err != nil {
		result.Err = fmt.Errorf("load strip %q: %w", req.StripID, err)
		return result
	}
	switch req.Op {
	case OpCreate:
		result.Err = e.Create(ctx, &strip)
	case OpRelink:
		result.Err = e.Relink(ctx, &strip, req.RemoteID)
	case OpUpdate:
		result.Err = e.Update(ctx, &strip)
	case OpDelete:
		result.Err = e.Delete(ctx, &strip)
	case OpUnlink:
		result.Err = e.Unlink(ctx, &strip)
	default:
		result.Err = fmt.Errorf("%w: %q", ErrUnknownOperation, req.Op)
	}
	return result
}

type RunnerOptions struct {
	Workers   int
	QueueSize int
}

type runnerJob struct {
	req  Request
	done chan Result
}

// Runner executes engine requests on a fixed pool of workers so callers
// never wait on the network.
type Runner struct {
	engine *Engine
	ctx    context.Context
	queue  chan runnerJob

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewRunner(ctx context.Context, engine *Engine, opts RunnerOptions) *Runner {
	workers := opts.Workers
	if workers <= 0 {
		workers = 1
	}
	queueSize := opts.QueueSize
	if queueSize <= 0 {
		queueSize = 64
	}
	r := &Runner{
		engine: engine,
		ctx:    ctx,
		queue:  make(chan runnerJob, queueSize),
	}
	for i := 0; i < workers; i++ {
		r.wg.Add(1)
		go r.worker()
	}
	return r
}

// Submit queues req and returns a channel that receives exactly one Result.
func (r *Runner) Submit(req Request) (<-chan Result, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return nil, ErrRunnerClosed
	}
	job := runnerJob{req: req, done: make(chan Result, 1)}
	select {
	case r.queue <- job:
		return job.done, nil
	default:
		return nil, ErrQueueFull
	}
}

// Close stops accepting requests and waits for queued ones to finish.
func (r *Runner) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()
	r.wg.Wait()
}

func (r *Runner) worker() {
	defer r.wg.Done()
	for job := range r.queue {
		job.done <- r.engine.Execute(r.ctx, job.req)
	}
}
