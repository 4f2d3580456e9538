// Package operations is the execution layer: the bounded worker pool and
// its synchronous twin, the TTL result cache, progress broadcasting,
// metrics and the import manager that drives the seven pipeline phases.
package operations

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
)

// Stage names carried by worker tasks. Only the stateless stage
// functions are eligible for offload; learning writes and the final
// dedup merge stay on the orchestrating goroutine.
type Stage string

const (
	StageParseSheet      Stage = "parseSheet"
	StageAnalyzePatterns Stage = "analyzePatterns"
	StageClassifyData    Stage = "classifyData"
	StageTransformData   Stage = "transformData"
	StageValidateData    Stage = "validateData"
)

// Task is one unit of offloadable work: a stage name and the pure
// function to run. The same function runs on either execution path.
type Task struct {
	Stage Stage
	Run   func(ctx context.Context) (interface{}, error)
}

// TaskResult is a completed task's outcome.
type TaskResult struct {
	Value interface{}
	Err   error
}

// Executor runs tasks. The pool and the synchronous fallback implement
// the same contract so the pipeline is indifferent to which one it got.
type Executor interface {
	Execute(ctx context.Context, task Task) <-chan TaskResult
	Close()
}

type queuedTask struct {
	ctx  context.Context
	task Task
	done chan TaskResult
}

// WorkerPool is a bounded pool pulling tasks from a FIFO queue. Each
// worker is busy with exactly one task at a time and picks up the next
// queued task as soon as it completes.
type WorkerPool struct {
	tasks   chan queuedTask
	workers int
	wg      sync.WaitGroup
	logger  *slog.Logger

	closeOnce sync.Once
}

// NewWorkerPool starts a pool. Zero or negative workers means the
// available-parallelism hint, floored at the default of 4.
func NewWorkerPool(workers int, logger *slog.Logger) *WorkerPool {
	if workers <= 0 {
		workers = runtime.NumCPU()
		if workers < 4 {
			workers = 4
		}
	}
	if logger == nil {
		logger = slog.Default()
	}

	pool := &WorkerPool{
		tasks:   make(chan queuedTask, workers*2),
		workers: workers,
		logger:  logger.With(slog.String("component", "worker_pool")),
	}
	for i := 0; i < workers; i++ {
		pool.wg.Add(1)
		go pool.worker(i)
	}
	pool.logger.Info("worker pool started", slog.Int("workers", workers))
	return pool
}

func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()
	for queued := range p.tasks {
		if err := queued.ctx.Err(); err != nil {
			queued.done <- TaskResult{Err: err}
			continue
		}
		value, err := queued.task.Run(queued.ctx)
		if err != nil {
			p.logger.Debug("task failed",
				slog.Int("worker", id),
				slog.String("stage", string(queued.task.Stage)),
				slog.String("error", err.Error()))
		}
		queued.done <- TaskResult{Value: value, Err: err}
	}
}

// Execute queues the task FIFO and returns a channel delivering its
// single result.
func (p *WorkerPool) Execute(ctx context.Context, task Task) <-chan TaskResult {
	done := make(chan TaskResult, 1)
	p.tasks <- queuedTask{ctx: ctx, task: task, done: done}
	return done
}

// Close stops accepting tasks and waits for in-flight ones to finish.
func (p *WorkerPool) Close() {
	p.closeOnce.Do(func() {
		close(p.tasks)
		p.wg.Wait()
	})
}

// SyncExecutor runs every task inline on the caller's goroutine. It
// invokes the exact same task functions as the pool, so the two paths
// produce identical results.
type SyncExecutor struct{}

// NewSyncExecutor creates the synchronous fallback executor.
func NewSyncExecutor() *SyncExecutor { return &SyncExecutor{} }

func (s *SyncExecutor) Execute(ctx context.Context, task Task) <-chan TaskResult {
	done := make(chan TaskResult, 1)
	if err := ctx.Err(); err != nil {
		done <- TaskResult{Err: err}
		return done
	}
	value, err := task.Run(ctx)
	done <- TaskResult{Value: value, Err: err}
	return done
}

func (s *SyncExecutor) Close() {}
