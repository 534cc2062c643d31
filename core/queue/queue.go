// Package queue runs background tasks off the webhook request path.
// Delivery is at-least-once and asynchronous; no ordering is guaranteed
// across distinct tasks for the same user. A failed task invocation is
// terminal: it is logged and never retried by the queue itself.
package queue

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/romnatson3/pharmacy/core/logger"
)

var (
	// ErrQueueClosed is returned when enqueue is attempted after Close.
	ErrQueueClosed = errors.New("queue: closed")
	// ErrQueueFull indicates the queue is saturated and the job was not accepted.
	ErrQueueFull = errors.New("queue: full")
)

// Enqueuer is the capability handed to the search funnel. Substituting a
// synchronous implementation makes funnel decisions deterministic in tests.
type Enqueuer interface {
	Enqueue(ctx context.Context, name string, run func(ctx context.Context) error) error
}

// Options controls the behaviour of the queue.
type Options struct {
	Size    int
	Workers int
	// MaxDuration bounds the execution time of a single job.
	MaxDuration time.Duration
}

type job struct {
	ctx  context.Context
	name string
	run  func(ctx context.Context) error
}

// Queue executes named jobs asynchronously on a fixed worker pool.
type Queue struct {
	opts Options
	jobs chan job
	stop chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

// New starts a queue with sane defaults if options are zeroed.
func New(opts Options) *Queue {
	if opts.Size <= 0 {
		opts.Size = 256
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.MaxDuration <= 0 {
		opts.MaxDuration = 30 * time.Second
	}

	q := &Queue{
		opts: opts,
		jobs: make(chan job, opts.Size),
		stop: make(chan struct{}),
	}

	q.wg.Add(opts.Workers)
	for i := 0; i < opts.Workers; i++ {
		go q.worker()
	}

	return q
}

// Enqueue schedules the provided function for asynchronous execution.
func (q *Queue) Enqueue(ctx context.Context, name string, run func(ctx context.Context) error) error {
	if run == nil {
		return errors.New("queue: nil run function")
	}
	select {
	case <-q.stop:
		return ErrQueueClosed
	default:
	}

	select {
	case q.jobs <- job{ctx: ctx, name: name, run: run}:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops workers and waits for them to finish processing queued jobs.
func (q *Queue) Close() {
	q.once.Do(func() {
		close(q.stop)
		close(q.jobs)
		q.wg.Wait()
	})
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for j := range q.jobs {
		q.handle(j)
	}
}

func (q *Queue) handle(j job) {
	ctx := j.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = logger.WithTask(ctx, j.name)

	runCtx, cancel := context.WithTimeout(ctx, q.opts.MaxDuration)
	defer cancel()

	start := time.Now()
	err := j.run(runCtx)
	took := time.Since(start)

	if err != nil {
		logger.Error(ctx, "queue", "task.fail",
			slog.String("err", err.Error()),
			slog.Duration("duration", logger.RoundMS(took)),
		)
		return
	}
	logger.Info(ctx, "queue", "task.success",
		slog.Duration("duration", logger.RoundMS(took)),
	)
}
