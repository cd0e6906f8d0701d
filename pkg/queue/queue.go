package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"portfolio-gateway/pkg/delay"
	"portfolio-gateway/pkg/logging"
)

// ErrClosed is delivered to tasks that were still pending when the queue closed
// and to every task enqueued afterwards.
var ErrClosed = errors.New("request queue closed")

// Observer receives queue events. Implementations must be cheap and non-blocking.
type Observer interface {
	Enqueued(queue string, depth int)
	Dispatched(queue string, waited time.Duration, depth int)
}

type noopObserver struct{}

func (noopObserver) Enqueued(string, int)                  {}
func (noopObserver) Dispatched(string, time.Duration, int) {}

type Options struct {
	Name       string           // Upstream name, used in logs and metrics
	MinSpacing time.Duration    // Minimum gap between two dispatch times
	Now        func() time.Time // Clock, defaults to time.Now
	Observer   Observer         // Optional
	Logger     *slog.Logger     // Optional, defaults to the logging package logger
}

// Queue serializes calls to one upstream. A single worker goroutine pops tasks
// in FIFO order, waits until lastDispatch+MinSpacing, then runs the task to
// completion before looking at the next one.
type Queue struct {
	name       string
	minSpacing time.Duration
	now        func() time.Time
	observer   Observer
	logCtx     context.Context

	mu           sync.Mutex
	pending      []*task
	processing   bool
	closed       bool
	lastDispatch time.Time

	wake   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

type task struct {
	id         string
	enqueuedAt time.Time
	run        func()
	fail       func(error)
}

func New(opts Options) *Queue {
	if opts.Name == "" {
		opts.Name = "default"
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Observer == nil {
		opts.Observer = noopObserver{}
	}

	logCtx := logging.WithLogger(context.Background(), opts.Logger)
	logCtx = logging.WithAttrs(logCtx,
		slog.String("component", "queue"),
		slog.String("queue", opts.Name),
	)

	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		name:       opts.Name,
		minSpacing: opts.MinSpacing,
		now:        opts.Now,
		observer:   opts.Observer,
		logCtx:     logCtx,
		wake:       make(chan struct{}, 1),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}

	go q.drain()
	return q
}

// Name returns the upstream name the queue was built for.
func (q *Queue) Name() string { return q.name }

// MinSpacing returns the configured gap between dispatches.
func (q *Queue) MinSpacing() time.Duration { return q.minSpacing }

// Len returns the number of tasks waiting for dispatch.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Processing reports whether the worker is currently draining.
func (q *Queue) Processing() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.processing
}

// LastDispatch returns the dispatch time of the most recent task.
func (q *Queue) LastDispatch() time.Time {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.lastDispatch
}

// Close stops the worker once the task in flight returns. Pending tasks fail
// with ErrClosed. Close is safe to call multiple times.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		<-q.done
		return
	}
	q.closed = true
	q.mu.Unlock()

	q.cancel()
	<-q.done
}

func (q *Queue) push(t *task) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	q.pending = append(q.pending, t)
	depth := len(q.pending)
	q.mu.Unlock()

	q.observer.Enqueued(q.name, depth)

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return nil
}

func (q *Queue) drain() {
	defer close(q.done)

	for {
		select {
		case <-q.ctx.Done():
			q.failPending()
			return
		case <-q.wake:
		}

		if !q.drainPending() {
			q.failPending()
			return
		}
	}
}

// drainPending runs tasks until the pending list is empty. It returns false
// when the queue was closed while waiting.
func (q *Queue) drainPending() bool {
	for {
		q.mu.Lock()
		if len(q.pending) == 0 {
			q.processing = false
			q.mu.Unlock()
			return true
		}
		q.processing = true
		wait := q.lastDispatch.Add(q.minSpacing).Sub(q.now())
		q.mu.Unlock()

		if err := delay.Sleep(q.ctx, wait); err != nil {
			return false
		}

		q.mu.Lock()
		t := q.pending[0]
		q.pending[0] = nil
		q.pending = q.pending[1:]
		q.lastDispatch = q.now()
		depth := len(q.pending)
		waited := q.lastDispatch.Sub(t.enqueuedAt)
		q.mu.Unlock()

		q.observer.Dispatched(q.name, waited, depth)
		logging.Debug(q.logCtx, "dispatching task",
			slog.String("task_id", t.id),
			slog.Duration("waited", waited),
			slog.Int("pending", depth),
		)

		t.run()
	}
}

func (q *Queue) failPending() {
	q.mu.Lock()
	pending := q.pending
	q.pending = nil
	q.processing = false
	q.mu.Unlock()

	for _, t := range pending {
		t.fail(ErrClosed)
	}
}

// Future holds the eventual outcome of an enqueued task.
type Future[T any] struct {
	done  chan struct{}
	once  sync.Once
	value T
	err   error
}

func (f *Future[T]) settle(value T, err error) {
	f.once.Do(func() {
		f.value, f.err = value, err
		close(f.done)
	})
}

// Done is closed once the task has produced its outcome.
func (f *Future[T]) Done() <-chan struct{} { return f.done }

// Wait blocks until the task finished or ctx ends. Giving up on the wait does
// not cancel the task.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Enqueue appends fn to q and returns immediately. The task's result or error
// is delivered only to the returned future; a panic inside fn becomes an error.
func Enqueue[T any](q *Queue, fn func() (T, error)) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}

	t := &task{
		id:         uuid.NewString(),
		enqueuedAt: q.now(),
		fail: func(err error) {
			var zero T
			f.settle(zero, err)
		},
	}
	t.run = func() {
		defer func() {
			if r := recover(); r != nil {
				var zero T
				f.settle(zero, fmt.Errorf("queue %s: task %s panicked: %v", q.name, t.id, r))
			}
		}()
		value, err := fn()
		f.settle(value, err)
	}

	if err := q.push(t); err != nil {
		t.fail(err)
	}
	return f
}

// Do enqueues fn and waits for its outcome.
func Do[T any](ctx context.Context, q *Queue, fn func() (T, error)) (T, error) {
	return Enqueue(q, fn).Wait(ctx)
}
