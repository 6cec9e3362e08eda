package dispatch

import (
	"context"
	"runtime/debug"
	"sync"
	"time"

	"go.uber.org/atomic"
)

// Loop runs posted tasks one at a time on a single goroutine.
//
// Every piece of detection state is owned by the loop goroutine: key events,
// timer callbacks and configuration swaps are all tasks, so none of them
// needs its own locking.
type Loop struct {
	queueSize int

	mu      sync.RWMutex // protects queue creation/close
	queue   chan func()
	running atomic.Bool
	done    chan struct{}

	panicHandler PanicHandler

	// Stats
	posted      atomic.Uint64
	processed   atomic.Uint64
	panicked    atomic.Uint64
	dropped     atomic.Uint64
	totalTimeNs atomic.Int64
}

// LoopOption configures a Loop.
type LoopOption func(*Loop)

// WithQueueSize sets the task queue size.
func WithQueueSize(size int) LoopOption {
	return func(l *Loop) {
		if size > 0 {
			l.queueSize = size
		}
	}
}

// WithLoopPanicHandler sets the handler invoked when a task panics.
func WithLoopPanicHandler(h PanicHandler) LoopOption {
	return func(l *Loop) {
		l.panicHandler = h
	}
}

// NewLoop creates a stopped loop.
func NewLoop(opts ...LoopOption) *Loop {
	l := &Loop{
		queueSize:    1024,
		panicHandler: defaultPanicHandler,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Start launches the loop goroutine.
func (l *Loop) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.running.Load() {
		return ErrAlreadyRunning
	}

	l.queue = make(chan func(), l.queueSize)
	l.done = make(chan struct{})
	l.running.Store(true)

	go l.run(l.queue, l.done)

	return nil
}

// Stop closes the queue and waits for already queued tasks to finish or for
// ctx to be done, whichever comes first.
func (l *Loop) Stop(ctx context.Context) error {
	l.mu.Lock()
	if !l.running.Load() {
		l.mu.Unlock()
		return ErrNotRunning
	}

	l.running.Store(false)
	close(l.queue)
	done := l.done
	l.mu.Unlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Post queues task without waiting for it to run.
// Returns ErrQueueFull if the queue is at capacity.
func (l *Loop) Post(task func()) error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if !l.running.Load() {
		return ErrNotRunning
	}

	select {
	case l.queue <- task:
		l.posted.Add(1)
		return nil
	default:
		l.dropped.Add(1)
		return ErrQueueFull
	}
}

// Send queues task, waiting for queue space instead of failing, but does not
// wait for the task to run.
//
// Send must not be used from inside a loop task; with a full queue it would
// wait on itself.
func (l *Loop) Send(task func()) error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if !l.running.Load() {
		return ErrNotRunning
	}
	l.queue <- task
	l.posted.Add(1)
	return nil
}

// Call queues task and blocks until it has run. Unlike Post it waits for
// queue space instead of failing.
//
// Call must not be used from inside a loop task; the task would wait on
// itself.
func (l *Loop) Call(task func()) error {
	finished := make(chan struct{})
	err := l.Send(func() {
		defer close(finished)
		task()
	})
	if err != nil {
		return err
	}
	<-finished
	return nil
}

func (l *Loop) run(queue <-chan func(), done chan<- struct{}) {
	defer close(done)

	for task := range queue {
		l.execute(task)
	}
}

func (l *Loop) execute(task func()) {
	l.processed.Add(1)
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			l.panicked.Add(1)
			if l.panicHandler != nil {
				stack := debug.Stack()
				func() {
					defer func() { _ = recover() }()
					l.panicHandler(nil, r, stack)
				}()
			}
		}
		l.totalTimeNs.Add(time.Since(start).Nanoseconds())
	}()

	task()
}

// QueueDepth returns the current number of tasks in the queue.
func (l *Loop) QueueDepth() int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if !l.running.Load() {
		return 0
	}
	return len(l.queue)
}

// IsRunning returns true if the loop accepts tasks.
func (l *Loop) IsRunning() bool {
	return l.running.Load()
}

// Stats returns loop statistics.
func (l *Loop) Stats() LoopStats {
	processed := l.processed.Load()
	totalNs := l.totalTimeNs.Load()

	var avgNs int64
	if processed > 0 {
		avgNs = totalNs / int64(processed)
	}

	return LoopStats{
		Posted:        l.posted.Load(),
		Processed:     processed,
		Panicked:      l.panicked.Load(),
		Dropped:       l.dropped.Load(),
		QueueDepth:    l.QueueDepth(),
		TotalDuration: time.Duration(totalNs),
		AvgDuration:   time.Duration(avgNs),
	}
}

// LoopStats contains statistics for a loop.
type LoopStats struct {
	// Posted is the total number of tasks accepted by Post, Send or Call.
	Posted uint64

	// Processed is the number of tasks that have run.
	Processed uint64

	// Panicked is the number of tasks that panicked.
	Panicked uint64

	// Dropped is the number of tasks rejected because the queue was full.
	Dropped uint64

	// QueueDepth is the current number of tasks waiting in the queue.
	QueueDepth int

	// TotalDuration is the cumulative time spent running tasks.
	TotalDuration time.Duration

	// AvgDuration is the average task run time.
	AvgDuration time.Duration
}
