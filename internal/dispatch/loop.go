package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/raysh454/asyncreq/internal/logging"
)

var (
	// ErrLoopClosed is returned by Run once Close has been called.
	ErrLoopClosed = errors.New("execution loop closed")

	// ErrLoopBusy is returned by Run when another goroutine is already draining the loop.
	ErrLoopBusy = errors.New("execution loop already running")
)

// Loop is a single-consumer task queue. Any goroutine may Post; tasks run one
// at a time, in the order they were posted, on whichever goroutine is
// draining the loop (Run, RunPending, or the goroutine started by Start).
type Loop struct {
	logger logging.Logger

	mu     sync.Mutex
	queue  []func()
	closed bool
	wake   chan struct{}
	done   chan struct{}

	draining atomic.Bool
	stopped  chan struct{}
}

// NewLoop returns an idle loop. Nothing runs until Run, RunPending or Start.
func NewLoop(logger logging.Logger) *Loop {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Loop{
		logger: logger.With(logging.Field{Key: "component", Value: "loop"}),
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Post enqueues task. It never blocks and reports false if the loop is closed.
func (l *Loop) Post(task func()) bool {
	if task == nil {
		return false
	}
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, task)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Run drains the loop on the calling goroutine until ctx is done or Close is
// called. After Close, tasks that were already accepted still run before Run
// returns ErrLoopClosed.
func (l *Loop) Run(ctx context.Context) error {
	if !l.draining.CompareAndSwap(false, true) {
		return ErrLoopBusy
	}
	defer l.draining.Store(false)

	for {
		l.drain()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.done:
			l.drain()
			return ErrLoopClosed
		case <-l.wake:
		}
	}
}

// RunPending runs the tasks queued so far on the calling goroutine and
// returns how many ran. It is a no-op while another goroutine drains the loop.
// Hosts that own their own frame loop call it once per tick.
func (l *Loop) RunPending() int {
	if !l.draining.CompareAndSwap(false, true) {
		return 0
	}
	defer l.draining.Store(false)
	return l.drain()
}

// Start drains the loop on a dedicated goroutine until Close.
func (l *Loop) Start() {
	l.mu.Lock()
	if l.stopped != nil {
		l.mu.Unlock()
		return
	}
	stopped := make(chan struct{})
	l.stopped = stopped
	l.mu.Unlock()

	go func() {
		defer close(stopped)
		if err := l.Run(context.Background()); err != nil && !errors.Is(err, ErrLoopClosed) {
			l.logger.Error("execution loop stopped", logging.Field{Key: "error", Value: err})
		}
	}()
}

// Close stops accepting tasks. If the loop was started with Start, Close
// waits for the accepted tasks to finish.
func (l *Loop) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	stopped := l.stopped
	l.mu.Unlock()

	close(l.done)
	if stopped != nil {
		<-stopped
	}
}

// Pending returns the number of queued tasks.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

func (l *Loop) drain() int {
	n := 0
	for {
		l.mu.Lock()
		if len(l.queue) == 0 {
			l.mu.Unlock()
			return n
		}
		task := l.queue[0]
		l.queue[0] = nil
		l.queue = l.queue[1:]
		l.mu.Unlock()

		l.runTask(task)
		n++
	}
}

func (l *Loop) runTask(task func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("task panicked", logging.Field{Key: "panic", Value: fmt.Sprint(r)})
		}
	}()
	task()
}
