package debug

import (
	"context"
	"errors"
	"fmt"
	rtdebug "runtime/debug"
	"sync"

	"github.com/sirupsen/logrus"
)

// Loop errors.
var (
	ErrLoopNotRunning = errors.New("debug loop not running")
	ErrLoopRunning    = errors.New("debug loop already running")
	ErrLoopQueueFull  = errors.New("debug loop queue full")
	ErrLoopPanic      = errors.New("debug loop work panicked")
)

// DefaultLoopQueueSize is the default number of pending mutations.
const DefaultLoopQueueSize = 256

// Loop serializes mutations of a Coordinator onto one goroutine. UI actions
// and adapter events both go through it, so the coordinator never sees two
// updates at once.
type Loop struct {
	coord *Coordinator
	log   logrus.FieldLogger

	mu      sync.Mutex
	queue   chan func(*Coordinator)
	running bool
	wg      sync.WaitGroup

	queueSize int
}

// LoopOption configures a Loop.
type LoopOption func(*Loop)

// WithLoopQueueSize sets the pending mutation queue size.
func WithLoopQueueSize(size int) LoopOption {
	return func(l *Loop) {
		if size > 0 {
			l.queueSize = size
		}
	}
}

// WithLoopLogger sets the logger used for recovered panics.
func WithLoopLogger(log logrus.FieldLogger) LoopOption {
	return func(l *Loop) {
		if log != nil {
			l.log = log
		}
	}
}

// NewLoop creates a loop for coord. Call Start before submitting work.
func NewLoop(coord *Coordinator, opts ...LoopOption) *Loop {
	l := &Loop{
		coord:     coord,
		log:       coord.log,
		queueSize: DefaultLoopQueueSize,
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

	if l.running {
		return ErrLoopRunning
	}
	l.queue = make(chan func(*Coordinator), l.queueSize)
	l.running = true

	l.wg.Add(1)
	go l.run(l.queue)
	return nil
}

// Close stops accepting work and waits until queued mutations are applied.
func (l *Loop) Close() error {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return ErrLoopNotRunning
	}
	l.running = false
	close(l.queue)
	l.mu.Unlock()

	l.wg.Wait()
	return nil
}

func (l *Loop) run(queue <-chan func(*Coordinator)) {
	defer l.wg.Done()
	for fn := range queue {
		l.apply(fn)
	}
}

func (l *Loop) apply(fn func(*Coordinator)) {
	defer func() {
		if r := recover(); r != nil {
			l.logPanic(r)
		}
	}()
	fn(l.coord)
}

func (l *Loop) logPanic(r interface{}) {
	l.log.WithField("panic", r).WithField("stack", string(rtdebug.Stack())).
		Error("recovered panic in debug loop")
}

// Submit queues fn without waiting for it to run.
func (l *Loop) Submit(fn func(*Coordinator)) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.running {
		return ErrLoopNotRunning
	}
	select {
	case l.queue <- fn:
		return nil
	default:
		return ErrLoopQueueFull
	}
}

// Do runs fn on the loop and waits for it to finish. A panic in fn is
// recovered and returned as ErrLoopPanic.
func (l *Loop) Do(ctx context.Context, fn func(*Coordinator)) error {
	done := make(chan struct{})
	var recovered interface{}
	wrapped := func(c *Coordinator) {
		defer close(done)
		defer func() {
			if r := recover(); r != nil {
				recovered = r
				l.logPanic(r)
			}
		}()
		fn(c)
	}

	if err := l.enqueue(ctx, wrapped); err != nil {
		return err
	}

	select {
	case <-done:
		if recovered != nil {
			return fmt.Errorf("%w: %v", ErrLoopPanic, recovered)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for debug loop: %w", ctx.Err())
	}
}

// enqueue blocks until fn is queued or ctx is done.
func (l *Loop) enqueue(ctx context.Context, fn func(*Coordinator)) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.running {
		return ErrLoopNotRunning
	}
	select {
	case l.queue <- fn:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("queueing debug loop work: %w", ctx.Err())
	}
}
