// Package taskqueue provides a FIFO executor that runs submitted work one
// item at a time on a dedicated goroutine.
//
// A work item that blocks (for example on a remote call) keeps the queue
// busy until it returns; later items wait behind it. A failing or panicking
// item only affects its own caller.
package taskqueue

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/panics"
)

var ErrClosed = errors.New("taskqueue: closed")

// Func is a unit of work. The context is the submitter's context.
type Func func(ctx context.Context) error

type item struct {
	ctx   context.Context
	fn    Func
	reply chan error
}

type Queue struct {
	items chan item
	quit  chan struct{}
	done  chan struct{}
	once  sync.Once
}

// New starts a queue whose submission buffer holds size items.
func New(size int) *Queue {
	if size < 0 {
		size = 0
	}
	q := &Queue{
		items: make(chan item, size),
		quit:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	go q.run()
	return q
}

func (q *Queue) run() {
	defer close(q.done)
	for {
		select {
		case <-q.quit:
			q.drain()
			return
		case it := <-q.items:
			it.reply <- q.exec(it)
		}
	}
}

func (q *Queue) exec(it item) (err error) {
	// The submitter gave up before the item was dequeued.
	if cerr := it.ctx.Err(); cerr != nil {
		return cerr
	}
	var pc panics.Catcher
	pc.Try(func() { err = it.fn(it.ctx) })
	if r := pc.Recovered(); r != nil {
		perr := r.AsError()
		log.Error().Err(perr).Str("module", "app.taskqueue").Msg("work item panicked")
		return perr
	}
	return err
}

func (q *Queue) drain() {
	for {
		select {
		case it := <-q.items:
			it.reply <- ErrClosed
		default:
			return
		}
	}
}

// Push enqueues fn and waits until it has run. If ctx ends first Push
// returns ctx.Err(); an item that already started still runs to completion.
func (q *Queue) Push(ctx context.Context, fn Func) error {
	it := item{ctx: ctx, fn: fn, reply: make(chan error, 1)}
	select {
	case <-q.quit:
		return ErrClosed
	default:
	}
	select {
	case q.items <- it:
	case <-q.quit:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-it.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-q.done:
		// run may have replied right before exiting.
		select {
		case err := <-it.reply:
			return err
		default:
			return ErrClosed
		}
	}
}

// Do is Push for work that produces a value.
func Do[T any](ctx context.Context, q *Queue, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := q.Push(ctx, func(ctx context.Context) error {
		v, err := fn(ctx)
		out = v
		return err
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

// Close stops the queue. Items still buffered fail with ErrClosed. Close
// waits for the running item and must not be called from inside one.
func (q *Queue) Close() {
	q.once.Do(func() { close(q.quit) })
	<-q.done
}

// Closed reports whether Close has been called.
func (q *Queue) Closed() bool {
	select {
	case <-q.quit:
		return true
	default:
		return false
	}
}
