// Package seedqueue implements spec.md §4.10: a bounded-concurrency
// worker pool that reseeds accepted events, with per-job exponential
// backoff and a drain-on-close shutdown.
//
// Retry timing goes through benbjohnson/clock rather than time directly
// so tests can advance a fake clock instead of sleeping through real
// backoff delays — clock is already pulled into the dependency set via
// dep2p/go-dep2p (see DESIGN.md).
package seedqueue

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/Hubmakerlabs/relaybridge/pkg/log"
	"github.com/Hubmakerlabs/relaybridge/pkg/nostr"
)

var lg = log.GetLogger()

// MaxAttempts bounds retries per job (spec.md §4.10: "up to 3 attempts").
const MaxAttempts = 3

// BaseBackoffSeconds and BackoffFactor define the exponential backoff schedule
// (spec.md §4.10: "base 5s, factor 2").
const (
	BaseBackoffSeconds = 5
	BackoffFactor      = 2
)

// Job is the unit of work a SeedingQueue runs: reseed a single event.
type Job struct {
	Event *nostr.Event
}

// Handler performs the actual reseed for a job, returning an error to
// trigger a retry.
type Handler func(ctx context.Context, ev *nostr.Event) error

// T is a bounded-concurrency, at-most-N-worker reseed queue.
type T struct {
	clock    clock.Clock
	handler  Handler
	jobs     chan Job
	inFlight sync.WaitGroup
	seen     sync.Map // event id -> struct{}, per-job dedup
	closed   chan struct{}
	closeOnce sync.Once
}

// New starts a SeedingQueue with n workers (runtime.NumCPU() if n <= 0)
// running handler for each submitted job (spec.md §4.10).
func New(n int, handler Handler) *T {
	if n <= 0 {
		n = runtime.NumCPU()
	}
	t := &T{
		clock:   clock.New(),
		handler: handler,
		jobs:    make(chan Job, n*4),
		closed:  make(chan struct{}),
	}
	for i := 0; i < n; i++ {
		go t.worker()
	}
	return t
}

// Submit enqueues ev for reseeding. A duplicate submission of an event
// already completed or in flight is a no-op (spec.md §4.10's "the
// magnet cache absorbs duplicates" idempotence guarantee). Submit after
// Close is refused.
func (t *T) Submit(ev *nostr.Event) bool {
	if _, loaded := t.seen.LoadOrStore(ev.ID, struct{}{}); loaded {
		return false
	}
	select {
	case <-t.closed:
		return false
	default:
	}
	select {
	case t.jobs <- Job{Event: ev}:
		return true
	case <-t.closed:
		return false
	}
}

func (t *T) worker() {
	for {
		select {
		case job, ok := <-t.jobs:
			if !ok {
				return
			}
			t.inFlight.Add(1)
			t.run(job)
			t.inFlight.Done()
		case <-t.closed:
			return
		}
	}
}

func (t *T) run(job Job) {
	backoff := BaseBackoffSeconds
	for attempt := 1; attempt <= MaxAttempts; attempt++ {
		if err := t.handler(context.Background(), job.Event); err == nil {
			return
		} else if attempt == MaxAttempts {
			lg.W.F("seedqueue: dropping %s after %d attempts: %v", job.Event.ID, attempt, err)
			return
		} else {
			lg.D.F("seedqueue: attempt %d for %s failed: %v, retrying in %ds", attempt, job.Event.ID, err, backoff)
			t.clock.Sleep(time.Duration(backoff) * time.Second)
			backoff *= BackoffFactor
		}
	}
}

// Close drains in-flight work and refuses new submissions (spec.md
// §4.10).
func (t *T) Close() {
	t.closeOnce.Do(func() {
		close(t.closed)
	})
	t.inFlight.Wait()
}
