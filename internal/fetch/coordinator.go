// Package fetch owns the data-request lifecycle for one widget instance: at
// most one in-flight request, cancellation on supersession, search query
// construction, and routing to the configured data source.
package fetch

import (
	"context"
	"errors"
	"sync"

	"calwidget/internal/event"
	"calwidget/internal/log"
	"calwidget/internal/model"
)

// Coordinator enforces the single-flight contract. It does not serialize
// overlapping calls, it cancels: a new fetch aborts the pending request of
// an abortable source, while a callback-backed source falls back to a busy
// reject plus last-applied-wins on results. Callers are still expected not
// to double-invoke; the generation check is a safety net, not real
// concurrency control.
type Coordinator struct {
	source     Source
	augment    func(Query) map[string]string
	emitter    *event.Emitter
	instanceID string

	mu     sync.Mutex
	busy   bool
	cancel context.CancelFunc
	gen    uint64
}

// New builds a coordinator for one instance. augment may be nil; when set it
// can add request parameters but never overwrite the protected keys.
func New(instanceID string, source Source, emitter *event.Emitter, augment func(Query) map[string]string) *Coordinator {
	return &Coordinator{
		source:     source,
		augment:    augment,
		emitter:    emitter,
		instanceID: instanceID,
	}
}

// Busy reports whether a fetch is currently in flight.
func (c *Coordinator) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busy
}

// Cancel aborts any pending request. Used on teardown.
func (c *Coordinator) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	// The aborted request's cleanup sees a newer generation and leaves the
	// flags alone, so they are reset here.
	c.busy = false
	c.gen++
}

// Run performs one fetch and hands the result to apply. It returns true
// when apply ran, false when the call was skipped, superseded or failed.
//
// Error contract: cancellation-induced failures are swallowed entirely; all
// other failures are logged and the previously applied rows stay in place;
// nothing escapes the coordinator boundary. The after-load event fires on
// every dispatched (or empty-search) path, and the busy flag is always
// cleared.
func (c *Coordinator) Run(ctx context.Context, q Query, emptySearch bool, apply func(model.Result)) bool {
	if c.augment != nil {
		q.applyExtra(c.augment(q))
	}

	// Empty search term: no request at all, but the normal after-load path
	// still runs so the view clears.
	if emptySearch {
		c.emitter.Emit(event.BeforeLoad, event.Payload{InstanceID: c.instanceID, View: q.View})
		apply(model.Result{})
		c.emitter.Emit(event.AfterLoad, event.Payload{InstanceID: c.instanceID, View: q.View})
		return true
	}

	c.mu.Lock()
	if c.busy {
		if c.cancel != nil {
			// Abortable source: supersede the pending request.
			c.cancel()
			c.cancel = nil
		} else {
			// Callback source: cannot abort, reject the overlap.
			c.mu.Unlock()
			log.Debug("fetch: skipped, request already in flight", "instance", c.instanceID)
			return false
		}
	}
	c.gen++
	myGen := c.gen
	runCtx := ctx
	var cancel context.CancelFunc
	if Abortable(c.source) {
		runCtx, cancel = context.WithCancel(ctx)
		c.cancel = cancel
	}
	c.busy = true
	c.mu.Unlock()

	c.emitter.Emit(event.BeforeLoad, event.Payload{InstanceID: c.instanceID, View: q.View})

	defer func() {
		c.mu.Lock()
		if c.gen == myGen {
			c.busy = false
			c.cancel = nil
		}
		c.mu.Unlock()
		if cancel != nil {
			cancel()
		}
		c.emitter.Emit(event.AfterLoad, event.Payload{InstanceID: c.instanceID, View: q.View})
	}()

	res, err := c.source.Fetch(runCtx, q)
	if err != nil {
		if errors.Is(err, context.Canceled) || runCtx.Err() != nil {
			// Superseded request; not an error.
			log.Debug("fetch: aborted", "instance", c.instanceID)
			return false
		}
		log.Error("fetch failed, keeping previous appointments", err, "instance", c.instanceID, "view", q.View)
		return false
	}

	c.mu.Lock()
	superseded := c.gen != myGen
	c.mu.Unlock()
	if superseded {
		// A later request won the race; never apply stale rows.
		log.Debug("fetch: result superseded, discarding", "instance", c.instanceID)
		return false
	}

	apply(res)
	return true
}
