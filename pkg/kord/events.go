package kord

import (
	"fmt"
	"sync"

	"github.com/kooklab/kord/pkg/logger"
)

// Handler is a typed-event subscriber. For parallel dispatch the return
// value is ignored; for serial/bail dispatch the first non-nil result
// stops the chain and becomes the dispatch result.
type Handler func(bot *Bot, s *Session) (interface{}, error)

type hookEntry struct {
	ctx *Context
	fn  Handler
}

// eventRegistry is the subscription table: event name to ordered
// scope-gated listeners.
type eventRegistry struct {
	mu    sync.RWMutex
	hooks map[string][]*hookEntry
}

func newEventRegistry() *eventRegistry {
	return &eventRegistry{hooks: make(map[string][]*hookEntry)}
}

// on adds a listener and returns an idempotent disposer.
func (r *eventRegistry) on(c *Context, event string, fn Handler, prepend bool) func() {
	entry := &hookEntry{ctx: c, fn: fn}

	r.mu.Lock()
	if prepend {
		r.hooks[event] = append([]*hookEntry{entry}, r.hooks[event]...)
	} else {
		r.hooks[event] = append(r.hooks[event], entry)
	}
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { r.remove(event, entry) })
	}
}

func (r *eventRegistry) remove(event string, entry *hookEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entries := r.hooks[event]
	for i, e := range entries {
		if e == entry {
			r.hooks[event] = append(entries[:i], entries[i+1:]...)
			return
		}
	}
}

// matching snapshots the listeners whose composed scope filter accepts
// the session, in registration order.
func (r *eventRegistry) matching(event string, s *Session) []*hookEntry {
	r.mu.RLock()
	entries := r.hooks[event]
	out := make([]*hookEntry, 0, len(entries))
	for _, e := range entries {
		if e.ctx.Match(s) {
			out = append(out, e)
		}
	}
	r.mu.RUnlock()
	return out
}

// safeCall invokes one handler with panic containment. Handler failures
// are isolated to this dispatch.
func safeCall(event string, e *hookEntry, bot *Bot, s *Session) (result interface{}, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("handler panic: %v", rec)
		}
	}()
	return e.fn(bot, s)
}

// parallel invokes every matching subscriber independently. The emitter
// is never blocked and each failure is caught and logged.
func (r *eventRegistry) parallel(event string, bot *Bot, s *Session) {
	for _, e := range r.matching(event, s) {
		entry := e
		go func() {
			if _, err := safeCall(event, entry, bot, s); err != nil {
				logger.ErrorCF("events", "Handler failed",
					map[string]interface{}{"event": event, "error": err.Error()})
			}
		}()
	}
}

// serial invokes matching subscribers in registration order, awaiting
// each, and returns the first defined result without running the rest.
// A failing handler is logged and skipped; it never aborts the chain.
func (r *eventRegistry) serial(event string, bot *Bot, s *Session) interface{} {
	for _, e := range r.matching(event, s) {
		result, err := safeCall(event, e, bot, s)
		if err != nil {
			logger.ErrorCF("events", "Handler failed",
				map[string]interface{}{"event": event, "error": err.Error()})
			continue
		}
		if result != nil {
			return result
		}
	}
	return nil
}
