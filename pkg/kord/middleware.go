package kord

import (
	"fmt"
	"sync"

	"github.com/kooklab/kord/pkg/logger"
)

// MaxMiddlewareDepth bounds the dynamically growable middleware chain of
// a single dispatch. Exceeding it aborts that dispatch only.
const MaxMiddlewareDepth = 64

// Next resumes the chain with the next queued middleware. Passing an
// extra middleware appends it to the end of this dispatch's queue. Each
// handler's continuation is single-use; a second call is an error.
type Next func(extra ...Middleware) (string, error)

// Middleware handles a message-class event. Returning a non-empty string
// without calling next sends it as a reply and stops the chain; calling
// next delegates to the rest of the queue.
type Middleware func(bot *Bot, s *Session, next Next) (string, error)

type mwEntry struct {
	ctx *Context
	fn  Middleware
}

// Processor runs the onion-model middleware pipeline for message-class
// events. Hooks stay ordered; matching is re-evaluated per session.
type Processor struct {
	app *App

	mu    sync.RWMutex
	hooks []*mwEntry
}

func newProcessor(root *Context) *Processor {
	p := &Processor{app: root.app}
	root.On(EventMessage, func(bot *Bot, s *Session) (interface{}, error) {
		p.handleMessage(bot, s)
		return nil, nil
	})
	return p
}

// register adds a middleware and returns an idempotent disposer.
func (p *Processor) register(c *Context, fn Middleware, prepend bool) func() {
	entry := &mwEntry{ctx: c, fn: fn}

	p.mu.Lock()
	if prepend {
		p.hooks = append([]*mwEntry{entry}, p.hooks...)
	} else {
		p.hooks = append(p.hooks, entry)
	}
	p.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			defer p.mu.Unlock()
			for i, e := range p.hooks {
				if e == entry {
					p.hooks = append(p.hooks[:i], p.hooks[i+1:]...)
					return
				}
			}
		})
	}
}

// handleMessage runs the chain for one session. Every exit path,
// including handler failure, emits the middleware completion event.
func (p *Processor) handleMessage(bot *Bot, s *Session) {
	p.mu.RLock()
	queue := make([]Middleware, 0, len(p.hooks))
	for _, e := range p.hooks {
		if e.ctx.Match(s) {
			queue = append(queue, e.fn)
		}
	}
	p.mu.RUnlock()

	defer p.app.root.Parallel(EventMiddleware, bot, s)

	result, err := runChain(queue, bot, s)
	if err != nil {
		logger.WarnCF("middleware", "Chain aborted",
			map[string]interface{}{"error": err.Error(), "channel_id": s.ChannelID})
		return
	}
	if result != "" && bot != nil {
		if _, err := bot.SendMessage(s.ChannelID, result, WithQuote(s.Data.MsgID)); err != nil {
			logger.ErrorCF("middleware", "Failed to send reply",
				map[string]interface{}{"error": err.Error(), "channel_id": s.ChannelID})
		}
	}
}

// runChain executes the queue with an index cursor. Every invocation of
// a middleware gets a fresh single-use continuation; the queue may grow
// via next(extra) up to MaxMiddlewareDepth.
func runChain(queue []Middleware, bot *Bot, s *Session) (string, error) {
	index := 0

	var invoke func() (string, error)
	invoke = func() (string, error) {
		if index >= len(queue) {
			return "", nil
		}
		fn := queue[index]
		index++

		used := false
		next := Next(func(extra ...Middleware) (string, error) {
			if used {
				return "", fmt.Errorf("next called twice by middleware %d", index-1)
			}
			used = true
			if len(extra) > 0 {
				queue = append(queue, extra...)
				if len(queue) > MaxMiddlewareDepth {
					return "", fmt.Errorf("middleware stack exceeded %d", MaxMiddlewareDepth)
				}
			}
			return invoke()
		})

		return callMiddleware(fn, bot, s, next)
	}

	return invoke()
}

// callMiddleware isolates a panicking middleware: it is logged and
// treated as a no-op so independent dispatches are unaffected.
func callMiddleware(fn Middleware, bot *Bot, s *Session, next Next) (result string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.ErrorCF("middleware", "Handler panic",
				map[string]interface{}{"panic": fmt.Sprint(rec)})
			result, err = "", nil
		}
	}()
	return fn(bot, s, next)
}
