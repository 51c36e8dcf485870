package kord

import (
	"fmt"
	"sync"
	"time"

	"github.com/kooklab/kord/pkg/config"
	"github.com/kooklab/kord/pkg/logger"
)

// App owns the shared runtime state: the scope tree root, the
// subscription registry, the middleware processor, the command router,
// the plugin routes and the live bots.
type App struct {
	cfg *config.Config

	root      *Context
	events    *eventRegistry
	processor *Processor
	commander *Commander
	routers   *Routers
	webhook   *webhookServer

	botMu sync.RWMutex
	bots  []*Bot

	closeOnce sync.Once
}

// New builds the runtime from cfg. A non-empty webhook path starts the
// webhook receiver; otherwise bots connect through the gateway.
func New(cfg *config.Config) (*App, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	logger.SetLevel(logger.ParseLevel(cfg.LogLevel))

	app := &App{cfg: cfg}
	rootScope := newScope(nil, nil)
	app.root = &Context{app: app, scope: rootScope}
	rootScope.ctx = app.root

	app.events = newEventRegistry()
	app.routers = newRouters(app.root)
	app.processor = newProcessor(app.root)
	app.commander = newCommander(app.root, cfg.Command)

	if cfg.Webhook.Path != "" {
		app.webhook = newWebhookServer(app, cfg.Webhook)
		if err := app.webhook.start(); err != nil {
			return nil, fmt.Errorf("start webhook server: %w", err)
		}
	}
	return app, nil
}

// Context returns the root context.
func (a *App) Context() *Context {
	return a.root
}

// Config returns the runtime configuration.
func (a *App) Config() *config.Config {
	return a.cfg
}

// Bots returns a snapshot of the live bots.
func (a *App) Bots() []*Bot {
	a.botMu.RLock()
	defer a.botMu.RUnlock()
	out := make([]*Bot, len(a.bots))
	copy(out, a.bots)
	return out
}

// BotByVerifyToken finds the live bot owning the given routing key.
func (a *App) BotByVerifyToken(token string) *Bot {
	a.botMu.RLock()
	defer a.botMu.RUnlock()
	for _, b := range a.bots {
		if b.VerifyToken == token {
			return b
		}
	}
	return nil
}

// addBot registers a bot. A verify token identifies at most one live bot.
func (a *App) addBot(b *Bot) error {
	a.botMu.Lock()
	defer a.botMu.Unlock()
	for _, existing := range a.bots {
		if existing.VerifyToken == b.VerifyToken && b.VerifyToken != "" {
			return fmt.Errorf("bot with verify token %q already registered", b.VerifyToken)
		}
	}
	a.bots = append(a.bots, b)
	return nil
}

func (a *App) removeBot(b *Bot) {
	a.botMu.Lock()
	defer a.botMu.Unlock()
	for i, existing := range a.bots {
		if existing == b {
			a.bots = append(a.bots[:i], a.bots[i+1:]...)
			return
		}
	}
}

// Close disposes every scope (deregistering all handlers) and stops the
// webhook server.
func (a *App) Close() {
	a.closeOnce.Do(func() {
		a.root.scope.Dispose()
		for _, b := range a.Bots() {
			b.Dispose()
		}
		if a.webhook != nil {
			a.webhook.stop()
		}
	})
}

// Scope is a node of the subscription tree, mirroring plugin nesting. It
// owns the disposers of every handler registered through its context;
// disposal synchronously deregisters all of them.
type Scope struct {
	parent *Scope
	ctx    *Context
	apply  func(*Context)

	mu          sync.Mutex
	children    []*Scope
	disposables []func()
	disposed    bool
}

func newScope(parent *Scope, apply func(*Context)) *Scope {
	return &Scope{parent: parent, apply: apply}
}

// AddDisposable records a teardown hook run on disposal.
func (sc *Scope) AddDisposable(d func()) {
	sc.mu.Lock()
	if sc.disposed {
		sc.mu.Unlock()
		// Scope already torn down; undo the registration immediately.
		d()
		return
	}
	sc.disposables = append(sc.disposables, d)
	sc.mu.Unlock()
}

// Disposed reports whether the scope has been torn down.
func (sc *Scope) Disposed() bool {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.disposed
}

// Dispose tears down the subtree: child scopes first, then this scope's
// disposers in reverse registration order. After Dispose returns, no
// handler registered through this scope is reachable by any dispatch.
func (sc *Scope) Dispose() {
	sc.mu.Lock()
	if sc.disposed {
		sc.mu.Unlock()
		return
	}
	sc.disposed = true
	children := sc.children
	disposables := sc.disposables
	sc.children = nil
	sc.disposables = nil
	sc.mu.Unlock()

	for _, child := range children {
		child.Dispose()
	}
	for i := len(disposables) - 1; i >= 0; i-- {
		disposables[i]()
	}
	if sc.parent != nil {
		sc.parent.removeChild(sc)
	}
}

// Restart tears the scope down and re-applies its plugin body.
func (sc *Scope) Restart() {
	apply := sc.apply

	sc.mu.Lock()
	children := sc.children
	disposables := sc.disposables
	sc.children = nil
	sc.disposables = nil
	sc.disposed = false
	sc.mu.Unlock()

	for _, child := range children {
		child.Dispose()
	}
	for i := len(disposables) - 1; i >= 0; i-- {
		disposables[i]()
	}
	if apply != nil {
		apply(sc.ctx)
	}
}

// MatchAny reports whether this scope's context, or any descendant's,
// matches the session.
func (sc *Scope) MatchAny(s *Session) bool {
	if sc.ctx != nil && sc.ctx.Match(s) {
		return true
	}
	sc.mu.Lock()
	children := make([]*Scope, len(sc.children))
	copy(children, sc.children)
	sc.mu.Unlock()
	for _, child := range children {
		if child.MatchAny(s) {
			return true
		}
	}
	return false
}

func (sc *Scope) addChild(child *Scope) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.children = append(sc.children, child)
}

func (sc *Scope) removeChild(child *Scope) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	for i, c := range sc.children {
		if c == child {
			sc.children = append(sc.children[:i], sc.children[i+1:]...)
			return
		}
	}
}

// Context is the handle plugins and collaborators register through. It
// pairs a scope (ownership, lifetime) with a composed filter (visibility).
// Filter derivations share the scope; Plugin creates a child scope.
type Context struct {
	app    *App
	scope  *Scope
	filter Filter
}

func (c *Context) extend(f Filter) *Context {
	return &Context{app: c.app, scope: c.scope, filter: f}
}

// App returns the owning runtime.
func (c *Context) App() *App {
	return c.app
}

// Scope returns the scope this context registers handlers against.
func (c *Context) Scope() *Scope {
	return c.scope
}

// Plugin mounts a plugin in a child scope. Everything the plugin
// registers is deregistered when the returned scope is disposed.
func (c *Context) Plugin(apply func(*Context)) *Scope {
	child := newScope(c.scope, apply)
	child.ctx = &Context{app: c.app, scope: child, filter: c.filter}
	c.scope.addChild(child)
	apply(child.ctx)
	return child
}

// On registers a listener for a typed event, gated by this context's
// filter. The returned func deregisters it; scope disposal does the same.
func (c *Context) On(event string, fn Handler, prepend ...bool) func() {
	dispose := c.app.events.on(c, event, fn, len(prepend) > 0 && prepend[0])
	c.scope.AddDisposable(dispose)
	return dispose
}

// Middleware registers a middleware for message-class events.
func (c *Context) Middleware(fn Middleware, prepend ...bool) func() {
	dispose := c.app.processor.register(c, fn, len(prepend) > 0 && prepend[0])
	c.scope.AddDisposable(dispose)
	return dispose
}

// Command registers a command against this context's scope.
func (c *Context) Command(pattern, description string, flags Flags) *CommandInstance {
	return c.app.commander.command(c, pattern, description, flags)
}

// Commands returns the commands visible from any scope.
func (c *Context) Commands() []*CommandInstance {
	return c.app.commander.all()
}

// ExecuteString routes input through the command router as if it had
// been received as a message (without the prefix). When no command
// matches, the returned slice holds fuzzy suggestions.
func (c *Context) ExecuteString(bot *Bot, s *Session, input string) ([]*CommandInstance, bool) {
	return c.app.commander.parseAndExecute(bot, s, input)
}

// AddCommandHelp merges per-command help content into the help registry.
func (c *Context) AddCommandHelp(messages HelpMessages) {
	c.app.commander.addHelp(messages)
}

// Router registers a plugin HTTP route under the configured router path.
func (c *Context) Router(method, path string, handler RouteHandler) error {
	return c.app.routers.register(c, method, path, handler)
}

// Parallel fans the event out to every matching subscriber without
// blocking the emitter. Each failure is caught and logged.
func (c *Context) Parallel(event string, bot *Bot, s *Session) {
	c.app.events.parallel(event, bot, s)
}

// Serial invokes matching subscribers in registration order and returns
// the first defined result.
func (c *Context) Serial(event string, bot *Bot, s *Session) interface{} {
	return c.app.events.serial(event, bot, s)
}

// Bail invokes matching subscribers in registration order as a cheap
// gating check, returning the first defined result.
func (c *Context) Bail(event string, bot *Bot, s *Session) interface{} {
	return c.app.events.serial(event, bot, s)
}

// Prompt waits for the next message from the same user/bot pair and
// returns its content. Exactly one of the message or the timeout wins;
// the loser is disposed, leaving no listener or timer behind.
func (c *Context) Prompt(current *Session, timeout ...time.Duration) (string, bool) {
	d := c.app.cfg.PromptTimeout()
	if len(timeout) > 0 {
		d = timeout[0]
	}

	ch := make(chan string, 1)
	dispose := c.Middleware(func(bot *Bot, s *Session, next Next) (string, error) {
		if s.UserID != current.UserID || s.SelfID != current.SelfID {
			return next()
		}
		select {
		case ch <- s.Data.Content:
		default:
		}
		return "", nil
	}, true)
	defer dispose()

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case content := <-ch:
		return content, true
	case <-timer.C:
		return "", false
	}
}

// Suggest waits for the next button interaction from the same user/bot
// pair and returns its session.
func (c *Context) Suggest(current *Session, timeout ...time.Duration) (*Session, bool) {
	d := c.app.cfg.PromptTimeout()
	if len(timeout) > 0 {
		d = timeout[0]
	}

	ch := make(chan *Session, 1)
	dispose := c.On(EventSerialButtonClick, func(bot *Bot, s *Session) (interface{}, error) {
		if s.UserID != current.UserID || s.SelfID != current.SelfID {
			return nil, nil
		}
		select {
		case ch <- s:
		default:
		}
		return nil, nil
	}, true)
	defer dispose()

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case s := <-ch:
		return s, true
	case <-timer.C:
		return nil, false
	}
}
