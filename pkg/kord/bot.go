package kord

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/kooklab/kord/pkg/config"
	"github.com/kooklab/kord/pkg/logger"
)

// Bot is one platform identity. Each bot owns its REST client, its
// gateway connection (when not in webhook mode) and its own reconnect
// budget; one identity exhausting retries never touches its siblings.
type Bot struct {
	VerifyToken string
	Token       string

	app  *App
	ctx  *Context
	http *resty.Client

	meMu sync.RWMutex
	me   *User

	wsMu sync.Mutex
	ws   *WSClient

	retryMu    sync.Mutex
	retryCount int
	maxRetry   int

	keepAliveStop chan struct{}
	disposeOnce   sync.Once
	disposed      atomic.Bool
}

// NewBot registers a bot on the context's scope and starts it in the
// background. Disposal of the scope disposes the bot.
func NewBot(c *Context, cfg config.BotConfig) (*Bot, error) {
	app := c.App()
	b := &Bot{
		VerifyToken:   cfg.VerifyToken,
		Token:         cfg.Token,
		app:           app,
		ctx:           c,
		maxRetry:      app.cfg.Gateway.MaxRetry,
		keepAliveStop: make(chan struct{}),
	}
	b.http = resty.New().
		SetBaseURL(app.cfg.API.Endpoint).
		SetTimeout(app.cfg.APITimeout()).
		SetHeader("Authorization", "Bot "+cfg.Token)

	if err := app.addBot(b); err != nil {
		return nil, err
	}
	c.Scope().AddDisposable(func() { b.Dispose() })

	go b.run()
	return b, nil
}

// Me returns the bot's own identity, nil until bootstrap completes.
func (b *Bot) Me() *User {
	b.meMu.RLock()
	defer b.meMu.RUnlock()
	return b.me
}

func (b *Bot) setMe(me *User) {
	b.meMu.Lock()
	b.me = me
	b.meMu.Unlock()
}

func (b *Bot) run() {
	if err := b.start(); err != nil {
		logger.ErrorCF("bot", "Startup failed, disposing bot", map[string]interface{}{
			"verify_token": b.VerifyToken,
			"error":        err.Error(),
		})
		b.fatalDispose()
	}
}

// start bootstraps the identity, then either relies on the webhook
// receiver or dials the gateway.
func (b *Bot) start() error {
	me, err := b.UserMe()
	if err != nil {
		return err
	}
	b.setMe(me)
	logger.InfoCF("bot", "Identity resolved", map[string]interface{}{
		"user_id":  me.ID,
		"username": me.Username,
	})

	if b.app.webhook == nil {
		if err := b.connectGateway(); err != nil {
			return err
		}
	}

	go b.keepAliveLoop()
	return nil
}

func (b *Bot) connectGateway() error {
	url, err := b.GatewayURL()
	if err != nil {
		return err
	}
	ws := newWSClient(b)
	if err := ws.Connect(url); err != nil {
		return err
	}
	b.wsMu.Lock()
	b.ws = ws
	b.wsMu.Unlock()
	return nil
}

// handleGatewayClose runs whenever this bot's gateway socket dies.
// Reconnection always fetches a fresh URL; the budget is per identity.
func (b *Bot) handleGatewayClose() {
	if b.disposed.Load() {
		return
	}

	b.retryMu.Lock()
	if b.retryCount >= b.maxRetry {
		b.retryMu.Unlock()
		logger.ErrorCF("bot", "Retry budget exhausted, disposing bot", map[string]interface{}{
			"verify_token": b.VerifyToken,
			"max_retry":    b.maxRetry,
		})
		b.fatalDispose()
		return
	}
	b.retryCount++
	attempt := b.retryCount
	b.retryMu.Unlock()

	logger.WarnCF("bot", "Gateway closed, reconnecting", map[string]interface{}{
		"verify_token": b.VerifyToken,
		"attempt":      attempt,
	})
	go b.reconnect()
}

func (b *Bot) reconnect() {
	if err := b.connectGateway(); err != nil {
		logger.WarnCF("bot", "Reconnect failed", map[string]interface{}{
			"verify_token": b.VerifyToken,
			"error":        err.Error(),
		})
		b.handleGatewayClose()
	}
}

// keepAliveLoop polls the platform's view of the bot; an offline bot
// restarts its transport.
func (b *Bot) keepAliveLoop() {
	interval := b.app.cfg.KeepAliveInterval()
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-b.keepAliveStop:
			return
		case <-ticker.C:
			b.checkAlive()
		}
	}
}

func (b *Bot) checkAlive() {
	online, err := b.OnlineStatus()
	if err != nil {
		logger.WarnCF("bot", "Online status check failed", map[string]interface{}{
			"verify_token": b.VerifyToken,
			"error":        err.Error(),
		})
		return
	}
	if online {
		return
	}

	b.wsMu.Lock()
	ws := b.ws
	b.wsMu.Unlock()

	if ws != nil {
		logger.WarnC("bot", "Reported offline, restarting gateway")
		ws.Dispose()
		go b.reconnect()
		return
	}

	if err := b.Online(); err != nil {
		logger.WarnCF("bot", "Failed to come back online", map[string]interface{}{
			"verify_token": b.VerifyToken,
			"error":        err.Error(),
		})
		b.retryMu.Lock()
		b.retryCount++
		exhausted := b.retryCount >= b.maxRetry
		b.retryMu.Unlock()
		if exhausted {
			logger.ErrorC("bot", "Retry budget exhausted, disposing bot")
			b.fatalDispose()
		}
	}
}

// fatalDispose tears down the scope the bot was mounted in, which in
// turn disposes the bot and everything registered beside it.
func (b *Bot) fatalDispose() {
	b.ctx.Scope().Dispose()
}

// Dispose stops the bot and removes it from the runtime. Idempotent.
func (b *Bot) Dispose() {
	b.disposeOnce.Do(func() {
		b.disposed.Store(true)
		close(b.keepAliveStop)

		b.wsMu.Lock()
		ws := b.ws
		b.ws = nil
		b.wsMu.Unlock()
		if ws != nil {
			ws.Dispose()
		}

		b.app.removeBot(b)
		logger.InfoCF("bot", "Disposed", map[string]interface{}{
			"verify_token": b.VerifyToken,
		})
	})
}
