package kord

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kooklab/kord/pkg/logger"
)

const (
	stateConnecting int32 = iota
	stateAwaitingHello
	stateOpen
	stateClosed
)

// heartbeatRetryDelays spaces the ping retries inside one heartbeat
// window; after the last one expires unanswered the socket is forced
// closed.
var heartbeatRetryDelays = []time.Duration{6 * time.Second, 2 * time.Second, 4 * time.Second}

// WSClient drives one gateway connection for one bot. The session
// counter only ever moves forward; duplicates and reordered deliveries
// cannot roll it back.
type WSClient struct {
	bot *Bot

	conn  *websocket.Conn
	state atomic.Int32
	sn    atomic.Int64

	writeMu   sync.Mutex
	closeOnce sync.Once
	disposed  atomic.Bool

	pingMu    sync.Mutex
	pingTimer *time.Timer

	heartbeatInterval time.Duration
	retryDelays       []time.Duration
	heartbeatStop     chan struct{}
}

func newWSClient(bot *Bot) *WSClient {
	return &WSClient{
		bot:               bot,
		heartbeatInterval: bot.app.cfg.HeartbeatInterval(),
		retryDelays:       heartbeatRetryDelays,
		heartbeatStop:     make(chan struct{}),
	}
}

// Connect dials the single-use gateway URL and starts the read loop.
func (c *WSClient) Connect(url string) error {
	c.state.Store(stateConnecting)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		c.state.Store(stateClosed)
		return err
	}
	c.conn = conn
	c.state.Store(stateAwaitingHello)
	go c.readLoop()
	return nil
}

// SN returns the highest session sequence observed so far.
func (c *WSClient) SN() int64 {
	return c.sn.Load()
}

func (c *WSClient) readLoop() {
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			break
		}
		var payload Payload
		if err := json.Unmarshal(raw, &payload); err != nil {
			logger.WarnCF("gateway", "Dropping malformed frame",
				map[string]interface{}{"error": err.Error()})
			continue
		}
		c.handleSignal(&payload)
	}

	c.shutdown()
	if !c.disposed.Load() {
		c.bot.handleGatewayClose()
	}
}

func (c *WSClient) handleSignal(p *Payload) {
	switch p.S {
	case SignalEvent:
		var data Data
		if err := json.Unmarshal(p.D, &data); err != nil {
			logger.WarnCF("gateway", "Dropping malformed event",
				map[string]interface{}{"error": err.Error()})
			return
		}
		// Drop our own echoes before they reach any subscriber.
		if me := c.bot.Me(); me != nil && data.AuthorID == me.ID {
			return
		}
		c.advanceSN(p.SN)
		Trigger(c.bot.app, c.bot, &data)
	case SignalHello:
		// Only the first Hello opens the connection; a repeated Hello
		// must not stack another heartbeat loop.
		if c.state.CompareAndSwap(stateAwaitingHello, stateOpen) {
			go c.heartbeatLoop()
			logger.InfoC("gateway", "Handshake complete")
		}
	case SignalPong:
		c.cancelPing()
	case SignalResume:
		// The server replaces this connection; close with going-away and
		// let the close handler dial a fresh URL.
		logger.WarnC("gateway", "Server requested resume, closing socket")
		c.forceClose()
	}
}

func (c *WSClient) advanceSN(sn int64) {
	for {
		cur := c.sn.Load()
		if sn <= cur {
			return
		}
		if c.sn.CompareAndSwap(cur, sn) {
			return
		}
	}
}

func (c *WSClient) heartbeatLoop() {
	ticker := time.NewTicker(c.heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.heartbeatStop:
			return
		case <-ticker.C:
			c.heartbeat()
		}
	}
}

// heartbeat sends a ping and schedules escalating retries. A pong
// cancels the pending retry; running out of retries force-closes the
// socket so the reconnect path can take over.
func (c *WSClient) heartbeat() {
	delays := c.retryDelays
	if len(delays) == 0 {
		delays = heartbeatRetryDelays
	}

	trial := 0
	var attempt func()
	attempt = func() {
		if c.state.Load() == stateClosed {
			return
		}
		if trial >= len(delays) {
			logger.WarnC("gateway", "Heartbeat timed out, closing socket")
			c.forceClose()
			return
		}
		c.sendPing()
		delay := delays[trial]
		trial++
		c.pingMu.Lock()
		c.pingTimer = time.AfterFunc(delay, attempt)
		c.pingMu.Unlock()
	}
	attempt()
}

func (c *WSClient) sendPing() {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.WriteJSON(Payload{S: SignalPing, SN: c.sn.Load()}); err != nil {
		logger.WarnCF("gateway", "Failed to send ping",
			map[string]interface{}{"error": err.Error()})
	}
}

func (c *WSClient) cancelPing() {
	c.pingMu.Lock()
	defer c.pingMu.Unlock()
	if c.pingTimer != nil {
		c.pingTimer.Stop()
		c.pingTimer = nil
	}
}

// forceClose tears the socket down exactly once. The read loop notices
// the closed connection and runs the close handling.
func (c *WSClient) forceClose() {
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		_ = c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
		c.writeMu.Unlock()
		_ = c.conn.Close()
	})
}

func (c *WSClient) shutdown() {
	if c.state.Swap(stateClosed) == stateClosed {
		return
	}
	close(c.heartbeatStop)
	c.cancelPing()
}

// Dispose closes the connection without triggering reconnection.
func (c *WSClient) Dispose() {
	c.disposed.Store(true)
	if c.conn != nil {
		c.forceClose()
	} else {
		c.shutdown()
	}
}
