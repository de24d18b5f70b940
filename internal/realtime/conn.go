// internal/realtime/conn.go

// Package realtime carries notification events between the hub and its
// clients over a websocket. Conn is the client side: one shared connection
// per session, observed by many components, owned by none of them. Hub is
// the server-side fanout.
package realtime

import (
	"context"
	"encoding/json"
	"math"
	"math/rand"
	"sync"
	"time"

	"notification-hub/internal/common/logger"
	"notification-hub/internal/common/metrics"
	"notification-hub/internal/common/validation"
	"notification-hub/internal/models"

	"github.com/gorilla/websocket"
)

// ConnState is the lifecycle state of the shared connection.
type ConnState string

const (
	StateDisconnected ConnState = "disconnected"
	StateConnecting   ConnState = "connecting"
	StateConnected    ConnState = "connected"
	StateError        ConnState = "error"
)

// Handler receives one decoded event envelope.
type Handler func(models.EventEnvelope)

// Subscription identifies one registered handler so Off removes exactly the
// handler it was returned for and no other.
type Subscription struct {
	event string
	id    uint64
}

// EventBus is the component-facing surface of the shared connection.
// Components subscribe and unsubscribe; they never dial or close. Only the
// session lifecycle that constructed the Conn may call Close.
type EventBus interface {
	On(event string, h Handler) Subscription
	Off(sub Subscription)
	State() ConnState
}

// Options configures dialing and reconnection.
type Options struct {
	URL              string
	BackoffBase      time.Duration
	BackoffMax       time.Duration
	BackoffJitter    float64 // fraction of the delay, 0..1
	HandshakeTimeout time.Duration
	PongTimeout      time.Duration
	WriteTimeout     time.Duration
}

func (o *Options) fillDefaults() {
	if o.BackoffBase <= 0 {
		o.BackoffBase = 500 * time.Millisecond
	}
	if o.BackoffMax <= 0 {
		o.BackoffMax = 30 * time.Second
	}
	if o.HandshakeTimeout <= 0 {
		o.HandshakeTimeout = 10 * time.Second
	}
	if o.PongTimeout <= 0 {
		o.PongTimeout = 60 * time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 10 * time.Second
	}
}

type handlerEntry struct {
	id uint64
	fn Handler
}

// connectAttempt is the shared outcome of one in-flight dial, so that
// concurrent Connect calls join the same attempt instead of opening a second
// channel.
type connectAttempt struct {
	done chan struct{}
	err  error
}

// Conn is the shared client connection. Construct one per session at the
// application root and hand components the EventBus interface.
type Conn struct {
	opts Options
	log  logger.Logger
	dial func(url string, timeout time.Duration) (*websocket.Conn, error)

	mu       sync.Mutex
	state    ConnState
	ws       *websocket.Conn
	handlers map[string][]handlerEntry
	nextID   uint64
	attempt  *connectAttempt
	retrying bool
	closed   bool
	closeCh  chan struct{}
}

// NewConn creates the connection manager. It does not dial; call Connect.
func NewConn(opts Options, log logger.Logger) *Conn {
	opts.fillDefaults()
	return &Conn{
		opts:     opts,
		log:      log.WithFields(map[string]interface{}{"component": "realtime-conn"}),
		dial:     defaultDial,
		state:    StateDisconnected,
		handlers: make(map[string][]handlerEntry),
		closeCh:  make(chan struct{}),
	}
}

func defaultDial(url string, timeout time.Duration) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: timeout}
	ws, _, err := dialer.Dial(url, nil)
	return ws, err
}

// State returns the current lifecycle state.
func (c *Conn) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect establishes the underlying websocket. It is idempotent: when the
// connection is already established it returns nil immediately, and when a
// dial is in flight the caller joins that attempt's outcome rather than
// opening a second channel. A handshake failure is reported to the caller
// and then retried in the background with capped, jittered backoff until
// Close is called.
func (c *Conn) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return errConnClosed
	}
	if c.state == StateConnected {
		c.mu.Unlock()
		return nil
	}
	if c.attempt != nil {
		attempt := c.attempt
		c.mu.Unlock()
		select {
		case <-attempt.done:
			return attempt.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	attempt := &connectAttempt{done: make(chan struct{})}
	c.attempt = attempt
	c.state = StateConnecting
	c.mu.Unlock()

	ws, err := c.dial(c.opts.URL, c.opts.HandshakeTimeout)

	c.mu.Lock()
	c.attempt = nil
	if err != nil {
		// Handshake failure: connecting -> error, then the background
		// retry loop walks the state machine back through disconnected
		// and connecting until a dial succeeds.
		c.state = StateError
		attempt.err = err
		c.mu.Unlock()
		close(attempt.done)
		c.scheduleRetry()
		return err
	}
	if c.closed {
		c.mu.Unlock()
		_ = ws.Close()
		attempt.err = errConnClosed
		close(attempt.done)
		return errConnClosed
	}
	c.ws = ws
	c.state = StateConnected
	c.retrying = false
	c.mu.Unlock()
	close(attempt.done)

	c.log.Info("connected", map[string]interface{}{"url": c.opts.URL})
	go c.readLoop(ws)
	return nil
}

// Close force-closes the connection and stops reconnection. Only the owning
// session lifecycle (e.g. logout) calls this; components holding the
// EventBus cannot.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.state = StateDisconnected
	ws := c.ws
	c.ws = nil
	close(c.closeCh)
	c.mu.Unlock()

	if ws != nil {
		return ws.Close()
	}
	return nil
}

// On registers a handler for an event name. Handlers for the same event run
// in registration order.
func (c *Conn) On(event string, h Handler) Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	c.handlers[event] = append(c.handlers[event], handlerEntry{id: c.nextID, fn: h})
	return Subscription{event: event, id: c.nextID}
}

// Off removes exactly the handler the subscription was returned for.
func (c *Conn) Off(sub Subscription) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entries := c.handlers[sub.event]
	for i, e := range entries {
		if e.id == sub.id {
			c.handlers[sub.event] = append(entries[:i], entries[i+1:]...)
			return
		}
	}
}

// readLoop reads envelopes from one established websocket and dispatches
// them. A single goroutine per connection keeps events for the same
// notification id in server emission order. The hub keeps idle connections
// alive with pings, so both ping and pong frames refresh the read deadline.
func (c *Conn) readLoop(ws *websocket.Conn) {
	_ = ws.SetReadDeadline(time.Now().Add(c.opts.PongTimeout))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(c.opts.PongTimeout))
	})
	ws.SetPingHandler(func(message string) error {
		if err := ws.SetReadDeadline(time.Now().Add(c.opts.PongTimeout)); err != nil {
			return err
		}
		err := ws.WriteControl(websocket.PongMessage, []byte(message), time.Now().Add(c.opts.WriteTimeout))
		if err == websocket.ErrCloseSent {
			return nil
		}
		return err
	})

	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			c.onDrop(ws, err)
			return
		}
		_ = ws.SetReadDeadline(time.Now().Add(c.opts.PongTimeout))

		env, ok := c.decodeEnvelope(raw)
		if !ok {
			continue
		}
		metrics.EventsReceived.WithLabelValues(env.Event).Inc()
		c.dispatch(env)
	}
}

// decodeEnvelope checks a frame against the envelope schema before any
// handler sees it. Invalid frames are dropped and logged; they never tear
// the connection down.
func (c *Conn) decodeEnvelope(raw []byte) (models.EventEnvelope, bool) {
	var envMap map[string]interface{}
	if err := json.Unmarshal(raw, &envMap); err != nil {
		c.dropFrame("unknown", err)
		return models.EventEnvelope{}, false
	}
	if err := validation.ValidateEnvelope(envMap); err != nil {
		event := "unknown"
		if s, ok := envMap["event"].(string); ok && s != "" {
			event = s
		}
		c.dropFrame(event, err)
		return models.EventEnvelope{}, false
	}
	var env models.EventEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		c.dropFrame("unknown", err)
		return models.EventEnvelope{}, false
	}
	return env, true
}

func (c *Conn) dropFrame(event string, err error) {
	metrics.EventsDropped.WithLabelValues(event, "invalid_envelope").Inc()
	c.log.Warn("dropping invalid frame", map[string]interface{}{
		"event": event,
		"error": err.Error(),
	})
}

// dispatch invokes the registered handlers in registration order. The
// handler slice is copied under the lock so handlers may call Off from
// within a callback.
func (c *Conn) dispatch(env models.EventEnvelope) {
	c.mu.Lock()
	entries := make([]handlerEntry, len(c.handlers[env.Event]))
	copy(entries, c.handlers[env.Event])
	c.mu.Unlock()

	for _, e := range entries {
		e.fn(env)
	}
}

// onDrop handles an unexpected connection loss: transition to disconnected
// and hand the socket over to the background retry loop.
func (c *Conn) onDrop(ws *websocket.Conn, err error) {
	_ = ws.Close()

	c.mu.Lock()
	if c.closed || c.ws != ws {
		c.mu.Unlock()
		return
	}
	c.ws = nil
	c.state = StateDisconnected
	c.mu.Unlock()

	c.log.Warn("connection dropped, reconnecting", map[string]interface{}{"error": err.Error()})
	c.scheduleRetry()
}

// scheduleRetry starts the background redial loop unless one is already
// running. Both a dropped connection and a failed handshake land here, so a
// client whose very first dial fails still converges on a live connection.
func (c *Conn) scheduleRetry() {
	c.mu.Lock()
	if c.closed || c.retrying {
		c.mu.Unlock()
		return
	}
	c.retrying = true
	c.mu.Unlock()
	go c.retryLoop()
}

// retryLoop redials with capped, jittered exponential backoff until a dial
// succeeds or Close is called. The retrying flag is cleared by the Connect
// that establishes the socket, before its read loop can observe a drop.
func (c *Conn) retryLoop() {
	for attempt := 0; ; attempt++ {
		select {
		case <-c.closeCh:
			return
		case <-time.After(c.backoffDelay(attempt)):
		}

		c.mu.Lock()
		if c.state == StateError {
			c.state = StateDisconnected
		}
		c.mu.Unlock()

		metrics.ReconnectAttempts.Inc()
		if err := c.Connect(context.Background()); err == nil {
			return
		}

		c.mu.Lock()
		closed := c.closed
		c.mu.Unlock()
		if closed {
			return
		}
	}
}

// backoffDelay returns the capped exponential delay for the given attempt,
// with a random jitter fraction added so simultaneous clients do not
// stampede the hub.
func (c *Conn) backoffDelay(attempt int) time.Duration {
	base := float64(c.opts.BackoffBase)
	capped := math.Min(base*math.Pow(2, float64(attempt)), float64(c.opts.BackoffMax))
	jitter := capped * c.opts.BackoffJitter * rand.Float64()
	return time.Duration(capped + jitter)
}

type connClosedError struct{}

func (connClosedError) Error() string { return "realtime: connection closed" }

var errConnClosed = connClosedError{}
