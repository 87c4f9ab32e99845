package ess

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// State is the connection manager's lifecycle state.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnectedUnsubscribed
	StateConnectedSubscribed
	StateReconnecting
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnectedUnsubscribed:
		return "connected-unsubscribed"
	case StateConnectedSubscribed:
		return "connected-subscribed"
	case StateReconnecting:
		return "reconnecting"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Client owns the single websocket connection to the event stream. It keeps
// the upstream subscribed to the union of all registered consumers' filters
// and fans matching events out to their handlers.
type Client struct {
	cfg    Config
	wsURL  string
	logger zerolog.Logger

	conn    *websocket.Conn
	connMu  sync.RWMutex
	writeMu sync.Mutex

	registry *registry
	dedup    *deduplicator

	state atomic.Int32

	errMu   sync.Mutex
	lastErr error

	// lastSent is the aggregate most recently written upstream. Reconnects
	// re-send its union with the current registry, so the subscription can
	// only widen while the client lives.
	lastSent   Subscription
	lastSentMu sync.Mutex
	everSent   bool

	frameChan chan []byte
	connLost  chan error
	resubCh   chan struct{}

	started atomic.Bool
	closed  atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a streaming client. ErrNoServiceID is returned before any
// socket is opened when the credential is missing.
func New(cfg Config, logger zerolog.Logger) (*Client, error) {
	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}

	var dedup *deduplicator
	if cfg.DedupSize > 0 {
		d, err := newDeduplicator(cfg.DedupSize)
		if err != nil {
			return nil, err
		}
		dedup = d
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		cfg:       cfg,
		wsURL:     streamURL(cfg),
		logger:    logger.With().Str("component", "ess").Logger(),
		registry:  newRegistry(),
		dedup:     dedup,
		frameChan: make(chan []byte, cfg.FrameBuffer),
		connLost:  make(chan error, 1),
		resubCh:   make(chan struct{}, 1),
		ctx:       ctx,
		cancel:    cancel,
	}, nil
}

func streamURL(cfg Config) string {
	q := url.Values{}
	q.Set("environment", cfg.Environment)
	q.Set("service-id", "s:"+cfg.ServiceID)
	return cfg.URL + "?" + q.Encode()
}

// State returns the current connection state.
func (c *Client) State() State {
	return State(c.state.Load())
}

func (c *Client) setState(s State) {
	c.state.Store(int32(s))
}

// Err returns the terminal error after the client entered StateFailed, nil
// otherwise.
func (c *Client) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.lastErr
}

func (c *Client) setErr(err error) {
	c.errMu.Lock()
	c.lastErr = err
	c.errMu.Unlock()
}

// Connected returns true while the socket is established.
func (c *Client) Connected() bool {
	c.connMu.RLock()
	ok := c.conn != nil
	c.connMu.RUnlock()
	return ok
}

// Connect dials the stream, sends the initial subscribe frame and starts the
// read, dispatch and control loops. The initial dial goes through the same
// bounded retry policy as reconnects; if every attempt fails the error is
// returned and the client stays disconnected. Connection losses after a
// successful Connect are recovered automatically.
func (c *Client) Connect(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClosed
	}
	if !c.started.CompareAndSwap(false, true) {
		return ErrAlreadyConnected
	}

	c.setState(StateConnecting)
	c.logger.Info().Str("environment", c.cfg.Environment).Msg("connecting to event stream")

	if err := c.dialRetry(ctx); err != nil {
		if errors.Is(err, ErrAuthRejected) {
			c.fail(err)
		} else {
			c.setState(StateDisconnected)
			c.started.Store(false)
		}
		return err
	}

	c.setState(StateConnectedUnsubscribed)
	if agg := c.registry.aggregate(); !agg.empty() {
		if err := c.sendSubscribe(agg); err != nil {
			// The read loop will notice the broken socket and drive a
			// reconnect.
			c.logger.Warn().Err(err).Msg("initial subscribe failed")
		}
	}

	c.wg.Add(2)
	go c.run()
	go c.dispatchWorker()
	c.startConnLoops()
	return nil
}

// dial opens the websocket and installs it as the current connection.
func (c *Client) dial(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: c.cfg.HandshakeTimeout}
	conn, resp, err := dialer.DialContext(ctx, c.wsURL, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return fmt.Errorf("%w: handshake status %d", ErrAuthRejected, resp.StatusCode)
		}
		return fmt.Errorf("failed to connect websocket: %w", err)
	}

	conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
		return nil
	})

	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()
	c.logger.Info().Msg("websocket connected")
	return nil
}

// dialRetry applies the bounded retry policy to one round of connection
// attempts.
func (c *Client) dialRetry(ctx context.Context) error {
	attempt := 0
	op := func() error {
		attempt++
		err := c.dial(ctx)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrAuthRejected) {
			return backoff.Permanent(err)
		}
		c.logger.Warn().Err(err).Int("attempt", attempt).Msg("websocket dial failed")
		return err
	}
	bo := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(c.cfg.ReconnectInterval), uint64(c.cfg.ReconnectMaxAttempts)),
		ctx,
	)
	return backoff.Retry(op, bo)
}

// run is the control loop: the only goroutine that drives reconnects and
// writes subscription frames after startup.
func (c *Client) run() {
	defer c.wg.Done()
	for {
		select {
		case <-c.ctx.Done():
			return

		case err := <-c.connLost:
			if errors.Is(err, ErrAuthRejected) {
				c.fail(err)
				return
			}
			c.setState(StateReconnecting)
			c.logger.Warn().Err(err).Msg("connection lost, reconnecting")
			if rerr := c.reconnectLoop(); rerr != nil {
				if errors.Is(rerr, ErrAuthRejected) {
					c.fail(rerr)
				}
				return
			}

		case <-c.resubCh:
			if !c.Connected() {
				// A loss is in flight; the reconnect path re-sends the union
				// of the last frame and the current registry, which covers
				// whatever triggered this signal.
				continue
			}
			agg := c.registry.aggregate()
			if agg.empty() || c.alreadySent(agg) {
				continue
			}
			if err := c.sendSubscribe(agg); err != nil {
				c.logger.Warn().Err(err).Msg("resubscribe failed")
				c.requestResubscribe()
			}
		}
	}
}

// reconnectLoop retries the dial until it succeeds or a terminal error is
// hit. Each round makes the configured number of attempts; exhausted rounds
// pause for the cooldown window before the counter resets. The loop never
// gives up on transient failures.
func (c *Client) reconnectLoop() error {
	for {
		err := c.dialRetry(c.ctx)
		if err == nil {
			c.setState(StateConnectedUnsubscribed)
			if sub := c.reconnectAggregate(); !sub.empty() {
				if serr := c.sendSubscribe(sub); serr != nil {
					c.logger.Warn().Err(serr).Msg("resubscribe after reconnect failed")
				}
			}
			c.startConnLoops()
			return nil
		}
		if errors.Is(err, ErrAuthRejected) || c.ctx.Err() != nil {
			return err
		}

		c.logger.Warn().
			Int("attempts", c.cfg.ReconnectMaxAttempts+1).
			Dur("cooldown", c.cfg.ReconnectCooldown).
			Msg("reconnect attempts exhausted, cooling down")
		select {
		case <-c.ctx.Done():
			return c.ctx.Err()
		case <-time.After(c.cfg.ReconnectCooldown):
		}
	}
}

func (c *Client) fail(err error) {
	c.setErr(err)
	c.setState(StateFailed)
	c.closeConn()
	c.logger.Error().Err(err).Msg("event stream failed terminally, not retrying")
}

// startConnLoops spawns the read and ping loops for the current connection.
func (c *Client) startConnLoops() {
	c.connMu.RLock()
	conn := c.conn
	c.connMu.RUnlock()
	if conn == nil {
		return
	}

	done := make(chan struct{})
	c.wg.Add(2)
	go c.readLoop(conn, done)
	go c.pingLoop(conn, done)
}

// readLoop reads frames from one connection until it breaks, then reports
// the loss to the control loop.
func (c *Client) readLoop(conn *websocket.Conn, done chan struct{}) {
	defer c.wg.Done()
	defer close(done)

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
		_, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.ctx.Done():
				return
			default:
			}
			if websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
				err = fmt.Errorf("%w: %v", ErrAuthRejected, err)
			}
			c.closeConn()
			select {
			case c.connLost <- err:
			default:
			}
			return
		}

		select {
		case c.frameChan <- data:
		case <-c.ctx.Done():
			return
		default:
			c.logger.Warn().Msg("frame queue full, dropping frame")
		}
	}
}

func (c *Client) pingLoop(conn *websocket.Conn, done chan struct{}) {
	defer c.wg.Done()
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-done:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(10*time.Second))
			c.writeMu.Unlock()
			if err != nil {
				c.logger.Debug().Err(err).Msg("ping write failed")
				return
			}
		}
	}
}

// sendSubscribe writes the subscribe frame for the given aggregate and
// records it as the last-sent subscription.
func (c *Client) sendSubscribe(agg Subscription) error {
	if err := c.writeJSON(newSubscribeFrame(agg)); err != nil {
		return fmt.Errorf("failed to send subscribe frame: %w", err)
	}

	c.lastSentMu.Lock()
	c.lastSent = agg
	c.everSent = true
	c.lastSentMu.Unlock()

	c.setState(StateConnectedSubscribed)
	c.logger.Info().
		Strs("eventNames", agg.Events).
		Strs("worlds", agg.Worlds).
		Int("characters", len(agg.Characters)).
		Msg("subscribe frame sent")
	return nil
}

// reconnectAggregate returns the subscription to re-send after a reconnect:
// the frame sent before the disconnect widened by the current registry union,
// so a consumer registered during the outage is covered even if its refresh
// signal was consumed around the loss. Never narrower than what was already
// sent.
func (c *Client) reconnectAggregate() Subscription {
	c.lastSentMu.Lock()
	sent, ok := c.lastSent, c.everSent
	c.lastSentMu.Unlock()
	agg := c.registry.aggregate()
	if !ok {
		return agg
	}
	return sent.union(agg)
}

// alreadySent reports whether agg matches the last subscribe frame written,
// making a refresh for it redundant.
func (c *Client) alreadySent(agg Subscription) bool {
	c.lastSentMu.Lock()
	defer c.lastSentMu.Unlock()
	return c.everSent && c.lastSent.equal(agg)
}

func (c *Client) writeJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	c.connMu.RLock()
	conn := c.conn
	c.connMu.RUnlock()
	if conn == nil {
		return fmt.Errorf("websocket not connected")
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, data)
}

func (c *Client) closeConn() {
	c.connMu.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.connMu.Unlock()
}

// Close tears the client down: the upstream subscription is cleared on a
// best-effort basis, the socket is closed and the loops are stopped.
// In-flight handler invocations are not awaited.
func (c *Client) Close() {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}
	c.logger.Info().Msg("closing event stream client")

	if c.Connected() {
		if err := c.writeJSON(newClearSubscribeFrame()); err != nil {
			c.logger.Debug().Err(err).Msg("clearSubscribe write failed")
		}
	}

	c.cancel()
	c.closeConn()
	c.wg.Wait()
	c.setState(StateDisconnected)
	c.logger.Info().Msg("event stream client closed")
}
