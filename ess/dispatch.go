package ess

import (
	"errors"
	"fmt"
	"time"
)

// RegisterOption customizes a consumer registration.
type RegisterOption func(*registerOptions)

type registerOptions struct {
	name     string
	metadata any
	sub      Subscription
}

// WithName labels the consumer in log output.
func WithName(name string) RegisterOption {
	return func(o *registerOptions) { o.name = name }
}

// WithMetadata attaches a value delivered back on every event the consumer
// receives.
func WithMetadata(metadata any) RegisterOption {
	return func(o *registerOptions) { o.metadata = metadata }
}

// WithEvents restricts the consumer to the named event types.
func WithEvents(events ...string) RegisterOption {
	return func(o *registerOptions) { o.sub.Events = events }
}

// WithWorlds restricts the consumer to the given world IDs.
func WithWorlds(worlds ...string) RegisterOption {
	return func(o *registerOptions) { o.sub.Worlds = worlds }
}

// WithCharacters restricts the consumer to the given character IDs.
func WithCharacters(characters ...string) RegisterOption {
	return func(o *registerOptions) { o.sub.Characters = characters }
}

// WithSubscription sets the whole filter set at once. Empty dimensions
// default to the wildcard.
func WithSubscription(sub Subscription) RegisterOption {
	return func(o *registerOptions) { o.sub = sub }
}

// Register adds a consumer and widens the upstream subscription to cover its
// filters. The returned handle identifies the consumer to Unregister.
func (c *Client) Register(handler Handler, opts ...RegisterOption) (ConsumerID, error) {
	if c.closed.Load() {
		return 0, ErrClosed
	}
	if handler == nil {
		return 0, fmt.Errorf("handler is required")
	}

	var ro registerOptions
	for _, opt := range opts {
		opt(&ro)
	}

	con := &consumer{
		name:     ro.name,
		metadata: ro.metadata,
		handler:  handler,
		sub:      ro.sub.normalized(),
	}
	id := c.registry.add(con)

	c.logger.Debug().
		Str("consumer", con.name).
		Str("subscription", con.sub.String()).
		Msg("consumer registered")

	c.requestResubscribe()
	return id, nil
}

// Unregister removes a consumer. The upstream subscription is deliberately
// left as-is: narrowing it automatically could cut off another consumer if
// the aggregate computation ever went wrong, and over-delivery is filtered
// out before dispatch anyway.
func (c *Client) Unregister(id ConsumerID) {
	if c.registry.remove(id) {
		c.logger.Debug().Int64("consumer", int64(id)).Msg("consumer unregistered")
	}
}

// Resubscribe asks for the aggregate subscription to be re-sent without
// touching the connection. Requests are coalesced, and a refresh matching
// the last frame written is skipped.
func (c *Client) Resubscribe() error {
	if c.closed.Load() {
		return ErrClosed
	}
	c.requestResubscribe()
	return nil
}

// ConsumerCount returns the number of registered consumers.
func (c *Client) ConsumerCount() int {
	return c.registry.len()
}

// requestResubscribe asks the control loop for a subscribe-frame refresh.
// Signals are coalesced; a pending one is enough.
func (c *Client) requestResubscribe() {
	select {
	case c.resubCh <- struct{}{}:
	default:
	}
}

// dispatchWorker consumes raw frames in arrival order so the socket read
// loop never blocks on JSON parsing or consumer fan-out.
func (c *Client) dispatchWorker() {
	defer c.wg.Done()
	for {
		select {
		case <-c.ctx.Done():
			return
		case data := <-c.frameChan:
			c.dispatch(data)
		}
	}
}

func (c *Client) dispatch(data []byte) {
	f, err := parseFrame(data)
	if err != nil {
		if errors.Is(err, errUnknownFrame) {
			c.logger.Debug().Int("len", len(data)).Msg("dropping unrecognized frame")
		} else {
			c.logger.Warn().Err(err).Int("len", len(data)).Msg("frame parse error")
		}
		return
	}

	switch f.kind {
	case frameConnected:
		c.logger.Info().Msg("event stream acknowledged connection")

	case frameSubscription:
		c.logger.Info().
			Strs("eventNames", f.ack.EventNames).
			Strs("worlds", f.ack.Worlds).
			Int64("characterCount", f.ack.CharacterCount).
			Msg("subscription acknowledged")

	case frameEvent, frameHeartbeat:
		c.dispatchEvent(f.event)
	}
}

// dispatchEvent fans one event out to every matching consumer, each on its
// own goroutine so a slow or panicking handler cannot hold up the rest.
func (c *Client) dispatchEvent(event Event) {
	if c.dedup != nil && c.dedup.seen(event) {
		c.logger.Debug().Str("event", event.Name).Msg("duplicate event dropped")
		return
	}

	for _, con := range c.registry.snapshot() {
		if !matches(con.sub, event) {
			continue
		}
		go c.invoke(con, event)
	}
}

func (c *Client) invoke(con *consumer, event Event) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error().
				Interface("panic", r).
				Str("consumer", con.name).
				Str("event", event.Name).
				Msg("consumer handler panic")
		}
	}()

	event.Metadata = con.metadata
	start := time.Now()
	con.handler.HandleEvent(event)
	if d := time.Since(start); d > c.cfg.SlowHandlerWarn {
		c.logger.Warn().
			Str("consumer", con.name).
			Str("event", event.Name).
			Dur("handlerDuration", d).
			Msg("consumer handler slow")
	}
}
