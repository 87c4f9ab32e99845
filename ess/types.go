// Package ess implements a client for the PlanetSide 2 Event Streaming
// Service. A single websocket connection is shared by any number of
// registered consumers, each with its own event/world/character filters;
// the client maintains the upstream subscription as the union of all
// consumer filters and fans matching events out to their handlers.
package ess

import (
	"fmt"
	"slices"
)

// All is the wildcard sentinel accepted in every filter dimension.
const All = "all"

// ServerHealthUpdate is the synthetic event name assigned to upstream
// heartbeat frames so consumers can subscribe to them like any other event.
const ServerHealthUpdate = "ServerHealthUpdate"

// Payload field names used for filtering.
const (
	worldIDField     = "world_id"
	characterIDField = "character_id"
	eventNameField   = "event_name"
)

// Payload holds the event-specific fields of a normalized event. Values are
// strings for regular game events; heartbeat payloads carry nested objects.
// Payloads are shared between consumers and must not be mutated by handlers.
type Payload map[string]any

// Str returns the named field as a string. The second return is false when
// the field is absent or not a string.
func (p Payload) Str(key string) (string, bool) {
	v, ok := p[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Event is one normalized game event as delivered to a consumer.
type Event struct {
	Name    string
	Payload Payload

	// Metadata is the value supplied by the receiving consumer at
	// registration time, nil if none was given.
	Metadata any
}

// Handler receives events matching a consumer's subscription. Implementations
// must ignore event names they do not recognize; the client delivers every
// event that passes the consumer's filters.
type Handler interface {
	HandleEvent(event Event)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(event Event)

// HandleEvent implements Handler.
func (f HandlerFunc) HandleEvent(event Event) { f(event) }

// ConsumerID identifies a registered consumer for the lifetime of its
// registration.
type ConsumerID int64

// Subscription describes the filter set of one consumer. An empty dimension
// defaults to the wildcard.
type Subscription struct {
	Events     []string
	Worlds     []string
	Characters []string
}

// normalized returns a copy with empty dimensions replaced by the wildcard.
func (s Subscription) normalized() Subscription {
	out := Subscription{
		Events:     append([]string(nil), s.Events...),
		Worlds:     append([]string(nil), s.Worlds...),
		Characters: append([]string(nil), s.Characters...),
	}
	if len(out.Events) == 0 {
		out.Events = []string{All}
	}
	if len(out.Worlds) == 0 {
		out.Worlds = []string{All}
	}
	if len(out.Characters) == 0 {
		out.Characters = []string{All}
	}
	return out
}

// empty reports whether no dimension selects anything. Only the aggregate of
// a consumer-less registry is empty; a normalized consumer subscription never
// is.
func (s Subscription) empty() bool {
	return len(s.Events) == 0 && len(s.Worlds) == 0 && len(s.Characters) == 0
}

// equal compares dimension slices element-wise. Aggregates are sorted, so
// this is a set comparison for them.
func (s Subscription) equal(o Subscription) bool {
	return slices.Equal(s.Events, o.Events) &&
		slices.Equal(s.Worlds, o.Worlds) &&
		slices.Equal(s.Characters, o.Characters)
}

func (s Subscription) String() string {
	return fmt.Sprintf("events=%v worlds=%v characters=%v", s.Events, s.Worlds, s.Characters)
}
