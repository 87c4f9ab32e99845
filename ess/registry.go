package ess

import (
	"fmt"
	"sort"
	"sync"
)

// consumer is one registered handler with its filters. Immutable after
// registration.
type consumer struct {
	id       ConsumerID
	name     string
	metadata any
	handler  Handler
	sub      Subscription
}

// registry holds the live consumer set. Mutations go through the owning
// Client only; the dispatch worker reads snapshots concurrently.
type registry struct {
	mu        sync.RWMutex
	consumers map[ConsumerID]*consumer
	nextID    ConsumerID
}

func newRegistry() *registry {
	return &registry{consumers: make(map[ConsumerID]*consumer)}
}

// add stores the consumer and assigns its handle.
func (r *registry) add(c *consumer) ConsumerID {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	c.id = r.nextID
	if c.name == "" {
		c.name = fmt.Sprintf("consumer-%d", c.id)
	}
	r.consumers[c.id] = c
	return c.id
}

// remove deletes the consumer. Removing an unknown handle is a no-op.
func (r *registry) remove(id ConsumerID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.consumers[id]
	delete(r.consumers, id)
	return ok
}

// snapshot returns the current consumer set for dispatch.
func (r *registry) snapshot() []*consumer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*consumer, 0, len(r.consumers))
	for _, c := range r.consumers {
		out = append(out, c)
	}
	return out
}

func (r *registry) len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.consumers)
}

// aggregate derives the union subscription across all consumers. A wildcard
// in any consumer's dimension makes that dimension a bare wildcard in the
// result. With no consumers registered every dimension is empty: nothing is
// subscribed until the first registration.
func (r *registry) aggregate() Subscription {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return Subscription{
		Events:     unionDimension(r.consumers, func(s Subscription) []string { return s.Events }),
		Worlds:     unionDimension(r.consumers, func(s Subscription) []string { return s.Worlds }),
		Characters: unionDimension(r.consumers, func(s Subscription) []string { return s.Characters }),
	}
}

func unionDimension(consumers map[ConsumerID]*consumer, dim func(Subscription) []string) []string {
	set := make(map[string]struct{})
	for _, c := range consumers {
		for _, v := range dim(c.sub) {
			if v == All {
				return []string{All}
			}
			set[v] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// union widens the subscription with another, dimension by dimension, with
// the same wildcard absorption as aggregate. The result is never narrower
// than either input.
func (s Subscription) union(o Subscription) Subscription {
	return Subscription{
		Events:     unionValues(s.Events, o.Events),
		Worlds:     unionValues(s.Worlds, o.Worlds),
		Characters: unionValues(s.Characters, o.Characters),
	}
}

func unionValues(a, b []string) []string {
	set := make(map[string]struct{}, len(a)+len(b))
	for _, vs := range [][]string{a, b} {
		for _, v := range vs {
			if v == All {
				return []string{All}
			}
			set[v] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
