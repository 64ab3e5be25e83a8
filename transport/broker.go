// Package transport provides an in-process implementation of the
// per-conversation pub/sub capability. It is best-effort fan-out with
// no delivery, ordering or durability guarantees beyond at-least-once
// while a subscriber keeps up; it is not a message broker.
package transport

import (
	"context"
	"log/slog"
	"sync"

	"convo-sync/contract"
	"convo-sync/domain"
)

type subscriber struct {
	ch chan contract.Envelope
}

// Broker is the process-wide connection shared by every view. Each
// view obtains its own Client rather than touching the broker
// directly, mirroring how a socket singleton is injected as a
// capability instead of being ambient global state.
type Broker struct {
	log        *slog.Logger
	bufferSize int

	mu     sync.RWMutex
	groups map[domain.GroupID]map[*subscriber]struct{}
}

func NewBroker(log *slog.Logger, bufferSize int) *Broker {
	return &Broker{
		log:        log,
		bufferSize: bufferSize,
		groups:     make(map[domain.GroupID]map[*subscriber]struct{}),
	}
}

// Client returns a transport handle for one view instance.
func (b *Broker) Client() *Client {
	return &Client{broker: b, joined: make(map[domain.GroupID]*subscriber)}
}

// Publish delivers a named event to every subscriber of the group.
// Slow subscribers lose events rather than blocking the broker; a
// re-fetched page heals whatever was dropped.
func (b *Broker) Publish(group domain.GroupID, name string, payload []byte) {
	env := contract.Envelope{Group: group, Name: name, Payload: payload}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for sub := range b.groups[group] {
		select {
		case sub.ch <- env:
		default:
			b.log.Warn("Subscriber buffer full, dropping event", "group", group, "name", name)
		}
	}
}

// Disconnect closes every subscriber stream of the group, simulating a
// lost connection. Consumers are expected to join again.
func (b *Broker) Disconnect(group domain.GroupID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.groups[group] {
		close(sub.ch)
	}
	delete(b.groups, group)
}

func (b *Broker) register(group domain.GroupID, sub *subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.groups[group]; !ok {
		b.groups[group] = make(map[*subscriber]struct{})
	}
	b.groups[group][sub] = struct{}{}
}

// deregister reports whether the subscriber was still registered, so
// the caller knows whether it owns closing the channel.
func (b *Broker) deregister(group domain.GroupID, sub *subscriber) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	members, ok := b.groups[group]
	if !ok {
		return false
	}
	if _, ok := members[sub]; !ok {
		return false
	}
	delete(members, sub)
	if len(members) == 0 {
		delete(b.groups, group)
	}
	return true
}

// Client implements contract.Transport for one view instance.
type Client struct {
	broker *Broker

	mu     sync.Mutex
	joined map[domain.GroupID]*subscriber
}

// Join subscribes to the group's events. Joining a group again
// replaces the previous stream, which covers the rejoin-after-
// disconnect path.
func (c *Client) Join(_ context.Context, group domain.GroupID) (<-chan contract.Envelope, error) {
	sub := &subscriber{ch: make(chan contract.Envelope, c.broker.bufferSize)}

	c.mu.Lock()
	prev := c.joined[group]
	c.joined[group] = sub
	c.mu.Unlock()

	if prev != nil && c.broker.deregister(group, prev) {
		close(prev.ch)
	}
	c.broker.register(group, sub)
	return sub.ch, nil
}

// Leave unsubscribes from the group. Leaving twice, or after a
// disconnect already tore the stream down, is a no-op.
func (c *Client) Leave(group domain.GroupID) error {
	c.mu.Lock()
	sub := c.joined[group]
	delete(c.joined, group)
	c.mu.Unlock()

	if sub != nil && c.broker.deregister(group, sub) {
		close(sub.ch)
	}
	return nil
}

// Emit publishes a locally-originated signal to the group.
func (c *Client) Emit(_ context.Context, group domain.GroupID, name string, payload []byte) error {
	c.broker.Publish(group, name, payload)
	return nil
}
