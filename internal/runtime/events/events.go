// Package events is the server's in-process notification bus.
package events

import (
	"net"
	"slices"
	"sync"
	"time"
)

// Channel is a typed fan-out of values to subscribers. Emit is synchronous:
// every subscriber runs on the emitting goroutine before Emit returns.
type Channel[T any] struct {
	mu     sync.RWMutex
	nextID uint64
	subs   []subscriber[T]
}

type subscriber[T any] struct {
	id uint64
	fn func(T)
}

// Subscription cancels a Subscribe call.
type Subscription struct {
	once   sync.Once
	cancel func()
}

// Unsubscribe removes the subscriber. Further calls are no-ops.
func (s *Subscription) Unsubscribe() {
	if s == nil {
		return
	}
	s.once.Do(s.cancel)
}

// Subscribe registers fn and returns a handle to remove it.
func (c *Channel[T]) Subscribe(fn func(T)) *Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	c.subs = append(c.subs, subscriber[T]{id: id, fn: fn})
	return &Subscription{cancel: func() { c.remove(id) }}
}

func (c *Channel[T]) remove(id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subs = slices.DeleteFunc(c.subs, func(s subscriber[T]) bool { return s.id == id })
}

// Emit delivers v to the current subscribers in subscription order.
func (c *Channel[T]) Emit(v T) {
	c.mu.RLock()
	snapshot := slices.Clone(c.subs)
	c.mu.RUnlock()

	for _, s := range snapshot {
		s.fn(v)
	}
}

// HasSubscribers reports whether anything is listening.
func (c *Channel[T]) HasSubscribers() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.subs) > 0
}

// RequestRecord describes one completed HTTP exchange.
type RequestRecord struct {
	ClientAddr string
	StartTime  time.Time
	Method     string
	Path       string
	Proto      string
	Status     int
	Duration   time.Duration
}

// Bus is the fixed set of channels a server emits on.
type Bus struct {
	Error          Channel[error]
	Listening      Channel[net.Addr]
	RequestHandled Channel[RequestRecord]
}
