package dealer

import (
	"context"
	"sync"

	errspkg "github.com/drblury/axonbridge/internal/runtime/errors"
	"github.com/drblury/axonbridge/internal/runtime/envelope"
)

// route identifies a mailbox. Untagged traffic and every distinct tag,
// including the empty tag, get their own mailbox.
type route struct {
	tagged bool
	tag    string
}

func untagged() route         { return route{} }
func tagged(tag string) route { return route{tagged: true, tag: tag} }

type mailbox struct {
	pending []envelope.Message
	waiters []chan envelope.Message
}

func (m *mailbox) empty() bool {
	return len(m.pending) == 0 && len(m.waiters) == 0
}

// inbox buffers received messages until a receiver asks for their route.
// Receivers on the same route are served first come, first served.
type inbox struct {
	mu     sync.Mutex
	boxes  map[route]*mailbox
	closed bool
}

func newInbox() *inbox {
	return &inbox{boxes: make(map[route]*mailbox)}
}

func (in *inbox) box(r route) *mailbox {
	b, ok := in.boxes[r]
	if !ok {
		b = &mailbox{}
		in.boxes[r] = b
	}
	return b
}

func (in *inbox) release(r route, b *mailbox) {
	if b.empty() {
		delete(in.boxes, r)
	}
}

// deliver hands msg to the oldest waiter on r or queues it. It reports false
// once the inbox is closed.
func (in *inbox) deliver(r route, msg envelope.Message) bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.closed {
		return false
	}
	b := in.box(r)
	if len(b.waiters) > 0 {
		w := b.waiters[0]
		b.waiters = b.waiters[1:]
		w <- msg
		in.release(r, b)
		return true
	}
	b.pending = append(b.pending, msg)
	return true
}

// wait blocks until a message for r arrives, ctx ends or the inbox closes.
func (in *inbox) wait(ctx context.Context, r route) (envelope.Message, error) {
	in.mu.Lock()
	if in.closed {
		in.mu.Unlock()
		return envelope.Message{}, errspkg.ErrClientClosed
	}
	b := in.box(r)
	if len(b.pending) > 0 {
		msg := b.pending[0]
		b.pending = b.pending[1:]
		in.release(r, b)
		in.mu.Unlock()
		return msg, nil
	}
	ch := make(chan envelope.Message, 1)
	b.waiters = append(b.waiters, ch)
	in.mu.Unlock()

	select {
	case msg, ok := <-ch:
		if !ok {
			return envelope.Message{}, errspkg.ErrClientClosed
		}
		return msg, nil
	case <-ctx.Done():
		in.abandon(r, ch)
		return envelope.Message{}, ctx.Err()
	}
}

// abandon removes a cancelled waiter. A message that raced the cancellation
// goes back to the front of the queue so it is not lost.
func (in *inbox) abandon(r route, ch chan envelope.Message) {
	in.mu.Lock()
	defer in.mu.Unlock()
	b, ok := in.boxes[r]
	if ok {
		for i, w := range b.waiters {
			if w == ch {
				b.waiters = append(b.waiters[:i], b.waiters[i+1:]...)
				in.release(r, b)
				return
			}
		}
	}
	select {
	case msg, ok := <-ch:
		if !ok || in.closed {
			return
		}
		b = in.box(r)
		if len(b.waiters) > 0 {
			w := b.waiters[0]
			b.waiters = b.waiters[1:]
			w <- msg
			in.release(r, b)
			return
		}
		b.pending = append([]envelope.Message{msg}, b.pending...)
	default:
	}
}

// waiting returns the number of blocked receivers.
func (in *inbox) waiting() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	n := 0
	for _, b := range in.boxes {
		n += len(b.waiters)
	}
	return n
}

// buffered returns the number of messages nobody has asked for yet.
func (in *inbox) buffered() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	n := 0
	for _, b := range in.boxes {
		n += len(b.pending)
	}
	return n
}

func (in *inbox) close() {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.closed {
		return
	}
	in.closed = true
	for _, b := range in.boxes {
		for _, w := range b.waiters {
			close(w)
		}
	}
	in.boxes = nil
}
