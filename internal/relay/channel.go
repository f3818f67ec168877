package relay

import (
	"sync"
	"time"
)

// Channel is a multi-producer, single-consumer queue of requests.
//
// Enqueue never blocks: the queue is unbounded and its lock is held only for
// the append, never across a host call. Exactly one dispatcher drains it.
// After Close, enqueue fails and every queued request is failed with
// ErrChannelClosed.
type Channel struct {
	mu     sync.Mutex
	queue  []*Request
	closed bool
	cause  error

	// wake holds at most one pending signal, so producers never block on it
	// and a burst of enqueues costs the consumer a single wake-up.
	wake chan struct{}
	done chan struct{}
}

// NewChannel returns an open channel.
func NewChannel() *Channel {
	return &Channel{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// Enqueue appends r. It returns an error matching ErrChannelClosed if the
// channel has been closed.
func (c *Channel) Enqueue(r *Request) error {
	c.mu.Lock()
	if c.closed {
		err := &closedError{cause: c.cause}
		c.mu.Unlock()
		return err
	}
	r.Enqueued = time.Now()
	c.queue = append(c.queue, r)
	c.mu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
	return nil
}

// TryDequeue pops the oldest request without blocking.
func (c *Channel) TryDequeue() (*Request, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.queue) == 0 {
		return nil, false
	}
	r := c.queue[0]
	c.queue[0] = nil
	c.queue = c.queue[1:]
	if len(c.queue) == 0 {
		c.queue = nil
	}
	return r, true
}

// Wake receives a value after one or more enqueues.
func (c *Channel) Wake() <-chan struct{} { return c.wake }

// Done is closed once the channel is closed.
func (c *Channel) Done() <-chan struct{} { return c.done }

// Len returns the number of queued requests.
func (c *Channel) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

// Err returns nil while open, otherwise an error matching ErrChannelClosed
// that wraps the close cause.
func (c *Channel) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		return nil
	}
	return &closedError{cause: c.cause}
}

// Close tears the channel down. Requests still queued are failed with an
// error matching ErrChannelClosed. It returns how many requests were failed.
// Only the first call has any effect.
func (c *Channel) Close(cause error) int {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return 0
	}
	c.closed = true
	c.cause = cause
	pending := c.queue
	c.queue = nil
	close(c.done)
	c.mu.Unlock()

	for _, r := range pending {
		r.claim()
		r.reply.put(Reply{Err: &closedError{cause: cause}})
	}
	return len(pending)
}
