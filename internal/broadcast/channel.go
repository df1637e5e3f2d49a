// Package broadcast implements the process-wide fan-out used by every relay
// connection. Payloads are kept in a fixed size ring; each subscriber reads
// through its own cursor, so publishers never wait for slow readers.
package broadcast

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// DefaultCapacity is the number of payloads retained for lagging subscribers.
const DefaultCapacity = 100

// ErrClosed is returned by Publish after Close, and by Receive once a closed
// channel has nothing left for the subscriber.
var ErrClosed = errors.New("broadcast channel closed")

// LaggedError reports that a subscriber fell out of the retained window.
// Its cursor has already been moved to the oldest retained payload.
type LaggedError struct {
	Missed uint64
}

func (e *LaggedError) Error() string {
	return fmt.Sprintf("subscriber lagged behind, %d messages dropped", e.Missed)
}

// Channel is a multi-producer, multi-consumer broadcast with bounded history.
type Channel struct {
	mu          sync.Mutex
	ring        []string
	written     uint64 // total number of payloads ever published
	wake        chan struct{}
	subscribers int
	closed      bool
}

// New creates a Channel retaining capacity payloads. Non-positive values
// fall back to DefaultCapacity.
func New(capacity int) *Channel {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Channel{
		ring: make([]string, capacity),
		wake: make(chan struct{}),
	}
}

// Publish appends payload and wakes every waiting subscriber. It never blocks
// and succeeds even when nobody is subscribed.
func (c *Channel) Publish(payload string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	c.ring[c.written%uint64(len(c.ring))] = payload
	c.written++

	close(c.wake)
	c.wake = make(chan struct{})
	return nil
}

// Subscribe returns a handle positioned at the current write cursor.
// Payloads published before the call are not delivered.
func (c *Channel) Subscribe() *Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.subscribers++
	return &Subscription{channel: c, next: c.written}
}

// Subscribers reports the number of open subscriptions.
func (c *Channel) Subscribers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.subscribers
}

// Close stops the channel. Subscribers drain what is retained and then get ErrClosed.
func (c *Channel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.wake)
}

// Subscription is one reader's cursor into a Channel. It must not be used
// from more than one goroutine at a time.
type Subscription struct {
	channel *Channel
	next    uint64
	done    bool
}

// Receive returns the next payload, waiting until one is published or ctx is done.
// A *LaggedError is returned instead of a payload when the subscriber missed
// messages; the following call continues from the oldest retained payload.
func (s *Subscription) Receive(ctx context.Context) (string, error) {
	c := s.channel
	capacity := uint64(len(c.ring))

	for {
		c.mu.Lock()
		if s.next < c.written {
			if c.written-s.next > capacity {
				oldest := c.written - capacity
				missed := oldest - s.next
				s.next = oldest
				c.mu.Unlock()
				return "", &LaggedError{Missed: missed}
			}
			payload := c.ring[s.next%capacity]
			s.next++
			c.mu.Unlock()
			return payload, nil
		}
		if c.closed {
			c.mu.Unlock()
			return "", ErrClosed
		}
		wake := c.wake
		c.mu.Unlock()

		select {
		case <-wake:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}

// Close releases the subscription. Calling it more than once is harmless.
func (s *Subscription) Close() {
	c := s.channel
	c.mu.Lock()
	defer c.mu.Unlock()

	if s.done {
		return
	}
	s.done = true
	c.subscribers--
}
