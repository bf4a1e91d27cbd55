package service

import (
	"sync"
)

// CompletionBus broadcasts completion envelopes to every subscriber. It is
// the second half of the two-channel protocol: job descriptors go down a
// per-job channel, results come back here, and each listener matches results
// to its own outstanding job by id.
type CompletionBus struct {
	subscribers []chan []byte
	mu          sync.RWMutex
}

func NewCompletionBus() *CompletionBus {
	return &CompletionBus{}
}

// Subscribe registers a buffered listener channel.
func (b *CompletionBus) Subscribe() chan []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan []byte, 16)
	b.subscribers = append(b.subscribers, ch)
	return ch
}

// Unsubscribe removes and closes a listener channel.
func (b *CompletionBus) Unsubscribe(ch chan []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, sub := range b.subscribers {
		if sub == ch {
			b.subscribers = append(b.subscribers[:i], b.subscribers[i+1:]...)
			close(ch)
			break
		}
	}
}

// Publish fans the envelope out to every subscriber.
func (b *CompletionBus) Publish(data []byte) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subscribers {
		select {
		case ch <- data:
		default:
			// Drop if the subscriber is not draining
		}
	}
}
