package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCompletionBus_Broadcast(t *testing.T) {
	bus := NewCompletionBus()

	a := bus.Subscribe()
	b := bus.Subscribe()
	defer bus.Unsubscribe(b)

	bus.Publish([]byte("payload"))

	assert.Equal(t, []byte("payload"), <-a)
	assert.Equal(t, []byte("payload"), <-b)

	bus.Unsubscribe(a)
	_, open := <-a
	assert.False(t, open, "unsubscribed channel should be closed")
}

func TestCompletionBus_SlowSubscriberDoesNotBlock(t *testing.T) {
	bus := NewCompletionBus()

	slow := bus.Subscribe()
	defer bus.Unsubscribe(slow)

	done := make(chan struct{})
	go func() {
		// Overflow the buffer; extra messages drop rather than block.
		for i := 0; i < 64; i++ {
			bus.Publish([]byte("x"))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
}
