package service

import (
	"context"
	"errors"
	"sync"

	"wikiaudio/internal/domain"
	"wikiaudio/internal/protocol"
)

var (
	ErrChannelClosed = errors.New("job channel is closed")
	ErrChannelUsed   = errors.New("job channel already carried its job")
)

// JobChannel is a session-oriented channel carrying exactly one job
// descriptor into the engine session. Results do not come back on it; they
// arrive on the completion bus, which has room for large payloads.
type JobChannel struct {
	session *EngineSession

	mu        sync.Mutex
	submitted bool
	closed    bool
}

// OpenChannel opens a fresh job channel into the session.
func (s *EngineSession) OpenChannel() *JobChannel {
	return &JobChannel{session: s}
}

// Submit encodes the job and hands it to the session loop. A channel carries
// one job in its lifetime.
func (c *JobChannel) Submit(ctx context.Context, job domain.TranscodeJob) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return domain.E(domain.KindWorkerUnavailable, "channel.Submit", ErrChannelClosed)
	}
	if c.submitted {
		c.mu.Unlock()
		return domain.E(domain.KindWorkerUnavailable, "channel.Submit", ErrChannelUsed)
	}
	c.submitted = true
	c.mu.Unlock()

	data, err := protocol.EncodeRequest(job)
	if err != nil {
		return err
	}

	select {
	case c.session.inbox <- inbound{data: data}:
		return nil
	case <-ctx.Done():
		return domain.E(domain.KindWorkerUnavailable, "channel.Submit", ctx.Err())
	}
}

// Close marks the channel done. The coordinator closes it only after the
// matching completion arrived or the wait was abandoned.
func (c *JobChannel) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}
