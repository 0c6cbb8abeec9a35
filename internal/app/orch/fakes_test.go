package orch_test

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/dkeye/Relay/internal/app"
	"github.com/dkeye/Relay/internal/core"
	"github.com/dkeye/Relay/internal/domain"
)

// fakeConn answers acks after delay. A negative delay means it never answers.
type fakeConn struct {
	id    domain.ConnID
	delay time.Duration
	reply json.RawMessage
	fail  error

	mu     sync.Mutex
	events []string
	closed bool
}

func (c *fakeConn) ID() domain.ConnID { return c.id }

func (c *fakeConn) Emit(event string, _ json.RawMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail != nil {
		return c.fail
	}
	c.events = append(c.events, event)
	return nil
}

func (c *fakeConn) EmitWithAck(ctx context.Context, event string, payload json.RawMessage) (json.RawMessage, error) {
	if err := c.Emit(event, payload); err != nil {
		return nil, err
	}
	if c.delay < 0 {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	select {
	case <-time.After(c.delay):
		return c.reply, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func (c *fakeConn) Events() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.events...)
}

var _ core.Conn = (*fakeConn)(nil)

type fixedPolicy struct {
	out app.Outcome
}

func (p fixedPolicy) Decide(context.Context, domain.ConnID, domain.Credentials) app.Outcome {
	return p.out
}

type recordingNotifier struct {
	got chan []domain.Ack
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{got: make(chan []domain.Ack, 4)}
}

func (n *recordingNotifier) Notify(_ context.Context, acks []domain.Ack) {
	n.got <- acks
}
