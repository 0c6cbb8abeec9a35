package core

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/dkeye/Relay/internal/domain"
)

var (
	ErrConnClosed   = errors.New("connection closed")
	ErrBackpressure = errors.New("backpressure")
)

// Frame is one encoded transport message.
type Frame []byte

// Conn abstracts the transport endpoint of an admitted connection.
// Owned by the adapter; the adapter must Close() it.
type Conn interface {
	ID() domain.ConnID
	// Emit queues an event for delivery and returns without waiting for the client.
	Emit(event string, payload json.RawMessage) error
	// EmitWithAck delivers an event and blocks until the client acknowledges it,
	// the connection closes or ctx is done.
	EmitWithAck(ctx context.Context, event string, payload json.RawMessage) (json.RawMessage, error)
	Close()
}
