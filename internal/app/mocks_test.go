package app_test

import (
	"context"
	"encoding/json"

	"github.com/dkeye/Relay/internal/auth"
	"github.com/dkeye/Relay/internal/domain"
	"github.com/stretchr/testify/mock"
)

// MockVerifier stands in for the external auth endpoint.
type MockVerifier struct {
	mock.Mock
}

func (m *MockVerifier) Verify(ctx context.Context, creds domain.Credentials) auth.Result {
	args := m.Called(creds)
	return args.Get(0).(auth.Result)
}

type stubConn struct {
	id domain.ConnID
}

func newStubConn(id string) *stubConn { return &stubConn{id: domain.ConnID(id)} }

func (c *stubConn) ID() domain.ConnID { return c.id }

func (c *stubConn) Emit(string, json.RawMessage) error { return nil }

func (c *stubConn) EmitWithAck(context.Context, string, json.RawMessage) (json.RawMessage, error) {
	return nil, nil
}

func (c *stubConn) Close() {}
