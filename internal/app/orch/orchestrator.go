package orch

import (
	"context"
	"time"

	"github.com/dkeye/Relay/internal/app"
	"github.com/dkeye/Relay/internal/core"
	"github.com/dkeye/Relay/internal/domain"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"
)

// DefaultAckTimeout is used when neither the request nor the config sets one.
const DefaultAckTimeout = time.Second

// AckNotifier receives the aggregate of every ack-collecting emit.
type AckNotifier interface {
	Notify(ctx context.Context, acks []domain.Ack)
}

// Orchestrator ties admission, membership and fan-out together.
// Notifier is nil when no callback endpoint is configured; emits then skip
// acknowledgement collection entirely.
type Orchestrator struct {
	Registry   *app.Registry
	Policy     app.Policy
	Notifier   AckNotifier
	AckTimeout time.Duration

	background conc.WaitGroup
}

// Admit runs the admission policy for one connection attempt.
func (o *Orchestrator) Admit(ctx context.Context, sid domain.ConnID, creds domain.Credentials) app.Outcome {
	out := o.Policy.Decide(ctx, sid, creds)
	ev := log.Info().Str("module", "orch").Str("sid", string(sid))
	if out.Rejected() {
		ev.Str("reason", string(out.Reason)).Msg("connection rejected")
	} else {
		ev.Str("room", string(out.Room)).Msg("connection admitted")
	}
	return out
}

// Attach binds an admitted connection and returns its initial membership.
func (o *Orchestrator) Attach(conn core.Conn, out app.Outcome) []domain.RoomName {
	rooms := out.Rooms()
	o.Registry.Bind(conn, rooms...)
	return rooms
}

// Disconnect drops every membership of the connection. Safe to call more
// than once; only the first call has an effect.
func (o *Orchestrator) Disconnect(sid domain.ConnID, reason string) {
	if !o.Registry.Unbind(sid) {
		return
	}
	log.Info().Str("module", "orch").Str("sid", string(sid)).Str("reason", reason).Msg("connection gone")
}

// CloseAll closes every bound connection. Each connection runs its own
// disconnect path as its read pump exits.
func (o *Orchestrator) CloseAll() {
	for _, c := range o.Registry.Conns() {
		c.Close()
	}
}

func (o *Orchestrator) ackTimeout(override time.Duration) time.Duration {
	if override > 0 {
		return override
	}
	if o.AckTimeout > 0 {
		return o.AckTimeout
	}
	return DefaultAckTimeout
}
