package orch

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/dkeye/Relay/internal/core"
	"github.com/dkeye/Relay/internal/domain"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"
)

type EmitRequest struct {
	To      domain.RoomName
	Event   string
	Payload json.RawMessage

	// Ack asks every target to acknowledge within Timeout, or the default window.
	Ack     bool
	Timeout time.Duration
}

// Targets resolves the members of the room. A connection whose id equals the
// room name is addressed directly.
func (o *Orchestrator) Targets(to domain.RoomName) []core.Conn {
	members := o.Registry.MembersOf(to)
	direct, ok := o.Registry.Find(domain.ConnID(to))
	if !ok {
		return members
	}
	for _, m := range members {
		if m.ID() == direct.ID() {
			return members
		}
	}
	members = append(members, direct)
	sort.Slice(members, func(i, j int) bool { return members[i].ID() < members[j].ID() })
	return members
}

// Emit delivers one event to every target. With req.Ack set it blocks until
// every target answered or the ack window closed, and returns one entry per
// target ordered by connection id. Unreachable targets are recorded as not acked.
func (o *Orchestrator) Emit(ctx context.Context, req EmitRequest) []domain.Ack {
	targets := o.Targets(req.To)
	logger := log.With().Str("module", "orch").Str("room", string(req.To)).Str("event", req.Event).Logger()
	logger.Debug().Int("targets", len(targets)).Bool("ack", req.Ack).Msg("emitting")

	if !req.Ack {
		for _, c := range targets {
			if err := c.Emit(req.Event, req.Payload); err != nil {
				logger.Debug().Err(err).Str("sid", string(c.ID())).Msg("delivery failed")
			}
		}
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, o.ackTimeout(req.Timeout))
	defer cancel()

	acks := make([]domain.Ack, len(targets))
	var wg conc.WaitGroup
	for i, c := range targets {
		wg.Go(func() {
			acks[i] = domain.Ack{ID: c.ID()}
			resp, err := c.EmitWithAck(ctx, req.Event, req.Payload)
			if err != nil {
				logger.Debug().Err(err).Str("sid", string(c.ID())).Msg("no acknowledgement")
				return
			}
			acks[i].Acked = true
			acks[i].Response = resp
		})
	}
	wg.Wait()

	logger.Debug().Int("acked", countAcked(acks)).Int("targets", len(acks)).Msg("acknowledgements collected")
	return acks
}

// Publish is the control plane entry point. It never blocks on clients: when
// acknowledgements are collected, the wait and the callback run in the
// background and outlive the caller's context.
func (o *Orchestrator) Publish(ctx context.Context, req EmitRequest) {
	if o.Notifier == nil {
		req.Ack = false
		o.Emit(ctx, req)
		return
	}
	req.Ack = true
	bg := context.WithoutCancel(ctx)
	o.background.Go(func() {
		acks := o.Emit(bg, req)
		o.Notifier.Notify(bg, acks)
	})
}

// Drain waits for background emits and their callbacks. It reports false
// when ctx ends first.
func (o *Orchestrator) Drain(ctx context.Context) bool {
	done := make(chan struct{})
	go func() {
		o.background.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}

func countAcked(acks []domain.Ack) int {
	n := 0
	for _, a := range acks {
		if a.Acked {
			n++
		}
	}
	return n
}
