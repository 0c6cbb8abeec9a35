package orch_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/dkeye/Relay/internal/app"
	"github.com/dkeye/Relay/internal/app/orch"
	"github.com/dkeye/Relay/internal/core"
	"github.com/dkeye/Relay/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOrch() *orch.Orchestrator {
	return &orch.Orchestrator{Registry: app.NewRegistry()}
}

func TestEmit_CollectsAcksWithinWindow(t *testing.T) {
	o := newOrch()
	a := &fakeConn{id: "a", delay: 10 * time.Millisecond, reply: json.RawMessage(`"A"`)}
	b := &fakeConn{id: "b", delay: 40 * time.Millisecond, reply: json.RawMessage(`{"ok":true}`)}
	c := &fakeConn{id: "c", delay: -1}
	o.Registry.Bind(c, "room")
	o.Registry.Bind(a, "room")
	o.Registry.Bind(b, "room")

	start := time.Now()
	acks := o.Emit(context.Background(), orch.EmitRequest{
		To: "room", Event: "ping", Payload: json.RawMessage(`1`), Ack: true, Timeout: 50 * time.Millisecond,
	})
	elapsed := time.Since(start)

	require.Len(t, acks, 3)
	assert.Equal(t, domain.Ack{ID: "a", Acked: true, Response: json.RawMessage(`"A"`)}, acks[0])
	assert.Equal(t, domain.Ack{ID: "b", Acked: true, Response: json.RawMessage(`{"ok":true}`)}, acks[1])
	assert.Equal(t, domain.Ack{ID: "c"}, acks[2])
	assert.GreaterOrEqual(t, elapsed, 50*time.Millisecond)
	assert.Less(t, elapsed, 500*time.Millisecond)
}

func TestEmit_FinishesEarlyWhenEveryoneAnswered(t *testing.T) {
	o := newOrch()
	o.Registry.Bind(&fakeConn{id: "a", reply: json.RawMessage(`1`)}, "room")
	o.Registry.Bind(&fakeConn{id: "b", reply: json.RawMessage(`2`)}, "room")

	start := time.Now()
	acks := o.Emit(context.Background(), orch.EmitRequest{To: "room", Event: "e", Ack: true, Timeout: 2 * time.Second})

	assert.Less(t, time.Since(start), time.Second)
	require.Len(t, acks, 2)
	assert.True(t, acks[0].Acked)
	assert.True(t, acks[1].Acked)
}

func TestEmit_DeliveryFailureIsAbsent(t *testing.T) {
	o := newOrch()
	o.Registry.Bind(&fakeConn{id: "a", reply: json.RawMessage(`1`)}, "room")
	o.Registry.Bind(&fakeConn{id: "b", fail: core.ErrConnClosed}, "room")

	acks := o.Emit(context.Background(), orch.EmitRequest{To: "room", Event: "e", Ack: true, Timeout: 20 * time.Millisecond})

	require.Len(t, acks, 2)
	assert.True(t, acks[0].Acked)
	assert.Equal(t, domain.Ack{ID: "b"}, acks[1])
}

func TestEmit_EmptyRoomSucceeds(t *testing.T) {
	o := newOrch()

	acks := o.Emit(context.Background(), orch.EmitRequest{To: "nobody", Event: "e", Ack: true})
	require.NotNil(t, acks)
	assert.Empty(t, acks)

	assert.Nil(t, o.Emit(context.Background(), orch.EmitRequest{To: "nobody", Event: "e"}))
}

func TestEmit_WithoutAckReachesEveryMember(t *testing.T) {
	o := newOrch()
	a := &fakeConn{id: "a"}
	b := &fakeConn{id: "b", fail: errors.New("gone")}
	c := &fakeConn{id: "c"}
	o.Registry.Bind(a, "room")
	o.Registry.Bind(b, "room")
	o.Registry.Bind(c, "other")

	o.Emit(context.Background(), orch.EmitRequest{To: "room", Event: "hello"})

	assert.Equal(t, []string{"hello"}, a.Events())
	assert.Empty(t, c.Events())
}

func TestTargets_DirectAddressing(t *testing.T) {
	o := newOrch()
	o.Registry.Bind(&fakeConn{id: "b"}, "room")
	o.Registry.Bind(&fakeConn{id: "a"})

	got := o.Targets("a")
	require.Len(t, got, 1)
	assert.Equal(t, domain.ConnID("a"), got[0].ID())

	require.NoError(t, o.Registry.Join("a", "room"))
	got = o.Targets("room")
	require.Len(t, got, 2)
	assert.Equal(t, domain.ConnID("a"), got[0].ID())

	require.NoError(t, o.Registry.Join("b", "a"))
	got = o.Targets("a")
	require.Len(t, got, 2)
	assert.Equal(t, domain.ConnID("a"), got[0].ID())
	assert.Equal(t, domain.ConnID("b"), got[1].ID())
}

func TestPublish_SendsAggregateToNotifier(t *testing.T) {
	n := newRecordingNotifier()
	o := &orch.Orchestrator{Registry: app.NewRegistry(), Notifier: n, AckTimeout: 30 * time.Millisecond}
	o.Registry.Bind(&fakeConn{id: "a", reply: json.RawMessage(`"yes"`)}, "room")
	o.Registry.Bind(&fakeConn{id: "b", delay: -1}, "room")

	ctx, cancel := context.WithCancel(context.Background())
	o.Publish(ctx, orch.EmitRequest{To: "room", Event: "e"})
	cancel()

	select {
	case acks := <-n.got:
		require.Len(t, acks, 2)
		assert.True(t, acks[0].Acked)
		assert.False(t, acks[1].Acked)
	case <-time.After(time.Second):
		t.Fatal("notifier was not called")
	}
}

func TestPublish_WithoutNotifierIsSynchronous(t *testing.T) {
	o := newOrch()
	a := &fakeConn{id: "a", delay: -1}
	o.Registry.Bind(a, "room")

	o.Publish(context.Background(), orch.EmitRequest{To: "room", Event: "e", Ack: true})

	assert.Equal(t, []string{"e"}, a.Events())
}

func TestAdmitAndAttach(t *testing.T) {
	o := &orch.Orchestrator{
		Registry: app.NewRegistry(),
		Policy:   fixedPolicy{out: app.Outcome{Decision: app.Admitted, Room: "room-R"}},
	}
	c := &fakeConn{id: "a"}

	out := o.Admit(context.Background(), c.ID(), domain.Credentials{Token: "t"})
	require.False(t, out.Rejected())

	rooms := o.Attach(c, out)
	assert.Equal(t, []domain.RoomName{"room-R"}, rooms)
	assert.Len(t, o.Registry.MembersOf("room-R"), 1)
}

func TestDisconnect_RemovesEveryMembership(t *testing.T) {
	o := newOrch()
	o.Registry.Bind(&fakeConn{id: "a"}, "x", "y")
	o.Registry.Bind(&fakeConn{id: "b"}, "x")

	o.Disconnect("a", "transport close")
	o.Disconnect("a", "transport close")

	assert.Len(t, o.Registry.MembersOf("x"), 1)
	assert.Empty(t, o.Registry.MembersOf("y"))
	_, ok := o.Registry.Find("a")
	assert.False(t, ok)
}

func TestJoinRoom(t *testing.T) {
	o := newOrch()
	o.Registry.Bind(&fakeConn{id: "a"}, "x")

	assert.False(t, o.JoinRoom("ghost", "x", "y"))
	assert.Len(t, o.Registry.MembersOf("x"), 1)
	assert.Empty(t, o.Registry.MembersOf("y"))

	assert.True(t, o.JoinRoom("a", "x", "y", "y"))
	assert.Len(t, o.Registry.MembersOf("x"), 1)
	assert.Len(t, o.Registry.MembersOf("y"), 1)

	assert.True(t, o.LeaveRoom("a", "y"))
	assert.Empty(t, o.Registry.MembersOf("y"))
	assert.False(t, o.LeaveRoom("ghost", "x"))
}

func TestCloseAll(t *testing.T) {
	o := newOrch()
	a := &fakeConn{id: "a"}
	b := &fakeConn{id: "b"}
	o.Registry.Bind(a)
	o.Registry.Bind(b, "x")

	o.CloseAll()

	assert.True(t, a.closed)
	assert.True(t, b.closed)
}

func TestDrain_WaitsForBackgroundCallbacks(t *testing.T) {
	n := newRecordingNotifier()
	o := &orch.Orchestrator{Registry: app.NewRegistry(), Notifier: n, AckTimeout: 40 * time.Millisecond}
	o.Registry.Bind(&fakeConn{id: "a", delay: -1}, "room")

	o.Publish(context.Background(), orch.EmitRequest{To: "room", Event: "e"})

	short, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	assert.False(t, o.Drain(short))

	assert.True(t, o.Drain(context.Background()))
	select {
	case acks := <-n.got:
		require.Len(t, acks, 1)
		assert.False(t, acks[0].Acked)
	default:
		t.Fatal("callback did not run before Drain returned")
	}
}
