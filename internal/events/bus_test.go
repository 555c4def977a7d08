package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/energizer-project/ottdadmin/internal/admin"
	"github.com/energizer-project/ottdadmin/internal/protocol"
)

func TestEmitSyncRunsHandlers(t *testing.T) {
	bus := NewEventBus()
	defer bus.Stop()

	var (
		mu   sync.Mutex
		seen []string
	)
	for _, name := range []string{"a", "b"} {
		name := name
		bus.Subscribe(EventChat, name, func(_ context.Context, e Event) error {
			mu.Lock()
			defer mu.Unlock()
			seen = append(seen, name)
			return nil
		})
	}

	require.NoError(t, bus.EmitSync(context.Background(), Event{Type: EventChat}))
	assert.ElementsMatch(t, []string{"a", "b"}, seen)
	assert.Equal(t, 2, bus.HandlerCount(EventChat))
}

func TestEmitSyncReturnsError(t *testing.T) {
	bus := NewEventBus()
	defer bus.Stop()

	sentinel := errors.New("db down")
	bus.Subscribe(EventConsole, "journal", func(context.Context, Event) error { return sentinel })
	bus.Subscribe(EventConsole, "panicky", func(context.Context, Event) error { panic("x") })

	assert.ErrorIs(t, bus.EmitSync(context.Background(), Event{Type: EventConsole}), sentinel)
}

func TestUnsubscribe(t *testing.T) {
	bus := NewEventBus()
	defer bus.Stop()

	bus.SubscribeMany("mirror", func(context.Context, Event) error { return nil }, EventDate, EventChat)
	bus.Unsubscribe(EventDate, "mirror")

	assert.Zero(t, bus.HandlerCount(EventDate))
	assert.Equal(t, 1, bus.HandlerCount(EventChat))
}

func TestStopWaitsAndRejects(t *testing.T) {
	bus := NewEventBus()

	done := make(chan struct{})
	bus.Subscribe(EventDate, "slow", func(context.Context, Event) error {
		time.Sleep(20 * time.Millisecond)
		close(done)
		return nil
	})

	bus.Emit(context.Background(), Event{Type: EventDate})
	bus.Stop()

	select {
	case <-done:
	default:
		t.Fatal("Stop returned before the handler finished")
	}

	select {
	case <-bus.StopCh():
	default:
		t.Fatal("stop channel not closed")
	}

	assert.NoError(t, bus.EmitSync(context.Background(), Event{Type: EventDate}))
	bus.Stop()
}

func TestBridgeRepublishesPackets(t *testing.T) {
	bus := NewEventBus()
	defer bus.Stop()

	got := make(chan Event, 4)
	bus.SubscribeMany("test", func(_ context.Context, e Event) error {
		got <- e
		return nil
	}, EventChat, EventSessionState)

	r := admin.NewRegistry()
	b := NewBridge(context.Background(), bus, "srv1")
	b.Attach(r)

	chat := protocol.Chat{Action: protocol.ActionChat, Message: "hello"}
	require.NoError(t, r.Dispatch(nil, chat))

	select {
	case e := <-got:
		assert.Equal(t, EventChat, e.Type)
		assert.Equal(t, "srv1", e.Source)
		assert.Equal(t, chat, e.Payload)
		assert.False(t, e.Time.IsZero())
	case <-time.After(time.Second):
		t.Fatal("no chat event")
	}

	b.PublishState(admin.StateClosed, errors.New("eof"))
	select {
	case e := <-got:
		assert.Equal(t, SessionStatePayload{State: "closed", Err: "eof"}, e.Payload)
	case <-time.After(time.Second):
		t.Fatal("no state event")
	}
}

func TestEveryServerPacketHasAnEvent(t *testing.T) {
	for tag := protocol.ServerFull; tag <= protocol.ServerCmdLogging; tag++ {
		if tag == protocol.ServerCmdLoggingOld {
			continue
		}
		_, ok := EventFor(tag)
		assert.True(t, ok, tag.String())
	}
}

func TestEmitAssignsIncreasingSeq(t *testing.T) {
	bus := NewEventBus()
	defer bus.Stop()

	var (
		mu   sync.Mutex
		seqs = map[string]uint64{}
	)
	bus.Subscribe(EventRcon, "seq", func(_ context.Context, e Event) error {
		mu.Lock()
		defer mu.Unlock()
		seqs[e.Source] = e.Seq
		return nil
	})

	bus.Emit(context.Background(), Event{Type: EventRcon, Source: "first"})
	require.NoError(t, bus.EmitSync(context.Background(), Event{Type: EventRcon, Source: "second"}))
	bus.Emit(context.Background(), Event{Type: EventRcon, Source: "kept", Seq: 99})
	bus.Stop()

	assert.NotZero(t, seqs["first"])
	assert.Greater(t, seqs["second"], seqs["first"])
	assert.Equal(t, uint64(99), seqs["kept"])
}
