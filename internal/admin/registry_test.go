package admin

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/energizer-project/ottdadmin/internal/protocol"
)

func TestRegistryOrderAndDuplicates(t *testing.T) {
	r := NewRegistry()
	var calls []string

	first := func(_ *Session, _ protocol.Packet) error {
		calls = append(calls, "first")
		return nil
	}
	second := func(_ *Session, _ protocol.Packet) error {
		calls = append(calls, "second")
		return nil
	}

	r.Register(first, protocol.ServerDate, protocol.ServerNewGame)
	r.Register(second, protocol.ServerDate)
	r.Register(first, protocol.ServerDate)

	require.NoError(t, r.Dispatch(nil, protocol.Date{Days: 1}))
	assert.Equal(t, []string{"first", "second", "first"}, calls)
	assert.Equal(t, 3, r.Count(protocol.ServerDate))

	calls = nil
	require.NoError(t, r.Dispatch(nil, protocol.NewGame{}))
	assert.Equal(t, []string{"first"}, calls)
}

func TestRegistryNoHandlers(t *testing.T) {
	r := NewRegistry()
	assert.NoError(t, r.Dispatch(nil, protocol.Console{Origin: "x"}))
	assert.Zero(t, r.Count(protocol.ServerConsole))
}

func TestRegistryTypedHandler(t *testing.T) {
	r := NewRegistry()
	var got protocol.ClientInfo
	On(r, func(_ *Session, ci protocol.ClientInfo) error {
		got = ci
		return nil
	})

	want := protocol.ClientInfo{ID: 3, Name: "frank"}
	require.NoError(t, r.Dispatch(nil, want))
	assert.Equal(t, want, got)
	assert.Equal(t, 1, r.Count(protocol.ServerClientInfo))
}

func TestRegistryCollectsFailures(t *testing.T) {
	r := NewRegistry()
	sentinel := errors.New("nope")
	ran := 0

	r.Register(func(_ *Session, _ protocol.Packet) error { panic("kaboom") }, protocol.ServerPong)
	r.Register(func(_ *Session, _ protocol.Packet) error { return sentinel }, protocol.ServerPong)
	r.Register(func(_ *Session, _ protocol.Packet) error { ran++; return nil }, protocol.ServerPong)

	err := r.Dispatch(nil, protocol.Pong{Payload: 1})
	require.Error(t, err)
	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, 1, ran)

	var he *HandlerError
	require.True(t, errors.As(err, &he))
	assert.Equal(t, protocol.ServerPong, he.Type)
	assert.Equal(t, "kaboom", he.Panic)
	assert.Contains(t, he.Error(), "panicked")
}
