package cli

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/energizer-project/ottdadmin/internal/admin"
	"github.com/energizer-project/ottdadmin/internal/events"
	"github.com/energizer-project/ottdadmin/internal/game"
	"github.com/energizer-project/ottdadmin/internal/protocol"
)

type sent struct {
	kind string
	id   uint32
	text string
}

type fakeController struct {
	mu    sync.Mutex
	state admin.State
	sent  []sent
	r     *admin.Registry
	err   error
}

func (f *fakeController) record(kind string, id uint32, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sent{kind: kind, id: id, text: text})
	return nil
}

func (f *fakeController) State() admin.State { return f.state }

func (f *fakeController) Poll(_ context.Context, u protocol.UpdateType, d1 uint32) error {
	return f.record("poll:"+u.String(), d1, "")
}

func (f *fakeController) SendRcon(_ context.Context, command string) error {
	if err := f.record("rcon", 0, command); err != nil {
		return err
	}
	go func() {
		f.r.Dispatch(nil, protocol.Rcon{Colour: 1, Output: "Current version: 14.1"})
		f.r.Dispatch(nil, protocol.RconEnd{Command: command})
	}()
	return nil
}

func (f *fakeController) SendGlobal(_ context.Context, message string) error {
	return f.record("global", 0, message)
}

func (f *fakeController) SendCompany(_ context.Context, message string, companyID uint32) error {
	return f.record("company", companyID, message)
}

func (f *fakeController) SendPrivate(_ context.Context, message string, clientID uint32) error {
	return f.record("private", clientID, message)
}

func (f *fakeController) calls() []sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sent(nil), f.sent...)
}

type fixture struct {
	cli   *CLI
	out   *bytes.Buffer
	ctrl  *fakeController
	state *game.State
	bus   *events.EventBus
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	r := admin.NewRegistry()
	state := game.NewState()
	state.Attach(r)
	rcon := game.NewRconRunner()
	rcon.Attach(r)

	bus := events.NewEventBus()
	t.Cleanup(bus.Stop)

	ctrl := &fakeController{state: admin.StateActive, r: r}
	out := &bytes.Buffer{}
	return &fixture{
		cli:   NewCLI(strings.NewReader(""), out, state, ctrl, rcon, bus),
		out:   out,
		ctrl:  ctrl,
		state: state,
		bus:   bus,
	}
}

func TestChatCommands(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.cli.Execute(ctx, "say hello everyone"))
	require.NoError(t, f.cli.Execute(ctx, "company 2 build more trains"))
	require.NoError(t, f.cli.Execute(ctx, "pm 7   psst"))

	assert.Equal(t, []sent{
		{kind: "global", text: "hello everyone"},
		{kind: "company", id: 2, text: "build more trains"},
		{kind: "private", id: 7, text: "psst"},
	}, f.ctrl.calls())
}

func TestUsageErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assert.ErrorContains(t, f.cli.Execute(ctx, "say"), "usage")
	assert.ErrorContains(t, f.cli.Execute(ctx, "company 2"), "usage")
	assert.ErrorContains(t, f.cli.Execute(ctx, "private abc hi"), "invalid id")
	assert.ErrorContains(t, f.cli.Execute(ctx, "poll"), "usage")
	assert.Error(t, f.cli.Execute(ctx, "poll weather"))
	assert.Empty(t, f.ctrl.calls())
}

func TestSendErrorSurfaces(t *testing.T) {
	f := newFixture(t)
	f.ctrl.err = admin.ErrNotConnected

	assert.ErrorIs(t, f.cli.Execute(context.Background(), "say hi"), admin.ErrNotConnected)
}

func TestPoll(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.cli.Execute(ctx, "poll client_info"))
	require.NoError(t, f.cli.Execute(ctx, "poll company_economy 3"))

	assert.Equal(t, []sent{
		{kind: "poll:client_info", id: protocol.PollAll},
		{kind: "poll:company_economy", id: 3},
	}, f.ctrl.calls())
}

func TestRconPrintsOutput(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.cli.Execute(context.Background(), "rcon version"))
	assert.Contains(t, f.out.String(), "Current version: 14.1")
	assert.Equal(t, []sent{{kind: "rcon", text: "version"}}, f.ctrl.calls())
}

func TestTables(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.state.ApplyWelcome(protocol.Welcome{ServerName: "Transport Tycoons", Version: "14.1", MapName: "Nowhere", MapWidth: 256, MapHeight: 256})

	r := admin.NewRegistry()
	f.state.Attach(r)
	require.NoError(t, r.Dispatch(nil, protocol.ClientInfo{ID: 4, Name: "alice", IP: "10.0.0.4", CompanyID: game.CompanySpectator}))
	require.NoError(t, r.Dispatch(nil, protocol.CompanyInfo{ID: 0, Name: "Alice Transport", Manager: "A. Lice", StartYear: 1950}))

	require.NoError(t, f.cli.Execute(ctx, "status"))
	require.NoError(t, f.cli.Execute(ctx, "clients"))
	require.NoError(t, f.cli.Execute(ctx, "companies"))

	out := f.out.String()
	assert.Contains(t, out, "Transport Tycoons")
	assert.Contains(t, out, "active")
	assert.Contains(t, out, "alice")
	assert.Contains(t, out, "spectator")
	assert.Contains(t, out, "Alice Transport")
	assert.Contains(t, out, "1950")
}

func TestUnknownAndHelp(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.cli.Execute(ctx, "frobnicate"))
	require.NoError(t, f.cli.Execute(ctx, "help"))
	require.NoError(t, f.cli.Execute(ctx, "   "))

	assert.Contains(t, f.out.String(), "Unknown command: 'frobnicate'")
	assert.Contains(t, f.out.String(), "rcon <command>")
}

func TestQuitEmitsShutdown(t *testing.T) {
	f := newFixture(t)

	got := make(chan events.Event, 1)
	f.bus.Subscribe(events.EventShutdown, "test", func(_ context.Context, e events.Event) error {
		got <- e
		return nil
	})

	f.cli.in = strings.NewReader("say one\nquit\nsay two\n")
	done := make(chan struct{})
	go func() {
		f.cli.Start(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("console did not stop after quit")
	}

	select {
	case e := <-got:
		assert.Equal(t, "cli", e.Source)
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown not emitted")
	}
	assert.Equal(t, []sent{{kind: "global", text: "one"}}, f.ctrl.calls())
}

func TestEchoesChat(t *testing.T) {
	f := newFixture(t)
	f.cli.in = blockingReader{}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.cli.Start(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return f.bus.HandlerCount(events.EventChat) == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, f.bus.EmitSync(ctx, events.Event{
		Type:    events.EventChat,
		Payload: protocol.Chat{Action: protocol.ActionChat, Dest: protocol.DestBroadcast, ID: 9, Message: "gg"},
	}))

	cancel()
	<-done

	f.cli.outMu.Lock()
	defer f.cli.outMu.Unlock()
	assert.Contains(t, f.out.String(), "[chat] #9: gg")
	assert.Equal(t, 0, f.bus.HandlerCount(events.EventChat))
}

type blockingReader struct{}

func (blockingReader) Read([]byte) (int, error) {
	select {}
}
