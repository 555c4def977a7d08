package game

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/energizer-project/ottdadmin/internal/admin"
	"github.com/energizer-project/ottdadmin/internal/protocol"
)

// ErrRconBusy is returned when a command is started while another one is
// still waiting for its output.
var ErrRconBusy = errors.New("rcon command already running")

// RconLine is one line of console output.
type RconLine struct {
	Colour uint16 `json:"colour"`
	Text   string `json:"text"`
}

// RconSender sends an rcon command.
type RconSender interface {
	SendRcon(ctx context.Context, command string) error
}

// RconRunner collects the output of rcon commands. The server answers with
// any number of Rcon packets followed by an RconEnd, and does not tag them
// with the command, so only one command is in flight at a time.
type RconRunner struct {
	run sync.Mutex

	mu      sync.Mutex
	pending *rconCall
}

type rconCall struct {
	command string
	lines   []RconLine
	done    chan struct{}
}

// NewRconRunner creates a runner; Attach it to the session registry.
func NewRconRunner() *RconRunner {
	return &RconRunner{}
}

// Attach registers the output handlers on r.
func (rr *RconRunner) Attach(r *admin.Registry) {
	admin.On(r, func(_ *admin.Session, p protocol.Rcon) error {
		rr.mu.Lock()
		defer rr.mu.Unlock()
		if rr.pending != nil {
			rr.pending.lines = append(rr.pending.lines, RconLine{Colour: p.Colour, Text: p.Output})
		}
		return nil
	})
	admin.On(r, func(_ *admin.Session, p protocol.RconEnd) error {
		rr.mu.Lock()
		defer rr.mu.Unlock()
		if rr.pending != nil {
			close(rr.pending.done)
			rr.pending = nil
		}
		return nil
	})
}

// Run sends command and waits for its output until the server marks the
// end or ctx expires.
func (rr *RconRunner) Run(ctx context.Context, sender RconSender, command string) ([]RconLine, error) {
	if !rr.run.TryLock() {
		return nil, ErrRconBusy
	}
	defer rr.run.Unlock()

	call := &rconCall{command: command, done: make(chan struct{})}
	rr.mu.Lock()
	rr.pending = call
	rr.mu.Unlock()

	if err := sender.SendRcon(ctx, command); err != nil {
		rr.clear(call)
		return nil, err
	}

	select {
	case <-call.done:
		return call.lines, nil
	case <-ctx.Done():
		rr.clear(call)
		return nil, fmt.Errorf("rcon %q: %w", command, ctx.Err())
	}
}

func (rr *RconRunner) clear(call *rconCall) {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	if rr.pending == call {
		rr.pending = nil
	}
}
