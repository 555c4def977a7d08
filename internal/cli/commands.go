// Package cli implements the interactive console of ottdadmin and the table
// renderers shared with the one-shot commands.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/energizer-project/ottdadmin/internal/admin"
	"github.com/energizer-project/ottdadmin/internal/events"
	"github.com/energizer-project/ottdadmin/internal/game"
	"github.com/energizer-project/ottdadmin/internal/protocol"
	"github.com/energizer-project/ottdadmin/internal/util"
)

const rconTimeout = 10 * time.Second

// errQuit ends the console loop.
var errQuit = errors.New("quit")

// Controller is the session-facing side of the console.
type Controller interface {
	State() admin.State
	Poll(ctx context.Context, u protocol.UpdateType, d1 uint32) error
	SendRcon(ctx context.Context, command string) error
	SendGlobal(ctx context.Context, message string) error
	SendCompany(ctx context.Context, message string, companyID uint32) error
	SendPrivate(ctx context.Context, message string, clientID uint32) error
}

// CLI provides an interactive command-line interface.
type CLI struct {
	in       io.Reader
	out      io.Writer
	outMu    sync.Mutex
	state    *game.State
	ctrl     Controller
	rcon     *game.RconRunner
	eventBus *events.EventBus
	logger   zerolog.Logger
}

// NewCLI creates a new CLI handler reading commands from in.
func NewCLI(in io.Reader, out io.Writer, state *game.State, ctrl Controller, rcon *game.RconRunner, eventBus *events.EventBus) *CLI {
	return &CLI{
		in:       in,
		out:      out,
		state:    state,
		ctrl:     ctrl,
		rcon:     rcon,
		eventBus: eventBus,
		logger:   util.ComponentLogger("cli"),
	}
}

// Start runs the console until ctx is cancelled, the input ends or the user
// quits. Chat and console lines from the server are echoed as they arrive.
func (c *CLI) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.printf("\nottdadmin console ready. Type 'help' for available commands.\n")

	c.eventBus.SubscribeMany("cli", c.onEvent, events.EventChat, events.EventConsole, events.EventSessionState)
	defer func() {
		for _, t := range []events.EventType{events.EventChat, events.EventConsole, events.EventSessionState} {
			c.eventBus.Unsubscribe(t, "cli")
		}
	}()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(c.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			err := c.Execute(ctx, line)
			if errors.Is(err, errQuit) {
				return
			}
			if err != nil {
				c.printf("Error: %v\n", err)
			}
		}
	}
}

// Execute runs one console line.
func (c *CLI) Execute(ctx context.Context, line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}

	cmd, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	switch strings.ToLower(cmd) {
	case "help", "h", "?":
		c.printHelp()
	case "status", "s":
		c.withOut(func(w io.Writer) { RenderStatus(w, c.state.Snapshot(), c.ctrl.State()) })
	case "clients":
		c.withOut(func(w io.Writer) { RenderClients(w, c.state.Clients()) })
	case "companies":
		c.withOut(func(w io.Writer) { RenderCompanies(w, c.state.Companies()) })
	case "say":
		if rest == "" {
			return fmt.Errorf("usage: say <message>")
		}
		return c.ctrl.SendGlobal(ctx, rest)
	case "company":
		id, msg, err := idAndMessage(rest, "company <id> <message>")
		if err != nil {
			return err
		}
		return c.ctrl.SendCompany(ctx, msg, id)
	case "private", "pm":
		id, msg, err := idAndMessage(rest, "private <client id> <message>")
		if err != nil {
			return err
		}
		return c.ctrl.SendPrivate(ctx, msg, id)
	case "rcon":
		return c.cmdRcon(ctx, rest)
	case "poll":
		return c.cmdPoll(ctx, rest)
	case "quit", "exit", "q":
		c.printf("Shutting down ottdadmin...\n")
		c.eventBus.Emit(context.WithoutCancel(ctx), events.Event{Type: events.EventShutdown, Source: "cli"})
		return errQuit
	default:
		c.printf("Unknown command: '%s'. Type 'help' for available commands.\n", cmd)
	}
	return nil
}

func (c *CLI) cmdRcon(ctx context.Context, command string) error {
	if command == "" {
		return fmt.Errorf("usage: rcon <command>")
	}

	ctx, cancel := context.WithTimeout(ctx, rconTimeout)
	defer cancel()

	lines, err := c.rcon.Run(ctx, c.ctrl, command)
	if err != nil {
		return err
	}
	c.withOut(func(w io.Writer) { RenderRcon(w, lines) })
	return nil
}

func (c *CLI) cmdPoll(ctx context.Context, args string) error {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		return fmt.Errorf("usage: poll <type> [id]")
	}

	u, err := protocol.ParseUpdateType(fields[0])
	if err != nil {
		return err
	}
	d1 := protocol.PollAll
	if len(fields) > 1 {
		id, err := strconv.ParseUint(fields[1], 10, 32)
		if err != nil {
			return fmt.Errorf("invalid id: %s", fields[1])
		}
		d1 = uint32(id)
	}
	return c.ctrl.Poll(ctx, u, d1)
}

func (c *CLI) onEvent(_ context.Context, e events.Event) error {
	switch p := e.Payload.(type) {
	case protocol.Chat:
		name := fmt.Sprintf("#%d", p.ID)
		if client, ok := c.state.Client(p.ID); ok && client.Name != "" {
			name = client.Name
		}
		c.printf("[%s] %s: %s\n", p.Action, name, p.Message)
	case protocol.Console:
		c.printf("[console:%s] %s\n", p.Origin, p.Message)
	case events.SessionStatePayload:
		if p.Err != "" {
			c.printf("[session] %s (%s)\n", p.State, p.Err)
		} else {
			c.printf("[session] %s\n", p.State)
		}
	}
	return nil
}

// printHelp displays available commands.
func (c *CLI) printHelp() {
	c.printf(`
Commands:
  status                       Show session and game status
  clients                      List connected clients
  companies                    List companies
  say <message>                Broadcast a chat message
  company <id> <message>       Message the members of a company
  private <client id> <msg>    Message one client
  rcon <command>               Run a server console command
  poll <type> [id]             Request an update (client_info, company_info, ...)
  quit                         Shut down ottdadmin
  help                         Show this help message

`)
}

func (c *CLI) printf(format string, args ...interface{}) {
	c.outMu.Lock()
	defer c.outMu.Unlock()
	fmt.Fprintf(c.out, format, args...)
}

func (c *CLI) withOut(fn func(w io.Writer)) {
	c.outMu.Lock()
	defer c.outMu.Unlock()
	fn(c.out)
}

func idAndMessage(args, usage string) (uint32, string, error) {
	idStr, msg, _ := strings.Cut(args, " ")
	msg = strings.TrimSpace(msg)
	if idStr == "" || msg == "" {
		return 0, "", fmt.Errorf("usage: %s", usage)
	}
	id, err := strconv.ParseUint(idStr, 10, 32)
	if err != nil {
		return 0, "", fmt.Errorf("invalid id: %s", idStr)
	}
	return uint32(id), msg, nil
}
