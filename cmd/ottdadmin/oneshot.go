package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/energizer-project/ottdadmin/internal/admin"
	"github.com/energizer-project/ottdadmin/internal/cli"
	"github.com/energizer-project/ottdadmin/internal/config"
	"github.com/energizer-project/ottdadmin/internal/game"
	"github.com/energizer-project/ottdadmin/internal/protocol"
)

const oneShotTimeout = 15 * time.Second

// oneShot is a short-lived session used by the status, rcon and say
// commands.
type oneShot struct {
	session *admin.Session
	state   *game.State
	rcon    *game.RconRunner

	welcome chan struct{}
	pongs   chan uint32
	failed  chan error
}

// withSession connects, logs in and waits for the Welcome, runs fn, then
// quits.
func withSession(ctx context.Context, cfg *config.Config, fn func(ctx context.Context, o *oneShot) error) error {
	ctx, cancel := context.WithTimeout(ctx, oneShotTimeout)
	defer cancel()

	o := &oneShot{
		state:   game.NewState(),
		rcon:    game.NewRconRunner(),
		welcome: make(chan struct{}, 1),
		pongs:   make(chan uint32, 8),
		failed:  make(chan error, 1),
	}

	registry := admin.NewRegistry()
	o.state.Attach(registry)
	o.rcon.Attach(registry)
	admin.On(registry, func(_ *admin.Session, _ protocol.Welcome) error {
		offer(o.welcome, struct{}{})
		return nil
	})
	admin.On(registry, func(_ *admin.Session, p protocol.Pong) error {
		offer(o.pongs, p.Payload)
		return nil
	})
	admin.On(registry, func(_ *admin.Session, p protocol.Error) error {
		offer(o.failed, fmt.Errorf("server refused admin: %s", p.Code))
		return nil
	})
	admin.On(registry, func(_ *admin.Session, _ protocol.Full) error {
		offer(o.failed, errors.New("server has no free admin slot"))
		return nil
	})
	admin.On(registry, func(_ *admin.Session, _ protocol.Banned) error {
		offer(o.failed, errors.New("this admin is banned from the server"))
		return nil
	})

	session, err := dialSession(ctx, cfg, registry)
	if err != nil {
		return err
	}
	o.session = session
	defer session.Close()

	runDone := make(chan error, 1)
	go func() { runDone <- session.Run(ctx) }()

	adminCfg := cfg.GetAdmin()
	if err := session.Login(ctx, adminCfg.Name, adminCfg.Password, adminCfg.Version); err != nil {
		return err
	}

	select {
	case <-o.welcome:
	case err := <-o.failed:
		return err
	case err := <-runDone:
		if err == nil {
			err = errors.New("server shut down before welcoming this admin")
		}
		return err
	case <-ctx.Done():
		return fmt.Errorf("waiting for welcome: %w", ctx.Err())
	}

	if err := fn(ctx, o); err != nil {
		return err
	}

	if err := session.Quit(ctx); err != nil {
		log.Debug().Err(err).Msg("failed to send quit")
	}
	return nil
}

// sync sends a Ping and waits for its Pong. The server answers in order, so
// everything requested before the Ping has arrived once it returns.
func (o *oneShot) sync(ctx context.Context) error {
	const payload = 0x0771
	if err := o.session.Ping(ctx, payload); err != nil {
		return err
	}
	for {
		select {
		case got := <-o.pongs:
			if got == payload {
				return nil
			}
		case err := <-o.failed:
			return err
		case <-ctx.Done():
			return fmt.Errorf("waiting for pong: %w", ctx.Err())
		}
	}
}

func statusCommand(ctx context.Context, cfg *config.Config, out io.Writer) error {
	return withSession(ctx, cfg, func(ctx context.Context, o *oneShot) error {
		for _, u := range []protocol.UpdateType{protocol.UpdateDate, protocol.UpdateClientInfo, protocol.UpdateCompanyInfo, protocol.UpdateCompanyEconomy} {
			if err := o.session.Poll(ctx, u, protocol.PollAll); err != nil {
				return err
			}
		}
		if err := o.sync(ctx); err != nil {
			return err
		}

		cli.RenderStatus(out, o.state.Snapshot(), o.session.State())
		fmt.Fprintln(out)
		cli.RenderClients(out, o.state.Clients())
		fmt.Fprintln(out)
		cli.RenderCompanies(out, o.state.Companies())
		return nil
	})
}

func rconCommand(ctx context.Context, cfg *config.Config, command string, out io.Writer) error {
	return withSession(ctx, cfg, func(ctx context.Context, o *oneShot) error {
		lines, err := o.rcon.Run(ctx, o.session, command)
		if err != nil {
			return err
		}
		cli.RenderRcon(out, lines)
		return nil
	})
}

func sayCommand(ctx context.Context, cfg *config.Config, message string) error {
	return withSession(ctx, cfg, func(ctx context.Context, o *oneShot) error {
		if err := o.session.SendGlobal(ctx, message); err != nil {
			return err
		}
		return o.sync(ctx)
	})
}

func offer[T any](ch chan T, v T) {
	select {
	case ch <- v:
	default:
	}
}
