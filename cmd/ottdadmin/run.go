package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/energizer-project/ottdadmin/internal/admin"
	"github.com/energizer-project/ottdadmin/internal/api"
	"github.com/energizer-project/ottdadmin/internal/cli"
	"github.com/energizer-project/ottdadmin/internal/config"
	"github.com/energizer-project/ottdadmin/internal/connector"
	"github.com/energizer-project/ottdadmin/internal/db"
	"github.com/energizer-project/ottdadmin/internal/events"
	"github.com/energizer-project/ottdadmin/internal/game"
	"github.com/energizer-project/ottdadmin/internal/health"
	"github.com/energizer-project/ottdadmin/internal/network"
	"github.com/energizer-project/ottdadmin/internal/protocol"
	"github.com/energizer-project/ottdadmin/internal/scheduler"
	"github.com/energizer-project/ottdadmin/internal/telemetry"
	"github.com/energizer-project/ottdadmin/internal/util"
)

const (
	mqttHeartbeat   = 30 * time.Second
	quitTimeout     = 2 * time.Second
	shutdownTimeout = 15 * time.Second
)

// runCommand wires every component and runs until a signal, a console quit
// or a fatal session error.
func runCommand(ctx context.Context, cfg *config.Config, console bool) error {
	sysInfo := util.GetSystemInfo()
	log.Info().
		Str("version", AppVersion).
		Str("hostname", sysInfo.Hostname).
		Str("os", sysInfo.OS).
		Int("cores", sysInfo.CPUCores).
		Uint64("memory_mb", sysInfo.TotalMemory).
		Msg("starting ottdadmin")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	eventBus := events.NewEventBus()
	defer eventBus.Stop()
	eventBus.Subscribe(events.EventShutdown, "main", func(_ context.Context, e events.Event) error {
		log.Info().Str("source", e.Source).Msg("shutdown requested")
		cancel()
		return nil
	})

	registry := admin.NewRegistry()
	state := game.NewState()
	state.Attach(registry)
	rcon := game.NewRconRunner()
	rcon.Attach(registry)
	bridge := events.NewBridge(ctx, eventBus, cfg.GetAdmin().Addr())
	bridge.Attach(registry)
	admin.On(registry, func(_ *admin.Session, _ protocol.Welcome) error {
		bridge.PublishState(admin.StateActive, nil)
		return nil
	})

	link := &admin.Link{}

	sched := scheduler.NewScheduler(scheduler.IntervalsFrom(cfg.GetScheduler()))
	sched.SetSender(link)

	apiDeps := api.Deps{
		Config:     cfg,
		Bus:        eventBus,
		State:      state,
		Controller: link,
		Rcon:       rcon,
	}

	if cfg.Journal.Enabled {
		journal, err := db.NewJournal(cfg.Journal.Path)
		if err != nil {
			return fmt.Errorf("failed to open journal: %w", err)
		}
		// The bus drains its handlers before the journal closes.
		defer func() {
			eventBus.Stop()
			journal.Close()
		}()
		journal.Attach(eventBus)
		sched.SetJournal(journal, time.Duration(cfg.Journal.RetentionDays)*24*time.Hour)
		apiDeps.Journal = journal
	}

	var mqttHandler *telemetry.MQTTHandler
	if cfg.MQTT.Enabled {
		var err error
		mqttHandler, err = telemetry.NewMQTTHandler(cfg.MQTT, eventBus)
		if err != nil {
			log.Warn().Err(err).Msg("failed to initialize MQTT, telemetry disabled")
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer cancel()
		return superviseSession(gctx, cfg, registry, link, bridge)
	})

	g.Go(func() error {
		log.Info().Msg("starting task scheduler")
		sched.Start(gctx)
		return nil
	})

	healthMgr := health.NewManager(healthConfig(cfg), link, eventBus)
	g.Go(func() error {
		healthMgr.Start(gctx)
		return nil
	})

	if cfg.API.Enabled {
		apiServer := api.NewServer(apiDeps)
		g.Go(func() error {
			if err := apiServer.Start(gctx); err != nil {
				log.Warn().Err(err).Msg("API server failed (non-fatal)")
			}
			return nil
		})
	}

	if mqttHandler != nil {
		g.Go(func() error {
			log.Info().Msg("starting MQTT telemetry")
			if err := mqttHandler.Start(gctx, mqttHeartbeat); err != nil {
				log.Warn().Err(err).Msg("MQTT telemetry failed")
			}
			return nil
		})
	}

	if cfg.Discord.Enabled {
		discord := connector.NewDiscordConnector(cfg.Discord, eventBus, state)
		g.Go(func() error {
			discord.Start(gctx)
			return nil
		})
	}

	if console {
		consoleHandler := cli.NewCLI(os.Stdin, os.Stdout, state, link, rcon, eventBus)
		g.Go(func() error {
			consoleHandler.Start(gctx)
			return nil
		})
	}

	<-gctx.Done()
	log.Info().Msg("initiating graceful shutdown...")

	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	var err error
	select {
	case err = <-done:
		log.Info().Msg("all tasks stopped")
	case <-time.After(shutdownTimeout):
		log.Warn().Dur("timeout", shutdownTimeout).Msg("shutdown timed out, forcing exit")
	}

	log.Info().Msg("ottdadmin stopped")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// healthConfig derives the watchdog settings: a session is stale after three
// missed ping intervals.
func healthConfig(cfg *config.Config) health.Config {
	sched := cfg.GetScheduler()
	hc := health.Config{
		Interval:   time.Duration(sched.HealthCheckSec) * time.Second,
		StaleAfter: 3 * time.Duration(sched.PingIntervalSec) * time.Second,
	}
	if cfg.Journal.Enabled {
		hc.DiskPath = filepath.Dir(cfg.Journal.Path)
	}
	return hc
}

// superviseSession keeps a session to the server, reconnecting after the
// configured delay. It returns when ctx ends, or with the session error when
// reconnecting is disabled.
func superviseSession(ctx context.Context, cfg *config.Config, registry *admin.Registry, link *admin.Link, bridge *events.Bridge) error {
	for {
		err := runSession(ctx, cfg, registry, link, bridge)
		link.Set(nil)
		bridge.PublishState(admin.StateClosed, err)

		if ctx.Err() != nil {
			return nil
		}

		delay := cfg.Session.ReconnectDelay()
		if delay <= 0 {
			if err == nil {
				log.Info().Msg("server shut down, not reconnecting")
			}
			return err
		}

		if err != nil {
			log.Warn().Err(err).Dur("retry_in", delay).Msg("admin session ended")
		} else {
			log.Info().Dur("retry_in", delay).Msg("server shut down, reconnecting later")
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
	}
}

// runSession dials, logs in, subscribes and runs one session. On
// cancellation the server is told this admin is leaving before the
// connection closes.
func runSession(ctx context.Context, cfg *config.Config, registry *admin.Registry, link *admin.Link, bridge *events.Bridge) error {
	adminCfg := cfg.GetAdmin()
	bridge.PublishState(admin.StateConnecting, nil)

	session, err := dialSession(ctx, cfg, registry)
	if err != nil {
		return err
	}
	defer session.Close()

	if err := session.Login(ctx, adminCfg.Name, adminCfg.Password, adminCfg.Version); err != nil {
		return err
	}
	bridge.PublishState(session.State(), nil)

	if err := subscribeAll(ctx, session, cfg.GetSubscriptions()); err != nil {
		return err
	}
	link.Set(session)

	runCtx, stop := context.WithCancel(context.WithoutCancel(ctx))
	defer stop()
	go func() {
		select {
		case <-ctx.Done():
			quitCtx, cancel := context.WithTimeout(runCtx, quitTimeout)
			defer cancel()
			if err := session.Quit(quitCtx); err != nil {
				log.Debug().Err(err).Msg("failed to send quit")
			}
			stop()
		case <-runCtx.Done():
		}
	}()

	err = session.Run(runCtx)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// dialSession opens a session using the session section of cfg.
func dialSession(ctx context.Context, cfg *config.Config, registry *admin.Registry) (*admin.Session, error) {
	adminCfg := cfg.GetAdmin()
	sessCfg := cfg.Session

	log.Info().Str("addr", adminCfg.Addr()).Msg("connecting to admin port")

	return admin.Dial(ctx, adminCfg.Addr(),
		network.DialConfig{
			DialTimeout:  sessCfg.DialTimeout(),
			ReadTimeout:  sessCfg.ReadTimeout(),
			WriteTimeout: sessCfg.WriteTimeout(),
		},
		admin.WithLogger(util.ComponentLogger("session").With().Str("addr", adminCfg.Addr()).Logger()),
		admin.WithRegistry(registry),
		admin.WithReadSize(sessCfg.ReadSize),
		admin.WithMaxReadAttempts(sessCfg.MaxReadAttempts),
		admin.WithConcurrentDispatch(sessCfg.ConcurrentHandlers),
	)
}

func subscribeAll(ctx context.Context, session *admin.Session, subs []config.Subscription) error {
	for _, sub := range subs {
		u, f, err := sub.Resolve()
		if err != nil {
			return fmt.Errorf("subscription %s/%s: %w", sub.Type, sub.Frequency, err)
		}
		if err := session.Subscribe(ctx, u, f); err != nil {
			return err
		}
	}
	return nil
}
