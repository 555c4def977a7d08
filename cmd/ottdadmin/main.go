// ottdadmin - OpenTTD admin-port client.
//
// ottdadmin keeps a session to an OpenTTD server's admin port, mirrors the
// game state it reports, records chat and console output in a SQLite
// journal, and exposes the session through a REST API, MQTT telemetry and
// an interactive console.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/energizer-project/ottdadmin/internal/api"
	"github.com/energizer-project/ottdadmin/internal/config"
	"github.com/energizer-project/ottdadmin/internal/util"
)

const (
	AppName    = "ottdadmin"
	AppVersion = "1.0.0"
	Banner     = `
        _   _      _           _       
   ___ | |_| |_ __| |__ _ __| |_ __  (_)_ _  
  / _ \|  _|  _/ _' / _' / _' | '  \ | | ' \ 
  \___/ \__|\__\__,_\__,_\__,_|_|_|_||_|_||_|
                                 v%s
 OpenTTD admin-port client
`
)

var CLI struct {
	Config  string `help:"Configuration directory." default:"config" type:"path"`
	Debug   bool   `help:"Whether to enable debug logging."`
	Version bool   `help:"Print version information and exit." short:"v"`

	Run struct {
		NoConsole bool `help:"Do not read console commands from standard input."`
	} `cmd:"" default:"1" help:"Connect to the server and keep the session alive."`

	Status struct {
	} `cmd:"" help:"Print server, client and company status and exit."`

	Rcon struct {
		Command []string `arg:"" name:"command" help:"Console command to run on the server."`
	} `cmd:"" help:"Run one server console command and print its output."`

	Say struct {
		Message []string `arg:"" name:"message" help:"Message to broadcast."`
	} `cmd:"" help:"Broadcast one chat message to every client."`
}

func writeError(err error) {
	fmt.Fprintf(os.Stderr, "%s\n", err)
	os.Exit(1)
}

func main() {
	kctx := kong.Parse(&CLI,
		kong.Name(AppName),
		kong.Description("an OpenTTD admin-port client"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
			Summary: true,
		}))

	if CLI.Version {
		fmt.Printf("%s %s (%s/%s)\n", AppName, AppVersion, runtime.GOOS, runtime.GOARCH)
		os.Exit(0)
	}

	api.Version = AppVersion

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(kctx.Command() == "run")
	if err != nil {
		writeError(err)
	}

	switch kctx.Command() {
	case "run":
		fmt.Printf(Banner, AppVersion)
		fmt.Println()
		err = runCommand(ctx, cfg, !CLI.Run.NoConsole)
	case "status":
		err = statusCommand(ctx, cfg, os.Stdout)
	case "rcon <command>":
		err = rconCommand(ctx, cfg, strings.Join(CLI.Rcon.Command, " "), os.Stdout)
	case "say <message>":
		err = sayCommand(ctx, cfg, strings.Join(CLI.Say.Message, " "))
	default:
		err = fmt.Errorf("unknown command %q", kctx.Command())
	}
	if err != nil {
		writeError(err)
	}
}

// loadConfig loads and validates the configuration and initializes logging.
// The setup wizard runs on first start of the long-running command only.
func loadConfig(interactive bool) (*config.Config, error) {
	if err := util.InitLogger(util.LogConfig{Level: "info", Console: true}); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	cfg, err := config.Load(CLI.Config)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logCfg := util.LogConfig{
		Level:      cfg.Logging.Level,
		Directory:  cfg.Logging.Directory,
		MaxBackups: cfg.Logging.MaxBackups,
		Console:    true,
	}
	if !interactive {
		// One-shot commands print to stdout; keep the log file out of it.
		logCfg.Directory = ""
	}
	if err := util.InitLogger(logCfg); err != nil {
		log.Warn().Err(err).Msg("failed to reconfigure logger, using defaults")
	}
	if CLI.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		log.Warn().Msg("debug logging enabled")
	}

	validation := config.Validate(cfg)
	for _, w := range validation.Warnings {
		log.Warn().Str("field", w.Field).Msg(w.Message)
	}
	if validation.IsValid() {
		return cfg, nil
	}

	for _, e := range validation.Errors {
		log.Error().Str("field", e.Field).Msg(e.Message)
	}
	if interactive && cfg.IsFirstRun() {
		log.Info().Msg("first run detected, launching setup wizard")
		if err := config.RunSetupWizard(cfg, os.Stdin, os.Stdout); err != nil {
			return nil, fmt.Errorf("setup wizard failed: %w", err)
		}
		return cfg, nil
	}
	return nil, fmt.Errorf("configuration validation failed, please fix the errors above")
}
