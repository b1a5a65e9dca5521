package shopper

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"bakery-storefront/internal/xpkg/config"
	"bakery-storefront/internal/xpkg/logger"

	apperr "bakery-storefront/internal/xpkg/errors"
)

// command is one shopper mode. register adds its flags, validate checks them
// after parsing and run does the work against a wired App.
type command interface {
	register(fs *flag.FlagSet)
	validate() error
	run(ctx context.Context, a *App) error
}

type params struct {
	mode       string
	configPath string
	cfg        *config.Config
	cmd        command
}

// Modes lists the modes Execute accepts.
var Modes = []string{"catalog", "cart", "wishlist", "login", "logout"}

func newCommand(mode string) (command, error) {
	switch mode {
	case "catalog":
		return &catalogCmd{}, nil
	case "cart":
		return &cartCmd{}, nil
	case "wishlist":
		return &wishlistCmd{}, nil
	case "login":
		return &loginCmd{}, nil
	case "logout":
		return &logoutCmd{}, nil
	default:
		return nil, fmt.Errorf("%w: %s", apperr.ErrUnknownService, mode)
	}
}

// Execute runs a single shopper mode and returns when it is done or a signal arrives.
func Execute(ctx context.Context, mylog logger.Logger, mode string, args []string) error {
	newCtx, stop := signal.NotifyContext(ctx, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	params, err := parseParams(mode, args)
	if err != nil {
		mylog.Action("command_parse_failed").Error("Invalid command received", err)
		return err
	}
	mylog.Action("command_parse_completed").Debug("Received params", "mode", params.mode, "config_path", params.configPath)

	if err = validateParams(params); err != nil {
		mylog.Action("command_validation_failed").Error("Invalid command received", err)
		return err
	}
	mylog.Action("command_validation_completed").Debug("Successfully validate params")
	mylog.SetLevel(params.cfg.LogLevel)

	app, err := Open(newCtx, params.cfg, os.Stdout, mylog)
	if err != nil {
		mylog.Action("app_open_failed").Error("Failed to start storefront", err)
		return err
	}
	defer app.Close()

	if err := params.cmd.run(newCtx, app); err != nil {
		if errors.Is(newCtx.Err(), context.Canceled) {
			mylog.Action("shutdown_signal_received").Info("Interrupted")
			return nil
		}
		return err
	}
	return nil
}

func parseParams(mode string, args []string) (*params, error) {
	cmd, err := newCommand(mode)
	if err != nil {
		return nil, err
	}

	fs := flag.NewFlagSet(mode, flag.ContinueOnError)
	showHelp := fs.Bool("help", false, "Show help")
	configPath := fs.String("config-path", "config.yaml", "path for config yaml")
	cmd.register(fs)

	if err := fs.Parse(args); err != nil {
		return nil, apperr.ErrParseCmd
	}
	if *showHelp {
		fs.Usage()
		return nil, apperr.ErrHelp
	}

	return &params{
		mode:       mode,
		configPath: *configPath,
		cmd:        cmd,
	}, nil
}

func validateParams(params *params) error {
	cfg, err := config.LoadConfig(params.configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	params.cfg = cfg
	return params.cmd.validate()
}
