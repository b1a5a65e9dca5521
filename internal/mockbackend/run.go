package mockbackend

import (
	"context"
	"flag"
	"fmt"
	"os/signal"
	"syscall"

	"bakery-storefront/internal/xpkg/config"
	"bakery-storefront/internal/xpkg/logger"

	apperr "bakery-storefront/internal/xpkg/errors"
)

type params struct {
	port       int
	publish    bool
	configPath string
	cfg        *config.Config
}

// Execute runs the development backend until a shutdown signal arrives.
func Execute(ctx context.Context, mylog logger.Logger, args []string) error {
	newCtx, stop := signal.NotifyContext(ctx, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	params, err := parseParams(args)
	if err != nil {
		mylog.Action("command_parse_failed").Error("Invalid command received", err)
		return err
	}
	mylog.Action("command_parse_completed").Debug("Received params", "port", params.port, "publish", params.publish, "config_path", params.configPath)

	if err = validateParams(params); err != nil {
		mylog.Action("command_validation_failed").Error("Invalid command received", err)
		return err
	}
	mylog.Action("command_validation_completed").Info("Successfully validate params")
	mylog.SetLevel(params.cfg.LogLevel)

	server := NewServer(newCtx, params.cfg, params.port, params.publish, mylog)

	runErrCh := make(chan error, 1)
	go func() {
		runErrCh <- server.Run()
	}()

	select {
	case <-newCtx.Done():
		mylog.Action("shutdown_signal_received").Info("Shutdown signal received")
		return server.Stop(context.Background())
	case err := <-runErrCh:
		if err != nil {
			mylog.Action("mock_backend_failed").Error("Server failed unexpectedly", err)
			return err
		}
		mylog.Action("server_stopped").Info("Server exited normally")
		return server.Stop(context.Background())
	}
}

func parseParams(args []string) (*params, error) {
	fs := flag.NewFlagSet("backend", flag.ContinueOnError)
	showHelp := fs.Bool("help", false, "Show help")
	configPath := fs.String("config-path", "config.yaml", "path for config yaml")
	port := fs.Int("port", 0, "Port to serve on, overrides mock_backend.port")
	publish := fs.Bool("publish", false, "Publish order status changes to RabbitMQ")

	if err := fs.Parse(args); err != nil {
		return nil, apperr.ErrParseCmd
	}
	if *showHelp {
		fs.Usage()
		return nil, apperr.ErrHelp
	}
	return &params{
		port:       *port,
		publish:    *publish,
		configPath: *configPath,
	}, nil
}

func validateParams(params *params) error {
	cfg, err := config.LoadConfig(params.configPath)
	if err != nil {
		return err
	}
	params.cfg = cfg

	if params.port == 0 {
		params.port = cfg.MockBackend.Port
	}
	if params.port <= 0 || params.port >= 65536 {
		return fmt.Errorf("port must be in [1: 65,535]: %d", params.port)
	}
	if cfg.MockBackend.JWTSecret == "" {
		return fmt.Errorf("mock_backend.jwt_secret: %w", apperr.ErrFieldIsEmpty)
	}
	return nil
}
