package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"realestate/internal/configuration"
	"realestate/internal/configuration/properties"
	"realestate/internal/logging"
	"realestate/internal/registry"
)

func main() {
	configDir := pflag.String("config-dir", configuration.ConfigDir(), "directory holding application.yml and its profile overlays")
	profile := pflag.StringP("profile", "p", "", "configuration profile; overrides app.profile")
	logLevel := pflag.String("log-level", "", "log level; overrides app.log-level")
	exportPath := pflag.String("export-snapshot", "", "write a snapshot of the stored registry to this file and exit")
	restorePath := pflag.String("restore-snapshot", "", "replace the stored registry with this snapshot file and exit")
	pflag.Parse()

	config, err := loadConfig(*configDir, *profile, *logLevel)
	if err == nil {
		switch {
		case *exportPath != "" && *restorePath != "":
			err = fmt.Errorf("--export-snapshot and --restore-snapshot are mutually exclusive")
		case *exportPath != "":
			err = exportSnapshot(properties.NewProvider(config), *exportPath)
		case *restorePath != "":
			err = restoreSnapshot(properties.NewProvider(config), *restorePath)
		default:
			err = run(config)
		}
	}
	if err != nil {
		slog.Error("registry exited with error", "error", err)
		os.Exit(1)
	}
}

func loadConfig(configDir, profile, logLevel string) (*properties.Config, error) {
	config, err := configuration.LoadFrom(configDir, profile)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	if logLevel != "" {
		config.Application.LogLevel = logLevel
	}

	logging.Init(config.Application.LogLevel)
	return config, nil
}

func run(config *properties.Config) error {
	ctx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	defer cancel()

	slog.Info("starting registry",
		"profile", config.Application.Profile,
		"contract", config.Application.ContractName,
		"version", config.Application.ContractVersion,
	)

	services, err := NewServices(properties.NewProvider(config))
	if err != nil {
		return err
	}

	if err := services.Start(); err != nil {
		services.Stop()
		return err
	}

	count, err := services.Contract.OfferCount()
	switch {
	case errors.Is(err, registry.ErrNotFound):
		slog.Info("registry ready, waiting for bootstrap")
	case err != nil:
		services.Stop()
		return err
	default:
		slog.Info("registry ready", "offers", count)
	}

	<-ctx.Done()
	slog.Info("shutting down registry...")
	services.Stop()
	return nil
}
