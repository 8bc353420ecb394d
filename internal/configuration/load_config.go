package configuration

import (
	"fmt"
	"log/slog"
	"os"

	"realestate/internal/configuration/properties"
	"realestate/internal/configuration/util"
)

const (
	defaultConfigDir = "internal/static"
	configDirEnv     = "REALESTATE_CONFIG_DIR"
)

// Load reads application.yml and its profile overlay from the directory named
// by REALESTATE_CONFIG_DIR, or internal/static when unset.
func Load() (*properties.Config, error) {
	return LoadFrom(ConfigDir(), "")
}

// ConfigDir is the directory Load reads from.
func ConfigDir() string {
	if dir := os.Getenv(configDirEnv); dir != "" {
		return dir
	}
	return defaultConfigDir
}

// LoadFrom reads the base config from dir and overlays application-{profile}.yml.
// A non-empty profile overrides the one named in the base file.
func LoadFrom(dir, profile string) (*properties.Config, error) {
	cfg, err := loadBaseConfig(dir)
	if err != nil {
		return nil, err
	}

	if profile != "" {
		cfg.Application.Profile = profile
	}

	if err := loadProfileConfig(dir, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadBaseConfig(dir string) (*properties.Config, error) {
	baseConfig, err := util.LoadAndExpandYaml(dir, "application")
	if err != nil {
		slog.Error("Error loading base config", "Error", err.Error())
		return nil, err
	}

	cfg := defaults()
	if err := util.DecodeYamlInto(baseConfig, cfg); err != nil {
		slog.Error("Error parsing base config", "Error", err.Error())
		return nil, err
	}

	return cfg, nil
}

func loadProfileConfig(dir string, cfg *properties.Config) error {
	if cfg.Application.Profile == "" {
		return fmt.Errorf("app.profile is not set")
	}

	profileConfig, err := util.LoadAndExpandYaml(dir, fmt.Sprintf("application-%s", cfg.Application.Profile))
	if err != nil {
		slog.Error("Error loading profile config", "Error", err.Error())
		return err
	}

	if err := util.DecodeYamlInto(profileConfig, cfg); err != nil {
		slog.Error("Error parsing profile config", "Error", err.Error())
		return err
	}

	return nil
}

func defaults() *properties.Config {
	return &properties.Config{
		Application: properties.ApplicationConfigProperties{
			LogLevel:        "info",
			ContractName:    "crates.io:real-estate",
			ContractVersion: "0.1.0",
			AllowAdminClear: true,
		},
		Storage: properties.StorageConfigProperties{
			DataDir: "data",
			Wal:     properties.WriteAheadLogProperties{SnapCount: 1000},
		},
		Raft: properties.RaftConfigProperties{
			NodeId:        1,
			TickInterval:  100,
			ElectionTick:  10,
			HeartbeatTick: 1,
		},
		Transport: properties.TransportConfigProperties{
			Network: "tcp",
			Address: "127.0.0.1",
			Port:    "7420",
			Timeout: 5,
		},
		Identity: properties.IdentityConfigProperties{
			MinLength: 3,
			MaxLength: 64,
		},
	}
}
