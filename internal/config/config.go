// Package config loads confpush configuration from an optional YAML file
// with environment overrides. Flags parsed by the binaries win over both.
package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/lichlabs/confpush/internal/dirs"
)

// Default service ports: DevPort is what the launcher runs, DeployPort is
// what the systemd deployment binds.
const (
	DevPort    = 9091
	DeployPort = 9092
)

// Config holds all configuration for confpush.
type Config struct {
	// Listen is the backend's TCP listen address.
	Listen string `yaml:"listen"`

	// Username and Password guard the HTTP API (basic auth).
	Username string `yaml:"username"`
	Password string `yaml:"password"`

	// LogDir is where the launcher redirects child process output.
	LogDir string `yaml:"log_dir"`

	// StateFile is the persisted profile snapshot (config_data.json).
	StateFile string `yaml:"state_file"`

	// UnitName is the systemd service installed by deploy.
	UnitName string `yaml:"unit_name"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Listen:    fmt.Sprintf("0.0.0.0:%d", DevPort),
		Username:  "lich",
		Password:  "123123",
		LogDir:    dirs.LogDir(),
		StateFile: filepath.Join(dirs.StateDir(), "config_data.json"),
		UnitName:  "confpushd.service",
	}
}

// Load reads the YAML file at path over the defaults, then applies
// environment overrides. An empty path skips the file; a missing explicit
// file is an error.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		k := koanf.New(".")
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("loading config from %q: %w", path, err)
		}
		if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "yaml"}); err != nil {
			return Config{}, fmt.Errorf("parsing config from %q: %w", path, err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("CONFPUSH_LISTEN"); v != "" {
		cfg.Listen = v
	}
	if v := os.Getenv("CONFPUSH_USERNAME"); v != "" {
		cfg.Username = v
	}
	if v := os.Getenv("CONFPUSH_PASSWORD"); v != "" {
		cfg.Password = v
	}
	if v := os.Getenv("CONFPUSH_LOG_DIR"); v != "" {
		cfg.LogDir = v
	}
	if v := os.Getenv("CONFPUSH_STATE_FILE"); v != "" {
		cfg.StateFile = v
	}
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	if _, _, err := net.SplitHostPort(c.Listen); err != nil {
		return fmt.Errorf("invalid listen address %q: %w", c.Listen, err)
	}
	if c.Username == "" || c.Password == "" {
		return fmt.Errorf("username and password must not be empty")
	}
	if c.StateFile == "" {
		return fmt.Errorf("state_file must not be empty")
	}
	if c.UnitName == "" {
		return fmt.Errorf("unit_name must not be empty")
	}
	return nil
}

// Port returns the numeric listen port.
func (c Config) Port() string {
	_, port, _ := net.SplitHostPort(c.Listen)
	return port
}
