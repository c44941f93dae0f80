package env

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

// Endpoint is the address of one vendor server.
type Endpoint struct {
	Host string
	Port int
}

// Config holds the settings shared by the nanonisctl commands.
//
// Values are layered: Default, then the TOML file, then .env.local and the process environment,
// then command line flags.
type Config struct {
	SPM          Endpoint
	Spectrometer Endpoint

	ReadPolicy   string
	ReplyTimeout time.Duration
	Strict       bool
	Terminator   string

	LogLevel   string
	LogBackend string
}

// Default returns the settings of a local Nanonis and spectrometer server.
func Default() Config {
	return Config{
		SPM:          Endpoint{Host: "127.0.0.1", Port: 6501},
		Spectrometer: Endpoint{Host: "localhost", Port: 8888},
		ReadPolicy:   "complete",
		Terminator:   "\n",
		LogLevel:     "info",
		LogBackend:   "slog",
	}
}

type fileConfig struct {
	SPMHost          string `toml:"spm_host"`
	SPMPort          int    `toml:"spm_port"`
	SpectrometerHost string `toml:"spectrometer_host"`
	SpectrometerPort int    `toml:"spectrometer_port"`
	ReadPolicy       string `toml:"read_policy"`
	ReplyTimeout     string `toml:"reply_timeout"`
	Strict           bool   `toml:"strict"`
	Terminator       string `toml:"terminator"`
	LogLevel         string `toml:"log_level"`
	LogBackend       string `toml:"log_backend"`
}

// LoadFile overlays the keys defined in the TOML file at path onto cfg.
func LoadFile(path string, cfg *Config) error {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if meta.IsDefined("spm_host") {
		cfg.SPM.Host = strings.TrimSpace(raw.SPMHost)
	}

	if meta.IsDefined("spm_port") {
		cfg.SPM.Port = raw.SPMPort
	}

	if meta.IsDefined("spectrometer_host") {
		cfg.Spectrometer.Host = strings.TrimSpace(raw.SpectrometerHost)
	}

	if meta.IsDefined("spectrometer_port") {
		cfg.Spectrometer.Port = raw.SpectrometerPort
	}

	if meta.IsDefined("read_policy") {
		cfg.ReadPolicy = strings.TrimSpace(raw.ReadPolicy)
	}

	if meta.IsDefined("reply_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.ReplyTimeout))
		if err != nil {
			return fmt.Errorf("parse reply_timeout: %w", err)
		}
		cfg.ReplyTimeout = d
	}

	if meta.IsDefined("strict") {
		cfg.Strict = raw.Strict
	}

	if meta.IsDefined("terminator") {
		cfg.Terminator = raw.Terminator
	}

	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}

	if meta.IsDefined("log_backend") {
		cfg.LogBackend = strings.TrimSpace(raw.LogBackend)
	}

	return nil
}

// envOverlay lists the environment variables. Unset or empty variables leave the setting unchanged.
type envOverlay struct {
	SPMHost          string         `env:"NANONIS_SPM_HOST"`
	SPMPort          *int           `env:"NANONIS_SPM_PORT,noinit"`
	SpectrometerHost string         `env:"NANONIS_SPECTROMETER_HOST"`
	SpectrometerPort *int           `env:"NANONIS_SPECTROMETER_PORT,noinit"`
	ReadPolicy       string         `env:"NANONIS_READ_POLICY"`
	ReplyTimeout     *time.Duration `env:"NANONIS_REPLY_TIMEOUT,noinit"`
	Strict           *bool          `env:"NANONIS_STRICT,noinit"`
	LogLevel         string         `env:"NANONIS_LOG_LEVEL"`
	LogBackend       string         `env:"NANONIS_LOG_BACKEND"`
}

// LoadEnv loads .env.local when present and overlays the NANONIS_* environment variables onto cfg.
// Variables already set in the process environment win over .env.local.
func LoadEnv(ctx context.Context, cfg *Config) error {
	if err := godotenv.Load(".env.local"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load .env.local: %w", err)
	}

	return overlayEnv(ctx, envconfig.OsLookuper(), cfg)
}

func overlayEnv(ctx context.Context, l envconfig.Lookuper, cfg *Config) error {
	var raw envOverlay
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &raw, Lookuper: l}); err != nil {
		return fmt.Errorf("process environment: %w", err)
	}

	raw.apply(cfg)

	return nil
}

func (o envOverlay) apply(cfg *Config) {
	if o.SPMHost != "" {
		cfg.SPM.Host = o.SPMHost
	}
	if o.SPMPort != nil {
		cfg.SPM.Port = *o.SPMPort
	}
	if o.SpectrometerHost != "" {
		cfg.Spectrometer.Host = o.SpectrometerHost
	}
	if o.SpectrometerPort != nil {
		cfg.Spectrometer.Port = *o.SpectrometerPort
	}
	if o.ReadPolicy != "" {
		cfg.ReadPolicy = o.ReadPolicy
	}
	if o.ReplyTimeout != nil {
		cfg.ReplyTimeout = *o.ReplyTimeout
	}
	if o.Strict != nil {
		cfg.Strict = *o.Strict
	}
	if o.LogLevel != "" {
		cfg.LogLevel = o.LogLevel
	}
	if o.LogBackend != "" {
		cfg.LogBackend = o.LogBackend
	}
}

// Load builds a Config from the defaults, the optional TOML file at path and the environment.
func Load(ctx context.Context, path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if err := LoadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if err := LoadEnv(ctx, &cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}
