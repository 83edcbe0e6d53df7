// Package config resolves client settings from defaults, a TOML file, a .env
// file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const (
	DefaultEndpoint  = "http://localhost:8080/v1/graphql"
	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"
	DefaultTheme     = "classic"
	DefaultColor     = "auto"

	configFileName = "config.toml"
	logFileName    = "tada.log"
)

// Config holds every client setting.
type Config struct {
	Endpoint  string            `toml:"endpoint" validate:"required,url"`
	Timeout   Duration          `toml:"timeout"`
	Headers   map[string]string `toml:"headers"`
	LogLevel  string            `toml:"log_level" validate:"oneof=debug info warn error"`
	LogFormat string            `toml:"log_format" validate:"oneof=text json logfmt"`
	LogFile   string            `toml:"log_file"`
	Theme     string            `toml:"theme" validate:"oneof=classic neon mono"`
	Color     string            `toml:"color" validate:"oneof=auto always never"`

	// File is the config file that was loaded, empty when none was found.
	File string `toml:"-"`
}

// Duration decodes TOML strings such as "5s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Dir is the per-user state directory, ~/.tada unless TADA_HOME is set.
func Dir() (string, error) {
	if v := strings.TrimSpace(os.Getenv("TADA_HOME")); v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("home: %w", err)
	}
	return filepath.Join(home, ".tada"), nil
}

// Load resolves the configuration in priority order:
// 1. Defaults
// 2. TOML file (path, or ~/.tada/config.toml when path is empty)
// 3. .env in the working directory (never overrides the real environment)
// 4. TADA_* environment variables
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := setDefaults(cfg); err != nil {
		return nil, err
	}

	explicit := path != ""
	if !explicit {
		dir, err := Dir()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(dir, configFileName)
	}
	if err := loadConfigFile(cfg, path); err != nil {
		if explicit || !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	} else {
		cfg.File = path
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}
	if err := loadFromEnv(cfg); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(cfg *Config) error {
	cfg.Endpoint = DefaultEndpoint
	cfg.LogLevel = DefaultLogLevel
	cfg.LogFormat = DefaultLogFormat
	cfg.Theme = DefaultTheme
	cfg.Color = DefaultColor
	dir, err := Dir()
	if err != nil {
		return err
	}
	cfg.LogFile = filepath.Join(dir, logFileName)
	return nil
}

func loadConfigFile(cfg *Config, path string) error {
	_, err := toml.DecodeFile(path, cfg)
	return err
}

func loadFromEnv(cfg *Config) error {
	if v := os.Getenv("TADA_ENDPOINT"); v != "" {
		cfg.Endpoint = strings.TrimSpace(v)
	}
	if v := os.Getenv("TADA_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("TADA_TIMEOUT: %w", err)
		}
		cfg.Timeout.Duration = d
	}
	if v := os.Getenv("TADA_LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
	if v := os.Getenv("TADA_LOG_FORMAT"); v != "" {
		cfg.LogFormat = strings.ToLower(v)
	}
	if v := os.Getenv("TADA_LOG_FILE"); v != "" {
		cfg.LogFile = v
	}
	if v := os.Getenv("TADA_THEME"); v != "" {
		cfg.Theme = strings.ToLower(v)
	}
	if v := os.Getenv("TADA_COLOR"); v != "" {
		cfg.Color = strings.ToLower(v)
	}
	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and reports the first bad field by its
// config key.
func Validate(cfg *Config) error {
	err := validate.Struct(cfg)
	if err == nil {
		if cfg.Timeout.Duration < 0 {
			return fmt.Errorf("invalid config: timeout must not be negative")
		}
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return fmt.Errorf("invalid config: %s: failed %q (got %v)", keyFor(fe.StructField()), fe.Tag(), fe.Value())
	}
	return fmt.Errorf("invalid config: %w", err)
}

func keyFor(field string) string {
	switch field {
	case "LogLevel":
		return "log_level"
	case "LogFormat":
		return "log_format"
	case "LogFile":
		return "log_file"
	default:
		return strings.ToLower(field)
	}
}
