// Package rangetype shows the GHCi type of the expression under the editor
// selection. This package holds the configuration shared by the language
// server and the CLI.
package rangetype

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// ErrConfigNotFound is returned when no config file exists in dir or any parent.
var ErrConfigNotFound = errors.New("no .rangetype.yaml found")

// EnvPrefix prefixes the environment variables that override config fields,
// e.g. RANGETYPE_DEBOUNCE or RANGETYPE_GHCI_COMMAND.
const EnvPrefix = "RANGETYPE_"

// Defaults applied to unset config fields.
const (
	DefaultDebounce       = 300 * time.Millisecond
	DefaultMatch          = `languageId == "haskell" || path endsWith ".hs"`
	DefaultStartupTimeout = 2 * time.Minute
	DefaultCommandTimeout = 30 * time.Second
)

// Config represents the .rangetype.yaml configuration file.
type Config struct {
	// Quiet period after the last selection change before GHCi is asked.
	Debounce time.Duration `env:"DEBOUNCE" yaml:"debounce,omitempty"`

	// Expression deciding which documents are handled.
	// Variables: languageId, path.
	Match string `env:"MATCH" yaml:"match,omitempty"`

	GHCi GHCiConfig `envPrefix:"GHCI_" yaml:"ghci,omitempty"`

	Decorations DecorationConfig `envPrefix:"DECORATIONS_" yaml:"decorations,omitempty"`
}

// GHCiConfig configures the backing GHCi sessions.
type GHCiConfig struct {
	// Command overrides project detection (e.g. ["cabal", "repl", "lib:foo"]).
	Command []string `env:"COMMAND" envSeparator:" " yaml:"command,omitempty"`

	// Extra environment, KEY=VALUE.
	Env []string `env:"ENV" yaml:"env,omitempty"`

	// StartupTimeout bounds process start and module loading.
	StartupTimeout time.Duration `env:"STARTUP_TIMEOUT" yaml:"startupTimeout,omitempty"`

	// CommandTimeout bounds a single :type-at round trip.
	CommandTimeout time.Duration `env:"COMMAND_TIMEOUT" yaml:"commandTimeout,omitempty"`
}

// DecorationConfig holds the colors of the two decorations.
type DecorationConfig struct {
	// Underline under the queried range.
	BorderColor string `env:"BORDER_COLOR" yaml:"borderColor,omitempty"`
	BorderWidth string `env:"BORDER_WIDTH" yaml:"borderWidth,omitempty"`

	// Trailing ":: type" text.
	TypeColor  string `env:"TYPE_COLOR"  yaml:"typeColor,omitempty"`
	TypeMargin string `env:"TYPE_MARGIN" yaml:"typeMargin,omitempty"`
}

// DefaultConfigNames are the filenames we search for.
var DefaultConfigNames = []string{".rangetype.yaml", ".rangetype.yml", "rangetype.yaml", "rangetype.yml"}

// DefaultConfig returns a config with every field set to its default.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()

	return cfg
}

// LoadConfig finds and loads the nearest .rangetype.yaml walking up from dir.
// Defaults are applied to fields the file leaves unset.
func LoadConfig(dir string) (*Config, error) {
	path, err := FindConfig(dir)
	if err != nil {
		return nil, err
	}

	return LoadConfigFile(path)
}

// LoadConfigOrDefault behaves like LoadConfig but falls back to the defaults
// when no file exists. Environment overrides apply either way.
func LoadConfigOrDefault(dir string) (*Config, error) {
	cfg, err := LoadConfig(dir)
	if !errors.Is(err, ErrConfigNotFound) {
		return cfg, err
	}

	cfg = &Config{}
	if err := ApplyEnv(cfg, nil); err != nil {
		return nil, err
	}

	cfg.applyDefaults()

	return cfg, nil
}

// ApplyEnv overrides fields of cfg from RANGETYPE_* variables in environ, or
// in the process environment when environ is nil. Unset variables leave
// fields untouched.
func ApplyEnv(cfg *Config, environ map[string]string) error {
	opts := env.Options{Prefix: EnvPrefix}
	if environ != nil {
		opts.Environment = environ
	}

	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}

	return nil
}

// FindConfig searches for a config file starting from dir and walking up.
func FindConfig(dir string) (string, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}

	for dir := absDir; ; {
		for _, name := range DefaultConfigNames {
			path := filepath.Join(dir, name)

			_, err := os.Stat(path)
			if err == nil {
				return path, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", ErrConfigNotFound
		}

		dir = parent
	}
}

// LoadConfigFile loads a config from a specific path.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}

	var cfg Config

	err = yaml.Unmarshal(data, &cfg)
	if err != nil {
		return nil, err
	}

	if err := ApplyEnv(&cfg, nil); err != nil {
		return nil, err
	}

	cfg.applyDefaults()

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Debounce <= 0 {
		c.Debounce = DefaultDebounce
	}

	if c.Match == "" {
		c.Match = DefaultMatch
	}

	if c.GHCi.StartupTimeout <= 0 {
		c.GHCi.StartupTimeout = DefaultStartupTimeout
	}

	if c.GHCi.CommandTimeout <= 0 {
		c.GHCi.CommandTimeout = DefaultCommandTimeout
	}

	d := &c.Decorations
	if d.BorderColor == "" {
		d.BorderColor = "#66f"
	}

	if d.BorderWidth == "" {
		d.BorderWidth = "0px 0px 1px 0px"
	}

	if d.TypeColor == "" {
		d.TypeColor = "#999"
	}

	if d.TypeMargin == "" {
		d.TypeMargin = "0px 0px 0px 20px"
	}
}
