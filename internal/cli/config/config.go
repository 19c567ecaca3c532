// Package config loads wewc settings from its config file, environment
// variables and command line flags.
package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// DefaultStateFile is where build history is kept.
const DefaultStateFile = ".wewc.db"

// DefaultRegCount is the number of general purpose registers compiled
// for when none is configured.
const DefaultRegCount = 10

// Config holds every wewc setting.
type Config struct {
	// RegCount is the number of general purpose registers to allocate
	// over; the VM runs with the same bank.
	RegCount int `koanf:"reg_count"`

	// StatePath is the build history database location.
	StatePath string `koanf:"state_path"`

	// NoStdlib skips appending the bundled library to compiled sources.
	NoStdlib bool `koanf:"no_stdlib"`

	// NoColor disables styled terminal output.
	NoColor bool `koanf:"no_color"`

	Verbose bool `koanf:"verbose"`
}

type contextKey struct{}

// NewContext returns a context carrying the configuration.
func NewContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, contextKey{}, cfg)
}

// FromContext retrieves the configuration stored by NewContext, falling
// back to defaults when none is present.
func FromContext(ctx context.Context) *Config {
	if cfg, ok := ctx.Value(contextKey{}).(*Config); ok {
		return cfg
	}
	return &Config{RegCount: DefaultRegCount, StatePath: DefaultStateFile}
}

// Validate checks the configuration for unusable values.
func (c *Config) Validate() error {
	if c.RegCount < 4 {
		return fmt.Errorf("reg_count %d is too small: the compiler needs at least 4 registers", c.RegCount)
	}
	if c.RegCount > 64 {
		return fmt.Errorf("reg_count %d is too large: the VM supports at most 64 registers", c.RegCount)
	}
	return nil
}

// findConfigFile picks the config file to use. An explicit path wins;
// otherwise wewc.yaml then wewc.yml in the working directory.
func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	for _, name := range []string{"wewc.yaml", "wewc.yml"} {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}

// Load layers configuration sources, lowest precedence first: defaults,
// config file, WEWC_ environment variables, then flags.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(map[string]interface{}{
		"reg_count":  DefaultRegCount,
		"state_path": DefaultStateFile,
		"no_stdlib":  false,
		"no_color":   false,
		"verbose":    false,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(cfgFile); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
	}

	// WEWC_REG_COUNT -> reg_count
	if err := k.Load(env.Provider("WEWC_", ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, "WEWC_"))
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			key := strings.ReplaceAll(f.Name, "-", "_")
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
