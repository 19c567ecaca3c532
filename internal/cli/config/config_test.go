package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wewlang/wewc/internal/cli/config"
)

func TestDefaults(t *testing.T) {
	cfg, err := config.Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultRegCount, cfg.RegCount)
	assert.Equal(t, config.DefaultStateFile, cfg.StatePath)
	assert.False(t, cfg.NoStdlib)
}

func TestConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wewc.yaml")
	require.NoError(t, os.WriteFile(path, []byte("reg_count: 16\nno_stdlib: true\n"), 0o644))

	cfg, err := config.Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, 16, cfg.RegCount)
	assert.True(t, cfg.NoStdlib)
	assert.Equal(t, config.DefaultStateFile, cfg.StatePath)
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wewc.yaml")
	require.NoError(t, os.WriteFile(path, []byte("reg_count: 16\n"), 0o644))

	t.Setenv("WEWC_REG_COUNT", "32")
	cfg, err := config.Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, 32, cfg.RegCount)
}

func TestFlagsOverrideEverything(t *testing.T) {
	t.Setenv("WEWC_REG_COUNT", "32")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("reg-count", config.DefaultRegCount, "")
	flags.Bool("verbose", false, "")
	require.NoError(t, flags.Parse([]string{"--reg-count", "12"}))

	cfg, err := config.Load("", flags)
	require.NoError(t, err)
	assert.Equal(t, 12, cfg.RegCount)
}

func TestUnchangedFlagDoesNotOverride(t *testing.T) {
	t.Setenv("WEWC_REG_COUNT", "24")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("reg-count", config.DefaultRegCount, "")
	require.NoError(t, flags.Parse(nil))

	cfg, err := config.Load("", flags)
	require.NoError(t, err)
	assert.Equal(t, 24, cfg.RegCount)
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wewc.yaml")
	require.NoError(t, os.WriteFile(path, []byte("reg_count: 2\n"), 0o644))

	_, err := config.Load(path, nil)
	assert.ErrorContains(t, err, "too small")
}
