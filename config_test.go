package rangetype_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rlch/rangetype"
)

func TestLoadConfig_WalksUp(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	nested := filepath.Join(root, "src", "Data")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	content := `debounce: 150ms
ghci:
  command: [cabal, repl, "lib:demo"]
  env: [GHC_ENVIRONMENT=-]
decorations:
  borderColor: "#f00"
`
	require.NoError(t, os.WriteFile(filepath.Join(root, ".rangetype.yaml"), []byte(content), 0o600))

	cfg, err := rangetype.LoadConfig(nested)
	require.NoError(t, err)

	assert.Equal(t, 150*time.Millisecond, cfg.Debounce)
	assert.Equal(t, []string{"cabal", "repl", "lib:demo"}, cfg.GHCi.Command)
	assert.Equal(t, []string{"GHC_ENVIRONMENT=-"}, cfg.GHCi.Env)
	assert.Equal(t, "#f00", cfg.Decorations.BorderColor)

	// Unset fields get defaults.
	assert.Equal(t, rangetype.DefaultMatch, cfg.Match)
	assert.Equal(t, rangetype.DefaultCommandTimeout, cfg.GHCi.CommandTimeout)
	assert.Equal(t, "#999", cfg.Decorations.TypeColor)
}

func TestLoadConfig_NotFound(t *testing.T) {
	t.Parallel()

	_, err := rangetype.LoadConfig(t.TempDir())
	assert.ErrorIs(t, err, rangetype.ErrConfigNotFound)
}

func TestLoadConfigOrDefault(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "rangetype.yml"), []byte("match: 'true'\n"), 0o600))

	cfg, err := rangetype.LoadConfigOrDefault(dir)
	require.NoError(t, err)
	assert.Equal(t, "true", cfg.Match)
	assert.Equal(t, rangetype.DefaultDebounce, cfg.Debounce)
}

func TestLoadConfigFile_Invalid(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), ".rangetype.yaml")
	require.NoError(t, os.WriteFile(path, []byte("debounce: [not, a, duration]\n"), 0o600))

	_, err := rangetype.LoadConfigFile(path)
	assert.Error(t, err)
}

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := rangetype.DefaultConfig()
	assert.Equal(t, 300*time.Millisecond, cfg.Debounce)
	assert.Equal(t, "#66f", cfg.Decorations.BorderColor)
	assert.Equal(t, "0px 0px 1px 0px", cfg.Decorations.BorderWidth)
	assert.Equal(t, "0px 0px 0px 20px", cfg.Decorations.TypeMargin)
	assert.Empty(t, cfg.GHCi.Command)
}

func TestApplyEnv(t *testing.T) {
	t.Parallel()

	cfg := &rangetype.Config{Match: "true"}
	err := rangetype.ApplyEnv(cfg, map[string]string{
		"RANGETYPE_DEBOUNCE":                 "50ms",
		"RANGETYPE_GHCI_COMMAND":             "stack ghci --no-load",
		"RANGETYPE_GHCI_ENV":                 "A=1,B=2",
		"RANGETYPE_GHCI_COMMAND_TIMEOUT":     "5s",
		"RANGETYPE_DECORATIONS_BORDER_COLOR": "red",
		"UNRELATED":                          "ignored",
	})
	require.NoError(t, err)

	assert.Equal(t, 50*time.Millisecond, cfg.Debounce)
	assert.Equal(t, "true", cfg.Match, "unset variables keep the current value")
	assert.Equal(t, []string{"stack", "ghci", "--no-load"}, cfg.GHCi.Command)
	assert.Equal(t, []string{"A=1", "B=2"}, cfg.GHCi.Env)
	assert.Equal(t, 5*time.Second, cfg.GHCi.CommandTimeout)
	assert.Zero(t, cfg.GHCi.StartupTimeout)
	assert.Equal(t, "red", cfg.Decorations.BorderColor)
}

func TestApplyEnv_Invalid(t *testing.T) {
	t.Parallel()

	err := rangetype.ApplyEnv(&rangetype.Config{}, map[string]string{
		"RANGETYPE_DEBOUNCE": "soon",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse env")
}
