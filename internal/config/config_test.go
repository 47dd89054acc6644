package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// inTempDir runs the test from an empty directory so no config.yaml is found.
func inTempDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	inTempDir(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "data/fredqa.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "https://api.stlouisfed.org/fred", cfg.FRED.BaseURL)
	assert.Equal(t, "1990-01-01", cfg.FRED.Start)
	assert.Equal(t, 2, cfg.FRED.Concurrency)
	assert.Equal(t, 3, cfg.FRED.MaxRetries)
	assert.Equal(t, "data/cards", cfg.Cards.Dir)
	assert.Equal(t, 12, cfg.Cards.Recent)
	assert.Equal(t, 3, cfg.Answer.RetrievalK)
	assert.InDelta(t, 0.25, cfg.Answer.MinRetrievalScore, 0.001)
	assert.False(t, cfg.Answer.Hints)
	assert.Equal(t, "claude-haiku-4-5-20251001", cfg.Anthropic.Model)
	assert.Equal(t, 20, cfg.Anthropic.TimeoutSecs)
	assert.Equal(t, 2, cfg.Anthropic.MaxRetries)
	assert.Equal(t, 4, cfg.Eval.Workers)
	assert.Equal(t, 60, cfg.Eval.CaseTimeoutSecs)
	assert.InDelta(t, 0.9, cfg.Eval.PassThreshold, 0.001)
	assert.Equal(t, uint64(42), cfg.Eval.Seed)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Empty(t, cfg.Catalog.Path)
	assert.Empty(t, cfg.Monitoring.WebhookURL)
	assert.Equal(t, 10, cfg.Monitoring.MinCases)
}

func TestLoadFromYAML(t *testing.T) {
	dir := inTempDir(t)

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/fredqa
  max_conns: 8
log:
  level: debug
  format: console
eval:
  workers: 8
  xlsx: true
server:
  port: 9090
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/fredqa", cfg.Store.DatabaseURL)
	assert.Equal(t, int32(8), cfg.Store.MaxConns)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 8, cfg.Eval.Workers)
	assert.True(t, cfg.Eval.XLSX)
	assert.Equal(t, 9090, cfg.Server.Port)
	// Defaults still apply for unset values
	assert.Equal(t, 12, cfg.Cards.Recent)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := inTempDir(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("FREDQA_STORE_DRIVER", "postgres")
	t.Setenv("FREDQA_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvSecrets(t *testing.T) {
	inTempDir(t)

	t.Setenv("FREDQA_FRED_API_KEY", "fred-key")
	t.Setenv("FREDQA_ANTHROPIC_KEY", "sk-ant-key")
	t.Setenv("FREDQA_SERVER_PORT", "3000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "fred-key", cfg.FRED.APIKey)
	assert.Equal(t, "sk-ant-key", cfg.Anthropic.Key)
	assert.Equal(t, 3000, cfg.Server.Port)
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	inTempDir(t)
	t.Setenv("FREDQA_STORE_DRIVER", "mysql")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown store driver "mysql"`)
}

func TestLoadMalformedFile(t *testing.T) {
	dir := inTempDir(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("store: [unclosed"), 0644))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read file")
}

func TestValidatePassThreshold(t *testing.T) {
	cfg := &Config{Store: StoreConfig{Driver: "sqlite"}}
	cfg.Eval.PassThreshold = 1.5
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "eval.pass_threshold")

	cfg.Eval.PassThreshold = 1
	assert.NoError(t, cfg.Validate())
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}
