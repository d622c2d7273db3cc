package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "deckflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_File(t *testing.T) {
	path := writeFile(t, `
log:
  level: debug
  format: json
store:
  driver: redis
  lock_ttl: 45s
  redis:
    addr: redis:6379
    prefix: "decks:"
generator:
  provider: ollama
  model: llama3
  temperature: 0.3
workflow:
  name: chat
  max_steps: 20
  phase_policy: forward-only
`)
	cfg, err := load(path, env(nil))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, StoreRedis, cfg.Store.Driver)
	assert.Equal(t, 45*time.Second, cfg.Store.LockTTL)
	assert.Equal(t, "decks:", cfg.Store.Redis.Prefix)
	assert.Equal(t, ProviderOllama, cfg.Generator.Provider)
	assert.Equal(t, "chat", cfg.Workflow.Name)
	assert.Equal(t, 20, cfg.Workflow.MaxSteps)
	assert.Equal(t, ":8080", cfg.HTTP.Addr, "unset keys keep defaults")
	assert.Equal(t, map[string]any{"model": "llama3", "temperature": 0.3}, cfg.Generator.GenerationConfig())
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeFile(t, "generator:\n  provider: openai\n")
	cfg, err := load(path, env(map[string]string{
		"OPENAI_API_KEY":     "sk-test",
		"DECKFLOW_LOG_LEVEL": "warn",
		"DECKFLOW_STORE":     "badger",
		"DECKFLOW_MAX_STEPS": "12",
		"DECKFLOW_LOCK_TTL":  "1m",
		"DECKFLOW_HTTP_ADDR": "",
	}))
	require.NoError(t, err)
	assert.Equal(t, "sk-test", cfg.Generator.APIKey)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, StoreBadger, cfg.Store.Driver)
	assert.Equal(t, 12, cfg.Workflow.MaxSteps)
	assert.Equal(t, time.Minute, cfg.Store.LockTTL)
	assert.Equal(t, ":8080", cfg.HTTP.Addr, "empty env values are ignored")
}

func TestLoad_MissingDefaultFileIsFine(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := load("", env(nil))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		file string
		env  map[string]string
	}{
		{name: "unknown key", file: "stor:\n  driver: memory\n"},
		{name: "unknown driver", file: "store:\n  driver: postgres\n"},
		{name: "unknown provider", file: "generator:\n  provider: bard\n"},
		{name: "bad policy", file: "workflow:\n  phase_policy: sideways\n"},
		{name: "negative steps", file: "workflow:\n  max_steps: -1\n"},
		{name: "redis without addr", file: "store:\n  driver: redis\n  redis:\n    addr: \"\"\n"},
		{name: "badger without path", file: "store:\n  driver: badger\n  badger:\n    path: \"\"\n"},
		{name: "bad steps env", file: "", env: map[string]string{"DECKFLOW_MAX_STEPS": "many"}},
		{name: "bad ttl env", file: "", env: map[string]string{"DECKFLOW_LOCK_TTL": "soon"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := load(writeFile(t, tt.file), env(tt.env))
			assert.Error(t, err)
		})
	}
}

func TestLoad_ExplicitMissingFile(t *testing.T) {
	_, err := load(filepath.Join(t.TempDir(), "nope.yaml"), env(nil))
	assert.Error(t, err)
}
