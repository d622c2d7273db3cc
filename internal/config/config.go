// Package config loads deckflow.yaml and applies environment overrides.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// DefaultFile is looked up in the working directory when no path is given.
const DefaultFile = "deckflow.yaml"

// Store drivers.
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
	StoreBadger = "badger"
)

// Generator providers.
const (
	ProviderOpenAI   = "openai"
	ProviderOllama   = "ollama"
	ProviderScripted = "scripted"
)

// Config is the full runtime configuration.
type Config struct {
	Log       Log       `yaml:"log"`
	HTTP      HTTP      `yaml:"http"`
	MCP       MCP       `yaml:"mcp"`
	Store     Store     `yaml:"store"`
	Generator Generator `yaml:"generator"`
	Workflow  Workflow  `yaml:"workflow"`
	Tracing   Tracing   `yaml:"tracing"`
}

type Log struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=debug info warn warning error"`
	Format string `yaml:"format" validate:"oneof=text json"`
}

type HTTP struct {
	Addr string `yaml:"addr" validate:"required"`
}

type MCP struct {
	Addr    string `yaml:"addr"`
	BaseURL string `yaml:"base_url" validate:"omitempty,url"`
}

type Store struct {
	Driver string `yaml:"driver" validate:"oneof=memory redis badger"`
	Redis  Redis  `yaml:"redis"`
	Badger Badger `yaml:"badger"`
	// LockTTL bounds how long a project stays locked across replicas.
	LockTTL    time.Duration `yaml:"lock_ttl" validate:"gte=0"`
	Encryption Encryption    `yaml:"encryption"`
	Redaction  Redaction     `yaml:"redaction"`
}

// Encryption keys are base64 encoded 32 byte AES keys. An empty Key disables encryption.
type Encryption struct {
	Key          string   `yaml:"key" validate:"omitempty,base64"`
	FallbackKeys []string `yaml:"fallback_keys" validate:"dive,base64"`
}

// Redaction masks personal data in stored messages.
type Redaction struct {
	Enabled bool `yaml:"enabled"`
	// Patterns replace the built-in e-mail and phone patterns when set.
	Patterns []string `yaml:"patterns"`
}

type Redis struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db" validate:"gte=0"`
	Prefix   string `yaml:"prefix"`
}

type Badger struct {
	Path       string `yaml:"path"`
	InMemory   bool   `yaml:"in_memory"`
	SyncWrites bool   `yaml:"sync_writes"`
}

type Generator struct {
	Provider    string   `yaml:"provider" validate:"oneof=openai ollama scripted"`
	Model       string   `yaml:"model"`
	APIKey      string   `yaml:"api_key"`
	BaseURL     string   `yaml:"base_url" validate:"omitempty,url"`
	Temperature *float64 `yaml:"temperature" validate:"omitempty,gte=0,lte=2"`
	MaxTokens   int      `yaml:"max_tokens" validate:"gte=0"`
}

type Workflow struct {
	Name         string `yaml:"name"`
	TopologyFile string `yaml:"topology_file"`
	// ToolsFile lists local commands offered to the planner as extra tools.
	ToolsFile    string `yaml:"tools_file"`
	MaxSteps     int    `yaml:"max_steps" validate:"gte=0"`
	PhasePolicy  string `yaml:"phase_policy" validate:"omitempty,oneof=forward-or-reopen forward-only any"`
	SystemPrompt string `yaml:"system_prompt"`
}

type Tracing struct {
	// Stdout prints finished spans as JSON to stderr.
	Stdout bool `yaml:"stdout"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Log:       Log{Level: "info", Format: "text"},
		HTTP:      HTTP{Addr: ":8080"},
		MCP:       MCP{Addr: ":8081"},
		Store:     Store{Driver: StoreMemory, Redis: Redis{Addr: "localhost:6379"}, Badger: Badger{Path: "./data"}},
		Generator: Generator{Provider: ProviderOpenAI},
		Workflow:  Workflow{Name: "presentation"},
	}
}

// Load reads path (or DefaultFile when path is empty and the file exists),
// then applies environment overrides and validates the result.
func Load(path string) (Config, error) {
	return load(path, os.LookupEnv)
}

func load(path string, lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := Decode(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	if err := applyEnv(&cfg, lookup); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Decode overlays a YAML document onto cfg. Unknown keys are rejected.
func Decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks enumerations and ranges.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Store.Driver == StoreRedis && c.Store.Redis.Addr == "" {
		return errors.New("invalid config: store.redis.addr is required for the redis driver")
	}
	if c.Store.Driver == StoreBadger && !c.Store.Badger.InMemory && c.Store.Badger.Path == "" {
		return errors.New("invalid config: store.badger.path is required unless in_memory is set")
	}
	return nil
}

// GenerationConfig returns the per-call generator settings.
func (g Generator) GenerationConfig() map[string]any {
	out := map[string]any{}
	if g.Model != "" {
		out["model"] = g.Model
	}
	if g.Temperature != nil {
		out["temperature"] = *g.Temperature
	}
	if g.MaxTokens > 0 {
		out["max_tokens"] = g.MaxTokens
	}
	return out
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str("OPENAI_API_KEY", &cfg.Generator.APIKey)
	str("DECKFLOW_LOG_LEVEL", &cfg.Log.Level)
	str("DECKFLOW_LOG_FORMAT", &cfg.Log.Format)
	str("DECKFLOW_HTTP_ADDR", &cfg.HTTP.Addr)
	str("DECKFLOW_MCP_ADDR", &cfg.MCP.Addr)
	str("DECKFLOW_STORE", &cfg.Store.Driver)
	str("DECKFLOW_REDIS_ADDR", &cfg.Store.Redis.Addr)
	str("DECKFLOW_REDIS_PASSWORD", &cfg.Store.Redis.Password)
	str("DECKFLOW_BADGER_PATH", &cfg.Store.Badger.Path)
	str("DECKFLOW_ENCRYPTION_KEY", &cfg.Store.Encryption.Key)
	str("DECKFLOW_GENERATOR", &cfg.Generator.Provider)
	str("DECKFLOW_MODEL", &cfg.Generator.Model)
	str("DECKFLOW_GENERATOR_URL", &cfg.Generator.BaseURL)
	str("DECKFLOW_WORKFLOW", &cfg.Workflow.Name)
	str("DECKFLOW_TOPOLOGY_FILE", &cfg.Workflow.TopologyFile)
	str("DECKFLOW_TOOLS_FILE", &cfg.Workflow.ToolsFile)
	str("DECKFLOW_PHASE_POLICY", &cfg.Workflow.PhasePolicy)

	if v, ok := lookup("DECKFLOW_MAX_STEPS"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("DECKFLOW_MAX_STEPS: %w", err)
		}
		cfg.Workflow.MaxSteps = n
	}
	if v, ok := lookup("DECKFLOW_LOCK_TTL"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("DECKFLOW_LOCK_TTL: %w", err)
		}
		cfg.Store.LockTTL = d
	}
	return nil
}
