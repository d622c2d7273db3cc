package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aretw0/deckflow"
	"github.com/aretw0/deckflow/internal/compiler"
	"github.com/aretw0/deckflow/internal/config"
	badgerstore "github.com/aretw0/deckflow/pkg/adapters/badger"
	"github.com/aretw0/deckflow/pkg/adapters/langchain"
	"github.com/aretw0/deckflow/pkg/adapters/memory"
	"github.com/aretw0/deckflow/pkg/adapters/process"
	openaigen "github.com/aretw0/deckflow/pkg/adapters/openai"
	redisstore "github.com/aretw0/deckflow/pkg/adapters/redis"
	"github.com/aretw0/deckflow/pkg/adapters/scripted"
	"github.com/aretw0/deckflow/pkg/domain"
	"github.com/aretw0/deckflow/pkg/nodes"
	"github.com/aretw0/deckflow/pkg/observability"
	"github.com/aretw0/deckflow/pkg/persistence/middleware"
	"github.com/aretw0/deckflow/pkg/ports"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// app is the assistant wired from configuration plus what must be released on exit.
type app struct {
	assistant *deckflow.Assistant
	registry  *prometheus.Registry
	closers   []func(context.Context) error
}

func (a *app) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i](ctx))
	}
	return errors.Join(errs...)
}

func buildApp(cfg config.Config) (*app, error) {
	out := &app{registry: prometheus.NewRegistry()}
	out.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	fail := func(err error) (*app, error) {
		_ = out.Close(context.Background())
		return nil, err
	}

	var opts []deckflow.Option
	repo, locker, err := openStore(cfg.Store, out)
	if err != nil {
		return fail(err)
	}
	repo, err = protect(cfg.Store, repo)
	if err != nil {
		return fail(err)
	}
	if locker != nil {
		opts = append(opts, deckflow.WithLocker(locker), deckflow.WithLockTTL(cfg.Store.LockTTL))
	}

	gen, err := newGenerator(cfg.Generator)
	if err != nil {
		return fail(err)
	}

	metrics, err := observability.NewMetrics(out.registry)
	if err != nil {
		return fail(err)
	}
	opts = append(opts,
		deckflow.WithLogger(logger),
		deckflow.WithLifecycleHooks(domain.CombineHooks(metrics.Hooks(), observability.LoggingHooks(logger))),
		deckflow.WithGenerationConfig(cfg.Generator.GenerationConfig()),
	)

	policy, err := domain.PolicyByName(cfg.Workflow.PhasePolicy)
	if err != nil {
		return fail(err)
	}
	opts = append(opts, deckflow.WithPhasePolicy(policy))
	if cfg.Workflow.MaxSteps > 0 {
		opts = append(opts, deckflow.WithMaxSteps(cfg.Workflow.MaxSteps))
	}
	if cfg.Workflow.SystemPrompt != "" {
		opts = append(opts, deckflow.WithSystemPrompt(cfg.Workflow.SystemPrompt))
	}
	if cfg.Workflow.TopologyFile != "" {
		t, err := compiler.NewParser().ParseFile(cfg.Workflow.TopologyFile)
		if err != nil {
			return fail(err)
		}
		opts = append(opts, deckflow.WithTopology(t))
	} else if cfg.Workflow.Name != "" {
		opts = append(opts, deckflow.WithWorkflow(cfg.Workflow.Name))
	}

	if cfg.Workflow.ToolsFile != "" {
		tools, err := process.LoadTools(cfg.Workflow.ToolsFile)
		if err != nil {
			return fail(err)
		}
		runner := process.NewRunner(tools, process.WithBaseDir(filepath.Dir(cfg.Workflow.ToolsFile)), process.WithLogger(logger))
		for _, spec := range runner.Specs() {
			opts = append(opts, deckflow.WithTool(spec, runner.Func(spec.Name)))
		}
	}

	if cfg.Tracing.Stdout {
		exporter, err := stdouttrace.New(stdouttrace.WithWriter(os.Stderr))
		if err != nil {
			return fail(fmt.Errorf("trace exporter: %w", err))
		}
		tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
		out.closers = append(out.closers, tp.Shutdown)
		opts = append(opts, deckflow.WithTracerProvider(tp))
	}

	a, err := deckflow.New(repo, gen, opts...)
	if err != nil {
		return fail(err)
	}
	out.assistant = a
	logger.Debug("assistant ready", "store", cfg.Store.Driver, "generator", cfg.Generator.Provider, "workflow", a.Workflow())
	return out, nil
}

func openStore(cfg config.Store, out *app) (ports.Repository, ports.DistributedLocker, error) {
	switch cfg.Driver {
	case config.StoreRedis:
		var opts []redisstore.Option
		if cfg.Redis.Prefix != "" {
			opts = append(opts, redisstore.WithPrefix(cfg.Redis.Prefix))
		}
		store := redisstore.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, opts...)
		out.closers = append(out.closers, func(context.Context) error { return store.Close() })
		prefix := cfg.Redis.Prefix
		if prefix == "" {
			prefix = "deckflow:"
		}
		return store, redisstore.NewLocker(store.Client(), prefix), nil
	case config.StoreBadger:
		store, err := badgerstore.Open(badgerstore.Config{
			Path:       cfg.Badger.Path,
			InMemory:   cfg.Badger.InMemory,
			SyncWrites: cfg.Badger.SyncWrites,
			Logger:     logger,
		})
		if err != nil {
			return nil, nil, err
		}
		out.closers = append(out.closers, func(context.Context) error { return store.Close() })
		return store, nil, nil
	default:
		return memory.NewStore(), nil, nil
	}
}

// protect wraps repo with the configured redaction and encryption, redaction first.
func protect(cfg config.Store, repo ports.Repository) (ports.Repository, error) {
	var mws []middleware.Middleware
	if cfg.Redaction.Enabled {
		patterns := cfg.Redaction.Patterns
		if len(patterns) == 0 {
			patterns = middleware.DefaultPIIPatterns
		}
		mw, err := middleware.NewPIIMiddleware(patterns)
		if err != nil {
			return nil, err
		}
		mws = append(mws, mw)
	}
	if cfg.Encryption.Key != "" {
		active, err := middleware.ParseKey(cfg.Encryption.Key)
		if err != nil {
			return nil, fmt.Errorf("store.encryption.key: %w", err)
		}
		enc := middleware.EncryptionConfig{ActiveKey: active}
		for i, k := range cfg.Encryption.FallbackKeys {
			key, err := middleware.ParseKey(k)
			if err != nil {
				return nil, fmt.Errorf("store.encryption.fallback_keys[%d]: %w", i, err)
			}
			enc.FallbackKeys = append(enc.FallbackKeys, key)
		}
		mw, err := middleware.NewEncryptionMiddleware(enc)
		if err != nil {
			return nil, err
		}
		mws = append(mws, mw)
	}
	return middleware.Chain(repo, mws...), nil
}

func newGenerator(cfg config.Generator) (ports.Generator, error) {
	switch cfg.Provider {
	case config.ProviderOllama:
		model := cfg.Model
		if model == "" {
			model = "llama3"
		}
		return langchain.NewOllama(model, cfg.BaseURL, langchain.WithLogger(logger))
	case config.ProviderScripted:
		return demoGenerator(), nil
	default:
		if cfg.APIKey == "" {
			return nil, errors.New("the openai generator needs generator.api_key or OPENAI_API_KEY")
		}
		opts := []openaigen.Option{openaigen.WithLogger(logger)}
		if cfg.Model != "" {
			opts = append(opts, openaigen.WithModel(cfg.Model))
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openaigen.WithBaseURL(cfg.BaseURL))
		}
		return openaigen.New(cfg.APIKey, opts...), nil
	}
}

// demoGenerator answers every node with canned output so the whole flow runs offline.
func demoGenerator() *scripted.Generator {
	return scripted.New().
		OnJSON(nodes.KindPlanner, map[string]any{
			"response": "Sounds good. Who is the audience, and how many minutes do you have?",
			"presentation_plan": map[string]any{
				"title":    "Demo presentation",
				"tone":     "friendly",
				"duration": 5,
			},
		}).
		On(nodes.KindChat, scripted.Reply{Content: "Happy to help with your talk."}).
		OnJSON(nodes.KindOutline, map[string]any{"slides": []map[string]any{
			{"slide_number": 1, "title": "Welcome", "description": "Set the scene", "time_spent_on_slide": 60},
			{"slide_number": 2, "title": "The idea", "description": "Core message", "time_spent_on_slide": 180},
			{"slide_number": 3, "title": "Wrap up", "description": "Call to action", "time_spent_on_slide": 60},
		}}).
		OnJSON(nodes.KindSlideContent, map[string]any{"slides": []map[string]any{
			{"slide_number": 1, "content": "Hello and welcome"},
			{"slide_number": 2, "content": "One idea, three examples"},
			{"slide_number": 3, "content": "Try it this week"},
		}}).
		OnJSON(nodes.KindSpeakerNotes, map[string]any{"slides": []map[string]any{
			{"slide_number": 1, "speaker_notes": "Introduce yourself."},
			{"slide_number": 2, "speaker_notes": "Tell the story behind the idea."},
			{"slide_number": 3, "speaker_notes": "Ask for questions."},
		}}).
		OnJSON(nodes.KindDeliveryTutorial, map[string]any{"slides": []map[string]any{
			{"slide_number": 1, "delivery_tutorial": "Smile and make eye contact."},
			{"slide_number": 2, "delivery_tutorial": "Slow down on the key sentence."},
			{"slide_number": 3, "delivery_tutorial": "Pause before the call to action."},
		}})
}
