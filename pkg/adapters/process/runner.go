// Package process exposes allow-listed local commands as tools the model can call.
package process

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/aretw0/deckflow/pkg/domain"
	"github.com/aretw0/deckflow/pkg/ports"
	"github.com/aretw0/deckflow/pkg/registry"
)

// DefaultTimeout bounds a single command run.
const DefaultTimeout = 30 * time.Second

// maxOutput caps what a command can feed back into the conversation.
const maxOutput = 16 << 10

var argKey = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// Runner executes registered commands. Only commands registered by name can run.
type Runner struct {
	tools   map[string]ProcessConfig
	baseDir string
	timeout time.Duration
	logger  *slog.Logger
}

// RunnerOption configures the runner.
type RunnerOption func(*Runner)

// WithBaseDir sets the working directory for executed processes.
func WithBaseDir(dir string) RunnerOption {
	return func(r *Runner) { r.baseDir = dir }
}

// WithTimeout bounds each run. Values below one are ignored.
func WithTimeout(d time.Duration) RunnerOption {
	return func(r *Runner) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRunner creates a runner for tools.
func NewRunner(tools []ProcessConfig, opts ...RunnerOption) *Runner {
	r := &Runner{
		tools:   make(map[string]ProcessConfig, len(tools)),
		timeout: DefaultTimeout,
		logger:  slog.New(slog.NewJSONHandler(io.Discard, nil)),
	}
	for _, t := range tools {
		r.tools[t.Name] = t
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Specs describes the registered commands as tools.
func (r *Runner) Specs() []domain.ToolSpec {
	specs := make([]domain.ToolSpec, 0, len(r.tools))
	for _, t := range r.tools {
		params := t.Parameters
		if params == nil {
			params = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		specs = append(specs, domain.ToolSpec{Name: t.Name, Description: t.Description, Parameters: params})
	}
	return specs
}

// Register adds every command to reg.
func (r *Runner) Register(reg *registry.Registry) {
	for _, spec := range r.Specs() {
		reg.Register(spec, r.Func(spec.Name))
	}
}

// Func returns the tool implementation for the command called name.
func (r *Runner) Func(name string) registry.ToolFunction {
	return func(ctx context.Context, state *domain.WorkflowState, args map[string]any) (ports.ToolOutput, error) {
		return r.Execute(ctx, name, state, args)
	}
}

// Execute runs the command called name.
// Arguments are passed as DECKFLOW_ARG_<KEY> environment variables, never as flags.
// A failing command is reported to the model as text; only a cancelled context is an error.
func (r *Runner) Execute(ctx context.Context, name string, state *domain.WorkflowState, args map[string]any) (ports.ToolOutput, error) {
	proc, ok := r.tools[name]
	if !ok {
		return ports.ToolOutput{}, &domain.UnknownToolError{Name: name}
	}

	env, err := argEnv(args)
	if err != nil {
		return ports.ToolOutput{Content: "error: " + err.Error()}, nil
	}
	if state != nil {
		env = append(env, "DECKFLOW_PROJECT_ID="+state.ProjectID)
		if state.PresentationPlan != nil {
			plan, _ := json.Marshal(state.PresentationPlan)
			env = append(env, "DECKFLOW_PLAN="+string(plan))
		}
	}
	for k, v := range proc.Environment {
		env = append(env, k+"="+v)
	}

	runCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, proc.Command, proc.Args...)
	cmd.Dir = r.baseDir
	cmd.WaitDelay = time.Second
	cmd.Env = append(cmd.Environ(), env...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err = cmd.Run()
	r.logger.Debug("process tool finished", "tool", name, "duration", time.Since(start), "err", err)

	if ctx.Err() != nil {
		return ports.ToolOutput{}, ctx.Err()
	}
	if err != nil {
		return ports.ToolOutput{Content: fmt.Sprintf("error: %s failed: %v. stderr: %s", name, err, truncate(strings.TrimSpace(stderr.String())))}, nil
	}
	return ports.ToolOutput{Content: truncate(strings.TrimSpace(stdout.String()))}, nil
}

func argEnv(args map[string]any) ([]string, error) {
	env := make([]string, 0, len(args))
	for k, v := range args {
		if !argKey.MatchString(k) {
			return nil, fmt.Errorf("argument name %q must be alphanumeric", k)
		}
		var val string
		switch v := v.(type) {
		case nil:
		case string:
			val = v
		case bool, int, int64, float64:
			val = fmt.Sprint(v)
		default:
			data, err := json.Marshal(v)
			if err != nil {
				return nil, fmt.Errorf("argument %q: %w", k, err)
			}
			val = string(data)
		}
		env = append(env, fmt.Sprintf("DECKFLOW_ARG_%s=%s", strings.ToUpper(k), val))
	}
	return env, nil
}

func truncate(s string) string {
	if len(s) <= maxOutput {
		return s
	}
	return s[:maxOutput] + "\n[truncated]"
}
