//go:build !windows

package process

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aretw0/deckflow/pkg/domain"
	"github.com/aretw0/deckflow/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sh(name, script string) ProcessConfig {
	return ProcessConfig{Name: name, Command: "sh", Args: []string{"-c", script}, Description: name}
}

func TestRunner_Execute(t *testing.T) {
	r := NewRunner([]ProcessConfig{
		sh("echo_arg", `echo "$DECKFLOW_ARG_MSG $DECKFLOW_ARG_COUNT $DECKFLOW_ARG_TAGS"`),
		{
			Name: "whoami", Command: "sh", Args: []string{"-c", `echo "$DECKFLOW_PROJECT_ID $GREETING"`},
			Environment: map[string]string{"GREETING": "hi"},
		},
		sh("fail", `echo boom >&2; exit 3`),
	})
	state := domain.NewState("p-42", domain.PhasePreparation)

	tests := []struct {
		name string
		tool string
		args map[string]any
		want string
	}{
		{"arguments as env", "echo_arg", map[string]any{"msg": "hello", "count": 3.0, "tags": []any{"a"}}, `hello 3 ["a"]`},
		{"project and static env", "whoami", nil, "p-42 hi"},
		{"failure is text", "fail", nil, "error: fail failed: exit status 3. stderr: boom"},
		{"flag-like names rejected", "echo_arg", map[string]any{"--rm": "x"}, `error: argument name "--rm" must be alphanumeric`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := r.Execute(context.Background(), tt.tool, state, tt.args)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out.Content)
		})
	}
}

func TestRunner_UnknownTool(t *testing.T) {
	_, err := NewRunner(nil).Execute(context.Background(), "hacker_script", nil, nil)
	assert.ErrorIs(t, err, domain.ErrUnknownTool)
}

func TestRunner_Timeout(t *testing.T) {
	r := NewRunner([]ProcessConfig{sh("slow", "exec sleep 5")}, WithTimeout(50*time.Millisecond))
	out, err := r.Execute(context.Background(), "slow", nil, nil)
	require.NoError(t, err)
	assert.Contains(t, out.Content, "error: slow failed")
}

func TestRunner_CancelledContext(t *testing.T) {
	r := NewRunner([]ProcessConfig{sh("slow", "sleep 5")})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.Execute(ctx, "slow", nil, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunner_RegisterAndBaseDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "facts.txt"), []byte("bees dance"), 0o600))

	r := NewRunner([]ProcessConfig{sh("facts", "cat facts.txt")}, WithBaseDir(dir))
	reg := registry.NewRegistry()
	r.Register(reg)

	require.Len(t, reg.Specs(), 1)
	assert.Equal(t, "object", reg.Specs()[0].Parameters["type"])

	out, err := reg.Invoke(context.Background(), domain.NewState("p", domain.PhasePreparation), domain.ToolCall{Name: "facts"})
	require.NoError(t, err)
	assert.Equal(t, "bees dance", out.Content)
}

func TestLoadTools(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
		return path
	}

	tools, err := LoadTools(write("tools.yaml", `
tools:
  - name: word_count
    command: wc
    args: ["-w"]
    description: Count words
`))
	require.NoError(t, err)
	require.Len(t, tools, 1)
	assert.Equal(t, []string{"-w"}, tools[0].Args)

	tools, err = LoadTools(write("tools.json", `{"tools": [{"name": "date", "command": "date"}]}`))
	require.NoError(t, err)
	assert.Equal(t, "date", tools[0].Command)

	tools, err = LoadTools(filepath.Join(dir, "missing.yaml"))
	require.NoError(t, err)
	assert.Empty(t, tools)

	_, err = LoadTools(write("dup.yaml", "tools:\n  - {name: a, command: x}\n  - {name: a, command: y}\n"))
	assert.ErrorContains(t, err, "declared twice")

	_, err = LoadTools(write("nocmd.yaml", "tools:\n  - {name: a}\n"))
	assert.ErrorContains(t, err, "no command")
}
