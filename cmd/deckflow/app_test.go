package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/deckflow/internal/config"
	"github.com/aretw0/deckflow/internal/logging"
	"github.com/aretw0/deckflow/pkg/domain"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	logger = logging.NewNop()
}

func scriptedConfig() config.Config {
	c := config.Default()
	c.Generator.Provider = config.ProviderScripted
	return c
}

func runDemo(t *testing.T, c config.Config) *app {
	t.Helper()
	a, err := buildApp(c)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close(context.Background()) })

	ctx := context.Background()
	p, err := a.assistant.CreateProject(ctx, "Demo", "")
	require.NoError(t, err)
	reply, err := a.assistant.SendMessage(ctx, p.ID, "A five minute talk")
	require.NoError(t, err)
	require.Len(t, reply.Replies, 1)

	out, err := a.assistant.Generate(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, out.Slides, 3)
	assert.Equal(t, domain.PhaseReview, out.Phase)
	return a
}

func TestBuildApp_MemoryDemo(t *testing.T) {
	a := runDemo(t, scriptedConfig())
	n, err := testutil.GatherAndCount(a.registry, "deckflow_node_visits_total")
	require.NoError(t, err)
	assert.Positive(t, n)
}

func TestBuildApp_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	c := scriptedConfig()
	c.Store.Driver = config.StoreRedis
	c.Store.Redis.Addr = mr.Addr()
	c.Store.Redis.Prefix = "demo:"

	runDemo(t, c)
	assert.NotEmpty(t, mr.Keys())
}

func TestBuildApp_Badger(t *testing.T) {
	c := scriptedConfig()
	c.Store.Driver = config.StoreBadger
	c.Store.Badger.Path = filepath.Join(t.TempDir(), "db")
	runDemo(t, c)
}

func TestBuildApp_Errors(t *testing.T) {
	noKey := config.Default()
	_, err := buildApp(noKey)
	assert.ErrorContains(t, err, "OPENAI_API_KEY")

	badWorkflow := scriptedConfig()
	badWorkflow.Workflow.Name = "nope"
	_, err = buildApp(badWorkflow)
	assert.Error(t, err)

	badFile := scriptedConfig()
	badFile.Workflow.TopologyFile = filepath.Join(t.TempDir(), "missing.yaml")
	_, err = buildApp(badFile)
	assert.Error(t, err)
}

func TestBuildApp_TopologyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: helpdesk
nodes:
  - id: answer
    kind: chat
edges:
  - from: START
    to: answer
  - from: answer
    to: END
`), 0o600))
	c := scriptedConfig()
	c.Workflow.TopologyFile = path

	a, err := buildApp(c)
	require.NoError(t, err)
	defer a.Close(context.Background())
	assert.Equal(t, "helpdesk", a.assistant.Workflow())

	ctx := context.Background()
	p, err := a.assistant.CreateProject(ctx, "Help", "")
	require.NoError(t, err)
	reply, err := a.assistant.SendMessage(ctx, p.ID, "hi")
	require.NoError(t, err)
	require.Len(t, reply.Replies, 1)
	assert.Equal(t, "Happy to help with your talk.", reply.Replies[0].Content)
}

func TestBuildApp_EncryptedRedactedStore(t *testing.T) {
	mr := miniredis.RunT(t)
	c := scriptedConfig()
	c.Store.Driver = config.StoreRedis
	c.Store.Redis.Addr = mr.Addr()
	c.Store.Redaction.Enabled = true
	c.Store.Encryption.Key = "MDEyMzQ1Njc4OTAxMjM0NTY3ODkwMTIzNDU2Nzg5MDE="

	a := runDemo(t, c)
	projects, err := a.assistant.ListProjects(context.Background())
	require.NoError(t, err)
	require.Len(t, projects, 1)

	page, err := a.assistant.History(context.Background(), projects[0].ID, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, "A five minute talk", page.Messages[0].Content)

	c.Store.Encryption.Key = "bad"
	_, err = buildApp(c)
	assert.Error(t, err)
}
