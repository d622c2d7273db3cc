package observability_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/deckflow/pkg/domain"
	"github.com/aretw0/deckflow/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsHooks(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := observability.NewMetrics(reg)
	require.NoError(t, err)
	hooks := m.Hooks()
	ctx := context.Background()

	hooks.OnNodeEnter(ctx, &domain.NodeEvent{NodeID: "planner"})
	hooks.OnNodeEnter(ctx, &domain.NodeEvent{NodeID: "planner"})
	hooks.OnNodeLeave(ctx, &domain.NodeEvent{NodeID: "planner", Duration: 20 * time.Millisecond})
	hooks.OnNodeLeave(ctx, &domain.NodeEvent{NodeID: "planner", Duration: time.Second, Err: errors.New("boom")})
	hooks.OnRoute(ctx, &domain.RouteEvent{From: domain.Start, To: "planner", Router: "phase"})
	hooks.OnRoute(ctx, &domain.RouteEvent{From: "outline", To: "slide"})
	hooks.OnToolReturn(ctx, &domain.ToolEvent{ToolName: "update_plan"})
	hooks.OnToolReturn(ctx, &domain.ToolEvent{ToolName: "update_plan", IsError: true})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.NodeVisits.WithLabelValues("planner")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Routes.WithLabelValues("phase", "planner")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Routes.WithLabelValues("static", "slide")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ToolCalls.WithLabelValues("update_plan", observability.OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ToolCalls.WithLabelValues("update_plan", observability.OutcomeError)))
	assert.Equal(t, 2, testutil.CollectAndCount(m.NodeDuration))

	expected := `
# HELP deckflow_node_visits_total Total number of node executions started.
# TYPE deckflow_node_visits_total counter
deckflow_node_visits_total{node_id="planner"} 2
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "deckflow_node_visits_total"))
}

func TestNewMetrics_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := observability.NewMetrics(reg)
	require.NoError(t, err)
	_, err = observability.NewMetrics(reg)
	assert.Error(t, err)
}

func TestLoggingHooks(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	hooks := observability.LoggingHooks(logger)
	ctx := context.Background()

	hooks.OnNodeEnter(ctx, &domain.NodeEvent{EventBase: domain.EventBase{ProjectID: "p1"}, NodeID: "outline", Step: 1})
	hooks.OnNodeLeave(ctx, &domain.NodeEvent{NodeID: "outline", Err: errors.New("bad json")})
	hooks.OnRoute(ctx, &domain.RouteEvent{From: "planner", To: domain.End, Router: "tool_calls"})
	hooks.OnToolCall(ctx, &domain.ToolEvent{ToolName: "set_phase"})
	hooks.OnToolReturn(ctx, &domain.ToolEvent{ToolName: "set_phase", IsError: true})

	out := buf.String()
	assert.Contains(t, out, `"msg":"node_enter"`)
	assert.Contains(t, out, `"project_id":"p1"`)
	assert.Contains(t, out, `"msg":"node_failed"`)
	assert.Contains(t, out, `"err":"bad json"`)
	assert.Contains(t, out, `"msg":"route"`)
	assert.Contains(t, out, `"msg":"tool_call"`)
	assert.Contains(t, out, `"level":"WARN","msg":"tool_return"`)
}

func TestCombinedWithLogging(t *testing.T) {
	m, err := observability.NewMetrics(prometheus.NewRegistry())
	require.NoError(t, err)
	var buf bytes.Buffer
	hooks := domain.CombineHooks(m.Hooks(), observability.LoggingHooks(slog.New(slog.NewTextHandler(&buf, nil))))

	hooks.OnNodeEnter(context.Background(), &domain.NodeEvent{NodeID: "chat"})
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NodeVisits.WithLabelValues("chat")))
	assert.Contains(t, buf.String(), "node_enter")
}
