package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/deckflow/pkg/domain"
)

// LoggingHooks writes one record per lifecycle event.
// Node and tool events log at info, routing at debug, failures at warn.
func LoggingHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnNodeEnter: func(ctx context.Context, e *domain.NodeEvent) {
			logger.InfoContext(ctx, "node_enter",
				"project_id", e.ProjectID,
				"node_id", e.NodeID,
				"step", e.Step,
			)
		},
		OnNodeLeave: func(ctx context.Context, e *domain.NodeEvent) {
			if e.Err != nil {
				logger.WarnContext(ctx, "node_failed",
					"project_id", e.ProjectID,
					"node_id", e.NodeID,
					"duration", e.Duration,
					"err", e.Err,
				)
				return
			}
			logger.InfoContext(ctx, "node_leave",
				"project_id", e.ProjectID,
				"node_id", e.NodeID,
				"duration", e.Duration,
				"fields", e.Fields,
			)
		},
		OnRoute: func(ctx context.Context, e *domain.RouteEvent) {
			logger.DebugContext(ctx, "route",
				"project_id", e.ProjectID,
				"from", e.From,
				"to", e.To,
				"router", e.Router,
			)
		},
		OnToolCall: func(ctx context.Context, e *domain.ToolEvent) {
			logger.InfoContext(ctx, "tool_call",
				"project_id", e.ProjectID,
				"tool_name", e.ToolName,
			)
		},
		OnToolReturn: func(ctx context.Context, e *domain.ToolEvent) {
			level := slog.LevelInfo
			if e.IsError {
				level = slog.LevelWarn
			}
			logger.Log(ctx, level, "tool_return",
				"project_id", e.ProjectID,
				"tool_name", e.ToolName,
				"is_error", e.IsError,
			)
		},
	}
}
