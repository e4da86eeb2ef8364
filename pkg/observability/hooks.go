package observability

import (
	"context"
	"log/slog"

	"github.com/kmol-editor/kmol/pkg/domain"
)

// LogHooks returns hooks that write one structured record per event.
func LogHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnMutate: func(ctx context.Context, e *domain.MutationEvent) {
			logger.DebugContext(ctx, "mutate", "path", e.Path, "op", e.Op, "node", e.NodeID, "result", e.Result)
		},
		OnOpen: func(ctx context.Context, e *domain.ProjectEvent) {
			logger.InfoContext(ctx, "open", "path", e.Path, "created", e.Created, "nodes", e.Nodes, "duration", e.Duration)
		},
		OnSave: func(ctx context.Context, e *domain.ProjectEvent) {
			if e.Err != nil {
				logger.ErrorContext(ctx, "save", "path", e.Path, "error", e.Err)
				return
			}
			logger.InfoContext(ctx, "save", "path", e.Path, "nodes", e.Nodes, "duration", e.Duration)
		},
		OnClose: func(ctx context.Context, e *domain.ProjectEvent) {
			logger.InfoContext(ctx, "close", "path", e.Path, "forced", e.Forced)
		},
		OnScript: func(ctx context.Context, e *domain.ScriptEvent) {
			if e.Err != nil {
				logger.WarnContext(ctx, "script", "duration", e.Duration, "timed_out", e.TimedOut, "error", e.Err)
				return
			}
			logger.DebugContext(ctx, "script", "duration", e.Duration)
		},
	}
}

// Combine fans every event out to each set of hooks in order. Nil
// callbacks are skipped.
func Combine(all ...domain.LifecycleHooks) domain.LifecycleHooks {
	var out domain.LifecycleHooks
	for _, h := range all {
		out.OnMutate = chain(out.OnMutate, h.OnMutate)
		out.OnOpen = chain(out.OnOpen, h.OnOpen)
		out.OnSave = chain(out.OnSave, h.OnSave)
		out.OnClose = chain(out.OnClose, h.OnClose)
		out.OnScript = chain(out.OnScript, h.OnScript)
	}
	return out
}

func chain[E any](first, next func(context.Context, E)) func(context.Context, E) {
	switch {
	case first == nil:
		return next
	case next == nil:
		return first
	}
	return func(ctx context.Context, e E) {
		first(ctx, e)
		next(ctx, e)
	}
}
