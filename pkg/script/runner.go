package script

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kmol-editor/kmol/internal/logging"
	"github.com/kmol-editor/kmol/pkg/domain"
	"github.com/kmol-editor/kmol/pkg/ports"
)

// DefaultTimeout bounds a single evaluation unless WithTimeout says otherwise.
const DefaultTimeout = 10 * time.Second

// Runner executes content through a ports.ScriptEvaluator.
type Runner struct {
	eval    ports.ScriptEvaluator
	timeout time.Duration
	hooks   domain.LifecycleHooks
	logger  *slog.Logger
}

// Option configures the Runner.
type Option func(*Runner)

// WithTimeout sets the time limit per evaluation. Zero disables the limit.
func WithTimeout(d time.Duration) Option {
	return func(r *Runner) {
		r.timeout = d
	}
}

// WithLogger configures a logger for the Runner.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithHooks registers the OnScript hook.
func WithHooks(hooks domain.LifecycleHooks) Option {
	return func(r *Runner) {
		r.hooks = hooks
	}
}

// NewRunner creates a Runner. A nil evaluator behaves like Disabled.
func NewRunner(eval ports.ScriptEvaluator, opts ...Option) *Runner {
	if eval == nil {
		eval = Disabled{}
	}
	r := &Runner{
		eval:    eval,
		timeout: DefaultTimeout,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Timeout returns the configured time limit.
func (r *Runner) Timeout() time.Duration { return r.timeout }

// Run evaluates content and writes its output to sink. Errors, panics and
// timeouts are reported in the sink as "script error: ..." or
// "script timed out after ...". On timeout Run returns at once; output the
// abandoned evaluation produces afterwards is discarded.
func (r *Runner) Run(ctx context.Context, content string, sink ports.OutputSink) {
	start := time.Now()
	out := &lockedSink{w: sink}

	var runCtx context.Context
	var cancel context.CancelFunc
	if r.timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, r.timeout)
	} else {
		runCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if v := recover(); v != nil {
				done <- fmt.Errorf("panic: %v", v)
			}
		}()
		done <- r.eval.Eval(runCtx, content, out, out)
	}()

	var err error
	select {
	case err = <-done:
	case <-runCtx.Done():
		err = runCtx.Err()
	}

	// An evaluation that finished cleanly counts as success even if the
	// deadline expired while its result was being collected.
	timedOut := err != nil && ctx.Err() == nil && errors.Is(runCtx.Err(), context.DeadlineExceeded)
	var reported error
	switch {
	case timedOut:
		reported = fmt.Errorf("%w after %s", domain.ErrTimedOut, r.timeout)
	case err == nil:
	case errors.Is(err, domain.ErrScript):
		reported = err
	default:
		reported = fmt.Errorf("%w: %w", domain.ErrScript, err)
	}

	if reported != nil {
		out.seal(reported.Error())
		r.logger.Warn("script failed", "duration", time.Since(start), "error", reported)
	} else {
		out.seal("")
		r.logger.Debug("script finished", "duration", time.Since(start))
	}

	if r.hooks.OnScript != nil {
		r.hooks.OnScript(ctx, &domain.ScriptEvent{
			EventBase: domain.NewEventBase(domain.EventScript, ""),
			Duration:  time.Since(start),
			TimedOut:  timedOut,
			Err:       reported,
		})
	}
}
