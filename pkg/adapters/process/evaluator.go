// Package process evaluates node content by piping it to an external
// interpreter such as "python3 -" or "sh -s".
package process

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/kmol-editor/kmol/internal/logging"
	"github.com/kmol-editor/kmol/pkg/domain"
)

// Evaluator implements ports.ScriptEvaluator by running one process per
// evaluation. The process is killed when the context ends.
type Evaluator struct {
	interp    Interpreter
	baseDir   string
	waitDelay time.Duration
	logger    *slog.Logger
}

// Option configures the Evaluator.
type Option func(*Evaluator)

// WithBaseDir sets the working directory for executed processes.
func WithBaseDir(dir string) Option {
	return func(e *Evaluator) {
		e.baseDir = dir
	}
}

// WithLogger configures a logger for the Evaluator.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Evaluator) {
		e.logger = logger
	}
}

// NewEvaluator creates an Evaluator for the given interpreter.
func NewEvaluator(interp Interpreter, opts ...Option) *Evaluator {
	e := &Evaluator{
		interp:    interp,
		waitDelay: time.Second,
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Eval writes src to the interpreter's stdin and streams its output.
// A non-zero exit status is reported as domain.ErrScript.
func (e *Evaluator) Eval(ctx context.Context, src string, stdout, stderr io.Writer) error {
	if e.interp.Command == "" {
		return domain.Errorf(domain.ErrScript, "no interpreter command configured")
	}

	cmd := exec.CommandContext(ctx, e.interp.Command, e.interp.Args...)
	cmd.Dir = e.baseDir
	cmd.Stdin = strings.NewReader(src)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	// Children that inherit the output pipes must not keep Wait blocked.
	cmd.WaitDelay = e.waitDelay

	env := make([]string, 0, len(e.interp.Environment))
	for k, v := range e.interp.Environment {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}
	cmd.Env = append(cmd.Environ(), env...)

	e.logger.Debug("starting interpreter", "command", e.interp.Command, "args", e.interp.Args)
	err := cmd.Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if err == nil {
		return nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return domain.Errorf(domain.ErrScript, "%s exited with status %d", e.interp.Command, exitErr.ExitCode())
	}
	return fmt.Errorf("%w: failed to run %s: %w", domain.ErrScript, e.interp.Command, err)
}
