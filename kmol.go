package kmol

import (
	"context"
	"log/slog"
	"time"

	"github.com/kmol-editor/kmol/internal/adapters/file"
	"github.com/kmol-editor/kmol/internal/logging"
	"github.com/kmol-editor/kmol/pkg/adapters/yaegi"
	"github.com/kmol-editor/kmol/pkg/domain"
	"github.com/kmol-editor/kmol/pkg/ports"
	"github.com/kmol-editor/kmol/pkg/project"
	"github.com/kmol-editor/kmol/pkg/script"
)

// Editor is the high-level entry point for the kmol library.
// It owns one project store and one script runner and exposes the
// operations a host binds its menus, shortcuts or endpoints to.
//
// Like the store it wraps, an Editor is not safe for concurrent use.
type Editor struct {
	store  *project.Store
	runner *script.Runner

	codec     ports.ProjectCodec
	evaluator ports.ScriptEvaluator
	timeout   *time.Duration
	overwrite bool
	hooks     domain.LifecycleHooks
	logger    *slog.Logger
}

// Option defines a functional option for configuring the Editor.
type Option func(*Editor)

// WithCodec replaces the default file codec.
func WithCodec(c ports.ProjectCodec) Option {
	return func(e *Editor) {
		e.codec = c
	}
}

// WithEvaluator sets the script evaluator. Pass script.Disabled{} to turn
// execution off.
func WithEvaluator(eval ports.ScriptEvaluator) Option {
	return func(e *Editor) {
		e.evaluator = eval
	}
}

// WithScriptTimeout bounds each script run. Zero disables the limit.
func WithScriptTimeout(d time.Duration) Option {
	return func(e *Editor) {
		e.timeout = &d
	}
}

// WithOverwrite lets New replace existing files.
func WithOverwrite(overwrite bool) Option {
	return func(e *Editor) {
		e.overwrite = overwrite
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Editor) {
		e.hooks = hooks
	}
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Editor) {
		e.logger = logger
	}
}

// New creates an Editor. By default projects are stored as files and
// scripts are evaluated by yaegi restricted to yaegi.SafePackages.
func New(opts ...Option) *Editor {
	e := &Editor{}
	for _, opt := range opts {
		opt(e)
	}

	if e.logger == nil {
		e.logger = logging.NewNop()
	}
	if e.codec == nil {
		e.codec = file.New(file.WithLogger(e.logger))
	}
	if e.evaluator == nil {
		e.evaluator = yaegi.New(
			yaegi.WithAllowedPackages(yaegi.SafePackages...),
			yaegi.WithLogger(e.logger),
		)
	}

	e.store = project.NewStore(e.codec,
		project.WithLogger(e.logger),
		project.WithHooks(e.hooks),
		project.WithOverwrite(e.overwrite),
	)

	runnerOpts := []script.Option{
		script.WithLogger(e.logger),
		script.WithHooks(e.hooks),
	}
	if e.timeout != nil {
		runnerOpts = append(runnerOpts, script.WithTimeout(*e.timeout))
	}
	e.runner = script.NewRunner(e.evaluator, runnerOpts...)
	return e
}

// Store returns the underlying project store.
func (e *Editor) Store() *project.Store { return e.store }

// Runner returns the underlying script runner.
func (e *Editor) Runner() *script.Runner { return e.runner }

// New creates and opens a fresh project at path.
func (e *Editor) New(ctx context.Context, path string) (*project.Project, error) {
	return e.store.New(ctx, path)
}

// Open loads the project at path, or returns it with domain.ErrDuplicateOpen
// when it is already open.
func (e *Editor) Open(ctx context.Context, path string) (*project.Project, error) {
	return e.store.Open(ctx, path)
}

// Close closes a project. Dirty projects need force.
func (e *Editor) Close(ctx context.Context, path string, force bool) error {
	return e.store.Close(ctx, path, force)
}

// Save writes a project to its file.
func (e *Editor) Save(ctx context.Context, path string) error {
	return e.store.Save(ctx, path)
}

// SaveAsync starts a background save; complete it with Finish.
func (e *Editor) SaveAsync(ctx context.Context, path string) (*project.PendingSave, error) {
	return e.store.SaveAsync(ctx, path)
}

// Finish completes a background save.
func (e *Editor) Finish(ps *project.PendingSave) error {
	return e.store.Finish(ps)
}

// IsDirty reports unsaved changes.
func (e *Editor) IsDirty(path string) bool { return e.store.IsDirty(path) }

// DirtyPaths lists projects with unsaved changes. Hosts check it before exit.
func (e *Editor) DirtyPaths() []string { return e.store.DirtyPaths() }

// Paths lists open projects.
func (e *Editor) Paths() []string { return e.store.Paths() }

// Project returns an open project.
func (e *Editor) Project(path string) (*project.Project, error) {
	return e.store.Project(path)
}

// FindNode looks a node up in an open project.
func (e *Editor) FindNode(path string, id domain.NodeID) (*domain.Node, error) {
	return e.store.FindNode(path, id)
}

// AddChild appends a child node and returns its id.
func (e *Editor) AddChild(ctx context.Context, path string, parent domain.NodeID, name string) (domain.NodeID, error) {
	return e.store.AddChild(ctx, path, parent, name)
}

// DeleteNode removes a node and its subtree.
func (e *Editor) DeleteNode(ctx context.Context, path string, id domain.NodeID) error {
	return e.store.DeleteNode(ctx, path, id)
}

// CloneNode copies a subtree next to the original.
func (e *Editor) CloneNode(ctx context.Context, path string, id domain.NodeID) (domain.NodeID, error) {
	return e.store.CloneNode(ctx, path, id)
}

// SetContent replaces node content.
func (e *Editor) SetContent(ctx context.Context, path string, id domain.NodeID, content string) error {
	return e.store.SetContent(ctx, path, id, content)
}

// Rename changes a node name.
func (e *Editor) Rename(ctx context.Context, path string, id domain.NodeID, name string) error {
	return e.store.Rename(ctx, path, id, name)
}

// Run evaluates content and reports output and failures to sink.
func (e *Editor) Run(ctx context.Context, content string, sink ports.OutputSink) {
	e.runner.Run(ctx, content, sink)
}

// Execute runs the content of a node. The only error returned is lookup
// failure; script failures are written to sink.
func (e *Editor) Execute(ctx context.Context, path string, id domain.NodeID, sink ports.OutputSink) error {
	n, err := e.store.FindNode(path, id)
	if err != nil {
		return err
	}
	e.runner.Run(ctx, n.Content(), sink)
	return nil
}
