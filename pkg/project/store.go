package project

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"slices"
	"time"

	"github.com/kmol-editor/kmol/internal/logging"
	"github.com/kmol-editor/kmol/pkg/domain"
	"github.com/kmol-editor/kmol/pkg/ports"
)

// Store orchestrates the lifecycle of open projects.
type Store struct {
	codec     ports.ProjectCodec
	projects  map[string]*Project
	overwrite bool
	hooks     domain.LifecycleHooks
	logger    *slog.Logger
}

// Option configures the Store.
type Option func(*Store)

// WithLogger configures a logger for the Store.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithHooks registers lifecycle hooks fired after each operation.
func WithHooks(hooks domain.LifecycleHooks) Option {
	return func(s *Store) {
		s.hooks = hooks
	}
}

// WithOverwrite lets New replace an existing file instead of failing.
func WithOverwrite(overwrite bool) Option {
	return func(s *Store) {
		s.overwrite = overwrite
	}
}

// NewStore creates a Store backed by the given codec.
func NewStore(codec ports.ProjectCodec, opts ...Option) *Store {
	s := &Store{
		codec:    codec,
		projects: make(map[string]*Project),
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// New creates a project with a single root node named after the file and
// writes it immediately. If path is already open the existing project is
// returned together with domain.ErrDuplicateOpen.
func (s *Store) New(ctx context.Context, path string) (*Project, error) {
	key, err := Key(path)
	if err != nil {
		return nil, err
	}
	if p, ok := s.projects[key]; ok {
		return p, domain.Errorf(domain.ErrDuplicateOpen, "%s", key)
	}

	if !s.overwrite {
		exists, err := s.codec.Exists(ctx, key)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, fmt.Errorf("%w: %s: %w", domain.ErrIO, key, fs.ErrExist)
		}
	}

	start := time.Now()
	tree := domain.NewTree(RootName(key))
	if err := s.codec.Save(ctx, key, tree); err != nil {
		s.logger.Warn("failed to create project", "path", key, "error", err)
		return nil, err
	}

	p := &Project{path: key, tree: tree}
	s.projects[key] = p
	s.logger.Info("project created", "path", key)
	s.fireOpen(ctx, p, true, time.Since(start))
	return p, nil
}

// Open loads a project from path. If path is already open the existing
// project is returned unchanged together with domain.ErrDuplicateOpen.
func (s *Store) Open(ctx context.Context, path string) (*Project, error) {
	key, err := Key(path)
	if err != nil {
		return nil, err
	}
	if p, ok := s.projects[key]; ok {
		return p, domain.Errorf(domain.ErrDuplicateOpen, "%s", key)
	}

	start := time.Now()
	tree, err := s.codec.Load(ctx, key)
	if err != nil {
		s.logger.Warn("failed to open project", "path", key, "error", err)
		return nil, err
	}

	p := &Project{path: key, tree: tree}
	s.projects[key] = p
	s.logger.Info("project opened", "path", key, "nodes", tree.Len())
	s.fireOpen(ctx, p, false, time.Since(start))
	return p, nil
}

// Close discards an open project. A dirty project is only closed when force
// is set; the caller is expected to have confirmed with the user.
func (s *Store) Close(ctx context.Context, path string, force bool) error {
	p, err := s.lookup(path)
	if err != nil {
		return err
	}
	if p.saving {
		return domain.Errorf(domain.ErrSaveInFlight, "%s", p.path)
	}
	if p.dirty && !force {
		return domain.Errorf(domain.ErrInvalidOperation, "%s has unsaved changes", p.path)
	}

	delete(s.projects, p.path)
	s.logger.Info("project closed", "path", p.path, "forced", force && p.dirty)
	if s.hooks.OnClose != nil {
		s.hooks.OnClose(ctx, &domain.ProjectEvent{
			EventBase: domain.NewEventBase(domain.EventClose, p.path),
			Forced:    force && p.dirty,
			Nodes:     p.tree.Len(),
		})
	}
	return nil
}

// Save writes the project through the codec. Dirty state is cleared only
// when the write succeeds.
func (s *Store) Save(ctx context.Context, path string) error {
	p, err := s.lookup(path)
	if err != nil {
		return err
	}
	if p.saving {
		return domain.Errorf(domain.ErrSaveInFlight, "%s", p.path)
	}

	start := time.Now()
	err = s.codec.Save(ctx, p.path, p.tree)
	s.fireSave(ctx, p, time.Since(start), err)
	if err != nil {
		s.logger.Warn("failed to save project", "path", p.path, "error", err)
		return err
	}
	p.dirty = false
	s.logger.Info("project saved", "path", p.path, "nodes", p.tree.Len())
	return nil
}

// IsDirty reports unsaved changes for path. Paths that are not open are clean.
func (s *Store) IsDirty(path string) bool {
	p, err := s.lookup(path)
	if err != nil {
		return false
	}
	return p.dirty
}

// DirtyPaths returns the sorted paths of every project with unsaved changes.
func (s *Store) DirtyPaths() []string {
	var paths []string
	for key, p := range s.projects {
		if p.dirty {
			paths = append(paths, key)
		}
	}
	slices.Sort(paths)
	return paths
}

// Paths returns the sorted paths of every open project.
func (s *Store) Paths() []string {
	paths := make([]string, 0, len(s.projects))
	for key := range s.projects {
		paths = append(paths, key)
	}
	slices.Sort(paths)
	return paths
}

// Project returns the open project at path.
func (s *Store) Project(path string) (*Project, error) {
	return s.lookup(path)
}

// FindNode looks a node up in an open project.
func (s *Store) FindNode(path string, id domain.NodeID) (*domain.Node, error) {
	p, err := s.lookup(path)
	if err != nil {
		return nil, err
	}
	return p.tree.FindNode(id)
}

// AddChild appends a new node named name (or domain.DefaultNodeName when
// empty) under parent and returns its id.
func (s *Store) AddChild(ctx context.Context, path string, parent domain.NodeID, name string) (domain.NodeID, error) {
	return s.mutate(ctx, path, domain.OpAddChild, parent, func(t *domain.Tree) (domain.NodeID, error) {
		return t.AddChild(parent, name)
	})
}

// DeleteNode removes a node and its subtree.
func (s *Store) DeleteNode(ctx context.Context, path string, id domain.NodeID) error {
	_, err := s.mutate(ctx, path, domain.OpDelete, id, func(t *domain.Tree) (domain.NodeID, error) {
		return 0, t.DeleteNode(id)
	})
	return err
}

// CloneNode deep-copies a subtree next to the original and returns the copy's id.
func (s *Store) CloneNode(ctx context.Context, path string, id domain.NodeID) (domain.NodeID, error) {
	return s.mutate(ctx, path, domain.OpClone, id, func(t *domain.Tree) (domain.NodeID, error) {
		return t.CloneNode(id)
	})
}

// SetContent replaces the content of a node.
func (s *Store) SetContent(ctx context.Context, path string, id domain.NodeID, content string) error {
	_, err := s.mutate(ctx, path, domain.OpSetContent, id, func(t *domain.Tree) (domain.NodeID, error) {
		return 0, t.SetContent(id, content)
	})
	return err
}

// Rename changes the display name of a node.
func (s *Store) Rename(ctx context.Context, path string, id domain.NodeID, name string) error {
	_, err := s.mutate(ctx, path, domain.OpRename, id, func(t *domain.Tree) (domain.NodeID, error) {
		return 0, t.Rename(id, name)
	})
	return err
}

// mutate applies fn to the project tree and marks the project dirty when
// fn succeeds. Failed mutations leave the tree and dirty flag untouched.
func (s *Store) mutate(ctx context.Context, path string, op domain.MutationOp, id domain.NodeID, fn func(*domain.Tree) (domain.NodeID, error)) (domain.NodeID, error) {
	p, err := s.lookup(path)
	if err != nil {
		return 0, err
	}
	if p.saving {
		return 0, domain.Errorf(domain.ErrSaveInFlight, "%s", p.path)
	}

	result, err := fn(p.tree)
	if err != nil {
		return 0, err
	}
	p.dirty = true

	s.logger.Debug("project mutated", "path", p.path, "op", op, "node", id, "result", result)
	if s.hooks.OnMutate != nil {
		s.hooks.OnMutate(ctx, &domain.MutationEvent{
			EventBase: domain.NewEventBase(domain.EventMutate, p.path),
			Op:        op,
			NodeID:    id,
			Result:    result,
		})
	}
	return result, nil
}

func (s *Store) lookup(path string) (*Project, error) {
	key, err := Key(path)
	if err != nil {
		return nil, err
	}
	p, ok := s.projects[key]
	if !ok {
		return nil, domain.Errorf(domain.ErrNotFound, "project %s is not open", key)
	}
	return p, nil
}

func (s *Store) fireOpen(ctx context.Context, p *Project, created bool, d time.Duration) {
	if s.hooks.OnOpen == nil {
		return
	}
	s.hooks.OnOpen(ctx, &domain.ProjectEvent{
		EventBase: domain.NewEventBase(domain.EventOpen, p.path),
		Created:   created,
		Nodes:     p.tree.Len(),
		Duration:  d,
	})
}

func (s *Store) fireSave(ctx context.Context, p *Project, d time.Duration, err error) {
	if s.hooks.OnSave == nil {
		return
	}
	s.hooks.OnSave(ctx, &domain.ProjectEvent{
		EventBase: domain.NewEventBase(domain.EventSave, p.path),
		Nodes:     p.tree.Len(),
		Duration:  d,
		Err:       err,
	})
}
