package project

import (
	"path/filepath"
	"strings"

	"github.com/kmol-editor/kmol/pkg/domain"
)

// Project is one open document bound to one file path.
// Its tree is only mutated through the owning Store, which keeps the
// dirty flag accurate; Project itself exposes read access.
type Project struct {
	path   string
	tree   *domain.Tree
	dirty  bool
	saving bool
}

// Path returns the normalised absolute path identifying the project.
func (p *Project) Path() string { return p.path }

// Name returns the root node name.
func (p *Project) Name() string { return p.tree.Root().Name() }

// Dirty reports unsaved changes since the last load or save.
func (p *Project) Dirty() bool { return p.dirty }

// Saving reports whether a background save is pending.
func (p *Project) Saving() bool { return p.saving }

// Root returns the root node.
func (p *Project) Root() *domain.Node { return p.tree.Root() }

// Len returns the number of nodes.
func (p *Project) Len() int { return p.tree.Len() }

// FindNode looks a node up by id.
func (p *Project) FindNode(id domain.NodeID) (*domain.Node, error) {
	return p.tree.FindNode(id)
}

// Parent returns the parent id of a node.
func (p *Project) Parent(id domain.NodeID) (domain.NodeID, bool) {
	return p.tree.Parent(id)
}

// Walk visits every node depth-first in preorder.
func (p *Project) Walk(fn domain.WalkFunc) error {
	return p.tree.Walk(fn)
}

// NodePath returns the slash-joined name path of a node.
func (p *Project) NodePath(id domain.NodeID) (string, error) {
	return p.tree.Path(id)
}

// Glob returns the ids of nodes whose name path matches pattern.
func (p *Project) Glob(pattern string) ([]domain.NodeID, error) {
	return p.tree.Glob(pattern)
}

// Snapshot returns an independent copy of the tree for read-only consumers
// such as exporters that must not observe later mutations.
func (p *Project) Snapshot() *domain.Tree {
	return p.tree.Clone()
}

// RootName derives the root node name from a project path: the base name
// without its extension ("dir/a.kmol" -> "a").
func RootName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Key normalises a path into the identity key used by the Store.
func Key(path string) (string, error) {
	if path == "" {
		return "", domain.Errorf(domain.ErrNotFound, "empty project path")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", domain.Errorf(domain.ErrIO, "resolve %q: %v", path, err)
	}
	return abs, nil
}
