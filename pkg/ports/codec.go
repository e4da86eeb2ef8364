package ports

import (
	"context"

	"github.com/kmol-editor/kmol/pkg/domain"
)

// ProjectCodec converts a project tree to and from its persisted form.
type ProjectCodec interface {
	// Load parses the project at path into a fresh tree.
	// Returns domain.ErrParse for structurally invalid content and
	// domain.ErrIO when the file cannot be read.
	Load(ctx context.Context, path string) (*domain.Tree, error)

	// Save serializes the tree and replaces the file at path atomically.
	// On failure it returns domain.ErrIO and the previous file is left intact.
	Save(ctx context.Context, path string, tree *domain.Tree) error

	// Exists reports whether something is already stored at path.
	Exists(ctx context.Context, path string) (bool, error)
}
