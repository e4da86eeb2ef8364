package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/kmol-editor/kmol/pkg/domain"
)

// Codec implements ports.ProjectCodec in memory.
// Safe for concurrent use. Useful for tests and for hosts that persist
// projects themselves.
type Codec struct {
	data map[string]*domain.Tree
	mu   sync.RWMutex

	failSave error
}

// NewCodec creates a new in-memory codec.
func NewCodec() *Codec {
	return &Codec{
		data: make(map[string]*domain.Tree),
	}
}

// Save stores a deep copy, so later mutations of the caller's tree are not visible.
func (c *Codec) Save(ctx context.Context, path string, tree *domain.Tree) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrIO, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failSave != nil {
		return domain.Errorf(domain.ErrIO, "%v", c.failSave)
	}
	c.data[path] = tree.Clone()
	return nil
}

// Load returns a copy of the stored tree so the caller can't mutate codec state.
func (c *Codec) Load(ctx context.Context, path string) (*domain.Tree, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrIO, err)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	tree, ok := c.data[path]
	if !ok {
		return nil, domain.Errorf(domain.ErrIO, "no project stored at %s", path)
	}
	return tree.Clone(), nil
}

// Exists reports whether a tree was saved under path.
func (c *Codec) Exists(ctx context.Context, path string) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.data[path]
	return ok, nil
}

// Put seeds the codec with a tree, as if it had been saved earlier.
func (c *Codec) Put(path string, tree *domain.Tree) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[path] = tree.Clone()
}

// SetFailSave makes every following Save fail with err wrapped in
// domain.ErrIO. Pass nil to restore normal behaviour.
func (c *Codec) SetFailSave(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failSave = err
}
