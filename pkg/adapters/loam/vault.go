// Package loam exports kmol projects to a Loam document vault and imports
// them back. Every node becomes one markdown document: the node content is
// the body and the tree position lives in the frontmatter, so a vault can be
// browsed and edited with ordinary note-taking tools.
package loam

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/aretw0/loam"
	"github.com/aretw0/loam/pkg/core"
	"github.com/kmol-editor/kmol/pkg/domain"
)

// Kind marks documents written by Export. Other documents in the vault are
// ignored by Import.
const Kind = "kmol-node"

// NodeMetadata is the frontmatter of an exported node.
type NodeMetadata struct {
	Kind string `json:"kind" mapstructure:"kind"`
	ID   int    `json:"id" mapstructure:"id"`
	Name string `json:"name" mapstructure:"name"`
	// Parent is 0 for the root.
	Parent int `json:"parent" mapstructure:"parent"`
	// Order is the preorder position, which fixes sibling order on import.
	Order int `json:"order" mapstructure:"order"`
	Depth int `json:"depth" mapstructure:"depth"`
}

// Open initializes an unversioned vault rooted at dir, creating the
// directory when needed. Documents are always written to dir itself.
func Open(dir string, opts ...loam.Option) (core.Repository, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, domain.Errorf(domain.ErrIO, "resolve %q: %v", dir, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrIO, err)
	}
	opts = append([]loam.Option{loam.WithVersioning(false), loam.WithForceTemp(false)}, opts...)
	repo, err := loam.Init(abs, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to initialize loam: %w", domain.ErrIO, err)
	}
	return repo, nil
}

// DocumentID names the document holding node id.
func DocumentID(id domain.NodeID) string {
	return fmt.Sprintf("node-%d.md", id)
}

// Export writes every node of tree to repo. The vault must not already hold
// an exported project.
func Export(ctx context.Context, repo core.Repository, tree *domain.Tree) error {
	existing, err := nodes(ctx, repo)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return domain.Errorf(domain.ErrInvalidOperation, "vault already holds %d exported nodes", len(existing))
	}

	order := 0
	return tree.Walk(func(n *domain.Node, depth int) error {
		parent, _ := tree.Parent(n.ID())
		doc := core.Document{
			ID:      DocumentID(n.ID()),
			Content: n.Content(),
			Metadata: core.Metadata{
				"kind":   Kind,
				"id":     int(n.ID()),
				"name":   n.Name(),
				"parent": int(parent),
				"order":  order,
				"depth":  depth,
			},
		}
		order++
		if err := repo.Save(ctx, doc); err != nil {
			return fmt.Errorf("%w: loam save failed for %s: %w", domain.ErrIO, doc.ID, err)
		}
		return nil
	})
}

// Import rebuilds a tree from the documents written by Export. Node ids are
// reassigned in preorder, as on any load.
func Import(ctx context.Context, repo core.Repository) (*domain.Tree, error) {
	docs, err := nodes(ctx, repo)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, domain.Errorf(domain.ErrParse, "vault holds no kmol nodes")
	}
	slices.SortFunc(docs, func(a, b node) int { return a.meta.Order - b.meta.Order })

	root := docs[0]
	if root.meta.Parent != 0 || root.meta.Depth != 0 {
		return nil, domain.Errorf(domain.ErrParse, "%s: first node is not a root", root.docID)
	}
	tree := domain.NewTree(root.meta.Name)
	if err := tree.SetContent(tree.Root().ID(), root.content); err != nil {
		return nil, domain.Errorf(domain.ErrParse, "%s: %v", root.docID, err)
	}

	ids := map[int]domain.NodeID{root.meta.ID: tree.Root().ID()}
	for _, d := range docs[1:] {
		parent, ok := ids[d.meta.Parent]
		if !ok {
			return nil, domain.Errorf(domain.ErrParse, "%s: unknown parent %d", d.docID, d.meta.Parent)
		}
		if _, dup := ids[d.meta.ID]; dup {
			return nil, domain.Errorf(domain.ErrParse, "%s: duplicate node id %d", d.docID, d.meta.ID)
		}
		if d.meta.Name == "" {
			return nil, domain.Errorf(domain.ErrParse, "%s: empty node name", d.docID)
		}
		id, err := tree.AddChild(parent, d.meta.Name)
		if err != nil {
			return nil, domain.Errorf(domain.ErrParse, "%s: %v", d.docID, err)
		}
		if err := tree.SetContent(id, d.content); err != nil {
			return nil, domain.Errorf(domain.ErrParse, "%s: %v", d.docID, err)
		}
		ids[d.meta.ID] = id
	}
	return tree, nil
}

type node struct {
	docID   string
	meta    NodeMetadata
	content string
}

// nodes lists the exported node documents in repo.
func nodes(ctx context.Context, repo core.Repository) ([]node, error) {
	typed := loam.NewTypedRepository[NodeMetadata](repo)
	docs, err := typed.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: loam list failed: %w", domain.ErrIO, err)
	}

	var out []node
	for _, doc := range docs {
		if doc.Data.Kind != Kind {
			continue
		}
		out = append(out, node{docID: doc.ID, meta: doc.Data, content: doc.Content})
	}
	return out, nil
}
