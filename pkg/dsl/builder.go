package dsl

import (
	"context"
	"fmt"

	"github.com/kmol-editor/kmol/pkg/domain"
	"github.com/kmol-editor/kmol/pkg/ports"
)

// Builder manages the tree construction.
type Builder struct {
	root *NodeBuilder
}

// NodeBuilder describes one node and its children.
type NodeBuilder struct {
	name     string
	content  string
	parent   *NodeBuilder
	children []*NodeBuilder
}

// New creates a builder whose root node is named rootName.
func New(rootName string) *Builder {
	return &Builder{root: &NodeBuilder{name: rootName}}
}

// Root returns the root node builder.
func (b *Builder) Root() *NodeBuilder { return b.root }

// Add appends a child named name and returns its builder. An empty name
// becomes domain.DefaultNodeName when the tree is built.
func (nb *NodeBuilder) Add(name string) *NodeBuilder {
	child := &NodeBuilder{name: name, parent: nb}
	nb.children = append(nb.children, child)
	return child
}

// Content sets the node content.
func (nb *NodeBuilder) Content(content string) *NodeBuilder {
	nb.content = content
	return nb
}

// Up returns the parent builder, or nb itself for the root.
func (nb *NodeBuilder) Up() *NodeBuilder {
	if nb.parent == nil {
		return nb
	}
	return nb.parent
}

// Build creates the tree. Ids are assigned in preorder, as after loading a
// saved project. Invalid names are reported with the path of the node.
func (b *Builder) Build() (*domain.Tree, error) {
	if err := domain.ValidateName(b.root.name); err != nil {
		return nil, fmt.Errorf("root: %w", err)
	}
	tree := domain.NewTree(b.root.name)
	if err := tree.SetContent(tree.Root().ID(), b.root.content); err != nil {
		return nil, err
	}
	if err := addChildren(tree, tree.Root().ID(), b.root, b.root.name); err != nil {
		return nil, err
	}
	return tree, nil
}

func addChildren(tree *domain.Tree, parent domain.NodeID, nb *NodeBuilder, path string) error {
	for _, c := range nb.children {
		childPath := path + "/" + c.name
		id, err := tree.AddChild(parent, c.name)
		if err != nil {
			return fmt.Errorf("%s: %w", childPath, err)
		}
		if err := tree.SetContent(id, c.content); err != nil {
			return fmt.Errorf("%s: %w", childPath, err)
		}
		if err := addChildren(tree, id, c, childPath); err != nil {
			return err
		}
	}
	return nil
}

// Seed builds the tree and saves it through codec at path.
func (b *Builder) Seed(ctx context.Context, codec ports.ProjectCodec, path string) error {
	tree, err := b.Build()
	if err != nil {
		return err
	}
	if err := codec.Save(ctx, path, tree); err != nil {
		return fmt.Errorf("failed to seed %s: %w", path, err)
	}
	return nil
}
