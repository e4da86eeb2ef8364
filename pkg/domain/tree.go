package domain

import (
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Tree is a rooted, ordered, acyclic tree of nodes belonging to one project.
//
// Children are owned exclusively by their parent's child slice. The parent
// relation is kept in a separate id -> parent id table, so a node never holds
// a reference back to its parent.
//
// Tree is not safe for concurrent use; callers serialise access.
type Tree struct {
	root    *Node
	nodes   map[NodeID]*Node
	parents map[NodeID]NodeID
	nextID  NodeID
}

// NewTree creates a tree holding a single root node.
// An unusable root name is replaced by "untitled".
func NewTree(rootName string) *Tree {
	if ValidateName(rootName) != nil {
		rootName = "untitled"
	}
	t := &Tree{
		nodes:   make(map[NodeID]*Node),
		parents: make(map[NodeID]NodeID),
	}
	t.root = t.newNode(rootName, "")
	return t
}

func (t *Tree) newNode(name, content string) *Node {
	t.nextID++
	n := &Node{id: t.nextID, name: name, content: content}
	t.nodes[n.id] = n
	return n
}

// Root returns the root node.
func (t *Tree) Root() *Node { return t.root }

// Len returns the number of nodes in the tree.
func (t *Tree) Len() int { return len(t.nodes) }

// FindNode returns the node with the given id.
func (t *Tree) FindNode(id NodeID) (*Node, error) {
	n, ok := t.nodes[id]
	if !ok {
		return nil, Errorf(ErrNotFound, "node %d", id)
	}
	return n, nil
}

// Parent returns the parent id of a node. The root has no parent.
func (t *Tree) Parent(id NodeID) (NodeID, bool) {
	p, ok := t.parents[id]
	return p, ok
}

// AddChild appends a new node with empty content as the last child of parentID.
// An empty name is replaced by DefaultNodeName.
func (t *Tree) AddChild(parentID NodeID, name string) (NodeID, error) {
	parent, err := t.FindNode(parentID)
	if err != nil {
		return 0, err
	}
	if name == "" {
		name = DefaultNodeName
	}
	if err := ValidateName(name); err != nil {
		return 0, err
	}

	n := t.newNode(name, "")
	parent.children = append(parent.children, n)
	t.parents[n.id] = parentID
	return n.id, nil
}

// DeleteNode removes a node and its entire subtree. The root cannot be deleted.
func (t *Tree) DeleteNode(id NodeID) error {
	n, err := t.FindNode(id)
	if err != nil {
		return err
	}
	if n == t.root {
		return Errorf(ErrInvalidOperation, "cannot delete root node")
	}

	parent := t.nodes[t.parents[id]]
	i := parent.indexOf(id)
	parent.children = slices.Delete(parent.children, i, i+1)
	t.forget(n)
	return nil
}

func (t *Tree) forget(n *Node) {
	for _, c := range n.children {
		t.forget(c)
	}
	delete(t.nodes, n.id)
	delete(t.parents, n.id)
}

// CloneNode deep-copies the subtree rooted at id, assigning fresh ids to every
// copied node. The copy becomes the sibling immediately after the original.
// The root has no siblings and cannot be cloned.
func (t *Tree) CloneNode(id NodeID) (NodeID, error) {
	n, err := t.FindNode(id)
	if err != nil {
		return 0, err
	}
	if n == t.root {
		return 0, Errorf(ErrInvalidOperation, "cannot clone root node")
	}

	parentID := t.parents[id]
	parent := t.nodes[parentID]
	cp := t.copySubtree(n, parentID)
	i := parent.indexOf(id)
	parent.children = slices.Insert(parent.children, i+1, cp)
	return cp.id, nil
}

// copySubtree assigns ids in preorder so clones number the same way a reload would.
func (t *Tree) copySubtree(src *Node, parentID NodeID) *Node {
	n := t.newNode(src.name, src.content)
	t.parents[n.id] = parentID
	for _, c := range src.children {
		n.children = append(n.children, t.copySubtree(c, n.id))
	}
	return n
}

// SetContent replaces the content of a node.
func (t *Tree) SetContent(id NodeID, content string) error {
	n, err := t.FindNode(id)
	if err != nil {
		return err
	}
	n.content = content
	return nil
}

// Rename changes the name of a node.
func (t *Tree) Rename(id NodeID, name string) error {
	n, err := t.FindNode(id)
	if err != nil {
		return err
	}
	if err := ValidateName(name); err != nil {
		return err
	}
	n.name = name
	return nil
}

// SubtreeSize returns the number of nodes in the subtree rooted at id.
func (t *Tree) SubtreeSize(id NodeID) (int, error) {
	n, err := t.FindNode(id)
	if err != nil {
		return 0, err
	}
	return n.size(), nil
}

// WalkFunc is called for every node in depth-first preorder.
// depth is 0 for the node the walk started from.
type WalkFunc func(n *Node, depth int) error

// Walk visits every node depth-first in preorder, respecting child order.
// A non-nil error from fn stops the walk and is returned.
func (t *Tree) Walk(fn WalkFunc) error {
	return walk(t.root, 0, fn)
}

// WalkFrom walks the subtree rooted at id.
func (t *Tree) WalkFrom(id NodeID, fn WalkFunc) error {
	n, err := t.FindNode(id)
	if err != nil {
		return err
	}
	return walk(n, 0, fn)
}

func walk(n *Node, depth int, fn WalkFunc) error {
	if err := fn(n, depth); err != nil {
		return err
	}
	for _, c := range n.children {
		if err := walk(c, depth+1, fn); err != nil {
			return err
		}
	}
	return nil
}

// Path returns the slash-joined names from the root to the node, e.g. "a/n1/leaf".
// Names may themselves contain slashes, so paths are for display and matching only.
func (t *Tree) Path(id NodeID) (string, error) {
	n, err := t.FindNode(id)
	if err != nil {
		return "", err
	}
	parts := []string{n.name}
	for cur := id; ; {
		p, ok := t.parents[cur]
		if !ok {
			break
		}
		parts = append(parts, t.nodes[p].name)
		cur = p
	}
	slices.Reverse(parts)
	return strings.Join(parts, "/"), nil
}

// Glob returns, in preorder, the ids of nodes whose Path matches pattern.
// Patterns use doublestar syntax ("a/**/test*").
func (t *Tree) Glob(pattern string) ([]NodeID, error) {
	if !doublestar.ValidatePattern(pattern) {
		return nil, Errorf(ErrInvalidOperation, "bad pattern %q", pattern)
	}

	var matches []NodeID
	var prefix []string
	err := t.Walk(func(n *Node, depth int) error {
		prefix = append(prefix[:depth], n.name)
		ok, err := doublestar.Match(pattern, strings.Join(prefix, "/"))
		if err != nil {
			return Errorf(ErrInvalidOperation, "bad pattern %q: %v", pattern, err)
		}
		if ok {
			matches = append(matches, n.id)
		}
		return nil
	})
	return matches, err
}

// Clone returns an independent copy of the whole tree with the same ids.
func (t *Tree) Clone() *Tree {
	cp := &Tree{
		nodes:   make(map[NodeID]*Node, len(t.nodes)),
		parents: make(map[NodeID]NodeID, len(t.parents)),
		nextID:  t.nextID,
	}
	cp.root = cp.cloneKeepingIDs(t.root)
	for k, v := range t.parents {
		cp.parents[k] = v
	}
	return cp
}

func (t *Tree) cloneKeepingIDs(src *Node) *Node {
	n := &Node{id: src.id, name: src.name, content: src.content}
	t.nodes[n.id] = n
	if len(src.children) > 0 {
		n.children = make([]*Node, 0, len(src.children))
	}
	for _, c := range src.children {
		n.children = append(n.children, t.cloneKeepingIDs(c))
	}
	return n
}

// Equal reports structural equality: same names, contents, nesting and child
// order. Node ids are ignored.
func (t *Tree) Equal(other *Tree) bool {
	if t == nil || other == nil {
		return t == other
	}
	return equalNodes(t.root, other.root)
}

func equalNodes(a, b *Node) bool {
	if a.name != b.name || a.content != b.content || len(a.children) != len(b.children) {
		return false
	}
	for i := range a.children {
		if !equalNodes(a.children[i], b.children[i]) {
			return false
		}
	}
	return true
}
