package domain

import (
	"strconv"
)

// NodeID identifies a node within a single Tree.
// Ids are never reused inside a tree, but carry no meaning across reloads.
type NodeID uint64

// String returns the decimal form used by the CLI and the HTTP/MCP adapters.
func (id NodeID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// ParseNodeID parses the decimal form produced by NodeID.String.
func ParseNodeID(s string) (NodeID, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, Errorf(ErrNotFound, "invalid node id %q", s)
	}
	return NodeID(v), nil
}

// DefaultNodeName is used by AddChild when the caller does not provide a name.
const DefaultNodeName = "New node"

// Node is an element of a project Tree.
// Nodes are read-only outside this package: every change goes through Tree,
// which keeps the id index and the parent table consistent.
type Node struct {
	id       NodeID
	name     string
	content  string
	children []*Node
}

// ID returns the node identifier.
func (n *Node) ID() NodeID { return n.id }

// Name returns the display name of the node.
func (n *Node) Name() string { return n.name }

// Content returns the free-form text/script body of the node.
func (n *Node) Content() string { return n.content }

// Children returns the ordered children. The returned slice is a copy.
func (n *Node) Children() []*Node {
	out := make([]*Node, len(n.children))
	copy(out, n.children)
	return out
}

// ChildCount returns the number of direct children.
func (n *Node) ChildCount() int { return len(n.children) }

// ChildNames is a convenience used by tests and presentation code.
func (n *Node) ChildNames() []string {
	names := make([]string, len(n.children))
	for i, c := range n.children {
		names[i] = c.name
	}
	return names
}

// size returns the number of nodes in the subtree rooted at n.
func (n *Node) size() int {
	count := 1
	for _, c := range n.children {
		count += c.size()
	}
	return count
}

func (n *Node) indexOf(child NodeID) int {
	for i, c := range n.children {
		if c.id == child {
			return i
		}
	}
	return -1
}
