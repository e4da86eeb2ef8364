// Package dto holds the JSON shapes shared by the HTTP and MCP adapters.
package dto

import (
	"github.com/kmol-editor/kmol/pkg/domain"
	"github.com/kmol-editor/kmol/pkg/project"
)

// Node is the JSON form of a node and, for tree responses, its subtree.
type Node struct {
	ID       domain.NodeID `json:"id" jsonschema_description:"Node id, unique within the project"`
	Name     string        `json:"name"`
	Content  string        `json:"content,omitempty"`
	Children []Node        `json:"children,omitempty"`
}

// ProjectInfo summarises an open project.
type ProjectInfo struct {
	Path  string `json:"path" jsonschema_description:"Normalised project file path"`
	Name  string `json:"name"`
	Dirty bool   `json:"dirty" jsonschema_description:"True when there are unsaved changes"`
	Nodes int    `json:"nodes"`
}

// Tree is a project summary plus its full node tree.
type Tree struct {
	ProjectInfo
	Root Node `json:"root"`
}

// IDResult carries the id of a created node.
type IDResult struct {
	ID domain.NodeID `json:"id"`
}

// MapProject summarises p.
func MapProject(p *project.Project) ProjectInfo {
	return ProjectInfo{Path: p.Path(), Name: p.Name(), Dirty: p.Dirty(), Nodes: p.Len()}
}

// MapTree converts the whole project.
func MapTree(p *project.Project) Tree {
	return Tree{ProjectInfo: MapProject(p), Root: MapNode(p.Root(), true)}
}

// MapNode converts n; with deep set the whole subtree is included.
func MapNode(n *domain.Node, deep bool) Node {
	out := Node{ID: n.ID(), Name: n.Name(), Content: n.Content()}
	if deep {
		for _, c := range n.Children() {
			out.Children = append(out.Children, MapNode(c, true))
		}
	}
	return out
}
