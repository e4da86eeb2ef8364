/*
Package domain contains the core data model of the kmol editor.

It defines the project Tree, its Nodes, the error taxonomy shared by every
layer and the lifecycle events emitted by the project store and the script
runner. The package is kept pure: no I/O, no persistence, no execution.

# Key Entities

  - Tree: a rooted, ordered, acyclic tree with structural mutation primitives
    (AddChild, DeleteNode, CloneNode, SetContent, Rename).
  - Node: a read-only view of one tree element (id, name, content, children).
  - NodeID: per-tree identifier from a monotonically increasing counter.
  - LifecycleHooks: callbacks for mutation, open, save, close and script events.

# Invariants

Ids are unique within a tree and never reused. The parent relation is an
id -> parent id table owned by the Tree, never a pointer from child to
parent. The root is never deleted and never cloned.
*/
package domain
