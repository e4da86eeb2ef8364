/*
Package project owns the set of open project documents.

A Store maps normalised file paths to open Projects, orchestrates new, open,
save and close through a ports.ProjectCodec, and tracks per-project dirty
state: every successful mutation made through the Store marks the project
dirty, and only a successful save (or a fresh new/open) clears it.

# Concurrency

A Store is driven from one logical control thread and does no internal
locking. Hosts that accept concurrent requests must serialise calls (see the
HTTP and MCP adapters). The single exception is SaveAsync: it writes a
snapshot of the tree on a background goroutine while the project rejects
mutations with domain.ErrSaveInFlight; the control thread then calls Finish
to receive the result and update dirty state.

# State machine

	Unopened -> Open(Clean)            New / Open
	Open(Clean) -> Open(Dirty)         any mutation
	Open(Dirty) -> Open(Clean)         successful Save / Finish
	Open(*) -> Closed                  Close (dirty requires force)
*/
package project
