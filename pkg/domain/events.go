package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventMutate EventType = "mutate"
	EventOpen   EventType = "open"
	EventSave   EventType = "save"
	EventClose  EventType = "close"
	EventScript EventType = "script"
)

// MutationOp names a structural or content change applied to a tree.
type MutationOp string

const (
	OpAddChild   MutationOp = "add_child"
	OpDelete     MutationOp = "delete"
	OpClone      MutationOp = "clone"
	OpSetContent MutationOp = "set_content"
	OpRename     MutationOp = "rename"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	Path      string    `json:"path,omitempty"`
}

// MutationEvent is emitted after a successful mutation through the project store.
type MutationEvent struct {
	EventBase
	Op     MutationOp `json:"op"`
	NodeID NodeID     `json:"node_id"`
	// Result is the id created by AddChild or CloneNode.
	Result NodeID `json:"result,omitempty"`
}

// ProjectEvent covers open, new, save and close.
type ProjectEvent struct {
	EventBase
	Created  bool          `json:"created,omitempty"`
	Forced   bool          `json:"forced,omitempty"`
	Nodes    int           `json:"nodes"`
	Duration time.Duration `json:"duration,omitempty"`
	Err      error         `json:"-"`
}

// ScriptEvent reports the outcome of one script execution.
type ScriptEvent struct {
	EventBase
	Duration time.Duration `json:"duration"`
	TimedOut bool          `json:"timed_out,omitempty"`
	Err      error         `json:"-"`
}

// LifecycleHooks defines callbacks for observability. Nil fields are skipped.
// Hooks run synchronously on the caller's goroutine and must not call back
// into the component that fired them.
type LifecycleHooks struct {
	OnMutate func(context.Context, *MutationEvent)
	OnOpen   func(context.Context, *ProjectEvent)
	OnSave   func(context.Context, *ProjectEvent)
	OnClose  func(context.Context, *ProjectEvent)
	OnScript func(context.Context, *ScriptEvent)
}

// NewEventBase stamps an event with the current time.
func NewEventBase(typ EventType, path string) EventBase {
	return EventBase{Timestamp: time.Now(), Type: typ, Path: path}
}
