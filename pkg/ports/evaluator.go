package ports

import (
	"context"
	"io"
)

// ScriptEvaluator executes node content. Implementations decide the language
// and the isolation level; the host can swap in a sandboxed interpreter or
// disable execution entirely.
//
// Eval must honour ctx cancellation as far as the underlying runtime allows.
// Normal output goes to stdout, diagnostics to stderr. A non-nil error means
// the script failed.
type ScriptEvaluator interface {
	Eval(ctx context.Context, src string, stdout, stderr io.Writer) error
}

// OutputSink receives everything a script prints plus the text of any
// script error. A console or log view in the host typically implements it.
type OutputSink interface {
	io.Writer
}
