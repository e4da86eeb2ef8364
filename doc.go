/*
Package kmol is the core of a node-based project editor.

A project is a single file holding an ordered tree of named nodes. Each node
carries free-form text that is usually a script. The library manages any
number of open projects, tracks unsaved changes per project, saves
atomically and runs node content through a pluggable evaluator.

# Architecture

The root package is a facade over smaller packages a host can also use
directly:

  - pkg/domain: the node tree, its invariants, sentinel errors and lifecycle events.
  - pkg/ports: the ProjectCodec and ScriptEvaluator interfaces.
  - pkg/project: the store of open projects with dirty tracking.
  - pkg/script: the runner that contains script failures and timeouts.
  - pkg/adapters: evaluators (yaegi, process), an in-memory codec, HTTP and MCP servers.

Node content is untrusted input. Script isolation is limited to error
containment; it is not a sandbox.

# Usage

	ed := kmol.New(kmol.WithScriptTimeout(5 * time.Second))
	ctx := context.Background()

	p, err := ed.New(ctx, "demo.kmol")
	if err != nil {
		log.Fatal(err)
	}

	id, _ := ed.AddChild(ctx, p.Path(), p.Root().ID(), "hello")
	_ = ed.SetContent(ctx, p.Path(), id, `package main

	import "fmt"

	func main() { fmt.Println("hello") }
	`)

	_ = ed.Execute(ctx, p.Path(), id, os.Stdout)

	if err := ed.Save(ctx, p.Path()); err != nil {
		log.Fatal(err)
	}
*/
package kmol
