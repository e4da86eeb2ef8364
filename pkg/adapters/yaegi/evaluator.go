// Package yaegi evaluates node content as Go source with the yaegi interpreter.
package yaegi

import (
	"context"
	"errors"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io"
	"log/slog"
	"path"
	"reflect"
	"slices"
	"strconv"

	"github.com/kmol-editor/kmol/internal/logging"
	"github.com/kmol-editor/kmol/pkg/domain"
	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
)

// SafePackages is an import allow-list without filesystem, process or
// network access.
var SafePackages = []string{
	"bytes",
	"encoding/base64",
	"encoding/json",
	"errors",
	"fmt",
	"math",
	"path",
	"regexp",
	"sort",
	"strconv",
	"strings",
	"time",
	"unicode",
}

// Evaluator implements ports.ScriptEvaluator. Each call gets a fresh
// interpreter, so scripts cannot leave state behind.
//
// A panic on a goroutine the script starts itself cannot be recovered by
// the host and terminates the process, so go statements and time.AfterFunc
// are refused unless WithGoroutines is set.
type Evaluator struct {
	allowed    map[string]bool
	goroutines bool
	symbols    interp.Exports
	logger     *slog.Logger
}

// Option configures the Evaluator.
type Option func(*Evaluator)

// WithAllowedPackages restricts imports to pkgs. Without it every standard
// library package may be imported.
func WithAllowedPackages(pkgs ...string) Option {
	return func(e *Evaluator) {
		e.allowed = make(map[string]bool, len(pkgs))
		for _, p := range pkgs {
			e.allowed[p] = true
		}
	}
}

// WithGoroutines lets scripts start goroutines. A panic on such a goroutine
// crashes the host.
func WithGoroutines(allow bool) Option {
	return func(e *Evaluator) {
		e.goroutines = allow
	}
}

// WithLogger configures a logger for the Evaluator.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Evaluator) {
		e.logger = logger
	}
}

// New creates an Evaluator.
func New(opts ...Option) *Evaluator {
	e := &Evaluator{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	e.symbols = filterSymbols(stdlib.Symbols, e.allowed, e.goroutines)
	return e
}

// Eval runs src. A complete "package main" program has its main function
// executed; anything else is evaluated as a sequence of statements.
func (e *Evaluator) Eval(ctx context.Context, src string, stdout, stderr io.Writer) error {
	file, err := parse(src)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrScript, err)
	}
	if err := e.validateImports(file); err != nil {
		return err
	}
	if !e.goroutines {
		if startsGoroutine(file) {
			return domain.Errorf(domain.ErrScript, "scripts may not start goroutines")
		}
	}

	i := interp.New(interp.Options{Stdout: stdout, Stderr: stderr})
	if err := i.Use(e.symbols); err != nil {
		return fmt.Errorf("failed to load stdlib: %w", err)
	}

	e.logger.Debug("evaluating script", "bytes", len(src))
	if _, err := i.EvalWithContext(ctx, src); err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return err
		}
		return fmt.Errorf("%w: %w", domain.ErrScript, err)
	}
	return nil
}

// validateImports checks every import path against the allow-list.
func (e *Evaluator) validateImports(file *ast.File) error {
	if e.allowed == nil {
		return nil
	}

	var forbidden []string
	for _, pkg := range imports(file) {
		if !e.allowed[pkg] {
			forbidden = append(forbidden, pkg)
		}
	}
	if len(forbidden) > 0 {
		allowed := make([]string, 0, len(e.allowed))
		for p := range e.allowed {
			allowed = append(allowed, p)
		}
		slices.Sort(allowed)
		return domain.Errorf(domain.ErrScript, "forbidden imports %v (allowed: %v)", forbidden, allowed)
	}
	return nil
}

// parse accepts the three shapes yaegi evaluates: a complete file,
// declarations without a package clause, and bare statements.
func parse(src string) (*ast.File, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "", src, parser.SkipObjectResolution)
	if err == nil {
		return file, nil
	}
	if f, e := parser.ParseFile(fset, "", "package main\n"+src, parser.SkipObjectResolution); e == nil {
		return f, nil
	}
	if f, e := parser.ParseFile(fset, "", "package main\nfunc _() {\n"+src+"\n}\n", parser.SkipObjectResolution); e == nil {
		return f, nil
	}
	return nil, err
}

// imports returns the import paths of file, ignoring aliases.
func imports(file *ast.File) []string {
	pkgs := make([]string, 0, len(file.Imports))
	for _, spec := range file.Imports {
		p, err := strconv.Unquote(spec.Path.Value)
		if err != nil {
			p = spec.Path.Value
		}
		pkgs = append(pkgs, p)
	}
	return pkgs
}

// startsGoroutine reports whether file contains a go statement.
func startsGoroutine(file *ast.File) bool {
	found := false
	ast.Inspect(file, func(n ast.Node) bool {
		if _, ok := n.(*ast.GoStmt); ok {
			found = true
		}
		return !found
	})
	return found
}

// filterSymbols keeps the packages in allowed (all of them when allowed is
// nil) so the interpreter itself refuses every other import. Without
// goroutines time.AfterFunc is dropped, as its callback runs on a new
// goroutine.
func filterSymbols(all interp.Exports, allowed map[string]bool, goroutines bool) interp.Exports {
	out := make(interp.Exports, len(all))
	for key, syms := range all {
		// Keys have the form "import/path/name".
		pkg := path.Dir(key)
		if allowed != nil && !allowed[pkg] {
			continue
		}
		if pkg == "time" && !goroutines {
			kept := make(map[string]reflect.Value, len(syms))
			for name, v := range syms {
				if name != "AfterFunc" {
					kept[name] = v
				}
			}
			syms = kept
		}
		out[key] = syms
	}
	return out
}
