package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"

	"github.com/kmol-editor/kmol"
	"github.com/kmol-editor/kmol/internal/logging"
	"github.com/kmol-editor/kmol/internal/presentation/graph"
	"github.com/kmol-editor/kmol/internal/presentation/outline"
	"github.com/kmol-editor/kmol/internal/presentation/tui"
	"github.com/kmol-editor/kmol/pkg/domain"
	"github.com/kmol-editor/kmol/pkg/project"
	"github.com/muesli/termenv"
)

// ProjectExt is appended by EnsureExt to paths without an extension.
const ProjectExt = ".kmol"

// ErrUnsavedChanges is returned when the shell input ends while projects
// still have unsaved changes.
var ErrUnsavedChanges = errors.New("unsaved changes")

// EnsureExt adds ProjectExt when path has no extension.
func EnsureExt(path string) string {
	if filepath.Ext(path) == "" {
		return path + ProjectExt
	}
	return path
}

type command struct {
	usage string
	help  string
	run   func(ctx context.Context, args string) error
}

// Shell is a line-oriented editing session: one command per line,
// dispatched synchronously against the Editor.
type Shell struct {
	editor   *kmol.Editor
	in       *bufio.Scanner
	out      io.Writer
	current  string
	version  string
	banner   bool
	prompt   string
	profile  termenv.Profile
	renderer func(string) (string, error)
	logger   *slog.Logger
	commands map[string]command
	quit     bool
}

// ShellOption configures the Shell.
type ShellOption func(*Shell)

// WithBanner prints the startup banner for version.
func WithBanner(version string) ShellOption {
	return func(s *Shell) {
		s.banner = true
		s.version = version
	}
}

// WithPrompt sets the prompt printed before each line. Empty disables it.
func WithPrompt(prompt string) ShellOption {
	return func(s *Shell) {
		s.prompt = prompt
	}
}

// WithProfile sets the color profile used for tree output.
func WithProfile(p termenv.Profile) ShellOption {
	return func(s *Shell) {
		s.profile = p
	}
}

// WithRenderer renders node content as markdown in "cat".
func WithRenderer(r func(string) (string, error)) ShellOption {
	return func(s *Shell) {
		s.renderer = r
	}
}

// WithShellLogger sets the logger.
func WithShellLogger(logger *slog.Logger) ShellOption {
	return func(s *Shell) {
		s.logger = logger
	}
}

// NewShell creates a Shell reading commands from in.
func NewShell(editor *kmol.Editor, in io.Reader, out io.Writer, opts ...ShellOption) *Shell {
	s := &Shell{
		editor:  editor,
		in:      bufio.NewScanner(in),
		out:     out,
		profile: termenv.Ascii,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.in.Buffer(make([]byte, 64*1024), 16*1024*1024)
	s.registerCommands()
	return s
}

// Current returns the path of the selected project, if any.
func (s *Shell) Current() string { return s.current }

func (s *Shell) registerCommands() {
	s.commands = map[string]command{
		"new":      {"new <path>", "create a project (adds " + ProjectExt + " when missing)", s.cmdNew},
		"open":     {"open <path>", "open a project", s.cmdOpen},
		"use":      {"use <path>", "select an open project", s.cmdUse},
		"projects": {"projects", "list open projects", s.cmdProjects},
		"save":     {"save", "save the selected project", s.cmdSave},
		"close":    {"close", "close the selected project", s.cmdClose(false)},
		"close!":   {"close!", "close discarding unsaved changes", s.cmdClose(true)},
		"tree":     {"tree", "print the node tree", s.cmdTree},
		"cat":      {"cat <id>", "print node content", s.cmdCat},
		"add":      {"add <parent-id> [name]", "append a child node", s.cmdAdd},
		"rm":       {"rm <id>", "delete a node and its subtree", s.cmdRemove},
		"clone":    {"clone <id>", "copy a node next to itself", s.cmdClone},
		"rename":   {"rename <id> <name>", "rename a node", s.cmdRename},
		"set":      {"set <id> [content]", "set content; without content read lines up to a single '.'", s.cmdSet},
		"find":     {"find <pattern>", "list nodes whose path matches a glob", s.cmdFind},
		"run":      {"run <id>", "execute node content", s.cmdRun},
		"graph":    {"graph", "print a Mermaid diagram of the tree", s.cmdGraph},
		"help":     {"help", "list commands", s.cmdHelp},
		"quit":     {"quit", "leave the shell when nothing is unsaved", s.cmdQuit(false)},
		"quit!":    {"quit!", "leave the shell discarding unsaved changes", s.cmdQuit(true)},
	}
	s.commands["exit"] = s.commands["quit"]
}

// Run reads and dispatches commands until quit, end of input or ctx is
// cancelled. Command failures are printed and do not stop the session.
func (s *Shell) Run(ctx context.Context) error {
	if s.banner {
		tui.PrintBanner(s.out, s.version)
	}

	for !s.quit {
		if err := ctx.Err(); err != nil {
			return err
		}
		if s.prompt != "" {
			fmt.Fprint(s.out, s.prompt)
		}
		if !s.in.Scan() {
			if err := s.in.Err(); err != nil {
				return err
			}
			if dirty := s.editor.DirtyPaths(); len(dirty) > 0 {
				return fmt.Errorf("%w in %s", ErrUnsavedChanges, strings.Join(dirty, ", "))
			}
			return nil
		}
		s.Exec(ctx, s.in.Text())
	}
	return nil
}

// Exec dispatches a single command line.
func (s *Shell) Exec(ctx context.Context, line string) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return
	}
	name, args := cutWord(line)
	cmd, ok := s.commands[name]
	if !ok {
		printSystemMessage(s.out, "unknown command %q, try 'help'", name)
		return
	}
	if err := cmd.run(ctx, args); err != nil {
		s.logger.Debug("command failed", "command", name, "error", err)
		fmt.Fprintf(s.out, "error: %v\n", err)
	}
}

func cutWord(s string) (string, string) {
	s = strings.TrimSpace(s)
	word, rest, _ := strings.Cut(s, " ")
	return word, strings.TrimSpace(rest)
}

func parseID(args string) (domain.NodeID, string, error) {
	word, rest := cutWord(args)
	if word == "" {
		return 0, "", domain.Errorf(domain.ErrInvalidOperation, "missing node id")
	}
	id, err := domain.ParseNodeID(word)
	return id, rest, err
}

func (s *Shell) project() (*project.Project, error) {
	if s.current == "" {
		return nil, domain.Errorf(domain.ErrInvalidOperation, "no project selected, use 'open' or 'new'")
	}
	return s.editor.Project(s.current)
}

func (s *Shell) cmdNew(ctx context.Context, args string) error {
	if args == "" {
		return domain.Errorf(domain.ErrInvalidOperation, "missing path")
	}
	p, err := s.editor.New(ctx, EnsureExt(args))
	if err != nil && !errors.Is(err, domain.ErrDuplicateOpen) {
		return err
	}
	s.current = p.Path()
	printSystemMessage(s.out, "Project '%s' created at %s.", p.Name(), p.Path())
	return nil
}

func (s *Shell) cmdOpen(ctx context.Context, args string) error {
	if args == "" {
		return domain.Errorf(domain.ErrInvalidOperation, "missing path")
	}
	p, err := s.editor.Open(ctx, args)
	switch {
	case errors.Is(err, domain.ErrDuplicateOpen):
		printSystemMessage(s.out, "Project '%s' is already open.", p.Name())
	case err != nil:
		return err
	default:
		printSystemMessage(s.out, "Project '%s' opened (%d nodes).", p.Name(), p.Len())
	}
	s.current = p.Path()
	return nil
}

func (s *Shell) cmdUse(_ context.Context, args string) error {
	p, err := s.editor.Project(args)
	if err != nil {
		return err
	}
	s.current = p.Path()
	return nil
}

func (s *Shell) cmdProjects(_ context.Context, _ string) error {
	for _, path := range s.editor.Paths() {
		marker := " "
		if path == s.current {
			marker = ">"
		}
		dirty := ""
		if s.editor.IsDirty(path) {
			dirty = " " + outline.DirtyMarker
		}
		fmt.Fprintf(s.out, "%s %s%s\n", marker, path, dirty)
	}
	return nil
}

func (s *Shell) cmdSave(ctx context.Context, _ string) error {
	p, err := s.project()
	if err != nil {
		return err
	}
	ps, err := s.editor.SaveAsync(ctx, p.Path())
	if err != nil {
		return err
	}
	if err := s.editor.Finish(ps); err != nil {
		return err
	}
	printSystemMessage(s.out, "Saved %s.", p.Path())
	return nil
}

func (s *Shell) cmdClose(force bool) func(context.Context, string) error {
	return func(ctx context.Context, _ string) error {
		p, err := s.project()
		if err != nil {
			return err
		}
		if err := s.editor.Close(ctx, p.Path(), force); err != nil {
			if errors.Is(err, domain.ErrInvalidOperation) {
				return fmt.Errorf("%w (save first or use 'close!')", err)
			}
			return err
		}
		s.current = ""
		if paths := s.editor.Paths(); len(paths) > 0 {
			s.current = paths[0]
		}
		printSystemMessage(s.out, "Closed %s.", p.Path())
		return nil
	}
}

func (s *Shell) cmdTree(_ context.Context, _ string) error {
	p, err := s.project()
	if err != nil {
		return err
	}
	fmt.Fprint(s.out, outline.Render(p, s.profile))
	return nil
}

func (s *Shell) cmdCat(_ context.Context, args string) error {
	p, err := s.project()
	if err != nil {
		return err
	}
	id, _, err := parseID(args)
	if err != nil {
		return err
	}
	n, err := p.FindNode(id)
	if err != nil {
		return err
	}
	if s.renderer != nil {
		out, err := s.renderer(tui.ContentMarkdown(n.Name(), n.Content(), ""))
		if err == nil {
			fmt.Fprint(s.out, out)
			return nil
		}
		s.logger.Debug("markdown rendering failed", "error", err)
	}
	fmt.Fprint(s.out, n.Content())
	if n.Content() != "" && !strings.HasSuffix(n.Content(), "\n") {
		fmt.Fprintln(s.out)
	}
	return nil
}

func (s *Shell) cmdAdd(ctx context.Context, args string) error {
	p, err := s.project()
	if err != nil {
		return err
	}
	parent, name, err := parseID(args)
	if err != nil {
		return err
	}
	id, err := s.editor.AddChild(ctx, p.Path(), parent, name)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "%s\n", id)
	return nil
}

func (s *Shell) cmdRemove(ctx context.Context, args string) error {
	p, err := s.project()
	if err != nil {
		return err
	}
	id, _, err := parseID(args)
	if err != nil {
		return err
	}
	return s.editor.DeleteNode(ctx, p.Path(), id)
}

func (s *Shell) cmdClone(ctx context.Context, args string) error {
	p, err := s.project()
	if err != nil {
		return err
	}
	id, _, err := parseID(args)
	if err != nil {
		return err
	}
	clone, err := s.editor.CloneNode(ctx, p.Path(), id)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "%s\n", clone)
	return nil
}

func (s *Shell) cmdRename(ctx context.Context, args string) error {
	p, err := s.project()
	if err != nil {
		return err
	}
	id, name, err := parseID(args)
	if err != nil {
		return err
	}
	return s.editor.Rename(ctx, p.Path(), id, name)
}

func (s *Shell) cmdSet(ctx context.Context, args string) error {
	p, err := s.project()
	if err != nil {
		return err
	}
	id, content, err := parseID(args)
	if err != nil {
		return err
	}
	if content == "" {
		content, err = s.readBlock()
		if err != nil {
			return err
		}
	}
	return s.editor.SetContent(ctx, p.Path(), id, content)
}

// readBlock reads lines up to a line holding a single ".".
func (s *Shell) readBlock() (string, error) {
	var sb strings.Builder
	for s.in.Scan() {
		line := s.in.Text()
		if line == "." {
			return sb.String(), nil
		}
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	if err := s.in.Err(); err != nil {
		return "", err
	}
	return "", domain.Errorf(domain.ErrInvalidOperation, "content block not terminated by '.'")
}

func (s *Shell) cmdFind(_ context.Context, args string) error {
	p, err := s.project()
	if err != nil {
		return err
	}
	ids, err := p.Glob(args)
	if err != nil {
		return err
	}
	for _, id := range ids {
		path, err := p.NodePath(id)
		if err != nil {
			return err
		}
		fmt.Fprintf(s.out, "[%s] %s\n", id, path)
	}
	return nil
}

func (s *Shell) cmdRun(ctx context.Context, args string) error {
	p, err := s.project()
	if err != nil {
		return err
	}
	id, _, err := parseID(args)
	if err != nil {
		return err
	}
	return s.editor.Execute(ctx, p.Path(), id, s.out)
}

func (s *Shell) cmdGraph(_ context.Context, _ string) error {
	p, err := s.project()
	if err != nil {
		return err
	}
	fmt.Fprint(s.out, graph.GenerateMermaid(p.Snapshot(), nil))
	return nil
}

func (s *Shell) cmdHelp(_ context.Context, _ string) error {
	names := make([]string, 0, len(s.commands))
	for name := range s.commands {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		c := s.commands[name]
		if name == "exit" {
			continue
		}
		fmt.Fprintf(s.out, "  %-24s %s\n", c.usage, c.help)
	}
	return nil
}

func (s *Shell) cmdQuit(force bool) func(context.Context, string) error {
	return func(_ context.Context, _ string) error {
		if dirty := s.editor.DirtyPaths(); len(dirty) > 0 && !force {
			return fmt.Errorf("%w in %s (save them or use 'quit!')", ErrUnsavedChanges, strings.Join(dirty, ", "))
		}
		s.quit = true
		return nil
	}
}
