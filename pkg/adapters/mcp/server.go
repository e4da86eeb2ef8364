// Package mcp exposes an Editor as Model Context Protocol tools so that
// assistants can inspect and edit projects.
package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/kmol-editor/kmol/internal/dto"
	"github.com/kmol-editor/kmol/internal/logging"
	"github.com/kmol-editor/kmol/pkg/domain"
	"github.com/kmol-editor/kmol/pkg/ports"
	"github.com/kmol-editor/kmol/pkg/project"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const projectsURI = "kmol://projects"

// Editor is the subset of kmol.Editor the server drives.
type Editor interface {
	New(ctx context.Context, path string) (*project.Project, error)
	Open(ctx context.Context, path string) (*project.Project, error)
	Close(ctx context.Context, path string, force bool) error
	Save(ctx context.Context, path string) error
	Project(path string) (*project.Project, error)
	Paths() []string
	AddChild(ctx context.Context, path string, parent domain.NodeID, name string) (domain.NodeID, error)
	DeleteNode(ctx context.Context, path string, id domain.NodeID) error
	CloneNode(ctx context.Context, path string, id domain.NodeID) (domain.NodeID, error)
	SetContent(ctx context.Context, path string, id domain.NodeID, content string) error
	Rename(ctx context.Context, path string, id domain.NodeID, name string) error
	Execute(ctx context.Context, path string, id domain.NodeID, sink ports.OutputSink) error
}

// Server wraps an Editor and exposes it as an MCP server. Tool calls are
// serialised through one mutex.
type Server struct {
	mu        sync.Mutex
	editor    Editor
	mcpServer *server.MCPServer
	logger    *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithLogger configures a logger for the Server.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(editor Editor, version string, opts ...Option) *Server {
	s := &Server{
		editor:    editor,
		mcpServer: server.NewMCPServer("kmol-mcp", strings.TrimSpace(version)),
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves the SSE transport on addr until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:    addr,
		Handler: s.SSEHandler("http://" + addr),
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

// SSEHandler returns the /sse and /message endpoints of the SSE transport.
func (s *Server) SSEHandler(baseURL string) http.Handler {
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))
	return mux
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// MCPServer returns the underlying protocol server.
func (s *Server) MCPServer() *server.MCPServer { return s.mcpServer }

func pathArg() mcp.ToolOption {
	return mcp.WithString("path", mcp.Required(), mcp.Description("Project file path"))
}

func nodeArg(desc string) mcp.ToolOption {
	return mcp.WithString("node_id", mcp.Required(), mcp.Description(desc))
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("open_project",
		mcp.WithDescription("Open a project file, or create it when create is true. Returns the project summary."),
		pathArg(),
		mcp.WithBoolean("create", mcp.Description("Create a new project instead of opening an existing one")),
		mcp.WithOutputSchema[dto.ProjectInfo](),
	), mcp.NewStructuredToolHandler(s.handleOpen))

	s.mcpServer.AddTool(mcp.NewTool("list_projects",
		mcp.WithDescription("List open projects with their dirty state."),
	), s.handleList)

	s.mcpServer.AddTool(mcp.NewTool("get_tree",
		mcp.WithDescription("Get the full node tree of an open project, including node contents."),
		pathArg(),
		mcp.WithOutputSchema[dto.Tree](),
	), mcp.NewStructuredToolHandler(s.handleTree))

	s.mcpServer.AddTool(mcp.NewTool("add_child",
		mcp.WithDescription("Append a child node. An empty name becomes \"New node\"."),
		pathArg(),
		nodeArg("Parent node id"),
		mcp.WithString("name", mcp.Description("Name of the new node")),
		mcp.WithOutputSchema[dto.IDResult](),
	), mcp.NewStructuredToolHandler(s.handleAddChild))

	s.mcpServer.AddTool(mcp.NewTool("clone_node",
		mcp.WithDescription("Deep-copy a node and its subtree; the copy is placed right after the original."),
		pathArg(),
		nodeArg("Node id to clone"),
		mcp.WithOutputSchema[dto.IDResult](),
	), mcp.NewStructuredToolHandler(s.handleClone))

	s.mcpServer.AddTool(mcp.NewTool("delete_node",
		mcp.WithDescription("Delete a node and its subtree. The root cannot be deleted."),
		pathArg(),
		nodeArg("Node id to delete"),
	), s.handleDelete)

	s.mcpServer.AddTool(mcp.NewTool("set_content",
		mcp.WithDescription("Replace the content of a node."),
		pathArg(),
		nodeArg("Node id"),
		mcp.WithString("content", mcp.Required(), mcp.Description("New content")),
	), s.handleSetContent)

	s.mcpServer.AddTool(mcp.NewTool("rename_node",
		mcp.WithDescription("Rename a node."),
		pathArg(),
		nodeArg("Node id"),
		mcp.WithString("name", mcp.Required(), mcp.Description("New name")),
	), s.handleRename)

	s.mcpServer.AddTool(mcp.NewTool("save_project",
		mcp.WithDescription("Save a project to its file."),
		pathArg(),
	), s.handleSave)

	s.mcpServer.AddTool(mcp.NewTool("close_project",
		mcp.WithDescription("Close a project. Unsaved changes are refused unless force is true."),
		pathArg(),
		mcp.WithBoolean("force", mcp.Description("Discard unsaved changes")),
	), s.handleClose)

	s.mcpServer.AddTool(mcp.NewTool("run_node",
		mcp.WithDescription("Execute the content of a node and return its output. Script errors are part of the output."),
		pathArg(),
		nodeArg("Node id to run"),
	), s.handleRun)
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(projectsURI, "Open Projects",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		data, err := json.Marshal(s.projects())
		if err != nil {
			return nil, fmt.Errorf("failed to encode projects: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      projectsURI,
				MIMEType: "application/json",
				Text:     string(data),
			},
		}, nil
	})
}

func stringArg(args map[string]interface{}, key string) string {
	v, _ := args[key].(string)
	return v
}

func boolArg(args map[string]interface{}, key string) bool {
	v, _ := args[key].(bool)
	return v
}

func nodeIDArg(args map[string]interface{}) (domain.NodeID, error) {
	switch v := args["node_id"].(type) {
	case string:
		return domain.ParseNodeID(v)
	case float64:
		if v < 1 || v != float64(uint64(v)) {
			return 0, domain.Errorf(domain.ErrNotFound, "invalid node id %v", v)
		}
		return domain.NodeID(v), nil
	default:
		return 0, domain.Errorf(domain.ErrNotFound, "missing node_id")
	}
}

// textResult reports domain errors as tool errors the model can read.
func textResult(msg string, err error) (*mcp.CallToolResult, error) {
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(msg), nil
}

func (s *Server) projects() []dto.ProjectInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	infos := []dto.ProjectInfo{}
	for _, path := range s.editor.Paths() {
		if p, err := s.editor.Project(path); err == nil {
			infos = append(infos, dto.MapProject(p))
		}
	}
	return infos
}

func (s *Server) handleOpen(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (dto.ProjectInfo, error) {
	path := stringArg(args, "path")

	s.mu.Lock()
	defer s.mu.Unlock()

	var p *project.Project
	var err error
	if boolArg(args, "create") {
		p, err = s.editor.New(ctx, path)
	} else {
		p, err = s.editor.Open(ctx, path)
	}
	if err != nil && !errors.Is(err, domain.ErrDuplicateOpen) {
		s.logger.Warn("MCP open failed", "path", path, "error", err)
		return dto.ProjectInfo{}, err
	}
	return dto.MapProject(p), nil
}

func (s *Server) handleList(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(s.projects())
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) handleTree(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (dto.Tree, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.editor.Project(stringArg(args, "path"))
	if err != nil {
		return dto.Tree{}, err
	}
	return dto.MapTree(p), nil
}

func (s *Server) handleAddChild(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (dto.IDResult, error) {
	parent, err := nodeIDArg(args)
	if err != nil {
		return dto.IDResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.editor.AddChild(ctx, stringArg(args, "path"), parent, stringArg(args, "name"))
	if err != nil {
		return dto.IDResult{}, err
	}
	return dto.IDResult{ID: id}, nil
}

func (s *Server) handleClone(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (dto.IDResult, error) {
	src, err := nodeIDArg(args)
	if err != nil {
		return dto.IDResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.editor.CloneNode(ctx, stringArg(args, "path"), src)
	if err != nil {
		return dto.IDResult{}, err
	}
	return dto.IDResult{ID: id}, nil
}

func (s *Server) handleDelete(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	id, err := nodeIDArg(args)
	if err != nil {
		return textResult("", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return textResult(fmt.Sprintf("deleted node %s", id), s.editor.DeleteNode(ctx, stringArg(args, "path"), id))
}

func (s *Server) handleSetContent(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	id, err := nodeIDArg(args)
	if err != nil {
		return textResult("", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	err = s.editor.SetContent(ctx, stringArg(args, "path"), id, stringArg(args, "content"))
	return textResult(fmt.Sprintf("updated content of node %s", id), err)
}

func (s *Server) handleRename(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	id, err := nodeIDArg(args)
	if err != nil {
		return textResult("", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	err = s.editor.Rename(ctx, stringArg(args, "path"), id, stringArg(args, "name"))
	return textResult(fmt.Sprintf("renamed node %s", id), err)
}

func (s *Server) handleSave(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path := stringArg(request.GetArguments(), "path")

	s.mu.Lock()
	defer s.mu.Unlock()
	return textResult("saved "+path, s.editor.Save(ctx, path))
}

func (s *Server) handleClose(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	path := stringArg(args, "path")

	s.mu.Lock()
	defer s.mu.Unlock()
	return textResult("closed "+path, s.editor.Close(ctx, path, boolArg(args, "force")))
}

func (s *Server) handleRun(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	id, err := nodeIDArg(args)
	if err != nil {
		return textResult("", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var out bytes.Buffer
	if err := s.editor.Execute(ctx, stringArg(args, "path"), id, &out); err != nil {
		return textResult("", err)
	}
	return mcp.NewToolResultText(out.String()), nil
}
