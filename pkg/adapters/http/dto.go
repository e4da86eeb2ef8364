package http

import (
	"github.com/kmol-editor/kmol/internal/dto"
)

// Response shapes shared with the MCP adapter.
type (
	Node         = dto.Node
	ProjectInfo  = dto.ProjectInfo
	TreeResponse = dto.Tree
	IDResponse   = dto.IDResult
)

// OpenRequest is the body of POST /projects.
type OpenRequest struct {
	Path   string `json:"path"`
	Create bool   `json:"create,omitempty"`
}

// NameRequest is the body of add-child and rename requests.
type NameRequest struct {
	Name string `json:"name"`
}

// ContentRequest is the body of PUT /nodes/{id}/content.
type ContentRequest struct {
	Content string `json:"content"`
}

// RunResponse carries everything a script wrote.
type RunResponse struct {
	Output string `json:"output"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error     string `json:"error"`
	Retryable bool   `json:"retryable,omitempty"`
}
