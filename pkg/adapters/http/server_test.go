package http_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/kmol-editor/kmol"
	kmolhttp "github.com/kmol-editor/kmol/pkg/adapters/http"
	"github.com/kmol-editor/kmol/pkg/adapters/memory"
	"github.com/kmol-editor/kmol/pkg/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoEval prints the script content back.
type echoEval struct{}

func (echoEval) Eval(_ context.Context, src string, stdout, _ io.Writer) error {
	if src == "fail" {
		return fmt.Errorf("failed on purpose")
	}
	_, err := io.WriteString(stdout, src)
	return err
}

func newTestHandler(t *testing.T, opts ...kmolhttp.Option) http.Handler {
	t.Helper()
	ed := kmol.New(kmol.WithCodec(memory.NewCodec()), kmol.WithEvaluator(echoEval{}))
	return kmolhttp.NewHandler(ed, opts...)
}

func do(t *testing.T, h http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(method, target, r))
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestServer_EditingSession(t *testing.T) {
	h := newTestHandler(t)
	q := "?path=" + url.QueryEscape("/mem/a.kmol")

	w := do(t, h, http.MethodPost, "/projects", kmolhttp.OpenRequest{Path: "/mem/a.kmol", Create: true})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	info := decodeBody[kmolhttp.ProjectInfo](t, w)
	assert.Equal(t, "a", info.Name)
	assert.False(t, info.Dirty)

	w = do(t, h, http.MethodPost, "/nodes/1/children"+q, kmolhttp.NameRequest{Name: "n1"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	n1 := decodeBody[kmolhttp.IDResponse](t, w).ID

	w = do(t, h, http.MethodPut, fmt.Sprintf("/nodes/%d/content%s", n1, q), kmolhttp.ContentRequest{Content: "hello"})
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())

	w = do(t, h, http.MethodPost, fmt.Sprintf("/nodes/%d/clone%s", n1, q), nil)
	require.Equal(t, http.StatusCreated, w.Code)
	clone := decodeBody[kmolhttp.IDResponse](t, w).ID
	assert.NotEqual(t, n1, clone)

	w = do(t, h, http.MethodPut, fmt.Sprintf("/nodes/%d/name%s", clone, q), kmolhttp.NameRequest{Name: "copy"})
	require.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, h, http.MethodGet, "/project"+q, nil)
	require.Equal(t, http.StatusOK, w.Code)
	tree := decodeBody[kmolhttp.TreeResponse](t, w)
	assert.True(t, tree.Dirty)
	assert.Equal(t, 3, tree.Nodes)
	require.Len(t, tree.Root.Children, 2)
	assert.Equal(t, "n1", tree.Root.Children[0].Name)
	assert.Equal(t, "copy", tree.Root.Children[1].Name)
	assert.Equal(t, "hello", tree.Root.Children[1].Content)

	w = do(t, h, http.MethodPost, fmt.Sprintf("/nodes/%d/run%s", n1, q), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "hello", decodeBody[kmolhttp.RunResponse](t, w).Output)

	w = do(t, h, http.MethodPost, "/project/close"+q, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = do(t, h, http.MethodPost, "/project/save"+q, nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, h, http.MethodDelete, fmt.Sprintf("/nodes/%d%s", clone, q), nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, h, http.MethodPost, "/project/close"+q+"&force=true", nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, h, http.MethodGet, "/projects", nil)
	assert.Empty(t, decodeBody[[]kmolhttp.ProjectInfo](t, w))

	// Saved state can be reopened.
	w = do(t, h, http.MethodPost, "/projects", kmolhttp.OpenRequest{Path: "/mem/a.kmol"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 3, decodeBody[kmolhttp.ProjectInfo](t, w).Nodes)
}

func TestServer_Errors(t *testing.T) {
	h := newTestHandler(t)
	q := "?path=" + url.QueryEscape("/mem/a.kmol")

	tests := []struct {
		name   string
		method string
		target string
		body   any
		want   int
	}{
		{"project not open", http.MethodGet, "/project" + q, nil, http.StatusNotFound},
		{"missing path", http.MethodGet, "/project", nil, http.StatusBadRequest},
		{"bad id", http.MethodGet, "/nodes/abc" + q, nil, http.StatusBadRequest},
		{"open missing file", http.MethodPost, "/projects", kmolhttp.OpenRequest{Path: "/mem/none.kmol"}, http.StatusInternalServerError},
		{"open without path", http.MethodPost, "/projects", kmolhttp.OpenRequest{}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, tt.method, tt.target, tt.body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
			assert.NotEmpty(t, decodeBody[kmolhttp.ErrorResponse](t, w).Error)
		})
	}

	w := do(t, h, http.MethodPost, "/projects", kmolhttp.OpenRequest{Path: "/mem/a.kmol", Create: true})
	require.Equal(t, http.StatusCreated, w.Code)

	w = do(t, h, http.MethodPost, "/projects", kmolhttp.OpenRequest{Path: "/mem/a.kmol", Create: true})
	assert.Equal(t, http.StatusOK, w.Code, "duplicate open returns the existing project")

	w = do(t, h, http.MethodDelete, "/nodes/1"+q, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code, "root cannot be deleted")

	w = do(t, h, http.MethodGet, "/nodes/42"+q, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, h, http.MethodPut, "/nodes/1/name"+q, kmolhttp.NameRequest{Name: " "})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = do(t, h, http.MethodPost, "/nodes/1/children"+q, "not an object")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestServer_ScriptFailureIsOutput(t *testing.T) {
	h := newTestHandler(t)
	q := "?path=" + url.QueryEscape("/mem/a.kmol")
	require.Equal(t, http.StatusCreated, do(t, h, http.MethodPost, "/projects", kmolhttp.OpenRequest{Path: "/mem/a.kmol", Create: true}).Code)
	require.Equal(t, http.StatusNoContent, do(t, h, http.MethodPut, "/nodes/1/content"+q, kmolhttp.ContentRequest{Content: "fail"}).Code)

	w := do(t, h, http.MethodPost, "/nodes/1/run"+q, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "script error: failed on purpose\n", decodeBody[kmolhttp.RunResponse](t, w).Output)

	// The project is still usable.
	w = do(t, h, http.MethodPost, "/nodes/1/children"+q, kmolhttp.NameRequest{})
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestServer_InfoAndMetrics(t *testing.T) {
	m := observability.NewMetrics()
	h := newTestHandler(t, kmolhttp.WithMetrics(m.Handler()), kmolhttp.WithVersion("1.2.3\n"))

	w := do(t, h, http.MethodGet, "/info", nil)
	assert.Equal(t, "1.2.3", decodeBody[map[string]string](t, w)["version"])

	w = do(t, h, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, h, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "kmol_open_projects")
}

func TestServer_Events(t *testing.T) {
	sm := kmolhttp.NewStreamManager(nil)
	ed := kmol.New(
		kmol.WithCodec(memory.NewCodec()),
		kmol.WithEvaluator(echoEval{}),
		kmol.WithLifecycleHooks(sm.Hooks()),
	)
	srv := httptest.NewServer(kmolhttp.NewHandler(ed, kmolhttp.WithStreams(sm)))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "event: ping\n", line)

	body := strings.NewReader(`{"path":"/mem/a.kmol","create":true}`)
	post, err := http.Post(srv.URL+"/projects", "application/json", body)
	require.NoError(t, err)
	post.Body.Close()

	for {
		line, err = reader.ReadString('\n')
		require.NoError(t, err)
		if strings.HasPrefix(line, "data: {") {
			break
		}
	}
	assert.Contains(t, line, `"type":"open"`)
	assert.Contains(t, line, `"created":true`)
}
