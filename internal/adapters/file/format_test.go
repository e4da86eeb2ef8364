package file

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/kmol-editor/kmol/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func outline(tree *domain.Tree) []string {
	var lines []string
	_ = tree.Walk(func(n *domain.Node, depth int) error {
		lines = append(lines, strings.Repeat(".", depth)+n.Name()+"="+n.Content())
		return nil
	})
	return lines
}

func TestDecode_HandWritten(t *testing.T) {
	src := `format: kmol
version: 1
nodes:
  - depth: 0
    name: a
  - depth: 1
    name: n1
    content: |
      print("hi")
  - depth: 2
    name: n1.1
  - depth: 1
    name: n2
`
	tree, err := Decode([]byte(src), EncodingYAML)
	require.NoError(t, err)

	want := []string{
		"a=",
		".n1=print(\"hi\")\n",
		"..n1.1=",
		".n2=",
	}
	if diff := cmp.Diff(want, outline(tree)); diff != "" {
		t.Errorf("decoded tree mismatch (-want +got):\n%s", diff)
	}

	// Ids follow preorder.
	var ids []domain.NodeID
	_ = tree.Walk(func(n *domain.Node, _ int) error {
		ids = append(ids, n.ID())
		return nil
	})
	assert.Equal(t, []domain.NodeID{1, 2, 3, 4}, ids)
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"empty", ""},
		{"not yaml", "nodes: [\n"},
		{"wrong format", "format: other\nversion: 1\nnodes: [{depth: 0, name: a}]\n"},
		{"missing version", "format: kmol\nnodes: [{depth: 0, name: a}]\n"},
		{"future version", "format: kmol\nversion: 99\nnodes: [{depth: 0, name: a}]\n"},
		{"no nodes", "format: kmol\nversion: 1\nnodes: []\n"},
		{"root not at depth 0", "format: kmol\nversion: 1\nnodes: [{depth: 1, name: a}]\n"},
		{"two roots", "format: kmol\nversion: 1\nnodes: [{depth: 0, name: a}, {depth: 0, name: b}]\n"},
		{"depth jump", "format: kmol\nversion: 1\nnodes: [{depth: 0, name: a}, {depth: 2, name: b}]\n"},
		{"negative depth", "format: kmol\nversion: 1\nnodes: [{depth: 0, name: a}, {depth: -1, name: b}]\n"},
		{"empty name", "format: kmol\nversion: 1\nnodes: [{depth: 0, name: a}, {depth: 1, name: \"\"}]\n"},
		{"empty root name", "format: kmol\nversion: 1\nnodes: [{depth: 0, name: \"\"}]\n"},
		{"bad checksum", "format: kmol\nversion: 1\nchecksum: abc\nnodes: [{depth: 0, name: a}]\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.src), EncodingYAML)
			assert.ErrorIs(t, err, domain.ErrParse)
		})
	}
}

func TestDecode_DetectsTampering(t *testing.T) {
	tree := domain.NewTree("a")
	id, _ := tree.AddChild(tree.Root().ID(), "n1")
	_ = tree.SetContent(id, "original")

	data, err := Encode(tree, EncodingYAML)
	require.NoError(t, err)
	assert.Contains(t, string(data), "checksum: ")

	tampered := strings.Replace(string(data), "original", "modified", 1)
	_, err = Decode([]byte(tampered), EncodingYAML)
	assert.ErrorIs(t, err, domain.ErrParse)
}

func TestEncode_DepthRecords(t *testing.T) {
	tree := domain.NewTree("a")
	n1, _ := tree.AddChild(tree.Root().ID(), "n1")
	_, _ = tree.AddChild(n1, "deep")

	data, err := Encode(tree, EncodingJSON)
	require.NoError(t, err)

	s := string(data)
	assert.Contains(t, s, `"format": "kmol"`)
	assert.Contains(t, s, `"depth": 2`)
	assert.Less(t, strings.Index(s, `"n1"`), strings.Index(s, `"deep"`))
}

func TestEncodingFor(t *testing.T) {
	assert.Equal(t, EncodingYAML, EncodingFor("a.kmol"))
	assert.Equal(t, EncodingJSON, EncodingFor("a.JSON"))
	assert.Equal(t, EncodingYAML, EncodingFor("noext"))
}

func TestEncode_InvalidUTF8ContentIsByteExact(t *testing.T) {
	for name, enc := range map[string]Encoding{"yaml": EncodingYAML, "json": EncodingJSON} {
		t.Run(name, func(t *testing.T) {
			tree := domain.NewTree("a")
			id, _ := tree.AddChild(tree.Root().ID(), "latin1")
			require.NoError(t, tree.SetContent(id, "caf\xe9 bad\xffutf8"))
			ok, _ := tree.AddChild(tree.Root().ID(), "plain")
			require.NoError(t, tree.SetContent(ok, "café"))

			data, err := Encode(tree, enc)
			require.NoError(t, err)
			assert.Contains(t, string(data), "content_b64")

			loaded, err := Decode(data, enc)
			require.NoError(t, err)
			assert.True(t, tree.Equal(loaded))
			n, err := loaded.FindNode(2)
			require.NoError(t, err)
			assert.Equal(t, []byte("caf\xe9 bad\xffutf8"), []byte(n.Content()))
		})
	}
}

func TestDecode_ContentB64Errors(t *testing.T) {
	tests := []struct {
		name string
		node string
	}{
		{"bad base64", "    content_b64: '%%%'\n"},
		{"both fields", "    content: x\n    content_b64: eA==\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := "format: kmol\nversion: 1\nnodes:\n  - depth: 0\n    name: a\n" + tt.node
			_, err := Decode([]byte(src), EncodingYAML)
			assert.ErrorIs(t, err, domain.ErrParse)
		})
	}
}
