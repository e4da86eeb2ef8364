package file

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/kmol-editor/kmol/pkg/domain"
	"gopkg.in/yaml.v3"
	"lukechampine.com/blake3"
)

const (
	// FormatName is the value of the "format" key in every project file.
	FormatName = "kmol"
	// FormatVersion is the newest layout this package reads and the one it writes.
	FormatVersion = 1
	// Extension is the conventional project file extension.
	Extension = ".kmol"
)

// Encoding selects the text syntax of a project file.
type Encoding int

const (
	EncodingYAML Encoding = iota
	EncodingJSON
)

// EncodingFor picks JSON for ".json" paths and YAML for everything else.
func EncodingFor(path string) Encoding {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return EncodingJSON
	}
	return EncodingYAML
}

// document is the on-disk layout: a header followed by the nodes in
// depth-first preorder. Each record carries its depth, which is enough to
// rebuild nesting and sibling order.
type document struct {
	Format   string   `yaml:"format" json:"format"`
	Version  int      `yaml:"version" json:"version"`
	Checksum string   `yaml:"checksum,omitempty" json:"checksum,omitempty"`
	Nodes    []record `yaml:"nodes" json:"nodes"`
}

// record is one node. Content that is not valid UTF-8 is stored base64
// encoded in ContentB64 so that it survives both encoders byte for byte.
type record struct {
	Depth      int    `yaml:"depth" json:"depth"`
	Name       string `yaml:"name" json:"name"`
	Content    string `yaml:"content,omitempty" json:"content,omitempty"`
	ContentB64 string `yaml:"content_b64,omitempty" json:"content_b64,omitempty"`
}

func newRecord(depth int, name, content string) record {
	if utf8.ValidString(content) {
		return record{Depth: depth, Name: name, Content: content}
	}
	return record{Depth: depth, Name: name, ContentB64: base64.StdEncoding.EncodeToString([]byte(content))}
}

// content returns the node content carried by r.
func (r record) content() (string, error) {
	if r.ContentB64 == "" {
		return r.Content, nil
	}
	if r.Content != "" {
		return "", fmt.Errorf("both content and content_b64 are set")
	}
	raw, err := base64.StdEncoding.DecodeString(r.ContentB64)
	if err != nil {
		return "", fmt.Errorf("content_b64: %w", err)
	}
	return string(raw), nil
}

// Encode serializes a tree. Reserved characters in names and content are
// escaped by the YAML or JSON encoder.
func Encode(tree *domain.Tree, enc Encoding) ([]byte, error) {
	var records []record
	_ = tree.Walk(func(n *domain.Node, depth int) error {
		records = append(records, newRecord(depth, n.Name(), n.Content()))
		return nil
	})

	doc := document{
		Format:   FormatName,
		Version:  FormatVersion,
		Checksum: checksum(records),
		Nodes:    records,
	}

	if enc == EncodingJSON {
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to marshal project: %w", err)
		}
		return append(data, '\n'), nil
	}

	var buf bytes.Buffer
	e := yaml.NewEncoder(&buf)
	e.SetIndent(2)
	if err := e.Encode(doc); err != nil {
		return nil, fmt.Errorf("failed to marshal project: %w", err)
	}
	if err := e.Close(); err != nil {
		return nil, fmt.Errorf("failed to marshal project: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode parses project bytes and rebuilds the tree. Ids are assigned in
// preorder starting at 1, so decoding the same bytes always yields the same ids.
func Decode(data []byte, enc Encoding) (*domain.Tree, error) {
	var doc document
	var err error
	if enc == EncodingJSON {
		err = json.Unmarshal(data, &doc)
	} else {
		err = yaml.Unmarshal(data, &doc)
	}
	if err != nil {
		return nil, domain.Errorf(domain.ErrParse, "%v", err)
	}

	if doc.Format != FormatName {
		return nil, domain.Errorf(domain.ErrParse, "not a %s project (format %q)", FormatName, doc.Format)
	}
	if doc.Version < 1 || doc.Version > FormatVersion {
		return nil, domain.Errorf(domain.ErrParse, "unsupported version %d", doc.Version)
	}
	if len(doc.Nodes) == 0 {
		return nil, domain.Errorf(domain.ErrParse, "project has no root node")
	}
	for i := range doc.Nodes {
		c, err := doc.Nodes[i].content()
		if err != nil {
			return nil, domain.Errorf(domain.ErrParse, "node %d: %v", i, err)
		}
		doc.Nodes[i] = record{Depth: doc.Nodes[i].Depth, Name: doc.Nodes[i].Name, Content: c}
	}
	if doc.Checksum != "" && doc.Checksum != checksum(doc.Nodes) {
		return nil, domain.Errorf(domain.ErrParse, "checksum mismatch")
	}

	return build(doc.Nodes)
}

func build(records []record) (*domain.Tree, error) {
	first := records[0]
	if first.Depth != 0 {
		return nil, domain.Errorf(domain.ErrParse, "node 0: root must have depth 0, got %d", first.Depth)
	}
	if err := domain.ValidateName(first.Name); err != nil {
		return nil, domain.Errorf(domain.ErrParse, "node 0: %v", err)
	}

	tree := domain.NewTree(first.Name)
	_ = tree.SetContent(tree.Root().ID(), first.Content)

	// stack[d] is the most recent node at depth d.
	stack := []domain.NodeID{tree.Root().ID()}
	for i, rec := range records[1:] {
		pos := i + 1
		switch {
		case rec.Depth < 1:
			return nil, domain.Errorf(domain.ErrParse, "node %d: depth %d, only the first node may be a root", pos, rec.Depth)
		case rec.Depth > len(stack):
			return nil, domain.Errorf(domain.ErrParse, "node %d: depth jumps from %d to %d", pos, len(stack)-1, rec.Depth)
		}
		if err := domain.ValidateName(rec.Name); err != nil {
			return nil, domain.Errorf(domain.ErrParse, "node %d: %v", pos, err)
		}

		id, err := tree.AddChild(stack[rec.Depth-1], rec.Name)
		if err != nil {
			return nil, domain.Errorf(domain.ErrParse, "node %d: %v", pos, err)
		}
		_ = tree.SetContent(id, rec.Content)
		stack = append(stack[:rec.Depth], id)
	}
	return tree, nil
}

// checksum hashes the node stream with BLAKE3. Lengths are included so
// that moving bytes between name and content changes the digest. The digest
// covers the decoded content, whichever field carries it.
func checksum(records []record) string {
	h := blake3.New(32, nil)
	for _, rec := range records {
		r := rec
		if c, err := rec.content(); err == nil {
			r.Content = c
		}
		h.Write([]byte(strconv.Itoa(r.Depth)))
		h.Write([]byte{0})
		h.Write([]byte(strconv.Itoa(len(r.Name))))
		h.Write([]byte{0})
		h.Write([]byte(r.Name))
		h.Write([]byte(strconv.Itoa(len(r.Content))))
		h.Write([]byte{0})
		h.Write([]byte(r.Content))
	}
	return hex.EncodeToString(h.Sum(nil))
}
