package ports

import (
	"context"
	"testing"

	"github.com/kmol-editor/kmol/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunCodecContract runs a suite of tests to verify that a ProjectCodec
// implementation adheres to the defined interface contract.
// pathFor maps a short name to a location the codec can write to.
func RunCodecContract(t *testing.T, codec ProjectCodec, pathFor func(name string) string) {
	t.Helper()
	ctx := context.Background()

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := codec.Load(ctx, pathFor("missing"))
		assert.ErrorIs(t, err, domain.ErrIO)
	})

	t.Run("Exists", func(t *testing.T) {
		path := pathFor("exists")
		ok, err := codec.Exists(ctx, path)
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, codec.Save(ctx, path, domain.NewTree("exists")))

		ok, err = codec.Exists(ctx, path)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("Round Trip", func(t *testing.T) {
		path := pathFor("roundtrip")
		tree := ContractTree(t)

		require.NoError(t, codec.Save(ctx, path, tree))
		loaded, err := codec.Load(ctx, path)
		require.NoError(t, err)

		assert.True(t, tree.Equal(loaded), "loaded tree differs from saved tree")
		assert.Equal(t, tree.Len(), loaded.Len())
		assert.Equal(t, tree.Root().ChildNames(), loaded.Root().ChildNames())
	})

	t.Run("Deterministic Ids", func(t *testing.T) {
		path := pathFor("ids")
		require.NoError(t, codec.Save(ctx, path, ContractTree(t)))

		first, err := codec.Load(ctx, path)
		require.NoError(t, err)
		second, err := codec.Load(ctx, path)
		require.NoError(t, err)

		assert.Equal(t, preorderIDs(first), preorderIDs(second))
	})

	t.Run("Invalid UTF-8 Content", func(t *testing.T) {
		path := pathFor("binary")
		tree := domain.NewTree("binary")
		id, err := tree.AddChild(tree.Root().ID(), "latin1")
		require.NoError(t, err)
		require.NoError(t, tree.SetContent(id, "caf\xe9 \xff\x00end"))

		require.NoError(t, codec.Save(ctx, path, tree))
		loaded, err := codec.Load(ctx, path)
		require.NoError(t, err)
		assert.True(t, tree.Equal(loaded), "content must survive byte for byte")
	})

	t.Run("Overwrite", func(t *testing.T) {
		path := pathFor("overwrite")
		tree := domain.NewTree("overwrite")
		require.NoError(t, codec.Save(ctx, path, tree))

		_, err := tree.AddChild(tree.Root().ID(), "second")
		require.NoError(t, err)
		require.NoError(t, codec.Save(ctx, path, tree))

		loaded, err := codec.Load(ctx, path)
		require.NoError(t, err)
		assert.Equal(t, []string{"second"}, loaded.Root().ChildNames())
	})

	t.Run("Canceled Context", func(t *testing.T) {
		path := pathFor("canceled")
		canceled, cancel := context.WithCancel(ctx)
		cancel()

		err := codec.Save(canceled, path, domain.NewTree("canceled"))
		assert.ErrorIs(t, err, domain.ErrIO)
		assert.ErrorIs(t, err, context.Canceled)

		_, err = codec.Load(canceled, path)
		assert.ErrorIs(t, err, domain.ErrIO)
		assert.ErrorIs(t, err, context.Canceled)

		ok, err := codec.Exists(ctx, path)
		require.NoError(t, err)
		assert.False(t, ok, "a canceled save must not store anything")
	})

	t.Run("Saved Tree Is Detached", func(t *testing.T) {
		path := pathFor("detached")
		tree := domain.NewTree("detached")
		require.NoError(t, codec.Save(ctx, path, tree))

		_, err := tree.AddChild(tree.Root().ID(), "after-save")
		require.NoError(t, err)

		loaded, err := codec.Load(ctx, path)
		require.NoError(t, err)
		assert.Equal(t, 0, loaded.Root().ChildCount())
	})
}

// ContractTree builds a tree whose names and contents exercise characters
// that text formats usually reserve.
func ContractTree(t *testing.T) *domain.Tree {
	t.Helper()
	tree := domain.NewTree("project: #1")
	root := tree.Root().ID()

	add := func(parent domain.NodeID, name, content string) domain.NodeID {
		id, err := tree.AddChild(parent, name)
		require.NoError(t, err)
		require.NoError(t, tree.SetContent(id, content))
		return id
	}

	scripts := add(root, "scripts", "")
	add(scripts, "hello.py", "print('hello')\n")
	add(scripts, "no-newline", "x = 1")
	add(scripts, "indent", "  leading spaces\n\ttab\n\n\ntrailing blank lines\n\n")
	nested := add(root, "- dash", "---\n...\nkey: value\n# not a comment")
	add(nested, "quotes", `"double" 'single' \backslash`)
	add(nested, "unicode ✓", "ünïcödé — 日本語\r\nCRLF line")
	add(root, "[brackets] {braces}", "&anchor *alias !tag |pipe >fold")
	add(root, "empty", "")
	return tree
}

func preorderIDs(tree *domain.Tree) []domain.NodeID {
	var ids []domain.NodeID
	_ = tree.Walk(func(n *domain.Node, _ int) error {
		ids = append(ids, n.ID())
		return nil
	})
	return ids
}
