package dsl

import (
	"context"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/kmol-editor/kmol/pkg/adapters/memory"
	"github.com/kmol-editor/kmol/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func outline(tree *domain.Tree) []string {
	var lines []string
	_ = tree.Walk(func(n *domain.Node, depth int) error {
		lines = append(lines, strings.Repeat(".", depth)+n.ID().String()+" "+n.Name()+"="+n.Content())
		return nil
	})
	return lines
}

func TestBuilder_Tree(t *testing.T) {
	b := New("deploy")
	b.Root().
		Add("setup").Content("install").
		Add("check").Content("ok").Up().
		Up().
		Add("").
		Up().Up().Up().
		Add("notes")

	tree, err := b.Build()
	require.NoError(t, err)

	want := []string{
		"1 deploy=",
		".2 setup=install",
		"..3 check=ok",
		".4 " + domain.DefaultNodeName + "=",
		".5 notes=",
	}
	if diff := cmp.Diff(want, outline(tree)); diff != "" {
		t.Errorf("built tree mismatch (-want +got):\n%s", diff)
	}
}

func TestBuilder_InvalidNames(t *testing.T) {
	_, err := New(" ").Build()
	assert.ErrorIs(t, err, domain.ErrInvalidOperation)

	b := New("p")
	b.Root().Add("ok").Add("bad\x00name")
	_, err = b.Build()
	assert.ErrorIs(t, err, domain.ErrInvalidOperation)
	assert.Contains(t, err.Error(), "p/ok/bad")
}

func TestBuilder_Seed(t *testing.T) {
	ctx := context.Background()
	codec := memory.NewCodec()

	b := New("seeded")
	b.Root().Add("a").Content("x")
	require.NoError(t, b.Seed(ctx, codec, "/seeded.kmol"))

	tree, err := codec.Load(ctx, "/seeded.kmol")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, tree.Root().ChildNames())

	codec.SetFailSave(assert.AnError)
	assert.ErrorIs(t, b.Seed(ctx, codec, "/other.kmol"), domain.ErrIO)
}
