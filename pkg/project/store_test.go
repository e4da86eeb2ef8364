package project_test

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/kmol-editor/kmol/internal/adapters/file"
	"github.com/kmol-editor/kmol/pkg/adapters/memory"
	"github.com/kmol-editor/kmol/pkg/domain"
	"github.com/kmol-editor/kmol/pkg/project"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_Scenarios(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "a.kmol")
	store := project.NewStore(file.New())

	// A: a new project has one root named after the file and starts clean.
	p, err := store.New(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, "a", p.Name())
	assert.Equal(t, 1, p.Len())
	assert.False(t, store.IsDirty(path))

	// B: children keep insertion order and the project becomes dirty.
	root := p.Root().ID()
	n1, err := store.AddChild(ctx, path, root, "n1")
	require.NoError(t, err)
	_, err = store.AddChild(ctx, path, root, "n2")
	require.NoError(t, err)
	assert.Equal(t, []string{"n1", "n2"}, p.Root().ChildNames())
	assert.True(t, store.IsDirty(path))

	// C: save clears dirty and a fresh store reproduces the children.
	require.NoError(t, store.SetContent(ctx, path, n1, "print('n1')"))
	require.NoError(t, store.Save(ctx, path))
	assert.False(t, store.IsDirty(path))

	fresh := project.NewStore(file.New())
	reopened, err := fresh.Open(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, []string{"n1", "n2"}, reopened.Root().ChildNames())
	assert.False(t, fresh.IsDirty(path))

	// D: cloning adds a sibling with a new id and the same content.
	clone, err := store.CloneNode(ctx, path, n1)
	require.NoError(t, err)
	assert.NotEqual(t, n1, clone)
	assert.Equal(t, 3, p.Root().ChildCount())
	original, err := store.FindNode(path, n1)
	require.NoError(t, err)
	copied, err := store.FindNode(path, clone)
	require.NoError(t, err)
	assert.Equal(t, original.Content(), copied.Content())
	assert.Equal(t, original.Name(), copied.Name())

	// E: deleting the root fails and changes nothing.
	before := p.Snapshot()
	err = store.DeleteNode(ctx, path, root)
	assert.ErrorIs(t, err, domain.ErrInvalidOperation)
	assert.True(t, before.Equal(p.Snapshot()))
}

func TestStore_NewDefaultsAndPolicy(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "exists.kmol")
	require.NoError(t, os.WriteFile(path, []byte("anything"), 0644))

	t.Run("Refuses Existing File", func(t *testing.T) {
		store := project.NewStore(file.New())
		_, err := store.New(ctx, path)
		assert.ErrorIs(t, err, domain.ErrIO)
		assert.ErrorIs(t, err, fs.ErrExist)
		assert.Empty(t, store.Paths())
	})

	t.Run("Overwrite", func(t *testing.T) {
		store := project.NewStore(file.New(), project.WithOverwrite(true))
		p, err := store.New(ctx, path)
		require.NoError(t, err)
		assert.Equal(t, "exists", p.Name())

		loaded, err := file.New().Load(ctx, path)
		require.NoError(t, err)
		assert.Equal(t, 1, loaded.Len())
	})

	t.Run("Default Child Name", func(t *testing.T) {
		store := project.NewStore(memory.NewCodec())
		p, err := store.New(ctx, "/mem/x.kmol")
		require.NoError(t, err)
		id, err := store.AddChild(ctx, p.Path(), p.Root().ID(), "")
		require.NoError(t, err)
		n, err := p.FindNode(id)
		require.NoError(t, err)
		assert.Equal(t, domain.DefaultNodeName, n.Name())
	})

	t.Run("Create Failure Leaves Nothing Open", func(t *testing.T) {
		store := project.NewStore(file.New())
		_, err := store.New(ctx, filepath.Join(dir, "missing", "a.kmol"))
		assert.ErrorIs(t, err, domain.ErrIO)
		assert.Empty(t, store.Paths())
	})
}

func TestStore_DuplicateOpen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "a.kmol")
	store := project.NewStore(file.New())

	p, err := store.New(ctx, path)
	require.NoError(t, err)
	_, err = store.AddChild(ctx, path, p.Root().ID(), "unsaved")
	require.NoError(t, err)

	// A different spelling of the same file resolves to the same project.
	alias := filepath.Join(dir, "sub", "..", "a.kmol")
	again, err := store.Open(ctx, alias)
	assert.ErrorIs(t, err, domain.ErrDuplicateOpen)
	assert.Same(t, p, again)
	assert.True(t, store.IsDirty(alias), "existing project must be returned unchanged")
	assert.Len(t, store.Paths(), 1)

	again, err = store.New(ctx, path)
	assert.ErrorIs(t, err, domain.ErrDuplicateOpen)
	assert.Same(t, p, again)
}

func TestStore_OpenErrors(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := project.NewStore(file.New())

	_, err := store.Open(ctx, filepath.Join(dir, "missing.kmol"))
	assert.ErrorIs(t, err, domain.ErrIO)

	broken := filepath.Join(dir, "broken.kmol")
	require.NoError(t, os.WriteFile(broken, []byte("format: other\n"), 0644))
	_, err = store.Open(ctx, broken)
	assert.ErrorIs(t, err, domain.ErrParse)

	assert.Empty(t, store.Paths())
}

func TestStore_Close(t *testing.T) {
	ctx := context.Background()
	store := project.NewStore(memory.NewCodec())
	path := "/mem/a.kmol"

	assert.ErrorIs(t, store.Close(ctx, path, false), domain.ErrNotFound)

	p, err := store.New(ctx, path)
	require.NoError(t, err)
	_, err = store.AddChild(ctx, path, p.Root().ID(), "n1")
	require.NoError(t, err)

	err = store.Close(ctx, path, false)
	assert.ErrorIs(t, err, domain.ErrInvalidOperation)
	assert.Equal(t, []string{path}, store.Paths(), "dirty project stays open without force")

	require.NoError(t, store.Close(ctx, path, true))
	assert.Empty(t, store.Paths())
	assert.False(t, store.IsDirty(path))

	// A clean project closes without force.
	_, err = store.Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, store.Close(ctx, path, false))
}

func TestStore_DirtyTracking(t *testing.T) {
	ctx := context.Background()
	codec := memory.NewCodec()
	store := project.NewStore(codec)
	a, b := "/mem/a.kmol", "/mem/b.kmol"

	pa, err := store.New(ctx, a)
	require.NoError(t, err)
	pb, err := store.New(ctx, b)
	require.NoError(t, err)
	assert.Empty(t, store.DirtyPaths())
	assert.False(t, store.IsDirty("/mem/never-opened.kmol"))

	// Failed mutations do not dirty the project.
	_, err = store.AddChild(ctx, a, 999, "x")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, store.Rename(ctx, a, pa.Root().ID(), ""), domain.ErrInvalidOperation)
	assert.False(t, store.IsDirty(a))

	steps := []func() error{
		func() error { _, err := store.AddChild(ctx, a, pa.Root().ID(), "n"); return err },
		func() error { return store.SetContent(ctx, a, pa.Root().ID(), "x") },
		func() error { return store.Rename(ctx, a, pa.Root().ID(), "renamed") },
		func() error { _, err := store.CloneNode(ctx, a, pa.Root().Children()[0].ID()); return err },
		func() error { return store.DeleteNode(ctx, a, pa.Root().Children()[0].ID()) },
	}
	for i, step := range steps {
		require.NoError(t, step(), "step %d", i)
		assert.True(t, store.IsDirty(a), "step %d", i)
		require.NoError(t, store.Save(ctx, a))
		assert.False(t, store.IsDirty(a), "step %d", i)
	}

	_, err = store.AddChild(ctx, b, pb.Root().ID(), "n")
	require.NoError(t, err)
	_, err = store.AddChild(ctx, a, pa.Root().ID(), "n")
	require.NoError(t, err)
	assert.Equal(t, []string{a, b}, store.DirtyPaths())

	// A failed save leaves the project dirty.
	codec.SetFailSave(errors.New("disk full"))
	err = store.Save(ctx, a)
	assert.ErrorIs(t, err, domain.ErrIO)
	assert.True(t, store.IsDirty(a))

	codec.SetFailSave(nil)
	require.NoError(t, store.Save(ctx, a))
	assert.Equal(t, []string{b}, store.DirtyPaths())
}

func TestStore_NotOpen(t *testing.T) {
	ctx := context.Background()
	store := project.NewStore(memory.NewCodec())
	path := "/mem/a.kmol"

	assert.ErrorIs(t, store.Save(ctx, path), domain.ErrNotFound)
	_, err := store.AddChild(ctx, path, 1, "x")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = store.FindNode(path, 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = store.Project(path)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = store.SaveAsync(ctx, path)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStore_Hooks(t *testing.T) {
	ctx := context.Background()
	var events []domain.EventType
	var mutations []domain.MutationOp
	var created bool
	var saveErrs []error

	hooks := domain.LifecycleHooks{
		OnOpen: func(_ context.Context, e *domain.ProjectEvent) {
			events = append(events, e.Type)
			created = e.Created
		},
		OnMutate: func(_ context.Context, e *domain.MutationEvent) {
			events = append(events, e.Type)
			mutations = append(mutations, e.Op)
		},
		OnSave: func(_ context.Context, e *domain.ProjectEvent) {
			events = append(events, e.Type)
			saveErrs = append(saveErrs, e.Err)
		},
		OnClose: func(_ context.Context, e *domain.ProjectEvent) {
			events = append(events, e.Type)
			assert.True(t, e.Forced)
		},
	}

	codec := memory.NewCodec()
	store := project.NewStore(codec, project.WithHooks(hooks))
	path := "/mem/a.kmol"

	p, err := store.New(ctx, path)
	require.NoError(t, err)
	id, err := store.AddChild(ctx, path, p.Root().ID(), "n1")
	require.NoError(t, err)
	_, err = store.CloneNode(ctx, path, id)
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, path))

	codec.SetFailSave(errors.New("boom"))
	require.NoError(t, store.SetContent(ctx, path, id, "x"))
	require.Error(t, store.Save(ctx, path))
	require.NoError(t, store.Close(ctx, path, true))

	assert.True(t, created)
	assert.Equal(t, []domain.EventType{
		domain.EventOpen,
		domain.EventMutate, domain.EventMutate,
		domain.EventSave,
		domain.EventMutate,
		domain.EventSave,
		domain.EventClose,
	}, events)
	assert.Equal(t, []domain.MutationOp{domain.OpAddChild, domain.OpClone, domain.OpSetContent}, mutations)
	require.Len(t, saveErrs, 2)
	assert.NoError(t, saveErrs[0])
	assert.ErrorIs(t, saveErrs[1], domain.ErrIO)
}

func TestRootName(t *testing.T) {
	assert.Equal(t, "a", project.RootName("a.kmol"))
	assert.Equal(t, "a", project.RootName("/x/y/a.kmol"))
	assert.Equal(t, "a.b", project.RootName("a.b.kmol"))
	assert.Equal(t, "noext", project.RootName("noext"))
}
