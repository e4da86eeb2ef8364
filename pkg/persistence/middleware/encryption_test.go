package middleware_test

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"io"
	"strings"
	"testing"

	"github.com/kmol-editor/kmol/pkg/adapters/memory"
	"github.com/kmol-editor/kmol/pkg/domain"
	"github.com/kmol-editor/kmol/pkg/persistence/middleware"
	"github.com/kmol-editor/kmol/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generateKey(t *testing.T) []byte {
	t.Helper()
	k := make([]byte, 32)
	_, err := io.ReadFull(rand.Reader, k)
	require.NoError(t, err)
	return k
}

func secureCodec(t *testing.T, next ports.ProjectCodec, cfg middleware.EncryptionConfig) ports.ProjectCodec {
	t.Helper()
	mw, err := middleware.NewEncryptionMiddleware(cfg)
	require.NoError(t, err)
	return middleware.Chain(next, mw)
}

func secretTree(t *testing.T) *domain.Tree {
	t.Helper()
	tree := domain.NewTree("proj")
	id, err := tree.AddChild(tree.Root().ID(), "secret")
	require.NoError(t, err)
	require.NoError(t, tree.SetContent(id, "my-secret-sauce"))
	return tree
}

func TestEncryptionMiddleware_Roundtrip(t *testing.T) {
	ctx := context.Background()
	underlying := memory.NewCodec()
	codec := secureCodec(t, underlying, middleware.EncryptionConfig{ActiveKey: generateKey(t)})

	original := secretTree(t)
	require.NoError(t, codec.Save(ctx, "/p.kmol", original))

	stored, err := underlying.Load(ctx, "/p.kmol")
	require.NoError(t, err)
	require.Equal(t, 2, stored.Len())
	envelope := stored.Root().Children()[0]
	assert.Equal(t, middleware.EnvelopeNode, envelope.Name())
	assert.NotContains(t, envelope.Content(), "my-secret-sauce")
	assert.NotEqual(t, "proj", stored.Root().Name())

	loaded, err := codec.Load(ctx, "/p.kmol")
	require.NoError(t, err)
	assert.True(t, original.Equal(loaded))

	ok, err := codec.Exists(ctx, "/p.kmol")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEncryptionMiddleware_KeyRotation(t *testing.T) {
	ctx := context.Background()
	underlying := memory.NewCodec()
	oldKey, newKey := generateKey(t), generateKey(t)

	require.NoError(t, secureCodec(t, underlying, middleware.EncryptionConfig{ActiveKey: oldKey}).
		Save(ctx, "/p.kmol", secretTree(t)))

	rotated := secureCodec(t, underlying, middleware.EncryptionConfig{ActiveKey: newKey, FallbackKeys: [][]byte{oldKey}})
	loaded, err := rotated.Load(ctx, "/p.kmol")
	require.NoError(t, err)
	assert.Equal(t, "proj", loaded.Root().Name())

	wrong := secureCodec(t, underlying, middleware.EncryptionConfig{ActiveKey: newKey})
	_, err = wrong.Load(ctx, "/p.kmol")
	assert.ErrorIs(t, err, domain.ErrParse)
}

func TestEncryptionMiddleware_RefusesPlainProjects(t *testing.T) {
	ctx := context.Background()
	underlying := memory.NewCodec()
	underlying.Put("/plain.kmol", secretTree(t))

	codec := secureCodec(t, underlying, middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	_, err := codec.Load(ctx, "/plain.kmol")
	assert.ErrorIs(t, err, domain.ErrParse)

	_, err = codec.Load(ctx, "/missing.kmol")
	assert.ErrorIs(t, err, domain.ErrIO)
}

func TestEncryptionMiddleware_Contract(t *testing.T) {
	codec := secureCodec(t, memory.NewCodec(), middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	ports.RunCodecContract(t, codec, func(name string) string { return "/contract/" + name + ".kmol" })
}

func TestNewEncryptionMiddleware_KeyLength(t *testing.T) {
	_, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: []byte("short")})
	assert.Error(t, err)
}

func TestParseKey(t *testing.T) {
	key := generateKey(t)

	got, err := middleware.ParseKey(hex.EncodeToString(key))
	require.NoError(t, err)
	assert.Equal(t, key, got)

	got, err = middleware.ParseKey(base64.StdEncoding.EncodeToString(key))
	require.NoError(t, err)
	assert.Equal(t, key, got)

	_, err = middleware.ParseKey(strings.Repeat("ab", 8))
	assert.Error(t, err)
}

func TestEncryptionMiddleware_NonUTF8Content(t *testing.T) {
	ctx := context.Background()
	codec := secureCodec(t, memory.NewCodec(), middleware.EncryptionConfig{ActiveKey: generateKey(t)})

	tree := domain.NewTree("proj")
	id, err := tree.AddChild(tree.Root().ID(), "latin1")
	require.NoError(t, err)
	require.NoError(t, tree.SetContent(id, "caf\xe9"))
	require.NoError(t, codec.Save(ctx, "/latin1.kmol", tree))

	loaded, err := codec.Load(ctx, "/latin1.kmol")
	require.NoError(t, err)
	n, err := loaded.FindNode(id)
	require.NoError(t, err)
	assert.Equal(t, "caf\xe9", n.Content())
}
