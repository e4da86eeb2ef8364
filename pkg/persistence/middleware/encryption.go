package middleware

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/kmol-editor/kmol/internal/adapters/file"
	"github.com/kmol-editor/kmol/pkg/domain"
	"github.com/kmol-editor/kmol/pkg/ports"
)

// EnvelopeNode names the single child of an encrypted project's root. Its
// content is the base64 ciphertext of the whole project.
const EnvelopeNode = "__encrypted__"

// EncryptionConfig holds the keys for encryption and decryption.
type EncryptionConfig struct {
	// ActiveKey is the key used for encrypting new data.
	// Must be 32 bytes for AES-256.
	ActiveKey []byte

	// FallbackKeys are tried in order when the active key cannot decrypt
	// a project, so keys can be rotated without re-encrypting every file.
	FallbackKeys [][]byte
}

type encryptionMiddleware struct {
	next   ports.ProjectCodec
	config EncryptionConfig
}

// NewEncryptionMiddleware creates a middleware that encrypts whole projects
// with AES-GCM. The wrapped codec stores an envelope tree whose root is
// named "encrypted" and whose only child carries the ciphertext.
func NewEncryptionMiddleware(config EncryptionConfig) (Middleware, error) {
	if len(config.ActiveKey) != 32 {
		return nil, fmt.Errorf("active key must be 32 bytes (AES-256), got %d", len(config.ActiveKey))
	}
	return func(next ports.ProjectCodec) ports.ProjectCodec {
		return &encryptionMiddleware{
			next:   next,
			config: config,
		}
	}, nil
}

// ParseKey decodes a 32 byte key given as hex or standard base64.
func ParseKey(s string) ([]byte, error) {
	if key, err := hex.DecodeString(s); err == nil && len(key) == 32 {
		return key, nil
	}
	if key, err := base64.StdEncoding.DecodeString(s); err == nil && len(key) == 32 {
		return key, nil
	}
	return nil, errors.New("encryption key must be 32 bytes, hex or base64 encoded")
}

func (m *encryptionMiddleware) Save(ctx context.Context, path string, tree *domain.Tree) error {
	plainText, err := file.Encode(tree, file.EncodingJSON)
	if err != nil {
		return fmt.Errorf("%w: failed to encode project: %w", domain.ErrIO, err)
	}

	ciphertext, err := encrypt(plainText, m.config.ActiveKey)
	if err != nil {
		return fmt.Errorf("%w: failed to encrypt project: %w", domain.ErrIO, err)
	}

	envelope := domain.NewTree("encrypted")
	id, err := envelope.AddChild(envelope.Root().ID(), EnvelopeNode)
	if err != nil {
		return err
	}
	if err := envelope.SetContent(id, base64.StdEncoding.EncodeToString(ciphertext)); err != nil {
		return err
	}

	return m.next.Save(ctx, path, envelope)
}

func (m *encryptionMiddleware) Load(ctx context.Context, path string) (*domain.Tree, error) {
	envelope, err := m.next.Load(ctx, path)
	if err != nil {
		return nil, err
	}

	// Plain projects are refused: with encryption configured every file is
	// expected to be an envelope.
	children := envelope.Root().Children()
	if len(children) != 1 || children[0].Name() != EnvelopeNode {
		return nil, domain.Errorf(domain.ErrParse, "%s is missing the encrypted data envelope", path)
	}

	ciphertext, err := base64.StdEncoding.DecodeString(children[0].Content())
	if err != nil {
		return nil, domain.Errorf(domain.ErrParse, "failed to decode ciphertext base64: %v", err)
	}

	plainText, err := decryptWithRotation(ciphertext, m.config.ActiveKey, m.config.FallbackKeys)
	if err != nil {
		return nil, domain.Errorf(domain.ErrParse, "failed to decrypt %s: %v", path, err)
	}

	return file.Decode(plainText, file.EncodingJSON)
}

func (m *encryptionMiddleware) Exists(ctx context.Context, path string) (bool, error) {
	return m.next.Exists(ctx, path)
}

// Helpers

func encrypt(plaintext []byte, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func decryptWithRotation(ciphertext []byte, activeKey []byte, fallbackKeys [][]byte) ([]byte, error) {
	if plain, err := decrypt(ciphertext, activeKey); err == nil {
		return plain, nil
	}
	for _, key := range fallbackKeys {
		if plain, err := decrypt(ciphertext, key); err == nil {
			return plain, nil
		}
	}
	return nil, errors.New("decryption failed with all available keys")
}

func decrypt(ciphertext []byte, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}

	nonce := ciphertext[:gcm.NonceSize()]
	return gcm.Open(nil, nonce, ciphertext[gcm.NonceSize():], nil)
}
