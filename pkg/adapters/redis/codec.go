// Package redis stores kmol projects in Redis. Each project is one string
// key holding the YAML project document; a sorted set indexes stored paths
// by expiry so List can skip projects whose keys have timed out.
package redis

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/kmol-editor/kmol/internal/adapters/file"
	"github.com/kmol-editor/kmol/internal/logging"
	"github.com/kmol-editor/kmol/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces every key written by the codec.
const DefaultPrefix = "kmol:project:"

// noExpiry is the index score for projects stored without a TTL (2100-01-01).
const noExpiry = 4102444800

// Codec implements ports.ProjectCodec using Redis.
type Codec struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
	logger *slog.Logger
}

type Option func(*Codec)

// WithTTL sets the expiration of stored projects. Zero keeps them forever.
func WithTTL(ttl time.Duration) Option {
	return func(c *Codec) {
		c.ttl = ttl
	}
}

// WithPrefix sets the key prefix for projects.
func WithPrefix(prefix string) Option {
	return func(c *Codec) {
		c.prefix = prefix
	}
}

// WithLogger sets the logger used for save diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Codec) {
		c.logger = logger
	}
}

// New creates a Redis codec connected to address.
func New(address, password string, db int, opts ...Option) *Codec {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a Redis codec from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Codec {
	c := &Codec{
		client: client,
		prefix: DefaultPrefix,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Codec) key(path string) string {
	return c.prefix + path
}

func (c *Codec) indexKey() string {
	return c.prefix + "index"
}

// Save writes the project document and refreshes its index entry in one
// pipeline.
func (c *Codec) Save(ctx context.Context, path string, tree *domain.Tree) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrIO, err)
	}
	data, err := file.Encode(tree, file.EncodingYAML)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", domain.ErrIO, path, err)
	}

	score := float64(time.Now().Add(c.ttl).Unix())
	if c.ttl == 0 {
		score = noExpiry
	}

	pipe := c.client.Pipeline()
	pipe.Set(ctx, c.key(path), data, c.ttl)
	pipe.ZAdd(ctx, c.indexKey(), backend.Z{Score: score, Member: path})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: failed to save to redis: %w", domain.ErrIO, err)
	}

	c.logger.Debug("project stored in redis", "path", path, "bytes", len(data))
	return nil
}

// Load fetches and parses the project stored under path.
func (c *Codec) Load(ctx context.Context, path string) (*domain.Tree, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrIO, err)
	}
	data, err := c.client.Get(ctx, c.key(path)).Bytes()
	if errors.Is(err, backend.Nil) {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrIO, path, fs.ErrNotExist)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get from redis: %w", domain.ErrIO, err)
	}

	tree, err := file.Decode(data, file.EncodingYAML)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return tree, nil
}

// Exists reports whether a project is stored under path.
func (c *Codec) Exists(ctx context.Context, path string) (bool, error) {
	n, err := c.client.Exists(ctx, c.key(path)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: failed to query redis: %w", domain.ErrIO, err)
	}
	return n > 0, nil
}

// Delete removes a stored project.
func (c *Codec) Delete(ctx context.Context, path string) error {
	pipe := c.client.Pipeline()
	pipe.Del(ctx, c.key(path))
	pipe.ZRem(ctx, c.indexKey(), path)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: failed to delete from redis: %w", domain.ErrIO, err)
	}
	return nil
}

// List returns the paths of stored projects, pruning index entries whose
// keys have expired.
func (c *Codec) List(ctx context.Context) ([]string, error) {
	now := float64(time.Now().Unix())
	if err := c.client.ZRemRangeByScore(ctx, c.indexKey(), "-inf", fmt.Sprintf("%f", now)).Err(); err != nil {
		return nil, fmt.Errorf("%w: failed to prune expired projects: %w", domain.ErrIO, err)
	}

	paths, err := c.client.ZRange(ctx, c.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list projects: %w", domain.ErrIO, err)
	}
	return paths, nil
}

// Close closes the redis client.
func (c *Codec) Close() error {
	return c.client.Close()
}
