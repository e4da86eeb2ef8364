package cli

import (
	"fmt"
	"log/slog"

	"github.com/kmol-editor/kmol"
	"github.com/kmol-editor/kmol/internal/adapters/file"
	"github.com/kmol-editor/kmol/internal/config"
	"github.com/kmol-editor/kmol/pkg/adapters/process"
	"github.com/kmol-editor/kmol/pkg/adapters/redis"
	"github.com/kmol-editor/kmol/pkg/adapters/yaegi"
	"github.com/kmol-editor/kmol/pkg/domain"
	"github.com/kmol-editor/kmol/pkg/observability"
	"github.com/kmol-editor/kmol/pkg/persistence/middleware"
	"github.com/kmol-editor/kmol/pkg/ports"
	"github.com/kmol-editor/kmol/pkg/script"
)

// NewEvaluator builds the script evaluator selected by cfg.Engine.
func NewEvaluator(cfg config.ScriptConfig, logger *slog.Logger) (ports.ScriptEvaluator, error) {
	switch cfg.Engine {
	case config.EngineYaegi:
		allowed := cfg.AllowedPackages
		if len(allowed) == 0 {
			allowed = yaegi.SafePackages
		}
		return yaegi.New(yaegi.WithAllowedPackages(allowed...), yaegi.WithLogger(logger)), nil
	case config.EngineProcess:
		interp, err := cfg.ResolveInterpreter()
		if err != nil {
			return nil, fmt.Errorf("error resolving interpreter: %w", err)
		}
		logger.Debug("using process interpreter", "name", interp.Name, "command", interp.Command)
		return process.NewEvaluator(interp, process.WithLogger(logger)), nil
	case config.EngineDisabled:
		return script.Disabled{}, nil
	default:
		return nil, fmt.Errorf("unknown script engine %q", cfg.Engine)
	}
}

// NewCodec returns the codec for the configured backend, wrapped for
// encryption at rest when a key is configured.
func NewCodec(cfg config.ProjectConfig, logger *slog.Logger) (ports.ProjectCodec, error) {
	var codec ports.ProjectCodec
	switch cfg.Backend {
	case config.BackendFile, "":
		codec = file.New(file.WithLogger(logger))
	case config.BackendRedis:
		opts := []redis.Option{redis.WithTTL(cfg.Redis.TTL), redis.WithLogger(logger)}
		if cfg.Redis.Prefix != "" {
			opts = append(opts, redis.WithPrefix(cfg.Redis.Prefix))
		}
		codec = redis.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, opts...)
		logger.Debug("storing projects in redis", "addr", cfg.Redis.Addr, "db", cfg.Redis.DB)
	default:
		return nil, fmt.Errorf("unknown project backend %q", cfg.Backend)
	}

	enc, err := cfg.Encryption()
	if err != nil || enc == nil {
		return codec, err
	}
	mw, err := middleware.NewEncryptionMiddleware(*enc)
	if err != nil {
		return nil, err
	}
	logger.Debug("project encryption enabled", "fallback_keys", len(enc.FallbackKeys))
	return middleware.Chain(codec, mw), nil
}

// NewEditor initializes an Editor with standard CLI conventions: the
// configured evaluator and timeout plus debug logging hooks. extra hooks
// (metrics, event streams) are combined after the logging ones.
func NewEditor(cfg *config.Config, logger *slog.Logger, extra ...domain.LifecycleHooks) (*kmol.Editor, error) {
	eval, err := NewEvaluator(cfg.Script, logger)
	if err != nil {
		return nil, err
	}

	codec, err := NewCodec(cfg.Project, logger)
	if err != nil {
		return nil, err
	}

	hooks := append([]domain.LifecycleHooks{observability.LogHooks(logger)}, extra...)
	return kmol.New(
		kmol.WithCodec(codec),
		kmol.WithEvaluator(eval),
		kmol.WithScriptTimeout(cfg.Script.Timeout),
		kmol.WithOverwrite(cfg.Project.Overwrite),
		kmol.WithLifecycleHooks(observability.Combine(hooks...)),
		kmol.WithLogger(logger),
	), nil
}
