// Package config loads kmol settings from a YAML file and KMOL_* environment
// variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kmol-editor/kmol/internal/logging"
	"github.com/kmol-editor/kmol/pkg/adapters/process"
	"github.com/kmol-editor/kmol/pkg/persistence/middleware"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// DefaultPath is looked up in the working directory when no path is given.
const DefaultPath = "kmol.yaml"

// Script engines.
const (
	EngineYaegi    = "yaegi"
	EngineProcess  = "process"
	EngineDisabled = "disabled"
)

// Project storage backends.
const (
	BackendFile  = "file"
	BackendRedis = "redis"
)

type Config struct {
	Log     LogConfig     `mapstructure:"log"`
	Script  ScriptConfig  `mapstructure:"script"`
	Project ProjectConfig `mapstructure:"project"`
	Server  ServerConfig  `mapstructure:"server"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type ScriptConfig struct {
	Engine  string        `mapstructure:"engine"`
	Timeout time.Duration `mapstructure:"timeout"`
	// Interpreter is either the name of an entry in InterpretersFile or a
	// command line such as "python3 -". Only used by the process engine.
	Interpreter      string   `mapstructure:"interpreter"`
	InterpretersFile string   `mapstructure:"interpreters_file"`
	AllowedPackages  []string `mapstructure:"allowed_packages"`
}

type ProjectConfig struct {
	Overwrite bool `mapstructure:"overwrite"`
	// Backend selects where projects are stored: file or redis.
	Backend string      `mapstructure:"backend"`
	Redis   RedisConfig `mapstructure:"redis"`
	// EncryptionKey enables encryption at rest: 32 bytes, hex or base64.
	EncryptionKey string `mapstructure:"encryption_key"`
	// FallbackKeys decrypt projects written with retired keys.
	FallbackKeys []string `mapstructure:"fallback_keys"`
}

// Encryption returns the parsed key configuration, or nil when encryption
// is off.
func (p ProjectConfig) Encryption() (*middleware.EncryptionConfig, error) {
	if p.EncryptionKey == "" {
		return nil, nil
	}
	active, err := middleware.ParseKey(p.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("project.encryption_key: %w", err)
	}
	cfg := &middleware.EncryptionConfig{ActiveKey: active}
	for i, k := range p.FallbackKeys {
		key, err := middleware.ParseKey(k)
		if err != nil {
			return nil, fmt.Errorf("project.fallback_keys[%d]: %w", i, err)
		}
		cfg.FallbackKeys = append(cfg.FallbackKeys, key)
	}
	return cfg, nil
}

// RedisConfig is used when ProjectConfig.Backend is redis. Project paths
// become keys under Prefix.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Prefix   string        `mapstructure:"prefix"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type ServerConfig struct {
	Listen string `mapstructure:"listen"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	return Config{
		Log: LogConfig{Level: "info", Format: "text"},
		Script: ScriptConfig{
			Engine:           EngineYaegi,
			Timeout:          10 * time.Second,
			Interpreter:      "python3 -",
			InterpretersFile: "interpreters.yaml",
		},
		Project: ProjectConfig{
			Backend: BackendFile,
			Redis:   RedisConfig{Addr: "localhost:6379"},
		},
		Server: ServerConfig{Listen: "127.0.0.1:8080"},
	}
}

// envKeys maps environment variables to dotted config keys.
var envKeys = map[string]string{
	"KMOL_LOG_LEVEL":          "log.level",
	"KMOL_LOG_FORMAT":         "log.format",
	"KMOL_SCRIPT_ENGINE":      "script.engine",
	"KMOL_SCRIPT_TIMEOUT":     "script.timeout",
	"KMOL_SCRIPT_INTERPRETER": "script.interpreter",
	"KMOL_OVERWRITE":          "project.overwrite",
	"KMOL_ENCRYPTION_KEY":     "project.encryption_key",
	"KMOL_PROJECT_BACKEND":    "project.backend",
	"KMOL_REDIS_ADDR":         "project.redis.addr",
	"KMOL_REDIS_PASSWORD":     "project.redis.password",
	"KMOL_LISTEN":             "server.listen",
}

// Load reads path (DefaultPath when empty), applies environment overrides
// and validates the result. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}

	raw := map[string]any{}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
		}
		if raw == nil {
			raw = map[string]any{}
		}
	}

	for env, key := range envKeys {
		if v, ok := os.LookupEnv(env); ok {
			set(raw, key, v)
		}
	}

	cfg := Defaults()
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format %q", c.Log.Format)
	}
	switch c.Script.Engine {
	case EngineYaegi, EngineProcess, EngineDisabled:
	default:
		return fmt.Errorf("unknown script engine %q", c.Script.Engine)
	}
	if c.Script.Timeout < 0 {
		return fmt.Errorf("script timeout must not be negative")
	}
	switch c.Project.Backend {
	case BackendFile:
	case BackendRedis:
		if c.Project.Redis.Addr == "" {
			return fmt.Errorf("project.redis.addr is required for the redis backend")
		}
		if c.Project.Redis.TTL < 0 {
			return fmt.Errorf("project.redis.ttl must not be negative")
		}
	default:
		return fmt.Errorf("unknown project backend %q", c.Project.Backend)
	}
	if _, err := c.Project.Encryption(); err != nil {
		return err
	}
	return nil
}

// ResolveInterpreter returns the interpreter for the process engine. Names
// found in the interpreters file win over command lines.
func (s ScriptConfig) ResolveInterpreter() (process.Interpreter, error) {
	if s.InterpretersFile != "" {
		interps, err := process.LoadInterpreters(s.InterpretersFile)
		if err != nil {
			return process.Interpreter{}, err
		}
		if it, ok := interps[s.Interpreter]; ok {
			return it, nil
		}
	}

	fields := strings.Fields(s.Interpreter)
	if len(fields) == 0 {
		return process.Interpreter{}, fmt.Errorf("no interpreter configured")
	}
	return process.Interpreter{Name: fields[0], Command: fields[0], Args: fields[1:]}, nil
}

// set assigns value at a dotted key, creating intermediate maps.
func set(m map[string]any, key, value string) {
	parts := strings.Split(key, ".")
	for _, p := range parts[:len(parts)-1] {
		next, ok := m[p].(map[string]any)
		if !ok {
			next = map[string]any{}
			m[p] = next
		}
		m = next
	}
	m[parts[len(parts)-1]] = value
}
