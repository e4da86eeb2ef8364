package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kmol.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Defaults(), *cfg)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
log:
  level: debug
script:
  engine: process
  timeout: 250ms
  interpreter: sh -s
  allowed_packages: [fmt, strings]
project:
  overwrite: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format, "unset keys keep defaults")
	assert.Equal(t, EngineProcess, cfg.Script.Engine)
	assert.Equal(t, 250*time.Millisecond, cfg.Script.Timeout)
	assert.Equal(t, []string{"fmt", "strings"}, cfg.Script.AllowedPackages)
	assert.True(t, cfg.Project.Overwrite)
	assert.Equal(t, "127.0.0.1:8080", cfg.Server.Listen)
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, "script:\n  engine: process\n")
	t.Setenv("KMOL_SCRIPT_ENGINE", "disabled")
	t.Setenv("KMOL_SCRIPT_TIMEOUT", "3s")
	t.Setenv("KMOL_OVERWRITE", "true")
	t.Setenv("KMOL_LISTEN", ":9090")
	t.Setenv("KMOL_LOG_FORMAT", "json")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, EngineDisabled, cfg.Script.Engine)
	assert.Equal(t, 3*time.Second, cfg.Script.Timeout)
	assert.True(t, cfg.Project.Overwrite)
	assert.Equal(t, ":9090", cfg.Server.Listen)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown key", "scirpt:\n  engine: yaegi\n"},
		{"unknown engine", "script:\n  engine: lua\n"},
		{"negative timeout", "script:\n  timeout: -1s\n"},
		{"bad level", "log:\n  level: loud\n"},
		{"bad format", "log:\n  format: xml\n"},
		{"bad duration", "script:\n  timeout: soon\n"},
		{"not yaml", "log: [\n"},
		{"short encryption key", "project:\n  encryption_key: abcd\n"},
		{"unknown backend", "project:\n  backend: s3\n"},
		{"redis without addr", "project:\n  backend: redis\n  redis:\n    addr: \"\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestResolveInterpreter(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "interpreters.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`interpreters:
  - name: py
    command: python3
    args: ["-u", "-"]
`), 0644))

	it, err := ScriptConfig{Interpreter: "py", InterpretersFile: file}.ResolveInterpreter()
	require.NoError(t, err)
	assert.Equal(t, "python3", it.Command)
	assert.Equal(t, []string{"-u", "-"}, it.Args)

	it, err = ScriptConfig{Interpreter: "sh -s", InterpretersFile: file}.ResolveInterpreter()
	require.NoError(t, err)
	assert.Equal(t, "sh", it.Command)
	assert.Equal(t, []string{"-s"}, it.Args)

	_, err = ScriptConfig{}.ResolveInterpreter()
	assert.Error(t, err)
}

func TestProjectConfig_Encryption(t *testing.T) {
	enc, err := ProjectConfig{}.Encryption()
	require.NoError(t, err)
	assert.Nil(t, enc)

	key := strings.Repeat("ab", 32)
	old := strings.Repeat("cd", 32)
	path := writeConfig(t, "project:\n  fallback_keys: "+old+"\n")
	t.Setenv("KMOL_ENCRYPTION_KEY", key)

	cfg, err := Load(path)
	require.NoError(t, err)
	enc, err = cfg.Project.Encryption()
	require.NoError(t, err)
	require.NotNil(t, enc)
	assert.Len(t, enc.ActiveKey, 32)
	require.Len(t, enc.FallbackKeys, 1)
	assert.Equal(t, byte(0xcd), enc.FallbackKeys[0][0])
}

func TestLoad_RedisBackend(t *testing.T) {
	path := writeConfig(t, `
project:
  backend: redis
  redis:
    db: 2
    prefix: "team:"
    ttl: 24h
`)
	t.Setenv("KMOL_REDIS_ADDR", "redis.internal:6380")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, BackendRedis, cfg.Project.Backend)
	assert.Equal(t, RedisConfig{
		Addr:   "redis.internal:6380",
		DB:     2,
		Prefix: "team:",
		TTL:    24 * time.Hour,
	}, cfg.Project.Redis)
}
