package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(values map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load(LoadOptions{LookupEnv: envMap(nil)})
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 5*time.Second, cfg.LaunchTimeout)
	assert.Equal(t, 3*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 1<<20, cfg.MaxLineBytes)
	assert.Equal(t, 64, cfg.QueueSize)
	assert.Empty(t, cfg.PluginsDir)
	assert.False(t, cfg.Watch)

	src, ok := cfg.SourceOf(FieldLogLevel)
	require.True(t, ok)
	assert.Equal(t, "default", src.Source)
}

func TestLoad_Precedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "host.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
plugins_dir: /from/file
log_level: warn
launch_timeout: 10s
queue_size: 16
watch: true
`), 0o644))

	cfg, err := Load(LoadOptions{
		Path: path,
		LookupEnv: envMap(map[string]string{
			"PLUGHOST_LOG_LEVEL":      "debug",
			"PLUGHOST_QUEUE_SIZE":     "32",
			"PLUGHOST_MAX_LINE_BYTES": "2048",
		}),
		Overrides: map[string]interface{}{
			FieldQueueSize: 8,
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "/from/file", cfg.PluginsDir)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 10*time.Second, cfg.LaunchTimeout)
	assert.Equal(t, 2048, cfg.MaxLineBytes)
	assert.Equal(t, 8, cfg.QueueSize)
	assert.True(t, cfg.Watch)

	src, _ := cfg.SourceOf(FieldPluginsDir)
	assert.Equal(t, "file", src.Source)
	assert.Equal(t, path, src.SourcePath)

	src, _ = cfg.SourceOf(FieldLogLevel)
	assert.Equal(t, "env", src.Source)
	assert.Equal(t, "PLUGHOST_LOG_LEVEL", src.SourcePath)

	src, _ = cfg.SourceOf(FieldQueueSize)
	assert.Equal(t, "flag", src.Source)
	assert.Equal(t, "--queue-size", src.SourcePath)
}

func TestLoad_JSONFileFromEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "host.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"shutdown_timeout": 1.5, "log_json": true}`), 0o644))

	cfg, err := Load(LoadOptions{LookupEnv: envMap(map[string]string{EnvConfigPath: path})})
	require.NoError(t, err)
	assert.Equal(t, 1500*time.Millisecond, cfg.ShutdownTimeout)
	assert.True(t, cfg.LogJSON)
}

func TestLoad_ExplicitFileMustExist(t *testing.T) {
	_, err := Load(LoadOptions{Path: filepath.Join(t.TempDir(), "missing.yaml"), LookupEnv: envMap(nil)})
	assert.Error(t, err)
}

func TestLoad_RejectsBadValues(t *testing.T) {
	t.Chdir(t.TempDir())

	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "unparseable duration", env: map[string]string{"PLUGHOST_LAUNCH_TIMEOUT": "soon"}},
		{name: "unknown level", env: map[string]string{"PLUGHOST_LOG_LEVEL": "loud"}},
		{name: "zero queue", env: map[string]string{"PLUGHOST_QUEUE_SIZE": "0"}},
		{name: "negative timeout", env: map[string]string{"PLUGHOST_SHUTDOWN_TIMEOUT": "-1s"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(LoadOptions{LookupEnv: envMap(tt.env)})
			assert.Error(t, err)
		})
	}
}

func TestLoad_UnknownFileFieldFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "host.yaml")
	require.NoError(t, os.WriteFile(path, []byte("api_key: nope\n"), 0o644))

	_, err := Load(LoadOptions{Path: path, LookupEnv: envMap(nil)})
	assert.ErrorContains(t, err, "unknown config field")
}

func TestConfig_EffectiveLevel(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "info", cfg.EffectiveLevel())
	cfg.Debug = true
	assert.Equal(t, "debug", cfg.EffectiveLevel())
}

func TestSave_RoundTripsThroughLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "plughost.yaml")

	cfg := Default()
	require.NoError(t, cfg.SetValue(FieldPluginsDir, "flag", "--plugins-dir", "/srv/plugins", PriorityFlag))
	require.NoError(t, cfg.SetValue(FieldLaunchTimeout, "flag", "--launch-timeout", "750ms", PriorityFlag))
	require.NoError(t, Save(cfg, path, false))

	assert.Error(t, Save(cfg, path, false))
	assert.NoError(t, Save(cfg, path, true))

	loaded, err := Load(LoadOptions{Path: path, LookupEnv: envMap(nil)})
	require.NoError(t, err)
	assert.Equal(t, "/srv/plugins", loaded.PluginsDir)
	assert.Equal(t, 750*time.Millisecond, loaded.LaunchTimeout)
}

func TestConfig_Describe(t *testing.T) {
	lines := Default().Describe()
	require.Len(t, lines, len(Fields()))
	assert.Contains(t, lines, "log_level = info (default)")
}
