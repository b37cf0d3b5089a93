package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/rowprompt/internal/config"
	"github.com/rshade/rowprompt/internal/llm"
	"github.com/rshade/rowprompt/internal/progress"
)

// isolateHome points the config directory at a temp dir for one test.
func isolateHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("ROWPROMPT_HOME", home)
	return home
}

func envMap(m map[string]string) config.LookupEnvFunc {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestNew_Defaults(t *testing.T) {
	home := isolateHome(t)

	cfg := config.New()
	assert.Equal(t, llm.ProviderOpenAI, cfg.Model.Provider)
	assert.Equal(t, "gpt-4o", cfg.Model.Name)
	assert.InDelta(t, 0.2, cfg.Model.Temperature, 1e-9)
	assert.InDelta(t, 0.9, cfg.Model.TopP, 1e-9)
	assert.Equal(t, 6, cfg.Processing.Workers)
	assert.Equal(t, "MODEL_OUTPUT", cfg.Processing.OutputColumn)
	assert.Equal(t, progress.BackendFile, cfg.Progress.Backend)
	assert.Equal(t, filepath.Join(home, "processed_ids.jsonl"), cfg.Progress.Path)
	assert.Equal(t, filepath.Join(home, "output"), cfg.Output.Dir)
	assert.Equal(t, filepath.Join(home, "config.yaml"), cfg.ConfigPath())
	assert.Equal(t, ":8000", cfg.Server.Addr)
	assert.False(t, cfg.Cache.Enabled)
	assert.Equal(t, filepath.Join(home, "cache"), cfg.Cache.Dir)
	assert.Equal(t, 24*time.Hour, cfg.Cache.TTL)
	require.NoError(t, cfg.Validate())
}

func TestLoad(t *testing.T) {
	t.Run("missing file uses defaults", func(t *testing.T) {
		isolateHome(t)
		cfg, err := config.Load("")
		require.NoError(t, err)
		assert.Equal(t, "gpt-4o", cfg.Model.Name)
	})

	t.Run("file overrides only the fields it sets", func(t *testing.T) {
		isolateHome(t)
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
model:
  name: gpt-4o-mini
  timeout: 30s
processing:
  workers: 3
`), 0o600))

		cfg, err := config.Load(path)
		require.NoError(t, err)
		assert.Equal(t, "gpt-4o-mini", cfg.Model.Name)
		assert.Equal(t, 30*time.Second, cfg.Model.Timeout)
		assert.InDelta(t, 0.2, cfg.Model.Temperature, 1e-9)
		assert.Equal(t, 3, cfg.Processing.Workers)
		assert.Equal(t, "MODEL_OUTPUT", cfg.Processing.OutputColumn)
		assert.Equal(t, path, cfg.ConfigPath())
	})

	t.Run("environment overrides file", func(t *testing.T) {
		isolateHome(t)
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("processing:\n  workers: 3\n"), 0o600))
		t.Setenv("ROWPROMPT_WORKERS", "9")
		t.Setenv("ROWPROMPT_MODEL", "gemini-2.0-flash")

		cfg, err := config.Load(path)
		require.NoError(t, err)
		assert.Equal(t, 9, cfg.Processing.Workers)
		assert.Equal(t, "gemini-2.0-flash", cfg.Model.Name)
	})

	t.Run("invalid yaml", func(t *testing.T) {
		isolateHome(t)
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("model: [unclosed"), 0o600))
		_, err := config.Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "parsing config file")
	})

	t.Run("invalid values rejected", func(t *testing.T) {
		isolateHome(t)
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("processing:\n  workers: 0\n"), 0o600))
		_, err := config.Load(path)
		assert.ErrorIs(t, err, config.ErrInvalidConfig)
	})
}

func TestApplyEnv(t *testing.T) {
	isolateHome(t)

	t.Run("all fields", func(t *testing.T) {
		cfg := config.New()
		err := cfg.ApplyEnv(envMap(map[string]string{
			"ROWPROMPT_PROVIDER":         "gemini",
			"ROWPROMPT_TEMPERATURE":      "0.7",
			"ROWPROMPT_TOP_P":            "0.5",
			"ROWPROMPT_MODEL_TIMEOUT":    "45s",
			"ROWPROMPT_OUTPUT_COLUMN":    "ANSWER",
			"ROWPROMPT_PROGRESS_BACKEND": "redis",
			"ROWPROMPT_REDIS_ADDR":       "localhost:6379",
			"ROWPROMPT_REDIS_DB":         "2",
			"ROWPROMPT_LOG_LEVEL":        "debug",
			"ROWPROMPT_SERVER_ADDR":      ":9000",
			"ROWPROMPT_CORS_ORIGINS":     "http://localhost:3000, ,https://app.example.com",
		}))
		require.NoError(t, err)
		assert.Equal(t, "gemini", cfg.Model.Provider)
		assert.InDelta(t, 0.7, cfg.Model.Temperature, 1e-9)
		assert.InDelta(t, 0.5, cfg.Model.TopP, 1e-9)
		assert.Equal(t, 45*time.Second, cfg.Model.Timeout)
		assert.Equal(t, "ANSWER", cfg.Processing.OutputColumn)
		assert.Equal(t, "redis", cfg.Progress.Backend)
		assert.Equal(t, "localhost:6379", cfg.Progress.RedisAddr)
		assert.Equal(t, 2, cfg.Progress.RedisDB)
		assert.Equal(t, "debug", cfg.Logging.Level)
		assert.Equal(t, ":9000", cfg.Server.Addr)
		assert.Equal(t, []string{"http://localhost:3000", "https://app.example.com"}, cfg.Server.CORSOrigins)
	})

	t.Run("unparseable numbers", func(t *testing.T) {
		cfg := config.New()
		err := cfg.ApplyEnv(envMap(map[string]string{
			"ROWPROMPT_WORKERS":     "many",
			"ROWPROMPT_TEMPERATURE": "hot",
		}))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ROWPROMPT_WORKERS")
		assert.Contains(t, err.Error(), "ROWPROMPT_TEMPERATURE")
		assert.Equal(t, 6, cfg.Processing.Workers)
	})

	t.Run("cache", func(t *testing.T) {
		cfg := config.New()
		require.NoError(t, cfg.ApplyEnv(envMap(map[string]string{
			"ROWPROMPT_CACHE_ENABLED": "true",
			"ROWPROMPT_CACHE_DIR":     "/tmp/rp-cache",
			"ROWPROMPT_CACHE_TTL":     "2h",
		})))
		assert.True(t, cfg.Cache.Enabled)
		assert.Equal(t, "/tmp/rp-cache", cfg.Cache.Dir)
		assert.Equal(t, 2*time.Hour, cfg.Cache.TTL)

		err := cfg.ApplyEnv(envMap(map[string]string{
			"ROWPROMPT_CACHE_ENABLED": "maybe",
			"ROWPROMPT_CACHE_TTL":     "5s",
		}))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ROWPROMPT_CACHE_ENABLED")
		assert.Contains(t, err.Error(), "ROWPROMPT_CACHE_TTL")
	})

	t.Run("empty values ignored", func(t *testing.T) {
		cfg := config.New()
		require.NoError(t, cfg.ApplyEnv(envMap(map[string]string{"ROWPROMPT_MODEL": ""})))
		assert.Equal(t, "gpt-4o", cfg.Model.Name)
	})
}

func TestValidate(t *testing.T) {
	isolateHome(t)

	tests := []struct {
		name    string
		mutate  func(c *config.Config)
		wantErr string
	}{
		{"defaults", func(*config.Config) {}, ""},
		{"unknown provider", func(c *config.Config) { c.Model.Provider = "llama" }, "model.provider"},
		{"temperature too high", func(c *config.Config) { c.Model.Temperature = 2.5 }, "model.temperature"},
		{"negative top_p", func(c *config.Config) { c.Model.TopP = -0.1 }, "model.top_p"},
		{"zero workers", func(c *config.Config) { c.Processing.Workers = 0 }, "processing.workers"},
		{"blank output column", func(c *config.Config) { c.Processing.OutputColumn = " " }, "output_column"},
		{"unknown backend", func(c *config.Config) { c.Progress.Backend = "etcd" }, "progress.backend"},
		{"redis without addr", func(c *config.Config) { c.Progress.Backend = "redis" }, "redis_addr"},
		{"postgres without dsn", func(c *config.Config) { c.Progress.Backend = "postgres" }, "progress.dsn"},
		{"bad log level", func(c *config.Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"bad log format", func(c *config.Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"cache ttl too short", func(c *config.Config) {
			c.Cache.Enabled = true
			c.Cache.TTL = time.Second
		}, "cache.ttl"},
		{"cache without dir", func(c *config.Config) {
			c.Cache.Enabled = true
			c.Cache.Dir = ""
		}, "cache.dir"},
		{"disabled cache is not validated", func(c *config.Config) { c.Cache.TTL = 0 }, ""},
		{"echo needs no model", func(c *config.Config) {
			c.Model.Provider = "echo"
			c.Model.Name = ""
		}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.New()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, config.ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSave_RoundTrip(t *testing.T) {
	isolateHome(t)

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := config.New()
	cfg.SetConfigPath(path)
	cfg.Model.Name = "gpt-4.1"
	cfg.Processing.Workers = 2
	require.NoError(t, cfg.Save())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "gpt-4.1", loaded.Model.Name)
	assert.Equal(t, 2, loaded.Processing.Workers)
}

func TestModelConfig(t *testing.T) {
	t.Run("params", func(t *testing.T) {
		m := config.ModelConfig{Name: "m", Temperature: 0.3, TopP: 0.8, SystemPrompt: "sys"}
		assert.Equal(t, llm.Params{Model: "m", Temperature: 0.3, TopP: 0.8, SystemPrompt: "sys"}, m.Params())
	})

	t.Run("api key env name", func(t *testing.T) {
		assert.Equal(t, "OPENAI_API_KEY", config.ModelConfig{Provider: "openai"}.APIKeyEnvName())
		assert.Equal(t, "GEMINI_API_KEY", config.ModelConfig{Provider: "gemini"}.APIKeyEnvName())
		assert.Equal(t, "MY_KEY", config.ModelConfig{APIKeyEnv: "MY_KEY"}.APIKeyEnvName())
	})

	t.Run("invoker options", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "from-env")
		m := config.ModelConfig{Provider: "openai", BaseURL: "http://x", Timeout: time.Second}
		assert.Equal(t, "from-env", m.InvokerOptions("").APIKey)
		opts := m.InvokerOptions("explicit")
		assert.Equal(t, "explicit", opts.APIKey)
		assert.Equal(t, "http://x", opts.BaseURL)
		assert.Equal(t, time.Second, opts.Timeout)
	})
}

func TestProgressConfig_StoreConfig(t *testing.T) {
	p := config.ProgressConfig{Backend: "redis", RedisAddr: "a:1", RedisDB: 3, RedisKey: "k"}
	sc := p.StoreConfig()
	assert.Equal(t, progress.Config{Backend: "redis", RedisAddr: "a:1", RedisDB: 3, RedisKey: "k"}, sc)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("ROWPROMPT_DOTENV_TEST=loaded\n"), 0o600))
	t.Setenv("ROWPROMPT_DOTENV_TEST", "")
	require.NoError(t, os.Unsetenv("ROWPROMPT_DOTENV_TEST"))

	require.NoError(t, config.LoadDotEnv(filepath.Join(dir, "missing.env"), path))
	assert.Equal(t, "loaded", os.Getenv("ROWPROMPT_DOTENV_TEST"))
}

func TestCacheConfig_OpenStore(t *testing.T) {
	store, err := config.CacheConfig{}.OpenStore()
	require.NoError(t, err)
	assert.Nil(t, store)

	dir := filepath.Join(t.TempDir(), "cache")
	store, err = config.CacheConfig{Enabled: true, Dir: dir, TTL: time.Hour}.OpenStore()
	require.NoError(t, err)
	require.NotNil(t, store)
	assert.Equal(t, dir, store.Directory())
	assert.DirExists(t, dir)
}
