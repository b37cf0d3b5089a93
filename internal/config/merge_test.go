package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/rowprompt/internal/config"
)

// newDefaultTarget returns a Config with known non-zero values so tests can
// verify that absent overlay keys leave the original values intact.
func newDefaultTarget() *config.Config {
	return &config.Config{
		Model: config.ModelConfig{
			Provider:    "openai",
			Name:        "gpt-4o",
			Temperature: 0.2,
			TopP:        0.9,
		},
		Processing: config.ProcessingConfig{Workers: 6, OutputColumn: "MODEL_OUTPUT"},
		Progress:   config.ProgressConfig{Backend: "file", Path: "/tmp/ids.jsonl"},
		Output:     config.OutputConfig{Dir: "/tmp/out"},
		Cache:      config.CacheConfig{Dir: "/tmp/cache", TTL: time.Hour},
		Logging:    config.LoggingConfig{Level: "info", Format: "console"},
		Server:     config.ServerConfig{Addr: ":8000", MaxUploadMB: 32},
	}
}

// writeOverlay writes YAML content to a temp file and returns its path.
func writeOverlay(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "overlay.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestShallowMergeYAML_SingleSection(t *testing.T) {
	target := newDefaultTarget()
	overlay := writeOverlay(t, `
processing:
  workers: 12
`)

	require.NoError(t, config.ShallowMergeYAML(target, overlay))

	assert.Equal(t, 12, target.Processing.Workers)
	assert.Equal(t, "MODEL_OUTPUT", target.Processing.OutputColumn, "unset field in section kept")
	assert.Equal(t, "gpt-4o", target.Model.Name)
	assert.Equal(t, "info", target.Logging.Level)
}

func TestShallowMergeYAML_MultipleSections(t *testing.T) {
	target := newDefaultTarget()
	overlay := writeOverlay(t, `
model:
  name: gpt-4o-mini
  system_prompt: be brief
progress:
  backend: sqlite
  path: /data/progress.db
`)

	require.NoError(t, config.ShallowMergeYAML(target, overlay))

	assert.Equal(t, "gpt-4o-mini", target.Model.Name)
	assert.Equal(t, "be brief", target.Model.SystemPrompt)
	assert.InDelta(t, 0.2, target.Model.Temperature, 1e-9)
	assert.Equal(t, "sqlite", target.Progress.Backend)
	assert.Equal(t, "/data/progress.db", target.Progress.Path)
	assert.Equal(t, ":8000", target.Server.Addr)
}

func TestShallowMergeYAML_CacheSection(t *testing.T) {
	target := newDefaultTarget()
	overlay := writeOverlay(t, `
cache:
  enabled: true
`)

	require.NoError(t, config.ShallowMergeYAML(target, overlay))

	assert.True(t, target.Cache.Enabled)
	assert.Equal(t, "/tmp/cache", target.Cache.Dir)
	assert.Equal(t, time.Hour, target.Cache.TTL)
}

func TestShallowMergeYAML_EmptyAndCommentOnly(t *testing.T) {
	for name, content := range map[string]string{
		"empty":        "",
		"comment only": "# nothing here\n",
	} {
		t.Run(name, func(t *testing.T) {
			target := newDefaultTarget()
			original := *target
			require.NoError(t, config.ShallowMergeYAML(target, writeOverlay(t, content)))
			assert.Equal(t, original, *target)
		})
	}
}

func TestShallowMergeYAML_UnknownKeysIgnored(t *testing.T) {
	target := newDefaultTarget()
	overlay := writeOverlay(t, `
plugins:
  something: true
output:
  dir: /srv/out
`)

	require.NoError(t, config.ShallowMergeYAML(target, overlay))
	assert.Equal(t, "/srv/out", target.Output.Dir)
}

func TestShallowMergeYAML_Errors(t *testing.T) {
	t.Run("corrupted yaml", func(t *testing.T) {
		err := config.ShallowMergeYAML(newDefaultTarget(), writeOverlay(t, "{{{{not valid yaml at all"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "parsing overlay YAML")
	})

	t.Run("missing file", func(t *testing.T) {
		err := config.ShallowMergeYAML(newDefaultTarget(), "/nonexistent/path/overlay.yaml")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "reading overlay file")
	})

	t.Run("nil target", func(t *testing.T) {
		assert.Error(t, config.ShallowMergeYAML(nil, "x"))
	})

	t.Run("wrong section type leaves target unchanged", func(t *testing.T) {
		target := newDefaultTarget()
		err := config.ShallowMergeYAML(target, writeOverlay(t, "processing:\n  workers: lots\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), `applying overlay section "processing"`)
		assert.Equal(t, 6, target.Processing.Workers)
	})
}
