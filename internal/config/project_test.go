package config_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/rowprompt/internal/config"
)

func TestResolveProjectDir_FlagOverride(t *testing.T) {
	t.Setenv("ROWPROMPT_PROJECT_DIR", "")

	flagDir := t.TempDir()
	got := config.ResolveProjectDir(context.Background(), flagDir, "/does/not/matter")

	assert.Equal(t, filepath.Join(flagDir, ".rowprompt"), got)
	assert.True(t, filepath.IsAbs(got), "returned path must be absolute")
}

func TestResolveProjectDir_FlagOverridesEnv(t *testing.T) {
	envDir := t.TempDir()
	flagDir := t.TempDir()
	t.Setenv("ROWPROMPT_PROJECT_DIR", envDir)

	got := config.ResolveProjectDir(context.Background(), flagDir, "/does/not/matter")
	assert.Equal(t, filepath.Join(flagDir, ".rowprompt"), got)
}

func TestResolveProjectDir_EnvVarOverride(t *testing.T) {
	envDir := t.TempDir()
	t.Setenv("ROWPROMPT_PROJECT_DIR", envDir)

	got := config.ResolveProjectDir(context.Background(), "", "/does/not/matter")
	assert.Equal(t, filepath.Join(envDir, ".rowprompt"), got)
}

func TestResolveProjectDir_AlreadySuffixed(t *testing.T) {
	t.Setenv("ROWPROMPT_PROJECT_DIR", "")
	dir := filepath.Join(t.TempDir(), ".rowprompt")

	got := config.ResolveProjectDir(context.Background(), dir, "")
	assert.Equal(t, dir, got)
}

func TestResolveProjectDir_WalkUp(t *testing.T) {
	t.Setenv("ROWPROMPT_PROJECT_DIR", "")
	isolateHome(t)

	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".rowprompt"), 0o750))
	sub := filepath.Join(root, "a", "b", "c")
	require.NoError(t, os.MkdirAll(sub, 0o750))

	got := config.ResolveProjectDir(context.Background(), "", sub)
	assert.Equal(t, filepath.Join(root, ".rowprompt"), got)
}

func TestResolveProjectDir_NoProject(t *testing.T) {
	t.Setenv("ROWPROMPT_PROJECT_DIR", "")
	isolateHome(t)

	got := config.ResolveProjectDir(context.Background(), "", t.TempDir())
	assert.Empty(t, got)
}

func TestLoadWithProjectDir(t *testing.T) {
	isolateHome(t)

	userPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(userPath, []byte(`
model:
  name: gpt-4o-mini
processing:
  workers: 4
`), 0o600))

	projectDir := filepath.Join(t.TempDir(), ".rowprompt")
	require.NoError(t, os.MkdirAll(projectDir, 0o750))

	t.Run("overlay applied", func(t *testing.T) {
		require.NoError(t, os.WriteFile(filepath.Join(projectDir, "config.yaml"), []byte(`
processing:
  output_column: SUMMARY
`), 0o600))

		cfg, err := config.LoadWithProjectDir(context.Background(), userPath, projectDir)
		require.NoError(t, err)
		assert.Equal(t, "gpt-4o-mini", cfg.Model.Name)
		assert.Equal(t, 4, cfg.Processing.Workers)
		assert.Equal(t, "SUMMARY", cfg.Processing.OutputColumn)
	})

	t.Run("broken overlay falls back to user config", func(t *testing.T) {
		require.NoError(t, os.WriteFile(filepath.Join(projectDir, "config.yaml"), []byte("{{{{"), 0o600))

		cfg, err := config.LoadWithProjectDir(context.Background(), userPath, projectDir)
		require.NoError(t, err)
		assert.Equal(t, 4, cfg.Processing.Workers)
		assert.Equal(t, "MODEL_OUTPUT", cfg.Processing.OutputColumn)
	})

	t.Run("no project dir", func(t *testing.T) {
		cfg, err := config.LoadWithProjectDir(context.Background(), userPath, "")
		require.NoError(t, err)
		assert.Equal(t, 4, cfg.Processing.Workers)
	})
}

func TestSetResolvedProjectDir_RoundTrip(t *testing.T) {
	orig := config.GetResolvedProjectDir()
	t.Cleanup(func() { config.SetResolvedProjectDir(orig) })

	config.SetResolvedProjectDir("/some/project/.rowprompt")
	assert.Equal(t, "/some/project/.rowprompt", config.GetResolvedProjectDir())

	config.SetResolvedProjectDir("")
	assert.Empty(t, config.GetResolvedProjectDir())
}
