package config

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/rshade/rowprompt/internal/logging"
)

// ProjectDirName is the per-project configuration directory.
const ProjectDirName = ".rowprompt"

//nolint:gochecknoglobals // Set once per invocation by the CLI root command.
var (
	resolvedProjectDir   string
	resolvedProjectDirMu sync.RWMutex
)

// SetResolvedProjectDir stores the project directory resolved for this invocation.
func SetResolvedProjectDir(dir string) {
	resolvedProjectDirMu.Lock()
	defer resolvedProjectDirMu.Unlock()
	resolvedProjectDir = dir
}

// GetResolvedProjectDir returns the stored resolved project directory.
func GetResolvedProjectDir() string {
	resolvedProjectDirMu.RLock()
	defer resolvedProjectDirMu.RUnlock()
	return resolvedProjectDir
}

// ResolveProjectDir determines the project-local .rowprompt directory path.
// It checks (in order):
//  1. flagValue (--project-dir CLI flag)
//  2. ROWPROMPT_PROJECT_DIR env var
//  3. a walk up from startDir looking for an existing .rowprompt directory
//
// Returns an absolute path, or "" when no project directory is found. The
// user-level config directory is never treated as a project.
func ResolveProjectDir(ctx context.Context, flagValue, startDir string) string {
	if flagValue != "" {
		return toAbsProjectDir(ctx, flagValue)
	}

	if envDir := os.Getenv("ROWPROMPT_PROJECT_DIR"); envDir != "" {
		return toAbsProjectDir(ctx, envDir)
	}

	globalDir, _ := GetConfigDir()
	dir := toAbsProjectDir(ctx, startDir)
	for {
		if dir != globalDir {
			if info, err := os.Stat(dir); err == nil && info.IsDir() {
				return dir
			}
		}
		parent := filepath.Dir(filepath.Dir(dir))
		next := filepath.Join(parent, ProjectDirName)
		if next == dir {
			return ""
		}
		dir = next
	}
}

// LoadWithProjectDir loads the user configuration, then shallow-merges
// projectDir/config.yaml on top, then applies the environment. A missing or
// unreadable project file is logged and ignored.
func LoadWithProjectDir(ctx context.Context, path, projectDir string) (*Config, error) {
	cfg := New()
	if path != "" {
		cfg.SetConfigPath(path)
	}
	if err := cfg.readFile(); err != nil {
		return nil, err
	}

	if projectDir != "" {
		overlayPath := filepath.Join(projectDir, configFileName)
		if _, err := os.Stat(overlayPath); err == nil {
			merged := *cfg
			if mergeErr := ShallowMergeYAML(&merged, overlayPath); mergeErr != nil {
				logger := logging.FromContext(ctx)
				logger.Warn().
					Str("component", "config").
					Str("operation", "merge_project_config").
					Err(mergeErr).
					Str("overlay_path", overlayPath).
					Msg("failed to merge project config, using user config")
			} else {
				cfg = &merged
			}
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// toAbsProjectDir converts dir to an absolute path and appends ".rowprompt"
// unless it already ends with it.
func toAbsProjectDir(ctx context.Context, dir string) string {
	abs, err := filepath.Abs(dir)
	if err != nil {
		logger := logging.FromContext(ctx)
		logger.Warn().
			Str("component", "config").
			Err(err).
			Str("dir", dir).
			Msg("failed to resolve absolute path for project directory")
		abs = dir
	}

	if filepath.Base(abs) == ProjectDirName {
		return abs
	}

	return filepath.Join(abs, ProjectDirName)
}
