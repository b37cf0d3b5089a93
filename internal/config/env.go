package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/rshade/rowprompt/internal/cache"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "ROWPROMPT_"

// LookupEnvFunc matches os.LookupEnv so tests can inject an environment.
type LookupEnvFunc func(string) (string, bool)

// ApplyEnv overrides fields from ROWPROMPT_* variables. Numeric variables
// that do not parse are reported as errors rather than ignored.
func (c *Config) ApplyEnv(lookup LookupEnvFunc) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			*dst = v
		}
	}
	var errs []error
	float := func(name string, dst *float64) {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = f
		}
	}
	integer := func(name string, dst *int) {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = n
		}
	}

	str("PROVIDER", &c.Model.Provider)
	str("MODEL", &c.Model.Name)
	float("TEMPERATURE", &c.Model.Temperature)
	float("TOP_P", &c.Model.TopP)
	str("SYSTEM_PROMPT", &c.Model.SystemPrompt)
	str("BASE_URL", &c.Model.BaseURL)
	str("API_KEY_ENV", &c.Model.APIKeyEnv)
	if v, ok := lookup(EnvPrefix + "MODEL_TIMEOUT"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sMODEL_TIMEOUT: %w", EnvPrefix, err))
		} else {
			c.Model.Timeout = d
		}
	}

	integer("WORKERS", &c.Processing.Workers)
	str("OUTPUT_COLUMN", &c.Processing.OutputColumn)

	str("PROGRESS_BACKEND", &c.Progress.Backend)
	str("PROGRESS_PATH", &c.Progress.Path)
	str("PROGRESS_DSN", &c.Progress.DSN)
	str("REDIS_ADDR", &c.Progress.RedisAddr)
	str("REDIS_PASSWORD", &c.Progress.RedisPassword)
	integer("REDIS_DB", &c.Progress.RedisDB)
	str("REDIS_KEY", &c.Progress.RedisKey)

	str("OUTPUT_DIR", &c.Output.Dir)

	if v, ok := lookup(EnvPrefix + "CACHE_ENABLED"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sCACHE_ENABLED: %w", EnvPrefix, err))
		} else {
			c.Cache.Enabled = b
		}
	}
	str("CACHE_DIR", &c.Cache.Dir)
	if v, ok := lookup(EnvPrefix + "CACHE_TTL"); ok && v != "" {
		d, err := cache.ParseTTL(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sCACHE_TTL: %w", EnvPrefix, err))
		} else {
			c.Cache.TTL = d
		}
	}

	str("LOG_LEVEL", &c.Logging.Level)
	str("LOG_FORMAT", &c.Logging.Format)
	str("LOG_FILE", &c.Logging.File)

	str("SERVER_ADDR", &c.Server.Addr)
	if v, ok := lookup(EnvPrefix + "CORS_ORIGINS"); ok && v != "" {
		c.Server.CORSOrigins = splitList(v)
	}

	return errors.Join(errs...)
}

// splitList splits a comma-separated value, dropping empty items.
func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// LoadDotEnv loads KEY=VALUE pairs from files into the process environment
// without overriding variables that are already set. Missing files are
// skipped.
func LoadDotEnv(files ...string) error {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("loading %s: %w", f, err)
		}
	}
	return nil
}
