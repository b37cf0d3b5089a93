// Package config loads rowprompt settings from defaults, the user config
// file, an optional project overlay and ROWPROMPT_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/rshade/rowprompt/internal/cache"
	"github.com/rshade/rowprompt/internal/engine"
	"github.com/rshade/rowprompt/internal/llm"
	"github.com/rshade/rowprompt/internal/progress"
)

// Defaults applied by New.
const (
	DefaultProvider     = llm.ProviderOpenAI
	DefaultModel        = "gpt-4o"
	DefaultTemperature  = 0.2
	DefaultTopP         = 0.9
	DefaultModelTimeout = llm.DefaultTimeout
	DefaultServerAddr   = ":8000"
	DefaultMaxUploadMB  = 32
	DefaultLogLevel     = "info"
	DefaultLogFormat    = "console"

	configFileName = "config.yaml"
	outputDirName  = "output"
	cacheDirName   = "cache"
)

// Temperature and top_p bounds accepted by Validate.
const (
	MaxTemperature = 2.0
	MaxTopP        = 1.0
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the complete rowprompt configuration.
type Config struct {
	Model      ModelConfig      `yaml:"model"`
	Processing ProcessingConfig `yaml:"processing"`
	Progress   ProgressConfig   `yaml:"progress"`
	Output     OutputConfig     `yaml:"output"`
	Cache      CacheConfig      `yaml:"cache"`
	Logging    LoggingConfig    `yaml:"logging"`
	Server     ServerConfig     `yaml:"server"`

	configPath string
}

// ModelConfig selects the generation service and its parameters.
type ModelConfig struct {
	Provider     string  `yaml:"provider"`
	Name         string  `yaml:"name"`
	Temperature  float64 `yaml:"temperature"`
	TopP         float64 `yaml:"top_p"`
	SystemPrompt string  `yaml:"system_prompt,omitempty"`
	BaseURL      string  `yaml:"base_url,omitempty"`
	// APIKeyEnv names the environment variable holding the API key. Keys are
	// never stored in the config file.
	APIKeyEnv string        `yaml:"api_key_env,omitempty"`
	Timeout   time.Duration `yaml:"timeout"`
}

// ProcessingConfig controls the worker pool and output column.
type ProcessingConfig struct {
	Workers      int    `yaml:"workers"`
	OutputColumn string `yaml:"output_column"`
}

// ProgressConfig selects the progress store backend.
type ProgressConfig struct {
	Backend       string `yaml:"backend"`
	Path          string `yaml:"path,omitempty"`
	DSN           string `yaml:"dsn,omitempty"`
	RedisAddr     string `yaml:"redis_addr,omitempty"`
	RedisPassword string `yaml:"redis_password,omitempty"`
	RedisDB       int    `yaml:"redis_db,omitempty"`
	RedisKey      string `yaml:"redis_key,omitempty"`
}

// OutputConfig controls where processed tables and error logs are written.
type OutputConfig struct {
	Dir string `yaml:"dir"`
}

// CacheConfig controls the model response cache. It is off by default.
type CacheConfig struct {
	Enabled bool          `yaml:"enabled"`
	Dir     string        `yaml:"dir,omitempty"`
	TTL     time.Duration `yaml:"ttl"`
}

// LoggingConfig controls log level, format and destination.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file,omitempty"`
}

// ServerConfig controls the HTTP API.
type ServerConfig struct {
	Addr        string   `yaml:"addr"`
	MaxUploadMB int64    `yaml:"max_upload_mb"`
	CORSOrigins []string `yaml:"cors_origins,omitempty"`
}

// New returns a Config holding defaults. It does not read any file.
func New() *Config {
	cfg := &Config{
		Model: ModelConfig{
			Provider:    DefaultProvider,
			Name:        DefaultModel,
			Temperature: DefaultTemperature,
			TopP:        DefaultTopP,
			Timeout:     DefaultModelTimeout,
		},
		Processing: ProcessingConfig{
			Workers:      engine.DefaultWorkers,
			OutputColumn: engine.DefaultOutputColumn,
		},
		Progress: ProgressConfig{
			Backend:  progress.BackendFile,
			RedisKey: progress.DefaultRedisKey,
		},
		Cache: CacheConfig{
			TTL: cache.DefaultTTL,
		},
		Logging: LoggingConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
		Server: ServerConfig{
			Addr:        DefaultServerAddr,
			MaxUploadMB: DefaultMaxUploadMB,
		},
	}

	if dir, err := GetConfigDir(); err == nil {
		cfg.configPath = filepath.Join(dir, configFileName)
		cfg.Progress.Path = filepath.Join(dir, "processed_ids.jsonl")
		cfg.Output.Dir = filepath.Join(dir, outputDirName)
		cfg.Cache.Dir = filepath.Join(dir, cacheDirName)
	}
	return cfg
}

// Load builds a Config from defaults, the YAML file at path (or the default
// config path when empty) and ROWPROMPT_* environment variables, then
// validates it. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := New()
	if path != "" {
		cfg.SetConfigPath(path)
	}

	if err := cfg.readFile(); err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// readFile decodes the config file over the current values. Fields absent
// from the file keep their defaults.
func (c *Config) readFile() error {
	if c.configPath == "" {
		return nil
	}
	data, err := os.ReadFile(c.configPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading config file %s: %w", c.configPath, err)
	}
	if err = yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config file %s: %w", c.configPath, err)
	}
	return nil
}

// ConfigPath returns the file this Config is loaded from and saved to.
func (c *Config) ConfigPath() string {
	return c.configPath
}

// SetConfigPath changes the file used by Load and Save.
func (c *Config) SetConfigPath(path string) {
	c.configPath = path
}

// Save writes the configuration as YAML to ConfigPath, creating parent
// directories as needed.
func (c *Config) Save() error {
	if c.configPath == "" {
		return errors.New("config path is not set")
	}
	if err := os.MkdirAll(filepath.Dir(c.configPath), 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err = os.WriteFile(c.configPath, data, 0o600); err != nil {
		return fmt.Errorf("writing config file %s: %w", c.configPath, err)
	}
	return nil
}

// Validate reports every invalid setting, wrapped in ErrInvalidConfig.
func (c *Config) Validate() error {
	var errs []error

	switch strings.ToLower(c.Model.Provider) {
	case llm.ProviderOpenAI, llm.ProviderGemini, llm.ProviderEcho:
	default:
		errs = append(errs, fmt.Errorf("model.provider %q is not supported", c.Model.Provider))
	}
	if c.Model.Name == "" && !strings.EqualFold(c.Model.Provider, llm.ProviderEcho) {
		errs = append(errs, errors.New("model.name is required"))
	}
	if c.Model.Temperature < 0 || c.Model.Temperature > MaxTemperature {
		errs = append(errs, fmt.Errorf("model.temperature must be between 0 and %.0f, got %g",
			MaxTemperature, c.Model.Temperature))
	}
	if c.Model.TopP < 0 || c.Model.TopP > MaxTopP {
		errs = append(errs, fmt.Errorf("model.top_p must be between 0 and %.0f, got %g", MaxTopP, c.Model.TopP))
	}
	if c.Model.Timeout < 0 {
		errs = append(errs, fmt.Errorf("model.timeout must not be negative, got %s", c.Model.Timeout))
	}

	if c.Processing.Workers < 1 {
		errs = append(errs, fmt.Errorf("processing.workers must be at least 1, got %d", c.Processing.Workers))
	}
	if strings.TrimSpace(c.Processing.OutputColumn) == "" {
		errs = append(errs, errors.New("processing.output_column is required"))
	}

	errs = append(errs, c.Progress.validate()...)

	if c.Cache.Enabled {
		if c.Cache.Dir == "" {
			errs = append(errs, errors.New("cache.dir is required when the cache is enabled"))
		}
		if err := cache.ValidateTTL(c.Cache.TTL); err != nil {
			errs = append(errs, fmt.Errorf("cache.ttl: %w", err))
		}
	}

	if c.Logging.Level != "" {
		if _, err := zerolog.ParseLevel(strings.ToLower(c.Logging.Level)); err != nil {
			errs = append(errs, fmt.Errorf("logging.level %q is not a valid level", c.Logging.Level))
		}
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "console", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format %q must be console or json", c.Logging.Format))
	}

	if c.Server.MaxUploadMB < 1 {
		errs = append(errs, fmt.Errorf("server.max_upload_mb must be at least 1, got %d", c.Server.MaxUploadMB))
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}

func (p ProgressConfig) validate() []error {
	var errs []error
	switch strings.ToLower(p.Backend) {
	case "", progress.BackendFile, progress.BackendMemory:
	case progress.BackendSQLite:
		if p.Path == "" {
			errs = append(errs, errors.New("progress.path is required for the sqlite backend"))
		}
	case progress.BackendRedis:
		if p.RedisAddr == "" {
			errs = append(errs, errors.New("progress.redis_addr is required for the redis backend"))
		}
	case progress.BackendPostgres:
		if p.DSN == "" {
			errs = append(errs, errors.New("progress.dsn is required for the postgres backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("progress.backend %q is not supported", p.Backend))
	}
	return errs
}

// StoreConfig converts the section into a progress.Config.
func (p ProgressConfig) StoreConfig() progress.Config {
	return progress.Config{
		Backend:       p.Backend,
		Path:          p.Path,
		DSN:           p.DSN,
		RedisAddr:     p.RedisAddr,
		RedisPassword: p.RedisPassword,
		RedisDB:       p.RedisDB,
		RedisKey:      p.RedisKey,
	}
}

// Params returns the per-run generation parameters.
func (m ModelConfig) Params() llm.Params {
	return llm.Params{
		Model:        m.Name,
		Temperature:  m.Temperature,
		TopP:         m.TopP,
		SystemPrompt: m.SystemPrompt,
	}
}

// APIKeyEnvName returns the environment variable consulted for the API key.
func (m ModelConfig) APIKeyEnvName() string {
	if m.APIKeyEnv != "" {
		return m.APIKeyEnv
	}
	if strings.EqualFold(m.Provider, llm.ProviderGemini) {
		return "GEMINI_API_KEY"
	}
	return "OPENAI_API_KEY"
}

// InvokerOptions returns llm.Options for this section. apiKey overrides the
// key read from the environment when non-empty.
func (m ModelConfig) InvokerOptions(apiKey string) llm.Options {
	if apiKey == "" {
		apiKey = os.Getenv(m.APIKeyEnvName())
	}
	return llm.Options{
		Provider: m.Provider,
		APIKey:   apiKey,
		BaseURL:  m.BaseURL,
		Timeout:  m.Timeout,
	}
}

// OpenStore returns the response cache, or nil when it is disabled.
func (c CacheConfig) OpenStore() (*cache.FileStore, error) {
	if !c.Enabled {
		return nil, nil //nolint:nilnil // a disabled cache is not an error
	}
	return cache.NewFileStore(c.Dir, c.TTL)
}
