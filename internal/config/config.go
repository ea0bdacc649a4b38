package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/newspan/internal/privacy"
	"github.com/ppiankov/newspan/internal/source"
)

const (
	DefaultDir           = ".newspan"
	DefaultConfigFile    = "config.yaml"
	DefaultEnvFile       = ".env"
	DefaultStorageFile   = "newspan.db"
	DefaultRetainDays    = 30
	DefaultTimeout       = 2 * time.Minute
	DefaultFetchTimeout  = 30 * time.Second
	DefaultRetries       = 3
	DefaultConcurrency   = 5
	DefaultEnrichWorkers = 3
	DefaultEnrichDelay   = 500 * time.Millisecond
	DefaultCacheBackend  = "memory"
	DefaultCacheTTL      = time.Hour
	DefaultSummarizeMode = "heuristic"
	DefaultLLMMaxTokens  = 150
	DefaultServerAddr    = ":8080"
	DefaultOutputFormat  = "terminal"
	DefaultColor         = "auto"
)

// Duration wraps time.Duration for YAML unmarshaling from strings like "24h".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

type Config struct {
	// Sources are merged by id over the built-in outlets.
	Sources   []source.Source `yaml:"sources"`
	Defaults  DefaultsConfig  `yaml:"defaults"`
	Fetch     FetchConfig     `yaml:"fetch"`
	Cache     CacheConfig     `yaml:"cache"`
	Storage   StorageConfig   `yaml:"storage"`
	Summarize SummarizeConfig `yaml:"summarize"`
	Server    ServerConfig    `yaml:"server"`
	Output    OutputConfig    `yaml:"output"`
}

type DefaultsConfig struct {
	// Sources used when a brief names none. Empty means every known outlet.
	Sources  []string `yaml:"sources"`
	Keywords string   `yaml:"keywords"`
	// Timeout bounds a whole brief.
	Timeout Duration `yaml:"timeout"`
}

type FetchConfig struct {
	Timeout   Duration `yaml:"timeout"`
	UserAgent string   `yaml:"user_agent"`
	Retries   int      `yaml:"retries"`
	// Proxies left unset use the built-in relays; an empty list disables them.
	Proxies        []string `yaml:"proxies"`
	MaxConcurrency int      `yaml:"max_concurrency"`
	EnrichWorkers  int      `yaml:"enrich_workers"`
	// EnrichDelay left unset uses DefaultEnrichDelay; an explicit 0s disables it.
	EnrichDelay   *Duration `yaml:"enrich_delay"`
	FullContent   *bool     `yaml:"full_content"`
	RespectRobots bool      `yaml:"respect_robots"`
}

// FullContentEnabled reports whether article pages are fetched. Defaults to true.
func (f FetchConfig) FullContentEnabled() bool {
	return f.FullContent == nil || *f.FullContent
}

// EnrichDelayDuration returns the per-worker page fetch delay.
func (f FetchConfig) EnrichDelayDuration() time.Duration {
	if f.EnrichDelay == nil {
		return DefaultEnrichDelay
	}
	return f.EnrichDelay.Duration
}

type CacheConfig struct {
	Backend string      `yaml:"backend"`
	TTL     Duration    `yaml:"ttl"`
	Redis   RedisConfig `yaml:"redis"`
}

type RedisConfig struct {
	Addr        string `yaml:"addr"`
	DB          int    `yaml:"db"`
	Prefix      string `yaml:"prefix"`
	PasswordEnv string `yaml:"password_env"`

	// Resolved from env var at load time.
	Password string `yaml:"-"`
}

type StorageConfig struct {
	Path       string `yaml:"path"`
	RetainDays int    `yaml:"retain_days"`
}

type SummarizeConfig struct {
	Mode string    `yaml:"mode"`
	LLM  LLMConfig `yaml:"llm"`

	// Redact holds regexps whose matches are replaced before text is sent
	// to the LLM endpoint.
	Redact []string `yaml:"redact"`
}

type LLMConfig struct {
	Endpoint  string `yaml:"endpoint"`
	Model     string `yaml:"model"`
	APIKeyEnv string `yaml:"api_key_env"`
	MaxTokens int    `yaml:"max_tokens"`

	// Resolved from env var at load time.
	APIKey string `yaml:"-"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type OutputConfig struct {
	Format string `yaml:"format"`
	// Color is auto, always or never.
	Color string `yaml:"color"`
}

// Default returns the configuration used when dir has no config file.
func Default(dir string) *Config {
	cfg := &Config{}
	applyDefaults(cfg, dir)
	return cfg
}

// Load reads config.yaml from dir, applies defaults, resolves env vars, and
// validates. A missing config.yaml yields the defaults. <dir>/.env, when
// present, is loaded into the environment first without overriding
// variables that are already set.
func Load(dir string) (*Config, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("config dir is required")
	}

	if err := loadEnvFile(filepath.Join(dir, DefaultEnvFile)); err != nil {
		return nil, err
	}

	var cfg Config
	data, err := os.ReadFile(filepath.Join(dir, DefaultConfigFile))
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyDefaults(&cfg, dir)
	resolveEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

func loadEnvFile(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func applyDefaults(cfg *Config, dir string) {
	if cfg.Defaults.Timeout.Duration == 0 {
		cfg.Defaults.Timeout.Duration = DefaultTimeout
	}
	if cfg.Fetch.Timeout.Duration == 0 {
		cfg.Fetch.Timeout.Duration = DefaultFetchTimeout
	}
	if cfg.Fetch.Retries == 0 {
		cfg.Fetch.Retries = DefaultRetries
	}
	if cfg.Fetch.MaxConcurrency == 0 {
		cfg.Fetch.MaxConcurrency = DefaultConcurrency
	}
	if cfg.Fetch.EnrichWorkers == 0 {
		cfg.Fetch.EnrichWorkers = DefaultEnrichWorkers
	}
	if cfg.Fetch.EnrichDelay == nil {
		cfg.Fetch.EnrichDelay = &Duration{Duration: DefaultEnrichDelay}
	}
	if cfg.Cache.Backend == "" {
		cfg.Cache.Backend = DefaultCacheBackend
	}
	if cfg.Cache.TTL.Duration == 0 {
		cfg.Cache.TTL.Duration = DefaultCacheTTL
	}
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = filepath.Join(dir, DefaultStorageFile)
	}
	if cfg.Storage.RetainDays == 0 {
		cfg.Storage.RetainDays = DefaultRetainDays
	}
	if cfg.Summarize.Mode == "" {
		cfg.Summarize.Mode = DefaultSummarizeMode
	}
	if cfg.Summarize.LLM.MaxTokens == 0 {
		cfg.Summarize.LLM.MaxTokens = DefaultLLMMaxTokens
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = DefaultServerAddr
	}
	if cfg.Output.Format == "" {
		cfg.Output.Format = DefaultOutputFormat
	}
	if cfg.Output.Color == "" {
		cfg.Output.Color = DefaultColor
	}
}

func resolveEnv(cfg *Config) {
	if cfg.Summarize.LLM.APIKeyEnv != "" {
		cfg.Summarize.LLM.APIKey = os.Getenv(cfg.Summarize.LLM.APIKeyEnv)
	}
	if cfg.Cache.Redis.PasswordEnv != "" {
		cfg.Cache.Redis.Password = os.Getenv(cfg.Cache.Redis.PasswordEnv)
	}
}

func validate(cfg *Config) error {
	for i, s := range cfg.Sources {
		if strings.TrimSpace(s.ID) == "" {
			return fmt.Errorf("sources[%d]: id is required", i)
		}
	}

	for name, d := range map[string]time.Duration{
		"defaults.timeout":   cfg.Defaults.Timeout.Duration,
		"fetch.timeout":      cfg.Fetch.Timeout.Duration,
		"fetch.enrich_delay": cfg.Fetch.EnrichDelayDuration(),
		"cache.ttl":          cfg.Cache.TTL.Duration,
	} {
		if d < 0 {
			return fmt.Errorf("%s: must not be negative, got %s", name, d)
		}
	}

	if cfg.Fetch.Retries < 0 {
		return fmt.Errorf("fetch.retries: must not be negative, got %d", cfg.Fetch.Retries)
	}
	if cfg.Fetch.MaxConcurrency < 0 || cfg.Fetch.EnrichWorkers < 0 {
		return errors.New("fetch: worker counts must not be negative")
	}
	for _, p := range cfg.Fetch.Proxies {
		if !strings.Contains(p, "{url}") {
			return fmt.Errorf("fetch.proxies: %q must contain {url}", p)
		}
	}

	switch cfg.Cache.Backend {
	case "none", "memory":
	case "redis":
		if cfg.Cache.Redis.Addr == "" {
			return errors.New("cache.redis.addr: required for redis backend")
		}
	default:
		return fmt.Errorf("cache.backend: unknown backend %q (want none, memory or redis)", cfg.Cache.Backend)
	}

	if cfg.Storage.RetainDays < 0 {
		return fmt.Errorf("storage.retain_days: must not be negative, got %d", cfg.Storage.RetainDays)
	}

	switch cfg.Summarize.Mode {
	case "heuristic", "llm":
		// valid
	default:
		return fmt.Errorf("summarize.mode: unknown mode %q (want heuristic or llm)", cfg.Summarize.Mode)
	}
	if _, err := privacy.New(cfg.Summarize.Redact); err != nil {
		return fmt.Errorf("summarize.%w", err)
	}

	switch cfg.Output.Format {
	case "terminal", "json", "markdown", "csv", "html":
	default:
		return fmt.Errorf("output.format: unknown format %q", cfg.Output.Format)
	}
	switch cfg.Output.Color {
	case "auto", "always", "never":
	default:
		return fmt.Errorf("output.color: unknown value %q (want auto, always or never)", cfg.Output.Color)
	}

	return nil
}
