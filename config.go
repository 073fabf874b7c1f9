package goontology

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/brunobiangulo/goontology/llm"
)

// Config holds all configuration for the ontology engine.
type Config struct {
	Generator GeneratorConfig `json:"generator" yaml:"generator"`

	// Timeout bounds a single generator call (default 120s).
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// HealthTimeout bounds the generator health check (default 5s).
	HealthTimeout time.Duration `json:"health_timeout" yaml:"health_timeout"`

	// Post-processing, both opt-in.
	ConnectComponents bool `json:"connect_components" yaml:"connect_components"` // bridge disconnected entity groups
	EnrichDetails     bool `json:"enrich_details" yaml:"enrich_details"`         // fetch definitions and examples per relationship

	EnrichBatchSize   int     `json:"enrich_batch_size" yaml:"enrich_batch_size"`
	EnrichConcurrency int     `json:"enrich_concurrency" yaml:"enrich_concurrency"`
	EnrichTemperature float64 `json:"enrich_temperature" yaml:"enrich_temperature"`

	// Cache is used by the server and CLI; the engine itself never caches.
	Cache CacheConfig `json:"cache" yaml:"cache"`
}

// GeneratorConfig configures the text generator.
type GeneratorConfig struct {
	Provider string `json:"provider" yaml:"provider"` // ollama, process, openai, lmstudio, openrouter, groq, xai, gemini, custom
	Model    string `json:"model" yaml:"model"`
	BaseURL  string `json:"base_url" yaml:"base_url"`
	APIKey   string `json:"api_key" yaml:"api_key"`

	// Process provider.
	Command   string   `json:"command" yaml:"command"`
	Args      []string `json:"args" yaml:"args"`
	PromptArg bool     `json:"prompt_arg" yaml:"prompt_arg"`

	NumCtx      int     `json:"num_ctx" yaml:"num_ctx"`
	// Temperature is left to the server default when unset.
	Temperature *float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	JSONMode    bool    `json:"json_mode" yaml:"json_mode"`
}

// CacheConfig configures the SQLite result cache.
type CacheConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Path is the full path to the SQLite file. If empty, the file is
	// cache.db inside StorageDir.
	Path string `json:"path" yaml:"path"`

	// StorageDir is "home" (default, ~/.goontology/) or "local" (working dir).
	StorageDir string `json:"storage_dir" yaml:"storage_dir"`

	// TTL is how long entries stay valid. Zero keeps them forever.
	TTL time.Duration `json:"ttl" yaml:"ttl"`
}

// DefaultConfig returns a Config for a local Ollama instance.
func DefaultConfig() Config {
	return Config{
		Generator: GeneratorConfig{
			Provider: "ollama",
			Model:    "llama3.2",
			NumCtx:   4096,
			JSONMode: true,
		},
		Timeout:           120 * time.Second,
		HealthTimeout:     5 * time.Second,
		EnrichBatchSize:   2,
		EnrichConcurrency: 4,
		EnrichTemperature: 0.3,
		Cache: CacheConfig{
			Enabled:    true,
			StorageDir: "home",
			TTL:        7 * 24 * time.Hour,
		},
	}
}

// LoadConfig reads a YAML (or JSON) file over DefaultConfig. Durations use
// Go syntax ("90s", "15m").
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from GOONTOLOGY_* environment variables.
// Malformed numeric or duration values are reported and leave the field
// unchanged.
func (c *Config) ApplyEnv() error {
	var errs []string
	str := func(name string, dst *string) {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}
	integer := func(name string, dst *int) {
		if v := os.Getenv(name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s=%q", name, v))
				return
			}
			*dst = n
		}
	}
	boolean := func(name string, dst *bool) {
		if v := os.Getenv(name); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s=%q", name, v))
				return
			}
			*dst = b
		}
	}
	duration := func(name string, dst *time.Duration) {
		if v := os.Getenv(name); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s=%q", name, v))
				return
			}
			*dst = d
		}
	}

	if v := os.Getenv("GOONTOLOGY_TEMPERATURE"); v != "" {
		if t, err := strconv.ParseFloat(v, 64); err != nil {
			errs = append(errs, fmt.Sprintf("%s=%q", "GOONTOLOGY_TEMPERATURE", v))
		} else {
			c.Generator.Temperature = &t
		}
	}
	str("GOONTOLOGY_PROVIDER", &c.Generator.Provider)
	str("GOONTOLOGY_MODEL", &c.Generator.Model)
	str("GOONTOLOGY_BASE_URL", &c.Generator.BaseURL)
	str("GOONTOLOGY_API_KEY", &c.Generator.APIKey)
	str("GOONTOLOGY_COMMAND", &c.Generator.Command)
	if v := os.Getenv("GOONTOLOGY_ARGS"); v != "" {
		c.Generator.Args = strings.Fields(v)
	}
	integer("GOONTOLOGY_NUM_CTX", &c.Generator.NumCtx)
	boolean("GOONTOLOGY_JSON_MODE", &c.Generator.JSONMode)
	duration("GOONTOLOGY_TIMEOUT", &c.Timeout)
	boolean("GOONTOLOGY_CONNECT", &c.ConnectComponents)
	boolean("GOONTOLOGY_DETAILS", &c.EnrichDetails)
	boolean("GOONTOLOGY_CACHE", &c.Cache.Enabled)
	str("GOONTOLOGY_CACHE_PATH", &c.Cache.Path)
	duration("GOONTOLOGY_CACHE_TTL", &c.Cache.TTL)

	if len(errs) > 0 {
		return fmt.Errorf("%w: malformed environment: %s", ErrInvalidConfig, strings.Join(errs, ", "))
	}
	return nil
}

// Validate reports configuration errors wrapped in ErrInvalidConfig.
func (c Config) Validate() error {
	var problems []string
	if c.Generator.Provider == "" {
		problems = append(problems, "generator.provider is required")
	}
	if c.Generator.Provider == "process" && c.Generator.Command == "" {
		problems = append(problems, "generator.command is required for the process provider")
	}
	if c.Timeout < 0 {
		problems = append(problems, "timeout must not be negative")
	}
	if c.Generator.NumCtx < 0 {
		problems = append(problems, "generator.num_ctx must not be negative")
	}
	if c.EnrichBatchSize < 0 || c.EnrichConcurrency < 0 {
		problems = append(problems, "enrichment batch size and concurrency must not be negative")
	}
	if c.Cache.TTL < 0 {
		problems = append(problems, "cache.ttl must not be negative")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// llmConfig maps the generator section onto the llm package.
func (c Config) llmConfig() llm.Config {
	return llm.Config{
		Provider:  c.Generator.Provider,
		Model:     c.Generator.Model,
		BaseURL:   c.Generator.BaseURL,
		APIKey:    c.Generator.APIKey,
		Command:   c.Generator.Command,
		Args:      c.Generator.Args,
		PromptArg: c.Generator.PromptArg,
	}
}

// ResolvePath computes the cache database path.
func (c CacheConfig) ResolvePath() string {
	if c.Path != "" {
		return c.Path
	}
	switch c.StorageDir {
	case "local", "cwd":
		return "cache.db"
	default: // "home" or empty
		home, err := os.UserHomeDir()
		if err != nil {
			return "cache.db"
		}
		return filepath.Join(home, ".goontology", "cache.db")
	}
}
