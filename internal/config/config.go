package config

import (
	"errors"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Jina       JinaConfig       `yaml:"jina" mapstructure:"jina"`
	Firecrawl  FirecrawlConfig  `yaml:"firecrawl" mapstructure:"firecrawl"`
	Perplexity PerplexityConfig `yaml:"perplexity" mapstructure:"perplexity"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	OpenAI     OpenAIConfig     `yaml:"openai" mapstructure:"openai"`
	Scrape     ScrapeConfig     `yaml:"scrape" mapstructure:"scrape"`
	Clean      CleanConfig      `yaml:"clean" mapstructure:"clean"`
	Search     SearchConfig     `yaml:"search" mapstructure:"search"`
	LLM        LLMConfig        `yaml:"llm" mapstructure:"llm"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// JinaConfig holds Jina AI Reader and Search settings.
type JinaConfig struct {
	Key           string `yaml:"key" mapstructure:"key"`
	BaseURL       string `yaml:"base_url" mapstructure:"base_url"`
	SearchBaseURL string `yaml:"search_base_url" mapstructure:"search_base_url"`
}

// FirecrawlConfig holds Firecrawl API settings (last-resort scraper).
type FirecrawlConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// PerplexityConfig holds Perplexity API settings.
type PerplexityConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key         string `yaml:"key" mapstructure:"key"`
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	HaikuModel  string `yaml:"haiku_model" mapstructure:"haiku_model"`
	SonnetModel string `yaml:"sonnet_model" mapstructure:"sonnet_model"`
}

// OpenAIConfig holds settings for an OpenAI-compatible endpoint, used for
// image selection and optionally for synthesis.
type OpenAIConfig struct {
	Key         string `yaml:"key" mapstructure:"key"`
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	Model       string `yaml:"model" mapstructure:"model"`
	VisionModel string `yaml:"vision_model" mapstructure:"vision_model"`
}

// ScrapeConfig configures page fetching.
type ScrapeConfig struct {
	TimeoutSecs             int      `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	ExcludePaths            []string `yaml:"exclude_paths" mapstructure:"exclude_paths"`
	MaxContentChars         int      `yaml:"max_content_chars" mapstructure:"max_content_chars"`
	MaxImagesPerPage        int      `yaml:"max_images_per_page" mapstructure:"max_images_per_page"`
	CircuitFailureThreshold int      `yaml:"circuit_failure_threshold" mapstructure:"circuit_failure_threshold"`
	CircuitResetSecs        int      `yaml:"circuit_reset_secs" mapstructure:"circuit_reset_secs"`
}

// CleanConfig configures content cleaning.
type CleanConfig struct {
	MaxChars int `yaml:"max_chars" mapstructure:"max_chars"`
}

// SearchConfig configures source discovery.
type SearchConfig struct {
	Providers []string `yaml:"providers" mapstructure:"providers"`
	Country   string   `yaml:"country" mapstructure:"country"`
}

// LLMConfig configures the language-model collaborators.
type LLMConfig struct {
	Synthesizer           string `yaml:"synthesizer" mapstructure:"synthesizer"`
	MaxImageCandidates    int    `yaml:"max_image_candidates" mapstructure:"max_image_candidates"`
	RetryMaxAttempts      int    `yaml:"retry_max_attempts" mapstructure:"retry_max_attempts"`
	RetryInitialBackoffMs int    `yaml:"retry_initial_backoff_ms" mapstructure:"retry_initial_backoff_ms"`
	RetryMaxBackoffMs     int    `yaml:"retry_max_backoff_ms" mapstructure:"retry_max_backoff_ms"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port                int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins      []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	APIKeys             []string `yaml:"api_keys" mapstructure:"api_keys"`
	RateLimitRPS        float64  `yaml:"rate_limit_rps" mapstructure:"rate_limit_rps"`
	RateLimitBurst      int      `yaml:"rate_limit_burst" mapstructure:"rate_limit_burst"`
	RequestTimeoutSecs  int      `yaml:"request_timeout_secs" mapstructure:"request_timeout_secs"`
	ShutdownTimeoutSecs int      `yaml:"shutdown_timeout_secs" mapstructure:"shutdown_timeout_secs"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Keys without defaults that must still be read from the environment.
var envOnlyKeys = []string{
	"jina.key",
	"firecrawl.key",
	"perplexity.key",
	"anthropic.key",
	"anthropic.base_url",
	"openai.key",
	"openai.base_url",
	"server.api_keys",
}

// Load reads configuration from an optional .env file, an optional
// config.yaml and PRODUCT_-prefixed environment variables, in increasing
// order of precedence.
func Load() (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PRODUCT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range envOnlyKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, eris.Wrapf(err, "config: bind env %s", key)
		}
	}

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.rate_limit_rps", 1.0)
	v.SetDefault("server.rate_limit_burst", 5)
	v.SetDefault("server.request_timeout_secs", 180)
	v.SetDefault("server.shutdown_timeout_secs", 30)
	v.SetDefault("jina.base_url", "https://r.jina.ai")
	v.SetDefault("jina.search_base_url", "https://s.jina.ai")
	v.SetDefault("firecrawl.base_url", "https://api.firecrawl.dev/v2")
	v.SetDefault("perplexity.base_url", "https://api.perplexity.ai")
	v.SetDefault("perplexity.model", "sonar")
	v.SetDefault("anthropic.haiku_model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.sonnet_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("openai.vision_model", "gpt-4o-mini")
	v.SetDefault("scrape.timeout_secs", 20)
	v.SetDefault("scrape.exclude_paths", []string{"/login/*", "/signin/*", "/account/*", "/cart/*", "/checkout/*", "/*.pdf"})
	v.SetDefault("scrape.max_content_chars", 20000)
	v.SetDefault("scrape.max_images_per_page", 10)
	v.SetDefault("scrape.circuit_failure_threshold", 5)
	v.SetDefault("scrape.circuit_reset_secs", 60)
	v.SetDefault("clean.max_chars", 60000)
	v.SetDefault("search.providers", []string{"jina", "perplexity"})
	v.SetDefault("search.country", "us")
	v.SetDefault("llm.synthesizer", "anthropic")
	v.SetDefault("llm.max_image_candidates", 12)
	v.SetDefault("llm.retry_max_attempts", 3)
	v.SetDefault("llm.retry_initial_backoff_ms", 500)
	v.SetDefault("llm.retry_max_backoff_ms", 10000)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// loadDotEnv exports the variables of path into the process environment
// without overriding variables that are already set. A missing file is not
// an error.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return eris.Wrapf(err, "config: load %s", path)
	}
	return nil
}

// Validate checks that the settings required by mode are present. Modes
// are "serve" and "run".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "serve":
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
		if c.Server.RateLimitRPS < 0 {
			errs = append(errs, "server.rate_limit_rps must be >= 0")
		}
		if c.Server.RateLimitRPS > 0 && c.Server.RateLimitBurst < 1 {
			errs = append(errs, "server.rate_limit_burst must be >= 1 when rate limiting is enabled")
		}
		if c.Server.RequestTimeoutSecs <= 0 {
			errs = append(errs, "server.request_timeout_secs must be > 0")
		}
		errs = append(errs, c.pipelineErrors()...)
	case "run":
		errs = append(errs, c.pipelineErrors()...)
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) pipelineErrors() []string {
	var errs []string

	if c.Anthropic.Key == "" {
		errs = append(errs, "anthropic.key is required")
	}

	switch c.LLM.Synthesizer {
	case "anthropic":
	case "openai":
		if c.OpenAI.Key == "" {
			errs = append(errs, "openai.key is required when llm.synthesizer is openai")
		}
	default:
		errs = append(errs, `llm.synthesizer must be "anthropic" or "openai"`)
	}

	if len(c.Search.Providers) == 0 {
		errs = append(errs, "search.providers must list at least one provider")
	}
	for _, p := range c.Search.Providers {
		switch p {
		case "jina":
			if c.Jina.Key == "" {
				errs = append(errs, "jina.key is required for the jina search provider")
			}
		case "perplexity":
			if c.Perplexity.Key == "" {
				errs = append(errs, "perplexity.key is required for the perplexity search provider")
			}
		default:
			errs = append(errs, "unknown search provider "+p)
		}
	}

	if c.Scrape.MaxContentChars < 0 || c.Clean.MaxChars < 0 {
		errs = append(errs, "scrape.max_content_chars and clean.max_chars must be >= 0")
	}
	if c.LLM.MaxImageCandidates < 0 {
		errs = append(errs, "llm.max_image_candidates must be >= 0")
	}
	return errs
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
