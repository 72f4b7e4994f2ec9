// Package config provides configuration management for the paper digest service.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/helixir/paper-digest-service/internal/domain"
	"github.com/helixir/paper-digest-service/internal/retry"
)

// EnvPrefix is the prefix of every environment variable the service reads.
const EnvPrefix = "DIGEST"

// SSL mode constants for database connections.
const (
	// SSLModeDisable disables SSL (use only for local development).
	SSLModeDisable = "disable"
	// SSLModeRequire requires SSL but does not verify certificates.
	SSLModeRequire = "require"
	// SSLModeVerifyCA verifies the server certificate against a CA.
	SSLModeVerifyCA = "verify-ca"
	// SSLModeVerifyFull verifies the server certificate and hostname.
	SSLModeVerifyFull = "verify-full"
)

// Archive drivers.
const (
	ArchiveNone     = "none"
	ArchiveSQLite   = "sqlite"
	ArchivePostgres = "postgres"
)

// Config holds all configuration for the paper digest service.
type Config struct {
	// Server contains HTTP server settings.
	Server ServerConfig `mapstructure:"server"`
	// Database contains PostgreSQL connection settings for the report archive.
	Database DatabaseConfig `mapstructure:"database"`
	// Archive selects where finished reports are stored.
	Archive ArchiveConfig `mapstructure:"archive"`
	// Logging contains structured logging settings.
	Logging LoggingConfig `mapstructure:"logging"`
	// Metrics contains Prometheus metrics exposure settings.
	Metrics MetricsConfig `mapstructure:"metrics"`
	// LLM contains language-model client settings.
	LLM LLMConfig `mapstructure:"llm"`
	// Retry is the policy applied to every remote call.
	Retry RetryConfig `mapstructure:"retry"`
	// ArXiv contains bibliographic and content service settings.
	ArXiv ArXivConfig `mapstructure:"arxiv"`
	// Chunker contains text chunking settings.
	Chunker ChunkerConfig `mapstructure:"chunker"`
	// Summarizer contains summarization engine settings.
	Summarizer SummarizerConfig `mapstructure:"summarizer"`
	// Kafka contains event publisher settings.
	Kafka KafkaConfig `mapstructure:"kafka"`
	// Scheduler contains the watch list runner settings.
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	HTTPPort        int           `mapstructure:"http_port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// RequestTimeout bounds a synchronous summarization request.
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	User string `mapstructure:"user"`
	// Password is loaded from DIGEST_DATABASE_PASSWORD only.
	Password string `mapstructure:"-"`
	Name     string `mapstructure:"name"`
	// SSLMode controls SSL connection security (require, verify-ca, verify-full, disable).
	SSLMode           string        `mapstructure:"ssl_mode"`
	MaxConns          int32         `mapstructure:"max_conns"`
	MinConns          int32         `mapstructure:"min_conns"`
	MaxConnLifetime   time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   time.Duration `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
	ConnectTimeout    time.Duration `mapstructure:"connect_timeout"`
	// ConnectAttempts bounds the startup pings before giving up.
	ConnectAttempts int `mapstructure:"connect_attempts"`
	// MigrationPath overrides the embedded migrations with a directory
	// (relative or absolute). Empty uses the embedded set.
	MigrationPath string `mapstructure:"migration_path"`
	// MigrationAutoRun enables automatic migration on startup.
	MigrationAutoRun bool `mapstructure:"migration_auto_run"`
}

// ArchiveConfig selects the report archive backend.
type ArchiveConfig struct {
	// Driver is one of none, sqlite, postgres.
	Driver string `mapstructure:"driver"`
	// SQLitePath is the database file used by the sqlite driver.
	SQLitePath string `mapstructure:"sqlite_path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level (trace, debug, info, warn, error, fatal, panic).
	Level string `mapstructure:"level"`
	// Format is the log format (json, console).
	Format string `mapstructure:"format"`
	// Output is the log output destination (stdout, stderr).
	Output     string `mapstructure:"output"`
	AddSource  bool   `mapstructure:"add_source"`
	TimeFormat string `mapstructure:"time_format"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Path      string `mapstructure:"path"`
	Namespace string `mapstructure:"namespace"`
}

// LLMConfig holds language-model client configuration.
type LLMConfig struct {
	// Provider is the LLM provider (anthropic, openai).
	Provider string `mapstructure:"provider"`
	// Timeout bounds a single LLM call.
	Timeout time.Duration `mapstructure:"timeout"`
	// Temperature is the sampling temperature.
	Temperature float64 `mapstructure:"temperature"`
	// RateLimitRPS is the process-wide request rate shared by all calls.
	RateLimitRPS float64 `mapstructure:"rate_limit_rps"`
	// RateLimitBurst is the burst size for the rate limiter.
	RateLimitBurst int `mapstructure:"rate_limit_burst"`
	// OpenAI contains OpenAI-specific settings.
	OpenAI ProviderConfig `mapstructure:"openai"`
	// Anthropic contains Anthropic-specific settings.
	Anthropic ProviderConfig `mapstructure:"anthropic"`
}

// ProviderConfig holds settings for one LLM provider.
type ProviderConfig struct {
	// APIKey is loaded from the environment only.
	APIKey  string `mapstructure:"-"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"`
}

// RetryConfig mirrors retry.Policy for configuration files.
type RetryConfig struct {
	MaxAttempts    int           `mapstructure:"max_attempts"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
	Multiplier     float64       `mapstructure:"multiplier"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff"`
	Jitter         float64       `mapstructure:"jitter"`
}

// ArXivConfig holds settings for the arXiv services.
type ArXivConfig struct {
	// APIBaseURL is the Atom query API root.
	APIBaseURL string `mapstructure:"api_base_url"`
	// PDFBaseURL is the root the PDF path is appended to.
	PDFBaseURL string `mapstructure:"pdf_base_url"`
	// HTMLBaseURL is the root of the HTML rendition, used as fallback.
	HTMLBaseURL string        `mapstructure:"html_base_url"`
	Timeout     time.Duration `mapstructure:"timeout"`
	// RateLimit is requests per second against the metadata API.
	RateLimit float64 `mapstructure:"rate_limit"`
	// ContentRateLimit is requests per second against PDF and HTML hosts.
	ContentRateLimit float64 `mapstructure:"content_rate_limit"`
	UserAgent        string  `mapstructure:"user_agent"`
	// MaxPDFSize caps downloads in bytes.
	MaxPDFSize int64 `mapstructure:"max_pdf_size"`
	// HTMLFallback enables the HTML rendition when PDF text is unusable.
	HTMLFallback bool `mapstructure:"html_fallback"`
	// MinTextRunes is the shortest extracted text treated as usable.
	MinTextRunes int `mapstructure:"min_text_runes"`
	// DetectLanguage enables source language detection.
	DetectLanguage bool `mapstructure:"detect_language"`
}

// ChunkerConfig holds text chunking settings.
type ChunkerConfig struct {
	// MaxTokens is the per-chunk token budget.
	MaxTokens int `mapstructure:"max_tokens"`
	// Counter selects the token estimator (auto, heuristic, words, tiktoken).
	// Auto uses tiktoken for OpenAI models and the heuristic otherwise.
	Counter string `mapstructure:"counter"`
	// Encoding is the tiktoken BPE (o200k_base, cl100k_base).
	Encoding string `mapstructure:"encoding"`
}

// SummarizerConfig holds summarization engine settings.
type SummarizerConfig struct {
	// MaxConcurrency bounds in-flight chunk summarization calls.
	MaxConcurrency int `mapstructure:"max_concurrency"`
	// ChunkMaxTokens bounds the output of a chunk summary call.
	ChunkMaxTokens int `mapstructure:"chunk_max_tokens"`
	// ConsolidateMaxTokens bounds the output of a consolidation call.
	ConsolidateMaxTokens int `mapstructure:"consolidate_max_tokens"`
	// PolishSingle sends a single partial summary through a polishing call.
	PolishSingle bool `mapstructure:"polish_single"`
	// MaxQuotes caps the verbatim quotes kept in a detailed report.
	MaxQuotes       int    `mapstructure:"max_quotes"`
	DefaultMode     string `mapstructure:"default_mode"`
	DefaultLanguage string `mapstructure:"default_language"`
}

// KafkaConfig holds event publisher settings.
type KafkaConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Brokers      []string      `mapstructure:"brokers"`
	Topic        string        `mapstructure:"topic"`
	BatchSize    int           `mapstructure:"batch_size"`
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
	// RequestTopic carries summarization requests consumed by the worker.
	RequestTopic string `mapstructure:"request_topic"`
	// GroupID is the consumer group of the worker.
	GroupID string `mapstructure:"group_id"`
}

// SchedulerConfig holds the watch list runner settings.
type SchedulerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Cron is a standard five-field cron expression.
	Cron  string      `mapstructure:"cron"`
	Watch []WatchItem `mapstructure:"watch"`
	// OutputDir receives rendered reports; empty disables file output.
	OutputDir string `mapstructure:"output_dir"`
	// Format is the rendering format for OutputDir (markdown, json, yaml).
	Format string `mapstructure:"format"`
}

// WatchItem is one scheduled paper, given either by reference or by its
// exact title in Query.
type WatchItem struct {
	Reference string `mapstructure:"reference"`
	Query     string `mapstructure:"query"`
	Mode      string `mapstructure:"mode"`
	Language  string `mapstructure:"language"`
}

// Label names the item in logs and outcomes.
func (w WatchItem) Label() string {
	if w.Reference != "" {
		return w.Reference
	}
	return w.Query
}

// DSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) DSN() string {
	params := url.Values{}
	params.Set("sslmode", c.SSLMode)
	if c.ConnectTimeout > 0 {
		params.Set("connect_timeout", fmt.Sprintf("%d", int(c.ConnectTimeout.Seconds())))
	}

	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?%s",
		url.QueryEscape(c.User),
		url.QueryEscape(c.Password),
		c.Host,
		c.Port,
		c.Name,
		params.Encode(),
	)
}

// HTTPAddress returns the HTTP server address.
func (c *ServerConfig) HTTPAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.HTTPPort)
}

// Policy converts the configuration into a retry policy.
func (c RetryConfig) Policy() retry.Policy {
	return retry.Policy{
		MaxAttempts:    c.MaxAttempts,
		InitialBackoff: c.InitialBackoff,
		Multiplier:     c.Multiplier,
		MaxBackoff:     c.MaxBackoff,
		Jitter:         c.Jitter,
	}
}

// ActiveProvider returns the settings of the selected LLM provider.
func (c *LLMConfig) ActiveProvider() ProviderConfig {
	if strings.EqualFold(c.Provider, "openai") {
		return c.OpenAI
	}
	return c.Anthropic
}

// Load loads configuration from environment variables and config files.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile is Load with an explicit config file. An empty path searches the
// default locations.
func LoadFile(path string) (*Config, error) {
	return load(path, false)
}

// LoadFileWithoutLLM is LoadFile for commands that never call the language
// model, such as archive browsing. Provider credentials are not required.
func LoadFileWithoutLLM(path string) (*Config, error) {
	return load(path, true)
}

func load(path string, skipLLM bool) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/paper-digest")

		if err := v.ReadInConfig(); err != nil {
			var configNotFound viper.ConfigFileNotFoundError
			if !errors.As(err, &configNotFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
			// Config file not found is OK, env vars and defaults apply.
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	loadSecrets(&cfg)

	validate := cfg.Validate
	if skipLLM {
		validate = cfg.validateBase
	}
	if err := validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadSecrets populates secret fields exclusively from environment variables.
func loadSecrets(cfg *Config) {
	cfg.LLM.OpenAI.APIKey = os.Getenv(EnvPrefix + "_LLM_OPENAI_API_KEY")
	cfg.LLM.Anthropic.APIKey = os.Getenv(EnvPrefix + "_LLM_ANTHROPIC_API_KEY")
	cfg.Database.Password = os.Getenv(EnvPrefix + "_DATABASE_PASSWORD")
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "10m")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.request_timeout", "10m")

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "digest")
	v.SetDefault("database.name", "paper_digest")
	v.SetDefault("database.ssl_mode", SSLModeRequire)
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")
	v.SetDefault("database.health_check_period", "30s")
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.connect_attempts", 5)
	v.SetDefault("database.migration_path", "")
	v.SetDefault("database.migration_auto_run", false)

	// Archive defaults
	v.SetDefault("archive.driver", ArchiveSQLite)
	v.SetDefault("archive.sqlite_path", "paper_digest.db")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("metrics.namespace", "paper_digest")

	// LLM defaults. API keys come from the environment (see loadSecrets).
	v.SetDefault("llm.provider", "anthropic")
	v.SetDefault("llm.timeout", "120s")
	v.SetDefault("llm.temperature", 0.2)
	v.SetDefault("llm.rate_limit_rps", 2.0)
	v.SetDefault("llm.rate_limit_burst", 4)
	v.SetDefault("llm.openai.model", "gpt-4o-mini")
	v.SetDefault("llm.openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.anthropic.model", "claude-3-5-sonnet-20241022")
	v.SetDefault("llm.anthropic.base_url", "https://api.anthropic.com")

	// Retry defaults
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff", "1s")
	v.SetDefault("retry.multiplier", 2.0)
	v.SetDefault("retry.max_backoff", "30s")
	v.SetDefault("retry.jitter", 0.2)

	// arXiv defaults
	v.SetDefault("arxiv.api_base_url", "https://export.arxiv.org/api")
	v.SetDefault("arxiv.pdf_base_url", "https://arxiv.org/pdf")
	v.SetDefault("arxiv.html_base_url", "https://arxiv.org/html")
	v.SetDefault("arxiv.timeout", "60s")
	v.SetDefault("arxiv.rate_limit", 3.0) // arXiv asks for at most 3 req/sec
	v.SetDefault("arxiv.content_rate_limit", 1.0)
	v.SetDefault("arxiv.user_agent", "paper-digest/1.0")
	v.SetDefault("arxiv.max_pdf_size", 50*1024*1024)
	v.SetDefault("arxiv.html_fallback", true)
	v.SetDefault("arxiv.min_text_runes", 200)
	v.SetDefault("arxiv.detect_language", true)

	// Chunker defaults
	v.SetDefault("chunker.max_tokens", 3000)
	v.SetDefault("chunker.counter", "auto")
	v.SetDefault("chunker.encoding", "o200k_base")

	// Summarizer defaults
	v.SetDefault("summarizer.max_concurrency", 4)
	v.SetDefault("summarizer.chunk_max_tokens", 1024)
	v.SetDefault("summarizer.consolidate_max_tokens", 4096)
	v.SetDefault("summarizer.polish_single", false)
	v.SetDefault("summarizer.max_quotes", 6)
	v.SetDefault("summarizer.default_mode", string(domain.ModeSimple))
	v.SetDefault("summarizer.default_language", string(domain.LanguageEnglish))

	// Kafka defaults
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "events.paper_digest.reports")
	v.SetDefault("kafka.batch_size", 100)
	v.SetDefault("kafka.batch_timeout", "10ms")
	v.SetDefault("kafka.request_topic", "events.paper_digest.requests")
	v.SetDefault("kafka.group_id", "paper-digest-worker")

	// Scheduler defaults
	v.SetDefault("scheduler.enabled", false)
	v.SetDefault("scheduler.cron", "0 6 * * *")
	v.SetDefault("scheduler.format", "markdown")
	v.SetDefault("scheduler.output_dir", "")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.validateBase(); err != nil {
		return err
	}
	return c.validateLLM()
}

func (c *Config) validateBase() error {
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.Server.HTTPPort)
	}

	validLogLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	switch c.Archive.Driver {
	case ArchiveNone:
	case ArchiveSQLite:
		if c.Archive.SQLitePath == "" {
			return fmt.Errorf("archive sqlite_path is required for the sqlite driver")
		}
	case ArchivePostgres:
		if c.Database.Host == "" || c.Database.Name == "" {
			return fmt.Errorf("database host and name are required for the postgres archive")
		}
		if c.Database.MaxConns < c.Database.MinConns {
			return fmt.Errorf("max_conns (%d) must be >= min_conns (%d)", c.Database.MaxConns, c.Database.MinConns)
		}
	default:
		return fmt.Errorf("invalid archive driver: %q", c.Archive.Driver)
	}

	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry max_attempts must be at least 1")
	}
	if c.Retry.Jitter < 0 || c.Retry.Jitter > 1 {
		return fmt.Errorf("retry jitter must be between 0 and 1")
	}

	if c.Chunker.MaxTokens <= 0 {
		return fmt.Errorf("chunker max_tokens must be positive")
	}
	switch c.Chunker.Counter {
	case "auto", "heuristic", "words", "tiktoken":
	default:
		return fmt.Errorf("invalid chunker counter: %q", c.Chunker.Counter)
	}
	switch c.Chunker.Encoding {
	case "o200k_base", "cl100k_base":
	default:
		return fmt.Errorf("invalid chunker encoding: %q", c.Chunker.Encoding)
	}

	if c.Summarizer.MaxConcurrency < 1 {
		return fmt.Errorf("summarizer max_concurrency must be at least 1")
	}
	if c.Summarizer.MaxQuotes < 1 {
		return fmt.Errorf("summarizer max_quotes must be at least 1")
	}
	if _, err := domain.ParseMode(c.Summarizer.DefaultMode); err != nil {
		return err
	}
	if _, err := domain.ParseLanguage(c.Summarizer.DefaultLanguage); err != nil {
		return err
	}

	if c.Kafka.Enabled && (len(c.Kafka.Brokers) == 0 || c.Kafka.Topic == "") {
		return fmt.Errorf("kafka brokers and topic are required when kafka is enabled")
	}

	for i, w := range c.Scheduler.Watch {
		hasRef, hasQuery := strings.TrimSpace(w.Reference) != "", strings.TrimSpace(w.Query) != ""
		if hasRef == hasQuery {
			return fmt.Errorf("scheduler watch[%d]: exactly one of reference or query is required", i)
		}
	}

	return nil
}

// validateLLM requires the configured provider's API key.
func (c *Config) validateLLM() error {
	switch strings.ToLower(c.LLM.Provider) {
	case "openai":
		if c.LLM.OpenAI.APIKey == "" {
			return fmt.Errorf("LLM provider %q requires %s_LLM_OPENAI_API_KEY to be set", c.LLM.Provider, EnvPrefix)
		}
	case "anthropic":
		if c.LLM.Anthropic.APIKey == "" {
			return fmt.Errorf("LLM provider %q requires %s_LLM_ANTHROPIC_API_KEY to be set", c.LLM.Provider, EnvPrefix)
		}
	default:
		return fmt.Errorf("unsupported LLM provider: %q", c.LLM.Provider)
	}

	return nil
}
