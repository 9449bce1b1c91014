// Package application loads the pipeline configuration and wires the
// clause risk pipeline together from it.
package application

import (
	"strings"
	"time"

	"github.com/ahrav/go-covenant/infrastructure/llm"
	"github.com/ahrav/go-covenant/internal/analysis"
)

// ConfigVersion is the schema version written by DefaultConfig.
const ConfigVersion = "1.0.0"

// Config is the complete pipeline configuration, usually read from YAML.
type Config struct {
	// Version is the semantic version of the configuration schema.
	Version string `yaml:"version" validate:"required,semver"`

	Analysis AnalysisConfig `yaml:"analysis"`

	// Models is the rotation pool, in order. Each entry is "provider/model";
	// model names may contain further slashes.
	Models []string `yaml:"models" validate:"required,min=1,dive,modelformat"`

	// Regulations replaces the built-in regulation vocabulary when set.
	Regulations []string `yaml:"regulations" validate:"omitempty,dive,required,max=100"`

	// PromptTemplate replaces the built-in batch prompt when set. It is a
	// text/template with .Regulations and .Clauses.
	PromptTemplate string `yaml:"prompt_template"`

	// Providers overrides or extends the built-in provider table, keyed by
	// the provider prefix used in Models.
	Providers map[string]ProviderConfig `yaml:"providers" validate:"dive"`

	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
	Cache          CacheConfig          `yaml:"cache"`
	Budget         BudgetConfig         `yaml:"budget"`
	Store          StoreConfig          `yaml:"store"`
	Report         ReportConfig         `yaml:"report"`
	Notify         NotifyConfig         `yaml:"notify"`
}

// AnalysisConfig tunes batching, retries and model calls.
type AnalysisConfig struct {
	BatchSize int `yaml:"batch_size" validate:"min=1,max=100"`
	// MaxRetries is the number of model attempts per batch.
	MaxRetries int `yaml:"max_retries" validate:"min=1,max=10"`
	// ReconcileRetries is the number of re-submission rounds for records
	// left Unknown. Nil means the default of one; zero disables.
	ReconcileRetries *int    `yaml:"reconcile_retries" validate:"omitempty,min=0,max=3"`
	TimeoutSeconds   int     `yaml:"timeout_seconds" validate:"min=1,max=600"`
	BackoffMS        int     `yaml:"backoff_ms" validate:"min=0,max=60000"`
	MaxTokens        int     `yaml:"max_tokens" validate:"min=1,max=32000"`
	Temperature      float64 `yaml:"temperature" validate:"min=0,max=2"`
	MaxWorkers       int     `yaml:"max_workers" validate:"min=1,max=32"`
	StartID          int     `yaml:"start_id" validate:"min=1"`
}

// ProviderConfig describes one LLM provider.
type ProviderConfig struct {
	// Type selects the client implementation. It defaults to the map key.
	Type         string `yaml:"type" validate:"omitempty,oneof=openai groq anthropic google"`
	APIKeyEnv    string `yaml:"api_key_env"`
	BaseURL      string `yaml:"base_url" validate:"omitempty,url"`
	DefaultModel string `yaml:"default_model"`
	// RequestsPerSecond paces every model of the provider together. Zero
	// disables pacing.
	RequestsPerSecond float64 `yaml:"requests_per_second" validate:"min=0"`
	Burst             int     `yaml:"burst" validate:"min=0"`
}

// CircuitBreakerConfig configures the per-model breaker.
type CircuitBreakerConfig struct {
	MaxFailures     int `yaml:"max_failures" validate:"min=1,max=100"`
	CooldownSeconds int `yaml:"cooldown_seconds" validate:"min=1,max=3600"`
}

// CacheConfig configures the completion cache.
type CacheConfig struct {
	Enabled    bool `yaml:"enabled"`
	Size       int  `yaml:"size" validate:"min=0,max=100000"`
	TTLSeconds int  `yaml:"ttl_seconds" validate:"min=0"`
}

// BudgetConfig caps model usage per run. Zero means unlimited.
type BudgetConfig struct {
	MaxTokens int64 `yaml:"max_tokens" validate:"min=0"`
	MaxCalls  int64 `yaml:"max_calls" validate:"min=0"`
}

// Store kinds.
const (
	StoreNone     = "none"
	StoreCSV      = "csv"
	StorePostgres = "postgres"
)

// StoreConfig selects the tabular sink.
type StoreConfig struct {
	Kind string `yaml:"kind" validate:"oneof=none csv postgres"`
	// Path is the CSV destination.
	Path string `yaml:"path" validate:"required_if=Kind csv"`
	// DSNEnv names the environment variable holding the Postgres DSN.
	DSNEnv string `yaml:"dsn_env"`
	Table  string `yaml:"table" validate:"omitempty,max=63"`
}

// ReportConfig describes the S3-compatible report bucket. Reporting is
// off when Endpoint is empty.
type ReportConfig struct {
	Endpoint        string `yaml:"endpoint"`
	Region          string `yaml:"region"`
	Bucket          string `yaml:"bucket" validate:"required_with=Endpoint"`
	AccessKeyEnv    string `yaml:"access_key_env"`
	SecretKeyEnv    string `yaml:"secret_key_env"`
	UseSSL          bool   `yaml:"use_ssl"`
	LinkExpiryHours int    `yaml:"link_expiry_hours" validate:"min=0,max=168"`
}

// NotifyConfig describes the SMTP relay. Alerts are off when Host is
// empty.
type NotifyConfig struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port" validate:"min=0,max=65535"`
	UsernameEnv string `yaml:"username_env"`
	PasswordEnv string `yaml:"password_env"`
	From        string `yaml:"from" validate:"omitempty,email"`
	To          string `yaml:"to" validate:"omitempty,email"`
}

// Defaults for settings the YAML leaves unset.
const (
	DefaultCircuitMaxFailures = 5
	DefaultCircuitCooldown    = 30
	DefaultCacheSize          = 512
	DefaultCacheTTLSeconds    = 3600
	DefaultDSNEnv             = "DATABASE_URL"
	DefaultAccessKeyEnv       = "S3_ACCESS_KEY"
	DefaultSecretKeyEnv       = "S3_SECRET_KEY"
	DefaultSMTPUserEnv        = "SMTP_USER"
	DefaultSMTPPassEnv        = "SMTP_PASS"
)

// DefaultConfig returns the stock configuration: the Groq model pool in
// rotation order, batches of six, sequential processing and no sinks.
func DefaultConfig() *Config {
	models := make([]string, 0, len(llm.GroqModels))
	for _, m := range llm.GroqModels {
		models = append(models, "groq/"+m)
	}
	cfg := &Config{
		Version: ConfigVersion,
		Models:  models,
	}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills every unset field with its default.
func (c *Config) ApplyDefaults() {
	a := &c.Analysis
	if a.BatchSize == 0 {
		a.BatchSize = analysis.DefaultBatchSize
	}
	if a.MaxRetries == 0 {
		a.MaxRetries = analysis.DefaultMaxRetries
	}
	if a.ReconcileRetries == nil {
		n := analysis.DefaultReconcileRetries
		a.ReconcileRetries = &n
	}
	if a.TimeoutSeconds == 0 {
		a.TimeoutSeconds = int(analysis.DefaultTimeout / time.Second)
	}
	if a.BackoffMS == 0 {
		a.BackoffMS = int(analysis.DefaultBackoff / time.Millisecond)
	}
	if a.MaxTokens == 0 {
		a.MaxTokens = analysis.DefaultMaxTokens
	}
	if a.MaxWorkers == 0 {
		a.MaxWorkers = analysis.DefaultMaxWorkers
	}
	if a.StartID == 0 {
		a.StartID = analysis.DefaultStartID
	}

	if c.CircuitBreaker.MaxFailures == 0 {
		c.CircuitBreaker.MaxFailures = DefaultCircuitMaxFailures
	}
	if c.CircuitBreaker.CooldownSeconds == 0 {
		c.CircuitBreaker.CooldownSeconds = DefaultCircuitCooldown
	}
	if c.Cache.Enabled && c.Cache.Size == 0 {
		c.Cache.Size = DefaultCacheSize
	}
	if c.Cache.Enabled && c.Cache.TTLSeconds == 0 {
		c.Cache.TTLSeconds = DefaultCacheTTLSeconds
	}

	c.Store.Kind = strings.ToLower(strings.TrimSpace(c.Store.Kind))
	if c.Store.Kind == "" {
		c.Store.Kind = StoreNone
	}
	if c.Store.Kind == StorePostgres && c.Store.DSNEnv == "" {
		c.Store.DSNEnv = DefaultDSNEnv
	}

	if c.Report.AccessKeyEnv == "" {
		c.Report.AccessKeyEnv = DefaultAccessKeyEnv
	}
	if c.Report.SecretKeyEnv == "" {
		c.Report.SecretKeyEnv = DefaultSecretKeyEnv
	}

	if c.Notify.UsernameEnv == "" {
		c.Notify.UsernameEnv = DefaultSMTPUserEnv
	}
	if c.Notify.PasswordEnv == "" {
		c.Notify.PasswordEnv = DefaultSMTPPassEnv
	}
}

// Timeout returns the per-call model timeout.
func (a AnalysisConfig) Timeout() time.Duration {
	return time.Duration(a.TimeoutSeconds) * time.Second
}

// Backoff returns the pause between failed attempts.
func (a AnalysisConfig) Backoff() time.Duration {
	return time.Duration(a.BackoffMS) * time.Millisecond
}

// Reconcile returns the configured reconciliation rounds.
func (a AnalysisConfig) Reconcile() int {
	if a.ReconcileRetries == nil {
		return analysis.DefaultReconcileRetries
	}
	return *a.ReconcileRetries
}
