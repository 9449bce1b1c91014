package application

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-covenant/infrastructure/llm"
	"github.com/ahrav/go-covenant/internal/analysis"
	"github.com/ahrav/go-covenant/internal/clause"
	"github.com/ahrav/go-covenant/internal/domain"
)

// ConfigLoader parses, defaults and validates pipeline configuration.
type ConfigLoader struct {
	validator *validator.Validate
}

// NewConfigLoader returns a loader with the custom validation tags
// registered.
func NewConfigLoader() (*ConfigLoader, error) {
	v := validator.New()
	if err := registerCustomValidators(v); err != nil {
		return nil, fmt.Errorf("failed to register validators: %w", err)
	}
	return &ConfigLoader{validator: v}, nil
}

// LoadFromFile reads the YAML configuration at path.
func (cl *ConfigLoader) LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return cl.Load(data)
}

// LoadFromReader reads YAML configuration from r.
func (cl *ConfigLoader) LoadFromReader(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read data: %w", err)
	}
	return cl.Load(data)
}

// Load decodes data strictly, so unknown keys are errors, then applies
// defaults and validates the result.
func (cl *ConfigLoader) Load(data []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty configuration", domain.ErrInvalidConfiguration)
		}
		return nil, fmt.Errorf("YAML decode failed: %w", err)
	}

	cfg.ApplyDefaults()
	if err := cl.Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate runs struct-tag validation followed by the cross-field rules.
// Field failures are collected into a *domain.ValidationError.
func (cl *ConfigLoader) Validate(cfg *Config) error {
	verr := domain.NewValidationError("config")

	if err := cl.validator.Struct(cfg); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return fmt.Errorf("struct validation failed: %w", err)
		}
		for _, fe := range fieldErrs {
			verr.AddError(fmt.Sprintf("%s failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
		}
	}

	validateSemantics(cfg, verr)

	if verr.HasErrors() {
		return verr
	}
	return nil
}

// validateSemantics checks rules that struct tags cannot express.
func validateSemantics(cfg *Config, verr *domain.ValidationError) {
	providers := providerTable(cfg)
	missingKey := make(map[string]bool)
	for i, spec := range cfg.Models {
		provider, _, _ := strings.Cut(spec, "/")
		pc, ok := providers[provider]
		if !ok {
			verr.AddError(fmt.Sprintf("models[%d]: unknown provider %q", i, provider))
			continue
		}
		if pc.EnvVar == "" && !missingKey[provider] {
			missingKey[provider] = true
			verr.AddError(fmt.Sprintf("providers.%s: api_key_env is required", provider))
		}
	}

	if cfg.PromptTemplate != "" {
		if _, err := analysis.NewPromptBuilder(cfg.PromptTemplate, clause.NewRegulationMatcher(cfg.Regulations)); err != nil {
			verr.AddError(fmt.Sprintf("prompt_template: %v", err))
		}
	}

	if cfg.Report.Endpoint != "" && (cfg.Report.AccessKeyEnv == "" || cfg.Report.SecretKeyEnv == "") {
		verr.AddError("report: access_key_env and secret_key_env are required with endpoint")
	}
}

// providerTable merges the configured providers over llm.DefaultProviders.
func providerTable(cfg *Config) map[string]llm.ProviderConfig {
	table := make(map[string]llm.ProviderConfig, len(llm.DefaultProviders)+len(cfg.Providers))
	for name, pc := range llm.DefaultProviders {
		table[name] = pc
	}

	for name, p := range cfg.Providers {
		pc := table[name]
		if p.Type != "" {
			pc.Type = p.Type
		}
		if pc.Type == "" {
			pc.Type = name
		}
		if p.APIKeyEnv != "" {
			pc.EnvVar = p.APIKeyEnv
		}
		if p.BaseURL != "" {
			pc.BaseURL = p.BaseURL
		}
		if p.DefaultModel != "" {
			pc.DefaultModel = p.DefaultModel
		}
		table[name] = pc
	}
	return table
}
