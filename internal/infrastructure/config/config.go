package config

import (
	"fmt"
	"math"

	"github.com/spf13/viper"

	"github.com/guardgate/guardgate/gateway/internal/domain/entity"
	apperrors "github.com/guardgate/guardgate/gateway/pkg/errors"
)

// SecurityTier is the coarse policy dial selecting how many injection
// pattern categories apply. Closed set.
type SecurityTier string

const (
	TierStrict     SecurityTier = "STRICT"
	TierModerate   SecurityTier = "MODERATE"
	TierPermissive SecurityTier = "PERMISSIVE"
)

// Valid reports whether t is a known tier.
func (t SecurityTier) Valid() bool {
	switch t {
	case TierStrict, TierModerate, TierPermissive:
		return true
	}
	return false
}

// AgnosticSettings are the provider-independent policy knobs.
type AgnosticSettings struct {
	RedactPII            bool              `mapstructure:"redact_pii" json:"redact_pii"`
	MaxTokenSpendPerCall float64           `mapstructure:"max_token_spend_per_call" json:"max_token_spend_per_call"`
	AllowedProviders     []entity.Provider `mapstructure:"allowed_providers" json:"allowed_providers"`
}

// Allows reports whether the provider tag is on the allow-list.
func (s AgnosticSettings) Allows(p entity.Provider) bool {
	for _, allowed := range s.AllowedProviders {
		if allowed == p {
			return true
		}
	}
	return false
}

// SafetyHooks are free-form labels recorded in the audit trail. They carry
// no behavior.
type SafetyHooks struct {
	PreFlight  []string `mapstructure:"pre_flight" json:"pre_flight"`
	PostFlight []string `mapstructure:"post_flight" json:"post_flight"`
}

// PolicyConfig is the per-project guardrail policy. Loaded once at startup
// and treated as frozen afterwards; no interceptor mutates it.
type PolicyConfig struct {
	ProjectName         string           `mapstructure:"project_name" json:"project_name"`
	SecurityTier        SecurityTier     `mapstructure:"security_tier" json:"security_tier"`
	SchemaVersion       int              `mapstructure:"schema_version" json:"schema_version"`
	AgnosticSettings    AgnosticSettings `mapstructure:"agnostic_settings" json:"agnostic_settings"`
	SafetyHooks         SafetyHooks      `mapstructure:"safety_hooks" json:"safety_hooks"`
	DependencyWhitelist []string         `mapstructure:"dependency_whitelist" json:"dependency_whitelist"`
}

// Load reads and validates a JSON policy file. Any deviation from the
// schema returns a CONFIG_ERROR naming the offending field.
func Load(path string) (*PolicyConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")

	if err := v.ReadInConfig(); err != nil {
		return nil, &apperrors.AppError{
			Code:    apperrors.CodeConfigError,
			Message: fmt.Sprintf("failed to read policy file %s", path),
			Err:     err,
		}
	}

	var cfg PolicyConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, &apperrors.AppError{
			Code:    apperrors.CodeConfigError,
			Message: "failed to decode policy file",
			Err:     err,
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the policy against the schema contract.
func (c *PolicyConfig) Validate() error {
	if c.ProjectName == "" {
		return apperrors.NewConfigError("project_name", "project_name must be a non-empty string")
	}
	if !c.SecurityTier.Valid() {
		return apperrors.NewConfigError("security_tier",
			fmt.Sprintf("security_tier must be one of STRICT, MODERATE, PERMISSIVE (got %q)", c.SecurityTier))
	}
	if c.SchemaVersion != entity.SchemaVersion {
		return apperrors.NewConfigError("schema_version",
			fmt.Sprintf("schema_version must equal %d (got %d)", entity.SchemaVersion, c.SchemaVersion))
	}
	if c.AgnosticSettings.MaxTokenSpendPerCall < 0 ||
		math.IsNaN(c.AgnosticSettings.MaxTokenSpendPerCall) ||
		math.IsInf(c.AgnosticSettings.MaxTokenSpendPerCall, 0) {
		return apperrors.NewConfigError("agnostic_settings.max_token_spend_per_call",
			"max_token_spend_per_call must be a finite non-negative number")
	}
	if len(c.AgnosticSettings.AllowedProviders) == 0 {
		return apperrors.NewConfigError("agnostic_settings.allowed_providers",
			"allowed_providers must be a non-empty array")
	}
	for _, p := range c.AgnosticSettings.AllowedProviders {
		if !p.Valid() {
			return apperrors.NewConfigError("agnostic_settings.allowed_providers",
				fmt.Sprintf("unknown provider tag %q", p))
		}
	}
	return nil
}
