// Package config defines the process-wide configuration for the entitlement
// engine and the sandbox billing server. Configuration is loaded once at
// startup and is immutable thereafter, following 12-Factor principles.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File -> Struct Defaults (Lowest)
//
// Any missing required value or invalid format causes startup to fail
// immediately (fail fast).
package config

import (
	"time"

	"github.com/daconrilcy/horoscope-front-sub002/internal/types"
)

// Config is the top-level configuration struct. It is populated once during
// process initialization and never modified. Sub-components receive only the
// specific config subsets they require.
type Config struct {
	// System metadata.
	Environment string `envconfig:"APP_ENV" default:"local" validate:"required,oneof=local dev staging prod"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	Engine  EngineConfig
	Sandbox SandboxConfig
}

// EngineConfig holds the settings for the entitlement client and its
// decision cache.
type EngineConfig struct {
	// Base URL for the entitlement/billing API (no trailing slash).
	APIBaseURL string `envconfig:"API_BASE_URL" default:"http://localhost:8090" validate:"required,url"`

	// HTTPTimeout bounds each outbound request.
	HTTPTimeout time.Duration `envconfig:"HTTP_TIMEOUT" default:"10s"`

	// DecisionStaleAfter is the age beyond which a cached decision is
	// re-fetched in the background.
	DecisionStaleAfter time.Duration `envconfig:"DECISION_STALE_AFTER" default:"5s"`

	// DecisionGCAfter is the age beyond which an unused cache entry is
	// eligible for eviction.
	DecisionGCAfter time.Duration `envconfig:"DECISION_GC_AFTER" default:"60s"`
}

// SandboxConfig holds the settings for the local sandbox billing server.
type SandboxConfig struct {
	Addr        string `envconfig:"SANDBOX_ADDR" default:":8090"`
	DefaultPlan string `envconfig:"SANDBOX_DEFAULT_PLAN" default:"free" validate:"oneof=free plus pro"`
	UpgradeURL  string `envconfig:"SANDBOX_UPGRADE_URL" default:"https://billing.example.com/upgrade" validate:"url"`
}

// DefaultPlanTier returns the sandbox default plan as a typed tier.
func (c SandboxConfig) DefaultPlanTier() types.PlanTier {
	return types.PlanTier(c.DefaultPlan)
}
