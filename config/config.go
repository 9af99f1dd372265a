// Package config loads the daemon's YAML configuration, following the
// Duration-wrapper and defaults/validate shape of the teacher's
// services/payoutd/config.go.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"liminal/risk"
)

// Duration wraps time.Duration so it can be expressed as a string like
// "500ms" in YAML, matching the teacher's config.Duration.
type Duration struct {
	time.Duration
}

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("config: invalid duration %q: %w", raw, err)
	}
	d.Duration = parsed
	return nil
}

// AdminConfig configures the kill-switch/policy HTTP admin surface.
type AdminConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	Token   string `yaml:"token"`
}

// TelemetryConfig configures OpenTelemetry export.
type TelemetryConfig struct {
	Endpoint string `yaml:"endpoint"`
	Insecure bool   `yaml:"insecure"`
	Headers  string `yaml:"headers"`
	Metrics  bool   `yaml:"metrics"`
	Traces   bool   `yaml:"traces"`
}

// RiskWeightsConfig mirrors risk.Weights for YAML overrides.
type RiskWeightsConfig struct {
	OriginTrustScale        *float64 `yaml:"originTrustScale"`
	OriginTrustLowPenalty   *float64 `yaml:"originTrustLowPenalty"`
	ContextRiskLow          *float64 `yaml:"contextRiskLow"`
	ContextRiskHigh         *float64 `yaml:"contextRiskHigh"`
	AmountScale             *float64 `yaml:"amountScale"`
	KnownDestinationBonus   *float64 `yaml:"knownDestinationBonus"`
	InstructionCountPenalty *float64 `yaml:"instructionCountPenalty"`
	TxTypeUnknownPenalty    *float64 `yaml:"txTypeUnknownPenalty"`
	TxTypeApprovalPenalty   *float64 `yaml:"txTypeApprovalPenalty"`
	TxTypeSwapPenalty       *float64 `yaml:"txTypeSwapPenalty"`
}

// Config is the top-level daemon configuration.
type Config struct {
	Service string `yaml:"service"`
	Env     string `yaml:"env"`

	HTTPAddr        string          `yaml:"httpAddr"`
	ReadTimeout     Duration        `yaml:"readTimeout"`
	WriteTimeout    Duration        `yaml:"writeTimeout"`
	IdleTimeout     Duration        `yaml:"idleTimeout"`

	Admin     AdminConfig     `yaml:"admin"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Risk      RiskWeightsConfig `yaml:"risk"`

	PersistPath       string `yaml:"persistPath"`
	AuditLogPath      string `yaml:"auditLogPath"`
	AuditLogMaxSizeMB int    `yaml:"auditLogMaxSizeMB"`

	// RiskWeightsFile points at an operator-editable TOML weight table
	// (risk.LoadWeightsFile). When set it takes precedence over the inline
	// Risk overrides above.
	RiskWeightsFile string `yaml:"riskWeightsFile"`

	PrivateRailEnabled bool  `yaml:"privateRailEnabled"`
	SubmissionEnabled  *bool `yaml:"submissionEnabled"`
}

// SubmissionEnabledOrDefault reports the configured submission policy bit,
// defaulting to true (the conservative "allow unless explicitly disabled"
// stance gate.NewPolicyBits also takes) when the field was left unset.
func (c *Config) SubmissionEnabledOrDefault() bool {
	if c.SubmissionEnabled == nil {
		return true
	}
	return *c.SubmissionEnabled
}

// Load reads and validates the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Service == "" {
		cfg.Service = "liminald"
	}
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}
	if cfg.ReadTimeout.Duration == 0 {
		cfg.ReadTimeout.Duration = 5 * time.Second
	}
	if cfg.WriteTimeout.Duration == 0 {
		cfg.WriteTimeout.Duration = 10 * time.Second
	}
	if cfg.IdleTimeout.Duration == 0 {
		cfg.IdleTimeout.Duration = 60 * time.Second
	}
	if cfg.Admin.Addr == "" {
		cfg.Admin.Addr = ":8081"
	}
	if cfg.AuditLogMaxSizeMB == 0 {
		cfg.AuditLogMaxSizeMB = 50
	}
}

func validate(cfg *Config) error {
	if cfg.Telemetry.Traces || cfg.Telemetry.Metrics {
		if cfg.Telemetry.Endpoint == "" {
			return fmt.Errorf("config: telemetry.endpoint required when traces or metrics are enabled")
		}
	}
	if cfg.Admin.Enabled && cfg.Admin.Token == "" {
		return fmt.Errorf("config: admin.token required when admin is enabled")
	}
	return nil
}

// RiskWeights converts the YAML overrides onto risk.DefaultWeights(),
// leaving any field the operator did not set at its default magnitude. A
// configured RiskWeightsFile takes precedence over the inline overrides
// below; a malformed weight file is a startup error, not silently ignored.
func (c *Config) RiskWeights() (risk.Weights, error) {
	if c.RiskWeightsFile != "" {
		return risk.LoadWeightsFile(c.RiskWeightsFile)
	}
	w := risk.DefaultWeights()
	r := c.Risk
	if r.OriginTrustScale != nil {
		w.OriginTrustScale = *r.OriginTrustScale
	}
	if r.OriginTrustLowPenalty != nil {
		w.OriginTrustLowPenalty = *r.OriginTrustLowPenalty
	}
	if r.ContextRiskLow != nil {
		w.ContextRiskLow = *r.ContextRiskLow
	}
	if r.ContextRiskHigh != nil {
		w.ContextRiskHigh = *r.ContextRiskHigh
	}
	if r.AmountScale != nil {
		w.AmountScale = *r.AmountScale
	}
	if r.KnownDestinationBonus != nil {
		w.KnownDestinationBonus = *r.KnownDestinationBonus
	}
	if r.InstructionCountPenalty != nil {
		w.InstructionCountPenalty = *r.InstructionCountPenalty
	}
	if r.TxTypeUnknownPenalty != nil {
		w.TxTypeUnknownPenalty = *r.TxTypeUnknownPenalty
	}
	if r.TxTypeApprovalPenalty != nil {
		w.TxTypeApprovalPenalty = *r.TxTypeApprovalPenalty
	}
	if r.TxTypeSwapPenalty != nil {
		w.TxTypeSwapPenalty = *r.TxTypeSwapPenalty
	}
	return w, nil
}
