package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"liminal/config"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "liminald.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, "service: liminald\n")
	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.HTTPAddr)
	require.Equal(t, ":8081", cfg.Admin.Addr)
	require.Equal(t, 50, cfg.AuditLogMaxSizeMB)
}

func TestLoad_AdminEnabledWithoutTokenFails(t *testing.T) {
	path := writeConfig(t, "admin:\n  enabled: true\n")
	_, err := config.Load(path)
	require.Error(t, err)
}

func TestLoad_TelemetryEnabledWithoutEndpointFails(t *testing.T) {
	path := writeConfig(t, "telemetry:\n  traces: true\n")
	_, err := config.Load(path)
	require.Error(t, err)
}

func TestSubmissionEnabledOrDefault_DefaultsTrue(t *testing.T) {
	cfg := &config.Config{}
	require.True(t, cfg.SubmissionEnabledOrDefault())
}

func TestSubmissionEnabledOrDefault_HonorsExplicitFalse(t *testing.T) {
	disabled := false
	cfg := &config.Config{SubmissionEnabled: &disabled}
	require.False(t, cfg.SubmissionEnabledOrDefault())
}

func TestRiskWeights_InlineOverridesApply(t *testing.T) {
	path := writeConfig(t, "risk:\n  contextRiskHigh: 42\n")
	cfg, err := config.Load(path)
	require.NoError(t, err)
	weights, err := cfg.RiskWeights()
	require.NoError(t, err)
	require.Equal(t, 42.0, weights.ContextRiskHigh)
}

func TestRiskWeights_MissingFilePropagatesError(t *testing.T) {
	path := writeConfig(t, "riskWeightsFile: /nonexistent/weights.toml\n")
	cfg, err := config.Load(path)
	require.NoError(t, err)
	_, err = cfg.RiskWeights()
	require.Error(t, err)
}
