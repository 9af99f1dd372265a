package strategy_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"liminal/core/types"
	"liminal/strategy"
)

type fakeRailAdapter struct {
	status types.RailStatus
	caps   types.RailCapabilities
}

func (f fakeRailAdapter) GetCapabilities() types.RailCapabilities { return f.caps }
func (f fakeRailAdapter) GetStatus() types.RailStatus             { return f.status }
func (f fakeRailAdapter) IsAvailable() bool                       { return f.status == types.RailStatusReady }
func (f fakeRailAdapter) Prepare(types.Payload, string) types.RailPrepareResult {
	return types.RailPrepareResult{Available: f.IsAvailable()}
}
func (f fakeRailAdapter) Estimate(types.Payload) types.RailEstimateResult {
	return types.RailEstimateResult{Available: f.IsAvailable()}
}
func (f fakeRailAdapter) Validate(types.Payload) types.RailValidationResult {
	return types.RailValidationResult{Valid: f.IsAvailable()}
}

func TestSelect_NeverChoosesRailWhenNotReady(t *testing.T) {
	adapter := fakeRailAdapter{status: types.RailStatusNotAvailable}
	selector := strategy.New(adapter)
	selection := selector.Select(strategy.Inputs{
		Payload:        types.Payload{EstimatedAmount: 1000, InstructionCount: 1},
		RiskScore:      types.RiskScore{Level: types.RiskLevelHigh, Score: 90},
		OriginTrust:    5,
		Classification: types.Classification{Type: types.TxTypeTransfer},
	})
	require.NotEqual(t, types.StrategyPrivacyRail, selection.Strategy)
}

func TestSelect_ChoosesRailWhenReadyAndHighRisk(t *testing.T) {
	adapter := fakeRailAdapter{
		status: types.RailStatusReady,
		caps:   types.RailCapabilities{HidesSender: true, HidesAmount: true, HidesRecipient: true},
	}
	selector := strategy.New(adapter)
	selection := selector.Select(strategy.Inputs{
		Payload:        types.Payload{EstimatedAmount: 5, InstructionCount: 1},
		RiskScore:      types.RiskScore{Level: types.RiskLevelHigh, Score: 90},
		OriginTrust:    30,
		Classification: types.Classification{Type: types.TxTypeTransfer},
	})
	require.Equal(t, types.StrategyPrivacyRail, selection.Strategy)
}

func TestSelect_LowRiskWellTrustedPrefersNormal(t *testing.T) {
	adapter := fakeRailAdapter{status: types.RailStatusNotAvailable}
	selector := strategy.New(adapter)
	selection := selector.Select(strategy.Inputs{
		Payload:        types.Payload{EstimatedAmount: 0.01, InstructionCount: 1},
		RiskScore:      types.RiskScore{Level: types.RiskLevelLow, Score: 10},
		OriginTrust:    95,
		Classification: types.Classification{Type: types.TxTypeTransfer},
	})
	require.Equal(t, types.StrategyNormal, selection.Strategy)
}

func TestSelect_ConfidenceWithinBounds(t *testing.T) {
	adapter := fakeRailAdapter{status: types.RailStatusNotAvailable}
	selector := strategy.New(adapter)
	selection := selector.Select(strategy.Inputs{
		Payload:        types.Payload{EstimatedAmount: 5, InstructionCount: 2},
		RiskScore:      types.RiskScore{Level: types.RiskLevelMedium, Score: 45},
		OriginTrust:    50,
		Classification: types.Classification{Type: types.TxTypeSwap},
	})
	require.GreaterOrEqual(t, selection.Confidence, 0.0)
	require.LessOrEqual(t, selection.Confidence, 0.95)
}

func TestSelect_AlternativesExcludeChosenStrategy(t *testing.T) {
	adapter := fakeRailAdapter{status: types.RailStatusNotAvailable}
	selector := strategy.New(adapter)
	selection := selector.Select(strategy.Inputs{
		Payload:        types.Payload{EstimatedAmount: 1, InstructionCount: 1},
		RiskScore:      types.RiskScore{Level: types.RiskLevelLow, Score: 10},
		OriginTrust:    90,
		Classification: types.Classification{Type: types.TxTypeTransfer},
	})
	for _, alt := range selection.Alternatives {
		require.NotEqual(t, selection.Strategy, alt.Strategy)
	}
	require.Len(t, selection.Alternatives, 3)
}
