package dryrun_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	liminalerrors "liminal/core/errors"
	"liminal/core/types"
	"liminal/dryrun"
)

func validPayload() types.Payload {
	return types.Payload{
		ProgramID:        "Tokenkeg1111",
		InstructionData:  "03aa",
		InstructionCount: 1,
		Accounts:         []string{"a", "b"},
		EstimatedAmount:  1,
	}
}

func TestRun_SuccessIsAlwaysSimulation(t *testing.T) {
	executor := dryrun.New()
	executor.SetClock(func() time.Time { return time.Unix(1700000000, 0) })
	result, err := executor.Run(validPayload(), types.StrategySelection{Strategy: types.StrategyNormal})
	require.NoError(t, err)
	require.True(t, result.IsSimulation)
	require.True(t, result.Success)
}

func TestRun_EmptyInstructionDataFails(t *testing.T) {
	executor := dryrun.New()
	payload := validPayload()
	payload.InstructionData = ""
	_, err := executor.Run(payload, types.StrategySelection{Strategy: types.StrategyNormal})
	require.Error(t, err)
	var validation *liminalerrors.ValidationFailure
	require.ErrorAs(t, err, &validation)
}

func TestRun_NoAccountsFails(t *testing.T) {
	executor := dryrun.New()
	payload := validPayload()
	payload.Accounts = nil
	_, err := executor.Run(payload, types.StrategySelection{Strategy: types.StrategyNormal})
	require.Error(t, err)
}

func TestRun_RejectsPrivacyRailStrategy(t *testing.T) {
	executor := dryrun.New()
	_, err := executor.Run(validPayload(), types.StrategySelection{Strategy: types.StrategyPrivacyRail})
	require.Error(t, err)
	var invariant *liminalerrors.InvariantViolation
	require.ErrorAs(t, err, &invariant)
	require.Equal(t, liminalerrors.InvariantStrategyNotImplemented, invariant.InvariantID)
}

func TestRun_Deterministic(t *testing.T) {
	executor := dryrun.New()
	executor.SetClock(func() time.Time { return time.Unix(1700000000, 0) })
	payload := validPayload()
	selection := types.StrategySelection{Strategy: types.StrategyRPCPrivacy, CostImpact: types.CostImpactLow, PrivacyLevel: 40}
	first, err := executor.Run(payload, selection)
	require.NoError(t, err)
	second, err := executor.Run(payload, selection)
	require.NoError(t, err)
	require.Equal(t, first.EstimatedFee, second.EstimatedFee)
	require.Equal(t, first.SimulatedExecutionMs, second.SimulatedExecutionMs)
	require.Equal(t, first.SimulatedRPC, second.SimulatedRPC)
}
