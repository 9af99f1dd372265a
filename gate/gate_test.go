package gate_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	liminalerrors "liminal/core/errors"
	"liminal/core/types"
	"liminal/gate"
)

func signedRecord(strategyChoice types.Strategy, signed bool) *types.Record {
	return &types.Record{
		State:             types.StateSigned,
		StrategySelection: &types.StrategySelection{Strategy: strategyChoice},
		SigningResult:     &types.SigningResult{Success: signed},
	}
}

func TestCheck_KillSwitchOverridesEverything(t *testing.T) {
	killSwitch := &gate.KillSwitch{}
	killSwitch.Engage()
	g := gate.New(killSwitch, gate.NewPolicyBits())

	decision := g.Check(signedRecord(types.StrategyNormal, true))
	require.False(t, decision.Allowed)
	require.Equal(t, liminalerrors.InvariantKillSwitchOverridesAll, decision.Violations[0].InvariantID)
}

func TestCheck_AllowsWellFormedSignedRecord(t *testing.T) {
	g := gate.New(&gate.KillSwitch{}, gate.NewPolicyBits())
	decision := g.Check(signedRecord(types.StrategyNormal, true))
	require.True(t, decision.Allowed)
	require.Empty(t, decision.Violations)
}

func TestCheck_RequiresSignedState(t *testing.T) {
	g := gate.New(&gate.KillSwitch{}, gate.NewPolicyBits())
	rec := signedRecord(types.StrategyNormal, true)
	rec.State = types.StateDryRun
	decision := g.Check(rec)
	require.False(t, decision.Allowed)
}

func TestCheck_RejectsPrivacyRailStrategy(t *testing.T) {
	policy := gate.NewPolicyBits()
	policy.SetPrivateRailEnabled(true)
	g := gate.New(&gate.KillSwitch{}, policy)
	decision := g.Check(signedRecord(types.StrategyPrivacyRail, true))
	require.False(t, decision.Allowed)
}

func TestCheck_RejectsUnsuccessfulSigning(t *testing.T) {
	g := gate.New(&gate.KillSwitch{}, gate.NewPolicyBits())
	decision := g.Check(signedRecord(types.StrategyNormal, false))
	require.False(t, decision.Allowed)
}

func TestCheck_RejectsMissingSigningResult(t *testing.T) {
	g := gate.New(&gate.KillSwitch{}, gate.NewPolicyBits())
	rec := signedRecord(types.StrategyNormal, true)
	rec.SigningResult = nil
	decision := g.Check(rec)
	require.False(t, decision.Allowed)
}

func TestCheck_IsIdempotentWithoutMutation(t *testing.T) {
	g := gate.New(&gate.KillSwitch{}, gate.NewPolicyBits())
	rec := signedRecord(types.StrategyNormal, true)
	first := g.Check(rec)
	second := g.Check(rec)
	require.Equal(t, first.Allowed, second.Allowed)
}

func TestAssertSubmissionBlocked_ConfirmsKillSwitchHolds(t *testing.T) {
	killSwitch := &gate.KillSwitch{}
	g := gate.New(killSwitch, gate.NewPolicyBits())
	// Before the kill-switch engages, a well-formed record is allowed, so
	// the assertion reports nil: nothing is blocking it.
	require.Nil(t, g.AssertSubmissionBlocked())

	killSwitch.Engage()
	violation := g.AssertSubmissionBlocked()
	require.NotNil(t, violation)
	require.Equal(t, liminalerrors.InvariantKillSwitchOverridesAll, violation.InvariantID)
}

type fakeRPC struct {
	sendCalled, broadcastCalled, statusCalled int
}

func (f *fakeRPC) Send(ctx context.Context, signed types.SigningResult) (types.SubmissionResult, error) {
	f.sendCalled++
	return types.SubmissionResult{Success: true, TxHash: "hash"}, nil
}

func (f *fakeRPC) Broadcast(ctx context.Context, signed types.SigningResult) (types.SubmissionResult, error) {
	f.broadcastCalled++
	return types.SubmissionResult{Success: true}, nil
}

func (f *fakeRPC) Status(ctx context.Context, txHash string) (string, error) {
	f.statusCalled++
	return "confirmed", nil
}

func TestBlockingProxy_BlocksSendSubmitBroadcastShapedMethods(t *testing.T) {
	inner := &fakeRPC{}
	proxy := gate.CreateBlockingProxy(inner)

	_, err := proxy.Send(context.Background(), types.SigningResult{})
	require.Error(t, err)
	var blocked *gate.ErrBlockedByGate
	require.ErrorAs(t, err, &blocked)
	require.Equal(t, 0, inner.sendCalled)

	_, err = proxy.Broadcast(context.Background(), types.SigningResult{})
	require.Error(t, err)
	require.Equal(t, 0, inner.broadcastCalled)
}

func TestBlockingProxy_AllowsStatus(t *testing.T) {
	inner := &fakeRPC{}
	proxy := gate.CreateBlockingProxy(inner)
	status, err := proxy.Status(context.Background(), "hash")
	require.NoError(t, err)
	require.Equal(t, "confirmed", status)
	require.Equal(t, 1, inner.statusCalled)
}

func TestApprovedClient_DelegatesEveryCall(t *testing.T) {
	inner := &fakeRPC{}
	client := gate.CreateApprovedClient(inner)

	result, err := client.Send(context.Background(), types.SigningResult{Success: true})
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Equal(t, 1, inner.sendCalled)

	_, err = client.Broadcast(context.Background(), types.SigningResult{})
	require.NoError(t, err)
	require.Equal(t, 1, inner.broadcastCalled)

	_, err = client.Status(context.Background(), "hash")
	require.NoError(t, err)
	require.Equal(t, 1, inner.statusCalled)
}
