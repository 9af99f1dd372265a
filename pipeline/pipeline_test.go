package pipeline_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"liminal/audit"
	liminalerrors "liminal/core/errors"
	"liminal/core/types"
	"liminal/dryrun"
	"liminal/gate"
	"liminal/pipeline"
	"liminal/rail"
	"liminal/risk"
	"liminal/statemachine"
	"liminal/strategy"
)

type fakeSigner struct {
	success bool
}

func (f fakeSigner) Sign(ctx context.Context, payload types.Payload, selection types.StrategySelection) (types.SigningResult, error) {
	return types.SigningResult{Success: f.success, Signature: "sig", Reason: "declined"}, nil
}

type fakeRPC struct{}

func (fakeRPC) Send(ctx context.Context, signed types.SigningResult) (types.SubmissionResult, error) {
	return types.SubmissionResult{Success: true, TxHash: "hash"}, nil
}
func (fakeRPC) Broadcast(ctx context.Context, signed types.SigningResult) (types.SubmissionResult, error) {
	return types.SubmissionResult{Success: true}, nil
}
func (fakeRPC) Status(ctx context.Context, txHash string) (string, error) {
	return "confirmed", nil
}

func newOrchestrator(signerSuccess bool) (*pipeline.Orchestrator, *gate.KillSwitch) {
	sm := statemachine.New()
	policy := gate.NewPolicyBits()
	railAdapter := rail.NewDefaultAdapter(policy)
	killSwitch := &gate.KillSwitch{}
	g := gate.New(killSwitch, policy)

	orchestrator := pipeline.New(pipeline.Config{
		StateMachine: sm,
		RiskScorer:   risk.New(risk.DefaultWeights()),
		Selector:     strategy.New(railAdapter),
		Executor:     dryrun.New(),
		RailAdapter:  railAdapter,
		Gate:         g,
		Signer:       fakeSigner{success: signerSuccess},
		RPC:          fakeRPC{},
		AuditLog:     audit.New(nil),
	})
	return orchestrator, killSwitch
}

func validPayload() types.Payload {
	return types.Payload{
		ProgramID:        "Tokenkeg1111",
		InstructionData:  "03aa",
		InstructionCount: 1,
		Accounts:         []string{"a", "b"},
		EstimatedAmount:  1,
		Origin:           "known-origin",
	}
}

func TestEndToEnd_HappyPathReachesConfirmed(t *testing.T) {
	orchestrator, _ := newOrchestrator(true)
	ctx := context.Background()

	rec := orchestrator.CreateTransaction(ctx, "ctx-1", validPayload())
	_, err := orchestrator.RunDryRunPipeline(ctx, rec.ID, 90)
	require.NoError(t, err)

	_, err = orchestrator.SignTransaction(ctx, rec.ID)
	require.NoError(t, err)

	final, err := orchestrator.SubmitTransaction(ctx, rec.ID)
	require.NoError(t, err)
	require.Equal(t, types.StateConfirmed, final.State)
	require.NotNil(t, final.SubmissionResult)
	require.True(t, final.SubmissionResult.Success)
}

func TestEndToEnd_SigningFailureLeavesRecordFailed(t *testing.T) {
	orchestrator, _ := newOrchestrator(false)
	ctx := context.Background()

	rec := orchestrator.CreateTransaction(ctx, "ctx-1", validPayload())
	_, err := orchestrator.RunDryRunPipeline(ctx, rec.ID, 90)
	require.NoError(t, err)

	final, err := orchestrator.SignTransaction(ctx, rec.ID)
	require.NoError(t, err)
	require.Equal(t, types.StateFailed, final.State)
}

func TestEndToEnd_KillSwitchBlocksSubmission(t *testing.T) {
	orchestrator, killSwitch := newOrchestrator(true)
	ctx := context.Background()

	rec := orchestrator.CreateTransaction(ctx, "ctx-1", validPayload())
	_, err := orchestrator.RunDryRunPipeline(ctx, rec.ID, 90)
	require.NoError(t, err)
	_, err = orchestrator.SignTransaction(ctx, rec.ID)
	require.NoError(t, err)

	killSwitch.Engage()
	_, err = orchestrator.SubmitTransaction(ctx, rec.ID)
	require.Error(t, err)
	var invariant *liminalerrors.InvariantViolation
	require.ErrorAs(t, err, &invariant)
	require.Equal(t, liminalerrors.InvariantKillSwitchOverridesAll, invariant.InvariantID)

	stillSigned, err := orchestrator.GetTransaction(rec.ID)
	require.NoError(t, err)
	require.Equal(t, types.StateSigned, stillSigned.State)
}

func TestEndToEnd_InvalidPayloadAbortsAtDryRun(t *testing.T) {
	orchestrator, _ := newOrchestrator(true)
	ctx := context.Background()

	payload := validPayload()
	payload.Accounts = nil
	rec := orchestrator.CreateTransaction(ctx, "ctx-1", payload)

	_, err := orchestrator.RunDryRunPipeline(ctx, rec.ID, 90)
	require.Error(t, err)

	final, err := orchestrator.GetTransaction(rec.ID)
	require.NoError(t, err)
	require.Equal(t, types.StateAborted, final.State)
}

func TestAbortTransaction_FromInFlightState(t *testing.T) {
	orchestrator, _ := newOrchestrator(true)
	ctx := context.Background()

	rec := orchestrator.CreateTransaction(ctx, "ctx-1", validPayload())
	final, err := orchestrator.AbortTransaction(rec.ID, "operator cancelled")
	require.NoError(t, err)
	require.Equal(t, types.StateAborted, final.State)
}

func TestClearContext_RemovesAllRecordsForContext(t *testing.T) {
	orchestrator, _ := newOrchestrator(true)
	ctx := context.Background()
	orchestrator.CreateTransaction(ctx, "ctx-1", validPayload())
	orchestrator.CreateTransaction(ctx, "ctx-1", validPayload())

	orchestrator.ClearContext("ctx-1")
	require.Empty(t, orchestrator.GetContextTransactions("ctx-1"))
}
