package audit_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"liminal/audit"
	"liminal/core/events"
	"liminal/core/types"
)

func TestBuildReceipt_ReflectsCurrentState(t *testing.T) {
	rec := &types.Record{
		ID:    "tx_1",
		State: types.StateConfirmed,
		DryRunResult: &types.DryRunResult{
			IsSimulation: true,
			Timestamp:    time.Unix(1700000000, 0),
		},
	}
	receipt := audit.BuildReceipt(rec, types.RailStatusDisabledByPolicy, false, "private rail disabled by policy")
	require.Equal(t, "tx_1", receipt.TxID)
	require.True(t, receipt.Submitted)
	require.True(t, receipt.IsSimulation)
	require.False(t, receipt.PrivateRailAvailable)
	require.Equal(t, types.RailStatusDisabledByPolicy, receipt.PrivateRailStatus)
}

func TestBuildReceipt_NotSubmittedBeforeSubmitState(t *testing.T) {
	rec := &types.Record{ID: "tx_2", State: types.StateDryRun}
	receipt := audit.BuildReceipt(rec, types.RailStatusNotAvailable, false, "")
	require.False(t, receipt.Submitted)
}

func TestLog_NilLoggerIsNoOp(t *testing.T) {
	l := audit.New(nil)
	require.NotPanics(t, func() {
		l.Record(events.RecordCreated("tx_1", "ctx-1", time.Unix(1700000000, 0)))
	})
}
