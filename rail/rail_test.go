package rail_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"liminal/core/types"
	"liminal/rail"
)

func TestGetStatus_DisabledByPolicyTakesPrecedence(t *testing.T) {
	adapter := rail.NewDefaultAdapter(rail.StaticPolicy{Enabled: false})
	require.Equal(t, types.RailStatusDisabledByPolicy, adapter.GetStatus())
	require.False(t, adapter.IsAvailable())
}

func TestGetStatus_NotAvailableWhenPolicyEnabled(t *testing.T) {
	adapter := rail.NewDefaultAdapter(rail.StaticPolicy{Enabled: true})
	require.Equal(t, types.RailStatusNotAvailable, adapter.GetStatus())
	require.False(t, adapter.IsAvailable())
}

func TestPrepare_AlwaysUnavailable(t *testing.T) {
	adapter := rail.NewDefaultAdapter(rail.StaticPolicy{Enabled: false})
	result := adapter.Prepare(types.Payload{}, "ctx-1")
	require.False(t, result.Available)
	require.True(t, rail.ReasonMentionsPolicy(result.Reason))
}

func TestEstimate_AlwaysUnavailable(t *testing.T) {
	adapter := rail.NewDefaultAdapter(rail.StaticPolicy{Enabled: true})
	result := adapter.Estimate(types.Payload{})
	require.False(t, result.Available)
	require.False(t, rail.ReasonMentionsPolicy(result.Reason))
}

func TestValidate_AlwaysInvalid(t *testing.T) {
	adapter := rail.NewDefaultAdapter(nil)
	result := adapter.Validate(types.Payload{})
	require.False(t, result.Valid)
}

func TestGetCapabilities_ReportsFullPrivacyProfileRegardlessOfStatus(t *testing.T) {
	adapter := rail.NewDefaultAdapter(rail.StaticPolicy{Enabled: false})
	caps := adapter.GetCapabilities()
	require.True(t, caps.HidesSender)
	require.True(t, caps.HidesAmount)
	require.True(t, caps.HidesRecipient)
}
