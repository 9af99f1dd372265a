package logging_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"liminal/observability/logging"
)

func TestMaskField_AllowlistsAuditIdentifiers(t *testing.T) {
	for _, key := range []string{"txId", "contextId", "stage", "from", "to", "invariant", "programId", "instructionCount"} {
		attr := logging.MaskField(key, "value")
		require.Equal(t, "value", attr.Value.String())
	}
}

func TestMaskField_RedactsUnknownKeys(t *testing.T) {
	attr := logging.MaskField("payload.origin", "https://attacker.example")
	require.Equal(t, logging.RedactedValue, attr.Value.String())
}

func TestMaskField_LeavesEmptyValuesUnredacted(t *testing.T) {
	attr := logging.MaskField("payload.origin", "")
	require.Equal(t, "", attr.Value.String())
}
