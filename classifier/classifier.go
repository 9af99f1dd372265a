// Package classifier implements the deterministic payload classifier from
// spec.md §4.2: an ordered, first-match-wins rule set with no probabilistic
// component, grounded on the ordered-rule style of native/swap's validation
// helpers in the teacher repository.
package classifier

import (
	"strings"

	"liminal/core/types"
)

// knownTokenPrograms lists program ids recognised as standard token
// programs, whose transfer-tagged instructions classify as TRANSFER.
var knownTokenPrograms = map[string]struct{}{
	"Tokenkeg": {}, // SPL-token-style program id prefix
	"TokenzQd": {}, // token-2022-style program id prefix
}

// knownSwapPrograms lists program ids recognised as AMM/swap routers.
var knownSwapPrograms = map[string]struct{}{
	"SwapRouterV1": {},
	"SwapRouterV2": {},
	"JupAggV6":     {},
}

// Hex-encoded instruction discriminators used by standard token programs.
// Indices follow the SPL token program's instruction enum: Transfer is 3,
// Approve is 4, ApproveChecked is 13 (0x0d). A delegate is installed by
// either approve variant, so both tags route to TxTypeApproval.
const (
	transferInstructionTag       = "03"
	approveInstructionTag        = "04"
	approveCheckedInstructionTag = "0d"
)

// confidence is the deterministic lookup table keyed by matched rule; it is
// never derived probabilistically (spec.md §4.2).
const (
	confidenceTransfer           = 0.95
	confidenceSwap               = 0.9
	confidenceApproval           = 0.85
	confidenceProgramInteraction = 0.6
	confidenceUnknown            = 0.2
)

// Classify deterministically labels a payload. Two invocations on an equal
// payload always return an equal Classification (spec.md §8).
func Classify(payload types.Payload) types.Classification {
	data := strings.ToLower(payload.InstructionDataTrimmed())
	programMatch := matchesKnownPrefix(payload.ProgramID, knownTokenPrograms)

	switch {
	case programMatch && strings.HasPrefix(data, transferInstructionTag):
		return types.Classification{
			Type:        types.TxTypeTransfer,
			Confidence:  confidenceTransfer,
			Description: "recognised token program transfer instruction",
			Metadata: map[string]types.MetaValue{
				"programId": types.MetaString(payload.ProgramID),
			},
		}
	case matchesKnownPrefix(payload.ProgramID, knownSwapPrograms):
		return types.Classification{
			Type:        types.TxTypeSwap,
			Confidence:  confidenceSwap,
			Description: "recognised swap/AMM router program",
			Metadata: map[string]types.MetaValue{
				"programId": types.MetaString(payload.ProgramID),
			},
		}
	case programMatch && (strings.HasPrefix(data, approveInstructionTag) || strings.HasPrefix(data, approveCheckedInstructionTag)):
		return types.Classification{
			Type:        types.TxTypeApproval,
			Confidence:  confidenceApproval,
			Description: "recognised token program approve/delegate instruction",
			Metadata: map[string]types.MetaValue{
				"programId":        types.MetaString(payload.ProgramID),
				"instructionCount": types.MetaInt(int64(payload.InstructionCount)),
			},
		}
	case data != "" && payload.InstructionCount >= 1:
		return types.Classification{
			Type:        types.TxTypeProgramInteraction,
			Confidence:  confidenceProgramInteraction,
			Description: "non-empty instruction payload of unrecognised shape",
			Metadata: map[string]types.MetaValue{
				"programId":        types.MetaString(payload.ProgramID),
				"instructionCount": types.MetaInt(int64(payload.InstructionCount)),
			},
		}
	default:
		return types.Classification{
			Type:        types.TxTypeUnknown,
			Confidence:  confidenceUnknown,
			Description: "payload carries no recognisable instruction shape",
			Metadata:    map[string]types.MetaValue{},
		}
	}
}

func matchesKnownPrefix(programID string, known map[string]struct{}) bool {
	for prefix := range known {
		if strings.HasPrefix(programID, prefix) {
			return true
		}
	}
	return false
}
