// Package rail defines the private-rail adapter interface and its default
// implementation (spec.md §4.5). The default implementation never reports
// READY: it is a policy-gated placeholder for a capability that does not
// exist in this deployment, grounded on the provider-status / policy-guard
// precedence idiom in the teacher's services/payoutd processor (pause
// checked first, before any other condition).
package rail

import (
	"strings"

	"liminal/core/types"
)

// PolicySource reports whether the private-rail capability is enabled by
// operator policy. It is the sole external signal the default adapter
// consults.
type PolicySource interface {
	PrivateRailEnabled() bool
}

// Adapter is the private-rail capability and status interface the strategy
// selector and the pipeline's prepare stage consult. The submission gate
// does not use it; it reads the policy bits directly.
type Adapter interface {
	GetCapabilities() types.RailCapabilities
	GetStatus() types.RailStatus
	IsAvailable() bool
	Prepare(payload types.Payload, contextID string) types.RailPrepareResult
	Estimate(payload types.Payload) types.RailEstimateResult
	Validate(payload types.Payload) types.RailValidationResult
}

// StaticPolicy is a PolicySource with a fixed answer, useful for tests and
// for deployments that have not wired an operator policy store.
type StaticPolicy struct {
	Enabled bool
}

// PrivateRailEnabled implements PolicySource.
func (p StaticPolicy) PrivateRailEnabled() bool { return p.Enabled }

// DefaultAdapter is the shipped private-rail adapter. Under no configuration
// does it return READY (spec.md §4.5): the private rail capability does not
// exist in this deployment, only its interface does.
type DefaultAdapter struct {
	policy PolicySource
}

// NewDefaultAdapter constructs the default adapter backed by policy.
func NewDefaultAdapter(policy PolicySource) *DefaultAdapter {
	if policy == nil {
		policy = StaticPolicy{Enabled: false}
	}
	return &DefaultAdapter{policy: policy}
}

// GetStatus first consults policy; if the private-rail bit is off it MUST
// return DISABLED_BY_POLICY before considering any other signal (spec.md
// §4.5, §9 Open Question: DISABLED_BY_POLICY wins over NOT_AVAILABLE).
func (a *DefaultAdapter) GetStatus() types.RailStatus {
	if !a.policy.PrivateRailEnabled() {
		return types.RailStatusDisabledByPolicy
	}
	return types.RailStatusNotAvailable
}

// IsAvailable reports whether the rail is usable right now.
func (a *DefaultAdapter) IsAvailable() bool {
	return a.GetStatus() == types.RailStatusReady
}

// GetCapabilities reports the rail's would-be capability profile. The
// default adapter reports the full privacy profile the interface promises,
// since the profile is a capability description, not an availability claim;
// availability is governed exclusively by GetStatus.
func (a *DefaultAdapter) GetCapabilities() types.RailCapabilities {
	return types.RailCapabilities{
		SupportsTransfers:    true,
		SupportsProgramCalls: false,
		HidesSender:          true,
		HidesAmount:          true,
		HidesRecipient:       true,
		RequiresRelayer:      true,
		RequiresZKProof:      true,
	}
}

func (a *DefaultAdapter) blockedReason() string {
	status := a.GetStatus()
	if status == types.RailStatusDisabledByPolicy {
		return "private rail disabled by policy"
	}
	return "private rail not available: " + string(status)
}

// Prepare always reports unavailable; the reason names "policy" when the
// block originated there, per spec.md §4.5's interface-only guarantee.
func (a *DefaultAdapter) Prepare(types.Payload, string) types.RailPrepareResult {
	return types.RailPrepareResult{Available: false, Reason: a.blockedReason()}
}

// Estimate always reports unavailable for the same reason as Prepare.
func (a *DefaultAdapter) Estimate(types.Payload) types.RailEstimateResult {
	return types.RailEstimateResult{Available: false, Reason: a.blockedReason()}
}

// Validate always reports invalid for the same reason as Prepare.
func (a *DefaultAdapter) Validate(types.Payload) types.RailValidationResult {
	return types.RailValidationResult{Valid: false, Reason: a.blockedReason()}
}

// ReasonMentionsPolicy reports whether a reason string attributes the block
// to policy, used by callers (e.g. the strategy selector's alternatives
// list) that must surface this distinction without re-deriving status.
func ReasonMentionsPolicy(reason string) bool {
	return strings.Contains(strings.ToLower(reason), "policy")
}

var _ Adapter = (*DefaultAdapter)(nil)
