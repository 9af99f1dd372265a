// Package gate implements the submission gate from spec.md §4.7: the sole
// authority on whether a transaction may be submitted. It owns the
// kill-switch and the invariant-violation machinery, grounded on the
// pause-guard idiom in the teacher's services/payoutd processor/admin
// server (kill-switch here plays the role payoutd's pause guard does) and
// the policy-enforcer shape of services/payoutd/policy.go.
package gate

import (
	"sync"

	"liminal/core/errors"
	"liminal/core/types"
	"liminal/observability"
)

// KillSwitch is a global policy bit that, when engaged, forces every
// submission gate check to fail with InvariantKillSwitchOverridesAll
// regardless of any other condition (spec.md §3 invariant 5).
type KillSwitch struct {
	mu      sync.Mutex
	engaged bool
}

// Engage turns the kill-switch on.
func (k *KillSwitch) Engage() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.engaged = true
	observability.Pipeline().SetKillSwitch(true)
}

// Disengage turns the kill-switch off.
func (k *KillSwitch) Disengage() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.engaged = false
	observability.Pipeline().SetKillSwitch(false)
}

// Engaged reports the current kill-switch state.
func (k *KillSwitch) Engaged() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.engaged
}

// PolicyBits captures the operator policy flags the gate consults, distinct
// from the kill-switch: these are ordinary configuration toggles, not an
// emergency override.
type PolicyBits struct {
	mu                sync.Mutex
	privateRailEnabled bool
	submissionEnabled  bool
}

// NewPolicyBits constructs policy bits with submission enabled and the
// private rail disabled, the conservative default.
func NewPolicyBits() *PolicyBits {
	return &PolicyBits{submissionEnabled: true, privateRailEnabled: false}
}

// SetPrivateRailEnabled toggles the private-rail policy bit.
func (p *PolicyBits) SetPrivateRailEnabled(v bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.privateRailEnabled = v
}

// PrivateRailEnabled implements rail.PolicySource.
func (p *PolicyBits) PrivateRailEnabled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.privateRailEnabled
}

// SetSubmissionEnabled toggles the general submission policy bit.
func (p *PolicyBits) SetSubmissionEnabled(v bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.submissionEnabled = v
}

// SubmissionEnabled reports whether submissions are permitted by policy.
func (p *PolicyBits) SubmissionEnabled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.submissionEnabled
}

// Decision is the result of a gate check.
type Decision struct {
	Allowed    bool
	Violations []*errors.InvariantViolation
}

// Gate is the sole authority on whether a submission is permitted.
type Gate struct {
	killSwitch *KillSwitch
	policy     *PolicyBits
}

// New constructs a Gate backed by the supplied kill-switch and policy bits.
func New(killSwitch *KillSwitch, policy *PolicyBits) *Gate {
	return &Gate{killSwitch: killSwitch, policy: policy}
}

// Check evaluates the gate's invariants against record in the fixed order
// spec.md §4.7 mandates, stopping at the first violation. On approval it
// is side-effect-free. For every record r that check(r) approves, calling
// check(r) again with no intervening mutation returns the same decision
// (spec.md §8 idempotence).
func (g *Gate) Check(record *types.Record) Decision {
	// 1. Kill-switch overrides everything.
	if g.killSwitch != nil && g.killSwitch.Engaged() {
		return deny(errors.InvariantKillSwitchOverridesAll, "kill-switch is engaged; all submissions are blocked")
	}

	// 2. Policy bits.
	if record.StrategySelection != nil && record.StrategySelection.Strategy == types.StrategyPrivacyRail && !g.policy.PrivateRailEnabled() {
		return deny(errors.InvariantPrivateRailDisabled, "private rail is disabled by policy")
	}
	if !g.policy.SubmissionEnabled() {
		return deny(errors.InvariantPolicyBlockedSubmission, "submission is disabled by policy")
	}

	// 3. Record state must be SIGNED.
	if record.State != types.StateSigned {
		return deny(errors.InvariantNoSubmissionWithoutSigning, "record is not in the SIGNED state")
	}

	// 4. Strategy must not be S3_PRIVACY_RAIL.
	if record.StrategySelection != nil && record.StrategySelection.Strategy == types.StrategyPrivacyRail {
		return deny(errors.InvariantStrategyNotImplemented, "S3_PRIVACY_RAIL strategy cannot be submitted")
	}

	// 5. Signing result must exist and be successful.
	if record.SigningResult == nil || !record.SigningResult.Success {
		return deny(errors.InvariantNoSubmissionWithoutSigning, "no successful signing result on record")
	}

	observability.Pipeline().RecordSubmission("allowed")
	return Decision{Allowed: true}
}

func deny(invariantID, message string) Decision {
	observability.Pipeline().RecordGateDenial(invariantID)
	observability.Pipeline().RecordSubmission("denied")
	return Decision{
		Allowed: false,
		Violations: []*errors.InvariantViolation{
			{InvariantID: invariantID, Message: message, Severity: errors.SeverityBlocking},
		},
	}
}

// AssertSubmissionBlocked panics-free helper used by tests and operational
// tooling: it verifies the gate currently blocks submission for a maximally
// permissive synthetic record (signed, non-rail strategy). Returns nil only
// if the gate is NOT currently blocking, which callers treat as an alarm
// condition.
func (g *Gate) AssertSubmissionBlocked() *errors.InvariantViolation {
	synthetic := &types.Record{
		State:             types.StateSigned,
		StrategySelection: &types.StrategySelection{Strategy: types.StrategyNormal},
		SigningResult:     &types.SigningResult{Success: true},
	}
	decision := g.Check(synthetic)
	if decision.Allowed {
		return nil
	}
	return decision.Violations[0]
}
