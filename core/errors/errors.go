// Package errors defines the core's error taxonomy (spec.md §7). Sentinel
// errors follow a flat var block; structured errors carry the fields callers
// need to make a programmatic decision, the way native/swap's RiskViolation
// does in the teacher repository.
package errors

import (
	stderrors "errors"
	"fmt"

	"liminal/core/types"
)

var (
	// ErrNotFound indicates a record or receipt is missing. Always
	// recoverable by the caller; never fatal.
	ErrNotFound = stderrors.New("liminal: record not found")

	// ErrRecordExists is returned when a collaborator asks to create a
	// record with an id that already exists.
	ErrRecordExists = stderrors.New("liminal: record already exists")
)

// InvalidStateTransition is a programming error in orchestration: the
// pipeline (or a racing caller) attempted a transition not present in the
// transition graph.
type InvalidStateTransition struct {
	ID   string
	From types.State
	To   types.State
}

func (e *InvalidStateTransition) Error() string {
	return fmt.Sprintf("liminal: invalid state transition for %s: %s -> %s", e.ID, e.From, e.To)
}

// InvariantViolation is produced whenever a safety invariant fires. It is
// always surfaced to the caller with its invariant id; it is never
// recovered locally.
type InvariantViolation struct {
	InvariantID string
	Message     string
	Severity    Severity
}

func (e *InvariantViolation) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("liminal: invariant violation %s: %s", e.InvariantID, e.Message)
}

// Severity classifies how serious an invariant violation is.
type Severity string

const (
	SeverityBlocking Severity = "BLOCKING"
	SeverityWarning  Severity = "WARNING"
)

// Invariant ids, stable per spec.md §6.
const (
	InvariantKillSwitchOverridesAll    = "KILL_SWITCH_OVERRIDES_ALL"
	InvariantPrivateRailDisabled       = "PRIVATE_RAIL_DISABLED"
	InvariantNoSubmissionWithoutSigning = "NO_SUBMISSION_WITHOUT_SIGNING"
	InvariantStrategyNotImplemented    = "STRATEGY_NOT_IMPLEMENTED"
	InvariantPolicyBlockedSubmission   = "POLICY_BLOCKED_SUBMISSION"
)

// CollaboratorFailure wraps an error raised by an external collaborator
// (signer, RPC, classifier). Records past CREATE transition to FAILED, not
// ABORTED, when this fires.
type CollaboratorFailure struct {
	Collaborator string
	Err          error
}

func (e *CollaboratorFailure) Error() string {
	return fmt.Sprintf("liminal: collaborator %s failed: %v", e.Collaborator, e.Err)
}

func (e *CollaboratorFailure) Unwrap() error { return e.Err }

// ValidationFailure is a payload-level defect (empty data, no accounts,
// negative amount). It aborts the record but preserves its history.
type ValidationFailure struct {
	Reason string
}

func (e *ValidationFailure) Error() string {
	return fmt.Sprintf("liminal: validation failure: %s", e.Reason)
}

// Is implements errors.Is support so callers can match on the static type
// using a zero-valued target, e.g. errors.Is(err, &ValidationFailure{}).
func (e *ValidationFailure) Is(target error) bool {
	_, ok := target.(*ValidationFailure)
	return ok
}
