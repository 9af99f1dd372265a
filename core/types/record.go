package types

import (
	"time"

	"liminal/core/events"
)

// Record is the central transaction entity. It is exclusively owned by the
// state machine store; every value handed to a collaborator is a read-only
// snapshot (see Record.Clone).
type Record struct {
	ID            string
	ContextID     string
	State         State
	History       []HistoryEntry
	Payload       Payload
	CreatedAt     time.Time
	UpdatedAt     time.Time

	Classification    *Classification
	RiskScore         *RiskScore
	StrategySelection *StrategySelection
	DryRunResult      *DryRunResult
	SigningResult     *SigningResult
	SubmissionResult  *SubmissionResult

	AbortReason string

	// AuditTrail is the append-only internal record of every transition and
	// stage-output update applied to this record, independent of whatever
	// external audit sink the pipeline is configured with. The receipt
	// builder exposes it read-only via audit.BuildReceipt.
	AuditTrail []events.Event
}

// Clone returns a deep copy of the record so a caller cannot mutate
// state-machine-owned data through the returned value.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	clone := *r
	clone.Payload = r.Payload.Clone()
	clone.History = make([]HistoryEntry, len(r.History))
	copy(clone.History, r.History)
	if r.Classification != nil {
		c := *r.Classification
		if r.Classification.Metadata != nil {
			c.Metadata = make(map[string]MetaValue, len(r.Classification.Metadata))
			for k, v := range r.Classification.Metadata {
				c.Metadata[k] = v
			}
		}
		clone.Classification = &c
	}
	if r.RiskScore != nil {
		rs := *r.RiskScore
		rs.Factors = append([]RiskFactor(nil), r.RiskScore.Factors...)
		clone.RiskScore = &rs
	}
	if r.StrategySelection != nil {
		ss := *r.StrategySelection
		ss.Alternatives = append([]StrategyAlternative(nil), r.StrategySelection.Alternatives...)
		clone.StrategySelection = &ss
	}
	if r.DryRunResult != nil {
		dr := *r.DryRunResult
		dr.Route = append([]string(nil), r.DryRunResult.Route...)
		dr.Warnings = append([]string(nil), r.DryRunResult.Warnings...)
		clone.DryRunResult = &dr
	}
	if r.SigningResult != nil {
		sr := *r.SigningResult
		clone.SigningResult = &sr
	}
	if r.SubmissionResult != nil {
		sub := *r.SubmissionResult
		clone.SubmissionResult = &sub
	}
	clone.AuditTrail = make([]events.Event, len(r.AuditTrail))
	for i, ev := range r.AuditTrail {
		clone.AuditTrail[i] = ev
		if ev.Attributes != nil {
			attrs := make(map[string]string, len(ev.Attributes))
			for k, v := range ev.Attributes {
				attrs[k] = v
			}
			clone.AuditTrail[i].Attributes = attrs
		}
	}
	return &clone
}

// LastHistoryState returns the state of the last history entry, or the zero
// state if the history is empty. Invariant 2 (spec.md §3) requires this to
// always equal r.State.
func (r *Record) LastHistoryState() State {
	if r == nil || len(r.History) == 0 {
		return ""
	}
	return r.History[len(r.History)-1].State
}
