// Package dryrun implements the deterministic dry-run simulator from
// spec.md §4.6. It never touches the network or the clock for its
// computed fields; only the result timestamp uses the current time,
// following the synchronous staged-validation idiom of the teacher's
// services/payoutd processor, reworked into a pure simulator.
package dryrun

import (
	"time"

	"github.com/google/uuid"

	liminalerrors "liminal/core/errors"
	"liminal/core/types"
)

// Executor produces deterministic simulated execution results.
type Executor struct {
	now func() time.Time
}

// New constructs a dry-run executor.
func New() *Executor {
	return &Executor{now: time.Now}
}

// SetClock overrides the timestamp source, for deterministic tests.
func (e *Executor) SetClock(clock func() time.Time) {
	if e == nil || clock == nil {
		return
	}
	e.now = clock
}

// Run validates the payload and simulates execution under the chosen
// strategy. For all payloads and strategies that pass validation, the
// returned result's IsSimulation field is always true (spec.md §8).
func (e *Executor) Run(payload types.Payload, selection types.StrategySelection) (types.DryRunResult, error) {
	if err := validate(payload); err != nil {
		return types.DryRunResult{}, err
	}
	if selection.Strategy == types.StrategyPrivacyRail {
		return types.DryRunResult{}, &liminalerrors.InvariantViolation{
			InvariantID: liminalerrors.InvariantStrategyNotImplemented,
			Message:     "private rail strategy not yet implemented",
			Severity:    liminalerrors.SeverityBlocking,
		}
	}

	rpcName, isPrivate := simulatedRPC(selection.Strategy)
	route := buildRoute(rpcName)
	fee := estimatedFee(payload.InstructionCount, selection.CostImpact)
	execMs := simulatedExecutionMs(selection.PrivacyLevel)

	var warnings []string
	if isPrivate && payload.InstructionCount > 3 {
		warnings = append(warnings, "privacy-preserving route may add latency for multi-instruction payloads")
	}

	return types.DryRunResult{
		ID:                   "dryrun_" + uuid.New().String(),
		Success:              true,
		SimulatedRPC:         rpcName,
		Strategy:             selection.Strategy,
		Route:                route,
		EstimatedFee:         fee,
		SimulatedExecutionMs: execMs,
		Warnings:             warnings,
		Timestamp:            e.now(),
		IsSimulation:         true,
	}, nil
}

func validate(payload types.Payload) error {
	if payload.InstructionDataTrimmed() == "" {
		return &liminalerrors.ValidationFailure{Reason: "Empty instruction data"}
	}
	if len(payload.Accounts) == 0 {
		return &liminalerrors.ValidationFailure{Reason: "No accounts"}
	}
	if payload.EstimatedAmount < 0 {
		return &liminalerrors.ValidationFailure{Reason: "negative estimated amount"}
	}
	return nil
}

// simulatedRPC deterministically derives the simulated RPC endpoint name and
// privacy flag from the strategy.
func simulatedRPC(strategy types.Strategy) (name string, isPrivate bool) {
	switch strategy {
	case types.StrategyNormal:
		return "public-rpc-1", false
	case types.StrategyRPCPrivacy:
		return "privacy-rpc-1", true
	case types.StrategyEphemeralSender:
		return "ephemeral-relay-1", true
	default:
		return "public-rpc-1", false
	}
}

func buildRoute(rpcName string) []string {
	return []string{"client", rpcName}
}

// estimatedFee is a deterministic function of instruction count and cost
// impact: more instructions and higher cost-impact strategies cost more.
func estimatedFee(instructionCount int, cost types.CostImpact) float64 {
	base := 0.000005 * float64(instructionCount+1)
	switch cost {
	case types.CostImpactLow:
		base *= 1.5
	case types.CostImpactMedium:
		base *= 2.5
	case types.CostImpactHigh:
		base *= 4
	}
	return base
}

// simulatedExecutionMs is a deterministic function of the strategy's
// privacy level: more privacy machinery costs more simulated time.
func simulatedExecutionMs(privacyLevel int) int64 {
	return int64(20 + privacyLevel*3)
}
