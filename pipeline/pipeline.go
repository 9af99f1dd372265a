// Package pipeline orchestrates the staged transaction governance flow from
// spec.md §4.8: classify, score risk, select strategy, dry-run, sign, and
// submit, each stage transitioning the record and recording its output or
// aborting on failure. Grounded on the staged, tracer-spanned Process/Abort
// methods of the teacher's services/payoutd processor.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"

	"liminal/audit"
	"liminal/classifier"
	liminalerrors "liminal/core/errors"
	"liminal/core/events"
	"liminal/core/types"
	"liminal/dryrun"
	"liminal/gate"
	"liminal/observability"
	"liminal/rail"
	"liminal/risk"
	"liminal/statemachine"
	"liminal/strategy"
)

var tracer = otel.Tracer("liminal/pipeline")

// Signer is the external signing collaborator the pipeline calls once a
// record reaches TX_SIGN_REQUESTED. It stands in for the hardware/remote
// signer named out of scope in spec.md §1.
type Signer interface {
	Sign(ctx context.Context, payload types.Payload, selection types.StrategySelection) (types.SigningResult, error)
}

// Orchestrator wires every pipeline stage collaborator together and drives
// a record from creation through submission or abort.
type Orchestrator struct {
	sm         *statemachine.StateMachine
	riskScorer *risk.Scorer
	selector   *strategy.Selector
	executor   *dryrun.Executor
	railAdapter rail.Adapter
	gate       *gate.Gate
	signer     Signer
	rpc        gate.RPCClient
	auditLog   *audit.Log
	now        func() time.Time
}

// Config bundles every collaborator an Orchestrator needs.
type Config struct {
	StateMachine *statemachine.StateMachine
	RiskScorer   *risk.Scorer
	Selector     *strategy.Selector
	Executor     *dryrun.Executor
	RailAdapter  rail.Adapter
	Gate         *gate.Gate
	Signer       Signer
	RPC          gate.RPCClient
	AuditLog     *audit.Log
}

// New constructs an Orchestrator from cfg.
func New(cfg Config) *Orchestrator {
	return &Orchestrator{
		sm:          cfg.StateMachine,
		riskScorer:  cfg.RiskScorer,
		selector:    cfg.Selector,
		executor:    cfg.Executor,
		railAdapter: cfg.RailAdapter,
		gate:        cfg.Gate,
		signer:      cfg.Signer,
		rpc:         cfg.RPC,
		auditLog:    cfg.AuditLog,
		now:         time.Now,
	}
}

// SetClock overrides the timestamp source, for deterministic tests.
func (o *Orchestrator) SetClock(clock func() time.Time) {
	if o == nil || clock == nil {
		return
	}
	o.now = clock
}

// CreateTransaction registers a new record for contextID and payload,
// leaving it in TX_NEW.
func (o *Orchestrator) CreateTransaction(ctx context.Context, contextID string, payload types.Payload) *types.Record {
	rec := o.sm.Create(contextID, payload)
	o.auditLog.Record(events.RecordCreated(rec.ID, contextID, o.now()))
	return rec
}

// stageOp wraps a single pipeline stage's side-effecting work with a tracer
// span, a metrics observation, and a uniform abort-on-failure path,
// mirroring the per-stage tracer.Start blocks in the teacher's Process
// method.
func (o *Orchestrator) stageOp(ctx context.Context, name string, id string, fn func(ctx context.Context) error) error {
	ctx, span := tracer.Start(ctx, "pipeline."+name, oteltrace.WithAttributes(attribute.String("tx_id", id)))
	defer span.End()

	start := o.now()
	err := fn(ctx)
	observability.Pipeline().ObserveStage(name, o.now().Sub(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		observability.Pipeline().RecordStageError(name, reasonFor(err))
		return err
	}
	return nil
}

func reasonFor(err error) string {
	switch err.(type) {
	case *liminalerrors.ValidationFailure:
		return "validation_failure"
	case *liminalerrors.InvariantViolation:
		return "invariant_violation"
	case *liminalerrors.CollaboratorFailure:
		return "collaborator_failure"
	default:
		return "error"
	}
}

// abort transitions id to TX_ABORTED and records the audit trail, swallowing
// a further InvalidStateTransition if the record already reached a terminal
// state through a racing caller.
func (o *Orchestrator) abort(id, reason string) {
	rec, err := o.sm.Abort(id, reason)
	if err != nil {
		return
	}
	o.auditLog.Record(events.RecordAborted(id, reason, o.now()))
	o.auditLog.Record(events.StateTransitioned(id, string(rec.History[len(rec.History)-2].State), string(rec.State), reason, o.now()))
}

// RunDryRunPipeline drives a record from TX_NEW through TX_SIMULATED_CONFIRM:
// classify, score risk, select strategy, prepare, and dry-run, transitioning
// and recording stage output at each step, aborting on the first failure.
// originTrust is the caller-supplied reputation input for the record's
// origin (spec.md §4.2); it is not derived internally.
func (o *Orchestrator) RunDryRunPipeline(ctx context.Context, id string, originTrust float64) (*types.Record, error) {
	rec, err := o.sm.GetTransaction(id)
	if err != nil {
		return nil, err
	}

	if err := o.stageOp(ctx, "classify", id, func(ctx context.Context) error {
		classification := classifier.Classify(rec.Payload)
		if _, err := o.sm.UpdateStageOutput(id, statemachine.StageOutputs{Classification: &classification, Stage: "classify"}); err != nil {
			return err
		}
		if _, err := o.sm.TransitionTo(id, types.StateClassify, "classified"); err != nil {
			return err
		}
		o.auditLog.Record(events.StageOutputSet(id, "classify", o.now()))
		rec.Classification = &classification
		return nil
	}); err != nil {
		o.abort(id, fmt.Sprintf("classify failed: %v", err))
		return nil, err
	}

	if err := o.stageOp(ctx, "risk_score", id, func(ctx context.Context) error {
		inputs := types.RiskInputs{
			OriginTrust:      originTrust,
			ContextRisk:      types.ContextRiskMedium,
			TxType:           rec.Classification.Type,
			EstimatedAmount:  rec.Payload.EstimatedAmount,
			KnownDestination: false,
			InstructionCount: rec.Payload.InstructionCount,
		}
		score := o.riskScorer.Score(inputs)
		if _, err := o.sm.UpdateStageOutput(id, statemachine.StageOutputs{RiskScore: &score, Stage: "risk_score"}); err != nil {
			return err
		}
		if _, err := o.sm.TransitionTo(id, types.StateRiskScore, "scored"); err != nil {
			return err
		}
		observability.Pipeline().ObserveRiskScore(string(score.Level), score.Score)
		o.auditLog.Record(events.StageOutputSet(id, "risk_score", o.now()))
		rec.RiskScore = &score
		return nil
	}); err != nil {
		o.abort(id, fmt.Sprintf("risk scoring failed: %v", err))
		return nil, err
	}

	if err := o.stageOp(ctx, "strategy_select", id, func(ctx context.Context) error {
		selection := o.selector.Select(strategy.Inputs{
			Payload:        rec.Payload,
			RiskScore:      *rec.RiskScore,
			OriginTrust:    originTrust,
			Classification: *rec.Classification,
		})
		if _, err := o.sm.UpdateStageOutput(id, statemachine.StageOutputs{StrategySelection: &selection, Stage: "strategy_select"}); err != nil {
			return err
		}
		if _, err := o.sm.TransitionTo(id, types.StateStrategySelect, "strategy selected"); err != nil {
			return err
		}
		observability.Pipeline().RecordStrategySelected(string(selection.Strategy))
		o.auditLog.Record(events.StageOutputSet(id, "strategy_select", o.now()))
		rec.StrategySelection = &selection
		return nil
	}); err != nil {
		o.abort(id, fmt.Sprintf("strategy selection failed: %v", err))
		return nil, err
	}

	if err := o.stageOp(ctx, "prepare", id, func(ctx context.Context) error {
		if rec.StrategySelection.Strategy == types.StrategyPrivacyRail {
			result := o.railAdapter.Prepare(rec.Payload, rec.ContextID)
			if !result.Available {
				return &liminalerrors.InvariantViolation{
					InvariantID: liminalerrors.InvariantStrategyNotImplemented,
					Message:     result.Reason,
					Severity:    liminalerrors.SeverityBlocking,
				}
			}
		}
		if _, err := o.sm.TransitionTo(id, types.StatePrepare, "prepared"); err != nil {
			return err
		}
		return nil
	}); err != nil {
		o.abort(id, fmt.Sprintf("prepare failed: %v", err))
		return nil, err
	}

	var dryRunErr error
	if err := o.stageOp(ctx, "dry_run", id, func(ctx context.Context) error {
		result, err := o.executor.Run(rec.Payload, *rec.StrategySelection)
		if err != nil {
			dryRunErr = err
			return err
		}
		if _, err := o.sm.UpdateStageOutput(id, statemachine.StageOutputs{DryRunResult: &result, Stage: "dry_run"}); err != nil {
			return err
		}
		if _, err := o.sm.TransitionTo(id, types.StateDryRun, "dry run complete"); err != nil {
			return err
		}
		o.auditLog.Record(events.StageOutputSet(id, "dry_run", o.now()))
		rec.DryRunResult = &result
		return nil
	}); err != nil {
		// Both error types dry-run can fail with (a malformed payload or an
		// unimplemented strategy) are payload/strategy-level defects, not
		// external collaborator failures, so the record aborts rather than
		// landing in TX_FAILED.
		if dryRunErr != nil {
			o.abort(id, fmt.Sprintf("dry run failed: %v", dryRunErr))
		}
		return nil, err
	}

	if _, err := o.sm.TransitionTo(id, types.StateSimulatedConfirm, "simulation confirmed"); err != nil {
		return nil, err
	}
	o.auditLog.Record(events.StateTransitioned(id, string(types.StateDryRun), string(types.StateSimulatedConfirm), "simulation confirmed", o.now()))

	return o.sm.GetTransaction(id)
}

// SignTransaction moves a simulated record into TX_SIGN_REQUESTED, invokes
// the signing collaborator, and records the outcome: TX_SIGNED on success,
// TX_FAILED on failure.
func (o *Orchestrator) SignTransaction(ctx context.Context, id string) (*types.Record, error) {
	rec, err := o.sm.GetTransaction(id)
	if err != nil {
		return nil, err
	}
	if _, err := o.sm.TransitionTo(id, types.StateSignRequested, "signing requested"); err != nil {
		return nil, err
	}

	var signResult types.SigningResult
	if err := o.stageOp(ctx, "sign", id, func(ctx context.Context) error {
		if o.signer == nil {
			return &liminalerrors.CollaboratorFailure{Collaborator: "signer", Err: fmt.Errorf("no signer configured")}
		}
		result, err := o.signer.Sign(ctx, rec.Payload, *rec.StrategySelection)
		if err != nil {
			return &liminalerrors.CollaboratorFailure{Collaborator: "signer", Err: err}
		}
		signResult = result
		return nil
	}); err != nil {
		if _, uerr := o.sm.UpdateStageOutput(id, statemachine.StageOutputs{SigningResult: &signResult, Stage: "sign"}); uerr != nil {
			return nil, uerr
		}
		if _, terr := o.sm.TransitionTo(id, types.StateFailed, err.Error()); terr != nil {
			return nil, terr
		}
		return nil, err
	}

	if _, err := o.sm.UpdateStageOutput(id, statemachine.StageOutputs{SigningResult: &signResult, Stage: "sign"}); err != nil {
		return nil, err
	}
	if !signResult.Success {
		if _, err := o.sm.TransitionTo(id, types.StateFailed, signResult.Reason); err != nil {
			return nil, err
		}
		return o.sm.GetTransaction(id)
	}
	if _, err := o.sm.TransitionTo(id, types.StateSigned, "signed"); err != nil {
		return nil, err
	}
	o.auditLog.Record(events.StageOutputSet(id, "sign", o.now()))
	return o.sm.GetTransaction(id)
}

// SubmitTransaction checks the submission gate and, if approved, submits
// through the RPC collaborator wrapped by gate.CreateApprovedClient, the
// pass-through client used only after approval. Any gate denial
// leaves the record in TX_SIGNED, unmutated, so a caller may retry once the
// blocking condition clears.
func (o *Orchestrator) SubmitTransaction(ctx context.Context, id string) (*types.Record, error) {
	rec, err := o.sm.GetTransaction(id)
	if err != nil {
		return nil, err
	}

	decision := o.gate.Check(rec)
	invariantID := ""
	if len(decision.Violations) > 0 {
		invariantID = decision.Violations[0].InvariantID
	}
	o.auditLog.Record(events.GateDecision(id, decision.Allowed, invariantID, o.now()))
	if !decision.Allowed {
		return nil, decision.Violations[0]
	}

	if _, err := o.sm.TransitionTo(id, types.StateSubmit, "submission approved"); err != nil {
		return nil, err
	}

	var submission types.SubmissionResult
	stageErr := o.stageOp(ctx, "submit", id, func(ctx context.Context) error {
		if o.rpc == nil {
			return &liminalerrors.CollaboratorFailure{Collaborator: "rpc", Err: fmt.Errorf("no RPC client configured")}
		}
		approved := gate.CreateApprovedClient(o.rpc)
		result, err := approved.Send(ctx, *rec.SigningResult)
		if err != nil {
			return &liminalerrors.CollaboratorFailure{Collaborator: "rpc", Err: err}
		}
		submission = result
		return nil
	})

	if _, err := o.sm.UpdateStageOutput(id, statemachine.StageOutputs{SubmissionResult: &submission, Stage: "submit"}); err != nil {
		return nil, err
	}

	if stageErr != nil || !submission.Success {
		reason := submission.Reason
		if stageErr != nil {
			reason = stageErr.Error()
		}
		if _, err := o.sm.TransitionTo(id, types.StateFailed, reason); err != nil {
			return nil, err
		}
		return o.sm.GetTransaction(id)
	}

	if _, err := o.sm.TransitionTo(id, types.StateConfirmed, "confirmed"); err != nil {
		return nil, err
	}
	return o.sm.GetTransaction(id)
}

// AbortTransaction aborts id for the supplied operator-facing reason.
func (o *Orchestrator) AbortTransaction(id, reason string) (*types.Record, error) {
	return o.sm.Abort(id, reason)
}

// GetTransaction returns a read-only snapshot of id.
func (o *Orchestrator) GetTransaction(id string) (*types.Record, error) {
	return o.sm.GetTransaction(id)
}

// GetContextTransactions returns every record owned by contextID.
func (o *Orchestrator) GetContextTransactions(contextID string) []*types.Record {
	return o.sm.GetContextTransactions(contextID)
}

// ClearContext drops every record owned by contextID.
func (o *Orchestrator) ClearContext(contextID string) {
	o.sm.ClearContext(contextID)
}

// GetPrivateRailInfo reports the private rail's current capability and
// status, for collaborators that need to decide whether to wait for it.
func (o *Orchestrator) GetPrivateRailInfo() (types.RailCapabilities, types.RailStatus) {
	return o.railAdapter.GetCapabilities(), o.railAdapter.GetStatus()
}
