// Package statemachine owns the canonical store of transaction records and
// enforces the transition graph from spec.md §4.1. It is the sole mutator of
// Record values; every other package receives read-only clones.
package statemachine

import (
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	liminalerrors "liminal/core/errors"
	"liminal/core/events"
	"liminal/core/types"
)

// transitions is the constant transition table from spec.md §4.1. It is the
// single source of truth for legality checks; abort-from-any-non-terminal
// falls out of it naturally because every non-terminal row already lists
// TX_ABORTED as a legal successor (see the Open Question in spec.md §9).
var transitions = map[types.State]map[types.State]struct{}{
	types.StateNew: {
		types.StateClassify: {},
		types.StateAborted:  {},
	},
	types.StateClassify: {
		types.StateRiskScore: {},
		types.StateAborted:   {},
	},
	types.StateRiskScore: {
		types.StateStrategySelect: {},
		types.StateAborted:        {},
	},
	types.StateStrategySelect: {
		types.StatePrepare: {},
		types.StateAborted: {},
	},
	types.StatePrepare: {
		types.StateDryRun:  {},
		types.StateAborted: {},
	},
	types.StateDryRun: {
		types.StateSimulatedConfirm: {},
		types.StateAborted:          {},
		types.StateFailed:           {},
	},
	types.StateSimulatedConfirm: {
		types.StateSignRequested: {},
		types.StateAborted:       {},
	},
	types.StateSignRequested: {
		types.StateSigned:  {},
		types.StateAborted: {},
		types.StateFailed:  {},
	},
	types.StateSigned: {
		types.StateSubmit:  {},
		types.StateAborted: {},
	},
	types.StateSubmit: {
		types.StateConfirmed: {},
		types.StateFailed:    {},
		types.StateAborted:   {},
	},
	types.StateConfirmed: {},
	types.StateFailed:    {},
	types.StateAborted:   {},
}

// CanTransition reports whether target is a legal successor of from.
func CanTransition(from, to types.State) bool {
	successors, ok := transitions[from]
	if !ok {
		return false
	}
	_, ok = successors[to]
	return ok
}

// StateMachine holds the authoritative record store plus a per-context index
// for fast enumeration. All mutations are serialized by mu, matching the
// cooperative single-threaded model in spec.md §5: transitionTo is the
// serialization point a racing caller's loser observes as
// InvalidStateTransition.
type StateMachine struct {
	mu       sync.Mutex
	records  map[string]*types.Record
	byContext map[string][]string
	seq      uint64
	now      func() time.Time
}

// New constructs an empty state machine.
func New() *StateMachine {
	return &StateMachine{
		records:   make(map[string]*types.Record),
		byContext: make(map[string][]string),
		now:       time.Now,
	}
}

// SetClock overrides the time source, for deterministic tests.
func (sm *StateMachine) SetClock(clock func() time.Time) {
	if sm == nil || clock == nil {
		return
	}
	sm.now = clock
}

// nextID derives an opaque, prefixed, monotonically-unique record id. The
// atomic counter guarantees per-process uniqueness ordering without ever
// encoding wall-clock time; the uuid suffix guarantees cross-process
// uniqueness and non-guessability.
func (sm *StateMachine) nextID() string {
	seq := atomic.AddUint64(&sm.seq, 1)
	return "tx_" + encodeSeq(seq) + "_" + strings.ReplaceAll(uuid.New().String(), "-", "")[:12]
}

const seqAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

func encodeSeq(v uint64) string {
	if v == 0 {
		return "0"
	}
	var buf [16]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = seqAlphabet[v%uint64(len(seqAlphabet))]
		v /= uint64(len(seqAlphabet))
	}
	return string(buf[i:])
}

// Create registers a new record in TX_NEW for the given context and payload.
func (sm *StateMachine) Create(contextID string, payload types.Payload) *types.Record {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	now := sm.now()
	id := sm.nextID()
	rec := &types.Record{
		ID:        id,
		ContextID: contextID,
		State:     types.StateNew,
		Payload:   payload.Clone(),
		CreatedAt: now,
		UpdatedAt: now,
		History: []types.HistoryEntry{
			{State: types.StateNew, Timestamp: now.UnixNano()},
		},
	}
	rec.AuditTrail = append(rec.AuditTrail, events.RecordCreated(id, contextID, now))
	sm.records[id] = rec
	sm.byContext[contextID] = append(sm.byContext[contextID], id)
	return rec.Clone()
}

// TransitionTo moves the record to targetState, appending a history entry.
// It fails with *errors.InvalidStateTransition if the move is illegal, or
// liminalerrors.ErrNotFound if id is unknown.
func (sm *StateMachine) TransitionTo(id string, target types.State, reason string) (*types.Record, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	rec, ok := sm.records[id]
	if !ok {
		return nil, liminalerrors.ErrNotFound
	}
	if !CanTransition(rec.State, target) {
		return nil, &liminalerrors.InvalidStateTransition{ID: id, From: rec.State, To: target}
	}
	now := sm.now()
	from := rec.State
	rec.State = target
	rec.UpdatedAt = now
	rec.History = append(rec.History, types.HistoryEntry{State: target, Timestamp: now.UnixNano(), Reason: reason})
	rec.AuditTrail = append(rec.AuditTrail, events.StateTransitioned(id, string(from), string(target), reason, now))
	return rec.Clone(), nil
}

// StageOutputs bundles the optional per-stage fields UpdateStageOutput may
// set. Only non-nil fields are applied; state and history are never touched
// here.
type StageOutputs struct {
	Classification    *types.Classification
	RiskScore         *types.RiskScore
	StrategySelection *types.StrategySelection
	DryRunResult      *types.DryRunResult
	SigningResult     *types.SigningResult
	SubmissionResult  *types.SubmissionResult

	// Stage names the pipeline stage this update came from, for the audit
	// trail event; an empty Stage records no audit event.
	Stage string
}

// UpdateStageOutput attaches stage outputs to a record without touching its
// state or history.
func (sm *StateMachine) UpdateStageOutput(id string, outputs StageOutputs) (*types.Record, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	rec, ok := sm.records[id]
	if !ok {
		return nil, liminalerrors.ErrNotFound
	}
	if outputs.Classification != nil {
		rec.Classification = outputs.Classification
	}
	if outputs.RiskScore != nil {
		rec.RiskScore = outputs.RiskScore
	}
	if outputs.StrategySelection != nil {
		rec.StrategySelection = outputs.StrategySelection
	}
	if outputs.DryRunResult != nil {
		rec.DryRunResult = outputs.DryRunResult
	}
	if outputs.SigningResult != nil {
		rec.SigningResult = outputs.SigningResult
	}
	if outputs.SubmissionResult != nil {
		rec.SubmissionResult = outputs.SubmissionResult
	}
	now := sm.now()
	rec.UpdatedAt = now
	if outputs.Stage != "" {
		rec.AuditTrail = append(rec.AuditTrail, events.StageOutputSet(id, outputs.Stage, now))
	}
	return rec.Clone(), nil
}

// Abort appends an ABORTED entry from any non-terminal state. It fails with
// liminalerrors.ErrNotFound if id is unknown, or *errors.InvalidStateTransition
// if the record is already terminal.
func (sm *StateMachine) Abort(id, reason string) (*types.Record, error) {
	sm.mu.Lock()
	rec, ok := sm.records[id]
	if !ok {
		sm.mu.Unlock()
		return nil, liminalerrors.ErrNotFound
	}
	if rec.State.IsTerminal() {
		from := rec.State
		sm.mu.Unlock()
		return nil, &liminalerrors.InvalidStateTransition{ID: id, From: from, To: types.StateAborted}
	}
	rec.AbortReason = reason
	sm.mu.Unlock()
	return sm.TransitionTo(id, types.StateAborted, reason)
}

// GetTransaction returns a read-only snapshot of the record, or
// liminalerrors.ErrNotFound.
func (sm *StateMachine) GetTransaction(id string) (*types.Record, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	rec, ok := sm.records[id]
	if !ok {
		return nil, liminalerrors.ErrNotFound
	}
	return rec.Clone(), nil
}

// GetContextTransactions returns read-only snapshots of every record owned
// by contextID, oldest first.
func (sm *StateMachine) GetContextTransactions(contextID string) []*types.Record {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	ids := sm.byContext[contextID]
	out := make([]*types.Record, 0, len(ids))
	for _, id := range ids {
		if rec, ok := sm.records[id]; ok {
			out = append(out, rec.Clone())
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// IsTerminal reports whether id's current state has no legal successors.
func (sm *StateMachine) IsTerminal(id string) (bool, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	rec, ok := sm.records[id]
	if !ok {
		return false, liminalerrors.ErrNotFound
	}
	return rec.State.IsTerminal(), nil
}

// ClearContext drops every record owned by contextID, implementing explicit
// context teardown (spec.md §3 lifecycle).
func (sm *StateMachine) ClearContext(contextID string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	for _, id := range sm.byContext[contextID] {
		delete(sm.records, id)
	}
	delete(sm.byContext, contextID)
}

// Hydrate loads records from persistence, restoring both the record map and
// the per-context index. It is the counterpart to persistence snapshot
// loading (spec.md §4.9) and must run before the state machine accepts new
// requests.
func (sm *StateMachine) Hydrate(records []*types.Record) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	for _, rec := range records {
		if rec == nil || rec.ID == "" {
			continue
		}
		sm.records[rec.ID] = rec.Clone()
		sm.byContext[rec.ContextID] = append(sm.byContext[rec.ContextID], rec.ID)
	}
}

// Snapshot returns read-only clones of every record currently held, for
// persistence to serialize.
func (sm *StateMachine) Snapshot() []*types.Record {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	out := make([]*types.Record, 0, len(sm.records))
	for _, rec := range sm.records {
		out = append(out, rec.Clone())
	}
	return out
}
