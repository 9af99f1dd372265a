// Package audit records the append-only audit trail of pipeline events and
// assembles the public receipt view of a record (spec.md §4.8, §6). It wraps
// the structured logging idiom of observability/logging, redacting attribute
// values the allowlist does not cover, and optionally mirrors events to a
// rotated on-disk log via lumberjack the way a long-running daemon would
// retain history beyond process lifetime.
package audit

import (
	"log/slog"

	"gopkg.in/natefinch/lumberjack.v2"

	"liminal/core/events"
	"liminal/core/types"
	"liminal/observability/logging"
)

// Log is the audit sink every pipeline stage writes to.
type Log struct {
	logger *slog.Logger
	writer *lumberjack.Logger
}

// New constructs an audit log writing structured entries through logger.
// logger may be nil, in which case Record is a no-op; this lets tests
// construct an Orchestrator without wiring a logger.
func New(logger *slog.Logger) *Log {
	return &Log{logger: logger}
}

// NewRotating constructs an audit log that writes newline-delimited JSON
// audit entries to path, rotated by lumberjack once it exceeds maxSizeMB.
// Entries go only to that file; logger is not used. The returned Log's
// Close method must be called during shutdown to flush the rotation writer.
func NewRotating(logger *slog.Logger, path string, maxSizeMB int) *Log {
	writer := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: 10,
		MaxAge:     30,
		Compress:   true,
	}
	handler := slog.NewJSONHandler(writer, nil)
	fileLogger := slog.New(handler)
	return &Log{logger: fileLogger, writer: writer}
}

// Record writes ev to the audit sink, redacting any attribute value whose key
// is not on the logging allowlist.
func (l *Log) Record(ev events.Event) {
	if l == nil || l.logger == nil {
		return
	}
	attrs := make([]any, 0, len(ev.Attributes)*2+2)
	attrs = append(attrs, slog.String("event_type", ev.Type))
	for k, v := range ev.Attributes {
		attrs = append(attrs, logging.MaskField(k, v))
	}
	l.logger.Info("audit_event", attrs...)
}

// Close flushes and closes the rotation writer, if one was configured.
func (l *Log) Close() error {
	if l == nil || l.writer == nil {
		return nil
	}
	return l.writer.Close()
}

// Receipt is the public, read-only summary of a record's current state,
// matching spec.md §6's receipt shape.
type Receipt struct {
	TxID                string                    `json:"txId"`
	State               types.State               `json:"state"`
	Submitted           bool                      `json:"submitted"`
	Classification      *types.Classification      `json:"classification,omitempty"`
	RiskScore           *types.RiskScore           `json:"riskScore,omitempty"`
	StrategySelection   *types.StrategySelection   `json:"strategySelection,omitempty"`
	DryRunResult        *types.DryRunResult        `json:"dryRunResult,omitempty"`
	SigningResult       *types.SigningResult       `json:"signingResult,omitempty"`
	SubmissionResult    *types.SubmissionResult    `json:"submissionResult,omitempty"`
	PrivateRailAvailable bool                      `json:"privateRailAvailable"`
	PrivateRailStatus   types.RailStatus          `json:"privateRailStatus"`
	PrivateRailReason   string                    `json:"privateRailReason,omitempty"`
	IsSimulation        bool                      `json:"isSimulation"`
	AbortReason         string                    `json:"abortReason,omitempty"`
	AuditTrail          []events.Event            `json:"auditTrail,omitempty"`
}

// BuildReceipt assembles the public receipt for rec, using the caller-supplied
// current (not historical) private rail status, availability, and reason.
func BuildReceipt(rec *types.Record, railStatus types.RailStatus, railAvailable bool, railReason string) Receipt {
	return Receipt{
		TxID:                 rec.ID,
		State:                rec.State,
		Submitted:            rec.State == types.StateSubmit || rec.State == types.StateConfirmed,
		Classification:       rec.Classification,
		RiskScore:            rec.RiskScore,
		StrategySelection:    rec.StrategySelection,
		DryRunResult:         rec.DryRunResult,
		SigningResult:        rec.SigningResult,
		SubmissionResult:     rec.SubmissionResult,
		PrivateRailAvailable: railAvailable,
		PrivateRailStatus:    railStatus,
		PrivateRailReason:    railReason,
		IsSimulation:         rec.DryRunResult != nil && rec.DryRunResult.IsSimulation,
		AbortReason:          rec.AbortReason,
		AuditTrail:           rec.AuditTrail,
	}
}
