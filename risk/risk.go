// Package risk implements the deterministic risk scorer from spec.md §4.3,
// generalized from the weighted-factor style of the teacher's
// native/swap/risk.go mint-limit guardrails into a scored-factor model.
package risk

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"

	"liminal/core/types"
)

const baseScore = 50.0

// Weights captures the magnitudes applied to each factor. Exact magnitudes
// are an implementation choice (spec.md §4.3); only the direction of each
// weight is load-bearing and is asserted by the test suite.
type Weights struct {
	OriginTrustScale      float64 `toml:"OriginTrustScale"`
	OriginTrustLowPenalty float64 `toml:"OriginTrustLowPenalty"`
	ContextRiskLow        float64 `toml:"ContextRiskLow"`
	ContextRiskHigh       float64 `toml:"ContextRiskHigh"`
	AmountScale           float64 `toml:"AmountScale"`
	KnownDestinationBonus float64 `toml:"KnownDestinationBonus"`
	InstructionCountPenalty float64 `toml:"InstructionCountPenalty"`
	TxTypeUnknownPenalty  float64 `toml:"TxTypeUnknownPenalty"`
	TxTypeApprovalPenalty float64 `toml:"TxTypeApprovalPenalty"`
	TxTypeSwapPenalty     float64 `toml:"TxTypeSwapPenalty"`
}

// LoadWeightsFile reads an operator-editable TOML weight table, the same way
// the teacher's config package loads its own TOML configuration via
// toml.DecodeFile. Fields absent from the file keep their DefaultWeights
// magnitude rather than zeroing out.
func LoadWeightsFile(path string) (Weights, error) {
	w := DefaultWeights()
	if _, err := toml.DecodeFile(path, &w); err != nil {
		return Weights{}, fmt.Errorf("risk: decode weights file %s: %w", path, err)
	}
	return w, nil
}

// DefaultWeights mirrors the direction requirements of spec.md §4.3.
func DefaultWeights() Weights {
	return Weights{
		OriginTrustScale:        20,
		OriginTrustLowPenalty:   15,
		ContextRiskLow:          -10,
		ContextRiskHigh:         20,
		AmountScale:             15,
		KnownDestinationBonus:   -12,
		InstructionCountPenalty: 10,
		TxTypeUnknownPenalty:    10,
		TxTypeApprovalPenalty:   8,
		TxTypeSwapPenalty:       3,
	}
}

// Scorer computes deterministic risk scores. The clock is only used to
// timestamp the output; it never influences the score itself.
type Scorer struct {
	weights Weights
	now     func() time.Time
}

// New constructs a Scorer with the supplied weights.
func New(weights Weights) *Scorer {
	return &Scorer{weights: weights, now: time.Now}
}

// SetClock overrides the timestamp source, for deterministic tests.
func (s *Scorer) SetClock(clock func() time.Time) {
	if s == nil || clock == nil {
		return
	}
	s.now = clock
}

// Score computes a deterministic risk score for the supplied inputs. For
// all inputs, Score is deterministic and the returned Score field clamps
// to [0,100] (spec.md §8).
func (s *Scorer) Score(in types.RiskInputs) types.RiskScore {
	w := s.weights
	total := baseScore
	factors := make([]types.RiskFactor, 0, 6)

	// originTrust: higher lowers score; <30 adds a HIGH factor.
	trustDelta := -((in.OriginTrust - 50) / 50) * w.OriginTrustScale
	total += trustDelta
	factors = append(factors, types.RiskFactor{
		Name:        "origin_trust",
		Description: fmt.Sprintf("origin trust %.0f contributes %+.1f", in.OriginTrust, trustDelta),
		Delta:       trustDelta,
	})
	if in.OriginTrust < 30 {
		total += w.OriginTrustLowPenalty
		factors = append(factors, types.RiskFactor{
			Name:        "origin_trust_low",
			Description: "origin trust below 30 adds an additional high-risk factor",
			Delta:       w.OriginTrustLowPenalty,
		})
	}

	// contextRisk: LOW subtracts, HIGH adds, MEDIUM neutral.
	switch in.ContextRisk {
	case types.ContextRiskLow:
		total += w.ContextRiskLow
		factors = append(factors, types.RiskFactor{Name: "context_risk", Description: "low-risk browsing context", Delta: w.ContextRiskLow})
	case types.ContextRiskHigh:
		total += w.ContextRiskHigh
		factors = append(factors, types.RiskFactor{Name: "context_risk", Description: "high-risk browsing context", Delta: w.ContextRiskHigh})
	}

	// estimatedAmount: monotonically non-decreasing contribution above 0.1.
	if in.EstimatedAmount > 0.1 {
		amountDelta := amountContribution(in.EstimatedAmount) * w.AmountScale
		total += amountDelta
		factors = append(factors, types.RiskFactor{
			Name:        "estimated_amount",
			Description: fmt.Sprintf("amount %.4f contributes %+.1f", in.EstimatedAmount, amountDelta),
			Delta:       amountDelta,
		})
	}

	// knownDestination: true subtracts a fixed amount.
	if in.KnownDestination {
		total += w.KnownDestinationBonus
		factors = append(factors, types.RiskFactor{Name: "known_destination", Description: "destination previously observed", Delta: w.KnownDestinationBonus})
	}

	// instructionCount: > 5 adds a factor.
	if in.InstructionCount > 5 {
		total += w.InstructionCountPenalty
		factors = append(factors, types.RiskFactor{Name: "instruction_count", Description: "instruction count exceeds 5", Delta: w.InstructionCountPenalty})
	}

	// txType: UNKNOWN and APPROVAL add; TRANSFER neutral; SWAP mildly positive.
	switch in.TxType {
	case types.TxTypeUnknown:
		total += w.TxTypeUnknownPenalty
		factors = append(factors, types.RiskFactor{Name: "tx_type", Description: "unclassified transaction type", Delta: w.TxTypeUnknownPenalty})
	case types.TxTypeApproval:
		total += w.TxTypeApprovalPenalty
		factors = append(factors, types.RiskFactor{Name: "tx_type", Description: "approval/delegation grants ongoing authority", Delta: w.TxTypeApprovalPenalty})
	case types.TxTypeSwap:
		total += w.TxTypeSwapPenalty
		factors = append(factors, types.RiskFactor{Name: "tx_type", Description: "swap introduces routing risk", Delta: w.TxTypeSwapPenalty})
	}

	total = clamp(total, 0, 100)
	return types.RiskScore{
		Level:     levelFor(total),
		Score:     total,
		Factors:   factors,
		Timestamp: s.now(),
	}
}

// amountContribution is a monotonically non-decreasing function of amount
// in (0, +inf), saturating so extreme amounts cannot push the score beyond
// the clamp on their own.
func amountContribution(amount float64) float64 {
	// log1p-shaped growth: small amounts contribute little, large amounts
	// saturate rather than diverging.
	x := amount
	contribution := 0.0
	for x > 1 && contribution < 1 {
		contribution += 0.15
		x /= 10
	}
	if contribution > 1 {
		contribution = 1
	}
	if amount > 0.1 && contribution < 0.05 {
		contribution = 0.05
	}
	return contribution
}

func levelFor(score float64) types.RiskLevel {
	switch {
	case score < 30:
		return types.RiskLevelLow
	case score <= 60:
		return types.RiskLevelMedium
	default:
		return types.RiskLevelHigh
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
