// Package strategy implements the privacy strategy selector from spec.md
// §4.4, including the hard rule that S3_PRIVACY_RAIL is selectable only when
// the rail adapter reports READY at selection time. The scoring rules are
// grounded on the weighted-factor idiom of the teacher's native/swap/risk.go,
// generalized from limit-checking to strategy scoring; the capability-gated
// selection shape follows
// other_examples/234d870e_certenIO-certen-validator__pkg-chain-strategy-interface.go.go.
package strategy

import (
	"fmt"
	"math"
	"sort"

	"liminal/core/types"
	"liminal/rail"
)

// Inputs bundles everything the selector needs to score every strategy.
type Inputs struct {
	Payload    types.Payload
	RiskScore  types.RiskScore
	OriginTrust float64
	Classification types.Classification
}

// Selector scores the fixed strategy table and selects the best
// implementable strategy.
type Selector struct {
	railAdapter rail.Adapter
}

// New constructs a Selector backed by the given private-rail adapter.
func New(railAdapter rail.Adapter) *Selector {
	return &Selector{railAdapter: railAdapter}
}

type scored struct {
	strategy types.Strategy
	score    float64
	reason   string
}

// Select scores every strategy and returns the chosen selection plus
// alternatives. For every selection s this function produces, if
// s.Strategy == S3_PRIVACY_RAIL then the rail adapter's GetStatus() at
// selection time was READY (spec.md §8); with the default adapter installed
// this is never true.
func (s *Selector) Select(in Inputs) types.StrategySelection {
	railStatus := s.railAdapter.GetStatus()
	scores := []scored{
		scoreS0(in),
		scoreS1(in),
		scoreS2(in),
		s.scoreS3(in, railStatus),
	}

	// Stable order S0,S1,S2,S3 is the input order; sort.SliceStable
	// preserves it as the tie-break when scores are equal.
	ranked := append([]scored(nil), scores...)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	chosenIdx := 0
	for chosenIdx < len(ranked) {
		if ranked[chosenIdx].strategy == types.StrategyPrivacyRail && railStatus != types.RailStatusReady {
			chosenIdx++
			continue
		}
		break
	}
	chosen := ranked[chosenIdx]

	var second scored
	if len(ranked) > chosenIdx+1 {
		second = ranked[chosenIdx+1]
	} else {
		second = scored{score: chosen.score}
	}
	confidence := math.Min(0.95, 0.5+(chosen.score-second.score)/100)
	if confidence < 0 {
		confidence = 0
	}

	profile, _ := types.ProfileFor(chosen.strategy)
	alternatives := make([]types.StrategyAlternative, 0, len(ranked)-1)
	for i, r := range ranked {
		if i == chosenIdx {
			continue
		}
		alternatives = append(alternatives, types.StrategyAlternative{Strategy: r.strategy, Reason: r.reason})
	}

	return types.StrategySelection{
		Strategy:     chosen.strategy,
		Confidence:   confidence,
		Rationale:    rationale(chosen.strategy, profile, in),
		Alternatives: alternatives,
		PrivacyLevel: profile.PrivacyLevel,
		CostImpact:   profile.CostImpact,
	}
}

func scoreS0(in Inputs) scored {
	score := 50.0
	if in.Payload.EstimatedAmount < 1 {
		score += 20
	}
	if in.OriginTrust > 70 {
		score += 20
	}
	switch in.RiskScore.Level {
	case types.RiskLevelLow:
		score += 15
	case types.RiskLevelHigh:
		score -= 35
	}
	return scored{strategy: types.StrategyNormal, score: score, reason: "standard path suffices for low-risk, well-trusted payloads"}
}

func scoreS1(in Inputs) scored {
	score := 40.0
	if in.RiskScore.Level == types.RiskLevelMedium {
		score += 20
	}
	if in.OriginTrust < 50 {
		score += 15
	}
	if in.Payload.InstructionCount <= 1 {
		score += 10
	}
	return scored{strategy: types.StrategyRPCPrivacy, score: score, reason: "RPC-level privacy fits medium risk and simple payloads"}
}

func scoreS2(in Inputs) scored {
	score := 30.0
	if in.RiskScore.Level == types.RiskLevelHigh {
		score += 25
	}
	if in.Payload.EstimatedAmount > 10 {
		score += 15
	}
	if in.Classification.Type == types.TxTypeApproval {
		score += 15
	}
	if in.OriginTrust < 20 {
		score += 20
	}
	return scored{strategy: types.StrategyEphemeralSender, score: score, reason: "ephemeral sender isolates high-risk or high-value payloads"}
}

func (s *Selector) scoreS3(in Inputs, status types.RailStatus) scored {
	if status != types.RailStatusReady {
		return scored{strategy: types.StrategyPrivacyRail, score: 0, reason: rationaleForUnavailableRail(status)}
	}
	caps := s.railAdapter.GetCapabilities()
	score := 20.0
	if caps.HidesSender {
		score += 20
	}
	if caps.HidesAmount {
		score += 15
	}
	if caps.HidesRecipient {
		score += 15
	}
	if in.RiskScore.Level == types.RiskLevelHigh {
		score += 20
	}
	return scored{strategy: types.StrategyPrivacyRail, score: score, reason: "private rail offers maximal privacy for this payload"}
}

func rationaleForUnavailableRail(status types.RailStatus) string {
	if status == types.RailStatusDisabledByPolicy {
		return "Private rail disabled by policy"
	}
	return fmt.Sprintf("Private rail not available: %s", status)
}

func rationale(chosen types.Strategy, profile types.StrategyProfile, in Inputs) string {
	trustBucket := "low"
	switch {
	case in.OriginTrust >= 70:
		trustBucket = "high"
	case in.OriginTrust >= 30:
		trustBucket = "medium"
	}
	return fmt.Sprintf(
		"selected %s (%s): risk=%s(%.1f), origin trust=%s, estimated amount=%.4f, privacy level %d vs cost impact %s",
		chosen, profile.Description, in.RiskScore.Level, in.RiskScore.Score, trustBucket, in.Payload.EstimatedAmount,
		profile.PrivacyLevel, profile.CostImpact,
	)
}
