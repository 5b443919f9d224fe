// Package scoring implements the local deterministic risk rule for API keys.
//
// The rule is additive: start from a base score, add a fixed penalty for each
// risk signal present on the record, clamp to [0, 100]. Deployments have
// historically run several variants of the same rule (different base scores,
// different penalty sets), so everything is carried on a RuleSet value rather
// than hard-coded: a variant is configuration, not a separate code path.
// Setting a penalty to zero disables its signal.
//
// Scoring is pure and side-effect-free, which is what makes the
// fall-back-on-remote-failure design safe: two invocations over the same
// record always produce the same score and factor list.
package scoring

import (
	"fmt"

	"aegis/risk-api/internal/domain"
)

// RuleSet parameterizes one instance of the scoring rule.
type RuleSet struct {
	Base int // starting score before penalties

	MissingIPPenalty int // added when ip_restriction is absent

	HighUsagePenalty int // added when usage_count exceeds UsageThreshold
	UsageThreshold   int

	StaleRotationPenalty  int // added when last_rotated_days exceeds RotationThresholdDays
	RotationThresholdDays int

	AdminPenalty int // added when the key has admin privilege

	// Decision thresholds, inclusive on the lower bound of each band:
	// score < AcceptBelow          → auto_accept
	// AcceptBelow <= score < RejectAt → human_review
	// score >= RejectAt            → auto_reject
	AcceptBelow int
	RejectAt    int
}

// DefaultRuleSet is the canonical variant: base 30 with the full penalty
// table active. The observed stricter/looser deployments (base 0 or 50,
// usage penalty +15, IP-restriction-only) are expressed by overriding fields.
func DefaultRuleSet() RuleSet {
	return RuleSet{
		Base:                  30,
		MissingIPPenalty:      40,
		HighUsagePenalty:      20,
		UsageThreshold:        10000,
		StaleRotationPenalty:  25,
		RotationThresholdDays: 90,
		AdminPenalty:          30,
		AcceptBelow:           30,
		RejectAt:              60,
	}
}

// Score applies the rule to one record and returns the clamped score together
// with a human-readable factor string per applied penalty.
func (rs RuleSet) Score(rec domain.IdentityRecord) (int, []string) {
	score := rs.Base
	var factors []string

	if rs.MissingIPPenalty > 0 && rec.IPRestriction == nil {
		score += rs.MissingIPPenalty
		factors = append(factors,
			fmt.Sprintf("No IP restriction configured (+%d)", rs.MissingIPPenalty))
	}

	if rs.HighUsagePenalty > 0 && rec.UsageCount > rs.UsageThreshold {
		score += rs.HighUsagePenalty
		factors = append(factors,
			fmt.Sprintf("Usage count %d exceeds %d (+%d)", rec.UsageCount, rs.UsageThreshold, rs.HighUsagePenalty))
	}

	if rs.StaleRotationPenalty > 0 && rec.LastRotatedDays > rs.RotationThresholdDays {
		score += rs.StaleRotationPenalty
		factors = append(factors,
			fmt.Sprintf("Key not rotated for %d days (+%d)", rec.LastRotatedDays, rs.StaleRotationPenalty))
	}

	if rs.AdminPenalty > 0 && rec.IsAdmin {
		score += rs.AdminPenalty
		factors = append(factors,
			fmt.Sprintf("Key has admin privilege (+%d)", rs.AdminPenalty))
	}

	return clamp(score, 0, 100), factors
}

// Decide maps a score to its decision tier and display risk level.
// Thresholds are inclusive on the lower bound: exactly AcceptBelow is
// human_review, exactly RejectAt is auto_reject.
func (rs RuleSet) Decide(score int) (decision, riskLevel string) {
	switch {
	case score < rs.AcceptBelow:
		return domain.DecisionAccept, domain.RiskLow
	case score < rs.RejectAt:
		return domain.DecisionReview, domain.RiskMedium
	default:
		return domain.DecisionReject, domain.RiskHigh
	}
}

func clamp(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
