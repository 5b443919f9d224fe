// Package domain contains all core types used across the application.
// Keeping domain types in one place makes the risk assessment flow easy to reason about.
package domain

import (
	"encoding/json"
	"time"
)

// ─── Constants ───────────────────────────────────────────────────────────────

// Decision tiers for downstream key management.
const (
	DecisionAccept = "auto_accept"  // low risk, no action required
	DecisionReview = "human_review" // route to a security reviewer
	DecisionReject = "auto_reject"  // rotate / revoke immediately
)

// Risk level labels that correspond to decision tiers.
// These drive the card colouring in the dashboard shell.
const (
	RiskLow    = "low"    // auto_accept
	RiskMedium = "medium" // human_review
	RiskHigh   = "high"   // auto_reject
)

// Model tags recorded on every assessment so consumers can tell which
// scoring path produced it.
const (
	ModelRemote        = "remote_llm"         // remote workflow answered
	ModelLocalFallback = "local_fallback"     // remote not configured, rule applied directly
	ModelErrorFallback = "error_fallback"     // remote failed, rule applied in recovery
	ModelWatchlist     = "watchlist_override" // manual watchlist entry short-circuited scoring
)

// Run modes.
const (
	ModeRemote   = "remote"   // remote workflow credentials configured
	ModeDegraded = "degraded" // local-only scoring
)

// List types for watchlist entries.
const (
	ListBlock = "block"
	ListAllow = "allow"
)

// RotationUnknown is the sentinel assigned to last_rotated_days when the
// uploaded record omits the field: an unknown rotation age counts as very stale.
const RotationUnknown = 999

// ─── Core domain types ────────────────────────────────────────────────────────

// IdentityRecord is one API key / machine credential under evaluation,
// as it appears in the uploaded key file.
type IdentityRecord struct {
	KeyID           string  `json:"key_id"`
	IPRestriction   *string `json:"ip_restriction"` // nil means no restriction configured
	UsageCount      int     `json:"usage_count"`
	IsAdmin         bool    `json:"is_admin"`
	LastRotatedDays int     `json:"last_rotated_days"`
}

// UnmarshalJSON applies the upload-format defaults: usage_count also accepts
// the usage_count_last_30d alias (usage_count wins when both are present),
// and a missing last_rotated_days becomes RotationUnknown.
func (r *IdentityRecord) UnmarshalJSON(data []byte) error {
	var raw struct {
		KeyID           string  `json:"key_id"`
		IPRestriction   *string `json:"ip_restriction"`
		UsageCount      *int    `json:"usage_count"`
		UsageCount30d   *int    `json:"usage_count_last_30d"`
		IsAdmin         *bool   `json:"is_admin"`
		LastRotatedDays *int    `json:"last_rotated_days"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	r.KeyID = raw.KeyID
	r.IPRestriction = raw.IPRestriction

	switch {
	case raw.UsageCount != nil:
		r.UsageCount = *raw.UsageCount
	case raw.UsageCount30d != nil:
		r.UsageCount = *raw.UsageCount30d
	default:
		r.UsageCount = 0
	}

	r.IsAdmin = raw.IsAdmin != nil && *raw.IsAdmin

	if raw.LastRotatedDays != nil {
		r.LastRotatedDays = *raw.LastRotatedDays
	} else {
		r.LastRotatedDays = RotationUnknown
	}
	return nil
}

// KeyFile is the uploaded document: an ordered sequence of identity records
// under the required api_keys field.
type KeyFile struct {
	APIKeys []IdentityRecord `json:"api_keys"`
}

// RiskAssessment is the result of scoring one identity record.
// Assessments are immutable once created; a repeated scoring call produces an
// independent new assessment.
type RiskAssessment struct {
	IdentityID      string    `json:"identity_id"`
	RiskScore       int       `json:"risk_score"` // 0-100, clamped
	Decision        string    `json:"decision"`   // auto_accept / human_review / auto_reject
	RiskLevel       string    `json:"risk_level"` // low / medium / high
	CriticalFactors []string  `json:"critical_factors"`
	ModelUsed       string    `json:"model_used"`
	Timestamp       time.Time `json:"timestamp"` // assignment time, immutable
}

// LevelFor maps a decision tier to its display risk level.
func LevelFor(decision string) string {
	switch decision {
	case DecisionReject:
		return RiskHigh
	case DecisionReview:
		return RiskMedium
	default:
		return RiskLow
	}
}

// ─── Assessment runs ──────────────────────────────────────────────────────────

// AssessmentRun is one scored upload: the ordered assessments for every record
// in the submitted key file.
type AssessmentRun struct {
	ID          string           `json:"id"`
	CreatedAt   time.Time        `json:"created_at"`
	Mode        string           `json:"mode"` // remote / degraded
	Assessments []RiskAssessment `json:"assessments"`
	Summary     RunSummary       `json:"summary"`
}

// RunSummary holds headline counts for a run.
type RunSummary struct {
	TotalKeys      int     `json:"total_keys"`
	AutoAccepted   int     `json:"auto_accepted"`
	HumanReview    int     `json:"human_review"`
	AutoRejected   int     `json:"auto_rejected"`
	RemoteScored   int     `json:"remote_scored"`
	FallbackScored int     `json:"fallback_scored"`
	AvgRiskScore   float64 `json:"avg_risk_score"`
}

// Summarize aggregates headline counts over a run's assessments.
func Summarize(assessments []RiskAssessment) RunSummary {
	var sum RunSummary
	sum.TotalKeys = len(assessments)

	var totalScore int
	for _, a := range assessments {
		totalScore += a.RiskScore
		switch a.Decision {
		case DecisionReject:
			sum.AutoRejected++
		case DecisionReview:
			sum.HumanReview++
		default:
			sum.AutoAccepted++
		}
		switch a.ModelUsed {
		case ModelRemote:
			sum.RemoteScored++
		case ModelLocalFallback, ModelErrorFallback:
			sum.FallbackScored++
		}
	}
	if len(assessments) > 0 {
		sum.AvgRiskScore = float64(totalScore) / float64(len(assessments))
	}
	return sum
}

// KeyAssessment is an assessment annotated with the run that produced it,
// used by the per-key history lookup.
type KeyAssessment struct {
	RunID string `json:"run_id"`
	RiskAssessment
}

// ─── Score distribution report ────────────────────────────────────────────────

/// ScoreDistribution is the histogram report for a run: ten score buckets of
// width 10 (the last bucket includes 100) plus the run summary.
type ScoreDistribution struct {
	RunID       string        `json:"run_id"`
	GeneratedAt time.Time     `json:"generated_at"`
	Buckets     []ScoreBucket `json:"buckets"`
	Summary     RunSummary    `json:"summary"`
}

// ScoreBucket is one histogram bin.
type ScoreBucket struct {
	Range string `json:"range"` // e.g. "30-39"
	Count int    `json:"count"`
}

// ─── Watchlist ────────────────────────────────────────────────────────────────

// WatchlistEntry is a manually managed override for a key ID.
// Blocked keys immediately score 100 / auto_reject.
// Allowed keys short-circuit scoring to 0 / auto_accept.
type WatchlistEntry struct {
	ID        string     `json:"id"`
	KeyID     string     `json:"key_id"`
	ListType  string     `json:"list_type"` // block | allow
	Reason    string     `json:"reason"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"` // nil = permanent
}

// ─── Webhooks ─────────────────────────────────────────────────────────────────

// WebhookConfig is a registered callback that receives real-time alerts when
// an assessed key's score meets the threshold.
type WebhookConfig struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Threshold int       `json:"threshold"` // fire when risk_score >= this value
	CreatedAt time.Time `json:"created_at"`
	Active    bool      `json:"active"`
}

// WebhookPayload is the body sent to registered webhook URLs.
type WebhookPayload struct {
	Event       string         `json:"event"` // always "high_risk_key"
	TriggeredAt time.Time      `json:"triggered_at"`
	RunID       string         `json:"run_id"`
	Assessment  RiskAssessment `json:"assessment"`
}
