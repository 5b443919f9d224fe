// Package assess orchestrates risk scoring for uploaded key files.
//
// Architecture:
//   The Scorer is stateless — it reads watchlist overrides from the store but
//   never writes to it. Persisting a run happens in the HTTP handler after
//   scoring.
//
// Failure semantics:
//   The Scorer never surfaces an error to its caller. When the remote
//   workflow is unavailable, times out, or returns anything that fails schema
//   validation, every affected record degrades to the local deterministic
//   rule, tagged error_fallback with a factor naming the cause. A possibly
//   less accurate answer always beats no answer.
package assess

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"aegis/risk-api/internal/domain"
	"aegis/risk-api/internal/remote"
	"aegis/risk-api/internal/scoring"
	"aegis/risk-api/internal/store"
)

// Scorer scores identity records, delegating to the remote workflow when one
// is configured and recovering with the local rule when it is not, or fails.
type Scorer struct {
	rules  scoring.RuleSet
	remote *remote.Client // nil when the remote path is not configured
	store  *store.Store
}

// New creates a Scorer. Pass a nil client to run in degraded local-only mode.
func New(rules scoring.RuleSet, rc *remote.Client, s *store.Store) *Scorer {
	return &Scorer{rules: rules, remote: rc, store: s}
}

// Score assesses a single record. See ScoreBatch for the semantics.
func (sc *Scorer) Score(ctx context.Context, rec domain.IdentityRecord) domain.RiskAssessment {
	out, _ := sc.ScoreBatch(ctx, []domain.IdentityRecord{rec})
	return out[0]
}

// ScoreBatch assesses every record and returns the assessments in input
// order, plus the run mode. The remote workflow is called once for the whole
// batch; records it did not validly answer fall back to the local rule.
// Records are independent, so the per-record assembly fans out and joins.
func (sc *Scorer) ScoreBatch(ctx context.Context, records []domain.IdentityRecord) ([]domain.RiskAssessment, string) {
	mode := domain.ModeDegraded
	var remoteResults map[string]remote.Result
	var remoteErr error

	if sc.remote != nil {
		mode = domain.ModeRemote
		remoteResults, remoteErr = sc.remote.ScoreBatch(ctx, domain.KeyFile{APIKeys: records})
		if remoteErr != nil {
			slog.Warn("remote scoring failed, falling back to local rule",
				"keys", len(records), "error", remoteErr)
		}
	}

	results := make([]domain.RiskAssessment, len(records))
	var wg sync.WaitGroup
	for i := range records {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = sc.scoreOne(records[i], remoteResults, remoteErr)
		}(i)
	}
	wg.Wait()

	return results, mode
}

// scoreOne produces the assessment for a single record:
// watchlist override → remote result → fallback rule.
func (sc *Scorer) scoreOne(rec domain.IdentityRecord, remoteResults map[string]remote.Result, remoteErr error) domain.RiskAssessment {
	if entry, hit := sc.store.CheckWatchlist(rec.KeyID); hit {
		return sc.fromWatchlist(rec, entry)
	}

	if sc.remote == nil {
		return sc.fallback(rec, domain.ModelLocalFallback)
	}

	if remoteErr != nil {
		return sc.fallback(rec, domain.ModelErrorFallback,
			fmt.Sprintf("Remote scoring unavailable: %v", remoteErr))
	}

	res, ok := remoteResults[rec.KeyID]
	if !ok {
		return sc.fallback(rec, domain.ModelErrorFallback,
			"Remote scoring response did not include this key")
	}

	return assemble(rec.KeyID, res.RiskScore, res.Decision, res.Factors, domain.ModelRemote)
}

// fallback applies the deterministic local rule. Extra factors (the failure
// cause, when there is one) are prepended to the rule's own factor list.
func (sc *Scorer) fallback(rec domain.IdentityRecord, model string, extra ...string) domain.RiskAssessment {
	score, factors := sc.rules.Score(rec)
	decision, _ := sc.rules.Decide(score)
	return assemble(rec.KeyID, score, decision, append(extra, factors...), model)
}

func (sc *Scorer) fromWatchlist(rec domain.IdentityRecord, entry *domain.WatchlistEntry) domain.RiskAssessment {
	if entry.ListType == domain.ListAllow {
		return assemble(rec.KeyID, 0, domain.DecisionAccept,
			[]string{fmt.Sprintf("Key '%s' is on the allowlist: %s", rec.KeyID, entry.Reason)},
			domain.ModelWatchlist)
	}
	return assemble(rec.KeyID, 100, domain.DecisionReject,
		[]string{fmt.Sprintf("Key '%s' is on the blocklist: %s", rec.KeyID, entry.Reason)},
		domain.ModelWatchlist)
}

// assemble builds the immutable assessment value. The timestamp is set here,
// once, and never touched again.
func assemble(keyID string, score int, decision string, factors []string, model string) domain.RiskAssessment {
	if factors == nil {
		factors = []string{}
	}
	return domain.RiskAssessment{
		IdentityID:      keyID,
		RiskScore:       score,
		Decision:        decision,
		RiskLevel:       domain.LevelFor(decision),
		CriticalFactors: factors,
		ModelUsed:       model,
		Timestamp:       time.Now().UTC(),
	}
}
