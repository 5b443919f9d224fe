package store_test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"aegis/risk-api/internal/domain"
	"aegis/risk-api/internal/store"
)

func assessment(keyID string, score int) domain.RiskAssessment {
	decision := domain.DecisionReview
	switch {
	case score < 30:
		decision = domain.DecisionAccept
	case score >= 60:
		decision = domain.DecisionReject
	}
	return domain.RiskAssessment{
		IdentityID:      keyID,
		RiskScore:       score,
		Decision:        decision,
		RiskLevel:       domain.LevelFor(decision),
		CriticalFactors: []string{},
		ModelUsed:       domain.ModelLocalFallback,
		Timestamp:       time.Now().UTC(),
	}
}

func run(id string, assessments ...domain.RiskAssessment) *domain.AssessmentRun {
	return &domain.AssessmentRun{
		ID:          id,
		CreatedAt:   time.Now().UTC(),
		Mode:        domain.ModeDegraded,
		Assessments: assessments,
		Summary:     domain.Summarize(assessments),
	}
}

// ─── Runs ─────────────────────────────────────────────────────────────────────

func TestSaveAndGetRun(t *testing.T) {
	s := store.New()

	r := run("run-1", assessment("k1", 70), assessment("k2", 10))
	if err := s.SaveRun(r); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	got, ok := s.GetRun("run-1")
	if !ok {
		t.Fatal("run not found after save")
	}
	if len(got.Assessments) != 2 {
		t.Errorf("expected 2 assessments, got %d", len(got.Assessments))
	}
}

func TestSaveRun_Duplicate(t *testing.T) {
	s := store.New()

	if err := s.SaveRun(run("dup")); err != nil {
		t.Fatalf("first save: %v", err)
	}
	if err := s.SaveRun(run("dup")); err != store.ErrDuplicateRun {
		t.Errorf("expected ErrDuplicateRun, got %v", err)
	}
}

func TestGetRun_NotFound(t *testing.T) {
	s := store.New()
	if _, ok := s.GetRun("missing"); ok {
		t.Error("expected not found")
	}
}

func TestGetAssessmentsByKey_AcrossRuns(t *testing.T) {
	s := store.New()

	_ = s.SaveRun(run("r1", assessment("shared", 70), assessment("other", 10)))
	_ = s.SaveRun(run("r2", assessment("shared", 30)))

	history := s.GetAssessmentsByKey("shared")
	if len(history) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(history))
	}
	if history[0].RunID != "r1" || history[1].RunID != "r2" {
		t.Errorf("save order not preserved: %s, %s", history[0].RunID, history[1].RunID)
	}
	if history[0].RiskScore != 70 || history[1].RiskScore != 30 {
		t.Errorf("scores: got %d, %d", history[0].RiskScore, history[1].RiskScore)
	}
}

func TestGetAssessmentsByKey_Unknown(t *testing.T) {
	s := store.New()
	if got := s.GetAssessmentsByKey("nobody"); len(got) != 0 {
		t.Errorf("expected empty history, got %d entries", len(got))
	}
}

func TestGetAssessmentsByKey_ReturnsCopy(t *testing.T) {
	s := store.New()
	_ = s.SaveRun(run("r1", assessment("k1", 40)))

	first := s.GetAssessmentsByKey("k1")
	first[0].RiskScore = 999

	second := s.GetAssessmentsByKey("k1")
	if second[0].RiskScore != 40 {
		t.Error("caller mutation leaked into the store")
	}
}

// ─── Watchlist ────────────────────────────────────────────────────────────────

func TestWatchlist_CheckAndDelete(t *testing.T) {
	s := store.New()

	s.SaveWatchlistEntry(&domain.WatchlistEntry{
		ID: "w1", KeyID: "bad-key", ListType: domain.ListBlock, Reason: "leaked",
	})

	entry, hit := s.CheckWatchlist("bad-key")
	if !hit {
		t.Fatal("expected a watchlist hit")
	}
	if entry.ListType != domain.ListBlock {
		t.Errorf("list type: got %s", entry.ListType)
	}

	if !s.DeleteWatchlistEntry("w1") {
		t.Error("delete should report found")
	}
	if _, hit := s.CheckWatchlist("bad-key"); hit {
		t.Error("entry still active after delete")
	}
	if s.DeleteWatchlistEntry("w1") {
		t.Error("second delete should report not found")
	}
}

func TestWatchlist_ExpiredEntryIgnored(t *testing.T) {
	s := store.New()

	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)
	s.SaveWatchlistEntry(&domain.WatchlistEntry{
		ID: "old", KeyID: "k-old", ListType: domain.ListBlock, ExpiresAt: &past,
	})
	s.SaveWatchlistEntry(&domain.WatchlistEntry{
		ID: "live", KeyID: "k-live", ListType: domain.ListBlock, ExpiresAt: &future,
	})

	if _, hit := s.CheckWatchlist("k-old"); hit {
		t.Error("expired entry must not match")
	}
	if _, hit := s.CheckWatchlist("k-live"); !hit {
		t.Error("unexpired entry must match")
	}

	live := s.ListWatchlistEntries()
	if len(live) != 1 || live[0].ID != "live" {
		t.Errorf("expected only the live entry, got %d entries", len(live))
	}
}

// ─── Webhooks ─────────────────────────────────────────────────────────────────

func TestWebhooks_OnlyActiveListed(t *testing.T) {
	s := store.New()

	s.SaveWebhook(&domain.WebhookConfig{ID: "on", URL: "http://a.example", Active: true})
	s.SaveWebhook(&domain.WebhookConfig{ID: "off", URL: "http://b.example", Active: false})

	active := s.ListActiveWebhooks()
	if len(active) != 1 || active[0].ID != "on" {
		t.Errorf("expected one active webhook, got %d", len(active))
	}

	if !s.DeleteWebhook("on") {
		t.Error("delete should report found")
	}
	if len(s.ListActiveWebhooks()) != 0 {
		t.Error("webhook still listed after delete")
	}
}

// ─── Concurrency ──────────────────────────────────────────────────────────────

func TestConcurrentAccess(t *testing.T) {
	s := store.New()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_ = s.SaveRun(run(fmt.Sprintf("run-%d", i), assessment("hot-key", i)))
		}(i)
		go func() {
			defer wg.Done()
			s.GetAssessmentsByKey("hot-key")
			s.CheckWatchlist("hot-key")
		}()
	}
	wg.Wait()

	if len(s.GetAssessmentsByKey("hot-key")) != 50 {
		t.Errorf("expected 50 indexed assessments, got %d",
			len(s.GetAssessmentsByKey("hot-key")))
	}
}
