package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"aegis/risk-api/internal/assess"
	"aegis/risk-api/internal/domain"
	"aegis/risk-api/internal/metrics"
	"aegis/risk-api/internal/store"
	"aegis/risk-api/internal/webhook"
)

// Handler holds the dependencies shared across all HTTP handlers.
type Handler struct {
	store         *store.Store
	scorer        *assess.Scorer
	notifier      *webhook.Notifier
	remoteEnabled bool
}

// NewHandler creates a Handler wired to the given dependencies.
func NewHandler(s *store.Store, sc *assess.Scorer, n *webhook.Notifier, remoteEnabled bool) *Handler {
	return &Handler{store: s, scorer: sc, notifier: n, remoteEnabled: remoteEnabled}
}

// ─── POST /api/v1/runs ────────────────────────────────────────────────────────

// SubmitRun accepts an uploaded api_keys document, scores every record, saves
// the run, and returns the full assessment result synchronously.
//
// Input errors stop the workflow before any scoring or network activity.
func (h *Handler) SubmitRun(w http.ResponseWriter, r *http.Request) {
	// A pointer slice distinguishes a missing api_keys key from an empty one.
	var doc struct {
		APIKeys *[]domain.IdentityRecord `json:"api_keys"`
	}
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		badRequest(w, "INPUT_FORMAT", "uploaded document must be valid JSON")
		return
	}
	if doc.APIKeys == nil {
		badRequest(w, "INPUT_FORMAT", "document must contain an 'api_keys' array")
		return
	}
	records := *doc.APIKeys
	if len(records) == 0 {
		badRequest(w, "INPUT_FORMAT", "'api_keys' must contain at least one record")
		return
	}
	if err := validateRecords(records); err != nil {
		badRequest(w, "VALIDATION_ERROR", err.Error())
		return
	}

	assessments, mode := h.scorer.ScoreBatch(r.Context(), records)

	run := &domain.AssessmentRun{
		ID:          uuid.NewString(),
		CreatedAt:   time.Now().UTC(),
		Mode:        mode,
		Assessments: assessments,
		Summary:     domain.Summarize(assessments),
	}

	if err := h.store.SaveRun(run); err != nil {
		internalError(w)
		return
	}

	metrics.RunsTotal.WithLabelValues(mode).Inc()
	for _, a := range assessments {
		metrics.AssessmentsTotal.WithLabelValues(a.Decision, a.ModelUsed).Inc()
		if a.ModelUsed == domain.ModelErrorFallback {
			metrics.RemoteFallbacksTotal.Inc()
		}
	}

	// Fire async webhook notifications for high-risk keys.
	h.notifier.NotifyAsync(run)

	created(w, run)
}

// ─── GET /api/v1/runs/{id} ────────────────────────────────────────────────────

// GetRun retrieves a previously stored assessment run by its ID.
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	run, exists := h.store.GetRun(id)
	if !exists {
		notFound(w, fmt.Sprintf("run '%s' not found", id))
		return
	}
	ok(w, run)
}

// ─── GET /api/v1/runs/{id}/audit ──────────────────────────────────────────────

// DownloadAudit serves the run's ordered assessments as an indented JSON
// download — the audit artifact. The bytes are reproducible across identical
// runs whenever the scoring path was deterministic.
func (h *Handler) DownloadAudit(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	run, exists := h.store.GetRun(id)
	if !exists {
		notFound(w, fmt.Sprintf("run '%s' not found", id))
		return
	}

	artifact, err := json.MarshalIndent(run.Assessments, "", "  ")
	if err != nil {
		internalError(w)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="aegis_audit_%s.json"`, run.ID))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(artifact)
}

// ─── GET /api/v1/runs/{id}/report ─────────────────────────────────────────────

// GetRunReport returns the score distribution for a run: ten histogram
// buckets of width 10 plus the run summary.
func (h *Handler) GetRunReport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	run, exists := h.store.GetRun(id)
	if !exists {
		notFound(w, fmt.Sprintf("run '%s' not found", id))
		return
	}
	ok(w, buildDistribution(run))
}

func buildDistribution(run *domain.AssessmentRun) domain.ScoreDistribution {
	counts := make([]int, 10)
	for _, a := range run.Assessments {
		idx := a.RiskScore / 10
		if idx > 9 {
			idx = 9 // a score of 100 lands in the last bucket
		}
		counts[idx]++
	}

	buckets := make([]domain.ScoreBucket, 10)
	for i, c := range counts {
		lo, hi := i*10, i*10+9
		if i == 9 {
			hi = 100
		}
		buckets[i] = domain.ScoreBucket{
			Range: fmt.Sprintf("%d-%d", lo, hi),
			Count: c,
		}
	}

	return domain.ScoreDistribution{
		RunID:       run.ID,
		GeneratedAt: time.Now().UTC(),
		Buckets:     buckets,
		Summary:     run.Summary,
	}
}

// ─── GET /api/v1/keys/{keyID}/assessments ─────────────────────────────────────

// GetKeyAssessments returns every stored assessment of a key across runs,
// newest first.
func (h *Handler) GetKeyAssessments(w http.ResponseWriter, r *http.Request) {
	rawKey := chi.URLParam(r, "keyID")
	keyID, _ := url.PathUnescape(rawKey)

	assessments := h.store.GetAssessmentsByKey(keyID)
	sort.Slice(assessments, func(i, j int) bool {
		return assessments[i].Timestamp.After(assessments[j].Timestamp)
	})
	if assessments == nil {
		assessments = []domain.KeyAssessment{}
	}
	ok(w, assessments)
}

// ─── Watchlist ────────────────────────────────────────────────────────────────

// ListWatchlist returns all active watchlist entries.
func (h *Handler) ListWatchlist(w http.ResponseWriter, r *http.Request) {
	entries := h.store.ListWatchlistEntries()
	if entries == nil {
		entries = []*domain.WatchlistEntry{}
	}
	ok(w, entries)
}

// AddWatchlistEntry pins a key ID to the block or allow list.
func (h *Handler) AddWatchlistEntry(w http.ResponseWriter, r *http.Request) {
	var req struct {
		KeyID     string     `json:"key_id"`
		ListType  string     `json:"list_type"`
		Reason    string     `json:"reason"`
		ExpiresAt *time.Time `json:"expires_at,omitempty"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "INVALID_JSON", "request body must be valid JSON")
		return
	}
	if req.KeyID == "" {
		badRequest(w, "MISSING_KEY_ID", "key_id is required")
		return
	}
	if req.ListType != domain.ListBlock && req.ListType != domain.ListAllow {
		badRequest(w, "INVALID_LIST_TYPE", "list_type must be 'block' or 'allow'")
		return
	}

	entry := &domain.WatchlistEntry{
		ID:        uuid.NewString(),
		KeyID:     req.KeyID,
		ListType:  req.ListType,
		Reason:    req.Reason,
		CreatedAt: time.Now().UTC(),
		ExpiresAt: req.ExpiresAt,
	}

	h.store.SaveWatchlistEntry(entry)
	created(w, entry)
}

// DeleteWatchlistEntry removes an entry from the watchlist.
func (h *Handler) DeleteWatchlistEntry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !h.store.DeleteWatchlistEntry(id) {
		notFound(w, fmt.Sprintf("watchlist entry '%s' not found", id))
		return
	}
	noContent(w)
}

// ─── Webhooks ─────────────────────────────────────────────────────────────────

// RegisterWebhook adds a new webhook endpoint.
func (h *Handler) RegisterWebhook(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL       string `json:"url"`
		Threshold int    `json:"threshold"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "INVALID_JSON", "request body must be valid JSON")
		return
	}
	if req.URL == "" {
		badRequest(w, "MISSING_URL", "url is required")
		return
	}
	if req.Threshold < 0 || req.Threshold > 100 {
		badRequest(w, "INVALID_THRESHOLD", "threshold must be between 0 and 100")
		return
	}
	if req.Threshold == 0 {
		req.Threshold = 60 // default to the auto_reject boundary
	}

	wh := &domain.WebhookConfig{
		ID:        uuid.NewString(),
		URL:       req.URL,
		Threshold: req.Threshold,
		CreatedAt: time.Now().UTC(),
		Active:    true,
	}
	h.store.SaveWebhook(wh)
	created(w, wh)
}

// DeleteWebhook deactivates and removes a webhook.
func (h *Handler) DeleteWebhook(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !h.store.DeleteWebhook(id) {
		notFound(w, fmt.Sprintf("webhook '%s' not found", id))
		return
	}
	noContent(w)
}

// ─── Helpers ──────────────────────────────────────────────────────────────────

func validateRecords(records []domain.IdentityRecord) error {
	for i, rec := range records {
		if rec.KeyID == "" {
			return fmt.Errorf("api_keys[%d]: key_id is required", i)
		}
		if rec.UsageCount < 0 {
			return fmt.Errorf("api_keys[%d]: usage_count must not be negative", i)
		}
		if rec.LastRotatedDays < 0 {
			return fmt.Errorf("api_keys[%d]: last_rotated_days must not be negative", i)
		}
	}
	return nil
}
