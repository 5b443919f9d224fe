// Package store provides thread-safe, in-memory storage for the risk API.
//
// Design rationale: assessment runs live only as long as the session that
// produced them, so an in-memory store is the right shape — nothing here needs
// to survive a restart. The by-key-ID index gives O(1) history lookups while
// run retrieval is a direct map hit.
package store

import (
	"errors"
	"sync"
	"time"

	"aegis/risk-api/internal/domain"
)

// ErrDuplicateRun is returned when a run ID is saved twice.
var ErrDuplicateRun = errors.New("run already exists")

// Store is a thread-safe in-memory data store.
type Store struct {
	mu sync.RWMutex

	runs      map[string]*domain.AssessmentRun
	watchlist map[string]*domain.WatchlistEntry
	webhooks  map[string]*domain.WebhookConfig

	// Secondary index: key ID → assessments across runs, append order.
	// Maintained on every run save so per-key history reads stay fast.
	byKeyID map[string][]domain.KeyAssessment
}

// New creates an empty, ready-to-use Store.
func New() *Store {
	return &Store{
		runs:      make(map[string]*domain.AssessmentRun),
		watchlist: make(map[string]*domain.WatchlistEntry),
		webhooks:  make(map[string]*domain.WebhookConfig),
		byKeyID:   make(map[string][]domain.KeyAssessment),
	}
}

// ─── Runs ─────────────────────────────────────────────────────────────────────

// SaveRun persists an assessment run and updates the key index.
// Returns ErrDuplicateRun if the ID already exists.
func (s *Store) SaveRun(run *domain.AssessmentRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.runs[run.ID]; exists {
		return ErrDuplicateRun
	}

	s.runs[run.ID] = run
	for _, a := range run.Assessments {
		s.byKeyID[a.IdentityID] = append(s.byKeyID[a.IdentityID], domain.KeyAssessment{
			RunID:          run.ID,
			RiskAssessment: a,
		})
	}
	return nil
}

// GetRun retrieves a single run by ID.
func (s *Store) GetRun(id string) (*domain.AssessmentRun, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[id]
	return run, ok
}

// GetAssessmentsByKey returns every stored assessment of the given key ID,
// across all runs, in the order they were saved.
func (s *Store) GetAssessmentsByKey(keyID string) []domain.KeyAssessment {
	s.mu.RLock()
	defer s.mu.RUnlock()

	indexed := s.byKeyID[keyID]
	result := make([]domain.KeyAssessment, len(indexed))
	copy(result, indexed)
	return result
}

// ─── Watchlist ────────────────────────────────────────────────────────────────

// SaveWatchlistEntry upserts a watchlist override.
func (s *Store) SaveWatchlistEntry(entry *domain.WatchlistEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watchlist[entry.ID] = entry
}

// DeleteWatchlistEntry removes an entry by ID. Returns false if not found.
func (s *Store) DeleteWatchlistEntry(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, exists := s.watchlist[id]
	if exists {
		delete(s.watchlist, id)
	}
	return exists
}

// CheckWatchlist looks up whether a key ID has an active override.
// Expired entries are silently skipped.
func (s *Store) CheckWatchlist(keyID string) (*domain.WatchlistEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now()
	for _, entry := range s.watchlist {
		if entry.KeyID != keyID {
			continue
		}
		if entry.ExpiresAt != nil && entry.ExpiresAt.Before(now) {
			continue // expired
		}
		return entry, true
	}
	return nil, false
}

// ListWatchlistEntries returns all non-expired entries.
func (s *Store) ListWatchlistEntries() []*domain.WatchlistEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now()
	var result []*domain.WatchlistEntry
	for _, entry := range s.watchlist {
		if entry.ExpiresAt == nil || entry.ExpiresAt.After(now) {
			result = append(result, entry)
		}
	}
	return result
}

// ─── Webhooks ─────────────────────────────────────────────────────────────────

// SaveWebhook persists a webhook configuration.
func (s *Store) SaveWebhook(wh *domain.WebhookConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.webhooks[wh.ID] = wh
}

// DeleteWebhook removes a webhook by ID. Returns false if not found.
func (s *Store) DeleteWebhook(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, exists := s.webhooks[id]
	if exists {
		delete(s.webhooks, id)
	}
	return exists
}

// ListActiveWebhooks returns all webhooks that are currently active.
func (s *Store) ListActiveWebhooks() []*domain.WebhookConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.WebhookConfig
	for _, wh := range s.webhooks {
		if wh.Active {
			result = append(result, wh)
		}
	}
	return result
}
