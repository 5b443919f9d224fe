// Package webhook handles asynchronous notifications to registered webhook URLs
// when a high-risk API key is detected in an assessment run.
//
// Notifications are sent in a goroutine so they never block the HTTP response.
// Failed deliveries are logged but not retried (a production system would use
// a persistent queue with exponential backoff).
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"aegis/risk-api/internal/domain"
	"aegis/risk-api/internal/metrics"
	"aegis/risk-api/internal/store"
)

// Notifier sends webhook payloads to all registered, active endpoints.
type Notifier struct {
	store  *store.Store
	client *http.Client
}

// New creates a Notifier with a sensible default HTTP client timeout.
func New(s *store.Store) *Notifier {
	return &Notifier{
		store: s,
		client: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

// NotifyAsync fires webhook calls in the background for every assessment in
// the run whose score meets a hook's threshold.
func (n *Notifier) NotifyAsync(run *domain.AssessmentRun) {
	hooks := n.store.ListActiveWebhooks()
	for _, wh := range hooks {
		for _, a := range run.Assessments {
			if a.RiskScore >= wh.Threshold {
				go n.send(wh, run.ID, a)
			}
		}
	}
}

// send delivers a single webhook call and logs the outcome.
func (n *Notifier) send(wh *domain.WebhookConfig, runID string, a domain.RiskAssessment) {
	payload := domain.WebhookPayload{
		Event:       "high_risk_key",
		TriggeredAt: time.Now().UTC(),
		RunID:       runID,
		Assessment:  a,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		slog.Error("webhook: failed to marshal payload", "webhook_id", wh.ID, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, wh.URL, bytes.NewReader(body))
	if err != nil {
		slog.Error("webhook: failed to build request", "webhook_id", wh.ID, "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Aegis-Event", "high_risk_key")

	resp, err := n.client.Do(req)
	if err != nil {
		metrics.WebhookDeliveriesTotal.WithLabelValues("failed").Inc()
		slog.Warn("webhook: delivery failed", "webhook_id", wh.ID, "url", wh.URL, "error", err)
		return
	}
	defer resp.Body.Close()

	metrics.WebhookDeliveriesTotal.WithLabelValues("delivered").Inc()
	slog.Info("webhook: delivered",
		"webhook_id", wh.ID,
		"url", wh.URL,
		"status", resp.StatusCode,
		"identity_id", a.IdentityID,
		"risk_score", a.RiskScore,
	)
}
