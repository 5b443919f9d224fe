// Package remote is the HTTP client for the external workflow scoring service.
//
// The service runs an LLM-backed workflow over the uploaded key file and
// returns per-key assessments. Its output is treated as untrusted input:
// every returned entry is schema-validated before it is allowed anywhere near
// a caller, and any violation fails the whole call. Callers are expected to
// recover from a failed call with the local scoring rule.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"aegis/risk-api/internal/domain"
)

// DefaultTimeout bounds one workflow run call, observed from the service's
// production configuration.
const DefaultTimeout = 15 * time.Second

// Client calls the workflow service's run endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	workflowID string
	client     *http.Client
}

// NewClient creates a workflow client. A non-positive timeout falls back to
// DefaultTimeout.
func NewClient(baseURL, apiKey, workflowID string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		workflowID: workflowID,
		client:     &http.Client{Timeout: timeout},
	}
}

// Result is one schema-valid remote assessment.
type Result struct {
	IdentityID string
	RiskScore  int
	Decision   string
	Factors    []string
}

// ─── Wire types ───────────────────────────────────────────────────────────────

type runRequest struct {
	Inputs runInputs `json:"inputs"`
}

type runInputs struct {
	APIKeysJSONFile domain.KeyFile `json:"api_keys_json_file"`
}

type runResponse struct {
	Outputs struct {
		// AuditJSON is a JSON document encoded as a string — the workflow
		// engine serialises its final node's output twice.
		AuditJSON string `json:"audit_json"`
	} `json:"outputs"`
}

// wireAssessment uses pointers for required fields so a missing field is
// distinguishable from a zero value during validation.
type wireAssessment struct {
	IdentityID      string   `json:"identity_id"`
	RiskScore       *int     `json:"risk_score"`
	Decision        string   `json:"decision"`
	CriticalFactors []string `json:"critical_factors"`
}

// ─── Calls ────────────────────────────────────────────────────────────────────

// ScoreBatch submits the whole key file to the workflow and returns the valid
// assessments keyed by identity ID. Any failure — transport, non-2xx status,
// malformed body, or a schema violation in any returned entry — is an error;
// no partially validated result ever escapes.
func (c *Client) ScoreBatch(ctx context.Context, file domain.KeyFile) (map[string]Result, error) {
	body, err := json.Marshal(runRequest{Inputs: runInputs{APIKeysJSONFile: file}})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	url := fmt.Sprintf("%s/api/workflows/%s/run", c.baseURL, c.workflowID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("workflow request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("workflow error (status %d): %s", resp.StatusCode, truncate(raw, 200))
	}

	var run runResponse
	if err := json.Unmarshal(raw, &run); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if run.Outputs.AuditJSON == "" {
		return nil, fmt.Errorf("response missing outputs.audit_json")
	}

	var entries []wireAssessment
	if err := json.Unmarshal([]byte(run.Outputs.AuditJSON), &entries); err != nil {
		return nil, fmt.Errorf("parse audit_json: %w", err)
	}

	results := make(map[string]Result, len(entries))
	for i, e := range entries {
		if err := validate(e); err != nil {
			return nil, fmt.Errorf("audit_json entry %d: %w", i, err)
		}
		results[e.IdentityID] = Result{
			IdentityID: e.IdentityID,
			RiskScore:  *e.RiskScore,
			Decision:   e.Decision,
			Factors:    e.CriticalFactors,
		}
	}
	return results, nil
}

// validate enforces the response contract: non-empty identity, a score in
// [0, 100], and a decision from the three-value enumeration.
func validate(e wireAssessment) error {
	if e.IdentityID == "" {
		return fmt.Errorf("missing identity_id")
	}
	if e.RiskScore == nil {
		return fmt.Errorf("missing risk_score for '%s'", e.IdentityID)
	}
	if *e.RiskScore < 0 || *e.RiskScore > 100 {
		return fmt.Errorf("risk_score %d out of range for '%s'", *e.RiskScore, e.IdentityID)
	}
	switch e.Decision {
	case domain.DecisionAccept, domain.DecisionReview, domain.DecisionReject:
	default:
		return fmt.Errorf("unknown decision '%s' for '%s'", e.Decision, e.IdentityID)
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
