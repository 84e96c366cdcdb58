// Package anomaly runs asynchronous anomaly analysis over newly appended
// ledger events and records verdicts as append-only annotations.
package anomaly

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Verdict is the scorer's answer for one identifier.
type Verdict struct {
	IsAnomaly bool   `json:"is_anomaly"`
	Reason    string `json:"reason,omitempty"`
}

// Scorer is the external anomaly-scoring function. Implementations score the
// whole event sequence of an identifier, not a single event.
type Scorer interface {
	Score(ctx context.Context, vtiID string) (Verdict, error)
}

// HTTPScorer calls an external scoring service: POST {"vti_id": ...} to the
// configured URL, expecting a Verdict in response.
type HTTPScorer struct {
	url        string
	httpClient *http.Client
}

// NewHTTPScorer creates a scorer client for the given endpoint URL.
func NewHTTPScorer(url string) *HTTPScorer {
	return &HTTPScorer{
		url:        strings.TrimRight(url, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (s *HTTPScorer) Score(ctx context.Context, vtiID string) (Verdict, error) {
	body, err := json.Marshal(map[string]string{"vti_id": vtiID})
	if err != nil {
		return Verdict{}, fmt.Errorf("marshaling score request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return Verdict{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return Verdict{}, fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Verdict{}, fmt.Errorf("scorer returned %d: %s", resp.StatusCode, data)
	}

	var v Verdict
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		return Verdict{}, fmt.Errorf("decoding verdict: %w", err)
	}
	return v, nil
}
