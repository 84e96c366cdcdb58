package actors

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/harvestlink/traceledger/internal/model"
)

// HTTPDirectory implements Directory against the platform's profile service.
// It POSTs the id batch to /v1/profiles/batch and expects
// {"profiles": [{"id": ..., "name": ..., "role": ..., "avatar_url": ...}]}.
type HTTPDirectory struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewHTTPDirectory creates a directory client targeting the given base URL.
// When token is non-empty, an Authorization header is set on every request.
func NewHTTPDirectory(baseURL, token string) *HTTPDirectory {
	return &HTTPDirectory{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Lookup fetches display metadata for up to one chunk of actor ids.
func (d *HTTPDirectory) Lookup(ctx context.Context, ids []string) (map[string]*model.ActorInfo, error) {
	body, err := json.Marshal(map[string][]string{"ids": ids})
	if err != nil {
		return nil, fmt.Errorf("marshaling lookup request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		d.baseURL+"/v1/profiles/batch", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if d.token != "" {
		req.Header.Set("Authorization", "Bearer "+d.token)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("profile service returned %d: %s", resp.StatusCode, data)
	}

	var parsed struct {
		Profiles []*model.ActorInfo `json:"profiles"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	result := make(map[string]*model.ActorInfo, len(parsed.Profiles))
	for _, p := range parsed.Profiles {
		if p != nil && p.ID != "" {
			result[p.ID] = p
		}
	}
	return result, nil
}
