package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/harvestlink/traceledger/internal/model"
)

// HTTPClient implements TraceClient using the ledger's HTTP/JSON REST API.
type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewHTTPClient creates a new HTTP client targeting the given base URL
// (e.g. "http://localhost:8080"). When token is non-empty, an Authorization
// header is set on every request.
func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{},
	}
}

// Close is a no-op for the HTTP client.
func (c *HTTPClient) Close() error { return nil }

func (c *HTTPClient) AppendPlotEvent(ctx context.Context, plotID string, req *AppendEventRequest) (*model.TraceEvent, error) {
	var event model.TraceEvent
	path := "/v1/plots/" + url.PathEscape(plotID) + "/events"
	if err := c.doJSON(ctx, http.MethodPost, path, req, &event); err != nil {
		return nil, err
	}
	return &event, nil
}

func (c *HTTPClient) ListPlotEvents(ctx context.Context, plotID string) ([]*model.TraceEvent, error) {
	var resp struct {
		Events []*model.TraceEvent `json:"events"`
	}
	path := "/v1/plots/" + url.PathEscape(plotID) + "/events"
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Events, nil
}

func (c *HTTPClient) Harvest(ctx context.Context, plotID string, req *HarvestRequest) (*HarvestResponse, error) {
	var resp HarvestResponse
	path := "/v1/plots/" + url.PathEscape(plotID) + "/harvest"
	if err := c.doJSON(ctx, http.MethodPost, path, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) GetVTI(ctx context.Context, id string) (*model.VTI, error) {
	var vti model.VTI
	if err := c.doJSON(ctx, http.MethodGet, "/v1/vtis/"+url.PathEscape(id), nil, &vti); err != nil {
		return nil, err
	}
	return &vti, nil
}

func (c *HTTPClient) ListVTIs(ctx context.Context, limit int) ([]*model.VTI, error) {
	path := "/v1/vtis"
	if limit > 0 {
		path += fmt.Sprintf("?limit=%d", limit)
	}
	var resp struct {
		Identifiers []*model.VTI `json:"identifiers"`
	}
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Identifiers, nil
}

func (c *HTTPClient) AddLink(ctx context.Context, id, linkedID string) error {
	body := map[string]string{"linked_id": linkedID}
	return c.doJSON(ctx, http.MethodPost, "/v1/vtis/"+url.PathEscape(id)+"/links", body, nil)
}

func (c *HTTPClient) UpdateStatus(ctx context.Context, id, status string) error {
	body := map[string]string{"status": status}
	return c.doJSON(ctx, http.MethodPost, "/v1/vtis/"+url.PathEscape(id)+"/status", body, nil)
}

func (c *HTTPClient) AppendVTIEvent(ctx context.Context, id string, req *AppendEventRequest) (*model.TraceEvent, error) {
	var event model.TraceEvent
	path := "/v1/vtis/" + url.PathEscape(id) + "/events"
	if err := c.doJSON(ctx, http.MethodPost, path, req, &event); err != nil {
		return nil, err
	}
	return &event, nil
}

func (c *HTTPClient) ListVTIEvents(ctx context.Context, id string) ([]*model.TraceEvent, error) {
	var resp struct {
		Events []*model.TraceEvent `json:"events"`
	}
	path := "/v1/vtis/" + url.PathEscape(id) + "/events"
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Events, nil
}

func (c *HTTPClient) GetHistory(ctx context.Context, id string) (*HistoryResponse, error) {
	var resp HistoryResponse
	path := "/v1/vtis/" + url.PathEscape(id) + "/history"
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) Health(ctx context.Context) (string, error) {
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/health", nil, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}

// APIError represents an error response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// doJSON performs an HTTP request with optional JSON body and decodes the JSON response.
// If result is nil, the response body is discarded (for 204 responses).
func (c *HTTPClient) doJSON(ctx context.Context, method, path string, body any, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
			return &APIError{StatusCode: resp.StatusCode, Message: errResp.Error}
		}
		return &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}

	return nil
}
