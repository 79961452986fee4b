// internal/graph/client.go
package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Row is one result row: column name to scalar value (string, number,
// boolean, or null).
type Row map[string]any

// Client executes opaque query strings against the knowledge-graph store.
//
// The query text is NOT validated or sanitized here. It comes from a
// controlled caller (the model, constrained only by the system prompt);
// that trust boundary is deliberate, and hardening it would belong in the
// graph store itself, not this client.
type Client interface {
	Query(ctx context.Context, query string) ([]Row, error)
}

// QueryError is the graph store rejecting or failing a query. The loop
// turns it into tool-result text so the model can see it and recover;
// it is never propagated as a hard failure of the run.
type QueryError struct {
	Query   string
	Message string
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query execution failed: %s", e.Message)
}

// HTTPClient talks to a graph store over its HTTP query endpoint.
type HTTPClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPClient creates a graph store client. apiKey may be empty for
// unauthenticated stores.
func NewHTTPClient(baseURL, apiKey string) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

type queryRequest struct {
	Query string `json:"query"`
}

type queryResponse struct {
	Rows  []Row  `json:"rows"`
	Error string `json:"error,omitempty"`
}

// Query posts the query text to the store and returns the result rows.
func (c *HTTPClient) Query(ctx context.Context, query string) ([]Row, error) {
	body, err := json.Marshal(queryRequest{Query: query})
	if err != nil {
		return nil, fmt.Errorf("marshal query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/query", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &QueryError{Query: query, Message: err.Error()}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &QueryError{Query: query, Message: fmt.Sprintf("read response: %v", err)}
	}

	var result queryResponse
	if resp.StatusCode != http.StatusOK {
		// Error bodies are JSON when the store produced them, raw text
		// when a proxy did. Pass along whichever we got.
		if json.Unmarshal(respBody, &result) == nil && result.Error != "" {
			return nil, &QueryError{Query: query, Message: result.Error}
		}
		return nil, &QueryError{Query: query, Message: fmt.Sprintf("status %d: %s", resp.StatusCode, string(respBody))}
	}

	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, &QueryError{Query: query, Message: fmt.Sprintf("parse response: %v", err)}
	}
	if result.Error != "" {
		return nil, &QueryError{Query: query, Message: result.Error}
	}
	return result.Rows, nil
}
