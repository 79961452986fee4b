package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
)

const maxReadPageChars = 50000

// ReadPage fetches a web page and converts its HTML to markdown. It is
// registered only for the import flow, where the model reads a recipe
// page before emitting graph insert queries; the serve path never
// carries it.
type ReadPage struct {
	client *http.Client
}

// NewReadPage creates a new ReadPage tool.
func NewReadPage() *ReadPage {
	return &ReadPage{
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

func (r *ReadPage) Name() string { return "read_page" }
func (r *ReadPage) Description() string {
	return "Fetch a web page (e.g. a recipe) and return its content as markdown"
}
func (r *ReadPage) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"url": {"type": "string", "description": "The URL to fetch"}
		},
		"required": ["url"]
	}`)
}

func (r *ReadPage) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var params struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return "", fmt.Errorf("parse args: %w", err)
	}
	if params.URL == "" {
		return "", fmt.Errorf("url is required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, params.URL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "Graphchef/1.0")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP error: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}

	md, err := htmltomarkdown.ConvertString(string(body))
	if err != nil {
		return "", fmt.Errorf("convert to markdown: %w", err)
	}

	if len(md) > maxReadPageChars {
		md = md[:maxReadPageChars] + "\n\n[Content truncated]"
	}

	return md, nil
}
