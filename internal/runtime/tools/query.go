package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/user/graphchef/internal/graph"
)

// ExecuteQuery runs a model-chosen query against the knowledge graph and
// renders the rows as text. The query string is passed through opaquely;
// see graph.Client for the trust boundary.
type ExecuteQuery struct {
	client graph.Client
}

// NewExecuteQuery creates the query tool backed by the given graph client.
func NewExecuteQuery(client graph.Client) *ExecuteQuery {
	return &ExecuteQuery{client: client}
}

func (q *ExecuteQuery) Name() string { return "execute_query" }
func (q *ExecuteQuery) Description() string {
	return "Execute a query against the knowledge graph and return the results."
}
func (q *ExecuteQuery) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"query": {"type": "string", "description": "The query to run against the knowledge graph"}
		},
		"required": ["query"]
	}`)
}

func (q *ExecuteQuery) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var params struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return "", fmt.Errorf("parse args: %w", err)
	}
	if params.Query == "" {
		return "", fmt.Errorf("query is required")
	}

	rows, err := q.client.Query(ctx, params.Query)
	if err != nil {
		return "", err
	}
	return graph.Render(rows), nil
}
