package retrieval

import (
	"context"
	"fmt"
	"strings"
)

// MockRetriever returns a deterministic summary for local development and
// tests. Queries containing "unknown" come back empty to exercise the final
// canned fallback.
type MockRetriever struct{}

func NewMockRetriever() *MockRetriever { return &MockRetriever{} }

func (r *MockRetriever) Retrieve(ctx context.Context, query, _ string) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}

	query = strings.TrimSpace(query)
	if query == "" || strings.Contains(strings.ToLower(query), "unknown") {
		return "", nil
	}
	return fmt.Sprintf("From our records: here is what I can tell you about %q.", query), nil
}
