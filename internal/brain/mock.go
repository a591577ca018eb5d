package brain

import (
	"context"
	"fmt"
	"strings"
)

// MockAdapter provides deterministic local replies when no completion
// backend is configured.
type MockAdapter struct{}

func NewMockAdapter() *MockAdapter { return &MockAdapter{} }

func (a *MockAdapter) Generate(ctx context.Context, req Request) (Response, error) {
	select {
	case <-ctx.Done():
		return Response{}, ctx.Err()
	default:
	}

	input := strings.TrimSpace(req.Input)
	if input == "" {
		return Response{Text: "I am listening."}, nil
	}
	return Response{Text: fmt.Sprintf("I heard you: %s", input)}, nil
}
