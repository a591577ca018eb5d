package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Retriever is the knowledge-retrieval fallback: given the user's query and
// recent conversation context, return a summarized answer drawn from the
// knowledge base. One atomic call; failures are recovered by the cascade.
type Retriever interface {
	Retrieve(ctx context.Context, query, context string) (string, error)
}

// Config controls retriever construction.
type Config struct {
	Mode    string
	HTTPURL string
	Timeout time.Duration
}

// New builds a retriever for the configured mode. A missing URL in http mode
// is a startup-time fatal condition, not a per-turn one. Mode "off" returns
// nil; the cascade skips the retrieval stage entirely.
func New(cfg Config) (Retriever, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	if mode == "" {
		mode = "auto"
	}

	switch mode {
	case "auto":
		if strings.TrimSpace(cfg.HTTPURL) != "" {
			return NewHTTPRetriever(cfg.HTTPURL, cfg.Timeout), nil
		}
		return NewMockRetriever(), nil
	case "http":
		if strings.TrimSpace(cfg.HTTPURL) == "" {
			return nil, errors.New("retrieval HTTP url is required for http mode")
		}
		return NewHTTPRetriever(cfg.HTTPURL, cfg.Timeout), nil
	case "mock":
		return NewMockRetriever(), nil
	case "off":
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported retrieval mode %q", cfg.Mode)
	}
}
