package retrieval

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

const defaultHTTPTimeout = 6 * time.Second

type queryRequest struct {
	Query   string `json:"query"`
	Context string `json:"context,omitempty"`
}

// HTTPRetriever forwards queries to a similarity-search-and-summarize
// service over HTTP.
type HTTPRetriever struct {
	url    string
	client *http.Client
}

func NewHTTPRetriever(url string, timeout time.Duration) *HTTPRetriever {
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	return &HTTPRetriever{
		url: strings.TrimSpace(url),
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

func (r *HTTPRetriever) Retrieve(ctx context.Context, query, convContext string) (string, error) {
	payload, err := json.Marshal(queryRequest{Query: query, Context: convContext})
	if err != nil {
		return "", fmt.Errorf("marshal query: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	res, err := r.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return "", fmt.Errorf("retrieval http status %d: %s", res.StatusCode, string(body))
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err != nil {
		return strings.TrimSpace(string(body)), nil
	}
	for _, k := range []string{"text", "answer", "summary"} {
		if v, ok := obj[k]; ok {
			if s, ok := v.(string); ok {
				return strings.TrimSpace(s), nil
			}
		}
	}
	return "", nil
}
