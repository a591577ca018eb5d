package brain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/novacare/nova/internal/reliability"
)

const (
	defaultHTTPTimeout = 8 * time.Second
	retryBackoffBase   = 150 * time.Millisecond
	retryBackoffCap    = 600 * time.Millisecond
)

// HTTPAdapter forwards prompts to a completion-service HTTP endpoint.
type HTTPAdapter struct {
	url     string
	client  *http.Client
	retries int
}

func NewHTTPAdapter(url string, timeout time.Duration) *HTTPAdapter {
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	return &HTTPAdapter{
		url: strings.TrimSpace(url),
		client: &http.Client{
			Timeout: timeout,
		},
		retries: 1,
	}
}

func (a *HTTPAdapter) Generate(ctx context.Context, req Request) (Response, error) {
	var lastErr error
	for attempt := 0; attempt <= a.retries; attempt++ {
		if attempt > 0 {
			backoff := reliability.ExponentialBackoff(attempt-1, retryBackoffBase, retryBackoffCap)
			select {
			case <-ctx.Done():
				return Response{}, ctx.Err()
			case <-time.After(backoff):
			}
		}

		resp, retryable, err := a.generateOnce(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !retryable {
			break
		}
	}
	return Response{}, lastErr
}

func (a *HTTPAdapter) generateOnce(ctx context.Context, req Request) (Response, bool, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return Response{}, false, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader(payload))
	if err != nil {
		return Response{}, false, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	res, err := a.client.Do(httpReq)
	if err != nil {
		return Response{}, reliability.IsTransient(err), fmt.Errorf("send request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return Response{}, reliability.IsRetryableHTTPStatus(res.StatusCode),
			fmt.Errorf("brain http status %d: %s", res.StatusCode, string(body))
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return Response{}, false, fmt.Errorf("read response: %w", err)
	}

	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err != nil {
		// Plain-text backends are acceptable; the body is the answer.
		return Response{Text: strings.TrimSpace(string(body))}, false, nil
	}
	return Response{Text: extractText(obj)}, false, nil
}

func extractText(obj map[string]any) string {
	for _, k := range []string{"text", "output", "answer", "message"} {
		if v, ok := obj[k]; ok {
			if s, ok := v.(string); ok {
				return s
			}
		}
	}
	return ""
}
