package brain

import (
	"context"
	"errors"
	"fmt"
)

// FailoverAdapter attempts a primary adapter first and falls back on error.
// Context cancellation is passed through untouched: the turn deadline, not
// the failover pair, decides when to give up.
type FailoverAdapter struct {
	primary  Adapter
	fallback Adapter
}

func NewFailoverAdapter(primary, fallback Adapter) *FailoverAdapter {
	return &FailoverAdapter{primary: primary, fallback: fallback}
}

func (a *FailoverAdapter) Generate(ctx context.Context, req Request) (Response, error) {
	if a == nil || a.primary == nil {
		if a != nil && a.fallback != nil {
			return a.fallback.Generate(ctx, req)
		}
		return Response{}, fmt.Errorf("failover adapter misconfigured")
	}

	resp, err := a.primary.Generate(ctx, req)
	if err == nil {
		return resp, nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return Response{}, err
	}
	if a.fallback == nil {
		return Response{}, err
	}

	fallbackResp, fallbackErr := a.fallback.Generate(ctx, req)
	if fallbackErr != nil {
		return Response{}, fmt.Errorf("primary adapter error: %w; fallback adapter error: %v", err, fallbackErr)
	}
	return fallbackResp, nil
}
