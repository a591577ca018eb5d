package transcript

import (
	"context"
	"time"
)

// Record stores a single archived conversational turn. The archive is
// best-effort analytics storage; live call state never reads from it.
type Record struct {
	ID          string    `json:"id"`
	CallID      string    `json:"call_id"`
	Role        string    `json:"role"`
	Content     string    `json:"content"`
	Channel     string    `json:"channel,omitempty"`
	PIIRedacted bool      `json:"pii_redacted"`
	CreatedAt   time.Time `json:"created_at"`
}

// Store persists and retrieves archived transcripts.
type Store interface {
	SaveTurn(ctx context.Context, record Record) error
	RecentByCall(ctx context.Context, callID string, limit int) ([]Record, error)
	Close() error
}
