package session

import (
	"time"

	"github.com/novacare/nova/internal/flow"
)

// Role identifies who produced a turn.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Input channels recorded on a turn.
const (
	ChannelSpeech = "speech"
	ChannelDTMF   = "dtmf"
	ChannelNone   = "none"
)

// Turn is one immutable history entry: what was said, by whom, and how the
// input arrived.
type Turn struct {
	Role       string    `json:"role"`
	Content    string    `json:"content"`
	Channel    string    `json:"channel,omitempty"`
	Confidence *float64  `json:"confidence,omitempty"`
	DurationMS int       `json:"duration_ms,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// CallSession is the accumulated state for one live call. It exists only in
// memory for the duration of the call; a process restart loses it.
type CallSession struct {
	CallID        string     `json:"call_id"`
	Phase         flow.Phase `json:"phase"`
	Attempts      int        `json:"attempts"`
	History       []Turn     `json:"history"`
	CreatedAt     time.Time  `json:"created_at"`
	LastUpdatedAt time.Time  `json:"last_updated_at"`
}

// RecordEmptyTurn increments the consecutive empty-turn counter.
func (s *CallSession) RecordEmptyTurn() {
	s.Attempts++
}

// RecordAcceptedTurn resets the counter; any accepted input forgives prior
// empty turns.
func (s *CallSession) RecordAcceptedTurn() {
	s.Attempts = 0
}

// AppendTurn adds an entry to history, stamping the time if unset.
func (s *CallSession) AppendTurn(turn Turn) {
	if turn.Timestamp.IsZero() {
		turn.Timestamp = time.Now().UTC()
	}
	s.History = append(s.History, turn)
}

// Snapshot is a summary of a session returned by HTTP handlers.
type Snapshot struct {
	CallID        string     `json:"call_id"`
	Phase         flow.Phase `json:"phase"`
	Attempts      int        `json:"attempts"`
	TurnCount     int        `json:"turn_count"`
	CreatedAt     time.Time  `json:"created_at"`
	LastUpdatedAt time.Time  `json:"last_updated_at"`
}

func (s *CallSession) Summary() Snapshot {
	return Snapshot{
		CallID:        s.CallID,
		Phase:         s.Phase,
		Attempts:      s.Attempts,
		TurnCount:     len(s.History),
		CreatedAt:     s.CreatedAt,
		LastUpdatedAt: s.LastUpdatedAt,
	}
}
