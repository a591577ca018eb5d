package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// InputChannel describes how the caller's input arrived.
type InputChannel string

const (
	ChannelSpeech InputChannel = "speech"
	ChannelDTMF   InputChannel = "dtmf"
	ChannelNone   InputChannel = "none"
)

// TurnEvent is one inbound turn from the telephony transport: the call id
// plus whatever (possibly empty) input was captured.
type TurnEvent struct {
	CallID     string       `json:"call_id"`
	Input      string       `json:"input"`
	Channel    InputChannel `json:"channel"`
	Confidence *float64     `json:"confidence,omitempty"`
	DurationMS int          `json:"duration_ms,omitempty"`
}

// ParseTurnEvent decodes and normalizes an inbound turn event.
func ParseTurnEvent(data []byte) (TurnEvent, error) {
	var evt TurnEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		return TurnEvent{}, fmt.Errorf("decode turn event: %w", err)
	}
	evt.CallID = strings.TrimSpace(evt.CallID)
	if evt.CallID == "" {
		return TurnEvent{}, fmt.Errorf("turn event missing call_id")
	}
	switch evt.Channel {
	case ChannelSpeech, ChannelDTMF, ChannelNone:
	case "":
		if strings.TrimSpace(evt.Input) == "" {
			evt.Channel = ChannelNone
		} else {
			evt.Channel = ChannelSpeech
		}
	default:
		return TurnEvent{}, fmt.Errorf("unknown input channel %q", evt.Channel)
	}
	return evt, nil
}

// OnNoInput names what the transport should do when the collect window
// elapses without input.
type OnNoInput string

const (
	NoInputRepeatGreeting OnNoInput = "repeat_greeting"
	NoInputReprompt       OnNoInput = "reprompt"
)

// Collect re-arms input capture after the spoken text.
type Collect struct {
	TimeoutMS int       `json:"timeout_ms"`
	OnNoInput OnNoInput `json:"on_no_input"`
}

// Instruction is the single outbound action for a turn. Exactly one of
// Collect/Hangup drives what happens after Say; OnSilenceFallback, when set,
// fires only if the call ends without further input.
type Instruction struct {
	Say               string       `json:"say"`
	Collect           *Collect     `json:"then_collect_input,omitempty"`
	Hangup            bool         `json:"then_hangup,omitempty"`
	OnSilenceFallback *Instruction `json:"on_silence_fallback,omitempty"`
}

// Monitor event types published to the operator stream.
const (
	MonitorCallStarted  = "call_started"
	MonitorTurnAccepted = "turn_accepted"
	MonitorTurnEmpty    = "turn_empty"
	MonitorEscalated    = "escalated"
	MonitorTurnError    = "turn_error"
	MonitorCallEnded    = "call_ended"
)

// MonitorEvent is a lightweight observability record for live dashboards.
type MonitorEvent struct {
	Type     string    `json:"type"`
	CallID   string    `json:"call_id"`
	Phase    string    `json:"phase,omitempty"`
	Stage    string    `json:"stage,omitempty"`
	Attempts int       `json:"attempts,omitempty"`
	Detail   string    `json:"detail,omitempty"`
	At       time.Time `json:"at"`
}
