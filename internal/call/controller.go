package call

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/novacare/nova/internal/cascade"
	"github.com/novacare/nova/internal/flow"
	"github.com/novacare/nova/internal/observability"
	"github.com/novacare/nova/internal/policy"
	"github.com/novacare/nova/internal/protocol"
	"github.com/novacare/nova/internal/session"
	"github.com/novacare/nova/internal/transcript"
)

// Publisher fans monitor events out to live observers. Publishing must never
// block a turn.
type Publisher interface {
	Publish(protocol.MonitorEvent)
}

// Controller owns the per-turn control flow: it decides whether a turn is
// empty or accepted, drives the attempt counter and phase transitions, runs
// the response cascade, and renders the single outbound instruction for the
// transport.
type Controller struct {
	store        *session.Store
	orchestrator *cascade.Orchestrator
	attempts     flow.AttemptPolicy
	archive      transcript.Store
	metrics      *observability.Metrics
	monitor      Publisher
}

func NewController(
	store *session.Store,
	orchestrator *cascade.Orchestrator,
	attempts flow.AttemptPolicy,
	archive transcript.Store,
	metrics *observability.Metrics,
	monitor Publisher,
) *Controller {
	return &Controller{
		store:        store,
		orchestrator: orchestrator,
		attempts:     attempts,
		archive:      archive,
		metrics:      metrics,
		monitor:      monitor,
	}
}

// StartCall registers the session and returns the opening greeting. Starting
// an already-live call is idempotent and does not repeat the greeting in
// history.
func (c *Controller) StartCall(ctx context.Context, callID string) (session.Snapshot, protocol.Instruction) {
	var snap session.Snapshot
	var greeted bool
	_ = c.store.Mutate(callID, func(s *session.CallSession) error {
		if len(s.History) == 0 {
			s.AppendTurn(session.Turn{Role: session.RoleAssistant, Content: Greeting})
			greeted = true
		}
		snap = s.Summary()
		return nil
	})

	if greeted {
		c.archiveTurns(ctx, callID, []session.Turn{{Role: session.RoleAssistant, Content: Greeting}})
		if c.metrics != nil {
			c.metrics.CallEvents.WithLabelValues("started").Inc()
		}
		c.publish(protocol.MonitorEvent{
			Type:   protocol.MonitorCallStarted,
			CallID: callID,
			Phase:  string(snap.Phase),
		})
	}
	c.syncActiveGauge()

	return snap, protocol.Instruction{
		Say: Greeting,
		Collect: &protocol.Collect{
			TimeoutMS: collectTimeoutMS,
			OnNoInput: protocol.NoInputRepeatGreeting,
		},
	}
}

// HandleTurn processes one inbound turn event and always produces a sayable
// instruction. An unknown call id is treated as a new call rather than an
// error; telephony webhooks may arrive out of order.
func (c *Controller) HandleTurn(ctx context.Context, evt protocol.TurnEvent) protocol.Instruction {
	start := time.Now()

	var (
		inst    protocol.Instruction
		ended   bool
		events  []protocol.MonitorEvent
		records []session.Turn
	)

	err := c.store.Mutate(evt.CallID, func(s *session.CallSession) (mutateErr error) {
		// A panic anywhere in the turn pipeline must still leave the caller
		// with something sayable.
		defer func() {
			if r := recover(); r != nil {
				mutateErr = fmt.Errorf("turn handling panic: %v", r)
			}
		}()
		if strings.TrimSpace(evt.Input) == "" || evt.Channel == protocol.ChannelNone {
			inst, ended = c.emptyTurn(s, &events)
			return nil
		}
		inst, records = c.acceptedTurn(ctx, s, evt, &events)
		return nil
	})
	if err != nil {
		log.Printf("call %s: %v", evt.CallID, err)
		if c.metrics != nil {
			c.metrics.TurnOutcomes.WithLabelValues("error").Inc()
		}
		events = append(events, protocol.MonitorEvent{
			Type:   protocol.MonitorTurnError,
			CallID: evt.CallID,
			Detail: err.Error(),
		})
		// Fail soft: apologize and end the call cleanly rather than re-arm
		// input collection on a broken turn pipeline.
		inst = protocol.Instruction{Say: fallbackError, Hangup: true}
		ended = false
		records = nil
	}

	if ended {
		if _, err := c.store.Remove(evt.CallID); err != nil && err != session.ErrNotFound {
			log.Printf("call %s: remove after escalation: %v", evt.CallID, err)
		}
	}

	c.archiveTurns(ctx, evt.CallID, records)
	for _, e := range events {
		c.publish(e)
	}
	if c.metrics != nil {
		c.metrics.ObserveTurnLatency(time.Since(start))
	}
	c.syncActiveGauge()

	return inst
}

// emptyTurn handles a turn with no usable input: count it, reprompt, and
// escalate to a human transfer once the limit is reached.
func (c *Controller) emptyTurn(s *session.CallSession, events *[]protocol.MonitorEvent) (protocol.Instruction, bool) {
	s.RecordEmptyTurn()

	if c.metrics != nil {
		c.metrics.TurnOutcomes.WithLabelValues("empty").Inc()
	}

	if c.attempts.ShouldEscalate(s.Attempts) {
		if c.metrics != nil {
			c.metrics.TurnOutcomes.WithLabelValues("escalated").Inc()
			c.metrics.CallEvents.WithLabelValues("escalated").Inc()
		}
		*events = append(*events, protocol.MonitorEvent{
			Type:     protocol.MonitorEscalated,
			CallID:   s.CallID,
			Phase:    string(s.Phase),
			Attempts: s.Attempts,
			Detail:   "no input, transferring to staff",
		})
		return protocol.Instruction{
			Say:    fallbackMaxAttempts + " " + fallbackTransfer,
			Hangup: true,
		}, true
	}

	say := fallbackTimeout
	timeout := retryCollectTimeoutMS
	if s.Attempts == 1 {
		say = fallbackSilence
		timeout = collectTimeoutMS
	}
	*events = append(*events, protocol.MonitorEvent{
		Type:     protocol.MonitorTurnEmpty,
		CallID:   s.CallID,
		Phase:    string(s.Phase),
		Attempts: s.Attempts,
	})
	return protocol.Instruction{
		Say: say,
		Collect: &protocol.Collect{
			TimeoutMS: timeout,
			OnNoInput: protocol.NoInputReprompt,
		},
		OnSilenceFallback: &protocol.Instruction{Say: fallbackGoodbye, Hangup: true},
	}, false
}

// acceptedTurn runs the full response path for real input: reset the attempt
// counter, advance the conversation phase, and cascade for a reply.
func (c *Controller) acceptedTurn(ctx context.Context, s *session.CallSession, evt protocol.TurnEvent, events *[]protocol.MonitorEvent) (protocol.Instruction, []session.Turn) {
	s.RecordAcceptedTurn()
	s.Phase = flow.Classify(s.Phase, evt.Input)

	turnID := uuid.NewString()
	reply, stage := c.orchestrator.Respond(ctx, s, turnID, evt.Input)
	if strings.TrimSpace(reply) == "" {
		reply = fallbackEmptyResponse
	}

	// The cascade appends plain user and assistant turns; fold the transport
	// metadata into the user turn it just wrote.
	if n := len(s.History); n >= 2 {
		u := &s.History[n-2]
		u.Channel = string(evt.Channel)
		u.Confidence = evt.Confidence
		u.DurationMS = evt.DurationMS
	}

	if c.metrics != nil {
		c.metrics.TurnOutcomes.WithLabelValues("accepted").Inc()
	}
	*events = append(*events, protocol.MonitorEvent{
		Type:   protocol.MonitorTurnAccepted,
		CallID: s.CallID,
		Phase:  string(s.Phase),
		Stage:  string(stage),
	})

	records := s.History[len(s.History)-2:]
	archived := make([]session.Turn, len(records))
	copy(archived, records)

	return protocol.Instruction{
		Say: reply,
		Collect: &protocol.Collect{
			TimeoutMS: collectTimeoutMS,
			OnNoInput: protocol.NoInputReprompt,
		},
		OnSilenceFallback: &protocol.Instruction{Say: fallbackGoodbye, Hangup: true},
	}, archived
}

// EndCall tears the session down and returns its final summary.
func (c *Controller) EndCall(_ context.Context, callID string) (session.Snapshot, error) {
	final, err := c.store.Remove(callID)
	if err != nil {
		return session.Snapshot{}, err
	}
	if c.metrics != nil {
		c.metrics.CallEvents.WithLabelValues("ended").Inc()
	}
	c.publish(protocol.MonitorEvent{
		Type:   protocol.MonitorCallEnded,
		CallID: callID,
		Phase:  string(final.Phase),
	})
	c.syncActiveGauge()
	return final.Summary(), nil
}

// Snapshot returns the live summary for one call.
func (c *Controller) Snapshot(callID string) (session.Snapshot, error) {
	s, err := c.store.Get(callID)
	if err != nil {
		return session.Snapshot{}, err
	}
	return s.Summary(), nil
}

// HandleExpiry is the session store's expire hook.
func (c *Controller) HandleExpiry(s session.CallSession) {
	if c.metrics != nil {
		c.metrics.CallEvents.WithLabelValues("expired").Inc()
	}
	c.publish(protocol.MonitorEvent{
		Type:   protocol.MonitorCallEnded,
		CallID: s.CallID,
		Phase:  string(s.Phase),
		Detail: "inactivity timeout",
	})
	c.syncActiveGauge()
	log.Printf("call %s: expired after inactivity", s.CallID)
}

func (c *Controller) archiveTurns(ctx context.Context, callID string, turns []session.Turn) {
	if c.archive == nil {
		return
	}
	for _, t := range turns {
		content, changed := policy.RedactPII(t.Content)
		rec := transcript.Record{
			ID:          uuid.NewString(),
			CallID:      callID,
			Role:        t.Role,
			Content:     content,
			Channel:     t.Channel,
			PIIRedacted: changed,
			CreatedAt:   t.Timestamp,
		}
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = time.Now().UTC()
		}
		// The archive is best-effort; a storage fault must not fail the turn.
		if err := c.archive.SaveTurn(ctx, rec); err != nil {
			log.Printf("call %s: transcript save failed: %v", callID, err)
		}
	}
}

func (c *Controller) publish(evt protocol.MonitorEvent) {
	if c.monitor == nil {
		return
	}
	if evt.At.IsZero() {
		evt.At = time.Now().UTC()
	}
	c.monitor.Publish(evt)
}

func (c *Controller) syncActiveGauge() {
	if c.metrics != nil {
		c.metrics.ActiveCalls.Set(float64(c.store.ActiveCount()))
	}
}
