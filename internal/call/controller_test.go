package call

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/novacare/nova/internal/brain"
	"github.com/novacare/nova/internal/cascade"
	"github.com/novacare/nova/internal/flow"
	"github.com/novacare/nova/internal/protocol"
	"github.com/novacare/nova/internal/session"
	"github.com/novacare/nova/internal/transcript"
)

type fixedGenerator struct {
	text string
	err  error
}

func (g fixedGenerator) Generate(context.Context, brain.Request) (brain.Response, error) {
	if g.err != nil {
		return brain.Response{}, g.err
	}
	return brain.Response{Text: g.text}, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []protocol.MonitorEvent
}

func (p *recordingPublisher) Publish(evt protocol.MonitorEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

func newTestController(gen brain.Adapter, archive transcript.Store, pub Publisher) (*Controller, *session.Store) {
	store := session.NewStore(time.Minute)
	orch := cascade.NewOrchestrator(gen, nil, nil, time.Second, time.Second)
	ctrl := NewController(store, orch, flow.NewAttemptPolicy(3), archive, nil, pub)
	return ctrl, store
}

func TestStartCallGreetsOnce(t *testing.T) {
	pub := &recordingPublisher{}
	ctrl, store := newTestController(fixedGenerator{text: "ok"}, nil, pub)

	snap, inst := ctrl.StartCall(context.Background(), "c1")
	if inst.Say != Greeting {
		t.Fatalf("Say = %q, want greeting", inst.Say)
	}
	if inst.Collect == nil || inst.Collect.OnNoInput != protocol.NoInputRepeatGreeting {
		t.Fatalf("greeting must re-arm collect with repeat_greeting, got %+v", inst.Collect)
	}
	if snap.TurnCount != 1 {
		t.Fatalf("TurnCount = %d, want 1 (the greeting)", snap.TurnCount)
	}

	snap2, _ := ctrl.StartCall(context.Background(), "c1")
	if snap2.TurnCount != 1 {
		t.Fatalf("second StartCall appended a duplicate greeting: TurnCount = %d", snap2.TurnCount)
	}
	if got := pub.types(); len(got) != 1 || got[0] != protocol.MonitorCallStarted {
		t.Fatalf("monitor events = %v, want one call_started", got)
	}
	if store.ActiveCount() != 1 {
		t.Fatalf("ActiveCount = %d, want 1", store.ActiveCount())
	}
}

func TestHandleTurnAcceptedResetsAttemptsAndReplies(t *testing.T) {
	ctrl, store := newTestController(fixedGenerator{text: "We are open 9 to 5."}, nil, nil)
	ctrl.StartCall(context.Background(), "c1")

	// Two silent turns, then real input.
	ctrl.HandleTurn(context.Background(), protocol.TurnEvent{CallID: "c1", Channel: protocol.ChannelNone})
	ctrl.HandleTurn(context.Background(), protocol.TurnEvent{CallID: "c1", Channel: protocol.ChannelNone})

	conf := 0.92
	inst := ctrl.HandleTurn(context.Background(), protocol.TurnEvent{
		CallID:     "c1",
		Input:      "what are your hours",
		Channel:    protocol.ChannelSpeech,
		Confidence: &conf,
		DurationMS: 1800,
	})

	if inst.Say != "We are open 9 to 5." {
		t.Fatalf("Say = %q, want the generator reply verbatim", inst.Say)
	}
	if inst.Collect == nil || inst.Hangup {
		t.Fatalf("accepted turn must keep the call alive, got %+v", inst)
	}

	s, err := store.Get("c1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if s.Attempts != 0 {
		t.Fatalf("Attempts = %d, want 0 after accepted input", s.Attempts)
	}
	// greeting + user + assistant
	if len(s.History) != 3 {
		t.Fatalf("len(History) = %d, want 3", len(s.History))
	}
	user := s.History[1]
	if user.Role != session.RoleUser || user.Content != "what are your hours" {
		t.Fatalf("user turn = %+v", user)
	}
	if user.Channel != "speech" || user.Confidence == nil || *user.Confidence != 0.92 || user.DurationMS != 1800 {
		t.Fatalf("user turn missing transport metadata: %+v", user)
	}
}

func TestHandleTurnEmptyVariantsAndEscalation(t *testing.T) {
	pub := &recordingPublisher{}
	ctrl, store := newTestController(fixedGenerator{text: "ok"}, nil, pub)
	ctrl.StartCall(context.Background(), "c1")

	first := ctrl.HandleTurn(context.Background(), protocol.TurnEvent{CallID: "c1", Channel: protocol.ChannelNone})
	if first.Say != fallbackSilence {
		t.Fatalf("first empty turn Say = %q, want %q", first.Say, fallbackSilence)
	}
	if first.OnSilenceFallback == nil || !first.OnSilenceFallback.Hangup {
		t.Fatalf("retry prompt must carry a goodbye fallback, got %+v", first.OnSilenceFallback)
	}

	second := ctrl.HandleTurn(context.Background(), protocol.TurnEvent{CallID: "c1", Channel: protocol.ChannelNone})
	if second.Say != fallbackTimeout {
		t.Fatalf("second empty turn Say = %q, want %q", second.Say, fallbackTimeout)
	}

	third := ctrl.HandleTurn(context.Background(), protocol.TurnEvent{CallID: "c1", Channel: protocol.ChannelNone})
	if !strings.Contains(third.Say, fallbackTransfer) || !third.Hangup {
		t.Fatalf("third empty turn = %+v, want transfer and hangup", third)
	}
	if third.Collect != nil {
		t.Fatalf("escalation must not re-arm input collection")
	}
	if store.ActiveCount() != 0 {
		t.Fatalf("ActiveCount = %d, want 0 after escalation", store.ActiveCount())
	}

	types := pub.types()
	if types[len(types)-1] != protocol.MonitorEscalated {
		t.Fatalf("monitor events = %v, want escalated last", types)
	}
}

func TestHandleTurnUnknownCallCreatesSession(t *testing.T) {
	ctrl, store := newTestController(fixedGenerator{text: "ok"}, nil, nil)

	inst := ctrl.HandleTurn(context.Background(), protocol.TurnEvent{
		CallID:  "late-webhook",
		Input:   "hello",
		Channel: protocol.ChannelSpeech,
	})
	if inst.Say == "" {
		t.Fatalf("reply is empty for a late-registered call")
	}
	if _, err := store.Get("late-webhook"); err != nil {
		t.Fatalf("session not created on demand: %v", err)
	}
}

func TestHandleTurnDegradesGracefully(t *testing.T) {
	ctrl, _ := newTestController(fixedGenerator{err: errors.New("backend down")}, nil, nil)
	ctrl.StartCall(context.Background(), "c1")

	inst := ctrl.HandleTurn(context.Background(), protocol.TurnEvent{
		CallID:  "c1",
		Input:   "refill my prescription",
		Channel: protocol.ChannelSpeech,
	})
	if strings.TrimSpace(inst.Say) == "" {
		t.Fatalf("turn produced no sayable reply despite backend failure")
	}
	if !strings.Contains(inst.Say, "refill my prescription") {
		t.Fatalf("canned reply %q does not echo the caller", inst.Say)
	}
}

type panickyGenerator struct{}

func (panickyGenerator) Generate(context.Context, brain.Request) (brain.Response, error) {
	panic("generator bug")
}

func TestHandleTurnRecoversPanics(t *testing.T) {
	ctrl, store := newTestController(panickyGenerator{}, nil, nil)
	ctrl.StartCall(context.Background(), "c1")

	inst := ctrl.HandleTurn(context.Background(), protocol.TurnEvent{
		CallID:  "c1",
		Input:   "hello",
		Channel: protocol.ChannelSpeech,
	})
	if inst.Say != fallbackError || !inst.Hangup {
		t.Fatalf("panic turn = %+v, want apology and hangup", inst)
	}
	if inst.Collect != nil {
		t.Fatalf("panic turn must not re-arm input collection")
	}
	// The session survives for the end webhook or the janitor.
	if _, err := store.Get("c1"); err != nil {
		t.Fatalf("session dropped after recovered panic: %v", err)
	}
}

func TestEndCallRemovesSession(t *testing.T) {
	ctrl, store := newTestController(fixedGenerator{text: "ok"}, nil, nil)
	ctrl.StartCall(context.Background(), "c1")

	snap, err := ctrl.EndCall(context.Background(), "c1")
	if err != nil {
		t.Fatalf("EndCall: %v", err)
	}
	if snap.CallID != "c1" {
		t.Fatalf("snapshot CallID = %q", snap.CallID)
	}
	if store.ActiveCount() != 0 {
		t.Fatalf("ActiveCount = %d, want 0", store.ActiveCount())
	}
	if _, err := ctrl.EndCall(context.Background(), "c1"); err != session.ErrNotFound {
		t.Fatalf("second EndCall err = %v, want ErrNotFound", err)
	}
}

func TestTurnsArchivedWithRedaction(t *testing.T) {
	archive := transcript.NewInMemoryStore()
	ctrl, _ := newTestController(fixedGenerator{text: "Your visit is booked."}, archive, nil)
	ctrl.StartCall(context.Background(), "c1")

	ctrl.HandleTurn(context.Background(), protocol.TurnEvent{
		CallID:  "c1",
		Input:   "my ssn is 123-45-6789",
		Channel: protocol.ChannelSpeech,
	})

	recs, err := archive.RecentByCall(context.Background(), "c1", 10)
	if err != nil {
		t.Fatalf("RecentByCall: %v", err)
	}
	// greeting + user + assistant
	if len(recs) != 3 {
		t.Fatalf("len(recs) = %d, want 3", len(recs))
	}
	var userRec *transcript.Record
	for i := range recs {
		if recs[i].Role == session.RoleUser {
			userRec = &recs[i]
		}
	}
	if userRec == nil {
		t.Fatalf("no user record archived")
	}
	if strings.Contains(userRec.Content, "123-45-6789") {
		t.Fatalf("archived content %q leaks the SSN", userRec.Content)
	}
	if !userRec.PIIRedacted {
		t.Fatalf("PIIRedacted = false, want true")
	}
}
