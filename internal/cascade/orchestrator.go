package cascade

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/novacare/nova/internal/brain"
	"github.com/novacare/nova/internal/observability"
	"github.com/novacare/nova/internal/retrieval"
	"github.com/novacare/nova/internal/session"
)

// Stage labels which cascade stage produced the final reply.
type Stage string

const (
	StagePrimary   Stage = "primary"
	StageRetrieval Stage = "retrieval"
	StageCanned    Stage = "canned"
)

// contextWindow bounds how much history feeds generation: the most recent
// 10 entries, roughly 5 exchanges.
const contextWindow = 10

const (
	defaultGeneratorTimeout = 8 * time.Second
	defaultRetrievalTimeout = 6 * time.Second
)

// genericFallbacks is the narrow trigger for the retrieval stage. Only these
// phrases (or an empty result) send a turn to retrieval; ordinary short
// answers are accepted even if imperfect, because retrieval is expensive.
var genericFallbacks = []string{
	"i don't have a specific answer for that",
	"i don't have enough information",
	"i cannot provide a specific answer",
}

// Orchestrator produces exactly one reply per accepted turn by cascading
// through the primary generator, the knowledge-retrieval fallback, and a
// canned reply. Backend failures degrade the response; they never fail the
// turn.
type Orchestrator struct {
	generator        brain.Adapter
	retriever        retrieval.Retriever
	metrics          *observability.Metrics
	generatorTimeout time.Duration
	retrievalTimeout time.Duration
}

func NewOrchestrator(
	generator brain.Adapter,
	retriever retrieval.Retriever,
	metrics *observability.Metrics,
	generatorTimeout time.Duration,
	retrievalTimeout time.Duration,
) *Orchestrator {
	if generatorTimeout <= 0 {
		generatorTimeout = defaultGeneratorTimeout
	}
	if retrievalTimeout <= 0 {
		retrievalTimeout = defaultRetrievalTimeout
	}
	return &Orchestrator{
		generator:        generator,
		retriever:        retriever,
		metrics:          metrics,
		generatorTimeout: generatorTimeout,
		retrievalTimeout: retrievalTimeout,
	}
}

// Respond runs the cascade for one accepted user input and appends both the
// user and assistant turns to the session history. It always returns a
// sayable, non-empty reply.
func (o *Orchestrator) Respond(ctx context.Context, s *session.CallSession, turnID, userInput string) (string, Stage) {
	convContext := BuildContext(s.History)

	stage := StagePrimary
	result := o.runPrimary(ctx, s.CallID, turnID, userInput, convContext)

	if rejected(result) {
		if result.Failed() {
			log.Printf("call %s: primary generator failed (%s): %v", s.CallID, result.Kind, result.Err)
		}
		fallback := o.runRetrieval(ctx, userInput, convContext)
		if fallback.Failed() {
			log.Printf("call %s: retrieval fallback failed (%s): %v", s.CallID, fallback.Kind, fallback.Err)
		}
		if strings.TrimSpace(fallback.Text) != "" {
			result = fallback
			stage = StageRetrieval
		}
	}

	// Only an empty result falls through to the canned reply. A non-empty
	// generic-uncertainty phrase that retrieval could not improve on is still
	// spoken verbatim.
	reply := strings.TrimSpace(result.Text)
	if reply == "" {
		reply = cannedReply(userInput)
		stage = StageCanned
	}

	if o.metrics != nil {
		o.metrics.CascadeStages.WithLabelValues(string(stage)).Inc()
	}

	now := time.Now().UTC()
	s.AppendTurn(session.Turn{Role: session.RoleUser, Content: userInput, Timestamp: now})
	s.AppendTurn(session.Turn{Role: session.RoleAssistant, Content: reply, Timestamp: now})

	return reply, stage
}

func (o *Orchestrator) runPrimary(ctx context.Context, callID, turnID, userInput, convContext string) StageResult {
	genCtx, cancel := context.WithTimeout(ctx, o.generatorTimeout)
	defer cancel()

	start := time.Now()
	resp, err := o.generator.Generate(genCtx, brain.Request{
		CallID:  callID,
		TurnID:  turnID,
		Input:   userInput,
		Context: convContext,
	})
	if o.metrics != nil {
		o.metrics.ObserveCallStage("generator", time.Since(start))
	}
	if err != nil {
		if o.metrics != nil {
			o.metrics.ProviderErrors.WithLabelValues("brain", errorCode(err)).Inc()
		}
		return Fail(FailureGenerator, err)
	}
	return Ok(resp.Text)
}

func (o *Orchestrator) runRetrieval(ctx context.Context, userInput, convContext string) StageResult {
	if o.retriever == nil {
		return Fail(FailureRetrieval, nil)
	}

	retCtx, cancel := context.WithTimeout(ctx, o.retrievalTimeout)
	defer cancel()

	start := time.Now()
	text, err := o.retriever.Retrieve(retCtx, userInput, convContext)
	if o.metrics != nil {
		o.metrics.ObserveCallStage("retrieval", time.Since(start))
	}
	if err != nil {
		if o.metrics != nil {
			o.metrics.ProviderErrors.WithLabelValues("retrieval", errorCode(err)).Inc()
		}
		return Fail(FailureRetrieval, err)
	}
	return Ok(text)
}

// rejected reports whether a primary result should trigger the retrieval
// fallback: a failed stage, an empty result, or one of the fixed
// generic-uncertainty phrases.
func rejected(r StageResult) bool {
	if r.Failed() {
		return true
	}
	trimmed := strings.TrimSpace(r.Text)
	if trimmed == "" {
		return true
	}
	lowered := strings.ToLower(trimmed)
	for _, phrase := range genericFallbacks {
		if strings.Contains(lowered, phrase) {
			return true
		}
	}
	return false
}

// BuildContext renders the most recent history entries as speaker-labelled
// lines for the generation prompt.
func BuildContext(history []session.Turn) string {
	if len(history) > contextWindow {
		history = history[len(history)-contextWindow:]
	}
	lines := make([]string, 0, len(history))
	for _, turn := range history {
		speaker := "Patient"
		if turn.Role == session.RoleAssistant {
			speaker = "Assistant"
		}
		lines = append(lines, fmt.Sprintf("%s: %s", speaker, turn.Content))
	}
	return strings.Join(lines, "\n")
}

func cannedReply(userInput string) string {
	return fmt.Sprintf("I heard you say %q. Let me help you with that. Could you please provide more details about what you need?", userInput)
}

func errorCode(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "error"
	}
}
