package flow

// DefaultMaxAttempts is how many consecutive empty turns are tolerated before
// the call is escalated to a human.
const DefaultMaxAttempts = 3

// AttemptPolicy decides when repeated empty turns escalate. It is a pure
// policy over the session's consecutive-empty-turn counter; the counter
// itself lives on the session and is mutated by the turn controller.
type AttemptPolicy struct {
	MaxAttempts int
}

func NewAttemptPolicy(maxAttempts int) AttemptPolicy {
	if maxAttempts < 1 {
		maxAttempts = DefaultMaxAttempts
	}
	return AttemptPolicy{MaxAttempts: maxAttempts}
}

// ShouldEscalate reports whether the call should be transferred to a human
// instead of re-prompting.
func (p AttemptPolicy) ShouldEscalate(attempts int) bool {
	return attempts >= p.MaxAttempts
}
