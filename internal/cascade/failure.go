package cascade

// FailureKind classifies why a turn, or one stage of the response cascade,
// produced no usable text.
type FailureKind string

const (
	FailureEmptyInput      FailureKind = "empty_input"
	FailureGenerator       FailureKind = "generator_failure"
	FailureRetrieval       FailureKind = "retrieval_failure"
	FailureSessionNotFound FailureKind = "session_not_found"
	FailureUnexpected      FailureKind = "unexpected_error"
)

// StageResult carries either the text a stage produced or the failure that
// produced none. Failures are data the orchestrator branches on, never
// errors that escape the cascade.
type StageResult struct {
	Text string
	Kind FailureKind
	Err  error
}

func Ok(text string) StageResult {
	return StageResult{Text: text}
}

func Fail(kind FailureKind, err error) StageResult {
	return StageResult{Kind: kind, Err: err}
}

func (r StageResult) Failed() bool {
	return r.Kind != ""
}
