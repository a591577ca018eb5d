package call

// Caller-facing prompt catalogue. Wording changes here change what every
// caller hears; keep the register consistent.
const (
	// Greeting opens every call and is repeated when the very first collect
	// window elapses with no input.
	Greeting = "Hello! I'm Nova, your virtual healthcare assistant. How can I help you today?"

	// fallbackEmptyResponse covers an accepted turn that produced no usable
	// reply text anywhere in the pipeline.
	fallbackEmptyResponse = "I'm having trouble understanding. Could you please rephrase that?"

	// fallbackError is spoken when turn handling itself blows up.
	fallbackError = "I'm experiencing some technical difficulties. Please try again."

	// fallbackMaxAttempts and fallbackTransfer form the escalation composite:
	// both are spoken, then the call hangs up for the transfer.
	fallbackMaxAttempts = "I'm having trouble understanding your request. Would you like to speak with a human representative?"
	fallbackTransfer    = "I'll transfer you to a human representative who can better assist you."

	// fallbackGoodbye closes the call politely if a retry prompt itself goes
	// unanswered and the transport gives up.
	fallbackGoodbye = "Thank you for calling. Have a great day!"

	// fallbackSilence is spoken after the first empty turn, fallbackTimeout
	// after the second and later ones.
	fallbackSilence = "I'm still here. Please go ahead and speak, or press any key to continue."
	fallbackTimeout = "I didn't hear a response. Please try again or press any key to continue."
)

// collectTimeoutMS is how long the transport waits for caller input after
// each prompt. Repeat retry prompts wait longer to give a hesitant caller
// more room.
const (
	collectTimeoutMS      = 5000
	retryCollectTimeoutMS = 8000
)
