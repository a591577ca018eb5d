package flow

import "strings"

// Phase is a coarse classification of where the conversation is. It is
// advisory: any phase can be re-entered and none gates behavior.
type Phase string

const (
	PhaseGreeting              Phase = "GREETING"
	PhaseDemographics          Phase = "DEMOGRAPHICS"
	PhaseIdentityVerification  Phase = "IDENTITY_VERIFICATION"
	PhaseInsuranceVerification Phase = "INSURANCE_VERIFICATION"
	PhaseCoverageValidation    Phase = "COVERAGE_VALIDATION"
	PhaseAppointmentScheduling Phase = "APPOINTMENT_SCHEDULING"
	PhaseWarmHandoff           Phase = "WARM_HANDOFF"
	PhaseGoodbye               Phase = "GOODBYE"
)

// InitialPhase is the phase assigned to a freshly created call session.
const InitialPhase = PhaseGreeting

type phaseRule struct {
	phase    Phase
	keywords []string
}

// Rules are ordered; only the first match applies.
var phaseRules = []phaseRule{
	{PhaseGreeting, []string{"hello", "hi", "hey", "good morning", "good afternoon", "good evening"}},
	{PhaseDemographics, []string{"my name is", "name", "date of birth", "born", "address", "phone number"}},
	{PhaseInsuranceVerification, []string{"insurance", "coverage", "policy", "member id", "copay", "deductible"}},
	{PhaseAppointmentScheduling, []string{"appointment", "schedule", "book", "reschedule", "visit", "availability"}},
	{PhaseGoodbye, []string{"goodbye", "bye", "thanks", "thank you", "that's all", "hang up"}},
}

// Classify maps raw user input to the next conversation phase. Input that
// matches no rule leaves the phase unchanged.
func Classify(current Phase, input string) Phase {
	lowered := strings.ToLower(strings.TrimSpace(input))
	if lowered == "" {
		return current
	}
	for _, rule := range phaseRules {
		for _, kw := range rule.keywords {
			if matchKeyword(lowered, kw) {
				return rule.phase
			}
		}
	}
	return current
}

// matchKeyword treats multi-word keywords as substrings and single words as
// whole words, so "hi" does not fire inside "this".
func matchKeyword(lowered, kw string) bool {
	if strings.ContainsRune(kw, ' ') {
		return strings.Contains(lowered, kw)
	}
	for _, word := range strings.FieldsFunc(lowered, func(r rune) bool {
		return !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9') && r != '\''
	}) {
		if word == kw {
			return true
		}
	}
	return false
}
