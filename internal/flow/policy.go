// Package flow implements the per-session intake state machine and its
// verification policy.
//
// This file holds the pure retry/escalation policy for biometric verification.
package flow

// DefaultMaxFaceAttempts is the total capture cycles allowed before the flow
// escalates to manual verification.
const DefaultMaxFaceAttempts = 3

// Outcome classifies one biometric capture attempt. Matcher and transport
// errors are classified as no-match by the caller; they consume an attempt,
// never crash the flow.
type Outcome int

const (
	OutcomeMatch Outcome = iota
	OutcomeNoMatch
)

// Decision is the policy's verdict for the attempt.
type Decision int

const (
	// DecisionSuccess completes verification.
	DecisionSuccess Decision = iota
	// DecisionRetry stays in place and requests another capture.
	DecisionRetry
	// DecisionEscalate moves to manual verification.
	DecisionEscalate
)

// Decide maps a capture outcome and the failed-attempt count so far (including
// this one) to a decision. Deterministic and side-effect free.
func Decide(outcome Outcome, attempts, max int) Decision {
	if outcome == OutcomeMatch {
		return DecisionSuccess
	}
	if attempts >= max {
		return DecisionEscalate
	}
	return DecisionRetry
}
