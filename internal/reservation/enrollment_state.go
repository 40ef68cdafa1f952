package reservation

// EnrollmentState is where a user stands with respect to one event.
type EnrollmentState int

const (
	StateNone EnrollmentState = iota
	StateEnrolled
)

func (s EnrollmentState) String() string {
	switch s {
	case StateNone:
		return "NONE"
	case StateEnrolled:
		return "ENROLLED"
	}
	return "UNKNOWN"
}

// EnrollmentEvent drives the enrollment state machine.
type EnrollmentEvent int

const (
	// EventEnroll is an accepted enroll request (first or additional seats).
	EventEnroll EnrollmentEvent = iota
	// EventCancel is a cancel request.
	EventCancel
)

// Next returns the state reached from s on ev and whether a transition
// exists.  The machine has exactly three transitions:
//
//	NONE     --enroll--> ENROLLED
//	ENROLLED --enroll--> ENROLLED
//	ENROLLED --cancel--> NONE
//
// Cancelling from NONE has no transition and leaves the state unchanged.
// A rejected enroll never reaches the machine.
func (s EnrollmentState) Next(ev EnrollmentEvent) (EnrollmentState, bool) {
	switch {
	case ev == EventEnroll && (s == StateNone || s == StateEnrolled):
		return StateEnrolled, true
	case ev == EventCancel && s == StateEnrolled:
		return StateNone, true
	}
	return s, false
}

func stateOf(enrolled bool) EnrollmentState {
	if enrolled {
		return StateEnrolled
	}
	return StateNone
}
