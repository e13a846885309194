package checkout

// State is the position of a single checkout attempt.
type State string

const (
	StateIdle       State = "idle"
	StateValidating State = "validating"
	StateSubmitting State = "submitting"
	StateProcessing State = "processing"
	StateSucceeded  State = "succeeded"
	StateFailed     State = "failed"
)

var validNext = map[State]map[State]bool{
	StateIdle:       {StateValidating: true},
	StateValidating: {StateIdle: true, StateSubmitting: true},
	StateSubmitting: {StateIdle: true, StateProcessing: true},
	StateProcessing: {StateSucceeded: true, StateFailed: true},
	StateSucceeded:  {},
	StateFailed:     {},
}

func CanTransition(from, to State) bool {
	return validNext[from][to]
}

func (s State) String() string { return string(s) }
