package client

// State is a request's position in the pipeline.
type State int

const (
	StateCreated State = iota
	StateValidating
	StateValidationFailed
	StateValidated
	StateDispatched
	StateTransportStartFailed
	StateTransportCompleted
	StateNormalized
	StateTerminal
)

var stateNames = [...]string{
	StateCreated:              "created",
	StateValidating:           "validating",
	StateValidationFailed:     "validation_failed",
	StateValidated:            "validated",
	StateDispatched:           "dispatched",
	StateTransportStartFailed: "transport_start_failed",
	StateTransportCompleted:   "transport_completed",
	StateNormalized:           "normalized",
	StateTerminal:             "terminal",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

var transitions = map[State][]State{
	StateCreated:              {StateValidating},
	StateValidating:           {StateValidationFailed, StateValidated},
	StateValidationFailed:     {StateTerminal},
	StateValidated:            {StateDispatched},
	StateDispatched:           {StateTransportStartFailed, StateTransportCompleted},
	StateTransportStartFailed: {StateTerminal},
	StateTransportCompleted:   {StateNormalized},
	StateNormalized:           {StateTerminal},
}

// CanTransition reports whether a request may move from one state to another.
// Terminal has no successors.
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
