package pipeline

// State is a stage of the capture pipeline.
type State int

const (
	Idle State = iota
	Listening
	Recording
	Aligning
	Scoring
	Done
	Error
)

func (s State) String() string {
	switch s {
	case Idle:
		return "IDLE"
	case Listening:
		return "LISTENING"
	case Recording:
		return "RECORDING"
	case Aligning:
		return "ALIGNING"
	case Scoring:
		return "SCORING"
	case Done:
		return "DONE"
	case Error:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether no further transitions can happen from s.
func (s State) Terminal() bool { return s == Done || s == Error }

// next lists the legal successors of each state other than Error.
var next = map[State][]State{
	Idle:      {Listening, Aligning},
	Listening: {Recording},
	Recording: {Aligning},
	Aligning:  {Scoring},
	Scoring:   {Done},
}

// CanTransition reports whether from -> to is a legal transition. Error is
// reachable from every non-idle, non-terminal state. Idle may go straight to
// Aligning when scoring an existing recording.
func CanTransition(from, to State) bool {
	if to == Error {
		return from != Idle && !from.Terminal()
	}
	for _, s := range next[from] {
		if s == to {
			return true
		}
	}
	return false
}
