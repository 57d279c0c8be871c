package pipeline

import "fmt"

// Phase is one stage of a run.
type Phase int

const (
	PhaseLoad Phase = iota
	PhaseBegin
	PhaseFetch
	PhaseProcess
	PhaseEnd
	PhaseAbort
)

func (p Phase) String() string {
	switch p {
	case PhaseLoad:
		return "load"
	case PhaseBegin:
		return "begin"
	case PhaseFetch:
		return "fetch"
	case PhaseProcess:
		return "process"
	case PhaseEnd:
		return "end"
	case PhaseAbort:
		return "abort"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// State is the position of a runner in its lifecycle.
type State int

const (
	StateUnloaded State = iota
	StateLoaded
	StateBegun
	StateFetched
	StateProcessed
	StateComplete
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateLoaded:
		return "loaded"
	case StateBegun:
		return "begun"
	case StateFetched:
		return "fetched"
	case StateProcessed:
		return "processed"
	case StateComplete:
		return "complete"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Terminal reports whether no further phase can run from s.
func (s State) Terminal() bool {
	return s == StateComplete || s == StateFailed
}
