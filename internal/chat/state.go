package chat

import "fmt"

// State is the lifecycle phase of a single turn.
type State string

const (
	StateIdle          State = "idle"
	StateAwaitingModel State = "awaitingModel"
	StateStreaming     State = "streaming"
	StateToolDispatch  State = "toolDispatch"
	StateFinalizing    State = "finalizing"
	StateCompleted     State = "completed"
	StateErrored       State = "errored"
)

// validTransitions is the closed set of legal forward edges. Errored is
// reachable from every non-terminal state and is handled separately.
var validTransitions = map[State][]State{
	StateIdle:          {StateAwaitingModel},
	StateAwaitingModel: {StateStreaming},
	StateStreaming:     {StateToolDispatch, StateFinalizing},
	StateToolDispatch:  {StateAwaitingModel},
	StateFinalizing:    {StateCompleted},
}

// turnState tracks one turn through its lifecycle. Transitions outside
// the machine indicate a bug in the orchestrator, not bad input, so
// advance returns an error instead of panicking and the caller treats it
// as an internal failure.
//
// turnState is not safe for concurrent use; a turn runs on one goroutine.
type turnState struct {
	current State
}

func newTurnState() *turnState {
	return &turnState{current: StateIdle}
}

// advance moves the turn to next, rejecting illegal transitions.
func (s *turnState) advance(next State) error {
	if next == StateErrored {
		if s.terminal() {
			return fmt.Errorf("illegal transition %s -> %s", s.current, next)
		}
		s.current = StateErrored
		return nil
	}
	for _, allowed := range validTransitions[s.current] {
		if next == allowed {
			s.current = next
			return nil
		}
	}
	return fmt.Errorf("illegal transition %s -> %s", s.current, next)
}

// terminal reports whether the turn has ended.
func (s *turnState) terminal() bool {
	return s.current == StateCompleted || s.current == StateErrored
}
