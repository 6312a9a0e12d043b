package engine

// State is the engine's self-reported condition.
type State string

// Engine states. Starting lasts until Initialize; shutdown is terminal.
const (
	StateStarting   State = "starting"
	StateHealthy    State = "healthy"
	StateDegraded   State = "degraded"
	StateOverloaded State = "overloaded"
	StateFailing    State = "failing"
	StateShutdown   State = "shutdown"
)

var allStates = []State{
	StateStarting,
	StateHealthy,
	StateDegraded,
	StateOverloaded,
	StateFailing,
	StateShutdown,
}
