package pipeline

// State tracks the orchestrator lifecycle. Queries are only served
// while a snapshot is installed, which happens on the transition to
// StateReady.
type State int32

const (
	StateUninitialized State = iota
	StateBuilding
	StateReady
	StateRebuilding
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateBuilding:
		return "building"
	case StateReady:
		return "ready"
	case StateRebuilding:
		return "rebuilding"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}
