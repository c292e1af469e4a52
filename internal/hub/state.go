package hub

// State is a module's registration state.
//
//	Unregistered -> Registering -> Registered -> Unregistering ->
//	DisposingExecutor -> CompletingNormalTasks -> Unregistered
type State int

const (
	StateUnregistered State = iota
	StateRegistering
	StateRegistered
	StateUnregistering
	StateDisposingExecutor
	StateCompletingNormalTasks
)

func (s State) String() string {
	switch s {
	case StateUnregistered:
		return "unregistered"
	case StateRegistering:
		return "registering"
	case StateRegistered:
		return "registered"
	case StateUnregistering:
		return "unregistering"
	case StateDisposingExecutor:
		return "disposing_executor"
	case StateCompletingNormalTasks:
		return "completing_normal_tasks"
	default:
		return "unknown"
	}
}

// tearingDown reports whether unregistration has started but not finished.
func (s State) tearingDown() bool {
	return s == StateUnregistering || s == StateDisposingExecutor || s == StateCompletingNormalTasks
}
