package scripting

// Result is the outcome of dispatching a scripted command
type Result int

const (
	// ResultUnregistered means no handler is registered; the command slot
	// exists but has nothing to do
	ResultUnregistered Result = iota
	// ResultDeclined means the handler ran and returned false
	ResultDeclined
	// ResultHandled means the handler ran and returned anything but false
	ResultHandled
)

func (r Result) String() string {
	switch r {
	case ResultUnregistered:
		return "unregistered"
	case ResultDeclined:
		return "declined"
	case ResultHandled:
		return "handled"
	default:
		return "unknown"
	}
}
