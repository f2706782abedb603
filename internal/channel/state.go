package channel

import "fmt"

// State is the lifecycle state of a channel unit.
type State int

const (
	// StateEnabled persists and ships events.
	StateEnabled State = iota
	// StateSuspended persists events but issues no flushes.
	StateSuspended
	// StateDisabled rejects events. It is terminal.
	StateDisabled
)

func (s State) String() string {
	switch s {
	case StateEnabled:
		return "enabled"
	case StateSuspended:
		return "suspended"
	case StateDisabled:
		return "disabled"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Stats is a point-in-time snapshot of a unit's bookkeeping.
type Stats struct {
	State State

	// ItemsCount is the number of persisted events not yet deleted.
	ItemsCount int

	// Pending is the number of batches in flight.
	Pending int

	// PendingEvents is the number of events across in-flight batches.
	PendingEvents int

	// AwaitingSlot reports a flush that was refused by the in-flight limit
	// and will run when a batch completes.
	AwaitingSlot bool
}
