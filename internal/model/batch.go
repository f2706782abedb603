package model

import (
	"fmt"
	"strings"
)

// Batch is a bounded group of persisted entries handed to a sender as one unit.
type Batch struct {
	// ID is the opaque handle storage uses to delete or release the batch.
	ID string

	// GroupID is the channel the entries belong to.
	GroupID string

	Entries []*LogEntry
}

// Len returns the number of entries in the batch.
func (b *Batch) Len() int {
	return len(b.Entries)
}

// EntryIDs returns the storage identifiers of the batch entries.
func (b *Batch) EntryIDs() []int64 {
	ids := make([]int64, len(b.Entries))
	for i, e := range b.Entries {
		ids[i] = e.ID
	}
	return ids
}

// Priority ranks channels sharing one storage. When the storage is full,
// events of lower priority channels are evicted first.
type Priority int

const (
	PriorityBackup Priority = iota
	PriorityDefault
	PriorityHigh
)

// String returns the configuration name of the priority.
func (p Priority) String() string {
	switch p {
	case PriorityBackup:
		return "backup"
	case PriorityDefault:
		return "default"
	case PriorityHigh:
		return "high"
	default:
		return fmt.Sprintf("priority(%d)", int(p))
	}
}

// ParsePriority converts a configuration string into a Priority.
// An empty string maps to PriorityDefault.
func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "default":
		return PriorityDefault, nil
	case "backup":
		return PriorityBackup, nil
	case "high":
		return PriorityHigh, nil
	default:
		return PriorityDefault, fmt.Errorf("unknown priority %q", s)
	}
}
