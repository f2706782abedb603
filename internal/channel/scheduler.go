package channel

import (
	"time"

	"github.com/GabrielNunesIT/log-shipper/internal/model"
)

// phase tracks flush demand against the in-flight limit.
type phase int

const (
	phaseIdle phase = iota
	// phaseAwaitingSlot: a flush was refused because every slot was taken.
	// The next batch completion flushes.
	phaseAwaitingSlot
	// phaseFlushing: a fetch from storage is running.
	phaseFlushing
)

func (p phase) String() string {
	switch p {
	case phaseIdle:
		return "idle"
	case phaseAwaitingSlot:
		return "awaiting-slot"
	case phaseFlushing:
		return "flushing"
	default:
		return "unknown"
	}
}

// scheduler decides when a batch is cut and tracks batches in flight.
// It is owned by the unit's loop goroutine and never locks.
type scheduler struct {
	batchSize int
	interval  time.Duration
	limit     int

	itemsCount int
	pending    map[string]int
	phase      phase

	timer  *time.Timer
	timerC <-chan time.Time
}

func newScheduler(cfg Config) *scheduler {
	return &scheduler{
		batchSize: cfg.BatchSizeLimit,
		interval:  cfg.FlushInterval,
		limit:     cfg.PendingBatchesLimit,
		pending:   make(map[string]int, cfg.PendingBatchesLimit),
	}
}

// seed sets the persisted event count found at startup.
func (s *scheduler) seed(n int) {
	s.itemsCount = n
}

// itemAdded counts a persisted event and reports whether a flush is due now.
// Without enabled the event is only counted.
func (s *scheduler) itemAdded(enabled bool) bool {
	s.itemsCount++
	if !enabled {
		return false
	}
	if s.interval == 0 || s.itemsCount%s.batchSize == 0 {
		return true
	}
	s.arm()
	return false
}

// beginFlush admits a flush attempt, or records the demand when every slot is taken.
func (s *scheduler) beginFlush() bool {
	if len(s.pending) >= s.limit {
		s.phase = phaseAwaitingSlot
		return false
	}
	s.phase = phaseFlushing
	return true
}

// batchCut ends a flush attempt. batch is nil when storage had nothing eligible.
func (s *scheduler) batchCut(batch *model.Batch) {
	s.phase = phaseIdle
	if batch == nil {
		s.disarm()
		return
	}
	s.pending[batch.ID] = batch.Len()
	if s.unbatched() > 0 {
		s.arm()
	} else {
		s.disarm()
	}
}

// fetchFailed ends a flush attempt that could not reach storage.
// The timer retries it when there is work left.
func (s *scheduler) fetchFailed() {
	s.phase = phaseIdle
	if s.unbatched() > 0 {
		s.arm()
	}
}

// batchCompleted forgets a batch and reports whether a flush is due now.
// deleted tells whether its events left storage.
func (s *scheduler) batchCompleted(batchID string, deleted, succeeded, enabled bool) bool {
	if count, ok := s.pending[batchID]; ok {
		delete(s.pending, batchID)
		if deleted {
			s.itemsCount -= count
		}
	}
	s.clampItems()

	if !enabled {
		return false
	}
	if s.phase == phaseAwaitingSlot {
		s.phase = phaseIdle
		return true
	}
	if s.unbatched() <= 0 {
		return false
	}
	if s.interval > 0 {
		s.arm()
		return false
	}
	// With no interval a failed batch waits for the next enqueue.
	return succeeded
}

// evicted accounts for events storage removed on its own.
func (s *scheduler) evicted(n int) {
	s.itemsCount -= n
	s.clampItems()
}

// clampItems keeps itemsCount from dropping below what is in flight.
func (s *scheduler) clampItems() {
	if floor := s.pendingEvents(); s.itemsCount < floor {
		s.itemsCount = floor
	}
}

// reset drops all bookkeeping after the group's data was purged.
func (s *scheduler) reset() {
	s.disarm()
	clear(s.pending)
	s.itemsCount = 0
	s.phase = phaseIdle
}

// hasSlot reports whether another batch may be put in flight.
func (s *scheduler) hasSlot() bool {
	return len(s.pending) < s.limit
}

func (s *scheduler) pendingEvents() int {
	sum := 0
	for _, n := range s.pending {
		sum += n
	}
	return sum
}

// unbatched is the number of persisted events not in any in-flight batch.
func (s *scheduler) unbatched() int {
	return s.itemsCount - s.pendingEvents()
}

// arm starts the flush timer unless it is already running.
func (s *scheduler) arm() {
	if s.timer != nil || s.interval <= 0 {
		return
	}
	s.timer = time.NewTimer(s.interval)
	s.timerC = s.timer.C
}

func (s *scheduler) disarm() {
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = nil
	s.timerC = nil
}

// timerFired must be called when timerC delivers.
func (s *scheduler) timerFired() {
	s.timer = nil
	s.timerC = nil
}

func (s *scheduler) stats(state State) Stats {
	return Stats{
		State:         state,
		ItemsCount:    s.itemsCount,
		Pending:       len(s.pending),
		PendingEvents: s.pendingEvents(),
		AwaitingSlot:  s.phase == phaseAwaitingSlot,
	}
}
