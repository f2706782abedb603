package channel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GabrielNunesIT/log-shipper/internal/model"
)

func batchOf(id string, n int) *model.Batch {
	b := &model.Batch{ID: id, GroupID: "logs"}
	for i := 0; i < n; i++ {
		b.Entries = append(b.Entries, &model.LogEntry{ID: int64(i + 1)})
	}
	return b
}

func TestScheduler_ItemAdded(t *testing.T) {
	s := newScheduler(testConfig(3, time.Hour, 1))
	defer s.disarm()

	assert.False(t, s.itemAdded(true))
	assert.NotNil(t, s.timerC, "partial batch arms the timer")
	assert.False(t, s.itemAdded(true))
	assert.True(t, s.itemAdded(true), "threshold reached")

	s.disarm()
	assert.False(t, s.itemAdded(false))
	assert.Nil(t, s.timerC, "suspended units never arm")
	assert.Equal(t, 4, s.itemsCount)
}

func TestScheduler_ZeroInterval(t *testing.T) {
	s := newScheduler(testConfig(10, 0, 1))
	assert.True(t, s.itemAdded(true))
	assert.Nil(t, s.timerC)
}

func TestScheduler_Backpressure(t *testing.T) {
	s := newScheduler(testConfig(1, time.Hour, 2))
	defer s.disarm()
	s.seed(3)

	require.True(t, s.beginFlush())
	assert.Equal(t, phaseFlushing, s.phase)
	s.batchCut(batchOf("a", 1))
	require.True(t, s.beginFlush())
	s.batchCut(batchOf("b", 1))

	assert.False(t, s.hasSlot())
	assert.False(t, s.beginFlush())
	assert.Equal(t, phaseAwaitingSlot, s.phase)

	assert.True(t, s.batchCompleted("a", true, true, true), "freed slot serves the waiting flush")
	assert.Equal(t, phaseIdle, s.phase)
	assert.Equal(t, 2, s.itemsCount)
	assert.Equal(t, 1, s.unbatched())
}

func TestScheduler_BatchCut(t *testing.T) {
	s := newScheduler(testConfig(2, time.Hour, 3))
	defer s.disarm()
	s.seed(3)

	require.True(t, s.beginFlush())
	s.batchCut(batchOf("a", 2))
	assert.NotNil(t, s.timerC, "leftover events keep the timer armed")

	require.True(t, s.beginFlush())
	s.batchCut(batchOf("b", 1))
	assert.Nil(t, s.timerC, "nothing left to cut")

	s.arm()
	require.True(t, s.beginFlush())
	s.batchCut(nil)
	assert.Nil(t, s.timerC)
	assert.Equal(t, phaseIdle, s.phase)
}

func TestScheduler_BatchCompleted(t *testing.T) {
	t.Run("retained failure rearms the timer", func(t *testing.T) {
		s := newScheduler(testConfig(10, time.Hour, 1))
		defer s.disarm()
		s.seed(1)
		s.batchCut(batchOf("a", 1))
		assert.False(t, s.batchCompleted("a", false, false, true))
		assert.Equal(t, 1, s.itemsCount)
		assert.NotNil(t, s.timerC)
	})

	t.Run("zero interval flushes after success only", func(t *testing.T) {
		s := newScheduler(testConfig(1, 0, 1))
		s.seed(2)
		s.batchCut(batchOf("a", 1))
		assert.True(t, s.batchCompleted("a", true, true, true))

		s.batchCut(batchOf("b", 1))
		s.itemsCount++
		assert.False(t, s.batchCompleted("b", false, false, true))
	})

	t.Run("not enabled never flushes", func(t *testing.T) {
		s := newScheduler(testConfig(1, time.Hour, 1))
		defer s.disarm()
		s.seed(2)
		s.batchCut(batchOf("a", 1))
		assert.False(t, s.beginFlush())
		assert.False(t, s.batchCompleted("a", true, true, false))
		assert.Equal(t, 1, s.itemsCount)
	})

	t.Run("unknown batch", func(t *testing.T) {
		s := newScheduler(testConfig(1, time.Hour, 1))
		assert.False(t, s.batchCompleted("ghost", true, true, true))
		assert.Equal(t, 0, s.itemsCount)
	})
}

func TestScheduler_EvictedAndReset(t *testing.T) {
	s := newScheduler(testConfig(2, time.Hour, 1))
	s.seed(5)
	s.batchCut(batchOf("a", 2))

	s.evicted(1)
	assert.Equal(t, 4, s.itemsCount)
	s.evicted(100)
	assert.Equal(t, 2, s.itemsCount, "clamped to in-flight events")

	s.phase = phaseAwaitingSlot
	s.reset()
	assert.Equal(t, 0, s.itemsCount)
	assert.Empty(t, s.pending)
	assert.Equal(t, phaseIdle, s.phase)
	assert.Nil(t, s.timerC)
}

func TestScheduler_Stats(t *testing.T) {
	s := newScheduler(testConfig(2, time.Hour, 1))
	defer s.disarm()
	s.seed(3)
	s.batchCut(batchOf("a", 2))
	s.beginFlush()

	assert.Equal(t, Stats{
		State:         StateSuspended,
		ItemsCount:    3,
		Pending:       1,
		PendingEvents: 2,
		AwaitingSlot:  true,
	}, s.stats(StateSuspended))
}
