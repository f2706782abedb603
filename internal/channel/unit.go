// Package channel implements the channel unit: it persists events for one
// group, cuts them into batches, ships the batches through a sender and
// reconciles the outcome against storage.
package channel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/GabrielNunesIT/go-libs/logger"

	"github.com/GabrielNunesIT/log-shipper/internal/model"
	"github.com/GabrielNunesIT/log-shipper/internal/sender"
	"github.com/GabrielNunesIT/log-shipper/internal/storage"
)

var (
	// ErrChannelDisabled is returned by Enqueue once the unit was disabled.
	ErrChannelDisabled = errors.New("channel disabled")

	// ErrChannelStopped is returned for operations on a unit that is not running.
	ErrChannelStopped = errors.New("channel stopped")
)

const (
	lifecycleNew int32 = iota
	lifecycleRunning
	lifecycleStopped
)

// Option configures a Unit.
type Option func(*Unit)

// WithSuspended starts the unit in the Suspended state.
func WithSuspended() Option {
	return func(u *Unit) {
		u.state = StateSuspended
	}
}

// completion carries a sender outcome back onto the loop goroutine.
type completion struct {
	batch  *model.Batch
	result sender.Result
}

// Unit is the channel for one group. All of its state is owned by a single
// goroutine; public methods submit work to it and wait for the result.
type Unit struct {
	cfg       Config
	store     storage.Storage
	sender    sender.Sender
	delegates *delegateSet
	events    *eventQueue
	logger    logger.ILogger

	ops         chan func()
	completions chan completion
	stopping    chan struct{}
	abort       chan struct{}
	done        chan struct{}
	lifecycle   atomic.Int32
	stopOnce    sync.Once

	// ctx bounds storage calls and sends made by the loop. It outlives the
	// caller of Start and is cancelled when the loop exits.
	ctx    context.Context
	cancel context.CancelFunc

	// Loop-owned.
	state    State
	sched    *scheduler
	purged   bool
	draining bool
}

// New creates a unit. It does nothing until Start.
func New(cfg Config, store storage.Storage, snd sender.Sender, log logger.ILogger, opts ...Option) (*Unit, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	sub := log.SubLogger("Channel[" + cfg.GroupID + "]")
	u := &Unit{
		cfg:         cfg,
		store:       store,
		sender:      snd,
		delegates:   newDelegateSet(sub),
		events:      newEventQueue(),
		logger:      sub,
		ops:         make(chan func()),
		completions: make(chan completion, cfg.PendingBatchesLimit),
		stopping:    make(chan struct{}),
		abort:       make(chan struct{}),
		done:        make(chan struct{}),
		state:       StateEnabled,
		sched:       newScheduler(cfg),
	}
	u.delegates.dispatch = u.events.post
	for _, opt := range opts {
		opt(u)
	}
	return u, nil
}

// Group returns the group id the unit serves.
func (u *Unit) Group() string {
	return u.cfg.GroupID
}

// Config returns the unit's parameters.
func (u *Unit) Config() Config {
	return u.cfg
}

// Start seeds the event count from storage and launches the loop. Events
// left by a previous process are flushed right away.
func (u *Unit) Start(ctx context.Context) error {
	if u.lifecycle.Load() != lifecycleNew {
		return fmt.Errorf("channel %s: already started", u.cfg.GroupID)
	}

	n, err := u.store.Count(ctx, u.cfg.GroupID)
	if err != nil {
		return fmt.Errorf("channel %s: counting stored events: %w", u.cfg.GroupID, err)
	}

	if !u.lifecycle.CompareAndSwap(lifecycleNew, lifecycleRunning) {
		return fmt.Errorf("channel %s: already started", u.cfg.GroupID)
	}
	u.sched.seed(n)
	u.ctx, u.cancel = context.WithCancel(context.WithoutCancel(ctx))
	state := u.state
	go u.events.run()
	go u.run()

	u.logger.Infof("channel started: state=%s, stored=%d, batchsize=%d, interval=%s, pending=%d",
		state, n, u.cfg.BatchSizeLimit, u.cfg.FlushInterval, u.cfg.PendingBatchesLimit)

	if n == 0 {
		return nil
	}
	return u.do(ctx, func() error {
		u.drain()
		return nil
	})
}

// Stop rejects further operations and waits for in-flight batches to be
// reconciled. When ctx expires first the loop exits anyway; the abandoned
// batches stay in storage and are sent again after a restart.
func (u *Unit) Stop(ctx context.Context) error {
	if !u.lifecycle.CompareAndSwap(lifecycleRunning, lifecycleStopped) {
		u.lifecycle.CompareAndSwap(lifecycleNew, lifecycleStopped)
		return nil
	}
	close(u.stopping)

	select {
	case <-u.done:
		if err := u.events.wait(ctx); err != nil {
			u.logger.Warning("channel stopped with delegate callbacks pending")
			return fmt.Errorf("channel %s: %w", u.cfg.GroupID, err)
		}
		u.logger.Info("channel stopped")
		return nil
	case <-ctx.Done():
		u.stopOnce.Do(func() { close(u.abort) })
		<-u.done
		u.logger.Warning("channel stopped with batches in flight")
		return fmt.Errorf("channel %s: %w", u.cfg.GroupID, ctx.Err())
	}
}

// Enqueue persists the entry and schedules it for shipping.
// Persisted entries survive suspension and restarts.
func (u *Unit) Enqueue(ctx context.Context, entry *model.LogEntry) error {
	return u.do(ctx, func() error {
		if u.state == StateDisabled {
			return ErrChannelDisabled
		}
		if _, err := u.store.Persist(ctx, u.cfg.GroupID, u.cfg.Priority, entry); err != nil {
			return fmt.Errorf("channel %s: persisting entry: %w", u.cfg.GroupID, err)
		}
		u.delegates.enqueued(entry)
		if u.sched.itemAdded(u.state == StateEnabled) {
			u.flush()
		}
		return nil
	})
}

// Suspend stops flushing. Batches already sent are still reconciled.
func (u *Unit) Suspend(ctx context.Context) error {
	return u.do(ctx, func() error {
		u.suspend()
		return nil
	})
}

// Resume re-enables flushing and drains what accumulated while suspended.
func (u *Unit) Resume(ctx context.Context) error {
	return u.do(ctx, func() error {
		if u.state != StateSuspended {
			return nil
		}
		u.state = StateEnabled
		u.logger.Info("channel resumed")
		u.delegates.resumed()
		u.drain()
		return nil
	})
}

// Disable moves the unit to its terminal state. With deleteData every stored
// event of the group is removed.
func (u *Unit) Disable(ctx context.Context, deleteData bool) error {
	return u.do(ctx, func() error {
		if u.state != StateDisabled {
			u.state = StateDisabled
			u.sched.disarm()
			u.logger.Info("channel disabled")
		}
		if !deleteData || u.purged {
			return nil
		}
		n, err := u.store.DeleteGroup(ctx, u.cfg.GroupID)
		if err != nil {
			return fmt.Errorf("channel %s: deleting stored events: %w", u.cfg.GroupID, err)
		}
		u.purged = true
		u.sched.reset()
		u.logger.Infof("stored events deleted: count=%d", n)
		return nil
	})
}

// State returns the current state.
func (u *Unit) State(ctx context.Context) (State, error) {
	var st State
	err := u.do(ctx, func() error {
		st = u.state
		return nil
	})
	return st, err
}

// Stats returns a snapshot of the unit's counters.
func (u *Unit) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := u.do(ctx, func() error {
		st = u.sched.stats(u.state)
		return nil
	})
	return st, err
}

// RemoveDelegate unregisters an observer. Unknown handles are ignored.
func (u *Unit) RemoveDelegate(h DelegateHandle) {
	u.delegates.remove(h)
}

// Evicted accounts for n events of the group that storage removed on its own.
func (u *Unit) Evicted(ctx context.Context, n int) error {
	return u.do(ctx, func() error {
		u.sched.evicted(n)
		u.logger.Debugf("events evicted by storage: count=%d", n)
		return nil
	})
}

// do runs fn on the loop goroutine and returns its error.
func (u *Unit) do(ctx context.Context, fn func() error) error {
	if u.lifecycle.Load() != lifecycleRunning {
		return ErrChannelStopped
	}

	errc := make(chan error, 1)
	op := func() {
		if u.draining {
			errc <- ErrChannelStopped
			return
		}
		errc <- fn()
	}

	select {
	case u.ops <- op:
	case <-u.done:
		return ErrChannelStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	return <-errc
}

func (u *Unit) run() {
	defer u.events.close()
	defer close(u.done)
	defer u.cancel()
	defer u.sched.disarm()

	stopping := u.stopping
	for {
		if u.draining && len(u.sched.pending) == 0 {
			return
		}

		select {
		case op := <-u.ops:
			op()
		case c := <-u.completions:
			u.reconcile(c)
		case <-u.sched.timerC:
			u.sched.timerFired()
			u.flush()
		case <-stopping:
			stopping = nil
			u.draining = true
			u.sched.disarm()
			if n := len(u.sched.pending); n > 0 {
				u.logger.Infof("waiting for in-flight batches: count=%d", n)
			}
		case <-u.abort:
			return
		}
	}
}

// drain flushes until a partial batch is cut or no slot is left.
func (u *Unit) drain() {
	for u.flush() {
	}
}

// flush attempts to cut and send one batch. It reports whether a full batch
// went out and another slot is free.
func (u *Unit) flush() bool {
	if u.state != StateEnabled || u.draining {
		return false
	}
	if !u.sched.beginFlush() {
		u.logger.Debugf("in-flight limit reached, flush deferred: pending=%d", len(u.sched.pending))
		return false
	}

	batch, err := u.store.FetchNextBatch(u.ctx, u.cfg.GroupID, u.cfg.BatchSizeLimit)
	if err != nil {
		u.sched.fetchFailed()
		u.logger.Warningf("fetching batch failed: %v", err)
		return false
	}
	u.sched.batchCut(batch)
	if batch == nil {
		return false
	}

	u.logger.Debugf("sending batch: batch=%s, events=%d", batch.ID, batch.Len())
	u.sender.Send(u.ctx, batch, u.completeFunc(batch))
	return batch.Len() >= u.cfg.BatchSizeLimit && u.sched.hasSlot()
}

// completeFunc returns the callback handed to the sender. It only forwards
// the outcome to the loop; reconciling happens there.
func (u *Unit) completeFunc(batch *model.Batch) sender.CompletionFunc {
	var once sync.Once
	return func(res sender.Result) {
		once.Do(func() {
			select {
			case u.completions <- completion{batch: batch, result: res}:
			case <-u.done:
			}
		})
	}
}

// reconcile applies a sender outcome to storage and the scheduler.
func (u *Unit) reconcile(c completion) {
	id := c.batch.ID
	res := c.result
	deleted := false

	switch {
	case res.Status == sender.StatusSuccess, u.purged:
		if err := u.store.DeleteBatch(u.ctx, id); err != nil {
			u.logger.Warningf("deleting sent batch failed, it will be sent again: batch=%s, error=%v", id, err)
			u.release(id)
		} else {
			deleted = true
		}
	default:
		u.release(id)
	}

	if res.Status == sender.StatusSuccess {
		u.logger.Debugf("batch sent: batch=%s, events=%d", id, c.batch.Len())
		u.delegates.sendSucceeded(id)
	} else {
		u.logger.Warningf("batch failed: batch=%s, status=%s, error=%v", id, res.Status, res.Err)
		u.delegates.sendFailed(id, res.Err)
	}

	if res.Status == sender.StatusFatal {
		u.suspend()
	}

	if u.sched.batchCompleted(id, deleted, res.Status == sender.StatusSuccess, u.state == StateEnabled) {
		u.flush()
	}
}

// release makes a batch's events eligible again.
func (u *Unit) release(batchID string) {
	if err := u.store.ReleaseBatch(u.ctx, batchID); err != nil {
		// Marks are cleared when storage is reopened.
		u.logger.Errorf("releasing batch failed: batch=%s, error=%v", batchID, err)
	}
}

func (u *Unit) suspend() {
	if u.state != StateEnabled {
		return
	}
	u.state = StateSuspended
	u.sched.disarm()
	u.logger.Info("channel suspended")
	u.delegates.suspended()
}
