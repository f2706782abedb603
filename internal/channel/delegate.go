package channel

import (
	"context"
	"sync"
	"weak"

	"github.com/GabrielNunesIT/go-libs/logger"

	"github.com/GabrielNunesIT/log-shipper/internal/model"
)

// Delegate observes a channel unit.
// Callbacks run in order on a goroutine of their own, so they may call back
// into the unit.
type Delegate interface {
	OnEnqueued(entry *model.LogEntry)
	OnSendSucceeded(batchID string)
	OnSendFailed(batchID string, err error)
	OnSuspended()
	OnResumed()
}

// DelegateFuncs adapts plain functions to Delegate. Nil fields are skipped.
type DelegateFuncs struct {
	Enqueued      func(entry *model.LogEntry)
	SendSucceeded func(batchID string)
	SendFailed    func(batchID string, err error)
	Suspended     func()
	Resumed       func()
}

func (d DelegateFuncs) OnEnqueued(entry *model.LogEntry) {
	if d.Enqueued != nil {
		d.Enqueued(entry)
	}
}

func (d DelegateFuncs) OnSendSucceeded(batchID string) {
	if d.SendSucceeded != nil {
		d.SendSucceeded(batchID)
	}
}

func (d DelegateFuncs) OnSendFailed(batchID string, err error) {
	if d.SendFailed != nil {
		d.SendFailed(batchID, err)
	}
}

func (d DelegateFuncs) OnSuspended() {
	if d.Suspended != nil {
		d.Suspended()
	}
}

func (d DelegateFuncs) OnResumed() {
	if d.Resumed != nil {
		d.Resumed()
	}
}

// DelegateHandle identifies a registration. The zero handle is never issued.
type DelegateHandle uint64

// AddDelegate registers an observer of u. It may be called before Start.
// The unit only keeps a weak reference: once the caller drops its last
// reference to d, d stops receiving callbacks and its registration is pruned.
func AddDelegate[T any, P interface {
	*T
	Delegate
}](u *Unit, d P) DelegateHandle {
	return addDelegate(u.delegates, d)
}

func addDelegate[T any, P interface {
	*T
	Delegate
}](s *delegateSet, d P) DelegateHandle {
	ref := weak.Make((*T)(d))
	return s.add(func() Delegate {
		if v := ref.Value(); v != nil {
			return P(v)
		}
		return nil
	})
}

// delegateSet is a handle-keyed registry of weakly held delegates.
// Registration may happen from any goroutine; delivery works on a snapshot.
type delegateSet struct {
	mu     sync.Mutex
	next   DelegateHandle
	byID   map[DelegateHandle]func() Delegate
	logger logger.ILogger

	// dispatch runs a delivery. Units route it through their eventQueue.
	dispatch func(func())
}

func newDelegateSet(log logger.ILogger) *delegateSet {
	return &delegateSet{
		byID:     make(map[DelegateHandle]func() Delegate),
		logger:   log,
		dispatch: func(fn func()) { fn() },
	}
}

func (s *delegateSet) add(resolve func() Delegate) DelegateHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	s.byID[s.next] = resolve
	return s.next
}

func (s *delegateSet) remove(h DelegateHandle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.byID[h]
	delete(s.byID, h)
	return ok
}

// snapshot resolves the live delegates and prunes collected ones.
func (s *delegateSet) snapshot() map[DelegateHandle]Delegate {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[DelegateHandle]Delegate, len(s.byID))
	for h, resolve := range s.byID {
		d := resolve()
		if d == nil {
			delete(s.byID, h)
			continue
		}
		out[h] = d
	}
	return out
}

func (s *delegateSet) size() int {
	return len(s.snapshot())
}

// notify calls fn for every delegate still registered when its turn comes.
// A panicking delegate is logged and skipped.
func (s *delegateSet) notify(event string, fn func(Delegate)) {
	s.dispatch(func() {
		for h, d := range s.snapshot() {
			if !s.registered(h) {
				continue
			}
			s.deliver(event, h, d, fn)
		}
	})
}

func (s *delegateSet) registered(h DelegateHandle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.byID[h]
	return ok
}

func (s *delegateSet) deliver(event string, h DelegateHandle, d Delegate, fn func(Delegate)) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Errorf("delegate panicked: event=%s, handle=%d, panic=%v", event, h, r)
		}
	}()
	fn(d)
}

func (s *delegateSet) enqueued(entry *model.LogEntry) {
	s.notify("enqueued", func(d Delegate) { d.OnEnqueued(entry) })
}

func (s *delegateSet) sendSucceeded(batchID string) {
	s.notify("send-succeeded", func(d Delegate) { d.OnSendSucceeded(batchID) })
}

func (s *delegateSet) sendFailed(batchID string, err error) {
	s.notify("send-failed", func(d Delegate) { d.OnSendFailed(batchID, err) })
}

func (s *delegateSet) suspended() {
	s.notify("suspended", func(d Delegate) { d.OnSuspended() })
}

func (s *delegateSet) resumed() {
	s.notify("resumed", func(d Delegate) { d.OnResumed() })
}

// eventQueue runs posted functions one at a time, in posting order, on its
// own goroutine. Posting never blocks.
type eventQueue struct {
	mu     sync.Mutex
	items  []func()
	closed bool
	wake   chan struct{}
	done   chan struct{}
}

func newEventQueue() *eventQueue {
	return &eventQueue{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

func (q *eventQueue) post(fn func()) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.items = append(q.items, fn)
	q.mu.Unlock()
	q.signal()
}

func (q *eventQueue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// close stops accepting work. Items already posted are still run.
func (q *eventQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.signal()
}

func (q *eventQueue) run() {
	defer close(q.done)
	for {
		q.mu.Lock()
		items, closed := q.items, q.closed
		q.items = nil
		q.mu.Unlock()

		for _, fn := range items {
			fn()
		}
		if len(items) > 0 {
			continue
		}
		if closed {
			return
		}
		<-q.wake
	}
}

// wait blocks until run returned or ctx is done.
func (q *eventQueue) wait(ctx context.Context) error {
	select {
	case <-q.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
