package channel

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/GabrielNunesIT/log-shipper/internal/config"
	"github.com/GabrielNunesIT/log-shipper/internal/model"
	"github.com/GabrielNunesIT/log-shipper/internal/sender"
	"github.com/GabrielNunesIT/log-shipper/internal/storage"
	"github.com/GabrielNunesIT/log-shipper/internal/testutil"
)

// fakeSender records batches and completes them when told to, or right away
// through respond.
type fakeSender struct {
	mu          sync.Mutex
	batches     []*model.Batch
	dones       map[string]sender.CompletionFunc
	inflight    int
	maxInflight int

	// respond, when set, decides the outcome of every batch.
	respond func(*model.Batch) sender.Result
	// async completes respond's outcome from another goroutine after a delay.
	async time.Duration
}

func newFakeSender() *fakeSender {
	return &fakeSender{dones: make(map[string]sender.CompletionFunc)}
}

func (f *fakeSender) Name() string                    { return "fake" }
func (f *fakeSender) Start(ctx context.Context) error { return nil }
func (f *fakeSender) Stop(ctx context.Context) error  { return nil }

func (f *fakeSender) Send(ctx context.Context, batch *model.Batch, done sender.CompletionFunc) {
	f.mu.Lock()
	f.batches = append(f.batches, batch)
	f.inflight++
	if f.inflight > f.maxInflight {
		f.maxInflight = f.inflight
	}
	respond := f.respond
	async := f.async
	if respond == nil {
		f.dones[batch.ID] = done
	}
	f.mu.Unlock()

	if respond == nil {
		return
	}
	finish := func() {
		f.mu.Lock()
		f.inflight--
		f.mu.Unlock()
		done(respond(batch))
	}
	if async > 0 {
		go func() {
			time.Sleep(async)
			finish()
		}()
		return
	}
	finish()
}

// complete reports the outcome of a batch held by the fake.
func (f *fakeSender) complete(t *testing.T, batchID string, res sender.Result) {
	t.Helper()
	f.mu.Lock()
	done, ok := f.dones[batchID]
	delete(f.dones, batchID)
	if ok {
		f.inflight--
	}
	f.mu.Unlock()
	require.True(t, ok, "batch %s is not in flight", batchID)
	done(res)
}

func (f *fakeSender) sent() []*model.Batch {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*model.Batch, len(f.batches))
	copy(out, f.batches)
	return out
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.batches)
}

func (f *fakeSender) last() *model.Batch {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.batches) == 0 {
		return nil
	}
	return f.batches[len(f.batches)-1]
}

func (f *fakeSender) peak() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxInflight
}

func alwaysSucceed(*model.Batch) sender.Result {
	return sender.Succeeded()
}

// recorder is a Delegate that remembers what it saw.
type recorder struct {
	mu        sync.Mutex
	enqueued  int
	succeeded []string
	failed    []string
	errs      []error
	suspended int
	resumed   int
}

func (r *recorder) OnEnqueued(entry *model.LogEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.enqueued++
}

func (r *recorder) OnSendSucceeded(batchID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.succeeded = append(r.succeeded, batchID)
}

func (r *recorder) OnSendFailed(batchID string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed = append(r.failed, batchID)
	r.errs = append(r.errs, err)
}

func (r *recorder) OnSuspended() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.suspended++
}

func (r *recorder) OnResumed() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resumed++
}

func (r *recorder) snapshot() recorder {
	r.mu.Lock()
	defer r.mu.Unlock()
	return recorder{
		enqueued:  r.enqueued,
		succeeded: append([]string(nil), r.succeeded...),
		failed:    append([]string(nil), r.failed...),
		errs:      append([]error(nil), r.errs...),
		suspended: r.suspended,
		resumed:   r.resumed,
	}
}

func openStore(t *testing.T, path string, opts ...storage.SQLiteOption) *storage.SQLite {
	t.Helper()
	if path == "" {
		path = filepath.Join(t.TempDir(), "events.db")
	}
	s, err := storage.OpenSQLite(storageConfig(path), testutil.NewTestLogger(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func storageConfig(path string) config.StorageConfig {
	return config.StorageConfig{Path: path}
}

func testConfig(batchSize int, interval time.Duration, pending int) Config {
	return Config{
		GroupID:             "logs",
		Priority:            model.PriorityDefault,
		BatchSizeLimit:      batchSize,
		FlushInterval:       interval,
		PendingBatchesLimit: pending,
	}
}

// startUnit creates and starts a unit that is stopped when the test ends.
func startUnit(t *testing.T, cfg Config, store storage.Storage, snd sender.Sender, opts ...Option) *Unit {
	t.Helper()
	u, err := New(cfg, store, snd, testutil.NewTestLogger(), opts...)
	require.NoError(t, err)
	require.NoError(t, u.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		defer cancel()
		_ = u.Stop(ctx)
	})
	return u
}

func enqueue(t *testing.T, u *Unit, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, u.Enqueue(context.Background(), model.NewLogEntry("test", []byte("line"))))
	}
}

func stats(t *testing.T, u *Unit) Stats {
	t.Helper()
	st, err := u.Stats(context.Background())
	require.NoError(t, err)
	return st
}

func storedCount(t *testing.T, s storage.Storage, group string) int {
	t.Helper()
	n, err := s.Count(context.Background(), group)
	require.NoError(t, err)
	return n
}
