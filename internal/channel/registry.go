package channel

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/GabrielNunesIT/go-libs/logger"
	"golang.org/x/sync/errgroup"

	"github.com/GabrielNunesIT/log-shipper/internal/sender"
	"github.com/GabrielNunesIT/log-shipper/internal/storage"
)

// Registry owns the units sharing one storage and one sender.
type Registry struct {
	store  storage.Storage
	sender sender.Sender
	logger logger.ILogger

	mu    sync.RWMutex
	units map[string]*Unit
}

// NewRegistry creates an empty registry.
func NewRegistry(store storage.Storage, snd sender.Sender, log logger.ILogger) *Registry {
	return &Registry{
		store:  store,
		sender: snd,
		logger: log,
		units:  make(map[string]*Unit),
	}
}

// Add creates the unit for cfg.GroupID. Group ids are unique.
func (r *Registry) Add(cfg Config, opts ...Option) (*Unit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.units[cfg.GroupID]; ok {
		return nil, fmt.Errorf("channel %s already registered", cfg.GroupID)
	}
	u, err := New(cfg, r.store, r.sender, r.logger, opts...)
	if err != nil {
		return nil, fmt.Errorf("channel %s: %w", cfg.GroupID, err)
	}
	r.units[cfg.GroupID] = u
	return u, nil
}

// Get returns the unit for a group.
func (r *Registry) Get(group string) (*Unit, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.units[group]
	return u, ok
}

// Groups returns the registered group ids in sorted order.
func (r *Registry) Groups() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	groups := make([]string, 0, len(r.units))
	for g := range r.units {
		groups = append(groups, g)
	}
	sort.Strings(groups)
	return groups
}

func (r *Registry) all() []*Unit {
	groups := r.Groups()
	r.mu.RLock()
	defer r.mu.RUnlock()
	units := make([]*Unit, 0, len(groups))
	for _, g := range groups {
		units = append(units, r.units[g])
	}
	return units
}

// Start starts every unit. Units that fail to start are reported together;
// the others keep running.
func (r *Registry) Start(ctx context.Context) error {
	var errs []error
	for _, u := range r.all() {
		if err := u.Start(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Stop stops every unit concurrently, all bound by ctx.
func (r *Registry) Stop(ctx context.Context) error {
	var g errgroup.Group
	var mu sync.Mutex
	var errs []error
	for _, u := range r.all() {
		g.Go(func() error {
			if err := u.Stop(ctx); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

// NotifyEvicted routes a storage eviction to the owning unit. It never
// blocks, so storage may call it while holding its own locks.
func (r *Registry) NotifyEvicted(group string, n int) {
	u, ok := r.Get(group)
	if !ok {
		r.logger.Warningf("eviction for unknown channel: channel=%s, count=%d", group, n)
		return
	}
	go func() {
		if err := u.Evicted(context.Background(), n); err != nil && !errors.Is(err, ErrChannelStopped) {
			r.logger.Warningf("eviction not applied: channel=%s, count=%d, error=%v", group, n, err)
		}
	}()
}
