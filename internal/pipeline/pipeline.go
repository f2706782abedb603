// Package pipeline wires ingestors to channels and channels to the sender.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/GabrielNunesIT/go-libs/logger"

	"github.com/GabrielNunesIT/log-shipper/internal/channel"
	"github.com/GabrielNunesIT/log-shipper/internal/config"
	"github.com/GabrielNunesIT/log-shipper/internal/ingestor"
	"github.com/GabrielNunesIT/log-shipper/internal/processor"
	"github.com/GabrielNunesIT/log-shipper/internal/sender"
	"github.com/GabrielNunesIT/log-shipper/internal/storage"
)

// drainPoll is how often a finished pipeline checks whether its channels are empty.
const drainPoll = 50 * time.Millisecond

// managedIngestor wraps an ingestor with its lifecycle management.
type managedIngestor struct {
	ingestor  ingestor.Ingestor
	processor *processor.Chain
	channel   string
	cancel    context.CancelFunc
	done      chan struct{}
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithSender replaces the configured sender.
func WithSender(s sender.Sender) Option {
	return func(p *Pipeline) {
		p.sender = s
	}
}

// WithStdinReader makes the stdin ingestor read from r.
func WithStdinReader(r io.Reader) Option {
	return func(p *Pipeline) {
		p.stdin = r
	}
}

// Pipeline owns the storage, the sender, one channel per configured group
// and the ingestors feeding them.
type Pipeline struct {
	cfg    *config.Config
	logger logger.ILogger
	mu     sync.RWMutex

	stdin     io.Reader
	sender    sender.Sender
	store     storage.Storage
	registry  *channel.Registry
	channels  map[string]channel.Config
	ingestors map[string]*managedIngestor

	// runCtx is the main run context
	runCtx context.Context
}

// New validates cfg and builds every component that does not touch the
// outside world. Storage is opened by Run.
func New(cfg *config.Config, log logger.ILogger, opts ...Option) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	p := &Pipeline{
		cfg:       cfg,
		logger:    log.SubLogger("Pipeline"),
		channels:  make(map[string]channel.Config),
		ingestors: make(map[string]*managedIngestor),
	}
	for _, opt := range opts {
		opt(p)
	}

	if err := p.buildChannels(); err != nil {
		return nil, fmt.Errorf("building channels: %w", err)
	}

	if err := p.buildIngestors(); err != nil {
		return nil, fmt.Errorf("building ingestors: %w", err)
	}

	if p.sender == nil {
		snd, err := sender.New(cfg.Sender, log)
		if err != nil {
			return nil, fmt.Errorf("building sender: %w", err)
		}
		p.sender = snd
	}

	return p, nil
}

func (p *Pipeline) buildChannels() error {
	for _, name := range p.cfg.ChannelNames() {
		cc, err := channel.NewConfig(name, p.cfg.Channels[name])
		if err != nil {
			return err
		}
		p.channels[name] = cc
	}
	return nil
}

// buildIngestors creates enabled ingestors with their processor chains.
func (p *Pipeline) buildIngestors() error {
	for _, name := range []string{"file", "syslog", "journal", "stdin"} {
		if !ingestorEnabled(p.cfg, name) {
			continue
		}
		mi, err := p.newIngestor(name, p.cfg)
		if err != nil {
			return err
		}
		p.ingestors[name] = mi
	}

	if len(p.ingestors) == 0 {
		return errors.New("no ingestors enabled")
	}

	p.logger.Debugf("built %d ingestors", len(p.ingestors))
	return nil
}

func ingestorEnabled(cfg *config.Config, name string) bool {
	switch name {
	case "file":
		return cfg.Ingestors.File.Enabled
	case "syslog":
		return cfg.Ingestors.Syslog.Enabled
	case "journal":
		return cfg.Ingestors.Journal.Enabled
	case "stdin":
		return cfg.Ingestors.Stdin.Enabled
	}
	return false
}

// newIngestor builds one ingestor, its processor chain and its target channel from cfg.
func (p *Pipeline) newIngestor(name string, cfg *config.Config) (*managedIngestor, error) {
	var ing ingestor.Ingestor
	var procCfg config.ProcessorConfig
	var target string

	switch name {
	case "file":
		ing = ingestor.NewFileIngestor(cfg.Ingestors.File, p.logger)
		procCfg, target = cfg.Ingestors.File.Processor, cfg.Ingestors.File.Channel
	case "syslog":
		ing = ingestor.NewSyslogIngestor(cfg.Ingestors.Syslog, p.logger)
		procCfg, target = cfg.Ingestors.Syslog.Processor, cfg.Ingestors.Syslog.Channel
	case "journal":
		ing = ingestor.NewJournalIngestor(cfg.Ingestors.Journal, p.logger)
		procCfg, target = cfg.Ingestors.Journal.Processor, cfg.Ingestors.Journal.Channel
	case "stdin":
		if p.stdin != nil {
			ing = ingestor.NewStdinIngestorWithReader(cfg.Ingestors.Stdin, p.stdin, p.logger)
		} else {
			ing = ingestor.NewStdinIngestor(cfg.Ingestors.Stdin, p.logger)
		}
		procCfg, target = cfg.Ingestors.Stdin.Processor, cfg.Ingestors.Stdin.Channel
	default:
		return nil, fmt.Errorf("unknown ingestor: %s", name)
	}

	chain, err := processor.FromConfig(procCfg)
	if err != nil {
		return nil, fmt.Errorf("ingestor %s: %w", name, err)
	}

	return &managedIngestor{
		ingestor:  ing,
		processor: chain,
		channel:   target,
		done:      make(chan struct{}),
	}, nil
}

// Run opens storage, starts the sender and every channel, then runs the
// ingestors until ctx is cancelled or all of them finish. When the sources
// are exhausted the channels are given the shutdown timeout to ship what
// they hold. Cancellation is not an error.
func (p *Pipeline) Run(ctx context.Context) error {
	runCtx, runCancel := context.WithCancel(ctx)
	defer runCancel()

	p.mu.Lock()
	p.runCtx = runCtx
	p.mu.Unlock()

	if err := p.open(runCtx); err != nil {
		return err
	}
	defer func() {
		if cerr := p.store.Close(); cerr != nil {
			p.logger.Warningf("storage close error: %v", cerr)
		}
	}()

	if err := p.sender.Start(runCtx); err != nil {
		return fmt.Errorf("starting sender %s: %w", p.sender.Name(), err)
	}
	p.logger.Debugf("started sender: %s", p.sender.Name())

	if err := p.startChannels(runCtx); err != nil {
		p.shutdown()
		return err
	}

	g, gCtx := errgroup.WithContext(runCtx)

	p.mu.Lock()
	for name, mi := range p.ingestors {
		ingestorCtx, cancel := context.WithCancel(gCtx)
		mi.cancel = cancel

		g.Go(func() error {
			defer close(mi.done)
			return p.runIngestor(ingestorCtx, name, mi)
		})
	}
	p.mu.Unlock()

	err := g.Wait()

	if err == nil && ctx.Err() == nil {
		p.drain()
	}

	p.shutdown()
	return err
}

// open opens the storage, releases leases a crashed run left behind and
// creates a unit per configured channel.
func (p *Pipeline) open(ctx context.Context) error {
	cfg := p.config()

	var reg *channel.Registry
	store, err := storage.OpenSQLite(cfg.Storage, p.logger, storage.WithEvictionHandler(func(group string, n int) {
		reg.NotifyEvicted(group, n)
	}))
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	if _, err := store.RecoverLeases(ctx); err != nil {
		store.Close()
		return fmt.Errorf("recovering storage leases: %w", err)
	}

	reg = channel.NewRegistry(store, p.sender, p.logger)
	for _, name := range cfg.ChannelNames() {
		var opts []channel.Option
		if !cfg.Channels[name].Enabled {
			opts = append(opts, channel.WithSuspended())
		}
		if _, err := reg.Add(p.channels[name], opts...); err != nil {
			store.Close()
			return err
		}
	}

	p.mu.Lock()
	p.store = store
	p.registry = reg
	p.mu.Unlock()
	return nil
}

func (p *Pipeline) startChannels(ctx context.Context) error {
	if err := p.registry.Start(ctx); err != nil {
		return fmt.Errorf("starting channels: %w", err)
	}
	for _, name := range p.registry.Groups() {
		p.logger.Debugf("started channel: %s", name)
	}
	return nil
}

// runIngestor feeds one ingestor's entries through its processors into its channel.
func (p *Pipeline) runIngestor(ctx context.Context, name string, mi *managedIngestor) error {
	unit, ok := p.registry.Get(mi.channel)
	if !ok {
		return fmt.Errorf("ingestor %s: unknown channel %q", name, mi.channel)
	}

	p.logger.Debugf("started ingestor: name=%s, channel=%s", name, mi.channel)
	err := mi.ingestor.Start(ctx, processor.Sink(mi.processor, unit, p.logger))
	p.logger.Debugf("ingestor stopped: name=%s", name)

	if ctx.Err() != nil {
		return nil
	}
	if err != nil {
		return fmt.Errorf("ingestor %s: %w", name, err)
	}
	return nil
}

// drain waits until every enabled channel shipped what it holds, bounded by
// the shutdown timeout.
func (p *Pipeline) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), p.config().Pipeline.ShutdownTimeout)
	defer cancel()

	ticker := time.NewTicker(drainPoll)
	defer ticker.Stop()

	for {
		remaining := 0
		for _, name := range p.registry.Groups() {
			unit, _ := p.registry.Get(name)
			stats, err := unit.Stats(ctx)
			if err != nil || stats.State != channel.StateEnabled {
				continue
			}
			remaining += stats.ItemsCount
		}
		if remaining == 0 {
			p.logger.Debug("all channels drained")
			return
		}

		select {
		case <-ctx.Done():
			p.logger.Warningf("shutdown timeout reached with events still stored: count=%d", remaining)
			return
		case <-ticker.C:
		}
	}
}

// shutdown stops what Run started: ingestors, channels, then the sender.
func (p *Pipeline) shutdown() {
	p.mu.RLock()
	ingestors := make([]*managedIngestor, 0, len(p.ingestors))
	for _, mi := range p.ingestors {
		ingestors = append(ingestors, mi)
	}
	p.mu.RUnlock()

	for _, mi := range ingestors {
		if mi.cancel != nil {
			mi.cancel()
			<-mi.done
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), p.config().Pipeline.ShutdownTimeout)
	defer cancel()

	if err := p.registry.Stop(shutdownCtx); err != nil {
		p.logger.Warningf("channel stop error: %v", err)
	}
	p.logger.Debug("all channels stopped")

	if err := p.sender.Stop(shutdownCtx); err != nil {
		p.logger.Warningf("sender stop error: name=%s, error=%v", p.sender.Name(), err)
	}
	p.logger.Debug("sender stopped")
}

// Reconfigure applies the parts of a new configuration that can change at
// runtime: channel enabled flags and the set of ingestors. Other changes are
// logged and take effect on restart.
func (p *Pipeline) Reconfigure(ctx context.Context, newCfg *config.Config) error {
	if err := newCfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	oldCfg := p.cfg
	p.cfg = newCfg

	if p.registry == nil {
		return nil
	}

	if err := p.reconfigureChannels(ctx, oldCfg, newCfg); err != nil {
		return fmt.Errorf("reconfiguring channels: %w", err)
	}

	if err := p.reconfigureIngestors(oldCfg, newCfg); err != nil {
		return fmt.Errorf("reconfiguring ingestors: %w", err)
	}

	if oldCfg.Sender.Type != newCfg.Sender.Type {
		p.logger.Warningf("sender change requires a restart: running=%s, configured=%s", oldCfg.Sender.Type, newCfg.Sender.Type)
	}

	p.logger.Infof("configuration applied: channels=%d, ingestors=%d", len(p.registry.Groups()), len(p.ingestors))
	return nil
}

// reconfigureChannels suspends or resumes channels whose enabled flag changed.
func (p *Pipeline) reconfigureChannels(ctx context.Context, oldCfg, newCfg *config.Config) error {
	var errs []error
	for _, name := range newCfg.ChannelNames() {
		newCh := newCfg.Channels[name]
		unit, ok := p.registry.Get(name)
		if !ok {
			p.logger.Warningf("new channel requires a restart: channel=%s", name)
			continue
		}

		oldCh := oldCfg.Channels[name]
		if newCh.BatchSize != oldCh.BatchSize ||
			newCh.FlushInterval != oldCh.FlushInterval ||
			newCh.PendingBatches != oldCh.PendingBatches ||
			newCh.Priority != oldCh.Priority {
			p.logger.Warningf("channel parameter change requires a restart: channel=%s", name)
		}

		if newCh.Enabled == oldCh.Enabled {
			continue
		}
		var err error
		if newCh.Enabled {
			err = unit.Resume(ctx)
			p.logger.Infof("channel resumed: %s", name)
		} else {
			err = unit.Suspend(ctx)
			p.logger.Infof("channel suspended: %s", name)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("channel %s: %w", name, err))
		}
	}

	for _, name := range oldCfg.ChannelNames() {
		if _, ok := newCfg.Channels[name]; !ok {
			p.logger.Warningf("channel removal requires a restart: channel=%s", name)
		}
	}
	return errors.Join(errs...)
}

// reconfigureIngestors handles adding/removing ingestors.
func (p *Pipeline) reconfigureIngestors(oldCfg, newCfg *config.Config) error {
	for _, name := range []string{"file", "syslog", "journal", "stdin"} {
		wasEnabled := ingestorEnabled(oldCfg, name)
		enabled := ingestorEnabled(newCfg, name)

		switch {
		case wasEnabled && !enabled:
			p.removeIngestor(name)
		case enabled && !wasEnabled:
			if err := p.addIngestor(name, newCfg); err != nil {
				return err
			}
		}
	}
	return nil
}

// addIngestor adds a new ingestor at runtime.
func (p *Pipeline) addIngestor(name string, cfg *config.Config) error {
	mi, err := p.newIngestor(name, cfg)
	if err != nil {
		return err
	}
	if _, ok := p.registry.Get(mi.channel); !ok {
		return fmt.Errorf("ingestor %s: channel %q is not running", name, mi.channel)
	}

	ctx, cancel := context.WithCancel(p.runCtx)
	mi.cancel = cancel
	p.ingestors[name] = mi

	go func() {
		defer close(mi.done)
		if err := p.runIngestor(ctx, name, mi); err != nil {
			p.logger.Warningf("ingestor error: name=%s, error=%v", name, err)
		}
	}()

	p.logger.Infof("ingestor added: %s", name)
	return nil
}

// removeIngestor stops and removes an ingestor.
func (p *Pipeline) removeIngestor(name string) {
	mi, ok := p.ingestors[name]
	if !ok {
		return
	}

	if mi.cancel != nil {
		mi.cancel()
		<-mi.done
	}

	delete(p.ingestors, name)
	p.logger.Infof("ingestor removed: %s", name)
}

func (p *Pipeline) config() *config.Config {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cfg
}

// Channel returns the running unit of a group. It is only available while Run is active.
func (p *Pipeline) Channel(name string) (*channel.Unit, bool) {
	p.mu.RLock()
	reg := p.registry
	p.mu.RUnlock()
	if reg == nil {
		return nil, false
	}
	return reg.Get(name)
}

// IngestorCount returns the number of enabled ingestors.
func (p *Pipeline) IngestorCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.ingestors)
}

// ChannelCount returns the number of configured channels.
func (p *Pipeline) ChannelCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.channels)
}

// SenderName returns the name of the sender batches are shipped with.
func (p *Pipeline) SenderName() string {
	return p.sender.Name()
}
