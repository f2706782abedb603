package channel

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/GabrielNunesIT/log-shipper/internal/config"
	"github.com/GabrielNunesIT/log-shipper/internal/model"
)

// ErrInvalidConfig is returned for channel parameters a unit cannot run with.
var ErrInvalidConfig = errors.New("invalid channel config")

// Config holds the construction-time parameters of one channel unit.
type Config struct {
	// GroupID partitions events in the shared storage.
	GroupID string

	// Priority decides whose events are evicted first when storage is full.
	Priority model.Priority

	// BatchSizeLimit is the number of events that triggers an immediate flush
	// and the maximum size of a batch.
	BatchSizeLimit int

	// FlushInterval bounds how long an event waits before a partial batch is
	// cut. Zero flushes on every enqueue.
	FlushInterval time.Duration

	// PendingBatchesLimit is the maximum number of batches in flight.
	PendingBatchesLimit int
}

// Validate checks the parameters.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.GroupID) == "" {
		errs = append(errs, errors.New("group id must not be empty"))
	}
	if c.BatchSizeLimit <= 0 {
		errs = append(errs, fmt.Errorf("batch size limit must be positive, got %d", c.BatchSizeLimit))
	}
	if c.FlushInterval < 0 {
		errs = append(errs, fmt.Errorf("flush interval must not be negative, got %s", c.FlushInterval))
	}
	if c.PendingBatchesLimit <= 0 {
		errs = append(errs, fmt.Errorf("pending batches limit must be positive, got %d", c.PendingBatchesLimit))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// NewConfig builds a unit config from the channels section of the agent config.
func NewConfig(group string, cc config.ChannelConfig) (Config, error) {
	priority, err := model.ParsePriority(cc.Priority)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	cfg := Config{
		GroupID:             group,
		Priority:            priority,
		BatchSizeLimit:      cc.BatchSize,
		FlushInterval:       cc.FlushInterval,
		PendingBatchesLimit: cc.PendingBatches,
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
