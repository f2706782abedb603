// Package processor transforms log entries between an ingestor and its channel.
package processor

import (
	"context"
	"fmt"

	"github.com/GabrielNunesIT/go-libs/logger"

	"github.com/GabrielNunesIT/log-shipper/internal/config"
	"github.com/GabrielNunesIT/log-shipper/internal/ingestor"
	"github.com/GabrielNunesIT/log-shipper/internal/model"
)

// Processor defines the contract for log transformations.
// Processors modify LogEntry in place, enriching or parsing the data.
type Processor interface {
	// Process transforms a LogEntry in place.
	// Returns an error if processing fails critically (entry should be dropped).
	Process(ctx context.Context, entry *model.LogEntry) error

	// Name returns a unique identifier for this processor.
	Name() string
}

// Chain composes multiple processors into a sequential pipeline.
type Chain struct {
	processors []Processor
}

// NewChain creates a new processor chain.
func NewChain(processors ...Processor) *Chain {
	return &Chain{processors: processors}
}

// FromConfig builds the parser and enricher an ingestor is configured with.
// Disabled processors are left out.
func FromConfig(cfg config.ProcessorConfig) (*Chain, error) {
	chain := NewChain()
	if cfg.Parser.Enabled {
		parser, err := NewParser(cfg.Parser)
		if err != nil {
			return nil, fmt.Errorf("building parser: %w", err)
		}
		chain.Add(parser)
	}
	if cfg.Enricher.Enabled {
		chain.Add(NewEnricher(cfg.Enricher))
	}
	return chain, nil
}

// Process applies all processors in sequence.
func (c *Chain) Process(ctx context.Context, entry *model.LogEntry) error {
	for _, p := range c.processors {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := p.Process(ctx, entry); err != nil {
			return fmt.Errorf("%s: %w", p.Name(), err)
		}
	}
	return nil
}

// Name returns the chain identifier.
func (c *Chain) Name() string {
	return "chain"
}

// Add appends a processor to the chain.
func (c *Chain) Add(p Processor) {
	c.processors = append(c.processors, p)
}

// Len returns the number of processors in the chain.
func (c *Chain) Len() int {
	return len(c.processors)
}

// Sink runs p on every entry before handing it to next. An entry p fails
// on is not forwarded and the error is returned to the ingestor.
func Sink(p Processor, next ingestor.Sink, log logger.ILogger) ingestor.Sink {
	return ingestor.SinkFunc(func(ctx context.Context, entry *model.LogEntry) error {
		if err := p.Process(ctx, entry); err != nil {
			log.Debugf("processing failed: source=%s, error=%v", entry.Source, err)
			return err
		}
		return next.Enqueue(ctx, entry)
	})
}
