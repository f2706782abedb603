// Package ingestor defines the interface and implementations for log sources.
package ingestor

import (
	"context"

	"github.com/GabrielNunesIT/go-libs/logger"

	"github.com/GabrielNunesIT/log-shipper/internal/model"
)

// Sink receives the entries an ingestor produces. A channel unit is a Sink.
type Sink interface {
	Enqueue(ctx context.Context, entry *model.LogEntry) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, entry *model.LogEntry) error

// Enqueue calls f.
func (f SinkFunc) Enqueue(ctx context.Context, entry *model.LogEntry) error {
	return f(ctx, entry)
}

// Ingestor defines the contract for log sources.
type Ingestor interface {
	// Start begins ingesting logs and hands them to sink.
	// It blocks until the context is cancelled, the source is exhausted,
	// or an unrecoverable error occurs.
	Start(ctx context.Context, sink Sink) error

	// Name returns a unique identifier for this ingestor instance.
	Name() string
}

// emit hands one entry to the sink. A rejected entry is logged and dropped;
// only cancellation stops the caller.
func emit(ctx context.Context, sink Sink, entry *model.LogEntry, log logger.ILogger) error {
	if err := sink.Enqueue(ctx, entry); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warningf("entry dropped: source=%s, error=%v", entry.Source, err)
	}
	return nil
}
