//go:build !linux || !cgo

package ingestor

import (
	"context"
	"fmt"
	"runtime"

	"github.com/GabrielNunesIT/go-libs/logger"

	"github.com/GabrielNunesIT/log-shipper/internal/config"
)

// JournalIngestor is a stub for non-Linux systems.
type JournalIngestor struct {
	cfg  config.JournalIngestorConfig
	name string
}

// NewJournalIngestor creates a new journal ingestor stub.
func NewJournalIngestor(cfg config.JournalIngestorConfig, _ logger.ILogger) *JournalIngestor {
	return &JournalIngestor{
		cfg:  cfg,
		name: "journal",
	}
}

// Name returns the ingestor identifier.
func (j *JournalIngestor) Name() string {
	return j.name
}

// Start returns an error on systems without the systemd journal.
func (j *JournalIngestor) Start(ctx context.Context, sink Sink) error {
	return fmt.Errorf("journal ingestor is only supported on Linux (current OS: %s)", runtime.GOOS)
}
