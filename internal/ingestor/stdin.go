package ingestor

import (
	"bufio"
	"context"
	"io"
	"os"

	"github.com/GabrielNunesIT/go-libs/logger"

	"github.com/GabrielNunesIT/log-shipper/internal/config"
	"github.com/GabrielNunesIT/log-shipper/internal/model"
)

// StdinIngestor reads log entries from standard input.
type StdinIngestor struct {
	cfg    config.StdinIngestorConfig
	name   string
	reader io.Reader // Allows injection for testing
	logger logger.ILogger
}

// NewStdinIngestor creates a new stdin ingestor.
func NewStdinIngestor(cfg config.StdinIngestorConfig, log logger.ILogger) *StdinIngestor {
	return NewStdinIngestorWithReader(cfg, os.Stdin, log)
}

// NewStdinIngestorWithReader creates a stdin ingestor with a custom reader (for testing).
func NewStdinIngestorWithReader(cfg config.StdinIngestorConfig, reader io.Reader, log logger.ILogger) *StdinIngestor {
	return &StdinIngestor{
		cfg:    cfg,
		name:   "stdin",
		reader: reader,
		logger: log.SubLogger("StdinIngestor"),
	}
}

// Name returns the ingestor identifier.
func (s *StdinIngestor) Name() string {
	return s.name
}

// Start reads lines until EOF and hands each non-empty line to sink.
// Reading happens on its own goroutine so cancellation is honoured even
// while the reader blocks.
func (s *StdinIngestor) Start(ctx context.Context, sink Sink) error {
	s.logger.Infof("reading from stdin: channel=%s", s.cfg.Channel)

	lines := make(chan []byte)
	errc := make(chan error, 1)
	go s.scan(ctx, lines, errc)

	lineCount := 0
	for {
		select {
		case <-ctx.Done():
			s.logger.Debugf("stdin ingestor stopped: lines_read=%d", lineCount)
			return ctx.Err()

		case raw, ok := <-lines:
			if !ok {
				if err := <-errc; err != nil {
					s.logger.Errorf("stdin read error: %v", err)
					return err
				}
				s.logger.Infof("EOF reached: lines_read=%d", lineCount)
				return nil
			}
			lineCount++
			if err := emit(ctx, sink, model.NewLogEntry(s.name, raw), s.logger); err != nil {
				s.logger.Debugf("stdin ingestor stopped: lines_read=%d", lineCount)
				return err
			}
		}
	}
}

// scan sends every non-empty line on lines, then the scanner's error on errc.
func (s *StdinIngestor) scan(ctx context.Context, lines chan<- []byte, errc chan<- error) {
	defer close(lines)

	scanner := bufio.NewScanner(s.reader)
	// Increase buffer for long lines
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue // Skip empty lines
		}

		// Make a copy since scanner reuses buffer
		raw := make([]byte, len(line))
		copy(raw, line)

		select {
		case lines <- raw:
		case <-ctx.Done():
			errc <- ctx.Err()
			return
		}
	}
	errc <- scanner.Err()
}
