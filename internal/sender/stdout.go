package sender

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/GabrielNunesIT/go-libs/logger"

	"github.com/GabrielNunesIT/log-shipper/internal/config"
	"github.com/GabrielNunesIT/log-shipper/internal/model"
)

// Stdout writes batches to standard output, one line per entry.
type Stdout struct {
	cfg    config.StdoutSenderConfig
	writer io.Writer
	mu     sync.Mutex
	logger logger.ILogger
}

// NewStdout creates a new stdout sender.
func NewStdout(cfg config.StdoutSenderConfig, log logger.ILogger) *Stdout {
	return NewStdoutWithWriter(cfg, os.Stdout, log)
}

// NewStdoutWithWriter creates a stdout sender with a custom writer (for testing).
func NewStdoutWithWriter(cfg config.StdoutSenderConfig, w io.Writer, log logger.ILogger) *Stdout {
	return &Stdout{
		cfg:    cfg,
		writer: w,
		logger: log.SubLogger("StdoutSender"),
	}
}

// Name returns the sender identifier.
func (s *Stdout) Name() string {
	return config.SenderStdout
}

// Start is a no-op for stdout.
func (s *Stdout) Start(ctx context.Context) error {
	s.logger.Debugf("stdout sender started: format=%s", s.cfg.Format)
	return nil
}

// Stop is a no-op for stdout.
func (s *Stdout) Stop(ctx context.Context) error {
	s.logger.Debug("stdout sender stopped")
	return nil
}

// Send writes the whole batch in one call and reports the outcome inline.
func (s *Stdout) Send(ctx context.Context, batch *model.Batch, done CompletionFunc) {
	var buf bytes.Buffer
	for _, entry := range batch.Entries {
		var line []byte
		var err error
		if s.cfg.Format == "text" {
			line = formatText(batch.GroupID, entry)
		} else {
			line, err = formatJSON(batch.GroupID, entry)
		}
		if err != nil {
			done(Fatal(fmt.Errorf("encoding entry %d: %w", entry.ID, err)))
			return
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}

	s.mu.Lock()
	_, err := s.writer.Write(buf.Bytes())
	s.mu.Unlock()

	if err != nil {
		done(Recoverable(err))
		return
	}
	done(Succeeded())
}

// formatJSON renders the entry as a JSON object tagged with its channel.
func formatJSON(group string, entry *model.LogEntry) ([]byte, error) {
	data := entry.Fields("timestamp", "source", "message")
	data["channel"] = group
	return json.Marshal(data)
}

// formatText renders the entry as a plain text line.
func formatText(group string, entry *model.LogEntry) []byte {
	ts := entry.Timestamp.Format(time.RFC3339)
	return []byte(fmt.Sprintf("[%s] [%s] [%s] %s", ts, group, entry.Source, entry.Message()))
}
