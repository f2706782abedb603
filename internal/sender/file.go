package sender

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/GabrielNunesIT/go-libs/logger"
	"github.com/natefinch/lumberjack"

	"github.com/GabrielNunesIT/log-shipper/internal/config"
	"github.com/GabrielNunesIT/log-shipper/internal/model"
)

// WriterFactory creates a new WriteCloser.
type WriterFactory func(cfg config.FileSenderConfig) (io.WriteCloser, error)

// FileOption configures the file sender.
type FileOption func(*File)

// WithWriterFactory sets a custom factory for creating the writer.
func WithWriterFactory(f WriterFactory) FileOption {
	return func(s *File) {
		s.factory = f
	}
}

// File appends batches as JSON lines to a rotating file.
type File struct {
	cfg     config.FileSenderConfig
	factory WriterFactory
	writer  io.WriteCloser
	mu      sync.Mutex
	logger  logger.ILogger
}

// NewFile creates a new file sender.
func NewFile(cfg config.FileSenderConfig, log logger.ILogger, opts ...FileOption) *File {
	f := &File{
		cfg:    cfg,
		logger: log.SubLogger("FileSender"),
	}

	// Default factory creates lumberjack logger
	f.factory = func(cfg config.FileSenderConfig) (io.WriteCloser, error) {
		if cfg.Path == "" {
			return nil, errors.New("file sender: path must be set")
		}
		return &lumberjack.Logger{
			Filename:   cfg.Path,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		}, nil
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// Name returns the sender identifier.
func (f *File) Name() string {
	return config.SenderFile
}

// Start opens the rotating file writer.
func (f *File) Start(ctx context.Context) error {
	w, err := f.factory(f.cfg)
	if err != nil {
		return err
	}
	f.mu.Lock()
	f.writer = w
	f.mu.Unlock()
	f.logger.Infof("writing to file: path=%s", f.cfg.Path)
	return nil
}

// Stop closes the file writer.
func (f *File) Stop(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.writer != nil {
		err := f.writer.Close()
		f.writer = nil
		return err
	}
	return nil
}

// Send appends the batch and reports the outcome inline.
func (f *File) Send(ctx context.Context, batch *model.Batch, done CompletionFunc) {
	var buf bytes.Buffer
	for _, entry := range batch.Entries {
		line, err := formatJSON(batch.GroupID, entry)
		if err != nil {
			done(Fatal(fmt.Errorf("encoding entry %d: %w", entry.ID, err)))
			return
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}

	f.mu.Lock()
	w := f.writer
	var err error
	if w == nil {
		err = errors.New("file sender not started")
	} else {
		_, err = w.Write(buf.Bytes())
	}
	f.mu.Unlock()

	if err != nil {
		f.logger.Debugf("write failed: batch=%s, error=%v", batch.ID, err)
		done(Recoverable(err))
		return
	}
	done(Succeeded())
}
