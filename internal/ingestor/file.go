package ingestor

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/GabrielNunesIT/go-libs/logger"
	"github.com/fsnotify/fsnotify"

	"github.com/GabrielNunesIT/log-shipper/internal/config"
	"github.com/GabrielNunesIT/log-shipper/internal/model"
)

// FileIngestor tails files matching configured paths and hands new lines to a sink.
type FileIngestor struct {
	cfg    config.FileIngestorConfig
	name   string
	logger logger.ILogger
	// ready is closed once watches are in place. Tests wait on it.
	ready chan struct{}
}

// NewFileIngestor creates a new file tailing ingestor.
func NewFileIngestor(cfg config.FileIngestorConfig, log logger.ILogger) *FileIngestor {
	return &FileIngestor{
		cfg:    cfg,
		name:   "file",
		logger: log.SubLogger("FileIngestor"),
		ready:  make(chan struct{}),
	}
}

// Name returns the ingestor identifier.
func (f *FileIngestor) Name() string {
	return f.name
}

// Ready is closed once the ingestor watches its files.
func (f *FileIngestor) Ready() <-chan struct{} {
	return f.ready
}

// Start watches the matched files and tails them from their current end.
func (f *FileIngestor) Start(ctx context.Context, sink Sink) error {
	// Expand glob patterns to get actual file paths
	var files []string
	for _, pattern := range f.cfg.Paths {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return fmt.Errorf("invalid glob pattern %q: %w", pattern, err)
		}
		files = append(files, matches...)
	}

	if len(files) == 0 {
		return fmt.Errorf("no files matched patterns: %v", f.cfg.Paths)
	}

	files = f.filterExcluded(files)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating file watcher: %w", err)
	}
	defer watcher.Close()

	// Positions are only touched by this goroutine.
	positions := make(map[string]int64)
	for _, file := range files {
		info, err := os.Stat(file)
		if err != nil {
			f.logger.Warningf("skipping file: path=%s, error=%v", file, err)
			continue
		}
		positions[file] = info.Size()
		if err := watcher.Add(file); err != nil {
			return fmt.Errorf("watching file %q: %w", file, err)
		}
	}

	// Directories are watched for rotation and new files.
	dirs := make(map[string]struct{})
	for _, file := range files {
		dirs[filepath.Dir(file)] = struct{}{}
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			f.logger.Debugf("not watching directory: path=%s, error=%v", dir, err)
		}
	}

	f.logger.Infof("tailing files: count=%d, channel=%s", len(positions), f.cfg.Channel)
	close(f.ready)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			if event.Has(fsnotify.Create) && f.matchesPatterns(event.Name) && !f.isExcluded(event.Name) {
				f.logger.Debugf("file appeared: path=%s", event.Name)
				positions[event.Name] = 0
				_ = watcher.Add(event.Name)
			}

			if event.Has(fsnotify.Write) {
				pos, tracked := positions[event.Name]
				if !tracked {
					continue
				}
				newPos, err := f.readNewLines(ctx, event.Name, pos, sink)
				if ctx.Err() != nil {
					return ctx.Err()
				}
				if err != nil {
					f.logger.Warningf("reading file: path=%s, error=%v", event.Name, err)
				}
				positions[event.Name] = newPos
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			f.logger.Warningf("watcher error: %v", err)
		}
	}
}

// readNewLines hands every complete line after pos to sink and returns the
// offset just past the last one.
func (f *FileIngestor) readNewLines(ctx context.Context, path string, pos int64, sink Sink) (int64, error) {
	file, err := os.Open(path)
	if err != nil {
		return pos, err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return pos, err
	}
	if info.Size() < pos {
		f.logger.Infof("file truncated, reading from start: path=%s", path)
		pos = 0
	}

	if _, err := file.Seek(pos, io.SeekStart); err != nil {
		return pos, err
	}

	reader := bufio.NewReader(file)
	for {
		line, err := reader.ReadBytes('\n')
		if err != nil {
			// A partial line stays unread until its newline arrives.
			if err == io.EOF {
				return pos, nil
			}
			return pos, err
		}
		pos += int64(len(line))

		raw := trimNewline(line)
		if len(raw) == 0 {
			continue
		}
		entry := model.NewLogEntry(f.name, raw)
		entry.Metadata["file"] = path
		if err := emit(ctx, sink, entry, f.logger); err != nil {
			return pos, err
		}
	}
}

func trimNewline(line []byte) []byte {
	line = line[:len(line)-1]
	if n := len(line); n > 0 && line[n-1] == '\r' {
		line = line[:n-1]
	}
	return line
}

// filterExcluded removes files matching exclude patterns.
func (f *FileIngestor) filterExcluded(files []string) []string {
	if len(f.cfg.Exclude) == 0 {
		return files
	}

	var result []string
	for _, file := range files {
		if !f.isExcluded(file) {
			result = append(result, file)
		}
	}
	return result
}

// isExcluded checks if a file matches any exclude pattern.
func (f *FileIngestor) isExcluded(file string) bool {
	for _, pattern := range f.cfg.Exclude {
		matched, _ := filepath.Match(pattern, filepath.Base(file))
		if matched {
			return true
		}
	}
	return false
}

// matchesPatterns checks if a file matches any configured path pattern.
func (f *FileIngestor) matchesPatterns(file string) bool {
	for _, pattern := range f.cfg.Paths {
		if matched, _ := filepath.Match(pattern, file); matched {
			return true
		}
		if matched, _ := filepath.Match(pattern, filepath.Base(file)); matched {
			return true
		}
	}
	return false
}
