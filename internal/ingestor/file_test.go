package ingestor

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GabrielNunesIT/log-shipper/internal/config"
	"github.com/GabrielNunesIT/log-shipper/internal/testutil"
)

func appendLine(t *testing.T, path, line string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(line)
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

func TestFileIngestor(t *testing.T) {
	tmpDir := t.TempDir()
	logFile := filepath.Join(tmpDir, "app.log")

	// Existing content is skipped: the ingestor tails from the end.
	appendLine(t, logFile, "line 1\n")

	cfg := config.FileIngestorConfig{
		Enabled: true,
		Channel: "logs",
		Paths:   []string{filepath.Join(tmpDir, "*.log")},
	}

	ingestor := NewFileIngestor(cfg, testutil.NewTestLogger())
	out := make(chanSink, 10)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- ingestor.Start(ctx, out)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	select {
	case <-ingestor.Ready():
	case err := <-done:
		t.Fatalf("ingestor exited early: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for watcher")
	}

	appendLine(t, logFile, "line 2\n")

	select {
	case e := <-out:
		assert.Equal(t, "line 2", string(e.Raw))
		assert.Equal(t, logFile, e.Metadata["file"])
		assert.Equal(t, "file", e.Source)
	case <-time.After(2 * time.Second): // File system events can be slow
		t.Fatal("timeout waiting for log entry")
	}

	// Rotation: move away and recreate
	require.NoError(t, os.Rename(logFile, logFile+".1"))
	appendLine(t, logFile, "line 3\n")

	select {
	case e := <-out:
		assert.Equal(t, "line 3", string(e.Raw))
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for rotated log entry")
	}
}

func TestFileIngestor_PartialLine(t *testing.T) {
	tmpDir := t.TempDir()
	logFile := filepath.Join(tmpDir, "app.log")
	appendLine(t, logFile, "")

	cfg := config.FileIngestorConfig{Paths: []string{logFile}}
	ingestor := NewFileIngestor(cfg, testutil.NewTestLogger())
	out := make(chanSink, 10)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- ingestor.Start(ctx, out)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	<-ingestor.Ready()

	appendLine(t, logFile, "hel")
	select {
	case e := <-out:
		t.Fatalf("unexpected entry %q before newline", e.Raw)
	case <-time.After(200 * time.Millisecond):
	}

	appendLine(t, logFile, "lo\r\n")
	select {
	case e := <-out:
		assert.Equal(t, "hello", string(e.Raw))
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for completed line")
	}
}

func TestFileIngestor_NoMatch(t *testing.T) {
	cfg := config.FileIngestorConfig{Paths: []string{filepath.Join(t.TempDir(), "*.log")}}
	ingestor := NewFileIngestor(cfg, testutil.NewTestLogger())

	err := ingestor.Start(context.Background(), make(chanSink, 1))
	assert.ErrorContains(t, err, "no files matched")
}

func TestFileIngestor_Exclude(t *testing.T) {
	tmpDir := t.TempDir()

	cfg := config.FileIngestorConfig{
		Enabled: true,
		Paths:   []string{filepath.Join(tmpDir, "*.log")},
		Exclude: []string{"*.exclude.log"},
	}

	ingestor := NewFileIngestor(cfg, testutil.NewTestLogger())

	assert.True(t, ingestor.isExcluded(filepath.Join(tmpDir, "test.exclude.log")))
	assert.False(t, ingestor.isExcluded(filepath.Join(tmpDir, "test.log")))
	assert.Equal(t,
		[]string{filepath.Join(tmpDir, "test.log")},
		ingestor.filterExcluded([]string{filepath.Join(tmpDir, "test.log"), filepath.Join(tmpDir, "test.exclude.log")}),
	)
}
