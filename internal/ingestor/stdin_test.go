package ingestor

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/GabrielNunesIT/log-shipper/internal/config"
	"github.com/GabrielNunesIT/log-shipper/internal/model"
	"github.com/GabrielNunesIT/log-shipper/internal/testutil"
)

func TestStdinIngestor(t *testing.T) {
	input := "line 1\nline 2\nline 3\n"
	reader := bytes.NewBufferString(input)

	cfg := config.StdinIngestorConfig{Enabled: true, Channel: "logs"}
	ingestor := NewStdinIngestorWithReader(cfg, reader, testutil.NewTestLogger())

	if ingestor.Name() != "stdin" {
		t.Errorf("expected name 'stdin', got %q", ingestor.Name())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var entries []*model.LogEntry
	sink := SinkFunc(func(_ context.Context, entry *model.LogEntry) error {
		entries = append(entries, entry)
		return nil
	})

	if err := ingestor.Start(ctx, sink); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}

	expected := []string{"line 1", "line 2", "line 3"}
	for i, entry := range entries {
		if string(entry.Raw) != expected[i] {
			t.Errorf("entry %d: expected %q, got %q", i, expected[i], string(entry.Raw))
		}
		if entry.Source != "stdin" {
			t.Errorf("entry %d: expected source 'stdin', got %q", i, entry.Source)
		}
	}
}

func TestStdinIngestor_EmptyLines(t *testing.T) {
	input := "line 1\n\nline 2\n"
	reader := bytes.NewBufferString(input)

	cfg := config.StdinIngestorConfig{Enabled: true}
	ingestor := NewStdinIngestorWithReader(cfg, reader, testutil.NewTestLogger())

	count := 0
	sink := SinkFunc(func(context.Context, *model.LogEntry) error {
		count++
		return nil
	})

	if err := ingestor.Start(context.Background(), sink); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// Empty lines should be skipped
	if count != 2 {
		t.Fatalf("expected 2 entries (empty lines skipped), got %d", count)
	}
}

func TestStdinIngestor_RejectedEntries(t *testing.T) {
	reader := bytes.NewBufferString("a\nb\nc\n")
	ingestor := NewStdinIngestorWithReader(config.StdinIngestorConfig{}, reader, testutil.NewTestLogger())

	attempts := 0
	sink := SinkFunc(func(context.Context, *model.LogEntry) error {
		attempts++
		return errors.New("storage full")
	})

	// A rejecting sink drops entries but does not stop ingestion.
	if err := ingestor.Start(context.Background(), sink); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestStdinIngestor_Cancelled(t *testing.T) {
	reader := bytes.NewBufferString("a\nb\n")
	ingestor := NewStdinIngestorWithReader(config.StdinIngestorConfig{}, reader, testutil.NewTestLogger())

	ctx, cancel := context.WithCancel(context.Background())
	sink := SinkFunc(func(context.Context, *model.LogEntry) error {
		cancel()
		return context.Canceled
	})

	err := ingestor.Start(ctx, sink)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestStdinIngestor_CancelWhileBlocked(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	ingestor := NewStdinIngestorWithReader(config.StdinIngestorConfig{}, pr, testutil.NewTestLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- ingestor.Start(ctx, SinkFunc(func(context.Context, *model.LogEntry) error { return nil }))
	}()

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("ingestor blocked on reader after cancellation")
	}
}
