package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogEntry(t *testing.T) {
	raw := []byte("test message")
	entry := NewLogEntry("test-source", raw)

	if entry.Source != "test-source" {
		t.Errorf("expected source 'test-source', got %q", entry.Source)
	}

	if entry.Message() != "test message" {
		t.Errorf("expected raw 'test message', got %q", entry.Message())
	}

	if entry.Parsed == nil {
		t.Error("expected Parsed map to be initialized")
	}

	if entry.Metadata == nil {
		t.Error("expected Metadata map to be initialized")
	}

	if entry.Timestamp.IsZero() {
		t.Error("expected Timestamp to be set")
	}

	if entry.ID != 0 {
		t.Errorf("expected unpersisted entry to have ID 0, got %d", entry.ID)
	}
}

func TestLogEntry_Fields(t *testing.T) {
	entry := &LogEntry{
		Timestamp: time.Date(2026, 1, 18, 12, 0, 0, 0, time.UTC),
		Source:    "file",
		Raw:       []byte("hello"),
		Parsed:    map[string]any{"level": "info"},
		Metadata:  map[string]string{"host": "localhost"},
	}

	doc := entry.Fields("_time", "_source", "_msg")

	assert.Equal(t, "2026-01-18T12:00:00Z", doc["_time"])
	assert.Equal(t, "file", doc["_source"])
	assert.Equal(t, "hello", doc["_msg"])
	assert.Equal(t, "info", doc["level"])
	assert.Equal(t, "localhost", doc["host"])
}

func TestBatch_EntryIDs(t *testing.T) {
	b := &Batch{
		ID:      "b1",
		GroupID: "logs",
		Entries: []*LogEntry{{ID: 3}, {ID: 4}, {ID: 9}},
	}

	assert.Equal(t, 3, b.Len())
	assert.Equal(t, []int64{3, 4, 9}, b.EntryIDs())
}

func TestParsePriority(t *testing.T) {
	tests := []struct {
		in      string
		want    Priority
		wantErr bool
	}{
		{"", PriorityDefault, false},
		{"default", PriorityDefault, false},
		{"HIGH", PriorityHigh, false},
		{" backup ", PriorityBackup, false},
		{"urgent", PriorityDefault, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePriority(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.True(t, PriorityBackup < PriorityDefault && PriorityDefault < PriorityHigh)
		})
	}
}
