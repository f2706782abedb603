// Package model defines the core data structures used throughout the log shipper.
package model

import (
	"time"
)

// LogEntry represents a single log event flowing through a channel.
// Channels treat it as opaque; only ingestors and senders look inside.
type LogEntry struct {
	// ID is assigned by storage when the entry is persisted. Zero means not persisted yet.
	ID int64 `cbor:"-" json:"-"`

	// Timestamp is when the log entry was ingested.
	Timestamp time.Time `cbor:"1,keyasint"`

	// Source identifies which ingestor produced this entry.
	Source string `cbor:"2,keyasint"`

	// Raw contains the original log line as received.
	Raw []byte `cbor:"3,keyasint"`

	// Parsed holds structured fields extracted at ingestion time.
	Parsed map[string]any `cbor:"4,keyasint,omitempty"`

	// Metadata contains labels like hostname, file path or remote address.
	Metadata map[string]string `cbor:"5,keyasint,omitempty"`
}

// NewLogEntry creates a new LogEntry with initialized maps and current timestamp.
func NewLogEntry(source string, raw []byte) *LogEntry {
	return &LogEntry{
		Timestamp: time.Now(),
		Source:    source,
		Raw:       raw,
		Parsed:    make(map[string]any),
		Metadata:  make(map[string]string),
	}
}

// Message returns the raw line as a string.
func (e *LogEntry) Message() string {
	return string(e.Raw)
}

// Fields flattens the entry into a single document: timestamp, source and
// message under the given keys, then parsed fields, then metadata.
// Senders use it to build their wire documents.
func (e *LogEntry) Fields(timeKey, sourceKey, messageKey string) map[string]any {
	doc := make(map[string]any, 3+len(e.Parsed)+len(e.Metadata))
	doc[timeKey] = e.Timestamp.Format(time.RFC3339Nano)
	doc[sourceKey] = e.Source
	doc[messageKey] = e.Message()
	for k, v := range e.Parsed {
		doc[k] = v
	}
	for k, v := range e.Metadata {
		doc[k] = v
	}
	return doc
}
