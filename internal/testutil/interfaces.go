// Package testutil holds shared test helpers and the interfaces mocks are generated from.
package testutil

import (
	"context"
	"io"
	"net"

	"github.com/elastic/go-elasticsearch/v8/esutil"
	"github.com/segmentio/kafka-go"
)

//go:generate mockery --name=WriteCloser --output=./mocks --outpkg=mocks
//go:generate mockery --name=PacketConn --output=./mocks --outpkg=mocks
//go:generate mockery --name=Listener --output=./mocks --outpkg=mocks
//go:generate mockery --name=Conn --output=./mocks --outpkg=mocks
//go:generate mockery --name=BulkIndexer --output=./mocks --outpkg=mocks
//go:generate mockery --name=MessageWriter --output=./mocks --outpkg=mocks

// WriteCloser wraps io.WriteCloser for mock generation
type WriteCloser interface {
	io.WriteCloser
}

// PacketConn wraps net.PacketConn for mock generation
type PacketConn interface {
	net.PacketConn
}

// Listener wraps net.Listener for mock generation
type Listener interface {
	net.Listener
}

// Conn wraps net.Conn for mock generation
type Conn interface {
	net.Conn
}

// BulkIndexer wraps esutil.BulkIndexer for mock generation
type BulkIndexer interface {
	esutil.BulkIndexer
}

// MessageWriter mirrors the kafka writer methods the Kafka sender uses
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}
