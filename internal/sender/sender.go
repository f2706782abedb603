// Package sender defines the transport contract used by channels and its
// implementations for the supported log backends.
package sender

import (
	"context"
	"fmt"
	"net/http"

	"github.com/GabrielNunesIT/go-libs/logger"

	"github.com/GabrielNunesIT/log-shipper/internal/config"
	"github.com/GabrielNunesIT/log-shipper/internal/model"
)

// Status classifies the outcome of sending one batch.
type Status int

const (
	// StatusSuccess means the backend accepted the batch.
	StatusSuccess Status = iota
	// StatusRecoverable means the batch should be retried later (network, throttling, 5xx).
	StatusRecoverable
	// StatusFatal means retrying cannot help until something external changes
	// (credentials revoked, payload rejected).
	StatusFatal
)

// String returns a lowercase name for logs.
func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusRecoverable:
		return "recoverable"
	case StatusFatal:
		return "fatal"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Result is delivered once per Send.
type Result struct {
	Status Status
	Err    error
}

// Succeeded returns a success result.
func Succeeded() Result {
	return Result{Status: StatusSuccess}
}

// Recoverable returns a retryable failure result.
func Recoverable(err error) Result {
	return Result{Status: StatusRecoverable, Err: err}
}

// Fatal returns a non-retryable failure result.
func Fatal(err error) Result {
	return Result{Status: StatusFatal, Err: err}
}

// worst combines two results, keeping the most severe one.
func worst(a, b Result) Result {
	if b.Status > a.Status {
		return b
	}
	return a
}

// CompletionFunc receives the outcome of a Send. It may be called from any goroutine.
type CompletionFunc func(Result)

// Sender delivers batches to a log backend.
type Sender interface {
	// Start initializes connections. Called once before Send.
	Start(ctx context.Context) error

	// Send hands a batch to the backend and returns immediately.
	// done is called exactly once with the outcome.
	Send(ctx context.Context, batch *model.Batch, done CompletionFunc)

	// Stop releases resources. Batches already handed over still complete.
	Stop(ctx context.Context) error

	// Name returns a unique identifier for this sender.
	Name() string
}

// HTTPDoer abstracts HTTP client operations for testing.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Ensure http.Client implements HTTPDoer.
var _ HTTPDoer = (*http.Client)(nil)

// ClassifyHTTPStatus maps an HTTP response code to a send status.
func ClassifyHTTPStatus(code int) Status {
	switch {
	case code >= 200 && code < 300:
		return StatusSuccess
	case code == http.StatusRequestTimeout, code == http.StatusTooManyRequests, code >= 500:
		return StatusRecoverable
	case code == http.StatusBadRequest,
		code == http.StatusUnauthorized,
		code == http.StatusForbidden,
		code == http.StatusNotFound,
		code == http.StatusRequestEntityTooLarge,
		code == http.StatusUnprocessableEntity:
		return StatusFatal
	default:
		return StatusRecoverable
	}
}

// New creates the sender selected by cfg.Type.
func New(cfg config.SenderConfig, log logger.ILogger) (Sender, error) {
	switch cfg.Type {
	case config.SenderStdout:
		return NewStdout(cfg.Stdout, log), nil
	case config.SenderFile:
		return NewFile(cfg.File, log), nil
	case config.SenderLoki:
		return NewLoki(cfg.Loki, log), nil
	case config.SenderVictoriaLogs:
		return NewVictoriaLogs(cfg.VictoriaLogs, log), nil
	case config.SenderElasticsearch:
		return NewElasticsearch(cfg.Elasticsearch, log), nil
	case config.SenderKafka:
		return NewKafka(cfg.Kafka, log), nil
	default:
		return nil, fmt.Errorf("unknown sender type: %s", cfg.Type)
	}
}
