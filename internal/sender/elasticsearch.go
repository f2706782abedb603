package sender

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/GabrielNunesIT/go-libs/logger"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esutil"

	"github.com/GabrielNunesIT/log-shipper/internal/config"
	"github.com/GabrielNunesIT/log-shipper/internal/model"
)

// IndexerFactory creates a new BulkIndexer.
type IndexerFactory func(cfg config.ElasticsearchSenderConfig) (esutil.BulkIndexer, error)

// ElasticsearchOption configures the Elasticsearch sender.
type ElasticsearchOption func(*Elasticsearch)

// WithIndexerFactory sets a custom factory for creating the BulkIndexer.
// This is primarily used for testing to inject a mock indexer.
func WithIndexerFactory(f IndexerFactory) ElasticsearchOption {
	return func(e *Elasticsearch) {
		e.factory = f
	}
}

// Elasticsearch indexes batches through a shared bulk indexer.
// A batch completes once every one of its documents has been acknowledged.
type Elasticsearch struct {
	cfg     config.ElasticsearchSenderConfig
	factory IndexerFactory
	indexer esutil.BulkIndexer
	mu      sync.Mutex
	logger  logger.ILogger
}

// NewElasticsearch creates a new Elasticsearch sender.
func NewElasticsearch(cfg config.ElasticsearchSenderConfig, log logger.ILogger, opts ...ElasticsearchOption) *Elasticsearch {
	e := &Elasticsearch{
		cfg:    cfg,
		logger: log.SubLogger("ElasticsearchSender"),
	}

	// Default factory creates real client and indexer
	e.factory = func(cfg config.ElasticsearchSenderConfig) (esutil.BulkIndexer, error) {
		esCfg := elasticsearch.Config{
			Addresses: cfg.Addresses,
		}

		if cfg.Username != "" {
			esCfg.Username = cfg.Username
			esCfg.Password = cfg.Password
		}

		client, err := elasticsearch.NewClient(esCfg)
		if err != nil {
			return nil, fmt.Errorf("creating elasticsearch client: %w", err)
		}

		return esutil.NewBulkIndexer(esutil.BulkIndexerConfig{
			Client:        client,
			Index:         cfg.Index,
			NumWorkers:    2,
			FlushBytes:    5e+6, // 5MB
			FlushInterval: cfg.FlushInterval,
		})
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Name returns the sender identifier.
func (e *Elasticsearch) Name() string {
	return config.SenderElasticsearch
}

// Start initializes the Elasticsearch client and bulk indexer.
func (e *Elasticsearch) Start(ctx context.Context) error {
	indexer, err := e.factory(e.cfg)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.indexer = indexer
	e.mu.Unlock()
	e.logger.Infof("indexing into Elasticsearch: index=%s, addresses=%v", e.cfg.Index, e.cfg.Addresses)
	return nil
}

// Stop flushes and closes the bulk indexer; pending documents report their outcome.
func (e *Elasticsearch) Stop(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.indexer != nil {
		return e.indexer.Close(ctx)
	}
	return nil
}

// bulkTracker folds per-document outcomes into one batch result.
type bulkTracker struct {
	mu        sync.Mutex
	remaining int
	result    Result
	done      CompletionFunc
}

func (t *bulkTracker) report(r Result) {
	t.mu.Lock()
	t.result = worst(t.result, r)
	t.remaining--
	finished := t.remaining == 0
	res := t.result
	t.mu.Unlock()

	if finished {
		t.done(res)
	}
}

// abandon accounts for n documents that never reached the indexer.
func (t *bulkTracker) abandon(n int, err error) {
	for i := 0; i < n; i++ {
		t.report(Recoverable(err))
	}
}

// Send adds one document per entry to the bulk indexer.
func (e *Elasticsearch) Send(ctx context.Context, batch *model.Batch, done CompletionFunc) {
	e.mu.Lock()
	indexer := e.indexer
	e.mu.Unlock()

	if indexer == nil {
		done(Recoverable(errors.New("elasticsearch sender not started")))
		return
	}
	if batch.Len() == 0 {
		done(Succeeded())
		return
	}

	tracker := &bulkTracker{remaining: batch.Len(), result: Succeeded(), done: done}

	for i, entry := range batch.Entries {
		doc := entry.Fields("@timestamp", "source", "message")
		doc["channel"] = batch.GroupID

		data, err := json.Marshal(doc)
		if err != nil {
			tracker.report(Fatal(fmt.Errorf("encoding document %d: %w", entry.ID, err)))
			continue
		}

		err = indexer.Add(ctx, esutil.BulkIndexerItem{
			Action: "index",
			Body:   bytes.NewReader(data),
			OnSuccess: func(ctx context.Context, item esutil.BulkIndexerItem, res esutil.BulkIndexerResponseItem) {
				tracker.report(Succeeded())
			},
			OnFailure: func(ctx context.Context, item esutil.BulkIndexerItem, res esutil.BulkIndexerResponseItem, err error) {
				tracker.report(classifyBulkFailure(res, err))
			},
		})
		if err != nil {
			e.logger.Debugf("bulk add failed: batch=%s, error=%v", batch.ID, err)
			tracker.abandon(batch.Len()-i, err)
			return
		}
	}
}

// classifyBulkFailure maps a failed bulk item to a send result.
func classifyBulkFailure(res esutil.BulkIndexerResponseItem, err error) Result {
	if err != nil {
		return Recoverable(err)
	}
	return Result{
		Status: ClassifyHTTPStatus(res.Status),
		Err:    fmt.Errorf("bulk item rejected: status=%d, type=%s, reason=%s", res.Status, res.Error.Type, res.Error.Reason),
	}
}
