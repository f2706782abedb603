package sender

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"github.com/GabrielNunesIT/go-libs/logger"

	"github.com/GabrielNunesIT/log-shipper/internal/config"
	"github.com/GabrielNunesIT/log-shipper/internal/model"
)

// VictoriaLogs pushes batches to the VictoriaLogs jsonline endpoint.
type VictoriaLogs struct {
	cfg    config.VictoriaLogsSenderConfig
	client HTTPDoer
	wg     sync.WaitGroup
	logger logger.ILogger
}

// VictoriaLogsOption configures a VictoriaLogs sender.
type VictoriaLogsOption func(*VictoriaLogs)

// WithVictoriaLogsHTTPClient sets a custom HTTP client for testing.
func WithVictoriaLogsHTTPClient(client HTTPDoer) VictoriaLogsOption {
	return func(v *VictoriaLogs) {
		v.client = client
	}
}

// NewVictoriaLogs creates a new VictoriaLogs sender.
func NewVictoriaLogs(cfg config.VictoriaLogsSenderConfig, log logger.ILogger, opts ...VictoriaLogsOption) *VictoriaLogs {
	v := &VictoriaLogs{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: log.SubLogger("VictoriaLogsSender"),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Name returns the sender identifier.
func (v *VictoriaLogs) Name() string {
	return config.SenderVictoriaLogs
}

// Start logs the target.
func (v *VictoriaLogs) Start(ctx context.Context) error {
	v.logger.Infof("sending to VictoriaLogs: url=%s", v.cfg.URL)
	return nil
}

// Stop waits for in-flight pushes.
func (v *VictoriaLogs) Stop(ctx context.Context) error {
	return waitGroup(ctx, &v.wg)
}

// Send pushes the batch on its own goroutine.
func (v *VictoriaLogs) Send(ctx context.Context, batch *model.Batch, done CompletionFunc) {
	v.wg.Add(1)
	go func() {
		defer v.wg.Done()
		res := v.push(ctx, batch)
		if res.Err != nil {
			v.logger.Debugf("push failed: batch=%s, status=%s, error=%v", batch.ID, res.Status, res.Err)
		} else {
			v.logger.Debugf("pushed %d entries to VictoriaLogs", batch.Len())
		}
		done(res)
	}()
}

func (v *VictoriaLogs) push(ctx context.Context, batch *model.Batch) Result {
	// VictoriaLogs uses jsonline format
	var buf bytes.Buffer
	for _, entry := range batch.Entries {
		doc := entry.Fields("_time", "_source", "_msg")
		doc["_channel"] = batch.GroupID
		data, err := json.Marshal(doc)
		if err != nil {
			v.logger.Debugf("skipping unencodable entry: id=%d, error=%v", entry.ID, err)
			continue
		}
		buf.Write(data)
		buf.WriteByte('\n')
	}

	return push(ctx, v.client, pushRequest{
		url:         strings.TrimRight(v.cfg.URL, "/") + "/insert/jsonline",
		contentType: "application/x-ndjson",
		body:        buf.Bytes(),
		compress:    v.cfg.Compress,
	})
}
