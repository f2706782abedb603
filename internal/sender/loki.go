package sender

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/GabrielNunesIT/go-libs/logger"

	"github.com/GabrielNunesIT/log-shipper/internal/config"
	"github.com/GabrielNunesIT/log-shipper/internal/model"
)

// Loki pushes batches to the Grafana Loki push API.
type Loki struct {
	cfg    config.LokiSenderConfig
	client HTTPDoer
	wg     sync.WaitGroup
	logger logger.ILogger
}

// lokiPushRequest is the Loki push API request format.
type lokiPushRequest struct {
	Streams []lokiStream `json:"streams"`
}

// lokiStream represents a log stream in Loki.
type lokiStream struct {
	Stream map[string]string `json:"stream"`
	Values [][]string        `json:"values"`
}

// LokiOption configures a Loki sender.
type LokiOption func(*Loki)

// WithLokiHTTPClient sets a custom HTTP client for testing.
func WithLokiHTTPClient(client HTTPDoer) LokiOption {
	return func(l *Loki) {
		l.client = client
	}
}

// NewLoki creates a new Loki sender.
func NewLoki(cfg config.LokiSenderConfig, log logger.ILogger, opts ...LokiOption) *Loki {
	l := &Loki{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: log.SubLogger("LokiSender"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Name returns the sender identifier.
func (l *Loki) Name() string {
	return config.SenderLoki
}

// Start logs the target; the HTTP client needs no setup.
func (l *Loki) Start(ctx context.Context) error {
	l.logger.Infof("sending to Loki: url=%s", l.cfg.URL)
	return nil
}

// Stop waits for in-flight pushes.
func (l *Loki) Stop(ctx context.Context) error {
	return waitGroup(ctx, &l.wg)
}

// Send pushes the batch on its own goroutine.
func (l *Loki) Send(ctx context.Context, batch *model.Batch, done CompletionFunc) {
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		res := l.push(ctx, batch)
		if res.Err != nil {
			l.logger.Debugf("push failed: batch=%s, status=%s, error=%v", batch.ID, res.Status, res.Err)
		}
		done(res)
	}()
}

func (l *Loki) push(ctx context.Context, batch *model.Batch) Result {
	data, err := json.Marshal(l.buildRequest(batch))
	if err != nil {
		return Fatal(fmt.Errorf("encoding loki request: %w", err))
	}

	headers := map[string]string{}
	if l.cfg.TenantID != "" {
		headers["X-Scope-OrgID"] = l.cfg.TenantID
	}

	return push(ctx, l.client, pushRequest{
		url:         strings.TrimRight(l.cfg.URL, "/") + "/loki/api/v1/push",
		contentType: "application/json",
		headers:     headers,
		body:        data,
		compress:    l.cfg.Compress,
	})
}

// buildRequest groups the batch entries into streams by label set.
func (l *Loki) buildRequest(batch *model.Batch) lokiPushRequest {
	streams := make(map[string]*lokiStream)
	var order []string

	for _, entry := range batch.Entries {
		labels := make(map[string]string, len(l.cfg.Labels)+len(entry.Metadata)+2)
		for k, v := range l.cfg.Labels {
			labels[k] = v
		}
		for k, v := range entry.Metadata {
			labels[k] = v
		}
		labels["source"] = entry.Source
		labels["channel"] = batch.GroupID

		key := labelKey(labels)
		s, ok := streams[key]
		if !ok {
			s = &lokiStream{Stream: labels}
			streams[key] = s
			order = append(order, key)
		}
		s.Values = append(s.Values, []string{
			strconv.FormatInt(entry.Timestamp.UnixNano(), 10),
			lokiLine(entry),
		})
	}

	req := lokiPushRequest{Streams: make([]lokiStream, 0, len(order))}
	for _, key := range order {
		req.Streams = append(req.Streams, *streams[key])
	}
	return req
}

// lokiLine renders the entry as JSON when it carries parsed fields, raw otherwise.
func lokiLine(entry *model.LogEntry) string {
	if len(entry.Parsed) == 0 {
		return entry.Message()
	}
	data := map[string]any{"message": entry.Message()}
	for k, v := range entry.Parsed {
		data[k] = v
	}
	line, err := json.Marshal(data)
	if err != nil {
		return entry.Message()
	}
	return string(line)
}

// labelKey returns a canonical string for a label set.
func labelKey(labels map[string]string) string {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(labels[k])
		b.WriteByte(',')
	}
	return b.String()
}

// waitGroup waits for wg or ctx, whichever comes first.
func waitGroup(ctx context.Context, wg *sync.WaitGroup) error {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
