package sender

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GabrielNunesIT/log-shipper/internal/config"
	"github.com/GabrielNunesIT/log-shipper/internal/testutil"
)

// mockHTTPClient implements HTTPDoer for testing.
type mockHTTPClient struct {
	DoFunc func(req *http.Request) (*http.Response, error)
}

func (m *mockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	return m.DoFunc(req)
}

func respond(code int, body string) func(*http.Request) (*http.Response, error) {
	return func(req *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: code,
			Body:       io.NopCloser(strings.NewReader(body)),
		}, nil
	}
}

func TestLoki_Name(t *testing.T) {
	l := NewLoki(config.LokiSenderConfig{}, testutil.NewTestLogger())
	assert.Equal(t, "loki", l.Name())
}

func TestLoki_Send(t *testing.T) {
	var capturedReq *http.Request
	var capturedBody []byte

	client := &mockHTTPClient{
		DoFunc: func(req *http.Request) (*http.Response, error) {
			capturedReq = req
			capturedBody, _ = io.ReadAll(req.Body)
			return respond(204, "")(req)
		},
	}

	cfg := config.LokiSenderConfig{
		URL:      "http://localhost:3100/",
		TenantID: "team-a",
		Labels:   map[string]string{"app": "test"},
	}
	l := NewLoki(cfg, testutil.NewTestLogger(), WithLokiHTTPClient(client))

	plain := testEntry("test", "plain line")
	structured := testEntry("test", `{"level":"warn"}`)
	structured.Parsed["level"] = "warn"
	other := testEntry("syslog", "from syslog")

	res := sendAndWait(t, l, testBatch(plain, structured, other))
	require.Equal(t, StatusSuccess, res.Status)

	require.NotNil(t, capturedReq)
	assert.Equal(t, "http://localhost:3100/loki/api/v1/push", capturedReq.URL.String())
	assert.Equal(t, "application/json", capturedReq.Header.Get("Content-Type"))
	assert.Equal(t, "team-a", capturedReq.Header.Get("X-Scope-OrgID"))

	var pushReq lokiPushRequest
	require.NoError(t, json.Unmarshal(capturedBody, &pushReq))
	require.Len(t, pushReq.Streams, 2)

	first := pushReq.Streams[0]
	assert.Equal(t, "test", first.Stream["app"])
	assert.Equal(t, "test", first.Stream["source"])
	assert.Equal(t, "logs", first.Stream["channel"])
	require.Len(t, first.Values, 2)
	assert.Equal(t, "1768737600000000000", first.Values[0][0])
	assert.Equal(t, "plain line", first.Values[0][1])

	var line map[string]any
	require.NoError(t, json.Unmarshal([]byte(first.Values[1][1]), &line))
	assert.Equal(t, "warn", line["level"])

	assert.Equal(t, "syslog", pushReq.Streams[1].Stream["source"])
}

func TestLoki_Compress(t *testing.T) {
	var body []byte
	var encoding string
	client := &mockHTTPClient{
		DoFunc: func(req *http.Request) (*http.Response, error) {
			encoding = req.Header.Get("Content-Encoding")
			zr, err := gzip.NewReader(req.Body)
			if err != nil {
				return nil, err
			}
			body, _ = io.ReadAll(zr)
			return respond(204, "")(req)
		},
	}

	l := NewLoki(config.LokiSenderConfig{URL: "http://loki", Compress: true}, testutil.NewTestLogger(), WithLokiHTTPClient(client))
	res := sendAndWait(t, l, testBatch(testEntry("test", "zipped")))
	require.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, "gzip", encoding)
	assert.Contains(t, string(body), "zipped")
}

func TestLoki_SendFailures(t *testing.T) {
	tests := []struct {
		name   string
		do     func(*http.Request) (*http.Response, error)
		status Status
		errMsg string
	}{
		{
			name:   "server error",
			do:     respond(500, "internal error"),
			status: StatusRecoverable,
			errMsg: "push failed with status: 500: internal error",
		},
		{
			name:   "throttled",
			do:     respond(429, ""),
			status: StatusRecoverable,
			errMsg: "429",
		},
		{
			name:   "unauthorized",
			do:     respond(401, "no token"),
			status: StatusFatal,
			errMsg: "401",
		},
		{
			name: "transport error",
			do: func(*http.Request) (*http.Response, error) {
				return nil, errors.New("connection refused")
			},
			status: StatusRecoverable,
			errMsg: "connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewLoki(config.LokiSenderConfig{URL: "http://loki"}, testutil.NewTestLogger(), WithLokiHTTPClient(&mockHTTPClient{DoFunc: tt.do}))
			res := sendAndWait(t, l, testBatch(testEntry("test", "x")))
			assert.Equal(t, tt.status, res.Status)
			require.Error(t, res.Err)
			assert.Contains(t, res.Err.Error(), tt.errMsg)
		})
	}
}

func TestLoki_StopWaitsForInflight(t *testing.T) {
	release := make(chan struct{})
	client := &mockHTTPClient{
		DoFunc: func(req *http.Request) (*http.Response, error) {
			<-release
			return respond(204, "")(req)
		},
	}
	l := NewLoki(config.LokiSenderConfig{URL: "http://loki"}, testutil.NewTestLogger(), WithLokiHTTPClient(client))

	results := make(chan Result, 1)
	l.Send(context.Background(), testBatch(testEntry("test", "x")), func(r Result) { results <- r })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, l.Stop(ctx), context.DeadlineExceeded)

	close(release)
	assert.NoError(t, l.Stop(context.Background()))
	assert.Equal(t, StatusSuccess, (<-results).Status)
}
