package sender

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GabrielNunesIT/log-shipper/internal/config"
	"github.com/GabrielNunesIT/log-shipper/internal/testutil"
)

func TestVictoriaLogs_Send(t *testing.T) {
	var capturedReq *http.Request
	var capturedBody []byte

	client := &mockHTTPClient{
		DoFunc: func(req *http.Request) (*http.Response, error) {
			capturedReq = req
			capturedBody, _ = io.ReadAll(req.Body)
			return respond(200, "")(req)
		},
	}

	v := NewVictoriaLogs(config.VictoriaLogsSenderConfig{URL: "http://localhost:9428"}, testutil.NewTestLogger(), WithVictoriaLogsHTTPClient(client))
	assert.Equal(t, "victorialogs", v.Name())

	first := testEntry("test", "first")
	first.Metadata["host"] = "localhost"
	res := sendAndWait(t, v, testBatch(first, testEntry("test", "second")))
	require.Equal(t, StatusSuccess, res.Status)

	require.NotNil(t, capturedReq)
	assert.Equal(t, "http://localhost:9428/insert/jsonline", capturedReq.URL.String())
	assert.Equal(t, "application/x-ndjson", capturedReq.Header.Get("Content-Type"))

	var docs []map[string]any
	scanner := bufio.NewScanner(bytes.NewReader(capturedBody))
	for scanner.Scan() {
		var doc map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &doc))
		docs = append(docs, doc)
	}
	require.Len(t, docs, 2)
	assert.Equal(t, "first", docs[0]["_msg"])
	assert.Equal(t, "test", docs[0]["_source"])
	assert.Equal(t, "2026-01-18T12:00:00Z", docs[0]["_time"])
	assert.Equal(t, "logs", docs[0]["_channel"])
	assert.Equal(t, "localhost", docs[0]["host"])
	assert.Equal(t, "second", docs[1]["_msg"])
}

func TestVictoriaLogs_SendFailure(t *testing.T) {
	v := NewVictoriaLogs(config.VictoriaLogsSenderConfig{URL: "http://vl"}, testutil.NewTestLogger(),
		WithVictoriaLogsHTTPClient(&mockHTTPClient{DoFunc: respond(400, "bad request")}))

	res := sendAndWait(t, v, testBatch(testEntry("test", "x")))
	assert.Equal(t, StatusFatal, res.Status)
	assert.Contains(t, res.Err.Error(), "bad request")
}
