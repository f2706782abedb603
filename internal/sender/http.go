package sender

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/klauspost/compress/gzip"
)

// pushRequest describes one HTTP push of an encoded batch.
type pushRequest struct {
	url         string
	contentType string
	headers     map[string]string
	body        []byte
	compress    bool
}

// push performs the request and classifies the outcome.
// Transport errors are recoverable; HTTP statuses follow ClassifyHTTPStatus.
func push(ctx context.Context, client HTTPDoer, pr pushRequest) Result {
	body := pr.body
	if pr.compress {
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		if _, err := zw.Write(body); err != nil {
			return Fatal(fmt.Errorf("compressing payload: %w", err))
		}
		if err := zw.Close(); err != nil {
			return Fatal(fmt.Errorf("compressing payload: %w", err))
		}
		body = buf.Bytes()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, pr.url, bytes.NewReader(body))
	if err != nil {
		return Fatal(fmt.Errorf("building request: %w", err))
	}
	req.Header.Set("Content-Type", pr.contentType)
	if pr.compress {
		req.Header.Set("Content-Encoding", "gzip")
	}
	for k, v := range pr.headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return Recoverable(err)
	}
	defer resp.Body.Close()

	status := ClassifyHTTPStatus(resp.StatusCode)
	if status == StatusSuccess {
		_, _ = io.Copy(io.Discard, resp.Body)
		return Succeeded()
	}

	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return Result{
		Status: status,
		Err:    fmt.Errorf("push failed with status: %d: %s", resp.StatusCode, bytes.TrimSpace(msg)),
	}
}
