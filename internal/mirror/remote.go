package mirror

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"tools.velia/pipeline/timekeep/internal/session"
)

// httpClient is a lazily-initialized retryablehttp client shared across all
// remote pushes. Initialized once via httpClientOnce.
var (
	httpClient     *retryablehttp.Client
	httpClientOnce sync.Once
)

// getHTTPClient returns the shared retryable HTTP client, initializing it on
// first call.
func getHTTPClient() *retryablehttp.Client {
	httpClientOnce.Do(func() {
		httpClient = retryablehttp.NewClient()
		httpClient.RetryMax = 2
		httpClient.HTTPClient.Timeout = 10 * time.Second
		httpClient.Logger = nil // suppress retryablehttp's default logging
	})
	return httpClient
}

// Pusher sends session records to a remote activity collector.
type Pusher struct {
	url string
}

// NewPusher creates a Pusher targeting the given endpoint URL.
func NewPusher(url string) (*Pusher, error) {
	if url == "" {
		return nil, fmt.Errorf("empty remote URL")
	}
	return &Pusher{url: url}, nil
}

// Push POSTs records to the collector as a JSON array. A non-2xx response
// is an error; transient failures are retried by the shared client.
func (p *Pusher) Push(ctx context.Context, records []*session.Record) error {
	if len(records) == 0 {
		return nil
	}

	body, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encode records: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, "POST", p.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := getHTTPClient().Do(req)
	if err != nil {
		return fmt.Errorf("push records: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("push records: collector returned %s", resp.Status)
	}

	slog.Info("pushed session records", "count", len(records), "url", p.url)
	return nil
}
