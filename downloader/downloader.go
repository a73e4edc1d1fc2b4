package downloader

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

type GetOptions struct {
	MaxSize  int
	Timeout  time.Duration
	Retries  int
	Cache    bool
	CacheTTL time.Duration
}

// A thing capable of downloading a file, optionally with caching
type Downloader interface {
	Get(ctx context.Context, url string, headers map[string]string, options GetOptions) ([]byte, error)
}

// First wait between attempts. Doubles for each retry.
var RetryInterval = 500 * time.Millisecond

// Non-200 response.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status %d", e.StatusCode)
}

// Gets a file. Doesn't cache. Transport errors and 5xx responses are
// retried up to options.Retries times with exponential backoff.
// Provided as convenience for implementing custom Downloaders.
func HTTPGet(ctx context.Context, url string, headers map[string]string, options GetOptions) ([]byte, error) {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     RetryInterval,
		RandomizationFactor: 0.2,
		Multiplier:          2,
		MaxInterval:         30 * time.Second,
		MaxElapsedTime:      0,
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}
	b.Reset()

	var policy backoff.BackOff = backoff.WithMaxRetries(b, uint64(max(options.Retries, 0)))
	policy = backoff.WithContext(policy, ctx)

	body, err := backoff.RetryNotifyWithData(
		func() ([]byte, error) {
			return httpGetOnce(ctx, url, headers, options)
		},
		policy,
		func(err error, d time.Duration) {
			slog.Warn("retrying download", "url", url, "in", d, "error", err)
		},
	)
	if err != nil {
		return nil, err
	}

	return body, nil
}

func httpGetOnce(ctx context.Context, url string, headers map[string]string, options GetOptions) ([]byte, error) {
	client := &http.Client{
		Timeout: options.Timeout,
	}

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("creating request: %w", err))
	}

	for k, v := range headers {
		req.Header.Add(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, backoff.Permanent(ctx.Err())
		}
		return nil, fmt.Errorf("making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := &StatusError{URL: url, StatusCode: resp.StatusCode}
		if resp.StatusCode >= 500 {
			return nil, err
		}
		return nil, backoff.Permanent(err)
	}

	var reader io.Reader = resp.Body
	if options.MaxSize > 0 {
		// One extra byte to detect oversized bodies
		reader = io.LimitReader(resp.Body, int64(options.MaxSize)+1)
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}

	if options.MaxSize > 0 && len(body) > options.MaxSize {
		return nil, backoff.Permanent(fmt.Errorf("body exceeds %d bytes", options.MaxSize))
	}

	return body, nil
}
