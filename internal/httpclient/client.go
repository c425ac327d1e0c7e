// Package httpclient is the shared outbound HTTP client with rate limiting
// and exponential-backoff retries.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"
)

type Client struct {
	HTTPClient *http.Client
	Limiter    *rate.Limiter

	maxRetryTimeout time.Duration
}

type Options struct {
	Timeout         time.Duration
	RequestsPerSec  int
	MaxRetryTimeout time.Duration
	Transport       http.RoundTripper
}

func New(opts Options) *Client {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RequestsPerSec == 0 {
		opts.RequestsPerSec = 5
	}
	if opts.MaxRetryTimeout == 0 {
		opts.MaxRetryTimeout = 30 * time.Second
	}

	return &Client{
		HTTPClient: &http.Client{
			Timeout:   opts.Timeout,
			Transport: opts.Transport,
		},
		Limiter:         rate.NewLimiter(rate.Limit(opts.RequestsPerSec), opts.RequestsPerSec),
		maxRetryTimeout: opts.MaxRetryTimeout,
	}
}

// StatusError is returned for non-2xx responses. Body holds at most 4KiB of
// the response.
type StatusError struct {
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// Temporary reports whether retrying the request may succeed.
func (e *StatusError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// PostJSON sends in as a JSON body and decodes a 2xx response into out.
// Network failures, 429 and 5xx responses are retried.
func (c *Client) PostJSON(ctx context.Context, url string, headers map[string]string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	operation := func() error {
		if err := c.Limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := c.HTTPClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			statusErr := &StatusError{StatusCode: resp.StatusCode, Body: snippet}
			if statusErr.Temporary() {
				return statusErr
			}
			return backoff.Permanent(statusErr)
		}

		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return backoff.Permanent(fmt.Errorf("decode response: %w", err))
		}
		return nil
	}

	return Retry(ctx, c.maxRetryTimeout, operation)
}

// Retry runs op with exponential backoff until it succeeds, returns a
// backoff.Permanent error, ctx ends or maxElapsed passes.
func Retry(ctx context.Context, maxElapsed time.Duration, op func() error) error {
	strategy := backoff.NewExponentialBackOff()
	strategy.InitialInterval = 200 * time.Millisecond
	strategy.MaxElapsedTime = maxElapsed

	err := backoff.Retry(op, backoff.WithContext(strategy, ctx))
	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		return permanent.Err
	}
	return err
}
