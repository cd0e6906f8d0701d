package retry

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"portfolio-gateway/pkg/errs"
	"portfolio-gateway/pkg/logging"
)

const (
	DefaultMaxRetries = 3
	DefaultBackoff    = 2 * time.Second
)

// ErrRateLimitExceeded is returned when the upstream answered 429 on every attempt.
var ErrRateLimitExceeded = errors.New("rate limit exceeded")

// TransportError is the last network-level failure after all retries were spent.
type TransportError struct {
	Attempts int
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport failure after %d attempts: %v", e.Attempts, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// HTTPDoer is satisfied by *http.Client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// NotifyFunc is called before every retry with the failure and the wait.
type NotifyFunc func(err error, wait time.Duration)

type Options struct {
	Client     HTTPDoer      // Defaults to a pooled *http.Client
	MaxRetries int           // Retries after the first attempt, default 3. Negative means none.
	Backoff    time.Duration // Constant wait between attempts, default 2s
	Notify     NotifyFunc    // Optional retry observer
}

// Fetcher performs one logical GET-like request with constant-backoff retries
// on 429 and on transport failures. Other statuses are handed back untouched.
type Fetcher struct {
	client     HTTPDoer
	maxRetries int
	backoff    time.Duration
	notify     NotifyFunc
}

func NewFetcher(opts Options) *Fetcher {
	if opts.MaxRetries == 0 {
		opts.MaxRetries = DefaultMaxRetries
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.Backoff == 0 {
		opts.Backoff = DefaultBackoff
	}
	if opts.Client == nil {
		opts.Client = NewHTTPClient(30 * time.Second)
	}

	return &Fetcher{
		client:     opts.Client,
		maxRetries: opts.MaxRetries,
		backoff:    opts.Backoff,
		notify:     opts.Notify,
	}
}

// NewHTTPClient returns a client with connection pooling suited to a handful
// of upstream hosts.
func NewHTTPClient(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 20,
		IdleConnTimeout:     90 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

// MaxRetries reports the configured retry budget.
func (f *Fetcher) MaxRetries() int { return f.maxRetries }

// Do issues req, retrying at most MaxRetries times. The caller owns the body
// of the returned response.
func (f *Fetcher) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	return f.do(ctx, req, f.maxRetries)
}

func (f *Fetcher) do(ctx context.Context, req *http.Request, maxRetries int) (*http.Response, error) {
	if ctx == nil {
		ctx = req.Context()
	}
	if err := makeReplayable(req); err != nil {
		return nil, errs.Wrap(err, "buffer request body")
	}

	logCtx := logging.WithAttrs(ctx,
		slog.String("component", "retry"),
		slog.String("host", req.URL.Host),
	)

	attempt := 0
	var operation backoff.OperationWithData[*http.Response] = func() (*http.Response, error) {
		attempt++

		attemptReq, err := cloneRequest(ctx, req)
		if err != nil {
			return nil, backoff.Permanent(errs.Wrap(err, "clone request"))
		}

		resp, err := f.client.Do(attemptReq)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, backoff.Permanent(ctxErr)
			}
			return nil, &TransportError{Attempts: attempt, Err: err}
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			drainAndClose(resp)
			return nil, fmt.Errorf("%w: %s %s returned 429 on attempt %d",
				ErrRateLimitExceeded, req.Method, req.URL.Path, attempt)
		}

		return resp, nil
	}

	notify := func(err error, wait time.Duration) {
		logging.Warn(logCtx, "upstream request failed, retrying",
			slog.Int("attempt", attempt),
			slog.Int("retries_left", maxRetries-attempt+1),
			slog.Duration("backoff", wait),
			slog.Any("err", errs.Loggable(err)),
		)
		if f.notify != nil {
			f.notify(err, wait)
		}
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(f.backoff), uint64(maxRetries)),
		ctx,
	)

	return backoff.RetryNotifyWithData(operation, policy, notify)
}

// FetchWithRetry is the functional form of Fetcher.Do with an explicit retry budget.
func FetchWithRetry(ctx context.Context, client HTTPDoer, req *http.Request, maxRetries int) (*http.Response, error) {
	if maxRetries < 0 {
		maxRetries = 0
	}
	f := NewFetcher(Options{Client: client, MaxRetries: -1})
	return f.do(ctx, req, maxRetries)
}

// makeReplayable makes sure every attempt can get a fresh copy of the body.
func makeReplayable(req *http.Request) error {
	if req.Body == nil || req.Body == http.NoBody || req.GetBody != nil {
		return nil
	}

	body, err := io.ReadAll(req.Body)
	_ = req.Body.Close()
	if err != nil {
		return err
	}

	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(body)), nil
	}
	req.Body, _ = req.GetBody()
	return nil
}

func cloneRequest(ctx context.Context, req *http.Request) (*http.Request, error) {
	clone := req.Clone(ctx)
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		clone.Body = body
	}
	return clone, nil
}

func drainAndClose(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}
