package retry

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// scriptedServer answers with the given status codes in order, repeating the
// last one once the script is exhausted.
func scriptedServer(t *testing.T, statuses ...int) (*httptest.Server, *atomic.Int32) {
	t.Helper()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(hits.Add(1))
		status := statuses[len(statuses)-1]
		if n <= len(statuses) {
			status = statuses[n-1]
		}
		w.WriteHeader(status)
		_, _ = io.WriteString(w, http.StatusText(status))
	}))
	t.Cleanup(srv.Close)

	return srv, &hits
}

func newTestFetcher(maxRetries int) *Fetcher {
	return NewFetcher(Options{
		Client:     http.DefaultClient,
		MaxRetries: maxRetries,
		Backoff:    time.Millisecond,
	})
}

func TestRetryExhaustionOn429(t *testing.T) {
	srv, hits := scriptedServer(t, http.StatusTooManyRequests)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/balances", nil)
	require.NoError(t, err)

	resp, err := newTestFetcher(3).Do(context.Background(), req)
	require.Nil(t, resp)
	require.ErrorIs(t, err, ErrRateLimitExceeded)
	require.Equal(t, int32(4), hits.Load(), "1 initial attempt + 3 retries")
}

func TestRetrySucceedsAfterTwo429s(t *testing.T) {
	srv, hits := scriptedServer(t, http.StatusTooManyRequests, http.StatusTooManyRequests, http.StatusOK)

	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	resp, err := newTestFetcher(3).Do(context.Background(), req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, int32(3), hits.Load())

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, "OK", string(body))
}

func TestServerErrorsAreNotRetried(t *testing.T) {
	for _, status := range []int{http.StatusBadRequest, http.StatusNotFound, http.StatusInternalServerError, http.StatusServiceUnavailable} {
		srv, hits := scriptedServer(t, status)

		req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
		require.NoError(t, err)

		resp, err := newTestFetcher(3).Do(context.Background(), req)
		require.NoError(t, err, "status %d must come back as a response", status)
		require.Equal(t, status, resp.StatusCode)
		resp.Body.Close()
		require.Equal(t, int32(1), hits.Load(), "status %d must not be retried", status)
	}
}

type failingDoer struct {
	calls    atomic.Int32
	failures int32
	err      error
}

func (d *failingDoer) Do(req *http.Request) (*http.Response, error) {
	n := d.calls.Add(1)
	if d.failures < 0 || n <= d.failures {
		return nil, d.err
	}
	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(strings.NewReader("{}")),
		Request:    req,
	}, nil
}

func TestTransportFailureExhaustion(t *testing.T) {
	reset := errors.New("connection reset by peer")
	doer := &failingDoer{failures: -1, err: reset}

	req, err := http.NewRequest(http.MethodGet, "http://upstream.invalid/prices", nil)
	require.NoError(t, err)

	f := NewFetcher(Options{Client: doer, MaxRetries: 2, Backoff: time.Millisecond})
	_, err = f.Do(context.Background(), req)

	require.ErrorIs(t, err, reset)
	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	require.Equal(t, 3, transportErr.Attempts)
	require.Equal(t, int32(3), doer.calls.Load())
}

func TestTransportFailureRecovers(t *testing.T) {
	doer := &failingDoer{failures: 1, err: errors.New("i/o timeout")}

	req, err := http.NewRequest(http.MethodGet, "http://upstream.invalid/prices", nil)
	require.NoError(t, err)

	var notified []time.Duration
	f := NewFetcher(Options{
		Client:     doer,
		MaxRetries: 3,
		Backoff:    5 * time.Millisecond,
		Notify:     func(_ error, wait time.Duration) { notified = append(notified, wait) },
	})

	resp, err := f.Do(context.Background(), req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, int32(2), doer.calls.Load())
	require.Equal(t, []time.Duration{5 * time.Millisecond}, notified, "backoff is constant")
}

func TestRequestBodyIsReplayed(t *testing.T) {
	var bodies []string
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(b))
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	req, err := http.NewRequest(http.MethodPost, srv.URL, io.NopCloser(strings.NewReader(`{"ids":["ethereum"]}`)))
	require.NoError(t, err)

	resp, err := newTestFetcher(1).Do(context.Background(), req)
	require.NoError(t, err)
	resp.Body.Close()

	require.Equal(t, []string{`{"ids":["ethereum"]}`, `{"ids":["ethereum"]}`}, bodies)
}

func TestCancelledContextStopsRetrying(t *testing.T) {
	srv, hits := scriptedServer(t, http.StatusTooManyRequests)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	f := NewFetcher(Options{Client: http.DefaultClient, MaxRetries: 3, Backoff: time.Second})
	_, err = f.Do(ctx, req)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, int32(1), hits.Load())
}

func TestFetchWithRetryZeroBudget(t *testing.T) {
	srv, hits := scriptedServer(t, http.StatusTooManyRequests)

	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	_, err = FetchWithRetry(context.Background(), http.DefaultClient, req, 0)
	require.ErrorIs(t, err, ErrRateLimitExceeded)
	require.Equal(t, int32(1), hits.Load())
}

func TestNewFetcherDefaults(t *testing.T) {
	f := NewFetcher(Options{})
	require.Equal(t, DefaultMaxRetries, f.MaxRetries())
	require.Equal(t, DefaultBackoff, f.backoff)

	require.Equal(t, 0, NewFetcher(Options{MaxRetries: -1}).MaxRetries())
}
