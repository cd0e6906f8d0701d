// Package upstream holds the plumbing shared by the third-party API clients:
// every request is serialized through a per-upstream queue and sent with the
// retrying fetcher.
package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"portfolio-gateway/pkg/errs"
	"portfolio-gateway/pkg/queue"
)

const maxErrorBody = 4 << 10

// StatusError is a non-2xx answer from an upstream that was not retried.
type StatusError struct {
	Upstream   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("%s returned %d", e.Upstream, e.StatusCode)
	}
	return fmt.Sprintf("%s returned %d: %s", e.Upstream, e.StatusCode, body)
}

// Fetcher is satisfied by *retry.Fetcher.
type Fetcher interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// DecodeJSON closes resp.Body. A non-2xx status becomes a *StatusError,
// anything else is decoded into out.
func DecodeJSON(name string, resp *http.Response, out any) error {
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Upstream: name, StatusCode: resp.StatusCode, Body: string(body)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errs.Wrapf(err, "decode %s response", name)
	}
	return nil
}

// Get waits for q's next dispatch slot, performs req through f and decodes the
// JSON answer into out. Once queued the request runs to completion even if ctx
// ends; the caller only stops waiting for it.
func Get(ctx context.Context, q *queue.Queue, f Fetcher, req *http.Request, out any) error {
	runCtx := context.WithoutCancel(ctx)

	_, err := queue.Do(ctx, q, func() (struct{}, error) {
		resp, err := f.Do(runCtx, req)
		if err != nil {
			return struct{}{}, err
		}
		return struct{}{}, DecodeJSON(q.Name(), resp, out)
	})
	return err
}
