package oneinch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"portfolio-gateway/pkg/queue"
	"portfolio-gateway/pkg/retry"
	"portfolio-gateway/pkg/upstream"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	q := queue.New(queue.Options{Name: Name})
	t.Cleanup(q.Close)

	c, err := NewClient(Options{
		BaseURL: srv.URL,
		APIKey:  "secret",
		Fetcher: retry.NewFetcher(retry.Options{Client: srv.Client(), MaxRetries: -1, Backoff: time.Millisecond}),
		Queue:   q,
	})
	require.NoError(t, err)
	return c
}

func TestCurrentValue(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/portfolio/portfolio/v5.0/general/current_value", r.URL.Path)
		require.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.Equal(t, "0xabc", r.URL.Query().Get("addresses"))
		require.Equal(t, "137", r.URL.Query().Get("chain_id"))
		require.Equal(t, "true", r.URL.Query().Get("use_cache"))

		_, _ = w.Write([]byte(`{"result":{
			"total": 42.5,
			"by_chain": [{"value_usd": 42.5, "chain_id": 137, "chain_name": "Polygon"}],
			"by_category": [{"value_usd": 40, "category_id": "tokens", "category_name": "Tokens"},
			                {"value_usd": 2.5, "category_id": "native", "category_name": "Native"}]
		}}`))
	})

	res, err := c.CurrentValue(context.Background(), "0xabc", 137)
	require.NoError(t, err)
	require.Equal(t, 42.5, res.Total)
	require.Equal(t, []ChainValue{{ValueUSD: 42.5, ChainID: 137, ChainName: "Polygon"}}, res.ByChain)
	require.Len(t, res.ByCategory, 2)
	require.Equal(t, "native", res.ByCategory[1].CategoryID)
}

func TestBalances(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/balance/v1.2/1/balances/0xabc", r.URL.Path)
		_, _ = w.Write([]byte(`{"0xdac17f958d2ee523a2206206994597c13d831ec7":"10000000","0xeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeee":"0"}`))
	})

	balances, err := c.Balances(context.Background(), 1, "0xabc")
	require.NoError(t, err)
	require.Equal(t, "10000000", balances["0xdac17f958d2ee523a2206206994597c13d831ec7"])
	require.Len(t, balances, 2)
}

func TestUpstreamFailureKeepsChainContext(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unsupported chain", http.StatusBadRequest)
	})

	_, err := c.CurrentValue(context.Background(), "0xabc", 999)
	require.ErrorContains(t, err, "[Chain 999]")

	var statusErr *upstream.StatusError
	require.True(t, errors.As(err, &statusErr))
	require.Equal(t, Name, statusErr.Upstream)
}

func TestNewClientRequiresKey(t *testing.T) {
	q := queue.New(queue.Options{})
	defer q.Close()

	_, err := NewClient(Options{Fetcher: retry.NewFetcher(retry.Options{}), Queue: q})
	require.ErrorContains(t, err, "ONEINCH_API_KEY")
}
