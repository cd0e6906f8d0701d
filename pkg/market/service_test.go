package market

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"portfolio-gateway/pkg/portfolio"
	"portfolio-gateway/pkg/queue"
	"portfolio-gateway/pkg/retry"
	"portfolio-gateway/pkg/upstream/oneinch"
)

const (
	usdc = "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48"
	usdt = "0xdac17f958d2ee523a2206206994597c13d831ec7"
)

type fakeOneInch struct {
	hits atomic.Int32
	mux  *http.ServeMux
}

func newService(t *testing.T, routes map[string]http.HandlerFunc) (*Service, *fakeOneInch) {
	t.Helper()

	fake := &fakeOneInch{mux: http.NewServeMux()}
	for pattern, h := range routes {
		fake.mux.HandleFunc(pattern, h)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fake.hits.Add(1)
		fake.mux.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)

	q := queue.New(queue.Options{Name: oneinch.Name})
	t.Cleanup(q.Close)

	client, err := oneinch.NewClient(oneinch.Options{
		BaseURL: srv.URL,
		APIKey:  "secret",
		Fetcher: retry.NewFetcher(retry.Options{Client: srv.Client(), MaxRetries: 1, Backoff: time.Millisecond}),
		Queue:   q,
	})
	require.NoError(t, err)

	svc := NewService(Options{Source: client})
	t.Cleanup(svc.Close)
	return svc, fake
}

func TestSwapQuoteFormatsDestinationAmount(t *testing.T) {
	svc, _ := newService(t, map[string]http.HandlerFunc{
		"/swap/v6.1/1/quote": func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, usdc, r.URL.Query().Get("src"))
			_, _ = w.Write([]byte(`{
				"dstToken": {"address": "` + usdt + `", "symbol": "USDT", "name": "Tether USD", "decimals": 6},
				"dstAmount": "2500120000",
				"gas": 150000
			}`))
		},
	})

	q, err := svc.SwapQuote(context.Background(), SwapRequest{
		Src:    "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48",
		Dst:    usdt,
		Amount: "2500000000",
	})
	require.NoError(t, err)
	require.Equal(t, 1, q.ChainID)
	require.Equal(t, usdc, q.Src)
	require.Equal(t, "2500120000", q.DstAmount)
	require.Equal(t, "2.50K", q.DstAmountFormatted)
	require.Equal(t, int64(150000), q.Gas)
}

func TestSwapQuoteRejectsBadInputWithoutCallingUpstream(t *testing.T) {
	svc, fake := newService(t, nil)

	tests := []struct {
		name string
		req  SwapRequest
		want error
	}{
		{"missing amount", SwapRequest{Src: usdc, Dst: usdt}, ErrInvalidParameter},
		{"fractional amount", SwapRequest{Src: usdc, Dst: usdt, Amount: "1.5"}, ErrInvalidParameter},
		{"negative amount", SwapRequest{Src: usdc, Dst: usdt, Amount: "-10"}, ErrInvalidParameter},
		{"bad src", SwapRequest{Src: "0x123", Dst: usdt, Amount: "10"}, portfolio.ErrInvalidAddress},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.SwapQuote(context.Background(), tt.req)
			require.ErrorIs(t, err, tt.want)
		})
	}
	require.Equal(t, int32(0), fake.hits.Load())
}

func TestSwapQuoteRetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	svc, _ := newService(t, map[string]http.HandlerFunc{
		"/swap/v6.1/10/quote": func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) == 1 {
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			_, _ = w.Write([]byte(`{"dstAmount": "1"}`))
		},
	})

	q, err := svc.SwapQuote(context.Background(), SwapRequest{ChainID: 10, Src: usdc, Dst: usdt, Amount: "1"})
	require.NoError(t, err)
	require.Equal(t, "1", q.DstAmount)
	require.Empty(t, q.DstAmountFormatted)
	require.Equal(t, int32(2), calls.Load())
}

func TestCrossChainQuoteConvertsAmounts(t *testing.T) {
	svc, _ := newService(t, map[string]http.HandlerFunc{
		"/fusion-plus/quoter/v1.0/quote/receive": func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			require.Equal(t, "1", q.Get("srcChain"))
			require.Equal(t, "137", q.Get("dstChain"))
			require.Equal(t, usdc, q.Get("srcTokenAddress"))
			require.Equal(t, "0xc2132d05d31c914a87c6611c10748aeb04b58e8f", q.Get("dstTokenAddress"))
			require.Equal(t, "1500000", q.Get("amount"))
			require.Equal(t, strings.ToLower(DefaultBridgeWallet), q.Get("walletAddress"))

			_, _ = w.Write([]byte(`{
				"srcTokenAmount": "1500000",
				"dstTokenAmount": "1497000",
				"volume": {"usd": {"srcToken": "1.50", "dstToken": "1.497"}},
				"priceImpactPercent": 0.2
			}`))
		},
	})

	q, err := svc.CrossChainQuote(context.Background(), BridgeRequest{
		SrcChain: "Ethereum", DstChain: "polygon", SrcToken: "usdc", DstToken: "USDT", Amount: "1.5",
	})
	require.NoError(t, err)
	require.Equal(t, "ethereum", q.SrcChain)
	require.Equal(t, "USDC", q.SrcToken)
	require.Equal(t, "1.500000", q.SrcTokenAmountFormatted)
	require.Equal(t, "1.497000", q.DstTokenAmountFormatted)
	require.Equal(t, "0.998000", q.ExchangeRate)
	require.Equal(t, "0.00", q.EstimatedFeeUSD)
	require.Equal(t, 0.2, q.PriceImpact)
}

func TestCrossChainQuoteRejectsUnsupportedPairs(t *testing.T) {
	svc, fake := newService(t, nil)

	tests := []BridgeRequest{
		{SrcChain: "ethereum", DstChain: "bsc", SrcToken: "USDC", DstToken: "USDC", Amount: "1"},
		{SrcChain: "polygon", DstChain: "base", SrcToken: "ETH", DstToken: "USDC", Amount: "1"},
		{SrcChain: "ethereum", DstChain: "base", SrcToken: "USDC", DstToken: "USDC", Amount: "0"},
		{SrcChain: "ethereum", DstChain: "base", SrcToken: "USDC", DstToken: "USDC"},
	}
	for _, req := range tests {
		_, err := svc.CrossChainQuote(context.Background(), req)
		require.ErrorIs(t, err, ErrInvalidParameter, "%+v", req)
	}
	require.Equal(t, int32(0), fake.hits.Load())
}

func TestTokenDetailsCachedPerChain(t *testing.T) {
	svc, fake := newService(t, map[string]http.HandlerFunc{
		"/token/v1.2/1/custom/" + usdc: func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"symbol": "USDC", "name": "USD Coin", "decimals": 6, "logoURI": "https://tokens.1inch.io/usdc.png"}`))
		},
	})

	d, err := svc.TokenDetails(context.Background(), 0, "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", false)
	require.NoError(t, err)
	require.False(t, d.Fallback)
	require.Equal(t, "USDC", d.Symbol)
	require.Equal(t, 1, d.ChainID)
	require.Equal(t, usdc, d.Address)

	_, err = svc.TokenDetails(context.Background(), 1, usdc, false)
	require.NoError(t, err)
	require.Equal(t, int32(1), fake.hits.Load())

	_, err = svc.TokenDetails(context.Background(), 1, usdc, true)
	require.NoError(t, err)
	require.Equal(t, int32(2), fake.hits.Load())
}

func TestTokenDetailsFallbackOnNotFound(t *testing.T) {
	svc, fake := newService(t, map[string]http.HandlerFunc{
		"/token/v1.2/1/custom/" + usdt: func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "not found", http.StatusNotFound)
		},
	})

	d, err := svc.TokenDetails(context.Background(), 1, usdt, false)
	require.NoError(t, err)
	require.True(t, d.Fallback)
	require.Equal(t, tokenFallbackReason, d.Reason)
	require.Equal(t, "USDT", d.Symbol)
	require.Equal(t, int32(6), d.Decimals)
	require.Equal(t, 0, svc.details.Size())

	_, err = svc.TokenDetails(context.Background(), 1, usdt, false)
	require.NoError(t, err)
	require.Equal(t, int32(2), fake.hits.Load())
}

func TestTokensDedupesLimitsAndCaches(t *testing.T) {
	var (
		mu        sync.Mutex
		requested []string
	)
	svc, fake := newService(t, map[string]http.HandlerFunc{
		"/token/v1.2/137/custom/": func(w http.ResponseWriter, r *http.Request) {
			addr := strings.TrimPrefix(r.URL.Path, "/token/v1.2/137/custom/")
			mu.Lock()
			requested = append(requested, addr)
			mu.Unlock()
			_, _ = w.Write([]byte(`{"symbol": "T", "name": "Token", "decimals": 18}`))
		},
	})

	addrs := []string{
		"0x6666666666666666666666666666666666666666",
		"0x1111111111111111111111111111111111111111",
		"0x1111111111111111111111111111111111111111",
		"0x2222222222222222222222222222222222222222",
		"0x3333333333333333333333333333333333333333",
		"0x4444444444444444444444444444444444444444",
		"0x5555555555555555555555555555555555555555",
	}
	list, err := svc.Tokens(context.Background(), 137, addrs)
	require.NoError(t, err)
	require.Len(t, list, DefaultMaxTokens)
	require.Equal(t, "0x1111111111111111111111111111111111111111", list[0].Address)
	mu.Lock()
	require.NotContains(t, requested, "0x5555555555555555555555555555555555555555")
	mu.Unlock()

	reordered := []string{addrs[5], addrs[4], addrs[3], addrs[1], addrs[0]}
	_, err = svc.Tokens(context.Background(), 137, reordered)
	require.NoError(t, err)
	require.Equal(t, int32(DefaultMaxTokens), fake.hits.Load())

	_, err = svc.Tokens(context.Background(), 137, []string{" ", ""})
	require.ErrorIs(t, err, ErrInvalidParameter)

	_, err = svc.Tokens(context.Background(), 137, []string{"0xnope"})
	require.ErrorIs(t, err, portfolio.ErrInvalidAddress)
}
