package server

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"portfolio-gateway/pkg/market"
	"portfolio-gateway/pkg/retry"
	"portfolio-gateway/pkg/upstream/oneinch"
)

type fakeMarket struct {
	gotSwap     market.SwapRequest
	gotBridge   market.BridgeRequest
	gotChainID  int
	gotAddrs    []string
	gotRefresh  bool
	swapErr     error
	details     market.TokenDetails
	tokens      []oneinch.TokenInfo
	bridgeQuote market.BridgeQuote
}

func (f *fakeMarket) SwapQuote(_ context.Context, r market.SwapRequest) (market.SwapQuote, error) {
	f.gotSwap = r
	if f.swapErr != nil {
		return market.SwapQuote{}, f.swapErr
	}
	return market.SwapQuote{ChainID: r.ChainID, Src: r.Src, Dst: r.Dst, Amount: r.Amount, DstAmount: "42"}, nil
}

func (f *fakeMarket) CrossChainQuote(_ context.Context, r market.BridgeRequest) (market.BridgeQuote, error) {
	f.gotBridge = r
	return f.bridgeQuote, nil
}

func (f *fakeMarket) Tokens(_ context.Context, chainID int, addresses []string) ([]oneinch.TokenInfo, error) {
	f.gotChainID, f.gotAddrs = chainID, addresses
	return f.tokens, nil
}

func (f *fakeMarket) TokenDetails(_ context.Context, chainID int, _ string, refresh bool) (market.TokenDetails, error) {
	f.gotChainID, f.gotRefresh = chainID, refresh
	return f.details, nil
}

func newMarketServer(m *fakeMarket) *Server {
	return New(Options{
		Service: &fakeService{},
		Market:  m,
		Caches:  &fakeCaches{},
		Now:     func() time.Time { return fixedNow },
	})
}

func TestSwapQuoteRoute(t *testing.T) {
	m := &fakeMarket{}
	s := newMarketServer(m)

	rec, body := do(t, s, http.MethodGet, "/api/swap-quote?src="+addr+"&dst=0x2222222222222222222222222222222222222222&amount=1000&chainId=137")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, true, body["success"])
	require.Equal(t, "42", body["data"].(map[string]any)["dstAmount"])
	require.Equal(t, market.SwapRequest{
		ChainID: 137,
		Src:     addr,
		Dst:     "0x2222222222222222222222222222222222222222",
		Amount:  "1000",
	}, m.gotSwap)

	rec, _ = do(t, s, http.MethodGet, "/api/swap-quote?src="+addr+"&chainId=abc")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSwapQuoteErrorStatuses(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: missing required parameters: src, dst, amount", market.ErrInvalidParameter), http.StatusBadRequest},
		{fmt.Errorf("[Chain 1] swap quote: %w", retry.ErrRateLimitExceeded), http.StatusTooManyRequests},
	}
	for _, tt := range tests {
		s := newMarketServer(&fakeMarket{swapErr: tt.err})
		rec, body := do(t, s, http.MethodGet, "/api/swap-quote")
		require.Equal(t, tt.want, rec.Code, tt.err.Error())
		require.Equal(t, tt.err.Error(), body["message"])
	}
}

func TestCrossChainQuoteRoute(t *testing.T) {
	m := &fakeMarket{bridgeQuote: market.BridgeQuote{SrcChain: "ethereum", ExchangeRate: "0.998000"}}
	s := newMarketServer(m)

	rec, body := do(t, s, http.MethodGet, "/api/cross-chain-swap-quote?srcChain=ethereum&dstChain=base&srcToken=USDC&dstToken=USDC&amount=1.5")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "0.998000", body["data"].(map[string]any)["exchangeRate"])
	require.Equal(t, "base", m.gotBridge.DstChain)
	require.Equal(t, "1.5", m.gotBridge.Amount)
	require.Empty(t, m.gotBridge.WalletAddress)
}

func TestTokensRoute(t *testing.T) {
	m := &fakeMarket{tokens: []oneinch.TokenInfo{{Address: addr, Symbol: "T", Decimals: 18}}}
	s := newMarketServer(m)

	rec, body := do(t, s, http.MethodGet, "/api/tokens?addresses="+addr+",0x2222222222222222222222222222222222222222")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, body["data"], 1)
	require.Equal(t, 1, m.gotChainID)
	require.Len(t, m.gotAddrs, 2)

	rec, body = do(t, s, http.MethodGet, "/api/tokens?chainId=10")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "Token addresses parameter is required", body["error"])
}

func TestTokenDetailsRouteMarksFallback(t *testing.T) {
	m := &fakeMarket{details: market.TokenDetails{
		TokenInfo: oneinch.TokenInfo{ChainID: 1, Address: addr, Symbol: "UNKNOWN", Decimals: 18},
		Fallback:  true,
		Reason:    "bundled",
	}}
	s := newMarketServer(m)

	rec, body := do(t, s, http.MethodGet, "/api/token-details?tokenAddress="+addr+"&refresh=true")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, true, body["fallback"])
	require.Equal(t, "bundled", body["reason"])
	data := body["data"].(map[string]any)
	require.Equal(t, "UNKNOWN", data["symbol"])
	require.NotContains(t, data, "Fallback")
	require.True(t, m.gotRefresh)

	rec, _ = do(t, s, http.MethodGet, "/api/token-details")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMarketRoutesNeedMarketService(t *testing.T) {
	s := newTestServer(&fakeService{}, &fakeCaches{}, nil)

	rec, _ := do(t, s, http.MethodGet, "/api/swap-quote?src="+addr)
	require.Equal(t, http.StatusNotFound, rec.Code)
}
