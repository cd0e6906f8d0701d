package oneinch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"

	"github.com/shopspring/decimal"

	"portfolio-gateway/pkg/errs"
	"portfolio-gateway/pkg/logging"
	"portfolio-gateway/pkg/upstream"
)

const (
	swapQuotePath   = "/swap/v6.1/%d/quote"
	tokenCustomPath = "/token/v1.2/%d/custom/%s"
	fusionQuotePath = "/fusion-plus/quoter/v1.0/quote/receive"
)

// TokenInfo is the token metadata returned by the token and swap APIs.
type TokenInfo struct {
	ChainID  int    `json:"chainId,omitempty"`
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Decimals int32  `json:"decimals"`
	LogoURI  string `json:"logoURI,omitempty"`
}

// SwapQuote is the swap v6.1 quote for selling an exact src amount.
type SwapQuote struct {
	SrcToken  *TokenInfo `json:"srcToken,omitempty"`
	DstToken  *TokenInfo `json:"dstToken,omitempty"`
	DstAmount string     `json:"dstAmount"`
	Gas       int64      `json:"gas,omitempty"`
}

// CrossChainQuoteRequest names token addresses and a raw amount in the
// source token's smallest unit.
type CrossChainQuoteRequest struct {
	SrcChain      int
	DstChain      int
	SrcToken      string
	DstToken      string
	Amount        string
	WalletAddress string
}

type VolumeUSD struct {
	SrcToken decimal.Decimal `json:"srcToken"`
	DstToken decimal.Decimal `json:"dstToken"`
}

type Volume struct {
	USD VolumeUSD `json:"usd"`
}

// CrossChainQuote is the Fusion+ quoter answer. Amounts are raw integers.
type CrossChainQuote struct {
	SrcTokenAmount     decimal.Decimal `json:"srcTokenAmount"`
	DstTokenAmount     decimal.Decimal `json:"dstTokenAmount"`
	Volume             Volume          `json:"volume"`
	PriceImpactPercent float64         `json:"priceImpactPercent"`
	RecommendedPreset  string          `json:"recommendedPreset,omitempty"`
}

// SwapQuote asks how much dst an exact amount of src buys on chainID.
func (c *Client) SwapQuote(ctx context.Context, chainID int, src, dst, amount string) (SwapQuote, error) {
	params := url.Values{}
	params.Set("src", src)
	params.Set("dst", dst)
	params.Set("amount", amount)
	params.Set("includeTokensInfo", "true")
	params.Set("includeGas", "true")

	req, err := c.newRequest(ctx, c.baseURL+fmt.Sprintf(swapQuotePath, chainID)+"?"+params.Encode())
	if err != nil {
		return SwapQuote{}, err
	}

	logging.Debug(logging.ForChain(logging.ForUpstream(ctx, Name), chainID, ""), "fetching swap quote",
		slog.String("src", src),
		slog.String("dst", dst),
	)

	var out SwapQuote
	if err := upstream.Get(ctx, c.queue, c.fetcher, req, &out); err != nil {
		return SwapQuote{}, errs.ForChain(chainID, "swap quote", err)
	}
	return out, nil
}

// CrossChainQuote asks the Fusion+ quoter for a bridge quote.
func (c *Client) CrossChainQuote(ctx context.Context, q CrossChainQuoteRequest) (CrossChainQuote, error) {
	params := url.Values{}
	params.Set("srcChain", strconv.Itoa(q.SrcChain))
	params.Set("dstChain", strconv.Itoa(q.DstChain))
	params.Set("srcTokenAddress", q.SrcToken)
	params.Set("dstTokenAddress", q.DstToken)
	params.Set("amount", q.Amount)
	params.Set("walletAddress", q.WalletAddress)
	params.Set("enableEstimate", "false")
	params.Set("fee", "0")

	req, err := c.newRequest(ctx, c.baseURL+fusionQuotePath+"?"+params.Encode())
	if err != nil {
		return CrossChainQuote{}, err
	}

	logging.Debug(logging.ForUpstream(ctx, Name), "fetching cross-chain quote",
		slog.Int("src_chain", q.SrcChain),
		slog.Int("dst_chain", q.DstChain),
	)

	var out CrossChainQuote
	if err := upstream.Get(ctx, c.queue, c.fetcher, req, &out); err != nil {
		return CrossChainQuote{}, errs.Wrapf(err, "cross-chain quote %d -> %d", q.SrcChain, q.DstChain)
	}
	return out, nil
}

// TokenDetails returns the metadata of one token contract on chainID.
func (c *Client) TokenDetails(ctx context.Context, chainID int, address string) (TokenInfo, error) {
	req, err := c.newRequest(ctx, c.baseURL+fmt.Sprintf(tokenCustomPath, chainID, url.PathEscape(address)))
	if err != nil {
		return TokenInfo{}, err
	}

	logging.Debug(logging.ForChain(logging.ForUpstream(ctx, Name), chainID, ""), "fetching token details",
		slog.String("token", address),
	)

	var out TokenInfo
	if err := upstream.Get(ctx, c.queue, c.fetcher, req, &out); err != nil {
		return TokenInfo{}, errs.ForChain(chainID, "token details", err)
	}
	if out.Address == "" {
		out.Address = address
	}
	if out.ChainID == 0 {
		out.ChainID = chainID
	}
	return out, nil
}

// TokenList looks up each address in turn. Tokens the API rejects with a
// non-2xx status are skipped; rate limiting and transport failures abort.
func (c *Client) TokenList(ctx context.Context, chainID int, addresses []string) ([]TokenInfo, error) {
	out := make([]TokenInfo, 0, len(addresses))
	for _, addr := range addresses {
		info, err := c.TokenDetails(ctx, chainID, addr)
		if err != nil {
			var statusErr *upstream.StatusError
			if errors.As(err, &statusErr) {
				logging.Warn(logging.ForChain(logging.ForUpstream(ctx, Name), chainID, ""), "token lookup rejected, skipping",
					slog.String("token", addr),
					slog.Int("status", statusErr.StatusCode),
				)
				continue
			}
			return nil, err
		}
		out = append(out, info)
	}
	return out, nil
}
