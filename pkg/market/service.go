// Package market serves swap quotes, cross-chain bridge quotes and token
// metadata from 1inch. Token metadata is cached; quotes are always fetched.
package market

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"portfolio-gateway/pkg/aggregate"
	"portfolio-gateway/pkg/cache"
	"portfolio-gateway/pkg/cachekey"
	"portfolio-gateway/pkg/errs"
	"portfolio-gateway/pkg/logging"
	"portfolio-gateway/pkg/portfolio"
	"portfolio-gateway/pkg/upstream"
	"portfolio-gateway/pkg/upstream/oneinch"
)

// DefaultMaxTokens bounds one token list lookup; every token costs a
// dispatch slot on the 1inch queue.
const DefaultMaxTokens = 5

const (
	bridgeFeeRate       = "0.003"
	tokenFallbackReason = "Token API unavailable - showing bundled token data"
)

// ErrInvalidParameter marks requests rejected before any upstream call.
var ErrInvalidParameter = errors.New("invalid parameter")

type Source interface {
	SwapQuote(ctx context.Context, chainID int, src, dst, amount string) (oneinch.SwapQuote, error)
	CrossChainQuote(ctx context.Context, q oneinch.CrossChainQuoteRequest) (oneinch.CrossChainQuote, error)
	TokenDetails(ctx context.Context, chainID int, address string) (oneinch.TokenInfo, error)
	TokenList(ctx context.Context, chainID int, addresses []string) ([]oneinch.TokenInfo, error)
}

type SwapRequest struct {
	ChainID int
	Src     string
	Dst     string
	Amount  string // Raw integer amount of Src
}

type SwapQuote struct {
	ChainID            int                `json:"chainId"`
	Src                string             `json:"src"`
	Dst                string             `json:"dst"`
	Amount             string             `json:"amount"`
	DstAmount          string             `json:"dstAmount"`
	DstAmountFormatted string             `json:"dstAmountFormatted,omitempty"`
	SrcToken           *oneinch.TokenInfo `json:"srcToken,omitempty"`
	DstToken           *oneinch.TokenInfo `json:"dstToken,omitempty"`
	Gas                int64              `json:"gas,omitempty"`
}

// BridgeRequest names chains by slug (ethereum, polygon, ...) and tokens by
// symbol. Amount is in whole tokens, e.g. "1.5".
type BridgeRequest struct {
	SrcChain      string
	DstChain      string
	SrcToken      string
	DstToken      string
	Amount        string
	WalletAddress string
}

type BridgeQuote struct {
	Quote                   oneinch.CrossChainQuote `json:"quote"`
	SrcChain                string                  `json:"srcChain"`
	DstChain                string                  `json:"dstChain"`
	SrcToken                string                  `json:"srcToken"`
	DstToken                string                  `json:"dstToken"`
	SrcTokenAmountFormatted string                  `json:"srcTokenAmountFormatted"`
	DstTokenAmountFormatted string                  `json:"dstTokenAmountFormatted"`
	EstimatedFeeUSD         string                  `json:"estimatedFeeUsd"`
	PriceImpact             float64                 `json:"priceImpact"`
	ExchangeRate            string                  `json:"exchangeRate"`
}

type TokenDetails struct {
	oneinch.TokenInfo
	Fallback bool   `json:"-"`
	Reason   string `json:"-"`
}

type Options struct {
	Source    Source
	MaxTokens int // Defaults to DefaultMaxTokens

	// Caches are created with default TTLs when nil.
	TokenListCache *cache.Cache[[]oneinch.TokenInfo]
	TokenCache     *cache.Cache[TokenDetails]

	Logger *slog.Logger
}

type Service struct {
	source    Source
	maxTokens int

	lists   *cache.Cache[[]oneinch.TokenInfo]
	details *cache.Cache[TokenDetails]

	logCtx context.Context
}

func NewService(opts Options) *Service {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = DefaultMaxTokens
	}
	if opts.TokenListCache == nil {
		opts.TokenListCache = cache.New[[]oneinch.TokenInfo](cache.Options{Name: "tokens"})
	}
	if opts.TokenCache == nil {
		opts.TokenCache = cache.New[TokenDetails](cache.Options{Name: "token-details"})
	}

	logCtx := logging.WithLogger(context.Background(), opts.Logger)
	logCtx = logging.WithAttrs(logCtx, slog.String("component", "market"))

	return &Service{
		source:    opts.Source,
		maxTokens: opts.MaxTokens,
		lists:     opts.TokenListCache,
		details:   opts.TokenCache,
		logCtx:    logCtx,
	}
}

// Caches returns the service's caches for the admin surface.
func (s *Service) Caches() []cache.Inspector {
	return []cache.Inspector{s.lists, s.details}
}

// Close stops the background sweepers of the service's caches.
func (s *Service) Close() {
	_ = s.lists.Close()
	_ = s.details.Close()
}

// SwapQuote prices selling Amount of Src for Dst on one chain.
func (s *Service) SwapQuote(ctx context.Context, r SwapRequest) (SwapQuote, error) {
	if r.ChainID <= 0 {
		r.ChainID = 1
	}
	if r.Src == "" || r.Dst == "" || r.Amount == "" {
		return SwapQuote{}, fmt.Errorf("%w: missing required parameters: src, dst, amount", ErrInvalidParameter)
	}
	src, err := portfolio.NormalizeAddress(r.Src)
	if err != nil {
		return SwapQuote{}, errs.Wrap(err, "src")
	}
	dst, err := portfolio.NormalizeAddress(r.Dst)
	if err != nil {
		return SwapQuote{}, errs.Wrap(err, "dst")
	}
	amount, err := rawAmount(r.Amount)
	if err != nil {
		return SwapQuote{}, err
	}

	q, err := s.source.SwapQuote(ctx, r.ChainID, src, dst, amount)
	if err != nil {
		return SwapQuote{}, err
	}

	out := SwapQuote{
		ChainID:   r.ChainID,
		Src:       src,
		Dst:       dst,
		Amount:    amount,
		DstAmount: q.DstAmount,
		SrcToken:  q.SrcToken,
		DstToken:  q.DstToken,
		Gas:       q.Gas,
	}
	if q.DstToken != nil {
		out.DstAmountFormatted = aggregate.FormatTokenBalance(q.DstAmount, q.DstToken.Decimals)
	}
	return out, nil
}

// CrossChainQuote resolves slugs and symbols to chain ids and token addresses
// and asks for a bridge quote.
func (s *Service) CrossChainQuote(ctx context.Context, r BridgeRequest) (BridgeQuote, error) {
	if r.SrcChain == "" || r.DstChain == "" || r.SrcToken == "" || r.DstToken == "" || r.Amount == "" {
		return BridgeQuote{}, fmt.Errorf("%w: missing required parameters", ErrInvalidParameter)
	}

	srcChain, ok := bridgeChains[strings.ToLower(r.SrcChain)]
	if !ok {
		return BridgeQuote{}, fmt.Errorf("%w: unsupported chain %q", ErrInvalidParameter, r.SrcChain)
	}
	dstChain, ok := bridgeChains[strings.ToLower(r.DstChain)]
	if !ok {
		return BridgeQuote{}, fmt.Errorf("%w: unsupported chain %q", ErrInvalidParameter, r.DstChain)
	}

	srcAddr, srcDecimals, ok := bridgeToken(r.SrcChain, r.SrcToken)
	if !ok {
		return BridgeQuote{}, fmt.Errorf("%w: %s on %s not supported", ErrInvalidParameter, r.SrcToken, r.SrcChain)
	}
	dstAddr, dstDecimals, ok := bridgeToken(r.DstChain, r.DstToken)
	if !ok {
		return BridgeQuote{}, fmt.Errorf("%w: %s on %s not supported", ErrInvalidParameter, r.DstToken, r.DstChain)
	}

	amount, err := decimal.NewFromString(strings.TrimSpace(r.Amount))
	if err != nil || !amount.IsPositive() {
		return BridgeQuote{}, fmt.Errorf("%w: amount must be a positive number, got %q", ErrInvalidParameter, r.Amount)
	}

	wallet := r.WalletAddress
	if wallet == "" {
		wallet = DefaultBridgeWallet
	}
	if wallet, err = portfolio.NormalizeAddress(wallet); err != nil {
		return BridgeQuote{}, errs.Wrap(err, "walletAddress")
	}

	q, err := s.source.CrossChainQuote(ctx, oneinch.CrossChainQuoteRequest{
		SrcChain:      srcChain,
		DstChain:      dstChain,
		SrcToken:      srcAddr,
		DstToken:      dstAddr,
		Amount:        amount.Shift(srcDecimals).Truncate(0).String(),
		WalletAddress: wallet,
	})
	if err != nil {
		return BridgeQuote{}, err
	}

	srcAmount := q.SrcTokenAmount.Shift(-srcDecimals)
	dstAmount := q.DstTokenAmount.Shift(-dstDecimals)

	rate := "0"
	if !srcAmount.IsZero() {
		rate = dstAmount.Div(srcAmount).StringFixed(6)
	}

	return BridgeQuote{
		Quote:                   q,
		SrcChain:                strings.ToLower(r.SrcChain),
		DstChain:                strings.ToLower(r.DstChain),
		SrcToken:                strings.ToUpper(r.SrcToken),
		DstToken:                strings.ToUpper(r.DstToken),
		SrcTokenAmountFormatted: srcAmount.StringFixed(6),
		DstTokenAmountFormatted: dstAmount.StringFixed(6),
		EstimatedFeeUSD:         q.Volume.USD.SrcToken.Mul(decimal.RequireFromString(bridgeFeeRate)).StringFixed(2),
		PriceImpact:             q.PriceImpactPercent,
		ExchangeRate:            rate,
	}, nil
}

// TokenDetails returns cached metadata for one token. When the token API
// answers 401 or 404 bundled metadata is returned with Fallback set; it is
// never cached.
func (s *Service) TokenDetails(ctx context.Context, chainID int, address string, refresh bool) (TokenDetails, error) {
	if chainID <= 0 {
		chainID = 1
	}
	addr, err := portfolio.NormalizeAddress(address)
	if err != nil {
		return TokenDetails{}, err
	}

	key := cachekey.Build("token-details", map[string]any{
		"address": addr,
		"chainId": chainID,
	})

	return s.details.GetOrLoadWith(ctx, key, cache.LoadOptions{Refresh: refresh},
		func(ctx context.Context) (TokenDetails, bool, error) {
			info, err := s.source.TokenDetails(ctx, chainID, addr)
			if err == nil {
				return TokenDetails{TokenInfo: info}, true, nil
			}

			var statusErr *upstream.StatusError
			if errors.As(err, &statusErr) &&
				(statusErr.StatusCode == http.StatusNotFound || statusErr.StatusCode == http.StatusUnauthorized) {
				logging.Warn(logging.ForChain(s.logCtx, chainID, ""), "token details unavailable, serving bundled data",
					slog.String("token", addr),
					slog.Int("status", statusErr.StatusCode),
				)
				return fallbackToken(chainID, addr), false, nil
			}
			return TokenDetails{}, false, err
		})
}

func fallbackToken(chainID int, address string) TokenDetails {
	info := oneinch.TokenInfo{
		ChainID:  chainID,
		Address:  address,
		Symbol:   "UNKNOWN",
		Name:     "Unknown Token",
		Decimals: 18,
	}
	if meta, ok := portfolio.KnownToken(address); ok && chainID == 1 {
		info.Symbol = meta.Symbol
		info.Name = meta.Name
		info.Decimals = meta.Decimals
	}
	return TokenDetails{TokenInfo: info, Fallback: true, Reason: tokenFallbackReason}
}

// Tokens returns metadata for up to MaxTokens addresses on one chain. Tokens
// the API does not know are left out. Lookups for the same address set share
// one cache entry regardless of order.
func (s *Service) Tokens(ctx context.Context, chainID int, addresses []string) ([]oneinch.TokenInfo, error) {
	if chainID <= 0 {
		chainID = 1
	}

	seen := make(map[string]struct{}, len(addresses))
	normalized := make([]string, 0, len(addresses))
	for _, a := range addresses {
		if strings.TrimSpace(a) == "" {
			continue
		}
		addr, err := portfolio.NormalizeAddress(a)
		if err != nil {
			return nil, errs.Wrapf(err, "token %q", strings.TrimSpace(a))
		}
		if _, ok := seen[addr]; ok {
			continue
		}
		seen[addr] = struct{}{}
		normalized = append(normalized, addr)
	}
	if len(normalized) == 0 {
		return nil, fmt.Errorf("%w: token addresses parameter is required", ErrInvalidParameter)
	}
	if len(normalized) > s.maxTokens {
		logging.Info(s.logCtx, "token list truncated",
			slog.Int("requested", len(normalized)),
			slog.Int("limit", s.maxTokens),
		)
		normalized = normalized[:s.maxTokens]
	}
	sort.Strings(normalized)

	key := cachekey.Build("tokens", map[string]any{
		"addresses": normalized,
		"chainId":   chainID,
	})
	return s.lists.GetOrLoad(ctx, key, func(ctx context.Context) ([]oneinch.TokenInfo, error) {
		return s.source.TokenList(ctx, chainID, normalized)
	})
}

// rawAmount accepts a positive integer amount in the token's smallest unit.
func rawAmount(raw string) (string, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil || !d.IsPositive() || !d.Equal(d.Truncate(0)) {
		return "", fmt.Errorf("%w: amount must be a positive integer in the token's smallest unit, got %q", ErrInvalidParameter, raw)
	}
	return d.String(), nil
}
