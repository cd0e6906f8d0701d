// Package portfolio answers portfolio, balance and price questions for an
// address by fanning out to the upstream clients and caching the merged result.
package portfolio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"portfolio-gateway/pkg/aggregate"
	"portfolio-gateway/pkg/cache"
	"portfolio-gateway/pkg/cachekey"
	"portfolio-gateway/pkg/errs"
	"portfolio-gateway/pkg/logging"
	"portfolio-gateway/pkg/upstream/coingecko"
	"portfolio-gateway/pkg/upstream/oneinch"
)

const fallbackReason = "No tokens found across all chains - showing demo data"

type PortfolioSource interface {
	CurrentValue(ctx context.Context, address string, chainID int) (oneinch.PortfolioResult, error)
}

type BalanceSource interface {
	Balances(ctx context.Context, chainID int, address string) (map[string]string, error)
}

type PriceSource interface {
	TokenPrices(ctx context.Context, addresses []string) (map[string]coingecko.Price, error)
}

type Prices = map[string]coingecko.Price

// ChainTokens summarises what one chain contributed to a balance view.
type ChainTokens struct {
	ChainID    int    `json:"chainId"`
	ChainName  string `json:"chainName"`
	TokenCount int    `json:"tokenCount"`
}

type BalanceView struct {
	Address string        `json:"address"`
	Chains  []ChainTokens `json:"chains"`
	aggregate.TokenSet
	Warnings []string `json:"warnings,omitempty"`
	Fallback bool     `json:"-"`
	Reason   string   `json:"-"`
}

type Options struct {
	Portfolios PortfolioSource
	Balances   BalanceSource
	Prices     PriceSource
	Chains     []Chain // Defaults to DefaultChains
	TokenLimit int     // Defaults to aggregate.DefaultTokenLimit

	// Caches are created with default TTLs when nil.
	SummaryCache *cache.Cache[aggregate.Summary]
	BalanceCache *cache.Cache[BalanceView]
	PriceCache   *cache.Cache[Prices]

	Logger *slog.Logger
}

type Service struct {
	portfolios PortfolioSource
	balances   BalanceSource
	prices     PriceSource
	chains     []Chain
	tokenLimit int

	summaries *cache.Cache[aggregate.Summary]
	views     *cache.Cache[BalanceView]
	quotes    *cache.Cache[Prices]

	logCtx context.Context
}

func NewService(opts Options) *Service {
	if len(opts.Chains) == 0 {
		opts.Chains = DefaultChains
	}
	if opts.TokenLimit <= 0 {
		opts.TokenLimit = aggregate.DefaultTokenLimit
	}
	if opts.SummaryCache == nil {
		opts.SummaryCache = cache.New[aggregate.Summary](cache.Options{Name: "portfolio"})
	}
	if opts.BalanceCache == nil {
		opts.BalanceCache = cache.New[BalanceView](cache.Options{Name: "balance"})
	}
	if opts.PriceCache == nil {
		opts.PriceCache = cache.New[Prices](cache.Options{Name: "prices"})
	}

	logCtx := logging.WithLogger(context.Background(), opts.Logger)
	logCtx = logging.WithAttrs(logCtx, slog.String("component", "portfolio"))

	return &Service{
		portfolios: opts.Portfolios,
		balances:   opts.Balances,
		prices:     opts.Prices,
		chains:     opts.Chains,
		tokenLimit: opts.TokenLimit,
		summaries:  opts.SummaryCache,
		views:      opts.BalanceCache,
		quotes:     opts.PriceCache,
		logCtx:     logCtx,
	}
}

// Caches returns the service's caches for the admin surface.
func (s *Service) Caches() []cache.Inspector {
	return []cache.Inspector{s.summaries, s.views, s.quotes}
}

// Chains returns the chains queried by default.
func (s *Service) Chains() []Chain {
	return append([]Chain(nil), s.chains...)
}

func (s *Service) chainIDs() []int {
	ids := make([]int, len(s.chains))
	for i, c := range s.chains {
		ids[i] = c.ID
	}
	return ids
}

// Summary returns the cross-chain value breakdown of address. Chains that fail
// are reported in the summary's sources and warnings; the summary is cached
// only if at least one chain answered. When none did, the error wraps
// ErrNoData and every chain failure.
func (s *Service) Summary(ctx context.Context, address string, chainIDs []int, refresh bool) (aggregate.Summary, error) {
	addr, err := NormalizeAddress(address)
	if err != nil {
		return aggregate.Summary{}, err
	}
	if s.portfolios == nil {
		return aggregate.Summary{}, errors.New("portfolio source not configured")
	}
	if len(chainIDs) == 0 {
		chainIDs = s.chainIDs()
	}

	key := cachekey.Build("portfolio", map[string]any{
		"address":  addr,
		"chainIds": chainIDs,
	})

	load := func(ctx context.Context) (aggregate.Summary, error) {
		return s.loadSummary(ctx, addr, dedupe(chainIDs))
	}

	if refresh {
		return s.summaries.Refresh(ctx, key, load)
	}
	return s.summaries.GetOrLoad(ctx, key, load)
}

func (s *Service) loadSummary(ctx context.Context, address string, chainIDs []int) (aggregate.Summary, error) {
	partials := make([]aggregate.Partial, len(chainIDs))

	var g errgroup.Group
	for i, chainID := range chainIDs {
		g.Go(func() error {
			res, err := s.portfolios.CurrentValue(ctx, address, chainID)
			if err != nil {
				name := chainName(s.chains, chainID)
				logging.Warn(logging.ForChain(s.logCtx, chainID, name), logging.ChainPrefix(chainID, name)+" portfolio fetch failed",
					slog.Any("err", errs.Loggable(err)),
				)
				partials[i] = aggregate.Partial{SourceID: strconv.Itoa(chainID), Err: err}
				return nil
			}
			partials[i] = toPartial(chainID, res)
			return nil
		})
	}
	_ = g.Wait()

	summary := aggregate.MergePortfolio(partials)
	if summary.Succeeded() == 0 {
		failures := make([]error, 0, len(partials))
		for _, p := range partials {
			failures = append(failures, fmt.Errorf("chain %s: %w", p.SourceID, p.Err))
		}
		return aggregate.Summary{}, fmt.Errorf("%w: %w", ErrNoData, errors.Join(failures...))
	}

	logging.Info(s.logCtx, "portfolio summary built",
		slog.String("address", address),
		slog.Int("chains", len(chainIDs)),
		slog.Int("succeeded", summary.Succeeded()),
		slog.String("total", summary.TotalValueFormatted),
	)
	return summary, nil
}

func toPartial(chainID int, res oneinch.PortfolioResult) aggregate.Partial {
	p := aggregate.Partial{
		SourceID:   strconv.Itoa(chainID),
		Total:      res.Total,
		Chains:     make([]aggregate.Contribution, 0, len(res.ByChain)),
		Categories: make([]aggregate.Contribution, 0, len(res.ByCategory)),
	}
	for _, c := range res.ByChain {
		p.Chains = append(p.Chains, aggregate.Contribution{
			ID:    strconv.Itoa(c.ChainID),
			Name:  c.ChainName,
			Value: c.ValueUSD,
		})
	}
	for _, c := range res.ByCategory {
		p.Categories = append(p.Categories, aggregate.Contribution{
			ID:    c.CategoryID,
			Name:  c.CategoryName,
			Value: c.ValueUSD,
		})
	}
	return p
}

// Balances returns the top tokens of address across the configured chains,
// priced through the price source. If no chain holds any token the demo view
// is returned with Fallback set; it is never cached.
func (s *Service) Balances(ctx context.Context, address string, refresh bool) (BalanceView, error) {
	addr, err := NormalizeAddress(address)
	if err != nil {
		return BalanceView{}, err
	}
	if s.balances == nil {
		return BalanceView{}, errors.New("balance source not configured")
	}

	key := cachekey.Build("balance", map[string]any{
		"address":  addr,
		"chainIds": s.chainIDs(),
	})

	return s.views.GetOrLoadWith(ctx, key, cache.LoadOptions{Refresh: refresh},
		func(ctx context.Context) (BalanceView, bool, error) {
			view := s.loadBalances(ctx, addr)
			return view, !view.Fallback, nil
		})
}

func (s *Service) loadBalances(ctx context.Context, address string) BalanceView {
	perChain := make([][]aggregate.Token, len(s.chains))
	failures := make([]string, len(s.chains))

	var g errgroup.Group
	for i, chain := range s.chains {
		g.Go(func() error {
			raw, err := s.balances.Balances(ctx, chain.ID, address)
			if err != nil {
				logging.Warn(logging.ForChain(s.logCtx, chain.ID, chain.Name), logging.ChainPrefix(chain.ID, chain.Name)+" balance fetch failed",
					slog.Any("err", errs.Loggable(err)),
				)
				failures[i] = fmt.Sprintf("balances for %s unavailable: %v", chain.Name, err)
				return nil
			}
			perChain[i] = tokensFor(chain, raw)
			return nil
		})
	}
	_ = g.Wait()

	view := BalanceView{Address: address, Chains: []ChainTokens{}}
	for _, f := range failures {
		if f != "" {
			view.Warnings = append(view.Warnings, f)
		}
	}

	var addresses []string
	for i, tokens := range perChain {
		if len(tokens) == 0 {
			continue
		}
		view.Chains = append(view.Chains, ChainTokens{
			ChainID:    s.chains[i].ID,
			ChainName:  s.chains[i].Name,
			TokenCount: len(tokens),
		})
		for _, t := range tokens {
			addresses = append(addresses, t.Address)
		}
	}

	if len(addresses) == 0 {
		logging.Info(s.logCtx, "no tokens found across chains, serving demo data", slog.String("address", address))
		demo := demoView(address)
		demo.Warnings = view.Warnings
		return demo
	}

	quotes, err := s.Prices(ctx, addresses)
	if err != nil {
		logging.Warn(s.logCtx, "price lookup failed, continuing without prices", slog.Any("err", errs.Loggable(err)))
		view.Warnings = append(view.Warnings, fmt.Sprintf("prices unavailable: %v", err))
		quotes = Prices{}
	}

	for _, tokens := range perChain {
		for j, t := range tokens {
			q := quotes[strings.ToLower(t.Address)]
			tokens[j] = t.Quote(q.USD, q.Change24h, q.Volume24h, q.MarketCapUSD)
		}
	}

	view.TokenSet = aggregate.MergeTokens(s.tokenLimit, perChain...)
	logging.Info(s.logCtx, "balances built",
		slog.String("address", address),
		slog.Int("tokens", len(view.Tokens)),
		slog.String("total", view.TotalValueFormatted),
	)
	return view
}

func tokensFor(chain Chain, raw map[string]string) []aggregate.Token {
	tokens := make([]aggregate.Token, 0, len(raw))
	for addr, balance := range raw {
		meta := lookupToken(addr)
		t := aggregate.Token{
			Address:   strings.ToLower(addr),
			Symbol:    meta.Symbol,
			Name:      meta.Name,
			Decimals:  meta.Decimals,
			Balance:   balance,
			ChainID:   chain.ID,
			ChainName: chain.Name,
		}
		if !t.Amount().IsPositive() {
			continue
		}
		tokens = append(tokens, t)
	}
	sort.Slice(tokens, func(i, j int) bool { return tokens[i].Address < tokens[j].Address })
	return tokens
}

// Prices returns quotes keyed by lowercased token address. Lookups for the
// same address set share one cache entry.
func (s *Service) Prices(ctx context.Context, addresses []string) (Prices, error) {
	if s.prices == nil {
		return nil, errors.New("price source not configured")
	}

	normalized := make([]string, 0, len(addresses))
	for _, a := range addresses {
		a = strings.ToLower(strings.TrimSpace(a))
		if a != "" {
			normalized = append(normalized, a)
		}
	}
	if len(normalized) == 0 {
		return Prices{}, nil
	}

	key := cachekey.Build("prices", map[string]any{"addresses": normalized})
	return s.quotes.GetOrLoad(ctx, key, func(ctx context.Context) (Prices, error) {
		return s.prices.TokenPrices(ctx, normalized)
	})
}

// Close stops the background sweepers of the service's caches.
func (s *Service) Close() {
	_ = s.summaries.Close()
	_ = s.views.Close()
	_ = s.quotes.Close()
}

func dedupe(ids []int) []int {
	seen := make(map[int]struct{}, len(ids))
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Ints(out)
	return out
}
