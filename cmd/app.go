package cmd

import (
	"context"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"portfolio-gateway/pkg/aggregate"
	"portfolio-gateway/pkg/cache"
	"portfolio-gateway/pkg/errs"
	"portfolio-gateway/pkg/logging"
	"portfolio-gateway/pkg/market"
	"portfolio-gateway/pkg/metrics"
	"portfolio-gateway/pkg/portfolio"
	"portfolio-gateway/pkg/queue"
	"portfolio-gateway/pkg/retry"
	"portfolio-gateway/pkg/upstream/coingecko"
	"portfolio-gateway/pkg/upstream/oneinch"
)

// App is the assembled process: one queue and fetcher per upstream, the
// caches, the portfolio and market services and the metrics registry.
type App struct {
	Config   Config
	Logger   *slog.Logger
	Registry *prometheus.Registry
	Metrics  *metrics.Collectors
	Caches   *cache.Registry
	Service  *portfolio.Service
	Market   *market.Service

	queues []*queue.Queue
}

func NewApp(cfg Config) (*App, error) {
	logger := logging.New(os.Stderr, cfg.LogLevel)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m, err := metrics.New(reg)
	if err != nil {
		return nil, errs.Wrap(err, "register metrics")
	}

	httpClient := retry.NewHTTPClient(cfg.Retry.RequestTimeout)
	maxRetries := cfg.Retry.MaxRetries
	if maxRetries == 0 {
		maxRetries = -1
	}

	oneInchQueue := queue.New(queue.Options{
		Name:       oneinch.Name,
		MinSpacing: cfg.OneInch.MinSpacing,
		Observer:   m,
		Logger:     logger,
	})
	geckoQueue := queue.New(queue.Options{
		Name:       coingecko.Name,
		MinSpacing: cfg.CoinGecko.MinSpacing,
		Observer:   m,
		Logger:     logger,
	})
	app := &App{
		Config:   cfg,
		Logger:   logger,
		Registry: reg,
		Metrics:  m,
		queues:   []*queue.Queue{oneInchQueue, geckoQueue},
	}

	oneInch, err := oneinch.NewClient(oneinch.Options{
		BaseURL: cfg.OneInch.BaseURL,
		APIKey:  cfg.OneInch.APIKey,
		Fetcher: retry.NewFetcher(retry.Options{
			Client:     httpClient,
			MaxRetries: maxRetries,
			Backoff:    cfg.Retry.Backoff,
			Notify:     m.RetryNotifier(oneinch.Name),
		}),
		Queue: oneInchQueue,
	})
	if err != nil {
		app.closeQueues()
		return nil, err
	}

	gecko, err := coingecko.NewClient(coingecko.Options{
		BaseURL: cfg.CoinGecko.BaseURL,
		APIKey:  cfg.CoinGecko.APIKey,
		Fetcher: retry.NewFetcher(retry.Options{
			Client:     httpClient,
			MaxRetries: maxRetries,
			Backoff:    cfg.Retry.Backoff,
			Notify:     m.RetryNotifier(coingecko.Name),
		}),
		Queue: geckoQueue,
	})
	if err != nil {
		app.closeQueues()
		return nil, err
	}

	cacheOpts := func(name string) cache.Options {
		return cache.Options{
			Name:            name,
			DefaultTTL:      cfg.Cache.TTL,
			CleanupInterval: cfg.Cache.CleanupInterval,
			Metrics:         m,
		}
	}

	app.Service = portfolio.NewService(portfolio.Options{
		Portfolios:   oneInch,
		Balances:     oneInch,
		Prices:       gecko,
		Chains:       cfg.Chains,
		SummaryCache: cache.New[aggregate.Summary](cacheOpts("portfolio")),
		BalanceCache: cache.New[portfolio.BalanceView](cacheOpts("balance")),
		PriceCache:   cache.New[portfolio.Prices](cacheOpts("prices")),
		Logger:       logger,
	})
	app.Market = market.NewService(market.Options{
		Source:         oneInch,
		TokenListCache: cache.New[[]oneinch.TokenInfo](cacheOpts("tokens")),
		TokenCache:     cache.New[market.TokenDetails](cacheOpts("token-details")),
		Logger:         logger,
	})
	app.Caches = cache.NewRegistry(append(app.Service.Caches(), app.Market.Caches()...)...)

	logging.Info(logging.WithLogger(context.Background(), logger), "app assembled",
		slog.Int("chains", len(cfg.Chains)),
		slog.Duration("cache_ttl", cfg.Cache.TTL),
		slog.Duration("oneinch_spacing", cfg.OneInch.MinSpacing),
		slog.Duration("coingecko_spacing", cfg.CoinGecko.MinSpacing),
	)
	return app, nil
}

// Close stops the queues and the cache sweepers.
func (a *App) Close() {
	a.closeQueues()
	if a.Service != nil {
		a.Service.Close()
	}
	if a.Market != nil {
		a.Market.Close()
	}
}

func (a *App) closeQueues() {
	for _, q := range a.queues {
		q.Close()
	}
}
