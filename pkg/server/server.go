// Package server exposes the portfolio service and the cache admin surface
// over HTTP.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"portfolio-gateway/pkg/aggregate"
	"portfolio-gateway/pkg/cache"
	"portfolio-gateway/pkg/errs"
	"portfolio-gateway/pkg/logging"
	"portfolio-gateway/pkg/market"
	"portfolio-gateway/pkg/portfolio"
	"portfolio-gateway/pkg/upstream/oneinch"
)

const shutdownTimeout = 10 * time.Second

type PortfolioService interface {
	Summary(ctx context.Context, address string, chainIDs []int, refresh bool) (aggregate.Summary, error)
	Balances(ctx context.Context, address string, refresh bool) (portfolio.BalanceView, error)
	Prices(ctx context.Context, addresses []string) (portfolio.Prices, error)
}

type MarketService interface {
	SwapQuote(ctx context.Context, r market.SwapRequest) (market.SwapQuote, error)
	CrossChainQuote(ctx context.Context, r market.BridgeRequest) (market.BridgeQuote, error)
	Tokens(ctx context.Context, chainID int, addresses []string) ([]oneinch.TokenInfo, error)
	TokenDetails(ctx context.Context, chainID int, address string, refresh bool) (market.TokenDetails, error)
}

type CacheAdmin interface {
	Stats() cache.RegistryStats
	Clear()
}

type HTTPObserver interface {
	ObserveHTTP(route string, status int, took time.Duration)
}

type Options struct {
	Addr           string // Defaults to :8080
	Service        PortfolioService
	Market         MarketService // Optional, enables the quote and token routes
	Caches         CacheAdmin
	Metrics        HTTPObserver     // Optional
	MetricsHandler http.Handler     // Defaults to promhttp.Handler()
	Logger         *slog.Logger     // Optional
	Now            func() time.Time // Clock for response timestamps
}

type Server struct {
	addr    string
	svc     PortfolioService
	market  MarketService
	caches  CacheAdmin
	metrics HTTPObserver
	promh   http.Handler
	now     func() time.Time
	logCtx  context.Context
	router  chi.Router
}

func New(opts Options) *Server {
	if opts.Addr == "" {
		opts.Addr = ":8080"
	}
	if opts.MetricsHandler == nil {
		opts.MetricsHandler = promhttp.Handler()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	logCtx := logging.WithLogger(context.Background(), opts.Logger)
	logCtx = logging.WithAttrs(logCtx, slog.String("component", "server"))

	s := &Server{
		addr:    opts.Addr,
		svc:     opts.Service,
		market:  opts.Market,
		caches:  opts.Caches,
		metrics: opts.Metrics,
		promh:   opts.MetricsHandler,
		now:     opts.Now,
		logCtx:  logCtx,
	}
	s.router = s.routes()
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.promh)

	r.Route("/api", func(r chi.Router) {
		r.Get("/portfolio", s.handlePortfolio)
		r.Get("/balance", s.handleBalance)
		r.Get("/prices", s.handlePrices)
		r.Get("/cache", s.handleCache)
		r.Delete("/cache", s.handleCacheClear)

		if s.market != nil {
			r.Get("/swap-quote", s.handleSwapQuote)
			r.Get("/cross-chain-swap-quote", s.handleCrossChainQuote)
			r.Get("/tokens", s.handleTokens)
			r.Get("/token-details", s.handleTokenDetails)
		}
	})
	return r
}

// Run serves until ctx ends, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info(s.logCtx, "http server started", slog.String("addr", s.addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return errs.Wrap(err, "serve http")
		}
		return nil
	case <-ctx.Done():
	}

	logging.Info(s.logCtx, "shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errs.Wrap(err, "shutdown http server")
	}
	return nil
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		reqID := middleware.GetReqID(r.Context())
		ctx := logging.WithLogger(r.Context(), logging.Logger(s.logCtx))
		ctx = logging.WithAttrs(ctx, slog.String("request_id", reqID))
		next.ServeHTTP(ww, r.WithContext(ctx))

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		took := time.Since(start)

		if s.metrics != nil {
			s.metrics.ObserveHTTP(route, status, took)
		}
		logging.Info(s.logCtx, "request served",
			slog.String("request_id", reqID),
			slog.String("method", r.Method),
			slog.String("route", route),
			slog.Int("status", status),
			slog.Duration("took", took),
		)
	})
}
