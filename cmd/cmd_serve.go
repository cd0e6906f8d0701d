package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"portfolio-gateway/pkg/server"
)

// RunServe serves the API until SIGINT or SIGTERM.
func RunServe(configPath string) error {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return err
	}

	app, err := NewApp(cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	srv := server.New(server.Options{
		Addr:           cfg.ListenAddr,
		Service:        app.Service,
		Market:         app.Market,
		Caches:         app.Caches,
		Metrics:        app.Metrics,
		MetricsHandler: promhttp.HandlerFor(app.Registry, promhttp.HandlerOpts{}),
		Logger:         app.Logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return srv.Run(ctx)
}
