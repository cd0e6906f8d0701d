package cmd

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"portfolio-gateway/pkg/cache"
	"portfolio-gateway/pkg/upstream"
)

type cacheStatsResponse struct {
	Success   bool                `json:"success"`
	Stats     cache.RegistryStats `json:"stats"`
	Message   string              `json:"message"`
	Timestamp time.Time           `json:"timestamp"`
}

// RunCacheStats prints the cache contents of a running server.
func RunCacheStats(ctx context.Context, serverURL string, showKeys bool, out io.Writer) error {
	var resp cacheStatsResponse
	if err := callAdmin(ctx, http.MethodGet, strings.TrimRight(serverURL, "/")+"/api/cache?action=stats", &resp); err != nil {
		return err
	}

	fmt.Fprintf(out, "Cache entries: %s\n", humanize.Comma(int64(resp.Stats.Size)))

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, c := range resp.Stats.Caches {
		fmt.Fprintf(tw, "  %s\t%s\n", c.Name, humanize.Comma(int64(c.Size)))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if showKeys && len(resp.Stats.Keys) > 0 {
		fmt.Fprintln(out, "Keys:")
		for _, k := range resp.Stats.Keys {
			fmt.Fprintf(out, "  %s\n", k)
		}
	}
	return nil
}

// RunCacheClear empties every cache of a running server.
func RunCacheClear(ctx context.Context, serverURL string, out io.Writer) error {
	var resp cacheStatsResponse
	if err := callAdmin(ctx, http.MethodDelete, strings.TrimRight(serverURL, "/")+"/api/cache", &resp); err != nil {
		return err
	}
	fmt.Fprintln(out, resp.Message)
	return nil
}

func callAdmin(ctx context.Context, method, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build admin request: %w", err)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach server: %w", err)
	}
	return upstream.DecodeJSON("portfolio-gateway", resp, out)
}
