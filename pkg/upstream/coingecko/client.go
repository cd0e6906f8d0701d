// Package coingecko is a client for the CoinGecko simple price API.
package coingecko

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"portfolio-gateway/pkg/errs"
	"portfolio-gateway/pkg/logging"
	"portfolio-gateway/pkg/queue"
	"portfolio-gateway/pkg/upstream"
)

const (
	Name           = "coingecko"
	DefaultBaseURL = "https://api.coingecko.com/api/v3"
)

type Price struct {
	USD          float64 `json:"usd"`
	Change24h    float64 `json:"usd_24h_change"`
	Volume24h    float64 `json:"usd_24h_vol"`
	MarketCapUSD float64 `json:"usd_market_cap"`
}

type Options struct {
	BaseURL string // Defaults to DefaultBaseURL
	APIKey  string // Optional demo key
	Fetcher upstream.Fetcher
	Queue   *queue.Queue
}

type Client struct {
	baseURL string
	apiKey  string
	fetcher upstream.Fetcher
	queue   *queue.Queue
}

func NewClient(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Fetcher == nil || opts.Queue == nil {
		return nil, fmt.Errorf("coingecko client needs a fetcher and a queue")
	}

	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		apiKey:  opts.APIKey,
		fetcher: opts.Fetcher,
		queue:   opts.Queue,
	}, nil
}

// SimplePrice returns USD quotes keyed by coin id. No request is made for an
// empty id list.
func (c *Client) SimplePrice(ctx context.Context, coinIDs []string) (map[string]Price, error) {
	ids := uniqueSorted(coinIDs)
	if len(ids) == 0 {
		return map[string]Price{}, nil
	}

	params := url.Values{}
	params.Set("ids", strings.Join(ids, ","))
	params.Set("vs_currencies", "usd")
	params.Set("include_24hr_change", "true")
	params.Set("include_24hr_vol", "true")
	params.Set("include_market_cap", "true")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/simple/price?"+params.Encode(), nil)
	if err != nil {
		return nil, errs.Wrap(err, "build coingecko request")
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-cg-demo-api-key", c.apiKey)
	}

	logCtx := logging.ForUpstream(ctx, Name)
	logging.Debug(logCtx, "fetching prices", slog.Int("coins", len(ids)))

	out := map[string]Price{}
	if err := upstream.Get(ctx, c.queue, c.fetcher, req, &out); err != nil {
		return nil, errs.Wrap(err, "simple price")
	}
	return out, nil
}

// TokenPrices quotes token contract addresses. Addresses without a known coin
// id are left out of the result; keys are lowercased addresses.
func (c *Client) TokenPrices(ctx context.Context, addresses []string) (map[string]Price, error) {
	byCoin := make(map[string][]string)
	coinIDs := make([]string, 0, len(addresses))
	for _, addr := range addresses {
		addr = strings.ToLower(addr)
		id, ok := CoinID(addr)
		if !ok {
			continue
		}
		if _, seen := byCoin[id]; !seen {
			coinIDs = append(coinIDs, id)
		}
		byCoin[id] = append(byCoin[id], addr)
	}

	quotes, err := c.SimplePrice(ctx, coinIDs)
	if err != nil {
		return nil, err
	}

	out := make(map[string]Price, len(addresses))
	for id, addrs := range byCoin {
		p, ok := quotes[id]
		if !ok {
			continue
		}
		for _, addr := range addrs {
			out[addr] = p
		}
	}
	return out, nil
}

func uniqueSorted(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
