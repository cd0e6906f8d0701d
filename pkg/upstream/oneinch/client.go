// Package oneinch is a client for the 1inch portfolio and balance APIs.
package oneinch

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"portfolio-gateway/pkg/errs"
	"portfolio-gateway/pkg/logging"
	"portfolio-gateway/pkg/queue"
	"portfolio-gateway/pkg/upstream"
)

const (
	Name           = "1inch"
	DefaultBaseURL = "https://api.1inch.dev"

	portfolioPath = "/portfolio/portfolio/v5.0/general/current_value"
	balancePath   = "/balance/v1.2"
)

type ChainValue struct {
	ValueUSD  float64 `json:"value_usd"`
	ChainID   int     `json:"chain_id"`
	ChainName string  `json:"chain_name"`
}

type CategoryValue struct {
	ValueUSD     float64 `json:"value_usd"`
	CategoryID   string  `json:"category_id"`
	CategoryName string  `json:"category_name"`
}

type ProtocolGroupValue struct {
	ValueUSD          float64 `json:"value_usd"`
	ProtocolGroupID   string  `json:"protocol_group_id"`
	ProtocolGroupName string  `json:"protocol_group_name"`
}

type AddressValue struct {
	ValueUSD float64 `json:"value_usd"`
	Address  string  `json:"address"`
}

// PortfolioResult is the "result" object of general/current_value.
type PortfolioResult struct {
	Total           float64              `json:"total"`
	ByAddress       []AddressValue       `json:"by_address"`
	ByCategory      []CategoryValue      `json:"by_category"`
	ByProtocolGroup []ProtocolGroupValue `json:"by_protocol_group"`
	ByChain         []ChainValue         `json:"by_chain"`
}

type portfolioResponse struct {
	Result PortfolioResult `json:"result"`
}

type Options struct {
	BaseURL string // Defaults to DefaultBaseURL
	APIKey  string // Sent as a bearer token
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
	if opts.APIKey == "" {
		return nil, fmt.Errorf("1inch API key not configured, set ONEINCH_API_KEY")
	}
	if opts.Fetcher == nil || opts.Queue == nil {
		return nil, fmt.Errorf("1inch client needs a fetcher and a queue")
	}

	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		apiKey:  opts.APIKey,
		fetcher: opts.Fetcher,
		queue:   opts.Queue,
	}, nil
}

// CurrentValue returns the USD breakdown of address on one chain.
func (c *Client) CurrentValue(ctx context.Context, address string, chainID int) (PortfolioResult, error) {
	params := url.Values{}
	params.Set("addresses", address)
	params.Set("chain_id", strconv.Itoa(chainID))
	params.Set("use_cache", "true")

	req, err := c.newRequest(ctx, c.baseURL+portfolioPath+"?"+params.Encode())
	if err != nil {
		return PortfolioResult{}, err
	}

	logCtx := logging.ForChain(logging.ForUpstream(ctx, Name), chainID, "")
	logging.Debug(logCtx, "fetching current value")

	var out portfolioResponse
	if err := upstream.Get(ctx, c.queue, c.fetcher, req, &out); err != nil {
		return PortfolioResult{}, errs.ForChain(chainID, "current value", err)
	}
	return out.Result, nil
}

// Balances returns raw token balances of address on one chain, keyed by token
// contract address.
func (c *Client) Balances(ctx context.Context, chainID int, address string) (map[string]string, error) {
	endpoint := fmt.Sprintf("%s%s/%d/balances/%s", c.baseURL, balancePath, chainID, url.PathEscape(address))

	req, err := c.newRequest(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	logCtx := logging.ForChain(logging.ForUpstream(ctx, Name), chainID, "")
	logging.Debug(logCtx, "fetching balances")

	out := map[string]string{}
	if err := upstream.Get(ctx, c.queue, c.fetcher, req, &out); err != nil {
		return nil, errs.ForChain(chainID, "balances", err)
	}
	return out, nil
}

func (c *Client) newRequest(ctx context.Context, endpoint string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errs.Wrap(err, "build 1inch request")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	return req, nil
}
