package coingecko

import "strings"

// coinIDs maps lowercased Ethereum token addresses to CoinGecko coin ids.
var coinIDs = map[string]string{
	"0x0000000000000000000000000000000000000000": "ethereum",
	"0xeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeee": "ethereum",
	"0xa0b86a33e6441b8c4c8c8c8c8c8c8c8c8c8c8c8":  "usd-coin",
	"0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48": "usd-coin",
	"0xdac17f958d2ee523a2206206994597c13d831ec7": "tether",
	"0x2260fac5e5542a773aa44fbcfedf7c193bc2c599": "wrapped-bitcoin",
	"0x6b175474e89094c44da98b954eedeac495271d0f": "dai",
	"0x7fc66500c84a76ad7e9c93437bfc5ac33e2ddae9": "aave",
	"0x1f9840a85d5af5bf1d1762f925bdaddc4201f984": "uniswap",
	"0x514910771af9ca656af840dff83e8264ecf986ca": "chainlink",
	"0xd533a949740bb3306d119cc777fa900ba034cd52": "curve-dao-token",
	"0x9f8f72aa9304c8b593d555f12ef6589cc3a579a2": "maker",
	"0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2": "weth",
	"0x95ad61b0a150d79219dcf64e1e6cc01f0b64c4ce": "shiba-inu",
	"0x6982508145454ce325ddbe47a25d4ec3d2311933": "pepe",
	"0x7d1afa7b718fb893db30a3abc0cfc608aacfebb0": "matic-network",
	"0x5a98fcbea516cf06857215779fd812ca3bef1b32": "lido-dao",
	"0xb50721bcf8d664c30412cfbc6cf7a15145234ad1": "arbitrum",
	"0x4200000000000000000000000000000000000042": "optimism",
	"0xb8c77482e45f1f44de1745f52c74426c631bdd52": "binancecoin",
	"0xd31a59c85ae9d8edefec411d448f90841571b89c": "solana",
	"0x3ee2200efb3400fabb9aacf31297cbdd1d435d47": "cardano",
	"0x43dfc4159d86f3a37a5a4b3d4580b888ad7d4d5d": "polkadot",
}

// CoinID returns the CoinGecko id for a token address, case-insensitively.
func CoinID(address string) (string, bool) {
	id, ok := coinIDs[strings.ToLower(strings.TrimSpace(address))]
	return id, ok
}
