package market

import "strings"

const (
	nativeToken = "0xeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeee"

	// DefaultBridgeWallet receives quotes when the caller names no wallet.
	DefaultBridgeWallet = "0x266E77cE9034a023056ea2845CB6A20517F6FDB7"
)

// bridgeChains maps the chain slugs accepted for cross-chain quotes to ids.
var bridgeChains = map[string]int{
	"ethereum": 1,
	"polygon":  137,
	"arbitrum": 42161,
	"optimism": 10,
	"base":     8453,
}

var bridgeTokens = map[string]map[string]string{
	"ethereum": {
		"USDC": "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48",
		"USDT": "0xdac17f958d2ee523a2206206994597c13d831ec7",
		"DAI":  "0x6b175474e89094c44da98b954eedeac495271d0f",
		"WETH": "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2",
		"ETH":  nativeToken,
	},
	"polygon": {
		"USDC": "0x2791bca1f2de4661ed88a30c99a7a9449aa84174",
		"USDT": "0xc2132d05d31c914a87c6611c10748aeb04b58e8f",
		"DAI":  "0x8f3cf7ad23cd3cadbd9735aff958023239c6a063",
		"WETH": "0x7ceb23fd6c94faf4c5da1a4b4da6b2c3e2a1e95b",
	},
	"arbitrum": {
		"USDC": "0xff970a61a04b1ca14834a43f5de4533ebddb5cc8",
		"USDT": "0xfd086bc7cd5c481dcc9c85ebe478a1c0b69fcbb9",
		"DAI":  "0xda10009cbd5d07dd0cecc66161fc93d7c9000da1",
		"WETH": "0x82af49447d8a07e3bd95bd0d56f35241523fbab1",
	},
	"optimism": {
		"USDC": "0x7f5c764cbc14f9669b88837ca1490cca17c31607",
		"USDT": "0x94b008aa00579c1307b0ef2c499ad98a8ce58e58",
		"DAI":  "0xda10009cbd5d07dd0cecc66161fc93d7c9000da1",
		"WETH": "0x4200000000000000000000000000000000000006",
	},
	"base": {
		"USDC": "0x833589fcd6edb6e08f4c7c32d4f71b54bda02913",
		"USDT": "0xfde4c96c8593536e31f229ea1f71d1b7c9bb4c8a",
		"DAI":  "0x50c5725949a6f0c72e6c4a641f24049a917db0cb",
		"WETH": "0x4200000000000000000000000000000000000006",
	},
}

var bridgeDecimals = map[string]int32{
	"USDC": 6,
	"USDT": 6,
	"DAI":  18,
	"WETH": 18,
	"ETH":  18,
}

func bridgeToken(chain, symbol string) (address string, decimals int32, ok bool) {
	address, ok = bridgeTokens[strings.ToLower(chain)][strings.ToUpper(symbol)]
	if !ok {
		return "", 0, false
	}
	return address, bridgeDecimals[strings.ToUpper(symbol)], true
}
