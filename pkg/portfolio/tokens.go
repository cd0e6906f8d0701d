package portfolio

import "strings"

// TokenMeta is the display metadata bundled for well-known tokens.
type TokenMeta struct {
	Symbol   string
	Name     string
	Decimals int32
}

const nativeToken = "0xeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeee"

// knownTokens covers the majors that the price table also knows about. Other
// tokens are shown with 18 decimals and an unknown symbol.
var knownTokens = map[string]TokenMeta{
	nativeToken: {Symbol: "ETH", Name: "Ether", Decimals: 18},
	"0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48": {Symbol: "USDC", Name: "USD Coin", Decimals: 6},
	"0xdac17f958d2ee523a2206206994597c13d831ec7": {Symbol: "USDT", Name: "Tether USD", Decimals: 6},
	"0x2260fac5e5542a773aa44fbcfedf7c193bc2c599": {Symbol: "WBTC", Name: "Wrapped Bitcoin", Decimals: 8},
	"0x6b175474e89094c44da98b954eedeac495271d0f": {Symbol: "DAI", Name: "Dai", Decimals: 18},
	"0x7fc66500c84a76ad7e9c93437bfc5ac33e2ddae9": {Symbol: "AAVE", Name: "Aave", Decimals: 18},
	"0x1f9840a85d5af5bf1d1762f925bdaddc4201f984": {Symbol: "UNI", Name: "Uniswap", Decimals: 18},
	"0x514910771af9ca656af840dff83e8264ecf986ca": {Symbol: "LINK", Name: "Chainlink", Decimals: 18},
	"0xd533a949740bb3306d119cc777fa900ba034cd52": {Symbol: "CRV", Name: "Curve DAO Token", Decimals: 18},
	"0x9f8f72aa9304c8b593d555f12ef6589cc3a579a2": {Symbol: "MKR", Name: "Maker", Decimals: 18},
	"0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2": {Symbol: "WETH", Name: "Wrapped Ether", Decimals: 18},
	"0x5a98fcbea516cf06857215779fd812ca3bef1b32": {Symbol: "LDO", Name: "Lido DAO", Decimals: 18},
}

func lookupToken(address string) TokenMeta {
	if meta, ok := knownTokens[strings.ToLower(address)]; ok {
		return meta
	}
	return TokenMeta{Symbol: "Unknown", Name: "Unknown Token", Decimals: 18}
}

// KnownToken returns the bundled metadata for an Ethereum mainnet token.
func KnownToken(address string) (TokenMeta, bool) {
	meta, ok := knownTokens[strings.ToLower(address)]
	return meta, ok
}
