package portfolio

import "portfolio-gateway/pkg/aggregate"

type demoToken struct {
	symbol, name, address string
	decimals              int32
	balance               string
	price                 float64
	change24h             float64
	volume24h             float64
	marketCap             float64
	tags                  []string
	chain                 Chain
}

var demoTokens = []demoToken{
	{"ETH", "Ethereum", "0x0000000000000000000000000000000000000000", 18, "2500000000000000000", 2500, 2.5, 15e9, 300e9, []string{"native", "layer-1"}, Chain{1, "Ethereum"}},
	{"BNB", "BNB", "0x0000000000000000000000000000000000000000", 18, "1000000000000000000", 300, 1.2, 8e9, 45e9, []string{"native", "layer-1"}, Chain{56, "BNB Chain"}},
	{"MATIC", "Polygon", "0x0000000000000000000000000000000000000000", 18, "5000000000000000000000", 0.8, -0.5, 3e9, 8e9, []string{"native", "layer-2"}, Chain{137, "Polygon"}},
	{"ARB", "Arbitrum", "0x0000000000000000000000000000000000000000", 18, "2000000000000000000000", 1.2, 3.1, 1.2e9, 1.2e9, []string{"native", "layer-2"}, Chain{42161, "Arbitrum One"}},
	{"OP", "Optimism", "0x0000000000000000000000000000000000000000", 18, "1000000000000000000000", 2.5, 1.8, 800e6, 2e9, []string{"native", "layer-2"}, Chain{10, "Optimism"}},
	{"USDC", "USD Coin", "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48", 6, "5000000", 1, 0.01, 5e9, 25e9, []string{"stablecoin", "usd"}, Chain{1, "Ethereum"}},
	{"WBTC", "Wrapped Bitcoin", "0x2260fac5e5542a773aa44fbcfedf7c193bc2c599", 8, "50000", 45000, -1.2, 8e9, 90e9, []string{"wrapped", "bitcoin"}, Chain{1, "Ethereum"}},
	{"USDT", "Tether USD", "0xdac17f958d2ee523a2206206994597c13d831ec7", 6, "10000000", 1, 0.01, 60e9, 95e9, []string{"stablecoin", "usd"}, Chain{1, "Ethereum"}},
	{"DAI", "Dai", "0x6b175474e89094c44da98b954eedeac495271d0f", 18, "5000000000000000000000", 1, 0.02, 2e9, 5e9, []string{"stablecoin", "defi"}, Chain{1, "Ethereum"}},
	{"AAVE", "Aave", "0x7fc66500c84a76ad7e9c93437bfc5ac33e2ddae9", 18, "100000000000000000000", 85, 5.8, 1.5e9, 12e9, []string{"defi", "lending"}, Chain{1, "Ethereum"}},
	{"UNI", "Uniswap", "0x1f9840a85d5af5bf1d1762f925bdaddc4201f984", 18, "500000000000000000000", 7.5, -2.1, 800e6, 4.5e9, []string{"defi", "dex"}, Chain{1, "Ethereum"}},
	{"LINK", "Chainlink", "0x514910771af9ca656af840dff83e8264ecf986ca", 18, "1000000000000000000000", 12.5, 3.4, 1.2e9, 7e9, []string{"oracle", "defi"}, Chain{1, "Ethereum"}},
	{"CRV", "Curve DAO Token", "0xd533a949740bb3306d119cc777fa900ba034cd52", 18, "2000000000000000000000", 0.65, -0.8, 300e6, 700e6, []string{"defi", "amm"}, Chain{1, "Ethereum"}},
	{"MKR", "Maker", "0x9f8f72aa9304c8b593d555f12ef6589cc3a579a2", 18, "5000000000000000000", 1200, 1.7, 50e6, 1.1e9, []string{"defi", "governance"}, Chain{1, "Ethereum"}},
}

// demoView is the labelled sample portfolio shown when an address holds
// nothing on any chain.
func demoView(address string) BalanceView {
	tokens := make([]aggregate.Token, 0, len(demoTokens))
	counts := map[int]int{}
	var chains []ChainTokens

	for _, d := range demoTokens {
		t := aggregate.Token{
			Address:   d.address,
			Symbol:    d.symbol,
			Name:      d.name,
			Decimals:  d.decimals,
			Balance:   d.balance,
			Verified:  true,
			Tags:      d.tags,
			ChainID:   d.chain.ID,
			ChainName: d.chain.Name,
		}
		tokens = append(tokens, t.Quote(d.price, d.change24h, d.volume24h, d.marketCap))

		if counts[d.chain.ID] == 0 {
			chains = append(chains, ChainTokens{ChainID: d.chain.ID, ChainName: d.chain.Name})
		}
		counts[d.chain.ID]++
	}
	for i := range chains {
		chains[i].TokenCount = counts[chains[i].ChainID]
	}

	return BalanceView{
		Address:  address,
		Chains:   chains,
		TokenSet: aggregate.MergeTokens(len(tokens), tokens),
		Fallback: true,
		Reason:   fallbackReason,
	}
}
