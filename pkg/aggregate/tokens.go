package aggregate

import (
	"sort"

	"github.com/shopspring/decimal"
)

// DefaultTokenLimit caps the merged token list.
const DefaultTokenLimit = 50

type Token struct {
	Address          string   `json:"address"`
	Symbol           string   `json:"symbol"`
	Name             string   `json:"name"`
	Decimals         int32    `json:"decimals"`
	Balance          string   `json:"balance"`
	BalanceFormatted string   `json:"balanceFormatted"`
	Price            float64  `json:"price"`
	Value            float64  `json:"value"`
	ValueFormatted   string   `json:"valueFormatted"`
	PriceChange24h   float64  `json:"priceChange24h"`
	Volume24h        float64  `json:"volume24h"`
	MarketCap        float64  `json:"marketCap"`
	LogoURI          string   `json:"logoURI,omitempty"`
	Verified         bool     `json:"verified"`
	Tags             []string `json:"tags,omitempty"`
	ChainID          int      `json:"chainId,omitempty"`
	ChainName        string   `json:"chainName,omitempty"`
}

// Amount is the balance adjusted by the token's decimals.
func (t Token) Amount() decimal.Decimal {
	amount, err := TokenAmount(t.Balance, t.Decimals)
	if err != nil {
		return decimal.Zero
	}
	return amount
}

// Quote sets the price fields and recomputes value and display strings.
func (t Token) Quote(price, change24h, volume24h, marketCap float64) Token {
	t.Price = price
	t.PriceChange24h = change24h
	t.Volume24h = volume24h
	t.MarketCap = marketCap
	t.Value, _ = t.Amount().Mul(decimal.NewFromFloat(price)).Float64()
	t.ValueFormatted = FormatCurrency(t.Value)
	t.BalanceFormatted = FormatTokenBalance(t.Balance, t.Decimals)
	return t
}

type TokenSet struct {
	Tokens              []Token `json:"tokens"`
	TotalValue          float64 `json:"totalValue"`
	TotalValueFormatted string  `json:"totalValueFormatted"`
}

// MergeTokens flattens per-chain token lists, drops zero balances, orders by
// value then amount (both descending) and keeps the first limit tokens. The
// total covers only the kept tokens.
func MergeTokens(limit int, lists ...[]Token) TokenSet {
	if limit <= 0 {
		limit = DefaultTokenLimit
	}

	type ranked struct {
		token  Token
		amount decimal.Decimal
	}

	var all []ranked
	for _, list := range lists {
		for _, t := range list {
			amount := t.Amount()
			if !amount.IsPositive() {
				continue
			}
			if t.BalanceFormatted == "" {
				t.BalanceFormatted = FormatTokenBalance(t.Balance, t.Decimals)
			}
			if t.ValueFormatted == "" {
				t.ValueFormatted = FormatCurrency(t.Value)
			}
			all = append(all, ranked{token: t, amount: amount})
		}
	}

	sort.SliceStable(all, func(i, j int) bool {
		if all[i].token.Value != all[j].token.Value {
			return all[i].token.Value > all[j].token.Value
		}
		return all[i].amount.GreaterThan(all[j].amount)
	})

	if len(all) > limit {
		all = all[:limit]
	}

	out := TokenSet{Tokens: make([]Token, 0, len(all))}
	for _, r := range all {
		out.Tokens = append(out.Tokens, r.token)
		out.TotalValue += r.token.Value
	}
	out.TotalValueFormatted = FormatCurrency(out.TotalValue)
	return out
}
