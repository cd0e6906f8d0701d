package portfolio

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	ErrInvalidAddress = errors.New("invalid Ethereum address format")
	ErrNoData         = errors.New("no portfolio data found for any supported chain")
)

type Chain struct {
	ID   int    `json:"chainId" yaml:"id"`
	Name string `json:"chainName" yaml:"name"`
}

// DefaultChains are queried when the caller does not name any.
var DefaultChains = []Chain{
	{ID: 1, Name: "Ethereum"},
	{ID: 56, Name: "BNB Chain"},
	{ID: 137, Name: "Polygon"},
	{ID: 42161, Name: "Arbitrum One"},
	{ID: 10, Name: "Optimism"},
	{ID: 8453, Name: "Base"},
}

var addressPattern = regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`)

// NormalizeAddress validates an EVM address and lowercases it so that
// differently-cased inputs share cache entries.
func NormalizeAddress(address string) (string, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return "", fmt.Errorf("%w: address parameter is required", ErrInvalidAddress)
	}
	if !addressPattern.MatchString(address) {
		return "", ErrInvalidAddress
	}
	return strings.ToLower(address), nil
}

// ParseChainIDs parses a comma separated chain id list. Empty input yields nil.
func ParseChainIDs(raw string) ([]int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	parts := strings.Split(raw, ",")
	ids := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		id, err := strconv.Atoi(p)
		if err != nil || id <= 0 {
			return nil, errors.New("invalid chain id " + strconv.Quote(p))
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func chainName(chains []Chain, id int) string {
	for _, c := range chains {
		if c.ID == id {
			return c.Name
		}
	}
	return "Chain " + strconv.Itoa(id)
}
