package cachekey

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildSortsParameterNames(t *testing.T) {
	key := Build("portfolio", map[string]any{
		"chainIds": []int{1, 137},
		"address":  "0xabc",
	})
	require.Equal(t, "portfolio:address=0xabc&chainIds=1,137", key)
}

func TestBuildChainOrderDoesNotMatter(t *testing.T) {
	a := Build("portfolio", map[string]any{"address": "0xabc", "chainIds": []int{1, 137}})
	b := Build("portfolio", map[string]any{"address": "0xabc", "chainIds": []int{137, 1}})
	require.Equal(t, a, b)
}

func TestBuildDistinguishesChainSets(t *testing.T) {
	a := Build("portfolio", map[string]any{"chainIds": []int{1, 1, 37}})
	b := Build("portfolio", map[string]any{"chainIds": []int{1, 137}})
	require.NotEqual(t, a, b)
	require.Equal(t, "portfolio:chainIds=1,37", a)
}

func TestBuildDistinguishesAddresses(t *testing.T) {
	a := Build("balance", map[string]any{"address": "0x1111111111111111111111111111111111111111"})
	b := Build("balance", map[string]any{"address": "0x2222222222222222222222222222222222222222"})
	require.NotEqual(t, a, b)
}

func TestBuildEscapesSeparatorsInValues(t *testing.T) {
	a := Build("x", map[string]any{"a": "1&b=2"})
	b := Build("x", map[string]any{"a": "1", "b": "2"})
	require.NotEqual(t, a, b)

	c := Build("prices", map[string]any{"addresses": []string{"a,b"}})
	d := Build("prices", map[string]any{"addresses": []string{"a", "b"}})
	require.NotEqual(t, c, d)
	require.Equal(t, "prices:addresses=a,b", d)
}

func TestBuildScalars(t *testing.T) {
	key := Build("p", map[string]any{"n": 42, "ok": true, "none": nil})
	require.Equal(t, "p:n=42&none=&ok=true", key)
}

func TestChainSet(t *testing.T) {
	require.Equal(t, "1,10,137,8453", ChainSet([]int{8453, 137, 1, 10, 137}))
	require.Equal(t, "", ChainSet(nil))
}
