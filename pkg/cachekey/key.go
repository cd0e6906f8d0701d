// Package cachekey builds canonical cache keys so that logically identical
// requests share one cache entry.
package cachekey

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// Build returns "prefix:k1=v1&k2=v2" with parameter names sorted. Slice values
// are deduplicated, sorted (integers numerically, strings lexically) and joined
// by ",". Names and values are query-escaped so separators inside a value can
// never be confused with the key structure.
func Build(prefix string, params map[string]any) string {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(prefix)
	b.WriteByte(':')
	for i, name := range names {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(name))
		b.WriteByte('=')
		b.WriteString(canonical(params[name]))
	}
	return b.String()
}

// ChainSet is the canonical form of a set of chain ids: unique, ascending,
// comma separated.
func ChainSet(ids []int) string {
	return joinInts(ids)
}

func canonical(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return url.QueryEscape(t)
	case []string:
		return joinStrings(t)
	case []int:
		return joinInts(t)
	case []int64:
		ints := make([]int, len(t))
		for i, n := range t {
			ints[i] = int(n)
		}
		return joinInts(ints)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case uint64:
		return strconv.FormatUint(t, 10)
	case bool:
		return strconv.FormatBool(t)
	case fmt.Stringer:
		return url.QueryEscape(t.String())
	default:
		return url.QueryEscape(fmt.Sprint(t))
	}
}

func joinInts(ids []int) string {
	sorted := append([]int(nil), ids...)
	sort.Ints(sorted)

	parts := make([]string, 0, len(sorted))
	for i, id := range sorted {
		if i > 0 && id == sorted[i-1] {
			continue
		}
		parts = append(parts, strconv.Itoa(id))
	}
	return strings.Join(parts, ",")
}

func joinStrings(values []string) string {
	sorted := append([]string(nil), values...)
	sort.Strings(sorted)

	parts := make([]string, 0, len(sorted))
	for i, v := range sorted {
		if i > 0 && v == sorted[i-1] {
			continue
		}
		parts = append(parts, url.QueryEscape(v))
	}
	return strings.Join(parts, ",")
}
