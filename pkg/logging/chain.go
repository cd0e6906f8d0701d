package logging

import (
	"context"
	"fmt"
	"log/slog"
)

// ForUpstream tags ctx for calls made to the named upstream API.
func ForUpstream(ctx context.Context, name string) context.Context {
	return WithAttrs(ctx,
		slog.String("component", "upstream"),
		slog.String("upstream", name),
	)
}

// ForChain tags ctx with the chain a call is about. An empty name is omitted.
func ForChain(ctx context.Context, chainID int, chainName string) context.Context {
	attrs := []slog.Attr{slog.Int("chain_id", chainID)}
	if chainName != "" {
		attrs = append(attrs, slog.String("chain_name", chainName))
	}
	return WithAttrs(ctx, attrs...)
}

// ChainPrefix returns the "[Chain 137 - Polygon]" prefix used in per-chain messages.
func ChainPrefix(chainID int, chainName string) string {
	if chainName == "" {
		return fmt.Sprintf("[Chain %d]", chainID)
	}
	return fmt.Sprintf("[Chain %d - %s]", chainID, chainName)
}
