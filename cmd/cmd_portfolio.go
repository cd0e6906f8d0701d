package cmd

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"portfolio-gateway/pkg/portfolio"
)

// RunPortfolio fetches one cross-chain summary for address and prints it.
func RunPortfolio(ctx context.Context, configPath, address, chains string, out io.Writer) error {
	chainIDs, err := portfolio.ParseChainIDs(chains)
	if err != nil {
		return err
	}

	cfg, err := LoadConfig(configPath)
	if err != nil {
		return err
	}

	app, err := NewApp(cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	summary, err := app.Service.Summary(ctx, address, chainIDs, true)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Total: %s\n", summary.TotalValueFormatted)

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "\nChain\tValue")
	for _, c := range summary.Chains {
		fmt.Fprintf(tw, "%s (%s)\t%s\n", c.Name, c.ID, c.ValueFormatted)
	}
	fmt.Fprintln(tw, "\nCategory\tValue")
	for _, c := range summary.Categories {
		fmt.Fprintf(tw, "%s\t%s\n", c.Name, c.ValueFormatted)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	for _, w := range summary.Warnings {
		fmt.Fprintf(out, "warning: %s\n", w)
	}
	return nil
}
