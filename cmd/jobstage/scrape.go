package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonathan/jobstage/internal/scrape"
)

var (
	scrapeSources []string
	scrapeStore   string
	scrapeJSON    bool
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Run a scrape once and stage new postings",
	Long: `Fetch each source's listing, extract new postings and stage them for review.

Sources run concurrently. Interrupting a run stages what was gathered so far.`,
	RunE: runScrape,
}

func init() {
	scrapeCmd.Flags().StringSliceVarP(&scrapeSources, "source", "s", nil, "Source tags to scrape (default: configured sources, or all)")
	scrapeCmd.Flags().StringVar(&scrapeStore, "store", "", "Storage backend: postgres or memory (overrides config)")
	scrapeCmd.Flags().BoolVar(&scrapeJSON, "json", false, "Print run reports as JSON")
	rootCmd.AddCommand(scrapeCmd)
}

func runScrape(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(scrapeStore)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	tags := scrapeSources
	if len(tags) == 0 {
		tags = cfg.Sources
	}
	srcs, err := a.registry.Select(tags)
	if err != nil {
		return err
	}

	reports, runErr := a.orchestrator().RunAll(ctx, srcs)
	if scrapeJSON {
		if err := writeReportsJSON(cmd.OutOrStdout(), reports); err != nil {
			return err
		}
	} else {
		writeReportsTable(cmd.OutOrStdout(), reports)
	}
	if runErr != nil {
		return fmt.Errorf("scrape finished with errors: %w", runErr)
	}
	return nil
}

func writeReportsJSON(w io.Writer, reports []*scrape.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(reports)
}

func writeReportsTable(w io.Writer, reports []*scrape.Report) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SOURCE\tSTATE\tCANDIDATES\tFETCHED\tSKIPPED\tFAILED\tSTAGED\tDURATION")
	for _, r := range reports {
		state := string(r.State)
		if r.Cancelled {
			state += " (cancelled)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\t%d\t%s\n",
			r.Source, state, r.Candidates, r.Fetched, r.Skipped, r.Failed, r.Staged, r.Duration().Round(time.Millisecond))
	}
	_ = tw.Flush()
	for _, r := range reports {
		if r.Error != "" {
			fmt.Fprintf(w, "%s: %s\n", r.Source, r.Error)
		}
	}
}
