package main

import (
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/DominicTanzillo/Panacea/internal/classify"
)

var (
	eventsPath   string
	catalogPath  string
	screenAll    bool
	prettyOutput bool
	outputPath   string
	startAt      string
)

var screenCmd = &cobra.Command{
	Use:   "screen",
	Short: "Enrich maneuver events with counterfactual screening and CDM evidence",
	Long: "Reads maneuver events as JSON lines (from --events or stdin), classifies them, " +
		"screens likely avoidance burns against the catalog and writes enriched records.",
	RunE: runScreen,
}

func init() {
	screenCmd.Flags().StringVar(&eventsPath, "events", "-", "maneuver events JSONL file (- for stdin)")
	screenCmd.Flags().StringVar(&catalogPath, "catalog", "", "catalog file (TLE or GP JSON); overrides catalog.path")
	screenCmd.Flags().BoolVar(&screenAll, "all", false, "screen every event, not just likely avoidance burns")
	screenCmd.Flags().BoolVar(&prettyOutput, "pretty", false, "print a table instead of JSONL on stdout")
	screenCmd.Flags().StringVar(&outputPath, "output", "", "append JSONL results to this file; overrides output.jsonl_path")
	screenCmd.Flags().StringVar(&startAt, "start", "", "horizon start (RFC 3339); defaults to now")
}

func runScreen(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if catalogPath != "" {
		cfg.Catalog.Path = catalogPath
	}
	if outputPath != "" {
		cfg.Output.JSONLPath = outputPath
	}
	pretty := prettyOutput || cfg.Output.Pretty

	var start time.Time
	if startAt != "" {
		t, err := time.Parse(time.RFC3339, startAt)
		if err != nil {
			return err
		}
		start = t.UTC()
	}

	rules := classify.DefaultRules()
	if cfg.Classify.RulesPath != "" {
		r, err := classify.LoadRules(cfg.Classify.RulesPath)
		if err != nil {
			return err
		}
		rules = r
	}

	in, err := openEvents(eventsPath)
	if err != nil {
		return err
	}
	defer in.Close()

	events, err := readManeuvers(in, logger)
	if err != nil {
		return err
	}

	screener, err := newScreener(cfg, logger)
	if err != nil {
		return err
	}

	catalog, err := loadCatalog(ctx, cfg, logger)
	if err != nil {
		// Events carrying pre-maneuver elements are still screenable
		// against an empty neighbourhood; the rest get errNoTarget.
		logger.Warn("catalog unavailable", "error", err)
	}

	xref, err := newCrossref(cfg, logger)
	if err != nil {
		return err
	}

	sink, err := newSinks(cfg, pretty, logger)
	if err != nil {
		return err
	}

	p := &pipeline{
		rules:     rules,
		screener:  screener,
		catalog:   catalog,
		crossref:  xref,
		sink:      sink,
		logger:    logger,
		screenAll: screenAll,
		start:     start,
	}
	_, runErr := p.run(ctx, events)
	if err := sink.Close(); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

func openEvents(path string) (io.ReadCloser, error) {
	if path == "" || path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	return os.Open(path)
}
