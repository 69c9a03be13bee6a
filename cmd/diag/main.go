package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/DominicTanzillo/Panacea/internal/conjunction"
	"github.com/DominicTanzillo/Panacea/internal/neighbors"
	"github.com/DominicTanzillo/Panacea/internal/propagation"
	"github.com/DominicTanzillo/Panacea/internal/tle"
	"github.com/DominicTanzillo/Panacea/internal/transform"
)

var (
	targetID int
	model    string
	horizon  time.Duration
	cadence  time.Duration
)

func main() {
	cmd := &cobra.Command{
		Use:          "diag CATALOG_FILE",
		Short:        "Print catalog statistics and a timed screening of one object",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE:         run,
	}
	cmd.Flags().IntVar(&targetID, "norad-id", 0, "object to screen (default: first record)")
	cmd.Flags().StringVar(&model, "model", "sgp4", "propagation model (sgp4, kepler)")
	cmd.Flags().DurationVar(&horizon, "horizon", 24*time.Hour, "screening horizon")
	cmd.Flags().DurationVar(&cadence, "cadence", 10*time.Minute, "sampling cadence")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading catalog: %w", err)
	}
	records, err := tle.Decode(data, logger)
	if err != nil {
		return fmt.Errorf("decoding catalog: %w", err)
	}
	catalog := tle.NewCatalog(args[0], time.Now().UTC(), records)
	fmt.Printf("Loaded %d records, epochs %s .. %s\n", len(records),
		catalog.EpochRange.Min.Format(time.RFC3339), catalog.EpochRange.Max.Format(time.RFC3339))
	if len(records) == 0 {
		return nil
	}

	printShells(records)

	target := records[0]
	if targetID != 0 {
		var ok bool
		if target, ok = catalog.Find(targetID); !ok {
			return fmt.Errorf("NORAD %d not in catalog", targetID)
		}
	}
	fmt.Printf("\nTarget: %s (NORAD %d) epoch %v\n", target.Name, target.CatalogID, target.Epoch)

	bands := neighbors.DefaultBands()
	t0 := time.Now()
	selected := neighbors.Select(target, records, bands)
	fmt.Printf("Neighbours within ±%.0f km / ±%.0f°: %d (%v)\n", bands.AltitudeKm, bands.RAANDeg, len(selected), time.Since(t0))

	prop, err := propagation.NewPropagator(propagation.PropConfig{Workers: runtime.NumCPU(), Model: model}, logger)
	if err != nil {
		return err
	}
	cfg := conjunction.DefaultConfig()
	cfg.Horizon, cfg.Cadence = horizon, cadence
	screener := conjunction.NewScreener(prop, cfg, logger)

	t0 = time.Now()
	r := screener.Screen(context.Background(), conjunction.Request{Target: target, Neighbors: selected})
	elapsed := time.Since(t0)

	fmt.Printf("Screened %d samples with %s in %v\n", r.Samples, r.Model, elapsed)
	if r.Failed() {
		fmt.Printf("  ERROR %s: %s\n", r.ErrorCode, r.Error)
		return nil
	}
	fmt.Printf("  checked %d/%d neighbours\n", r.NeighborsChecked, r.NeighborsSelected)
	fmt.Printf("  closest NORAD %d at %.3f km, TCA %s\n", *r.ClosestNeighborID, *r.MinDistanceKm, r.TCA.Format(time.RFC3339))
	if loc := r.TCALocation; loc != nil {
		fmt.Printf("  location lat=%.2f° lon=%.2f° alt=%.1f km\n", loc.LatDeg, loc.LonDeg, loc.AltKm)
	}
	fmt.Printf("  would have collided: %v\n", r.WouldHaveCollided)
	return nil
}

// printShells prints how many records sit in each 100 km altitude shell.
func printShells(records []tle.Record) {
	shells := map[int]int{}
	skipped := 0
	for _, r := range records {
		alt, ok := transform.ShellAltitudeKm(r.MeanMotion)
		if !ok {
			skipped++
			continue
		}
		shells[int(alt)/100*100]++
	}
	keys := make([]int, 0, len(shells))
	for k := range shells {
		keys = append(keys, k)
	}
	sort.Ints(keys)

	fmt.Println("Altitude shells:")
	for _, k := range keys {
		fmt.Printf("  %5d-%-5d km  %d\n", k, k+100, shells[k])
	}
	if skipped > 0 {
		fmt.Printf("  no shell: %d\n", skipped)
	}
}
