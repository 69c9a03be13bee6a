package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/DominicTanzillo/Panacea/internal/neighbors"
)

var selectID int

var selectCmd = &cobra.Command{
	Use:   "select",
	Short: "List the catalog objects sharing a target's orbital shell",
	RunE: func(cmd *cobra.Command, args []string) error {
		if selectID <= 0 {
			return fmt.Errorf("--norad-id is required")
		}
		if catalogPath != "" {
			cfg.Catalog.Path = catalogPath
		}
		catalog, err := loadCatalog(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		target, ok := catalog.Find(selectID)
		if !ok {
			return fmt.Errorf("NORAD %d not in catalog", selectID)
		}

		bands := screeningConfig(cfg).Bands
		found := neighbors.Select(target, catalog.Records, bands)
		ids := make([]int, len(found))
		for i, r := range found {
			ids[i] = r.CatalogID
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"norad_id":         selectID,
			"altitude_band_km": bands.AltitudeKm,
			"raan_band_deg":    bands.RAANDeg,
			"count":            len(ids),
			"neighbor_ids":     ids,
		})
	},
}

func init() {
	selectCmd.Flags().IntVar(&selectID, "norad-id", 0, "target NORAD catalog ID")
	selectCmd.Flags().StringVar(&catalogPath, "catalog", "", "catalog file (TLE or GP JSON); overrides catalog.path")
}
