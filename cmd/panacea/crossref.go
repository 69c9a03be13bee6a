package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/DominicTanzillo/Panacea/internal/crossref"
)

var crossrefCmd = &cobra.Command{
	Use:   "crossref NORAD_ID...",
	Short: "Look up recent public CDMs for catalog objects",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, err := parseIDs(args)
		if err != nil {
			return err
		}
		client, err := newCrossref(cfg, logger)
		if err != nil {
			return err
		}
		if !client.Enabled() {
			return errors.New("space-track credentials not configured: set SPACETRACK_USER and SPACETRACK_PASS")
		}
		cdms, lookupErr := client.Lookup(cmd.Context(), ids)

		out := make(map[string][]crossref.CDM, len(ids))
		for _, id := range ids {
			if c, ok := cdms[id]; ok {
				out[strconv.Itoa(id)] = c
			}
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			return err
		}
		return lookupErr
	},
}

func parseIDs(args []string) ([]int, error) {
	ids := make([]int, 0, len(args))
	for _, a := range args {
		id, err := strconv.Atoi(a)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid NORAD ID %q", a)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
