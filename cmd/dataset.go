package main

import (
	"encoding/json"
	"net/url"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/mspdash/internal/dataset"
)

var datasetCmd = &cobra.Command{
	Use:   "dataset",
	Short: "Inspect the company CSV dataset",
}

var datasetStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print aggregate statistics and bounds for the dataset",
	RunE: func(cmd *cobra.Command, args []string) error {
		records, err := newLoader().Load()
		if err != nil {
			return err
		}

		// Accreditation snapshots are optional for stats: a missing or
		// empty store just leaves the accredited counter at zero.
		if store, err := openStore(cmd.Context()); err == nil {
			defer store.Close()
			snapshots, err := newSyncService(store).Snapshots(cmd.Context(), dataset.INNs(records))
			if err != nil {
				zap.L().Warn("accreditation load failed", zap.Error(err))
			} else {
				dataset.Attach(records, snapshots)
			}
		} else {
			zap.L().Warn("store unavailable", zap.Error(err))
		}

		out := struct {
			Stats  any `json:"stats"`
			Bounds any `json:"bounds"`
		}{
			Stats:  dataset.Stats(records),
			Bounds: dataset.Bounds(records),
		}
		return printJSON(out)
	},
}

var datasetOptionsCmd = &cobra.Command{
	Use:   "options",
	Short: "Print the distinct filter choices the dataset offers",
	RunE: func(cmd *cobra.Command, args []string) error {
		records, err := newLoader().Load()
		if err != nil {
			return err
		}
		return printJSON(dataset.Options(records))
	},
}

var filterFlags = []string{
	"search", "okved", "uses_usn", "is_accredited",
	"min_revenue", "max_revenue", "min_taxes", "min_staff",
	"tax_year", "staff_year",
}

var datasetFilterCmd = &cobra.Command{
	Use:   "filter",
	Short: "Print the records matching the given predicates",
	RunE: func(cmd *cobra.Command, args []string) error {
		records, err := newLoader().Load()
		if err != nil {
			return err
		}

		if store, err := openStore(cmd.Context()); err == nil {
			defer store.Close()
			snapshots, err := newSyncService(store).Snapshots(cmd.Context(), dataset.INNs(records))
			if err == nil {
				dataset.Attach(records, snapshots)
			}
		}

		// Flags share names and semantics with the API query parameters,
		// so the same lenient parser serves both.
		values := url.Values{}
		for _, name := range filterFlags {
			if v, _ := cmd.Flags().GetString(name); v != "" {
				values.Set(name, v)
			}
		}
		spec := dataset.ParseFilterValues(values)

		filtered := dataset.Apply(records, spec)
		out := struct {
			Count   int `json:"count"`
			Records any `json:"records"`
		}{
			Count:   len(filtered),
			Records: filtered,
		}
		return printJSON(out)
	},
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func init() {
	f := datasetFilterCmd.Flags()
	f.String("search", "", "substring match over names, CEO, and OKVED")
	f.String("okved", "", "exact OKVED code")
	f.String("uses_usn", "", "USN flag: yes or no")
	f.String("is_accredited", "", "accreditation flag: yes or no")
	f.String("min_revenue", "", "inclusive revenue lower bound")
	f.String("max_revenue", "", "inclusive revenue upper bound")
	f.String("min_taxes", "", "inclusive taxes lower bound")
	f.String("min_staff", "", "inclusive staff lower bound")
	f.String("tax_year", "", "exact tax year")
	f.String("staff_year", "", "exact staff-count year")

	datasetCmd.AddCommand(datasetStatsCmd, datasetOptionsCmd, datasetFilterCmd)
	rootCmd.AddCommand(datasetCmd)
}
