package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nicktill/econdash/pkg/export"
	"github.com/nicktill/econdash/pkg/indicator"
	"github.com/nicktill/econdash/pkg/storage/memory"
)

var (
	inspectFile string

	inspectCmd = &cobra.Command{
		Use:   "inspect",
		Short: "Summarize the loaded data directory, or an exported file with --file",
		RunE:  runInspect,
	}
)

func init() {
	inspectCmd.Flags().StringVar(&inspectFile, "file", "", "exported .csv or .json file to read back")
}

func runInspect(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if inspectFile != "" {
		tbl, err := readExport(inspectFile)
		if err != nil {
			return err
		}
		return printExport(out, tbl)
	}

	store, err := loadStore(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	return printStore(out, store)
}

// readExport reads a file written by the export command or /download.
func readExport(path string) (*indicator.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(path), ".json") {
		return export.ReadJSON(f)
	}
	key := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return export.ReadCSV(key, f)
}

func printExport(w io.Writer, tbl *indicator.Table) error {
	countries := make(map[string]bool)
	missing := 0
	minYear, maxYear := 0, 0
	for i, r := range tbl.Rows {
		countries[r.CountryCode] = true
		if r.Value.IsMissing() {
			missing++
		}
		if i == 0 || r.Year < minYear {
			minYear = r.Year
		}
		if i == 0 || r.Year > maxYear {
			maxYear = r.Year
		}
	}

	fmt.Fprintf(w, "metric:    %s\n", tbl.Key)
	fmt.Fprintf(w, "rows:      %d (%d missing)\n", tbl.Len(), missing)
	fmt.Fprintf(w, "countries: %d\n", len(countries))
	if tbl.Len() > 0 {
		fmt.Fprintf(w, "years:     %d-%d\n", minYear, maxYear)
	}
	return nil
}

func printStore(w io.Writer, store *memory.Store) error {
	stats := store.Stats()
	years := store.Years()

	fmt.Fprintf(w, "countries: %d\n", len(store.Countries()))
	fmt.Fprintf(w, "years:     %d-%d\n", years.Min, years.Max)
	fmt.Fprintf(w, "loaded in: %s\n\n", stats.LoadDuration)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tKIND\tROWS\tMISSING\tSOURCE\tTITLE")
	for _, ts := range stats.PerTable {
		entry, _ := store.Registry().Lookup(ts.Key)
		source := entry.Source
		if entry.From != "" {
			source = "<- " + entry.From
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\t%s\n", ts.Key, ts.Kind, ts.Rows, ts.Missing, source, entry.Title)
	}
	return tw.Flush()
}
