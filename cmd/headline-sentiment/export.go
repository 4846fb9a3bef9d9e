// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/pdiddy/headline-sentiment/internal/export"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write headlines or trend windows to a JSON, YAML, or CSV file",
	Long: `Export writes a file whose format follows its extension (.json, .yaml,
.yml, .csv) unless --format is given. The file is replaced atomically.`,
}

var exportHeadlinesCmd = &cobra.Command{
	Use:   "headlines <file>",
	Short: "Export headlines and their scores",
	Args:  cobra.ExactArgs(1),
	RunE:  runExportHeadlines,
}

var exportTrendCmd = &cobra.Command{
	Use:   "trend <file>",
	Short: "Export a trend window series",
	Args:  cobra.ExactArgs(1),
	RunE:  runExportTrend,
}

func init() {
	exportCmd.PersistentFlags().String("format", "", "json, yaml, or csv (default from the file extension)")

	addQueryFlags(exportHeadlinesCmd)
	addTrendFlags(exportTrendCmd)

	exportCmd.AddCommand(exportHeadlinesCmd)
	exportCmd.AddCommand(exportTrendCmd)
	rootCmd.AddCommand(exportCmd)
}

func exportFormat(cmd *cobra.Command, path string) (export.Format, error) {
	if name, _ := cmd.Flags().GetString("format"); name != "" {
		return export.ParseFormat(name)
	}
	return export.FormatForPath(path)
}

func runExportHeadlines(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	f, err := exportFormat(cmd, args[0])
	if err != nil {
		return err
	}
	q, err := queryFromFlags(cmd)
	if err != nil {
		return err
	}
	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	hs, err := st.Headlines(ctx, q)
	if err != nil {
		return err
	}
	if err := export.ToFile(args[0], func(w io.Writer) error { return export.Headlines(w, f, hs) }); err != nil {
		return err
	}
	fmt.Printf("Exported %d headline(s) to %s\n", len(hs), args[0])
	return nil
}

func runExportTrend(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()
	cmd.SetContext(ctx)

	f, err := exportFormat(cmd, args[0])
	if err != nil {
		return err
	}
	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	windows, err := trendSeries(cmd, st)
	if err != nil {
		return err
	}
	if err := export.ToFile(args[0], func(w io.Writer) error { return export.Trend(w, f, windows) }); err != nil {
		return err
	}
	fmt.Printf("Exported %d window(s) to %s\n", len(windows), args[0])
	return nil
}
