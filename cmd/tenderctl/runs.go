package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent ingestion runs",
	RunE:  runRuns,
}

func init() {
	rootCmd.AddCommand(runsCmd)
	runsCmd.Flags().IntP("limit", "n", 10, "number of runs to show")
}

func runRuns(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	lg, err := newLogger()
	if err != nil {
		return err
	}
	defer lg.Sync()

	store, closeStore, err := openStore(ctx, lg)
	if err != nil {
		return err
	}
	defer closeStore()

	limit, _ := cmd.Flags().GetInt("limit")
	runs, err := store.ListRuns(ctx, limit)
	if err != nil {
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.AppendHeader(table.Row{"Source", "Status", "Found", "Saved", "Errors", "Duration", "Started At", "Detail"})

	for _, r := range runs {
		duration := "Running..."
		if r.CompletedAt != nil {
			duration = r.CompletedAt.Sub(r.StartedAt).Round(time.Millisecond).String()
		}
		detail := ""
		if v, ok := r.Details["identifier"]; ok {
			detail = fmt.Sprint(v)
		} else if v, ok := r.Details["error"]; ok {
			detail = fmt.Sprint(v)
		}
		t.AppendRow(table.Row{r.Source, r.Status, r.ItemsFound, r.ItemsSaved, r.Errors, duration,
			r.StartedAt.Local().Format("2006-01-02 15:04:05"), detail})
	}
	t.Render()
	return nil
}
