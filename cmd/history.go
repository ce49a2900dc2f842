/*
Copyright © 2025 Valentyn Solomko <valentyn.solomko@gmail.com>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/valpere/stringtran/internal/store"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect the run journal",
	Long: `List, inspect, and clear the SQLite journal of translation runs.
The journal records what was sent to the provider; it is never used to
skip a translation.`,
}

func openStore() (*store.Store, error) {
	db, err := store.New(cfg.Journal.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	return db, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatDuration(d time.Duration) string {
	return d.Round(time.Millisecond).String()
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		runs, err := db.ListRuns(cmd.Context(), historyLimit)
		if err != nil {
			return fmt.Errorf("failed to list runs: %w", err)
		}

		if len(runs) == 0 {
			fmt.Println("No runs in the journal.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSTARTED\tSERVICE\tLANGS\tUNITS\tUNIQUE\tSTATUS\tINPUT")
		for _, r := range runs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s→%s\t%d\t%d\t%s\t%s\n",
				shortID(r.ID), r.CreatedAt.Local().Format("2006-01-02 15:04"), r.Service,
				r.SourceLang, r.TargetLang, r.Units, r.UniqueTexts, r.Status, r.InputFile)
		}
		return w.Flush()
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show a run and its batches",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		ctx := cmd.Context()
		run, err := db.GetRun(ctx, args[0])
		if err != nil {
			return err
		}
		batches, err := db.ListBatches(ctx, run.ID)
		if err != nil {
			return fmt.Errorf("failed to list batches: %w", err)
		}

		fmt.Printf("Run:       %s\n", run.ID)
		fmt.Printf("Status:    %s\n", run.Status)
		fmt.Printf("Service:   %s (%s → %s)\n", run.Service, run.SourceLang, run.TargetLang)
		fmt.Printf("Input:     %s\n", run.InputFile)
		fmt.Printf("Output:    %s\n", run.OutputFile)
		fmt.Printf("Units:     %d (%d unique)\n", run.Units, run.UniqueTexts)
		fmt.Printf("Started:   %s\n", run.CreatedAt.Local().Format(time.DateTime))
		if run.FinishedAt != nil {
			fmt.Printf("Finished:  %s (%s)\n", run.FinishedAt.Local().Format(time.DateTime),
				formatDuration(run.FinishedAt.Sub(run.CreatedAt)))
		}
		if run.Error != "" {
			fmt.Printf("Error:     %s\n", run.Error)
		}

		if len(batches) == 0 {
			return nil
		}

		fmt.Println()
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "BATCH\tITEMS\tCHARS\tATTEMPTS\tWAITED\tLATENCY\tERROR")
		for _, b := range batches {
			fmt.Fprintf(w, "%d\t%d\t%d\t%d\t%s\t%s\t%s\n",
				b.Index, b.Items, b.Chars, b.Attempts,
				formatDuration(b.Waited), formatDuration(b.Latency), b.Error)
		}
		return w.Flush()
	},
}

var historyStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show journal statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.Stats(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to get stats: %w", err)
		}

		fmt.Printf("Total runs:     %d\n", stats.TotalRuns)
		fmt.Printf("Completed:      %d\n", stats.Completed)
		fmt.Printf("Failed:         %d\n", stats.Failed)
		fmt.Printf("Running:        %d\n", stats.Running)
		fmt.Printf("Total batches:  %d\n", stats.TotalBatches)
		fmt.Printf("Total attempts: %d\n", stats.TotalAttempts)
		fmt.Printf("Total chars:    %d\n", stats.TotalChars)
		return nil
	},
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every run from the journal",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		n, err := db.ClearRuns(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to clear journal: %w", err)
		}
		fmt.Printf("Cleared %d runs from the journal.\n", n)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyListCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Maximum number of runs to list (0 for all)")

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyStatsCmd)
	historyCmd.AddCommand(historyClearCmd)
}
