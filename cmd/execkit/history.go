package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func (a *app) newHistoryCmd() *cobra.Command {
	var (
		jsonOut bool
		limit   int
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded runs, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.loadEnv()
			if err != nil {
				return err
			}
			records, err := e.diskStore().List()
			if err != nil {
				return fmt.Errorf("listing history: %w", err)
			}
			if limit > 0 && limit < len(records) {
				records = records[len(records)-limit:]
			}

			w := cmd.OutOrStdout()
			if jsonOut {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(records)
			}
			if len(records) == 0 {
				fmt.Fprintln(w, "no commands executed yet")
				return nil
			}
			for _, r := range records {
				fmt.Fprintf(w, "%s  %-12s %s  %s\n", r.Timestamp.Format(time.RFC3339), r.Status, r.ID, r.Command)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "output records as JSON")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "show only the most recent N runs")
	return cmd
}

func (a *app) newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect RUN_ID",
		Short: "Print the full record of one run as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.loadEnv()
			if err != nil {
				return err
			}
			rec, err := e.diskStore().Load(args[0])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(rec)
		},
	}
}
