package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/elaichix/NubaGuard-AI/internal/activity"
	"github.com/elaichix/NubaGuard-AI/internal/config"
)

func init() {
	cmd := &cobra.Command{
		Use:   "activity",
		Short: "Print recent entries of the activity store",
		Args:  cobra.NoArgs,
		RunE:  runActivity,
	}
	cmd.Flags().IntP("limit", "l", 20, "max entries")
	cmd.Flags().StringP("event", "e", "", "only entries of this event type (e.g. Cry_Detected)")
	cmd.Flags().Duration("since", 0, "only entries newer than this (e.g. 12h)")
	cmd.Flags().Bool("json", false, "print JSON instead of a table")
	rootCmd.AddCommand(cmd)
}

func runActivity(cmd *cobra.Command, _ []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	event, _ := cmd.Flags().GetString("event")
	since, _ := cmd.Flags().GetDuration("since")
	asJSON, _ := cmd.Flags().GetBool("json")

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Activity.SQLitePath == "" {
		return errors.New("activity.sqlite_path is not set")
	}

	store, err := activity.OpenStore(cfg.Activity.SQLitePath)
	if err != nil {
		return err
	}
	defer store.Close()

	q := activity.Query{Limit: limit, Event: event}
	if since > 0 {
		q.Since = time.Now().Add(-since)
	}
	entries, err := store.Recent(cmd.Context(), q)
	if err != nil {
		return err
	}

	if asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}
	return printEntries(cmd.OutOrStdout(), entries)
}

func printEntries(w io.Writer, entries []activity.Entry) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tEVENT\tSTATE\tDETAILS")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.At.Local().Format(time.DateTime), e.Event, e.State, e.Details)
	}
	return tw.Flush()
}
