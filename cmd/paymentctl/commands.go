package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/chris/token-purchases/pkg/storage"
	"github.com/chris/token-purchases/pkg/sweeper"
	"github.com/spf13/cobra"
)

func reconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile [chargeIntentId]",
		Short: "Fetch a charge intent from the gateway and apply its outcome to the ledger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := services(cmd.Context())
			if err != nil {
				return err
			}
			if err := s.Config.ValidateGateway(); err != nil {
				return err
			}
			sw := sweeper.New(s.Store, s.Gateway, s.Engine, s.Metrics, s.Config.StalePendingAfter, s.Config.SweepConcurrency)

			outcome, err := sw.ReconcileIntent(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("reconcile %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", args[0], outcome)
			return nil
		},
	}
}

func sweepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Resolve transactions left pending past the stale threshold",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := services(cmd.Context())
			if err != nil {
				return err
			}
			if err := s.Config.ValidateGateway(); err != nil {
				return err
			}
			maxAge, _ := cmd.Flags().GetDuration("older-than")
			if maxAge <= 0 {
				maxAge = s.Config.StalePendingAfter
			}
			concurrency, _ := cmd.Flags().GetInt("concurrency")

			report, err := sweeper.New(s.Store, s.Gateway, s.Engine, s.Metrics, maxAge, concurrency).Sweep(cmd.Context())
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), report)
		},
	}

	cmd.Flags().Duration("older-than", 0, "Only sweep transactions pending longer than this (defaults to STALE_PENDING_AFTER)")
	cmd.Flags().IntP("concurrency", "c", sweeper.DefaultConcurrency, "Concurrent gateway lookups")

	return cmd
}

func orphansCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "orphans",
		Short: "Inspect webhook events that matched no transaction",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List recorded orphan events",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := services(cmd.Context())
			if err != nil {
				return err
			}
			limit, _ := cmd.Flags().GetInt32("limit")
			return listOrphans(cmd, s.Store, limit)
		},
	}
	list.Flags().Int32P("limit", "n", 50, "Maximum events to list")

	cmd.AddCommand(list)
	return cmd
}

func listOrphans(cmd *cobra.Command, store storage.OrphanStore, limit int32) error {
	if limit <= 0 {
		return fmt.Errorf("--limit must be positive")
	}
	orphans, err := store.ListOrphans(cmd.Context(), limit)
	if err != nil {
		return fmt.Errorf("failed to list orphan events: %w", err)
	}
	if len(orphans) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No orphan events recorded.")
		return nil
	}
	return writeJSON(cmd.OutOrStdout(), orphans)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
