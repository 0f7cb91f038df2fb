package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/chris/token-purchases/pkg/bootstrap"
	"github.com/chris/token-purchases/pkg/config"
	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:           "paymentctl",
		Short:         "Operator tooling for token purchase reconciliation",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(reconcileCmd())
	rootCmd.AddCommand(sweepCmd())
	rootCmd.AddCommand(orphansCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// services loads configuration from the environment and wires the shared dependency graph.
func services(ctx context.Context) (*bootstrap.Services, error) {
	cfg := config.Load()
	slog.SetDefault(cfg.NewLogger(os.Stderr))
	return bootstrap.New(ctx, cfg, nil)
}
