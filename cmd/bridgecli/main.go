package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ligun0805/bridge-sender/internal/config"
)

var (
	baseDir     string
	concurrency int
	noPause     bool
)

func main() {
	_ = godotenv.Load()
	_ = godotenv.Overload(".env.local")

	rootCmd := &cobra.Command{
		Use:   "bridgecli",
		Short: "Bulk gas.zip bridge sender for BSC wallets",
		Long: `Sends one bridge transaction per configured wallet through rotating proxies
and records each wallet's result under results/.

Reads config/settings.yaml and config/data/{wallets,target_addresses,proxies}.txt
relative to --dir. Environment variables (and .env / .env.local) override settings.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&baseDir, "dir", "d", ".", "Base directory holding config/")
	rootCmd.PersistentFlags().BoolVar(&noPause, "no-pause", false, "Do not wait for Enter before exiting on error")

	rootCmd.AddCommand(runCmd(), configCmd(), proxiesCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		quit(1, noPause)
	}
}

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Bridge from every configured wallet once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := loadSettings()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("concurrency") {
				st.Concurrency = concurrency
				if err := st.Validate(); err != nil {
					return err
				}
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runBridge(ctx, st, cmd.OutOrStdout())
		},
	}
	cmd.Flags().IntVarP(&concurrency, "concurrency", "c", 1, "Max wallets submitting at once (overrides settings)")
	return cmd
}

func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration with keys masked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := loadSettings()
			if err != nil {
				return err
			}
			printConfig(cmd.OutOrStdout(), st)
			return nil
		},
	}
}

func proxiesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "proxies",
		Short: "Parse proxies.txt and list the endpoints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := loadSettings()
			if err != nil {
				return err
			}
			return printProxies(cmd.OutOrStdout(), st.Proxies)
		},
	}
}

func loadSettings() (config.Settings, error) {
	st, err := config.Load(config.DefaultLayout(baseDir))
	if err != nil && errors.Is(err, config.ErrInvalid) {
		return st, fmt.Errorf("configuration loading failed: %w", err)
	}
	return st, err
}
