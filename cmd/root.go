package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/itsmostafa/gokernel/internal/config"
	"github.com/itsmostafa/gokernel/internal/version"
)

var configPath string
var logLevel string

// cfg and logger are set up before any subcommand runs.
var cfg = config.Default()
var logger = slog.New(slog.DiscardHandler)

var rootCmd = &cobra.Command{
	Use:   "gokernel",
	Short: "JavaScript notebook kernel",
	Long: `gokernel evaluates blocks of JavaScript the way a notebook kernel does:
each block is split into complete segments, every segment gets an execution
index, and the results come back as one record per block with In/Out history,
uncaught Throw handling and captured print output.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if path := config.Resolve(configPath); path != "" {
			loaded, err := config.Load(path)
			if err != nil {
				return err
			}
			cfg = loaded
		}
		if cmd.Flags().Changed("log-level") {
			cfg.Log.Level = logLevel
		}

		level, err := cfg.Log.SlogLevel()
		if err != nil {
			return err
		}
		logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
		return nil
	},
}

func init() {
	rootCmd.Version = version.Version
	rootCmd.SetVersionTemplate(fmt.Sprintf("%s\n", version.String()))

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default $"+config.EnvVar+")")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
}

// Execute runs the root command
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
