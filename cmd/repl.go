package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/peterh/liner"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/itsmostafa/gokernel/internal/expr"
	"github.com/itsmostafa/gokernel/internal/render"
	"github.com/itsmostafa/gokernel/internal/version"
)

// replHistoryFile keeps line-editor history in the home directory.
const replHistoryFile = ".gokernel_history"

var metricsAddr string

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Start an interactive session",
	Long: `Start an interactive session. Lines are collected until they form a
complete block; a blank line submits whatever is pending, so incomplete
input is evaluated and reported as malformed.

Commands: :history lists the session's In/Out history, :quit exits.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("metrics-addr") {
			cfg.Metrics.Addr = metricsAddr
		}
		ctx := cmd.Context()
		out := cmd.OutOrStdout()

		k, err := openKernel(ctx, cfg, out, logger)
		if err != nil {
			return err
		}
		defer k.Close()

		if cfg.Metrics.Addr != "" {
			stop := serveMetrics(k, cfg.Metrics.Addr, logger)
			defer stop()
		}

		ln := liner.NewLiner()
		defer ln.Close()
		ln.SetCtrlCAborts(true)

		histPath := ""
		if home, err := os.UserHomeDir(); err == nil {
			histPath = filepath.Join(home, replHistoryFile)
		}
		if f, err := os.Open(histPath); err == nil {
			_, _ = ln.ReadHistory(f)
			_ = f.Close()
		}
		defer func() {
			if histPath == "" {
				return
			}
			if f, err := os.Create(histPath); err == nil {
				_, _ = ln.WriteHistory(f)
				_ = f.Close()
			}
		}()

		render.Banner(out, version.Version)

		for {
			next := k.session.Line() + 1
			block, err := readBlock(ln, k.oracle, render.Prompt(next), render.ContinuationPrompt(next))
			if errors.Is(err, io.EOF) {
				fmt.Fprintln(out)
				return nil
			}
			if err != nil {
				return err
			}

			switch strings.TrimSpace(block) {
			case "":
				continue
			case ":quit":
				return nil
			case ":history":
				entries, err := k.store.Entries(ctx)
				if err != nil {
					return err
				}
				render.History(out, entries)
				continue
			}

			ln.AppendHistory(strings.ReplaceAll(block, "\n", " "))

			res, err := k.session.Run(ctx, block)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				logger.Error("block failed", "error", err)
				continue
			}
			if err := writeResult(out, res); err != nil {
				return err
			}
		}
	},
}

// prompter reads one line of input; *liner.State implements it.
type prompter interface {
	Prompt(prompt string) (string, error)
}

// readBlock collects lines until the oracle reports the text complete.
// A blank continuation line submits the pending text as it is. End of
// input and an aborted prompt are reported as io.EOF.
func readBlock(ln prompter, oracle expr.Oracle, prompt, cont string) (string, error) {
	var b strings.Builder

	for {
		p := prompt
		if b.Len() > 0 {
			p = cont
		}
		line, err := ln.Prompt(p)
		if errors.Is(err, io.EOF) || errors.Is(err, liner.ErrPromptAborted) {
			return "", io.EOF
		}
		if err != nil {
			return "", fmt.Errorf("failed to read input: %w", err)
		}

		if b.Len() > 0 {
			if strings.TrimSpace(line) == "" {
				return b.String(), nil
			}
			b.WriteByte('\n')
		}
		b.WriteString(line)

		src := b.String()
		if strings.HasPrefix(strings.TrimSpace(src), ":") {
			return src, nil
		}
		complete, err := oracle.Complete(src)
		if err != nil || complete {
			return src, nil
		}
	}
}

// serveMetrics exposes the kernel registry on addr until the returned
// function is called.
func serveMetrics(k *kernel, addr string, logger *slog.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(k.registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Info("serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

func init() {
	replCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9464")

	rootCmd.AddCommand(replCmd)
}
