package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/itsmostafa/gokernel/internal/history"
	"github.com/itsmostafa/gokernel/internal/render"
)

var historyDB string
var historySession string
var listSessions bool

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded In/Out history",
	Long: `Show the In/Out history kept in the SQLite database configured by
history.path. Without --session the most recent session is shown.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfg.History.Path
		if historyDB != "" {
			path = historyDB
		}
		if path == "" {
			return errors.New("no history database: set history.path or pass --db")
		}

		ctx := cmd.Context()
		id := historySession
		if listSessions || id == "" {
			sessions, err := storedSessions(cmd, path)
			if err != nil {
				return err
			}
			if listSessions || len(sessions) == 0 {
				render.Sessions(cmd.OutOrStdout(), sessions)
				return nil
			}
			id = sessions[len(sessions)-1]
		}

		store, err := history.OpenSQLite(ctx, path, id)
		if err != nil {
			return err
		}
		defer store.Close()

		entries, err := store.Entries(ctx)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			return fmt.Errorf("no history for session %q", id)
		}
		render.History(cmd.OutOrStdout(), entries)
		return nil
	},
}

func storedSessions(cmd *cobra.Command, path string) ([]string, error) {
	store, err := history.OpenSQLite(cmd.Context(), path, "")
	if err != nil {
		return nil, err
	}
	defer store.Close()
	return store.Sessions(cmd.Context())
}

func init() {
	historyCmd.Flags().StringVar(&historyDB, "db", "", "History database (overrides history.path)")
	historyCmd.Flags().StringVar(&historySession, "session", "", "Session id to show (default: most recent)")
	historyCmd.Flags().BoolVar(&listSessions, "sessions", false, "List session ids instead of entries")

	rootCmd.AddCommand(historyCmd)
}
