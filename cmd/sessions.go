package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/rixmerz/muxpilot/internal/config"
	"github.com/rixmerz/muxpilot/internal/model"
	"github.com/rixmerz/muxpilot/internal/store"
)

var flagSessionsDB string

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage per-session metadata records",
	Long: `Read and write per-session metadata stored in the local sqlite
database. Records are opaque string key/value maps keyed by session
name; muxpilot imposes no structure on them.`,
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all session records",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openSessionsStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		recs, err := st.ListSessions(cmd.Context())
		if err != nil {
			return fmt.Errorf("list sessions: %w", err)
		}
		for _, r := range recs {
			fmt.Printf("%s\t%s\t%d keys\n", r.Name, r.UpdatedAt.Format(time.RFC3339), len(r.Data))
		}
		return nil
	},
}

var sessionsGetCmd = &cobra.Command{
	Use:   "get <name>",
	Short: "Print one session record as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openSessionsStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		rec, err := st.GetSession(cmd.Context(), args[0])
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("no session record %q", args[0])
		}
		if err != nil {
			return fmt.Errorf("get session: %w", err)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rec)
	},
}

var sessionsSetCmd = &cobra.Command{
	Use:   "set <name> [key=value...]",
	Short: "Replace a session record's data",
	Long: `Replace the data of a session record with the given key=value pairs.
The record's previous data is discarded wholesale, not merged.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data := make(map[string]string, len(args)-1)
		for _, pair := range args[1:] {
			idx := strings.IndexByte(pair, '=')
			if idx <= 0 {
				return fmt.Errorf("invalid pair %q: want key=value", pair)
			}
			data[pair[:idx]] = pair[idx+1:]
		}

		st, err := openSessionsStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		rec := model.SessionRecord{Name: args[0], Data: data}
		if err := st.PutSession(cmd.Context(), rec); err != nil {
			return fmt.Errorf("put session: %w", err)
		}
		return nil
	},
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a session record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openSessionsStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		err = st.DeleteSession(cmd.Context(), args[0])
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("no session record %q", args[0])
		}
		if err != nil {
			return fmt.Errorf("delete session: %w", err)
		}
		return nil
	},
}

// openSessionsStore resolves the database path from the --db flag or the
// config file and opens it.
func openSessionsStore(ctx context.Context) (*store.Store, error) {
	path := flagSessionsDB
	if path == "" {
		cfg, err := config.Load()
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		path = cfg.DBPath
	}
	st, err := store.Open(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", path, err)
	}
	return st, nil
}

func init() {
	sessionsCmd.PersistentFlags().StringVar(&flagSessionsDB, "db", "", "sqlite database path (default: from config)")
	sessionsCmd.AddCommand(sessionsListCmd, sessionsGetCmd, sessionsSetCmd, sessionsDeleteCmd)
	rootCmd.AddCommand(sessionsCmd)
}
