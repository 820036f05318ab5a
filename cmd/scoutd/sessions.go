package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/courtvision/scoutgraph/internal/settings"
	"github.com/courtvision/scoutgraph/pkg/flowgraph/session"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Inspect and remove stored conversations",
	Long:  `Lists the checkpoint history of a session, prints a stored snapshot, or removes sessions from the checkpoint store.`,
}

var sessionsHistoryCmd = &cobra.Command{
	Use:   "history <session-id>",
	Short: "List the checkpoints of a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSessions(cmd, func(ctx context.Context, m *session.Manager) error {
			return printHistory(ctx, cmd.OutOrStdout(), m, args[0])
		})
	},
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <session-id> <sequence>",
	Short: "Print a stored checkpoint",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		seq, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid sequence %q", args[1])
		}
		return withSessions(cmd, func(ctx context.Context, m *session.Manager) error {
			return printSnapshot(ctx, cmd.OutOrStdout(), m, args[0], seq)
		})
	},
}

var sessionsRmCmd = &cobra.Command{
	Use:   "rm <session-id>...",
	Short: "Remove one or more sessions",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSessions(cmd, func(ctx context.Context, m *session.Manager) error {
			for _, id := range args {
				if err := m.Delete(ctx, id); err != nil {
					return fmt.Errorf("remove %s: %w", id, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed session %s\n", id)
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
	sessionsCmd.AddCommand(sessionsHistoryCmd)
	sessionsCmd.AddCommand(sessionsShowCmd)
	sessionsCmd.AddCommand(sessionsRmCmd)
}

// withSessions opens only the checkpoint store; no model keys are needed.
func withSessions(cmd *cobra.Command, fn func(context.Context, *session.Manager) error) error {
	s, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	var client *redis.Client
	if s.Checkpoint.Backend == settings.BackendRedis {
		client = redis.NewClient(&redis.Options{Addr: s.Redis.Addr, Password: s.Redis.Password, DB: s.Redis.DB})
		defer client.Close()
	}
	store, err := openStore(s, client)
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.Setup(ctx); err != nil {
		return fmt.Errorf("set up checkpoint store: %w", err)
	}
	return fn(ctx, session.NewManager(store))
}

func printHistory(ctx context.Context, w io.Writer, m *session.Manager, sessionID string) error {
	infos, err := m.History(ctx, sessionID)
	if err != nil {
		return err
	}
	if len(infos) == 0 {
		fmt.Fprintf(w, "No checkpoints for session %s.\n", sessionID)
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SEQ\tNODE\tTIME\tBYTES")
	for _, info := range infos {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\n",
			info.Sequence, info.NodeID, info.Timestamp.UTC().Format(time.RFC3339), info.Size)
	}
	return tw.Flush()
}

func printSnapshot(ctx context.Context, w io.Writer, m *session.Manager, sessionID string, seq int) error {
	cp, err := m.Snapshot(ctx, sessionID, seq)
	if err != nil {
		return fmt.Errorf("load checkpoint %d of %s: %w", seq, sessionID, err)
	}
	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
