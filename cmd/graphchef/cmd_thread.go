package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/user/graphchef/internal/state"
	"github.com/user/graphchef/internal/types"
)

func init() {
	rootCmd.AddCommand(threadCmd)
	threadCmd.AddCommand(threadListCmd, threadShowCmd)
}

var threadCmd = &cobra.Command{
	Use:   "thread",
	Short: "Inspect conversation threads",
}

func openStore() (*state.Store, error) {
	cfg := loadConfig()
	return state.Open(filepath.Join(cfg.DataDir, "graphchef.db"))
}

var threadListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all threads",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer store.Close()

		ctx := context.Background()
		list, err := store.List(ctx)
		if err != nil {
			return fmt.Errorf("list threads: %w", err)
		}

		if len(list) == 0 {
			fmt.Println("No threads found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tKEY\tSTATUS\tMESSAGES\tUPDATED")
		for _, th := range list {
			count, err := store.Count(ctx, th.ID)
			if err != nil {
				count = 0
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
				th.ID,
				th.Key,
				th.Status,
				count,
				th.LastUpdatedAt.Format("2006-01-02 15:04:05"),
			)
		}
		return w.Flush()
	},
}

var threadShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show the messages in a thread",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer store.Close()

		ctx := context.Background()
		threadID := types.ThreadID(args[0])
		ok, err := store.Exists(ctx, threadID)
		if err != nil {
			return fmt.Errorf("check thread: %w", err)
		}
		if !ok {
			return fmt.Errorf("thread not found: %s", args[0])
		}

		messages, err := store.History(ctx, threadID)
		if err != nil {
			return fmt.Errorf("load history: %w", err)
		}

		for _, m := range messages {
			fmt.Fprintf(os.Stdout, "[%s] %s:\n%s\n\n",
				m.Timestamp.Format("2006-01-02 15:04:05"),
				m.Role,
				m.Content,
			)
		}
		return nil
	},
}
