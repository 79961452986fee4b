package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/user/graphchef/internal/types"
)

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().String("thread", "", "continue an existing thread by id")
	askCmd.Flags().Bool("verbose", false, "print the run log")
}

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a question directly, without the daemon",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		setupLogging(cfg)

		svc, store, _, err := buildService(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		threadID, _ := cmd.Flags().GetString("thread")
		verbose, _ := cmd.Flags().GetBool("verbose")
		question := strings.Join(args, " ")

		answer, err := svc.Ask(context.Background(), question, types.ThreadID(threadID))
		if err != nil {
			return err
		}

		if verbose {
			for _, line := range answer.Logs {
				fmt.Fprintln(os.Stderr, line)
			}
		}
		fmt.Fprintln(os.Stdout, answer.Response)
		fmt.Fprintf(os.Stderr, "thread: %s\n", answer.ThreadID)
		return nil
	},
}
