package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run <board-file>",
	Short: "Execute a board and print the run record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := buildEngine(cmd)
		if err != nil {
			return err
		}

		b, err := loadBoardArg(cmd, args[0])
		if err != nil {
			return err
		}
		if err := engine.SaveBoard(cmd.Context(), b); err != nil {
			return err
		}

		event, _ := cmd.Flags().GetString("event")
		payload, err := payloadFlag(cmd)
		if err != nil {
			return err
		}

		run, execErr := engine.Run(cmd.Context(), b.ID, event, payload)
		if run != nil {
			out, err := json.MarshalIndent(run, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(os.Stdout, string(out))
		}
		return execErr
	},
}

func init() {
	runCmd.Flags().String("event", "", "ID of the event node to start from (defaults to the board's start nodes)")
	runCmd.Flags().String("payload", "", "JSON object of exposed variable overrides")
	rootCmd.AddCommand(runCmd)
}

func payloadFlag(cmd *cobra.Command) (map[string]any, error) {
	raw, _ := cmd.Flags().GetString("payload")
	if raw == "" {
		return nil, nil
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, fmt.Errorf("failed to parse payload: %w", err)
	}
	return payload, nil
}
