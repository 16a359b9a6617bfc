package main

import (
	"bytes"
	"fmt"
	"os"

	"github.com/espalierhq/espalier/pkg/adapters/file"
	"github.com/espalierhq/espalier/pkg/flow"
	"github.com/espalierhq/espalier/pkg/flow/cleanup"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate <board-file>",
	Short: "Repair a board's invariants and report whether it changed",
	Long: `Validate loads a board, runs the full cleanup pipeline over it and
compares the repaired form against the stored one. With --write the
repaired board is written back in place.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := loadBoardArg(cmd, args[0])
		if err != nil {
			return err
		}

		before, err := b.Marshal()
		if err != nil {
			return err
		}
		cleanup.Apply(b)
		after, err := b.Marshal()
		if err != nil {
			return err
		}

		if bytes.Equal(before, after) {
			fmt.Fprintln(os.Stdout, "board is clean")
			return nil
		}

		write, _ := cmd.Flags().GetBool("write")
		if !write {
			fmt.Fprintln(os.Stdout, "board needed repairs (re-run with --write to save)")
			return nil
		}
		if err := os.WriteFile(args[0], after, 0o644); err != nil {
			return fmt.Errorf("failed to write repaired board: %w", err)
		}
		fmt.Fprintln(os.Stdout, "board repaired")
		return nil
	},
}

func init() {
	validateCmd.Flags().Bool("write", false, "Write the repaired board back to the file")
	rootCmd.AddCommand(validateCmd)
}

// loadBoardArg resolves a board argument as a direct file path first,
// then as an ID in the configured board directory.
func loadBoardArg(cmd *cobra.Command, arg string) (*flow.Board, error) {
	if _, err := os.Stat(arg); err == nil {
		return file.LoadPath(arg)
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	store, err := file.NewBoardStore(cfg.Boards)
	if err != nil {
		return nil, err
	}
	return store.Load(cmd.Context(), arg)
}
