package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"basegraph.app/faultline/internal/diff"
	"basegraph.app/faultline/internal/recommend"
)

var changedFilesWithTests bool

var changedFilesCmd = &cobra.Command{
	Use:   "changed-files",
	Short: "Print the paths touched by a unified diff read from stdin",
	Long: `Print the paths touched by a unified diff read from stdin.

Examples:
  git diff main | faultline changed-files
  git diff main | faultline changed-files --tests   # also list candidate test files`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("reading stdin: %w", err)
		}

		out := cmd.OutOrStdout()
		for _, file := range diff.ExtractChangedFiles(string(raw)) {
			fmt.Fprintln(out, file)
			if !changedFilesWithTests {
				continue
			}
			for _, candidate := range recommend.TestFileCandidates(file) {
				if candidate != file {
					fmt.Fprintf(out, "  -> %s\n", candidate)
				}
			}
		}
		return nil
	},
}

func init() {
	changedFilesCmd.Flags().BoolVar(&changedFilesWithTests, "tests", false, "Also print candidate test files for each path")
	rootCmd.AddCommand(changedFilesCmd)
}
