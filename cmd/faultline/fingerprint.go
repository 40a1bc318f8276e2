package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"basegraph.app/faultline/internal/fingerprint"
	"basegraph.app/faultline/internal/model"
)

var (
	fingerprintDims    int
	fingerprintLeading int
)

var fingerprintCmd = &cobra.Command{
	Use:   "fingerprint [text]",
	Short: "Print the hash fingerprint of a text (stdin when no argument is given)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text := strings.Join(args, " ")
		if len(args) == 0 {
			raw, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("reading stdin: %w", err)
			}
			text = string(raw)
		}

		fp, err := fingerprint.Generate(text, fingerprintDims)
		if err != nil {
			return err
		}
		printFingerprint(cmd.OutOrStdout(), fp, fingerprintLeading)
		return nil
	},
}

func init() {
	fingerprintCmd.Flags().IntVar(&fingerprintDims, "dims", model.DefaultDimensions, "Fingerprint dimensionality")
	fingerprintCmd.Flags().IntVar(&fingerprintLeading, "head", 8, "Number of leading components to print")
	rootCmd.AddCommand(fingerprintCmd)
}

func printFingerprint(w io.Writer, fp model.Fingerprint, head int) {
	fmt.Fprintf(w, "dimensions: %d\n", len(fp))
	fmt.Fprintf(w, "norm:       %.6f\n", fingerprint.Norm(fp))
	if head > len(fp) {
		head = len(fp)
	}
	parts := make([]string, 0, head)
	for _, v := range fp[:head] {
		parts = append(parts, fmt.Sprintf("%.6f", v))
	}
	fmt.Fprintf(w, "leading:    [%s]\n", strings.Join(parts, ", "))
}
