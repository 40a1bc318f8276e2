package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"basegraph.app/faultline/internal/http/dto"
	"basegraph.app/faultline/internal/model"
	"basegraph.app/faultline/internal/store"
	"basegraph.app/faultline/internal/triage"
)

var (
	processReport    string
	processSQLite    string
	processScope     string
	processFormat    string
	processTopK      int
	processThreshold float64
)

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Run a failure report through the triage pipeline offline",
	Long: `Run a failure report through the triage pipeline offline.

The report is the same JSON accepted by POST /api/v1/failures. Patterns are
kept in memory unless --sqlite names a database file to persist them in.

Examples:
  faultline process --report failure.json
  faultline process --report failure.json --sqlite patterns.db --scope group/web
  cat failure.json | faultline process --report - --format human`,
	Args: cobra.NoArgs,
	RunE: runProcess,
}

func init() {
	processCmd.Flags().StringVar(&processReport, "report", "", "Path to the report JSON, or - for stdin")
	processCmd.Flags().StringVar(&processSQLite, "sqlite", "", "SQLite database file for persistent patterns")
	processCmd.Flags().StringVar(&processScope, "scope", "default", "Scope (project) the pattern belongs to")
	processCmd.Flags().StringVar(&processFormat, "format", "json", "Output format (json, human)")
	processCmd.Flags().IntVar(&processTopK, "top-k", 0, "Maximum matches (default from MATCH_TOP_K)")
	processCmd.Flags().Float64Var(&processThreshold, "threshold", -1, "Similarity threshold (default from MATCH_THRESHOLD)")
	_ = processCmd.MarkFlagRequired("report")
	rootCmd.AddCommand(processCmd)
}

func runProcess(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	report, err := readReport(cmd.InOrStdin(), processReport)
	if err != nil {
		return err
	}

	var patterns store.PatternStore
	if processSQLite != "" {
		sqlite, err := store.OpenSQLitePatternStore(processSQLite, cfg.Embedding.Dimensions, cfg.Store.Timeout)
		if err != nil {
			return err
		}
		defer sqlite.Close()
		patterns = sqlite
	} else {
		patterns = store.NewMemoryPatternStore(cfg.Embedding.Dimensions)
	}

	processor, err := triage.NewFromConfig(cfg, patterns)
	if err != nil {
		return err
	}

	opts := processor.Defaults()
	if processTopK > 0 {
		opts.TopK = processTopK
	}
	if processThreshold >= 0 {
		opts.Threshold = processThreshold
	}

	res, err := processor.ProcessWithOptions(cmd.Context(), processScope, report, opts)
	if err != nil {
		return err
	}

	return writeResult(cmd.OutOrStdout(), res, processFormat)
}

func readReport(stdin io.Reader, path string) (model.FailureReport, error) {
	var raw []byte
	var err error
	if path == "-" {
		raw, err = io.ReadAll(stdin)
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return model.FailureReport{}, fmt.Errorf("reading report: %w", err)
	}

	var req dto.SubmitFailureRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return model.FailureReport{}, fmt.Errorf("decoding report: %w", err)
	}
	return req.Report(), nil
}

func writeResult(w io.Writer, res *triage.Result, format string) error {
	analysisText := ""
	if res.Analysis != nil {
		analysisText = res.Analysis.Text
	}

	if format == "human" {
		fmt.Fprintf(w, "Pattern %d stored (%d dimensions)\n\n", res.PatternID, res.Dimensions)
		fmt.Fprintf(w, "Analysis:\n  %s\n\n", analysisText)
		fmt.Fprintf(w, "Similar failures: %d\n", len(res.Matches))
		for _, m := range res.Matches {
			fmt.Fprintf(w, "  %-8s #%d  %s\n", dto.FormatSimilarity(m.Similarity), m.PatternID, m.Pattern.Summary)
		}
		fmt.Fprintf(w, "\nRecommended tests: %d\n", len(res.Recommendations))
		for _, r := range res.Recommendations {
			fmt.Fprintf(w, "  %.2f  %s  (%s)\n", r.ConfidenceScore, r.TestName, r.Reason)
		}
		return nil
	}

	changed := res.ChangedFiles
	if changed == nil {
		changed = []string{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(dto.SubmitFailureResponse{
		Status:          "processed",
		PatternID:       res.PatternID,
		Analysis:        analysisText,
		Matches:         dto.NewMatchResponses(res.Matches),
		Recommendations: dto.NewRecommendationResponses(res.Recommendations),
		ChangedFiles:    changed,
		Dimensions:      res.Dimensions,
	})
}
