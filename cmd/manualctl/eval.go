package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kirillkom/manual-assistant/internal/evaluation"
)

var evalCmd = &cobra.Command{
	Use:   "eval <set.yaml>",
	Short: "Measure the answerability gate against a labeled query set",
	Long: `Eval runs retrieval, reranking and diversification for every labeled case,
without generating answers, then scores the gate under the configured floors
and under a sweep of alternative rerank and vector-score floors replayed
against the recorded candidates.`,
	Args: cobra.ExactArgs(1),
	RunE: runEval,
}

func runEval(cmd *cobra.Command, args []string) error {
	set, err := evaluation.LoadSetFile(args[0])
	if err != nil {
		return err
	}
	rerankFrom, _ := cmd.Flags().GetFloat64("rerank-from")
	rerankTo, _ := cmd.Flags().GetFloat64("rerank-to")
	baseFrom, _ := cmd.Flags().GetFloat64("base-from")
	baseTo, _ := cmd.Flags().GetFloat64("base-to")
	step, _ := cmd.Flags().GetFloat64("step")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	app, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer app.Close()

	report, err := evaluation.Evaluate(cmd.Context(), app.QueryUC, set, app.QueryUC.GateConfig(),
		evaluation.Floors(rerankFrom, rerankTo, step), evaluation.Floors(baseFrom, baseTo, step))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	fmt.Fprintf(out, "cases: %d  failed: %d\n\n", report.Cases, report.Errors)
	fmt.Fprintf(out, "%-12s  %-10s  %-8s  %-9s  %s\n", "Rerank floor", "Base floor", "Accuracy", "Precision", "Recall")
	fmt.Fprintln(out, strings.Repeat("-", 60))
	printPoint := func(rf, bf float64, s evaluation.Scores, mark string) {
		fmt.Fprintf(out, "%-12.2f  %-10.2f  %-8.3f  %-9.3f  %.3f %s\n", rf, bf, s.Accuracy, s.Precision, s.Recall, mark)
	}
	printPoint(report.Gate.RerankFloor, report.Gate.BaseFloor, report.Configured, "(configured)")
	for _, p := range report.Sweep {
		mark := ""
		if p == report.Best {
			mark = "(best)"
		}
		printPoint(p.RerankFloor, p.BaseFloor, p.Scores, mark)
	}
	return nil
}

func init() {
	evalCmd.Flags().Float64("rerank-from", 0.30, "lowest rerank floor in the sweep")
	evalCmd.Flags().Float64("rerank-to", 0.60, "highest rerank floor in the sweep")
	evalCmd.Flags().Float64("base-from", 0.25, "lowest vector-score floor in the sweep")
	evalCmd.Flags().Float64("base-to", 0.45, "highest vector-score floor in the sweep")
	evalCmd.Flags().Float64("step", 0.05, "sweep increment")
	evalCmd.Flags().Bool("json", false, "print the report as JSON")

	rootCmd.AddCommand(evalCmd)
}
