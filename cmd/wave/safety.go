package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Boomerang-Apps/wave-sub010/internal/model"
)

var safetyCmd = &cobra.Command{
	Use:   "safety",
	Short: "Inspect the safety evaluator",
}

var safetyCheckCmd = &cobra.Command{
	Use:   "check [file]",
	Short: "Run the safety evaluator standalone against a file or stdin",
	Long: `check scores a file's content (or stdin, if no file is given) the
same way the dispatcher screens a proposed write, without a dispatch or a
workspace — useful for story authors tuning allow/deny lists before
submission.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSafetyCheck,
}

func init() {
	rootCmd.AddCommand(safetyCmd)
	safetyCmd.AddCommand(safetyCheckCmd)
}

func runSafetyCheck(cmd *cobra.Command, args []string) error {
	if err := ensureRuntime(); err != nil {
		return err
	}
	var (
		content []byte
		path    string
		err     error
	)
	if len(args) == 1 {
		path = args[0]
		content, err = os.ReadFile(path)
	} else {
		content, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		return fmt.Errorf("read content: %w", err)
	}

	verdict := rt.Safety.Evaluate(string(content), path, &model.Story{})

	if cfg.Output == "json" || cfg.Output == "jsonl" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(verdict)
	}

	fmt.Printf("recommendation: %s\n", verdict.Recommendation)
	fmt.Printf("score: %.3f\n", verdict.Score)
	if len(verdict.Violations) > 0 {
		fmt.Println("violations:")
		for _, v := range verdict.Violations {
			fmt.Printf("  - %s (x%.2f): %s\n", v.Kind, v.Penalty, v.Description)
		}
	}
	if len(verdict.Risks) > 0 {
		fmt.Println("risks:")
		for _, r := range verdict.Risks {
			fmt.Printf("  - %s\n", r)
		}
	}
	return nil
}
