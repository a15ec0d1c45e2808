package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/Boomerang-Apps/wave-sub010/internal/formatter"
	"github.com/Boomerang-Apps/wave-sub010/internal/model"
)

// printResult renders a generic API response map per the --output flag.
// table is the default: one "key: value" line per field, sorted for
// deterministic output.
func printResult(out map[string]any) error {
	switch cfg.Output {
	case "json", "jsonl":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	default:
		keys := make([]string, 0, len(out))
		for k := range out {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Printf("%s: %v\n", k, out[k])
		}
		return nil
	}
}

// renderAudit writes a session's signal log in the requested format,
// reusing the same JSONL/markdown formatters `wave session get` uses.
func renderAudit(w io.Writer, sessionID string, signals []model.Signal, output string) error {
	switch output {
	case "markdown":
		return formatter.NewMarkdownFormatter().FormatAudit(w, sessionID, signals)
	default:
		return formatter.NewJSONLFormatter().FormatSignals(w, signals)
	}
}
