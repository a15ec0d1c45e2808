package formatter

import (
	"encoding/json"
	"io"

	"github.com/Boomerang-Apps/wave-sub010/internal/model"
)

// JSONLFormatter renders a session's audit log as JSON Lines: one signal
// per line, in sequence order, suitable for piping into jq or another
// session's replay input.
type JSONLFormatter struct {
	// Pretty enables indented JSON (not recommended for JSONL).
	Pretty bool
}

// NewJSONLFormatter creates a new JSONL formatter.
func NewJSONLFormatter() *JSONLFormatter {
	return &JSONLFormatter{Pretty: false}
}

// Extension returns the file extension for JSONL.
func (jf *JSONLFormatter) Extension() string {
	return ".jsonl"
}

// FormatSignals writes one JSON line per signal, in the order given.
func (jf *JSONLFormatter) FormatSignals(w io.Writer, signals []model.Signal) error {
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	if jf.Pretty {
		encoder.SetIndent("", "  ")
	}
	for _, s := range signals {
		if err := encoder.Encode(s); err != nil {
			return err
		}
	}
	return nil
}

// sessionSummary is the structure written for `wave session get -o json`.
type sessionSummary struct {
	SessionID    string                 `json:"session_id"`
	Status       model.SessionStatus    `json:"status"`
	HeadSequence uint64                 `json:"head_sequence"`
	Gates        map[string]model.Gate  `json:"story_gate_map"`
	Budget       model.BudgetLedger     `json:"budget"`
}

// FormatSession writes a session's status as one JSON line.
func (jf *JSONLFormatter) FormatSession(w io.Writer, session *model.Session, gates map[string]model.Gate) error {
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	if jf.Pretty {
		encoder.SetIndent("", "  ")
	}
	return encoder.Encode(sessionSummary{
		SessionID:    session.ID,
		Status:       session.Status,
		HeadSequence: session.HeadSequence,
		Gates:        gates,
		Budget:       session.Budget,
	})
}
