// Package formatter renders WAVE session state and audit logs for the
// control surface's human-facing output (spec §6's get-session and the
// supplemented `wave session audit`).
package formatter

import (
	"fmt"
	"io"
	"text/template"

	"github.com/Boomerang-Apps/wave-sub010/internal/model"
)

// MarkdownFormatter renders a session's status and audit trail as
// markdown, the same tabulated-report shape the teacher used for session
// summaries, repointed from transcript-derived knowledge sections to gate
// and signal history.
type MarkdownFormatter struct{}

// NewMarkdownFormatter creates a markdown formatter.
func NewMarkdownFormatter() *MarkdownFormatter {
	return &MarkdownFormatter{}
}

// Extension returns the file extension for markdown.
func (mf *MarkdownFormatter) Extension() string {
	return ".md"
}

// FormatSession writes a session's status, per-story gate map, and budget
// ledger as a markdown report.
func (mf *MarkdownFormatter) FormatSession(w io.Writer, session *model.Session, gates map[string]model.Gate) error {
	tmpl, err := template.New("session").Funcs(mf.templateFuncs()).Parse(sessionTemplate)
	if err != nil {
		return fmt.Errorf("parse template: %w", err)
	}
	return tmpl.Execute(w, sessionTemplateData{
		Session: session,
		Gates:   gates,
	})
}

// FormatAudit writes a session's signal history as a markdown timeline.
func (mf *MarkdownFormatter) FormatAudit(w io.Writer, sessionID string, signals []model.Signal) error {
	tmpl, err := template.New("audit").Funcs(mf.templateFuncs()).Parse(auditTemplate)
	if err != nil {
		return fmt.Errorf("parse template: %w", err)
	}
	return tmpl.Execute(w, auditTemplateData{
		SessionID: sessionID,
		Signals:   signals,
	})
}

type sessionTemplateData struct {
	Session *model.Session
	Gates   map[string]model.Gate
}

type auditTemplateData struct {
	SessionID string
	Signals   []model.Signal
}

func (mf *MarkdownFormatter) templateFuncs() template.FuncMap {
	return template.FuncMap{
		"usagePct": func(b model.BudgetLedger) string {
			return fmt.Sprintf("%.1f%%", b.UsageFraction()*100)
		},
	}
}

const sessionTemplate = `# Session {{ .Session.ID }}

**Status:** {{ .Session.Status }}
**Project:** {{ .Session.ProjectPath }}
**Head sequence:** {{ .Session.HeadSequence }}

## Gates

| Story | Current Gate |
|-------|--------------|
{{- range $story, $gate := .Gates }}
| {{ $story }} | {{ $gate }} |
{{- end }}

## Budget

- **Tokens in:** {{ .Session.Budget.TokensIn }}
- **Tokens out:** {{ .Session.Budget.TokensOut }}
- **Estimated cost (cents):** {{ .Session.Budget.EstimatedCost }}
- **Usage:** {{ usagePct .Session.Budget }}
`

const auditTemplate = `# Audit log — {{ .SessionID }}

| Sequence | Kind | Story | Producer | Timestamp |
|----------|------|-------|----------|-----------|
{{- range .Signals }}
| {{ .Sequence }} | {{ .Kind }} | {{ .StoryID }} | {{ .Producer }} | {{ .Timestamp.Format "2006-01-02T15:04:05Z07:00" }} |
{{- end }}
`
