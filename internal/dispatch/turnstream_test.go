package dispatch

import (
	"strings"
	"testing"
)

func TestTurnParserParse(t *testing.T) {
	jsonl := `{"type":"assistant","timestamp":"2026-01-24T10:00:00.000Z","content":"starting work"}
{"type":"file_write","timestamp":"2026-01-24T10:00:05.000Z","path":"internal/widget/widget.go","file_content":"package widget"}
{"type":"shell_command","timestamp":"2026-01-24T10:00:06.000Z","command":"go test ./..."}
`
	p := NewTurnParser()
	result, err := p.Parse(strings.NewReader(jsonl))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if result.TotalLines != 3 {
		t.Errorf("TotalLines = %d, want 3", result.TotalLines)
	}
	if len(result.Events) != 3 {
		t.Fatalf("Events count = %d, want 3", len(result.Events))
	}
	if result.Events[1].Path != "internal/widget/widget.go" {
		t.Errorf("Events[1].Path = %q, want internal/widget/widget.go", result.Events[1].Path)
	}
	if result.Events[2].Command != "go test ./..." {
		t.Errorf("Events[2].Command = %q, want %q", result.Events[2].Command, "go test ./...")
	}
}

func TestTurnParserSkipsUnknownType(t *testing.T) {
	jsonl := `{"type":"heartbeat","timestamp":"2026-01-24T10:00:00.000Z"}
{"type":"assistant","timestamp":"2026-01-24T10:00:01.000Z","content":"ok"}
`
	p := NewTurnParser()
	result, err := p.Parse(strings.NewReader(jsonl))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(result.Events) != 1 {
		t.Fatalf("Events count = %d, want 1 (unknown type skipped)", len(result.Events))
	}
}

func TestTurnParserSkipMalformed(t *testing.T) {
	jsonl := `{"type":"assistant","content":"valid"}
{malformed
{"type":"assistant","content":"also valid"}
`
	p := NewTurnParser()
	result, err := p.Parse(strings.NewReader(jsonl))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if result.MalformedLines != 1 {
		t.Errorf("MalformedLines = %d, want 1", result.MalformedLines)
	}
	if len(result.Events) != 2 {
		t.Errorf("Events count = %d, want 2", len(result.Events))
	}
}

func TestTurnParserFailsOnMalformedWhenNotSkipping(t *testing.T) {
	p := NewTurnParser()
	p.SkipMalformed = false
	result, err := p.Parse(strings.NewReader("{not json"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(result.Errors) != 1 {
		t.Fatalf("Errors count = %d, want 1", len(result.Errors))
	}
}

func TestTurnParserTruncatesLongContent(t *testing.T) {
	p := NewTurnParser()
	p.MaxContentLength = 10
	long := strings.Repeat("x", 50)
	result, err := p.Parse(strings.NewReader(`{"type":"assistant","content":"` + long + `"}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !strings.HasSuffix(result.Events[0].Content, "[truncated]") {
		t.Errorf("Content = %q, want truncation suffix", result.Events[0].Content)
	}
}

func TestTurnEventSafetyInputs(t *testing.T) {
	tests := []struct {
		name        string
		event       TurnEvent
		wantContent string
		wantPath    string
	}{
		{"file write", TurnEvent{Type: TurnFileWrite, FileContent: "package x", Path: "x.go"}, "package x", "x.go"},
		{"shell command", TurnEvent{Type: TurnShellCommand, Command: "rm -rf ./dist"}, "rm -rf ./dist", ""},
		{"assistant text carries nothing to screen", TurnEvent{Type: TurnAssistantText, Content: "hello"}, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			content, path := tt.event.SafetyInputs()
			if content != tt.wantContent || path != tt.wantPath {
				t.Errorf("SafetyInputs() = (%q, %q), want (%q, %q)", content, path, tt.wantContent, tt.wantPath)
			}
		})
	}
}

func TestTurnParserParseChannelStreams(t *testing.T) {
	jsonl := `{"type":"assistant","content":"one"}
{"type":"assistant","content":"two"}
`
	p := NewTurnParser()
	ch := p.ParseChannel(strings.NewReader(jsonl))

	var got []string
	for event := range ch {
		got = append(got, event.Content)
	}
	if len(got) != 2 || got[0] != "one" || got[1] != "two" {
		t.Fatalf("streamed events = %v, want [one two]", got)
	}
}
