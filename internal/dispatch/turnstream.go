package dispatch

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// DefaultMaxContentLength bounds a turn event's truncated content field,
// same default as the teacher's transcript parser.
const DefaultMaxContentLength = 500

// Turn event type tags, the worker-process analog of the teacher's
// Claude Code transcript message types (spec §2.8 supplement: "worker turn
// JSONL with tool_use/file_write/shell_command entries").
const (
	TurnToolUse       = "tool_use"
	TurnFileWrite     = "file_write"
	TurnShellCommand  = "shell_command"
	TurnAssistantText = "assistant"
)

// TurnEvent is one parsed line of a worker's turn stream.
type TurnEvent struct {
	Type         string
	Timestamp    time.Time
	MessageIndex int

	// Content is the assistant's free text for TurnAssistantText events.
	Content string

	// ToolName and Input describe a TurnToolUse event.
	ToolName string
	Input    map[string]any

	// Path and FileContent describe a TurnFileWrite event: the proposed
	// write target and its new content, screened by the Safety Evaluator
	// before being allowed to land.
	Path        string
	FileContent string

	// Command describes a TurnShellCommand event.
	Command string

	TokensIn  int
	TokensOut int
}

// SafetyInputs returns the (content, path) pair the Safety Evaluator
// should screen for this event, or ("", "") if the event carries nothing
// worth screening (spec §4.8 step 4: "screen every proposed file write and
// every shell command").
func (e TurnEvent) SafetyInputs() (content, path string) {
	switch e.Type {
	case TurnFileWrite:
		return e.FileContent, e.Path
	case TurnShellCommand:
		return e.Command, ""
	case TurnToolUse:
		input, _ := json.Marshal(e.Input)
		return string(input), ""
	default:
		return "", ""
	}
}

// rawTurn is the wire shape of one JSONL line in a worker's turn stream.
type rawTurn struct {
	Type      string         `json:"type"`
	Timestamp string         `json:"timestamp"`
	Content   string         `json:"content,omitempty"`
	Tool      string         `json:"tool,omitempty"`
	Input     map[string]any `json:"input,omitempty"`
	Path      string         `json:"path,omitempty"`
	FileData  string         `json:"file_content,omitempty"`
	Command   string         `json:"command,omitempty"`
	TokensIn  int            `json:"tokens_in,omitempty"`
	TokensOut int            `json:"tokens_out,omitempty"`
}

func isValidTurnType(t string) bool {
	switch t {
	case TurnToolUse, TurnFileWrite, TurnShellCommand, TurnAssistantText:
		return true
	default:
		return false
	}
}

// TurnParser streams a worker's JSONL turn output into TurnEvents,
// adapted from the teacher's internal/parser.Parser: same line-oriented
// scanning and truncation idiom, repointed from Claude Code transcript
// messages to worker turn events.
type TurnParser struct {
	MaxContentLength int
	SkipMalformed    bool
}

// NewTurnParser returns a parser with the teacher's defaults.
func NewTurnParser() *TurnParser {
	return &TurnParser{MaxContentLength: DefaultMaxContentLength, SkipMalformed: true}
}

func (p *TurnParser) truncate(s string) string {
	if p.MaxContentLength <= 0 || len(s) <= p.MaxContentLength {
		return s
	}
	return s[:p.MaxContentLength] + "... [truncated]"
}

var timestampFormats = []string{time.RFC3339, "2006-01-02T15:04:05.000Z"}

func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if ts, err := time.Parse(format, s); err == nil {
			return ts
		}
	}
	return time.Time{}
}

func (p *TurnParser) parseLine(line []byte, lineNum int) (*TurnEvent, error) {
	var raw rawTurn
	if err := json.Unmarshal(line, &raw); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if !isValidTurnType(raw.Type) {
		return nil, nil
	}
	return &TurnEvent{
		Type:         raw.Type,
		Timestamp:    parseTimestamp(raw.Timestamp),
		MessageIndex: lineNum,
		Content:      p.truncate(raw.Content),
		ToolName:     raw.Tool,
		Input:        raw.Input,
		Path:         raw.Path,
		FileContent:  p.truncate(raw.FileData),
		Command:      raw.Command,
		TokensIn:     raw.TokensIn,
		TokensOut:    raw.TokensOut,
	}, nil
}

// TurnStreamResult is the outcome of parsing a full turn stream.
type TurnStreamResult struct {
	Events         []TurnEvent
	TotalLines     int
	MalformedLines int
	Errors         []error
}

// Parse reads JSONL from r and returns every well-formed turn event.
func (p *TurnParser) Parse(r io.Reader) (*TurnStreamResult, error) {
	result := &TurnStreamResult{}
	scanner := bufio.NewScanner(r)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		result.TotalLines = lineNum
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		event, err := p.parseLine(line, lineNum)
		if err != nil {
			result.MalformedLines++
			if !p.SkipMalformed {
				result.Errors = append(result.Errors, fmt.Errorf("line %d: %w", lineNum, err))
			}
			continue
		}
		if event != nil {
			result.Events = append(result.Events, *event)
		}
	}
	if err := scanner.Err(); err != nil {
		return result, fmt.Errorf("scanner error: %w", err)
	}
	return result, nil
}

// ParseChannel streams turn events from r as they arrive, for a live
// worker subprocess whose stdout is still being written. The channel
// closes when r reaches EOF or a read error occurs.
func (p *TurnParser) ParseChannel(r io.Reader) <-chan TurnEvent {
	out := make(chan TurnEvent, 64)
	go func() {
		defer close(out)
		scanner := bufio.NewScanner(r)
		buf := make([]byte, 0, 64*1024)
		scanner.Buffer(buf, 1024*1024)
		lineNum := 0
		for scanner.Scan() {
			lineNum++
			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}
			event, err := p.parseLine(line, lineNum)
			if err != nil {
				if !p.SkipMalformed {
					return
				}
				continue
			}
			if event != nil {
				out <- *event
			}
		}
	}()
	return out
}
