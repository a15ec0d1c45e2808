package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/Boomerang-Apps/wave-sub010/internal/model"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage WAVE sessions",
}

func init() {
	rootCmd.AddCommand(sessionCmd)
}

// --- session start ---

var (
	startProjectPath string
	startStoriesFile string
	startSessionID   string
)

var sessionStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Submit a new session to a running `wave serve` instance",
	RunE:  runSessionStart,
}

func init() {
	sessionStartCmd.Flags().StringVar(&startProjectPath, "project", "", "Project path the session operates on (required)")
	sessionStartCmd.Flags().StringVar(&startStoriesFile, "stories", "", "Path to a JSON array of stories (spec §6 story format, required)")
	sessionStartCmd.Flags().StringVar(&startSessionID, "id", "", "Session ID (default: a generated UUID)")
	_ = sessionStartCmd.MarkFlagRequired("project")
	_ = sessionStartCmd.MarkFlagRequired("stories")
	sessionCmd.AddCommand(sessionStartCmd)
}

func runSessionStart(cmd *cobra.Command, args []string) error {
	raw, err := os.ReadFile(startStoriesFile)
	if err != nil {
		return fmt.Errorf("read stories file: %w", err)
	}
	var stories []*model.Story
	if err := json.Unmarshal(raw, &stories); err != nil {
		return fmt.Errorf("parse stories file: %w", err)
	}
	for _, s := range stories {
		if err := validateStoryFormat(s); err != nil {
			return err
		}
	}

	id := startSessionID
	if id == "" {
		id = uuid.NewString()
	}
	session := model.Session{
		ID:          id,
		ProjectPath: startProjectPath,
		Stories:     stories,
	}

	out, err := apiPost("/sessions", session)
	if err != nil {
		return err
	}
	return printResult(out)
}

// validateStoryFormat enforces spec §6's story-format minima: at least
// three acceptance criteria and three stop conditions, plus the required
// identity/assignment fields.
func validateStoryFormat(s *model.Story) error {
	if s.ID == "" || s.Title == "" || s.Domain == "" || s.Role == "" {
		return fmt.Errorf("story missing id/title/domain/role")
	}
	if len(s.AcceptanceCriteria) < 3 {
		return fmt.Errorf("story %s: acceptance_criteria needs at least 3 entries", s.ID)
	}
	if len(s.StopConditions) < 3 {
		return fmt.Errorf("story %s: stop_conditions needs at least 3 entries", s.ID)
	}
	return nil
}

// --- session get ---

var sessionGetCmd = &cobra.Command{
	Use:   "get <session-id>",
	Short: "Show a session's status, gate map, and budget ledger",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := apiGet("/sessions/" + args[0])
		if err != nil {
			return err
		}
		return printResult(out)
	},
}

func init() { sessionCmd.AddCommand(sessionGetCmd) }

// --- session pause / resume / abort ---

var sessionPauseCmd = &cobra.Command{
	Use:   "pause <session-id>",
	Short: "Halt a session's driver without cancelling in-flight work",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := apiPost("/sessions/"+args[0]+"/pause", nil)
		if err != nil {
			return err
		}
		return printResult(out)
	},
}

var sessionResumeCmd = &cobra.Command{
	Use:   "resume <session-id>",
	Short: "Continue a paused session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := apiPost("/sessions/"+args[0]+"/resume", nil)
		if err != nil {
			return err
		}
		return printResult(out)
	},
}

var (
	abortReason string
)

var sessionAbortCmd = &cobra.Command{
	Use:   "abort <session-id>",
	Short: "Cancel a session's driver immediately",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := apiPost("/sessions/"+args[0]+"/abort", map[string]any{"reason": abortReason})
		if err != nil {
			return err
		}
		return printResult(out)
	},
}

var (
	stopReason string
	stopActor  string
)

var sessionEmergencyStopCmd = &cobra.Command{
	Use:   "emergency-stop <session-id>",
	Short: "Immediately abort one session and record who/why (spec §6)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := apiPost("/sessions/"+args[0]+"/emergency-stop", map[string]any{
			"reason": stopReason,
			"actor":  stopActor,
		})
		if err != nil {
			return err
		}
		return printResult(out)
	},
}

func init() {
	sessionAbortCmd.Flags().StringVar(&abortReason, "reason", "", "Reason recorded in the session's audit log")
	sessionEmergencyStopCmd.Flags().StringVar(&stopReason, "reason", "", "Reason recorded in the session's audit log")
	sessionEmergencyStopCmd.Flags().StringVar(&stopActor, "actor", "", "Operator identity recorded in the session's audit log")
	sessionCmd.AddCommand(sessionPauseCmd, sessionResumeCmd, sessionAbortCmd, sessionEmergencyStopCmd)
}

// --- session audit ---

var sessionAuditCmd = &cobra.Command{
	Use:   "audit <session-id>",
	Short: "Stream a session's full signal log",
	Long: `audit reads a session's checkpoint store directly (rather than
going through wave serve) since the audit trail is durable and meant to
survive the orchestrator process that wrote it.`,
	Args: cobra.ExactArgs(1),
	RunE: runSessionAudit,
}

func init() { sessionCmd.AddCommand(sessionAuditCmd) }

func runSessionAudit(cmd *cobra.Command, args []string) error {
	if err := ensureRuntime(); err != nil {
		return err
	}
	sessionID := args[0]
	_, signals, err := rt.Store.LoadLatest(cmd.Context(), sessionID)
	if err != nil {
		return fmt.Errorf("load audit log for %s: %w", sessionID, err)
	}
	return renderAudit(os.Stdout, sessionID, signals, cfg.Output)
}
