package workspace

import (
	"errors"
	"testing"

	"github.com/Boomerang-Apps/wave-sub010/internal/model"
)

func domainStory() *model.Story {
	return &model.Story{
		ID: "story-1",
		Files: model.FileRules{
			Create:    []string{"internal/auth"},
			Modify:    []string{"README.md"},
			Forbidden: []string{"internal/billing", ".env"},
		},
	}
}

func TestValidatePathsAllowsInAllowList(t *testing.T) {
	story := domainStory()
	if err := ValidatePaths(story, []string{"internal/auth/handler.go", "README.md"}); err != nil {
		t.Fatalf("expected allowed paths to pass, got %v", err)
	}
}

func TestValidatePathsRejectsForbidden(t *testing.T) {
	story := domainStory()
	err := ValidatePaths(story, []string{"internal/billing/invoice.go"})
	if !errors.Is(err, ErrBoundaryViolation) {
		t.Fatalf("expected ErrBoundaryViolation, got %v", err)
	}
}

func TestValidatePathsRejectsOutsideAllowList(t *testing.T) {
	story := domainStory()
	err := ValidatePaths(story, []string{"internal/search/index.go"})
	if !errors.Is(err, ErrBoundaryViolation) {
		t.Fatalf("expected ErrBoundaryViolation, got %v", err)
	}
}

func TestValidatePathsForbiddenWinsOverAllowed(t *testing.T) {
	story := domainStory()
	story.Files.Forbidden = append(story.Files.Forbidden, "internal/auth/secrets.go")
	err := ValidatePaths(story, []string{"internal/auth/secrets.go"})
	if !errors.Is(err, ErrBoundaryViolation) {
		t.Fatalf("expected forbidden to win over allow-list, got %v", err)
	}
}
