package workspace

import "errors"

// Sentinel errors for the workspace package, matched with errors.Is.
var (
	// ErrNotGitRepo is returned when the project path is not a git repository.
	ErrNotGitRepo = errors.New("not a git repository")

	// ErrResolveBaseRevision is returned when base-revision cannot be resolved
	// to a concrete commit.
	ErrResolveBaseRevision = errors.New("unable to resolve base revision")

	// ErrWorktreeCollision is returned after repeated failures to allocate a
	// unique scratch directory.
	ErrWorktreeCollision = errors.New("failed to allocate a unique workspace path")

	// ErrUnknownWorkspace is returned when Release is called with a workspace
	// this provider did not allocate.
	ErrUnknownWorkspace = errors.New("unknown workspace")

	// ErrBoundaryViolation is returned when a change set touches a path
	// outside the story's allow-list or inside its deny-list (spec §4.6).
	ErrBoundaryViolation = errors.New("workspace boundary violation")
)
