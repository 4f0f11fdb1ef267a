package gitsync

import (
	"errors"
	"fmt"
)

// Sentinel sync failures, matchable with errors.Is.
var (
	// ErrNotARepository means the destination exists but cannot be opened
	// as a git repository (stray file, plain directory, corrupt clone).
	ErrNotARepository = errors.New("destination is not a git repository")

	// ErrNonFastForward means the remote history no longer fast-forwards
	// onto the local branch; the clone has diverged from its upstream.
	ErrNonFastForward = errors.New("remote history does not fast-forward onto the local branch")

	// ErrPathInUse means another worker is already syncing the same
	// destination. Duplicate destinations are a caller bug; the duplicate
	// fails instead of racing the first sync.
	ErrPathInUse = errors.New("destination path already being synced")
)

// UnsavedChangesError reports a working tree with local modifications that
// updating would clobber. Count is the number of dirty entries.
type UnsavedChangesError struct {
	Count int
}

func (e *UnsavedChangesError) Error() string {
	if e.Count == 1 {
		return "working tree has 1 unsaved change"
	}
	return fmt.Sprintf("working tree has %d unsaved changes", e.Count)
}
