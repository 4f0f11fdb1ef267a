// Package gitsync mirrors remote repositories into a local root, either by
// cloning them fresh or by fast-forwarding an existing clone, and runs those
// operations through a fixed-size worker pool.
package gitsync

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	git "github.com/go-git/go-git/v5"
	"go.uber.org/zap"

	"repovault/internal/provider"
)

// Action reports which operation a successful sync performed.
type Action string

const (
	// ActionCloned means the destination did not exist and was cloned.
	ActionCloned Action = "cloned"
	// ActionFetched means an existing clone was brought up to date.
	ActionFetched Action = "fetched"
)

// Syncer mirrors a single repository described by a provider descriptor.
type Syncer interface {
	Sync(ctx context.Context, desc provider.Descriptor) (Action, error)
}

// GitSyncer implements Syncer on go-git. It never shells out to a git
// binary, so submodule and tag handling follow go-git semantics.
type GitSyncer struct {
	root    string
	timeout time.Duration
	logger  *zap.Logger
}

// NewSyncer returns a syncer that mirrors repositories under root. A zero
// timeout disables the per-repository deadline.
func NewSyncer(root string, timeout time.Duration, logger *zap.Logger) (*GitSyncer, error) {
	if root == "" {
		return nil, errors.New("gitsync: root must not be empty")
	}
	if logger == nil {
		return nil, errors.New("gitsync: logger must not be nil")
	}
	return &GitSyncer{root: root, timeout: timeout, logger: logger.Named("sync")}, nil
}

// Sync clones desc.URL into root/desc.Dest when the destination is missing
// or an empty directory, and otherwise fast-forwards the clone already
// there. Running it twice in a row is safe; the second pass fetches and
// finds nothing to do.
func (s *GitSyncer) Sync(ctx context.Context, desc provider.Descriptor) (Action, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	local := filepath.Join(s.root, filepath.FromSlash(desc.Dest))

	fresh, err := needsClone(local)
	if err != nil {
		return "", fmt.Errorf("inspect %s: %w", local, err)
	}
	if fresh {
		if err := s.clone(ctx, desc.URL, local); err != nil {
			return "", fmt.Errorf("clone %s into %s: %w", desc.URL, local, err)
		}
		return ActionCloned, nil
	}
	if err := s.update(ctx, local); err != nil {
		return "", fmt.Errorf("update %s: %w", local, err)
	}
	return ActionFetched, nil
}

// needsClone reports whether local is absent or an empty directory. A
// regular file squatting on the destination is ErrNotARepository so the
// caller never clones over it.
func needsClone(local string) (bool, error) {
	info, err := os.Stat(local)
	if errors.Is(err, os.ErrNotExist) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	if !info.IsDir() {
		return false, ErrNotARepository
	}
	entries, err := os.ReadDir(local)
	if err != nil {
		return false, err
	}
	return len(entries) == 0, nil
}

func (s *GitSyncer) clone(ctx context.Context, url, local string) error {
	s.logger.Debug("cloning", zap.String("url", url), zap.String("into", local))
	if err := os.MkdirAll(filepath.Dir(local), 0o755); err != nil {
		return err
	}
	_, err := git.PlainCloneContext(ctx, local, false, &git.CloneOptions{
		URL:               url,
		RecurseSubmodules: git.DefaultSubmoduleRecursionDepth,
		Tags:              git.AllTags,
	})
	if err != nil {
		// A failed clone must not leave a half-written tree behind, or the
		// next run would try to update it and hit ErrNotARepository.
		_ = os.RemoveAll(local)
		return err
	}
	return nil
}

func (s *GitSyncer) update(ctx context.Context, local string) error {
	s.logger.Debug("updating", zap.String("path", local))

	repo, err := git.PlainOpen(local)
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return ErrNotARepository
		}
		return fmt.Errorf("open repository: %w", err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("open working tree: %w", err)
	}

	status, err := wt.Status()
	if err != nil {
		return fmt.Errorf("read working tree status: %w", err)
	}
	if dirty := countDirty(status); dirty > 0 {
		return &UnsavedChangesError{Count: dirty}
	}

	err = repo.FetchContext(ctx, &git.FetchOptions{
		Prune: true,
		Tags:  git.AllTags,
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return fmt.Errorf("fetch: %w", err)
	}

	err = wt.PullContext(ctx, &git.PullOptions{
		RecurseSubmodules: git.DefaultSubmoduleRecursionDepth,
	})
	switch {
	case err == nil, errors.Is(err, git.NoErrAlreadyUpToDate):
		return nil
	case errors.Is(err, git.ErrNonFastForwardUpdate):
		return ErrNonFastForward
	default:
		return fmt.Errorf("fast-forward: %w", err)
	}
}

func countDirty(status git.Status) int {
	n := 0
	for _, entry := range status {
		if entry.Staging != git.Unmodified || entry.Worktree != git.Unmodified {
			n++
		}
	}
	return n
}
