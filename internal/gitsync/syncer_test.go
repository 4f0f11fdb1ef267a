package gitsync

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport/client"
	"github.com/go-git/go-git/v5/plumbing/transport/server"
	"go.uber.org/zap"

	"repovault/internal/provider"
)

// Local-path clones and fetches go through an in-process transport so the
// tests never shell out to a git binary.
func TestMain(m *testing.M) {
	client.InstallProtocol("file", server.NewClient(server.DefaultLoader))
	os.Exit(m.Run())
}

// initUpstream creates a repository with one commit and returns its worktree
// directory. Clone URLs must point at the .git directory inside it.
func initUpstream(t *testing.T) (string, *git.Repository) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "upstream")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir upstream: %v", err)
	}
	repo, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("init upstream: %v", err)
	}
	commitFile(t, repo, dir, "README.md", "hello\n", "initial commit")
	return dir, repo
}

func upstreamURL(dir string) string {
	return filepath.Join(dir, ".git")
}

func commitFile(t *testing.T, repo *git.Repository, dir, name, contents, msg string) plumbing.Hash {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(contents), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatalf("worktree: %v", err)
	}
	if _, err := wt.Add(name); err != nil {
		t.Fatalf("add %s: %v", name, err)
	}
	hash, err := wt.Commit(msg, &git.CommitOptions{
		Author: &object.Signature{Name: "Test", Email: "test@example.com", When: time.Now()},
	})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	return hash
}

func newTestSyncer(t *testing.T, root string) *GitSyncer {
	t.Helper()
	s, err := NewSyncer(root, 0, zap.NewNop())
	if err != nil {
		t.Fatalf("NewSyncer: %v", err)
	}
	return s
}

func headHash(t *testing.T, repo *git.Repository) plumbing.Hash {
	t.Helper()
	ref, err := repo.Head()
	if err != nil {
		t.Fatalf("head: %v", err)
	}
	return ref.Hash()
}

func TestSync_ClonesMissingDestination(t *testing.T) {
	upstream, upstreamRepo := initUpstream(t)
	root := t.TempDir()
	s := newTestSyncer(t, root)

	desc := provider.Descriptor{Dest: "github.com/acme/app", URL: upstreamURL(upstream)}
	action, err := s.Sync(context.Background(), desc)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if action != ActionCloned {
		t.Fatalf("action = %q, want %q", action, ActionCloned)
	}

	local := filepath.Join(root, "github.com", "acme", "app")
	if _, err := os.Stat(filepath.Join(local, "README.md")); err != nil {
		t.Fatalf("cloned worktree missing README.md: %v", err)
	}
	cloned, err := git.PlainOpen(local)
	if err != nil {
		t.Fatalf("open clone: %v", err)
	}
	if got, want := headHash(t, cloned), headHash(t, upstreamRepo); got != want {
		t.Fatalf("clone head = %s, want %s", got, want)
	}
}

func TestSync_SecondRunFetchesCleanly(t *testing.T) {
	upstream, upstreamRepo := initUpstream(t)
	root := t.TempDir()
	s := newTestSyncer(t, root)
	desc := provider.Descriptor{Dest: "github.com/acme/app", URL: upstreamURL(upstream)}

	if _, err := s.Sync(context.Background(), desc); err != nil {
		t.Fatalf("first Sync: %v", err)
	}

	// Nothing changed upstream; the second pass must still succeed.
	action, err := s.Sync(context.Background(), desc)
	if err != nil {
		t.Fatalf("second Sync: %v", err)
	}
	if action != ActionFetched {
		t.Fatalf("action = %q, want %q", action, ActionFetched)
	}

	want := commitFile(t, upstreamRepo, upstream, "NEWS.md", "news\n", "second commit")
	if _, err := s.Sync(context.Background(), desc); err != nil {
		t.Fatalf("third Sync: %v", err)
	}
	cloned, err := git.PlainOpen(filepath.Join(root, "github.com", "acme", "app"))
	if err != nil {
		t.Fatalf("open clone: %v", err)
	}
	if got := headHash(t, cloned); got != want {
		t.Fatalf("clone head = %s, want %s after upstream advanced", got, want)
	}
}

func TestSync_ClonesIntoEmptyDirectory(t *testing.T) {
	upstream, _ := initUpstream(t)
	root := t.TempDir()
	s := newTestSyncer(t, root)

	local := filepath.Join(root, "github.com", "acme", "app")
	if err := os.MkdirAll(local, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	desc := provider.Descriptor{Dest: "github.com/acme/app", URL: upstreamURL(upstream)}
	action, err := s.Sync(context.Background(), desc)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if action != ActionCloned {
		t.Fatalf("action = %q, want %q", action, ActionCloned)
	}
}

func TestSync_RejectsNonRepositoryDestination(t *testing.T) {
	upstream, _ := initUpstream(t)
	root := t.TempDir()
	s := newTestSyncer(t, root)
	desc := provider.Descriptor{Dest: "github.com/acme/app", URL: upstreamURL(upstream)}
	local := filepath.Join(root, "github.com", "acme", "app")

	t.Run("directory with foreign contents", func(t *testing.T) {
		if err := os.MkdirAll(local, 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(filepath.Join(local, "notes.txt"), []byte("x"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		_, err := s.Sync(context.Background(), desc)
		if !errors.Is(err, ErrNotARepository) {
			t.Fatalf("Sync error = %v, want ErrNotARepository", err)
		}
	})

	t.Run("regular file at destination", func(t *testing.T) {
		if err := os.RemoveAll(local); err != nil {
			t.Fatalf("cleanup: %v", err)
		}
		if err := os.WriteFile(local, []byte("x"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		_, err := s.Sync(context.Background(), desc)
		if !errors.Is(err, ErrNotARepository) {
			t.Fatalf("Sync error = %v, want ErrNotARepository", err)
		}
	})
}

func TestSync_ReportsUnsavedChanges(t *testing.T) {
	upstream, _ := initUpstream(t)
	root := t.TempDir()
	s := newTestSyncer(t, root)
	desc := provider.Descriptor{Dest: "github.com/acme/app", URL: upstreamURL(upstream)}

	if _, err := s.Sync(context.Background(), desc); err != nil {
		t.Fatalf("clone: %v", err)
	}

	local := filepath.Join(root, "github.com", "acme", "app")
	if err := os.WriteFile(filepath.Join(local, "README.md"), []byte("edited\n"), 0o644); err != nil {
		t.Fatalf("edit: %v", err)
	}
	if err := os.WriteFile(filepath.Join(local, "scratch.txt"), []byte("wip\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	_, err := s.Sync(context.Background(), desc)
	var unsaved *UnsavedChangesError
	if !errors.As(err, &unsaved) {
		t.Fatalf("Sync error = %v, want UnsavedChangesError", err)
	}
	if unsaved.Count != 2 {
		t.Fatalf("unsaved count = %d, want 2", unsaved.Count)
	}
}

func TestSync_ReportsDivergedClone(t *testing.T) {
	upstream, upstreamRepo := initUpstream(t)
	root := t.TempDir()
	s := newTestSyncer(t, root)
	desc := provider.Descriptor{Dest: "github.com/acme/app", URL: upstreamURL(upstream)}

	if _, err := s.Sync(context.Background(), desc); err != nil {
		t.Fatalf("clone: %v", err)
	}

	local := filepath.Join(root, "github.com", "acme", "app")
	cloned, err := git.PlainOpen(local)
	if err != nil {
		t.Fatalf("open clone: %v", err)
	}
	commitFile(t, cloned, local, "local.txt", "local work\n", "local commit")
	commitFile(t, upstreamRepo, upstream, "remote.txt", "remote work\n", "remote commit")

	_, err = s.Sync(context.Background(), desc)
	if !errors.Is(err, ErrNonFastForward) {
		t.Fatalf("Sync error = %v, want ErrNonFastForward", err)
	}
}

func TestSync_FailedCloneLeavesNothingBehind(t *testing.T) {
	root := t.TempDir()
	s := newTestSyncer(t, root)

	desc := provider.Descriptor{
		Dest: "github.com/acme/gone",
		URL:  filepath.Join(t.TempDir(), "missing", ".git"),
	}
	if _, err := s.Sync(context.Background(), desc); err == nil {
		t.Fatal("Sync succeeded against a missing upstream")
	}

	local := filepath.Join(root, "github.com", "acme", "gone")
	if _, err := os.Stat(local); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("stat %s after failed clone: err = %v, want not-exist", local, err)
	}
}

func TestNewSyncer_Validation(t *testing.T) {
	if _, err := NewSyncer("", 0, zap.NewNop()); err == nil {
		t.Fatal("NewSyncer accepted an empty root")
	}
	if _, err := NewSyncer(t.TempDir(), 0, nil); err == nil {
		t.Fatal("NewSyncer accepted a nil logger")
	}
}
