// Package gitsource implements the version-control collaborator over a
// local clone of a git repository: clone-or-pull bootstrap, tree diffs,
// per-path history, and content reads at the current revision.
package gitsource

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"

	"github.com/markdex/markdex/internal/faults"
	"github.com/markdex/markdex/internal/revision"
)

// Config locates and authenticates the source repository.
type Config struct {
	// URL is the remote to clone on first use. Empty means the
	// directory must already contain a repository.
	URL string
	// Branch restricts the clone to a single branch when non-empty.
	Branch string
	// Dir is the local clone directory.
	Dir string
	// Username and Token enable basic auth on clone and pull.
	Username string
	Token    string
}

// Source is a git-backed document source.
type Source struct {
	repo   *git.Repository
	cfg    Config
	logger *slog.Logger
}

// Open opens the repository at cfg.Dir, cloning cfg.URL into it first
// when no repository exists yet.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*Source, error) {
	logger = logger.With("component", "gitsource")

	repo, err := git.PlainOpen(cfg.Dir)
	if errors.Is(err, git.ErrRepositoryNotExists) {
		if cfg.URL == "" {
			return nil, fmt.Errorf("no repository at %s and no remote configured: %w", cfg.Dir, faults.ErrNotFound)
		}
		logger.Info("cloning", "url", cfg.URL, "dir", cfg.Dir)
		opts := &git.CloneOptions{
			URL:  cfg.URL,
			Auth: cfg.auth(),
		}
		if cfg.Branch != "" {
			opts.ReferenceName = plumbing.NewBranchReferenceName(cfg.Branch)
			opts.SingleBranch = true
		}
		repo, err = git.PlainCloneContext(ctx, cfg.Dir, false, opts)
		if err != nil {
			return nil, fmt.Errorf("clone %s: %w", cfg.URL, faults.ErrUnreachable)
		}
	} else if err != nil {
		return nil, fmt.Errorf("open repository %s: %w", cfg.Dir, err)
	}

	return &Source{repo: repo, cfg: cfg, logger: logger}, nil
}

func (c Config) auth() *githttp.BasicAuth {
	if c.Token == "" {
		return nil
	}
	user := c.Username
	if user == "" {
		user = "token"
	}
	return &githttp.BasicAuth{Username: user, Password: c.Token}
}

// Pull fast-forwards the clone to the remote's latest state. A
// repository that is already up to date, or has no remote at all, is
// current by definition.
func (s *Source) Pull(ctx context.Context) error {
	if _, err := s.repo.Remote(git.DefaultRemoteName); errors.Is(err, git.ErrRemoteNotFound) {
		s.logger.Debug("no remote, skipping pull")
		return nil
	}
	wt, err := s.repo.Worktree()
	if err != nil {
		return fmt.Errorf("worktree: %w", err)
	}
	err = wt.PullContext(ctx, &git.PullOptions{Auth: s.cfg.auth()})
	if errors.Is(err, git.NoErrAlreadyUpToDate) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("pull: %w (%v)", faults.ErrUnreachable, err)
	}
	s.logger.Info("pulled remote changes")
	return nil
}

// Resolve resolves a revision reference (e.g. "HEAD", a branch, a
// hash) to a concrete revision.
func (s *Source) Resolve(ctx context.Context, ref string) (revision.Revision, error) {
	hash, err := s.repo.ResolveRevision(plumbing.Revision(ref))
	if err != nil {
		return revision.Revision{}, fmt.Errorf("resolve %q: %w", ref, faults.ErrNotFound)
	}
	commit, err := s.repo.CommitObject(*hash)
	if err != nil {
		return revision.Revision{}, fmt.Errorf("commit %s: %w", hash, faults.ErrNotFound)
	}
	return revision.Revision{ID: revision.ID(hash.String()), Time: commit.Committer.When}, nil
}

// DiffPaths returns the paths whose content differs between the trees
// of the two revisions. An empty to compares from against the empty
// tree, so every path in from's tree counts as changed.
func (s *Source) DiffPaths(ctx context.Context, from, to revision.ID) ([]string, error) {
	if from == to {
		return nil, nil
	}
	fromTree, err := s.treeOf(from)
	if err != nil {
		return nil, err
	}
	var toTree *object.Tree
	if to != "" {
		if toTree, err = s.treeOf(to); err != nil {
			return nil, err
		}
	}

	changes, err := object.DiffTreeWithOptions(ctx, toTree, fromTree, object.DefaultDiffTreeOptions)
	if err != nil {
		return nil, fmt.Errorf("diff trees %s..%s: %w", to, from, err)
	}

	set := make(map[string]struct{}, len(changes))
	for _, ch := range changes {
		if ch.From.Name != "" {
			set[ch.From.Name] = struct{}{}
		}
		if ch.To.Name != "" {
			set[ch.To.Name] = struct{}{}
		}
	}
	paths := make([]string, 0, len(set))
	for p := range set {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths, nil
}

// HistoryTouching returns the revisions that touched path, oldest
// first. The log walks newest-first; an ascending commit-time sort key
// turns it into the oldest-first order creation-time resolution needs.
func (s *Source) HistoryTouching(ctx context.Context, path string) ([]revision.Revision, error) {
	head, err := s.repo.ResolveRevision(plumbing.Revision("HEAD"))
	if err != nil {
		return nil, fmt.Errorf("resolve HEAD: %w", faults.ErrNotFound)
	}
	iter, err := s.repo.Log(&git.LogOptions{From: *head, FileName: &path})
	if err != nil {
		return nil, fmt.Errorf("log %s: %w", path, err)
	}
	defer iter.Close()

	var revs []revision.Revision
	err = iter.ForEach(func(c *object.Commit) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		revs = append(revs, revision.Revision{
			ID:   revision.ID(c.Hash.String()),
			Time: c.Committer.When,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk history of %s: %w", path, err)
	}
	sort.Slice(revs, func(i, j int) bool { return revs[i].Time.Before(revs[j].Time) })
	return revs, nil
}

// ReadBytes returns the content of path at the current HEAD revision.
func (s *Source) ReadBytes(ctx context.Context, path string) ([]byte, error) {
	tree, err := s.headTree()
	if err != nil {
		return nil, err
	}
	file, err := tree.File(path)
	if errors.Is(err, object.ErrFileNotFound) {
		return nil, fmt.Errorf("read %s: %w", path, faults.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	content, err := file.Contents()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return []byte(content), nil
}

// ListAllPaths enumerates every path in the tree of rev. An empty rev
// means HEAD.
func (s *Source) ListAllPaths(ctx context.Context, rev revision.ID) ([]string, error) {
	var tree *object.Tree
	var err error
	if rev == "" {
		tree, err = s.headTree()
	} else {
		tree, err = s.treeOf(rev)
	}
	if err != nil {
		return nil, err
	}

	var paths []string
	err = tree.Files().ForEach(func(f *object.File) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		paths = append(paths, f.Name)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list paths at %s: %w", rev, err)
	}
	sort.Strings(paths)
	return paths, nil
}

func (s *Source) headTree() (*object.Tree, error) {
	head, err := s.repo.ResolveRevision(plumbing.Revision("HEAD"))
	if err != nil {
		return nil, fmt.Errorf("resolve HEAD: %w", faults.ErrNotFound)
	}
	return s.treeOf(revision.ID(head.String()))
}

func (s *Source) treeOf(rev revision.ID) (*object.Tree, error) {
	commit, err := s.repo.CommitObject(plumbing.NewHash(string(rev)))
	if err != nil {
		return nil, fmt.Errorf("commit %s: %w", rev, faults.ErrNotFound)
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("tree of %s: %w", rev, err)
	}
	return tree, nil
}
