package gitsource

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdex/markdex/internal/faults"
	"github.com/markdex/markdex/internal/revision"
)

type testRepo struct {
	dir  string
	repo *git.Repository
	wt   *git.Worktree
}

func initRepo(t *testing.T) *testRepo {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)
	return &testRepo{dir: dir, repo: repo, wt: wt}
}

func (r *testRepo) commitFile(t *testing.T, path, content string, when time.Time) revision.ID {
	t.Helper()
	full := filepath.Join(r.dir, filepath.FromSlash(path))
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	_, err := r.wt.Add(path)
	require.NoError(t, err)
	sig := &object.Signature{Name: "tester", Email: "tester@example.com", When: when}
	hash, err := r.wt.Commit("update "+path, &git.CommitOptions{Author: sig, Committer: sig})
	require.NoError(t, err)
	return revision.ID(hash.String())
}

func (r *testRepo) deleteFile(t *testing.T, path string, when time.Time) revision.ID {
	t.Helper()
	_, err := r.wt.Remove(path)
	require.NoError(t, err)
	sig := &object.Signature{Name: "tester", Email: "tester@example.com", When: when}
	hash, err := r.wt.Commit("delete "+path, &git.CommitOptions{Author: sig, Committer: sig})
	require.NoError(t, err)
	return revision.ID(hash.String())
}

func openSource(t *testing.T, dir string) *Source {
	t.Helper()
	src, err := Open(context.Background(), Config{Dir: dir}, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	return src
}

var (
	t0 = time.Date(2022, 1, 1, 10, 0, 0, 0, time.UTC)
	t1 = time.Date(2022, 2, 1, 10, 0, 0, 0, time.UTC)
	t2 = time.Date(2022, 3, 1, 10, 0, 0, 0, time.UTC)
)

func TestOpen_MissingRepositoryWithoutRemote(t *testing.T) {
	_, err := Open(context.Background(), Config{Dir: t.TempDir()}, slog.New(slog.DiscardHandler))

	require.Error(t, err)
	assert.True(t, faults.IsNotFound(err))
}

func TestOpen_ClonesLocalRemote(t *testing.T) {
	upstream := initRepo(t)
	upstream.commitFile(t, "a.md", "content", t0)

	clone := t.TempDir()
	src, err := Open(context.Background(), Config{URL: upstream.dir, Dir: clone}, slog.New(slog.DiscardHandler))

	require.NoError(t, err)
	raw, err := src.ReadBytes(context.Background(), "a.md")
	require.NoError(t, err)
	assert.Equal(t, "content", string(raw))
}

func TestSource_Pull_AlreadyUpToDateIsSuccess(t *testing.T) {
	upstream := initRepo(t)
	upstream.commitFile(t, "a.md", "content", t0)
	clone := t.TempDir()
	src, err := Open(context.Background(), Config{URL: upstream.dir, Dir: clone}, slog.New(slog.DiscardHandler))
	require.NoError(t, err)

	assert.NoError(t, src.Pull(context.Background()))
}

func TestSource_Pull_NoRemoteIsCurrent(t *testing.T) {
	repo := initRepo(t)
	repo.commitFile(t, "a.md", "content", t0)
	src := openSource(t, repo.dir)

	assert.NoError(t, src.Pull(context.Background()))
}

func TestSource_Resolve_Head(t *testing.T) {
	repo := initRepo(t)
	want := repo.commitFile(t, "a.md", "content", t0)
	src := openSource(t, repo.dir)

	rev, err := src.Resolve(context.Background(), "HEAD")

	require.NoError(t, err)
	assert.Equal(t, want, rev.ID)
	assert.True(t, rev.Time.Equal(t0))
}

func TestSource_Resolve_UnknownRefIsNotFound(t *testing.T) {
	repo := initRepo(t)
	repo.commitFile(t, "a.md", "content", t0)
	src := openSource(t, repo.dir)

	_, err := src.Resolve(context.Background(), "no-such-branch")

	require.Error(t, err)
	assert.True(t, faults.IsNotFound(err))
}

func TestSource_DiffPaths_BetweenRevisions(t *testing.T) {
	repo := initRepo(t)
	base := repo.commitFile(t, "a.md", "v1", t0)
	repo.commitFile(t, "b.md", "new file", t1)
	head := repo.commitFile(t, "a.md", "v2", t2)
	src := openSource(t, repo.dir)

	paths, err := src.DiffPaths(context.Background(), head, base)

	require.NoError(t, err)
	assert.Equal(t, []string{"a.md", "b.md"}, paths)
}

func TestSource_DiffPaths_SameRevisionIsEmpty(t *testing.T) {
	repo := initRepo(t)
	head := repo.commitFile(t, "a.md", "v1", t0)
	src := openSource(t, repo.dir)

	paths, err := src.DiffPaths(context.Background(), head, head)

	require.NoError(t, err)
	assert.Empty(t, paths)
}

func TestSource_DiffPaths_NoLowerBoundCoversWholeTree(t *testing.T) {
	repo := initRepo(t)
	repo.commitFile(t, "a.md", "v1", t0)
	head := repo.commitFile(t, "docs/b.md", "v1", t1)
	src := openSource(t, repo.dir)

	paths, err := src.DiffPaths(context.Background(), head, "")

	require.NoError(t, err)
	assert.Equal(t, []string{"a.md", "docs/b.md"}, paths)
}

func TestSource_DiffPaths_IncludesDeletions(t *testing.T) {
	repo := initRepo(t)
	base := repo.commitFile(t, "a.md", "v1", t0)
	head := repo.deleteFile(t, "a.md", t1)
	src := openSource(t, repo.dir)

	paths, err := src.DiffPaths(context.Background(), head, base)

	require.NoError(t, err)
	assert.Equal(t, []string{"a.md"}, paths)
}

func TestSource_HistoryTouching_OldestFirst(t *testing.T) {
	repo := initRepo(t)
	first := repo.commitFile(t, "a.md", "v1", t0)
	repo.commitFile(t, "other.md", "unrelated", t1)
	last := repo.commitFile(t, "a.md", "v2", t2)
	src := openSource(t, repo.dir)

	revs, err := src.HistoryTouching(context.Background(), "a.md")

	require.NoError(t, err)
	require.Len(t, revs, 2)
	assert.Equal(t, first, revs[0].ID)
	assert.Equal(t, last, revs[1].ID)
	assert.True(t, revs[0].Time.Equal(t0))
}

func TestSource_HistoryTouching_UntouchedPathIsEmpty(t *testing.T) {
	repo := initRepo(t)
	repo.commitFile(t, "a.md", "v1", t0)
	src := openSource(t, repo.dir)

	revs, err := src.HistoryTouching(context.Background(), "never-existed.md")

	require.NoError(t, err)
	assert.Empty(t, revs)
}

func TestSource_ReadBytes_MissingPathIsNotFound(t *testing.T) {
	repo := initRepo(t)
	repo.commitFile(t, "a.md", "v1", t0)
	src := openSource(t, repo.dir)

	_, err := src.ReadBytes(context.Background(), "missing.md")

	require.Error(t, err)
	assert.True(t, faults.IsNotFound(err))
}

func TestSource_ListAllPaths_AtRevision(t *testing.T) {
	repo := initRepo(t)
	base := repo.commitFile(t, "a.md", "v1", t0)
	repo.commitFile(t, "docs/b.md", "v1", t1)
	src := openSource(t, repo.dir)

	atBase, err := src.ListAllPaths(context.Background(), base)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.md"}, atBase)

	atHead, err := src.ListAllPaths(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.md", "docs/b.md"}, atHead)
}
