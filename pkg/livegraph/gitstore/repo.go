package gitstore

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
)

const (
	graphsDir    = "graphs"
	ignorePolicy = ".locks/\n*.tmp\n"
)

// graphPath is the repository-relative path of a graph document.
func graphPath(name string) string {
	return graphsDir + "/" + name + ".json"
}

// repo wraps the go-git repository and its worktree. Callers hold
// Service.mu around every method.
type repo struct {
	dir    string
	branch plumbing.ReferenceName
	git    *git.Repository
	wt     *git.Worktree
}

// openRepo opens the repository at dir, creating it if needed. created
// reports whether the state branch was just created and must be seeded.
func openRepo(dir, branch string) (r *repo, created bool, err error) {
	ref := plumbing.NewBranchReferenceName(branch)

	g, err := git.PlainOpen(dir)
	switch {
	case errors.Is(err, git.ErrRepositoryNotExists):
		g, err = git.PlainInitWithOptions(dir, &git.PlainInitOptions{
			InitOptions: git.InitOptions{DefaultBranch: ref},
		})
		if err != nil {
			return nil, false, fmt.Errorf("init repository: %w", err)
		}
		created = true
	case err != nil:
		return nil, false, fmt.Errorf("open repository: %w", err)
	}

	wt, err := g.Worktree()
	if err != nil {
		return nil, false, fmt.Errorf("open worktree: %w", err)
	}
	r = &repo{dir: dir, branch: ref, git: g, wt: wt}

	if !created {
		created, err = r.ensureBranch()
		if err != nil {
			return nil, false, err
		}
	}
	return r, created, nil
}

// ensureBranch makes the state branch exist and be checked out. It returns
// true when the branch had no commits before.
func (r *repo) ensureBranch() (bool, error) {
	_, err := r.git.Reference(r.branch, false)
	if err == nil {
		return false, r.checkout()
	}
	if !errors.Is(err, plumbing.ErrReferenceNotFound) {
		return false, fmt.Errorf("read branch %s: %w", r.branch, err)
	}

	head, err := r.git.Head()
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		// Empty repository: point HEAD at the branch and let the seed
		// commit create it.
		if err := r.git.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, r.branch)); err != nil {
			return false, fmt.Errorf("set HEAD: %w", err)
		}
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("read HEAD: %w", err)
	}

	if err := r.git.Storer.SetReference(plumbing.NewHashReference(r.branch, head.Hash())); err != nil {
		return false, fmt.Errorf("create branch %s: %w", r.branch, err)
	}
	return true, r.checkout()
}

func (r *repo) checkout() error {
	head, err := r.git.Reference(plumbing.HEAD, false)
	if err == nil && head.Type() == plumbing.SymbolicReference && head.Target() == r.branch {
		return nil
	}
	if err := r.wt.Checkout(&git.CheckoutOptions{Branch: r.branch, Keep: true}); err != nil {
		return fmt.Errorf("checkout %s: %w", r.branch, err)
	}
	return nil
}

// abs returns the filesystem path of a repository-relative path.
func (r *repo) abs(rel string) string {
	return filepath.Join(r.dir, filepath.FromSlash(rel))
}

// headCommit returns the branch head, or nil for a branch with no commits.
func (r *repo) headCommit() (*object.Commit, error) {
	ref, err := r.git.Reference(r.branch, true)
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", r.branch, err)
	}
	c, err := r.git.CommitObject(ref.Hash())
	if err != nil {
		return nil, fmt.Errorf("load commit %s: %w", ref.Hash(), err)
	}
	return c, nil
}

// readAt returns the content of rel in commit c. ok is false when the file
// does not exist there.
func readAt(c *object.Commit, rel string) (data []byte, ok bool, err error) {
	if c == nil {
		return nil, false, nil
	}
	f, err := c.File(rel)
	if errors.Is(err, object.ErrFileNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read %s at %s: %w", rel, c.Hash, err)
	}
	contents, err := f.Contents()
	if err != nil {
		return nil, false, fmt.Errorf("read %s at %s: %w", rel, c.Hash, err)
	}
	return []byte(contents), true, nil
}

// readHead returns the content of rel at the branch head.
func (r *repo) readHead(rel string) ([]byte, bool, error) {
	c, err := r.headCommit()
	if err != nil {
		return nil, false, err
	}
	return readAt(c, rel)
}

// stage adds rel to the index.
func (r *repo) stage(rel string) error {
	if _, err := r.wt.Add(rel); err != nil {
		return fmt.Errorf("stage %s: %w", rel, err)
	}
	return nil
}

// commit records the index as a new commit on the branch.
func (r *repo) commit(message string, author Author, when time.Time) (plumbing.Hash, error) {
	sig := &object.Signature{Name: author.Name, Email: author.Email, When: when}
	return r.wt.Commit(message, &git.CommitOptions{Author: sig, Committer: sig})
}

// unstage resets the index to the branch head, leaving the working tree
// alone.
func (r *repo) unstage() error {
	c, err := r.headCommit()
	if err != nil {
		return err
	}
	if c == nil {
		return nil
	}
	if err := r.wt.Reset(&git.ResetOptions{Commit: c.Hash, Mode: git.MixedReset}); err != nil {
		return fmt.Errorf("unstage: %w", err)
	}
	return nil
}

// Revision is one commit that touched a graph document.
type Revision struct {
	Commit  string    `json:"commit" yaml:"commit"`
	Version int       `json:"version" yaml:"version"`
	Author  Author    `json:"author" yaml:"author"`
	When    time.Time `json:"when" yaml:"when"`
	Message string    `json:"message" yaml:"message"`
}

// log walks the branch history of rel, newest first. limit <= 0 means all.
func (r *repo) log(rel string, limit int, version func([]byte) int) ([]Revision, error) {
	head, err := r.headCommit()
	if err != nil || head == nil {
		return nil, err
	}

	iter, err := r.git.Log(&git.LogOptions{
		From:       head.Hash,
		PathFilter: func(p string) bool { return p == rel },
	})
	if err != nil {
		return nil, fmt.Errorf("log %s: %w", rel, err)
	}
	defer iter.Close()

	var out []Revision
	err = iter.ForEach(func(c *object.Commit) error {
		rev := Revision{
			Commit:  c.Hash.String(),
			Author:  Author{Name: c.Author.Name, Email: c.Author.Email},
			When:    c.Author.When,
			Message: c.Message,
		}
		if data, ok, err := readAt(c, rel); err == nil && ok {
			rev.Version = version(data)
		}
		out = append(out, rev)
		if limit > 0 && len(out) >= limit {
			return storer.ErrStop
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("log %s: %w", rel, err)
	}
	return out, nil
}
