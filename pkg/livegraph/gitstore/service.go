package gitstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/randalmurphal/livegraph/pkg/livegraph/graph"
)

// Service stores named graph documents in a git repository.
//
// It is safe for concurrent use. Upserts to different names run in parallel
// up to the commit; all git operations on the shared worktree are
// serialized.
type Service struct {
	opts Options

	// mu guards repo and every git operation.
	mu   sync.Mutex
	repo *repo

	// commitFn records the staged index. Tests replace it to simulate
	// commit failures.
	commitFn func(r *repo, message string, author Author, when time.Time) error
}

// New creates a Service. The repository is opened on first use or by
// InitIfNeeded.
func New(opts Options) *Service {
	return &Service{
		opts: opts.withDefaults(),
		commitFn: func(r *repo, message string, author Author, when time.Time) error {
			_, err := r.commit(message, author, when)
			return err
		},
	}
}

// InitIfNeeded opens the repository, creating it and the state branch if
// they do not exist. A new branch is seeded with an ignore policy and an
// empty graph named main at version 0.
func (s *Service) InitIfNeeded(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.open(ctx)
	return err
}

// open returns the repository, bootstrapping it on first call. Callers hold
// s.mu.
func (s *Service) open(context.Context) (*repo, error) {
	if s.repo != nil {
		return s.repo, nil
	}
	if err := os.MkdirAll(s.opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}

	r, created, err := openRepo(s.opts.Dir, s.opts.Branch)
	if err != nil {
		return nil, err
	}
	if created {
		if err := s.seed(r); err != nil {
			return nil, err
		}
	}
	s.repo = r
	return r, nil
}

func (s *Service) seed(r *repo) error {
	rel := graphPath(DefaultGraphName)
	_, exists, err := r.readHead(rel)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	existing, err := os.ReadFile(r.abs(".gitignore"))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("read ignore policy: %w", err)
	}
	if err := writeFileAtomic(r.abs(".gitignore"), mergeIgnore(existing, ignorePolicy), 0o644); err != nil {
		return fmt.Errorf("write ignore policy: %w", err)
	}
	data, err := marshalDocument(&graph.Document{
		Name:      DefaultGraphName,
		Version:   0,
		UpdatedAt: s.opts.Now().UTC(),
		Nodes:     []graph.DocumentNode{},
		Edges:     []graph.DocumentEdge{},
	})
	if err != nil {
		return err
	}
	if err := writeFileAtomic(r.abs(rel), data, 0o644); err != nil {
		return fmt.Errorf("seed %s: %w", rel, err)
	}
	if err := r.stage(".gitignore"); err != nil {
		return err
	}
	if err := r.stage(rel); err != nil {
		return err
	}
	if _, err := r.commit("bootstrap graph state", s.opts.Author, s.opts.Now()); err != nil {
		return fmt.Errorf("commit bootstrap: %w", err)
	}
	s.opts.Logger.Info("graph store initialized",
		slog.String("dir", s.opts.Dir),
		slog.String("branch", s.opts.Branch),
	)
	return nil
}

// mergeIgnore appends the policy lines missing from an existing ignore
// file and keeps everything already there.
func mergeIgnore(existing []byte, policy string) []byte {
	have := make(map[string]bool)
	for _, line := range strings.Split(string(existing), "\n") {
		have[strings.TrimSpace(line)] = true
	}
	out := string(existing)
	if out != "" && !strings.HasSuffix(out, "\n") {
		out += "\n"
	}
	for _, line := range strings.Split(strings.TrimSpace(policy), "\n") {
		if !have[line] {
			out += line + "\n"
		}
	}
	return []byte(out)
}

// Get returns the named graph as of the branch head. It returns nil, nil
// when the graph does not exist or its committed content does not parse.
func (s *Service) Get(ctx context.Context, name string) (*graph.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.open(ctx)
	if err != nil {
		return nil, err
	}
	return s.load(r, name)
}

// load reads name from the branch head. Callers hold s.mu.
func (s *Service) load(r *repo, name string) (*graph.Document, error) {
	data, ok, err := r.readHead(graphPath(name))
	if err != nil || !ok {
		return nil, err
	}
	doc, err := unmarshalDocument(data)
	if err != nil {
		s.opts.Logger.Warn("stored graph does not parse",
			slog.String("graph", name),
			slog.String("error", err.Error()),
		)
		return nil, nil
	}
	return doc, nil
}

// History lists the commits that changed the named graph, newest first.
// limit <= 0 returns every revision.
func (s *Service) History(ctx context.Context, name string, limit int) ([]Revision, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.open(ctx)
	if err != nil {
		return nil, err
	}
	return r.log(graphPath(name), limit, func(data []byte) int {
		doc, err := unmarshalDocument(data)
		if err != nil {
			return -1
		}
		return doc.Version
	})
}

// Names lists the graphs present at the branch head in name order.
func (s *Service) Names(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.open(ctx)
	if err != nil {
		return nil, err
	}
	c, err := r.headCommit()
	if err != nil || c == nil {
		return nil, err
	}
	tree, err := c.Tree()
	if err != nil {
		return nil, fmt.Errorf("load tree: %w", err)
	}
	sub, err := tree.Tree(graphsDir)
	if err != nil {
		return nil, nil
	}
	var names []string
	for _, e := range sub.Entries {
		if ext := filepath.Ext(e.Name); ext == ".json" && e.Mode.IsFile() {
			names = append(names, e.Name[:len(e.Name)-len(ext)])
		}
	}
	return names, nil
}

// marshalDocument is the one persisted encoding: indented JSON with a
// trailing newline. Only Document fields are written.
func marshalDocument(doc *graph.Document) ([]byte, error) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode graph %s: %w", doc.Name, err)
	}
	return append(data, '\n'), nil
}

func unmarshalDocument(data []byte) (*graph.Document, error) {
	var doc graph.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc.Nodes == nil {
		doc.Nodes = []graph.DocumentNode{}
	}
	if doc.Edges == nil {
		doc.Edges = []graph.DocumentEdge{}
	}
	return &doc, nil
}
