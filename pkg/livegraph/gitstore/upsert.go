package gitstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/randalmurphal/livegraph/pkg/livegraph/graph"
	"github.com/randalmurphal/livegraph/pkg/livegraph/observability"
)

var namePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,127}$`)

func validateName(name string) error {
	if !namePattern.MatchString(name) || strings.Contains(name, "..") {
		return graph.ValidationFailed(name, fmt.Sprintf("invalid graph name %q", name), nil)
	}
	return nil
}

// Upsert writes req as the next version of req.Name and commits it.
//
// When req.Version is set it must equal the stored version (0 for a graph
// that does not exist yet), or VERSION_CONFLICT is returned with the stored
// document. author overrides Options.Author. On COMMIT_FAILED the index and
// the working file are back to their last committed state.
func (s *Service) Upsert(ctx context.Context, req graph.UpsertRequest, author *Author) (doc *graph.Document, err error) {
	start := time.Now()
	ctx, span := s.opts.Spans.StartUpsertSpan(ctx, req.Name)
	defer func() {
		s.opts.Spans.EndSpanWithError(span, err)
		s.opts.Metrics.RecordUpsert(ctx, req.Name, string(graph.CodeOf(err)), time.Since(start))
		if err != nil {
			s.opts.Logger.Warn("graph upsert failed",
				slog.String("graph", req.Name),
				slog.String("code", string(graph.CodeOf(err))),
				slog.String("error", err.Error()),
			)
		}
	}()

	if err := s.validate(req); err != nil {
		return nil, err
	}

	// The lock file lives in the worktree, so make sure it exists first.
	s.mu.Lock()
	r, err := s.open(ctx)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	waitStart := time.Now()
	lock, err := acquireLock(ctx, req.Name, r.abs(locksDir+"/"+req.Name+".lock"),
		s.opts.LockTimeout, s.opts.LockPollInterval)
	s.opts.Metrics.RecordLockWait(ctx, req.Name, time.Since(waitStart))
	if err != nil {
		return nil, err
	}
	defer func() {
		if rerr := lock.release(); rerr != nil {
			s.opts.Logger.Error("lock not released",
				slog.String("graph", req.Name),
				slog.String("error", rerr.Error()),
			)
		}
	}()
	observability.AddSpanEvent(ctx, "lock.acquired")

	s.mu.Lock()
	current, err := s.load(r, req.Name)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	currentVersion := 0
	if current != nil {
		currentVersion = current.Version
	}
	if req.Version != nil && *req.Version != currentVersion {
		return nil, graph.VersionConflict(req.Name, *req.Version, current)
	}

	next := &graph.Document{
		Name:      req.Name,
		Version:   currentVersion + 1,
		UpdatedAt: s.opts.Now().UTC(),
		Nodes:     copyNodes(req.Nodes),
		Edges:     copyEdges(req.Edges),
	}
	data, err := marshalDocument(next)
	if err != nil {
		return nil, graph.ValidationFailed(req.Name, "document cannot be encoded", err)
	}

	if author == nil || author.Name == "" {
		author = &s.opts.Author
	}
	message := commitMessage(current, next)
	rel := graphPath(req.Name)
	path := r.abs(rel)

	// Writing, staging, and committing share the worktree and index.
	s.mu.Lock()
	defer s.mu.Unlock()

	previous, hadPrevious, err := readWorkingFile(path)
	if err != nil {
		return nil, err
	}
	if err := writeFileAtomic(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("write graph %s: %w", req.Name, err)
	}
	observability.AddSpanEvent(ctx, "document.written")

	cerr := r.stage(rel)
	if cerr == nil {
		cerr = s.commitFn(r, message, *author, s.opts.Now())
	}
	if cerr != nil {
		if rerr := s.rollback(r, path, previous, hadPrevious); rerr != nil {
			cerr = errors.Join(cerr, rerr)
		}
		return nil, graph.CommitFailed(req.Name, cerr)
	}

	observability.LogUpsert(s.opts.Logger, next.Name, next.Version, headHash(r))
	return next, nil
}

// rollback restores the index and the working file after a failed commit.
// Callers hold s.mu.
func (s *Service) rollback(r *repo, path string, previous []byte, hadPrevious bool) error {
	var errs []error
	if err := r.unstage(); err != nil {
		errs = append(errs, err)
	}
	if hadPrevious {
		if err := writeFileAtomic(path, previous, 0o644); err != nil {
			errs = append(errs, fmt.Errorf("restore %s: %w", filepath.Base(path), err))
		}
	} else if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		errs = append(errs, fmt.Errorf("remove %s: %w", filepath.Base(path), err))
	}
	return errors.Join(errs...)
}

// validate rejects malformed requests before any lock or write.
func (s *Service) validate(req graph.UpsertRequest) error {
	if err := validateName(req.Name); err != nil {
		return err
	}
	if req.Version != nil && *req.Version < 0 {
		return graph.ValidationFailed(req.Name, "expected version cannot be negative", nil)
	}

	ids := make(map[string]bool, len(req.Nodes))
	for i, n := range req.Nodes {
		if n.ID == "" {
			return graph.ValidationFailed(req.Name, fmt.Sprintf("node %d has no id", i), nil)
		}
		if ids[n.ID] {
			return graph.ValidationFailed(req.Name, fmt.Sprintf("node id %q is used more than once", n.ID), graph.DuplicateNodeID(n.ID))
		}
		ids[n.ID] = true
		if n.Template == "" {
			return graph.ValidationFailed(req.Name, fmt.Sprintf("node %q has no template", n.ID), nil)
		}
		if s.opts.Catalog != nil {
			if err := s.opts.Catalog.ValidateNode(n.Template, n.Config, n.DynamicConfig); err != nil {
				return graph.ValidationFailed(req.Name, fmt.Sprintf("node %q is invalid", n.ID), err)
			}
		}
	}

	for i, e := range req.Edges {
		if e.SourceHandle == "" || e.TargetHandle == "" {
			return graph.ValidationFailed(req.Name, fmt.Sprintf("edge %d is missing a handle", i), nil)
		}
		for _, id := range []string{e.Source, e.Target} {
			if !ids[id] {
				return graph.ValidationFailed(req.Name, fmt.Sprintf("edge %d references unknown node %q", i, id), graph.MissingNode(id, i))
			}
		}
	}
	return nil
}

// commitMessage summarizes the node and edge deltas, for example
// "graph main v3: nodes +1/-0 (4), edges +2/-1 (5)".
func commitMessage(prev, next *graph.Document) string {
	var prevNodes, prevEdges []string
	if prev != nil {
		for _, n := range prev.Nodes {
			prevNodes = append(prevNodes, n.ID)
		}
		for _, e := range prev.Edges {
			prevEdges = append(prevEdges, e.Key())
		}
	}
	nextNodes := make([]string, 0, len(next.Nodes))
	for _, n := range next.Nodes {
		nextNodes = append(nextNodes, n.ID)
	}
	nextEdges := make([]string, 0, len(next.Edges))
	for _, e := range next.Edges {
		nextEdges = append(nextEdges, e.Key())
	}

	na, nr := delta(prevNodes, nextNodes)
	ea, er := delta(prevEdges, nextEdges)
	return fmt.Sprintf("graph %s v%d: nodes +%d/-%d (%d), edges +%d/-%d (%d)",
		next.Name, next.Version, na, nr, len(nextNodes), ea, er, len(nextEdges))
}

func delta(prev, next []string) (added, removed int) {
	for _, k := range next {
		if !slices.Contains(prev, k) {
			added++
		}
	}
	for _, k := range prev {
		if !slices.Contains(next, k) {
			removed++
		}
	}
	return added, removed
}

func readWorkingFile(path string) ([]byte, bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	return data, true, nil
}

func headHash(r *repo) string {
	c, err := r.headCommit()
	if err != nil || c == nil {
		return ""
	}
	return c.Hash.String()
}

func copyNodes(in []graph.DocumentNode) []graph.DocumentNode {
	out := make([]graph.DocumentNode, 0, len(in))
	for _, n := range in {
		cp := graph.DocumentNode{
			ID:            n.ID,
			Template:      n.Template,
			Config:        n.Config,
			DynamicConfig: n.DynamicConfig,
		}
		if n.Position != nil {
			pos := *n.Position
			cp.Position = &pos
		}
		out = append(out, cp)
	}
	return out
}

func copyEdges(in []graph.DocumentEdge) []graph.DocumentEdge {
	out := make([]graph.DocumentEdge, 0, len(in))
	return append(out, in...)
}
