// Package gitstore persists named graph documents on a dedicated branch of
// a git repository.
//
// Each graph is one JSON file, graphs/<name>.json. Every successful Upsert
// bumps the document's version by one and commits it, so the branch log is
// the graph's audit trail:
//
//	svc := gitstore.New(gitstore.Options{Dir: "/var/lib/livegraph", Catalog: templates})
//	if err := svc.InitIfNeeded(ctx); err != nil {
//	    return err
//	}
//	doc, err := svc.Upsert(ctx, graph.UpsertRequest{
//	    Name:    "main",
//	    Version: graph.ExpectVersion(0),
//	    Nodes:   []graph.DocumentNode{{ID: "n1", Template: "noop"}},
//	}, nil)
//
// Writers to the same name are serialized by an advisory lock file under
// .locks/. A stale expected version fails with VERSION_CONFLICT and carries
// the stored document so the caller can merge and retry. Reads go through
// the branch head, never the working tree, so a half-written or corrupted
// file is invisible until it is committed.
package gitstore
