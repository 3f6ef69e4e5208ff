package livegraph

import (
	"github.com/randalmurphal/livegraph/pkg/livegraph/canonical"
	"github.com/randalmurphal/livegraph/pkg/livegraph/graph"
	"github.com/randalmurphal/livegraph/pkg/livegraph/journal"
)

// Diff is the set of changes between two definitions.
//
// Node lists follow the order of the definition they come from: removed ids
// follow prev, everything else follows next. Edges are compared by key, so
// edge order in either definition does not matter.
type Diff struct {
	AddedNodes                 []graph.NodeDef
	RemovedNodeIDs             []string
	RecreatedNodeIDs           []string
	ConfigUpdateNodeIDs        []string
	DynamicConfigUpdateNodeIDs []string
	AddedEdges                 []graph.EdgeDef
	RemovedEdges               []graph.EdgeDef
}

// Empty reports whether the diff has no changes.
func (d Diff) Empty() bool {
	return len(d.AddedNodes) == 0 &&
		len(d.RemovedNodeIDs) == 0 &&
		len(d.RecreatedNodeIDs) == 0 &&
		len(d.ConfigUpdateNodeIDs) == 0 &&
		len(d.DynamicConfigUpdateNodeIDs) == 0 &&
		len(d.AddedEdges) == 0 &&
		len(d.RemovedEdges) == 0
}

// Summary counts the changes for the journal.
func (d Diff) Summary() journal.Summary {
	return journal.Summary{
		AddedNodes:           len(d.AddedNodes),
		RemovedNodes:         len(d.RemovedNodeIDs),
		RecreatedNodes:       len(d.RecreatedNodeIDs),
		ConfigUpdates:        len(d.ConfigUpdateNodeIDs),
		DynamicConfigUpdates: len(d.DynamicConfigUpdateNodeIDs),
		AddedEdges:           len(d.AddedEdges),
		RemovedEdges:         len(d.RemovedEdges),
	}
}

// ComputeDiff compares prev with next. Config maps are compared by their
// canonical encoding, so key order and nil-versus-empty do not count as
// changes.
func ComputeDiff(prev, next graph.Definition) Diff {
	var d Diff

	prevNodes := make(map[string]graph.NodeDef, len(prev.Nodes))
	for _, n := range prev.Nodes {
		prevNodes[n.ID] = n
	}
	nextIDs := make(map[string]bool, len(next.Nodes))

	for _, n := range next.Nodes {
		nextIDs[n.ID] = true
		old, existed := prevNodes[n.ID]
		switch {
		case !existed:
			d.AddedNodes = append(d.AddedNodes, n)
		case old.Template != n.Template:
			d.RecreatedNodeIDs = append(d.RecreatedNodeIDs, n.ID)
		default:
			if !canonical.Equal(old.Config, n.Config) {
				d.ConfigUpdateNodeIDs = append(d.ConfigUpdateNodeIDs, n.ID)
			}
			if !canonical.Equal(old.DynamicConfig, n.DynamicConfig) {
				d.DynamicConfigUpdateNodeIDs = append(d.DynamicConfigUpdateNodeIDs, n.ID)
			}
		}
	}
	for _, n := range prev.Nodes {
		if !nextIDs[n.ID] {
			d.RemovedNodeIDs = append(d.RemovedNodeIDs, n.ID)
		}
	}

	prevEdges := prev.UniqueEdges()
	nextEdges := next.UniqueEdges()
	prevKeys := make(map[string]bool, len(prevEdges))
	for _, e := range prevEdges {
		prevKeys[e.Key()] = true
	}
	nextKeys := make(map[string]bool, len(nextEdges))
	for _, e := range nextEdges {
		nextKeys[e.Key()] = true
		if !prevKeys[e.Key()] {
			d.AddedEdges = append(d.AddedEdges, e)
		}
	}
	for _, e := range prevEdges {
		if !nextKeys[e.Key()] {
			d.RemovedEdges = append(d.RemovedEdges, e)
		}
	}

	return d
}
