// Package graph holds the declarative graph model shared by the reconciler
// and the versioned store, along with the error taxonomy both surface.
package graph

import "fmt"

// NodeDef describes one desired node.
type NodeDef struct {
	// ID is unique within a Definition.
	ID string `json:"id" yaml:"id"`
	// Template names the registered node kind.
	Template string `json:"template" yaml:"template"`
	// Config is the optional static configuration.
	Config map[string]any `json:"config,omitempty" yaml:"config,omitempty"`
	// DynamicConfig is the optional dynamic configuration.
	DynamicConfig map[string]any `json:"dynamicConfig,omitempty" yaml:"dynamicConfig,omitempty"`
	// PriorState is opaque state handed to the factory on creation.
	PriorState any `json:"priorState,omitempty" yaml:"priorState,omitempty"`
}

// EdgeDef describes one desired connection between two node handles.
type EdgeDef struct {
	Source       string `json:"source" yaml:"source"`
	SourceHandle string `json:"sourceHandle" yaml:"sourceHandle"`
	Target       string `json:"target" yaml:"target"`
	TargetHandle string `json:"targetHandle" yaml:"targetHandle"`
}

// Key returns the canonical identity of the edge.
func (e EdgeDef) Key() string {
	return EdgeKey(e.Source, e.SourceHandle, e.Target, e.TargetHandle)
}

// String implements fmt.Stringer.
func (e EdgeDef) String() string {
	return e.Key()
}

// EdgeKey builds the canonical key source:sourceHandle->target:targetHandle.
func EdgeKey(source, sourceHandle, target, targetHandle string) string {
	return fmt.Sprintf("%s:%s->%s:%s", source, sourceHandle, target, targetHandle)
}

// Definition is the desired state submitted to the reconciler.
type Definition struct {
	Nodes []NodeDef `json:"nodes" yaml:"nodes"`
	Edges []EdgeDef `json:"edges" yaml:"edges"`
}

// Node returns the node with the given id.
func (d Definition) Node(id string) (NodeDef, bool) {
	for _, n := range d.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return NodeDef{}, false
}

// UniqueEdges returns the edges with duplicates (by key) collapsed,
// preserving first-seen order.
func (d Definition) UniqueEdges() []EdgeDef {
	seen := make(map[string]bool, len(d.Edges))
	out := make([]EdgeDef, 0, len(d.Edges))
	for _, e := range d.Edges {
		k := e.Key()
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, e)
	}
	return out
}

// Validate checks the structural invariants the reconciler relies on:
// non-empty and unique node ids.
func (d Definition) Validate() error {
	seen := make(map[string]bool, len(d.Nodes))
	for _, n := range d.Nodes {
		if n.ID == "" {
			return &Error{Code: CodeMissingNode, EdgeIndex: -1, Template: n.Template, Message: "node id is required"}
		}
		if seen[n.ID] {
			return DuplicateNodeID(n.ID)
		}
		seen[n.ID] = true
	}
	return nil
}
