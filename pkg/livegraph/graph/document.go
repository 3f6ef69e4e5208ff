package graph

import "time"

// Position is the builder canvas location of a node. It is persisted but
// ignored by the reconciler.
type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// DocumentNode is a node as persisted by the store.
type DocumentNode struct {
	ID            string         `json:"id" yaml:"id"`
	Template      string         `json:"template" yaml:"template"`
	Config        map[string]any `json:"config,omitempty" yaml:"config,omitempty"`
	DynamicConfig map[string]any `json:"dynamicConfig,omitempty" yaml:"dynamicConfig,omitempty"`
	Position      *Position      `json:"position,omitempty" yaml:"position,omitempty"`
}

// DocumentEdge is an edge as persisted by the store.
type DocumentEdge struct {
	ID           string `json:"id,omitempty" yaml:"id,omitempty"`
	Source       string `json:"source" yaml:"source"`
	SourceHandle string `json:"sourceHandle" yaml:"sourceHandle"`
	Target       string `json:"target" yaml:"target"`
	TargetHandle string `json:"targetHandle" yaml:"targetHandle"`
}

// Key returns the canonical edge key.
func (e DocumentEdge) Key() string {
	return EdgeKey(e.Source, e.SourceHandle, e.Target, e.TargetHandle)
}

// Document is a named graph as stored on the state branch.
// Version is the optimistic-lock token.
type Document struct {
	Name      string         `json:"name" yaml:"name"`
	Version   int            `json:"version" yaml:"version"`
	UpdatedAt time.Time      `json:"updatedAt" yaml:"updatedAt"`
	Nodes     []DocumentNode `json:"nodes" yaml:"nodes"`
	Edges     []DocumentEdge `json:"edges" yaml:"edges"`
}

// Definition converts the document into the reconciler's desired state.
// Builder-only fields (positions, edge ids) are dropped.
func (d *Document) Definition() Definition {
	def := Definition{
		Nodes: make([]NodeDef, 0, len(d.Nodes)),
		Edges: make([]EdgeDef, 0, len(d.Edges)),
	}
	for _, n := range d.Nodes {
		def.Nodes = append(def.Nodes, NodeDef{
			ID:            n.ID,
			Template:      n.Template,
			Config:        n.Config,
			DynamicConfig: n.DynamicConfig,
		})
	}
	for _, e := range d.Edges {
		def.Edges = append(def.Edges, EdgeDef{
			Source:       e.Source,
			SourceHandle: e.SourceHandle,
			Target:       e.Target,
			TargetHandle: e.TargetHandle,
		})
	}
	return def
}

// UpsertRequest is the payload accepted by the store's Upsert.
// Version, when set, is the version the caller expects to replace.
type UpsertRequest struct {
	Name    string         `json:"name" yaml:"name"`
	Version *int           `json:"version,omitempty" yaml:"version,omitempty"`
	Nodes   []DocumentNode `json:"nodes" yaml:"nodes"`
	Edges   []DocumentEdge `json:"edges" yaml:"edges"`
}

// ExpectVersion returns a pointer suitable for UpsertRequest.Version.
func ExpectVersion(v int) *int {
	return &v
}
