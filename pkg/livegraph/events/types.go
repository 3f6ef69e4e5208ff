package events

// Event types published by the runtime.
const (
	TypeProvisionStatus = "node.provision_status"
	TypeDynamicConfig   = "node.dynamic_config"
	TypeGraphApplied    = "graph.applied"
)

// SourceRuntime is the source of runtime-level events.
const SourceRuntime = "runtime"

// ProvisionStatus is the payload of TypeProvisionStatus.
type ProvisionStatus struct {
	NodeID string `json:"node_id"`
	Status string `json:"status"`
}

// DynamicConfigState is the payload of TypeDynamicConfig.
type DynamicConfigState struct {
	NodeID string `json:"node_id"`
	Ready  bool   `json:"ready"`
}

// GraphApplied is the payload of TypeGraphApplied.
type GraphApplied struct {
	ApplyID string `json:"apply_id"`
	Version uint64 `json:"version"`
	Nodes   int    `json:"nodes"`
	Edges   int    `json:"edges"`
}
