package livegraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/livegraph/pkg/livegraph/graph"
)

func TestPorts_Resolve(t *testing.T) {
	ports := NewPorts(map[string]PortDescriptor{
		"agent": {
			Sources: map[string]Port{"self": InstancePort(), "emit": MethodPort("Emit", "")},
			Targets: map[string]Port{"tools": MethodPort("AddTool", "RemoveTool"), "peer": InstancePort()},
		},
		"tool": {
			Sources: map[string]Port{"tool": InstancePort()},
			Targets: map[string]Port{"sink": MethodPort("Sink", "")},
		},
	})

	tests := []struct {
		name     string
		edge     graph.EdgeDef
		src, tgt string
		code     graph.Code
		callable string
		method   string
	}{
		{
			name:     "target callable",
			edge:     graph.EdgeDef{Source: "t", SourceHandle: "tool", Target: "a", TargetHandle: "tools"},
			src:      "tool",
			tgt:      "agent",
			callable: "a",
			method:   "AddTool",
		},
		{
			name:     "source callable",
			edge:     graph.EdgeDef{Source: "a", SourceHandle: "emit", Target: "b", TargetHandle: "peer"},
			src:      "agent",
			tgt:      "agent",
			callable: "a",
			method:   "Emit",
		},
		{
			name: "both callable",
			edge: graph.EdgeDef{Source: "a", SourceHandle: "emit", Target: "t", TargetHandle: "sink"},
			src:  "agent",
			tgt:  "tool",
			code: graph.CodeAmbiguousCallable,
		},
		{
			name: "neither callable",
			edge: graph.EdgeDef{Source: "t", SourceHandle: "tool", Target: "a", TargetHandle: "peer"},
			src:  "tool",
			tgt:  "agent",
			code: graph.CodeMissingCallable,
		},
		{
			name: "unknown source handle",
			edge: graph.EdgeDef{Source: "t", SourceHandle: "nope", Target: "a", TargetHandle: "tools"},
			src:  "tool",
			tgt:  "agent",
			code: graph.CodeUnresolvedHandle,
		},
		{
			name: "unknown template",
			edge: graph.EdgeDef{Source: "t", SourceHandle: "tool", Target: "a", TargetHandle: "tools"},
			src:  "ghost",
			tgt:  "agent",
			code: graph.CodeUnresolvedHandle,
		},
		{
			name: "handle on wrong side",
			edge: graph.EdgeDef{Source: "a", SourceHandle: "tools", Target: "t", TargetHandle: "tool"},
			src:  "agent",
			tgt:  "tool",
			code: graph.CodeUnresolvedHandle,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := ports.Resolve(3, tt.edge, tt.src, tt.tgt)
			if tt.code != "" {
				require.Error(t, err)
				var ge *graph.Error
				require.ErrorAs(t, err, &ge)
				assert.Equal(t, tt.code, ge.Code)
				assert.Equal(t, 3, ge.EdgeIndex)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.callable, res.Callable.NodeID)
			assert.Equal(t, tt.method, res.Callable.Port.Create)
			assert.NotEqual(t, res.Callable.Source, res.Argument.Source)
		})
	}
}

func TestNewEdgeRecord_Reversal(t *testing.T) {
	edge := graph.EdgeDef{Source: "t", SourceHandle: "tool", Target: "a", TargetHandle: "tools"}
	arg := &testTool{}
	resolution := func(p Port) Resolution {
		return Resolution{
			Callable: Endpoint{NodeID: "a", Handle: "tools", Port: p},
			Argument: Endpoint{NodeID: "t", Handle: "tool", Source: true, Port: InstancePort()},
		}
	}

	tests := []struct {
		name string
		port Port
		want Reversal
	}{
		{"destroy", MethodPort("Add", "Remove"), Reversal{Kind: ReversalDestroy, NodeID: "a", Method: "Remove", Argument: arg}},
		{"disconnect", MethodPort("Set", ""), Reversal{Kind: ReversalDisconnect, NodeID: "a", Method: "Set"}},
		{"one shot", OneShotPort("Init"), Reversal{Kind: ReversalNone}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := newEdgeRecord(0, edge, resolution(tt.port), arg)
			assert.Equal(t, tt.want, rec.Reversal)
			assert.Equal(t, tt.want.Kind != ReversalNone, rec.Reversible)
			assert.Equal(t, edge.Key(), rec.Key)
		})
	}
}

func TestPortDescriptor_Handles(t *testing.T) {
	d := PortDescriptor{
		Sources: map[string]Port{"b": InstancePort(), "a": InstancePort()},
		Targets: map[string]Port{"z": MethodPort("Z", "")},
	}
	assert.Equal(t, []string{"a", "b"}, d.SourceHandles())
	assert.Equal(t, []string{"z"}, d.TargetHandles())
	assert.Equal(t, "method", PortMethod.String())
	assert.Equal(t, "disconnect", ReversalDisconnect.String())
}
