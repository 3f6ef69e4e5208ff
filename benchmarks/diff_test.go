package benchmarks

import (
	"testing"

	"github.com/randalmurphal/livegraph/pkg/livegraph"
	"github.com/randalmurphal/livegraph/pkg/livegraph/graph"
)

// BenchmarkComputeDiff_Identical_100 diffs a 100-node chain against itself.
func BenchmarkComputeDiff_Identical_100(b *testing.B) {
	def := buildChain(100, "x")
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = livegraph.ComputeDiff(def, def)
	}
}

// BenchmarkComputeDiff_ConfigChange_100 diffs two chains that differ only in config.
func BenchmarkComputeDiff_ConfigChange_100(b *testing.B) {
	prev, next := buildChain(100, "x"), buildChain(100, "y")
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = livegraph.ComputeDiff(prev, next)
	}
}

// BenchmarkComputeDiff_FromEmpty_100 diffs an empty graph against a 100-node chain.
func BenchmarkComputeDiff_FromEmpty_100(b *testing.B) {
	next := buildChain(100, "x")
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = livegraph.ComputeDiff(graph.Definition{}, next)
	}
}

// BenchmarkResolve measures port resolution for one edge.
func BenchmarkResolve(b *testing.B) {
	ports := livegraph.NewPorts(map[string]livegraph.PortDescriptor{
		"src": {Sources: map[string]livegraph.Port{"out": livegraph.InstancePort()}},
		"dst": {Targets: map[string]livegraph.Port{"in": livegraph.MethodPort("Connect", "Disconnect")}},
	})
	edge := graph.EdgeDef{Source: "a", SourceHandle: "out", Target: "b", TargetHandle: "in"}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = ports.Resolve(0, edge, "src", "dst")
	}
}
