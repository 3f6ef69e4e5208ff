package benchmarks

import (
	"context"
	"testing"

	"github.com/randalmurphal/livegraph/pkg/livegraph"
	"github.com/randalmurphal/livegraph/pkg/livegraph/graph"
	"github.com/randalmurphal/livegraph/pkg/livegraph/journal"
)

// benchmarkBuildTeardown alternates between def and an empty graph, so each
// pair of applies creates and disposes every node and edge.
func benchmarkBuildTeardown(b *testing.B, def graph.Definition, opts ...livegraph.Option) {
	rt := newRuntime(b, opts...)
	ctx := context.Background()
	empty := graph.Definition{}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := rt.Apply(ctx, def); err != nil {
			b.Fatal(err)
		}
		if _, err := rt.Apply(ctx, empty); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkApply_Chain_10 builds and tears down a 10-relay chain.
func BenchmarkApply_Chain_10(b *testing.B) {
	benchmarkBuildTeardown(b, buildChain(10, ""))
}

// BenchmarkApply_Chain_100 builds and tears down a 100-relay chain.
func BenchmarkApply_Chain_100(b *testing.B) {
	benchmarkBuildTeardown(b, buildChain(100, ""))
}

// BenchmarkApply_FanIn_50 builds and tears down 50 sources feeding one relay.
func BenchmarkApply_FanIn_50(b *testing.B) {
	benchmarkBuildTeardown(b, buildFanIn(50))
}

// BenchmarkApply_Chain_100_Journal adds an in-memory journal.
func BenchmarkApply_Chain_100_Journal(b *testing.B) {
	benchmarkBuildTeardown(b, buildChain(100, ""), livegraph.WithJournal(journal.NewMemoryStore()))
}

// BenchmarkApply_Unchanged re-applies the live definition.
func BenchmarkApply_Unchanged(b *testing.B) {
	rt := newRuntime(b)
	ctx := context.Background()
	def := buildChain(100, "")
	if _, err := rt.Apply(ctx, def); err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = rt.Apply(ctx, def)
	}
}

// BenchmarkApply_ConfigOnly flips every relay's prefix.
func BenchmarkApply_ConfigOnly(b *testing.B) {
	rt := newRuntime(b)
	ctx := context.Background()
	defs := []graph.Definition{buildChain(100, "a"), buildChain(100, "b")}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := rt.Apply(ctx, defs[i%2]); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkNodes measures a snapshot read while no apply runs.
func BenchmarkNodes(b *testing.B) {
	rt := newRuntime(b)
	if _, err := rt.Apply(context.Background(), buildChain(100, "")); err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = rt.Nodes()
	}
}
