package benchmarks

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/randalmurphal/livegraph/internal/builtin"
	"github.com/randalmurphal/livegraph/pkg/livegraph"
	"github.com/randalmurphal/livegraph/pkg/livegraph/graph"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func nodeID(n int) string {
	return fmt.Sprintf("n%03d", n)
}

func newRuntime(b *testing.B, opts ...livegraph.Option) *livegraph.Runtime {
	b.Helper()
	t := livegraph.NewTemplates()
	builtin.Register(t)
	rt := livegraph.New(t, append([]livegraph.Option{livegraph.WithLogger(discard)}, opts...)...)
	b.Cleanup(func() { _ = rt.Close(context.Background()) })
	return rt
}

// buildChain links n relays: n000 -> n001 -> ... Each relay has one upstream.
func buildChain(n int, prefix string) graph.Definition {
	def := graph.Definition{}
	for i := 0; i < n; i++ {
		def.Nodes = append(def.Nodes, graph.NodeDef{
			ID:       nodeID(i),
			Template: builtin.Relay,
			Config:   map[string]any{"prefix": prefix},
		})
	}
	for i := 0; i < n-1; i++ {
		def.Edges = append(def.Edges, graph.EdgeDef{
			Source:       nodeID(i),
			SourceHandle: "out",
			Target:       nodeID(i + 1),
			TargetHandle: "in",
		})
	}
	return def
}

// buildFanIn connects n noop sources to one relay.
func buildFanIn(n int) graph.Definition {
	def := graph.Definition{
		Nodes: []graph.NodeDef{{
			ID:       "sink",
			Template: builtin.Relay,
			Config:   map[string]any{"capacity": n},
		}},
	}
	for i := 0; i < n; i++ {
		def.Nodes = append(def.Nodes, graph.NodeDef{ID: nodeID(i), Template: builtin.Noop})
		def.Edges = append(def.Edges, graph.EdgeDef{
			Source:       nodeID(i),
			SourceHandle: "out",
			Target:       "sink",
			TargetHandle: "in",
		})
	}
	return def
}
