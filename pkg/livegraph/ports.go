package livegraph

import (
	"context"
	"maps"
	"slices"

	"github.com/randalmurphal/livegraph/pkg/livegraph/graph"
)

// PortKind distinguishes instance ports from method ports.
type PortKind int

const (
	// PortInstance exposes the node's own live instance.
	PortInstance PortKind = iota
	// PortMethod names a create method (and optional destroy method) to
	// call on the owning instance.
	PortMethod
)

func (k PortKind) String() string {
	if k == PortMethod {
		return "method"
	}
	return "instance"
}

// Port is a named connection point on a template.
type Port struct {
	Kind    PortKind
	Create  string
	Destroy string
	// OneShot marks a method port whose wiring is never reversed.
	OneShot bool
}

// InstancePort returns a port that exposes the node's instance.
func InstancePort() Port {
	return Port{Kind: PortInstance}
}

// MethodPort returns a port that calls create when an edge is wired.
// When destroy is empty, unwiring calls create again with a nil argument.
func MethodPort(create, destroy string) Port {
	return Port{Kind: PortMethod, Create: create, Destroy: destroy}
}

// OneShotPort returns a method port whose wiring is not reversed on removal.
func OneShotPort(create string) Port {
	return Port{Kind: PortMethod, Create: create, OneShot: true}
}

// PortDescriptor lists a template's ports by handle.
type PortDescriptor struct {
	Sources map[string]Port
	Targets map[string]Port
}

// SourceHandles returns source handles in sorted order.
func (d PortDescriptor) SourceHandles() []string {
	return slices.Sorted(maps.Keys(d.Sources))
}

// TargetHandles returns target handles in sorted order.
func (d PortDescriptor) TargetHandles() []string {
	return slices.Sorted(maps.Keys(d.Targets))
}

// PortCaller is implemented by instances that own method ports. The runtime
// calls CallPort with the port's create or destroy method name and the
// argument node's instance (nil for a disconnect).
type PortCaller interface {
	CallPort(ctx context.Context, method string, arg any) error
}

// Endpoint is one resolved end of an edge.
type Endpoint struct {
	NodeID string
	Handle string
	// Source is true for the edge's source end.
	Source bool
	Port   Port
}

// Resolution names the callable side of an edge and the side that supplies
// the argument.
type Resolution struct {
	Callable Endpoint
	Argument Endpoint
}

// Ports resolves edges against template port descriptors.
type Ports struct {
	descriptors map[string]PortDescriptor
}

// NewPorts builds a port registry from Templates.PortsMap output.
func NewPorts(descriptors map[string]PortDescriptor) *Ports {
	return &Ports{descriptors: descriptors}
}

// Resolve looks up the edge's source port on sourceTemplate and target port
// on targetTemplate and decides which side is callable. Exactly one side
// must be a method port.
func (p *Ports) Resolve(edgeIndex int, edge graph.EdgeDef, sourceTemplate, targetTemplate string) (Resolution, error) {
	src, srcOK := p.descriptors[sourceTemplate].Sources[edge.SourceHandle]
	tgt, tgtOK := p.descriptors[targetTemplate].Targets[edge.TargetHandle]
	if !srcOK || !tgtOK {
		return Resolution{}, graph.UnresolvedHandle(edgeIndex, edge)
	}

	source := Endpoint{NodeID: edge.Source, Handle: edge.SourceHandle, Source: true, Port: src}
	target := Endpoint{NodeID: edge.Target, Handle: edge.TargetHandle, Port: tgt}

	switch {
	case src.Kind == PortMethod && tgt.Kind == PortMethod:
		return Resolution{}, graph.AmbiguousCallable(edgeIndex, edge)
	case src.Kind == PortMethod:
		return Resolution{Callable: source, Argument: target}, nil
	case tgt.Kind == PortMethod:
		return Resolution{Callable: target, Argument: source}, nil
	default:
		return Resolution{}, graph.MissingCallable(edgeIndex, edge)
	}
}
