package livegraph

import (
	"context"

	"github.com/randalmurphal/livegraph/pkg/livegraph/graph"
)

// ReversalKind says how a wired edge is undone.
type ReversalKind int

const (
	// ReversalNone leaves the wiring in place.
	ReversalNone ReversalKind = iota
	// ReversalDestroy calls the port's destroy method with the stored argument.
	ReversalDestroy
	// ReversalDisconnect calls the port's create method with a nil argument.
	ReversalDisconnect
)

func (k ReversalKind) String() string {
	switch k {
	case ReversalDestroy:
		return "destroy"
	case ReversalDisconnect:
		return "disconnect"
	default:
		return "none"
	}
}

// Reversal describes the call that undoes an edge.
type Reversal struct {
	Kind   ReversalKind
	NodeID string
	Method string
	// Argument is passed to Method. It is nil for ReversalDisconnect.
	Argument any
}

// EdgeRecord is the bookkeeping for one wired edge.
type EdgeRecord struct {
	Key   string
	Edge  graph.EdgeDef
	Index int
	// Callable is the method-port end that was invoked.
	Callable Endpoint
	// Argument is the end whose instance was passed.
	Argument   Endpoint
	Reversal   Reversal
	Reversible bool
	// ArgumentValue is the instance passed to the create method.
	ArgumentValue any
}

func newEdgeRecord(idx int, edge graph.EdgeDef, res Resolution, arg any) *EdgeRecord {
	rec := &EdgeRecord{
		Key:           edge.Key(),
		Edge:          edge,
		Index:         idx,
		Callable:      res.Callable,
		Argument:      res.Argument,
		ArgumentValue: arg,
	}
	port := res.Callable.Port
	switch {
	case port.OneShot:
		rec.Reversal = Reversal{Kind: ReversalNone}
	case port.Destroy != "":
		rec.Reversal = Reversal{Kind: ReversalDestroy, NodeID: res.Callable.NodeID, Method: port.Destroy, Argument: arg}
	default:
		rec.Reversal = Reversal{Kind: ReversalDisconnect, NodeID: res.Callable.NodeID, Method: port.Create}
	}
	rec.Reversible = rec.Reversal.Kind != ReversalNone
	return rec
}

// invokePort calls method on instance through PortCaller.
func invokePort(ctx context.Context, instance any, method string, arg any) error {
	caller, ok := instance.(PortCaller)
	if !ok {
		return errNoPortCaller
	}
	return caller.CallPort(ctx, method, arg)
}
