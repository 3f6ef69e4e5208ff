// Package builtin registers the demo node templates graphctl ships with.
//
// noop is an inert node that only exposes itself. relay collects upstream
// nodes on its "in" port and can be paused. Its config:
//
//	prefix:   text put before each routed message
//	capacity: maximum number of upstream nodes
//	enabled:  false drops every message without pausing the node
//	only:     upstream ids to route to; an empty list routes to none
//	format:   {suffix, upper} applied to the message body
package builtin

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/randalmurphal/livegraph/pkg/livegraph"
	"github.com/randalmurphal/livegraph/pkg/livegraph/config"
	"github.com/randalmurphal/livegraph/pkg/livegraph/schema"
)

// Template names.
const (
	Noop  = "noop"
	Relay = "relay"
)

var relaySchema = schema.MustCompile(`{
	prefix?:   string
	capacity?: int & >=1
	enabled?:  bool
	only?: [...string]
	format?: close({
		suffix?: string
		upper?:  bool
	})
}`)

// Register adds the built-in templates to t.
func Register(t *livegraph.Templates) {
	t.Register(Noop, func(fc livegraph.FactoryContext) (any, error) {
		return &NoopNode{ID: fc.NodeID}, nil
	},
		livegraph.WithPorts(livegraph.PortDescriptor{
			Sources: map[string]livegraph.Port{"out": livegraph.InstancePort()},
		}),
		livegraph.WithMetadata(livegraph.Metadata{
			Title:       "No-op",
			Kind:        "utility",
			Description: "Does nothing; useful as an edge source.",
		}),
	)

	t.Register(Relay, func(fc livegraph.FactoryContext) (any, error) {
		return &RelayNode{ID: fc.NodeID, capacity: defaultCapacity}, nil
	},
		livegraph.WithPorts(livegraph.PortDescriptor{
			Sources: map[string]livegraph.Port{"out": livegraph.InstancePort()},
			Targets: map[string]livegraph.Port{"in": livegraph.MethodPort("Connect", "Disconnect")},
		}),
		livegraph.WithCapabilities(livegraph.CapConfigurable|livegraph.CapPausable),
		livegraph.WithConfigSchema(relaySchema),
		livegraph.WithMetadata(livegraph.Metadata{
			Title:       "Relay",
			Kind:        "connector",
			Description: "Collects upstream nodes and forwards to them in order.",
			Tags:        []string{"demo"},
		}),
	)
}

// NoopNode is the noop instance.
type NoopNode struct {
	ID       string
	Disposed bool
}

// Dispose marks the node as torn down.
func (n *NoopNode) Dispose(context.Context) error {
	n.Disposed = true
	return nil
}

const defaultCapacity = 8

// RelayNode is the relay instance.
type RelayNode struct {
	ID string

	mu       sync.Mutex
	prefix   string
	suffix   string
	upper    bool
	capacity int
	disabled bool
	// only is nil when every upstream receives messages.
	only     []string
	paused   bool
	upstream []string
}

// SetConfig accepts the keys described in the package doc.
func (r *RelayNode) SetConfig(cfg map[string]any) error {
	c := config.New(cfg)
	format := c.Sub("format")
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prefix = c.String("prefix", "")
	r.capacity = c.Int("capacity", defaultCapacity)
	r.disabled = !c.Bool("enabled", true)
	r.only = nil
	if c.Has("only") {
		r.only = c.StringSlice("only", []string{})
	}
	r.suffix = format.String("suffix", "")
	r.upper = format.Bool("upper", false)
	return nil
}

// CallPort implements livegraph.PortCaller.
func (r *RelayNode) CallPort(_ context.Context, method string, arg any) error {
	switch method {
	case "Connect":
		return r.connect(arg)
	case "Disconnect":
		return r.disconnect(arg)
	}
	return fmt.Errorf("relay: unknown port method %q", method)
}

func (r *RelayNode) connect(arg any) error {
	id, err := nodeID(arg)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.upstream) >= r.capacity {
		return fmt.Errorf("relay %s is full (%d)", r.ID, r.capacity)
	}
	r.upstream = append(r.upstream, id)
	return nil
}

func (r *RelayNode) disconnect(arg any) error {
	id, err := nodeID(arg)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.upstream = slices.DeleteFunc(r.upstream, func(u string) bool { return u == id })
	return nil
}

// Pause stops forwarding.
func (r *RelayNode) Pause(context.Context) error {
	r.mu.Lock()
	r.paused = true
	r.mu.Unlock()
	return nil
}

// Resume restarts forwarding.
func (r *RelayNode) Resume(context.Context) error {
	r.mu.Lock()
	r.paused = false
	r.mu.Unlock()
	return nil
}

// IsPaused reports whether the relay is paused.
func (r *RelayNode) IsPaused() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.paused
}

// Upstream returns the connected node ids in connection order.
func (r *RelayNode) Upstream() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.upstream)
}

// Route returns the message as each upstream node would receive it, or nil
// while paused or disabled.
func (r *RelayNode) Route(msg string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.paused || r.disabled {
		return nil
	}
	if r.upper {
		msg = strings.ToUpper(msg)
	}
	out := make([]string, 0, len(r.upstream))
	for _, id := range r.upstream {
		if r.only != nil && !slices.Contains(r.only, id) {
			continue
		}
		out = append(out, id+": "+r.prefix+msg+r.suffix)
	}
	return out
}

// nodeID extracts the id of a built-in instance passed through a port.
func nodeID(arg any) (string, error) {
	switch v := arg.(type) {
	case *NoopNode:
		return v.ID, nil
	case *RelayNode:
		return v.ID, nil
	case nil:
		return "", errors.New("relay: nil upstream")
	}
	return "", fmt.Errorf("relay: unsupported upstream %T", arg)
}
