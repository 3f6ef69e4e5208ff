package livegraph

import (
	"context"
	"log/slog"
	"maps"
	"slices"
	"sort"
	"sync/atomic"

	"github.com/randalmurphal/livegraph/pkg/livegraph/events"
	"github.com/randalmurphal/livegraph/pkg/livegraph/graph"
)

// liveNode is the worker-owned bookkeeping for one instantiated node.
type liveNode struct {
	id            string
	template      string
	instance      any
	caps          Capability
	config        map[string]any
	dynamicConfig map[string]any
	// applied is the definition last requested for this node, whether or
	// not its config was accepted. The next apply is diffed against it.
	applied graph.NodeDef
	// pausedFallback answers IsPaused for nodes that are not Pausable.
	pausedFallback bool
	unsubscribe    []func()
}

func (n *liveNode) info() NodeInfo {
	return NodeInfo{
		ID:             n.id,
		Template:       n.template,
		Instance:       n.instance,
		Capabilities:   n.caps,
		Config:         maps.Clone(n.config),
		DynamicConfig:  maps.Clone(n.dynamicConfig),
		pausedFallback: n.pausedFallback,
	}
}

// NodeInfo is a read-only view of a live node.
type NodeInfo struct {
	ID           string
	Template     string
	Instance     any
	Capabilities Capability
	// Config is the config the node accepted, after unknown keys were
	// stripped.
	Config        map[string]any
	DynamicConfig map[string]any

	pausedFallback bool
}

// snapshot is an immutable copy of runtime state published after every
// worker task.
type snapshot struct {
	nodes   map[string]NodeInfo
	ids     []string
	edges   []EdgeRecord
	version uint64
	last    graph.Definition
}

type task struct {
	ctx   context.Context
	run   func(ctx context.Context)
	done  chan struct{}
	final bool
}

// Runtime reconciles a live object graph against submitted definitions.
//
// State is owned by a single worker goroutine. Apply and the capability
// helpers are queued to it in FIFO order, so no two calls ever run at once.
// Readers see the state as of the last finished call and never block.
type Runtime struct {
	templates *Templates
	cfg       runtimeConfig

	// Worker-owned.
	nodes    map[string]*liveNode
	edges    map[string]*EdgeRecord
	inbound  map[string]map[string]struct{}
	outbound map[string]map[string]struct{}
	version  uint64
	last     graph.Definition

	snap    atomic.Pointer[snapshot]
	tasks   chan task
	stopped chan struct{}
	closed  atomic.Bool
}

// New creates a Runtime and starts its worker. Call Close to dispose every
// node and stop the worker.
func New(templates *Templates, opts ...Option) *Runtime {
	cfg := defaultRuntimeConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	r := &Runtime{
		templates: templates,
		cfg:       cfg,
		nodes:     make(map[string]*liveNode),
		edges:     make(map[string]*EdgeRecord),
		inbound:   make(map[string]map[string]struct{}),
		outbound:  make(map[string]map[string]struct{}),
		tasks:     make(chan task, cfg.queueSize),
		stopped:   make(chan struct{}),
	}
	r.publishSnapshot()
	go r.loop()
	return r
}

func (r *Runtime) loop() {
	defer close(r.stopped)
	for t := range r.tasks {
		t.run(t.ctx)
		close(t.done)
		if t.final {
			return
		}
	}
}

// submit queues fn and waits for it to finish. ctx bounds only the wait to
// enqueue; once queued, fn runs to completion with a context that is never
// canceled.
func (r *Runtime) submit(ctx context.Context, fn func(ctx context.Context)) error {
	if r.closed.Load() {
		return ErrRuntimeClosed
	}
	return r.enqueue(ctx, task{ctx: context.WithoutCancel(ctx), run: fn, done: make(chan struct{})})
}

func (r *Runtime) enqueue(ctx context.Context, t task) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case r.tasks <- t:
	case <-ctx.Done():
		return ctx.Err()
	case <-r.stopped:
		return ErrRuntimeClosed
	}

	select {
	case <-t.done:
		return nil
	case <-r.stopped:
		select {
		case <-t.done:
			return nil
		default:
			return ErrRuntimeClosed
		}
	}
}

// Close disposes every node and stops the worker. Calls queued before Close
// still run; later calls return ErrRuntimeClosed.
func (r *Runtime) Close(ctx context.Context) error {
	if !r.closed.CompareAndSwap(false, true) {
		select {
		case <-r.stopped:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	err := r.enqueue(ctx, task{
		ctx:   context.WithoutCancel(ctx),
		run:   r.disposeAll,
		done:  make(chan struct{}),
		final: true,
	})
	if err != nil {
		r.closed.Store(false)
	}
	return err
}

func (r *Runtime) disposeAll(ctx context.Context) {
	ids := slices.Sorted(maps.Keys(r.nodes))
	slices.Reverse(ids)
	res := &Result{}
	for _, id := range ids {
		r.disposeNode(ctx, id, res)
	}
	r.last = graph.Definition{}
	r.publishSnapshot()
}

func (r *Runtime) publishSnapshot() {
	s := &snapshot{
		nodes:   make(map[string]NodeInfo, len(r.nodes)),
		ids:     make([]string, 0, len(r.nodes)),
		edges:   make([]EdgeRecord, 0, len(r.edges)),
		version: r.version,
		last:    r.last,
	}
	for id, n := range r.nodes {
		s.nodes[id] = n.info()
		s.ids = append(s.ids, id)
	}
	sort.Strings(s.ids)
	for _, rec := range r.edges {
		s.edges = append(s.edges, *rec)
	}
	sort.Slice(s.edges, func(i, j int) bool { return s.edges[i].Key < s.edges[j].Key })
	r.snap.Store(s)
}

// Nodes returns every live node in id order.
func (r *Runtime) Nodes() []NodeInfo {
	s := r.snap.Load()
	out := make([]NodeInfo, 0, len(s.ids))
	for _, id := range s.ids {
		out = append(out, s.nodes[id])
	}
	return out
}

// Node returns the live node with id.
func (r *Runtime) Node(id string) (NodeInfo, bool) {
	n, ok := r.snap.Load().nodes[id]
	return n, ok
}

// NodeInstance returns the live instance for id.
func (r *Runtime) NodeInstance(id string) (any, bool) {
	n, ok := r.snap.Load().nodes[id]
	if !ok {
		return nil, false
	}
	return n.Instance, true
}

// ExecutedEdges returns every wired edge in key order.
func (r *Runtime) ExecutedEdges() []EdgeRecord {
	return slices.Clone(r.snap.Load().edges)
}

// Version returns the number of applies that have completed.
func (r *Runtime) Version() uint64 {
	return r.snap.Load().version
}

// LastApplied returns the definition of the last completed apply.
func (r *Runtime) LastApplied() graph.Definition {
	return r.snap.Load().last
}

// IsPaused reports whether id is paused. Unknown nodes are not paused.
func (r *Runtime) IsPaused(id string) bool {
	n, ok := r.Node(id)
	if !ok {
		return false
	}
	if p, ok := n.Instance.(Pausable); ok {
		return p.IsPaused()
	}
	return n.pausedFallback
}

// NodeStatus returns the provisioning status of id. ok is false when the
// node does not exist or is not Provisionable.
func (r *Runtime) NodeStatus(id string) (status ProvisionStatus, ok bool) {
	n, found := r.Node(id)
	if !found {
		return "", false
	}
	p, isProv := n.Instance.(Provisionable)
	if !isProv {
		return "", false
	}
	return p.ProvisionStatus(), true
}

// PauseNode pauses id. Nodes that are not Pausable only have their
// runtime-held flag set.
func (r *Runtime) PauseNode(ctx context.Context, id string) error {
	return r.withNode(ctx, id, func(ctx context.Context, n *liveNode) error {
		if p, ok := n.instance.(Pausable); ok {
			return p.Pause(ctx)
		}
		n.pausedFallback = true
		return nil
	})
}

// ResumeNode resumes id.
func (r *Runtime) ResumeNode(ctx context.Context, id string) error {
	return r.withNode(ctx, id, func(ctx context.Context, n *liveNode) error {
		if p, ok := n.instance.(Pausable); ok {
			return p.Resume(ctx)
		}
		n.pausedFallback = false
		return nil
	})
}

// ProvisionNode asks id to acquire its resources. It is a no-op for nodes
// that are not Provisionable.
func (r *Runtime) ProvisionNode(ctx context.Context, id string) error {
	return r.withNode(ctx, id, func(ctx context.Context, n *liveNode) error {
		if p, ok := n.instance.(Provisionable); ok {
			return p.Provision(ctx)
		}
		return nil
	})
}

// DeprovisionNode asks id to release its resources. It is a no-op for nodes
// that are not Provisionable.
func (r *Runtime) DeprovisionNode(ctx context.Context, id string) error {
	return r.withNode(ctx, id, func(ctx context.Context, n *liveNode) error {
		if p, ok := n.instance.(Provisionable); ok {
			return p.Deprovision(ctx)
		}
		return nil
	})
}

// withNode runs fn on the worker against the live node id.
func (r *Runtime) withNode(ctx context.Context, id string, fn func(context.Context, *liveNode) error) error {
	var err error
	serr := r.submit(ctx, func(ctx context.Context) {
		n, ok := r.nodes[id]
		if !ok {
			err = graph.UnknownNode(id)
			return
		}
		err = fn(ctx, n)
		r.publishSnapshot()
	})
	if serr != nil {
		return serr
	}
	return err
}

// lookup backs FactoryContext.Get. It runs on the worker.
func (r *Runtime) lookup(id string) (any, bool) {
	n, ok := r.nodes[id]
	if !ok {
		return nil, false
	}
	return n.instance, true
}

// emit publishes evt if an event bus is configured.
func (r *Runtime) emit(evt events.Event) {
	if r.cfg.bus == nil {
		return
	}
	if err := r.cfg.bus.Publish(context.Background(), evt); err != nil {
		r.cfg.logger.Debug("event not published",
			slog.String("type", evt.Type()),
			slog.String("error", err.Error()),
		)
	}
}

// watch forwards a node's change notifications to the event bus.
func (r *Runtime) watch(n *liveNode) {
	id := n.id
	if p, ok := n.instance.(Provisionable); ok {
		if unsub := p.OnProvisionStatusChange(func(s ProvisionStatus) {
			r.emit(events.New(events.TypeProvisionStatus, id, events.ProvisionStatus{NodeID: id, Status: string(s)}))
		}); unsub != nil {
			n.unsubscribe = append(n.unsubscribe, unsub)
		}
	}
	if d, ok := n.instance.(DynamicConfigurable); ok {
		if unsub := d.OnDynamicConfigChange(func(ready bool) {
			r.emit(events.New(events.TypeDynamicConfig, id, events.DynamicConfigState{NodeID: id, Ready: ready}))
		}); unsub != nil {
			n.unsubscribe = append(n.unsubscribe, unsub)
		}
	}
}
