package livegraph

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/randalmurphal/livegraph/pkg/livegraph/events"
	"github.com/randalmurphal/livegraph/pkg/livegraph/graph"
	"github.com/randalmurphal/livegraph/pkg/livegraph/journal"
	"github.com/randalmurphal/livegraph/pkg/livegraph/observability"
	"github.com/randalmurphal/livegraph/pkg/livegraph/schema"
)

// Apply steps, in execution order. Result.Step names the last one entered.
const (
	StepValidate      = "validate"
	StepAddNodes      = "nodes.add"
	StepRecreateNodes = "nodes.recreate"
	StepStaticConfig  = "config.static"
	StepDynamicConfig = "config.dynamic"
	StepRemoveEdges   = "edges.remove"
	StepRemoveNodes   = "nodes.remove"
	StepAddEdges      = "edges.add"
	StepDone          = "done"
)

// Result reports what an Apply did.
type Result struct {
	ApplyID string
	// Version is the runtime version after the apply. It is unchanged when
	// the apply failed.
	Version uint64
	Diff    Diff
	// RewiredEdges were present before and after but had to be wired again
	// because an endpoint was recreated.
	RewiredEdges []graph.EdgeDef
	Step         string
	// Errors holds the error that stopped the apply, if any.
	Errors []error
	// Warnings holds non-fatal failures: config updates, edge reversals,
	// and teardown hooks.
	Warnings []error
	Duration time.Duration
}

// Apply reconciles the live graph to next.
//
// Changes are made in a fixed order: add nodes, recreate nodes whose
// template changed, update static then dynamic config, unwire removed
// edges, dispose removed nodes, wire added edges. The first error while
// creating nodes or wiring edges stops the apply. Work already done is kept
// and the version does not advance; the returned Result says where it
// stopped. Config and teardown failures are recorded as warnings.
//
// next is compared with the live graph rather than the last applied
// definition, so applying a known-good definition after a failure restores
// it.
//
// ctx bounds only the wait for earlier calls to finish.
func (r *Runtime) Apply(ctx context.Context, next graph.Definition) (*Result, error) {
	var (
		res *Result
		err error
	)
	if serr := r.submit(ctx, func(ctx context.Context) {
		res, err = r.apply(ctx, next)
	}); serr != nil {
		return nil, serr
	}
	return res, err
}

func (r *Runtime) apply(ctx context.Context, next graph.Definition) (*Result, error) {
	applyID := uuid.NewString()
	start := time.Now()
	elapsed := observability.TimedOperation()

	ctx, span := r.cfg.spans.StartApplySpan(ctx, applyID, r.version)
	logger := observability.EnrichLogger(r.cfg.logger, applyID, r.version)
	observability.LogApplyStart(logger, len(next.Nodes), len(next.Edges))

	res := &Result{ApplyID: applyID, Version: r.version}
	err := r.reconcile(ctx, logger, next, res)
	res.Duration = time.Since(start)
	if err != nil {
		res.Errors = append(res.Errors, err)
	}

	r.publishSnapshot()
	r.cfg.spans.EndSpanWithError(span, err)
	r.cfg.metrics.RecordApply(ctx, err == nil, res.Duration)
	r.record(ctx, logger, res, start, err)

	if err != nil {
		observability.LogApplyError(logger, err, elapsed(), res.Step)
		return res, err
	}
	observability.LogApplyComplete(logger, res.Version, elapsed())
	r.emit(events.New(events.TypeGraphApplied, events.SourceRuntime, events.GraphApplied{
		ApplyID: applyID,
		Version: res.Version,
		Nodes:   len(r.nodes),
		Edges:   len(r.edges),
	}, events.WithCorrelationID(applyID)))
	return res, nil
}

func (r *Runtime) reconcile(ctx context.Context, logger *slog.Logger, next graph.Definition, res *Result) error {
	res.Step = StepValidate
	if err := next.Validate(); err != nil {
		return err
	}
	diff := ComputeDiff(r.liveDefinition(), next)
	res.Diff = diff
	ports := NewPorts(r.templates.PortsMap())

	defs := make(map[string]graph.NodeDef, len(next.Nodes))
	for _, n := range next.Nodes {
		defs[n.ID] = n
	}
	// Edges dropped because an endpoint was torn down and rebuilt.
	rewire := make(map[string]bool)

	res.Step = StepAddNodes
	observability.AddSpanEvent(ctx, res.Step)
	for _, def := range diff.AddedNodes {
		if err := r.instantiate(ctx, def, res); err != nil {
			return err
		}
	}

	res.Step = StepRecreateNodes
	observability.AddSpanEvent(ctx, res.Step)
	for _, id := range diff.RecreatedNodeIDs {
		for _, rec := range r.disposeNode(ctx, id, res) {
			rewire[rec.Key] = true
		}
		if err := r.instantiate(ctx, defs[id], res); err != nil {
			return err
		}
	}

	res.Step = StepStaticConfig
	for _, id := range diff.ConfigUpdateNodeIDs {
		r.updateConfig(logger, defs[id], res)
	}

	res.Step = StepDynamicConfig
	for _, id := range diff.DynamicConfigUpdateNodeIDs {
		r.updateDynamicConfig(logger, defs[id], res)
	}

	res.Step = StepRemoveEdges
	observability.AddSpanEvent(ctx, res.Step)
	for _, e := range diff.RemovedEdges {
		if rec, ok := r.edges[e.Key()]; ok {
			r.unwire(ctx, logger, rec, res)
		}
	}

	res.Step = StepRemoveNodes
	observability.AddSpanEvent(ctx, res.Step)
	for _, id := range diff.RemovedNodeIDs {
		r.disposeNode(ctx, id, res)
	}

	res.Step = StepAddEdges
	observability.AddSpanEvent(ctx, res.Step)
	added := make(map[string]bool, len(diff.AddedEdges))
	for _, e := range diff.AddedEdges {
		added[e.Key()] = true
	}
	index := make(map[string]int, len(next.Edges))
	for i, e := range next.Edges {
		if _, seen := index[e.Key()]; !seen {
			index[e.Key()] = i
		}
	}
	for _, e := range next.UniqueEdges() {
		key := e.Key()
		if !added[key] && !rewire[key] {
			continue
		}
		if _, wired := r.edges[key]; wired {
			continue
		}
		if rewire[key] && !added[key] {
			res.RewiredEdges = append(res.RewiredEdges, e)
		}
		if err := r.wire(ctx, ports, index[key], e); err != nil {
			return err
		}
	}

	res.Step = StepDone
	r.version++
	res.Version = r.version
	r.last = cloneDefinition(next)
	return nil
}

// liveDefinition describes what is actually running: every live node as
// last requested and every wired edge. After a failed apply it differs from
// the last applied definition, and diffing against it lets the next apply
// converge. Order follows the last applied definition, then sorted ids.
func (r *Runtime) liveDefinition() graph.Definition {
	var live graph.Definition
	seen := make(map[string]bool, len(r.nodes))
	for _, n := range r.last.Nodes {
		if ln, ok := r.nodes[n.ID]; ok && !seen[n.ID] {
			seen[n.ID] = true
			live.Nodes = append(live.Nodes, ln.applied)
		}
	}
	for _, id := range slices.Sorted(maps.Keys(r.nodes)) {
		if !seen[id] {
			live.Nodes = append(live.Nodes, r.nodes[id].applied)
		}
	}

	wired := make(map[string]bool, len(r.edges))
	for _, e := range r.last.Edges {
		key := e.Key()
		if rec, ok := r.edges[key]; ok && !wired[key] {
			wired[key] = true
			live.Edges = append(live.Edges, rec.Edge)
		}
	}
	for _, key := range slices.Sorted(maps.Keys(r.edges)) {
		if !wired[key] {
			live.Edges = append(live.Edges, r.edges[key].Edge)
		}
	}
	return live
}

// instantiate builds a node and applies its initial config. A config
// failure here is fatal and the instance is torn down.
func (r *Runtime) instantiate(ctx context.Context, def graph.NodeDef, res *Result) error {
	tpl, ok := r.templates.Get(def.Template)
	if !ok {
		return graph.UnknownTemplate(def.ID, def.Template)
	}

	instance, err := tpl.Factory(FactoryContext{
		Context:    ctx,
		NodeID:     def.ID,
		Shared:     r.cfg.shared,
		PriorState: def.PriorState,
		lookup:     r.lookup,
	})
	if err != nil {
		return fmt.Errorf("instantiate node %q (template %q): %w", def.ID, def.Template, err)
	}

	n := &liveNode{
		id:       def.ID,
		template: def.Template,
		instance: instance,
		caps:     capabilitiesOf(instance),
		applied: graph.NodeDef{
			ID:            def.ID,
			Template:      def.Template,
			Config:        maps.Clone(def.Config),
			DynamicConfig: maps.Clone(def.DynamicConfig),
		},
	}
	if missing := tpl.Capabilities &^ n.caps; missing != 0 {
		r.discard(ctx, n, res)
		return fmt.Errorf("instantiate node %q: template %q declares %s but the instance does not implement it",
			def.ID, def.Template, missing)
	}

	if len(def.Config) > 0 {
		if c, ok := instance.(Configurable); ok {
			stored, err := applyConfig(def.ID, methodSetConfig, def.Config, withSchema(tpl.ConfigSchema, c.SetConfig))
			if err != nil {
				r.discard(ctx, n, res)
				return err
			}
			n.config = stored
		} else {
			r.warn(r.cfg.logger, res, def.ID, "configure", graph.MissingConfigure(def.ID, methodSetConfig))
			n.config = maps.Clone(def.Config)
		}
	}

	if len(def.DynamicConfig) > 0 {
		if d, ok := instance.(DynamicConfigurable); ok {
			stored, err := applyConfig(def.ID, methodSetDynamicConfig, def.DynamicConfig,
				withSchema(dynamicSchema(d, tpl), d.SetDynamicConfig))
			if err != nil {
				r.discard(ctx, n, res)
				return err
			}
			n.dynamicConfig = stored
		} else {
			r.warn(r.cfg.logger, res, def.ID, "configure", graph.MissingConfigure(def.ID, methodSetDynamicConfig))
			n.dynamicConfig = maps.Clone(def.DynamicConfig)
		}
	}

	r.nodes[def.ID] = n
	r.watch(n)
	return nil
}

func dynamicSchema(d DynamicConfigurable, tpl Template) *schema.Schema {
	if s := d.DynamicConfigSchema(); s != nil {
		return s
	}
	return tpl.DynamicConfigSchema
}

// discard tears down an instance that never became a live node.
func (r *Runtime) discard(ctx context.Context, n *liveNode, res *Result) {
	if method, err := teardown(ctx, n.instance); err != nil {
		r.warn(r.cfg.logger, res, n.id, method, err)
	}
}

func (r *Runtime) updateConfig(logger *slog.Logger, def graph.NodeDef, res *Result) {
	n, ok := r.nodes[def.ID]
	if !ok {
		return
	}
	n.applied.Config = maps.Clone(def.Config)
	c, ok := n.instance.(Configurable)
	if !ok {
		r.warn(logger, res, def.ID, "configure", graph.MissingConfigure(def.ID, methodSetConfig))
		return
	}
	tpl, _ := r.templates.Get(n.template)
	stored, err := applyConfig(def.ID, methodSetConfig, def.Config, withSchema(tpl.ConfigSchema, c.SetConfig))
	if err != nil {
		r.warn(logger, res, def.ID, "configure", err)
		return
	}
	n.config = stored
}

func (r *Runtime) updateDynamicConfig(logger *slog.Logger, def graph.NodeDef, res *Result) {
	n, ok := r.nodes[def.ID]
	if !ok {
		return
	}
	n.applied.DynamicConfig = maps.Clone(def.DynamicConfig)
	d, ok := n.instance.(DynamicConfigurable)
	if !ok {
		r.warn(logger, res, def.ID, "configure", graph.MissingConfigure(def.ID, methodSetDynamicConfig))
		return
	}
	tpl, _ := r.templates.Get(n.template)
	stored, err := applyConfig(def.ID, methodSetDynamicConfig, def.DynamicConfig,
		withSchema(dynamicSchema(d, tpl), d.SetDynamicConfig))
	if err != nil {
		r.warn(logger, res, def.ID, "configure", err)
		return
	}
	n.dynamicConfig = stored
}

// disposeNode unwires every edge touching id, calls one teardown hook, and
// forgets the node. Failures are warnings. It returns the dropped records.
func (r *Runtime) disposeNode(ctx context.Context, id string, res *Result) []*EdgeRecord {
	n, ok := r.nodes[id]
	if !ok {
		return nil
	}

	keys := make(map[string]struct{}, len(r.inbound[id])+len(r.outbound[id]))
	maps.Copy(keys, r.inbound[id])
	maps.Copy(keys, r.outbound[id])

	var dropped []*EdgeRecord
	for _, key := range slices.Sorted(maps.Keys(keys)) {
		rec, ok := r.edges[key]
		if !ok {
			continue
		}
		r.unwire(ctx, r.cfg.logger, rec, res)
		dropped = append(dropped, rec)
	}

	for _, unsub := range n.unsubscribe {
		unsub()
	}
	if method, err := teardown(ctx, n.instance); err != nil {
		r.warn(r.cfg.logger, res, id, method, err)
	}

	delete(r.nodes, id)
	delete(r.inbound, id)
	delete(r.outbound, id)
	return dropped
}

// wire resolves and invokes one edge and records it.
func (r *Runtime) wire(ctx context.Context, ports *Ports, idx int, e graph.EdgeDef) error {
	src, ok := r.nodes[e.Source]
	if !ok {
		return graph.MissingNode(e.Source, idx)
	}
	tgt, ok := r.nodes[e.Target]
	if !ok {
		return graph.MissingNode(e.Target, idx)
	}

	res, err := ports.Resolve(idx, e, src.template, tgt.template)
	if err != nil {
		return err
	}

	callable := r.nodes[res.Callable.NodeID]
	arg := r.nodes[res.Argument.NodeID]
	if arg.instance == nil {
		return graph.UnreadyDependency(arg.id, idx)
	}

	err = invokePort(ctx, callable.instance, res.Callable.Port.Create, arg.instance)
	r.cfg.metrics.RecordEdgeOperation(ctx, "create", err)
	if err != nil {
		return graph.Invocation(callable.id, idx, res.Callable.Port.Create, err)
	}

	rec := newEdgeRecord(idx, e, res, arg.instance)
	r.edges[rec.Key] = rec
	addIndex(r.outbound, e.Source, rec.Key)
	addIndex(r.inbound, e.Target, rec.Key)
	return nil
}

// unwire runs the record's reversal, best-effort, and drops the record.
func (r *Runtime) unwire(ctx context.Context, logger *slog.Logger, rec *EdgeRecord, res *Result) {
	if rec.Reversible {
		if n, ok := r.nodes[rec.Reversal.NodeID]; ok {
			err := invokePort(ctx, n.instance, rec.Reversal.Method, rec.Reversal.Argument)
			r.cfg.metrics.RecordEdgeOperation(ctx, "reverse", err)
			if err != nil {
				observability.LogEdgeReversalError(logger, rec.Key, err)
				res.Warnings = append(res.Warnings, fmt.Errorf("reverse edge %s: %w", rec.Key, err))
			}
		}
	}

	delete(r.edges, rec.Key)
	removeIndex(r.outbound, rec.Edge.Source, rec.Key)
	removeIndex(r.inbound, rec.Edge.Target, rec.Key)
}

func (r *Runtime) warn(logger *slog.Logger, res *Result, nodeID, op string, err error) {
	observability.LogNodeWarning(logger, nodeID, op, err)
	res.Warnings = append(res.Warnings, err)
}

func (r *Runtime) record(ctx context.Context, logger *slog.Logger, res *Result, start time.Time, err error) {
	if r.cfg.journal == nil {
		return
	}
	entry := journal.Entry{
		ID:        res.ApplyID,
		Version:   res.Version,
		Success:   err == nil,
		Step:      res.Step,
		Summary:   res.Diff.Summary(),
		StartedAt: start,
		Duration:  res.Duration,
	}
	if err != nil {
		entry.Error = err.Error()
		entry.Code = string(graph.CodeOf(err))
	}
	if jerr := r.cfg.journal.Record(ctx, entry); jerr != nil {
		observability.LogJournalError(logger, jerr)
	}
}

func addIndex(idx map[string]map[string]struct{}, nodeID, key string) {
	if idx[nodeID] == nil {
		idx[nodeID] = make(map[string]struct{})
	}
	idx[nodeID][key] = struct{}{}
}

func removeIndex(idx map[string]map[string]struct{}, nodeID, key string) {
	set, ok := idx[nodeID]
	if !ok {
		return
	}
	delete(set, key)
	if len(set) == 0 {
		delete(idx, nodeID)
	}
}

func cloneDefinition(d graph.Definition) graph.Definition {
	return graph.Definition{
		Nodes: slices.Clone(d.Nodes),
		Edges: slices.Clone(d.Edges),
	}
}
