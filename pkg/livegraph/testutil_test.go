package livegraph

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/livegraph/pkg/livegraph/graph"
	"github.com/randalmurphal/livegraph/pkg/livegraph/schema"
)

// portCall is one CallPort invocation.
type portCall struct {
	method string
	arg    any
}

// portRecorder records port calls and fails the methods listed in fail.
type portRecorder struct {
	mu    sync.Mutex
	calls []portCall
	fail  map[string]error
}

func (p *portRecorder) CallPort(_ context.Context, method string, arg any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, portCall{method: method, arg: arg})
	return p.fail[method]
}

func (p *portRecorder) Calls() []portCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.calls)
}

// testAgent is Configurable, a PortCaller, and a Disposer.
type testAgent struct {
	portRecorder
	id       string
	allowed  map[string]bool
	cfg      map[string]any
	setCalls int
	disposed int
	closed   int
}

func (a *testAgent) SetConfig(cfg map[string]any) error {
	a.setCalls++
	if a.allowed != nil {
		var unknown []string
		for k := range cfg {
			if !a.allowed[k] {
				unknown = append(unknown, k)
			}
		}
		if len(unknown) > 0 {
			slices.Sort(unknown)
			return schema.UnrecognizedKeys(unknown...)
		}
	}
	if cfg["fail"] == true {
		return errors.New("config rejected")
	}
	a.cfg = cfg
	return nil
}

func (a *testAgent) Dispose(context.Context) error {
	a.disposed++
	return nil
}

// Close is never called while Dispose exists.
func (a *testAgent) Close() error {
	a.closed++
	return nil
}

// testTool only exposes itself and closes on teardown.
type testTool struct {
	id     string
	closed int
}

func (t *testTool) Close() error {
	t.closed++
	return nil
}

// testConnector wires through a create method with no destroy method.
type testConnector struct {
	portRecorder
	id string
}

// testPausable implements Pausable.
type testPausable struct {
	paused bool
}

func (p *testPausable) Pause(context.Context) error  { p.paused = true; return nil }
func (p *testPausable) Resume(context.Context) error { p.paused = false; return nil }
func (p *testPausable) IsPaused() bool               { return p.paused }

// testProvisioner implements Provisionable.
type testProvisioner struct {
	mu       sync.Mutex
	status   ProvisionStatus
	watchers map[int]func(ProvisionStatus)
	nextID   int
}

func newTestProvisioner() *testProvisioner {
	return &testProvisioner{status: StatusNotReady, watchers: make(map[int]func(ProvisionStatus))}
}

func (p *testProvisioner) ProvisionStatus() ProvisionStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

func (p *testProvisioner) set(s ProvisionStatus) {
	p.mu.Lock()
	p.status = s
	watchers := make([]func(ProvisionStatus), 0, len(p.watchers))
	for _, w := range p.watchers {
		watchers = append(watchers, w)
	}
	p.mu.Unlock()
	for _, w := range watchers {
		w(s)
	}
}

func (p *testProvisioner) Provision(context.Context) error {
	p.set(StatusProvisioning)
	p.set(StatusReady)
	return nil
}

func (p *testProvisioner) Deprovision(context.Context) error {
	p.set(StatusDeprovisioning)
	p.set(StatusNotReady)
	return nil
}

func (p *testProvisioner) OnProvisionStatusChange(fn func(ProvisionStatus)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextID
	p.nextID++
	p.watchers[id] = fn
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.watchers, id)
	}
}

func (p *testProvisioner) watcherCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.watchers)
}

// testDynamic implements DynamicConfigurable with a CUE schema.
type testDynamic struct {
	cfg     map[string]any
	onReady func(bool)
}

var dynamicSchemaForTest = schema.MustCompile(`{
	apiKey:    string
	endpoint?: string
}`)

func (d *testDynamic) DynamicConfigReady() bool            { return d.cfg != nil }
func (d *testDynamic) DynamicConfigSchema() *schema.Schema { return dynamicSchemaForTest }
func (d *testDynamic) SetDynamicConfig(cfg map[string]any) error {
	d.cfg = cfg
	if d.onReady != nil {
		d.onReady(true)
	}
	return nil
}
func (d *testDynamic) OnDynamicConfigChange(fn func(bool)) func() {
	d.onReady = fn
	return func() { d.onReady = nil }
}

// newTestTemplates registers the fixtures used across runtime tests.
func newTestTemplates() *Templates {
	agentPorts := PortDescriptor{
		Sources: map[string]Port{"self": InstancePort()},
		Targets: map[string]Port{"tools": MethodPort("AddTool", "RemoveTool")},
	}
	toolPorts := PortDescriptor{
		Sources: map[string]Port{"tool": InstancePort()},
	}

	tpl := NewTemplates()
	tpl.Register("agent", func(fc FactoryContext) (any, error) {
		return &testAgent{id: fc.NodeID}, nil
	}, WithPorts(agentPorts), WithCapabilities(CapConfigurable))
	tpl.Register("strict-agent", func(fc FactoryContext) (any, error) {
		return &testAgent{id: fc.NodeID, allowed: map[string]bool{"model": true}}, nil
	}, WithPorts(agentPorts))
	tpl.Register("tool", func(fc FactoryContext) (any, error) {
		return &testTool{id: fc.NodeID}, nil
	}, WithPorts(toolPorts))
	tpl.Register("tool-v2", func(fc FactoryContext) (any, error) {
		return &testTool{id: fc.NodeID}, nil
	}, WithPorts(toolPorts))
	tpl.Register("connector", func(fc FactoryContext) (any, error) {
		return &testConnector{id: fc.NodeID}, nil
	}, WithPorts(PortDescriptor{
		Targets: map[string]Port{"in": MethodPort("Connect", "")},
	}))
	tpl.Register("pausable", func(FactoryContext) (any, error) {
		return &testPausable{}, nil
	})
	tpl.Register("provisioner", func(FactoryContext) (any, error) {
		return newTestProvisioner(), nil
	})
	tpl.Register("dynamic", func(FactoryContext) (any, error) {
		return &testDynamic{}, nil
	})
	tpl.Register("empty", func(FactoryContext) (any, error) {
		return nil, nil
	}, WithPorts(toolPorts))
	return tpl
}

// newTestRuntime returns a runtime that is closed when the test ends.
func newTestRuntime(t *testing.T, opts ...Option) *Runtime {
	t.Helper()
	rt := New(newTestTemplates(), opts...)
	t.Cleanup(func() { _ = rt.Close(context.Background()) })
	return rt
}

// agentWithTool is a two-node graph with one wiring edge.
func agentWithTool() graph.Definition {
	return graph.Definition{
		Nodes: []graph.NodeDef{
			{ID: "a1", Template: "agent", Config: map[string]any{"model": "small"}},
			{ID: "t1", Template: "tool"},
		},
		Edges: []graph.EdgeDef{
			{Source: "t1", SourceHandle: "tool", Target: "a1", TargetHandle: "tools"},
		},
	}
}

func mustApply(t *testing.T, rt *Runtime, def graph.Definition) *Result {
	t.Helper()
	res, err := rt.Apply(context.Background(), def)
	require.NoError(t, err)
	return res
}

func instanceOf[T any](t *testing.T, rt *Runtime, id string) T {
	t.Helper()
	inst, ok := rt.NodeInstance(id)
	require.True(t, ok, "node %s not found", id)
	typed, ok := inst.(T)
	require.True(t, ok, "node %s has type %T", id, inst)
	return typed
}
