/*
Package livegraph reconciles a live, in-process object graph against a
declarative graph definition.

# Overview

Collaborators describe nodes (agents, tools, triggers, connectors) and the
edges between them as a graph.Definition. A Runtime diffs each submitted
definition against the previous one and performs the smallest set of
create, reconfigure, rewire, and dispose operations needed to make the live
objects match.

# Templates

Every node names a template. A template pairs a Factory with a port
descriptor that says how edges attach to it:

	templates := livegraph.NewTemplates()
	templates.Register("agent", newAgent,
	    livegraph.WithPorts(livegraph.PortDescriptor{
	        Targets: map[string]livegraph.Port{
	            "tools": livegraph.MethodPort("AddTool", "RemoveTool"),
	        },
	    }),
	    livegraph.WithCapabilities(livegraph.CapConfigurable),
	)
	templates.Register("search", newSearchTool,
	    livegraph.WithPorts(livegraph.PortDescriptor{
	        Sources: map[string]livegraph.Port{"tool": livegraph.InstancePort()},
	    }),
	)

An edge must have exactly one method port. Wiring calls that port's create
method on its owning instance through PortCaller, passing the other node's
instance. Removing the edge calls the destroy method with the same argument,
or calls create again with nil when no destroy method was declared.

# Applying

	rt := livegraph.New(templates, livegraph.WithLogger(logger))
	defer rt.Close(ctx)

	res, err := rt.Apply(ctx, graph.Definition{
	    Nodes: []graph.NodeDef{
	        {ID: "a1", Template: "agent", Config: map[string]any{"model": "small"}},
	        {ID: "t1", Template: "search"},
	    },
	    Edges: []graph.EdgeDef{
	        {Source: "t1", SourceHandle: "tool", Target: "a1", TargetHandle: "tools"},
	    },
	})

Calls are queued and run one at a time. An apply stops at the first node
creation or edge wiring error and keeps what it already did; applying the
same definition again converges. See Apply for the step order.

# Capabilities

Instances opt into extra behavior by implementing Configurable, Pausable,
Provisionable, or DynamicConfigurable. Config setters that reject only
unrecognized top-level keys (a schema.ValidationError) are retried with
those keys removed, and the trimmed config is what the runtime stores.

Teardown calls Dispose if the instance has it, otherwise the first of
Destroy, Close, or Stop.
*/
package livegraph
