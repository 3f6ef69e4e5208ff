package livegraph

import (
	"context"
	"io"
	"strings"

	"github.com/randalmurphal/livegraph/pkg/livegraph/schema"
)

// Capability is a set of optional behaviors a node instance implements.
type Capability uint8

const (
	CapConfigurable Capability = 1 << iota
	CapPausable
	CapProvisionable
	CapDynamicConfigurable
)

var capabilityNames = []struct {
	cap  Capability
	name string
}{
	{CapConfigurable, "configurable"},
	{CapPausable, "pausable"},
	{CapProvisionable, "provisionable"},
	{CapDynamicConfigurable, "dynamic_configurable"},
}

// Has reports whether every flag in other is set.
func (c Capability) Has(other Capability) bool {
	return c&other == other
}

// Names returns the set flags in a fixed order.
func (c Capability) Names() []string {
	var names []string
	for _, cn := range capabilityNames {
		if c.Has(cn.cap) {
			names = append(names, cn.name)
		}
	}
	return names
}

func (c Capability) String() string {
	if c == 0 {
		return "none"
	}
	return strings.Join(c.Names(), "|")
}

// Configurable nodes accept static config.
type Configurable interface {
	SetConfig(cfg map[string]any) error
}

// Pausable nodes can be paused and resumed. Nodes without it still answer
// IsPaused through a runtime-held flag.
type Pausable interface {
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
	IsPaused() bool
}

// ProvisionStatus is the lifecycle state of a Provisionable node.
type ProvisionStatus string

const (
	StatusNotReady       ProvisionStatus = "not_ready"
	StatusProvisioning   ProvisionStatus = "provisioning"
	StatusReady          ProvisionStatus = "ready"
	StatusError          ProvisionStatus = "error"
	StatusDeprovisioning ProvisionStatus = "deprovisioning"
)

// Provisionable nodes acquire external resources on demand.
type Provisionable interface {
	ProvisionStatus() ProvisionStatus
	Provision(ctx context.Context) error
	Deprovision(ctx context.Context) error
	// OnProvisionStatusChange registers fn and returns a func that removes it.
	OnProvisionStatusChange(fn func(ProvisionStatus)) (unsubscribe func())
}

// DynamicConfigurable nodes accept config that can change while running,
// typically credentials or endpoints entered after the graph is built.
type DynamicConfigurable interface {
	DynamicConfigReady() bool
	DynamicConfigSchema() *schema.Schema
	SetDynamicConfig(cfg map[string]any) error
	// OnDynamicConfigChange registers fn and returns a func that removes it.
	OnDynamicConfigChange(fn func(ready bool)) (unsubscribe func())
}

// Disposer is the preferred teardown hook.
type Disposer interface {
	Dispose(ctx context.Context) error
}

// Destroyer is an alternate teardown hook.
type Destroyer interface {
	Destroy(ctx context.Context) error
}

// Stopper is an alternate teardown hook.
type Stopper interface {
	Stop(ctx context.Context) error
}

// Setter method names reported in config errors.
const (
	methodSetConfig        = "SetConfig"
	methodSetDynamicConfig = "SetDynamicConfig"
)

// capabilitiesOf detects the capabilities instance implements.
func capabilitiesOf(instance any) Capability {
	var c Capability
	if _, ok := instance.(Configurable); ok {
		c |= CapConfigurable
	}
	if _, ok := instance.(Pausable); ok {
		c |= CapPausable
	}
	if _, ok := instance.(Provisionable); ok {
		c |= CapProvisionable
	}
	if _, ok := instance.(DynamicConfigurable); ok {
		c |= CapDynamicConfigurable
	}
	return c
}

// teardown invokes exactly one teardown hook: Dispose if present, otherwise
// the first of Destroy, Close, Stop. method is empty when none applies.
func teardown(ctx context.Context, instance any) (method string, err error) {
	switch v := instance.(type) {
	case Disposer:
		return "Dispose", v.Dispose(ctx)
	case Destroyer:
		return "Destroy", v.Destroy(ctx)
	case io.Closer:
		return "Close", v.Close()
	case Stopper:
		return "Stop", v.Stop(ctx)
	}
	return "", nil
}
