package livegraph

import (
	"context"
	"errors"

	"github.com/randalmurphal/livegraph/pkg/livegraph/graph"
	"github.com/randalmurphal/livegraph/pkg/livegraph/registry"
	"github.com/randalmurphal/livegraph/pkg/livegraph/schema"
)

// Factory builds the live instance for one node. It may return a nil
// instance; edges that need that node as an argument then fail with
// UNREADY_DEPENDENCY until it is recreated.
type Factory func(fc FactoryContext) (any, error)

// FactoryContext is handed to a Factory when a node is instantiated.
type FactoryContext struct {
	// Context carries request-scoped values from the Apply call. It is
	// never canceled by the runtime.
	Context context.Context
	// NodeID is the id of the node being built.
	NodeID string
	// Shared holds the dependencies registered with WithSharedDependencies.
	Shared map[string]any
	// PriorState is NodeDef.PriorState, passed through untouched.
	PriorState any

	lookup func(id string) (any, bool)
}

// Get returns the live instance of another node. ok is false for nodes not
// yet created, including nodes added later in the same apply.
func (fc FactoryContext) Get(id string) (instance any, ok bool) {
	if fc.lookup == nil {
		return nil, false
	}
	return fc.lookup(id)
}

// Metadata describes a template for builders and catalogs.
type Metadata struct {
	Title       string   `json:"title,omitempty" yaml:"title,omitempty"`
	Kind        string   `json:"kind,omitempty" yaml:"kind,omitempty"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Tags        []string `json:"tags,omitempty" yaml:"tags,omitempty"`
}

// Template is a registered node kind.
type Template struct {
	Name    string
	Factory Factory
	Ports   PortDescriptor
	Meta    Metadata
	// Capabilities lists what every instance of this template implements.
	// Instantiation fails if the instance is missing a declared capability.
	Capabilities        Capability
	ConfigSchema        *schema.Schema
	DynamicConfigSchema *schema.Schema
}

// TemplateOption configures a Template at registration.
type TemplateOption func(*Template)

// WithPorts sets the template's port descriptor.
func WithPorts(ports PortDescriptor) TemplateOption {
	return func(t *Template) { t.Ports = ports }
}

// WithMetadata sets display metadata.
func WithMetadata(meta Metadata) TemplateOption {
	return func(t *Template) { t.Meta = meta }
}

// WithCapabilities declares the capabilities instances implement.
func WithCapabilities(caps Capability) TemplateOption {
	return func(t *Template) { t.Capabilities = caps }
}

// WithConfigSchema sets the schema used to validate static config before
// it is stored.
func WithConfigSchema(s *schema.Schema) TemplateOption {
	return func(t *Template) { t.ConfigSchema = s }
}

// WithDynamicConfigSchema sets the schema used to validate dynamic config
// before it is stored.
func WithDynamicConfigSchema(s *schema.Schema) TemplateOption {
	return func(t *Template) { t.DynamicConfigSchema = s }
}

// Templates is the template registry. It is safe for concurrent use.
//
// Registering a name twice replaces the earlier template; tests and hot
// reload rely on that.
type Templates struct {
	reg *registry.Registry[string, Template]
}

// NewTemplates creates an empty template registry.
func NewTemplates() *Templates {
	return &Templates{reg: registry.New[string, Template]()}
}

// Register stores a template under name, replacing any previous one.
//
// Panics if name is empty or factory is nil.
func (t *Templates) Register(name string, factory Factory, opts ...TemplateOption) {
	if name == "" {
		panic("livegraph: template name cannot be empty")
	}
	if factory == nil {
		panic("livegraph: template factory cannot be nil")
	}

	tpl := Template{Name: name, Factory: factory}
	for _, opt := range opts {
		opt(&tpl)
	}
	t.reg.Register(name, tpl)
}

// Get returns the template registered under name.
func (t *Templates) Get(name string) (Template, bool) {
	return t.reg.Get(name)
}

// Names returns the registered template names in sorted order.
func (t *Templates) Names() []string {
	return t.reg.Keys()
}

// PortsMap exports every template's port descriptor, keyed by template name.
func (t *Templates) PortsMap() map[string]PortDescriptor {
	out := make(map[string]PortDescriptor, t.reg.Len())
	t.reg.Range(func(name string, tpl Template) bool {
		out[name] = tpl.Ports
		return true
	})
	return out
}

// TemplateInfo is the catalog entry for one template.
type TemplateInfo struct {
	Name         string   `json:"name" yaml:"name"`
	Meta         Metadata `json:"meta" yaml:"meta"`
	Capabilities []string `json:"capabilities,omitempty" yaml:"capabilities,omitempty"`
	Sources      []string `json:"sources,omitempty" yaml:"sources,omitempty"`
	Targets      []string `json:"targets,omitempty" yaml:"targets,omitempty"`
	ConfigFields []string `json:"configFields,omitempty" yaml:"configFields,omitempty"`
}

// Catalog lists every template in name order.
func (t *Templates) Catalog() []TemplateInfo {
	out := make([]TemplateInfo, 0, t.reg.Len())
	t.reg.Range(func(name string, tpl Template) bool {
		info := TemplateInfo{
			Name:         name,
			Meta:         tpl.Meta,
			Capabilities: tpl.Capabilities.Names(),
			Sources:      tpl.Ports.SourceHandles(),
			Targets:      tpl.Ports.TargetHandles(),
		}
		if tpl.ConfigSchema != nil {
			info.ConfigFields = tpl.ConfigSchema.Fields()
		}
		out = append(out, info)
		return true
	})
	return out
}

// ValidateNode checks that template exists and that the configs satisfy its
// schemas. Unrecognized top-level keys are tolerated because the runtime
// strips them on apply.
func (t *Templates) ValidateNode(template string, config, dynamicConfig map[string]any) error {
	tpl, ok := t.Get(template)
	if !ok {
		return graph.UnknownTemplate("", template)
	}
	if err := validateTolerant(tpl.ConfigSchema, config); err != nil {
		return err
	}
	return validateTolerant(tpl.DynamicConfigSchema, dynamicConfig)
}

func validateTolerant(s *schema.Schema, cfg map[string]any) error {
	if s == nil || cfg == nil {
		return nil
	}
	err := s.Validate(cfg)
	var verr *schema.ValidationError
	if errors.As(err, &verr) {
		if _, onlyUnknown := verr.UnrecognizedTopLevelKeys(); onlyUnknown {
			return nil
		}
	}
	return err
}
