package gitstore

import (
	"log/slog"
	"time"

	"github.com/randalmurphal/livegraph/pkg/livegraph/observability"
)

// Defaults applied by New for zero Options fields.
const (
	DefaultBranch           = "graph-state"
	DefaultLockTimeout      = 5 * time.Second
	DefaultLockPollInterval = 25 * time.Millisecond
	DefaultGraphName        = "main"
)

// Author identifies who made a commit.
type Author struct {
	Name  string `json:"name" yaml:"name"`
	Email string `json:"email" yaml:"email"`
}

// DefaultAuthor is used when neither the caller nor Options names one.
var DefaultAuthor = Author{Name: "livegraph", Email: "livegraph@localhost"}

// Catalog validates node templates and configs before anything is written.
// *livegraph.Templates implements it.
type Catalog interface {
	ValidateNode(template string, config, dynamicConfig map[string]any) error
}

// Options configures a Service.
type Options struct {
	// Dir is the repository root. It is created if missing.
	Dir string
	// Branch is the state branch. Defaults to DefaultBranch.
	Branch string
	// LockTimeout bounds the wait for a per-name lock.
	LockTimeout time.Duration
	// LockPollInterval is how often a held lock is retried.
	LockPollInterval time.Duration
	// Author is the default commit author.
	Author Author
	// Catalog validates templates and configs. Nil skips that check.
	Catalog Catalog

	Logger  *slog.Logger
	Metrics observability.MetricsRecorder
	Spans   observability.SpanManager
	// Now stamps UpdatedAt and commit times. Defaults to time.Now.
	Now func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Branch == "" {
		o.Branch = DefaultBranch
	}
	if o.LockTimeout <= 0 {
		o.LockTimeout = DefaultLockTimeout
	}
	if o.LockPollInterval <= 0 {
		o.LockPollInterval = DefaultLockPollInterval
	}
	if o.Author.Name == "" {
		o.Author = DefaultAuthor
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Metrics == nil {
		o.Metrics = observability.NoopMetrics{}
	}
	if o.Spans == nil {
		o.Spans = observability.NoopSpanManager{}
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}
