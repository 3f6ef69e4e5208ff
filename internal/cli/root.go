// Package cli provides the graphctl command-line interface.
package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/livegraph/internal/builtin"
	"github.com/randalmurphal/livegraph/internal/settings"
	"github.com/randalmurphal/livegraph/pkg/livegraph"
	"github.com/randalmurphal/livegraph/pkg/livegraph/gitstore"
	"github.com/randalmurphal/livegraph/pkg/livegraph/observability"
)

// Version is the graphctl version. Overridden at build time with -ldflags.
var Version = "0.1.0"

// app holds flag values and the state built from them for one invocation.
type app struct {
	cfgFile    string
	dir        string
	verbose    bool
	outputJSON bool
	outputYAML bool

	settings *settings.Settings
	logger   *slog.Logger
}

// NewRootCommand builds the graphctl command tree.
func NewRootCommand() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "graphctl",
		Short: "Manage versioned live graphs",
		Long: `graphctl stores graph definitions on a git branch and reconciles them
against a live runtime.

Examples:
  graphctl init                     # Create the store and its state branch
  graphctl put -f graph.yaml        # Commit a new version of a graph
  graphctl get main                 # Show the current version
  graphctl history main             # List the commits of a graph
  graphctl apply main               # Reconcile a stored graph
  graphctl templates                # List the node templates`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default is ./config.yaml or $HOME/.config/livegraph/config.yaml)")
	flags.StringVar(&a.dir, "dir", "", "graph store directory (overrides store.dir)")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")
	flags.BoolVar(&a.outputJSON, "json", false, "print JSON")
	flags.BoolVar(&a.outputYAML, "yaml", false, "print YAML")
	root.MarkFlagsMutuallyExclusive("json", "yaml")

	root.AddCommand(
		a.initCommand(),
		a.getCommand(),
		a.putCommand(),
		a.listCommand(),
		a.historyCommand(),
		a.applyCommand(),
		a.templatesCommand(),
		a.journalCommand(),
		versionCommand(),
	)
	return root
}

// Execute runs graphctl with os.Args.
func Execute() error {
	return NewRootCommand().Execute()
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	s, err := settings.Load(a.cfgFile)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	if a.dir != "" {
		s.Store.Dir = a.dir
	}
	if a.verbose {
		s.Logging.Level = "debug"
	}
	a.settings = s
	a.logger = s.Logger(cmd.ErrOrStderr())
	return nil
}

func (a *app) templates() *livegraph.Templates {
	t := livegraph.NewTemplates()
	builtin.Register(t)
	return t
}

func (a *app) store() *gitstore.Service {
	st := a.settings.Store
	opts := gitstore.Options{
		Dir:              st.Dir,
		Branch:           st.Branch,
		LockTimeout:      st.LockTimeout,
		LockPollInterval: st.LockPollInterval,
		Author:           gitstore.Author{Name: st.AuthorName, Email: st.AuthorEmail},
		Catalog:          a.templates(),
		Logger:           a.logger,
	}
	if a.settings.Telemetry.Metrics {
		opts.Metrics = observability.NewMetricsRecorder()
	}
	if a.settings.Telemetry.Tracing {
		opts.Spans = observability.NewSpanManager()
	}
	return gitstore.New(opts)
}

func versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		// No settings needed.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "graphctl version %s\n", Version)
		},
	}
}
