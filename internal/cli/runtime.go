package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/livegraph/pkg/livegraph"
	"github.com/randalmurphal/livegraph/pkg/livegraph/config"
	"github.com/randalmurphal/livegraph/pkg/livegraph/graph"
	"github.com/randalmurphal/livegraph/pkg/livegraph/journal"
	"github.com/randalmurphal/livegraph/pkg/livegraph/observability"
)

// openJournal returns the configured journal store.
func (a *app) openJournal() (journal.Store, error) {
	if a.settings.Journal.Path == "" {
		return journal.NewMemoryStore(), nil
	}
	store, err := journal.NewSQLiteStore(a.settings.Journal.Path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	return store, nil
}

// applyReport is what graphctl apply prints.
type applyReport struct {
	ApplyID   string          `json:"applyId" yaml:"applyId"`
	Graph     string          `json:"graph,omitempty" yaml:"graph,omitempty"`
	Revision  int             `json:"revision" yaml:"revision"`
	Version   uint64          `json:"version" yaml:"version"`
	Step      string          `json:"step" yaml:"step"`
	Summary   journal.Summary `json:"summary" yaml:"summary"`
	Rewired   []string        `json:"rewired,omitempty" yaml:"rewired,omitempty"`
	Warnings  []string        `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	Error     string          `json:"error,omitempty" yaml:"error,omitempty"`
	Nodes     []string        `json:"nodes" yaml:"nodes"`
	Edges     []string        `json:"edges" yaml:"edges"`
	Duration  string          `json:"duration" yaml:"duration"`
	Succeeded bool            `json:"succeeded" yaml:"succeeded"`
}

func (a *app) applyCommand() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "apply [name]",
		Short: "Reconcile a graph against a fresh runtime",
		Long: `Load a graph from the store (or from --file) and apply it to a runtime
holding the built-in templates. The result is printed and recorded in the
journal; the runtime is torn down on exit.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			report := applyReport{}
			var def graph.Definition
			if file != "" {
				if err := config.DecodeFile(file, &def); err != nil {
					return err
				}
			} else {
				name := graphName(args)
				doc, err := a.store().Get(ctx, name)
				if err != nil {
					return err
				}
				if doc == nil {
					return fmt.Errorf("graph %q not found", name)
				}
				def = doc.Definition()
				report.Graph = doc.Name
				report.Revision = doc.Version
			}

			jstore, err := a.openJournal()
			if err != nil {
				return err
			}
			defer jstore.Close()

			opts := []livegraph.Option{
				livegraph.WithLogger(a.logger),
				livegraph.WithJournal(jstore),
				livegraph.WithQueueSize(a.settings.Runtime.QueueSize),
				livegraph.WithTracing(a.settings.Telemetry.Tracing),
			}
			if a.settings.Telemetry.Metrics {
				opts = append(opts, livegraph.WithMetrics(observability.NewMetricsRecorder()))
			}
			rt := livegraph.New(a.templates(), opts...)
			defer func() {
				closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
				defer cancel()
				_ = rt.Close(closeCtx)
			}()

			res, applyErr := rt.Apply(ctx, def)
			if res == nil {
				return applyErr
			}
			fillReport(&report, rt, res, applyErr)

			out := cmd.OutOrStdout()
			if handled, err := a.printFormatted(out, report); handled {
				if err != nil {
					return err
				}
				return applyErr
			}
			printReport(out, report)
			return applyErr
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "apply a definition file instead of a stored graph")
	return cmd
}

func fillReport(report *applyReport, rt *livegraph.Runtime, res *livegraph.Result, err error) {
	report.ApplyID = res.ApplyID
	report.Version = res.Version
	report.Step = res.Step
	report.Summary = res.Diff.Summary()
	report.Duration = res.Duration.Round(time.Microsecond).String()
	report.Succeeded = err == nil
	if err != nil {
		report.Error = err.Error()
	}
	for _, e := range res.RewiredEdges {
		report.Rewired = append(report.Rewired, e.Key())
	}
	for _, w := range res.Warnings {
		report.Warnings = append(report.Warnings, w.Error())
	}
	report.Nodes = []string{}
	for _, n := range rt.Nodes() {
		report.Nodes = append(report.Nodes, n.ID+" ("+n.Template+")")
	}
	report.Edges = []string{}
	for _, e := range rt.ExecutedEdges() {
		report.Edges = append(report.Edges, e.Key)
	}
}

func printReport(w io.Writer, r applyReport) {
	status := "applied"
	if !r.Succeeded {
		status = "failed at " + r.Step
	}
	if r.Graph != "" {
		fmt.Fprintf(w, "Graph: %s v%d\n", r.Graph, r.Revision)
	}
	fmt.Fprintf(w, "Apply: %s (%s)\n", r.ApplyID, status)
	fmt.Fprintf(w, "Runtime version: %d\n", r.Version)
	s := r.Summary
	fmt.Fprintf(w, "Nodes: +%d -%d ~%d recreated, %d config, %d dynamic config\n",
		s.AddedNodes, s.RemovedNodes, s.RecreatedNodes, s.ConfigUpdates, s.DynamicConfigUpdates)
	fmt.Fprintf(w, "Edges: +%d -%d, %d rewired\n", s.AddedEdges, s.RemovedEdges, len(r.Rewired))
	for _, warn := range r.Warnings {
		fmt.Fprintf(w, "Warning: %s\n", warn)
	}
	if r.Error != "" {
		fmt.Fprintf(w, "Error: %s\n", r.Error)
	}
	fmt.Fprintf(w, "Live: %d nodes, %d edges\n", len(r.Nodes), len(r.Edges))
}

func (a *app) templatesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "templates",
		Short: "List the node templates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			catalog := a.templates().Catalog()
			out := cmd.OutOrStdout()
			if handled, err := a.printFormatted(out, catalog); handled {
				return err
			}
			table := newTable(out, "NAME", "KIND", "CAPABILITIES", "SOURCES", "TARGETS", "CONFIG")
			for _, t := range catalog {
				table.Append([]string{
					t.Name,
					t.Meta.Kind,
					join(t.Capabilities),
					join(t.Sources),
					join(t.Targets),
					join(t.ConfigFields),
				})
			}
			table.Render()
			return nil
		},
	}
}

func (a *app) journalCommand() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "List recorded applies, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.settings.Journal.Path == "" {
				return errors.New("journal.path is not set; applies are only kept in memory")
			}
			store, err := a.openJournal()
			if err != nil {
				return err
			}
			defer store.Close()

			entries, err := store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if handled, err := a.printFormatted(out, entries); handled {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(out, "No applies recorded.")
				return nil
			}
			table := newTable(out, "SEQ", "APPLY", "VERSION", "RESULT", "STEP", "STARTED")
			for _, e := range entries {
				result := "ok"
				if !e.Success {
					result = e.Code
					if result == "" {
						result = "error"
					}
				}
				table.Append([]string{
					strconv.FormatInt(e.Sequence, 10),
					e.ID[:8],
					strconv.FormatUint(e.Version, 10),
					result,
					e.Step,
					e.StartedAt.Format("2006-01-02 15:04:05"),
				})
			}
			table.Render()
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of entries (0 for all)")
	return cmd
}

func join(s []string) string {
	if len(s) == 0 {
		return "-"
	}
	return strings.Join(s, ",")
}
