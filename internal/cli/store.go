package cli

import (
	"fmt"
	"net/mail"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/livegraph/pkg/livegraph/config"
	"github.com/randalmurphal/livegraph/pkg/livegraph/gitstore"
	"github.com/randalmurphal/livegraph/pkg/livegraph/graph"
)

// graphName returns the optional positional name, defaulting to main.
func graphName(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return gitstore.DefaultGraphName
}

func (a *app) initCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the graph store",
		Long:  `Create the repository and state branch if they do not exist. Safe to run twice.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.store().InitIfNeeded(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Graph store ready at %s (branch %s)\n",
				a.settings.Store.Dir, a.settings.Store.Branch)
			return nil
		},
	}
}

func (a *app) getCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get [name]",
		Short: "Show the current version of a graph",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := graphName(args)
			doc, err := a.store().Get(cmd.Context(), name)
			if err != nil {
				return err
			}
			if doc == nil {
				return fmt.Errorf("graph %q not found", name)
			}

			out := cmd.OutOrStdout()
			if handled, err := a.printFormatted(out, doc); handled {
				return err
			}

			fmt.Fprintf(out, "Graph: %s\n", doc.Name)
			fmt.Fprintf(out, "Version: %d\n", doc.Version)
			fmt.Fprintf(out, "Updated: %s\n", doc.UpdatedAt.Format("2006-01-02 15:04:05"))
			fmt.Fprintln(out)

			if len(doc.Nodes) > 0 {
				table := newTable(out, "NODE", "TEMPLATE", "CONFIG")
				for _, n := range doc.Nodes {
					table.Append([]string{n.ID, n.Template, strconv.Itoa(len(n.Config))})
				}
				table.Render()
				fmt.Fprintln(out)
			}
			if len(doc.Edges) > 0 {
				table := newTable(out, "EDGE")
				for _, e := range doc.Edges {
					table.Append([]string{e.Key()})
				}
				table.Render()
			}
			return nil
		},
	}
}

func (a *app) putCommand() *cobra.Command {
	var (
		file   string
		expect int
		author string
	)
	cmd := &cobra.Command{
		Use:   "put [name] -f <file>",
		Short: "Commit a new version of a graph",
		Long: `Read a graph from a YAML or JSON file and commit it as the next version.

The file has the same shape as the stored document: name, nodes, edges and
an optional version. The version, or --expect, is the version the file was
based on; the commit is rejected if the stored graph has moved on.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var req graph.UpsertRequest
			if err := config.DecodeFile(file, &req); err != nil {
				return err
			}
			if len(args) > 0 {
				req.Name = args[0]
			}
			if req.Name == "" {
				req.Name = gitstore.DefaultGraphName
			}
			if cmd.Flags().Changed("expect") {
				req.Version = graph.ExpectVersion(expect)
			}

			var who *gitstore.Author
			if author != "" {
				parsed, err := parseAuthor(author)
				if err != nil {
					return err
				}
				who = &parsed
			}

			doc, err := a.store().Upsert(cmd.Context(), req, who)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if handled, err := a.printFormatted(out, doc); handled {
				return err
			}
			fmt.Fprintf(out, "Committed %s v%d (%d nodes, %d edges)\n",
				doc.Name, doc.Version, len(doc.Nodes), len(doc.Edges))
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "graph file (.yaml, .yml or .json)")
	cmd.Flags().IntVar(&expect, "expect", 0, "version the change is based on")
	cmd.Flags().StringVar(&author, "author", "", `commit author as "Name <email>"`)
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

// parseAuthor accepts "Name <email>" or a bare name.
func parseAuthor(s string) (gitstore.Author, error) {
	if !strings.Contains(s, "<") {
		return gitstore.Author{Name: strings.TrimSpace(s)}, nil
	}
	addr, err := mail.ParseAddress(s)
	if err != nil {
		return gitstore.Author{}, fmt.Errorf("invalid author %q: %w", s, err)
	}
	return gitstore.Author{Name: addr.Name, Email: addr.Address}, nil
}

// listEntry is one row of graphctl list.
type listEntry struct {
	Name    string `json:"name" yaml:"name"`
	Version int    `json:"version" yaml:"version"`
	Nodes   int    `json:"nodes" yaml:"nodes"`
	Edges   int    `json:"edges" yaml:"edges"`
	Updated string `json:"updated" yaml:"updated"`
}

func (a *app) listCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List stored graphs",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store := a.store()
			names, err := store.Names(ctx)
			if err != nil {
				return err
			}

			entries := make([]listEntry, 0, len(names))
			for _, name := range names {
				doc, err := store.Get(ctx, name)
				if err != nil {
					return err
				}
				if doc == nil {
					continue
				}
				entries = append(entries, listEntry{
					Name:    doc.Name,
					Version: doc.Version,
					Nodes:   len(doc.Nodes),
					Edges:   len(doc.Edges),
					Updated: doc.UpdatedAt.Format("2006-01-02 15:04"),
				})
			}

			out := cmd.OutOrStdout()
			if handled, err := a.printFormatted(out, entries); handled {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(out, "No graphs found.")
				return nil
			}
			table := newTable(out, "NAME", "VERSION", "NODES", "EDGES", "UPDATED")
			for _, e := range entries {
				table.Append([]string{
					e.Name,
					strconv.Itoa(e.Version),
					strconv.Itoa(e.Nodes),
					strconv.Itoa(e.Edges),
					e.Updated,
				})
			}
			table.Render()
			return nil
		},
	}
}

func (a *app) historyCommand() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history [name]",
		Short: "List the commits of a graph, newest first",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			revs, err := a.store().History(cmd.Context(), graphName(args), limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if handled, err := a.printFormatted(out, revs); handled {
				return err
			}
			if len(revs) == 0 {
				fmt.Fprintln(out, "No history found.")
				return nil
			}
			table := newTable(out, "COMMIT", "VERSION", "AUTHOR", "WHEN", "MESSAGE")
			for _, r := range revs {
				table.Append([]string{
					r.Commit[:8],
					strconv.Itoa(r.Version),
					r.Author.Name,
					r.When.Format("2006-01-02 15:04"),
					truncate(strings.TrimSpace(r.Message), 60),
				})
			}
			table.Render()
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of commits (0 for all)")
	return cmd
}
