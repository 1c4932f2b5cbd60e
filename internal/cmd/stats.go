package cmd

import (
	"context"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/runger/cmdlens/internal/service"
	"github.com/runger/cmdlens/internal/storage"
)

func newStatsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats [command-id]",
		Short: "Show usage statistics per command",
		Long: `Show hit count, last use and mean execution time for one command or
for all commands. Failed invocations are not counted.`,
		GroupID: groupInspect,
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var id string
			if len(args) == 1 {
				id = args[0]
			}
			return opts.withBackend(cmd, func(ctx context.Context, api service.API) error {
				stats, err := api.CommandStats(ctx, id)
				if err != nil {
					return err
				}
				return opts.printStats(cmd, stats)
			})
		},
	}
}

func newTopCmd(opts *rootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:     "top",
		Short:   "Show the most used commands",
		GroupID: groupInspect,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withBackend(cmd, func(ctx context.Context, api service.API) error {
				stats, err := api.TopCommands(ctx, limit)
				if err != nil {
					return err
				}
				return opts.printStats(cmd, stats)
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Maximum number of commands to show")
	return cmd
}

func (o *rootOptions) printStats(cmd *cobra.Command, stats []storage.CommandStats) error {
	if o.jsonOut {
		return printJSON(cmd.OutOrStdout(), stats)
	}
	rows := make([][]string, len(stats))
	for i, s := range stats {
		rows[i] = []string{
			clip(s.CommandID),
			strconv.FormatInt(s.HitCount, 10),
			localTime(s.LastUsed),
			formatMs(s.AvgExecutionTime),
		}
	}
	renderTable(cmd.OutOrStdout(), []string{"COMMAND", "HITS", "LAST USED", "AVG TIME"}, rows, 1, 3)
	return nil
}

func newQueriesCmd(opts *rootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:     "queries",
		Short:   "Show recent search queries",
		GroupID: groupInspect,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withBackend(cmd, func(ctx context.Context, api service.API) error {
				queries, err := api.RecentQueries(ctx, limit)
				if err != nil {
					return err
				}
				if opts.jsonOut {
					return printJSON(cmd.OutOrStdout(), queries)
				}
				rows := make([][]string, len(queries))
				for i, q := range queries {
					rows[i] = []string{clip(q.Query), strconv.Itoa(q.ResultCount), localTime(q.Timestamp)}
				}
				renderTable(cmd.OutOrStdout(), []string{"QUERY", "RESULTS", "WHEN"}, rows, 1)
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of queries to show")
	return cmd
}

func newResourcesCmd(opts *rootOptions) *cobra.Command {
	var (
		limit int
		kind  string
		top   bool
	)

	cmd := &cobra.Command{
		Use:   "resources",
		Short: "Show recently or frequently accessed resources",
		Long: `Show resources ordered by most recent access, or by access count
with --top.

Examples:
  cmdlens resources --kind pod
  cmdlens resources --top -n 5`,
		GroupID: groupInspect,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withBackend(cmd, func(ctx context.Context, api service.API) error {
				var (
					resources []storage.ResourceSummary
					err       error
				)
				if top {
					resources, err = api.TopResources(ctx, limit, kind)
				} else {
					resources, err = api.RecentResources(ctx, limit, kind)
				}
				if err != nil {
					return err
				}
				if opts.jsonOut {
					return printJSON(cmd.OutOrStdout(), resources)
				}
				rows := make([][]string, len(resources))
				for i, r := range resources {
					rows[i] = []string{
						r.Kind,
						clip(r.Name),
						optional(r.Namespace),
						optional(r.Context),
						strconv.FormatInt(r.AccessCount, 10),
						localTime(r.LastAccessed),
					}
				}
				renderTable(cmd.OutOrStdout(), []string{"KIND", "NAME", "NAMESPACE", "CONTEXT", "ACCESSES", "LAST ACCESS"}, rows, 4)
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of resources to show")
	cmd.Flags().StringVar(&kind, "kind", "", "Only show resources of this kind")
	cmd.Flags().BoolVar(&top, "top", false, "Order by access count instead of recency")
	return cmd
}

func newHistoryCmd(opts *rootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:     "history",
		Short:   "Show successful invocations, newest first",
		GroupID: groupInspect,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withBackend(cmd, func(ctx context.Context, api service.API) error {
				history, err := api.CommandHistory(ctx, limit)
				if err != nil {
					return err
				}
				if opts.jsonOut {
					return printJSON(cmd.OutOrStdout(), history)
				}
				rows := make([][]string, len(history))
				for i, h := range history {
					exec := "-"
					if h.ExecutionTimeMs != nil {
						ms := float64(*h.ExecutionTimeMs)
						exec = formatMs(&ms)
					}
					rows[i] = []string{localTime(h.Timestamp), clip(h.CommandID), exec}
				}
				renderTable(cmd.OutOrStdout(), []string{"WHEN", "COMMAND", "TIME"}, rows, 2)
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of invocations to show")
	return cmd
}
