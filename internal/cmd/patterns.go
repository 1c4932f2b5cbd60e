package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/shlex"
	"github.com/spf13/cobra"

	"github.com/runger/cmdlens/internal/service"
	"github.com/runger/cmdlens/internal/storage"
	"github.com/runger/cmdlens/internal/suggest"
)

func newPatternsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "patterns",
		Short:   "Detect and list recurring command sequences",
		GroupID: groupInspect,
	}
	cmd.AddCommand(newPatternsDetectCmd(opts), newPatternsListCmd(opts))
	return cmd
}

func newPatternsDetectCmd(opts *rootOptions) *cobra.Command {
	var minLen, maxLen int

	cmd := &cobra.Command{
		Use:   "detect",
		Short: "Mine the invocation history and store the patterns found",
		Long: `Scan recent successful invocations for command sequences that repeat
at least twice, score them and upsert them by pattern id. Patterns not
seen in this run keep their previous score.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("min") {
				minLen = opts.cfg.Patterns.MinLength
			}
			if !cmd.Flags().Changed("max") {
				maxLen = opts.cfg.Patterns.MaxLength
			}
			return opts.withBackend(cmd, func(ctx context.Context, api service.API) error {
				patterns, err := api.DetectPatterns(ctx, minLen, maxLen)
				if err != nil {
					return err
				}
				return opts.printPatterns(cmd, patterns)
			})
		},
	}

	cmd.Flags().IntVar(&minLen, "min", 0, "Shortest sequence length (default from config)")
	cmd.Flags().IntVar(&maxLen, "max", 0, "Longest sequence length (default from config)")
	return cmd
}

func newPatternsListCmd(opts *rootOptions) *cobra.Command {
	var (
		minConfidence float64
		limit         int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored patterns by confidence",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("min-confidence") {
				minConfidence = opts.cfg.Patterns.MinConfidence
			}
			return opts.withBackend(cmd, func(ctx context.Context, api service.API) error {
				patterns, err := api.GetPatterns(ctx, minConfidence, limit)
				if err != nil {
					return err
				}
				return opts.printPatterns(cmd, patterns)
			})
		},
	}

	cmd.Flags().Float64Var(&minConfidence, "min-confidence", 0, "Hide patterns below this confidence (default from config)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of patterns to show")
	return cmd
}

func (o *rootOptions) printPatterns(cmd *cobra.Command, patterns []storage.CommandPattern) error {
	if o.jsonOut {
		return printJSON(cmd.OutOrStdout(), patterns)
	}
	rows := make([][]string, len(patterns))
	for i, p := range patterns {
		rows[i] = []string{
			clip(strings.Join(p.CommandSequence, " → ")),
			strconv.FormatInt(p.Frequency, 10),
			formatPercent(p.Confidence),
			formatSeconds(p.AvgTimeBetweenCommands),
			localTime(p.LastSeen),
		}
	}
	renderTable(cmd.OutOrStdout(), []string{"SEQUENCE", "SEEN", "CONFIDENCE", "AVG GAP", "LAST SEEN"}, rows, 1, 2, 3)
	return nil
}

func newSuggestCmd(opts *rootOptions) *cobra.Command {
	var (
		line  string
		limit int
	)

	cmd := &cobra.Command{
		Use:   "suggest [command...]",
		Short: "Predict the next command",
		Long: `Predict the next command from stored patterns. The recent commands are
given as arguments (oldest first), as a single shell-quoted --line, or
taken from the most recent history when neither is set.

Examples:
  cmdlens suggest git.add git.commit
  cmdlens suggest --line "'kubectl get' 'kubectl logs'"
  cmdlens suggest`,
		GroupID: groupInspect,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("limit") {
				limit = opts.cfg.Suggestions.MaxResults
			}
			recent := args
			if line != "" {
				parsed, err := shlex.Split(line)
				if err != nil {
					return fmt.Errorf("failed to parse --line: %w", err)
				}
				recent = append(recent, parsed...)
			}
			return opts.withBackend(cmd, func(ctx context.Context, api service.API) error {
				if len(recent) == 0 {
					var err error
					if recent, err = recentCommands(ctx, api, opts.cfg.Suggestions.HistoryDepth); err != nil {
						return err
					}
				}
				suggestions, err := api.GetPatternSuggestions(ctx, recent, limit)
				if err != nil {
					return err
				}
				return opts.printSuggestions(cmd, suggestions)
			})
		},
	}

	cmd.Flags().StringVar(&line, "line", "", "Recent commands as one shell-quoted string")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum number of suggestions (default from config)")
	return cmd
}

// recentCommands returns the last depth successful commands, oldest first.
func recentCommands(ctx context.Context, api service.API, depth int) ([]string, error) {
	history, err := api.CommandHistory(ctx, depth)
	if err != nil {
		return nil, err
	}
	recent := make([]string, len(history))
	for i, h := range history {
		recent[len(history)-1-i] = h.CommandID
	}
	return recent, nil
}

func (o *rootOptions) printSuggestions(cmd *cobra.Command, suggestions []suggest.Suggestion) error {
	if o.jsonOut {
		return printJSON(cmd.OutOrStdout(), suggestions)
	}
	rows := make([][]string, len(suggestions))
	for i, s := range suggestions {
		rows[i] = []string{
			clip(s.NextCommand),
			formatPercent(s.Confidence),
			strconv.FormatInt(s.PatternFrequency, 10),
		}
	}
	renderTable(cmd.OutOrStdout(), []string{"NEXT", "CONFIDENCE", "SEEN"}, rows, 1, 2)
	return nil
}

func newCleanupCmd(opts *rootOptions) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete invocations older than the retention period",
		Long: `Delete command invocations older than storage.retention_days. Queries,
resources and patterns are not affected. Use --dry-run to only count
what would be removed.`,
		GroupID: groupSetup,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withBackend(cmd, func(ctx context.Context, api service.API) error {
				var (
					n   int64
					err error
				)
				if dryRun {
					n, err = api.EstimateCleanup(ctx)
				} else {
					n, err = api.CleanupOldData(ctx)
				}
				if err != nil {
					return err
				}

				if opts.jsonOut {
					return printJSON(cmd.OutOrStdout(), map[string]any{"deleted": n, "dry_run": dryRun})
				}
				w := cmd.OutOrStdout()
				if dryRun {
					fmt.Fprintf(w, "%d invocation(s) would be deleted\n", n)
					return nil
				}
				fmt.Fprintln(w, okStyle.Render(fmt.Sprintf("Deleted %d invocation(s)", n)))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Only count the invocations that would be deleted")
	return cmd
}
