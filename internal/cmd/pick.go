package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/runger/cmdlens/internal/picker"
	"github.com/runger/cmdlens/internal/service"
)

func newPickCmd(opts *rootOptions) *cobra.Command {
	var (
		query string
		tab   string
	)

	cmd := &cobra.Command{
		Use:   "pick",
		Short: "Choose a command interactively",
		Long: `Open a full-screen picker over recent, frequent and suggested commands.
The chosen command is printed to stdout so shells can capture it:

  cmd=$(cmdlens pick)

Exits with status 1 when the picker is dismissed.`,
		GroupID: groupInspect,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tabs, err := orderTabs(picker.DefaultTabs(), tab)
			if err != nil {
				return err
			}

			return opts.withBackend(cmd, func(ctx context.Context, api service.API) error {
				provider := picker.NewUsageProvider(api, opts.cfg.Suggestions.HistoryDepth)
				model := picker.NewModel(tabs, provider).WithQuery(query)

				tty, err := os.OpenFile("/dev/tty", os.O_RDWR, 0)
				if err == nil {
					defer tty.Close()
				} else {
					tty = nil
				}

				result, err := picker.Run(ctx, model, tty)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), result)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&query, "query", "q", "", "Initial filter text")
	cmd.Flags().StringVar(&tab, "tab", "", "Tab to open first (recent, top, suggested)")
	return cmd
}

// orderTabs rotates tabs so the one with id comes first.
func orderTabs(tabs []picker.Tab, id string) ([]picker.Tab, error) {
	if id == "" {
		return tabs, nil
	}
	for i, t := range tabs {
		if t.ID == id {
			return append(append([]picker.Tab{}, tabs[i:]...), tabs[:i]...), nil
		}
	}
	return nil, fmt.Errorf("unknown tab %q", id)
}
