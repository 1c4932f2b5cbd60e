package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/runger/cmdlens/internal/config"
)

func newConfigCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Read and change configuration",
		Long: `Read and change configuration values by dot-separated key.

Examples:
  cmdlens config get patterns.max_length
  cmdlens config set storage.retention_days 30
  cmdlens config list`,
		GroupID: groupSetup,
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "get <key>",
			Short: "Print one value",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				v, err := opts.cfg.Get(args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), v)
				return nil
			},
		},
		&cobra.Command{
			Use:   "set <key> <value>",
			Short: "Change one value and save the config file",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := opts.cfg.Set(args[0], args[1]); err != nil {
					return err
				}
				if err := opts.cfg.SaveToFile(opts.configPath); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render(fmt.Sprintf("%s = %s", args[0], args[1])))
				return nil
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "Print every key and its value",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				keys := config.ListKeys()
				values := make(map[string]string, len(keys))
				rows := make([][]string, 0, len(keys))
				for _, k := range keys {
					v, err := opts.cfg.Get(k)
					if err != nil {
						return err
					}
					values[k] = v
					rows = append(rows, []string{k, v})
				}
				if opts.jsonOut {
					return printJSON(cmd.OutOrStdout(), values)
				}
				renderTable(cmd.OutOrStdout(), []string{"KEY", "VALUE"}, rows)
				return nil
			},
		},
		&cobra.Command{
			Use:   "path",
			Short: "Print the config file path",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				fmt.Fprintln(cmd.OutOrStdout(), opts.configPath)
				return nil
			},
		},
	)
	return cmd
}
