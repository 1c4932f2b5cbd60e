package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/runger/cmdlens/internal/service"
	"github.com/runger/cmdlens/internal/storage"
)

func newRecordCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "record",
		Short:   "Record a command invocation, search query or resource access",
		GroupID: groupRecord,
	}
	cmd.AddCommand(
		newRecordInvocationCmd(opts),
		newRecordQueryCmd(opts),
		newRecordResourceCmd(opts),
	)
	return cmd
}

func newRecordInvocationCmd(opts *rootOptions) *cobra.Command {
	var (
		execMs   int64
		failed   bool
		errMsg   string
		ctxLabel string
	)

	cmd := &cobra.Command{
		Use:   "invocation <command-id>",
		Short: "Record one command invocation",
		Long: `Record one invocation of a command.

Only successful invocations count towards statistics and patterns.

Examples:
  cmdlens record invocation git.commit --exec-ms 840
  cmdlens record invocation deploy --failed --error "exit status 1"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inv := storage.NewInvocation{
				CommandID: args[0],
				Success:   !failed,
			}
			if cmd.Flags().Changed("exec-ms") {
				inv.ExecutionTimeMs = &execMs
			}
			if errMsg != "" {
				inv.ErrorMessage = &errMsg
			}
			if ctxLabel != "" {
				inv.Context = &ctxLabel
			}

			return opts.withBackend(cmd, func(ctx context.Context, api service.API) error {
				if err := api.RecordInvocation(ctx, inv); err != nil {
					return err
				}
				return opts.printRecorded(cmd, "invocation", args[0])
			})
		},
	}

	cmd.Flags().Int64Var(&execMs, "exec-ms", 0, "Execution time in milliseconds")
	cmd.Flags().BoolVar(&failed, "failed", false, "Mark the invocation as failed")
	cmd.Flags().StringVar(&errMsg, "error", "", "Error message of a failed invocation")
	cmd.Flags().StringVar(&ctxLabel, "context", "", "Free-form context (cluster, directory, ...)")
	return cmd
}

func newRecordQueryCmd(opts *rootOptions) *cobra.Command {
	var results int

	cmd := &cobra.Command{
		Use:   "query <query>",
		Short: "Record a search query and its result count",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withBackend(cmd, func(ctx context.Context, api service.API) error {
				if err := api.RecordQuery(ctx, args[0], results); err != nil {
					return err
				}
				return opts.printRecorded(cmd, "query", args[0])
			})
		},
	}

	cmd.Flags().IntVar(&results, "results", 0, "Number of results the query returned")
	return cmd
}

func newRecordResourceCmd(opts *rootOptions) *cobra.Command {
	var namespace, ctxLabel string

	cmd := &cobra.Command{
		Use:   "resource <kind> <name>",
		Short: "Record a resource access",
		Long: `Record that a resource was opened. Repeated accesses to the same
(kind, name, namespace, context) increase its access count.

Examples:
  cmdlens record resource pod web-7f9c --namespace default --context prod`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref := storage.ResourceRef{Kind: args[0], Name: args[1]}
			if namespace != "" {
				ref.Namespace = &namespace
			}
			if ctxLabel != "" {
				ref.Context = &ctxLabel
			}

			return opts.withBackend(cmd, func(ctx context.Context, api service.API) error {
				if err := api.RecordResourceAccess(ctx, ref); err != nil {
					return err
				}
				return opts.printRecorded(cmd, "resource", args[0]+"/"+args[1])
			})
		},
	}

	cmd.Flags().StringVar(&namespace, "namespace", "", "Resource namespace")
	cmd.Flags().StringVar(&ctxLabel, "context", "", "Resource context (cluster, account, ...)")
	return cmd
}

func (o *rootOptions) printRecorded(cmd *cobra.Command, kind, what string) error {
	if o.jsonOut {
		return printJSON(cmd.OutOrStdout(), map[string]string{"recorded": kind, "value": what})
	}
	_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s\n", okStyle.Render("recorded"), kind, what)
	return err
}
