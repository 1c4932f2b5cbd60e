// Package cmd implements the cmdlens command line.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/runger/cmdlens/internal/config"
	"github.com/runger/cmdlens/internal/logging"
	"github.com/runger/cmdlens/internal/rpc"
	"github.com/runger/cmdlens/internal/service"
	"github.com/runger/cmdlens/internal/storage"
)

const (
	groupRecord  = "record"
	groupInspect = "inspect"
	groupSetup   = "setup"
)

// rootOptions carries the global flags and the resolved configuration.
type rootOptions struct {
	jsonOut    bool
	dbPath     string
	socketPath string
	configPath string
	direct     bool

	cfg   *config.Config
	paths *config.Paths
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// NewRootCmd builds the full command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "cmdlens",
		Short: "Usage history, statistics and next-command suggestions",
		Long: `cmdlens records which commands you run, which resources you open and
what you search for, then turns that history into statistics and
predictions of the command you are likely to run next.

Commands talk to the cmdlensd daemon when it is running and open the
usage database directly otherwise.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			lipgloss.SetColorProfile(termenv.NewOutput(os.Stdout).EnvColorProfile())
			return opts.load()
		},
	}

	root.PersistentFlags().BoolVar(&opts.jsonOut, "json", false, "Print results as JSON")
	root.PersistentFlags().StringVar(&opts.dbPath, "db", "", "Usage database path (overrides config)")
	root.PersistentFlags().StringVar(&opts.socketPath, "socket", "", "Daemon socket path (overrides config)")
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "Config file path")
	root.PersistentFlags().BoolVar(&opts.direct, "direct", false, "Open the database directly even if the daemon is running")

	root.AddGroup(
		&cobra.Group{ID: groupRecord, Title: "Recording:"},
		&cobra.Group{ID: groupInspect, Title: "Statistics and patterns:"},
		&cobra.Group{ID: groupSetup, Title: "Setup:"},
	)

	root.AddCommand(
		newRecordCmd(opts),
		newStatsCmd(opts),
		newTopCmd(opts),
		newQueriesCmd(opts),
		newResourcesCmd(opts),
		newHistoryCmd(opts),
		newPatternsCmd(opts),
		newSuggestCmd(opts),
		newCleanupCmd(opts),
		newPickCmd(opts),
		newDaemonCmd(opts),
		newConfigCmd(opts),
		newVersionCmd(),
	)
	return root
}

// load resolves paths and configuration, then applies flag overrides.
func (o *rootOptions) load() error {
	o.paths = config.DefaultPaths()
	if o.configPath == "" {
		o.configPath = o.paths.ConfigFile()
	}

	cfg, err := config.LoadFromFile(o.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if o.dbPath != "" {
		cfg.Storage.DatabasePath = o.dbPath
	}
	if o.socketPath != "" {
		cfg.Daemon.SocketPath = o.socketPath
	}
	o.cfg = cfg
	return nil
}

// backend returns the daemon client when the daemon is reachable, or a
// service over a directly opened store. The close func must be called.
func (o *rootOptions) backend(ctx context.Context) (service.API, func() error, error) {
	socketPath := o.cfg.SocketPath(o.paths)

	if !o.direct {
		client, err := rpc.Dial(ctx, socketPath, o.cfg.ConnectTimeout(), o.cfg.RequestTimeout())
		if err == nil {
			return client, client.Close, nil
		}
		if !o.cfg.Client.AutoDirect {
			return nil, nil, fmt.Errorf("daemon unavailable at %s: %w", socketPath, err)
		}
	}

	logger := o.logger()
	store, err := storage.Open(ctx, storage.Options{
		Path:        o.cfg.DatabasePath(o.paths),
		Logger:      logger,
		BusyTimeout: msDuration(o.cfg.Storage.BusyTimeoutMs),
		LockTimeout: msDuration(o.cfg.Storage.LockTimeoutMs),
		QueryCap:    o.cfg.Storage.QueryCap,
		ResourceCap: o.cfg.Storage.ResourceCap,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	return service.FromConfig(o.cfg, store, nil, logger), store.Close, nil
}

// logger writes warnings to stderr, or everything with CMDLENS_DEBUG=1.
func (o *rootOptions) logger() *slog.Logger {
	return logging.New(&logging.Config{
		Output: os.Stderr,
		Level:  slog.LevelWarn,
		Debug:  os.Getenv("CMDLENS_DEBUG") == "1",
	})
}

// withBackend runs fn against the resolved backend and closes it afterwards.
func (o *rootOptions) withBackend(cmd *cobra.Command, fn func(ctx context.Context, api service.API) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	api, closeFn, err := o.backend(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = closeFn() }()

	return fn(ctx, api)
}
