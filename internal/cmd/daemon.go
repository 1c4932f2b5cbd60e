package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/runger/cmdlens/internal/daemon"
	"github.com/runger/cmdlens/internal/logging"
	"github.com/runger/cmdlens/internal/rpc"
)

const (
	startTimeout = 5 * time.Second
	stopTimeout  = 5 * time.Second
)

func newDaemonCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "daemon",
		Short:   "Manage the cmdlensd background daemon",
		GroupID: groupSetup,
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "run",
			Short: "Run the daemon in the foreground",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return opts.runDaemon(cmd)
			},
		},
		newDaemonStartCmd(opts),
		newDaemonStopCmd(opts),
		newDaemonStatusCmd(opts),
	)
	return cmd
}

// NewDaemonRootCmd is the root command of the standalone cmdlensd binary.
func NewDaemonRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "cmdlensd",
		Short:         "cmdlens usage daemon",
		Version:       Version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := opts.load(); err != nil {
				return err
			}
			return opts.runDaemon(cmd)
		},
	}
	root.Flags().StringVar(&opts.dbPath, "db", "", "Usage database path (overrides config)")
	root.Flags().StringVar(&opts.socketPath, "socket", "", "Socket path (overrides config)")
	root.Flags().StringVar(&opts.configPath, "config", "", "Config file path")
	return root
}

// runDaemon serves until SIGINT/SIGTERM.
func (o *rootOptions) runDaemon(cmd *cobra.Command) error {
	level, err := logging.ParseLevel(o.cfg.Daemon.LogLevel)
	if err != nil {
		return err
	}
	logCfg := &logging.Config{
		Output: os.Stderr,
		Level:  level,
		Debug:  os.Getenv("CMDLENS_DEBUG") == "1",
	}
	if o.cfg.Daemon.LogFile != "" {
		f, err := logging.OpenFile(o.cfg.Daemon.LogFile)
		if err != nil {
			return err
		}
		defer f.Close()
		logCfg.Output = f
	}

	return daemon.Run(cmd.Context(), daemon.Options{
		Config:  o.cfg,
		Paths:   o.paths,
		Logger:  logging.New(logCfg),
		Version: Version,
	})
}

// daemonArgs forwards the CLI's path overrides to a spawned daemon.
func (o *rootOptions) daemonArgs() []string {
	args := []string{"--config", o.configPath}
	if o.dbPath != "" {
		args = append(args, "--db", o.dbPath)
	}
	if o.socketPath != "" {
		args = append(args, "--socket", o.socketPath)
	}
	return args
}

func newDaemonStartCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the daemon in the background",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pidPath := opts.paths.PIDFile()
			if daemon.IsRunning(pidPath) {
				pid, _ := daemon.ReadPID(pidPath)
				fmt.Fprintf(cmd.OutOrStdout(), "Daemon already running (pid %d)\n", pid)
				return nil
			}

			logPath := opts.cfg.Daemon.LogFile
			if logPath == "" {
				logPath = opts.paths.LogFile()
			}
			pid, err := daemon.SpawnAndWait(cmd.Context(), daemon.SpawnOptions{
				Args:    opts.daemonArgs(),
				LogPath: logPath,
			}, opts.cfg.SocketPath(opts.paths), startTimeout)
			if err != nil {
				return fmt.Errorf("%w (see %s)", err, logPath)
			}
			fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render(fmt.Sprintf("Daemon started (pid %d)", pid)))
			return nil
		},
	}
}

func newDaemonStopCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the running daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			err := daemon.Stop(opts.paths.PIDFile(), stopTimeout)
			if errors.Is(err, daemon.ErrNotRunning) {
				fmt.Fprintln(cmd.OutOrStdout(), mutedStyle.Render("Daemon is not running"))
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render("Daemon stopped"))
			return nil
		},
	}
}

type daemonStatus struct {
	Running    bool   `json:"running"`
	Responding bool   `json:"responding"`
	PID        int    `json:"pid,omitempty"`
	SocketPath string `json:"socket_path"`
	Database   string `json:"database_path"`
}

func newDaemonStatusCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether the daemon is running",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			status := daemonStatus{
				SocketPath: opts.cfg.SocketPath(opts.paths),
				Database:   opts.cfg.DatabasePath(opts.paths),
			}
			pidPath := opts.paths.PIDFile()
			if daemon.IsRunning(pidPath) {
				status.Running = true
				status.PID, _ = daemon.ReadPID(pidPath)
			}
			client, err := rpc.Dial(cmd.Context(), status.SocketPath, opts.cfg.ConnectTimeout(), opts.cfg.RequestTimeout())
			if err == nil {
				status.Responding = true
				_ = client.Close()
			}

			if opts.jsonOut {
				return printJSON(cmd.OutOrStdout(), status)
			}
			w := cmd.OutOrStdout()
			switch {
			case status.Responding:
				fmt.Fprintln(w, okStyle.Render("● running"))
			case status.Running:
				fmt.Fprintln(w, failStyle.Render("● running but not responding"))
			default:
				fmt.Fprintln(w, mutedStyle.Render("○ stopped"))
			}
			if status.PID > 0 {
				fmt.Fprintf(w, "  pid:      %d\n", status.PID)
			}
			fmt.Fprintf(w, "  socket:   %s\n", status.SocketPath)
			fmt.Fprintf(w, "  database: %s\n", status.Database)
			return nil
		},
	}
}
