// Package cli is the shellrunner command line: a daemon (`serve`) and the
// client commands that talk to it.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/Oudwins/shellrunner/internals/cliutil"
	"github.com/Oudwins/shellrunner/internals/conf"
	"github.com/Oudwins/shellrunner/internals/desktop"
	"github.com/Oudwins/shellrunner/internals/term"
	"github.com/Oudwins/shellrunner/internals/timeouts"
	"github.com/Oudwins/shellrunner/sdk"
	"github.com/Oudwins/shellrunner/shellrunnerd/baseserver"
	"github.com/Oudwins/shellrunner/shellrunnerd/server"
	"github.com/Oudwins/shellrunner/tui"
	"github.com/spf13/cobra"
)

// Execute runs the command line with os.Args and exits on failure.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "shellrunner",
		Short:         "Run a list of shell commands one after another",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newServeCmd(),
		newTaskCmd(),
		newRunCmd(),
		newStopCmd(),
		newStatusCmd(),
		newEventsCmd(),
		newReportCmd(),
		newTUICmd(),
		newVersionCmd(),
	)
	return root
}

// connect returns a client for a daemon that is known to answer.
func connect() (*sdk.Client, error) {
	client := sdk.NewClient()
	if err := cliutil.EnsureDaemonRunning(client); err != nil {
		return nil, err
	}
	return client, nil
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the shellrunner daemon in the foreground",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			base := baseserver.New()
			if base.LogFile != nil {
				defer base.LogFile.Close()
			}
			srv, err := server.New(base)
			if err != nil {
				return err
			}
			return srv.Start()
		},
	}
}

func newStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the task that is currently running",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := connect()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeouts.SecondDefault)
			defer cancel()
			snapshot, err := client.StopRun(ctx)
			if err != nil {
				if sdk.IsCode(err, "not_running") {
					fmt.Fprintln(cmd.OutOrStdout(), "No task is currently running to stop.")
					return nil
				}
				return err
			}
			cliutil.PrintSnapshot(cmd.OutOrStdout(), snapshot)
			return nil
		},
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the run state and every task's status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := connect()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeouts.SecondDefault)
			defer cancel()
			snapshot, err := client.RunStatus(ctx)
			if err != nil {
				return err
			}
			cliutil.PrintSnapshot(cmd.OutOrStdout(), snapshot)
			return nil
		},
	}
}

func newReportCmd() *cobra.Command {
	var open bool
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Write an HTML report of all tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := connect()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeouts.SecondLong)
			defer cancel()
			report, err := client.CreateReport(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Report generated: %s\n", term.ClickableLink(report.Path, term.FileURL(report.Path)))
			if open {
				if err := desktop.OpenFile(report.Path); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "could not open report: %v\n", err)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&open, "open", false, "open the report in the default browser")
	return cmd
}

func newTUICmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Manage and run tasks interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !term.IsInteractive() {
				return errors.New("tui needs an interactive terminal")
			}
			client, err := connect()
			if err != nil {
				return err
			}
			return tui.Run(client)
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the client and daemon versions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			printVersions(cmd.Context(), cmd.OutOrStdout(), sdk.NewClient())
			return nil
		},
	}
}

func printVersions(ctx context.Context, w io.Writer, client *sdk.Client) {
	fmt.Fprintf(w, "shellrunner: %s\n", conf.GetConfig().Version)
	ctx, cancel := context.WithTimeout(ctx, timeouts.Probe)
	defer cancel()
	if remote, err := client.Version(ctx); err == nil {
		fmt.Fprintf(w, "daemon: %s\n", remote)
		return
	}
	fmt.Fprintln(w, "daemon: not running")
}
