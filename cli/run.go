package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/Oudwins/shellrunner/internals/cliutil"
	"github.com/Oudwins/shellrunner/internals/schemas"
	"github.com/Oudwins/shellrunner/internals/timeouts"
	"github.com/Oudwins/shellrunner/sdk"
	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	var follow bool
	cmd := &cobra.Command{
		Use:   "run [--follow]",
		Short: "Run every task in order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := connect()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeouts.SecondDefault)
			started, err := client.StartRun(ctx)
			cancel()
			if err != nil {
				switch {
				case sdk.IsCode(err, "no_tasks"):
					return fmt.Errorf("no tasks to run; add one with `shellrunner task add`")
				case sdk.IsCode(err, "run_active"):
					return fmt.Errorf("tasks are already running; use `shellrunner stop` first")
				}
				return err
			}

			out := cmd.OutOrStdout()
			if !follow {
				fmt.Fprintf(out, "run: %s\n", started.RunID)
				return nil
			}
			return followRun(cmd.Context(), out, client, started.RunID)
		},
	}
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "stream output until the run finishes")
	return cmd
}

func newEventsCmd() *cobra.Command {
	var (
		since  uint64
		follow bool
	)
	cmd := &cobra.Command{
		Use:   "events [--since N] [--follow]",
		Short: "Print the live output buffered by the daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := connect()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			cursor := since
			for {
				ctx, cancel := context.WithTimeout(cmd.Context(), timeouts.SecondLong)
				response, err := client.Events(ctx, cursor, follow)
				cancel()
				if err != nil {
					return err
				}
				cliutil.PrintEvents(out, response.Events)
				cursor = response.Next
				if !follow {
					return nil
				}
				if err := cmd.Context().Err(); err != nil {
					return nil
				}
			}
		},
	}
	cmd.Flags().Uint64Var(&since, "since", 0, "only events after this sequence number")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "keep waiting for new events")
	return cmd
}

// followRun prints the events of runID until its run_finished event.
func followRun(ctx context.Context, w io.Writer, client *sdk.Client, runID string) error {
	var cursor uint64
	for {
		waitCtx, cancel := context.WithTimeout(ctx, timeouts.SecondLong)
		response, err := client.Events(waitCtx, cursor, true)
		cancel()
		if err != nil {
			return err
		}
		cursor = response.Next
		for _, event := range response.Events {
			if event.RunID != runID {
				continue
			}
			if text, ok := cliutil.FormatEvent(event); ok {
				fmt.Fprintln(w, text)
			}
			if event.Type == schemas.EventRunFinished {
				return nil
			}
		}
	}
}
