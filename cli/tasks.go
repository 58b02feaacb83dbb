package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/Oudwins/shellrunner/internals/cliutil"
	"github.com/Oudwins/shellrunner/internals/schemas"
	"github.com/Oudwins/shellrunner/internals/timeouts"
	"github.com/Oudwins/shellrunner/sdk"
	z "github.com/Oudwins/zog"
	"github.com/spf13/cobra"
)

type taskArgs struct {
	Name        string
	Command     string
	Description string
}

func newTaskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Add, edit, remove and inspect tasks",
	}
	cmd.AddCommand(
		newTaskAddCmd(),
		newTaskEditCmd(),
		newTaskRemoveCmd(),
		newTaskListCmd(),
		newTaskLogsCmd(),
	)
	return cmd
}

func newTaskAddCmd() *cobra.Command {
	var args taskArgs
	cmd := &cobra.Command{
		Use:   "add --name <name> --command <command> [--description <text>]",
		Short: "Append a task to the list",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			request := schemas.TaskCreateRequest{Name: args.Name, Command: args.Command, Description: args.Description}
			if issues := schemas.TaskCreateSchema.Validate(&request); len(issues) > 0 {
				return fmt.Errorf("invalid arguments:\n%s", z.Issues.Prettify(issues))
			}
			client, err := connect()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeouts.SecondDefault)
			defer cancel()
			task, err := client.CreateTask(ctx, request)
			if err != nil {
				return err
			}
			cliutil.PrintTaskCreated(cmd.OutOrStdout(), task)
			return nil
		},
	}
	cmd.Flags().StringVar(&args.Name, "name", "", "task name")
	cmd.Flags().StringVar(&args.Command, "command", "", "shell command to run")
	cmd.Flags().StringVar(&args.Description, "description", "", "optional description")
	return cmd
}

func newTaskEditCmd() *cobra.Command {
	var args taskArgs
	cmd := &cobra.Command{
		Use:   "edit <id> [--name <name>] [--command <command>] [--description <text>]",
		Short: "Change a task's name, command or description",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, positional []string) error {
			id, err := parseTaskID(positional[0])
			if err != nil {
				return err
			}
			client, err := connect()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeouts.SecondDefault)
			defer cancel()

			current, err := findTask(ctx, client, id)
			if err != nil {
				return err
			}
			request := schemas.TaskUpdateRequest{Name: current.Name, Command: current.Command, Description: current.Description}
			flags := cmd.Flags()
			if flags.Changed("name") {
				request.Name = args.Name
			}
			if flags.Changed("command") {
				request.Command = args.Command
			}
			if flags.Changed("description") {
				request.Description = args.Description
			}
			if issues := schemas.TaskUpdateSchema.Validate(&request); len(issues) > 0 {
				return fmt.Errorf("invalid arguments:\n%s", z.Issues.Prettify(issues))
			}

			task, err := client.UpdateTask(ctx, id, request)
			if err != nil {
				return err
			}
			cliutil.PrintTaskCreated(cmd.OutOrStdout(), task)
			return nil
		},
	}
	cmd.Flags().StringVar(&args.Name, "name", "", "new task name")
	cmd.Flags().StringVar(&args.Command, "command", "", "new shell command")
	cmd.Flags().StringVar(&args.Description, "description", "", "new description")
	return cmd
}

func newTaskRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"del"},
		Short:   "Delete a task and its recorded output",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, positional []string) error {
			id, err := parseTaskID(positional[0])
			if err != nil {
				return err
			}
			client, err := connect()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeouts.SecondDefault)
			defer cancel()
			if err := client.DeleteTask(ctx, id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted task %d\n", id)
			return nil
		},
	}
}

func newTaskListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List tasks in run order",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := connect()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeouts.SecondDefault)
			defer cancel()
			tasks, err := client.ListTasks(ctx)
			if err != nil {
				return err
			}
			cliutil.PrintTasks(cmd.OutOrStdout(), tasks)
			return nil
		},
	}
}

func newTaskLogsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logs <id>",
		Short: "Print the output recorded for a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, positional []string) error {
			id, err := parseTaskID(positional[0])
			if err != nil {
				return err
			}
			client, err := connect()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeouts.SecondDefault)
			defer cancel()
			logs, err := client.TaskLogs(ctx, id)
			if err != nil {
				return err
			}
			cliutil.PrintLogs(cmd.OutOrStdout(), logs)
			return nil
		},
	}
}

func parseTaskID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid task id %q", raw)
	}
	return id, nil
}

func findTask(ctx context.Context, client *sdk.Client, id int64) (*schemas.Task, error) {
	tasks, err := client.ListTasks(ctx)
	if err != nil {
		return nil, err
	}
	for i := range tasks {
		if tasks[i].ID == id {
			return &tasks[i], nil
		}
	}
	return nil, fmt.Errorf("task %d not found", id)
}
