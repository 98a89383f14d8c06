package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/haasonsaas/nexus/internal/tasks"
	"github.com/haasonsaas/nexus/pkg/models"
)

func buildTaskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Manage tasks directly, without going through the agent loop",
	}
	cmd.AddCommand(
		buildTaskListCmd(),
		buildTaskCreateCmd(),
		buildTaskCompleteCmd(),
	)
	return cmd
}

func newTaskManager(ctx context.Context) (*tasks.Manager, func(), error) {
	logger := slog.Default()
	cfg, err := loadConfigQuiet()
	if err != nil {
		return nil, nil, err
	}
	store, err := buildTaskStore(cfg.Tasks)
	if err != nil {
		return nil, nil, err
	}
	mgr, err := tasks.NewManager(ctx, store, logger)
	if err != nil {
		return nil, nil, err
	}
	return mgr, func() {}, nil
}

func buildTaskListCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, cleanup, err := newTaskManager(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			opts := tasks.ListOptions{SortByPriority: true}
			if status != "" && status != "all" {
				opts.Status = models.TaskStatus(status)
			}
			for _, task := range mgr.List(opts) {
				due := ""
				if task.DueDate != nil {
					due = " due " + task.DueDate.Format(time.RFC3339)
				}
				fmt.Printf("%s\t[%s]\t%s%s\n", task.ID, task.Status, task.Title, due)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "pending", "Status filter: pending, completed, all")
	return cmd
}

func buildTaskCreateCmd() *cobra.Command {
	var due string
	var priority string
	cmd := &cobra.Command{
		Use:   "create [title]",
		Short: "Create a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, cleanup, err := newTaskManager(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			opts := tasks.CreateOptions{}
			if priority != "" {
				p := models.TaskPriorityFromString(priority)
				opts.Priority = &p
			}
			if due != "" {
				parsed, err := time.Parse("2006-01-02", due)
				if err != nil {
					return fmt.Errorf("invalid --due (want YYYY-MM-DD): %w", err)
				}
				opts.DueDate = &parsed
			}

			task, err := mgr.Create(cmd.Context(), args[0], opts)
			if err != nil {
				return err
			}
			fmt.Printf("created task %s\n", task.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&due, "due", "", "Due date, YYYY-MM-DD")
	cmd.Flags().StringVar(&priority, "priority", "", "Priority: low, medium, high, urgent")
	return cmd
}

func buildTaskCompleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "complete [task-id]",
		Short: "Mark a task complete",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, cleanup, err := newTaskManager(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			ok, err := mgr.Complete(cmd.Context(), args[0], "")
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(os.Stderr, "task not found")
				os.Exit(1)
			}
			fmt.Println("task completed")
			return nil
		},
	}
}
