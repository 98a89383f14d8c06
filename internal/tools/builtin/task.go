// Package builtin implements the concrete tool catalog every runtime wires
// into the Tool Registry by default: tasks, memory, search, system, and the
// chat pseudo-tool.
package builtin

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/haasonsaas/nexus/internal/tasks"
	"github.com/haasonsaas/nexus/internal/tools"
	"github.com/haasonsaas/nexus/pkg/models"
)

// CreateTaskTool adds a new task to the Task Manager. Grounded on
// task_tools.py's CreateTaskTool.
type CreateTaskTool struct {
	Tasks *tasks.Manager
}

func (t *CreateTaskTool) Name() string { return "create_task" }

func (t *CreateTaskTool) Description() string {
	return "Create a new task. Use this when the user asks to be reminded of something, " +
		"mentions something they need to do, or describes a future action."
}

func (t *CreateTaskTool) Parameters() []tools.Parameter {
	return []tools.Parameter{
		{Name: "title", Type: tools.TypeString, Description: "Task title", Required: true},
		{Name: "description", Type: tools.TypeString, Description: "Task description"},
		{Name: "due_date", Type: tools.TypeString, Description: "Due date (RFC3339)"},
		{
			Name: "priority", Type: tools.TypeString, Description: "Priority level",
			Default: "medium", Enum: []string{"low", "medium", "high", "urgent"},
		},
	}
}

func (t *CreateTaskTool) Execute(ctx context.Context, args map[string]any) (*tools.Result, error) {
	title, _ := args["title"].(string)
	if strings.TrimSpace(title) == "" {
		return &tools.Result{Success: false, Error: "title is required", Observation: "A task needs a title."}, nil
	}
	description, _ := args["description"].(string)
	priority, _ := args["priority"].(string)
	if priority == "" {
		priority = "medium"
	}

	opts := tasks.CreateOptions{
		Description: description,
		Priority:    priorityPtr(models.TaskPriorityFromString(priority)),
	}
	if dueRaw, ok := args["due_date"].(string); ok && dueRaw != "" {
		if due, err := time.Parse(time.RFC3339, dueRaw); err == nil {
			opts.DueDate = &due
		}
	}

	task, err := t.Tasks.Create(ctx, title, opts)
	if err != nil {
		return &tools.Result{Success: false, Error: err.Error(), Observation: "Failed to create task."}, nil
	}

	return &tools.Result{
		Success:     true,
		Data:        map[string]any{"task_id": task.ID, "title": task.Title},
		Observation: fmt.Sprintf("Created task: %s", title),
	}, nil
}

func priorityPtr(p models.TaskPriority) *models.TaskPriority { return &p }

// ListTasksTool lists tasks, optionally filtered by status.
type ListTasksTool struct {
	Tasks *tasks.Manager
}

func (t *ListTasksTool) Name() string { return "list_tasks" }

func (t *ListTasksTool) Description() string {
	return "List tasks. Use this when the user asks what's on their plate or wants to review tasks."
}

func (t *ListTasksTool) Parameters() []tools.Parameter {
	return []tools.Parameter{
		{
			Name: "status", Type: tools.TypeString, Description: "Status filter",
			Default: "pending", Enum: []string{"pending", "completed", "all"},
		},
		{Name: "limit", Type: tools.TypeInteger, Description: "Maximum tasks to return", Default: 10},
	}
}

func (t *ListTasksTool) Execute(_ context.Context, args map[string]any) (*tools.Result, error) {
	status, _ := args["status"].(string)
	if status == "" {
		status = "pending"
	}
	limit := 10
	if v, ok := args["limit"].(float64); ok && v > 0 {
		limit = int(v)
	}

	opts := tasks.ListOptions{SortByPriority: true}
	if status != "all" {
		opts.Status = models.TaskStatus(status)
	}
	result := t.Tasks.List(opts)
	if len(result) > limit {
		result = result[:limit]
	}

	items := make([]map[string]any, 0, len(result))
	for _, task := range result {
		item := map[string]any{
			"id":       task.ID,
			"title":    task.Title,
			"status":   string(task.Status),
			"priority": task.Priority,
		}
		if task.DueDate != nil {
			item["due_date"] = task.DueDate.Format(time.RFC3339)
		}
		items = append(items, item)
	}

	observation := fmt.Sprintf("No %s tasks.", status)
	if len(items) > 0 {
		var lines []string
		for i, item := range items {
			lines = append(lines, fmt.Sprintf("%d. %s", i+1, item["title"]))
		}
		observation = fmt.Sprintf("Found %d task(s):\n%s", len(items), strings.Join(lines, "\n"))
	}

	return &tools.Result{
		Success:     true,
		Data:        map[string]any{"tasks": items, "count": len(items)},
		Observation: observation,
	}, nil
}

// CompleteTaskTool marks a task complete, resolving by ID or a title keyword.
type CompleteTaskTool struct {
	Tasks *tasks.Manager
}

func (t *CompleteTaskTool) Name() string { return "complete_task" }

func (t *CompleteTaskTool) Description() string {
	return "Mark a task complete. Use this when the user says they finished or completed something."
}

func (t *CompleteTaskTool) Parameters() []tools.Parameter {
	return []tools.Parameter{
		{Name: "task_id", Type: tools.TypeString, Description: "Task ID"},
		{Name: "title_keyword", Type: tools.TypeString, Description: "Keyword to match a task title"},
	}
}

func (t *CompleteTaskTool) Execute(ctx context.Context, args map[string]any) (*tools.Result, error) {
	if taskID, ok := args["task_id"].(string); ok && taskID != "" {
		ok, err := t.Tasks.Complete(ctx, taskID, "")
		if err != nil {
			return &tools.Result{Success: false, Error: err.Error()}, nil
		}
		if !ok {
			return &tools.Result{Success: false, Error: "task not found", Observation: "Couldn't find that task."}, nil
		}
		return &tools.Result{Success: true, Data: map[string]any{"task_id": taskID}, Observation: "Task completed."}, nil
	}

	keyword, _ := args["title_keyword"].(string)
	if keyword == "" {
		return &tools.Result{Success: false, Error: "missing task identifier", Observation: "Provide a task ID or title keyword."}, nil
	}

	candidates := matchByTitle(t.Tasks.List(tasks.ListOptions{Status: models.TaskStatusPending}), keyword)
	switch len(candidates) {
	case 0:
		return &tools.Result{Success: false, Error: "no matching tasks", Observation: fmt.Sprintf("No task matching %q.", keyword)}, nil
	case 1:
		task := candidates[0]
		if _, err := t.Tasks.Complete(ctx, task.ID, ""); err != nil {
			return &tools.Result{Success: false, Error: err.Error()}, nil
		}
		return &tools.Result{
			Success:     true,
			Data:        map[string]any{"task_id": task.ID, "title": task.Title},
			Observation: fmt.Sprintf("Completed task: %s", task.Title),
		}, nil
	default:
		data := map[string]any{"needs_selection": true, "candidates": candidateSummaries(candidates, 5)}
		return &tools.Result{
			Success:     true,
			Data:        data,
			Observation: fmt.Sprintf("Found %d matching tasks, please specify which one.", len(candidates)),
		}, nil
	}
}

func matchByTitle(list []*models.Task, keyword string) []*models.Task {
	keyword = strings.ToLower(keyword)
	var out []*models.Task
	for _, task := range list {
		if strings.Contains(strings.ToLower(task.Title), keyword) {
			out = append(out, task)
		}
	}
	return out
}

func candidateSummaries(list []*models.Task, limit int) []map[string]any {
	if len(list) > limit {
		list = list[:limit]
	}
	out := make([]map[string]any, 0, len(list))
	for _, task := range list {
		out = append(out, map[string]any{"id": task.ID, "title": task.Title})
	}
	return out
}

// DeleteTasksTool deletes one or more tasks, requiring explicit
// confirmation before an irreversible delete-all proceeds. Grounded
// verbatim on task_tools.py's DeleteTasksTool.execute confirmation flow.
type DeleteTasksTool struct {
	Tasks *tasks.Manager
}

func (t *DeleteTasksTool) Name() string { return "delete_tasks" }

func (t *DeleteTasksTool) Description() string {
	return "Delete tasks. Use this when the user asks to clean up, remove, or clear tasks."
}

func (t *DeleteTasksTool) Parameters() []tools.Parameter {
	return []tools.Parameter{
		{Name: "task_ids", Type: tools.TypeArray, Description: "Task IDs to delete"},
		{Name: "delete_all", Type: tools.TypeBoolean, Description: "Delete every pending task", Default: false},
		{Name: "confirmed", Type: tools.TypeBoolean, Description: "User has confirmed the deletion", Default: false},
	}
}

func (t *DeleteTasksTool) Execute(ctx context.Context, args map[string]any) (*tools.Result, error) {
	confirmed, _ := args["confirmed"].(bool)
	deleteAll, _ := args["delete_all"].(bool)

	if !confirmed {
		pending := t.Tasks.List(tasks.ListOptions{Status: models.TaskStatusPending, SortByPriority: true})
		if len(pending) == 0 {
			return &tools.Result{
				Success:     true,
				Data:        map[string]any{"needs_confirmation": false, "count": 0},
				Observation: "There are no pending tasks to delete.",
			}, nil
		}

		preview := pending
		if len(preview) > 10 {
			preview = preview[:10]
		}
		var lines []string
		for i, task := range preview {
			lines = append(lines, fmt.Sprintf("%d. %s", i+1, task.Title))
		}

		return &tools.Result{
			Success: true,
			Data: map[string]any{
				"tasks": candidateSummaries(pending, 10),
				"count": len(pending),
			},
			Observation: fmt.Sprintf(
				"About to delete %d task(s):\n%s\n\nConfirm deletion?",
				len(pending), strings.Join(lines, "\n"),
			),
			Metadata: map[string]any{"needs_confirmation": true},
		}, nil
	}

	var deleted int
	var err error
	switch {
	case deleteAll:
		deleted, err = t.Tasks.DeleteAll(ctx)
	default:
		rawIDs, _ := args["task_ids"].([]any)
		if len(rawIDs) == 0 {
			return &tools.Result{Success: false, Error: "no task specified", Observation: "Specify which tasks to delete."}, nil
		}
		for _, raw := range rawIDs {
			id, _ := raw.(string)
			if id == "" {
				continue
			}
			ok, derr := t.Tasks.Delete(ctx, id)
			if derr != nil {
				err = derr
				break
			}
			if ok {
				deleted++
			}
		}
	}
	if err != nil {
		return &tools.Result{Success: false, Error: err.Error()}, nil
	}

	return &tools.Result{
		Success:     true,
		Data:        map[string]any{"deleted_count": deleted},
		Observation: fmt.Sprintf("Deleted %d task(s).", deleted),
	}, nil
}

// StartTaskTool transitions a pending task to in_progress. Added beyond
// the original's tool set to expose the full Task Manager state machine.
type StartTaskTool struct {
	Tasks *tasks.Manager
}

func (t *StartTaskTool) Name() string        { return "start_task" }
func (t *StartTaskTool) Description() string { return "Begin working on a pending task." }
func (t *StartTaskTool) Parameters() []tools.Parameter {
	return []tools.Parameter{{Name: "task_id", Type: tools.TypeString, Description: "Task ID", Required: true}}
}

func (t *StartTaskTool) Execute(ctx context.Context, args map[string]any) (*tools.Result, error) {
	taskID, _ := args["task_id"].(string)
	ok, err := t.Tasks.Start(ctx, taskID)
	if err != nil {
		return &tools.Result{Success: false, Error: err.Error()}, nil
	}
	if !ok {
		return &tools.Result{Success: false, Error: "task not pending or not found", Observation: "That task can't be started right now."}, nil
	}
	return &tools.Result{Success: true, Data: map[string]any{"task_id": taskID}, Observation: "Task started."}, nil
}

// BlockTaskTool marks a task blocked with a reason.
type BlockTaskTool struct {
	Tasks *tasks.Manager
}

func (t *BlockTaskTool) Name() string        { return "block_task" }
func (t *BlockTaskTool) Description() string { return "Mark a task blocked, recording why." }
func (t *BlockTaskTool) Parameters() []tools.Parameter {
	return []tools.Parameter{
		{Name: "task_id", Type: tools.TypeString, Description: "Task ID", Required: true},
		{Name: "reason", Type: tools.TypeString, Description: "Why the task is blocked", Required: true},
	}
}

func (t *BlockTaskTool) Execute(ctx context.Context, args map[string]any) (*tools.Result, error) {
	taskID, _ := args["task_id"].(string)
	reason, _ := args["reason"].(string)
	ok, err := t.Tasks.Block(ctx, taskID, reason)
	if err != nil {
		return &tools.Result{Success: false, Error: err.Error()}, nil
	}
	if !ok {
		return &tools.Result{Success: false, Error: "task not found", Observation: "Couldn't find that task."}, nil
	}
	return &tools.Result{Success: true, Data: map[string]any{"task_id": taskID}, Observation: "Task marked blocked: " + reason}, nil
}

// WaitForTaskTool marks a task as waiting on an external event.
type WaitForTaskTool struct {
	Tasks *tasks.Manager
}

func (t *WaitForTaskTool) Name() string        { return "wait_for_task" }
func (t *WaitForTaskTool) Description() string { return "Mark a task as waiting on something external." }
func (t *WaitForTaskTool) Parameters() []tools.Parameter {
	return []tools.Parameter{
		{Name: "task_id", Type: tools.TypeString, Description: "Task ID", Required: true},
		{Name: "waiting_for", Type: tools.TypeString, Description: "What the task is waiting on", Required: true},
	}
}

func (t *WaitForTaskTool) Execute(ctx context.Context, args map[string]any) (*tools.Result, error) {
	taskID, _ := args["task_id"].(string)
	waitingFor, _ := args["waiting_for"].(string)
	ok, err := t.Tasks.WaitFor(ctx, taskID, waitingFor)
	if err != nil {
		return &tools.Result{Success: false, Error: err.Error()}, nil
	}
	if !ok {
		return &tools.Result{Success: false, Error: "task not found", Observation: "Couldn't find that task."}, nil
	}
	return &tools.Result{Success: true, Data: map[string]any{"task_id": taskID}, Observation: "Task now waiting on: " + waitingFor}, nil
}
