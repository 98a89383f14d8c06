package models

import "time"

// TaskType classifies how a task came to exist / how it should be handled.
type TaskType string

const (
	TaskTypeImmediate TaskType = "immediate"
	TaskTypeTodo       TaskType = "todo"
	TaskTypeScheduled  TaskType = "scheduled"
	TaskTypeRecurring  TaskType = "recurring"
	TaskTypeTriggered  TaskType = "triggered"
	TaskTypeDelegated  TaskType = "delegated"
)

// TaskStatus is the task's position in its state machine.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusWaiting    TaskStatus = "waiting"
	TaskStatusBlocked    TaskStatus = "blocked"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusCancelled  TaskStatus = "cancelled"
	TaskStatusArchived   TaskStatus = "archived"
)

// IsTerminal reports whether the status accepts no further transitions.
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case TaskStatusCompleted, TaskStatusCancelled, TaskStatusArchived:
		return true
	default:
		return false
	}
}

// CanTransitionTo reports whether the status graph permits moving from s to next.
func (s TaskStatus) CanTransitionTo(next TaskStatus) bool {
	if s.IsTerminal() {
		return false
	}
	switch s {
	case TaskStatusPending:
		switch next {
		case TaskStatusInProgress, TaskStatusCancelled, TaskStatusArchived:
			return true
		}
	case TaskStatusInProgress:
		switch next {
		case TaskStatusCompleted, TaskStatusBlocked, TaskStatusWaiting, TaskStatusCancelled:
			return true
		}
	case TaskStatusWaiting, TaskStatusBlocked:
		switch next {
		case TaskStatusPending, TaskStatusCancelled, TaskStatusArchived:
			return true
		}
	}
	return false
}

// TaskPriority is the triple of normalized signals a priority score is
// derived from, each in [0, 1].
type TaskPriority struct {
	Urgency    float64 `json:"urgency"`
	Importance float64 `json:"importance"`
	Impact     float64 `json:"impact"`
}

// MaxOverdueBoost caps the priority boost applied for overdue tasks.
const MaxOverdueBoost = 30.0

// MaxPriorityScore is the clamp ceiling for a computed priority score.
const MaxPriorityScore = 100.0

// Score computes the 0-100 priority score: a weighted blend of urgency,
// importance and impact, optionally boosted for how overdue the task is.
func (p TaskPriority) Score(overdueHours float64) float64 {
	base := (0.4*p.Urgency + 0.4*p.Importance + 0.2*p.Impact) * 100
	if overdueHours > 0 {
		boost := overdueHours
		if boost > MaxOverdueBoost {
			boost = MaxOverdueBoost
		}
		base += boost
	}
	if base > MaxPriorityScore {
		base = MaxPriorityScore
	}
	if base < 0 {
		base = 0
	}
	return base
}

// TaskPriorityFromString maps a coarse label to a default TaskPriority triple.
func TaskPriorityFromString(label string) TaskPriority {
	switch label {
	case "urgent":
		return TaskPriority{Urgency: 1.0, Importance: 0.9, Impact: 0.8}
	case "high":
		return TaskPriority{Urgency: 0.75, Importance: 0.75, Impact: 0.6}
	case "low":
		return TaskPriority{Urgency: 0.25, Importance: 0.25, Impact: 0.2}
	case "medium":
		fallthrough
	default:
		return TaskPriority{Urgency: 0.5, Importance: 0.5, Impact: 0.4}
	}
}

// Task is a unit of work tracked by the Task Manager.
type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	TaskType    TaskType   `json:"task_type"`
	Status      TaskStatus `json:"status"`

	CreatedAt   time.Time  `json:"created_at"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	Priority TaskPriority `json:"priority"`

	Dependencies []string `json:"dependencies,omitempty"`
	WaitingFor   string   `json:"waiting_for,omitempty"`

	Tags     []string       `json:"tags,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Assignee string         `json:"assignee,omitempty"`

	ExecutionResult string `json:"execution_result,omitempty"`
}

// PriorityScore computes the task's current priority score, boosting for
// how many hours overdue the task is (0 if not overdue or no due date).
func (t *Task) PriorityScore(now time.Time) float64 {
	overdueHours := 0.0
	if t.DueDate != nil && now.After(*t.DueDate) && !t.Status.IsTerminal() {
		overdueHours = now.Sub(*t.DueDate).Hours()
	}
	return t.Priority.Score(overdueHours)
}

// IsOverdue reports whether the task has a due date in the past and is not
// in a terminal state.
func (t *Task) IsOverdue(now time.Time) bool {
	if t.DueDate == nil || t.Status.IsTerminal() {
		return false
	}
	return t.DueDate.Before(now)
}

// DaysUntilDue returns the number of days until the due date, or nil if unset.
func (t *Task) DaysUntilDue(now time.Time) *float64 {
	if t.DueDate == nil {
		return nil
	}
	days := t.DueDate.Sub(now).Hours() / 24
	return &days
}

// Complete marks the task completed, stamping completed_at and recording
// the execution result. It does not validate the state-machine transition;
// callers use Manager.Complete for that.
func (t *Task) Complete(now time.Time, result string) {
	t.Status = TaskStatusCompleted
	t.CompletedAt = &now
	t.ExecutionResult = result
}
