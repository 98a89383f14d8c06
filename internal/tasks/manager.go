package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/haasonsaas/nexus/pkg/models"
)

// CreateOptions carries the optional fields for Manager.Create.
type CreateOptions struct {
	Description  string
	TaskType     models.TaskType
	DueDate      *time.Time
	ScheduledAt  *time.Time
	Priority     *models.TaskPriority
	Assignee     string
	Tags         []string
	Dependencies []string
}

// ListOptions filters and orders Manager.List.
type ListOptions struct {
	Status         models.TaskStatus
	TaskType       models.TaskType
	Assignee       string
	Tags           []string
	SortByPriority bool
}

// Manager owns the in-memory task set and the store it is persisted to,
// grounded on original_source/src/task/manager.py: CRUD, priority sort,
// status transitions, dependency checks, and archival, serialized behind
// a single coarse-grained mutex per §5.
type Manager struct {
	mu     sync.Mutex
	store  Store
	tasks  map[string]*models.Task
	clock  func() time.Time
	logger *slog.Logger
}

// NewManager loads the task set from store and returns a ready Manager.
func NewManager(ctx context.Context, store Store, logger *slog.Logger) (*Manager, error) {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		store:  store,
		tasks:  make(map[string]*models.Task),
		clock:  time.Now,
		logger: logger.With("component", "task-manager"),
	}

	loaded, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load tasks: %w", err)
	}
	for _, task := range loaded {
		m.tasks[task.ID] = task
	}
	m.logger.Info("loaded tasks", "count", len(m.tasks))
	return m, nil
}

func (m *Manager) saveLocked(ctx context.Context) error {
	all := make([]*models.Task, 0, len(m.tasks))
	for _, task := range m.tasks {
		all = append(all, task)
	}
	if err := m.store.SaveAll(ctx, all); err != nil {
		m.logger.Error("failed to save tasks", "error", err)
		return err
	}
	return nil
}

// Create adds a new task, defaulting its type to immediate, its priority
// to medium, and its assignee to "self".
func (m *Manager) Create(ctx context.Context, title string, opts CreateOptions) (*models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	taskType := opts.TaskType
	if taskType == "" {
		taskType = models.TaskTypeImmediate
	}
	priority := models.TaskPriorityFromString("medium")
	if opts.Priority != nil {
		priority = *opts.Priority
	}
	assignee := opts.Assignee
	if assignee == "" {
		assignee = "self"
	}

	now := m.clock()
	task := &models.Task{
		ID:           uuid.New().String()[:8],
		Title:        title,
		Description:  opts.Description,
		TaskType:     taskType,
		Status:       models.TaskStatusPending,
		CreatedAt:    now,
		DueDate:      opts.DueDate,
		ScheduledAt:  opts.ScheduledAt,
		Priority:     priority,
		Assignee:     assignee,
		Tags:         opts.Tags,
		Dependencies: opts.Dependencies,
	}

	m.tasks[task.ID] = task
	if err := m.saveLocked(ctx); err != nil {
		delete(m.tasks, task.ID)
		return nil, err
	}
	m.logger.Info("created task", "id", task.ID, "title", title)
	return task, nil
}

// Get returns the task with the given ID, or nil if none exists.
func (m *Manager) Get(id string) *models.Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tasks[id]
}

// Update replaces the stored task with the given one, matched by ID.
func (m *Manager) Update(ctx context.Context, task *models.Task) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.tasks[task.ID]; !ok {
		return false, nil
	}
	m.tasks[task.ID] = task
	if err := m.saveLocked(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// Delete removes a task. It returns false if the task did not exist.
func (m *Manager) Delete(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.tasks[id]; !ok {
		return false, nil
	}
	delete(m.tasks, id)
	if err := m.saveLocked(ctx); err != nil {
		return false, err
	}
	m.logger.Info("deleted task", "id", id)
	return true, nil
}

// DeleteAll removes every task and returns how many were deleted.
func (m *Manager) DeleteAll(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := len(m.tasks)
	m.tasks = make(map[string]*models.Task)
	if err := m.saveLocked(ctx); err != nil {
		return 0, err
	}
	return count, nil
}

// Complete marks a task completed, stamping completed_at and the result.
func (m *Manager) Complete(ctx context.Context, id, result string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	task, ok := m.tasks[id]
	if !ok {
		return false, nil
	}
	task.Complete(m.clock(), result)
	if err := m.saveLocked(ctx); err != nil {
		return false, err
	}
	m.logger.Info("completed task", "id", id)
	return true, nil
}

// Start transitions a pending task to in_progress.
func (m *Manager) Start(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	task, ok := m.tasks[id]
	if !ok || task.Status != models.TaskStatusPending {
		return false, nil
	}
	task.Status = models.TaskStatusInProgress
	if err := m.saveLocked(ctx); err != nil {
		return false, err
	}
	m.logger.Info("started task", "id", id)
	return true, nil
}

// Block marks a task blocked, recording the reason in its metadata.
func (m *Manager) Block(ctx context.Context, id, reason string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	task, ok := m.tasks[id]
	if !ok {
		return false, nil
	}
	task.Status = models.TaskStatusBlocked
	if task.Metadata == nil {
		task.Metadata = make(map[string]any)
	}
	task.Metadata["block_reason"] = reason
	if err := m.saveLocked(ctx); err != nil {
		return false, err
	}
	m.logger.Info("blocked task", "id", id, "reason", reason)
	return true, nil
}

// Unblock returns a blocked task to pending, clearing its block reason.
func (m *Manager) Unblock(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	task, ok := m.tasks[id]
	if !ok || task.Status != models.TaskStatusBlocked {
		return false, nil
	}
	task.Status = models.TaskStatusPending
	delete(task.Metadata, "block_reason")
	if err := m.saveLocked(ctx); err != nil {
		return false, err
	}
	m.logger.Info("unblocked task", "id", id)
	return true, nil
}

// WaitFor marks a task waiting on some external event, described by waitingFor.
func (m *Manager) WaitFor(ctx context.Context, id, waitingFor string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	task, ok := m.tasks[id]
	if !ok {
		return false, nil
	}
	task.Status = models.TaskStatusWaiting
	task.WaitingFor = waitingFor
	if err := m.saveLocked(ctx); err != nil {
		return false, err
	}
	m.logger.Info("task now waiting", "id", id, "waiting_for", waitingFor)
	return true, nil
}

// List returns tasks matching opts, sorted by priority score (descending)
// when opts.SortByPriority is set.
func (m *Manager) List(opts ListOptions) []*models.Task {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock()
	result := make([]*models.Task, 0, len(m.tasks))
	for _, task := range m.tasks {
		if opts.Status != "" && task.Status != opts.Status {
			continue
		}
		if opts.TaskType != "" && task.TaskType != opts.TaskType {
			continue
		}
		if opts.Assignee != "" && task.Assignee != opts.Assignee {
			continue
		}
		if len(opts.Tags) > 0 && !hasAnyTag(task.Tags, opts.Tags) {
			continue
		}
		result = append(result, task)
	}

	if opts.SortByPriority {
		sort.Slice(result, func(i, j int) bool {
			return result[i].PriorityScore(now) > result[j].PriorityScore(now)
		})
	}
	return result
}

func hasAnyTag(taskTags, want []string) bool {
	for _, w := range want {
		for _, t := range taskTags {
			if t == w {
				return true
			}
		}
	}
	return false
}

// PendingTasks returns up to limit pending tasks, highest priority first.
func (m *Manager) PendingTasks(limit int) []*models.Task {
	pending := m.List(ListOptions{Status: models.TaskStatusPending, SortByPriority: true})
	if limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}
	return pending
}

// OverdueTasks returns every task whose due date has passed and is not in
// a terminal state.
func (m *Manager) OverdueTasks() []*models.Task {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock()
	var overdue []*models.Task
	for _, task := range m.tasks {
		if task.IsOverdue(now) {
			overdue = append(overdue, task)
		}
	}
	return overdue
}

// TodayTasks returns non-terminal tasks due today.
func (m *Manager) TodayTasks() []*models.Task {
	m.mu.Lock()
	defer m.mu.Unlock()

	today := m.clock()
	y, mo, d := today.Date()
	var due []*models.Task
	for _, task := range m.tasks {
		if task.DueDate == nil || task.Status.IsTerminal() {
			continue
		}
		dy, dmo, dd := task.DueDate.Date()
		if dy == y && dmo == mo && dd == d {
			due = append(due, task)
		}
	}
	return due
}

// CheckDependencies reports whether every dependency of id is completed.
// A missing dependency task counts as unsatisfied.
func (m *Manager) CheckDependencies(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	task, ok := m.tasks[id]
	if !ok {
		return false
	}
	for _, depID := range task.Dependencies {
		dep, ok := m.tasks[depID]
		if !ok || dep.Status != models.TaskStatusCompleted {
			return false
		}
	}
	return true
}

// ArchiveOldTasks moves completed/cancelled tasks older than maxAge into
// the archived status, returning how many were archived.
func (m *Manager) ArchiveOldTasks(ctx context.Context, maxAge time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.clock().Add(-maxAge)
	archived := 0
	for _, task := range m.tasks {
		if task.Status != models.TaskStatusCompleted && task.Status != models.TaskStatusCancelled {
			continue
		}
		checkTime := task.CreatedAt
		if task.CompletedAt != nil {
			checkTime = *task.CompletedAt
		}
		if checkTime.Before(cutoff) {
			task.Status = models.TaskStatusArchived
			archived++
		}
	}
	if archived > 0 {
		if err := m.saveLocked(ctx); err != nil {
			return 0, err
		}
		m.logger.Info("archived old tasks", "count", archived)
	}
	return archived, nil
}

// Stats summarizes the task set for reporting.
type Stats struct {
	Total    int
	ByStatus map[models.TaskStatus]int
	ByType   map[models.TaskType]int
	Overdue  int
}

// GetStats computes aggregate counts over the current task set.
func (m *Manager) GetStats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock()
	stats := Stats{
		ByStatus: make(map[models.TaskStatus]int),
		ByType:   make(map[models.TaskType]int),
	}
	for _, task := range m.tasks {
		stats.Total++
		stats.ByStatus[task.Status]++
		stats.ByType[task.TaskType]++
		if task.IsOverdue(now) {
			stats.Overdue++
		}
	}
	return stats
}
