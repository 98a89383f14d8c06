package tasks

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/haasonsaas/nexus/pkg/models"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	store, err := NewJSONLStore(filepath.Join(t.TempDir(), "tasks.jsonl"))
	if err != nil {
		t.Fatalf("NewJSONLStore: %v", err)
	}
	m, err := NewManager(context.Background(), store, nil)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m
}

func TestManager_CreateAndGet(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	task, err := m.Create(ctx, "write report", CreateOptions{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if task.Status != models.TaskStatusPending {
		t.Fatalf("expected pending status, got %s", task.Status)
	}
	if task.Assignee != "self" {
		t.Fatalf("expected default assignee self, got %q", task.Assignee)
	}

	got := m.Get(task.ID)
	if got == nil || got.Title != "write report" {
		t.Fatalf("Get returned %+v", got)
	}
}

func TestManager_CompleteAndDelete(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	task, _ := m.Create(ctx, "ship PR", CreateOptions{})
	ok, err := m.Complete(ctx, task.ID, "merged")
	if err != nil || !ok {
		t.Fatalf("Complete: ok=%v err=%v", ok, err)
	}
	if got := m.Get(task.ID); got.Status != models.TaskStatusCompleted {
		t.Fatalf("expected completed, got %s", got.Status)
	}

	ok, err = m.Delete(ctx, task.ID)
	if err != nil || !ok {
		t.Fatalf("Delete: ok=%v err=%v", ok, err)
	}
	if m.Get(task.ID) != nil {
		t.Fatalf("expected task gone after delete")
	}
}

func TestManager_StateTransitions(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	task, _ := m.Create(ctx, "call vendor", CreateOptions{})

	if ok, _ := m.Start(ctx, task.ID); !ok {
		t.Fatalf("expected Start to succeed from pending")
	}
	if ok, _ := m.Start(ctx, task.ID); ok {
		t.Fatalf("expected Start to fail when not pending")
	}

	if ok, _ := m.Block(ctx, task.ID, "waiting on vendor reply"); !ok {
		t.Fatalf("expected Block to succeed")
	}
	if got := m.Get(task.ID); got.Metadata["block_reason"] != "waiting on vendor reply" {
		t.Fatalf("expected block reason recorded, got %v", got.Metadata)
	}

	if ok, _ := m.Unblock(ctx, task.ID); !ok {
		t.Fatalf("expected Unblock to succeed")
	}
	if got := m.Get(task.ID); got.Status != models.TaskStatusPending {
		t.Fatalf("expected pending after unblock, got %s", got.Status)
	}

	if ok, _ := m.WaitFor(ctx, task.ID, "vendor callback"); !ok {
		t.Fatalf("expected WaitFor to succeed")
	}
	if got := m.Get(task.ID); got.Status != models.TaskStatusWaiting || got.WaitingFor != "vendor callback" {
		t.Fatalf("expected waiting status with reason, got %+v", got)
	}
}

func TestManager_ListSortsByPriority(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	low := models.TaskPriorityFromString("low")
	high := models.TaskPriorityFromString("high")

	_, _ = m.Create(ctx, "low priority", CreateOptions{Priority: &low})
	_, _ = m.Create(ctx, "high priority", CreateOptions{Priority: &high})

	result := m.List(ListOptions{SortByPriority: true})
	if len(result) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(result))
	}
	if result[0].Title != "high priority" {
		t.Fatalf("expected high priority task first, got %q", result[0].Title)
	}
}

func TestManager_CheckDependencies(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	dep, _ := m.Create(ctx, "prereq", CreateOptions{})
	task, _ := m.Create(ctx, "dependent", CreateOptions{Dependencies: []string{dep.ID}})

	if m.CheckDependencies(task.ID) {
		t.Fatalf("expected dependencies unsatisfied before prereq completes")
	}

	if _, err := m.Complete(ctx, dep.ID, ""); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if !m.CheckDependencies(task.ID) {
		t.Fatalf("expected dependencies satisfied after prereq completes")
	}
}

func TestManager_ArchiveOldTasks(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	m.clock = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }

	task, _ := m.Create(ctx, "old done task", CreateOptions{})
	if _, err := m.Complete(ctx, task.ID, "done"); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	m.clock = func() time.Time { return time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC) }
	archived, err := m.ArchiveOldTasks(ctx, 14*24*time.Hour)
	if err != nil {
		t.Fatalf("ArchiveOldTasks: %v", err)
	}
	if archived != 1 {
		t.Fatalf("expected 1 archived task, got %d", archived)
	}
	if got := m.Get(task.ID); got.Status != models.TaskStatusArchived {
		t.Fatalf("expected archived status, got %s", got.Status)
	}
}

func TestManager_PersistsAcrossReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tasks.jsonl")

	store1, err := NewJSONLStore(path)
	if err != nil {
		t.Fatalf("NewJSONLStore: %v", err)
	}
	m1, err := NewManager(context.Background(), store1, nil)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if _, err := m1.Create(context.Background(), "persisted task", CreateOptions{}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	store2, err := NewJSONLStore(path)
	if err != nil {
		t.Fatalf("NewJSONLStore: %v", err)
	}
	m2, err := NewManager(context.Background(), store2, nil)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if len(m2.List(ListOptions{})) != 1 {
		t.Fatalf("expected 1 task reloaded from disk, got %d", len(m2.List(ListOptions{})))
	}
}
