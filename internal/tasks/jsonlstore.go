package tasks

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/haasonsaas/nexus/pkg/models"
)

// JSONLStore persists tasks as one JSON object per line in a single file,
// rewritten wholesale on every save. It is the default, zero-dependency
// backend, grounded on the original task manager's _load_tasks/_save_tasks.
type JSONLStore struct {
	path string
}

// NewJSONLStore returns a store backed by the file at path, creating its
// parent directory if necessary.
func NewJSONLStore(path string) (*JSONLStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create tasks directory: %w", err)
	}
	return &JSONLStore{path: path}, nil
}

// Load reads every task recorded in the JSONL file. A missing file is not
// an error; it simply yields no tasks.
func (s *JSONLStore) Load(_ context.Context) ([]*models.Task, error) {
	f, err := os.Open(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open tasks file: %w", err)
	}
	defer f.Close()

	var loaded []*models.Task
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var task models.Task
		if err := json.Unmarshal(line, &task); err != nil {
			return nil, fmt.Errorf("decode task line: %w", err)
		}
		loaded = append(loaded, &task)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan tasks file: %w", err)
	}
	return loaded, nil
}

// SaveAll rewrites the file with exactly the given tasks, one per line.
// The write goes to a temp file and is renamed into place so a crash
// mid-write never truncates the existing store.
func (s *JSONLStore) SaveAll(_ context.Context, tasks []*models.Task) error {
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".tasks-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp tasks file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	w := bufio.NewWriter(tmp)
	for _, task := range tasks {
		data, err := json.Marshal(task)
		if err != nil {
			tmp.Close()
			return fmt.Errorf("encode task %s: %w", task.ID, err)
		}
		if _, err := w.Write(data); err != nil {
			tmp.Close()
			return fmt.Errorf("write task %s: %w", task.ID, err)
		}
		if err := w.WriteByte('\n'); err != nil {
			tmp.Close()
			return fmt.Errorf("write task %s: %w", task.ID, err)
		}
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("flush tasks file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp tasks file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("rename tasks file: %w", err)
	}
	return nil
}
