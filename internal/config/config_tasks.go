package config

import "time"

// TasksConfig configures the personal Task Manager's persistence and
// overdue/archival sweeps.
type TasksConfig struct {
	// Backend selects the store implementation: "jsonl" (default) or "sql".
	Backend string `yaml:"backend"`

	// Directory is where the jsonl backend persists its task log.
	Directory string `yaml:"directory"`

	// DatabaseURL is used when Backend is "sql".
	DatabaseURL string `yaml:"database_url"`

	// ArchiveAfter is how long a completed task is kept before
	// archive_old_tasks moves it out of the active list. Default: 30 days.
	ArchiveAfter time.Duration `yaml:"archive_after"`
}

func applyTasksDefaults(cfg *TasksConfig) {
	if cfg.Backend == "" {
		cfg.Backend = "jsonl"
	}
	if cfg.Directory == "" {
		cfg.Directory = "tasks"
	}
	if cfg.ArchiveAfter == 0 {
		cfg.ArchiveAfter = 30 * 24 * time.Hour
	}
}

func tasksValidationIssues(cfg *TasksConfig) []string {
	var issues []string
	switch cfg.Backend {
	case "jsonl", "sql":
	default:
		issues = append(issues, "tasks.backend must be \"jsonl\" or \"sql\"")
	}
	if cfg.Backend == "sql" && cfg.DatabaseURL == "" {
		issues = append(issues, "tasks.database_url is required when tasks.backend is \"sql\"")
	}
	if cfg.ArchiveAfter < 0 {
		issues = append(issues, "tasks.archive_after must be >= 0")
	}
	return issues
}
