package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/haasonsaas/nexus/internal/memory"
	"github.com/haasonsaas/nexus/pkg/models"
)

func buildMemoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memory",
		Short: "Search or add to long-term memory directly",
	}
	cmd.AddCommand(buildMemorySearchCmd(), buildMemoryRememberCmd())
	return cmd
}

func newMemoryManager() (*memory.Manager, error) {
	cfg, err := loadConfigQuiet()
	if err != nil {
		return nil, err
	}
	return memory.NewManager(&cfg.Memory)
}

func buildMemorySearchCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search long-term memory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := newMemoryManager()
			if err != nil {
				return err
			}
			defer mgr.Close()

			resp, err := mgr.Search(cmd.Context(), &models.SearchRequest{
				Query: args[0],
				Limit: limit,
				Scope: models.ScopeGlobal,
			})
			if err != nil {
				return err
			}
			if resp == nil || len(resp.Results) == 0 {
				fmt.Println("no matching memories")
				return nil
			}
			for i, r := range resp.Results {
				fmt.Printf("%d. (%.3f) %s\n", i+1, r.Score, r.Entry.Content)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 5, "Maximum results to return")
	return cmd
}

func buildMemoryRememberCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remember [content]",
		Short: "Save a memory entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := newMemoryManager()
			if err != nil {
				return err
			}
			defer mgr.Close()

			now := time.Now()
			entry := &models.MemoryEntry{
				ID:      uuid.New().String(),
				Content: args[0],
				Metadata: models.MemoryMetadata{
					Source: "cli",
				},
				CreatedAt: now,
				UpdatedAt: now,
			}
			if err := mgr.Index(context.Background(), []*models.MemoryEntry{entry}); err != nil {
				return err
			}
			fmt.Println("saved:", entry.ID)
			return nil
		},
	}
}
