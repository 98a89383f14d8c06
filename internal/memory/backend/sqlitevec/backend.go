// Package sqlitevec provides a vector storage backend on SQLite. The vec0
// extension is not loaded: embeddings are stored as BLOBs and similarity is
// computed in Go over every row in scope.
package sqlitevec

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/haasonsaas/nexus/internal/memory/backend"
	"github.com/haasonsaas/nexus/pkg/models"
	_ "modernc.org/sqlite" // Pure-Go SQLite driver
)

// Backend implements the backend.Backend interface using sqlite-vec.
type Backend struct {
	db        *sql.DB
	dimension int
}

// Config contains configuration for the sqlite-vec backend.
type Config struct {
	Path      string // Path to SQLite database file
	Dimension int    // Embedding dimension
}

// New creates a new sqlite-vec backend.
func New(cfg Config) (*Backend, error) {
	if cfg.Path == "" {
		cfg.Path = ":memory:"
	}
	if cfg.Dimension == 0 {
		cfg.Dimension = 1536 // Default to OpenAI text-embedding-3-small
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	b := &Backend{
		db:        db,
		dimension: cfg.Dimension,
	}

	if err := b.init(); err != nil {
		db.Close()
		return nil, err
	}

	return b, nil
}

func (b *Backend) init() error {
	// Note: In production with CGO, you would load the vec0 extension:
	// _, err := b.db.Exec("SELECT load_extension('vec0')")

	// Create memories table
	_, err := b.db.Exec(`
		CREATE TABLE IF NOT EXISTS memories (
			id TEXT PRIMARY KEY,
			session_id TEXT,
			channel_id TEXT,
			agent_id TEXT,
			content TEXT NOT NULL,
			metadata TEXT,
			embedding BLOB,
			memory_type TEXT,
			confidence_level TEXT,
			initial_confidence REAL,
			current_confidence REAL,
			access_count INTEGER DEFAULT 0,
			tags TEXT,
			source TEXT,
			last_accessed DATETIME,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create memories table: %w", err)
	}

	// Create indexes for scoping
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_memories_session ON memories(session_id)",
		"CREATE INDEX IF NOT EXISTS idx_memories_channel ON memories(channel_id)",
		"CREATE INDEX IF NOT EXISTS idx_memories_agent ON memories(agent_id)",
		"CREATE INDEX IF NOT EXISTS idx_memories_created ON memories(created_at)",
		"CREATE INDEX IF NOT EXISTS idx_memories_content ON memories(content)",
	}
	for _, idx := range indexes {
		if _, err := b.db.Exec(idx); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	return nil
}

// Index stores memory entries with their embeddings.
func (b *Backend) Index(ctx context.Context, entries []*models.MemoryEntry) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			_ = err
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO memories (
			id, session_id, channel_id, agent_id, content, metadata, embedding,
			memory_type, confidence_level, initial_confidence, current_confidence,
			access_count, tags, source, last_accessed, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, entry := range entries {
		if entry.ID == "" {
			entry.ID = uuid.New().String()
		}
		if entry.CreatedAt.IsZero() {
			entry.CreatedAt = time.Now()
		}
		entry.UpdatedAt = time.Now()
		if entry.InitialConfidence == 0 {
			entry.InitialConfidence = 1.0
		}
		if entry.CurrentConfidence == 0 {
			entry.CurrentConfidence = entry.InitialConfidence
		}

		metadata, err := json.Marshal(entry.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
		tags, err := json.Marshal(entry.Tags)
		if err != nil {
			return fmt.Errorf("failed to marshal tags: %w", err)
		}

		embedding := encodeEmbedding(entry.Embedding)

		_, err = stmt.ExecContext(ctx,
			entry.ID,
			nullString(entry.SessionID),
			nullString(entry.ChannelID),
			nullString(entry.AgentID),
			entry.Content,
			string(metadata),
			embedding,
			string(entry.MemoryType),
			string(entry.ConfidenceLevel),
			entry.InitialConfidence,
			entry.CurrentConfidence,
			entry.AccessCount,
			string(tags),
			entry.Source,
			nullTime(entry.LastAccessed),
			entry.CreatedAt,
			entry.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert entry: %w", err)
		}
	}

	return tx.Commit()
}

// Store indexes a single entry, stamping decay bookkeeping defaults, and
// returns its (possibly generated) ID.
func (b *Backend) Store(ctx context.Context, entry *models.MemoryEntry) (string, error) {
	if err := b.Index(ctx, []*models.MemoryEntry{entry}); err != nil {
		return "", err
	}
	return entry.ID, nil
}

// Search finds similar entries using cosine similarity.
func (b *Backend) Search(ctx context.Context, queryEmbedding []float32, opts *backend.SearchOptions) ([]*models.SearchResult, error) {
	if opts == nil {
		opts = &backend.SearchOptions{Limit: 10}
	}
	if opts.Limit <= 0 {
		opts.Limit = 10
	}

	// Build query with scope filter
	query := selectColumns + ` FROM memories WHERE 1=1`
	args := []any{}

	switch opts.Scope {
	case models.ScopeSession:
		query += " AND session_id = ?"
		args = append(args, opts.ScopeID)
	case models.ScopeChannel:
		query += " AND channel_id = ?"
		args = append(args, opts.ScopeID)
	case models.ScopeAgent:
		query += " AND agent_id = ?"
		args = append(args, opts.ScopeID)
	}

	// Note: In production with vec0 extension, you would use:
	// SELECT *, vec_distance_cosine(embedding, ?) as distance
	// ORDER BY distance ASC

	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	defer rows.Close()

	var results []*models.SearchResult
	for rows.Next() {
		entry, embeddingBlob, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}

		// Decode embedding and calculate similarity
		embedding := decodeEmbedding(embeddingBlob)
		score := cosineSimilarity(queryEmbedding, embedding)

		if opts.Threshold > 0 && score < opts.Threshold {
			continue
		}

		results = append(results, &models.SearchResult{
			Entry: entry,
			Score: score,
		})
	}

	// Sort by score descending and limit
	sortByScoreDesc(results)
	if len(results) > opts.Limit {
		results = results[:opts.Limit]
	}

	return results, nil
}

// Delete removes entries by ID.
func (b *Backend) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, "DELETE FROM memories WHERE id = ?")
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("prepare delete statement: %w (rollback: %v)", err, rbErr)
		}
		return fmt.Errorf("prepare delete statement: %w", err)
	}
	defer stmt.Close()

	for _, id := range ids {
		if _, err := stmt.ExecContext(ctx, id); err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				return fmt.Errorf("delete memory %s: %w (rollback: %v)", id, err, rbErr)
			}
			return fmt.Errorf("delete memory %s: %w", id, err)
		}
	}

	return tx.Commit()
}

// Count returns the number of entries matching the scope.
func (b *Backend) Count(ctx context.Context, scope models.MemoryScope, scopeID string) (int64, error) {
	query := "SELECT COUNT(*) FROM memories WHERE 1=1"
	args := []any{}

	switch scope {
	case models.ScopeSession:
		query += " AND session_id = ?"
		args = append(args, scopeID)
	case models.ScopeChannel:
		query += " AND channel_id = ?"
		args = append(args, scopeID)
	case models.ScopeAgent:
		query += " AND agent_id = ?"
		args = append(args, scopeID)
	}

	var count int64
	err := b.db.QueryRowContext(ctx, query, args...).Scan(&count)
	return count, err
}

// Compact optimizes the database.
func (b *Backend) Compact(ctx context.Context) error {
	_, err := b.db.ExecContext(ctx, "VACUUM")
	return err
}

// Close releases resources.
func (b *Backend) Close() error {
	return b.db.Close()
}

// Keyword search, recency queries, updates, and stats

const selectColumns = `SELECT id, session_id, channel_id, agent_id, content, metadata, embedding,
	memory_type, confidence_level, initial_confidence, current_confidence,
	access_count, tags, source, last_accessed, created_at, updated_at`

// SearchByKeyword performs a substring match over content, since the
// pure-Go driver carries no FTS5 module. Results are ordered by recency.
func (b *Backend) SearchByKeyword(ctx context.Context, keyword string, opts *backend.SearchOptions) ([]*models.SearchResult, error) {
	if opts == nil {
		opts = &backend.SearchOptions{Limit: 10}
	}
	if opts.Limit <= 0 {
		opts.Limit = 10
	}

	query := selectColumns + ` FROM memories WHERE content LIKE ?`
	args := []any{"%" + keyword + "%"}
	query, args = appendScopeFilter(query, args, opts.Scope, opts.ScopeID)
	query += " ORDER BY created_at DESC LIMIT ?"
	args = append(args, opts.Limit)

	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	defer rows.Close()

	var results []*models.SearchResult
	for rows.Next() {
		entry, _, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, &models.SearchResult{Entry: entry, Score: 1.0})
	}
	return results, nil
}

// GetRecent returns the most recently created entries in scope.
func (b *Backend) GetRecent(ctx context.Context, scope models.MemoryScope, scopeID string, limit int) ([]*models.MemoryEntry, error) {
	query := selectColumns + ` FROM memories WHERE 1=1`
	args := []any{}
	query, args = appendScopeFilter(query, args, scope, scopeID)
	query += " ORDER BY created_at DESC LIMIT ?"
	args = append(args, limit)
	return b.queryEntries(ctx, query, args)
}

// GetBefore returns entries created strictly before the given time.
func (b *Backend) GetBefore(ctx context.Context, scope models.MemoryScope, scopeID string, before time.Time, limit int) ([]*models.MemoryEntry, error) {
	query := selectColumns + ` FROM memories WHERE created_at < ?`
	args := []any{before}
	query, args = appendScopeFilter(query, args, scope, scopeID)
	query += " ORDER BY created_at DESC LIMIT ?"
	args = append(args, limit)
	return b.queryEntries(ctx, query, args)
}

// GetAfter returns entries created strictly after the given time.
func (b *Backend) GetAfter(ctx context.Context, scope models.MemoryScope, scopeID string, after time.Time, limit int) ([]*models.MemoryEntry, error) {
	query := selectColumns + ` FROM memories WHERE created_at > ?`
	args := []any{after}
	query, args = appendScopeFilter(query, args, scope, scopeID)
	query += " ORDER BY created_at ASC LIMIT ?"
	args = append(args, limit)
	return b.queryEntries(ctx, query, args)
}

func (b *Backend) queryEntries(ctx context.Context, query string, args []any) ([]*models.MemoryEntry, error) {
	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	defer rows.Close()

	var entries []*models.MemoryEntry
	for rows.Next() {
		entry, _, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func appendScopeFilter(query string, args []any, scope models.MemoryScope, scopeID string) (string, []any) {
	switch scope {
	case models.ScopeSession:
		return query + " AND session_id = ?", append(args, scopeID)
	case models.ScopeChannel:
		return query + " AND channel_id = ?", append(args, scopeID)
	case models.ScopeAgent:
		return query + " AND agent_id = ?", append(args, scopeID)
	default:
		return query, args
	}
}

// Update persists confidence decay, access-count, and metadata changes made
// to an already-stored entry.
func (b *Backend) Update(ctx context.Context, entry *models.MemoryEntry) error {
	entry.UpdatedAt = time.Now()
	tags, err := json.Marshal(entry.Tags)
	if err != nil {
		return fmt.Errorf("failed to marshal tags: %w", err)
	}
	metadata, err := json.Marshal(entry.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	_, err = b.db.ExecContext(ctx, `
		UPDATE memories SET content = ?, metadata = ?, current_confidence = ?,
			access_count = ?, tags = ?, last_accessed = ?, updated_at = ?
		WHERE id = ?
	`, entry.Content, string(metadata), entry.CurrentConfidence, entry.AccessCount,
		string(tags), nullTime(entry.LastAccessed), entry.UpdatedAt, entry.ID)
	return err
}

// Stats summarizes the memory store for diagnostics and the system_info tool.
type Stats struct {
	TotalEntries   int64
	ByMemoryType   map[string]int64
	ByConfidence   map[string]int64
	OldestEntry    time.Time
	NewestEntry    time.Time
}

// GetStats aggregates entry counts by type and confidence level.
func (b *Backend) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{ByMemoryType: make(map[string]int64), ByConfidence: make(map[string]int64)}

	if err := b.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM memories").Scan(&stats.TotalEntries); err != nil {
		return nil, err
	}

	rows, err := b.db.QueryContext(ctx, "SELECT memory_type, COUNT(*) FROM memories GROUP BY memory_type")
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var t sql.NullString
		var count int64
		if err := rows.Scan(&t, &count); err != nil {
			rows.Close()
			return nil, err
		}
		stats.ByMemoryType[t.String] = count
	}
	rows.Close()

	rows, err = b.db.QueryContext(ctx, "SELECT confidence_level, COUNT(*) FROM memories GROUP BY confidence_level")
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var c sql.NullString
		var count int64
		if err := rows.Scan(&c, &count); err != nil {
			rows.Close()
			return nil, err
		}
		stats.ByConfidence[c.String] = count
	}
	rows.Close()

	var oldest, newest sql.NullTime
	_ = b.db.QueryRowContext(ctx, "SELECT MIN(created_at), MAX(created_at) FROM memories").Scan(&oldest, &newest)
	stats.OldestEntry = oldest.Time
	stats.NewestEntry = newest.Time

	return stats, nil
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}

func scanEntry(rows *sql.Rows) (*models.MemoryEntry, []byte, error) {
	var entry models.MemoryEntry
	var sessionID, channelID, agentID sql.NullString
	var metadataJSON string
	var embeddingBlob []byte
	var memoryType, confidenceLevel, tagsJSON sql.NullString
	var lastAccessed sql.NullTime

	err := rows.Scan(
		&entry.ID,
		&sessionID,
		&channelID,
		&agentID,
		&entry.Content,
		&metadataJSON,
		&embeddingBlob,
		&memoryType,
		&confidenceLevel,
		&entry.InitialConfidence,
		&entry.CurrentConfidence,
		&entry.AccessCount,
		&tagsJSON,
		&entry.Source,
		&lastAccessed,
		&entry.CreatedAt,
		&entry.UpdatedAt,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to scan row: %w", err)
	}

	entry.SessionID = sessionID.String
	entry.ChannelID = channelID.String
	entry.AgentID = agentID.String
	entry.MemoryType = models.MemoryType(memoryType.String)
	entry.ConfidenceLevel = models.MemoryConfidence(confidenceLevel.String)
	entry.LastAccessed = lastAccessed.Time

	if metadataJSON != "" {
		if err := json.Unmarshal([]byte(metadataJSON), &entry.Metadata); err != nil {
			return nil, nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}
	if tagsJSON.String != "" {
		if err := json.Unmarshal([]byte(tagsJSON.String), &entry.Tags); err != nil {
			return nil, nil, fmt.Errorf("failed to unmarshal tags: %w", err)
		}
	}

	return &entry, embeddingBlob, nil
}

// encodeEmbedding converts []float32 to bytes for storage.
func encodeEmbedding(embedding []float32) []byte {
	if len(embedding) == 0 {
		return nil
	}
	// Simple encoding: 4 bytes per float32 using IEEE 754 bits
	data := make([]byte, len(embedding)*4)
	for i, f := range embedding {
		bits := math.Float32bits(f)
		data[i*4] = byte(bits)
		data[i*4+1] = byte(bits >> 8)
		data[i*4+2] = byte(bits >> 16)
		data[i*4+3] = byte(bits >> 24)
	}
	return data
}

// decodeEmbedding converts bytes back to []float32.
func decodeEmbedding(data []byte) []float32 {
	if len(data) == 0 || len(data)%4 != 0 {
		return nil
	}
	embedding := make([]float32, len(data)/4)
	for i := range embedding {
		bits := uint32(data[i*4]) |
			uint32(data[i*4+1])<<8 |
			uint32(data[i*4+2])<<16 |
			uint32(data[i*4+3])<<24
		embedding[i] = math.Float32frombits(bits)
	}
	return embedding
}

// cosineSimilarity calculates the cosine similarity between two vectors.
func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dotProduct, normA, normB float32
	for i := range a {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (sqrt32(normA) * sqrt32(normB))
}

func sqrt32(x float32) float32 {
	// Newton-Raphson approximation
	if x <= 0 {
		return 0
	}
	z := x
	for i := 0; i < 10; i++ {
		z = (z + x/z) / 2
	}
	return z
}

// sortByScoreDesc sorts results by score in descending order.
func sortByScoreDesc(results []*models.SearchResult) {
	for i := 0; i < len(results)-1; i++ {
		for j := i + 1; j < len(results); j++ {
			if results[j].Score > results[i].Score {
				results[i], results[j] = results[j], results[i]
			}
		}
	}
}
