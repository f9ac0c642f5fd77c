package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/custodia-labs/memquery/internal/core/domain"
	"github.com/custodia-labs/memquery/internal/core/ports/driven"
)

// jsonNull is the JSON representation of null.
const jsonNull = "null"

// memoryStore implements driven.MemoryStore.
type memoryStore struct {
	store *Store
}

var _ driven.MemoryStore = (*memoryStore)(nil)

// SaveMemory creates or replaces a memory by ID.
func (s *memoryStore) SaveMemory(ctx context.Context, m *domain.Memory) error {
	if m == nil || m.ID == "" {
		return fmt.Errorf("%w: memory requires an id", domain.ErrInvalidInput)
	}

	meta, err := json.Marshal(m.Metadata)
	if err != nil {
		return fmt.Errorf("%w: encoding metadata: %w", domain.ErrInvalidInput, err)
	}

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO memories (id, content, metadata, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			content = excluded.content,
			metadata = excluded.metadata,
			created_at = excluded.created_at
	`, m.ID, m.Content, string(meta), formatTime(m.CreatedAt))
	if err != nil {
		return fmt.Errorf("saving memory %s: %w", m.ID, err)
	}
	return nil
}

// GetMemory returns a memory by ID, or ErrNotFound.
func (s *memoryStore) GetMemory(ctx context.Context, id string) (*domain.Memory, error) {
	row := s.store.db.QueryRowContext(ctx,
		"SELECT id, content, metadata, created_at FROM memories WHERE id = ?", id)

	m, err := scanMemory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("memory %s: %w", id, domain.ErrNotFound)
	}
	return m, err
}

// SearchMemories selects rows containing any query term, then ranks them
// by the fraction of terms matched and recency.
func (s *memoryStore) SearchMemories(ctx context.Context, query string, limit int) ([]domain.MemoryHit, error) {
	terms := domain.MemoryTerms(query)
	if len(terms) == 0 || limit <= 0 {
		return []domain.MemoryHit{}, nil
	}

	clauses := make([]string, len(terms))
	args := make([]any, len(terms))
	for i, t := range terms {
		clauses[i] = "instr(lower(content), ?) > 0"
		args[i] = t
	}

	//nolint:gosec // clauses are fixed placeholders, terms are bound
	rows, err := s.store.db.QueryContext(ctx,
		"SELECT id, content, metadata, created_at FROM memories WHERE "+strings.Join(clauses, " OR "),
		args...)
	if err != nil {
		return nil, fmt.Errorf("searching memories: %w", err)
	}
	defer rows.Close()

	var hits []domain.MemoryHit
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, err
		}
		hits = append(hits, domain.MemoryHit{Memory: *m, Score: domain.TermScore(m.Content, terms)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating memories: %w", err)
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Memory.CreatedAt.After(hits[j].Memory.CreatedAt)
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	if hits == nil {
		hits = []domain.MemoryHit{}
	}
	return hits, nil
}

// CountMemories returns the number of stored memories.
func (s *memoryStore) CountMemories(ctx context.Context) (int, error) {
	var n int
	if err := s.store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM memories").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting memories: %w", err)
	}
	return n, nil
}

func scanMemory(row rowScanner) (*domain.Memory, error) {
	var m domain.Memory
	var meta sql.NullString
	var createdAt string

	if err := row.Scan(&m.ID, &m.Content, &meta, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning memory: %w", err)
	}

	if meta.Valid && meta.String != "" && meta.String != jsonNull {
		if err := json.Unmarshal([]byte(meta.String), &m.Metadata); err != nil {
			return nil, fmt.Errorf("decoding memory metadata: %w", err)
		}
	}
	m.CreatedAt = parseTime(createdAt)
	return &m, nil
}
