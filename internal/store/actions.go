package store

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
)

// Action is one audited admin action against a player
type Action struct {
	ID          int64
	Kind        string
	ClientIndex int
	ClientName  string
	Damage      int
	HealthAfter int
	CreatedAt   time.Time
}

// RecordAction appends an action to the audit log. CreatedAt is filled in
// when zero.
func (s *Store) RecordAction(ctx context.Context, action Action) error {
	if action.CreatedAt.IsZero() {
		action.CreatedAt = s.now()
	}

	query, args, err := squirrel.Insert("admin_actions").
		Columns("kind", "client_index", "client_name", "damage", "health_after", "created_at").
		Values(action.Kind, action.ClientIndex, action.ClientName, action.Damage, action.HealthAfter,
			action.CreatedAt.UTC().Format(time.RFC3339Nano)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build record action query: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("record %s action: %w", action.Kind, err)
	}
	return nil
}

// RecentActions returns up to limit actions, newest first
func (s *Store) RecentActions(ctx context.Context, limit int) ([]Action, error) {
	query, args, err := squirrel.Select("id", "kind", "client_index", "client_name", "damage", "health_after", "created_at").
		From("admin_actions").
		OrderBy("id DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build recent actions query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query recent actions: %w", err)
	}
	defer rows.Close()

	var actions []Action
	for rows.Next() {
		var a Action
		var createdAt string
		if err := rows.Scan(&a.ID, &a.Kind, &a.ClientIndex, &a.ClientName, &a.Damage, &a.HealthAfter, &createdAt); err != nil {
			return nil, fmt.Errorf("scan action row: %w", err)
		}
		if a.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}
		actions = append(actions, a)
	}
	return actions, rows.Err()
}
