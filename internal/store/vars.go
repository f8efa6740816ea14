package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
)

// GetVar returns a script variable. ok is false when it was never set.
func (s *Store) GetVar(ctx context.Context, name string) (value string, ok bool, err error) {
	query, args, err := squirrel.Select("value").
		From("script_vars").
		Where(squirrel.Eq{"name": name}).
		ToSql()
	if err != nil {
		return "", false, fmt.Errorf("build get var query: %w", err)
	}

	err = s.db.QueryRowContext(ctx, query, args...).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get var %s: %w", name, err)
	}
	return value, true, nil
}

// SetVar inserts or replaces a script variable
func (s *Store) SetVar(ctx context.Context, name, value string) error {
	query, args, err := squirrel.Insert("script_vars").
		Columns("name", "value", "updated_at").
		Values(name, value, s.timestamp()).
		Suffix("ON CONFLICT(name) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build set var query: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("set var %s: %w", name, err)
	}
	return nil
}

// DeleteVar removes a script variable; deleting a missing one is not an error
func (s *Store) DeleteVar(ctx context.Context, name string) error {
	query, args, err := squirrel.Delete("script_vars").
		Where(squirrel.Eq{"name": name}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete var query: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete var %s: %w", name, err)
	}
	return nil
}
