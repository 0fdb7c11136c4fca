package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const taskColumns = `id, created_at, updated_at, user_id, title, description, due_date, status, priority, version`

// TaskFilter narrows a user's task list. Empty fields do not filter.
type TaskFilter struct {
	Status   TaskStatus
	Priority TaskPriority
	// Query is matched as a literal, case-insensitive substring of title or description.
	Query string
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes s safe to embed in a LIKE pattern as literal text.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func (s *Storage) InsertTask(ctx context.Context, t *Task) error {
	query := `INSERT INTO tasks (user_id, title, description, due_date, status, priority)
			  VALUES ($1, $2, $3, $4, $5, $6)
			  RETURNING id, created_at, updated_at, version`

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	row := s.db.QueryRowxContext(ctx, query, t.UserID, t.Title, t.Description, t.DueDate, t.Status, t.Priority)
	if err := row.Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt, &t.Version); err != nil {
		return fmt.Errorf("inserting task: %w", err)
	}
	return nil
}

// GetTaskForUser returns nil when the task does not exist or belongs to another user.
func (s *Storage) GetTaskForUser(ctx context.Context, id, userID int64) (*Task, error) {
	query := `SELECT ` + taskColumns + `
			  FROM tasks
			  WHERE id = $1 AND user_id = $2`

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var t Task
	err := s.db.GetContext(ctx, &t, query, id, userID)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, nil
		default:
			return nil, err
		}
	}
	return &t, nil
}

func (s *Storage) ListTasksForUser(ctx context.Context, userID int64, filter TaskFilter) ([]Task, error) {
	conditions := []string{"user_id = $1"}
	args := []any{userID}

	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Priority != "" {
		args = append(args, filter.Priority)
		conditions = append(conditions, fmt.Sprintf("priority = $%d", len(args)))
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		args = append(args, "%"+escapeLike(q)+"%")
		n := len(args)
		conditions = append(conditions, fmt.Sprintf(`(title ILIKE $%d ESCAPE '\' OR description ILIKE $%d ESCAPE '\')`, n, n))
	}

	query := `SELECT ` + taskColumns + `
			  FROM tasks
			  WHERE ` + strings.Join(conditions, " AND ") + `
			  ORDER BY created_at DESC, id DESC`

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tasks := []Task{}
	if err := s.db.SelectContext(ctx, &tasks, query, args...); err != nil {
		return nil, fmt.Errorf("querying tasks: %w", err)
	}
	return tasks, nil
}

// UpdateTask persists t if it is still owned by t.UserID at version t.Version.
func (s *Storage) UpdateTask(ctx context.Context, t *Task) error {
	query := `UPDATE tasks
			  SET title = $1, description = $2, due_date = $3, status = $4, priority = $5,
			      updated_at = now(), version = version + 1
			  WHERE id = $6 AND user_id = $7 AND version = $8
			  RETURNING updated_at, version`

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	row := s.db.QueryRowxContext(ctx, query,
		t.Title, t.Description, t.DueDate, t.Status, t.Priority,
		t.ID, t.UserID, t.Version,
	)
	err := row.Scan(&t.UpdatedAt, &t.Version)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return ErrEditConflict
		default:
			return fmt.Errorf("updating task %d: %w", t.ID, err)
		}
	}
	return nil
}

// DeleteTaskForUser reports whether a task owned by userID was removed.
func (s *Storage) DeleteTaskForUser(ctx context.Context, id, userID int64) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	result, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return false, fmt.Errorf("deleting task %d: %w", id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Storage) TaskStatsForUser(ctx context.Context, userID int64) (TaskStats, error) {
	query := `SELECT count(*) AS total,
			         count(*) FILTER (WHERE status = 'pending') AS pending,
			         count(*) FILTER (WHERE status = 'in-progress') AS in_progress,
			         count(*) FILTER (WHERE status = 'completed') AS completed
			  FROM tasks
			  WHERE user_id = $1`

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var stats TaskStats
	if err := s.db.GetContext(ctx, &stats, query, userID); err != nil {
		return TaskStats{}, fmt.Errorf("counting tasks: %w", err)
	}
	return stats, nil
}

// ListNotifiableTasks returns open tasks whose due date falls in [from, to], soonest first.
func (s *Storage) ListNotifiableTasks(ctx context.Context, from, to time.Time) ([]Task, error) {
	query := `SELECT ` + taskColumns + `
			  FROM tasks
			  WHERE due_date IS NOT NULL
			    AND due_date >= $1 AND due_date <= $2
			    AND status <> 'completed'
			  ORDER BY due_date`

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tasks := []Task{}
	if err := s.db.SelectContext(ctx, &tasks, query, from, to); err != nil {
		return nil, fmt.Errorf("querying notifiable tasks: %w", err)
	}
	return tasks, nil
}
