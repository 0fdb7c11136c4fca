package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/harlequingg/taskmanager-api/internal/validator"
)

const (
	DefaultNotificationLimit = 50
	MaxNotificationLimit     = 100
)

const notificationColumns = `n.id, n.created_at, n.user_id, n.task_id, n.type, n.title, n.message,
	n.priority, n.read, n.scheduled_for, n.sent`

type notificationRow struct {
	Notification
	TaskTitle   string     `db:"task_title"`
	TaskDueDate *time.Time `db:"task_due_date"`
	TaskStatus  TaskStatus `db:"task_status"`
}

func (r notificationRow) toNotification() Notification {
	n := r.Notification
	n.Task = &TaskSummary{
		Title:   r.TaskTitle,
		DueDate: r.TaskDueDate,
		Status:  r.TaskStatus,
	}
	return n
}

// CreateNotification inserts n and trims the owner's notifications down to the
// most recent retainPerUser in the same transaction.
func (s *Storage) CreateNotification(ctx context.Context, n *Notification) error {
	if n.Priority == "" {
		n.Priority = NotificationPriorityNormal
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	v := validator.New()
	ValidateNotification(v, n)
	if !v.Valid() {
		return &ValidationError{Errors: v.Errors}
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	insert := `INSERT INTO notifications (created_at, user_id, task_id, type, title, message, priority, read, scheduled_for, sent)
			   VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			   RETURNING id`
	err = tx.QueryRowxContext(ctx, insert,
		n.CreatedAt, n.UserID, n.TaskID, n.Type, n.Title, n.Message,
		n.Priority, n.Read, n.ScheduledFor, n.Sent,
	).Scan(&n.ID)
	if err != nil {
		if isForeignKeyViolation(err) {
			return &ValidationError{Errors: map[string]string{"task": "must reference an existing task and user"}}
		}
		return fmt.Errorf("creating notification: %w", err)
	}

	prune := `DELETE FROM notifications
			  WHERE user_id = $1
			    AND id NOT IN (
			        SELECT id FROM notifications
			        WHERE user_id = $1
			        ORDER BY created_at DESC, id DESC
			        LIMIT $2
			    )`
	if _, err := tx.ExecContext(ctx, prune, n.UserID, s.retainPerUser); err != nil {
		return fmt.Errorf("pruning notifications for user %d: %w", n.UserID, err)
	}

	return tx.Commit()
}

// ListNotificationsForUser returns the user's notifications newest first,
// each with a projection of its task.
func (s *Storage) ListNotificationsForUser(ctx context.Context, userID int64, limit int) ([]Notification, error) {
	if limit <= 0 {
		limit = DefaultNotificationLimit
	}
	if limit > MaxNotificationLimit {
		limit = MaxNotificationLimit
	}

	query := `SELECT ` + notificationColumns + `,
			         t.title AS task_title, t.due_date AS task_due_date, t.status AS task_status
			  FROM notifications n
			  JOIN tasks t ON t.id = n.task_id
			  WHERE n.user_id = $1
			  ORDER BY n.created_at DESC, n.id DESC
			  LIMIT $2`

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var rows []notificationRow
	if err := s.db.SelectContext(ctx, &rows, query, userID, limit); err != nil {
		return nil, fmt.Errorf("querying notifications for user %d: %w", userID, err)
	}

	notifications := make([]Notification, 0, len(rows))
	for _, r := range rows {
		notifications = append(notifications, r.toNotification())
	}
	return notifications, nil
}

// MarkNotificationRead returns nil when the notification is missing or owned by someone else.
func (s *Storage) MarkNotificationRead(ctx context.Context, id, userID int64) (*Notification, error) {
	query := `UPDATE notifications n
			  SET read = true
			  WHERE n.id = $1 AND n.user_id = $2
			  RETURNING ` + notificationColumns

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var n Notification
	err := s.db.GetContext(ctx, &n, query, id, userID)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, nil
		default:
			return nil, fmt.Errorf("marking notification %d read: %w", id, err)
		}
	}
	return &n, nil
}

func (s *Storage) MarkAllNotificationsRead(ctx context.Context, userID int64) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	result, err := s.db.ExecContext(ctx,
		`UPDATE notifications SET read = true WHERE user_id = $1 AND read = false`, userID)
	if err != nil {
		return 0, fmt.Errorf("marking notifications read for user %d: %w", userID, err)
	}
	return result.RowsAffected()
}

// LatestNotification returns the most recent notification for the (task, type) pair, or nil.
func (s *Storage) LatestNotification(ctx context.Context, taskID int64, typ NotificationType) (*Notification, error) {
	query := `SELECT ` + notificationColumns + `
			  FROM notifications n
			  WHERE n.task_id = $1 AND n.type = $2
			  ORDER BY n.created_at DESC, n.id DESC
			  LIMIT 1`

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var n Notification
	err := s.db.GetContext(ctx, &n, query, taskID, typ)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, nil
		default:
			return nil, fmt.Errorf("querying latest notification for task %d: %w", taskID, err)
		}
	}
	return &n, nil
}

func (s *Storage) ListDueNotifications(ctx context.Context, now time.Time) ([]DueNotification, error) {
	query := `SELECT ` + notificationColumns + `,
			         t.title AS task_title, t.due_date AS task_due_date, t.status AS task_status,
			         u.email AS user_email, u.name AS user_name
			  FROM notifications n
			  JOIN tasks t ON t.id = n.task_id
			  JOIN users u ON u.id = n.user_id
			  WHERE n.scheduled_for <= $1 AND n.sent = false
			  ORDER BY n.scheduled_for, n.id`

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var rows []struct {
		notificationRow
		UserEmail string `db:"user_email"`
		UserName  string `db:"user_name"`
	}
	if err := s.db.SelectContext(ctx, &rows, query, now); err != nil {
		return nil, fmt.Errorf("querying due notifications: %w", err)
	}

	due := make([]DueNotification, 0, len(rows))
	for _, r := range rows {
		due = append(due, DueNotification{
			Notification: r.toNotification(),
			UserEmail:    r.UserEmail,
			UserName:     r.UserName,
		})
	}
	return due, nil
}

func (s *Storage) MarkNotificationSent(ctx context.Context, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `UPDATE notifications SET sent = true WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("marking notification %d sent: %w", id, err)
	}
	return nil
}

// DeleteNotificationsOlderThan hard-deletes notifications created before cutoff.
func (s *Storage) DeleteNotificationsOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	result, err := s.db.ExecContext(ctx, `DELETE FROM notifications WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("deleting notifications older than %s: %w", cutoff.Format(time.RFC3339), err)
	}
	return result.RowsAffected()
}
