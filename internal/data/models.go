package data

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/harlequingg/taskmanager-api/internal/validator"
)

var (
	ErrDuplicateEmail = errors.New("duplicate email")
	ErrEditConflict   = errors.New("edit conflict")
)

// ValidationError reports field-level problems with a record.
type ValidationError struct {
	Errors map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Errors))
	for k := range e.Errors {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Errors[k]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

type User struct {
	ID                  int64      `db:"id" json:"id"`
	CreatedAt           time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time  `db:"updated_at" json:"updated_at"`
	Name                string     `db:"name" json:"name"`
	Email               string     `db:"email" json:"email"`
	PasswordHash        []byte     `db:"password_hash" json:"-"`
	IsAdmin             bool       `db:"is_admin" json:"is_admin"`
	ResetPasswordToken  *string    `db:"reset_password_token" json:"-"`
	ResetPasswordExpire *time.Time `db:"reset_password_expire" json:"-"`
	Version             int        `db:"version" json:"-"`
}

func (u *User) SetPassword(plaintext string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) PasswordMatches(plaintext string) (bool, error) {
	err := bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(plaintext))
	if err != nil {
		switch {
		case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
			return false, nil
		default:
			return false, err
		}
	}
	return true, nil
}

// SetPasswordReset stores the hashed reset token and its expiry together.
func (u *User) SetPasswordReset(tokenHash string, expiresAt time.Time) {
	u.ResetPasswordToken = &tokenHash
	u.ResetPasswordExpire = &expiresAt
}

func (u *User) ClearPasswordReset() {
	u.ResetPasswordToken = nil
	u.ResetPasswordExpire = nil
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func ValidateUser(v *validator.Validator, u *User) {
	v.Check(validator.NotBlank(u.Name), "name", "must be provided")
	v.Check(validator.MaxChars(u.Name, 255), "name", "must be at most 255 characters")
	v.CheckEmail(u.Email)
}

type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in-progress"
	TaskStatusCompleted  TaskStatus = "completed"
)

var TaskStatuses = []TaskStatus{TaskStatusPending, TaskStatusInProgress, TaskStatusCompleted}

type TaskPriority string

const (
	TaskPriorityLow    TaskPriority = "low"
	TaskPriorityMedium TaskPriority = "medium"
	TaskPriorityHigh   TaskPriority = "high"
)

var TaskPriorities = []TaskPriority{TaskPriorityLow, TaskPriorityMedium, TaskPriorityHigh}

type Task struct {
	ID          int64        `db:"id" json:"id"`
	CreatedAt   time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time    `db:"updated_at" json:"updated_at"`
	UserID      int64        `db:"user_id" json:"user_id"`
	Title       string       `db:"title" json:"title"`
	Description string       `db:"description" json:"description"`
	DueDate     *time.Time   `db:"due_date" json:"due_date"`
	Status      TaskStatus   `db:"status" json:"status"`
	Priority    TaskPriority `db:"priority" json:"priority"`
	Version     int          `db:"version" json:"version"`
}

func ValidateTask(v *validator.Validator, t *Task) {
	v.Check(validator.NotBlank(t.Title), "title", "must be provided")
	v.Check(validator.MaxChars(t.Title, 100), "title", "must be at most 100 characters")
	v.Check(validator.MaxChars(t.Description, 500), "description", "must be at most 500 characters")
	v.Check(validator.PermittedValue(t.Status, TaskStatuses...), "status", "must be one of pending, in-progress, completed")
	v.Check(validator.PermittedValue(t.Priority, TaskPriorities...), "priority", "must be one of low, medium, high")
	if t.DueDate != nil {
		v.Check(!t.DueDate.IsZero(), "due_date", "must be a valid timestamp")
	}
}

type TaskStats struct {
	Total      int `db:"total" json:"total"`
	Pending    int `db:"pending" json:"pending"`
	InProgress int `db:"in_progress" json:"inProgress"`
	Completed  int `db:"completed" json:"completed"`
}

type NotificationType string

const (
	NotificationDueSoon   NotificationType = "due_soon"
	NotificationOverdue   NotificationType = "overdue"
	NotificationCompleted NotificationType = "completed"
	NotificationUpdated   NotificationType = "updated"
)

var NotificationTypes = []NotificationType{
	NotificationDueSoon,
	NotificationOverdue,
	NotificationCompleted,
	NotificationUpdated,
}

type NotificationPriority string

const (
	NotificationPriorityLow    NotificationPriority = "low"
	NotificationPriorityNormal NotificationPriority = "normal"
	NotificationPriorityHigh   NotificationPriority = "high"
)

var NotificationPriorities = []NotificationPriority{
	NotificationPriorityLow,
	NotificationPriorityNormal,
	NotificationPriorityHigh,
}

// TaskSummary is the read-only projection of a task attached to a notification.
type TaskSummary struct {
	Title   string     `json:"title"`
	DueDate *time.Time `json:"due_date"`
	Status  TaskStatus `json:"status"`
}

// Notification content is fixed at creation; only Read and Sent change later.
type Notification struct {
	ID           int64                `db:"id" json:"id"`
	CreatedAt    time.Time            `db:"created_at" json:"created_at"`
	UserID       int64                `db:"user_id" json:"user_id"`
	TaskID       int64                `db:"task_id" json:"task_id"`
	Type         NotificationType     `db:"type" json:"type"`
	Title        string               `db:"title" json:"title"`
	Message      string               `db:"message" json:"message"`
	Priority     NotificationPriority `db:"priority" json:"priority"`
	Read         bool                 `db:"read" json:"read"`
	ScheduledFor time.Time            `db:"scheduled_for" json:"scheduled_for"`
	Sent         bool                 `db:"sent" json:"sent"`
	Task         *TaskSummary         `db:"-" json:"task,omitempty"`
}

// DueNotification is a notification ready for delivery, joined with its recipient.
type DueNotification struct {
	Notification
	UserEmail string
	UserName  string
}

func ValidateNotification(v *validator.Validator, n *Notification) {
	v.Check(n.UserID > 0, "user", "must be provided")
	v.Check(n.TaskID > 0, "task", "must be provided")
	v.Check(validator.NotBlank(n.Title), "title", "must be provided")
	v.Check(validator.NotBlank(n.Message), "message", "must be provided")
	v.Check(!n.ScheduledFor.IsZero(), "scheduled_for", "must be provided")
	v.Check(validator.PermittedValue(n.Type, NotificationTypes...), "type", "must be one of due_soon, overdue, completed, updated")
	v.Check(validator.PermittedValue(n.Priority, NotificationPriorities...), "priority", "must be one of low, normal, high")
}
