package main

import (
	"context"
	"time"

	"github.com/harlequingg/taskmanager-api/internal/data"
)

type userStore interface {
	GetUserByEmail(ctx context.Context, email string) (*data.User, error)
	GetUserByID(ctx context.Context, id int64) (*data.User, error)
	GetUserByResetToken(ctx context.Context, tokenHash string, now time.Time) (*data.User, error)
	InsertUser(ctx context.Context, u *data.User) error
	UpdateUser(ctx context.Context, u *data.User) error
}

type taskStore interface {
	InsertTask(ctx context.Context, t *data.Task) error
	GetTaskForUser(ctx context.Context, id, userID int64) (*data.Task, error)
	ListTasksForUser(ctx context.Context, userID int64, filter data.TaskFilter) ([]data.Task, error)
	UpdateTask(ctx context.Context, t *data.Task) error
	DeleteTaskForUser(ctx context.Context, id, userID int64) (bool, error)
	TaskStatsForUser(ctx context.Context, userID int64) (data.TaskStats, error)
}

type notificationStore interface {
	ListNotificationsForUser(ctx context.Context, userID int64, limit int) ([]data.Notification, error)
	MarkNotificationRead(ctx context.Context, id, userID int64) (*data.Notification, error)
	MarkAllNotificationsRead(ctx context.Context, userID int64) (int64, error)
}

// storage is what the handlers need from the database; *data.Storage satisfies it.
type storage interface {
	userStore
	taskStore
	notificationStore
}

var _ storage = (*data.Storage)(nil)
