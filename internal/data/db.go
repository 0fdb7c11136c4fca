package data

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

const queryTimeout = 5 * time.Second

type Config struct {
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
	MaxIdleTime  time.Duration
}

// Open connects to Postgres, verifies the connection and applies pending migrations.
func Open(cfg Config) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxIdleTime(cfg.MaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	if err := Migrate(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return db, nil
}

// Storage is the Postgres-backed persistence layer for users, tasks and notifications.
type Storage struct {
	db            *sqlx.DB
	retainPerUser int
}

// DefaultRetainPerUser is how many notifications are kept per user after each insert.
const DefaultRetainPerUser = 10

func NewStorage(db *sqlx.DB, retainPerUser int) *Storage {
	if retainPerUser <= 0 {
		retainPerUser = DefaultRetainPerUser
	}
	return &Storage{
		db:            db,
		retainPerUser: retainPerUser,
	}
}
