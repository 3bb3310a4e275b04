package repository

import (
	"context"
	"database/sql"
	"time"

	"pitfan"
)

// Authorization persists operator accounts.
type Authorization interface {
	Create(username, hash string) (int, error)
	GetByUsername(username string) (*pitfan.User, error)
}

// EventRepo is the append-only telemetry journal. It records observability
// events only; control state itself is never persisted and resets on
// restart.
type EventRepo interface {
	Append(ctx context.Context, e pitfan.Event) error
	List(ctx context.Context, from, to time.Time, typ string) ([]pitfan.Event, error)
}

// Repository aggregates the storage backends.
type Repository struct {
	Events EventRepo
	Auth   Authorization
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		Events: NewEventSQLite(db),
		Auth:   NewUserRepository(db),
	}
}
