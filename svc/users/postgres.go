package users

import (
	"context"
	"embed"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/dmitrymomot/courier/pkg/notification"
	"github.com/dmitrymomot/courier/pkg/pg"
)

// Migrations holds the goose migrations for the profile replica table.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// MigrationsDir is the directory inside Migrations.
const MigrationsDir = "migrations"

const lookupQuery = `
SELECT id, email, name, push_tokens, email_enabled, push_enabled
FROM notification_users
WHERE id = $1`

// Querier is the subset of *pgxpool.Pool used by PostgresDirectory.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresDirectory reads profiles from the notification_users table.
type PostgresDirectory struct {
	db Querier
}

// NewPostgresDirectory creates a directory over db.
func NewPostgresDirectory(db Querier) *PostgresDirectory {
	return &PostgresDirectory{db: db}
}

func (d *PostgresDirectory) Lookup(ctx context.Context, userID string) (Profile, error) {
	var (
		p                         Profile
		email, name               *string
		emailEnabled, pushEnabled bool
	)
	err := d.db.QueryRow(ctx, lookupQuery, userID).
		Scan(&p.ID, &email, &name, &p.PushTokens, &emailEnabled, &pushEnabled)
	if pg.IsNotFoundError(err) {
		return Profile{}, ErrUserNotFound
	}
	if err != nil {
		return Profile{}, errors.Join(ErrLookupFailed, err)
	}

	if email != nil {
		p.Email = *email
	}
	if name != nil {
		p.Name = *name
	}
	p.Preferences = map[notification.Channel]bool{
		notification.ChannelEmail: emailEnabled,
		notification.ChannelPush:  pushEnabled,
	}
	return p, nil
}
