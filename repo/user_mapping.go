package repo

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/Skryldev/userstore/models"
)

// ─────────────────────────────────────────────────────────────────────────────
// Column mapping for user_table: the only place that knows column order
// ─────────────────────────────────────────────────────────────────────────────

const userColumns = "id, email, password, created_at, updated_at"

// rowScanner is satisfied by *db.Row and *db.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// userValues returns the column values of u in userColumns order.
func userValues(u *models.User) []any {
	return []any{u.ID, u.Email, u.Password, u.CreatedAt, nullTime(u.UpdatedAt)}
}

// scanUser scans one row selected with userColumns.
func scanUser(row rowScanner) (*models.User, error) {
	u := &models.User{}
	var updatedAt sql.NullTime
	if err := row.Scan(&u.ID, &u.Email, &u.Password, &u.CreatedAt, &updatedAt); err != nil {
		return nil, fmt.Errorf("repo/user: %w", err)
	}
	u.CreatedAt = u.CreatedAt.UTC()
	if updatedAt.Valid {
		t := updatedAt.Time.UTC()
		u.UpdatedAt = &t
	}
	return u, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
