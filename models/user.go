package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents a row in "user_table".
// Fields map 1-to-1 with columns; no automatic relation loading.
type User struct {
	ID        uuid.UUID  `json:"id"`
	Email     string     `json:"email"`
	Password  string     `json:"password"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at"`
}

// UserMessage is the caller-facing payload for create and update. It carries
// no identity and no timestamps, so callers cannot mass-assign either.
type UserMessage struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// timestampPrecision is the finest resolution every supported store keeps
// (Postgres TIMESTAMP, MySQL DATETIME(6)). Timestamps are cut to it before
// they are compared or written.
const timestampPrecision = time.Microsecond

// NewUser builds a fresh record from msg: a random id, CreatedAt set to now in
// UTC, and no UpdatedAt. This is the only place ID and CreatedAt are assigned.
func NewUser(msg UserMessage) *User {
	return &User{
		ID:        uuid.New(),
		Email:     msg.Email,
		Password:  msg.Password,
		CreatedAt: time.Now().UTC().Truncate(timestampPrecision),
	}
}

// Merge copies the mutable fields of msg into u and stamps UpdatedAt with now.
// ID and CreatedAt are left alone. UpdatedAt always lands strictly after
// CreatedAt, even if the wall clock stepped backwards.
func (u *User) Merge(msg UserMessage, now time.Time) {
	u.Email = msg.Email
	u.Password = msg.Password
	created := u.CreatedAt.Truncate(timestampPrecision)
	t := now.UTC().Truncate(timestampPrecision)
	if !t.After(created) {
		t = created.Add(timestampPrecision)
	}
	u.UpdatedAt = &t
}
