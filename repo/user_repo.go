package repo

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Skryldev/userstore/apperr"
	"github.com/Skryldev/userstore/db"
	"github.com/Skryldev/userstore/models"
)

// ─────────────────────────────────────────────────────────────────────────────
// UserRepository interface: for mocking in tests
// ─────────────────────────────────────────────────────────────────────────────

// UserRepository is the CRUD contract over user_table. Every error it returns
// is an *apperr.Error.
type UserRepository interface {
	FindAll(ctx context.Context) ([]*models.User, error)
	Find(ctx context.Context, id uuid.UUID) (*models.User, error)
	Create(ctx context.Context, msg models.UserMessage) (*models.User, error)
	Update(ctx context.Context, id uuid.UUID, msg models.UserMessage) (*models.User, error)
	Delete(ctx context.Context, id uuid.UUID) (int64, error)
}

// Store is the connection provider a repository needs: plain statements plus
// transactions. *db.DB satisfies it.
type Store interface {
	db.Querier
	ExecTx(ctx context.Context, fn func(*db.Tx) error, opts ...db.TxOptions) error
}

// ─────────────────────────────────────────────────────────────────────────────
// userRepo: concrete implementation
// ─────────────────────────────────────────────────────────────────────────────

type userRepo struct {
	store Store
	now   func() time.Time
}

// NewUserRepo returns a UserRepository backed by store.
func NewUserRepo(store Store) UserRepository {
	return &userRepo{store: store, now: time.Now}
}

const (
	sqlInsertUser = `
		INSERT INTO user_table (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5)`

	sqlGetUserByID = `
		SELECT ` + userColumns + `
		FROM   user_table
		WHERE  id = $1`

	sqlListUsers = `
		SELECT ` + userColumns + `
		FROM   user_table`

	sqlUpdateUser = `
		UPDATE user_table
		SET    email = $1, password = $2, updated_at = $3
		WHERE  id = $4`

	sqlDeleteUser = `
		DELETE FROM user_table WHERE id = $1`
)

// FindAll returns every row in the storage engine's natural order.
func (r *userRepo) FindAll(ctx context.Context) ([]*models.User, error) {
	rows, err := r.store.Query(ctx, sqlListUsers)
	if err != nil {
		return nil, apperr.From(err)
	}
	defer rows.Close()

	users := make([]*models.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, apperr.From(err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.From(err)
	}
	return users, nil
}

// Find returns the user with the given id, or a NotFound error.
func (r *userRepo) Find(ctx context.Context, id uuid.UUID) (*models.User, error) {
	u, err := findUser(ctx, r.store, id, false)
	if err != nil {
		return nil, apperr.From(err)
	}
	return u, nil
}

// Create inserts a new user built from msg and returns the row as the
// database stored it.
func (r *userRepo) Create(ctx context.Context, msg models.UserMessage) (*models.User, error) {
	u := models.NewUser(msg)

	var created *models.User
	err := r.store.ExecTx(ctx, func(tx *db.Tx) error {
		if _, err := tx.Exec(ctx, sqlInsertUser, userValues(u)...); err != nil {
			return err
		}
		var err error
		created, err = findUser(ctx, tx, u.ID, false)
		return err
	})
	if err != nil {
		return nil, apperr.From(err)
	}
	return created, nil
}

// Update loads the row, merges msg into it, stamps UpdatedAt and writes it
// back, all in one transaction. The read holds a row lock where the dialect
// has one, so concurrent updates of the same id do not overwrite each other.
func (r *userRepo) Update(ctx context.Context, id uuid.UUID, msg models.UserMessage) (*models.User, error) {
	var updated *models.User
	err := r.store.ExecTx(ctx, func(tx *db.Tx) error {
		u, err := findUser(ctx, tx, id, true)
		if err != nil {
			return err
		}

		u.Merge(msg, r.now())

		if _, err := tx.Exec(ctx, sqlUpdateUser, u.Email, u.Password, nullTime(u.UpdatedAt), u.ID); err != nil {
			return err
		}
		updated, err = findUser(ctx, tx, id, false)
		return err
	})
	if err != nil {
		return nil, apperr.From(err)
	}
	return updated, nil
}

// Delete removes the user and reports how many rows went away. An unknown id
// is not an error; it yields 0.
func (r *userRepo) Delete(ctx context.Context, id uuid.UUID) (int64, error) {
	res, err := r.store.Exec(ctx, sqlDeleteUser, id)
	if err != nil {
		return 0, apperr.From(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, apperr.From(err)
	}
	return n, nil
}

func findUser(ctx context.Context, q db.Querier, id uuid.UUID, lock bool) (*models.User, error) {
	query := sqlGetUserByID
	if lock {
		query += q.Driver().LockClause()
	}
	return scanUser(q.QueryRow(ctx, query, id))
}

var _ UserRepository = (*userRepo)(nil)
