package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/dfelizola/internal-messenger-api/internal/model"
	"github.com/dfelizola/internal-messenger-api/internal/search"
	"github.com/dfelizola/internal-messenger-api/internal/utils"
)

// userColumns is the column list shared by every SELECT so scanUser stays in
// sync with a single definition.
const userColumns = "id,name,email,password_hash,role,active,token_version,created_at,updated_at"

type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

// NewUser carries the attributes for an insert.  The password arrives in
// plaintext and is hashed here.
type NewUser struct {
	Name     string
	Email    string
	Password string
	Role     string
	Active   bool
}

// UserUpdate is a partial update: nil fields are left untouched.  Password,
// when present, is hashed before writing.
type UserUpdate struct {
	Name     *string
	Email    *string
	Password *string
	Role     *string
	Active   *bool
}

// Create inserts a user and returns the stored record.  New accounts start
// with token_version 0 via the column default.
func (r *UserRepo) Create(ctx context.Context, nu NewUser, bcryptCost int) (model.User, error) {
	hash, err := utils.HashPassword(nu.Password, bcryptCost)
	if err != nil {
		return model.User{}, err
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (name, email, password_hash, role, active) VALUES (?,?,?,?,?)",
		nu.Name, utils.NormalizeEmail(nu.Email), hash, nu.Role, nu.Active)
	if err != nil {
		if isDuplicateKey(err) {
			return model.User{}, ErrEmailTaken
		}
		return model.User{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.User{}, err
	}
	return r.GetByID(ctx, uint64(id))
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1",
		utils.NormalizeEmail(email))
	return scanUser(row)
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id)
	return scanUser(row)
}

// Update applies the non-nil fields of upd to the user and returns the
// refreshed record.  An empty update is just a read.
func (r *UserRepo) Update(ctx context.Context, id uint64, upd UserUpdate, bcryptCost int) (model.User, error) {
	sets := []string{}
	args := []any{}
	if upd.Name != nil {
		sets = append(sets, "name=?")
		args = append(args, *upd.Name)
	}
	if upd.Email != nil {
		sets = append(sets, "email=?")
		args = append(args, utils.NormalizeEmail(*upd.Email))
	}
	if upd.Password != nil {
		hash, err := utils.HashPassword(*upd.Password, bcryptCost)
		if err != nil {
			return model.User{}, err
		}
		sets = append(sets, "password_hash=?")
		args = append(args, hash)
	}
	if upd.Role != nil {
		sets = append(sets, "role=?")
		args = append(args, *upd.Role)
	}
	if upd.Active != nil {
		sets = append(sets, "active=?")
		args = append(args, *upd.Active)
	}
	if len(sets) > 0 {
		args = append(args, id)
		_, err := r.DB.ExecContext(ctx,
			"UPDATE users SET "+strings.Join(sets, ", ")+" WHERE id=?", args...)
		if err != nil {
			if isDuplicateKey(err) {
				return model.User{}, ErrEmailTaken
			}
			return model.User{}, err
		}
	}
	return r.GetByID(ctx, id)
}

// SetActive flips the active flag.
func (r *UserRepo) SetActive(ctx context.Context, id uint64, active bool) error {
	res, err := r.DB.ExecContext(ctx, "UPDATE users SET active=? WHERE id=?", active, id)
	if err != nil {
		return err
	}
	return r.requireExisted(ctx, res, id)
}

// Delete removes the user row permanently.
func (r *UserRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM users WHERE id=?", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// BumpTokenVersion atomically increments the user's token version by exactly
// one and returns the new value.  The single UPDATE serializes concurrent
// bumps at the database, so racing revocations never lose an increment.
func (r *UserRepo) BumpTokenVersion(ctx context.Context, id uint64) (uint32, error) {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET token_version = token_version + 1 WHERE id=?", id)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, ErrNotFound
	}
	var version uint32
	err = r.DB.QueryRowContext(ctx,
		"SELECT token_version FROM users WHERE id=?", id).Scan(&version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	return version, nil
}

// CountUsers returns the size of the filtered set, before pagination.
func (r *UserRepo) CountUsers(ctx context.Context, q search.Query) (int64, error) {
	cond, args := q.Where()
	var total int64
	err := r.DB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM users WHERE "+cond, args...).Scan(&total)
	return total, err
}

// FindUsers materializes one page of the filtered, sorted set.
func (r *UserRepo) FindUsers(ctx context.Context, q search.Query, limit, offset int) ([]model.User, error) {
	cond, args := q.Where()
	args = append(args, limit, offset)
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE "+cond+
			" ORDER BY "+q.OrderClause()+" LIMIT ? OFFSET ?", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.User, 0, limit)
	for rows.Next() {
		u, err := scanUserRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func scanUser(row *sql.Row) (model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role,
		&u.Active, &u.TokenVersion, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrNotFound
	}
	return u, err
}

func scanUserRow(rows *sql.Rows) (model.User, error) {
	var u model.User
	err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role,
		&u.Active, &u.TokenVersion, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

// isDuplicateKey detects MySQL error 1062 (duplicate entry on a unique
// index); for this table that can only be the email column.
func isDuplicateKey(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "1062")
}

// requireExisted maps a zero-row UPDATE onto ErrNotFound.  MySQL also
// reports zero affected rows for a no-op write, so re-check existence
// before deciding.
func (r *UserRepo) requireExisted(ctx context.Context, res sql.Result, id uint64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	_, err = r.GetByID(ctx, id)
	return err
}
