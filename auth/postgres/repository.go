// Package postgres stores accounts in PostgreSQL.
package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"

	"github.com/jimiolaniyan/authcore/auth"
)

// Schema creates the accounts table with unique email and username among local accounts.
const Schema = `
CREATE TABLE IF NOT EXISTS accounts (
	id             TEXT PRIMARY KEY,
	email          TEXT NOT NULL,
	username       TEXT NOT NULL,
	password_hash  TEXT NOT NULL DEFAULT '',
	name           TEXT NOT NULL DEFAULT '',
	role           TEXT NOT NULL DEFAULT 'user' CHECK (role IN ('admin', 'user')),
	account_type   TEXT NOT NULL DEFAULT 'local' CHECK (account_type IN ('google', 'local')),
	account_status TEXT NOT NULL DEFAULT 'active' CHECK (account_status IN ('active', 'inactive')),
	created_at     TIMESTAMPTZ NOT NULL,
	updated_at     TIMESTAMPTZ NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS uniq_local_email ON accounts (email) WHERE account_type = 'local';
CREATE UNIQUE INDEX IF NOT EXISTS uniq_local_username ON accounts (username) WHERE account_type = 'local';
`

// Pool is the subset of *pgxpool.Pool the repository needs.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Migrate applies Schema.
func Migrate(ctx context.Context, pool Pool) error {
	if _, err := pool.Exec(ctx, Schema); err != nil {
		return oops.Code("POSTGRES_MIGRATE_FAILED").Wrap(err)
	}
	return nil
}

// AccountRepository implements auth.Directory using PostgreSQL.
type AccountRepository struct {
	pool Pool
}

func NewAccountRepository(pool Pool) *AccountRepository {
	return &AccountRepository{pool: pool}
}

const selectAccount = `SELECT id, email, username, password_hash, name, role, account_type, account_status, created_at, updated_at FROM accounts`

// FindLocalByEmail retrieves a local account by email.
func (r *AccountRepository) FindLocalByEmail(ctx context.Context, email string) (*auth.Account, error) {
	row := r.pool.QueryRow(ctx, selectAccount+` WHERE email = $1 AND account_type = 'local'`, email)
	return scanAccount(row, "email", email)
}

// FindLocalByUsername retrieves a local account by username.
func (r *AccountRepository) FindLocalByUsername(ctx context.Context, username string) (*auth.Account, error) {
	row := r.pool.QueryRow(ctx, selectAccount+` WHERE username = $1 AND account_type = 'local'`, username)
	return scanAccount(row, "username", username)
}

// ExistsLocalByEmailOrUsername reports whether a local account holds either identifier.
func (r *AccountRepository) ExistsLocalByEmailOrUsername(ctx context.Context, email, username string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM accounts WHERE account_type = 'local' AND (email = $1 OR username = $2))`,
		email, username,
	).Scan(&exists)
	if err != nil {
		return false, oops.Code("ACCOUNT_EXISTS_FAILED").
			With("operation", "check account exists").
			With("email", email).
			With("username", username).
			Wrap(err)
	}
	return exists, nil
}

// Create inserts the account. A unique index violation becomes auth.ErrDuplicateKey.
func (r *AccountRepository) Create(ctx context.Context, acc *auth.Account) (*auth.Account, error) {
	if acc.ID == "" {
		acc.ID = auth.NewID()
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO accounts (id, email, username, password_hash, name, role, account_type, account_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		string(acc.ID),
		acc.Credentials.Email,
		acc.Credentials.Username,
		acc.Credentials.PasswordHash,
		acc.Name,
		string(acc.Role),
		string(acc.Origin),
		string(acc.Status),
		acc.CreatedAt,
		acc.UpdatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		return nil, auth.ErrDuplicateKey
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_CREATE_FAILED").
			With("operation", "insert account").
			With("username", acc.Credentials.Username).
			Wrap(err)
	}

	saved := *acc
	return &saved, nil
}

func scanAccount(row pgx.Row, key, val string) (*auth.Account, error) {
	var (
		acc               auth.Account
		id, role, typ, st string
	)
	err := row.Scan(&id, &acc.Credentials.Email, &acc.Credentials.Username, &acc.Credentials.PasswordHash,
		&acc.Name, &role, &typ, &st, &acc.CreatedAt, &acc.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_FIND_FAILED").
			With("operation", "get account by "+key).
			With(key, val).
			Wrap(err)
	}

	acc.ID = auth.ID(id)
	acc.Role = auth.Role(role)
	acc.Origin = auth.Origin(typ)
	acc.Status = auth.Status(st)
	return &acc, nil
}
