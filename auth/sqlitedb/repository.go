// Package sqlitedb stores accounts in an embedded SQLite database.
package sqlitedb

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/samber/oops"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/jimiolaniyan/authcore/auth"
)

// Open opens the database at path. A single connection is kept so that
// in-memory databases are shared by every query.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, oops.Code("SQLITE_OPEN_FAILED").With("path", path).Wrap(err)
	}
	db.SetMaxOpenConns(1)
	if err = db.Ping(); err != nil {
		_ = db.Close()
		return nil, oops.Code("SQLITE_OPEN_FAILED").With("path", path).Wrap(err)
	}
	return db, nil
}

// Migrate creates the accounts table and its local-scope unique indexes.
func Migrate(ctx context.Context, db *sql.DB) error {
	const stmt = `
	CREATE TABLE IF NOT EXISTS accounts (
		id TEXT NOT NULL PRIMARY KEY,
		email TEXT NOT NULL,
		username TEXT NOT NULL,
		password_hash TEXT NOT NULL DEFAULT '',
		name TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL DEFAULT 'user' CHECK (role IN ('admin', 'user')),
		account_type TEXT NOT NULL DEFAULT 'local' CHECK (account_type IN ('google', 'local')),
		account_status TEXT NOT NULL DEFAULT 'active' CHECK (account_status IN ('active', 'inactive')),
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS uniq_local_email ON accounts(email) WHERE account_type = 'local';
	CREATE UNIQUE INDEX IF NOT EXISTS uniq_local_username ON accounts(username) WHERE account_type = 'local';
	`
	if _, err := db.ExecContext(ctx, stmt); err != nil {
		return oops.Code("SQLITE_MIGRATE_FAILED").Wrap(err)
	}
	return nil
}

type accountRepository struct {
	db *sql.DB
}

func NewAccountRepository(db *sql.DB) auth.Directory {
	return &accountRepository{db: db}
}

const selectAccount = `
	SELECT id, email, username, password_hash, name, role, account_type, account_status, created_at, updated_at
	FROM accounts`

func (r *accountRepository) FindLocalByEmail(ctx context.Context, email string) (*auth.Account, error) {
	row := r.db.QueryRowContext(ctx, selectAccount+` WHERE email = ? AND account_type = 'local'`, email)
	return scanAccount(row, "email", email)
}

func (r *accountRepository) FindLocalByUsername(ctx context.Context, username string) (*auth.Account, error) {
	row := r.db.QueryRowContext(ctx, selectAccount+` WHERE username = ? AND account_type = 'local'`, username)
	return scanAccount(row, "username", username)
}

func (r *accountRepository) ExistsLocalByEmailOrUsername(ctx context.Context, email, username string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM accounts
			WHERE account_type = 'local' AND (email = ? OR username = ?)
		)`, email, username).Scan(&exists)
	if err != nil {
		return false, oops.Code("ACCOUNT_EXISTS_FAILED").With("email", email).With("username", username).Wrap(err)
	}
	return exists, nil
}

func (r *accountRepository) Create(ctx context.Context, acc *auth.Account) (*auth.Account, error) {
	if acc.ID == "" {
		acc.ID = auth.NewID()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO accounts (id, email, username, password_hash, name, role, account_type, account_status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(acc.ID),
		acc.Credentials.Email,
		acc.Credentials.Username,
		acc.Credentials.PasswordHash,
		acc.Name,
		string(acc.Role),
		string(acc.Origin),
		string(acc.Status),
		acc.CreatedAt.UnixNano(),
		acc.UpdatedAt.UnixNano(),
	)
	if isUniqueViolation(err) {
		return nil, auth.ErrDuplicateKey
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_CREATE_FAILED").With("username", acc.Credentials.Username).Wrap(err)
	}

	saved := *acc
	return &saved, nil
}

func scanAccount(row *sql.Row, key, val string) (*auth.Account, error) {
	var (
		acc                  auth.Account
		id, role, typ, st    string
		createdAt, updatedAt int64
	)
	err := row.Scan(&id, &acc.Credentials.Email, &acc.Credentials.Username, &acc.Credentials.PasswordHash,
		&acc.Name, &role, &typ, &st, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_FIND_FAILED").With(key, val).Wrap(err)
	}

	acc.ID = auth.ID(id)
	acc.Role = auth.Role(role)
	acc.Origin = auth.Origin(typ)
	acc.Status = auth.Status(st)
	acc.CreatedAt = time.Unix(0, createdAt).UTC()
	acc.UpdatedAt = time.Unix(0, updatedAt).UTC()
	return &acc, nil
}

func isUniqueViolation(err error) bool {
	var serr *sqlite.Error
	if !errors.As(err, &serr) {
		return false
	}
	return serr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE || serr.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}
