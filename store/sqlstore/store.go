package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	logging "github.com/ipfs/go-log/v2"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/MrEthical07/authcore/password"
)

var log = logging.Logger("authcore/sqlstore")

var (
	// ErrDuplicateEmail is returned by CreateUser when the email is taken.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrUserNotFound is returned by writes that target a missing user.
	ErrUserNotFound = errors.New("user not found")
)

// Dialect selects the driver and placeholder style.
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

func (d Dialect) driverName() string { return string(d) }

// rebind rewrites "?" placeholders into the dialect's form.
func (d Dialect) rebind(query string) string {
	if d != Postgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// ParseDialect maps a configuration string to a Dialect.
func ParseDialect(s string) (Dialect, error) {
	switch Dialect(strings.ToLower(s)) {
	case Postgres:
		return Postgres, nil
	case SQLite:
		return SQLite, nil
	default:
		return "", fmt.Errorf("sqlstore: unknown dialect %q", s)
	}
}

const schema = `CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	email TEXT NOT NULL UNIQUE,
	password_hash TEXT,
	created_at BIGINT NOT NULL
)`

// Store is a database/sql user store.
type Store struct {
	db      *sql.DB
	dialect Dialect
}

// Open opens dsn with the dialect's driver.
func Open(dialect Dialect, dsn string) (*Store, error) {
	db, err := sql.Open(dialect.driverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open: %w", err)
	}
	if dialect == SQLite {
		// One connection so ":memory:" databases are shared.
		db.SetMaxOpenConns(1)
	}
	return New(db, dialect), nil
}

// New wraps an existing handle.
func New(db *sql.DB, dialect Dialect) *Store {
	return &Store{db: db, dialect: dialect}
}

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Close() error { return s.db.Close() }

// Migrate creates the users table if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("sqlstore: migrate: %w", err)
	}
	return nil
}

// NormalizeEmail is the form emails are stored and looked up in.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CreateUser inserts a user. A nil hash creates a user without a password
// credential.
func (s *Store) CreateUser(ctx context.Context, email string, hashed *password.Hashed) (*User, error) {
	u := &User{
		ID:           uuid.NewString(),
		EmailAddress: NormalizeEmail(email),
		CreatedAt:    time.Now().UTC().Truncate(time.Second),
	}
	var hashArg any
	if hashed != nil && !hashed.IsZero() {
		u.PasswordHash = sql.Null[password.Hashed]{V: *hashed, Valid: true}
		hashArg = hashed.Encoded()
	}

	_, err := s.db.ExecContext(ctx,
		s.dialect.rebind(`INSERT INTO users (id, email, password_hash, created_at) VALUES (?, ?, ?, ?)`),
		u.ID, u.EmailAddress, hashArg, u.CreatedAt.Unix(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("sqlstore: create user: %w", err)
	}
	log.Debugw("created user", "user", u.ID)
	return u, nil
}

// LoadUser returns the user with id.
func (s *Store) LoadUser(ctx context.Context, id string) (*User, bool, error) {
	return s.loadOne(ctx, `SELECT id, email, password_hash, created_at FROM users WHERE id = ?`, id)
}

// LoadUserByEmail returns the user with the normalized email.
func (s *Store) LoadUserByEmail(ctx context.Context, email string) (*User, bool, error) {
	return s.loadOne(ctx, `SELECT id, email, password_hash, created_at FROM users WHERE email = ?`, NormalizeEmail(email))
}

func (s *Store) loadOne(ctx context.Context, query string, arg string) (*User, bool, error) {
	var (
		u       User
		created int64
	)
	err := s.db.QueryRowContext(ctx, s.dialect.rebind(query), arg).
		Scan(&u.ID, &u.EmailAddress, &u.PasswordHash, &created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("sqlstore: load user: %w", err)
	}
	u.CreatedAt = time.Unix(created, 0).UTC()
	return &u, true, nil
}

// UpdateUserPassword replaces the stored hash.
func (s *Store) UpdateUserPassword(ctx context.Context, id string, hashed password.Hashed) error {
	res, err := s.db.ExecContext(ctx,
		s.dialect.rebind(`UPDATE users SET password_hash = ? WHERE id = ?`),
		hashed.Encoded(), id,
	)
	if err != nil {
		return fmt.Errorf("sqlstore: update password: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlstore: update password: %w", err)
	}
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE ||
			liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return false
}
