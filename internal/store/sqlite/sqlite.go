// Package sqlite implements the storage collaborator on modernc.org/sqlite.
// The schema is created on open; timestamps are stored as unix nanoseconds.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"postline.dev/internal/auth"
	"postline.dev/internal/posts"
)

var (
	_ auth.UserStore = (*UserStore)(nil)
	_ posts.Store    = (*PostStore)(nil)
)

const schema = `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		first_name TEXT NOT NULL DEFAULT '',
		last_name TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS posts (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		title TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_posts_created_at ON posts(created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_posts_user_id ON posts(user_id);
`

// Store is the SQLite storage collaborator.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open creates or opens the database at path and ensures the schema exists.
// Parent directories are created if needed.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	dsn := path + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	if strings.Contains(path, "?") {
		dsn = path
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Close() error                   { return s.db.Close() }
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *Store) Users() *UserStore { return &UserStore{s: s} }
func (s *Store) Posts() *PostStore { return &PostStore{s: s} }

func (s *Store) timestamp() int64 { return s.now().UTC().UnixNano() }

func fromUnix(ns int64) time.Time { return time.Unix(0, ns).UTC() }

// UserStore is the auth.UserStore view of Store.
type UserStore struct{ s *Store }

func (u *UserStore) Create(ctx context.Context, user *auth.User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	ts := u.s.timestamp()
	_, err := u.s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash, first_name, last_name, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		user.ID.String(), user.Email, user.PasswordHash, user.FirstName, user.LastName, ts, ts,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return auth.ErrConflict
		}
		return fmt.Errorf("inserting user: %w", err)
	}
	user.CreatedAt, user.UpdatedAt = fromUnix(ts), fromUnix(ts)
	return nil
}

const userColumns = `id, email, password_hash, first_name, last_name, created_at, updated_at`

func (u *UserStore) Find(ctx context.Context, id uuid.UUID) (*auth.User, error) {
	return scanUser(u.s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id.String()))
}

func (u *UserStore) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	return scanUser(u.s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email))
}

// Delete removes a user; their posts go with them.
func (u *UserStore) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := u.s.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("deleting user: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return auth.ErrNotFound
	}
	return nil
}

func scanUser(row *sql.Row) (*auth.User, error) {
	var (
		u                auth.User
		id               string
		created, updated int64
	)
	if err := row.Scan(&id, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, auth.ErrNotFound
		}
		return nil, fmt.Errorf("scanning user: %w", err)
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("parsing user id %q: %w", id, err)
	}
	u.ID = parsed
	u.CreatedAt, u.UpdatedAt = fromUnix(created), fromUnix(updated)
	return &u, nil
}

// PostStore is the posts.Store view of Store.
type PostStore struct{ s *Store }

const postWithAuthorQuery = `
	SELECT p.id, p.user_id, p.title, p.content, p.created_at, p.updated_at,
	       u.email, u.first_name, u.last_name, u.created_at, u.updated_at
	FROM posts p
	JOIN users u ON p.user_id = u.id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPostWithAuthor(row rowScanner) (posts.PostWithAuthor, error) {
	var (
		p                                  posts.PostWithAuthor
		author                             auth.UserSummary
		id, userID                         string
		created, updated, uCreated, uUpdtd int64
	)
	if err := row.Scan(&id, &userID, &p.Title, &p.Content, &created, &updated,
		&author.Email, &author.FirstName, &author.LastName, &uCreated, &uUpdtd); err != nil {
		return posts.PostWithAuthor{}, err
	}
	var err error
	if p.ID, err = uuid.Parse(id); err != nil {
		return posts.PostWithAuthor{}, fmt.Errorf("parsing post id %q: %w", id, err)
	}
	if p.UserID, err = uuid.Parse(userID); err != nil {
		return posts.PostWithAuthor{}, fmt.Errorf("parsing owner id %q: %w", userID, err)
	}
	p.CreatedAt, p.UpdatedAt = fromUnix(created), fromUnix(updated)
	author.ID = p.UserID
	author.CreatedAt, author.UpdatedAt = fromUnix(uCreated), fromUnix(uUpdtd)
	p.Author = &author
	return p, nil
}

func (ps *PostStore) List(ctx context.Context) ([]posts.PostWithAuthor, error) {
	rows, err := ps.s.db.QueryContext(ctx, postWithAuthorQuery+` ORDER BY p.created_at DESC, p.id DESC`)
	if err != nil {
		return nil, fmt.Errorf("querying posts: %w", err)
	}
	defer rows.Close()

	var res []posts.PostWithAuthor
	for rows.Next() {
		p, err := scanPostWithAuthor(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning post: %w", err)
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

func (ps *PostStore) Find(ctx context.Context, id uuid.UUID) (posts.PostWithAuthor, error) {
	p, err := scanPostWithAuthor(ps.s.db.QueryRowContext(ctx, postWithAuthorQuery+` WHERE p.id = ?`, id.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return posts.PostWithAuthor{}, posts.ErrNotFound
		}
		return posts.PostWithAuthor{}, err
	}
	return p, nil
}

func (ps *PostStore) Create(ctx context.Context, p *posts.Post) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	ts := ps.s.timestamp()
	_, err := ps.s.db.ExecContext(ctx,
		`INSERT INTO posts (id, user_id, title, content, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID.String(), p.UserID.String(), p.Title, p.Content, ts, ts,
	)
	if err != nil {
		return fmt.Errorf("inserting post: %w", err)
	}
	p.CreatedAt, p.UpdatedAt = fromUnix(ts), fromUnix(ts)
	return nil
}

func (ps *PostStore) Update(ctx context.Context, id uuid.UUID, patch posts.Patch) (posts.Post, error) {
	var (
		p                posts.Post
		pid, userID      string
		created, updated int64
	)
	err := ps.s.db.QueryRowContext(ctx,
		`UPDATE posts
		 SET title = COALESCE(?, title), content = COALESCE(?, content), updated_at = ?
		 WHERE id = ?
		 RETURNING id, user_id, title, content, created_at, updated_at`,
		nullString(patch.Title), nullString(patch.Content), ps.s.timestamp(), id.String(),
	).Scan(&pid, &userID, &p.Title, &p.Content, &created, &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return posts.Post{}, posts.ErrNotFound
		}
		return posts.Post{}, fmt.Errorf("updating post: %w", err)
	}
	if p.ID, err = uuid.Parse(pid); err != nil {
		return posts.Post{}, fmt.Errorf("parsing post id %q: %w", pid, err)
	}
	if p.UserID, err = uuid.Parse(userID); err != nil {
		return posts.Post{}, fmt.Errorf("parsing owner id %q: %w", userID, err)
	}
	p.CreatedAt, p.UpdatedAt = fromUnix(created), fromUnix(updated)
	return p, nil
}

func (ps *PostStore) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := ps.s.db.ExecContext(ctx, `DELETE FROM posts WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("deleting post: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting post: %w", err)
	}
	if n == 0 {
		return posts.ErrNotFound
	}
	return nil
}

func (ps *PostStore) OwnerOf(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	var owner string
	if err := ps.s.db.QueryRowContext(ctx, `SELECT user_id FROM posts WHERE id = ?`, id.String()).Scan(&owner); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return uuid.Nil, posts.ErrNotFound
		}
		return uuid.Nil, fmt.Errorf("querying post owner: %w", err)
	}
	return uuid.Parse(owner)
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	return errors.As(err, &se) && se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
}
