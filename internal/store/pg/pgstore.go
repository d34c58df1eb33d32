package pg

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"io/fs"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"postline.dev/internal/auth"
	"postline.dev/internal/posts"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migrations returns the schema migrations applied by internal/migrate.
func Migrations() fs.FS {
	sub, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

const uniqueViolation = "23505"

var (
	_ auth.UserStore = (*UserStore)(nil)
	_ posts.Store    = (*PostStore)(nil)
)

// PoolOptions tunes the database/sql pool.
type PoolOptions struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Store is the PostgreSQL storage collaborator.
type Store struct {
	db *sql.DB
}

// Open connects through the pgx stdlib driver.
func Open(dsn string, opts PoolOptions) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		db.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}
	return &Store{db: db}, nil
}

// New wraps an existing handle.
func New(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) DB() *sql.DB                    { return s.db }
func (s *Store) Close() error                   { return s.db.Close() }
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *Store) Users() *UserStore { return &UserStore{db: s.db} }
func (s *Store) Posts() *PostStore { return &PostStore{db: s.db} }

// User store ---------------------------------------------------------------
type UserStore struct{ db *sql.DB }

func (s *UserStore) Create(ctx context.Context, u *auth.User) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	err := s.db.QueryRowContext(ctx,
		`insert into users(id, email, password_hash, first_name, last_name)
		 values($1,$2,$3,$4,$5)
		 returning created_at, updated_at`,
		u.ID, u.Email, u.PasswordHash, u.FirstName, u.LastName,
	).Scan(&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return auth.ErrConflict
		}
		return err
	}
	return nil
}

const userColumns = `id, email, password_hash, first_name, last_name, created_at, updated_at`

func (s *UserStore) Find(ctx context.Context, id uuid.UUID) (*auth.User, error) {
	row := s.db.QueryRowContext(ctx, `select `+userColumns+` from users where id=$1`, id)
	return scanUser(row)
}

func (s *UserStore) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	row := s.db.QueryRowContext(ctx, `select `+userColumns+` from users where email=$1`, email)
	return scanUser(row)
}

func scanUser(row *sql.Row) (*auth.User, error) {
	var u auth.User
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, auth.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// Post store ---------------------------------------------------------------
type PostStore struct{ db *sql.DB }

const postWithAuthorQuery = `
	select p.id, p.user_id, p.title, p.content, p.created_at, p.updated_at,
	       u.email, u.first_name, u.last_name, u.created_at, u.updated_at
	from posts p
	join users u on p.user_id = u.id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPostWithAuthor(row rowScanner) (posts.PostWithAuthor, error) {
	var (
		p      posts.PostWithAuthor
		author auth.UserSummary
	)
	err := row.Scan(&p.ID, &p.UserID, &p.Title, &p.Content, &p.CreatedAt, &p.UpdatedAt,
		&author.Email, &author.FirstName, &author.LastName, &author.CreatedAt, &author.UpdatedAt)
	if err != nil {
		return posts.PostWithAuthor{}, err
	}
	author.ID = p.UserID
	p.Author = &author
	return p, nil
}

func (s *PostStore) List(ctx context.Context) ([]posts.PostWithAuthor, error) {
	rows, err := s.db.QueryContext(ctx, postWithAuthorQuery+` order by p.created_at desc, p.id desc`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []posts.PostWithAuthor
	for rows.Next() {
		p, err := scanPostWithAuthor(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

func (s *PostStore) Find(ctx context.Context, id uuid.UUID) (posts.PostWithAuthor, error) {
	p, err := scanPostWithAuthor(s.db.QueryRowContext(ctx, postWithAuthorQuery+` where p.id=$1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return posts.PostWithAuthor{}, posts.ErrNotFound
		}
		return posts.PostWithAuthor{}, err
	}
	return p, nil
}

func (s *PostStore) Create(ctx context.Context, p *posts.Post) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return s.db.QueryRowContext(ctx,
		`insert into posts(id, user_id, title, content)
		 values($1,$2,$3,$4)
		 returning created_at, updated_at`,
		p.ID, p.UserID, p.Title, p.Content,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
}

func (s *PostStore) Update(ctx context.Context, id uuid.UUID, patch posts.Patch) (posts.Post, error) {
	var p posts.Post
	err := s.db.QueryRowContext(ctx,
		`update posts
		 set title = coalesce($1, title), content = coalesce($2, content), updated_at = now()
		 where id = $3
		 returning id, user_id, title, content, created_at, updated_at`,
		nullString(patch.Title), nullString(patch.Content), id,
	).Scan(&p.ID, &p.UserID, &p.Title, &p.Content, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return posts.Post{}, posts.ErrNotFound
		}
		return posts.Post{}, err
	}
	return p, nil
}

func (s *PostStore) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `delete from posts where id=$1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return posts.ErrNotFound
	}
	return nil
}

func (s *PostStore) OwnerOf(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	var owner uuid.UUID
	if err := s.db.QueryRowContext(ctx, `select user_id from posts where id=$1`, id).Scan(&owner); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return uuid.Nil, posts.ErrNotFound
		}
		return uuid.Nil, err
	}
	return owner, nil
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
