// Package memory keeps users and posts in process memory. It backs tests and
// the "memory" database driver.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"postline.dev/internal/auth"
	"postline.dev/internal/posts"
)

var (
	_ auth.UserStore = (*UserStore)(nil)
	_ posts.Store    = (*PostStore)(nil)
)

// errUnknownOwner mirrors the posts.user_id foreign key of the SQL stores.
var errUnknownOwner = errors.New("memory: post owner does not exist")

// Store holds all records behind one lock so post reads can join authors.
type Store struct {
	mu      sync.RWMutex
	users   map[uuid.UUID]auth.User
	byEmail map[string]uuid.UUID
	posts   map[uuid.UUID]posts.Post
	now     func() time.Time
}

// New creates an empty store.
func New() *Store {
	return &Store{
		users:   make(map[uuid.UUID]auth.User),
		byEmail: make(map[string]uuid.UUID),
		posts:   make(map[uuid.UUID]posts.Post),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) Users() *UserStore { return &UserStore{s: s} }
func (s *Store) Posts() *PostStore { return &PostStore{s: s} }

func (s *Store) Ping(ctx context.Context) error { return nil }
func (s *Store) Close() error                   { return nil }

// UserStore is the auth.UserStore view of Store.
type UserStore struct{ s *Store }

// Count returns the number of stored credential records.
func (u *UserStore) Count() int {
	u.s.mu.RLock()
	defer u.s.mu.RUnlock()
	return len(u.s.users)
}

func (u *UserStore) Create(ctx context.Context, user *auth.User) error {
	s := u.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byEmail[user.Email]; ok {
		return auth.ErrConflict
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	now := s.now()
	user.CreatedAt, user.UpdatedAt = now, now
	s.users[user.ID] = *user
	s.byEmail[user.Email] = user.ID
	return nil
}

func (u *UserStore) Find(ctx context.Context, id uuid.UUID) (*auth.User, error) {
	u.s.mu.RLock()
	defer u.s.mu.RUnlock()
	user, ok := u.s.users[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	return &user, nil
}

func (u *UserStore) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	u.s.mu.RLock()
	defer u.s.mu.RUnlock()
	id, ok := u.s.byEmail[email]
	if !ok {
		return nil, auth.ErrNotFound
	}
	user := u.s.users[id]
	return &user, nil
}

// Delete removes a user together with the posts they own.
func (u *UserStore) Delete(ctx context.Context, id uuid.UUID) error {
	s := u.s
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return auth.ErrNotFound
	}
	delete(s.users, id)
	delete(s.byEmail, user.Email)
	for pid, p := range s.posts {
		if p.UserID == id {
			delete(s.posts, pid)
		}
	}
	return nil
}

// PostStore is the posts.Store view of Store.
type PostStore struct{ s *Store }

// Count returns the number of stored posts.
func (p *PostStore) Count() int {
	p.s.mu.RLock()
	defer p.s.mu.RUnlock()
	return len(p.s.posts)
}

func (p *PostStore) List(ctx context.Context) ([]posts.PostWithAuthor, error) {
	s := p.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]posts.PostWithAuthor, 0, len(s.posts))
	for _, post := range s.posts {
		out = append(out, s.joinLocked(post))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() > out[j].ID.String()
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (p *PostStore) Find(ctx context.Context, id uuid.UUID) (posts.PostWithAuthor, error) {
	s := p.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	post, ok := s.posts[id]
	if !ok {
		return posts.PostWithAuthor{}, posts.ErrNotFound
	}
	return s.joinLocked(post), nil
}

func (p *PostStore) Create(ctx context.Context, post *posts.Post) error {
	s := p.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[post.UserID]; !ok {
		return fmt.Errorf("%w: %s", errUnknownOwner, post.UserID)
	}
	if post.ID == uuid.Nil {
		post.ID = uuid.New()
	}
	now := s.now()
	post.CreatedAt, post.UpdatedAt = now, now
	s.posts[post.ID] = *post
	return nil
}

func (p *PostStore) Update(ctx context.Context, id uuid.UUID, patch posts.Patch) (posts.Post, error) {
	s := p.s
	s.mu.Lock()
	defer s.mu.Unlock()
	post, ok := s.posts[id]
	if !ok {
		return posts.Post{}, posts.ErrNotFound
	}
	if patch.Title != nil {
		post.Title = *patch.Title
	}
	if patch.Content != nil {
		post.Content = *patch.Content
	}
	post.UpdatedAt = s.now()
	s.posts[id] = post
	return post, nil
}

func (p *PostStore) Delete(ctx context.Context, id uuid.UUID) error {
	s := p.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.posts[id]; !ok {
		return posts.ErrNotFound
	}
	delete(s.posts, id)
	return nil
}

func (p *PostStore) OwnerOf(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	p.s.mu.RLock()
	defer p.s.mu.RUnlock()
	post, ok := p.s.posts[id]
	if !ok {
		return uuid.Nil, posts.ErrNotFound
	}
	return post.UserID, nil
}

func (s *Store) joinLocked(p posts.Post) posts.PostWithAuthor {
	out := posts.PostWithAuthor{Post: p}
	if u, ok := s.users[p.UserID]; ok {
		summary := u.Summary()
		out.Author = &summary
	}
	return out
}
