package accounts

import (
	"context"
	"sync"
	"time"
)

// InMemoryRepository stores users in an in-process map, ideal for local development or tests.
type InMemoryRepository struct {
	mu    sync.RWMutex
	users map[string]User
}

// NewInMemoryRepository constructs a repository seeded with optional users.
func NewInMemoryRepository(initial []User) *InMemoryRepository {
	users := make(map[string]User, len(initial))
	for _, u := range initial {
		users[u.Email] = u
	}
	return &InMemoryRepository{users: users}
}

// Create stores a new user; the email check and insert happen under one lock.
func (r *InMemoryRepository) Create(_ context.Context, user User) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.users[user.Email]; exists {
		return User{}, ErrDuplicateEmail
	}
	r.users[user.Email] = user
	return user, nil
}

// FindByEmail returns the user registered under email.
func (r *InMemoryRepository) FindByEmail(_ context.Context, email string) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[email]
	if !ok {
		return User{}, ErrNotFound
	}
	return user, nil
}

// UpdatePassword replaces the stored hash.
func (r *InMemoryRepository) UpdatePassword(_ context.Context, email, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[email]
	if !ok {
		return ErrNotFound
	}
	user.PasswordHash = passwordHash
	user.UpdatedAt = time.Now().UTC()
	r.users[email] = user
	return nil
}

// UpdateProfile applies the non-nil fields of update.
func (r *InMemoryRepository) UpdateProfile(_ context.Context, email string, update ProfileUpdate) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[email]
	if !ok {
		return User{}, ErrNotFound
	}
	if update.FullName != nil {
		user.FullName = *update.FullName
	}
	if update.ImageLink != nil {
		user.ImageLink = *update.ImageLink
	}
	user.UpdatedAt = time.Now().UTC()
	r.users[email] = user
	return user, nil
}
