package accounts

import "context"

// Repository persists user accounts keyed by email.
type Repository interface {
	// Create inserts the user, returning ErrDuplicateEmail if the email exists.
	Create(ctx context.Context, user User) (User, error)
	FindByEmail(ctx context.Context, email string) (User, error)
	UpdatePassword(ctx context.Context, email, passwordHash string) error
	UpdateProfile(ctx context.Context, email string, update ProfileUpdate) (User, error)
}
