package accounts

import (
	"errors"
	"net/url"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when no user matches the lookup.
	ErrNotFound = errors.New("user not found")
	// ErrDuplicateEmail is returned when an email is already registered.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrInvalidCredentials covers unknown emails and wrong passwords alike.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrValidation is returned when input validation fails.
	ErrValidation = errors.New("validation error")
)

// ValidationError wraps a validation message so callers can distinguish
// client errors from internal failures.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// Provider records how an account was first created.
type Provider string

const (
	ProviderCredentials Provider = "credentials"
	ProviderGoogle      Provider = "google"
)

// User is a registered account. PasswordHash is empty for accounts created
// through federated sign-in.
type User struct {
	ID           uuid.UUID `db:"id"`
	Email        string    `db:"email"`
	FullName     string    `db:"full_name"`
	PasswordHash string    `db:"password_hash"`
	ImageLink    string    `db:"image_link"`
	AuthProvider Provider  `db:"auth_provider"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

// HasPassword reports whether the account can sign in with a password.
func (u User) HasPassword() bool {
	return u.PasswordHash != ""
}

// ProfileUpdate is a partial update; nil fields are left unchanged.
type ProfileUpdate struct {
	FullName  *string
	ImageLink *string
}

// FederatedProfile is a verified identity asserted by an external provider.
type FederatedProfile struct {
	Provider Provider
	Email    string
	Name     string
	Picture  string
}

// DefaultAvatarURL derives a generated avatar from the display name.
func DefaultAvatarURL(fullName string) string {
	return "https://ui-avatars.com/api/?name=" + url.QueryEscape(fullName) + "&background=random"
}
