package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Service is the credential store: registration, password verification and
// profile maintenance on top of a Repository.
type Service struct {
	repo   Repository
	hasher *Hasher
	now    func() time.Time
}

// NewService wires a Service with the provided repository and hasher.
func NewService(repo Repository, hasher *Hasher) *Service {
	if hasher == nil {
		hasher = NewHasher(0)
	}
	return &Service{repo: repo, hasher: hasher, now: func() time.Time { return time.Now().UTC() }}
}

// Create registers a password account. The plaintext password is never stored.
func (s *Service) Create(ctx context.Context, fullName, email, password string) (User, error) {
	fullName = strings.TrimSpace(fullName)
	email = strings.TrimSpace(email)
	if fullName == "" || email == "" || password == "" {
		return User{}, &ValidationError{Message: "full name, email and password are required"}
	}
	if err := validatePassword(password); err != nil {
		return User{}, err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return User{}, err
	}

	now := s.now()
	user := User{
		ID:           uuid.New(),
		Email:        email,
		FullName:     fullName,
		PasswordHash: hash,
		ImageLink:    DefaultAvatarURL(fullName),
		AuthProvider: ProviderCredentials,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	return s.repo.Create(ctx, user)
}

// FindByEmail returns the user registered under email.
func (s *Service) FindByEmail(ctx context.Context, email string) (User, error) {
	return s.repo.FindByEmail(ctx, strings.TrimSpace(email))
}

// VerifyPassword reports whether candidate matches the user's stored hash.
func (s *Service) VerifyPassword(user User, candidate string) bool {
	return s.hasher.Verify(user.PasswordHash, candidate)
}

// Authenticate checks an email/password pair. Unknown emails, federated-only
// accounts and wrong passwords all return ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (User, error) {
	user, err := s.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.hasher.burn(password)
			return User{}, ErrInvalidCredentials
		}
		return User{}, err
	}
	if !s.VerifyPassword(user, password) {
		return User{}, ErrInvalidCredentials
	}
	return user, nil
}

// UpdatePassword replaces the password after proving knowledge of the current one.
func (s *Service) UpdatePassword(ctx context.Context, email, current, next string) error {
	user, err := s.FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	if !s.VerifyPassword(user, current) {
		return ErrInvalidCredentials
	}
	if err := validatePassword(next); err != nil {
		return err
	}

	hash, err := s.hasher.Hash(next)
	if err != nil {
		return err
	}
	return s.repo.UpdatePassword(ctx, user.Email, hash)
}

// UpdateProfile applies a partial update. Blank names are ignored.
func (s *Service) UpdateProfile(ctx context.Context, email string, update ProfileUpdate) (User, error) {
	if update.FullName != nil {
		trimmed := strings.TrimSpace(*update.FullName)
		if trimmed == "" {
			update.FullName = nil
		} else {
			update.FullName = &trimmed
		}
	}
	if update.ImageLink != nil && strings.TrimSpace(*update.ImageLink) == "" {
		update.ImageLink = nil
	}
	if update.FullName == nil && update.ImageLink == nil {
		return s.FindByEmail(ctx, email)
	}
	return s.repo.UpdateProfile(ctx, strings.TrimSpace(email), update)
}

// FindOrCreateFederated returns the account for a verified external identity,
// creating a password-less one on first sight.
func (s *Service) FindOrCreateFederated(ctx context.Context, profile FederatedProfile) (User, error) {
	email := strings.TrimSpace(profile.Email)
	if email == "" {
		return User{}, &ValidationError{Message: "federated identity has no email"}
	}

	existing, err := s.repo.FindByEmail(ctx, email)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return User{}, fmt.Errorf("find user: %w", err)
	}

	name := strings.TrimSpace(profile.Name)
	if name == "" {
		name, _, _ = strings.Cut(email, "@")
	}
	avatar := strings.TrimSpace(profile.Picture)
	if avatar == "" {
		avatar = DefaultAvatarURL(name)
	}
	provider := profile.Provider
	if provider == "" {
		provider = ProviderGoogle
	}

	now := s.now()
	created, err := s.repo.Create(ctx, User{
		ID:           uuid.New(),
		Email:        email,
		FullName:     name,
		ImageLink:    avatar,
		AuthProvider: provider,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if errors.Is(err, ErrDuplicateEmail) {
		// Lost a race with a concurrent first sign-in; use the winner's row.
		return s.repo.FindByEmail(ctx, email)
	}
	if err != nil {
		return User{}, fmt.Errorf("create user: %w", err)
	}
	return created, nil
}
