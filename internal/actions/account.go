package actions

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"zemini/internal/accounts"
	"zemini/internal/auth"
)

const avatarFolder = "avatars"

// Profile is the public view of an account.
type Profile struct {
	ID        uuid.UUID `json:"id"`
	FullName  string    `json:"fullName"`
	Email     string    `json:"email"`
	ImageLink string    `json:"imageLink"`
}

func profileOf(user accounts.User) Profile {
	return Profile{ID: user.ID, FullName: user.FullName, Email: user.Email, ImageLink: user.ImageLink}
}

func principalOf(user accounts.User) auth.Principal {
	return auth.Principal{UserID: user.ID, Email: user.Email, Name: user.FullName, AvatarURL: user.ImageLink}
}

// Session is a signed token asserting a signed-in account.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	Profile   Profile   `json:"user"`
}

// RegisterInput is the sign-up form.
type RegisterInput struct {
	FullName        string `json:"full_name" validate:"required"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=6,max=72"`
	ConfirmPassword string `json:"confirm_password" validate:"omitempty,eqfield=Password"`
}

// Register creates a password account. It does not sign the caller in.
func (a *Actions) Register(ctx context.Context, input RegisterInput) Result[Profile] {
	input.FullName = strings.TrimSpace(input.FullName)
	input.Email = strings.TrimSpace(input.Email)

	if verr := a.checkInput(input); verr != nil {
		registrationsTotal.WithLabelValues("invalid").Inc()
		return Failure[Profile](verr)
	}

	user, err := a.accounts.Create(ctx, input.FullName, input.Email, input.Password)
	if err != nil {
		var actionErr *Error
		switch {
		case errors.Is(err, accounts.ErrDuplicateEmail):
			registrationsTotal.WithLabelValues("conflict").Inc()
			actionErr = failure(KindConflict, "email already registered", err)
		case errors.Is(err, accounts.ErrValidation):
			registrationsTotal.WithLabelValues("invalid").Inc()
			actionErr = failure(KindValidation, err.Error(), err)
		default:
			registrationsTotal.WithLabelValues("error").Inc()
			actionErr = failure(KindPersistence, "could not create account", err)
		}
		a.logFailure(ctx, "register", auth.Guest(), actionErr)
		return Failure[Profile](actionErr)
	}

	registrationsTotal.WithLabelValues("created").Inc()
	a.logger.Info("account registered", "user_id", user.ID)
	return Success("User registered successfully", profileOf(user))
}

// LoginInput is the password sign-in form.
type LoginInput struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Login authenticates with email and password. Unknown emails and wrong
// passwords fail with the same message.
func (a *Actions) Login(ctx context.Context, input LoginInput) Result[Session] {
	input.Email = strings.TrimSpace(input.Email)
	if verr := a.checkInput(input); verr != nil {
		return Failure[Session](verr)
	}

	user, err := a.accounts.Authenticate(ctx, input.Email, input.Password)
	if err != nil {
		var actionErr *Error
		if errors.Is(err, accounts.ErrInvalidCredentials) {
			actionErr = failure(KindUnauthorized, accounts.ErrInvalidCredentials.Error(), nil)
		} else {
			actionErr = failure(KindPersistence, "could not sign in", err)
		}
		a.logFailure(ctx, "login", auth.Guest(), actionErr)
		return Failure[Session](actionErr)
	}

	return a.startSession(ctx, user, "Signed in successfully")
}

// SignInFederated signs in a verified external identity, creating the
// account on first sight.
func (a *Actions) SignInFederated(ctx context.Context, profile accounts.FederatedProfile) Result[Session] {
	user, err := a.accounts.FindOrCreateFederated(ctx, profile)
	if err != nil {
		var actionErr *Error
		if errors.Is(err, accounts.ErrValidation) {
			actionErr = failure(KindValidation, err.Error(), err)
		} else {
			actionErr = failure(KindPersistence, "could not sign in", err)
		}
		a.logFailure(ctx, "sign_in_federated", auth.Guest(), actionErr)
		return Failure[Session](actionErr)
	}
	return a.startSession(ctx, user, "Signed in successfully")
}

func (a *Actions) startSession(ctx context.Context, user accounts.User, message string) Result[Session] {
	token, expiresAt, err := a.tokens.Issue(principalOf(user))
	if err != nil {
		actionErr := failure(KindInternal, "could not create session", err)
		a.logFailure(ctx, "start_session", auth.Guest(), actionErr)
		return Failure[Session](actionErr)
	}
	return Success(message, Session{Token: token, ExpiresAt: expiresAt, Profile: profileOf(user)})
}

// GetProfile returns the caller's stored profile.
func (a *Actions) GetProfile(ctx context.Context, identity auth.Identity) Result[Profile] {
	principal, authErr := requireUser(identity)
	if authErr != nil {
		return Failure[Profile](authErr)
	}

	user, err := a.accounts.FindByEmail(ctx, principal.Email)
	if err != nil {
		actionErr := a.userLookupFailure(err)
		a.logFailure(ctx, "get_profile", identity, actionErr)
		return Failure[Profile](actionErr)
	}
	return Success("Profile loaded", profileOf(user))
}

// PasswordInput is the change-password form.
type PasswordInput struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=6,max=72"`
	ConfirmPassword string `json:"confirm_password" validate:"omitempty,eqfield=NewPassword"`
}

// UpdatePassword replaces the caller's password after verifying the current one.
func (a *Actions) UpdatePassword(ctx context.Context, identity auth.Identity, input PasswordInput) Result[None] {
	principal, authErr := requireUser(identity)
	if authErr != nil {
		return Failure[None](authErr)
	}
	if verr := a.checkInput(input); verr != nil {
		return Failure[None](verr)
	}

	err := a.accounts.UpdatePassword(ctx, principal.Email, input.CurrentPassword, input.NewPassword)
	if err != nil {
		var actionErr *Error
		switch {
		case errors.Is(err, accounts.ErrInvalidCredentials):
			actionErr = failure(KindValidation, "current password is incorrect", nil)
		case errors.Is(err, accounts.ErrValidation):
			actionErr = failure(KindValidation, err.Error(), err)
		default:
			actionErr = a.userLookupFailure(err)
		}
		a.logFailure(ctx, "update_password", identity, actionErr)
		return Failure[None](actionErr)
	}

	a.logger.Info("password updated", "user_id", principal.UserID)
	return Success("Password updated successfully", None{})
}

// ProfileInput is a partial profile update. Avatar, when set, is uploaded to
// object storage and replaces the stored image link.
type ProfileInput struct {
	FullName string
	Avatar   io.Reader
}

// UpdateProfile applies a partial profile update for the caller.
func (a *Actions) UpdateProfile(ctx context.Context, identity auth.Identity, input ProfileInput) Result[Profile] {
	principal, authErr := requireUser(identity)
	if authErr != nil {
		return Failure[Profile](authErr)
	}

	if _, err := a.accounts.FindByEmail(ctx, principal.Email); err != nil {
		actionErr := a.userLookupFailure(err)
		a.logFailure(ctx, "update_profile", identity, actionErr)
		return Failure[Profile](actionErr)
	}

	var update accounts.ProfileUpdate
	if name := strings.TrimSpace(input.FullName); name != "" {
		update.FullName = &name
	}

	if input.Avatar != nil {
		uploadCtx, cancel := context.WithTimeout(ctx, a.storageTimeout)
		link, err := a.store.UploadStream(uploadCtx, input.Avatar, avatarFolder)
		cancel()
		if err != nil {
			actionErr := externalFailure(err, "could not upload avatar", "avatar upload timed out, please try again")
			a.logFailure(ctx, "update_profile", identity, actionErr)
			return Failure[Profile](actionErr)
		}
		update.ImageLink = &link
	}

	user, err := a.accounts.UpdateProfile(ctx, principal.Email, update)
	if err != nil {
		actionErr := a.userLookupFailure(err)
		a.logFailure(ctx, "update_profile", identity, actionErr)
		return Failure[Profile](actionErr)
	}
	return Success("Profile updated successfully", profileOf(user))
}

// userLookupFailure maps account store errors for an already signed-in caller.
func (a *Actions) userLookupFailure(err error) *Error {
	if errors.Is(err, accounts.ErrNotFound) {
		return failure(KindNotFound, "user not found", err)
	}
	return failure(KindPersistence, "could not load account", err)
}
