package actions

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"zemini/internal/accounts"
	"zemini/internal/artifacts"
	"zemini/internal/auth"
	"zemini/internal/exporter"
	"zemini/internal/generation"
	"zemini/internal/storage"
)

const (
	defaultProviderTimeout = 90 * time.Second
	defaultStorageTimeout  = 30 * time.Second
)

// Dependencies are the collaborators an Actions instance orchestrates.
type Dependencies struct {
	Accounts        *accounts.Service
	Artifacts       artifacts.Repository
	Provider        generation.Provider
	Store           storage.Store
	Tokens          *auth.TokenIssuer
	Logger          *slog.Logger
	ProviderTimeout time.Duration
	StorageTimeout  time.Duration
}

// Actions implements the user facing operations.
type Actions struct {
	accounts        *accounts.Service
	artifacts       artifacts.Repository
	provider        generation.Provider
	store           storage.Store
	tokens          *auth.TokenIssuer
	exporter        *exporter.CSVExporter
	logger          *slog.Logger
	validate        *validator.Validate
	providerTimeout time.Duration
	storageTimeout  time.Duration
	now             func() time.Time
}

// New builds Actions from its dependencies.
func New(deps Dependencies) *Actions {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	providerTimeout := deps.ProviderTimeout
	if providerTimeout <= 0 {
		providerTimeout = defaultProviderTimeout
	}
	storageTimeout := deps.StorageTimeout
	if storageTimeout <= 0 {
		storageTimeout = defaultStorageTimeout
	}

	return &Actions{
		accounts:        deps.Accounts,
		artifacts:       deps.Artifacts,
		provider:        deps.Provider,
		store:           deps.Store,
		tokens:          deps.Tokens,
		exporter:        exporter.NewCSVExporter(),
		logger:          logger,
		validate:        newValidator(),
		providerTimeout: providerTimeout,
		storageTimeout:  storageTimeout,
		now:             func() time.Time { return time.Now().UTC() },
	}
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})
	return v
}

// validationMessage turns the first validator failure into a caller message.
func validationMessage(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return "invalid input"
	}

	fe := fieldErrs[0]
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "email":
		return fe.Field() + " must be a valid email address"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "eqfield":
		return "passwords do not match"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	default:
		return fe.Field() + " is invalid"
	}
}

func (a *Actions) checkInput(input any) *Error {
	if err := a.validate.Struct(input); err != nil {
		return failure(KindValidation, validationMessage(err), err)
	}
	return nil
}

// requireUser rejects guests.
func requireUser(identity auth.Identity) (auth.Principal, *Error) {
	principal, ok := identity.Principal()
	if !ok {
		return auth.Principal{}, failure(KindUnauthorized, "Unauthorized", nil)
	}
	return principal, nil
}

// externalFailure classifies a provider or storage error. Deadline overruns
// are retryable.
func externalFailure(err error, message, timeoutMessage string) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindProvider, Message: timeoutMessage, Retryable: true, Cause: err}
	}
	return failure(KindProvider, message, err)
}

func (a *Actions) logFailure(ctx context.Context, action string, identity auth.Identity, err *Error) {
	level := slog.LevelWarn
	if err.Kind == KindPersistence || err.Kind == KindProvider || err.Kind == KindInternal {
		level = slog.LevelError
	}
	attrs := []any{"action", action, "identity", identity.String(), "kind", string(err.Kind)}
	if err.Cause != nil {
		attrs = append(attrs, "error", err.Cause)
	}
	a.logger.Log(ctx, level, err.Message, attrs...)
}
