package http

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"zemini/internal/accounts"
	"zemini/internal/actions"
	"zemini/internal/auth"
)

const (
	oauthStateCookieName = "zemini_oauth_state"
	oauthStateCookiePath = "/api/auth"
	oauthStateCookieTTL  = 10 * time.Minute
)

type googleAuthenticator interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*auth.GoogleClaims, error)
	IsEmailAllowed(email string) bool
}

type federatedSignIn interface {
	SignInFederated(ctx context.Context, profile accounts.FederatedProfile) actions.Result[actions.Session]
}

// oauthState travels through Google as the opaque state parameter. Nonce must
// match the state cookie; ReturnTo is where the browser lands afterwards.
type oauthState struct {
	Nonce    string `json:"s"`
	ReturnTo string `json:"r,omitempty"`
}

func (s oauthState) encode() string {
	raw, _ := json.Marshal(s)
	return base64.RawURLEncoding.EncodeToString(raw)
}

func decodeOAuthState(value string) (oauthState, error) {
	raw, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return oauthState{}, fmt.Errorf("decode state: %w", err)
	}
	var state oauthState
	if err := json.Unmarshal(raw, &state); err != nil {
		return oauthState{}, fmt.Errorf("parse state: %w", err)
	}
	if state.Nonce == "" {
		return oauthState{}, errors.New("state nonce missing")
	}
	return state, nil
}

// isValidRedirectPath accepts only same-origin relative paths, including
// after percent-decoding.
func isValidRedirectPath(path string) bool {
	if path == "" {
		return false
	}
	decoded, err := url.QueryUnescape(path)
	if err != nil {
		return false
	}
	if !strings.HasPrefix(decoded, "/") || strings.HasPrefix(decoded, "//") {
		return false
	}
	parsed, err := url.Parse(decoded)
	if err != nil {
		return false
	}
	return parsed.Scheme == "" && parsed.Host == ""
}

// callbackError is reported to the frontend login page as ?error=&message=.
type callbackError struct {
	code    string
	message string
}

var (
	errSessionExpired  = &callbackError{"invalid_request", "Session expired. Please try again."}
	errInvalidState    = &callbackError{"invalid_request", "Invalid state. Please try again."}
	errMissingCode     = &callbackError{"invalid_request", "Missing authorization code."}
	errUnverifiedEmail = &callbackError{"email_not_verified", "Please verify your Google email address."}
	errExchangeFailed  = &callbackError{"exchange_error", "Failed to complete authentication."}
	errAccessDenied    = &callbackError{"access_denied", "Your account is not authorized to access this application."}
	errSignInFailed    = &callbackError{"internal_error", "Failed to sign in."}
)

// OAuthHandler runs the Google sign-in redirect flow and issues a session
// cookie once the account is linked.
type OAuthHandler struct {
	google       googleAuthenticator
	signIn       federatedSignIn
	logger       *slog.Logger
	secureCookie bool
	frontendURL  string
}

// NewOAuthHandler creates a new OAuthHandler.
func NewOAuthHandler(google googleAuthenticator, signIn federatedSignIn, frontendURL, env string, logger *slog.Logger) *OAuthHandler {
	return &OAuthHandler{
		google:       google,
		signIn:       signIn,
		logger:       logger,
		secureCookie: !strings.EqualFold(env, "development"),
		frontendURL:  strings.TrimSuffix(frontendURL, "/"),
	}
}

// InitiateGoogle handles GET /api/auth/google.
func (h *OAuthHandler) InitiateGoogle(w http.ResponseWriter, r *http.Request) {
	nonce, err := auth.GenerateState()
	if err != nil {
		h.logger.Error("failed to generate oauth state", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	state := oauthState{Nonce: nonce}
	if target := r.URL.Query().Get("redirectTo"); isValidRedirectPath(target) {
		state.ReturnTo = target
	}

	http.SetCookie(w, h.stateCookie(nonce, int(oauthStateCookieTTL.Seconds())))
	http.Redirect(w, r, h.google.AuthURL(state.encode()), http.StatusTemporaryRedirect)
}

// CallbackGoogle handles GET /api/auth/google/callback.
func (h *OAuthHandler) CallbackGoogle(w http.ResponseWriter, r *http.Request) {
	state, cbErr := h.verifyState(r)
	if cbErr != nil {
		h.redirectWithError(w, r, cbErr)
		return
	}
	http.SetCookie(w, h.stateCookie("", -1))

	query := r.URL.Query()
	if providerErr := query.Get("error"); providerErr != "" {
		h.logger.Warn("oauth callback: provider error", "error", providerErr)
		h.redirectWithError(w, r, &callbackError{providerErr, query.Get("error_description")})
		return
	}

	profile, cbErr := h.exchange(r.Context(), query.Get("code"))
	if cbErr != nil {
		h.redirectWithError(w, r, cbErr)
		return
	}

	h.signIn.SignInFederated(r.Context(), profile).Match(
		func(_ string, session actions.Session) {
			http.SetCookie(w, sessionCookie(session.Token, session.ExpiresAt, h.secureCookie))
			h.logger.Info("oauth login successful", "user_id", session.Profile.ID)

			returnTo := "/"
			if isValidRedirectPath(state.ReturnTo) {
				returnTo = state.ReturnTo
			}
			http.Redirect(w, r, h.frontendURL+returnTo, http.StatusTemporaryRedirect)
		},
		func(failure *actions.Error) {
			h.logger.Error("oauth callback: sign-in failed", "error", failure)
			h.redirectWithError(w, r, errSignInFailed)
		},
	)
}

func (h *OAuthHandler) verifyState(r *http.Request) (oauthState, *callbackError) {
	cookie, err := r.Cookie(oauthStateCookieName)
	if err != nil {
		h.logger.Warn("oauth callback: missing state cookie")
		return oauthState{}, errSessionExpired
	}
	state, err := decodeOAuthState(r.URL.Query().Get("state"))
	if err != nil {
		h.logger.Warn("oauth callback: invalid state", "error", err)
		return oauthState{}, errInvalidState
	}
	if subtle.ConstantTimeCompare([]byte(state.Nonce), []byte(cookie.Value)) != 1 {
		h.logger.Warn("oauth callback: state mismatch")
		return oauthState{}, errInvalidState
	}
	return state, nil
}

// exchange trades the authorization code for a verified, allowlisted profile.
func (h *OAuthHandler) exchange(ctx context.Context, code string) (accounts.FederatedProfile, *callbackError) {
	if code == "" {
		return accounts.FederatedProfile{}, errMissingCode
	}

	claims, err := h.google.Exchange(ctx, code)
	switch {
	case errors.Is(err, auth.ErrEmailNotVerified):
		return accounts.FederatedProfile{}, errUnverifiedEmail
	case err != nil:
		h.logger.Error("oauth callback: exchange failed", "error", err)
		return accounts.FederatedProfile{}, errExchangeFailed
	case !claims.EmailVerified:
		h.logger.Warn("oauth callback: email not verified", "email", claims.Email)
		return accounts.FederatedProfile{}, errUnverifiedEmail
	case !h.google.IsEmailAllowed(claims.Email):
		h.logger.Warn("oauth callback: email not allowed", "email", claims.Email)
		return accounts.FederatedProfile{}, errAccessDenied
	}

	return accounts.FederatedProfile{
		Provider: accounts.ProviderGoogle,
		Email:    claims.Email,
		Name:     claims.Name,
		Picture:  claims.Picture,
	}, nil
}

func (h *OAuthHandler) stateCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     oauthStateCookieName,
		Value:    value,
		Path:     oauthStateCookiePath,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	}
}

func (h *OAuthHandler) redirectWithError(w http.ResponseWriter, r *http.Request, cbErr *callbackError) {
	values := url.Values{"error": {cbErr.code}}
	if cbErr.message != "" {
		values.Set("message", cbErr.message)
	}
	http.Redirect(w, r, h.frontendURL+"/login?"+values.Encode(), http.StatusTemporaryRedirect)
}
