package http

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"zemini/internal/actions"
)

const sessionCookieName = "zemini_session"

// SessionHandler covers registration and password sign-in. Sessions are signed
// tokens delivered both as an HttpOnly cookie and in the response body.
type SessionHandler struct {
	actions      *actions.Actions
	logger       *slog.Logger
	secureCookie bool
}

// NewSessionHandler returns a SessionHandler.
func NewSessionHandler(acts *actions.Actions, env string, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{
		actions:      acts,
		logger:       logger,
		secureCookie: !strings.EqualFold(env, "development"),
	}
}

// Register handles POST /api/register. It does not sign the caller in.
func (h *SessionHandler) Register(w http.ResponseWriter, r *http.Request) {
	var input actions.RegisterInput
	if err := decodeJSONBody(w, r, &input); err != nil {
		writeJSONError(w, err)
		return
	}
	writeResult(w, http.StatusCreated, h.actions.Register(r.Context(), input))
}

// Login handles POST /api/session.
func (h *SessionHandler) Login(w http.ResponseWriter, r *http.Request) {
	var input actions.LoginInput
	if err := decodeJSONBody(w, r, &input); err != nil {
		writeJSONError(w, err)
		return
	}

	result := h.actions.Login(r.Context(), input)
	if result.OK() {
		session := result.Data()
		http.SetCookie(w, sessionCookie(session.Token, session.ExpiresAt, h.secureCookie))
	}
	writeResult(w, http.StatusOK, result)
}

// Status handles GET /api/session.
func (h *SessionHandler) Status(w http.ResponseWriter, r *http.Request) {
	principal, ok := IdentityFromContext(r.Context()).Principal()
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"authenticated": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"authenticated": true,
		"user":          principal,
	})
}

// Logout handles DELETE /api/session. Tokens are stateless, so logging out
// only clears the cookie.
func (h *SessionHandler) Logout(w http.ResponseWriter, _ *http.Request) {
	clearCookie := sessionCookie("", time.Unix(0, 0), h.secureCookie)
	clearCookie.MaxAge = -1
	http.SetCookie(w, clearCookie)
	w.WriteHeader(http.StatusNoContent)
}

// ForgotPassword handles POST /api/password/forgot. Delivery is not
// implemented; the answer never reveals whether the email is registered.
func (h *SessionHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Email string `json:"email"`
	}
	if err := decodeJSONBody(w, r, &payload); err != nil {
		writeJSONError(w, err)
		return
	}
	if strings.TrimSpace(payload.Email) == "" {
		writeError(w, http.StatusBadRequest, "email is required")
		return
	}

	h.logger.Info("password reset requested")
	writeJSON(w, http.StatusAccepted, actions.Success("If an account exists for that email, reset instructions will be sent", actions.None{}))
}

func sessionCookie(value string, expiresAt time.Time, secure bool) *http.Cookie {
	maxAge := int(time.Until(expiresAt).Seconds())
	if maxAge < 0 {
		maxAge = 0
	}
	return &http.Cookie{
		Name:     sessionCookieName,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   secure,
		MaxAge:   maxAge,
		Expires:  expiresAt,
	}
}
