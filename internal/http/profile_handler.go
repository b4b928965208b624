package http

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"zemini/internal/actions"
)

const maxAvatarBytes int64 = 5 << 20

// ProfileHandler exposes the signed-in user's profile and password.
type ProfileHandler struct {
	actions *actions.Actions
	logger  *slog.Logger
}

// NewProfileHandler builds a ProfileHandler.
func NewProfileHandler(acts *actions.Actions, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{actions: acts, logger: logger}
}

// Get handles GET /api/profile.
func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	writeResult(w, http.StatusOK, h.actions.GetProfile(r.Context(), IdentityFromContext(r.Context())))
}

// Update handles PUT /api/profile. Multipart requests may carry an "avatar"
// file next to "full_name"; JSON requests can only rename.
func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	identity := IdentityFromContext(r.Context())
	if identity.IsGuest() {
		writeResult(w, http.StatusOK, h.actions.UpdateProfile(r.Context(), identity, actions.ProfileInput{}))
		return
	}

	input, status, message := h.readProfileInput(w, r)
	if status != 0 {
		writeError(w, status, message)
		return
	}

	writeResult(w, http.StatusOK, h.actions.UpdateProfile(r.Context(), identity, input))
}

func (h *ProfileHandler) readProfileInput(w http.ResponseWriter, r *http.Request) (actions.ProfileInput, int, string) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		var payload struct {
			FullName string `json:"full_name"`
		}
		if err := decodeJSONBody(w, r, &payload); err != nil {
			if errors.Is(err, errPayloadTooLarge) {
				return actions.ProfileInput{}, http.StatusRequestEntityTooLarge, "payload too large"
			}
			return actions.ProfileInput{}, http.StatusBadRequest, "invalid request body"
		}
		return actions.ProfileInput{FullName: payload.FullName}, 0, ""
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxAvatarBytes+(64<<10))
	if err := r.ParseMultipartForm(maxAvatarBytes); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return actions.ProfileInput{}, http.StatusRequestEntityTooLarge, "avatar must be 5 MB or smaller"
		}
		return actions.ProfileInput{}, http.StatusBadRequest, "invalid form data"
	}

	input := actions.ProfileInput{FullName: r.FormValue("full_name")}

	file, _, err := r.FormFile("avatar")
	if errors.Is(err, http.ErrMissingFile) {
		return input, 0, ""
	}
	if err != nil {
		return actions.ProfileInput{}, http.StatusBadRequest, "invalid avatar upload"
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxAvatarBytes+1))
	if err != nil {
		h.logger.Warn("read avatar failed", "error", err)
		return actions.ProfileInput{}, http.StatusBadRequest, "invalid avatar upload"
	}
	if int64(len(data)) > maxAvatarBytes {
		return actions.ProfileInput{}, http.StatusRequestEntityTooLarge, "avatar must be 5 MB or smaller"
	}
	if len(data) == 0 {
		return input, 0, ""
	}
	if !strings.HasPrefix(http.DetectContentType(data), "image/") {
		return actions.ProfileInput{}, http.StatusBadRequest, "avatar must be an image"
	}

	input.Avatar = bytes.NewReader(data)
	return input, 0, ""
}

// UpdatePassword handles PUT /api/profile/password.
func (h *ProfileHandler) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	var input actions.PasswordInput
	if err := decodeJSONBody(w, r, &input); err != nil {
		writeJSONError(w, err)
		return
	}
	writeResult(w, http.StatusOK, h.actions.UpdatePassword(r.Context(), IdentityFromContext(r.Context()), input))
}
