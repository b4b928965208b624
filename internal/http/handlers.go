package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"zemini/internal/actions"
)

// ImageHandler exposes generation and image history endpoints.
type ImageHandler struct {
	actions *actions.Actions
	logger  *slog.Logger
}

// NewImageHandler builds an ImageHandler.
func NewImageHandler(acts *actions.Actions, logger *slog.Logger) *ImageHandler {
	return &ImageHandler{actions: acts, logger: logger}
}

// Generate handles POST /api/images/generate. Guests may generate.
func (h *ImageHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var input actions.GenerateInput
	if err := decodeJSONBody(w, r, &input); err != nil {
		writeJSONError(w, err)
		return
	}

	result := h.actions.GenerateArtifact(r.Context(), IdentityFromContext(r.Context()), input)
	writeResult(w, http.StatusCreated, result)
}

// List handles GET /api/images.
func (h *ImageHandler) List(w http.ResponseWriter, r *http.Request) {
	writeResult(w, http.StatusOK, h.actions.ListArtifacts(r.Context(), IdentityFromContext(r.Context())))
}

// Delete handles DELETE /api/images with an {"id": ...} body.
func (h *ImageHandler) Delete(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		ID string `json:"id"`
	}
	if err := decodeJSONBody(w, r, &payload); err != nil {
		writeJSONError(w, err)
		return
	}

	writeResult(w, http.StatusOK, h.actions.DeleteArtifact(r.Context(), IdentityFromContext(r.Context()), payload.ID))
}

// DeleteByID handles DELETE /api/images/{id}.
func (h *ImageHandler) DeleteByID(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	writeResult(w, http.StatusOK, h.actions.DeleteArtifact(r.Context(), IdentityFromContext(r.Context()), id))
}

// Export handles GET /api/images/export and streams a CSV attachment.
func (h *ImageHandler) Export(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	result := h.actions.ExportArtifacts(r.Context(), IdentityFromContext(r.Context()), &buf)
	if !result.OK() {
		writeResult(w, http.StatusOK, result)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="zemini-images.csv"`)
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		h.logger.Warn("export write failed", "error", err)
	}
}

// statusFor maps an action failure onto an HTTP status.
func statusFor(err *actions.Error) int {
	switch err.Kind {
	case actions.KindValidation:
		return http.StatusBadRequest
	case actions.KindConflict:
		return http.StatusConflict
	case actions.KindUnauthorized:
		return http.StatusUnauthorized
	case actions.KindNotFound:
		return http.StatusNotFound
	case actions.KindProvider:
		if err.Retryable {
			return http.StatusGatewayTimeout
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeResult[T any](w http.ResponseWriter, successStatus int, result actions.Result[T]) {
	status := successStatus
	if !result.OK() {
		status = statusFor(result.Err())
		if status == http.StatusUnauthorized {
			w.Header().Set("WWW-Authenticate", "Bearer")
		}
	}
	writeJSON(w, status, result)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"status":  string(actions.StatusFailed),
		"message": message,
	})
}

const maxJSONBodyBytes int64 = 1 << 20

var errPayloadTooLarge = errors.New("payload too large")

func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) error {
	limited := http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
	defer func() {
		_ = limited.Close()
	}()

	decoder := json.NewDecoder(limited)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return fmt.Errorf("%w (max %d bytes)", errPayloadTooLarge, maxErr.Limit)
		}
		return err
	}
	return nil
}

func writeJSONError(w http.ResponseWriter, err error) {
	if errors.Is(err, errPayloadTooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, "payload too large")
		return
	}
	// Return generic message to avoid leaking internal JSON parsing details
	writeError(w, http.StatusBadRequest, "invalid request body")
}
