// Package generation calls external image generation providers.
package generation

import (
	"context"
	"errors"
	"fmt"

	"zemini/internal/artifacts"
)

// ErrEmptyImage is returned when a provider answers without image data.
var ErrEmptyImage = errors.New("provider returned no image data")

// Request describes one generation call.
type Request struct {
	Prompt    string
	Kind      artifacts.Kind
	SourceURL string
}

// Provider produces raw image bytes for a request.
type Provider interface {
	Generate(ctx context.Context, req Request) ([]byte, error)
}

// ProviderError is a non-success answer from a provider. Detail is kept for
// logs and never shown to callers.
type ProviderError struct {
	Provider   string
	StatusCode int
	Detail     string
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s returned status %d: %s", e.Provider, e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("%s failed: %s", e.Provider, e.Detail)
}
