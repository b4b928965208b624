package actions

import (
	"context"
	"errors"
	"io"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"zemini/internal/artifacts"
	"zemini/internal/auth"
	"zemini/internal/generation"
)

const maxPromptLength = 1000

// GenerateInput requests a new artifact.
type GenerateInput struct {
	Prompt    string `json:"prompt" validate:"required"`
	Kind      string `json:"type"`
	SourceURL string `json:"imageUrl"`
}

// Generated is the outcome of a successful generation.
type Generated struct {
	URL      string             `json:"imageUrl"`
	Artifact artifacts.Artifact `json:"image"`
}

// GenerateArtifact calls the generation provider, uploads the image and
// records it for the caller. Guests may generate; their artifacts are owned
// by the guest identity and are never listed for anyone.
//
// An upload that succeeds followed by a failed insert leaves the uploaded
// object in storage.
func (a *Actions) GenerateArtifact(ctx context.Context, identity auth.Identity, input GenerateInput) Result[Generated] {
	started := time.Now()
	req, verr := a.parseGenerateInput(input)
	if verr != nil {
		generationsTotal.WithLabelValues("invalid", "rejected").Inc()
		return Failure[Generated](verr)
	}
	kind := string(req.Kind)

	fail := func(actionErr *Error, outcome string) Result[Generated] {
		generationsTotal.WithLabelValues(kind, outcome).Inc()
		a.logFailure(ctx, "generate_artifact", identity, actionErr)
		return Failure[Generated](actionErr)
	}

	providerCtx, cancel := context.WithTimeout(ctx, a.providerTimeout)
	data, err := a.provider.Generate(providerCtx, req)
	cancel()
	if err == nil && len(data) == 0 {
		err = generation.ErrEmptyImage
	}
	if err != nil {
		return fail(externalFailure(err, "image generation failed", "image generation timed out, please try again"), "provider_error")
	}

	uploadCtx, cancel := context.WithTimeout(ctx, a.storageTimeout)
	link, err := a.store.Upload(uploadCtx, data, req.Kind.Folder())
	cancel()
	if err != nil {
		return fail(externalFailure(err, "could not store generated image", "image upload timed out, please try again"), "storage_error")
	}

	artifact, err := a.artifacts.Create(ctx, artifacts.Artifact{
		ID:        uuid.New(),
		Owner:     identity,
		Prompt:    req.Prompt,
		URL:       link,
		SourceURL: req.SourceURL,
		Kind:      req.Kind,
		CreatedAt: a.now(),
	})
	if err != nil {
		a.logger.Warn("uploaded image was not recorded", "url", link, "identity", identity.String())
		return fail(failure(KindPersistence, "could not save generated image", err), "persistence_error")
	}

	generationsTotal.WithLabelValues(kind, "success").Inc()
	generationDuration.WithLabelValues(kind).Observe(time.Since(started).Seconds())
	a.logger.Info("artifact generated", "id", artifact.ID, "kind", kind, "identity", identity.String())

	return Success(successMessage(req.Kind), Generated{URL: artifact.URL, Artifact: artifact})
}

func (a *Actions) parseGenerateInput(input GenerateInput) (generation.Request, *Error) {
	input.Prompt = strings.TrimSpace(input.Prompt)
	input.SourceURL = strings.TrimSpace(input.SourceURL)

	if verr := a.checkInput(input); verr != nil {
		return generation.Request{}, verr
	}
	if utf8.RuneCountInString(input.Prompt) > maxPromptLength {
		return generation.Request{}, failure(KindValidation, "prompt must be at most 1000 characters", nil)
	}

	kind, ok := artifacts.ParseKind(strings.TrimSpace(input.Kind))
	if !ok {
		return generation.Request{}, failure(KindValidation, "type must be one of: generate, ghibli, img2img", nil)
	}

	req := generation.Request{Prompt: input.Prompt, Kind: kind}
	if kind.IsConversion() {
		if input.SourceURL == "" {
			return generation.Request{}, failure(KindValidation, "imageUrl is required for "+string(kind)+" conversions", nil)
		}
		if !isHTTPURL(input.SourceURL) {
			return generation.Request{}, failure(KindValidation, "imageUrl must be an http or https URL", nil)
		}
		req.SourceURL = input.SourceURL
	}
	return req, nil
}

func isHTTPURL(raw string) bool {
	parsed, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (parsed.Scheme == "http" || parsed.Scheme == "https") && parsed.Host != ""
}

func successMessage(kind artifacts.Kind) string {
	switch kind {
	case artifacts.KindGhibli:
		return "Image converted to Ghibli style successfully"
	case artifacts.KindImg2Img:
		return "Image transformed successfully"
	default:
		return "Image generated successfully"
	}
}

// DeleteArtifact removes one of the caller's artifacts. Absent and foreign
// artifacts fail identically.
func (a *Actions) DeleteArtifact(ctx context.Context, identity auth.Identity, rawID string) Result[None] {
	if _, authErr := requireUser(identity); authErr != nil {
		return Failure[None](authErr)
	}

	id, err := uuid.Parse(strings.TrimSpace(rawID))
	if err != nil {
		return Failure[None](failure(KindValidation, "invalid image id", nil))
	}

	if err := a.artifacts.DeleteOwned(ctx, id, identity); err != nil {
		var actionErr *Error
		if errors.Is(err, artifacts.ErrNotFound) {
			actionErr = failure(KindNotFound, artifacts.ErrNotFound.Error(), nil)
		} else {
			actionErr = failure(KindPersistence, "could not delete image", err)
		}
		a.logFailure(ctx, "delete_artifact", identity, actionErr)
		return Failure[None](actionErr)
	}

	a.logger.Info("artifact deleted", "id", id, "identity", identity.String())
	return Success("Image deleted successfully", None{})
}

// ListArtifacts returns the caller's artifacts, most recent first.
func (a *Actions) ListArtifacts(ctx context.Context, identity auth.Identity) Result[[]artifacts.Artifact] {
	if _, authErr := requireUser(identity); authErr != nil {
		return Failure[[]artifacts.Artifact](authErr)
	}

	list, err := a.artifacts.ListByOwner(ctx, identity)
	if err != nil {
		actionErr := failure(KindPersistence, "could not load images", err)
		a.logFailure(ctx, "list_artifacts", identity, actionErr)
		return Failure[[]artifacts.Artifact](actionErr)
	}
	if list == nil {
		list = []artifacts.Artifact{}
	}
	return Success("Images loaded", list)
}

// ExportArtifacts writes the caller's artifacts to w as CSV.
func (a *Actions) ExportArtifacts(ctx context.Context, identity auth.Identity, w io.Writer) Result[None] {
	listed := a.ListArtifacts(ctx, identity)
	if !listed.OK() {
		return Failure[None](listed.Err())
	}

	if err := a.exporter.Export(w, listed.Data()); err != nil {
		actionErr := failure(KindInternal, "could not export images", err)
		a.logFailure(ctx, "export_artifacts", identity, actionErr)
		return Failure[None](actionErr)
	}
	return Success("Images exported", None{})
}
