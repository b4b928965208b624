package generation

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"google.golang.org/genai"

	"zemini/internal/artifacts"
)

// contentGenerator is the subset of *genai.Models used here.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiProvider generates images with a Gemini image model.
type GeminiProvider struct {
	models contentGenerator
	model  string
	client *http.Client
}

// NewGeminiProvider creates a Gemini API client for the given model.
func NewGeminiProvider(ctx context.Context, apiKey, model string, sourceClient *http.Client) (*GeminiProvider, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("genai client: %w", err)
	}
	return newGeminiProvider(client.Models, model, sourceClient), nil
}

func newGeminiProvider(models contentGenerator, model string, sourceClient *http.Client) *GeminiProvider {
	if sourceClient == nil {
		sourceClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &GeminiProvider{models: models, model: model, client: sourceClient}
}

// Generate asks the model for an image. Conversions send the source image
// inline next to the styling instruction.
func (p *GeminiProvider) Generate(ctx context.Context, req Request) ([]byte, error) {
	parts := []*genai.Part{genai.NewPartFromText(instructionFor(req))}
	if req.Kind.IsConversion() {
		source, mimeType, err := p.fetchSource(ctx, req.SourceURL)
		if err != nil {
			return nil, err
		}
		parts = append(parts, genai.NewPartFromBytes(source, mimeType))
	}

	result, err := p.models.GenerateContent(
		ctx,
		p.model,
		[]*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)},
		&genai.GenerateContentConfig{ResponseModalities: []string{"TEXT", "IMAGE"}},
	)
	if err != nil {
		return nil, fmt.Errorf("gemini generate: %w", err)
	}

	if result == nil {
		return nil, ErrEmptyImage
	}
	for _, candidate := range result.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part != nil && part.InlineData != nil && len(part.InlineData.Data) > 0 {
				return part.InlineData.Data, nil
			}
		}
	}
	return nil, ErrEmptyImage
}

func (p *GeminiProvider) fetchSource(ctx context.Context, sourceURL string) ([]byte, string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("create source request: %w", err)
	}
	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, "", fmt.Errorf("fetch source image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", &ProviderError{Provider: "source", StatusCode: resp.StatusCode, Detail: "source image unavailable"}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("read source image: %w", err)
	}
	if len(data) == 0 || len(data) > maxImageBytes {
		return nil, "", &ProviderError{Provider: "source", Detail: "source image is empty or too large"}
	}
	return data, http.DetectContentType(data), nil
}

func instructionFor(req Request) string {
	switch req.Kind {
	case artifacts.KindGhibli:
		return "Redraw the attached image in the hand-painted style of a Studio Ghibli film: soft watercolor backgrounds, warm light, gentle line work. Keep the composition and subjects. " + req.Prompt
	case artifacts.KindImg2Img:
		return "Transform the attached image according to this request while keeping its composition: " + req.Prompt
	default:
		return fmt.Sprintf(`You are an AI image generation assistant. Create one image with clear visual elements (colors, composition, lighting, style). Safe, appropriate content only.

User request: %s`, req.Prompt)
	}
}
