package valuation

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

const visionPrompt = `You are an expert secondhand resale appraiser.
Identify the item in the photo and estimate what it would sell for on the
secondhand market in its visible condition.

Reply with JSON only, using exactly these fields:
{"itemName": string, "description": string, "condition": "new"|"like new"|"good"|"fair"|"poor",
 "estimatedPrice": number, "priceRange": {"low": number, "high": number},
 "currency": ISO 4217 code, "confidence": "low"|"medium"|"high"}`

// contentGenerator is the slice of the genai Models service we call.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiEstimator asks a Gemini vision model to appraise the photo.
type GeminiEstimator struct {
	models contentGenerator
	model  string
}

// NewGeminiEstimator creates a client for the Gemini API.
func NewGeminiEstimator(ctx context.Context, apiKey, model string) (*GeminiEstimator, error) {
	if apiKey == "" {
		return nil, ErrNotConfigured
	}
	if model == "" {
		model = "gemini-2.5-flash"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &GeminiEstimator{models: client.Models, model: model}, nil
}

// Estimate sends the JPEG inline with the appraisal prompt.
func (g *GeminiEstimator) Estimate(ctx context.Context, p Photo) (Estimate, error) {
	if len(p.JPEG) == 0 {
		return Estimate{}, fmt.Errorf("empty photo")
	}
	parts := []*genai.Part{
		genai.NewPartFromText(visionPrompt),
		genai.NewPartFromBytes(p.JPEG, "image/jpeg"),
	}
	if p.Notes != "" {
		parts = append(parts, genai.NewPartFromText("Seller notes: "+p.Notes))
	}
	resp, err := g.models.GenerateContent(ctx, g.model,
		[]*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)},
		&genai.GenerateContentConfig{
			ResponseMIMEType: "application/json",
			Temperature:      genai.Ptr[float32](0.2),
		})
	if err != nil {
		return Estimate{}, fmt.Errorf("GenAI generate failed: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return Estimate{}, fmt.Errorf("%w: no candidates", ErrBadResponse)
	}
	return ParseEstimate(resp.Text())
}
