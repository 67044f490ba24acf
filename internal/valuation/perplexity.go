package valuation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultPerplexityURL is the chat completions endpoint.
const DefaultPerplexityURL = "https://api.perplexity.ai/chat/completions"

// PerplexityResearcher asks Perplexity for recent comparable sales.
type PerplexityResearcher struct {
	APIKey  string
	Model   string
	BaseURL string
	Client  *http.Client
}

// NewPerplexityResearcher returns nil, ErrNotConfigured without a key.
func NewPerplexityResearcher(apiKey, model string) (*PerplexityResearcher, error) {
	if apiKey == "" {
		return nil, ErrNotConfigured
	}
	if model == "" {
		model = "sonar"
	}
	return &PerplexityResearcher{
		APIKey:  apiKey,
		Model:   model,
		BaseURL: DefaultPerplexityURL,
		Client:  &http.Client{Timeout: 45 * time.Second},
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Citations []string `json:"citations"`
}

// Research asks for sold listings that match the estimate.
func (p *PerplexityResearcher) Research(ctx context.Context, e Estimate) (MarketResearch, error) {
	q := fmt.Sprintf("Find recent secondhand sale prices for: %s (%s condition). %s "+
		"Summarize the typical resale price range in %s in under 120 words and name where it sells best.",
		e.ItemName, e.Condition, e.Description, e.Currency)
	body, err := json.Marshal(chatRequest{
		Model: p.Model,
		Messages: []chatMessage{
			{Role: "system", Content: "You are a concise secondhand market researcher. Cite real marketplaces."},
			{Role: "user", Content: q},
		},
	})
	if err != nil {
		return MarketResearch{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL, bytes.NewReader(body))
	if err != nil {
		return MarketResearch{}, err
	}
	req.Header.Set("Authorization", "Bearer "+p.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := p.Client.Do(req)
	if err != nil {
		return MarketResearch{}, fmt.Errorf("perplexity request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return MarketResearch{}, fmt.Errorf("perplexity status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	var out chatResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return MarketResearch{}, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	if len(out.Choices) == 0 {
		return MarketResearch{}, fmt.Errorf("%w: no choices", ErrBadResponse)
	}
	return MarketResearch{
		Notes:   strings.TrimSpace(out.Choices[0].Message.Content),
		Sources: out.Citations,
	}, nil
}
