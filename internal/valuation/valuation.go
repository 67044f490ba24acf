// Package valuation turns an item photo into a resale estimate.  The vision
// step runs on Gemini; an optional market research step asks Perplexity for
// recent comparable sales.
package valuation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrNotConfigured means the required API key is missing.
	ErrNotConfigured = errors.New("valuation provider not configured")
	// ErrBadResponse means the provider answered with something unparseable.
	ErrBadResponse = errors.New("valuation provider returned an unusable response")
)

// Photo is a JPEG image of the item plus optional notes from the user.
type Photo struct {
	JPEG  []byte
	Notes string
}

// Estimate is the vision model's reading of the photo.
type Estimate struct {
	ItemName       string  `json:"itemName"`
	Description    string  `json:"description"`
	Condition      string  `json:"condition"`
	EstimatedPrice string  `json:"estimatedPrice"`
	PriceLow       float64 `json:"priceLow"`
	PriceHigh      float64 `json:"priceHigh"`
	Currency       string  `json:"currency"`
	Confidence     string  `json:"confidence"`
}

// MarketResearch is the optional enrichment of an Estimate.
type MarketResearch struct {
	Notes   string   `json:"notes"`
	Sources []string `json:"sources"`
}

// Estimator produces an Estimate from a photo.
type Estimator interface {
	Estimate(ctx context.Context, p Photo) (Estimate, error)
}

// Researcher looks up market data for an Estimate.
type Researcher interface {
	Research(ctx context.Context, e Estimate) (MarketResearch, error)
}

// rawEstimate mirrors the JSON the vision prompt asks for.  Prices are
// decoded loosely because models alternate between numbers and strings.
type rawEstimate struct {
	ItemName       string          `json:"itemName"`
	Description    string          `json:"description"`
	Condition      string          `json:"condition"`
	EstimatedPrice json.RawMessage `json:"estimatedPrice"`
	PriceRange     struct {
		Low  json.RawMessage `json:"low"`
		High json.RawMessage `json:"high"`
	} `json:"priceRange"`
	Currency   string `json:"currency"`
	Confidence string `json:"confidence"`
}

// ParseEstimate decodes a model reply, tolerating Markdown code fences.
func ParseEstimate(text string) (Estimate, error) {
	var raw rawEstimate
	if err := json.Unmarshal([]byte(stripFences(text)), &raw); err != nil {
		return Estimate{}, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	if strings.TrimSpace(raw.ItemName) == "" {
		return Estimate{}, fmt.Errorf("%w: missing itemName", ErrBadResponse)
	}
	est := Estimate{
		ItemName:       strings.TrimSpace(raw.ItemName),
		Description:    strings.TrimSpace(raw.Description),
		Condition:      strings.ToLower(strings.TrimSpace(raw.Condition)),
		EstimatedPrice: looseString(raw.EstimatedPrice),
		PriceLow:       looseNumber(raw.PriceRange.Low),
		PriceHigh:      looseNumber(raw.PriceRange.High),
		Currency:       strings.ToUpper(strings.TrimSpace(raw.Currency)),
		Confidence:     strings.ToLower(strings.TrimSpace(raw.Confidence)),
	}
	if est.Currency == "" {
		est.Currency = "USD"
	}
	return est, nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:] // drop the language tag line
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}

// looseString renders a JSON number or string as text; null becomes "".
func looseString(m json.RawMessage) string {
	if len(m) == 0 || string(m) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(m, &s); err == nil {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(string(m))
}

// looseNumber parses a JSON number or numeric string; anything else is 0.
func looseNumber(m json.RawMessage) float64 {
	s := strings.TrimPrefix(looseString(m), "$")
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return 0
	}
	return v
}
