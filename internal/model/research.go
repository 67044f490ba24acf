package model

import (
    "math"
    "strconv"
    "strings"
    "time"
)

// ResearchHistoryItem is one saved valuation, stored in `research_history`.
// EstimatedPrice keeps the raw value produced by the vision model, so it may
// be non-numeric ("unknown", "$20-30"); use Price to aggregate it.
type ResearchHistoryItem struct {
    ID             string    `json:"id"`
    UserID         uint64    `json:"userId"`
    ItemName       string    `json:"itemName"`
    Description    string    `json:"description"`
    Condition      string    `json:"condition"`
    EstimatedPrice string    `json:"estimatedPrice"`
    PriceLow       float64   `json:"priceLow"`
    PriceHigh      float64   `json:"priceHigh"`
    Currency       string    `json:"currency"`
    Confidence     string    `json:"confidence"`
    MarketNotes    string    `json:"marketNotes"`
    Sources        []string  `json:"sources"`
    CreatedAt      time.Time `json:"createdAt"`
}

// Price returns EstimatedPrice as a number, or 0 when it is not numeric.
func (i ResearchHistoryItem) Price() float64 {
    v, err := strconv.ParseFloat(strings.TrimSpace(i.EstimatedPrice), 64)
    if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
        return 0
    }
    return v
}

// UserStats is the aggregate returned by GET /api/user/stats.
type UserStats struct {
    TotalItems int     `json:"totalItems"`
    TotalValue float64 `json:"totalValue"`
}

// Summarize counts items and sums their numeric prices.
func Summarize(items []ResearchHistoryItem) UserStats {
    s := UserStats{TotalItems: len(items)}
    for _, it := range items {
        s.TotalValue += it.Price()
    }
    return s
}
