package model

import (
    "testing"

    "github.com/stretchr/testify/assert"
)

func TestResearchHistoryItem_Price(t *testing.T) {
    cases := []struct {
        raw  string
        want float64
    }{
        {"45", 45},
        {" 12.50 ", 12.5},
        {"", 0},
        {"unknown", 0},
        {"$20", 0},
        {"NaN", 0},
        {"Inf", 0},
        {"-5", -5},
    }
    for _, tc := range cases {
        assert.Equal(t, tc.want, ResearchHistoryItem{EstimatedPrice: tc.raw}.Price(), "raw %q", tc.raw)
    }
}

func TestSummarize(t *testing.T) {
    items := []ResearchHistoryItem{
        {EstimatedPrice: "10"},
        {EstimatedPrice: "not a number"},
        {EstimatedPrice: "2.5"},
    }

    got := Summarize(items)

    assert.Equal(t, 3, got.TotalItems)
    assert.InDelta(t, 12.5, got.TotalValue, 1e-9)
}

func TestSummarize_Empty(t *testing.T) {
    assert.Equal(t, UserStats{}, Summarize(nil))
}

func TestUser_ViewOmitsHash(t *testing.T) {
    u := User{ID: 7, Email: "a@b.c", Name: "A", PasswordHash: "secret", Plan: PlanFree, Role: RoleUser}
    assert.Equal(t, UserView{ID: 7, Email: "a@b.c", Name: "A", Plan: PlanFree, Role: RoleUser}, u.View())
}
