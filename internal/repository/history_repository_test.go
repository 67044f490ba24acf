package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/stuffworth/internal/model"
)

var historyCols = []string{"id", "user_id", "item_name", "description", "item_condition", "estimated_price",
	"price_low", "price_high", "currency", "confidence", "market_notes", "sources", "created_at"}

func TestHistoryRepo_Add_FillsDefaults(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO research_history")).
		WithArgs(sqlmock.AnyArg(), uint64(5), "Lamp", "Brass desk lamp", "good", "40",
			20.0, 60.0, "USD", "high", "", []byte(`["https://ebay.com/x"]`), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	item, err := NewHistoryRepo(db).Add(context.Background(), model.ResearchHistoryItem{
		UserID: 5, ItemName: "Lamp", Description: "Brass desk lamp", Condition: "good",
		EstimatedPrice: "40", PriceLow: 20, PriceHigh: 60, Confidence: "high",
		Sources: []string{"https://ebay.com/x"},
	})
	require.NoError(t, err)
	assert.Len(t, item.ID, 36)
	assert.Equal(t, "USD", item.Currency)
	assert.False(t, item.CreatedAt.IsZero())
	assert.Equal(t, item.CreatedAt.Truncate(time.Millisecond), item.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHistoryRepo_GetResearchHistory(t *testing.T) {
	db, mock := newMock(t)
	now := time.Now().UTC()
	rows := sqlmock.NewRows(historyCols).
		AddRow("id-2", 5, "Chair", "", "fair", "15", 10.0, 20.0, "USD", "medium", "", nil, now).
		AddRow("id-1", 5, "Lamp", "", "good", "unknown", 0.0, 0.0, "USD", "low", "notes", []byte(`["a","b"]`), now.Add(-time.Hour))

	mock.ExpectQuery(regexp.QuoteMeta("FROM research_history WHERE user_id=? ORDER BY created_at DESC, id DESC LIMIT ?")).
		WithArgs(uint64(5), 20).
		WillReturnRows(rows)

	items, err := NewHistoryRepo(db).GetResearchHistory(context.Background(), 5, 20)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "id-2", items[0].ID)
	assert.Nil(t, items[0].Sources)
	assert.Equal(t, []string{"a", "b"}, items[1].Sources)
}

func TestHistoryRepo_GetResearchHistory_NoLimitReturnsEmptySlice(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM research_history WHERE user_id=? ORDER BY created_at DESC, id DESC")).
		WithArgs(uint64(5)).
		WillReturnRows(sqlmock.NewRows(historyCols))

	items, err := NewHistoryRepo(db).GetResearchHistory(context.Background(), 5, 0)
	require.NoError(t, err)
	assert.NotNil(t, items)
	assert.Empty(t, items)
}

func TestHistoryRepo_Delete(t *testing.T) {
	t.Run("owned", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectExec(regexp.QuoteMeta("DELETE FROM research_history WHERE id=? AND user_id=?")).
			WithArgs("id-1", uint64(5)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		assert.NoError(t, NewHistoryRepo(db).Delete(context.Background(), 5, "id-1"))
	})

	t.Run("not owned", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectExec("DELETE FROM research_history").WillReturnResult(sqlmock.NewResult(0, 0))
		assert.ErrorIs(t, NewHistoryRepo(db).Delete(context.Background(), 6, "id-1"), ErrNotFound)
	})
}
