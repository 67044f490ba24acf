package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/stuffworth/internal/model"
)

const historyColumns = "id,user_id,item_name,description,item_condition,estimated_price,price_low,price_high,currency,confidence,market_notes,sources,created_at"

// HistoryRepo provides access to the research_history table.
type HistoryRepo struct {
	db *sql.DB
}

func NewHistoryRepo(db *sql.DB) *HistoryRepo { return &HistoryRepo{db: db} }

// Add stores a research result.  A missing ID or CreatedAt is filled in and
// the stored item is returned.
func (r *HistoryRepo) Add(ctx context.Context, item model.ResearchHistoryItem) (model.ResearchHistoryItem, error) {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	}
	if item.Currency == "" {
		item.Currency = "USD"
	}
	var sources []byte
	if len(item.Sources) > 0 {
		b, err := json.Marshal(item.Sources)
		if err != nil {
			return item, err
		}
		sources = b
	}
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO research_history ("+historyColumns+") VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)",
		item.ID, item.UserID, item.ItemName, item.Description, item.Condition, item.EstimatedPrice,
		item.PriceLow, item.PriceHigh, item.Currency, item.Confidence, item.MarketNotes, sources, item.CreatedAt)
	if err != nil {
		return item, fmt.Errorf("insert history: %w", err)
	}
	return item, nil
}

// GetResearchHistory returns the user's items, newest first.  Items saved in
// the same millisecond fall back to id order so pages stay stable.  limit <= 0
// returns everything.
func (r *HistoryRepo) GetResearchHistory(ctx context.Context, userID uint64, limit int) ([]model.ResearchHistoryItem, error) {
	query := "SELECT " + historyColumns + " FROM research_history WHERE user_id=? ORDER BY created_at DESC, id DESC"
	args := []any{userID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	items := []model.ResearchHistoryItem{}
	for rows.Next() {
		var (
			it      model.ResearchHistoryItem
			sources []byte
		)
		if err := rows.Scan(&it.ID, &it.UserID, &it.ItemName, &it.Description, &it.Condition, &it.EstimatedPrice,
			&it.PriceLow, &it.PriceHigh, &it.Currency, &it.Confidence, &it.MarketNotes, &sources, &it.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		if len(sources) > 0 {
			if err := json.Unmarshal(sources, &it.Sources); err != nil {
				return nil, fmt.Errorf("decode sources for %s: %w", it.ID, err)
			}
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// Delete removes one of the user's items; ErrNotFound if it is not theirs.
func (r *HistoryRepo) Delete(ctx context.Context, userID uint64, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM research_history WHERE id=? AND user_id=?", id, userID)
	if err != nil {
		return fmt.Errorf("delete history: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
