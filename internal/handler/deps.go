package handler

import (
    "context"
    "time"

    "github.com/iliyamo/stuffworth/internal/model"
)

// UserStore is the subset of repository.UserRepo the handlers use.
type UserStore interface {
    Create(ctx context.Context, email, name, password string, cost int) (model.User, error)
    GetByEmail(ctx context.Context, email string) (model.User, error)
    GetByID(ctx context.Context, id uint64) (model.User, error)
    UpdatePassword(ctx context.Context, email, passwordHash string) error
    List(ctx context.Context, limit, offset int) ([]model.User, error)
}

// PinStore is the subset of repository.ResetPinRepo the handlers use.
type PinStore interface {
    Store(ctx context.Context, email, pinHash string, exp time.Time) error
    VerifyResetToken(ctx context.Context, email, pinHash string) (bool, error)
    ConsumeResetToken(ctx context.Context, email, pinHash string) (bool, error)
}

// HistoryStore is the subset of repository.HistoryRepo the handlers use.
type HistoryStore interface {
    Add(ctx context.Context, item model.ResearchHistoryItem) (model.ResearchHistoryItem, error)
    GetResearchHistory(ctx context.Context, userID uint64, limit int) ([]model.ResearchHistoryItem, error)
    Delete(ctx context.Context, userID uint64, id string) error
}

// dbTimeout bounds every database call made from a request.
const dbTimeout = 5 * time.Second
