package repository

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"fmt"
	"time"
)

// MaxPinAttempts is how many wrong guesses a PIN survives.
const MaxPinAttempts = 5

// ResetPinRepo persists password reset PIN digests (single 'pin_hash' column).
type ResetPinRepo struct{ DB *sql.DB }

func NewResetPinRepo(db *sql.DB) *ResetPinRepo { return &ResetPinRepo{DB: db} }

// Store replaces any outstanding PINs for the email with a new digest.
func (r *ResetPinRepo) Store(ctx context.Context, email, pinHash string, exp time.Time) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	email = NormalizeEmail(email)
	if _, err := tx.ExecContext(ctx, "DELETE FROM password_reset_pins WHERE email=?", email); err != nil {
		return fmt.Errorf("clear pins: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO password_reset_pins (email, pin_hash, expires_at) VALUES (?,?,?)",
		email, pinHash, exp.UTC()); err != nil {
		return fmt.Errorf("insert pin: %w", err)
	}
	return tx.Commit()
}

// VerifyResetToken reports whether pinHash matches an unexpired PIN for the
// email.  A missing row is not an error.  Every wrong guess counts against
// the outstanding PIN, and the PIN is dropped after MaxPinAttempts misses.
func (r *ResetPinRepo) VerifyResetToken(ctx context.Context, email, pinHash string) (bool, error) {
	email = NormalizeEmail(email)
	rows, err := r.DB.QueryContext(ctx,
		"SELECT pin_hash, expires_at, attempts FROM password_reset_pins WHERE email=?", email)
	if err != nil {
		return false, fmt.Errorf("query pins: %w", err)
	}
	defer rows.Close()

	now := time.Now().UTC()
	found, valid := false, false
	for rows.Next() {
		var (
			stored    string
			expiresAt time.Time
			attempts  int
		)
		if err := rows.Scan(&stored, &expiresAt, &attempts); err != nil {
			return false, err
		}
		found = true
		if attempts < MaxPinAttempts && now.Before(expiresAt) &&
			subtle.ConstantTimeCompare([]byte(stored), []byte(pinHash)) == 1 {
			valid = true
		}
	}
	if err := rows.Err(); err != nil {
		return false, err
	}
	if found && !valid {
		return false, r.recordMiss(ctx, email)
	}
	return valid, nil
}

// ConsumeResetToken deletes the PIN matching pinHash and reports whether it
// did.  Only one caller can consume a given PIN; a miss counts like a wrong
// guess in VerifyResetToken.
func (r *ResetPinRepo) ConsumeResetToken(ctx context.Context, email, pinHash string) (bool, error) {
	email = NormalizeEmail(email)
	res, err := r.DB.ExecContext(ctx,
		"DELETE FROM password_reset_pins WHERE email=? AND pin_hash=? AND expires_at > UTC_TIMESTAMP() AND attempts < ?",
		email, pinHash, MaxPinAttempts)
	if err != nil {
		return false, fmt.Errorf("consume pin: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, r.recordMiss(ctx, email)
	}
	return true, nil
}

// recordMiss bumps the attempt counter and drops PINs that are out of tries.
func (r *ResetPinRepo) recordMiss(ctx context.Context, email string) error {
	if _, err := r.DB.ExecContext(ctx,
		"UPDATE password_reset_pins SET attempts = attempts + 1 WHERE email=?", email); err != nil {
		return fmt.Errorf("count pin miss: %w", err)
	}
	if _, err := r.DB.ExecContext(ctx,
		"DELETE FROM password_reset_pins WHERE email=? AND attempts >= ?", email, MaxPinAttempts); err != nil {
		return fmt.Errorf("drop exhausted pin: %w", err)
	}
	return nil
}

// DeleteExpired purges stale PINs and returns how many rows went away.
func (r *ResetPinRepo) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM password_reset_pins WHERE expires_at <= UTC_TIMESTAMP()")
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
