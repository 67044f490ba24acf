package model

import "time"

// Roles stored in users.role and carried in the session token.
const (
    RoleUser  = "USER"
    RoleAdmin = "ADMIN"
)

// Plans stored in users.plan.
const (
    PlanFree = "free"
    PlanPro  = "pro"
)

// User represents an application user record as stored in the
// `users` table. Each field corresponds to a column in the
// database.  PasswordHash never leaves the server; handlers expose
// users through UserView.
type User struct {
    ID           uint64    // users.id
    Email        string    // users.email (lower-cased, unique)
    Name         string    // users.name
    PasswordHash string    // users.password_hash (bcrypt)
    Plan         string    // users.plan
    Role         string    // users.role
    CreatedAt    time.Time // users.created_at
    UpdatedAt    time.Time // users.updated_at
}

// UserView is the JSON shape of a user returned to clients.
type UserView struct {
    ID    uint64 `json:"id"`
    Email string `json:"email"`
    Name  string `json:"name"`
    Plan  string `json:"plan"`
    Role  string `json:"role"`
}

// View strips private fields.
func (u User) View() UserView {
    return UserView{ID: u.ID, Email: u.Email, Name: u.Name, Plan: u.Plan, Role: u.Role}
}

// PasswordResetPin models a row in `password_reset_pins`.  Only the
// SHA-256 hex digest of the emailed PIN is stored.
type PasswordResetPin struct {
    ID        uint64    // password_reset_pins.id
    Email     string    // password_reset_pins.email
    PinHash   string    // password_reset_pins.pin_hash
    ExpiresAt time.Time // password_reset_pins.expires_at
    Attempts  int       // password_reset_pins.attempts, wrong guesses so far
    CreatedAt time.Time // password_reset_pins.created_at
}
