// Package repository defines the MySQL data-access layer and the sentinel
// errors handlers map onto HTTP statuses.
package repository

import "errors"

// ErrNotFound is returned when a row does not exist or belongs to another
// user.  Handlers should translate this into an HTTP 404 response.
var ErrNotFound = errors.New("not found")

// ErrUserNotFound is returned by user lookups and password updates that
// match no account.
var ErrUserNotFound = errors.New("user not found")

// ErrEmailExists is returned when registering an email that is already taken.
var ErrEmailExists = errors.New("email already exists")
